package http

import (
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"

	"budget/internal/core"
	"budget/internal/ledger"
)

func (s *Server) handleCreateGoal(w http.ResponseWriter, r *http.Request) {
	if errResp := RequirePOST(r); errResp != nil {
		errResp.Write(w)
		return
	}
	if errResp := ParseFormOrFail(r); errResp != nil {
		errResp.Write(w)
		return
	}

	targetStr := strings.TrimSpace(r.Form.Get("target"))
	cents, err := core.ParseDecimalToCents(targetStr)
	if err != nil {
		UnprocessableEntityError("Invalid target amount").Write(w)
		return
	}

	goal := core.SavingsGoal{
		Name:   sanitizeInput(r.Form.Get("name")),
		Target: core.Money{Cents: cents},
	}
	if v := strings.TrimSpace(r.Form.Get("target_date")); v != "" {
		d, err := core.ParseDate(v)
		if err != nil {
			UnprocessableEntityError("Invalid target date, expected YYYY-MM-DD").Write(w)
			return
		}
		goal.TargetDate = d
	}

	if err := goal.Validate(); err != nil {
		UnprocessableEntityError("Invalid data: " + err.Error()).Write(w)
		return
	}

	saved, err := s.store.AddGoal(r.Context(), goal)
	if err != nil {
		slog.ErrorContext(r.Context(), "Failed to save goal", "error", err, "goal_name", goal.Name)
		InternalServerError("Error saving goal").Write(w)
		return
	}

	atomic.AddInt64(&s.metrics.totalGoals, 1)

	slog.InfoContext(r.Context(), "Goal created",
		"goal_id", saved.ID,
		"goal_name", saved.Name,
		"target_cents", saved.Target.Cents)

	successMsg := fmt.Sprintf("Goal %q created, target %s", saved.Name, formatAmount(saved.Target.Cents))

	NewHTMXResponse().
		TriggerGoalCreated(saved.ID).
		TriggerFormReset().
		TriggerSuccessNotification(successMsg).
		BodyHTML(`<div class="success">` + template.HTMLEscapeString(successMsg) + `</div>`).
		Write(w)
}

func (s *Server) handleDeleteGoal(w http.ResponseWriter, r *http.Request) {
	if errResp := RequireDeleteOrPOST(r); errResp != nil {
		errResp.Write(w)
		return
	}

	parser := NewRequestBodyParser(r)
	if err := parser.Parse(); err != nil {
		BadRequestError("Invalid request format").Write(w)
		return
	}

	id, ok := parser.GetID()
	if !ok {
		BadRequestError("Missing goal id").Write(w)
		return
	}

	if err := s.store.DeleteGoal(r.Context(), id); err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			NotFoundError("Goal not found").Write(w)
			return
		}
		slog.ErrorContext(r.Context(), "Failed to delete goal", "error", err, "goal_id", id)
		InternalServerError("Error deleting goal").Write(w)
		return
	}

	slog.InfoContext(r.Context(), "Goal deleted", "goal_id", id)

	NewHTMXResponse().
		TriggerGoalDeleted(id).
		TriggerSuccessNotification("Goal deleted").
		BodyHTML(`<div class="success">Goal deleted</div>`).
		Write(w)
}

// handleGoals renders the goals partial with derived progress.
func (s *Server) handleGoals(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	goals, err := s.store.ListGoals(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "List goals error", "error", err)
		_, _ = w.Write([]byte(`<section id="goals" class="goals"><div class="placeholder">Error loading goals</div></section>`))
		return
	}

	type row struct {
		ID         int64
		Name       string
		Target     string
		Current    string
		Percent    int
		TargetDate string
		Done       bool
	}
	data := struct {
		Rows []row
	}{}
	for _, g := range goals {
		progress, err := s.store.GoalProgress(r.Context(), g.ID)
		if err != nil {
			slog.ErrorContext(r.Context(), "Goal progress error", "error", err, "goal_id", g.ID)
			continue
		}
		targetDate := ""
		if !g.TargetDate.IsEmpty() {
			targetDate = g.TargetDate.String()
		}
		data.Rows = append(data.Rows, row{
			ID:         g.ID,
			Name:       g.Name,
			Target:     formatAmount(g.Target.Cents),
			Current:    formatAmount(progress.Current.Cents),
			Percent:    int(progress.Fraction * 100),
			TargetDate: targetDate,
			Done:       progress.Fraction >= 1.0,
		})
	}

	if s.templates == nil {
		_, _ = w.Write([]byte(`<section id="goals" class="goals"><div class="placeholder">No template</div></section>`))
		return
	}
	if err := s.templates.ExecuteTemplate(w, "goals.html", data); err != nil {
		slog.ErrorContext(r.Context(), "Template execution error", "error", err, "template", "goals.html")
		_, _ = w.Write([]byte(`<section id="goals" class="goals"><div class="placeholder">Error rendering goals</div></section>`))
	}
}
