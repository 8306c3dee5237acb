package http

import (
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"strings"

	"budget/internal/core"
)

func (s *Server) handleSetBudget(w http.ResponseWriter, r *http.Request) {
	if errResp := RequirePOST(r); errResp != nil {
		errResp.Write(w)
		return
	}
	if errResp := ParseFormOrFail(r); errResp != nil {
		errResp.Write(w)
		return
	}

	limitStr := strings.TrimSpace(r.Form.Get("limit"))
	cents, err := core.ParseDecimalToCents(limitStr)
	if err != nil {
		UnprocessableEntityError("Invalid limit amount").Write(w)
		return
	}

	budget := core.Budget{
		Category:     sanitizeInput(r.Form.Get("category")),
		MonthlyLimit: core.Money{Cents: cents},
	}
	if err := budget.Validate(); err != nil {
		UnprocessableEntityError("Invalid data: " + err.Error()).Write(w)
		return
	}

	if err := s.store.SetBudget(r.Context(), budget); err != nil {
		slog.ErrorContext(r.Context(), "Failed to save budget", "error", err, "category", budget.Category)
		InternalServerError("Error saving budget").Write(w)
		return
	}

	slog.InfoContext(r.Context(), "Budget saved",
		"category", budget.Category,
		"limit_cents", budget.MonthlyLimit.Cents)

	successMsg := fmt.Sprintf("Budget for %s set to %s per month",
		budget.Category, formatAmount(budget.MonthlyLimit.Cents))

	NewHTMXResponse().
		TriggerBudgetSaved(budget.Category).
		TriggerFormReset().
		TriggerSuccessNotification(successMsg).
		BodyHTML(`<div class="success">` + template.HTMLEscapeString(successMsg) + `</div>`).
		Write(w)
}

// handleBudgets renders the budget status partial for a month.
func (s *Server) handleBudgets(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	year, month := parseYearMonth(r)

	statuses, err := s.store.BudgetStatus(r.Context(), year, month)
	if err != nil {
		slog.ErrorContext(r.Context(), "Budget status error", "error", err, "year", year, "month", month)
		_, _ = w.Write([]byte(`<section id="budgets" class="budgets"><div class="placeholder">Error loading budgets</div></section>`))
		return
	}

	type row struct {
		Category string
		Limit    string
		Spent    string
		Percent  int
		State    string
	}
	data := struct {
		Year  int
		Month int
		Rows  []row
	}{Year: year, Month: month}
	for _, b := range statuses {
		width := int(b.Percent)
		if width > 100 {
			width = 100
		}
		data.Rows = append(data.Rows, row{
			Category: b.Category,
			Limit:    formatAmount(b.Limit.Cents),
			Spent:    formatAmount(b.Spent.Cents),
			Percent:  width,
			State:    string(b.State),
		})
	}

	if s.templates == nil {
		_, _ = w.Write([]byte(`<section id="budgets" class="budgets"><div class="placeholder">No template</div></section>`))
		return
	}
	if err := s.templates.ExecuteTemplate(w, "budgets.html", data); err != nil {
		slog.ErrorContext(r.Context(), "Template execution error", "error", err, "template", "budgets.html")
		_, _ = w.Write([]byte(`<section id="budgets" class="budgets"><div class="placeholder">Error rendering budgets</div></section>`))
	}
}
