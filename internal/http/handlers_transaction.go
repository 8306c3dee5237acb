package http

import (
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"budget/internal/core"
	"budget/internal/export"
	"budget/internal/ledger"
)

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	if errResp := RequirePOST(r); errResp != nil {
		errResp.Write(w)
		return
	}
	if errResp := ParseFormOrFail(r); errResp != nil {
		errResp.Write(w)
		return
	}

	dateStr := strings.TrimSpace(r.Form.Get("date"))
	if dateStr == "" {
		dateStr = time.Now().Format("2006-01-02")
	}
	date, err := core.ParseDate(dateStr)
	if err != nil {
		UnprocessableEntityError("Invalid date, expected YYYY-MM-DD").Write(w)
		return
	}

	amountStr := strings.TrimSpace(r.Form.Get("amount"))
	cents, err := core.ParseDecimalToCents(amountStr)
	if err != nil {
		UnprocessableEntityError("Invalid amount").Write(w)
		return
	}

	tx := core.Transaction{
		Date:     date,
		Type:     core.TransactionType(sanitizeInput(r.Form.Get("type"))),
		Category: sanitizeInput(r.Form.Get("category")),
		Amount:   core.Money{Cents: cents},
		Note:     sanitizeInput(r.Form.Get("note")),
	}
	if v := strings.TrimSpace(r.Form.Get("goal")); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil && id > 0 {
			tx.GoalID = id
		}
	}

	if err := tx.Validate(); err != nil {
		UnprocessableEntityError("Invalid data: " + err.Error()).Write(w)
		return
	}

	saved, err := s.store.AddTransaction(r.Context(), tx)
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			UnprocessableEntityError("Unknown savings goal").Write(w)
			return
		}
		slog.ErrorContext(r.Context(), "Failed to save transaction",
			"error", err,
			"transaction_type", string(tx.Type),
			"category", tx.Category,
			"amount_cents", tx.Amount.Cents)
		InternalServerError("Error saving transaction").Write(w)
		return
	}

	atomic.AddInt64(&s.metrics.totalTransactions, 1)
	s.invalidateDerived()

	slog.InfoContext(r.Context(), "Transaction created",
		"transaction_id", saved.ID,
		"transaction_type", string(saved.Type),
		"category", saved.Category,
		"amount_cents", saved.Amount.Cents)

	successMsg := fmt.Sprintf("Recorded %s: %s %s (#%d)",
		saved.Type, saved.Category, formatAmount(saved.Amount.Cents), saved.ID)

	NewHTMXResponse().
		TriggerTransactionCreated(saved.Date.Year(), int(saved.Date.Month())).
		TriggerFormReset().
		TriggerSuccessNotification(successMsg).
		BodyHTML(`<div class="success">` + template.HTMLEscapeString(successMsg) + `</div>`).
		Write(w)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	if errResp := RequireDeleteOrPOST(r); errResp != nil {
		errResp.Write(w)
		return
	}

	parser := NewRequestBodyParser(r)
	if err := parser.Parse(); err != nil {
		slog.ErrorContext(r.Context(), "Parse delete request error", "error", err, "method", r.Method)
		BadRequestError("Invalid request format").Write(w)
		return
	}

	id, ok := parser.GetID()
	if !ok {
		BadRequestError("Missing transaction id").Write(w)
		return
	}

	if err := s.store.DeleteTransaction(r.Context(), id); err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			NotFoundError("Transaction not found").Write(w)
			return
		}
		slog.ErrorContext(r.Context(), "Failed to delete transaction", "error", err, "transaction_id", id)
		InternalServerError("Error deleting transaction").Write(w)
		return
	}

	s.invalidateDerived()

	slog.InfoContext(r.Context(), "Transaction deleted", "transaction_id", id)

	NewHTMXResponse().
		TriggerTransactionDeleted(id).
		TriggerSuccessNotification("Transaction deleted").
		BodyHTML(`<div class="success">Transaction deleted</div>`).
		Write(w)
}

// handleHistory renders the filtered transaction list partial.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	filter, err := ParseFilter(r.URL.Query())
	if err != nil {
		UnprocessableEntityError("Invalid filter: " + err.Error()).Write(w)
		return
	}

	items, err := s.store.ListTransactions(r.Context(), filter)
	if err != nil {
		slog.ErrorContext(r.Context(), "List transactions error", "error", err)
		_, _ = w.Write([]byte(`<section id="history" class="history"><div class="placeholder">Error loading history</div></section>`))
		return
	}

	type row struct {
		ID       int64
		Date     string
		Type     string
		Category string
		Amount   string
		Note     string
		GoalID   int64
	}
	data := struct {
		Count int
		Rows  []row
	}{Count: len(items)}
	for _, t := range items {
		data.Rows = append(data.Rows, row{
			ID:       t.ID,
			Date:     t.Date.String(),
			Type:     string(t.Type),
			Category: t.Category,
			Amount:   formatAmount(t.Amount.Cents),
			Note:     t.Note,
			GoalID:   t.GoalID,
		})
	}

	if s.templates == nil {
		_, _ = w.Write([]byte(`<section id="history" class="history"><div class="placeholder">` + strconv.Itoa(len(items)) + ` transactions</div></section>`))
		return
	}
	if err := s.templates.ExecuteTemplate(w, "history.html", data); err != nil {
		slog.ErrorContext(r.Context(), "Template execution error", "error", err, "template", "history.html")
		_, _ = w.Write([]byte(`<section id="history" class="history"><div class="placeholder">Error rendering history</div></section>`))
	}
}

// handleExportCSV streams the filtered ledger as a CSV download.
func (s *Server) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	if errResp := RequireMethod(r, http.MethodGet); errResp != nil {
		errResp.Write(w)
		return
	}

	filter, err := ParseFilter(r.URL.Query())
	if err != nil {
		UnprocessableEntityError("Invalid filter: " + err.Error()).Write(w)
		return
	}

	items, err := s.store.ListTransactions(r.Context(), filter)
	if err != nil {
		slog.ErrorContext(r.Context(), "CSV export list error", "error", err)
		InternalServerError("Error exporting transactions").Write(w)
		return
	}

	filename := "transactions-" + time.Now().Format("2006-01-02") + ".csv"
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)

	if err := export.WriteCSV(w, items); err != nil {
		// Headers are already out, just log.
		slog.ErrorContext(r.Context(), "CSV export write error", "error", err)
	}
}
