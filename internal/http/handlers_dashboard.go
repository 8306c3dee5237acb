package http

import (
	"log/slog"
	"net/http"
	"strings"

	"budget/internal/core"
)

// handleMonthSummary renders the income/expense/balance partial.
func (s *Server) handleMonthSummary(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	year, month := parseYearMonth(r)

	summary, err := s.getMonthSummary(r.Context(), year, month)
	if err != nil {
		slog.ErrorContext(r.Context(), "Month summary error", "error", err, "year", year, "month", month)
		_, _ = w.Write([]byte(`<section id="month-summary" class="month-summary"><div class="placeholder">Error loading summary</div></section>`))
		return
	}

	data := struct {
		Year     int
		Month    int
		Income   string
		Expense  string
		Balance  string
		Negative bool
	}{
		Year:     summary.Year,
		Month:    summary.Month,
		Income:   formatAmount(summary.Income.Cents),
		Expense:  formatAmount(summary.Expense.Cents),
		Balance:  formatAmount(summary.Balance.Cents),
		Negative: summary.Balance.Cents < 0,
	}

	if s.templates == nil {
		_, _ = w.Write([]byte(`<section id="month-summary" class="month-summary"><div class="placeholder">Balance: ` + data.Balance + `</div></section>`))
		return
	}
	if err := s.templates.ExecuteTemplate(w, "month_summary.html", data); err != nil {
		slog.ErrorContext(r.Context(), "Template execution error", "error", err, "template", "month_summary.html", "year", year, "month", month)
		_, _ = w.Write([]byte(`<section id="month-summary" class="month-summary"><div class="placeholder">Error rendering summary</div></section>`))
	}
}

// handleAggregate renders grouped totals for the requested dimension.
func (s *Server) handleAggregate(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	groupBy := core.GroupBy(strings.TrimSpace(r.URL.Query().Get("by")))
	if groupBy == "" {
		groupBy = core.GroupByCategory
	}
	if err := groupBy.Validate(); err != nil {
		UnprocessableEntityError("Invalid group-by, expected category, month, or type").Write(w)
		return
	}

	filter, err := ParseFilter(r.URL.Query())
	if err != nil {
		UnprocessableEntityError("Invalid filter: " + err.Error()).Write(w)
		return
	}

	totals, err := s.getAggregate(r.Context(), filter, groupBy)
	if err != nil {
		slog.ErrorContext(r.Context(), "Aggregate error", "error", err, "group_by", string(groupBy))
		_, _ = w.Write([]byte(`<section id="aggregate" class="aggregate"><div class="placeholder">Error loading totals</div></section>`))
		return
	}

	// Scale bars against the largest group.
	var maxCents int64
	for _, g := range totals {
		if g.Total.Cents > maxCents {
			maxCents = g.Total.Cents
		}
	}

	type row struct {
		Key    string
		Amount string
		Width  int
	}
	data := struct {
		GroupBy string
		Rows    []row
	}{GroupBy: string(groupBy)}
	for _, g := range totals {
		width := 0
		if maxCents > 0 && g.Total.Cents > 0 {
			width = int((g.Total.Cents*100 + maxCents/2) / maxCents)
			if width > 0 && width < 2 {
				width = 2
			}
			if width > 100 {
				width = 100
			}
		}
		data.Rows = append(data.Rows, row{Key: g.Key, Amount: formatAmount(g.Total.Cents), Width: width})
	}

	if s.templates == nil {
		_, _ = w.Write([]byte(`<section id="aggregate" class="aggregate"><div class="placeholder">No template</div></section>`))
		return
	}
	if err := s.templates.ExecuteTemplate(w, "aggregate.html", data); err != nil {
		slog.ErrorContext(r.Context(), "Template execution error", "error", err, "template", "aggregate.html")
		_, _ = w.Write([]byte(`<section id="aggregate" class="aggregate"><div class="placeholder">Error rendering totals</div></section>`))
	}
}
