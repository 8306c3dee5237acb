package http

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"budget/internal/core"
)

// parseYearMonth extracts year and month from query parameters.
// Returns current year/month as defaults if not provided or invalid.
func parseYearMonth(r *http.Request) (year, month int) {
	now := time.Now()
	year = now.Year()
	month = int(now.Month())

	if v := strings.TrimSpace(r.URL.Query().Get("year")); v != "" {
		if y, err := strconv.Atoi(v); err == nil {
			year = y
		}
	}
	if v := strings.TrimSpace(r.URL.Query().Get("month")); v != "" {
		if m, err := strconv.Atoi(v); err == nil {
			month = m
		}
	}
	if month < 1 || month > 12 {
		month = int(now.Month())
	}

	return year, month
}

// formatAmount formats cents as a currency string (e.g. "€12.34").
func formatAmount(cents int64) string {
	neg := cents < 0
	if neg {
		cents = -cents
	}
	s := strconv.FormatInt(cents/100, 10) + "." + fmt.Sprintf("%02d", cents%100)
	if neg {
		return "-€" + s
	}
	return "€" + s
}

// sanitizeInput removes potentially dangerous characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	result := strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
	return result
}

// generateRequestID creates a unique request ID for tracing.
func generateRequestID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(bytes)
}

// filterCacheKey encodes a filter into a stable cache key.
func filterCacheKey(f core.Filter) string {
	var b strings.Builder
	if !f.From.IsEmpty() {
		b.WriteString("f=" + f.From.String() + ";")
	}
	if !f.To.IsEmpty() {
		b.WriteString("t=" + f.To.String() + ";")
	}
	if f.Category != "" {
		b.WriteString("c=" + f.Category + ";")
	}
	if f.Type != "" {
		b.WriteString("y=" + string(f.Type) + ";")
	}
	if f.GoalID != 0 {
		b.WriteString("g=" + strconv.FormatInt(f.GoalID, 10) + ";")
	}
	if f.Query != "" {
		b.WriteString("q=" + f.Query + ";")
	}
	return b.String()
}
