package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"budget/internal/ledger/memory"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	srv := NewServer(":0", memory.New())
	t.Cleanup(func() {
		srv.cacheManager.Stop()
		srv.rateLimiter.stop()
	})
	return srv
}

func postForm(srv *Server, path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, req)
	return rec
}

func createTransaction(t *testing.T, srv *Server, form url.Values) {
	t.Helper()
	rec := postForm(srv, "/transactions", form)
	if rec.Code != http.StatusOK {
		t.Fatalf("create transaction: status %d, body %s", rec.Code, rec.Body.String())
	}
}

func TestCreateTransaction(t *testing.T) {
	srv := newTestServer(t)

	rec := postForm(srv, "/transactions", url.Values{
		"date":     {"2024-05-01"},
		"type":     {"expense"},
		"category": {"food"},
		"amount":   {"12.34"},
		"note":     {"groceries"},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	trigger := rec.Header().Get("HX-Trigger")
	if trigger == "" {
		t.Fatal("missing HX-Trigger header")
	}
	var triggers map[string]json.RawMessage
	if err := json.Unmarshal([]byte(trigger), &triggers); err != nil {
		t.Fatalf("HX-Trigger is not JSON: %v", err)
	}
	for _, name := range []string{"transaction:created", "form:reset", "show-notification"} {
		if _, ok := triggers[name]; !ok {
			t.Errorf("HX-Trigger missing %q: %s", name, trigger)
		}
	}
}

func TestCreateTransactionRejectsInvalid(t *testing.T) {
	srv := newTestServer(t)

	tests := []struct {
		name string
		form url.Values
	}{
		{"bad date", url.Values{"date": {"01/05/2024"}, "type": {"expense"}, "category": {"food"}, "amount": {"10"}}},
		{"negative amount", url.Values{"date": {"2024-05-01"}, "type": {"expense"}, "category": {"food"}, "amount": {"-10"}}},
		{"unknown type", url.Values{"date": {"2024-05-01"}, "type": {"transfer"}, "category": {"food"}, "amount": {"10"}}},
		{"empty category", url.Values{"date": {"2024-05-01"}, "type": {"expense"}, "category": {""}, "amount": {"10"}}},
		{"unknown goal", url.Values{"date": {"2024-05-01"}, "type": {"income"}, "category": {"savings"}, "amount": {"10"}, "goal": {"999"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postForm(srv, "/transactions", tt.form)
			if rec.Code != http.StatusUnprocessableEntity {
				t.Errorf("status = %d, want 422, body %s", rec.Code, rec.Body.String())
			}
		})
	}
}

func TestCreateTransactionMethodNotAllowed(t *testing.T) {
	srv := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/transactions", nil)
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rec.Code)
	}
}

func TestDeleteTransactionTwice(t *testing.T) {
	srv := newTestServer(t)
	createTransaction(t, srv, url.Values{
		"date": {"2024-05-01"}, "type": {"expense"}, "category": {"food"}, "amount": {"10"},
	})

	rec := postForm(srv, "/transactions/delete", url.Values{"id": {"1"}})
	if rec.Code != http.StatusOK {
		t.Fatalf("first delete: status %d, body %s", rec.Code, rec.Body.String())
	}

	rec = postForm(srv, "/transactions/delete", url.Values{"id": {"1"}})
	if rec.Code != http.StatusNotFound {
		t.Errorf("second delete: status = %d, want 404", rec.Code)
	}
}

func TestDeleteTransactionJSONBody(t *testing.T) {
	srv := newTestServer(t)
	createTransaction(t, srv, url.Values{
		"date": {"2024-05-01"}, "type": {"expense"}, "category": {"food"}, "amount": {"10"},
	})

	req := httptest.NewRequest(http.MethodDelete, "/transactions/delete", strings.NewReader(`{"id": 1}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, body %s", rec.Code, rec.Body.String())
	}
}

func TestHistoryPartial(t *testing.T) {
	srv := newTestServer(t)
	createTransaction(t, srv, url.Values{
		"date": {"2024-05-01"}, "type": {"expense"}, "category": {"food"}, "amount": {"12.34"}, "note": {"groceries"},
	})

	req := httptest.NewRequest(http.MethodGet, "/ui/history", nil)
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "food") || !strings.Contains(body, "12.34") {
		t.Errorf("history missing transaction data: %s", body)
	}

	// Malformed filter is rejected, not ignored.
	req = httptest.NewRequest(http.MethodGet, "/ui/history?from=bogus", nil)
	rec = httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("bad filter: status = %d, want 422", rec.Code)
	}
}

func TestAggregatePartial(t *testing.T) {
	srv := newTestServer(t)
	createTransaction(t, srv, url.Values{
		"date": {"2024-05-01"}, "type": {"expense"}, "category": {"food"}, "amount": {"15"},
	})
	createTransaction(t, srv, url.Values{
		"date": {"2024-05-02"}, "type": {"expense"}, "category": {"rent"}, "amount": {"20"},
	})

	req := httptest.NewRequest(http.MethodGet, "/ui/aggregate?by=category", nil)
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "food") || !strings.Contains(body, "rent") {
		t.Errorf("aggregate missing categories: %s", body)
	}

	req = httptest.NewRequest(http.MethodGet, "/ui/aggregate?by=weekday", nil)
	rec = httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("invalid group-by: status = %d, want 422", rec.Code)
	}
}

func TestGoalFlow(t *testing.T) {
	srv := newTestServer(t)

	rec := postForm(srv, "/goals", url.Values{"name": {"vacation"}, "target": {"500"}})
	if rec.Code != http.StatusOK {
		t.Fatalf("create goal: status %d, body %s", rec.Code, rec.Body.String())
	}

	createTransaction(t, srv, url.Values{
		"date": {"2024-05-01"}, "type": {"income"}, "category": {"savings"}, "amount": {"750"}, "goal": {"1"},
	})

	req := httptest.NewRequest(http.MethodGet, "/ui/goals", nil)
	rec2 := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec2, req)
	if rec2.Code != http.StatusOK {
		t.Fatalf("goals partial: status %d", rec2.Code)
	}
	// Contribution exceeds the target, progress renders capped at 100%.
	if !strings.Contains(rec2.Body.String(), "100%") {
		t.Errorf("goals partial missing capped progress: %s", rec2.Body.String())
	}

	rec = postForm(srv, "/goals/delete", url.Values{"id": {"1"}})
	if rec.Code != http.StatusOK {
		t.Fatalf("delete goal: status %d", rec.Code)
	}
	rec = postForm(srv, "/goals/delete", url.Values{"id": {"1"}})
	if rec.Code != http.StatusNotFound {
		t.Errorf("second goal delete: status = %d, want 404", rec.Code)
	}
}

func TestExportCSV(t *testing.T) {
	srv := newTestServer(t)
	createTransaction(t, srv, url.Values{
		"date": {"2024-05-01"}, "type": {"expense"}, "category": {"food"}, "amount": {"12.34"},
	})

	req := httptest.NewRequest(http.MethodGet, "/export/csv", nil)
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Errorf("Content-Type = %q", ct)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "attachment") {
		t.Errorf("Content-Disposition = %q", cd)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "id,date,type,category,amount,note,goal_id") {
		t.Errorf("missing CSV header: %s", body)
	}
	if !strings.Contains(body, "2024-05-01,expense,food,12.34") {
		t.Errorf("missing CSV row: %s", body)
	}
}

func TestHealthEndpoints(t *testing.T) {
	srv := newTestServer(t)

	for _, path := range []string{"/healthz", "/readyz"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		srv.Handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Errorf("%s: status = %d", path, rec.Code)
		}
		var payload map[string]interface{}
		if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
			t.Errorf("%s: body is not JSON: %v", path, err)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("/metrics: status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "app_uptime_seconds") {
		t.Errorf("/metrics missing counters: %s", rec.Body.String())
	}
}

func TestIndexNotFoundForUnknownPath(t *testing.T) {
	srv := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/nope", nil)
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestRateLimiter(t *testing.T) {
	rl := newRateLimiter()
	defer rl.stop()

	for i := 0; i < 60; i++ {
		if !rl.allow("1.2.3.4") {
			t.Fatalf("request %d unexpectedly limited", i+1)
		}
	}
	if rl.allow("1.2.3.4") {
		t.Error("request 61 should be limited")
	}
	if !rl.allow("5.6.7.8") {
		t.Error("other clients are not affected")
	}
}

func TestSecurityHeaders(t *testing.T) {
	srv := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, req)

	for _, h := range []string{"X-Content-Type-Options", "X-Frame-Options", "Content-Security-Policy"} {
		if rec.Header().Get(h) == "" {
			t.Errorf("missing %s header", h)
		}
	}
}
