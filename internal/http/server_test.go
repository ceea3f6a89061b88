package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"visitas/internal/remote/memory"
	"visitas/internal/visits"
)

type recordingRequester struct {
	year, month int
	calls       int
	err         error
}

func (r *recordingRequester) PublishSummaryRequest(_ context.Context, year, month int) error {
	r.calls++
	r.year, r.month = year, month
	return r.err
}

func newTestServer(t *testing.T, requester SummaryRequester) (*httptest.Server, *visits.Store) {
	t.Helper()
	store := visits.NewStore(memory.New())
	srv := NewServer(":0", store, requester, time.UTC, nil)
	ts := httptest.NewServer(srv.Handler)
	t.Cleanup(func() {
		ts.Close()
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	})
	return ts, store
}

func doJSON(t *testing.T, method, url string, body any) (*http.Response, []byte) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()
	var out bytes.Buffer
	if _, err := out.ReadFrom(resp.Body); err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, out.Bytes()
}

func createVisit(t *testing.T, ts *httptest.Server, body map[string]any) visitDTO {
	t.Helper()
	resp, raw := doJSON(t, http.MethodPost, ts.URL+"/api/visits", body)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d, body %s", resp.StatusCode, raw)
	}
	var dto visitDTO
	if err := json.Unmarshal(raw, &dto); err != nil {
		t.Fatalf("decode visit: %v", err)
	}
	return dto
}

func TestHealthEndpoints(t *testing.T) {
	ts, _ := newTestServer(t, nil)

	for _, path := range []string{"/healthz", "/readyz"} {
		resp, err := http.Get(ts.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("GET %s status = %d", path, resp.StatusCode)
		}
	}
}

func TestCreateAndGetVisit(t *testing.T) {
	ts, _ := newTestServer(t, nil)

	created := createVisit(t, ts, map[string]any{
		"date":          "2025-09-01",
		"time":          "15:30",
		"location_name": "Vila Serena",
		"companions":    []string{"Ana", "Bruno"},
	})
	if created.ID == "" {
		t.Fatal("created visit has no id")
	}
	if len(created.Companions) != 2 {
		t.Fatalf("companions = %d, want 2", len(created.Companions))
	}

	resp, raw := doJSON(t, http.MethodGet, ts.URL+"/api/visits/"+created.ID, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get status = %d", resp.StatusCode)
	}
	var got visitDTO
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatalf("decode visit: %v", err)
	}
	if got.Location.Name != "Vila Serena" {
		t.Errorf("location = %q, want Vila Serena", got.Location.Name)
	}
	if got.IsFinalized {
		t.Error("new visit is already finalized")
	}
}

func TestCreateVisitRejectsInvalidDate(t *testing.T) {
	ts, _ := newTestServer(t, nil)

	resp, raw := doJSON(t, http.MethodPost, ts.URL+"/api/visits", map[string]any{
		"date": "2025-13-01",
		"time": "15:30",
	})
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, body %s", resp.StatusCode, raw)
	}
}

func TestCreateVisitRejectsUnknownFields(t *testing.T) {
	ts, _ := newTestServer(t, nil)

	resp, _ := doJSON(t, http.MethodPost, ts.URL+"/api/visits", map[string]any{
		"date":     "2025-09-01",
		"surprise": true,
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestListVisitsFiltersByMonth(t *testing.T) {
	ts, _ := newTestServer(t, nil)
	createVisit(t, ts, map[string]any{"date": "2025-09-01", "time": "10:00", "location_name": "A"})
	createVisit(t, ts, map[string]any{"date": "2025-10-01", "time": "10:00", "location_name": "B"})

	resp, raw := doJSON(t, http.MethodGet, ts.URL+"/api/visits?year=2025&month=9", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var out struct {
		Visits []visitDTO `json:"visits"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out.Visits) != 1 || out.Visits[0].Date != "2025-09-01" {
		t.Fatalf("filtered visits = %+v", out.Visits)
	}

	resp, _ = doJSON(t, http.MethodGet, ts.URL+"/api/visits?year=2025&month=13", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("month=13 status = %d, want 400", resp.StatusCode)
	}
}

func TestUpdateVisit(t *testing.T) {
	ts, _ := newTestServer(t, nil)
	created := createVisit(t, ts, map[string]any{
		"date": "2025-09-01", "time": "10:00", "location_name": "Vila Serena",
	})

	resp, raw := doJSON(t, http.MethodPatch, ts.URL+"/api/visits/"+created.ID, map[string]any{
		"observation": "levar documentos",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, body %s", resp.StatusCode, raw)
	}
	var got visitDTO
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Observation != "levar documentos" {
		t.Errorf("observation = %q", got.Observation)
	}
	if got.Date != "2025-09-01" {
		t.Errorf("date changed to %q", got.Date)
	}
}

func TestUpdateVisitNotFound(t *testing.T) {
	ts, _ := newTestServer(t, nil)

	resp, _ := doJSON(t, http.MethodPatch, ts.URL+"/api/visits/missing", map[string]any{
		"observation": "x",
	})
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}

func TestFinalizeVisit(t *testing.T) {
	ts, _ := newTestServer(t, nil)
	created := createVisit(t, ts, map[string]any{
		"date": "2025-09-01", "time": "10:00", "location_name": "Vila Serena",
		"companions": []string{"Ana"},
	})

	resp, raw := doJSON(t, http.MethodPost, ts.URL+"/api/visits/"+created.ID+"/finalize", map[string]any{
		"start_time": "10:05",
		"end_time":   "11:30",
		"companions": []string{"Ana", "Bruno"},
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, body %s", resp.StatusCode, raw)
	}
	var got visitDTO
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !got.IsFinalized {
		t.Error("visit not finalized")
	}
	if got.StartTime != "10:05" || got.EndTime != "11:30" {
		t.Errorf("actuals = %q-%q", got.StartTime, got.EndTime)
	}
	if len(got.Companions) != 2 {
		t.Errorf("companions = %d, want 2", len(got.Companions))
	}
}

func TestFinalizeRejectsEndBeforeStart(t *testing.T) {
	ts, _ := newTestServer(t, nil)
	created := createVisit(t, ts, map[string]any{
		"date": "2025-09-01", "time": "10:00", "location_name": "Vila Serena",
	})

	resp, _ := doJSON(t, http.MethodPost, ts.URL+"/api/visits/"+created.ID+"/finalize", map[string]any{
		"start_time": "11:00",
		"end_time":   "10:00",
	})
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", resp.StatusCode)
	}
}

func TestSaveNotes(t *testing.T) {
	ts, _ := newTestServer(t, nil)
	created := createVisit(t, ts, map[string]any{
		"date": "2025-09-01", "time": "10:00", "location_name": "Vila Serena",
	})

	resp, raw := doJSON(t, http.MethodPut, ts.URL+"/api/visits/"+created.ID+"/notes", map[string]any{
		"observation": "tudo bem",
		"companions": []map[string]any{
			{"name": "Ana", "cost_cents": 1500},
		},
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, body %s", resp.StatusCode, raw)
	}
	var got visitDTO
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Observation != "tudo bem" {
		t.Errorf("observation = %q", got.Observation)
	}
	if len(got.Companions) != 1 || got.Companions[0].CostCents != 1500 {
		t.Errorf("companions = %+v", got.Companions)
	}
}

func TestListDirectories(t *testing.T) {
	ts, _ := newTestServer(t, nil)
	createVisit(t, ts, map[string]any{
		"date": "2025-09-01", "time": "10:00",
		"location_name": "Vila Serena",
		"companions":    []string{"Ana"},
	})

	resp, raw := doJSON(t, http.MethodGet, ts.URL+"/api/locations", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("locations status = %d", resp.StatusCode)
	}
	var locs struct {
		Locations []locationDTO `json:"locations"`
	}
	if err := json.Unmarshal(raw, &locs); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(locs.Locations) != 1 || locs.Locations[0].Name != "Vila Serena" {
		t.Fatalf("locations = %+v", locs.Locations)
	}

	resp, raw = doJSON(t, http.MethodGet, ts.URL+"/api/companions", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("companions status = %d", resp.StatusCode)
	}
	var comps struct {
		Companions []companionDTO `json:"companions"`
	}
	if err := json.Unmarshal(raw, &comps); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(comps.Companions) != 1 || comps.Companions[0].Name != "Ana" {
		t.Fatalf("companions = %+v", comps.Companions)
	}
}

func TestWeekSummary(t *testing.T) {
	ts, _ := newTestServer(t, nil)
	today := time.Now().UTC().Format("2006-01-02")
	createVisit(t, ts, map[string]any{
		"date": today, "time": "10:00", "location_name": "Vila Serena",
		"companions": []string{"Ana"},
	})

	resp, raw := doJSON(t, http.MethodGet, ts.URL+"/api/summaries/week", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var got weekSummaryDTO
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Visits != 1 {
		t.Errorf("visits = %d, want 1", got.Visits)
	}

	resp, _ = doJSON(t, http.MethodGet, ts.URL+"/api/summaries/week?offset=abc", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad offset status = %d, want 400", resp.StatusCode)
	}
}

func TestMonthSummaryReflectsMutations(t *testing.T) {
	ts, _ := newTestServer(t, nil)
	today := time.Now().UTC()
	createVisit(t, ts, map[string]any{
		"date": today.Format("2006-01-02"), "time": "10:00", "location_name": "Vila Serena",
	})

	resp, raw := doJSON(t, http.MethodGet, ts.URL+"/api/summaries/month", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var first monthSummaryDTO
	if err := json.Unmarshal(raw, &first); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if first.Visits != 1 {
		t.Fatalf("visits = %d, want 1", first.Visits)
	}

	// A second create must purge the cached summary.
	createVisit(t, ts, map[string]any{
		"date": today.Format("2006-01-02"), "time": "14:00", "location_name": "Recanto",
	})
	_, raw = doJSON(t, http.MethodGet, ts.URL+"/api/summaries/month", nil)
	var second monthSummaryDTO
	if err := json.Unmarshal(raw, &second); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if second.Visits != 2 {
		t.Errorf("visits after second create = %d, want 2", second.Visits)
	}
}

func TestMonthlyReportQueued(t *testing.T) {
	requester := &recordingRequester{}
	ts, _ := newTestServer(t, requester)

	resp, _ := doJSON(t, http.MethodPost, ts.URL+"/api/reports/monthly", map[string]any{
		"year": 2025, "month": 9,
	})
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", resp.StatusCode)
	}
	if requester.calls != 1 || requester.year != 2025 || requester.month != 9 {
		t.Fatalf("requester = %+v", requester)
	}
}

func TestMonthlyReportWithoutQueue(t *testing.T) {
	ts, _ := newTestServer(t, nil)

	resp, _ := doJSON(t, http.MethodPost, ts.URL+"/api/reports/monthly", map[string]any{})
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", resp.StatusCode)
	}
}

func TestMonthlyReportValidation(t *testing.T) {
	requester := &recordingRequester{}
	ts, _ := newTestServer(t, requester)

	cases := []map[string]any{
		{"year": 2025},
		{"month": 9},
		{"year": 2025, "month": 13},
	}
	for i, body := range cases {
		resp, _ := doJSON(t, http.MethodPost, ts.URL+"/api/reports/monthly", body)
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("case %d status = %d, want 400", i, resp.StatusCode)
		}
	}
	if requester.calls != 0 {
		t.Errorf("requester called %d times for invalid input", requester.calls)
	}

	requester.err = errors.New("broker down")
	resp, _ := doJSON(t, http.MethodPost, ts.URL+"/api/reports/monthly", map[string]any{})
	if resp.StatusCode != http.StatusBadGateway {
		t.Errorf("broker failure status = %d, want 502", resp.StatusCode)
	}
}

func TestSecurityHeaders(t *testing.T) {
	ts, _ := newTestServer(t, nil)

	resp, _ := doJSON(t, http.MethodGet, ts.URL+"/api/visits", nil)
	if got := resp.Header.Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q", got)
	}
	if got := resp.Header.Get("X-Frame-Options"); got != "DENY" {
		t.Errorf("X-Frame-Options = %q", got)
	}
}

func TestRateLimiterAllowsBursts(t *testing.T) {
	rl := newRateLimiter()
	defer rl.stop()

	for i := 0; i < 60; i++ {
		if !rl.allow("10.0.0.1") {
			t.Fatalf("request %d denied before limit", i+1)
		}
	}
	if rl.allow("10.0.0.1") {
		t.Error("request 61 allowed past the limit")
	}
	if !rl.allow("10.0.0.2") {
		t.Error("different client denied")
	}
}

func TestSanitize(t *testing.T) {
	cases := []struct{ in, want string }{
		{"  hello  ", "hello"},
		{"line1\nline2", "line1\nline2"},
		{"bad\x00byte", "badbyte"},
		{fmt.Sprintf("tab%cok", 9), "tab\tok"},
	}
	for _, tc := range cases {
		if got := sanitize(tc.in); got != tc.want {
			t.Errorf("sanitize(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
