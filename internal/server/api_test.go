package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/jpalmerr/rankboard/internal/feed"
	"github.com/jpalmerr/rankboard/internal/format"
	"github.com/jpalmerr/rankboard/internal/metrics"
	"github.com/jpalmerr/rankboard/internal/reconcile"
)

// fakeCommander records commands and answers with err.
type fakeCommander struct {
	mu      sync.Mutex
	added   []reconcile.Record
	removed []string
	set     map[string]float64
	err     error
}

func (f *fakeCommander) Add(_ context.Context, rec reconcile.Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.added = append(f.added, rec)
	return nil
}

func (f *fakeCommander) Remove(_ context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.removed = append(f.removed, name)
	return nil
}

func (f *fakeCommander) Set(_ context.Context, name string, value float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	if f.set == nil {
		f.set = make(map[string]float64)
	}
	f.set[name] = value
	return nil
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func entryNames(entries []Entry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Name)
	}
	return out
}

func TestLeaderboard(t *testing.T) {
	b := newTestBoard(t)
	apply(t, b,
		record("Google", 3.2, 16.1),
		record("YouTube", 3.15, 18.8),
		record("Facebook", 2.98, 11.2),
		record("GitHub", 0.42, 0.38),
	)
	srv := NewServer(b, Config{Format: format.Billions, Logger: testLogger()})

	rec := do(t, srv.Handler(), http.MethodGet, "/api/leaderboard", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	var lb Leaderboard
	if err := json.Unmarshal(rec.Body.Bytes(), &lb); err != nil {
		t.Fatalf("decode: %v", err)
	}

	if lb.Series != "access" || lb.Seq != 1 {
		t.Errorf("series/seq = %q/%d, want access/1", lb.Series, lb.Seq)
	}
	if diff := cmp.Diff([]string{"Google", "YouTube", "Facebook", "GitHub"}, entryNames(lb.Entries)); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
	wantBadges := []string{"gold", "silver", "bronze", ""}
	for i, e := range lb.Entries {
		if e.Rank != i+1 || e.Badge != wantBadges[i] {
			t.Errorf("entry %d rank/badge = %d/%q, want %d/%q", i, e.Rank, e.Badge, i+1, wantBadges[i])
		}
	}
	if lb.Top == nil || lb.Top.Display != "3.20 B" {
		t.Errorf("Top = %+v, want display 3.20 B", lb.Top)
	}
	if lb.Entries[3].Display != "420.00 M" {
		t.Errorf("GitHub display = %q, want 420.00 M", lb.Entries[3].Display)
	}
	if lb.History != nil {
		t.Error("REST leaderboard should not carry history")
	}
}

func TestLeaderboard_SeriesAndLimit(t *testing.T) {
	b := newTestBoard(t)
	apply(t, b,
		record("Google", 3.2, 16.1),
		record("YouTube", 3.15, 18.8),
		record("Facebook", 2.98, 11.2),
	)
	srv := NewServer(b, Config{TopN: 5, Logger: testLogger()})

	rec := do(t, srv.Handler(), http.MethodGet, "/api/leaderboard?series=search&limit=2", "")
	var lb Leaderboard
	if err := json.Unmarshal(rec.Body.Bytes(), &lb); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if diff := cmp.Diff([]string{"YouTube", "Google"}, entryNames(lb.Entries)); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
	if lb.Series != "search" {
		t.Errorf("Series = %q, want search", lb.Series)
	}
}

func TestLeaderboard_BadRequests(t *testing.T) {
	srv := NewServer(newTestBoard(t), Config{Logger: testLogger()})

	for _, target := range []string{
		"/api/leaderboard?series=bogus",
		"/api/leaderboard?limit=-1",
		"/api/leaderboard?limit=abc",
	} {
		if rec := do(t, srv.Handler(), http.MethodGet, target, ""); rec.Code != http.StatusBadRequest {
			t.Errorf("GET %s status = %d, want 400", target, rec.Code)
		}
	}
}

func TestLeaderboard_Empty(t *testing.T) {
	srv := NewServer(newTestBoard(t), Config{Logger: testLogger()})

	rec := do(t, srv.Handler(), http.MethodGet, "/api/leaderboard", "")
	var lb Leaderboard
	if err := json.Unmarshal(rec.Body.Bytes(), &lb); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if lb.Top != nil || len(lb.Entries) != 0 {
		t.Errorf("empty board leaderboard = %+v, want no top and no entries", lb)
	}
}

func TestEntities(t *testing.T) {
	b := newTestBoard(t)
	apply(t, b, record("Google", 3.2, 16.1), record("GitHub", 0.42, 0.38))
	srv := NewServer(b, Config{Logger: testLogger()})

	rec := do(t, srv.Handler(), http.MethodGet, "/api/entities", "")
	var records []reconcile.Record
	if err := json.Unmarshal(rec.Body.Bytes(), &records); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if diff := cmp.Diff([]string{"Google", "GitHub"}, reconcile.Names(records)); diff != "" {
		t.Errorf("names mismatch (-want +got):\n%s", diff)
	}

	rec = do(t, srv.Handler(), http.MethodGet, "/api/entities/GitHub", "")
	var one reconcile.Record
	if err := json.Unmarshal(rec.Body.Bytes(), &one); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if diff := cmp.Diff([]float64{0.38}, one.Series["search"]); diff != "" {
		t.Errorf("GitHub search mismatch (-want +got):\n%s", diff)
	}

	if rec := do(t, srv.Handler(), http.MethodGet, "/api/entities/Nope", ""); rec.Code != http.StatusNotFound {
		t.Errorf("unknown entity status = %d, want 404", rec.Code)
	}
}

func TestSnapshot(t *testing.T) {
	b := newTestBoard(t)
	srv := NewServer(b, Config{Logger: testLogger()})

	body := `[{"name": "Google", "access": [3.2, 3.3], "labels": ["", "Now"]}, {"name": "Reddit", "access": [0.38, 0.39]}]`
	rec := do(t, srv.Handler(), http.MethodPost, "/api/snapshot", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	if b.Len() != 2 {
		t.Errorf("board Len() = %d, want 2", b.Len())
	}

	// malformed batch is rejected whole
	bad := `[{"name": "Bing", "access": [1]}, {"name": "Broken", "access": [1, 2], "search": [1]}]`
	rec = do(t, srv.Handler(), http.MethodPost, "/api/snapshot", bad)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("malformed status = %d, want 400", rec.Code)
	}
	if _, ok := b.Entity("Bing"); ok {
		t.Error("rejected snapshot inserted Bing")
	}

	for _, body := range []string{`{"name": "x"}`, `null`, `nope`} {
		if rec := do(t, srv.Handler(), http.MethodPost, "/api/snapshot", body); rec.Code != http.StatusBadRequest {
			t.Errorf("POST %s status = %d, want 400", body, rec.Code)
		}
	}
}

func TestCommands_NotSupported(t *testing.T) {
	srv := NewServer(newTestBoard(t), Config{Logger: testLogger()})
	h := srv.Handler()

	tests := []struct{ method, target, body string }{
		{http.MethodPost, "/api/entities", `{"name": "Bing", "access": [1]}`},
		{http.MethodPut, "/api/entities/Bing", `{"value": 1}`},
		{http.MethodDelete, "/api/entities/Bing", ""},
	}
	for _, tt := range tests {
		if rec := do(t, h, tt.method, tt.target, tt.body); rec.Code != http.StatusNotImplemented {
			t.Errorf("%s %s status = %d, want 501", tt.method, tt.target, rec.Code)
		}
	}
}

func TestCommands_Forwarded(t *testing.T) {
	fc := &fakeCommander{}
	srv := NewServer(newTestBoard(t), Config{Commander: fc, Logger: testLogger()})
	h := srv.Handler()

	if rec := do(t, h, http.MethodPost, "/api/entities", `{"name": "Bing", "logo": "b.png", "access": [0.9]}`); rec.Code != http.StatusCreated {
		t.Errorf("add status = %d, want 201", rec.Code)
	}
	if rec := do(t, h, http.MethodPut, "/api/entities/Bing", `{"value": 1.25}`); rec.Code != http.StatusNoContent {
		t.Errorf("set status = %d, want 204", rec.Code)
	}
	if rec := do(t, h, http.MethodPut, "/api/entities/Bing", `{}`); rec.Code != http.StatusBadRequest {
		t.Errorf("set without value status = %d, want 400", rec.Code)
	}
	if rec := do(t, h, http.MethodDelete, "/api/entities/Bing", ""); rec.Code != http.StatusNoContent {
		t.Errorf("remove status = %d, want 204", rec.Code)
	}

	if len(fc.added) != 1 || fc.added[0].Name != "Bing" || fc.added[0].Logo != "b.png" {
		t.Errorf("added = %+v, want Bing with logo", fc.added)
	}
	if fc.set["Bing"] != 1.25 {
		t.Errorf("set[Bing] = %v, want 1.25", fc.set["Bing"])
	}
	if diff := cmp.Diff([]string{"Bing"}, fc.removed); diff != "" {
		t.Errorf("removed mismatch (-want +got):\n%s", diff)
	}
}

func TestCommands_ErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "duplicate", err: feed.ErrDuplicate, want: http.StatusConflict},
		{name: "not found", err: feed.ErrNotFound, want: http.StatusNotFound},
		{name: "invalid", err: feed.ErrInvalidValue, want: http.StatusBadRequest},
		{name: "missing name", err: reconcile.ErrMissingName, want: http.StatusBadRequest},
		{name: "other", err: context.DeadlineExceeded, want: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := NewServer(newTestBoard(t), Config{Commander: &fakeCommander{err: tt.err}, Logger: testLogger()})
			rec := do(t, srv.Handler(), http.MethodDelete, "/api/entities/x", "")
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestMetricsRoute(t *testing.T) {
	m := metrics.New()
	b := newTestBoard(t)
	srv := NewServer(b, Config{Metrics: m, Logger: testLogger()})

	rec := do(t, srv.Handler(), http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "rankboard_") {
		t.Errorf("metrics body has no rankboard series:\n%s", rec.Body.String())
	}

	// without metrics the route is absent
	srv = NewServer(b, Config{Logger: testLogger()})
	if rec := do(t, srv.Handler(), http.MethodGet, "/metrics", ""); rec.Code != http.StatusNotFound {
		t.Errorf("status without metrics = %d, want 404", rec.Code)
	}
}
