package feed

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jpalmerr/rankboard/internal/metrics"
	"github.com/jpalmerr/rankboard/internal/reconcile"
)

// testLogger returns a logger that discards all output for clean test output.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func snapshotServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestPoller_StopBeforeStart(t *testing.T) {
	p := NewPoller(PollerConfig{URL: "http://example.com", Timeout: time.Second, Interval: time.Minute}, testLogger(), nil)

	// must not panic, and the channel must be closed
	p.Stop()
	if _, ok := <-p.Batches(); ok {
		t.Error("Batches() should be closed after Stop")
	}
}

func TestPoller_StopTwice(t *testing.T) {
	server := snapshotServer(t, `[]`)
	p := NewPoller(PollerConfig{URL: server.URL, Timeout: time.Second, Interval: time.Minute}, testLogger(), nil)
	p.Start(context.Background())

	go func() {
		for range p.Batches() {
		}
	}()

	p.Stop()
	p.Stop()
}

func TestPoller_ImmediatePollOnStart(t *testing.T) {
	server := snapshotServer(t, `[{"name": "Google", "access": [3.2]}, {"name": "Reddit", "access": [0.38]}]`)
	p := NewPoller(PollerConfig{Name: "source", URL: server.URL, Timeout: time.Second, Interval: time.Hour}, testLogger(), nil)
	p.Start(context.Background())
	defer p.Stop()

	select {
	case batch := <-p.Batches():
		if batch.Source != "source" {
			t.Errorf("Source = %q, want %q", batch.Source, "source")
		}
		if got := reconcile.Names(batch.Records); len(got) != 2 || got[0] != "Google" {
			t.Errorf("names = %v, want [Google Reddit]", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no batch within 2s of Start")
	}
}

func TestPoller_PollsAtInterval(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(`[]`))
	}))
	defer server.Close()

	p := NewPoller(PollerConfig{URL: server.URL, Timeout: time.Second, Interval: 50 * time.Millisecond}, testLogger(), nil)
	p.Start(context.Background())

	deadline := time.After(2 * time.Second)
	for received := 0; received < 3; {
		select {
		case <-p.Batches():
			received++
		case <-deadline:
			t.Fatalf("received %d batches, want 3", received)
		}
	}
	p.Stop()

	if hits.Load() < 3 {
		t.Errorf("server hits = %d, want >= 3", hits.Load())
	}
}

func TestPoller_SkipsBadResponses(t *testing.T) {
	var call atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch call.Add(1) {
		case 1:
			w.WriteHeader(http.StatusInternalServerError)
		case 2:
			_, _ = w.Write([]byte(`not json`))
		default:
			_, _ = w.Write([]byte(`[{"name": "ok", "access": [1]}]`))
		}
	}))
	defer server.Close()

	m := metrics.New()
	p := NewPoller(PollerConfig{Name: "flaky", URL: server.URL, Timeout: time.Second, Interval: 20 * time.Millisecond}, testLogger(), m)
	p.Start(context.Background())
	defer p.Stop()

	select {
	case batch := <-p.Batches():
		if len(batch.Records) != 1 || batch.Records[0].Name != "ok" {
			t.Errorf("first delivered batch = %+v, want the good snapshot", batch.Records)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no good batch delivered")
	}

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(rec.Body.String(), `rankboard_feed_errors_total{feed="flaky"} 2`) {
		t.Errorf("expected 2 feed errors recorded, got:\n%s", rec.Body.String())
	}
}

// TestPoller_DecoderPanicRecovery verifies that a panicking decoder is
// recovered, the batch skipped, and the poller keeps running.
func TestPoller_DecoderPanicRecovery(t *testing.T) {
	server := snapshotServer(t, `[]`)

	var calls atomic.Int32
	decoder := func(body []byte) ([]reconcile.Record, error) {
		if calls.Add(1) == 1 {
			panic("boom")
		}
		return DecodeArray(body)
	}

	p := NewPoller(PollerConfig{URL: server.URL, Timeout: time.Second, Interval: 20 * time.Millisecond, Decoder: decoder}, testLogger(), nil)
	p.Start(context.Background())
	defer p.Stop()

	select {
	case <-p.Batches():
	case <-time.After(2 * time.Second):
		t.Fatal("poller did not recover from decoder panic")
	}
	if calls.Load() < 2 {
		t.Errorf("decoder calls = %d, want >= 2", calls.Load())
	}
}

func TestPoller_SafeDecodeReturnsCorrelationID(t *testing.T) {
	p := NewPoller(PollerConfig{Decoder: func([]byte) ([]reconcile.Record, error) {
		var m map[string]int
		m["x"] = 1 // nil map write
		return nil, nil
	}}, testLogger(), nil)

	records, err := p.safeDecode([]byte(`[]`))
	if err == nil {
		t.Fatal("safeDecode() expected error after panic, got nil")
	}
	if records != nil {
		t.Errorf("records = %v, want nil", records)
	}
	if !strings.Contains(err.Error(), "correlation_id") {
		t.Errorf("error %q does not carry a correlation id", err)
	}
}

func TestPoller_ContextCancellation(t *testing.T) {
	server := snapshotServer(t, `[]`)
	p := NewPoller(PollerConfig{URL: server.URL, Timeout: time.Second, Interval: 10 * time.Millisecond}, testLogger(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	p.Start(ctx)
	cancel()

	done := make(chan struct{})
	go func() {
		for range p.Batches() {
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Batches() not closed after context cancellation")
	}
	p.Stop()
}

func TestPoller_ConcurrentStartStop(t *testing.T) {
	server := snapshotServer(t, `[]`)
	p := NewPoller(PollerConfig{URL: server.URL, Timeout: time.Second, Interval: time.Minute}, testLogger(), nil)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			p.Start(context.Background())
		}()
		go func() {
			defer wg.Done()
			p.Stop()
		}()
	}
	wg.Wait()
	p.Stop()
}
