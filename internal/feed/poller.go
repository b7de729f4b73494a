package feed

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jpalmerr/rankboard/internal/metrics"
	"github.com/jpalmerr/rankboard/internal/reconcile"
)

// PollerConfig describes the snapshot source a [Poller] fetches.
type PollerConfig struct {
	// Name identifies the source in logs and metrics.
	Name string

	// URL is the snapshot document location.
	URL string

	// Method is the HTTP method. Empty defaults to GET.
	Method string

	// Headers are sent with every request.
	Headers map[string]string

	// Timeout bounds each request.
	Timeout time.Duration

	// Interval is the time between fetches.
	Interval time.Duration

	// Decoder parses the body. Nil means [DecodeArray].
	Decoder Decoder
}

// Poller fetches snapshot batches from an HTTP source at a fixed interval.
//
// The first fetch happens immediately on Start. Failed fetches, non-2xx
// responses and decode errors are logged and skipped; the board keeps its
// previous state until the next good snapshot arrives. Start and Stop are
// safe for concurrent use.
type Poller struct {
	cfg     PollerConfig
	client  *Client
	batches chan Batch
	logger  *slog.Logger
	metrics *metrics.Metrics

	mu        sync.Mutex
	started   bool
	stopped   bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewPoller creates a [Poller]. A nil logger means slog.Default().
func NewPoller(cfg PollerConfig, logger *slog.Logger, m *metrics.Metrics) *Poller {
	if cfg.Decoder == nil {
		cfg.Decoder = DecodeArray
	}
	if cfg.Name == "" {
		cfg.Name = "poller"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{
		cfg:     cfg,
		client:  NewClient(),
		batches: make(chan Batch, 1),
		logger:  logger,
		metrics: m,
	}
}

// Batches returns the channel of fetched snapshots. It is closed when the
// poller stops.
func (p *Poller) Batches() <-chan Batch {
	return p.batches
}

// Start begins polling in a background goroutine. Subsequent calls, or a
// call after Stop, are no-ops.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started || p.stopped {
		p.mu.Unlock()
		return
	}
	p.started = true
	if ctx == nil {
		ctx = context.Background()
	}
	pollCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.wg.Add(1)
	p.mu.Unlock()

	go func() {
		defer p.wg.Done()
		defer p.closeOnce.Do(func() { close(p.batches) })

		p.poll(pollCtx)

		ticker := time.NewTicker(p.cfg.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-pollCtx.Done():
				return
			case <-ticker.C:
				p.poll(pollCtx)
			}
		}
	}()
}

// Stop halts polling, waits for the loop to exit and closes the batch
// channel. Idempotent, and safe before Start.
func (p *Poller) Stop() {
	p.mu.Lock()
	if !p.stopped {
		p.stopped = true
		if p.cancel != nil {
			p.cancel()
		}
	}
	p.mu.Unlock()

	p.wg.Wait()
	p.client.Close()
	p.closeOnce.Do(func() { close(p.batches) })
}

// poll fetches and decodes one snapshot, forwarding it on success.
func (p *Poller) poll(ctx context.Context) {
	records, err := p.fetch(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		p.metrics.ObserveFeedError(p.cfg.Name)
		p.logger.Warn("snapshot fetch failed",
			"feed", p.cfg.Name,
			"url", p.cfg.URL,
			"error", err,
		)
		return
	}

	select {
	case p.batches <- Batch{Source: p.cfg.Name, Records: records, At: time.Now()}:
	case <-ctx.Done():
	}
}

func (p *Poller) fetch(ctx context.Context) ([]reconcile.Record, error) {
	resp := p.client.Fetch(ctx, p.cfg.Method, p.cfg.URL, p.cfg.Headers, p.cfg.Timeout)
	if resp.Error != nil {
		return nil, resp.Error
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return p.safeDecode(resp.Body)
}

// safeDecode calls the decoder with panic recovery. A panic is logged with
// its stack under a correlation id, which is also carried by the returned
// error.
func (p *Poller) safeDecode(body []byte) (records []reconcile.Record, err error) {
	defer func() {
		if r := recover(); r != nil {
			correlationID := uuid.NewString()
			p.logger.Error("decoder panic",
				"correlation_id", correlationID,
				"panic", fmt.Sprintf("%v", r),
				"stack", string(debug.Stack()),
			)
			records = nil
			err = fmt.Errorf("decoder panic (correlation_id: %s)", correlationID)
		}
	}()
	return p.cfg.Decoder(body)
}
