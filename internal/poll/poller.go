package poll

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Fetch loads one refresh of server state (session metadata, roster,
// attendance snapshot) and feeds it to whoever owns the view. The silent flag
// is false only on the first run and on explicit user refreshes, so the UI
// shows a loading state once instead of flickering on every tick.
type Fetch func(ctx context.Context, silent bool) error

// Config tunes a Poller.
type Config struct {
	// Interval between background refreshes. The live attendance view uses
	// 3s, the code display 2s and the calendar 10s.
	Interval time.Duration
	Logger   *zap.Logger
}

// Poller runs a fetch on a fixed interval until stopped. It exists so a view
// can never leak its timer: the poller is bound to the view's lifetime and
// Stop is the single, idempotent release point. A fetch error skips the tick;
// the next tick retries at the same fixed interval, with no backoff.
type Poller struct {
	interval time.Duration
	logger   *zap.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	started bool
}

// New builds a stopped poller.
func New(cfg Config) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = 3 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Poller{interval: cfg.Interval, logger: cfg.Logger}
}

// Start runs the first fetch synchronously (loud) and then polls in the
// background until Stop is called or the context is cancelled. Calling Start
// on a running poller is a no-op.
func (p *Poller) Start(ctx context.Context, fetch Fetch) error {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return nil
	}
	ctx, p.cancel = context.WithCancel(ctx)
	p.done = make(chan struct{})
	p.started = true
	done := p.done
	p.mu.Unlock()

	if err := fetch(ctx, false); err != nil {
		p.logger.Warn("initial fetch failed", zap.Error(err))
	}

	go func() {
		defer close(done)
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := fetch(ctx, true); err != nil {
					p.logger.Warn("poll tick failed", zap.Error(err))
				}
			}
		}
	}()
	return nil
}

// Stop cancels the loop and waits for the in-progress tick to finish. Safe to
// call more than once and from any goroutine.
func (p *Poller) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	cancel := p.cancel
	done := p.done
	p.started = false
	p.mu.Unlock()

	cancel()
	<-done
}
