package mirror

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

const DefaultInterval = 5 * time.Second

// Poller re-runs Refresh on a fixed interval. Each tick runs in its own
// goroutine; a tick that fires while a pass is still in flight is skipped, so
// two passes never race on the document.
type Poller struct {
	synchronizer *Synchronizer
	boardID      string
	selector     string
	interval     time.Duration
	logger       *slog.Logger
	inFlight     *semaphore.Weighted
	onChange     func(Stats)
	wg           sync.WaitGroup
}

// NewPoller creates a poller for one board/container pair. onChange, when
// non-nil, is called after every pass that mutated the mirror.
func NewPoller(s *Synchronizer, boardID, selector string, interval time.Duration, logger *slog.Logger, onChange func(Stats)) *Poller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{
		synchronizer: s,
		boardID:      boardID,
		selector:     selector,
		interval:     interval,
		logger:       logger.With("board", boardID),
		inFlight:     semaphore.NewWeighted(1),
		onChange:     onChange,
	}
}

// Run refreshes once immediately and then on every tick until ctx is done.
// It waits for the pass in flight, if any, before returning.
func (p *Poller) Run(ctx context.Context) {
	p.logger.Info("starting board poller", "selector", p.selector, "interval", p.interval)

	p.spawn(ctx)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.wg.Wait()
			p.logger.Info("board poller stopped")
			return
		case <-ticker.C:
			p.spawn(ctx)
		}
	}
}

func (p *Poller) spawn(ctx context.Context) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.Tick(ctx)
	}()
}

// Tick runs a single pass unless one is already running. It reports whether
// the pass ran; errors are logged, never returned.
func (p *Poller) Tick(ctx context.Context) bool {
	if !p.inFlight.TryAcquire(1) {
		p.logger.Debug("refresh still in flight, skipping tick")
		return false
	}
	defer p.inFlight.Release(1)

	stats, err := p.synchronizer.Refresh(ctx, p.boardID, p.selector)
	switch {
	case errors.Is(err, ErrContainerMissing):
		p.logger.Error("board container not found", "selector", p.selector)
	case err != nil:
		p.logger.Error("error loading board", "error", err)
	case stats.Changed():
		p.logger.Info("board updated", "stats", stats)
		if p.onChange != nil {
			p.onChange(stats)
		}
	default:
		p.logger.Debug("board unchanged")
	}
	return true
}
