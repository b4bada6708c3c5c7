// Package poller refreshes balances and history on a fixed interval.
package poller

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// DefaultInterval matches the dashboard refresh cadence.
const DefaultInterval = 30 * time.Second

// RefreshFunc performs one refresh.
type RefreshFunc func(ctx context.Context) error

// Poller runs named refreshes every interval. A refresh still in flight when
// its next tick arrives is skipped.
type Poller struct {
	cron     *cron.Cron
	interval time.Duration
	log      zerolog.Logger
	ctx      context.Context
	cancel   context.CancelFunc

	mu       sync.Mutex
	stopped  bool
	inflight sync.WaitGroup
}

// New creates a poller. A non-positive interval uses DefaultInterval.
func New(interval time.Duration, log zerolog.Logger) *Poller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	log = log.With().Str("component", "poller").Logger()
	ctx, cancel := context.WithCancel(context.Background())
	return &Poller{
		cron: cron.New(cron.WithChain(
			cron.Recover(cron.DiscardLogger),
			cron.SkipIfStillRunning(cron.DiscardLogger),
		)),
		interval: interval,
		log:      log,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Schedule returns the cron expression used for every refresh.
func (p *Poller) Schedule() string {
	return fmt.Sprintf("@every %s", p.interval)
}

// Add registers a refresh.
func (p *Poller) Add(name string, fn RefreshFunc) error {
	_, err := p.cron.AddFunc(p.Schedule(), func() {
		if err := p.RunNow(name, fn); err != nil {
			p.log.Error().Err(err).Str("refresh", name).Msg("Refresh failed")
		}
	})
	if err != nil {
		return fmt.Errorf("schedule %s: %w", name, err)
	}

	p.log.Info().Str("schedule", p.Schedule()).Str("refresh", name).Msg("Refresh registered")
	return nil
}

// RunNow executes a refresh immediately, outside the schedule.
// It is a no-op once Stop has been called.
func (p *Poller) RunNow(name string, fn RefreshFunc) error {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return nil
	}
	p.inflight.Add(1)
	p.mu.Unlock()
	defer p.inflight.Done()

	p.log.Debug().Str("refresh", name).Msg("Running refresh")
	return fn(p.ctx)
}

// Stopped reports whether Stop has been called. Refreshes finishing after
// that point should discard their results.
func (p *Poller) Stopped() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stopped
}

// Start begins ticking.
func (p *Poller) Start() {
	p.cron.Start()
	p.log.Info().Msg("Poller started")
}

// Stop halts the schedule and waits for in-flight refreshes to finish.
// Their context stays live until they return; callers drop the results by
// checking Stopped.
func (p *Poller) Stop() {
	p.mu.Lock()
	p.stopped = true
	p.mu.Unlock()

	<-p.cron.Stop().Done()
	p.inflight.Wait()
	p.cancel()
	p.log.Info().Msg("Poller stopped")
}
