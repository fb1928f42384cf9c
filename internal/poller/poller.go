// Package poller refreshes services and run states on a cron schedule.
package poller

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/robfig/cron"
)

// DefaultSchedule refreshes every 30 seconds.
const DefaultSchedule = "@every 30s"

// Refresher is the part of the console the poller drives.
type Refresher interface {
	UpdateAllServices(ctx context.Context)
	UpdateAllRunsState(ctx context.Context)
}

// AfterTick runs once per completed tick, e.g. to persist a snapshot.
type AfterTick func(ctx context.Context) error

// Poller runs a refresh tick whenever its schedule fires.
type Poller struct {
	refresher Refresher
	schedule  cron.Schedule
	after     AfterTick
	logger    *slog.Logger
	now       func() time.Time
	stopCh    chan struct{}
	doneCh    chan struct{}
}

// Option configures a Poller.
type Option func(*Poller)

// WithAfterTick registers a hook that runs after each tick.
func WithAfterTick(fn AfterTick) Option {
	return func(p *Poller) { p.after = fn }
}

// WithSchedule replaces the parsed schedule.
func WithSchedule(s cron.Schedule) Option {
	return func(p *Poller) { p.schedule = s }
}

// ParseSchedule accepts a five-field cron expression or a descriptor such
// as "@every 1m" or "@hourly".
func ParseSchedule(expr string) (cron.Schedule, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, fmt.Errorf("empty poll schedule")
	}
	parser := cron.NewParser(
		cron.Minute |
			cron.Hour |
			cron.Dom |
			cron.Month |
			cron.Dow |
			cron.Descriptor,
	)
	sched, err := parser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("parse poll schedule %q: %w", expr, err)
	}
	return sched, nil
}

// New creates a Poller for the given schedule expression.
func New(r Refresher, expr string, logger *slog.Logger, opts ...Option) (*Poller, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	p := &Poller{
		refresher: r,
		logger:    logger.With("component", "poller"),
		now:       time.Now,
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.schedule == nil {
		sched, err := ParseSchedule(expr)
		if err != nil {
			return nil, err
		}
		p.schedule = sched
	}
	return p, nil
}

// Start runs ticks on schedule. Blocks until ctx is cancelled or Stop is called.
func (p *Poller) Start(ctx context.Context) error {
	p.logger.Info("poller started", "next", p.schedule.Next(p.now()))
	defer close(p.doneCh)

	for {
		timer := time.NewTimer(time.Until(p.schedule.Next(p.now())))
		select {
		case <-ctx.Done():
			timer.Stop()
			p.logger.Info("poller stopping (context cancelled)")
			return ctx.Err()
		case <-p.stopCh:
			timer.Stop()
			p.logger.Info("poller stopping (stop called)")
			return nil
		case <-timer.C:
			if err := p.Tick(ctx); err != nil {
				p.logger.Error("tick error", "error", err)
			}
		}
	}
}

// Stop ends Start and waits for the current tick to finish.
func (p *Poller) Stop() error {
	close(p.stopCh)
	<-p.doneCh
	return nil
}

// Tick refreshes every service, then every run state, then runs the
// after-tick hook. Refresh failures degrade entity state and are not
// returned; only the hook can fail a tick.
func (p *Poller) Tick(ctx context.Context) error {
	start := p.now()
	p.refresher.UpdateAllServices(ctx)
	p.refresher.UpdateAllRunsState(ctx)
	p.logger.Debug("tick complete", "duration", time.Since(start))

	if p.after != nil {
		if err := p.after(ctx); err != nil {
			return fmt.Errorf("after tick: %w", err)
		}
	}
	return nil
}
