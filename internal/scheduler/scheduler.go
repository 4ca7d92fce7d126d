package scheduler

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hamed0406/servermonitor/internal/domain"
	"github.com/hamed0406/servermonitor/internal/probe"
)

const (
	DefaultInterval = 30 * time.Second
	DefaultTimeout  = 5 * time.Second

	// DefaultGrace is how long past its timeout a checker may take to
	// report, e.g. to attach a diagnosis to a failure.
	DefaultGrace = time.Second
)

// Registry is the part of registry.Registry the scheduler needs.
type Registry interface {
	Snapshot() []domain.Target
	MarkChecking(ids []domain.TargetID) int
	ApplyStatus(id domain.TargetID, st domain.Status, at time.Time) bool
	Summary() domain.Summary
}

type Options struct {
	Interval      time.Duration // tick period; <= 0 disables the ticker
	Timeout       time.Duration // per probe
	MaxConcurrent int           // 0 runs every probe of a round at once
	Grace         time.Duration // extra wait for a checker past Timeout
}

type Scheduler struct {
	Logger   *zap.Logger
	Registry Registry
	Checker  probe.Checker
	Options  Options

	running atomic.Bool
	queued  atomic.Bool // a Trigger is pending and its round has not started
	trigger chan struct{}
	now     func() time.Time
}

func New(logger *zap.Logger, reg Registry, checker probe.Checker, opts Options) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Grace <= 0 {
		opts.Grace = DefaultGrace
	}
	if opts.MaxConcurrent < 0 {
		opts.MaxConcurrent = 0
	}
	return &Scheduler{
		Logger:   logger,
		Registry: reg,
		Checker:  checker,
		Options:  opts,
		trigger:  make(chan struct{}, 1),
		now:      time.Now,
	}
}

// Run does an immediate round, then one per tick and one per accepted
// Trigger, until ctx is cancelled. Rounds run one at a time.
func (s *Scheduler) Run(ctx context.Context) {
	var tick <-chan time.Time
	var ticker *time.Ticker
	if s.Options.Interval > 0 {
		ticker = time.NewTicker(s.Options.Interval)
		defer ticker.Stop()
		tick = ticker.C
	} else {
		s.Logger.Info("auto_check_disabled")
	}

	// immediate pass
	s.RunOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			s.Logger.Info("scheduler_stopped")
			return
		case <-tick:
			s.RunOnce(ctx)
		case <-s.trigger:
			s.runOnce(ctx, func() { s.queued.Store(false) })
			if ticker != nil {
				ticker.Reset(s.Options.Interval)
			}
		}
	}
}

// Trigger requests a manual round. It returns false, and the request is
// dropped, when a round is already running or one is already queued.
func (s *Scheduler) Trigger() bool {
	if s.running.Load() || !s.queued.CompareAndSwap(false, true) {
		return false
	}
	select {
	case s.trigger <- struct{}{}:
		return true
	default:
		s.queued.Store(false)
		return false
	}
}

// Running reports whether a round is in flight.
func (s *Scheduler) Running() bool { return s.running.Load() }

// RunOnce probes every target in the current snapshot and blocks until all
// probes have resolved. It returns false without doing anything if another
// round is in flight.
func (s *Scheduler) RunOnce(ctx context.Context) (RoundReport, bool) {
	return s.runOnce(ctx, nil)
}

// runOnce calls claimed once the in-flight flag has been decided, so a
// queued Trigger is released only when running already shows the round.
func (s *Scheduler) runOnce(ctx context.Context, claimed func()) (RoundReport, bool) {
	won := s.running.CompareAndSwap(false, true)
	if claimed != nil {
		claimed()
	}
	if !won {
		s.Logger.Debug("round_skipped_in_flight")
		return RoundReport{}, false
	}
	defer s.running.Store(false)

	round := newRound(s.Registry.Snapshot(), s.now())
	if len(round.Targets) == 0 {
		return round.report(s.now(), s.Registry.Summary()), true
	}
	s.Registry.MarkChecking(round.ids())

	// Probes outlive a shutdown of ctx and end at their own timeout, so a
	// stop never records a reachable target as Offline.
	base := context.WithoutCancel(ctx)

	var g errgroup.Group
	if s.Options.MaxConcurrent > 0 {
		g.SetLimit(s.Options.MaxConcurrent)
	}
	for _, t := range round.Targets {
		g.Go(func() error {
			s.probe(base, round, t)
			return nil
		})
	}
	_ = g.Wait()

	rep := round.report(s.now(), s.Registry.Summary())
	s.Logger.Info("round_complete",
		zap.String("round_id", rep.ID),
		zap.Int("probed", rep.Probed),
		zap.Int("applied", rep.Applied),
		zap.Int("discarded", rep.Discarded),
		zap.Duration("duration", rep.Duration),
		zap.Int("online", rep.Summary.Online),
		zap.Int("offline", rep.Summary.Offline),
		zap.Int("error", rep.Summary.Error),
	)
	return rep, true
}

// probe runs when its goroutine starts, so a probe queued behind
// MaxConcurrent still gets the full timeout.
func (s *Scheduler) probe(base context.Context, round *Round, t RoundTarget) {
	out := s.check(base, t.URL)
	applied := s.Registry.ApplyStatus(t.ID, out.Status, s.now())
	round.record(applied)

	if !applied {
		s.Logger.Debug("result_discarded",
			zap.String("round_id", round.ID),
			zap.Uint64("target_id", uint64(t.ID)),
		)
		return
	}
	s.Logger.Debug("target_checked",
		zap.String("round_id", round.ID),
		zap.Uint64("target_id", uint64(t.ID)),
		zap.String("url", t.URL),
		zap.Stringer("status", out.Status),
		zap.Duration("latency", out.Latency),
		zap.String("reason", out.Reason),
	)
}

// check gives the checker Timeout and waits Grace longer for its answer.
// A checker that panics or never answers still resolves to Offline.
func (s *Scheduler) check(base context.Context, url string) probe.Result {
	ctx, cancel := context.WithTimeout(base, s.Options.Timeout)
	defer cancel()

	done := make(chan probe.Result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				s.Logger.Error("probe_panic", zap.String("url", url), zap.Any("panic", r))
				done <- probe.Result{Status: domain.Offline(), Reason: fmt.Sprint(r)}
			}
		}()
		done <- s.Checker.Check(ctx, url)
	}()

	hard := time.NewTimer(s.Options.Timeout + s.Options.Grace)
	defer hard.Stop()
	select {
	case out := <-done:
		if k := out.Status.Kind; k == domain.StatusUnknown || k == domain.StatusChecking {
			out.Status = domain.Offline()
		}
		return out
	case <-hard.C:
		return probe.Result{Status: domain.Offline(), Reason: "timeout"}
	}
}
