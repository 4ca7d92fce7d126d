// Package monitor is the contract consumers (the JSON API, the daemon) use
// to read and edit the target list. It never exposes the registry lock or
// the scheduler's internals.
package monitor

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/hamed0406/servermonitor/internal/domain"
	"github.com/hamed0406/servermonitor/internal/registry"
	"github.com/hamed0406/servermonitor/internal/scheduler"
)

// Seed is a target added when the store holds no targets at startup.
type Seed struct {
	Name string
	URL  string
}

type Monitor struct {
	reg   *registry.Registry
	sched *scheduler.Scheduler
	log   *zap.Logger
}

func New(reg *registry.Registry, sched *scheduler.Scheduler, log *zap.Logger) *Monitor {
	if log == nil {
		log = zap.NewNop()
	}
	return &Monitor{reg: reg, sched: sched, log: log}
}

// Open loads the store. When it is empty the seeds are added and saved.
//
// A store that cannot be read does not stop startup: the failure is logged,
// the unreadable data is set aside (see registry.Quarantine), the list
// starts from the seeds and the load error is returned as a warning. A
// failed save of the seeds is logged, not returned.
func (m *Monitor) Open(ctx context.Context, seeds []Seed) error {
	var warning error
	if err := m.reg.Load(ctx); err != nil {
		m.log.Warn("store_load_failed", zap.Error(err))
		m.reg.Quarantine(ctx)
		warning = fmt.Errorf("load targets: %w", err)
	}
	if m.reg.Len() > 0 || len(seeds) == 0 {
		return warning
	}
	for _, s := range seeds {
		if _, err := m.reg.Add(ctx, s.Name, s.URL); err != nil && !registry.IsSaveError(err) {
			m.log.Warn("seed_skipped", zap.String("name", s.Name), zap.String("url", s.URL), zap.Error(err))
		}
	}
	m.log.Info("targets_seeded", zap.Int("count", m.reg.Len()))
	return warning
}

// Run drives the scheduler until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) {
	m.sched.Run(ctx)
}

func (m *Monitor) Snapshot() []domain.Target {
	return m.reg.Snapshot()
}

func (m *Monitor) Get(id domain.TargetID) (domain.Target, bool) {
	return m.reg.Get(id)
}

// AddTarget creates a target. A *registry.SaveError comes back together
// with the created target.
func (m *Monitor) AddTarget(ctx context.Context, name, url string) (domain.Target, error) {
	id, err := m.reg.Add(ctx, name, url)
	if err != nil && !registry.IsSaveError(err) {
		return domain.Target{}, err
	}
	t, _ := m.reg.Get(id)
	return t, err
}

func (m *Monitor) UpdateTarget(ctx context.Context, id domain.TargetID, name, url string) (domain.Target, error) {
	err := m.reg.Update(ctx, id, name, url)
	if err != nil && !registry.IsSaveError(err) {
		return domain.Target{}, err
	}
	t, ok := m.reg.Get(id)
	if !ok {
		// removed concurrently
		return domain.Target{}, registry.ErrNotFound
	}
	return t, err
}

// RemoveTarget returns registry.ErrNotFound for an unknown id.
func (m *Monitor) RemoveTarget(ctx context.Context, id domain.TargetID) error {
	ok, err := m.reg.Remove(ctx, id)
	if !ok && err == nil {
		return registry.ErrNotFound
	}
	return err
}

// TriggerManualCheck asks for an immediate round. It reports false when a
// round is already in flight or queued; the request is then dropped.
func (m *Monitor) TriggerManualCheck() bool {
	return m.sched.Trigger()
}

// Checking reports whether a round is in flight.
func (m *Monitor) Checking() bool {
	return m.sched.Running()
}

func (m *Monitor) Summary() domain.Summary {
	return m.reg.Summary()
}

// Reload replaces the list with the store's contents.
func (m *Monitor) Reload(ctx context.Context) error {
	return m.reg.Load(ctx)
}

func (m *Monitor) Save(ctx context.Context) error {
	return m.reg.Save(ctx)
}
