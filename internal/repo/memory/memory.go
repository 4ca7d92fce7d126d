package memory

import (
	"context"
	"sync"

	"github.com/hamed0406/servermonitor/internal/domain"
	"github.com/hamed0406/servermonitor/internal/repo"
)

var _ repo.TargetStore = (*Store)(nil)

// Store keeps the saved list in process memory.
type Store struct {
	mu      sync.RWMutex
	targets []domain.Target
	saves   int
	failure error
	loadErr error
}

func New(seed ...domain.Target) *Store {
	return &Store{targets: clone(seed)}
}

func (m *Store) Load(ctx context.Context) ([]domain.Target, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	return clone(m.targets), nil
}

func (m *Store) Save(ctx context.Context, ts []domain.Target) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failure != nil {
		return m.failure
	}
	m.targets = clone(ts)
	m.saves++
	return nil
}

// Saves returns how many successful saves the store has seen.
func (m *Store) Saves() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.saves
}

// FailWith makes subsequent saves return err; nil restores normal behaviour.
func (m *Store) FailWith(err error) {
	m.mu.Lock()
	m.failure = err
	m.mu.Unlock()
}

// FailLoadWith makes subsequent loads return err; nil restores them.
func (m *Store) FailLoadWith(err error) {
	m.mu.Lock()
	m.loadErr = err
	m.mu.Unlock()
}

func clone(ts []domain.Target) []domain.Target {
	out := make([]domain.Target, len(ts))
	copy(out, ts)
	return out
}
