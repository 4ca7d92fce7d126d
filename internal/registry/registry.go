package registry

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/servermonitor/internal/domain"
	"github.com/hamed0406/servermonitor/internal/repo"
)

const DefaultSaveTimeout = 3 * time.Second

type Options struct {
	Store       repo.TargetStore // nil disables persistence
	Logger      *zap.Logger
	SaveTimeout time.Duration
}

type Registry struct {
	mu      sync.RWMutex
	targets []domain.Target
	lastID  domain.TargetID

	saveMu      sync.Mutex
	held        bool // guarded by saveMu
	store       repo.TargetStore
	saveTimeout time.Duration
	log         *zap.Logger
}

func New(opts Options) *Registry {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.SaveTimeout <= 0 {
		opts.SaveTimeout = DefaultSaveTimeout
	}
	return &Registry{
		targets:     []domain.Target{},
		store:       opts.Store,
		saveTimeout: opts.SaveTimeout,
		log:         opts.Logger,
	}
}

// Add validates and appends a new target with status Unknown, then saves.
// On a failed save the returned id is valid and err is a *SaveError.
func (r *Registry) Add(ctx context.Context, name, rawURL string) (domain.TargetID, error) {
	in, err := normalizeInput(name, rawURL)
	if err != nil {
		return 0, err
	}

	r.mu.Lock()
	r.lastID++
	id := r.lastID
	r.targets = append(r.targets, domain.Target{
		ID:     id,
		Name:   in.Name,
		URL:    in.URL,
		Status: domain.Unknown(),
	})
	r.mu.Unlock()

	r.log.Info("target_added",
		zap.Uint64("target_id", uint64(id)),
		zap.String("name", in.Name),
		zap.String("url", in.URL),
	)
	return id, r.persist(ctx, false)
}

// Update edits name and URL of an existing target. Changing the URL resets
// the status to Unknown.
func (r *Registry) Update(ctx context.Context, id domain.TargetID, name, rawURL string) error {
	in, err := normalizeInput(name, rawURL)
	if err != nil {
		return err
	}

	r.mu.Lock()
	i := r.indexOf(id)
	if i < 0 {
		r.mu.Unlock()
		return ErrNotFound
	}
	t := &r.targets[i]
	t.Name = in.Name
	if t.URL != in.URL {
		t.URL = in.URL
		t.Status = domain.Unknown()
		t.LastChecked = time.Time{}
	}
	r.mu.Unlock()

	r.log.Info("target_updated",
		zap.Uint64("target_id", uint64(id)),
		zap.String("name", in.Name),
		zap.String("url", in.URL),
	)
	return r.persist(ctx, false)
}

// Remove deletes the target. It reports false, and does not save, when id
// is unknown. In-flight probes for the target are left to finish; their
// results are dropped by ApplyStatus.
func (r *Registry) Remove(ctx context.Context, id domain.TargetID) (bool, error) {
	r.mu.Lock()
	i := r.indexOf(id)
	if i < 0 {
		r.mu.Unlock()
		return false, nil
	}
	r.targets = append(r.targets[:i], r.targets[i+1:]...)
	r.mu.Unlock()

	r.log.Info("target_removed", zap.Uint64("target_id", uint64(id)))
	return true, r.persist(ctx, false)
}

// Snapshot returns a point-in-time copy of the list in display order.
func (r *Registry) Snapshot() []domain.Target {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Target, len(r.targets))
	copy(out, r.targets)
	return out
}

func (r *Registry) Get(id domain.TargetID) (domain.Target, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if i := r.indexOf(id); i >= 0 {
		return r.targets[i], true
	}
	return domain.Target{}, false
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.targets)
}

func (r *Registry) Summary() domain.Summary {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return domain.Summarize(r.targets)
}

// MarkChecking flags the given targets as having a probe outstanding and
// returns how many still existed.
func (r *Registry) MarkChecking(ids []domain.TargetID) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, id := range ids {
		if i := r.indexOf(id); i >= 0 {
			r.targets[i].Status = domain.Checking()
			n++
		}
	}
	return n
}

// ApplyStatus merges one probe result. It returns false when the target no
// longer exists, in which case the result is discarded. Results are applied
// in the order they arrive.
func (r *Registry) ApplyStatus(id domain.TargetID, st domain.Status, at time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := r.indexOf(id)
	if i < 0 {
		return false
	}
	r.targets[i].Status = st
	r.targets[i].LastChecked = at
	return true
}

// Replace swaps in a list read from the store. Loaded ids are kept when they
// are unique and either belong to a target that is live right now or have
// never been issued in this process; anything else gets a fresh id.
func (r *Registry) Replace(ts []domain.Target) []domain.Target {
	r.mu.Lock()
	defer r.mu.Unlock()

	live := make(map[domain.TargetID]bool, len(r.targets))
	for _, t := range r.targets {
		live[t.ID] = true
	}
	issued := r.lastID
	seen := make(map[domain.TargetID]bool, len(ts))
	keep := make([]bool, len(ts))
	for i, t := range ts {
		if t.ID != 0 && !seen[t.ID] && (live[t.ID] || t.ID > issued) {
			keep[i] = true
			seen[t.ID] = true
			if t.ID > r.lastID {
				r.lastID = t.ID
			}
		}
	}

	next := make([]domain.Target, len(ts))
	for i, t := range ts {
		if !keep[i] {
			r.lastID++
			t.ID = r.lastID
		}
		if t.Status.Kind == domain.StatusChecking {
			t.Status = domain.Unknown()
		}
		next[i] = t
	}
	r.targets = next

	out := make([]domain.Target, len(next))
	copy(out, next)
	return out
}

// Load reads the store and replaces the list with its contents.
func (r *Registry) Load(ctx context.Context) error {
	if r.store == nil {
		return nil
	}
	ts, err := r.store.Load(ctx)
	if err != nil {
		return err
	}
	r.Replace(ts)
	r.saveMu.Lock()
	r.held = false
	r.saveMu.Unlock()
	r.log.Info("targets_loaded", zap.Int("count", len(ts)))
	return nil
}

// Quarantine protects stored data that Load could not read. The store moves
// it aside when it can; otherwise automatic saves after Add, Update and
// Remove are held until an explicit Save or a successful Load.
func (r *Registry) Quarantine(ctx context.Context) {
	if r.store == nil {
		return
	}
	r.saveMu.Lock()
	defer r.saveMu.Unlock()

	if q, ok := r.store.(repo.Quarantiner); ok {
		dst, err := q.Quarantine(ctx)
		if err == nil {
			r.held = false
			r.log.Warn("store_quarantined", zap.String("moved_to", dst))
			return
		}
		r.log.Warn("store_quarantine_failed", zap.Error(err))
	}
	r.held = true
	r.log.Warn("store_saves_held")
}

// Save persists the current list. It also releases held saves.
func (r *Registry) Save(ctx context.Context) error {
	return r.persist(ctx, true)
}

// persist writes a fresh snapshot. Snapshots are taken under saveMu, so a
// later change is never overwritten by an earlier one.
func (r *Registry) persist(ctx context.Context, explicit bool) error {
	if r.store == nil {
		return nil
	}
	r.saveMu.Lock()
	defer r.saveMu.Unlock()
	if r.held && !explicit {
		return &SaveError{Err: ErrSavesHeld}
	}

	snap := r.Snapshot()
	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.saveTimeout)
	defer cancel()
	if err := r.store.Save(sctx, snap); err != nil {
		r.log.Warn("store_save_failed", zap.Int("targets", len(snap)), zap.Error(err))
		return &SaveError{Err: err}
	}
	r.held = false
	r.log.Debug("store_saved", zap.Int("targets", len(snap)))
	return nil
}

func (r *Registry) indexOf(id domain.TargetID) int {
	for i := range r.targets {
		if r.targets[i].ID == id {
			return i
		}
	}
	return -1
}
