package scheduler

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hamed0406/servermonitor/internal/domain"
)

// Round is one check cycle: the (id, url) pairs captured at start and the
// outcomes reported so far. Probes record into it concurrently.
type Round struct {
	ID      string
	Started time.Time
	Targets []RoundTarget

	mu        sync.Mutex
	applied   int
	discarded int
}

type RoundTarget struct {
	ID  domain.TargetID
	URL string
}

// RoundReport is the immutable summary of a finished round.
type RoundReport struct {
	ID        string
	Started   time.Time
	Duration  time.Duration
	Probed    int
	Applied   int
	Discarded int
	Summary   domain.Summary
}

func newRound(snap []domain.Target, now time.Time) *Round {
	r := &Round{
		ID:      uuid.NewString(),
		Started: now,
		Targets: make([]RoundTarget, len(snap)),
	}
	for i, t := range snap {
		r.Targets[i] = RoundTarget{ID: t.ID, URL: t.URL}
	}
	return r
}

func (r *Round) ids() []domain.TargetID {
	out := make([]domain.TargetID, len(r.Targets))
	for i, t := range r.Targets {
		out[i] = t.ID
	}
	return out
}

func (r *Round) record(applied bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if applied {
		r.applied++
	} else {
		r.discarded++
	}
}

func (r *Round) report(finished time.Time, sum domain.Summary) RoundReport {
	r.mu.Lock()
	defer r.mu.Unlock()
	return RoundReport{
		ID:        r.ID,
		Started:   r.Started,
		Duration:  finished.Sub(r.Started),
		Probed:    len(r.Targets),
		Applied:   r.applied,
		Discarded: r.discarded,
		Summary:   sum,
	}
}
