package repo

import (
	"context"

	"github.com/hamed0406/servermonitor/internal/domain"
)

// TargetStore persists the ordered target list. Load on a store that has
// never been saved returns an empty slice and no error. Save replaces the
// whole list.
type TargetStore interface {
	Load(ctx context.Context) ([]domain.Target, error)
	Save(ctx context.Context, targets []domain.Target) error
}

// Closer is implemented by stores holding connections.
type Closer interface {
	Close() error
}

// Quarantiner is implemented by stores that can move unreadable data aside
// so the next Save does not overwrite it. It returns where the data went.
type Quarantiner interface {
	Quarantine(ctx context.Context) (string, error)
}
