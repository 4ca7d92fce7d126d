package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/hamed0406/servermonitor/internal/domain"
	"github.com/hamed0406/servermonitor/internal/repo"
)

var _ repo.TargetStore = (*Store)(nil)

// Schema is applied by New. position keeps the user's ordering.
const Schema = `
CREATE TABLE IF NOT EXISTS targets (
  position     INTEGER     NOT NULL,
  id           BIGINT      PRIMARY KEY,
  name         TEXT        NOT NULL,
  url          TEXT        NOT NULL,
  status       TEXT        NOT NULL,
  status_code  INTEGER     NULL,
  last_checked TIMESTAMPTZ NULL
);
CREATE INDEX IF NOT EXISTS idx_targets_position ON targets (position);
`

type Store struct {
	pool *pgxpool.Pool
	log  *zap.Logger
}

func New(ctx context.Context, dsn string, log *zap.Logger) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}
	ctxPing, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctxPing); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	if _, err := pool.Exec(ctx, Schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{pool: pool, log: log}, nil
}

func (s *Store) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

func (s *Store) Load(ctx context.Context) ([]domain.Target, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, url, status, status_code, last_checked
		   FROM targets
		  ORDER BY position, id`)
	if err != nil {
		return nil, fmt.Errorf("list targets: %w", err)
	}
	defer rows.Close()

	out := []domain.Target{}
	for rows.Next() {
		var (
			id          int64
			name, url   string
			label       string
			code        *int32
			lastChecked *time.Time
		)
		if err := rows.Scan(&id, &name, &url, &label, &code, &lastChecked); err != nil {
			return nil, fmt.Errorf("scan target: %w", err)
		}
		c := 0
		if code != nil {
			c = int(*code)
		}
		st, err := domain.ParseStatus(label, c)
		if err != nil {
			s.log.Warn("pg_bad_status", zap.Int64("id", id), zap.String("status", label))
			st = domain.Unknown()
		}
		t := domain.Target{ID: domain.TargetID(id), Name: name, URL: url, Status: st}
		if lastChecked != nil {
			t.LastChecked = *lastChecked
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// Save replaces the table contents in one transaction.
func (s *Store) Save(ctx context.Context, ts []domain.Target) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM targets`); err != nil {
		return fmt.Errorf("clear targets: %w", err)
	}
	rows := make([][]any, 0, len(ts))
	for i, t := range ts {
		rows = append(rows, toRow(i, t))
	}
	_, err = tx.CopyFrom(ctx,
		pgx.Identifier{"targets"},
		[]string{"position", "id", "name", "url", "status", "status_code", "last_checked"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return fmt.Errorf("copy targets: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func toRow(pos int, t domain.Target) []any {
	st := t.Status
	if st.Kind == domain.StatusChecking {
		st = domain.Unknown()
	}
	var code *int32
	if st.Kind == domain.StatusError {
		c := int32(st.Code)
		code = &c
	}
	var lastChecked *time.Time
	if !t.LastChecked.IsZero() {
		lc := t.LastChecked.UTC()
		lastChecked = &lc
	}
	return []any{int32(pos), int64(t.ID), t.Name, t.URL, st.Label(), code, lastChecked}
}
