package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/hamed0406/servermonitor/internal/domain"
	"github.com/hamed0406/servermonitor/internal/repo"
)

const DefaultKey = "servermonitor:targets"

var _ repo.TargetStore = (*Store)(nil)

type Options struct {
	Addr     string
	Password string
	DB       int
	Key      string
}

// Store keeps the list as one JSON document under a single key.
type Store struct {
	client *goredis.Client
	key    string
	log    *zap.Logger
}

func New(ctx context.Context, opts Options, log *zap.Logger) (*Store, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:            opts.Addr,
		Password:        opts.Password,
		DB:              opts.DB,
		DisableIdentity: true,
	})

	ctxPing, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctxPing).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", opts.Addr, err)
	}
	return NewWithClient(client, opts.Key, log), nil
}

func NewWithClient(client *goredis.Client, key string, log *zap.Logger) *Store {
	if key == "" {
		key = DefaultKey
	}
	return &Store{client: client, key: key, log: log}
}

func (s *Store) Close() error { return s.client.Close() }

func (s *Store) Load(ctx context.Context) ([]domain.Target, error) {
	b, err := s.client.Get(ctx, s.key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return []domain.Target{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", s.key, err)
	}
	out := []domain.Target{}
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("decode %s: %w", s.key, err)
	}
	return out, nil
}

func (s *Store) Save(ctx context.Context, ts []domain.Target) error {
	if ts == nil {
		ts = []domain.Target{}
	}
	b, err := json.Marshal(ts)
	if err != nil {
		return fmt.Errorf("encode targets: %w", err)
	}
	if err := s.client.Set(ctx, s.key, b, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", s.key, err)
	}
	s.log.Debug("redis_saved", zap.String("key", s.key), zap.Int("targets", len(ts)))
	return nil
}
