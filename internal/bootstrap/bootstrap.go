// Package bootstrap turns a loaded config into running components.
package bootstrap

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/servermonitor/internal/config"
	"github.com/hamed0406/servermonitor/internal/monitor"
	"github.com/hamed0406/servermonitor/internal/probe"
	"github.com/hamed0406/servermonitor/internal/registry"
	"github.com/hamed0406/servermonitor/internal/repo"
	"github.com/hamed0406/servermonitor/internal/repo/file"
	"github.com/hamed0406/servermonitor/internal/repo/memory"
	"github.com/hamed0406/servermonitor/internal/repo/postgres"
	"github.com/hamed0406/servermonitor/internal/repo/redis"
	"github.com/hamed0406/servermonitor/internal/scheduler"
)

// OpenStore opens the store selected by cfg.Driver. Stores holding a
// connection also implement repo.Closer.
func OpenStore(ctx context.Context, cfg config.StoreConfig, log *zap.Logger) (repo.TargetStore, error) {
	switch cfg.Driver {
	case config.DriverFile, "":
		s := file.New(cfg.Path)
		log.Info("store_file", zap.String("path", s.Path()))
		return s, nil
	case config.DriverMemory:
		log.Info("store_memory")
		return memory.New(), nil
	case config.DriverPostgres:
		s, err := postgres.New(ctx, cfg.DatabaseURL, log)
		if err != nil {
			return nil, fmt.Errorf("open postgres store: %w", err)
		}
		return s, nil
	case config.DriverRedis:
		s, err := redis.New(ctx, redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Key:      cfg.RedisKey,
		}, log)
		if err != nil {
			return nil, fmt.Errorf("open redis store: %w", err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

// NewChecker builds the probe used by the scheduler.
func NewChecker(cfg config.CheckConfig) probe.Checker {
	var c probe.Checker = probe.NewHTTPChecker(probe.HTTPOptions{
		Timeout:      cfg.Timeout,
		MaxRedirects: cfg.MaxRedirects,
		Method:       cfg.Method,
		UserAgent:    cfg.UserAgent,
	})
	if cfg.DiagnoseDNS {
		c = probe.WithDNSDiagnosis(c, probe.DNSDiagnoser{Server: cfg.DNSServer, Timeout: dnsTimeout})
	}
	return c
}

// dnsTimeout bounds the lookup run after a failed check; checkGrace leaves
// the scheduler room to wait for it.
const dnsTimeout = 2 * time.Second

func checkGrace(cfg config.CheckConfig) time.Duration {
	if cfg.DiagnoseDNS {
		return dnsTimeout + 500*time.Millisecond
	}
	return scheduler.DefaultGrace
}

type App struct {
	Monitor  *monitor.Monitor
	Store    repo.TargetStore
	Warnings []error // non-fatal startup problems
}

// Build opens the store, loads (or seeds) the target list and wires the
// scheduler. Only a store that cannot be opened is an error; unreadable
// stored data ends up in Warnings. Close must be called when done.
func Build(ctx context.Context, cfg *config.Config, log *zap.Logger) (*App, error) {
	store, err := OpenStore(ctx, cfg.Store, log)
	if err != nil {
		return nil, err
	}

	reg := registry.New(registry.Options{
		Store:       store,
		Logger:      log.Named("registry"),
		SaveTimeout: cfg.Store.SaveTimeout,
	})
	sched := scheduler.New(log.Named("scheduler"), reg, NewChecker(cfg.Check), scheduler.Options{
		Interval:      cfg.Check.Interval,
		Timeout:       cfg.Check.Timeout,
		MaxConcurrent: cfg.Check.MaxConcurrent,
		Grace:         checkGrace(cfg.Check),
	})
	mon := monitor.New(reg, sched, log)

	seeds := make([]monitor.Seed, 0, len(cfg.Seeds))
	for _, s := range cfg.Seeds {
		seeds = append(seeds, monitor.Seed{Name: s.Name, URL: s.URL})
	}
	app := &App{Monitor: mon, Store: store}
	if err := mon.Open(ctx, seeds); err != nil {
		// in-memory state is authoritative from here on
		app.Warnings = append(app.Warnings, err)
		log.Warn("started_without_stored_targets", zap.Error(err))
	}
	return app, nil
}

func (a *App) Close() error {
	if c, ok := a.Store.(repo.Closer); ok {
		return c.Close()
	}
	return nil
}
