// cmd/preflight/main.go
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/hamed0406/servermonitor/internal/bootstrap"
	"github.com/hamed0406/servermonitor/internal/config"
	"github.com/hamed0406/servermonitor/internal/repo"
)

type report struct {
	out    io.Writer
	failed bool
}

func (r *report) ok(msg string)   { fmt.Fprintln(r.out, "✔", msg) }
func (r *report) warn(msg string) { fmt.Fprintln(r.out, "⚠", msg) }
func (r *report) fail(msg string) {
	fmt.Fprintln(r.out, "✖", msg)
	r.failed = true
}

func main() {
	cfgPath := pflag.StringP("config", "c", "", "path to config.yaml")
	pflag.Parse()

	r := &report{out: os.Stderr}
	preflight(context.Background(), *cfgPath, r)
	if r.failed {
		os.Exit(1)
	}
	fmt.Println("✔ preflight passed")
}

func preflight(ctx context.Context, path string, r *report) {
	cfg, err := config.Load(path)
	if err != nil {
		r.fail(err.Error())
		return
	}
	r.ok(fmt.Sprintf("config valid (interval=%s timeout=%s store=%s)", cfg.Check.Interval, cfg.Check.Timeout, cfg.Store.Driver))

	if cfg.Check.Interval == 0 {
		r.warn("automatic checks disabled; only manual checks will run")
	} else if cfg.Check.Interval < cfg.Check.Timeout {
		r.warn("check.interval is shorter than check.timeout; ticks during a round are skipped")
	}

	if cfg.API.Addr == "" {
		r.ok("API disabled")
	} else {
		r.ok("api.addr=" + cfg.API.Addr)
		if !cfg.API.Loopback() {
			r.warn("api.addr is not a loopback address; the API will be reachable from the network")
		}
		if cfg.API.APIOpen() {
			r.warn("no API keys configured; every route is open")
		} else if len(cfg.API.AdminKeys) == 0 {
			r.warn("api.admin_keys is empty; mutations need no admin key")
		}
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	store, err := bootstrap.OpenStore(ctx, cfg.Store, zap.NewNop())
	if err != nil {
		r.fail(err.Error())
		return
	}
	if c, ok := store.(repo.Closer); ok {
		defer c.Close()
	}
	ts, err := store.Load(ctx)
	if err != nil {
		r.fail("store load: " + err.Error())
		return
	}
	switch {
	case len(ts) > 0:
		r.ok(fmt.Sprintf("store holds %d targets", len(ts)))
	case len(cfg.Seeds) > 0:
		r.ok(fmt.Sprintf("store empty; %d seeds will be added", len(cfg.Seeds)))
	default:
		r.warn("store empty and no seeds configured")
	}
}
