package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hamed0406/servermonitor/internal/bootstrap"
	"github.com/hamed0406/servermonitor/internal/config"
	"github.com/hamed0406/servermonitor/internal/httpapi"
	apimw "github.com/hamed0406/servermonitor/internal/httpapi/middleware"
	"github.com/hamed0406/servermonitor/internal/logging"
)

func main() {
	cfgPath := pflag.StringP("config", "c", "", "path to config.yaml (default ./config.yaml or ./config/config.yaml)")
	apiAddr := pflag.String("api", "", "serve the JSON API on this address, overriding api.addr")
	pflag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatal(err)
	}
	if *apiAddr != "" {
		cfg.API.Addr = *apiAddr
	}

	logger, err := logging.NewLogger(logging.Options{Dir: cfg.Log.Dir, Level: cfg.Log.Level, Console: cfg.Log.Console})
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Error("servermonitor_failed", zap.Error(err))
		fmt.Fprintln(os.Stderr, "servermonitor:", err)
		_ = logger.Sync()
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	openCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	app, err := bootstrap.Build(openCtx, cfg, logger)
	cancel()
	if err != nil {
		return err
	}
	defer app.Close()

	logger.Info("servermonitor_start",
		zap.String("store", cfg.Store.Driver),
		zap.Duration("interval", cfg.Check.Interval),
		zap.Duration("timeout", cfg.Check.Timeout),
		zap.Int("targets", app.Monitor.Summary().Total),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		app.Monitor.Run(gctx)
		return nil
	})
	if cfg.API.Addr != "" {
		if !cfg.API.Loopback() {
			logger.Warn("api_not_loopback", zap.String("addr", cfg.API.Addr))
		}
		if cfg.API.APIOpen() {
			logger.Warn("api_without_keys")
		}
		api := httpapi.NewServer(logger.Named("api"), app.Monitor, httpapi.Options{
			Keys:           apimw.Keys{Public: cfg.API.PublicKeys, Admin: cfg.API.AdminKeys},
			AllowedOrigins: cfg.API.AllowedOrigins,
			AdminLimit:     apimw.Limit{PerMinute: cfg.API.AdminPerMinute, Burst: cfg.API.AdminBurst},
		})
		g.Go(func() error { return api.Serve(gctx, cfg.API.Addr) })
	}

	err = g.Wait()

	// final save so edits made just before shutdown are not lost
	if serr := app.Monitor.Save(context.Background()); serr != nil {
		logger.Warn("final_save_failed", zap.Error(serr))
	}
	logger.Info("servermonitor_stopped")
	return err
}
