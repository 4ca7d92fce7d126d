package bootstrap

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/servermonitor/internal/config"
	"github.com/hamed0406/servermonitor/internal/probe"
	"github.com/hamed0406/servermonitor/internal/repo/file"
	"github.com/hamed0406/servermonitor/internal/repo/memory"
	"github.com/hamed0406/servermonitor/internal/scheduler"
)

func TestOpenStore_FileAndMemory(t *testing.T) {
	ctx := context.Background()
	p := filepath.Join(t.TempDir(), "servers.json")

	s, err := OpenStore(ctx, config.StoreConfig{Driver: config.DriverFile, Path: p}, zap.NewNop())
	if err != nil {
		t.Fatalf("file: %v", err)
	}
	if fs, ok := s.(*file.Store); !ok || fs.Path() != p {
		t.Fatalf("want file store at %s, got %T", p, s)
	}

	s, err = OpenStore(ctx, config.StoreConfig{Driver: config.DriverMemory}, zap.NewNop())
	if err != nil {
		t.Fatalf("memory: %v", err)
	}
	if _, ok := s.(*memory.Store); !ok {
		t.Fatalf("want memory store, got %T", s)
	}

	if _, err := OpenStore(ctx, config.StoreConfig{Driver: "sqlite"}, zap.NewNop()); err == nil {
		t.Fatalf("expected error for unknown driver")
	}
}

func TestNewChecker_DNSDecorator(t *testing.T) {
	c := NewChecker(config.CheckConfig{Timeout: time.Second, Method: "GET"})
	if _, ok := c.(*probe.HTTPChecker); !ok {
		t.Fatalf("want plain HTTP checker, got %T", c)
	}
	c = NewChecker(config.CheckConfig{Timeout: time.Second, Method: "GET", DiagnoseDNS: true})
	if _, ok := c.(*probe.HTTPChecker); ok {
		t.Fatalf("expected DNS decorator around the HTTP checker")
	}
}

func TestCheckGrace_CoversDNSLookup(t *testing.T) {
	if g := checkGrace(config.CheckConfig{}); g != scheduler.DefaultGrace {
		t.Fatalf("grace without dns = %v", g)
	}
	if g := checkGrace(config.CheckConfig{DiagnoseDNS: true}); g <= dnsTimeout {
		t.Fatalf("grace %v does not cover dns timeout %v", g, dnsTimeout)
	}
}

func TestBuild_SeedsAndPersists(t *testing.T) {
	p := filepath.Join(t.TempDir(), "servers.json")
	cfg := &config.Config{
		Check: config.CheckConfig{Timeout: time.Second, Method: "GET"},
		Store: config.StoreConfig{Driver: config.DriverFile, Path: p, SaveTimeout: time.Second},
		Seeds: []config.Seed{{Name: "Example", URL: "example.com"}},
	}
	app, err := Build(context.Background(), cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer app.Close()

	if got := app.Monitor.Summary().Total; got != 1 {
		t.Fatalf("want 1 seeded target, got %d", got)
	}
	if _, err := os.Stat(p); err != nil {
		t.Fatalf("seeded list not saved: %v", err)
	}
}

func TestBuild_CorruptStoreStartsFromSeeds(t *testing.T) {
	p := filepath.Join(t.TempDir(), "servers.json")
	if err := os.WriteFile(p, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg := &config.Config{
		Check: config.CheckConfig{Timeout: time.Second},
		Store: config.StoreConfig{Driver: config.DriverFile, Path: p, SaveTimeout: time.Second},
		Seeds: []config.Seed{{Name: "Example", URL: "example.com"}},
	}
	app, err := Build(context.Background(), cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("unreadable store must not stop startup: %v", err)
	}
	defer app.Close()

	if len(app.Warnings) != 1 {
		t.Fatalf("want one startup warning, got %v", app.Warnings)
	}
	if got := app.Monitor.Summary().Total; got != 1 {
		t.Fatalf("want the seed list, got %d targets", got)
	}
	bad, err := os.ReadFile(p + ".bad")
	if err != nil || string(bad) != "{not json" {
		t.Fatalf("unreadable file not kept aside: %q %v", bad, err)
	}
}
