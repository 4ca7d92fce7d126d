package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/hamed0406/servermonitor/internal/domain"
)

func TestMemoryStore_SaveAndLoad(t *testing.T) {
	ctx := context.Background()
	s := New()

	got, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty store, got %d", len(got))
	}

	in := []domain.Target{
		{ID: 1, Name: "a", URL: "https://a.example", Status: domain.Online()},
		{ID: 2, Name: "b", URL: "https://b.example", Status: domain.ErrorCode(500)},
	}
	if err := s.Save(ctx, in); err != nil {
		t.Fatalf("Save: %v", err)
	}
	in[0].Name = "mutated"

	got, err = s.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(got) != 2 || got[0].Name != "a" || got[1].Status != domain.ErrorCode(500) {
		t.Fatalf("unexpected load: %+v", got)
	}
	if s.Saves() != 1 {
		t.Fatalf("want 1 save, got %d", s.Saves())
	}
}

func TestMemoryStore_FailWith(t *testing.T) {
	s := New()
	boom := errors.New("disk full")
	s.FailWith(boom)
	if err := s.Save(context.Background(), nil); !errors.Is(err, boom) {
		t.Fatalf("want injected error, got %v", err)
	}
	s.FailWith(nil)
	if err := s.Save(context.Background(), nil); err != nil {
		t.Fatalf("Save: %v", err)
	}
}
