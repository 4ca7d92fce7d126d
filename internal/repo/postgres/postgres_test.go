package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/servermonitor/internal/domain"
)

func TestToRow_MapsStatus(t *testing.T) {
	row := toRow(2, domain.Target{ID: 5, Name: "a", URL: "http://a", Status: domain.ErrorCode(502)})
	if row[0].(int32) != 2 || row[1].(int64) != 5 || row[4].(string) != "Error" {
		t.Fatalf("unexpected row: %v", row)
	}
	if c := row[5].(*int32); c == nil || *c != 502 {
		t.Fatalf("want status_code 502, got %v", row[5])
	}
	if lc := row[6].(*time.Time); lc != nil {
		t.Fatalf("zero timestamp should map to NULL, got %v", lc)
	}

	row = toRow(0, domain.Target{ID: 1, Status: domain.Checking()})
	if row[4].(string) != "Unknown" || row[5].(*int32) != nil {
		t.Fatalf("checking should be stored as Unknown without code: %v", row)
	}
}

func TestPostgresStore_SaveLoad(t *testing.T) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set; skipping Postgres integration test")
	}

	ctx := context.Background()
	store, err := New(ctx, dsn, zap.NewNop())
	if err != nil {
		t.Fatalf("New store: %v", err)
	}
	defer store.Close()

	checked := time.Date(2026, 10, 19, 9, 30, 0, 0, time.UTC)
	want := []domain.Target{
		{ID: 10, Name: "B", URL: "http://b.example", Status: domain.Offline(), LastChecked: checked},
		{ID: 4, Name: "A", URL: "http://a.example", Status: domain.ErrorCode(500), LastChecked: checked},
		{ID: 7, Name: "C", URL: "http://c.example", Status: domain.Unknown()},
	}
	if err := store.Save(ctx, want); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("want %d rows, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i].ID != want[i].ID || got[i].Name != want[i].Name || got[i].Status != want[i].Status ||
			!got[i].LastChecked.Equal(want[i].LastChecked) {
			t.Fatalf("row %d: want %+v got %+v", i, want[i], got[i])
		}
	}

	if err := store.Save(ctx, nil); err != nil {
		t.Fatalf("Save empty: %v", err)
	}
	if got, _ := store.Load(ctx); len(got) != 0 {
		t.Fatalf("expected empty table, got %d rows", len(got))
	}
}
