package store_test

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/fridgegames/leaderboard-engine/internal/model"
	"github.com/fridgegames/leaderboard-engine/internal/store"
)

func TestFileBackendInitializesMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "leaderboard.json")
	fb, err := store.NewFileBackend(path)
	if err != nil {
		t.Fatalf("new backend: %v", err)
	}

	doc, err := fb.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(doc.Users) != 0 || len(doc.MonthlyWinners) != 0 || doc.LastMonthClosed != "" {
		t.Errorf("fresh document not empty: %+v", doc)
	}

	// The empty document must have been persisted, not just returned.
	if _, err := os.Stat(path); err != nil {
		t.Errorf("data file should exist after first load: %v", err)
	}
}

func TestFileBackendRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "leaderboard.json")
	fb, err := store.NewFileBackend(path)
	if err != nil {
		t.Fatalf("new backend: %v", err)
	}
	ctx := context.Background()

	doc := model.NewDocument()
	u := doc.EnsureUser("u1")
	u.Nickname = "alice"
	u.Balance = 5150.25
	u.Trades = 3
	u.Wins = 2
	doc.LastMonthClosed = "2026-08"

	if err := fb.Save(ctx, doc); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := fb.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	gu := got.Users["u1"]
	if gu == nil || gu.Nickname != "alice" || gu.Balance != 5150.25 || gu.Trades != 3 || gu.Wins != 2 {
		t.Errorf("round-tripped user = %+v", gu)
	}
	if got.LastMonthClosed != "2026-08" {
		t.Errorf("marker = %s, want 2026-08", got.LastMonthClosed)
	}

	// Human-readable on disk.
	raw, _ := os.ReadFile(path)
	if !json.Valid(raw) {
		t.Error("stored file is not valid JSON")
	}
	var indent map[string]json.RawMessage
	if err := json.Unmarshal(raw, &indent); err != nil {
		t.Errorf("stored file not an object: %v", err)
	}
}

func TestFileBackendMalformedDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "leaderboard.json")
	if err := os.WriteFile(path, []byte(`{"users": [1,2,3]`), 0o644); err != nil {
		t.Fatal(err)
	}
	fb, err := store.NewFileBackend(path)
	if err != nil {
		t.Fatalf("new backend: %v", err)
	}

	if _, err := fb.Load(context.Background()); !errors.Is(err, store.ErrMalformed) {
		t.Errorf("expected ErrMalformed, got %v", err)
	}
}

func TestFileBackendLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	fb, err := store.NewFileBackend(filepath.Join(dir, "leaderboard.json"))
	if err != nil {
		t.Fatalf("new backend: %v", err)
	}
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := fb.Save(ctx, model.NewDocument()); err != nil {
			t.Fatalf("save %d: %v", i, err)
		}
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Errorf("expected only the data file, found %v", names)
	}
}

func TestLedgerUpdatePersistsWhenDirty(t *testing.T) {
	mb := store.NewMemoryBackend()
	ledger := store.NewLedger(mb)
	ctx := context.Background()

	err := ledger.Update(ctx, func(doc *model.Document) (bool, error) {
		doc.EnsureUser("u1").Balance = 4750.50
		return true, nil
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	err = ledger.View(ctx, func(doc *model.Document) error {
		if u := doc.Users["u1"]; u == nil || u.Balance != 4750.50 {
			t.Errorf("user after update = %+v", doc.Users["u1"])
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
}

func TestLedgerUpdateSkipsSaveWhenClean(t *testing.T) {
	mb := store.NewMemoryBackend()
	ledger := store.NewLedger(mb)
	ctx := context.Background()

	// Prime the backend, then make saves fail: a clean update must not
	// touch Save at all.
	if err := ledger.View(ctx, func(*model.Document) error { return nil }); err != nil {
		t.Fatalf("prime: %v", err)
	}
	mb.FailSaves = true

	err := ledger.Update(ctx, func(doc *model.Document) (bool, error) {
		doc.EnsureUser("ghost")
		return false, nil
	})
	if err != nil {
		t.Errorf("clean update should not save: %v", err)
	}

	mb.FailSaves = false
	err = ledger.View(ctx, func(doc *model.Document) error {
		if _, ok := doc.Users["ghost"]; ok {
			t.Error("clean update must not persist mutations")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
}

func TestLedgerUpdatePropagatesSaveFailure(t *testing.T) {
	mb := store.NewMemoryBackend()
	ledger := store.NewLedger(mb)
	ctx := context.Background()

	if err := ledger.View(ctx, func(*model.Document) error { return nil }); err != nil {
		t.Fatalf("prime: %v", err)
	}
	mb.FailSaves = true

	err := ledger.Update(ctx, func(doc *model.Document) (bool, error) {
		doc.EnsureUser("u1")
		return true, nil
	})
	if err == nil {
		t.Fatal("expected save failure to propagate")
	}

	// The lock must have been released: the next operation proceeds.
	mb.FailSaves = false
	if err := ledger.View(ctx, func(*model.Document) error { return nil }); err != nil {
		t.Errorf("ledger unusable after failed save: %v", err)
	}
}

func TestMemoryBackendLenientFields(t *testing.T) {
	mb := store.NewMemoryBackend()
	mb.Seed([]byte(`{"users":{"u1":{"balance":"oops","trades":"2"}},"monthly_winners":{}}`))

	doc, err := mb.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	u := doc.Users["u1"]
	if u.Balance != model.StartBalance {
		t.Errorf("junk balance = %v, want default %v", u.Balance, model.StartBalance)
	}
	if u.Trades != 2 {
		t.Errorf("numeric-string trades = %d, want 2", u.Trades)
	}
}
