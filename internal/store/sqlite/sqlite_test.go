package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/vovakirdan/betairc/internal/store"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestBanLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	banned, err := s.IsBanned(ctx, "mallory")
	if err != nil {
		t.Fatalf("IsBanned failed: %v", err)
	}
	if banned {
		t.Fatalf("expected mallory not banned on empty store")
	}

	if err := s.AddBan(ctx, store.Ban{Username: "mallory", BannedBy: "admin", Reason: "spam"}); err != nil {
		t.Fatalf("AddBan failed: %v", err)
	}

	banned, err = s.IsBanned(ctx, "mallory")
	if err != nil {
		t.Fatalf("IsBanned failed: %v", err)
	}
	if !banned {
		t.Fatalf("expected mallory banned")
	}

	removed, err := s.RemoveBan(ctx, "mallory")
	if err != nil {
		t.Fatalf("RemoveBan failed: %v", err)
	}
	if !removed {
		t.Fatalf("expected ban to be removed")
	}

	removed, err = s.RemoveBan(ctx, "mallory")
	if err != nil {
		t.Fatalf("RemoveBan failed: %v", err)
	}
	if removed {
		t.Fatalf("expected second removal to report nothing removed")
	}
}

func TestAddBanReplacesExisting(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	if err := s.AddBan(ctx, store.Ban{Username: "eve", BannedBy: "admin", Reason: "one", CreatedAt: first}); err != nil {
		t.Fatalf("AddBan failed: %v", err)
	}
	if err := s.AddBan(ctx, store.Ban{Username: "eve", BannedBy: "root", Reason: "two"}); err != nil {
		t.Fatalf("AddBan failed: %v", err)
	}

	bans, err := s.ListBans(ctx)
	if err != nil {
		t.Fatalf("ListBans failed: %v", err)
	}
	if len(bans) != 1 {
		t.Fatalf("expected 1 ban, got %d", len(bans))
	}
	if bans[0].BannedBy != "root" || bans[0].Reason != "two" {
		t.Fatalf("expected updated ban, got %+v", bans[0])
	}
}

func TestListBansOrdered(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, name := range []string{"zed", "amy", "mike"} {
		if err := s.AddBan(ctx, store.Ban{Username: name, BannedBy: "admin"}); err != nil {
			t.Fatalf("AddBan %s failed: %v", name, err)
		}
	}

	bans, err := s.ListBans(ctx)
	if err != nil {
		t.Fatalf("ListBans failed: %v", err)
	}

	expected := []string{"amy", "mike", "zed"}
	if len(bans) != len(expected) {
		t.Fatalf("expected %d bans, got %d", len(expected), len(bans))
	}
	for i, ban := range bans {
		if ban.Username != expected[i] {
			t.Errorf("expected %s at index %d, got %s", expected[i], i, ban.Username)
		}
	}
}
