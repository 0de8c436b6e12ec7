package http

import (
	"context"
	"database/sql"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/vovakirdan/betairc/internal/config"
	"github.com/vovakirdan/betairc/internal/core"
	"github.com/vovakirdan/betairc/internal/store"
	"github.com/vovakirdan/betairc/internal/store/sqlite"
)

type testEnv struct {
	hub  *core.Hub
	bans store.Store
	ts   *httptest.Server
}

// createTestStore creates an in-memory SQLite ban store.
func createTestStore(t *testing.T) store.Store {
	t.Helper()

	st, err := sqlite.NewWithSetup(":memory:", func(db *sql.DB) error {
		_, err := db.Exec(sqlite.Schema)
		return err
	})
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

// startTestServer serves the production handler over httptest with a live supervisor.
func startTestServer(t *testing.T, withBans bool) *testEnv {
	t.Helper()

	env := &testEnv{hub: core.NewHub()}
	var bans store.BanStore
	if withBans {
		env.bans = createTestStore(t)
		bans = env.bans
	}

	dispatcher := core.NewDispatcher(env.hub, []string{"admin"}, bans, nil)
	supervisor := core.NewSupervisor(env.hub, dispatcher, bans, core.SupervisorConfig{}, nil)

	cfg := config.Default()
	cfg.WriteTimeout = time.Second
	env.ts = httptest.NewServer(NewServer(env.hub, supervisor, bans, cfg, nil).Handler)
	t.Cleanup(func() {
		env.hub.CloseAll("test done")
		env.ts.Close()
	})
	return env
}

func testContext(t *testing.T) context.Context {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}
