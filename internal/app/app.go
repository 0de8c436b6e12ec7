package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	stdhttp "net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/betairc/internal/config"
	"github.com/vovakirdan/betairc/internal/core"
	logpkg "github.com/vovakirdan/betairc/internal/log"
	"github.com/vovakirdan/betairc/internal/proto"
	"github.com/vovakirdan/betairc/internal/store"
	"github.com/vovakirdan/betairc/internal/store/sqlite"
	transporthttp "github.com/vovakirdan/betairc/internal/transport/http"
	"github.com/vovakirdan/betairc/internal/transport/tcp"
)

// App wires together core and transport layers.
type App struct {
	cfg             config.Config
	hub             *core.Hub
	store           store.Store
	tcp             *tcp.Server
	http            *stdhttp.Server
	shutdownTimeout time.Duration
	log             *zerolog.Logger
}

// New constructs the application with provided configuration.
// An empty DatabasePath disables the ban store; an empty HTTPAddr disables the ops server.
func New(cfg config.Config, logger *zerolog.Logger) (*App, error) {
	var (
		st   store.Store
		bans store.BanStore
	)
	if cfg.DatabasePath != "" {
		s, err := sqlite.New(cfg.DatabasePath)
		if err != nil {
			return nil, fmt.Errorf("init store: %w", err)
		}
		st, bans = s, s
		logger.Info().Str("db_path", cfg.DatabasePath).Msg("database initialized")
	}

	hub := core.NewHub(
		core.WithLogger(logpkg.Component(logger, "hub")),
		core.WithServerName(cfg.ServerName),
		core.WithEchoPosts(cfg.EchoPosts),
	)
	dispatcher := core.NewDispatcher(hub, cfg.Admins, bans, logpkg.Component(logger, "dispatcher"))
	supervisor := core.NewSupervisor(hub, dispatcher, bans, core.SupervisorConfig{
		SendQueue:          cfg.SendQueue,
		MaxFramesPerMinute: cfg.MaxFramesPerMinute,
	}, logpkg.Component(logger, "supervisor"))

	a := &App{
		cfg:   cfg,
		hub:   hub,
		store: st,
		tcp: tcp.NewServer(supervisor, tcp.Options{
			MaxFrameBytes: cfg.MaxFrameBytes,
			IdleTimeout:   cfg.IdleTimeout,
			WriteTimeout:  cfg.WriteTimeout,
		}, logpkg.Component(logger, "tcp")),
		shutdownTimeout: cfg.ShutdownTimeout,
		log:             logger,
	}
	if cfg.HTTPAddr != "" {
		a.http = transporthttp.NewServer(hub, supervisor, bans, cfg, logpkg.Component(logger, "http"))
	}
	return a, nil
}

// Run listens on the configured chat address and blocks until context
// cancellation or fatal error.
func (a *App) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.cfg.ListenAddr())
	if err != nil {
		a.cleanup()
		return fmt.Errorf("listen: %w", err)
	}
	return a.Serve(ctx, ln)
}

// Serve runs the chat server on ln, plus the ops server when enabled.
func (a *App) Serve(ctx context.Context, ln net.Listener) error {
	serverErr := make(chan error, 2)

	go func() {
		if err := a.tcp.Serve(ln); err != nil && !errors.Is(err, tcp.ErrServerClosed) {
			serverErr <- fmt.Errorf("tcp server: %w", err)
		}
	}()
	a.log.Info().Str("addr", ln.Addr().String()).Str("server_name", a.cfg.ServerName).Msg("chat server started")

	if a.http != nil {
		go func() {
			if err := a.http.ListenAndServe(); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
				serverErr <- fmt.Errorf("http server: %w", err)
			}
		}()
		a.log.Info().Str("addr", a.http.Addr).Msg("http server started")
	}

	select {
	case err := <-serverErr:
		a.shutdown()
		return err
	case <-ctx.Done():
		return a.shutdown()
	}
}

// shutdown stops accepting, tells every client, closes them, and waits up to
// the shutdown timeout for connections to drain.
func (a *App) shutdown() error {
	a.log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
	defer cancel()

	a.hub.SendToAll(proto.EncodeSystem(proto.RecipientAll, "Server is shutting down."))
	a.hub.CloseAll("server shutdown")

	var errs []error
	if err := a.tcp.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("tcp shutdown: %w", err))
	}
	if a.http != nil {
		if err := a.http.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("http shutdown: %w", err))
		}
	}

	a.cleanup()
	return errors.Join(errs...)
}

// cleanup closes database and other resources.
func (a *App) cleanup() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close store")
		} else {
			a.log.Info().Msg("store closed")
		}
	}
}
