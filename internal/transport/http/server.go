package http

import (
	"context"
	stdhttp "net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/betairc/internal/config"
	"github.com/vovakirdan/betairc/internal/core"
	"github.com/vovakirdan/betairc/internal/store"
)

const readHeaderTimeout = 5 * time.Second

// ConnHandler drives one framed connection until it ends.
type ConnHandler interface {
	Serve(ctx context.Context, conn core.Conn)
}

// NewServer builds the ops HTTP server: health, read-only registry snapshots,
// the ban list and the WebSocket chat transport. bans may be nil.
func NewServer(hub *core.Hub, conns ConnHandler, bans store.BanStore, cfg config.Config, logger *zerolog.Logger) *stdhttp.Server {
	return &stdhttp.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           NewHandler(hub, conns, bans, cfg, logger),
		ReadHeaderTimeout: readHeaderTimeout,
	}
}

// NewHandler mounts /ws on a plain mux and everything else on the gin router.
// The upgrade must not go through gin's response writer.
func NewHandler(hub *core.Hub, conns ConnHandler, bans store.BanStore, cfg config.Config, logger *zerolog.Logger) stdhttp.Handler {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	mux := stdhttp.NewServeMux()
	if conns != nil {
		mux.Handle("/ws", NewWSHandler(conns, WSOptions{
			MaxFrameBytes: cfg.MaxFrameBytes,
			WriteTimeout:  cfg.WriteTimeout,
		}, logger))
	}
	mux.Handle("/", NewRouter(hub, bans, cfg, logger))
	return mux
}

// NewRouter wires the gin routes of the ops API.
func NewRouter(hub *core.Hub, bans store.BanStore, cfg config.Config, logger *zerolog.Logger) *gin.Engine {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery(), LoggerMiddleware(logger))

	api := NewAPIHandlers(hub, bans, cfg.ServerName, logger)
	router.GET("/health", api.Health)

	group := router.Group("/api")
	group.GET("/stats", api.Stats)
	group.GET("/channels", api.Channels)
	group.GET("/channels/:name/members", api.ChannelMembers)
	group.GET("/users", api.Users)
	group.GET("/users/:name", api.User)
	group.GET("/bans", api.Bans)

	return router
}
