package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/betairc/internal/core"
	"github.com/vovakirdan/betairc/internal/store"
)

// APIHandlers serves read-only snapshots of the chat state.
type APIHandlers struct {
	hub        *core.Hub
	bans       store.BanStore
	serverName string
	startedAt  time.Time
	log        *zerolog.Logger
}

// NewAPIHandlers creates a new API handlers instance.
func NewAPIHandlers(hub *core.Hub, bans store.BanStore, serverName string, logger *zerolog.Logger) *APIHandlers {
	return &APIHandlers{
		hub:        hub,
		bans:       bans,
		serverName: serverName,
		startedAt:  time.Now(),
		log:        logger,
	}
}

// Health reports liveness.
// GET /health
func (h *APIHandlers) Health(c *gin.Context) {
	c.String(http.StatusOK, "ok")
}

// Stats summarises users and channels.
// GET /api/stats
func (h *APIHandlers) Stats(c *gin.Context) {
	reg := h.hub.Registry()
	c.JSON(http.StatusOK, StatsResponse{
		ServerName:    h.serverName,
		Version:       core.Version,
		Users:         reg.Len(),
		Channels:      len(reg.ListChannels()),
		StartedAt:     h.startedAt.UTC().Format(time.RFC3339),
		UptimeSeconds: int64(time.Since(h.startedAt).Seconds()),
	})
}

// Channels lists every channel.
// GET /api/channels
func (h *APIHandlers) Channels(c *gin.Context) {
	channels := h.hub.Registry().ListChannels()
	out := make([]ChannelResponse, 0, len(channels))
	for _, ch := range channels {
		out = append(out, channelToResponse(ch))
	}
	c.JSON(http.StatusOK, out)
}

// ChannelMembers lists the members of one channel. The leading '#' is optional.
// GET /api/channels/:name/members
func (h *APIHandlers) ChannelMembers(c *gin.Context) {
	name := core.NormalizeChannel(c.Param("name"))
	members, err := h.hub.Registry().ListMembers(name)
	if err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "channel not found"})
		return
	}
	c.JSON(http.StatusOK, members)
}

// Users lists connected users.
// GET /api/users
func (h *APIHandlers) Users(c *gin.Context) {
	infos := h.hub.Registry().Snapshot()
	out := make([]UserResponse, 0, len(infos))
	for _, info := range infos {
		out = append(out, userToResponse(info))
	}
	c.JSON(http.StatusOK, out)
}

// User returns one connected user.
// GET /api/users/:name
func (h *APIHandlers) User(c *gin.Context) {
	info, ok := h.hub.Registry().Lookup(c.Param("name"))
	if !ok {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "user not found"})
		return
	}
	c.JSON(http.StatusOK, userToResponse(info))
}

// Bans lists the ban records.
// GET /api/bans
func (h *APIHandlers) Bans(c *gin.Context) {
	if h.bans == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "ban store disabled"})
		return
	}
	bans, err := h.bans.ListBans(c.Request.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("failed to list bans")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}
	out := make([]BanResponse, 0, len(bans))
	for _, ban := range bans {
		out = append(out, banToResponse(ban))
	}
	c.JSON(http.StatusOK, out)
}
