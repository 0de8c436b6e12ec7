package http

import (
	"time"

	"github.com/vovakirdan/betairc/internal/core"
	"github.com/vovakirdan/betairc/internal/store"
)

// ChannelResponse represents a channel in API responses.
type ChannelResponse struct {
	Name      string   `json:"name"`
	Topic     string   `json:"topic"`
	Users     int      `json:"users"`
	Members   []string `json:"members"`
	CreatedAt string   `json:"created_at"`
}

// UserResponse represents a connected user in API responses.
type UserResponse struct {
	Username    string   `json:"username"`
	Channels    []string `json:"channels"`
	ConnectedAt string   `json:"connected_at"`
}

// BanResponse represents a ban record in API responses.
type BanResponse struct {
	Username  string `json:"username"`
	BannedBy  string `json:"banned_by"`
	Reason    string `json:"reason,omitempty"`
	CreatedAt string `json:"created_at"`
}

// StatsResponse summarises the server state.
type StatsResponse struct {
	ServerName    string `json:"server_name"`
	Version       string `json:"version"`
	Users         int    `json:"users"`
	Channels      int    `json:"channels"`
	StartedAt     string `json:"started_at"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

// ErrorResponse represents an error response body.
type ErrorResponse struct {
	Error string `json:"error"`
}

func channelToResponse(ch core.ChannelInfo) ChannelResponse {
	members := ch.Members
	if members == nil {
		members = []string{}
	}
	return ChannelResponse{
		Name:      ch.Name,
		Topic:     ch.Topic,
		Users:     len(members),
		Members:   members,
		CreatedAt: ch.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func userToResponse(info core.ClientInfo) UserResponse {
	channels := info.Channels
	if channels == nil {
		channels = []string{}
	}
	return UserResponse{
		Username:    info.Username,
		Channels:    channels,
		ConnectedAt: info.ConnectedAt.UTC().Format(time.RFC3339),
	}
}

func banToResponse(ban store.Ban) BanResponse {
	return BanResponse{
		Username:  ban.Username,
		BannedBy:  ban.BannedBy,
		Reason:    ban.Reason,
		CreatedAt: ban.CreatedAt.UTC().Format(time.RFC3339),
	}
}
