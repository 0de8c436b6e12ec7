package core

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/betairc/internal/proto"
	"github.com/vovakirdan/betairc/internal/store"
	"github.com/vovakirdan/betairc/internal/utils"
)

// Conn is a framed, bidirectional connection as seen by the supervisor.
type Conn interface {
	Transport
	// ReadFrame blocks until one inbound frame is available.
	ReadFrame(ctx context.Context) (string, error)
	RemoteAddr() string
}

// State is a connection lifecycle stage.
type State int

const (
	StateConnecting State = iota
	StateHandshaking
	StateActive
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateHandshaking:
		return "handshaking"
	case StateActive:
		return "active"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// SupervisorConfig tunes per-connection behaviour.
type SupervisorConfig struct {
	SendQueue          int
	MaxFramesPerMinute int
}

// Supervisor runs the handshake and receive loop for each connection.
type Supervisor struct {
	hub        *Hub
	dispatcher *Dispatcher
	bans       store.BanStore
	cfg        SupervisorConfig
	log        *zerolog.Logger
	newID      func() string
}

// NewSupervisor wires a supervisor. bans may be nil.
func NewSupervisor(hub *Hub, dispatcher *Dispatcher, bans store.BanStore, cfg SupervisorConfig, logger *zerolog.Logger) *Supervisor {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	if cfg.SendQueue < 8 {
		cfg.SendQueue = 8
	}
	return &Supervisor{
		hub:        hub,
		dispatcher: dispatcher,
		bans:       bans,
		cfg:        cfg,
		log:        logger,
		newID:      utils.NewID,
	}
}

// Serve drives one connection until it closes. It always closes conn.
func (s *Supervisor) Serve(ctx context.Context, conn Conn) {
	log := s.log.With().Str("remote", conn.RemoteAddr()).Logger()
	log.Debug().Stringer("state", StateHandshaking).Msg("connection accepted")

	client := s.handshake(ctx, conn, &log)
	if client == nil {
		_ = conn.Close()
		log.Debug().Stringer("state", StateClosed).Msg("handshake failed")
		return
	}

	log = log.With().Str("client_id", client.ID).Logger()
	log.Debug().Stringer("state", StateActive).Msg("handshake complete")

	pumpDone := make(chan struct{})
	go func() {
		defer close(pumpDone)
		if err := client.Pump(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Warn().Err(err).Msg("write loop stopped")
			s.hub.Disconnect(client, "write failure")
		}
	}()

	reason := s.receive(ctx, conn, client, &log)

	s.hub.Disconnect(client, reason)
	<-pumpDone
	log.Debug().Stringer("state", StateClosed).Str("reason", reason).Msg("connection closed")
}

// handshake reads the first frame and registers the client. On failure an
// error response has been written and nil is returned.
func (s *Supervisor) handshake(ctx context.Context, conn Conn, log *zerolog.Logger) *Client {
	frame, err := conn.ReadFrame(ctx)
	if err != nil {
		log.Debug().Err(err).Msg("read handshake")
		return nil
	}

	username := proto.ParseHandshake(frame)
	if !proto.ValidUsername(username) {
		s.reject(ctx, conn, log, proto.CodeError, "Invalid username. Use 3-16 alphanumeric characters or underscores.", username)
		return nil
	}

	if s.bans != nil {
		banned, err := s.bans.IsBanned(ctx, username)
		if err != nil {
			log.Error().Err(err).Str("user", username).Msg("ban lookup failed")
			s.reject(ctx, conn, log, proto.CodeError, "Unable to check the ban list. Try again later.", username)
			return nil
		}
		if banned {
			s.reject(ctx, conn, log, proto.CodeForbidden, "You are banned from this server.", username)
			return nil
		}
	}

	client := NewClient(s.newID(), conn.RemoteAddr(), conn, s.cfg.SendQueue)
	if err := s.hub.Register(client, username); err != nil {
		msg := "Invalid username. Use 3-16 alphanumeric characters or underscores."
		if errors.Is(err, ErrDuplicateUsername) {
			msg = "Username already in use. Please choose another one."
		}
		s.reject(ctx, conn, log, proto.CodeError, msg, username)
		return nil
	}
	return client
}

func (s *Supervisor) reject(ctx context.Context, conn Conn, log *zerolog.Logger, code, msg, username string) {
	log.Info().Str("user", username).Str("code", code).Str("reason", msg).Msg("handshake rejected")
	if err := conn.WriteFrame(ctx, proto.EncodeResponse(code, msg)); err != nil {
		log.Debug().Err(err).Msg("write handshake rejection")
	}
}

// receive runs the active loop and returns why it ended.
func (s *Supervisor) receive(ctx context.Context, conn Conn, client *Client, log *zerolog.Logger) string {
	limiter := newRateLimiter(s.cfg.MaxFramesPerMinute)

	for {
		frame, err := conn.ReadFrame(ctx)
		if err != nil {
			select {
			case <-client.Done():
				return "closed by server"
			default:
			}
			if errors.Is(err, io.EOF) {
				return "peer closed"
			}
			log.Debug().Err(err).Msg("read frame")
			return "read error"
		}

		if strings.TrimSpace(frame) == "" {
			continue
		}
		if !limiter.allow(time.Now()) {
			s.hub.SendToClient(client, proto.EncodeResponse(proto.CodeError, "Rate limit exceeded. Slow down."))
			continue
		}

		log.Debug().Str("user", client.Username()).Int("bytes", len(frame)).Msg("frame received")
		if cmd, ok := proto.ParseCommand(frame); ok {
			if s.dispatcher.Dispatch(ctx, client, cmd) {
				return "quit"
			}
			continue
		}
		s.dispatcher.Post(client, frame)
	}
}
