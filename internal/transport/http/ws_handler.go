package http

import (
	"context"
	"errors"
	"io"
	stdhttp "net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/rs/zerolog"
)

// WSOptions tunes the WebSocket transport.
type WSOptions struct {
	MaxFrameBytes int
	WriteTimeout  time.Duration
}

// WSHandler upgrades HTTP connections and hands them to the connection handler.
// One text message carries one frame in each direction.
type WSHandler struct {
	conns ConnHandler
	opts  WSOptions
	log   *zerolog.Logger
}

// NewWSHandler builds a new WebSocket handler.
func NewWSHandler(conns ConnHandler, opts WSOptions, logger *zerolog.Logger) stdhttp.Handler {
	if opts.MaxFrameBytes <= 0 {
		opts.MaxFrameBytes = 4096
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 10 * time.Second
	}
	return &WSHandler{conns: conns, opts: opts, log: logger}
}

func (h *WSHandler) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	conn.SetReadLimit(int64(h.opts.MaxFrameBytes))

	h.conns.Serve(r.Context(), &wsConn{
		conn:         conn,
		remoteAddr:   r.RemoteAddr,
		writeTimeout: h.opts.WriteTimeout,
	})
}

// wsConn adapts a WebSocket connection to core.Conn.
type wsConn struct {
	conn         *websocket.Conn
	remoteAddr   string
	writeTimeout time.Duration
}

func (c *wsConn) ReadFrame(ctx context.Context) (string, error) {
	typ, data, err := c.conn.Read(ctx)
	if err != nil {
		switch websocket.CloseStatus(err) {
		case websocket.StatusNormalClosure, websocket.StatusGoingAway:
			return "", io.EOF
		}
		return "", err
	}
	if typ != websocket.MessageText {
		return "", errors.New("ws: binary frames are not supported")
	}
	return string(data), nil
}

func (c *wsConn) WriteFrame(ctx context.Context, frame []byte) error {
	ctx, cancel := context.WithTimeout(ctx, c.writeTimeout)
	defer cancel()
	return c.conn.Write(ctx, websocket.MessageText, frame)
}

func (c *wsConn) Close() error {
	return c.conn.Close(websocket.StatusNormalClosure, "closing")
}

func (c *wsConn) RemoteAddr() string {
	return c.remoteAddr
}
