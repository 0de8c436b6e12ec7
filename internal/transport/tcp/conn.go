package tcp

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"time"
)

// ErrFrameTooLarge is returned when a peer sends a line longer than the frame limit.
var ErrFrameTooLarge = errors.New("frame too large")

// Options tunes the line framing of a connection.
type Options struct {
	MaxFrameBytes int
	IdleTimeout   time.Duration
	WriteTimeout  time.Duration
}

func (o Options) withDefaults() Options {
	if o.MaxFrameBytes <= 0 {
		o.MaxFrameBytes = 4096
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 10 * time.Second
	}
	return o
}

// Conn adapts a net.Conn to newline-delimited frames.
type Conn struct {
	conn    net.Conn
	scanner *bufio.Scanner
	opts    Options
}

// NewConn wraps c. Inbound lines may end with "\n" or "\r\n".
func NewConn(c net.Conn, opts Options) *Conn {
	opts = opts.withDefaults()
	scanner := bufio.NewScanner(c)
	// Room for the terminator on top of the payload limit.
	scanner.Buffer(make([]byte, 0, min(opts.MaxFrameBytes+2, 4096)), opts.MaxFrameBytes+2)
	return &Conn{conn: c, scanner: scanner, opts: opts}
}

// ReadFrame returns the next line without its terminator. The idle timeout,
// when set, bounds how long the peer may stay silent.
func (c *Conn) ReadFrame(_ context.Context) (string, error) {
	if c.opts.IdleTimeout > 0 {
		if err := c.conn.SetReadDeadline(time.Now().Add(c.opts.IdleTimeout)); err != nil {
			return "", err
		}
	}
	if !c.scanner.Scan() {
		err := c.scanner.Err()
		switch {
		case err == nil:
			return "", fmt.Errorf("read frame: %w", io.EOF)
		case errors.Is(err, bufio.ErrTooLong):
			return "", fmt.Errorf("read frame: %w", ErrFrameTooLarge)
		default:
			return "", fmt.Errorf("read frame: %w", err)
		}
	}
	return strings.TrimSuffix(c.scanner.Text(), "\r"), nil
}

// WriteFrame writes one frame followed by a newline.
func (c *Conn) WriteFrame(_ context.Context, frame []byte) error {
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout)); err != nil {
		return err
	}
	buf := make([]byte, 0, len(frame)+1)
	buf = append(append(buf, frame...), '\n')
	if _, err := c.conn.Write(buf); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

// Close closes the underlying connection.
func (c *Conn) Close() error {
	return c.conn.Close()
}

// RemoteAddr reports the peer address.
func (c *Conn) RemoteAddr() string {
	if addr := c.conn.RemoteAddr(); addr != nil {
		return addr.String()
	}
	return ""
}
