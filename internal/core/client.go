package core

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// Transport is the write side of a connection. It is owned by the Client and
// closed exactly once, after the outbound queue has been flushed.
type Transport interface {
	WriteFrame(ctx context.Context, frame []byte) error
	Close() error
}

// Client is a connected participant. The ID is the identity handle; the
// username can change and is only authoritative inside the Registry.
type Client struct {
	ID          string
	RemoteAddr  string
	ConnectedAt time.Time

	name      atomic.Value
	transport Transport
	outbox    chan []byte
	done      chan struct{}
	closeOnce sync.Once
	transOnce sync.Once
}

// NewClient constructs a client with a bounded outbound queue.
func NewClient(id, remoteAddr string, t Transport, queue int) *Client {
	if queue <= 0 {
		queue = 64
	}
	c := &Client{
		ID:          id,
		RemoteAddr:  remoteAddr,
		ConnectedAt: time.Now(),
		transport:   t,
		outbox:      make(chan []byte, queue),
		done:        make(chan struct{}),
	}
	c.name.Store("")
	return c
}

// Username returns the name last assigned by the registry.
func (c *Client) Username() string {
	return c.name.Load().(string)
}

func (c *Client) setUsername(name string) {
	c.name.Store(name)
}

// Done is closed once the client has been shut down.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// enqueue appends a frame to the outbound queue without blocking.
// A full queue means the peer is not keeping up and counts as a transport failure.
func (c *Client) enqueue(frame []byte) error {
	select {
	case <-c.done:
		return ErrClientClosed
	default:
	}
	select {
	case c.outbox <- frame:
		return nil
	default:
		return fmt.Errorf("%w: send queue full", ErrTransportFailure)
	}
}

// Close stops the client. Frames already queued are still flushed by Pump.
func (c *Client) Close() {
	c.closeOnce.Do(func() { close(c.done) })
}

// Pump writes queued frames to the transport in FIFO order until the client is
// closed, the context ends, or a write fails. The transport is closed on return.
func (c *Client) Pump(ctx context.Context) error {
	defer c.closeTransport()

	for {
		select {
		case frame := <-c.outbox:
			if err := c.transport.WriteFrame(ctx, frame); err != nil {
				return fmt.Errorf("%w: %v", ErrTransportFailure, err)
			}
		case <-c.done:
			c.flush(ctx)
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (c *Client) flush(ctx context.Context) {
	for {
		select {
		case frame := <-c.outbox:
			if err := c.transport.WriteFrame(ctx, frame); err != nil {
				return
			}
		default:
			return
		}
	}
}

func (c *Client) closeTransport() {
	c.transOnce.Do(func() {
		if c.transport != nil {
			_ = c.transport.Close()
		}
	})
}
