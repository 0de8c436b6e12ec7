package core

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/vovakirdan/betairc/internal/proto"
)

var errPipeClosed = errors.New("pipe closed")

// pipeConn is an in-memory Conn: tests push lines into in and read frames from out.
type pipeConn struct {
	addr      string
	in        chan string
	out       chan []byte
	closed    chan struct{}
	closeOnce sync.Once
	failWrite atomic.Bool
}

func newPipeConn(addr string) *pipeConn {
	return &pipeConn{
		addr:   addr,
		in:     make(chan string, 16),
		out:    make(chan []byte, 256),
		closed: make(chan struct{}),
	}
}

func (p *pipeConn) ReadFrame(ctx context.Context) (string, error) {
	select {
	case line, ok := <-p.in:
		if !ok {
			return "", io.EOF
		}
		return line, nil
	case <-p.closed:
		return "", errPipeClosed
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (p *pipeConn) WriteFrame(_ context.Context, frame []byte) error {
	if p.failWrite.Load() {
		return errPipeClosed
	}
	select {
	case <-p.closed:
		return errPipeClosed
	default:
	}
	select {
	case p.out <- frame:
		return nil
	case <-p.closed:
		return errPipeClosed
	}
}

func (p *pipeConn) Close() error {
	p.closeOnce.Do(func() { close(p.closed) })
	return nil
}

func (p *pipeConn) RemoteAddr() string {
	return p.addr
}

func (p *pipeConn) isClosed() bool {
	select {
	case <-p.closed:
		return true
	default:
		return false
	}
}

// failWriteAfter makes every later write fail.
func (p *pipeConn) failWriteAfter() {
	p.failWrite.Store(true)
}

// send pushes a line as if the peer had written it.
func (p *pipeConn) send(line string) {
	p.in <- line
}

// mustFrame waits for the next frame written to a pipe that satisfies match.
func mustFrame(t *testing.T, ch <-chan []byte, match func(proto.Frame) bool) proto.Frame {
	t.Helper()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case data := <-ch:
			f := proto.Decode(data)
			if match(f) {
				return f
			}
		case <-deadline:
			t.Fatalf("expected frame not received")
			return proto.Frame{}
		}
	}
}

// noFrame asserts nothing matching arrives within a short window.
func noFrame(t *testing.T, ch <-chan []byte, match func(proto.Frame) bool) {
	t.Helper()

	deadline := time.After(100 * time.Millisecond)
	for {
		select {
		case data := <-ch:
			if f := proto.Decode(data); match(f) {
				t.Fatalf("unexpected frame: %s", data)
			}
		case <-deadline:
			return
		}
	}
}

func isResponse(code string) func(proto.Frame) bool {
	return func(f proto.Frame) bool {
		return f.Response != nil && f.Response.Code == code
	}
}

func isEvent(kind proto.Kind, contains string) func(proto.Frame) bool {
	return func(f proto.Frame) bool {
		return f.Event != nil && f.Event.Type == kind && strings.Contains(f.Event.Content, contains)
	}
}

func isChannelPost(sender, channel, content string) func(proto.Frame) bool {
	return func(f proto.Frame) bool {
		return f.Event != nil && f.Event.Type == proto.KindChannel &&
			f.Event.Sender == sender && f.Event.Recipient == channel && f.Event.Content == content
	}
}

// drain discards queued frames of a client that has no pump.
func drain(c *Client) {
	for {
		select {
		case <-c.outbox:
		default:
			return
		}
	}
}

// harness runs a full server core over in-memory pipes.
type harness struct {
	t          *testing.T
	ctx        context.Context
	hub        *Hub
	dispatcher *Dispatcher
	supervisor *Supervisor
	wg         sync.WaitGroup
}

func newHarness(t *testing.T, admins []string, opts ...HubOption) *harness {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub(opts...)
	dispatcher := NewDispatcher(hub, admins, nil, nil)
	h := &harness{
		t:          t,
		ctx:        ctx,
		hub:        hub,
		dispatcher: dispatcher,
		supervisor: NewSupervisor(hub, dispatcher, nil, SupervisorConfig{SendQueue: 64}, nil),
	}
	t.Cleanup(func() {
		cancel()
		h.wg.Wait()
	})
	return h
}

// connect opens a pipe, performs the handshake and waits for the welcome notice.
func (h *harness) connect(username string) *pipeConn {
	h.t.Helper()

	conn := h.dial()
	conn.send(username)
	mustFrame(h.t, conn.out, isEvent(proto.KindSystem, "Welcome to"))
	return conn
}

func (h *harness) dial() *pipeConn {
	conn := newPipeConn("127.0.0.1:5000")
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		h.supervisor.Serve(h.ctx, conn)
	}()
	return conn
}

func (h *harness) waitUntil(cond func() bool) {
	h.t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	h.t.Fatalf("condition not met in time")
}
