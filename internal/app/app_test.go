package app

import (
	"bufio"
	"context"
	"net"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/betairc/internal/config"
	"github.com/vovakirdan/betairc/internal/proto"
)

type running struct {
	addr   string
	cancel context.CancelFunc
	done   chan error
}

func startApp(t *testing.T, cfg config.Config) *running {
	t.Helper()

	logger := zerolog.Nop()
	a, err := New(cfg, &logger)
	require.NoError(t, err)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	r := &running{addr: ln.Addr().String(), cancel: cancel, done: make(chan error, 1)}
	go func() { r.done <- a.Serve(ctx, ln) }()
	return r
}

func (r *running) stop(t *testing.T) {
	t.Helper()
	r.cancel()
	select {
	case err := <-r.done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("app did not stop")
	}
}

type lineClient struct {
	t    *testing.T
	conn net.Conn
	r    *bufio.Reader
}

func dial(t *testing.T, addr, username string) *lineClient {
	t.Helper()

	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	require.NoError(t, conn.SetDeadline(time.Now().Add(5*time.Second)))

	c := &lineClient{t: t, conn: conn, r: bufio.NewReader(conn)}
	c.send(username)
	return c
}

func (c *lineClient) send(line string) {
	c.t.Helper()
	_, err := c.conn.Write([]byte(line + "\n"))
	require.NoError(c.t, err)
}

func (c *lineClient) next() (proto.Frame, error) {
	line, err := c.r.ReadBytes('\n')
	if err != nil {
		return proto.Frame{}, err
	}
	return proto.Decode(line), nil
}

func (c *lineClient) expect(match func(proto.Frame) bool) proto.Frame {
	c.t.Helper()
	for {
		f, err := c.next()
		require.NoError(c.t, err)
		if match(f) {
			return f
		}
	}
}

func content(prefix string) func(proto.Frame) bool {
	return func(f proto.Frame) bool {
		return f.Event != nil && strings.HasPrefix(f.Event.Content, prefix)
	}
}

func testConfig(t *testing.T) config.Config {
	cfg := config.Default()
	cfg.HTTPAddr = ""
	cfg.DatabasePath = filepath.Join(t.TempDir(), "bans.db")
	cfg.ServerName = "TestIRC"
	cfg.ShutdownTimeout = 2 * time.Second
	return cfg
}

func TestGracefulShutdownNotifiesClients(t *testing.T) {
	r := startApp(t, testConfig(t))

	alice := dial(t, r.addr, "alice")
	alice.expect(content("Welcome to TestIRC v"))

	r.stop(t)

	alice.expect(content("Server is shutting down."))
	var err error
	for err == nil {
		_, err = alice.next()
	}
}

func TestBansSurviveRestart(t *testing.T) {
	cfg := testConfig(t)
	cfg.Admins = []string{"root"}

	first := startApp(t, cfg)
	root := dial(t, first.addr, "root")
	root.expect(content("Welcome to"))
	root.send("/ban mallory spam")
	f := root.expect(func(f proto.Frame) bool { return f.Response != nil })
	require.Equal(t, proto.CodeOK, f.Response.Code)
	first.stop(t)

	second := startApp(t, cfg)
	defer second.stop(t)

	mallory := dial(t, second.addr, "mallory")
	f = mallory.expect(func(f proto.Frame) bool { return f.Response != nil })
	require.Equal(t, proto.CodeForbidden, f.Response.Code)
	require.Equal(t, "You are banned from this server.", f.Response.Message)
}

func TestRunWithoutStore(t *testing.T) {
	cfg := testConfig(t)
	cfg.DatabasePath = ""
	r := startApp(t, cfg)
	defer r.stop(t)

	alice := dial(t, r.addr, "alice")
	alice.expect(content("Welcome to"))
	alice.send("/list users")
	f := alice.expect(content("Connected users"))
	require.Equal(t, "Connected users (1): alice", f.Event.Content)
}
