package client

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/betairc/internal/proto"
)

const (
	defaultChannel = "#general"
	historyReplay  = 10
	historyLimit   = 500
	quitMessage    = "Disconnecting"
)

// Session is one client connection to a chat server with its local view:
// joined channels, the channel being viewed, and per-channel history.
type Session struct {
	conn io.ReadWriteCloser
	log  *zerolog.Logger

	outMu sync.Mutex
	out   io.Writer

	mu       sync.Mutex
	username string
	current  string
	channels map[string]struct{}
	history  map[string][]string

	closed atomic.Bool
}

// Dial connects to addr and performs the handshake.
func Dial(ctx context.Context, addr, username string, out io.Writer, logger *zerolog.Logger) (*Session, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	s := NewSession(conn, username, out, logger)
	if err := s.Start(); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return s, nil
}

// NewSession wraps an established connection. Start must be called before use.
func NewSession(conn io.ReadWriteCloser, username string, out io.Writer, logger *zerolog.Logger) *Session {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Session{
		conn:     conn,
		log:      logger,
		out:      out,
		username: username,
		current:  defaultChannel,
		channels: map[string]struct{}{defaultChannel: {}},
		history:  map[string][]string{defaultChannel: nil},
	}
}

// Start sends the handshake: the bare username on its own line.
func (s *Session) Start() error {
	return s.Send(s.Username())
}

// Username is the name the server currently knows this session by.
func (s *Session) Username() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.username
}

// Current is the channel being viewed.
func (s *Session) Current() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// InChannel reports whether the session believes it is a member of channel.
func (s *Session) InChannel(channel string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.channels[channel]
	return ok
}

// Channels returns the joined channels sorted.
func (s *Session) Channels() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sortedChannelsLocked()
}

// Connected reports whether the connection is still usable.
func (s *Session) Connected() bool {
	return !s.closed.Load()
}

// Send writes one line to the server.
func (s *Session) Send(text string) error {
	if s.closed.Load() {
		return errors.New("not connected to server")
	}
	if _, err := io.WriteString(s.conn, text+"\n"); err != nil {
		s.closed.Store(true)
		return fmt.Errorf("send: %w", err)
	}
	return nil
}

// SendCommand formats and sends a command line.
func (s *Session) SendCommand(name, target, content string) error {
	return s.Send(proto.FormatCommand(name, target, content))
}

// Receive reads frames until the connection ends. A clean close by the server
// returns nil.
func (s *Session) Receive() error {
	reader := bufio.NewReader(s.conn)
	for {
		data, err := reader.ReadBytes('\n')
		if len(data) > 0 {
			s.Process(data)
		}
		if err != nil {
			wasOpen := !s.closed.Swap(true)
			if errors.Is(err, io.EOF) || !wasOpen {
				s.print(paint(colorRed, "Disconnected from server."))
				return nil
			}
			s.print(paint(colorRed, "Error receiving messages: "+err.Error()))
			return err
		}
	}
}

// Process renders one inbound frame and records it in history.
func (s *Session) Process(data []byte) {
	data = []byte(strings.TrimRight(string(data), "\r\n"))
	if len(data) == 0 {
		return
	}
	f := proto.Decode(data)
	s.trackRename(f)

	l, ok := s.render(f)
	if !ok {
		s.log.Debug().Bytes("frame", data).Msg("frame not addressed to us")
		return
	}
	s.display(l)
}

// trackRename follows our own nickname changes announced by the server.
func (s *Session) trackRename(f proto.Frame) {
	if f.Event == nil || f.Event.Type != proto.KindSystem || f.Event.Recipient != proto.RecipientAll {
		return
	}
	old, renamed, ok := strings.Cut(f.Event.Content, " is now known as ")
	if !ok {
		return
	}
	s.mu.Lock()
	if old == s.username {
		s.username = renamed
	}
	s.mu.Unlock()
}

// HandleInput interprets one line typed by the user. Local commands are
// handled here; everything else goes to the server. quit reports that the
// session should end.
func (s *Session) HandleInput(input string) (quit bool, err error) {
	if strings.TrimSpace(input) == "" {
		return false, nil
	}
	cmd, isCmd := proto.ParseCommand(input)
	if !isCmd {
		return false, s.Send(input)
	}

	switch cmd.Name {
	case proto.CmdHelp:
		s.print(helpText())
		return false, nil
	case "SWITCH":
		s.Switch(normalizeChannel(cmd.Target))
		return false, nil
	case "CLEAR":
		s.write(clearScreen)
		return false, nil
	case proto.CmdQuit:
		reason := strings.TrimSpace(cmd.Target + " " + cmd.Content)
		if reason == "" {
			reason = quitMessage
		}
		return true, s.SendCommand(proto.CmdQuit, "", reason)
	case proto.CmdJoin:
		if cmd.Target == "" {
			break
		}
		if err := s.Send(input); err != nil {
			return false, err
		}
		s.join(normalizeChannel(cmd.Target))
		return false, nil
	case proto.CmdLeave:
		if cmd.Target == "" {
			break
		}
		if err := s.Send(input); err != nil {
			return false, err
		}
		s.leave(normalizeChannel(cmd.Target))
		return false, nil
	}
	return false, s.Send(input)
}

// Switch changes the viewed channel and replays its recent history.
func (s *Session) Switch(channel string) bool {
	s.mu.Lock()
	if _, ok := s.channels[channel]; !ok {
		s.mu.Unlock()
		s.print(paint(colorRed, fmt.Sprintf("You are not in channel %s. Join it first with /join %s", channel, channel)))
		return false
	}
	s.current = channel
	history := s.history[channel]
	replay := history[max(0, len(history)-historyReplay):]
	lines := make([]string, 0, len(replay)+1)
	lines = append(lines, "\n"+paint(colorBold+colorBlue, fmt.Sprintf("===== Channel: %s =====", channel)))
	lines = append(lines, replay...)
	s.mu.Unlock()

	for _, l := range lines {
		s.print(l)
	}
	return true
}

// Close tells the server we are leaving and closes the connection.
func (s *Session) Close() error {
	if s.closed.Load() {
		return nil
	}
	_ = s.SendCommand(proto.CmdQuit, "", quitMessage)
	s.closed.Store(true)
	return s.conn.Close()
}

func (s *Session) join(channel string) {
	s.mu.Lock()
	s.channels[channel] = struct{}{}
	if _, ok := s.history[channel]; !ok {
		s.history[channel] = nil
	}
	s.mu.Unlock()
	s.Switch(channel)
}

func (s *Session) leave(channel string) {
	s.mu.Lock()
	delete(s.channels, channel)
	wasCurrent := channel == s.current
	next := ""
	if wasCurrent {
		if _, ok := s.channels[defaultChannel]; ok {
			next = defaultChannel
		} else if rest := s.sortedChannelsLocked(); len(rest) > 0 {
			next = rest[0]
		}
	}
	s.mu.Unlock()

	if next != "" {
		s.Switch(next)
	}
}

func (s *Session) display(l line) {
	s.mu.Lock()
	bucket := l.bucket
	if bucket == "" {
		bucket = s.current
	}
	h := append(s.history[bucket], l.text)
	if len(h) > historyLimit {
		h = h[len(h)-historyLimit:]
	}
	s.history[bucket] = h
	show := l.always || bucket == s.current
	s.mu.Unlock()

	if show {
		s.print(l.text)
	}
}

func (s *Session) sortedChannelsLocked() []string {
	out := make([]string, 0, len(s.channels))
	for ch := range s.channels {
		out = append(out, ch)
	}
	sort.Strings(out)
	return out
}

func (s *Session) print(text string) {
	s.write(text + "\n")
}

func (s *Session) write(text string) {
	s.outMu.Lock()
	defer s.outMu.Unlock()
	_, _ = io.WriteString(s.out, text)
}

func normalizeChannel(name string) string {
	name = strings.TrimSpace(name)
	if name != "" && !strings.HasPrefix(name, "#") {
		name = "#" + name
	}
	return name
}
