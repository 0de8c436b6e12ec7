package client

import (
	"fmt"

	"github.com/vovakirdan/betairc/internal/proto"
)

// ANSI colour codes.
const (
	colorReset   = "\033[0m"
	colorRed     = "\033[91m"
	colorGreen   = "\033[92m"
	colorYellow  = "\033[93m"
	colorBlue    = "\033[94m"
	colorMagenta = "\033[95m"
	colorCyan    = "\033[96m"
	colorWhite   = "\033[97m"
	colorBold    = "\033[1m"
)

const clearScreen = "\033[H\033[2J"

func paint(color, text string) string {
	return color + text + colorReset
}

// line is one rendered frame and the history bucket it belongs to.
// An empty bucket means the current channel.
type line struct {
	text   string
	bucket string
	// always is set for lines shown regardless of the current channel.
	always bool
}

// render turns a decoded frame into a display line. ok is false for frames
// that are not addressed to this user.
func (s *Session) render(f proto.Frame) (line, bool) {
	switch {
	case f.Response != nil:
		if f.Response.Code == proto.CodeOK {
			return line{text: paint(colorGreen, "[OK] "+f.Response.Message), always: true}, true
		}
		return line{text: paint(colorRed, fmt.Sprintf("[ERROR %s] %s", f.Response.Code, f.Response.Message)), always: true}, true

	case f.Event != nil:
		return s.renderEvent(f.Event)

	default:
		return line{text: paint(colorWhite, f.Text)}, true
	}
}

func (s *Session) renderEvent(e *proto.Event) (line, bool) {
	username := s.Username()

	switch e.Type {
	case proto.KindSystem:
		text := paint(colorYellow, "[SERVER] "+e.Content)
		if e.Sender != proto.ServerSender && e.Sender != "" {
			text = paint(colorYellow, fmt.Sprintf("[SERVER] %s %s", e.Sender, e.Content))
		}
		switch {
		case e.Recipient == proto.RecipientAll || e.Recipient == username:
			return line{text: text, always: true}, true
		case s.InChannel(e.Recipient):
			return line{text: text, bucket: e.Recipient}, true
		}
		return line{}, false

	case proto.KindChannel:
		if !s.InChannel(e.Recipient) {
			return line{}, false
		}
		color := colorCyan
		if e.Sender == username {
			color = colorGreen
		}
		return line{text: paint(color, fmt.Sprintf("[%s] %s: %s", e.Recipient, e.Sender, e.Content)), bucket: e.Recipient}, true

	case proto.KindPrivate:
		switch {
		case e.Recipient == username:
			return line{text: paint(colorMagenta, fmt.Sprintf("[PM from %s] %s", e.Sender, e.Content)), always: true}, true
		case e.Sender == username:
			return line{text: paint(colorMagenta, fmt.Sprintf("[PM to %s] %s", e.Recipient, e.Content)), always: true}, true
		}
		return line{}, false
	}
	return line{}, false
}

func helpText() string {
	cmd := func(c, desc string) string { return paint(colorYellow, c) + " - " + desc + "\n" }
	return "\n" + paint(colorBold+colorGreen, "=== BetaIRC Client Help ===") + "\n" +
		paint(colorCyan, "Available commands:") + "\n" +
		cmd("/nick <new_nick>", "Change your nickname") +
		cmd("/join <channel>", "Join a channel") +
		cmd("/leave <channel>", "Leave a channel") +
		cmd("/list [channels|#channel]", "List channels or users in a channel") +
		cmd("/msg <username> <message>", "Send private message") +
		cmd("/whois <username>", "Get information about a user") +
		cmd("/switch <channel>", "Switch to a different channel (client-side only)") +
		cmd("/quit [message]", "Disconnect from server") +
		cmd("/help", "Show this help message") +
		cmd("/clear", "Clear the screen (client-side only)") +
		"\n" + paint(colorCyan, "Messages sent without commands go to #general, or to your first joined channel once you leave it.") + "\n"
}
