package proto

import (
	"encoding/json"
	"regexp"
	"strings"
	"unicode"
)

// CommandPrefix marks a line as a command rather than a channel post.
const CommandPrefix = "/"

// Command names understood by the server.
const (
	CmdNick  = "NICK"
	CmdJoin  = "JOIN"
	CmdLeave = "LEAVE"
	CmdList  = "LIST"
	CmdMsg   = "MSG"
	CmdWhois = "WHOIS"
	CmdKick  = "KICK"
	CmdBan   = "BAN"
	CmdUnban = "UNBAN"
	CmdQuit  = "QUIT"
	CmdHelp  = "HELP"
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_]{3,16}$`)

// ValidUsername reports whether name is 3-16 letters, digits or underscores.
func ValidUsername(name string) bool {
	return usernamePattern.MatchString(name)
}

// Command is a parsed command line. Content keeps its inner whitespace.
type Command struct {
	Name    string
	Target  string
	Content string
}

// ParseCommand splits "/<name> [target] [content...]" into at most three fields.
// The name is upper-cased. ok is false for lines that do not start with the
// command prefix; those are plain channel posts.
func ParseCommand(line string) (cmd Command, ok bool) {
	if !strings.HasPrefix(line, CommandPrefix) {
		return Command{}, false
	}

	fields := splitN(line[len(CommandPrefix):], 3)
	if len(fields) > 0 {
		cmd.Name = strings.ToUpper(fields[0])
	}
	if len(fields) > 1 {
		cmd.Target = fields[1]
	}
	if len(fields) > 2 {
		cmd.Content = fields[2]
	}
	return cmd, true
}

// FormatCommand renders a command line the way a client sends it.
func FormatCommand(name, target, content string) string {
	var b strings.Builder
	b.WriteString(CommandPrefix)
	b.WriteString(strings.ToLower(name))
	if target != "" {
		b.WriteByte(' ')
		b.WriteString(target)
	}
	if content != "" {
		b.WriteByte(' ')
		b.WriteString(content)
	}
	return b.String()
}

// ParseHandshake extracts the candidate username from the first frame of a
// connection. Both a bare name and {"username": "..."} are accepted; only a
// JSON object is treated as the structured form.
func ParseHandshake(frame string) string {
	frame = strings.TrimSpace(frame)
	if !strings.HasPrefix(frame, "{") {
		return frame
	}

	var hello Hello
	if err := json.Unmarshal([]byte(frame), &hello); err == nil {
		return strings.TrimSpace(hello.Username)
	}
	return frame
}

// splitN splits on runs of whitespace like a field split limited to n parts:
// the last part is the untouched remainder with only leading space removed.
func splitN(s string, n int) []string {
	var out []string
	s = strings.TrimLeftFunc(s, unicode.IsSpace)
	for s != "" {
		if len(out) == n-1 {
			out = append(out, strings.TrimRightFunc(s, unicode.IsSpace))
			break
		}
		end := strings.IndexFunc(s, unicode.IsSpace)
		if end < 0 {
			out = append(out, s)
			break
		}
		out = append(out, s[:end])
		s = strings.TrimLeftFunc(s[end:], unicode.IsSpace)
	}
	return out
}
