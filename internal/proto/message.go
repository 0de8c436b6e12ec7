package proto

import (
	"encoding/json"
	"time"
)

// Kind classifies an event frame.
type Kind string

const (
	KindChannel Kind = "channel"
	KindPrivate Kind = "private"
	KindSystem  Kind = "system"
)

// Status codes carried by response frames.
const (
	CodeOK           = "200"
	CodeError        = "400"
	CodeAuthRequired = "401"
	CodeForbidden    = "403"
	CodeNotFound     = "404"
)

const (
	// ServerSender is the sender name used for notices the server originates.
	ServerSender = "SERVER"
	// RecipientAll addresses a system notice to every connected client.
	RecipientAll = "all"
)

// Event is a message frame: channel posts, private messages and system notices.
type Event struct {
	Sender    string `json:"sender"`
	Type      Kind   `json:"type"`
	Recipient string `json:"recipient"`
	Content   string `json:"content"`
	Timestamp int64  `json:"timestamp"`
}

// Response acknowledges a command or reports why it failed.
type Response struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"`
}

// Hello is the structured form of the handshake frame.
type Hello struct {
	Username string `json:"username"`
}

// now is replaced in tests.
var now = time.Now

// EncodeEvent builds a self-describing event frame stamped with the current time.
func EncodeEvent(sender string, kind Kind, recipient, content string) []byte {
	return mustMarshal(Event{
		Sender:    sender,
		Type:      kind,
		Recipient: recipient,
		Content:   content,
		Timestamp: now().Unix(),
	})
}

// EncodeSystem is shorthand for a server-originated system notice.
func EncodeSystem(recipient, content string) []byte {
	return EncodeEvent(ServerSender, KindSystem, recipient, content)
}

// EncodeResponse builds a status frame.
func EncodeResponse(code, message string) []byte {
	return mustMarshal(Response{
		Code:      code,
		Message:   message,
		Timestamp: now().Unix(),
	})
}

// mustMarshal encodes flat string/int structs, which cannot fail.
func mustMarshal(v any) []byte {
	data, _ := json.Marshal(v)
	return data
}
