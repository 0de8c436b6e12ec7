package core

import (
	"sort"
	"strings"
	"time"
)

const (
	// GeneralChannel receives every client on handshake and plain posts by default.
	GeneralChannel = "#general"
	// HelpChannel is the second channel that always exists.
	HelpChannel = "#help"

	channelPrefix = "#"
)

var defaultTopics = map[string]string{
	GeneralChannel: "General discussion",
	HelpChannel:    "Get help with the server",
}

// Channel groups usernames subscribed to the same broadcast stream.
// Membership is by name; the registry resolves names to clients at delivery time.
type Channel struct {
	Name      string
	Topic     string
	CreatedAt time.Time
	members   map[string]struct{}
}

// ChannelInfo is an immutable snapshot of a channel.
type ChannelInfo struct {
	Name      string    `json:"name"`
	Topic     string    `json:"topic"`
	CreatedAt time.Time `json:"created_at"`
	Members   []string  `json:"members"`
}

// NewChannel constructs an empty channel with the default topic for its name.
func NewChannel(name string) *Channel {
	name = NormalizeChannel(name)
	topic, ok := defaultTopics[name]
	if !ok {
		topic = "Welcome to " + name
	}
	return &Channel{
		Name:      name,
		Topic:     topic,
		CreatedAt: time.Now(),
		members:   make(map[string]struct{}),
	}
}

// NormalizeChannel trims the name and makes sure it starts with '#'.
func NormalizeChannel(name string) string {
	name = strings.TrimSpace(name)
	if !strings.HasPrefix(name, channelPrefix) {
		name = channelPrefix + name
	}
	return name
}

// IsDefaultChannel reports whether the channel must survive with zero members.
func IsDefaultChannel(name string) bool {
	_, ok := defaultTopics[name]
	return ok
}

// AddMember inserts a username. Returns true if newly added.
func (ch *Channel) AddMember(username string) bool {
	if _, exists := ch.members[username]; exists {
		return false
	}
	ch.members[username] = struct{}{}
	return true
}

// RemoveMember deletes a username. Returns true if removed.
func (ch *Channel) RemoveMember(username string) bool {
	if _, exists := ch.members[username]; !exists {
		return false
	}
	delete(ch.members, username)
	return true
}

// HasMember reports whether username is subscribed.
func (ch *Channel) HasMember(username string) bool {
	_, ok := ch.members[username]
	return ok
}

// Len returns the member count.
func (ch *Channel) Len() int {
	return len(ch.members)
}

// Empty returns true if no one is in the channel.
func (ch *Channel) Empty() bool {
	return len(ch.members) == 0
}

// Members returns the member names sorted.
func (ch *Channel) Members() []string {
	out := make([]string, 0, len(ch.members))
	for name := range ch.members {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func (ch *Channel) info() ChannelInfo {
	return ChannelInfo{
		Name:      ch.Name,
		Topic:     ch.Topic,
		CreatedAt: ch.CreatedAt,
		Members:   ch.Members(),
	}
}

func (ch *Channel) rename(oldName, newName string) {
	if ch.RemoveMember(oldName) {
		ch.AddMember(newName)
	}
}
