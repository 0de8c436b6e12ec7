package core

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/vovakirdan/betairc/internal/proto"
)

// ClientInfo is a snapshot of a registered client.
type ClientInfo struct {
	ID          string    `json:"id"`
	Username    string    `json:"username"`
	RemoteAddr  string    `json:"remote_addr"`
	ConnectedAt time.Time `json:"connected_at"`
	Channels    []string  `json:"channels"`
}

// Registry owns connected clients and channel membership. One lock guards
// both so that operations crossing them (rename, disconnect) are atomic.
type Registry struct {
	mu       sync.RWMutex
	clients  map[string]*Client
	names    map[string]*Client
	channels map[string]*Channel
}

// NewRegistry constructs a registry holding only the default channels.
func NewRegistry() *Registry {
	r := &Registry{
		clients:  make(map[string]*Client),
		names:    make(map[string]*Client),
		channels: make(map[string]*Channel),
	}
	for name := range defaultTopics {
		r.channels[name] = NewChannel(name)
	}
	return r
}

// RegisterClient assigns username to c and subscribes it to #general.
func (r *Registry) RegisterClient(c *Client, username string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.registerLocked(c, username)
}

// RenameClient changes the username of c everywhere it appears, or not at all.
func (r *Registry) RenameClient(c *Client, newName string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.renameLocked(c, newName)
}

// RemoveClient drops c from every channel and the username index.
// It is idempotent; removed is false when c was not registered.
func (r *Registry) RemoveClient(c *Client) (username string, removed bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.removeLocked(c)
}

// CreateOrGetChannel returns the named channel, creating it with the default topic if absent.
func (r *Registry) CreateOrGetChannel(name string) ChannelInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	ch, _ := r.channelLocked(name)
	return ch.info()
}

// AddMember subscribes a registered username, auto-creating the channel.
func (r *Registry) AddMember(channel, username string) (created bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, created, err = r.addMemberLocked(channel, username)
	return created, err
}

// RemoveMember unsubscribes username. The channel is deleted when it becomes
// empty unless it is a default channel.
func (r *Registry) RemoveMember(channel, username string) (deleted bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, deleted, err = r.removeMemberLocked(channel, username)
	return deleted, err
}

// FindByUsername looks up a live client by its current name.
func (r *Registry) FindByUsername(username string) (*Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.names[username]
	return c, ok
}

// Lookup returns a snapshot of the named client.
func (r *Registry) Lookup(username string) (ClientInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.names[username]
	if !ok {
		return ClientInfo{}, false
	}
	return r.infoLocked(username, c), true
}

// Snapshot returns every registered client sorted by username.
func (r *Registry) Snapshot() []ClientInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ClientInfo, 0, len(r.names))
	for name, c := range r.names {
		out = append(out, r.infoLocked(name, c))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out
}

// ListChannels returns every channel sorted by name.
func (r *Registry) ListChannels() []ChannelInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ChannelInfo, 0, len(r.channels))
	for _, ch := range r.channels {
		out = append(out, ch.info())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Channel returns a snapshot of one channel.
func (r *Registry) Channel(name string) (ChannelInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ch, ok := r.channels[NormalizeChannel(name)]
	if !ok {
		return ChannelInfo{}, false
	}
	return ch.info(), true
}

// ListMembers returns the sorted member names of a channel.
func (r *Registry) ListMembers(channel string) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ch, ok := r.channels[NormalizeChannel(channel)]
	if !ok {
		return nil, ErrChannelNotFound
	}
	return ch.Members(), nil
}

// Usernames returns every registered username sorted.
func (r *Registry) Usernames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.names))
	for name := range r.names {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// ChannelsOf returns the sorted channels username belongs to.
func (r *Registry) ChannelsOf(username string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.channelsOfLocked(username)
}

// Len returns the number of registered clients.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.names)
}

// Clients returns a snapshot of every registered client.
func (r *Registry) Clients() []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Client, 0, len(r.clients))
	for _, c := range r.clients {
		out = append(out, c)
	}
	return out
}

// ==== lock held by caller ====

func (r *Registry) registerLocked(c *Client, username string) error {
	if !proto.ValidUsername(username) {
		return ErrInvalidUsername
	}
	if _, taken := r.names[username]; taken {
		return ErrDuplicateUsername
	}
	if _, exists := r.clients[c.ID]; exists {
		return ErrDuplicateUsername
	}
	c.setUsername(username)
	r.clients[c.ID] = c
	r.names[username] = c
	r.channels[GeneralChannel].AddMember(username)
	return nil
}

func (r *Registry) renameLocked(c *Client, newName string) (string, error) {
	newName = strings.TrimSpace(newName)
	if !proto.ValidUsername(newName) {
		return "", ErrInvalidUsername
	}
	if _, ok := r.clients[c.ID]; !ok {
		return "", ErrUserNotFound
	}
	oldName := c.Username()
	if _, taken := r.names[newName]; taken {
		return "", ErrDuplicateUsername
	}

	delete(r.names, oldName)
	r.names[newName] = c
	for _, ch := range r.channels {
		ch.rename(oldName, newName)
	}
	c.setUsername(newName)
	return oldName, nil
}

func (r *Registry) removeLocked(c *Client) (string, bool) {
	if _, ok := r.clients[c.ID]; !ok {
		return "", false
	}
	username := c.Username()
	delete(r.clients, c.ID)
	if r.names[username] == c {
		delete(r.names, username)
	}
	for name, ch := range r.channels {
		if ch.RemoveMember(username) && ch.Empty() && !IsDefaultChannel(name) {
			delete(r.channels, name)
		}
	}
	return username, true
}

func (r *Registry) channelLocked(name string) (*Channel, bool) {
	name = NormalizeChannel(name)
	if ch, ok := r.channels[name]; ok {
		return ch, false
	}
	ch := NewChannel(name)
	r.channels[name] = ch
	return ch, true
}

func (r *Registry) addMemberLocked(channel, username string) (*Channel, bool, error) {
	if _, ok := r.names[username]; !ok {
		return nil, false, ErrUserNotFound
	}
	ch, created := r.channelLocked(channel)
	ch.AddMember(username)
	return ch, created, nil
}

func (r *Registry) removeMemberLocked(channel, username string) (*Channel, bool, error) {
	name := NormalizeChannel(channel)
	ch, ok := r.channels[name]
	if !ok {
		return nil, false, ErrChannelNotFound
	}
	if !ch.RemoveMember(username) {
		return ch, false, ErrNotAMember
	}
	if ch.Empty() && !IsDefaultChannel(name) {
		delete(r.channels, name)
		return ch, true, nil
	}
	return ch, false, nil
}

func (r *Registry) infoLocked(username string, c *Client) ClientInfo {
	return ClientInfo{
		ID:          c.ID,
		Username:    username,
		RemoteAddr:  c.RemoteAddr,
		ConnectedAt: c.ConnectedAt,
		Channels:    r.channelsOfLocked(username),
	}
}

func (r *Registry) channelsOfLocked(username string) []string {
	var out []string
	for name, ch := range r.channels {
		if ch.HasMember(username) {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// postTargetLocked picks #general when subscribed, otherwise the
// lexicographically smallest channel the user is in.
func (r *Registry) postTargetLocked(username string) (*Channel, error) {
	if ch := r.channels[GeneralChannel]; ch.HasMember(username) {
		return ch, nil
	}
	var target *Channel
	for _, ch := range r.channels {
		if !ch.HasMember(username) {
			continue
		}
		if target == nil || ch.Name < target.Name {
			target = ch
		}
	}
	if target == nil {
		return nil, ErrNoChannel
	}
	return target, nil
}

// recipientsLocked resolves channel members to live clients.
func (r *Registry) recipientsLocked(ch *Channel, exclude *Client) []*Client {
	out := make([]*Client, 0, ch.Len())
	for name := range ch.members {
		c, ok := r.names[name]
		if !ok || c == exclude {
			continue
		}
		out = append(out, c)
	}
	return out
}
