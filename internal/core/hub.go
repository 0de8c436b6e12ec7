package core

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/betairc/internal/proto"
)

// Version is reported in the welcome notice.
const Version = "1.0.0"

// Hub is the delivery side of the registry. Mutations that produce notices
// enqueue them while the registry lock is held, so every recipient observes
// notices in the order the mutations were accepted. Enqueueing never blocks;
// a recipient whose queue is full is disconnected after the lock is released.
type Hub struct {
	reg        *Registry
	log        *zerolog.Logger
	serverName string
	echoPosts  bool
}

// HubOption customises a Hub.
type HubOption func(h *Hub)

// WithLogger sets the hub logger.
func WithLogger(logger *zerolog.Logger) HubOption {
	return func(h *Hub) {
		if logger != nil {
			h.log = logger
		}
	}
}

// WithServerName sets the name shown in the welcome notice.
func WithServerName(name string) HubOption {
	return func(h *Hub) {
		if name != "" {
			h.serverName = name
		}
	}
}

// WithEchoPosts controls whether a channel post is also delivered to its sender.
func WithEchoPosts(echo bool) HubOption {
	return func(h *Hub) {
		h.echoPosts = echo
	}
}

// NewHub creates a hub over a fresh registry.
func NewHub(opts ...HubOption) *Hub {
	nop := zerolog.Nop()
	h := &Hub{
		reg:        NewRegistry(),
		log:        &nop,
		serverName: "BetaIRC",
		echoPosts:  true,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Registry exposes the read side for listings and lookups.
func (h *Hub) Registry() *Registry {
	return h.reg
}

// batch collects recipients whose delivery failed while the lock was held.
type batch struct {
	failed []*Client
}

func (b *batch) send(c *Client, frame []byte) bool {
	if err := c.enqueue(frame); err != nil {
		b.failed = append(b.failed, c)
		return false
	}
	return true
}

// finish disconnects every recipient that could not be delivered to.
func (h *Hub) finish(b *batch) {
	for _, c := range b.failed {
		h.log.Warn().Str("client_id", c.ID).Str("user", c.Username()).Msg("delivery failed, dropping client")
		h.Disconnect(c, "delivery failure")
	}
}

// ==== BroadcastEngine ====

// SendToClient delivers a frame to one client. Failure disconnects that client.
func (h *Hub) SendToClient(c *Client, frame []byte) {
	var b batch
	b.send(c, frame)
	h.finish(&b)
}

// SendToChannel delivers to the channel's current members, except exclude.
func (h *Hub) SendToChannel(channel string, frame []byte, exclude *Client) {
	var b batch
	h.reg.mu.Lock()
	if ch, ok := h.reg.channels[NormalizeChannel(channel)]; ok {
		h.channelLocked(&b, ch, frame, exclude)
	}
	h.reg.mu.Unlock()
	h.finish(&b)
}

// SendToAll delivers to every registered client.
func (h *Hub) SendToAll(frame []byte) {
	var b batch
	h.reg.mu.Lock()
	h.allLocked(&b, frame)
	h.reg.mu.Unlock()
	h.finish(&b)
}

// SendToUsername delivers to the named client. It returns false when the
// user is not connected or the delivery failed.
func (h *Hub) SendToUsername(username string, frame []byte) bool {
	var b batch
	h.reg.mu.Lock()
	c, ok := h.reg.names[username]
	if ok {
		ok = b.send(c, frame)
	}
	h.reg.mu.Unlock()
	h.finish(&b)
	return ok
}

func (h *Hub) channelLocked(b *batch, ch *Channel, frame []byte, exclude *Client) {
	for _, c := range h.reg.recipientsLocked(ch, exclude) {
		b.send(c, frame)
	}
}

func (h *Hub) allLocked(b *batch, frame []byte) {
	for _, c := range h.reg.clients {
		b.send(c, frame)
	}
}

// ==== linearized operations ====

// Register adds c under username, subscribes it to #general, sends the
// welcome notice and announces the arrival.
func (h *Hub) Register(c *Client, username string) error {
	var b batch
	h.reg.mu.Lock()
	if err := h.reg.registerLocked(c, username); err != nil {
		h.reg.mu.Unlock()
		return err
	}
	welcome := fmt.Sprintf("Welcome to %s v%s! There are %d users online.\nType /help for available commands.",
		h.serverName, Version, len(h.reg.names))
	b.send(c, proto.EncodeSystem(username, welcome))
	h.allLocked(&b, proto.EncodeSystem(proto.RecipientAll, username+" has joined the server"))
	h.channelLocked(&b, h.reg.channels[GeneralChannel],
		proto.EncodeSystem(GeneralChannel, fmt.Sprintf("%s has joined %s", username, GeneralChannel)), nil)
	h.reg.mu.Unlock()
	h.finish(&b)

	h.log.Info().Str("client_id", c.ID).Str("user", username).Str("remote", c.RemoteAddr).Msg("user registered")
	return nil
}

// Rename changes the username of c and announces it to everyone.
func (h *Hub) Rename(c *Client, newName string) error {
	var b batch
	h.reg.mu.Lock()
	oldName, err := h.reg.renameLocked(c, newName)
	if err != nil {
		h.reg.mu.Unlock()
		return err
	}
	h.allLocked(&b, proto.EncodeSystem(proto.RecipientAll, fmt.Sprintf("%s is now known as %s", oldName, c.Username())))
	h.reg.mu.Unlock()
	h.finish(&b)

	h.log.Info().Str("client_id", c.ID).Str("old", oldName).Str("new", c.Username()).Msg("user renamed")
	return nil
}

// Join subscribes c to channel, notifies the channel and sends the joiner the
// topic and member list.
func (h *Hub) Join(c *Client, channel string) (ChannelInfo, error) {
	var b batch
	h.reg.mu.Lock()
	username := c.Username()
	ch, created, err := h.reg.addMemberLocked(channel, username)
	if err != nil {
		h.reg.mu.Unlock()
		return ChannelInfo{}, err
	}
	info := ch.info()
	h.channelLocked(&b, ch, proto.EncodeSystem(ch.Name, fmt.Sprintf("%s has joined %s", username, ch.Name)), nil)
	b.send(c, proto.EncodeSystem(username, fmt.Sprintf("Topic for %s: %s", ch.Name, ch.Topic)))
	b.send(c, proto.EncodeSystem(username, fmt.Sprintf("Users in %s: %s", ch.Name, strings.Join(info.Members, ", "))))
	h.reg.mu.Unlock()
	h.finish(&b)

	h.log.Info().Str("user", username).Str("channel", info.Name).Bool("created", created).Msg("joined channel")
	return info, nil
}

// Leave unsubscribes c from channel and notifies the remaining members.
func (h *Hub) Leave(c *Client, channel string) error {
	var b batch
	h.reg.mu.Lock()
	username := c.Username()
	ch, deleted, err := h.reg.removeMemberLocked(channel, username)
	if err != nil {
		h.reg.mu.Unlock()
		return err
	}
	h.channelLocked(&b, ch, proto.EncodeSystem(ch.Name, fmt.Sprintf("%s has left %s", username, ch.Name)), nil)
	h.reg.mu.Unlock()
	h.finish(&b)

	h.log.Info().Str("user", username).Str("channel", ch.Name).Bool("deleted", deleted).Msg("left channel")
	return nil
}

// Post routes plain text from c to its default channel and returns the channel used.
func (h *Hub) Post(c *Client, text string) (string, error) {
	var b batch
	h.reg.mu.Lock()
	username := c.Username()
	ch, err := h.reg.postTargetLocked(username)
	if err != nil {
		h.reg.mu.Unlock()
		return "", err
	}
	var exclude *Client
	if !h.echoPosts {
		exclude = c
	}
	h.channelLocked(&b, ch, proto.EncodeEvent(username, proto.KindChannel, ch.Name, text), exclude)
	h.reg.mu.Unlock()
	h.finish(&b)
	return ch.Name, nil
}

// Disconnect removes c from the registry, announces the departure and shuts
// the client down. Repeated calls are no-ops apart from closing the client.
func (h *Hub) Disconnect(c *Client, reason string) {
	var b batch
	h.reg.mu.Lock()
	username, removed := h.reg.removeLocked(c)
	if removed {
		h.allLocked(&b, proto.EncodeSystem(proto.RecipientAll, username+" has left the server."))
	}
	h.reg.mu.Unlock()
	c.Close()

	if removed {
		h.log.Info().Str("client_id", c.ID).Str("user", username).Str("reason", reason).Msg("user disconnected")
	}
	h.finish(&b)
}

// CloseAll disconnects every registered client.
func (h *Hub) CloseAll(reason string) {
	for _, c := range h.reg.Clients() {
		h.Disconnect(c, reason)
	}
}
