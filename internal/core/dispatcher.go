package core

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/betairc/internal/proto"
	"github.com/vovakirdan/betairc/internal/store"
)

type handlerFunc func(ctx context.Context, c *Client, cmd proto.Command) (quit bool, err error)

// Dispatcher interprets parsed commands from registered clients against the hub.
type Dispatcher struct {
	hub      *Hub
	admins   map[string]struct{}
	bans     store.BanStore
	log      *zerolog.Logger
	handlers map[string]handlerFunc
}

// NewDispatcher builds a dispatcher. bans may be nil, in which case BAN only
// disconnects and UNBAN is refused.
func NewDispatcher(hub *Hub, admins []string, bans store.BanStore, logger *zerolog.Logger) *Dispatcher {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	d := &Dispatcher{
		hub:    hub,
		admins: make(map[string]struct{}, len(admins)),
		bans:   bans,
		log:    logger,
	}
	for _, name := range admins {
		d.admins[name] = struct{}{}
	}
	d.handlers = map[string]handlerFunc{
		proto.CmdNick:  d.nick,
		proto.CmdJoin:  d.join,
		proto.CmdLeave: d.leave,
		proto.CmdList:  d.list,
		proto.CmdMsg:   d.msg,
		proto.CmdWhois: d.whois,
		proto.CmdKick:  d.kick,
		proto.CmdBan:   d.ban,
		proto.CmdUnban: d.unban,
		proto.CmdQuit:  d.quit,
		proto.CmdHelp:  d.help,
	}
	return d
}

// Dispatch runs one command for c. Validation failures are answered with a
// response frame to c only. quit reports that the connection should end.
func (d *Dispatcher) Dispatch(ctx context.Context, c *Client, cmd proto.Command) (quit bool) {
	handler, ok := d.handlers[cmd.Name]
	if !ok {
		d.reply(c, coreError(proto.CodeError, ErrUnknownCommand, "Unknown command: "+cmd.Name))
		return false
	}

	quit, err := handler(ctx, c, cmd)
	if err != nil {
		d.log.Debug().Err(err).Str("user", c.Username()).Str("command", cmd.Name).Msg("command rejected")
		d.reply(c, err)
	}
	return quit
}

// Post handles a line that is not a command.
func (d *Dispatcher) Post(c *Client, text string) {
	if _, err := d.hub.Post(c, text); err != nil {
		d.reply(c, coreError(proto.CodeError, err, "You are not in any channel. Join a channel first."))
	}
}

// IsAdmin reports whether username is in the static admin list.
func (d *Dispatcher) IsAdmin(username string) bool {
	_, ok := d.admins[username]
	return ok
}

func (d *Dispatcher) reply(c *Client, err error) {
	d.hub.SendToClient(c, responseFor(err))
}

func (d *Dispatcher) notify(c *Client, content string) {
	d.hub.SendToClient(c, proto.EncodeSystem(c.Username(), content))
}

func (d *Dispatcher) ok(c *Client, message string) {
	d.hub.SendToClient(c, proto.EncodeResponse(proto.CodeOK, message))
}

func usage(text string) error {
	return coreError(proto.CodeError, ErrMissingArgument, "Usage: "+text)
}

func forbidden() error {
	return coreError(proto.CodeForbidden, ErrPermissionDenied, "You don't have permission to use this command.")
}

func userNotFound(name string) error {
	return coreError(proto.CodeNotFound, ErrUserNotFound, fmt.Sprintf("User %s not found.", name))
}

func channelNotFound(name string) error {
	return coreError(proto.CodeNotFound, ErrChannelNotFound, fmt.Sprintf("Channel %s not found.", name))
}
