package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/vovakirdan/betairc/internal/proto"
	"github.com/vovakirdan/betairc/internal/store"
)

const helpText = "Available commands:\n" +
	"/nick <new_nickname> - Change your nickname\n" +
	"/join <channel> - Join a channel\n" +
	"/leave <channel> - Leave a channel\n" +
	"/list [channels|#channel] - List channels or users in a channel\n" +
	"/msg <username> <message> - Send private message\n" +
	"/whois <username> - Get information about a user\n" +
	"/quit [message] - Disconnect from server\n" +
	"/help - Show this help message"

const adminHelpText = "\nAdmin commands:\n" +
	"/kick <username> [reason] - Disconnect a user\n" +
	"/ban <username> [reason] - Disconnect a user and refuse the name\n" +
	"/unban <username> - Lift a ban"

func (d *Dispatcher) nick(_ context.Context, c *Client, cmd proto.Command) (bool, error) {
	newName := strings.TrimSpace(cmd.Target)
	// Admin names carry privileges, so they cannot be taken by renaming.
	if d.IsAdmin(newName) && newName != c.Username() {
		return false, coreError(proto.CodeForbidden, ErrPermissionDenied, fmt.Sprintf("Nickname %s is reserved.", newName))
	}
	err := d.hub.Rename(c, newName)
	switch {
	case errors.Is(err, ErrInvalidUsername):
		return false, coreError(proto.CodeError, err, "Invalid nickname. Use 3-16 alphanumeric characters or underscores.")
	case errors.Is(err, ErrDuplicateUsername):
		return false, coreError(proto.CodeError, err, "Nickname already in use.")
	}
	return false, err
}

func (d *Dispatcher) join(_ context.Context, c *Client, cmd proto.Command) (bool, error) {
	target := strings.TrimSpace(cmd.Target)
	if strings.TrimPrefix(target, channelPrefix) == "" {
		return false, usage("/join <channel>")
	}
	_, err := d.hub.Join(c, target)
	return false, err
}

func (d *Dispatcher) leave(_ context.Context, c *Client, cmd proto.Command) (bool, error) {
	target := strings.TrimSpace(cmd.Target)
	if strings.TrimPrefix(target, channelPrefix) == "" {
		return false, usage("/leave <channel>")
	}
	name := NormalizeChannel(target)

	err := d.hub.Leave(c, name)
	switch {
	case errors.Is(err, ErrChannelNotFound):
		return false, channelNotFound(name)
	case errors.Is(err, ErrNotAMember):
		return false, coreError(proto.CodeError, err, fmt.Sprintf("You are not in %s.", name))
	}
	return false, err
}

func (d *Dispatcher) list(_ context.Context, c *Client, cmd proto.Command) (bool, error) {
	reg := d.hub.Registry()
	target := strings.TrimSpace(cmd.Target)

	switch {
	case target == "" || strings.EqualFold(target, "channels"):
		lines := make([]string, 0)
		for _, ch := range reg.ListChannels() {
			lines = append(lines, fmt.Sprintf("%s (%d users) - %s", ch.Name, len(ch.Members), ch.Topic))
		}
		d.notify(c, "Available channels:\n"+strings.Join(lines, "\n"))

	case strings.HasPrefix(target, channelPrefix):
		members, err := reg.ListMembers(target)
		if err != nil {
			return false, channelNotFound(target)
		}
		d.notify(c, fmt.Sprintf("Users in %s (%d): %s", target, len(members), strings.Join(members, ", ")))

	default:
		users := reg.Usernames()
		d.notify(c, fmt.Sprintf("Connected users (%d): %s", len(users), strings.Join(users, ", ")))
	}
	return false, nil
}

func (d *Dispatcher) msg(_ context.Context, c *Client, cmd proto.Command) (bool, error) {
	recipient := strings.TrimSpace(cmd.Target)
	if recipient == "" || cmd.Content == "" {
		return false, usage("/msg <username> <message>")
	}
	if _, ok := d.hub.Registry().FindByUsername(recipient); !ok {
		return false, userNotFound(recipient)
	}

	frame := proto.EncodeEvent(c.Username(), proto.KindPrivate, recipient, cmd.Content)
	if !d.hub.SendToUsername(recipient, frame) {
		return false, coreError(proto.CodeError, ErrTransportFailure, "Failed to send message to "+recipient)
	}
	d.notify(c, "Message sent to "+recipient)
	return false, nil
}

func (d *Dispatcher) whois(_ context.Context, c *Client, cmd proto.Command) (bool, error) {
	target := strings.TrimSpace(cmd.Target)
	if target == "" {
		return false, usage("/whois <username>")
	}
	info, ok := d.hub.Registry().Lookup(target)
	if !ok {
		return false, userNotFound(target)
	}

	text := fmt.Sprintf("User: %s\nChannels: %s\nConnected since: %s",
		info.Username,
		strings.Join(info.Channels, ", "),
		info.ConnectedAt.UTC().Format(time.RFC3339),
	)
	// Peer addresses are for admins only.
	if d.IsAdmin(c.Username()) {
		text += "\nAddress: " + info.RemoteAddr
	}
	d.notify(c, text)
	return false, nil
}

// resolveModerationTarget applies the checks shared by KICK and BAN.
func (d *Dispatcher) resolveModerationTarget(c *Client, cmd proto.Command, verb string) (string, error) {
	if !d.IsAdmin(c.Username()) {
		return "", forbidden()
	}
	target := strings.TrimSpace(cmd.Target)
	if target == "" {
		return "", usage(fmt.Sprintf("/%s <username> [reason]", verb))
	}
	if target == c.Username() {
		return "", coreError(proto.CodeError, ErrPermissionDenied, fmt.Sprintf("You cannot %s yourself.", verb))
	}
	return target, nil
}

// remove pushes target through the ordinary disconnect path, tagged with a notice.
func (d *Dispatcher) remove(target, notice, reason string) bool {
	victim, ok := d.hub.Registry().FindByUsername(target)
	if !ok {
		return false
	}
	d.hub.SendToAll(proto.EncodeSystem(proto.RecipientAll, notice))
	d.hub.Disconnect(victim, reason)
	return true
}

func moderationNotice(target, action, by, reason string) string {
	notice := fmt.Sprintf("%s was %s by %s", target, action, by)
	if reason != "" {
		notice += ": " + reason
	}
	return notice
}

func (d *Dispatcher) kick(_ context.Context, c *Client, cmd proto.Command) (bool, error) {
	target, err := d.resolveModerationTarget(c, cmd, "kick")
	if err != nil {
		return false, err
	}
	if !d.remove(target, moderationNotice(target, "kicked", c.Username(), cmd.Content), "kicked") {
		return false, userNotFound(target)
	}

	d.log.Info().Str("admin", c.Username()).Str("target", target).Str("reason", cmd.Content).Msg("user kicked")
	d.ok(c, fmt.Sprintf("Kicked %s", target))
	return false, nil
}

func (d *Dispatcher) ban(ctx context.Context, c *Client, cmd proto.Command) (bool, error) {
	target, err := d.resolveModerationTarget(c, cmd, "ban")
	if err != nil {
		return false, err
	}
	if !proto.ValidUsername(target) {
		return false, coreError(proto.CodeError, ErrInvalidUsername, "Invalid username: "+target)
	}

	if d.bans != nil {
		ban := store.Ban{Username: target, BannedBy: c.Username(), Reason: cmd.Content, CreatedAt: time.Now().UTC()}
		if err := d.bans.AddBan(ctx, ban); err != nil {
			d.log.Error().Err(err).Str("target", target).Msg("failed to record ban")
			return false, coreError(proto.CodeError, err, "Failed to record ban for "+target)
		}
	} else if _, online := d.hub.Registry().FindByUsername(target); !online {
		return false, userNotFound(target)
	}

	d.remove(target, moderationNotice(target, "banned", c.Username(), cmd.Content), "banned")

	d.log.Info().Str("admin", c.Username()).Str("target", target).Str("reason", cmd.Content).Msg("user banned")
	d.ok(c, fmt.Sprintf("Banned %s", target))
	return false, nil
}

func (d *Dispatcher) unban(ctx context.Context, c *Client, cmd proto.Command) (bool, error) {
	if !d.IsAdmin(c.Username()) {
		return false, forbidden()
	}
	target := strings.TrimSpace(cmd.Target)
	if target == "" {
		return false, usage("/unban <username>")
	}
	if d.bans == nil {
		return false, coreError(proto.CodeError, ErrUnknownCommand, "Ban list is not available.")
	}

	removed, err := d.bans.RemoveBan(ctx, target)
	if err != nil {
		d.log.Error().Err(err).Str("target", target).Msg("failed to remove ban")
		return false, coreError(proto.CodeError, err, "Failed to remove ban for "+target)
	}
	if !removed {
		return false, coreError(proto.CodeNotFound, ErrUserNotFound, fmt.Sprintf("%s is not banned.", target))
	}

	d.log.Info().Str("admin", c.Username()).Str("target", target).Msg("user unbanned")
	d.ok(c, fmt.Sprintf("Unbanned %s", target))
	return false, nil
}

func (d *Dispatcher) quit(_ context.Context, c *Client, cmd proto.Command) (bool, error) {
	reason := strings.TrimSpace(cmd.Target + " " + cmd.Content)
	if reason == "" {
		reason = "Leaving"
	}
	d.hub.SendToAll(proto.EncodeEvent(c.Username(), proto.KindSystem, proto.RecipientAll, "has quit: "+reason))
	d.hub.Disconnect(c, "quit")
	return true, nil
}

func (d *Dispatcher) help(_ context.Context, c *Client, _ proto.Command) (bool, error) {
	text := helpText
	if d.IsAdmin(c.Username()) {
		text += adminHelpText
	}
	d.notify(c, text)
	return false, nil
}
