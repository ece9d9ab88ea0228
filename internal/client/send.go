package client

import (
	"fmt"

	mesherr "github.com/Coffee-Nerd/MudVault-Mesh/internal/errors"
	"github.com/Coffee-Nerd/MudVault-Mesh/internal/host"
	"github.com/Coffee-Nerd/MudVault-Mesh/internal/proto"
)

// rateLimit maps an envelope kind to its per-minute cap. Emotes share
// the tell budget; finger and locate share the who budget.
func (c *Client) rateLimit(kind proto.Kind) int {
	switch kind {
	case proto.KindTell, proto.KindEmote, proto.KindEmoteTo:
		return c.cfg.TellsPerMinute
	case proto.KindChannel:
		return c.cfg.ChannelsPerMinute
	case proto.KindWho, proto.KindFinger, proto.KindLocate:
		return c.cfg.WhoPerMinute
	}
	return 0
}

// checkSend runs the shared outbound gate: connection, rate limit.
// Callers hold c.mu.
func (c *Client) checkSend(op, localUser string, kind proto.Kind) error {
	if c.state != StateAuthenticated {
		return mesherr.New(mesherr.KindTransport, op, mesherr.ErrNotConnected)
	}
	if !c.limiter.Allow(localUser, kind, c.rateLimit(kind), c.host.Now()) {
		return mesherr.New(mesherr.KindRateLimited, op, mesherr.ErrRateLimited)
	}
	return nil
}

// cleanMessage strips control characters and refuses over-length
// text. Refusing beats truncating: a silently shortened tell would
// misrepresent what the sender said.
func (c *Client) cleanMessage(op, message string) (string, error) {
	if max := c.cfg.MaxMessageLen; max > 0 && len(message) > max {
		return "", mesherr.Newf(mesherr.KindCapacity, op,
			"message is %d bytes, limit is %d: %w", len(message), max, mesherr.ErrTooLarge)
	}
	out := proto.SanitizeMessage(message, 0)
	if out == "" {
		return "", mesherr.Newf(mesherr.KindInternal, op, "empty message: %w", mesherr.ErrInvalidInput)
	}
	return out, nil
}

// SendTell sends a private message to a user on another MUD.
func (c *Client) SendTell(localUser, targetUser, targetMud, message string) error {
	const op = "send_tell"
	if !proto.ValidUserName(targetUser) || !proto.ValidMudName(targetMud) {
		return mesherr.Newf(mesherr.KindInternal, op, "bad target: %w", mesherr.ErrInvalidInput)
	}
	message, err := c.cleanMessage(op, message)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkSend(op, localUser, proto.KindTell); err != nil {
		return err
	}
	e := proto.NewTell(c.userEndpoint(localUser),
		proto.Endpoint{Mud: targetMud, User: targetUser}, message)
	if err := c.sendLocked(e); err != nil {
		return err
	}
	c.stats.TellsSent++
	c.tellHistory.Add(c.host.Now(),
		fmt.Sprintf("%s -> %s@%s: %s", localUser, targetUser, targetMud, message))
	return nil
}

// SendEmote broadcasts an emote to one MUD.
func (c *Client) SendEmote(localUser, targetMud, action string) error {
	const op = "send_emote"
	if !proto.ValidMudName(targetMud) {
		return mesherr.Newf(mesherr.KindInternal, op, "bad target mud: %w", mesherr.ErrInvalidInput)
	}
	action, err := c.cleanMessage(op, action)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkSend(op, localUser, proto.KindEmote); err != nil {
		return err
	}
	if err := c.sendLocked(proto.NewEmote(c.userEndpoint(localUser), targetMud, action)); err != nil {
		return err
	}
	c.tellHistory.Add(c.host.Now(),
		fmt.Sprintf("%s -> %s: %s", localUser, targetMud, action))
	return nil
}

// SendEmoteTo sends a directed emote to one user on another MUD.
func (c *Client) SendEmoteTo(localUser, targetUser, targetMud, action string) error {
	const op = "send_emoteto"
	if !proto.ValidUserName(targetUser) || !proto.ValidMudName(targetMud) {
		return mesherr.Newf(mesherr.KindInternal, op, "bad target: %w", mesherr.ErrInvalidInput)
	}
	action, err := c.cleanMessage(op, action)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkSend(op, localUser, proto.KindEmoteTo); err != nil {
		return err
	}
	e := proto.NewEmoteTo(c.userEndpoint(localUser),
		proto.Endpoint{Mud: targetMud, User: targetUser}, action)
	if err := c.sendLocked(e); err != nil {
		return err
	}
	c.tellHistory.Add(c.host.Now(),
		fmt.Sprintf("%s -> %s@%s: %s", localUser, targetUser, targetMud, action))
	return nil
}

// JoinChannel subscribes a local player to a channel, joining at the
// gateway on the MUD's first listener.
func (c *Client) JoinChannel(localUser, channel string) error {
	const op = "join_channel"
	if !proto.ValidChannelName(channel) {
		return mesherr.Newf(mesherr.KindInternal, op, "bad channel name: %w", mesherr.ErrInvalidInput)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateAuthenticated {
		return mesherr.New(mesherr.KindTransport, op, mesherr.ErrNotConnected)
	}
	first := c.channels.Join(channel, localUser, c.host.Now())
	if !first {
		return nil
	}
	e := proto.NewChannelMessage(c.userEndpoint(localUser), channel, proto.ActionJoin, "")
	if err := c.sendLocked(e); err != nil {
		// Keep the local subscription; the reconnect path replays it.
		return err
	}
	return nil
}

// LeaveChannel unsubscribes a local player, leaving at the gateway
// when the MUD's last listener is gone.
func (c *Client) LeaveChannel(localUser, channel string) error {
	const op = "leave_channel"
	c.mu.Lock()
	defer c.mu.Unlock()
	wasMember, empty := c.channels.Leave(channel, localUser)
	if !wasMember {
		return mesherr.Newf(mesherr.KindNotFound, op, "you are not on channel %q", channel)
	}
	if !empty || c.state != StateAuthenticated {
		return nil
	}
	return c.sendLocked(proto.NewChannelMessage(
		c.userEndpoint(localUser), channel, proto.ActionLeave, ""))
}

// SendChannelMessage sends one line to a channel. The sender's MUD
// echoes locally at send time; the gateway reflection is suppressed.
func (c *Client) SendChannelMessage(localUser, channel, message string) error {
	const op = "send_channel"
	message, err := c.cleanMessage(op, message)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.channels.Member(channel, localUser) {
		return mesherr.Newf(mesherr.KindPermission, op, "join channel %q first", channel)
	}
	if err := c.checkSend(op, localUser, proto.KindChannel); err != nil {
		return err
	}
	e := proto.NewChannelMessage(c.userEndpoint(localUser), channel, proto.ActionMessage, message)
	if err := c.sendLocked(e); err != nil {
		return err
	}
	c.stats.ChannelSent++

	now := c.host.Now()
	line := fmt.Sprintf("[%s] %s@%s: %s", channel, localUser, c.cfg.MudName, message)
	c.channels.Record(channel, now, line)
	for _, name := range c.channels.Members(channel) {
		if u, ok := c.host.FindUser(name); ok {
			c.host.Deliver(u, line, host.StyleChannel)
		}
	}
	return nil
}

// RequestWho asks a remote MUD for its online list. The response is
// delivered to localUser when it arrives.
func (c *Client) RequestWho(localUser, mud string) error {
	const op = "request_who"
	if !proto.ValidMudName(mud) {
		return mesherr.Newf(mesherr.KindInternal, op, "bad mud name: %w", mesherr.ErrInvalidInput)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkSend(op, localUser, proto.KindWho); err != nil {
		return err
	}
	e := proto.NewWhoRequest(c.userEndpoint(localUser), mud)
	if err := c.sendLocked(e); err != nil {
		return err
	}
	c.corr.Track(e.ID, localUser, c.host.Now())
	return nil
}

// RequestFinger asks for one remote user's profile.
func (c *Client) RequestFinger(localUser, targetUser, targetMud string) error {
	const op = "request_finger"
	if !proto.ValidUserName(targetUser) || !proto.ValidMudName(targetMud) {
		return mesherr.Newf(mesherr.KindInternal, op, "bad target: %w", mesherr.ErrInvalidInput)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkSend(op, localUser, proto.KindFinger); err != nil {
		return err
	}
	e := proto.NewFingerRequest(c.userEndpoint(localUser), targetMud, targetUser)
	if err := c.sendLocked(e); err != nil {
		return err
	}
	c.corr.Track(e.ID, localUser, c.host.Now())
	return nil
}

// RequestLocate broadcasts a search for a user across the mesh.
func (c *Client) RequestLocate(localUser, targetUser string) error {
	const op = "request_locate"
	if !proto.ValidUserName(targetUser) {
		return mesherr.Newf(mesherr.KindInternal, op, "bad user name: %w", mesherr.ErrInvalidInput)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkSend(op, localUser, proto.KindLocate); err != nil {
		return err
	}
	e := proto.NewLocateRequest(c.userEndpoint(localUser), targetUser)
	if err := c.sendLocked(e); err != nil {
		return err
	}
	c.corr.Track(e.ID, localUser, c.host.Now())
	return nil
}

// SendPresence publishes a local player's status to the mesh.
func (c *Client) SendPresence(localUser, status, activity, location string) error {
	const op = "send_presence"
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateAuthenticated {
		return mesherr.New(mesherr.KindTransport, op, mesherr.ErrNotConnected)
	}
	return c.sendLocked(proto.NewPresence(c.userEndpoint(localUser), status, activity, location))
}

// TellHistory returns up to n remembered tells and emotes, newest
// first.
func (c *Client) TellHistory(n int) []HistoryEntry {
	return c.tellHistory.Recent(n)
}

// ChannelHistoryFor returns up to n lines of one channel, newest first.
func (c *Client) ChannelHistoryFor(channel string, n int) []HistoryEntry {
	return c.channels.History(channel, n)
}

// Channels lists every channel the MUD has registered.
func (c *Client) Channels() []string { return c.channels.Names() }

// ChannelMembers lists local listeners on a channel.
func (c *Client) ChannelMembers(channel string) []string { return c.channels.Members(channel) }

// OnChannel reports whether a local player listens on a channel.
func (c *Client) OnChannel(channel, user string) bool { return c.channels.Member(channel, user) }

// KnownMuds lists peer MUDs seen within the last hour.
func (c *Client) KnownMuds() []PeerMud { return c.dir.Muds(c.host.Now()) }

// LookupRemote finds a cached remote user, if seen within the hour.
func (c *Client) LookupRemote(user, mud string) (RemoteUser, bool) {
	return c.dir.Lookup(user, mud, c.host.Now())
}

// RateRemaining reports the user's remaining sends for a kind this
// minute; -1 means unlimited.
func (c *Client) RateRemaining(user string, kind proto.Kind) int {
	return c.limiter.Remaining(user, kind, c.rateLimit(kind), c.host.Now())
}
