package client

import (
	"fmt"
	"strings"
	"time"

	"github.com/Coffee-Nerd/MudVault-Mesh/internal/host"
	"github.com/Coffee-Nerd/MudVault-Mesh/internal/proto"
)

// dispatch routes one inbound envelope. Malformed envelopes are
// dropped with a log line; they never tear the connection down.
func (c *Client) dispatch(now time.Time, raw []byte) {
	c.stats.Received++

	version, _ := proto.GetString(raw, "version")
	if !strings.HasPrefix(version, "1.") {
		c.stats.Dropped++
		c.log.Warn().Str("version", version).Msg("unsupported envelope version")
		return
	}
	kindStr, _ := proto.GetString(raw, "type")
	kind, ok := proto.ParseKind(kindStr)
	if !ok {
		c.stats.Dropped++
		c.log.Warn().Str("type", kindStr).Msg("unknown envelope kind")
		return
	}

	id, _ := proto.GetString(raw, "id")
	fromMud, _ := proto.GetString(raw, "from.mud")
	fromUser, _ := proto.GetString(raw, "from.user")
	if fromMud == "" {
		c.stats.Dropped++
		c.log.Warn().Str("type", kindStr).Msg("envelope without origin mud")
		return
	}
	c.dir.SeenMud(fromMud, now)
	c.audit.Record("in", kind, fromUser+"@"+fromMud, c.cfg.MudName, id)

	switch kind {
	case proto.KindTell:
		c.handleTell(now, raw, id, fromMud, fromUser)
	case proto.KindEmote:
		c.handleEmote(now, raw, fromMud, fromUser)
	case proto.KindEmoteTo:
		c.handleEmoteTo(now, raw, id, fromMud, fromUser)
	case proto.KindChannel:
		c.handleChannel(now, raw, fromMud, fromUser)
	case proto.KindWho:
		c.handleWho(now, raw, id, fromMud, fromUser)
	case proto.KindFinger:
		c.handleFinger(now, raw, id, fromMud, fromUser)
	case proto.KindLocate:
		c.handleLocate(now, raw, id, fromMud, fromUser)
	case proto.KindPresence:
		c.handlePresence(now, raw, fromMud, fromUser)
	case proto.KindPing:
		c.handlePing(raw, fromMud, fromUser)
	case proto.KindPong:
		c.lastPong = now
	case proto.KindError:
		c.handleError(now, raw, id)
	case proto.KindAuth:
		// Late auth traffic after the session settled; nothing to do.
		c.log.Debug().Msg("auth envelope after authentication")
	}
}

func (c *Client) handleTell(now time.Time, raw []byte, id, fromMud, fromUser string) {
	target, _ := proto.GetString(raw, "to.user")
	message, _ := proto.GetString(raw, "payload.message")
	u, ok := c.host.FindUser(target)
	if !ok {
		c.replyError(id, fromMud, fromUser, proto.CodeUserNotFound,
			fmt.Sprintf("user %q is not online", target))
		return
	}
	c.stats.TellsReceived++
	line := fmt.Sprintf("%s@%s tells you: %s", fromUser, fromMud, message)
	c.host.Deliver(u, line, host.StyleTell)
	c.tellHistory.Add(now, fmt.Sprintf("%s@%s -> %s: %s", fromUser, fromMud, u.Name(), message))
}

func (c *Client) handleEmote(now time.Time, raw []byte, fromMud, fromUser string) {
	action, _ := proto.GetString(raw, "payload.action")
	if action == "" {
		return
	}
	line := fmt.Sprintf("%s@%s %s", fromUser, fromMud, action)
	c.host.ForEachOnline(func(u host.User) bool {
		c.host.Deliver(u, line, host.StyleEmote)
		return true
	})
	c.tellHistory.Add(now, line)
}

func (c *Client) handleEmoteTo(now time.Time, raw []byte, id, fromMud, fromUser string) {
	target, _ := proto.GetString(raw, "to.user")
	action, _ := proto.GetString(raw, "payload.action")
	u, ok := c.host.FindUser(target)
	if !ok {
		c.replyError(id, fromMud, fromUser, proto.CodeUserNotFound,
			fmt.Sprintf("user %q is not online", target))
		return
	}
	line := fmt.Sprintf("%s@%s %s", fromUser, fromMud, action)
	c.host.Deliver(u, line, host.StyleEmote)
	c.tellHistory.Add(now, fmt.Sprintf("%s (to %s)", line, u.Name()))
}

func (c *Client) handleChannel(now time.Time, raw []byte, fromMud, fromUser string) {
	channel, _ := proto.GetString(raw, "payload.channel")
	action, _ := proto.GetString(raw, "payload.action")
	if channel == "" {
		return
	}
	c.dir.SeenUser(RemoteUser{Name: fromUser, Mud: fromMud}, now)

	var line string
	switch action {
	case proto.ActionMessage:
		message, _ := proto.GetString(raw, "payload.message")
		line = fmt.Sprintf("[%s] %s@%s: %s", channel, fromUser, fromMud, message)
	case proto.ActionJoin:
		line = fmt.Sprintf("[%s] %s@%s has joined the channel", channel, fromUser, fromMud)
	case proto.ActionLeave:
		line = fmt.Sprintf("[%s] %s@%s has left the channel", channel, fromUser, fromMud)
	default:
		return
	}

	// The sending side echoed locally already; a gateway reflection of
	// our own traffic must not print twice.
	if strings.EqualFold(fromMud, c.cfg.MudName) {
		return
	}
	c.stats.ChannelReceived++
	c.channels.Record(channel, now, line)
	for _, name := range c.channels.Members(channel) {
		if u, ok := c.host.FindUser(name); ok {
			c.host.Deliver(u, line, host.StyleChannel)
		}
	}
}

func (c *Client) handleWho(now time.Time, raw []byte, id, fromMud, fromUser string) {
	if req, _ := proto.GetBool(raw, "payload.request"); req {
		var users []proto.UserInfo
		c.host.ForEachOnline(func(u host.User) bool {
			users = append(users, proto.UserInfo{
				Username:    u.Name(),
				DisplayName: u.DisplayName(),
				Level:       u.Level(),
				IdleSeconds: u.IdleSeconds(),
				Location:    u.Location(),
			})
			return true
		})
		resp := proto.NewWhoResponse(c.localEndpoint(),
			proto.Endpoint{Mud: fromMud, User: fromUser}, users, id)
		if err := c.sendLocked(resp); err != nil {
			c.log.Warn().Err(err).Msg("who response failed")
		}
		return
	}

	asker, ok := c.corr.Claim(id, now)
	if !ok {
		c.stats.Dropped++
		return
	}
	u, online := c.host.FindUser(asker)
	if !online {
		return
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Players on %s:", fromMud)
	count := 0
	proto.ForEachElement(raw, "payload.users", func(item []byte) bool {
		info := proto.UserInfoFromDoc(item)
		c.dir.SeenUser(RemoteUser{Name: info.Username, Mud: fromMud, Location: info.Location}, now)
		name := info.DisplayName
		if name == "" {
			name = info.Username
		}
		fmt.Fprintf(&b, "\n  %s", name)
		if info.Level > 0 {
			fmt.Fprintf(&b, " [%d]", info.Level)
		}
		if info.IdleSeconds > 0 {
			fmt.Fprintf(&b, " (idle %ds)", info.IdleSeconds)
		}
		count++
		return true
	})
	if count == 0 {
		b.WriteString("\n  (nobody)")
	}
	c.host.Deliver(u, b.String(), host.StyleInfo)
}

func (c *Client) handleFinger(now time.Time, raw []byte, id, fromMud, fromUser string) {
	if req, _ := proto.GetBool(raw, "payload.request"); req {
		target, _ := proto.GetString(raw, "payload.user")
		u, ok := c.host.FindUser(target)
		if !ok {
			c.replyError(id, fromMud, fromUser, proto.CodeUserNotFound,
				fmt.Sprintf("user %q is not online", target))
			return
		}
		info := proto.UserInfo{
			Username:    u.Name(),
			DisplayName: u.DisplayName(),
			Level:       u.Level(),
			IdleSeconds: u.IdleSeconds(),
			Location:    u.Location(),
			Race:        u.Race(),
			Class:       u.Class(),
			Guild:       u.Guild(),
			LastLogin:   u.LastLogin(),
		}
		// Plan and email leave the MUD only with the player's consent.
		if c.host.Can(u, host.CapShareProfile) {
			info.Plan = u.Plan()
			info.Email = u.Email()
		}
		resp := proto.NewFingerResponse(c.localEndpoint(),
			proto.Endpoint{Mud: fromMud, User: fromUser}, info, id)
		if err := c.sendLocked(resp); err != nil {
			c.log.Warn().Err(err).Msg("finger response failed")
		}
		return
	}

	asker, ok := c.corr.Claim(id, now)
	if !ok {
		c.stats.Dropped++
		return
	}
	u, online := c.host.FindUser(asker)
	if !online {
		return
	}
	target, _ := proto.GetString(raw, "payload.user")
	c.dir.SeenUser(RemoteUser{Name: target, Mud: fromMud}, now)

	var b strings.Builder
	fmt.Fprintf(&b, "%s@%s:", target, fromMud)
	appendField := func(label, key string) {
		if v, ok := proto.GetString(raw, "payload.info."+key); ok && v != "" {
			fmt.Fprintf(&b, "\n  %s: %s", label, v)
		}
	}
	if lvl, ok := proto.GetInt(raw, "payload.info.level"); ok {
		fmt.Fprintf(&b, "\n  Level: %d", lvl)
	}
	appendField("Race", "race")
	appendField("Class", "class")
	appendField("Guild", "guild")
	appendField("Location", "location")
	appendField("Last login", "lastLogin")
	appendField("Plan", "plan")
	appendField("Email", "email")
	if idle, ok := proto.GetInt(raw, "payload.info.idle"); ok {
		fmt.Fprintf(&b, "\n  Idle: %ds", idle)
	}
	c.host.Deliver(u, b.String(), host.StyleInfo)
}

func (c *Client) handleLocate(now time.Time, raw []byte, id, fromMud, fromUser string) {
	if req, _ := proto.GetBool(raw, "payload.request"); req {
		target, _ := proto.GetString(raw, "payload.user")
		u, ok := c.host.FindUser(target)
		if !ok {
			// Locate requests go network-wide; MUDs without the user
			// stay silent instead of flooding the asker with misses.
			return
		}
		resp := proto.NewLocateResponse(c.localEndpoint(),
			proto.Endpoint{Mud: fromMud, User: fromUser}, u.Name(), u.Location(), id)
		if err := c.sendLocked(resp); err != nil {
			c.log.Warn().Err(err).Msg("locate response failed")
		}
		return
	}

	asker, ok := c.corr.Claim(id, now)
	if !ok {
		c.stats.Dropped++
		return
	}
	u, online := c.host.FindUser(asker)
	if !online {
		return
	}
	target, _ := proto.GetString(raw, "payload.user")
	mud, _ := proto.GetString(raw, "payload.location.mud")
	room, _ := proto.GetString(raw, "payload.location.room")
	c.dir.SeenUser(RemoteUser{Name: target, Mud: mud, Location: room}, now)

	line := fmt.Sprintf("%s is on %s", target, mud)
	if room != "" {
		line += fmt.Sprintf(" (%s)", room)
	}
	c.host.Deliver(u, line, host.StyleInfo)
}

func (c *Client) handlePresence(now time.Time, raw []byte, fromMud, fromUser string) {
	status, _ := proto.GetString(raw, "payload.status")
	if fromUser == "" {
		return
	}
	if status == "offline" {
		c.dir.Drop(fromUser, fromMud)
		return
	}
	activity, _ := proto.GetString(raw, "payload.activity")
	location, _ := proto.GetString(raw, "payload.location")
	c.dir.SeenUser(RemoteUser{
		Name: fromUser, Mud: fromMud,
		Status: status, Activity: activity, Location: location,
	}, now)
}

func (c *Client) handlePing(raw []byte, fromMud, fromUser string) {
	ts, _ := proto.GetInt(raw, "payload.timestamp")
	pong := proto.NewPong(c.localEndpoint(),
		proto.Endpoint{Mud: fromMud, User: fromUser}, ts)
	if err := c.sendLocked(pong); err != nil {
		c.log.Warn().Err(err).Msg("pong failed")
	}
}

func (c *Client) handleError(now time.Time, raw []byte, id string) {
	code, _ := proto.GetInt(raw, "payload.code")
	message, _ := proto.GetString(raw, "payload.message")

	if asker, ok := c.corr.Claim(id, now); ok {
		if u, online := c.host.FindUser(asker); online {
			c.host.Deliver(u, fmt.Sprintf("Mesh error: %s", message), host.StyleError)
		}
	}
	c.log.Warn().Int64("code", code).Str("message", message).Msg("gateway error")
}

// replyError answers a request we cannot serve. The reply reuses the
// request id so the asking side can correlate it.
func (c *Client) replyError(id, toMud, toUser string, code int, message string) {
	e := proto.NewError(c.localEndpoint(), proto.Endpoint{Mud: toMud, User: toUser}, code, message)
	if id != "" {
		e.ID = id
	}
	if err := c.sendLocked(e); err != nil {
		c.log.Warn().Err(err).Msg("error reply failed")
	}
}
