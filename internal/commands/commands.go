// Package commands implements the player-facing mesh command surface.
// Each command validates input, checks the player's level and
// capabilities, and then drives the client API; every failure becomes
// a one-line message to the invoking player, never a panic or a
// silent drop.
package commands

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/Coffee-Nerd/MudVault-Mesh/internal/client"
	"github.com/Coffee-Nerd/MudVault-Mesh/internal/config"
	mesherr "github.com/Coffee-Nerd/MudVault-Mesh/internal/errors"
	"github.com/Coffee-Nerd/MudVault-Mesh/internal/host"
	"github.com/Coffee-Nerd/MudVault-Mesh/internal/proto"
)

// reconnect is an admin command; DikuMUD convention puts immortals
// at level 60 and above.
const minLevelReconnect = 60

// Command is one entry in the dispatch table.
type Command struct {
	Name       string
	Usage      string
	Help       string
	MinLevel   int
	Capability host.Capability // empty means no capability gate
	enabled    func(config.Config) bool
	run        func(h *Handler, u host.User, args string)
}

// Handler owns the command table and its dependencies.
type Handler struct {
	client *client.Client
	host   host.Adapter
	cfg    config.Config
	log    zerolog.Logger
	table  map[string]*Command
}

// New builds the handler with the full command table.
func New(c *client.Client, adapter host.Adapter, cfg config.Config, logger zerolog.Logger) *Handler {
	h := &Handler{
		client: c,
		host:   adapter,
		cfg:    cfg,
		log:    logger.With().Str("component", "mesh-commands").Logger(),
		table:  make(map[string]*Command),
	}
	for _, cmd := range buildTable(cfg) {
		h.table[cmd.Name] = cmd
	}
	return h
}

// Dispatch parses "name args..." and runs the named command as user.
// Unknown commands get a help pointer rather than silence.
func (h *Handler) Dispatch(u host.User, line string) {
	line = strings.TrimSpace(line)
	if line == "" {
		h.runHelp(u, "")
		return
	}
	name, args, _ := strings.Cut(line, " ")
	name = strings.ToLower(name)
	args = strings.TrimSpace(args)

	cmd, ok := h.table[name]
	if !ok {
		h.errorf(u, "Unknown mesh command %q. Try: mesh help", name)
		return
	}
	if cmd.enabled != nil && !cmd.enabled(h.cfg) {
		h.errorf(u, "That feature is disabled.")
		return
	}
	if u.Level() < cmd.MinLevel {
		h.errorf(u, "You are not high enough level to use that.")
		return
	}
	if cmd.Capability != "" && !h.host.Can(u, cmd.Capability) {
		h.errorf(u, "You don't have permission to do that.")
		return
	}
	cmd.run(h, u, args)
}

func buildTable(cfg config.Config) []*Command {
	return []*Command{
		{
			Name: "tell", Usage: "tell <user@mud> <message>",
			Help:       "Send a private message to a player on another MUD.",
			MinLevel:   cfg.MinLevelTell,
			Capability: host.CapTell,
			enabled:    func(c config.Config) bool { return c.EnableTell },
			run:        (*Handler).runTell,
		},
		{
			Name: "emote", Usage: "emote <mud> <action>",
			Help:       "Emote to everyone on a remote MUD.",
			MinLevel:   cfg.MinLevelTell,
			Capability: host.CapTell,
			enabled:    func(c config.Config) bool { return c.EnableEmote },
			run:        (*Handler).runEmote,
		},
		{
			Name: "emoteto", Usage: "emoteto <user@mud> <action>",
			Help:       "Emote at one player on another MUD.",
			MinLevel:   cfg.MinLevelTell,
			Capability: host.CapTell,
			enabled:    func(c config.Config) bool { return c.EnableEmote },
			run:        (*Handler).runEmoteTo,
		},
		{
			Name: "who", Usage: "who <mud>",
			Help:       "List the players online on a remote MUD.",
			MinLevel:   cfg.MinLevelWho,
			Capability: host.CapWho,
			enabled:    func(c config.Config) bool { return c.EnableWho },
			run:        (*Handler).runWho,
		},
		{
			Name: "finger", Usage: "finger <user@mud>",
			Help:       "Show a remote player's profile.",
			MinLevel:   cfg.MinLevelFinger,
			Capability: host.CapFinger,
			enabled:    func(c config.Config) bool { return c.EnableFinger },
			run:        (*Handler).runFinger,
		},
		{
			Name: "locate", Usage: "locate <user>",
			Help:       "Search the whole mesh for a player.",
			MinLevel:   cfg.MinLevelWho,
			Capability: host.CapWho,
			enabled:    func(c config.Config) bool { return c.EnableLocate },
			run:        (*Handler).runLocate,
		},
		{
			Name: "list", Usage: "list",
			Help: "List the MUDs seen on the mesh recently.",
			run:  (*Handler).runList,
		},
		{
			Name: "channels", Usage: "channels",
			Help:       "List mesh channels and your memberships.",
			Capability: host.CapChannel,
			enabled:    func(c config.Config) bool { return c.EnableChannel },
			run:        (*Handler).runChannels,
		},
		{
			Name: "join", Usage: "join <channel>",
			Help:       "Join a mesh channel.",
			MinLevel:   cfg.MinLevelChannel,
			Capability: host.CapChannel,
			enabled:    func(c config.Config) bool { return c.EnableChannel },
			run:        (*Handler).runJoin,
		},
		{
			Name: "leave", Usage: "leave <channel>",
			Help:       "Leave a mesh channel.",
			Capability: host.CapChannel,
			enabled:    func(c config.Config) bool { return c.EnableChannel },
			run:        (*Handler).runLeave,
		},
		{
			Name: "channel", Usage: "channel <channel> <message>",
			Help:       "Send a message to a mesh channel you have joined.",
			MinLevel:   cfg.MinLevelChannel,
			Capability: host.CapChannel,
			enabled:    func(c config.Config) bool { return c.EnableChannel },
			run:        (*Handler).runChannel,
		},
		{
			Name: "history", Usage: "history [tells|<channel>] [count]",
			Help: "Show recent tells and emotes, or a channel's recent traffic.",
			run:  (*Handler).runHistory,
		},
		{
			Name: "stats", Usage: "stats",
			Help: "Show mesh connection state and counters.",
			run:  (*Handler).runStats,
		},
		{
			Name: "reconnect", Usage: "reconnect",
			Help:     "Force a fresh connection to the mesh gateway.",
			MinLevel: minLevelReconnect,
			run:      (*Handler).runReconnect,
		},
		{
			Name: "help", Usage: "help [command]",
			Help: "Show mesh command help.",
			run:  (*Handler).runHelp,
		},
	}
}

func (h *Handler) info(u host.User, text string) { h.host.Deliver(u, text, host.StyleInfo) }

func (h *Handler) errorf(u host.User, format string, args ...any) {
	h.host.Deliver(u, fmt.Sprintf(format, args...), host.StyleError)
}

// fail translates a client error into the player-visible line.
func (h *Handler) fail(u host.User, err error) {
	h.host.Deliver(u, mesherr.UserMessage(err), host.StyleError)
	h.log.Debug().Err(err).Str("user", u.Name()).Msg("command failed")
}

// filter applies the host profanity filter when configured. ok=false
// means the message was rejected outright.
func (h *Handler) filter(u host.User, message string) (string, bool) {
	if !h.cfg.FilterProfanity {
		return message, true
	}
	out, ok := h.host.FilterMessage(message)
	if !ok {
		h.errorf(u, "Your message was rejected by the content filter.")
	}
	return out, ok
}

func splitTarget(h *Handler, u host.User, arg, usage string) (user, mud string, ok bool) {
	user, mud, ok = proto.ParseTarget(arg)
	if !ok {
		h.errorf(u, "Usage: %s", usage)
		return "", "", false
	}
	if !proto.ValidUserName(user) || !proto.ValidMudName(mud) {
		h.errorf(u, "%q is not a valid target.", arg)
		return "", "", false
	}
	return user, mud, true
}

func (h *Handler) runTell(u host.User, args string) {
	target, message, _ := strings.Cut(args, " ")
	message = strings.TrimSpace(message)
	if target == "" || message == "" {
		h.errorf(u, "Usage: tell <user@mud> <message>")
		return
	}
	targetUser, targetMud, ok := splitTarget(h, u, target, "tell <user@mud> <message>")
	if !ok {
		return
	}
	message, ok = h.filter(u, message)
	if !ok {
		return
	}
	if err := h.client.SendTell(u.Name(), targetUser, targetMud, message); err != nil {
		h.fail(u, err)
		return
	}
	h.host.Deliver(u, fmt.Sprintf("You tell %s@%s: %s", targetUser, targetMud, message), host.StyleTell)
}

func (h *Handler) runEmote(u host.User, args string) {
	mud, action, _ := strings.Cut(args, " ")
	action = strings.TrimSpace(action)
	if mud == "" || action == "" {
		h.errorf(u, "Usage: emote <mud> <action>")
		return
	}
	if !proto.ValidMudName(mud) {
		h.errorf(u, "%q is not a valid MUD name.", mud)
		return
	}
	action, ok := h.filter(u, action)
	if !ok {
		return
	}
	if err := h.client.SendEmote(u.Name(), mud, action); err != nil {
		h.fail(u, err)
		return
	}
	h.host.Deliver(u, fmt.Sprintf("To %s, you emote: %s %s", mud, u.Name(), action), host.StyleEmote)
}

func (h *Handler) runEmoteTo(u host.User, args string) {
	target, action, _ := strings.Cut(args, " ")
	action = strings.TrimSpace(action)
	if target == "" || action == "" {
		h.errorf(u, "Usage: emoteto <user@mud> <action>")
		return
	}
	targetUser, targetMud, ok := splitTarget(h, u, target, "emoteto <user@mud> <action>")
	if !ok {
		return
	}
	action, ok = h.filter(u, action)
	if !ok {
		return
	}
	if err := h.client.SendEmoteTo(u.Name(), targetUser, targetMud, action); err != nil {
		h.fail(u, err)
		return
	}
	h.host.Deliver(u, fmt.Sprintf("To %s@%s: %s %s", targetUser, targetMud, u.Name(), action), host.StyleEmote)
}

func (h *Handler) runWho(u host.User, args string) {
	mud := strings.TrimSpace(args)
	if mud == "" {
		h.errorf(u, "Usage: who <mud>")
		return
	}
	if !proto.ValidMudName(mud) {
		h.errorf(u, "%q is not a valid MUD name.", mud)
		return
	}
	if err := h.client.RequestWho(u.Name(), mud); err != nil {
		h.fail(u, err)
		return
	}
	h.info(u, fmt.Sprintf("Asking %s who is online...", mud))
}

func (h *Handler) runFinger(u host.User, args string) {
	target := strings.TrimSpace(args)
	if target == "" {
		h.errorf(u, "Usage: finger <user@mud>")
		return
	}
	targetUser, targetMud, ok := splitTarget(h, u, target, "finger <user@mud>")
	if !ok {
		return
	}
	if err := h.client.RequestFinger(u.Name(), targetUser, targetMud); err != nil {
		h.fail(u, err)
		return
	}
	h.info(u, fmt.Sprintf("Fingering %s@%s...", targetUser, targetMud))
}

func (h *Handler) runLocate(u host.User, args string) {
	target := strings.TrimSpace(args)
	if target == "" {
		h.errorf(u, "Usage: locate <user>")
		return
	}
	if !proto.ValidUserName(target) {
		h.errorf(u, "%q is not a valid player name.", target)
		return
	}
	if err := h.client.RequestLocate(u.Name(), target); err != nil {
		h.fail(u, err)
		return
	}
	h.info(u, fmt.Sprintf("Searching the mesh for %s...", target))
}

func (h *Handler) runList(u host.User, _ string) {
	muds := h.client.KnownMuds()
	if len(muds) == 0 {
		h.info(u, "No MUDs seen on the mesh yet.")
		return
	}
	var b strings.Builder
	b.WriteString("MUDs on the mesh:")
	for _, m := range muds {
		fmt.Fprintf(&b, "\n  %s", m.Name)
	}
	h.info(u, b.String())
}

func (h *Handler) runChannels(u host.User, _ string) {
	names := h.client.Channels()
	if len(names) == 0 {
		h.info(u, "No mesh channels joined. Use: join <channel>")
		return
	}
	var b strings.Builder
	b.WriteString("Mesh channels:")
	for _, name := range names {
		marker := " "
		if h.client.OnChannel(name, u.Name()) {
			marker = "*"
		}
		fmt.Fprintf(&b, "\n %s %s (%d listening here)", marker, name, len(h.client.ChannelMembers(name)))
	}
	h.info(u, b.String())
}

func (h *Handler) runJoin(u host.User, args string) {
	channel := strings.ToLower(strings.TrimSpace(args))
	if channel == "" {
		h.errorf(u, "Usage: join <channel>")
		return
	}
	if !proto.ValidChannelName(channel) {
		h.errorf(u, "%q is not a valid channel name.", channel)
		return
	}
	if h.client.OnChannel(channel, u.Name()) {
		h.info(u, fmt.Sprintf("You are already on [%s].", channel))
		return
	}
	if err := h.client.JoinChannel(u.Name(), channel); err != nil {
		h.fail(u, err)
		return
	}
	h.info(u, fmt.Sprintf("You join [%s].", channel))
}

func (h *Handler) runLeave(u host.User, args string) {
	channel := strings.ToLower(strings.TrimSpace(args))
	if channel == "" {
		h.errorf(u, "Usage: leave <channel>")
		return
	}
	if err := h.client.LeaveChannel(u.Name(), channel); err != nil {
		h.fail(u, err)
		return
	}
	h.info(u, fmt.Sprintf("You leave [%s].", channel))
}

func (h *Handler) runChannel(u host.User, args string) {
	channel, message, _ := strings.Cut(args, " ")
	channel = strings.ToLower(channel)
	message = strings.TrimSpace(message)
	if channel == "" || message == "" {
		h.errorf(u, "Usage: channel <channel> <message>")
		return
	}
	message, ok := h.filter(u, message)
	if !ok {
		return
	}
	if err := h.client.SendChannelMessage(u.Name(), channel, message); err != nil {
		h.fail(u, err)
	}
	// Delivery to the sender rides the local channel echo.
}

func (h *Handler) runHistory(u host.User, args string) {
	kind, countArg, _ := strings.Cut(strings.ToLower(strings.TrimSpace(args)), " ")
	count := 20
	if countArg = strings.TrimSpace(countArg); countArg != "" {
		n, err := strconv.Atoi(countArg)
		if err != nil || n <= 0 {
			h.errorf(u, "Usage: history [tells|<channel>] [count]")
			return
		}
		count = n
	}
	var entries []client.HistoryEntry
	var title string
	switch kind {
	case "", "tell", "tells":
		entries = h.client.TellHistory(count)
		title = "Recent tells and emotes:"
	default:
		entries = h.client.ChannelHistoryFor(kind, count)
		title = fmt.Sprintf("Recent traffic on [%s]:", kind)
	}
	if len(entries) == 0 {
		h.info(u, "No history yet.")
		return
	}
	var b strings.Builder
	b.WriteString(title)
	for _, e := range entries {
		fmt.Fprintf(&b, "\n  %s %s", e.When.Format("15:04"), e.Line)
	}
	h.info(u, b.String())
}

func (h *Handler) runStats(u host.User, _ string) {
	s := h.client.Stats()
	var b strings.Builder
	fmt.Fprintf(&b, "Mesh connection: %s", s.State)
	if !s.ConnectedSince.IsZero() && s.State == client.StateAuthenticated {
		fmt.Fprintf(&b, " (since %s)", s.ConnectedSince.Format("15:04:05"))
	}
	fmt.Fprintf(&b, "\n  Gateway: %s", s.Gateway)
	fmt.Fprintf(&b, "\n  Sent: %d  Received: %d  Dropped: %d", s.Sent, s.Received, s.Dropped)
	fmt.Fprintf(&b, "\n  Tells: %d out / %d in", s.TellsSent, s.TellsReceived)
	fmt.Fprintf(&b, "\n  Channel: %d out / %d in", s.ChannelSent, s.ChannelReceived)
	if s.LastError != "" {
		fmt.Fprintf(&b, "\n  Last error: %s", s.LastError)
	}
	h.info(u, b.String())
}

func (h *Handler) runReconnect(u host.User, _ string) {
	h.client.ForceReconnect()
	h.info(u, "Mesh reconnect forced.")
	h.log.Info().Str("user", u.Name()).Msg("reconnect forced by command")
}

func (h *Handler) runHelp(u host.User, args string) {
	name := strings.ToLower(strings.TrimSpace(args))
	if name != "" {
		cmd, ok := h.table[name]
		if !ok {
			h.errorf(u, "No such mesh command %q.", name)
			return
		}
		h.info(u, fmt.Sprintf("%s\n  %s", cmd.Usage, cmd.Help))
		return
	}
	names := make([]string, 0, len(h.table))
	for n := range h.table {
		names = append(names, n)
	}
	sort.Strings(names)
	var b strings.Builder
	b.WriteString("Mesh commands:")
	for _, n := range names {
		cmd := h.table[n]
		if cmd.enabled != nil && !cmd.enabled(h.cfg) {
			continue
		}
		if u.Level() < cmd.MinLevel {
			continue
		}
		fmt.Fprintf(&b, "\n  %-26s %s", cmd.Usage, cmd.Help)
	}
	h.info(u, b.String())
}
