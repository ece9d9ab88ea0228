package client

import (
	"sort"
	"strings"
	"sync"
	"time"
)

// Channel is one mesh channel this MUD participates in.
type Channel struct {
	Name     string
	JoinedAt time.Time

	members map[string]bool // lower-cased local player names
	history *historyRing
}

// channelRegistry tracks the channels the MUD has joined and which
// local players listen on each. A channel whose last listener leaves
// stays registered so its history survives; the gateway-level leave
// only happens on explicit request.
type channelRegistry struct {
	mu          sync.Mutex
	channels    map[string]*Channel
	historySize int
}

func newChannelRegistry(historySize int) *channelRegistry {
	return &channelRegistry{
		channels:    make(map[string]*Channel),
		historySize: historySize,
	}
}

// Join adds a local listener, creating the channel on first join.
// It reports whether this is the MUD's first listener on the channel,
// which is when the gateway join must be sent.
func (r *channelRegistry) Join(channel, user string, now time.Time) (first bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ch := r.channels[channel]
	if ch == nil {
		ch = &Channel{
			Name:     channel,
			JoinedAt: now,
			members:  make(map[string]bool),
			history:  newHistoryRing(r.historySize),
		}
		r.channels[channel] = ch
		first = true
	}
	ch.members[strings.ToLower(user)] = true
	return first
}

// Leave removes a local listener. It reports whether the user was a
// listener, and whether the channel now has none left.
func (r *channelRegistry) Leave(channel, user string) (wasMember, empty bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ch := r.channels[channel]
	if ch == nil {
		return false, false
	}
	key := strings.ToLower(user)
	if !ch.members[key] {
		return false, len(ch.members) == 0
	}
	delete(ch.members, key)
	return true, len(ch.members) == 0
}

// Member reports whether user listens on channel.
func (r *channelRegistry) Member(channel, user string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	ch := r.channels[channel]
	return ch != nil && ch.members[strings.ToLower(user)]
}

// Members returns the lower-cased listener names on channel.
func (r *channelRegistry) Members(channel string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ch := r.channels[channel]
	if ch == nil {
		return nil
	}
	out := make([]string, 0, len(ch.members))
	for name := range ch.members {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Known reports whether the MUD has ever joined channel.
func (r *channelRegistry) Known(channel string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.channels[channel] != nil
}

// Record appends a line to the channel's history, creating the
// channel record if an inbound message beats the local join.
func (r *channelRegistry) Record(channel string, when time.Time, line string) {
	r.mu.Lock()
	ch := r.channels[channel]
	if ch == nil {
		ch = &Channel{
			Name:     channel,
			JoinedAt: when,
			members:  make(map[string]bool),
			history:  newHistoryRing(r.historySize),
		}
		r.channels[channel] = ch
	}
	r.mu.Unlock()
	ch.history.Add(when, line)
}

// History returns up to n lines of channel history, newest first.
func (r *channelRegistry) History(channel string, n int) []HistoryEntry {
	r.mu.Lock()
	ch := r.channels[channel]
	r.mu.Unlock()
	if ch == nil {
		return nil
	}
	return ch.history.Recent(n)
}

// Names lists all registered channels, sorted.
func (r *channelRegistry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.channels))
	for name := range r.channels {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
