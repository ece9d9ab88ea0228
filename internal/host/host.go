// Package host defines the contract between the mesh client and the
// embedding MUD. The client only ever borrows the adapter; the MUD
// owns its player table, output pipeline, and clock.
package host

import "time"

// Style tags delivered text so the embedder can map it to the
// player's colour and format preferences.
type Style string

const (
	StyleTell    Style = "tell"
	StyleEmote   Style = "emote"
	StyleChannel Style = "channel"
	StyleInfo    Style = "info"
	StyleError   Style = "error"
)

// Capability gates player access to mesh operations.
type Capability string

const (
	CapTell    Capability = "use-tell"
	CapChannel Capability = "use-channel"
	CapWho     Capability = "use-who"
	CapFinger  Capability = "use-finger"

	// CapShareProfile permits the player's plan and email to appear
	// in finger replies sent to other MUDs.
	CapShareProfile Capability = "share-profile"
)

// User is a local player as seen by the mesh client.
type User interface {
	Name() string
	DisplayName() string
	Level() int
	IdleSeconds() int
	Location() string
	Race() string
	Class() string
	Guild() string
	LastLogin() string
	Plan() string
	Email() string
}

// Adapter is everything the mesh client needs from its embedder.
type Adapter interface {
	// FindUser looks up a local player by name, case-insensitive
	// exact match. Only online players are returned.
	FindUser(name string) (User, bool)

	// ForEachOnline visits each online local player once. Visiting
	// stops when fn returns false.
	ForEachOnline(fn func(User) bool)

	// Deliver sends a formatted line to a local player.
	Deliver(u User, text string, style Style)

	// Can reports whether a player holds a capability.
	Can(u User, cap Capability) bool

	// FilterMessage applies the embedder's content filter. ok=false
	// rejects the message outright.
	FilterMessage(text string) (filtered string, ok bool)

	// Now is the host clock; all client timing derives from it.
	Now() time.Time
}
