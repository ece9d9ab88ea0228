package client

import (
	"sync"
	"time"
)

const correlationTTL = 30 * time.Second

// correlator remembers which local player is waiting on each
// outstanding request envelope, keyed by envelope id. Responses echo
// the request id, so a match routes the answer back to its asker.
// Entries expire after 30 seconds; a late response is dropped rather
// than delivered to the wrong player.
type correlator struct {
	mu      sync.Mutex
	pending map[string]correlation
}

type correlation struct {
	user    string
	expires time.Time
}

func newCorrelator() *correlator {
	return &correlator{pending: make(map[string]correlation)}
}

// Track associates an outstanding request id with the asking player.
func (c *correlator) Track(id, user string, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending[id] = correlation{user: user, expires: now.Add(correlationTTL)}
}

// Claim resolves a response id to its asker and forgets the entry.
func (c *correlator) Claim(id string, now time.Time) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.pending[id]
	if !ok {
		return "", false
	}
	delete(c.pending, id)
	if now.After(entry.expires) {
		return "", false
	}
	return entry.user, true
}

// Sweep drops expired entries. Called from Poll so the map cannot
// grow without bound when responses never arrive.
func (c *correlator) Sweep(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, entry := range c.pending {
		if now.After(entry.expires) {
			delete(c.pending, id)
		}
	}
}
