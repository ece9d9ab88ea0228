package client

import (
	"strings"
	"sync"
	"time"

	"github.com/Coffee-Nerd/MudVault-Mesh/internal/proto"
)

const rateWindow = time.Minute

// rateLimiter enforces fixed one-minute windows per local player per
// message kind. A rejected attempt does not consume a slot, so a
// player who hits the cap is not punished further for retrying.
type rateLimiter struct {
	mu      sync.Mutex
	windows map[rateKey]*rateState
}

type rateKey struct {
	user string
	kind proto.Kind
}

type rateState struct {
	start time.Time
	count int
}

func newRateLimiter() *rateLimiter {
	return &rateLimiter{windows: make(map[rateKey]*rateState)}
}

// Allow reports whether user may send one more message of this kind
// right now, and consumes a slot when it may. limit <= 0 disables the
// cap for that kind.
func (r *rateLimiter) Allow(user string, kind proto.Kind, limit int, now time.Time) bool {
	if limit <= 0 {
		return true
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	key := rateKey{user: strings.ToLower(user), kind: kind}
	w := r.windows[key]
	if w == nil || now.Sub(w.start) >= rateWindow {
		r.windows[key] = &rateState{start: now, count: 1}
		return true
	}
	if w.count >= limit {
		return false
	}
	w.count++
	return true
}

// Remaining reports how many sends of this kind the user has left in
// the current window.
func (r *rateLimiter) Remaining(user string, kind proto.Kind, limit int, now time.Time) int {
	if limit <= 0 {
		return -1
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	key := rateKey{user: strings.ToLower(user), kind: kind}
	w := r.windows[key]
	if w == nil || now.Sub(w.start) >= rateWindow {
		return limit
	}
	if w.count >= limit {
		return 0
	}
	return limit - w.count
}
