package client

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Coffee-Nerd/MudVault-Mesh/internal/proto"
)

func TestRateLimiterFixedWindow(t *testing.T) {
	rl := newRateLimiter()
	now := testEpoch

	for i := 0; i < 5; i++ {
		assert.True(t, rl.Allow("alice", proto.KindWho, 5, now), "send %d", i+1)
	}
	assert.False(t, rl.Allow("alice", proto.KindWho, 5, now))

	// Refusals do not consume slots: still refused, but the window
	// opens on schedule.
	for i := 0; i < 10; i++ {
		assert.False(t, rl.Allow("alice", proto.KindWho, 5, now.Add(30*time.Second)))
	}
	assert.True(t, rl.Allow("alice", proto.KindWho, 5, now.Add(time.Minute)))
}

func TestRateLimiterIsolation(t *testing.T) {
	rl := newRateLimiter()
	now := testEpoch

	for i := 0; i < 5; i++ {
		rl.Allow("alice", proto.KindWho, 5, now)
	}
	assert.False(t, rl.Allow("alice", proto.KindWho, 5, now))

	// Other users and other kinds keep their own budgets.
	assert.True(t, rl.Allow("bob", proto.KindWho, 5, now))
	assert.True(t, rl.Allow("alice", proto.KindTell, 20, now))

	// Names are case-insensitive: ALICE shares alice's budget.
	assert.False(t, rl.Allow("ALICE", proto.KindWho, 5, now))
}

func TestRateLimiterRemaining(t *testing.T) {
	rl := newRateLimiter()
	now := testEpoch

	assert.Equal(t, 5, rl.Remaining("alice", proto.KindWho, 5, now))
	rl.Allow("alice", proto.KindWho, 5, now)
	rl.Allow("alice", proto.KindWho, 5, now)
	assert.Equal(t, 3, rl.Remaining("alice", proto.KindWho, 5, now))
	assert.Equal(t, 5, rl.Remaining("alice", proto.KindWho, 5, now.Add(time.Minute)))
	assert.Equal(t, -1, rl.Remaining("alice", proto.KindWho, 0, now))
}
