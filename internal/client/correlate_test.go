package client

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCorrelatorClaimOnce(t *testing.T) {
	c := newCorrelator()
	now := testEpoch

	c.Track("id-1", "Alice", now)

	user, ok := c.Claim("id-1", now.Add(5*time.Second))
	require.True(t, ok)
	assert.Equal(t, "Alice", user)

	// Duplicate responses must not route twice.
	_, ok = c.Claim("id-1", now.Add(6*time.Second))
	assert.False(t, ok)
}

func TestCorrelatorExpiry(t *testing.T) {
	c := newCorrelator()
	now := testEpoch

	c.Track("id-1", "Alice", now)
	_, ok := c.Claim("id-1", now.Add(31*time.Second))
	assert.False(t, ok)
}

func TestCorrelatorSweep(t *testing.T) {
	c := newCorrelator()
	now := testEpoch

	c.Track("id-1", "Alice", now)
	c.Track("id-2", "Bob", now.Add(20*time.Second))
	c.Sweep(now.Add(31 * time.Second))

	_, ok := c.Claim("id-1", now.Add(31*time.Second))
	assert.False(t, ok)
	user, ok := c.Claim("id-2", now.Add(31*time.Second))
	require.True(t, ok)
	assert.Equal(t, "Bob", user)
}
