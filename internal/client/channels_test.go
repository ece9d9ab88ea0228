package client

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChannelRegistryJoinLeave(t *testing.T) {
	reg := newChannelRegistry(10)

	assert.True(t, reg.Join("gossip", "Alice", testEpoch), "first listener triggers gateway join")
	assert.False(t, reg.Join("gossip", "Bob", testEpoch))
	assert.False(t, reg.Join("gossip", "alice", testEpoch), "names are case-insensitive")

	assert.Equal(t, []string{"alice", "bob"}, reg.Members("gossip"))
	assert.True(t, reg.Member("gossip", "ALICE"))

	wasMember, empty := reg.Leave("gossip", "Alice")
	assert.True(t, wasMember)
	assert.False(t, empty)

	wasMember, empty = reg.Leave("gossip", "Bob")
	assert.True(t, wasMember)
	assert.True(t, empty)

	wasMember, _ = reg.Leave("gossip", "Bob")
	assert.False(t, wasMember)

	// The channel stays known after its last listener leaves.
	assert.True(t, reg.Known("gossip"))
	assert.Equal(t, []string{"gossip"}, reg.Names())
}

func TestChannelRegistryHistorySurvivesEmpty(t *testing.T) {
	reg := newChannelRegistry(10)
	reg.Join("gossip", "Alice", testEpoch)
	reg.Record("gossip", testEpoch, "[gossip] Carol@OtherMUD: hi")
	reg.Leave("gossip", "Alice")

	got := reg.History("gossip", 0)
	require.Len(t, got, 1)
	assert.Equal(t, "[gossip] Carol@OtherMUD: hi", got[0].Line)
}

func TestChannelRegistryRecordBeforeJoin(t *testing.T) {
	reg := newChannelRegistry(10)
	// An inbound line can beat the first local join.
	reg.Record("news", testEpoch, "[news] Zed@OtherMUD: fresh")

	assert.True(t, reg.Known("news"))
	assert.Empty(t, reg.Members("news"))
	require.Len(t, reg.History("news", 0), 1)
}
