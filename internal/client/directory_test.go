package client

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDirectoryMudExpiry(t *testing.T) {
	d := newDirectory()
	now := testEpoch

	d.SeenMud("AlphaMUD", now)
	d.SeenMud("BetaMUD", now.Add(30*time.Minute))

	muds := d.Muds(now.Add(45 * time.Minute))
	require.Len(t, muds, 2)
	assert.Equal(t, "AlphaMUD", muds[0].Name)

	// Alpha's sighting is over an hour old now; Beta's is not.
	muds = d.Muds(now.Add(61 * time.Minute))
	require.Len(t, muds, 1)
	assert.Equal(t, "BetaMUD", muds[0].Name)
}

func TestDirectorySightingRefreshesExpiry(t *testing.T) {
	d := newDirectory()
	now := testEpoch

	d.SeenMud("AlphaMUD", now)
	d.SeenMud("AlphaMUD", now.Add(50*time.Minute))

	assert.Len(t, d.Muds(now.Add(100*time.Minute)), 1)
	assert.Empty(t, d.Muds(now.Add(3*time.Hour)))
}

func TestDirectoryUserMerge(t *testing.T) {
	d := newDirectory()
	now := testEpoch

	d.SeenUser(RemoteUser{Name: "Zed", Mud: "OtherMUD", Status: "online"}, now)
	d.SeenUser(RemoteUser{Name: "Zed", Mud: "OtherMUD", Location: "The Pit"}, now.Add(time.Minute))

	u, ok := d.Lookup("zed", "othermud", now.Add(2*time.Minute))
	require.True(t, ok)
	assert.Equal(t, "online", u.Status, "merge keeps earlier non-empty fields")
	assert.Equal(t, "The Pit", u.Location)

	_, ok = d.Lookup("Zed", "OtherMUD", now.Add(2*time.Hour))
	assert.False(t, ok, "entries expire an hour after last sighting")
}

func TestDirectoryIgnoresWildcards(t *testing.T) {
	d := newDirectory()
	d.SeenMud("*", testEpoch)
	d.SeenMud("", testEpoch)
	assert.Empty(t, d.Muds(testEpoch))

	d.SeenUser(RemoteUser{Name: "Zed", Mud: "*"}, testEpoch)
	_, ok := d.Lookup("Zed", "*", testEpoch)
	assert.False(t, ok)
}
