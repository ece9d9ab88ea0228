package client

import (
	"sort"
	"strings"
	"sync"
	"time"
)

const directoryTTL = time.Hour

// PeerMud is a mesh peer observed through traffic or presence.
type PeerMud struct {
	Name     string
	LastSeen time.Time
}

// RemoteUser is a user on another MUD, cached from who, finger,
// locate, and presence traffic.
type RemoteUser struct {
	Name     string
	Mud      string
	Status   string
	Activity string
	Location string
	LastSeen time.Time
}

// directory is the soft-state cache of the rest of the mesh. Entries
// expire an hour after last sighting; nothing here is authoritative.
type directory struct {
	mu    sync.Mutex
	muds  map[string]*PeerMud
	users map[string]*RemoteUser // "user@mud", lower-cased
}

func newDirectory() *directory {
	return &directory{
		muds:  make(map[string]*PeerMud),
		users: make(map[string]*RemoteUser),
	}
}

// SeenMud refreshes a peer MUD's sighting time.
func (d *directory) SeenMud(name string, now time.Time) {
	if name == "" || name == "*" {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	key := strings.ToLower(name)
	if m := d.muds[key]; m != nil {
		m.LastSeen = now
		return
	}
	d.muds[key] = &PeerMud{Name: name, LastSeen: now}
}

// SeenUser refreshes a remote user's sighting, merging any non-empty
// status fields into the cached record.
func (d *directory) SeenUser(u RemoteUser, now time.Time) {
	if u.Name == "" || u.Mud == "" || u.Mud == "*" {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	key := strings.ToLower(u.Name + "@" + u.Mud)
	cur := d.users[key]
	if cur == nil {
		u.LastSeen = now
		clone := u
		d.users[key] = &clone
		return
	}
	cur.LastSeen = now
	if u.Status != "" {
		cur.Status = u.Status
	}
	if u.Activity != "" {
		cur.Activity = u.Activity
	}
	if u.Location != "" {
		cur.Location = u.Location
	}
}

// Drop removes a remote user, for presence status "offline".
func (d *directory) Drop(user, mud string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.users, strings.ToLower(user+"@"+mud))
}

// Muds lists unexpired peer MUDs sorted by name.
func (d *directory) Muds(now time.Time) []PeerMud {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]PeerMud, 0, len(d.muds))
	for key, m := range d.muds {
		if now.Sub(m.LastSeen) > directoryTTL {
			delete(d.muds, key)
			continue
		}
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Lookup finds an unexpired cached remote user.
func (d *directory) Lookup(user, mud string, now time.Time) (RemoteUser, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	key := strings.ToLower(user + "@" + mud)
	u := d.users[key]
	if u == nil {
		return RemoteUser{}, false
	}
	if now.Sub(u.LastSeen) > directoryTTL {
		delete(d.users, key)
		return RemoteUser{}, false
	}
	return *u, true
}
