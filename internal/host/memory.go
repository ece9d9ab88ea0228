package host

import (
	"strings"
	"sync"
	"time"
)

// Player is a concrete User for the in-memory host.
type Player struct {
	PlayerName  string
	Display     string
	PlayerLevel int
	Idle        int
	Room        string
	PlayerRace  string
	PlayerClass string
	PlayerGuild string
	LoginStamp  string
	PlayerPlan  string
	PlayerEmail string
}

func (p *Player) Name() string { return p.PlayerName }
func (p *Player) DisplayName() string {
	if p.Display != "" {
		return p.Display
	}
	return p.PlayerName
}
func (p *Player) Level() int        { return p.PlayerLevel }
func (p *Player) IdleSeconds() int  { return p.Idle }
func (p *Player) Location() string  { return p.Room }
func (p *Player) Race() string      { return p.PlayerRace }
func (p *Player) Class() string     { return p.PlayerClass }
func (p *Player) Guild() string     { return p.PlayerGuild }
func (p *Player) LastLogin() string { return p.LoginStamp }
func (p *Player) Plan() string      { return p.PlayerPlan }
func (p *Player) Email() string     { return p.PlayerEmail }

// Delivery records one line handed to a player.
type Delivery struct {
	User  string
	Text  string
	Style Style
}

// MemoryHost is an in-memory Adapter for tests and the demo binary.
// The clock is settable so state-machine timing is deterministic; a
// zero start time makes Now follow the system clock instead.
type MemoryHost struct {
	mu         sync.Mutex
	players    map[string]*Player // lower-cased name
	deliveries []Delivery
	denied     map[string]map[Capability]bool
	filter     func(string) (string, bool)
	now        time.Time
}

// NewMemoryHost starts with an empty player table and a clock at now.
func NewMemoryHost(now time.Time) *MemoryHost {
	return &MemoryHost{
		players: make(map[string]*Player),
		denied:  make(map[string]map[Capability]bool),
		now:     now,
	}
}

// AddPlayer brings a player online.
func (h *MemoryHost) AddPlayer(p *Player) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.players[strings.ToLower(p.PlayerName)] = p
}

// RemovePlayer takes a player offline.
func (h *MemoryHost) RemovePlayer(name string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.players, strings.ToLower(name))
}

// Deny revokes one capability from a player.
func (h *MemoryHost) Deny(name string, cap Capability) {
	h.mu.Lock()
	defer h.mu.Unlock()
	key := strings.ToLower(name)
	if h.denied[key] == nil {
		h.denied[key] = make(map[Capability]bool)
	}
	h.denied[key][cap] = true
}

// SetFilter installs a content filter predicate.
func (h *MemoryHost) SetFilter(fn func(string) (string, bool)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.filter = fn
}

// Advance moves the host clock forward.
func (h *MemoryHost) Advance(d time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.now = h.now.Add(d)
}

// SetNow pins the host clock.
func (h *MemoryHost) SetNow(t time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.now = t
}

// Deliveries returns a copy of everything delivered so far.
func (h *MemoryHost) Deliveries() []Delivery {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Delivery, len(h.deliveries))
	copy(out, h.deliveries)
	return out
}

// DeliveredTo returns the texts delivered to one player.
func (h *MemoryHost) DeliveredTo(name string) []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []string
	for _, d := range h.deliveries {
		if strings.EqualFold(d.User, name) {
			out = append(out, d.Text)
		}
	}
	return out
}

func (h *MemoryHost) FindUser(name string) (User, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	p, ok := h.players[strings.ToLower(name)]
	if !ok {
		return nil, false
	}
	return p, true
}

func (h *MemoryHost) ForEachOnline(fn func(User) bool) {
	h.mu.Lock()
	snapshot := make([]*Player, 0, len(h.players))
	for _, p := range h.players {
		snapshot = append(snapshot, p)
	}
	h.mu.Unlock()
	for _, p := range snapshot {
		if !fn(p) {
			return
		}
	}
}

func (h *MemoryHost) Deliver(u User, text string, style Style) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.deliveries = append(h.deliveries, Delivery{User: u.Name(), Text: text, Style: style})
}

func (h *MemoryHost) Can(u User, cap Capability) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return !h.denied[strings.ToLower(u.Name())][cap]
}

func (h *MemoryHost) FilterMessage(text string) (string, bool) {
	h.mu.Lock()
	fn := h.filter
	h.mu.Unlock()
	if fn == nil {
		return text, true
	}
	return fn(text)
}

func (h *MemoryHost) Now() time.Time {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.now.IsZero() {
		return time.Now()
	}
	return h.now
}
