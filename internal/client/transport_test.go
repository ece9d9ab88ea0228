package client

import (
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/Coffee-Nerd/MudVault-Mesh/internal/config"
	"github.com/Coffee-Nerd/MudVault-Mesh/internal/host"
	"github.com/Coffee-Nerd/MudVault-Mesh/internal/proto"
	"github.com/Coffee-Nerd/MudVault-Mesh/internal/wire"
)

type fakeEvent struct {
	event   wire.Event
	payload []byte
	err     error
}

// fakeTransport is a scripted session: tests queue inbound events and
// inspect what the client sent.
type fakeTransport struct {
	mu     sync.Mutex
	queue  []fakeEvent
	sent   [][]byte
	closed bool
}

func (f *fakeTransport) push(e *proto.Envelope) {
	f.pushRaw(wire.EventText, e.Encode())
}

func (f *fakeTransport) pushRaw(event wire.Event, payload []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queue = append(f.queue, fakeEvent{event: event, payload: payload})
}

func (f *fakeTransport) pushErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queue = append(f.queue, fakeEvent{err: err})
}

func (f *fakeTransport) Send(payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	buf := make([]byte, len(payload))
	copy(buf, payload)
	f.sent = append(f.sent, buf)
	return nil
}

func (f *fakeTransport) Next() (wire.Event, []byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.queue) == 0 {
		return wire.EventNone, nil, nil
	}
	ev := f.queue[0]
	f.queue = f.queue[1:]
	return ev.event, ev.payload, ev.err
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeTransport) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func (f *fakeTransport) sentAt(i int) []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sent[i]
}

func (f *fakeTransport) lastSent() []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		return nil
	}
	return f.sent[len(f.sent)-1]
}

// sentOfKind returns the sent envelopes whose type matches kind.
func (f *fakeTransport) sentOfKind(kind proto.Kind) [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out [][]byte
	for _, raw := range f.sent {
		if k, _ := proto.GetString(raw, "type"); k == string(kind) {
			out = append(out, raw)
		}
	}
	return out
}

func (f *fakeTransport) wasClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func testConfig(mutate func(*config.Config)) config.Config {
	cfg := config.Default()
	cfg.MudName = "TestMUD"
	cfg.AuthToken = "secret"
	if mutate != nil {
		mutate(&cfg)
	}
	return cfg
}

var testEpoch = time.Date(2026, 1, 2, 12, 0, 0, 0, time.UTC)

// newAuthedClient builds a client pinned in the authenticated state
// on a scripted transport, with a settable host clock.
func newAuthedClient(t *testing.T, mutate func(*config.Config)) (*Client, *host.MemoryHost, *fakeTransport) {
	t.Helper()
	h := host.NewMemoryHost(testEpoch)
	c := New(testConfig(mutate), h, zerolog.Nop())
	ft := &fakeTransport{}
	c.session = ft
	c.state = StateAuthenticated
	c.lastPing = h.Now()
	c.lastPong = h.Now()
	c.stats.ConnectedSince = h.Now()
	return c, h, ft
}

func remote(user string) proto.Endpoint {
	return proto.Endpoint{Mud: "OtherMUD", User: user}
}

func localTo(user string) proto.Endpoint {
	return proto.Endpoint{Mud: "TestMUD", User: user}
}
