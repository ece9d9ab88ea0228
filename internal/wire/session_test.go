package wire

import (
	"net"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memConn is an in-memory net.Conn half. Reads drain the inbound
// buffer and time out immediately when it is empty, matching the
// non-blocking poll discipline the session relies on.
type memConn struct {
	mu       sync.Mutex
	inbound  []byte
	outbound []byte
	closed   bool
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func (c *memConn) Read(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.inbound) == 0 {
		return 0, timeoutErr{}
	}
	n := copy(p, c.inbound)
	c.inbound = c.inbound[n:]
	return n, nil
}

func (c *memConn) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.outbound = append(c.outbound, p...)
	return len(p), nil
}

func (c *memConn) feed(p []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inbound = append(c.inbound, p...)
}

func (c *memConn) sent() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]byte, len(c.outbound))
	copy(out, c.outbound)
	return out
}

func (c *memConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *memConn) LocalAddr() net.Addr              { return &net.TCPAddr{} }
func (c *memConn) RemoteAddr() net.Addr             { return &net.TCPAddr{} }
func (c *memConn) SetDeadline(time.Time) error      { return nil }
func (c *memConn) SetReadDeadline(time.Time) error  { return nil }
func (c *memConn) SetWriteDeadline(time.Time) error { return nil }

func newTestSession(t *testing.T) (*Session, *memConn) {
	t.Helper()
	conn := &memConn{}
	return NewSession(conn, nil, DefaultMaxPayload, zerolog.New(zerolog.NewTestWriter(t))), conn
}

func serverFrame(opcode byte, payload []byte) []byte {
	return AppendFrame(nil, opcode, payload, false, [4]byte{})
}

func TestSessionNoData(t *testing.T) {
	s, _ := newTestSession(t)

	ev, payload, err := s.Next()
	require.NoError(t, err)
	assert.Equal(t, EventNone, ev)
	assert.Nil(t, payload)
}

func TestSessionReadsTextFrames(t *testing.T) {
	s, conn := newTestSession(t)
	conn.feed(serverFrame(OpText, []byte(`{"type":"ping"}`)))
	conn.feed(serverFrame(OpText, []byte(`{"type":"pong"}`)))

	ev, payload, err := s.Next()
	require.NoError(t, err)
	assert.Equal(t, EventText, ev)
	assert.Equal(t, `{"type":"ping"}`, string(payload))

	ev, payload, err = s.Next()
	require.NoError(t, err)
	assert.Equal(t, EventText, ev)
	assert.Equal(t, `{"type":"pong"}`, string(payload))
}

func TestSessionPartialFrameRetained(t *testing.T) {
	s, conn := newTestSession(t)
	frame := serverFrame(OpText, []byte(`{"type":"presence"}`))

	conn.feed(frame[:5])
	ev, _, err := s.Next()
	require.NoError(t, err)
	assert.Equal(t, EventNone, ev)

	conn.feed(frame[5:])
	ev, payload, err := s.Next()
	require.NoError(t, err)
	assert.Equal(t, EventText, ev)
	assert.Equal(t, `{"type":"presence"}`, string(payload))
}

func TestSessionAnswersWirePing(t *testing.T) {
	s, conn := newTestSession(t)
	conn.feed(serverFrame(OpPing, []byte("ping-echo")))
	conn.feed(serverFrame(OpText, []byte("{}")))

	// The ping never surfaces; the next event is the text frame.
	ev, _, err := s.Next()
	require.NoError(t, err)
	assert.Equal(t, EventText, ev)

	pong, consumed, err := Decode(conn.sent(), 0)
	require.NoError(t, err)
	require.NotZero(t, consumed)
	assert.Equal(t, byte(OpPong), pong.Opcode)
	assert.Equal(t, "ping-echo", string(pong.Payload))
}

func TestSessionSurfacesWirePong(t *testing.T) {
	s, conn := newTestSession(t)
	conn.feed(serverFrame(OpPong, nil))

	ev, _, err := s.Next()
	require.NoError(t, err)
	assert.Equal(t, EventPong, ev)
}

func TestSessionCloseFrame(t *testing.T) {
	s, conn := newTestSession(t)
	conn.feed(serverFrame(OpClose, nil))

	ev, _, err := s.Next()
	require.NoError(t, err)
	assert.Equal(t, EventClosed, ev)
}

func TestSessionFragmentationTearsDown(t *testing.T) {
	s, conn := newTestSession(t)
	frame := serverFrame(OpText, []byte("half"))
	frame[0] &^= 0x80
	conn.feed(frame)

	_, _, err := s.Next()
	require.ErrorIs(t, err, ErrFragmented)
}

func TestSessionLeftoverFromHandshake(t *testing.T) {
	conn := &memConn{}
	leftover := serverFrame(OpText, []byte(`{"type":"auth"}`))
	s := NewSession(conn, leftover, DefaultMaxPayload, zerolog.Nop())

	ev, payload, err := s.Next()
	require.NoError(t, err)
	assert.Equal(t, EventText, ev)
	assert.Equal(t, `{"type":"auth"}`, string(payload))
}

func TestSessionSendIsMaskedText(t *testing.T) {
	s, conn := newTestSession(t)
	require.NoError(t, s.Send([]byte(`{"type":"tell"}`)))

	frame, consumed, err := Decode(conn.sent(), 0)
	require.NoError(t, err)
	require.NotZero(t, consumed)
	assert.Equal(t, byte(OpText), frame.Opcode)
	assert.Equal(t, `{"type":"tell"}`, string(frame.Payload))
	assert.Equal(t, byte(0x80), conn.sent()[1]&0x80, "client frames are masked")
}

// A session over a real TCP conn must drain data already buffered in
// the socket. This guards the read deadline in fill: an expired
// deadline makes the kernel fail the read before looking at the
// buffer, and the session would report EventNone forever.
func TestSessionReadsFromRealConn(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		conn, err := ln.Accept()
		if err == nil {
			accepted <- conn
		}
	}()

	conn, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	server := <-accepted
	defer server.Close()
	_, err = server.Write(serverFrame(OpText, []byte(`{"type":"tell"}`)))
	require.NoError(t, err)

	s := NewSession(conn, nil, DefaultMaxPayload, zerolog.Nop())
	var payload []byte
	require.Eventually(t, func() bool {
		ev, p, err := s.Next()
		require.NoError(t, err)
		if ev == EventText {
			payload = p
			return true
		}
		return false
	}, 2*time.Second, 5*time.Millisecond, "buffered frame never surfaced")
	assert.Equal(t, `{"type":"tell"}`, string(payload))
}

func TestSessionCloseSendsCloseFrame(t *testing.T) {
	s, conn := newTestSession(t)
	require.NoError(t, s.Close())

	frame, _, err := Decode(conn.sent(), 0)
	require.NoError(t, err)
	assert.Equal(t, byte(OpClose), frame.Opcode)
	assert.True(t, conn.closed)
}
