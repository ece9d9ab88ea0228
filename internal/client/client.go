// Package client implements the MudVault Mesh client: the connection
// state machine, envelope routing, rate limiting, history, and the
// send API the command layer calls. All timing derives from the host
// adapter's clock, and all work happens inside Poll on the embedder's
// thread; the only internal goroutine is the dial helper.
package client

import (
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Coffee-Nerd/MudVault-Mesh/internal/config"
	mesherr "github.com/Coffee-Nerd/MudVault-Mesh/internal/errors"
	"github.com/Coffee-Nerd/MudVault-Mesh/internal/host"
	"github.com/Coffee-Nerd/MudVault-Mesh/internal/proto"
	"github.com/Coffee-Nerd/MudVault-Mesh/internal/wire"
)

// transport is the session surface the state machine drives. Satisfied
// by *wire.Session; tests substitute a fake.
type transport interface {
	Send(payload []byte) error
	Next() (wire.Event, []byte, error)
	Close() error
}

// Dialer opens the TCP stream to the gateway. The default dials with
// net.DialTimeout; tests substitute a pipe.
type Dialer interface {
	Dial(addr string, timeout time.Duration) (net.Conn, error)
}

type netDialer struct{}

func (netDialer) Dial(addr string, timeout time.Duration) (net.Conn, error) {
	return net.DialTimeout("tcp", addr, timeout)
}

// userAgent identifies this client in the upgrade request.
const userAgent = "MudVault-Mesh-Go/1.0"

// maxEventsPerPoll bounds how many inbound envelopes one Poll call
// processes, so a burst cannot stall the game pulse.
const maxEventsPerPoll = 64

type dialResult struct {
	conn net.Conn
	err  error
}

// Stats is a snapshot of client counters.
type Stats struct {
	State          State
	Gateway        string
	Attempts       int
	ConnectedSince time.Time
	LastPingAge    time.Duration
	LastPongAge    time.Duration
	LastError      string

	Sent            uint64
	Received        uint64
	TellsSent       uint64
	TellsReceived   uint64
	ChannelSent     uint64
	ChannelReceived uint64
	Dropped         uint64
}

// Client is one MUD's connection to the mesh gateway.
type Client struct {
	cfg  config.Config
	host host.Adapter
	log  zerolog.Logger

	dialer Dialer
	audit  *auditor

	mu      sync.Mutex
	state   State
	stopped bool

	// Dial bookkeeping.
	dialCh chan dialResult

	// Handshake bookkeeping, valid in StateHandshaking.
	conn     net.Conn
	hsKey    string
	hsBuf    []byte
	deadline time.Time
	session  transport

	// Reconnect schedule.
	attempts int
	retryAt  time.Time

	// Heartbeat.
	lastPing time.Time
	lastPong time.Time

	stats Stats

	limiter     *rateLimiter
	tellHistory *historyRing
	channels    *channelRegistry
	dir         *directory
	corr        *correlator
}

// Option adjusts client construction.
type Option func(*Client)

// WithDialer substitutes the gateway dialer.
func WithDialer(d Dialer) Option {
	return func(c *Client) { c.dialer = d }
}

// New builds a client. The first dial happens on the first Poll.
func New(cfg config.Config, adapter host.Adapter, logger zerolog.Logger, opts ...Option) *Client {
	c := &Client{
		cfg:         cfg,
		host:        adapter,
		log:         logger.With().Str("component", "mesh").Logger(),
		dialer:      netDialer{},
		state:       StateDisconnected,
		retryAt:     adapter.Now(), // first attempt is immediate
		limiter:     newRateLimiter(),
		tellHistory: newHistoryRing(cfg.HistorySize),
		channels:    newChannelRegistry(cfg.ChannelHistory),
		dir:         newDirectory(),
		corr:        newCorrelator(),
	}
	c.audit = newAuditor(cfg, c.log)
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns the current connection state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Connected reports whether envelopes can be sent right now.
func (c *Client) Connected() bool {
	return c.State() == StateAuthenticated
}

// Stats returns a counter snapshot.
func (c *Client) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.stats
	s.State = c.state
	s.Gateway = c.cfg.GatewayAddr()
	s.Attempts = c.attempts
	if c.state == StateAuthenticated {
		now := c.host.Now()
		s.LastPingAge = now.Sub(c.lastPing)
		s.LastPongAge = now.Sub(c.lastPong)
	}
	return s
}

// Poll advances the state machine one step. It never blocks; call it
// once per game pulse.
func (c *Client) Poll() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stopped {
		return
	}
	now := c.host.Now()
	c.corr.Sweep(now)

	switch c.state {
	case StateDisconnected:
		c.pollDisconnected(now)
	case StateConnecting:
		c.pollConnecting(now)
	case StateHandshaking:
		c.pollHandshaking(now)
	case StateAuthenticating:
		c.pollAuthenticating(now)
	case StateAuthenticated:
		c.pollAuthenticated(now)
	case StateFatal:
		// Terminal until ForceReconnect.
	}
}

func (c *Client) pollDisconnected(now time.Time) {
	if now.Before(c.retryAt) {
		return
	}
	// A fresh buffered channel per attempt: a stale dial result lands
	// in an orphaned channel instead of a new attempt's.
	ch := make(chan dialResult, 1)
	c.dialCh = ch
	addr := c.cfg.GatewayAddr()
	timeout := c.cfg.ConnectTimeout
	dialer := c.dialer

	c.log.Info().Str("gateway", addr).Int("attempt", c.attempts+1).Msg("connecting to mesh gateway")
	go func() {
		conn, err := dialer.Dial(addr, timeout)
		ch <- dialResult{conn: conn, err: err}
	}()
	c.deadline = now.Add(timeout)
	c.state = StateConnecting
}

func (c *Client) pollConnecting(now time.Time) {
	select {
	case res := <-c.dialCh:
		if res.err != nil {
			c.failAttempt(now, mesherr.New(mesherr.KindTransport, "dial", res.err))
			return
		}
		c.startHandshake(now, res.conn)
	default:
		if now.After(c.deadline) {
			c.failAttempt(now, mesherr.Newf(mesherr.KindTransport, "dial", "timed out after %s", c.cfg.ConnectTimeout))
		}
	}
}

func (c *Client) startHandshake(now time.Time, conn net.Conn) {
	key, err := wire.GenerateKey()
	if err != nil {
		_ = conn.Close()
		c.failAttempt(now, mesherr.New(mesherr.KindInternal, "handshake", err))
		return
	}
	req := wire.BuildUpgradeRequest(c.cfg.GatewayAddr(), "/", key, userAgent)
	err = conn.SetWriteDeadline(time.Now().Add(c.cfg.ConnectTimeout))
	if err == nil {
		_, err = conn.Write(req)
	}
	if err != nil {
		_ = conn.Close()
		c.failAttempt(now, mesherr.New(mesherr.KindTransport, "handshake", err))
		return
	}
	c.conn = conn
	c.hsKey = key
	c.hsBuf = nil
	c.deadline = now.Add(c.cfg.ConnectTimeout)
	c.state = StateHandshaking
	c.log.Debug().Msg("upgrade request sent")
}

func (c *Client) pollHandshaking(now time.Time) {
	if err := c.readHandshake(); err != nil {
		c.closeConn()
		c.failAttempt(now, mesherr.New(mesherr.KindTransport, "handshake", err))
		return
	}
	consumed, err := wire.ParseUpgradeResponse(c.hsBuf, c.hsKey)
	if err != nil {
		c.closeConn()
		c.failAttempt(now, mesherr.New(mesherr.KindTransport, "handshake", err))
		return
	}
	if consumed == 0 {
		if now.After(c.deadline) {
			c.closeConn()
			c.failAttempt(now, mesherr.Newf(mesherr.KindTransport, "handshake", "timed out after %s", c.cfg.ConnectTimeout))
		}
		return
	}

	leftover := c.hsBuf[consumed:]
	c.session = wire.NewSession(c.conn, leftover, c.cfg.BufferSize, c.log)
	c.conn = nil
	c.hsBuf = nil

	auth := proto.NewAuth(c.cfg.MudName, c.cfg.AuthToken)
	if err := c.session.Send(auth.Encode()); err != nil {
		c.dropSession()
		c.failAttempt(now, mesherr.New(mesherr.KindTransport, "auth", err))
		return
	}
	c.stats.Sent++
	c.deadline = now.Add(c.cfg.ConnectTimeout)
	c.state = StateAuthenticating
	c.log.Debug().Str("mud", c.cfg.MudName).Msg("websocket established, authenticating")
}

// readHandshake performs one near-non-blocking read of the upgrade
// response into the handshake buffer. The deadline sits a moment in
// the future; see Session.fill for why it must not be time.Now().
func (c *Client) readHandshake() error {
	var buf [1024]byte
	if err := c.conn.SetReadDeadline(time.Now().Add(time.Millisecond)); err != nil {
		return err
	}
	n, err := c.conn.Read(buf[:])
	if n > 0 {
		c.hsBuf = append(c.hsBuf, buf[:n]...)
	}
	if err != nil {
		if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
			return nil
		}
		return err
	}
	return nil
}

func (c *Client) pollAuthenticating(now time.Time) {
	for i := 0; i < maxEventsPerPoll; i++ {
		event, payload, err := c.session.Next()
		if err != nil {
			c.dropSession()
			c.failAttempt(now, mesherr.New(mesherr.KindTransport, "auth", err))
			return
		}
		switch event {
		case wire.EventNone:
			if now.After(c.deadline) {
				c.dropSession()
				c.failAttempt(now, mesherr.Newf(mesherr.KindAuth, "auth", "no auth reply within %s", c.cfg.ConnectTimeout))
			}
			return
		case wire.EventClosed:
			c.dropSession()
			c.failAttempt(now, mesherr.Newf(mesherr.KindTransport, "auth", "gateway closed during auth"))
			return
		case wire.EventPong:
			continue
		case wire.EventText:
			if done := c.handleAuthReply(now, payload); done {
				return
			}
		}
	}
}

// handleAuthReply inspects one pre-auth envelope. It reports whether
// the auth exchange is settled either way.
func (c *Client) handleAuthReply(now time.Time, raw []byte) bool {
	c.stats.Received++
	kindStr, _ := proto.GetString(raw, "type")
	kind, ok := proto.ParseKind(kindStr)
	if !ok {
		c.log.Warn().Str("type", kindStr).Msg("unknown envelope kind during auth")
		return false
	}
	switch kind {
	case proto.KindAuth:
		status, _ := proto.GetString(raw, "payload.status")
		if status == "success" {
			c.becomeAuthenticated(now)
			return true
		}
		message, _ := proto.GetString(raw, "payload.message")
		c.dropSession()
		c.failAttempt(now, mesherr.Newf(mesherr.KindAuth, "auth", "rejected: %s", message))
		return true
	case proto.KindError:
		code, _ := proto.GetInt(raw, "payload.code")
		message, _ := proto.GetString(raw, "payload.message")
		c.dropSession()
		c.failAttempt(now, mesherr.Newf(mesherr.KindAuth, "auth", "error %d: %s", code, message))
		return true
	default:
		// The gateway should not route traffic before auth settles;
		// drop anything early rather than acting on it.
		c.stats.Dropped++
		return false
	}
}

func (c *Client) becomeAuthenticated(now time.Time) {
	c.state = StateAuthenticated
	c.attempts = 0
	c.lastPing = now
	c.lastPong = now
	c.stats.ConnectedSince = now
	c.stats.LastError = ""
	c.log.Info().Str("mud", c.cfg.MudName).Msg("authenticated with mesh gateway")
	c.rejoinChannels()
}

// rejoinChannels replays gateway joins for every channel that still
// has local listeners, so a reconnect restores subscriptions.
func (c *Client) rejoinChannels() {
	for _, name := range c.channels.Names() {
		if len(c.channels.Members(name)) == 0 {
			continue
		}
		e := proto.NewChannelMessage(c.localEndpoint(), name, proto.ActionJoin, "")
		if err := c.sendLocked(e); err != nil {
			c.log.Warn().Err(err).Str("channel", name).Msg("channel rejoin failed")
			return
		}
	}
}

func (c *Client) pollAuthenticated(now time.Time) {
	for i := 0; i < maxEventsPerPoll; i++ {
		event, payload, err := c.session.Next()
		if err != nil {
			c.dropSession()
			c.failAttempt(now, mesherr.New(mesherr.KindTransport, "read", err))
			return
		}
		switch event {
		case wire.EventNone:
			c.heartbeat(now)
			return
		case wire.EventClosed:
			c.dropSession()
			c.failAttempt(now, mesherr.Newf(mesherr.KindTransport, "read", "gateway closed connection"))
			return
		case wire.EventPong:
			c.lastPong = now
		case wire.EventText:
			c.dispatch(now, payload)
		}
	}
	c.heartbeat(now)
}

func (c *Client) heartbeat(now time.Time) {
	if now.Sub(c.lastPong) > 2*c.cfg.PingInterval {
		c.dropSession()
		c.failAttempt(now, mesherr.Newf(mesherr.KindTransport, "heartbeat",
			"no pong in %s", now.Sub(c.lastPong)))
		return
	}
	if now.Sub(c.lastPing) >= c.cfg.PingInterval {
		ping := proto.NewPing(c.localEndpoint(), now.UnixMilli())
		if err := c.sendLocked(ping); err != nil {
			c.dropSession()
			c.failAttempt(now, mesherr.New(mesherr.KindTransport, "heartbeat", err))
			return
		}
		c.lastPing = now
	}
}

// failAttempt records a connection failure and schedules the next
// attempt, or gives up once the attempt budget is spent.
func (c *Client) failAttempt(now time.Time, err error) {
	c.state = StateDisconnected
	c.attempts++
	c.stats.LastError = err.Error()

	if c.attempts >= c.cfg.MaxReconnects {
		c.state = StateFatal
		c.log.Error().Err(err).Int("attempts", c.attempts).
			Msg("giving up on mesh gateway; use reconnect to retry")
		return
	}
	delay := c.backoffDelay(c.attempts)
	c.retryAt = now.Add(delay)
	c.log.Warn().Err(err).Int("attempt", c.attempts).Dur("retry_in", delay).
		Msg("mesh connection failed")
}

// backoffDelay returns the wait after the nth consecutive failure:
// base * factor^(n-1), capped.
func (c *Client) backoffDelay(n int) time.Duration {
	d := c.cfg.ReconnectDelay
	for i := 1; i < n; i++ {
		d = time.Duration(float64(d) * c.cfg.RetryBackoff)
		if d >= c.cfg.MaxRetryDelay {
			return c.cfg.MaxRetryDelay
		}
	}
	if d > c.cfg.MaxRetryDelay {
		return c.cfg.MaxRetryDelay
	}
	return d
}

func (c *Client) closeConn() {
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
}

func (c *Client) dropSession() {
	if c.session != nil {
		_ = c.session.Close()
		c.session = nil
	}
}

// Stop tears the connection down, drops outstanding correlations,
// and disables reconnection. ForceReconnect revives the client.
func (c *Client) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopped = true
	c.closeConn()
	c.dropSession()
	c.state = StateFatal
	c.corr = newCorrelator()
	c.audit.Close()
	c.log.Info().Msg("mesh client stopped")
}

// ForceReconnect drops any current connection, resets the attempt
// budget, and schedules an immediate dial. This is the escape hatch
// from StateFatal.
func (c *Client) ForceReconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopped = false
	c.closeConn()
	c.dropSession()
	c.attempts = 0
	c.retryAt = c.host.Now()
	c.state = StateDisconnected
	c.log.Info().Msg("reconnect forced")
}

// sendLocked encodes and transmits one envelope. Callers hold c.mu
// and have verified c.state == StateAuthenticated.
func (c *Client) sendLocked(e *proto.Envelope) error {
	if c.session == nil {
		return mesherr.New(mesherr.KindTransport, "send", mesherr.ErrNotConnected)
	}
	raw := e.Encode()
	maxPayload := c.cfg.BufferSize
	if maxPayload <= 0 {
		maxPayload = wire.DefaultMaxPayload
	}
	if len(raw) > maxPayload {
		return mesherr.Newf(mesherr.KindCapacity, "send", "envelope is %d bytes", len(raw))
	}
	if err := c.session.Send(raw); err != nil {
		return mesherr.New(mesherr.KindTransport, "send", err)
	}
	c.stats.Sent++
	c.audit.Record("out", e.Kind, endpointLabel(e.From), endpointLabel(e.To), e.ID)
	return nil
}

func (c *Client) localEndpoint() proto.Endpoint {
	return proto.Endpoint{Mud: c.cfg.MudName}
}

func (c *Client) userEndpoint(user string) proto.Endpoint {
	return proto.Endpoint{Mud: c.cfg.MudName, User: user}
}

func endpointLabel(e proto.Endpoint) string {
	if e.User != "" {
		return fmt.Sprintf("%s@%s", e.User, e.Mud)
	}
	if e.Channel != "" {
		return fmt.Sprintf("#%s@%s", e.Channel, e.Mud)
	}
	return e.Mud
}
