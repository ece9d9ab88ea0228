package wire

import (
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/rs/zerolog"
)

// Event classifies what Next produced.
type Event int

const (
	// EventNone means no complete frame is available yet.
	EventNone Event = iota
	// EventText carries one JSON envelope payload.
	EventText
	// EventPong is a wire-level liveness event.
	EventPong
	// EventClosed means the peer sent a clean close.
	EventClosed
)

const writeWait = 10 * time.Second

// Session wraps the frame codec with line-oriented semantics: the
// wire carries exactly one JSON envelope per text frame. Reads are
// non-blocking; a partial frame stays in the receive buffer and is
// retried on the next poll without data loss.
type Session struct {
	conn       net.Conn
	rbuf       []byte
	scratch    [4096]byte
	maxPayload int
	log        zerolog.Logger
}

// NewSession takes ownership of conn. leftover holds any bytes read
// past the handshake response; they are treated as frame data.
func NewSession(conn net.Conn, leftover []byte, maxPayload int, logger zerolog.Logger) *Session {
	if maxPayload <= 0 {
		maxPayload = DefaultMaxPayload
	}
	s := &Session{
		conn:       conn,
		maxPayload: maxPayload,
		log:        logger,
	}
	if len(leftover) > 0 {
		s.rbuf = append(s.rbuf, leftover...)
	}
	return s
}

// Send writes one envelope as a single masked text frame.
func (s *Session) Send(payload []byte) error {
	return s.writeFrame(OpText, payload)
}

func (s *Session) writeFrame(opcode byte, payload []byte) error {
	frame, err := EncodeClientFrame(opcode, payload)
	if err != nil {
		return err
	}
	if err := s.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return fmt.Errorf("set write deadline: %w", err)
	}
	if _, err := s.conn.Write(frame); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

// Next returns the next inbound event without blocking. Wire-level
// pings are answered internally and never surface. A non-nil error
// indicates a transport or protocol failure; the owning state machine
// tears the connection down.
func (s *Session) Next() (Event, []byte, error) {
	for {
		frame, consumed, err := Decode(s.rbuf, s.maxPayload)
		if err != nil {
			return EventNone, nil, err
		}
		if consumed == 0 {
			gained, err := s.fill()
			if err != nil {
				return EventNone, nil, err
			}
			if !gained {
				return EventNone, nil, nil
			}
			continue
		}
		s.rbuf = s.rbuf[consumed:]

		switch frame.Opcode {
		case OpText:
			return EventText, frame.Payload, nil
		case OpPing:
			if err := s.writeFrame(OpPong, frame.Payload); err != nil {
				return EventNone, nil, err
			}
		case OpPong:
			return EventPong, frame.Payload, nil
		case OpClose:
			s.log.Debug().Msg("close frame received")
			return EventClosed, nil, nil
		case OpBinary:
			return EventNone, nil, fmt.Errorf("unexpected binary frame")
		default:
			return EventNone, nil, fmt.Errorf("unknown opcode 0x%X", frame.Opcode)
		}
	}
}

// fill performs one near-non-blocking read, appending whatever is
// available to the receive buffer. The deadline must sit slightly in
// the future: an already-expired deadline makes a real conn fail the
// read before ever touching the socket, so buffered data would never
// drain.
func (s *Session) fill() (bool, error) {
	if err := s.conn.SetReadDeadline(time.Now().Add(time.Millisecond)); err != nil {
		return false, fmt.Errorf("set read deadline: %w", err)
	}
	n, err := s.conn.Read(s.scratch[:])
	if n > 0 {
		s.rbuf = append(s.rbuf, s.scratch[:n]...)
	}
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return n > 0, nil
		}
		return n > 0, fmt.Errorf("read: %w", err)
	}
	return n > 0, nil
}

// Close sends a close frame on a best-effort basis and closes the
// underlying stream.
func (s *Session) Close() error {
	_ = s.writeFrame(OpClose, nil)
	return s.conn.Close()
}
