// Package wire implements the client half of RFC 6455 over an
// already-opened byte stream: the upgrade handshake, masked text-frame
// framing, and a Session that carries one JSON envelope per frame.
package wire

import (
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
)

// Frame opcodes used by the mesh transport. Only text and control
// frames appear on the wire; binary frames are never sent.
const (
	OpContinuation = 0x0
	OpText         = 0x1
	OpBinary       = 0x2
	OpClose        = 0x8
	OpPing         = 0x9
	OpPong         = 0xA
)

// DefaultMaxPayload caps a single inbound frame payload.
const DefaultMaxPayload = 8 * 1024

var (
	ErrFragmented      = errors.New("fragmented frame not supported")
	ErrPayloadTooLarge = errors.New("frame payload exceeds maximum size")
	ErrReservedBits    = errors.New("reserved frame bits set")
)

// Frame is one decoded WebSocket frame.
type Frame struct {
	Opcode  byte
	Payload []byte
}

// IsControl reports whether the frame carries a control opcode.
func (f Frame) IsControl() bool {
	return f.Opcode&0x8 != 0
}

// AppendFrame appends a single complete frame (FIN=1) to dst and
// returns the extended slice. When masked is true the payload is
// XOR-masked with key, as required for client-to-server frames.
func AppendFrame(dst []byte, opcode byte, payload []byte, masked bool, key [4]byte) []byte {
	dst = append(dst, 0x80|opcode)

	maskBit := byte(0)
	if masked {
		maskBit = 0x80
	}

	n := len(payload)
	switch {
	case n <= 125:
		dst = append(dst, maskBit|byte(n))
	case n <= 0xFFFF:
		dst = append(dst, maskBit|126)
		dst = binary.BigEndian.AppendUint16(dst, uint16(n))
	default:
		dst = append(dst, maskBit|127)
		dst = binary.BigEndian.AppendUint64(dst, uint64(n))
	}

	if !masked {
		return append(dst, payload...)
	}

	dst = append(dst, key[:]...)
	start := len(dst)
	dst = append(dst, payload...)
	for i := range payload {
		dst[start+i] ^= key[i%4]
	}
	return dst
}

// EncodeClientFrame builds a masked frame with a fresh random mask key.
func EncodeClientFrame(opcode byte, payload []byte) ([]byte, error) {
	var key [4]byte
	if _, err := rand.Read(key[:]); err != nil {
		return nil, fmt.Errorf("generate mask key: %w", err)
	}
	return AppendFrame(nil, opcode, payload, true, key), nil
}

// Decode reads one complete frame from the front of buf. It returns
// the frame and the number of bytes consumed. consumed == 0 with a nil
// error means buf does not yet hold a complete frame; the caller keeps
// the buffer and retries after more data arrives.
//
// Fragmented frames (FIN=0 or a continuation opcode) are a protocol
// error, as are payloads above maxPayload. If the peer set the mask
// bit the payload is unmasked before return.
func Decode(buf []byte, maxPayload int) (Frame, int, error) {
	if maxPayload <= 0 {
		maxPayload = DefaultMaxPayload
	}
	if len(buf) < 2 {
		return Frame{}, 0, nil
	}

	b0, b1 := buf[0], buf[1]
	fin := b0&0x80 != 0
	if b0&0x70 != 0 {
		return Frame{}, 0, ErrReservedBits
	}
	opcode := b0 & 0x0F
	if !fin || opcode == OpContinuation {
		return Frame{}, 0, ErrFragmented
	}

	masked := b1&0x80 != 0
	length := uint64(b1 & 0x7F)
	offset := 2

	switch length {
	case 126:
		if len(buf) < offset+2 {
			return Frame{}, 0, nil
		}
		length = uint64(binary.BigEndian.Uint16(buf[offset:]))
		offset += 2
	case 127:
		if len(buf) < offset+8 {
			return Frame{}, 0, nil
		}
		length = binary.BigEndian.Uint64(buf[offset:])
		offset += 8
	}

	if length > uint64(maxPayload) {
		return Frame{}, 0, fmt.Errorf("%w: %d > %d", ErrPayloadTooLarge, length, maxPayload)
	}

	var key [4]byte
	if masked {
		if len(buf) < offset+4 {
			return Frame{}, 0, nil
		}
		copy(key[:], buf[offset:])
		offset += 4
	}

	end := offset + int(length)
	if len(buf) < end {
		return Frame{}, 0, nil
	}

	payload := make([]byte, length)
	copy(payload, buf[offset:end])
	if masked {
		for i := range payload {
			payload[i] ^= key[i%4]
		}
	}

	return Frame{Opcode: opcode, Payload: payload}, end, nil
}
