package wire

import (
	"bytes"
	"crypto/rand"
	"crypto/sha1"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

// acceptMagic is the GUID from RFC 6455 §1.3 used to derive the
// Sec-WebSocket-Accept value.
const acceptMagic = "258EAFA5-E914-47DA-95CA-C5AB0DC85B11"

var (
	ErrHandshakeRejected = errors.New("handshake rejected by server")
	ErrBadAccept         = errors.New("handshake accept hash mismatch")
)

// GenerateKey returns a fresh Sec-WebSocket-Key: base64 of 16 random bytes.
func GenerateKey() (string, error) {
	var raw [16]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", fmt.Errorf("generate websocket key: %w", err)
	}
	return base64.StdEncoding.EncodeToString(raw[:]), nil
}

// AcceptKey computes the expected Sec-WebSocket-Accept for a key:
// base64(SHA-1(key || acceptMagic)).
func AcceptKey(key string) string {
	sum := sha1.Sum([]byte(key + acceptMagic))
	return base64.StdEncoding.EncodeToString(sum[:])
}

// BuildUpgradeRequest renders the HTTP/1.1 upgrade request for the
// gateway endpoint. hostport is echoed verbatim in the Host header.
func BuildUpgradeRequest(hostport, path, key, userAgent string) []byte {
	if path == "" {
		path = "/"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "GET %s HTTP/1.1\r\n", path)
	fmt.Fprintf(&b, "Host: %s\r\n", hostport)
	b.WriteString("Upgrade: websocket\r\n")
	b.WriteString("Connection: Upgrade\r\n")
	fmt.Fprintf(&b, "Sec-WebSocket-Key: %s\r\n", key)
	b.WriteString("Sec-WebSocket-Version: 13\r\n")
	fmt.Fprintf(&b, "User-Agent: %s\r\n", userAgent)
	b.WriteString("\r\n")
	return []byte(b.String())
}

// ParseUpgradeResponse checks a buffered server response against the
// handshake key. It returns the number of bytes consumed (through the
// header terminator); consumed == 0 with a nil error means the
// response is still incomplete. Any outcome other than a 101 status
// with a matching Sec-WebSocket-Accept is a permanent failure for
// this connection attempt.
func ParseUpgradeResponse(buf []byte, key string) (int, error) {
	end := bytes.Index(buf, []byte("\r\n\r\n"))
	if end < 0 {
		return 0, nil
	}
	consumed := end + 4
	head := buf[:end]

	lines := strings.Split(string(head), "\r\n")
	status := lines[0]
	if !strings.HasPrefix(status, "HTTP/1.1 101") {
		return consumed, fmt.Errorf("%w: %s", ErrHandshakeRejected, status)
	}

	accept := ""
	for _, line := range lines[1:] {
		name, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(name), "Sec-WebSocket-Accept") {
			accept = strings.TrimSpace(value)
			break
		}
	}
	if accept != AcceptKey(key) {
		return consumed, ErrBadAccept
	}
	return consumed, nil
}
