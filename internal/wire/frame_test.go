package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendFrameLengthEncodings(t *testing.T) {
	cases := []struct {
		name       string
		payloadLen int
		headerLen  int
	}{
		{"short max", 125, 2},
		{"extended16 min", 126, 4},
		{"extended16 max", 65535, 4},
		{"extended64 min", 65536, 10},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			payload := make([]byte, tc.payloadLen)
			for i := range payload {
				payload[i] = byte(i)
			}

			frame := AppendFrame(nil, OpText, payload, false, [4]byte{})
			require.Len(t, frame, tc.headerLen+tc.payloadLen)

			decoded, consumed, err := Decode(frame, tc.payloadLen+1)
			require.NoError(t, err)
			require.Equal(t, len(frame), consumed)
			assert.Equal(t, byte(OpText), decoded.Opcode)
			assert.Equal(t, payload, decoded.Payload)
		})
	}
}

func TestMaskedFrameRoundTrip(t *testing.T) {
	payload := []byte(`{"type":"tell","payload":{"message":"hi"}}`)
	key := [4]byte{0xDE, 0xAD, 0xBE, 0xEF}

	frame := AppendFrame(nil, OpText, payload, true, key)

	// Mask bit set, payload not on the wire in the clear.
	require.Equal(t, byte(0x80|len(payload)), frame[1])
	assert.NotContains(t, string(frame), "tell")

	decoded, consumed, err := Decode(frame, 0)
	require.NoError(t, err)
	require.Equal(t, len(frame), consumed)
	assert.Equal(t, payload, decoded.Payload)
}

func TestEncodeClientFrameAlwaysMasked(t *testing.T) {
	frame, err := EncodeClientFrame(OpText, []byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, byte(0x81), frame[0])
	assert.Equal(t, byte(0x80), frame[1]&0x80, "client frames must set the mask bit")
}

func TestDecodeIncomplete(t *testing.T) {
	payload := make([]byte, 300)
	frame := AppendFrame(nil, OpText, payload, false, [4]byte{})

	// Every strict prefix decodes to "need more data".
	for _, cut := range []int{0, 1, 2, 3, 4, 150, len(frame) - 1} {
		decoded, consumed, err := Decode(frame[:cut], 1024)
		require.NoError(t, err, "prefix %d", cut)
		assert.Zero(t, consumed, "prefix %d", cut)
		assert.Empty(t, decoded.Payload)
	}
}

func TestDecodeFragmentedIsProtocolError(t *testing.T) {
	frame := AppendFrame(nil, OpText, []byte("partial"), false, [4]byte{})
	frame[0] &^= 0x80 // clear FIN

	_, _, err := Decode(frame, 0)
	require.ErrorIs(t, err, ErrFragmented)

	cont := AppendFrame(nil, OpContinuation, []byte("rest"), false, [4]byte{})
	_, _, err = Decode(cont, 0)
	require.ErrorIs(t, err, ErrFragmented)
}

func TestDecodePayloadCap(t *testing.T) {
	payload := make([]byte, DefaultMaxPayload+1)
	frame := AppendFrame(nil, OpText, payload, false, [4]byte{})

	_, _, err := Decode(frame, 0)
	require.ErrorIs(t, err, ErrPayloadTooLarge)

	// Exactly at the cap is fine.
	exact := AppendFrame(nil, OpText, make([]byte, DefaultMaxPayload), false, [4]byte{})
	_, consumed, err := Decode(exact, 0)
	require.NoError(t, err)
	assert.Equal(t, len(exact), consumed)
}

func TestDecodeReservedBits(t *testing.T) {
	frame := AppendFrame(nil, OpText, []byte("x"), false, [4]byte{})
	frame[0] |= 0x40

	_, _, err := Decode(frame, 0)
	require.ErrorIs(t, err, ErrReservedBits)
}

func TestDecodeConsumesOneFrameAtATime(t *testing.T) {
	buf := AppendFrame(nil, OpText, []byte("one"), false, [4]byte{})
	buf = AppendFrame(buf, OpText, []byte("two"), false, [4]byte{})

	first, n1, err := Decode(buf, 0)
	require.NoError(t, err)
	assert.Equal(t, "one", string(first.Payload))

	second, n2, err := Decode(buf[n1:], 0)
	require.NoError(t, err)
	assert.Equal(t, "two", string(second.Payload))
	assert.Equal(t, len(buf), n1+n2)
}
