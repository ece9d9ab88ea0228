package proto

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleDoc = `{
	"version": "1.0",
	"id": "a1",
	"type": "tell",
	"from": {"mud": "Beta", "user": "Alice"},
	"to":   {"mud": "Alpha", "user": "Bob"},
	"payload": {"message": "hi there", "request": false},
	"metadata": {"priority": 5, "ttl": 300}
}`

func TestGetStringDottedLookup(t *testing.T) {
	doc := []byte(sampleDoc)

	v, ok := GetString(doc, "type")
	require.True(t, ok)
	assert.Equal(t, "tell", v)

	v, ok = GetString(doc, "from.user")
	require.True(t, ok)
	assert.Equal(t, "Alice", v)

	v, ok = GetString(doc, "payload.message")
	require.True(t, ok)
	assert.Equal(t, "hi there", v)

	_, ok = GetString(doc, "payload.missing")
	assert.False(t, ok)

	_, ok = GetString(doc, "nope.user")
	assert.False(t, ok)

	// Non-string values are not strings.
	_, ok = GetString(doc, "metadata.priority")
	assert.False(t, ok)
}

func TestGetStringDoesNotMatchNestedKeysAtWrongDepth(t *testing.T) {
	// "user" exists inside from and to; a top-level lookup must fail
	// rather than matching the first occurrence anywhere.
	doc := []byte(sampleDoc)
	_, ok := GetString(doc, "user")
	assert.False(t, ok)

	// And from.user must not see to.user's value.
	v, ok := GetString(doc, "to.user")
	require.True(t, ok)
	assert.Equal(t, "Bob", v)
}

func TestGetInt(t *testing.T) {
	doc := []byte(sampleDoc)

	n, ok := GetInt(doc, "metadata.priority")
	require.True(t, ok)
	assert.Equal(t, int64(5), n)

	n, ok = GetInt(doc, "metadata.ttl")
	require.True(t, ok)
	assert.Equal(t, int64(300), n)

	_, ok = GetInt(doc, "metadata.absent")
	assert.False(t, ok)

	n, ok = GetInt([]byte(`{"t": -42}`), "t")
	require.True(t, ok)
	assert.Equal(t, int64(-42), n)

	n, ok = GetInt([]byte(`{"t": 1700000000123.0}`), "t")
	require.True(t, ok)
	assert.Equal(t, int64(1700000000123), n)
}

func TestGetBool(t *testing.T) {
	doc := []byte(`{"payload": {"request": true, "other": false}}`)

	v, ok := GetBool(doc, "payload.request")
	require.True(t, ok)
	assert.True(t, v)

	v, ok = GetBool(doc, "payload.other")
	require.True(t, ok)
	assert.False(t, v)

	_, ok = GetBool(doc, "payload.missing")
	assert.False(t, ok)
}

func TestWhitespaceTolerance(t *testing.T) {
	doc := []byte("{ \"a\" \t: { \"b\"\n:\r \"c\" } }")
	v, ok := GetString(doc, "a.b")
	require.True(t, ok)
	assert.Equal(t, "c", v)
}

func TestEscapeUnescapeBijection(t *testing.T) {
	cases := []string{
		"plain text",
		`quotes "inside" here`,
		"back\\slash",
		"tabs\tand\nnewlines\r",
		"bell\bform\ffeed",
		"ctrl \x01\x02\x1f end",
		"unicode: héllo wörld",
		"",
	}
	for _, in := range cases {
		escaped := EscapeString(in)
		out, ok := unquote([]byte(`"` + escaped + `"`))
		require.True(t, ok, "input %q", in)
		assert.Equal(t, in, out, "round trip of %q", in)
	}
}

func TestUnescapeUnicode(t *testing.T) {
	out, ok := unquote([]byte(`"snow \u2603 man"`))
	require.True(t, ok)
	assert.Equal(t, "snow \u2603 man", out)

	// Surrogate pair.
	out, ok = unquote([]byte(`"\ud83d\ude00"`))
	require.True(t, ok)
	assert.Equal(t, "\U0001F600", out)
}

func TestParseEmitRoundTrip(t *testing.T) {
	doc := NewObject().
		Str("name", `with "quotes" and \ slashes`).
		Int("count", 42).
		Bool("flag", true).
		Obj("nested", NewObject().Str("inner", "line1\nline2")).
		JSON()

	// The emitted document is valid JSON.
	var check map[string]any
	require.NoError(t, json.Unmarshal(doc, &check))

	v, ok := GetString(doc, "name")
	require.True(t, ok)
	assert.Equal(t, `with "quotes" and \ slashes`, v)

	n, ok := GetInt(doc, "count")
	require.True(t, ok)
	assert.Equal(t, int64(42), n)

	b, ok := GetBool(doc, "flag")
	require.True(t, ok)
	assert.True(t, b)

	s, ok := GetString(doc, "nested.inner")
	require.True(t, ok)
	assert.Equal(t, "line1\nline2", s)
}

func TestForEachElement(t *testing.T) {
	doc := []byte(`{"payload": {"users": [
		{"username": "bob", "idle": 5},
		{"username": "carol", "idle": 0}
	]}}`)

	var names []string
	ForEachElement(doc, "payload.users", func(raw []byte) bool {
		name, ok := GetString(raw, "username")
		require.True(t, ok)
		names = append(names, name)
		return true
	})
	assert.Equal(t, []string{"bob", "carol"}, names)
}

func TestForEachElementStops(t *testing.T) {
	doc := []byte(`{"xs": [{"n": 1}, {"n": 2}, {"n": 3}]}`)
	count := 0
	ForEachElement(doc, "xs", func([]byte) bool {
		count++
		return count < 2
	})
	assert.Equal(t, 2, count)
}
