package proto

import (
	"strconv"
	"strings"
	"unicode/utf16"
	"unicode/utf8"
)

// GetString returns the string value at a dotted key, walking nested
// objects by member name ("from.user", "payload.message").
func GetString(doc []byte, key string) (string, bool) {
	raw, ok := findValue(doc, key)
	if !ok || len(raw) == 0 || raw[0] != '"' {
		return "", false
	}
	return unquote(raw)
}

// GetInt returns the integer value at a dotted key.
func GetInt(doc []byte, key string) (int64, bool) {
	raw, ok := findValue(doc, key)
	if !ok || len(raw) == 0 {
		return 0, false
	}
	n, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		// Tolerate fractional timestamps by truncating.
		f, ferr := strconv.ParseFloat(string(raw), 64)
		if ferr != nil {
			return 0, false
		}
		return int64(f), true
	}
	return n, true
}

// GetBool returns the boolean value at a dotted key.
func GetBool(doc []byte, key string) (bool, bool) {
	raw, ok := findValue(doc, key)
	if !ok {
		return false, false
	}
	switch string(raw) {
	case "true":
		return true, true
	case "false":
		return false, true
	}
	return false, false
}

// Has reports whether the dotted key exists at all.
func Has(doc []byte, key string) bool {
	_, ok := findValue(doc, key)
	return ok
}

// ForEachElement calls fn for every element of the array at a dotted
// key, passing the raw element bytes. Iteration stops when fn returns
// false.
func ForEachElement(doc []byte, key string, fn func(raw []byte) bool) {
	raw, ok := findValue(doc, key)
	if !ok || len(raw) == 0 || raw[0] != '[' {
		return
	}
	i := 1
	for {
		i = skipSpace(raw, i)
		if i >= len(raw) || raw[i] == ']' {
			return
		}
		end := skipValue(raw, i)
		if end < 0 {
			return
		}
		if !fn(raw[i:end]) {
			return
		}
		i = skipSpace(raw, end)
		if i < len(raw) && raw[i] == ',' {
			i++
		}
	}
}

// findValue locates the raw bytes of the value at a dotted key. Key
// matching is exact: quoted member name, optional whitespace, colon.
func findValue(doc []byte, key string) ([]byte, bool) {
	segments := strings.Split(key, ".")
	cur := doc
	for i, seg := range segments {
		raw, ok := memberValue(cur, seg)
		if !ok {
			return nil, false
		}
		if i == len(segments)-1 {
			return raw, true
		}
		if len(raw) == 0 || raw[0] != '{' {
			return nil, false
		}
		cur = raw
	}
	return nil, false
}

// memberValue scans one object for a member and returns its raw value.
func memberValue(obj []byte, name string) ([]byte, bool) {
	i := skipSpace(obj, 0)
	if i >= len(obj) || obj[i] != '{' {
		return nil, false
	}
	i++
	for {
		i = skipSpace(obj, i)
		if i >= len(obj) {
			return nil, false
		}
		if obj[i] == '}' {
			return nil, false
		}
		if obj[i] != '"' {
			return nil, false
		}
		keyEnd := skipString(obj, i)
		if keyEnd < 0 {
			return nil, false
		}
		memberName, ok := unquote(obj[i:keyEnd])
		if !ok {
			return nil, false
		}
		i = skipSpace(obj, keyEnd)
		if i >= len(obj) || obj[i] != ':' {
			return nil, false
		}
		i = skipSpace(obj, i+1)
		valEnd := skipValue(obj, i)
		if valEnd < 0 {
			return nil, false
		}
		if memberName == name {
			return obj[i:valEnd], true
		}
		i = skipSpace(obj, valEnd)
		if i < len(obj) && obj[i] == ',' {
			i++
		}
	}
}

func skipSpace(b []byte, i int) int {
	for i < len(b) {
		switch b[i] {
		case ' ', '\t', '\n', '\r':
			i++
		default:
			return i
		}
	}
	return i
}

// skipString returns the index one past the closing quote, or -1.
func skipString(b []byte, i int) int {
	i++ // opening quote
	for i < len(b) {
		switch b[i] {
		case '\\':
			i += 2
		case '"':
			return i + 1
		default:
			i++
		}
	}
	return -1
}

// skipValue returns the index one past any JSON value starting at i,
// or -1 on malformed input.
func skipValue(b []byte, i int) int {
	if i >= len(b) {
		return -1
	}
	switch b[i] {
	case '"':
		return skipString(b, i)
	case '{', '[':
		opening, closing := b[i], byte('}')
		if opening == '[' {
			closing = ']'
		}
		depth := 0
		for i < len(b) {
			switch b[i] {
			case '"':
				end := skipString(b, i)
				if end < 0 {
					return -1
				}
				i = end
				continue
			case opening:
				depth++
			case closing:
				depth--
				if depth == 0 {
					return i + 1
				}
			}
			i++
		}
		return -1
	default:
		start := i
		for i < len(b) {
			switch b[i] {
			case ',', '}', ']', ' ', '\t', '\n', '\r':
				return i
			}
			i++
		}
		if i == start {
			return -1
		}
		return i
	}
}

// unquote decodes a quoted JSON string honouring the standard escape
// set: \" \\ \/ \b \f \n \r \t and \uXXXX (with surrogate pairs).
func unquote(raw []byte) (string, bool) {
	if len(raw) < 2 || raw[0] != '"' || raw[len(raw)-1] != '"' {
		return "", false
	}
	body := raw[1 : len(raw)-1]

	var b strings.Builder
	b.Grow(len(body))
	for i := 0; i < len(body); {
		c := body[i]
		if c != '\\' {
			b.WriteByte(c)
			i++
			continue
		}
		if i+1 >= len(body) {
			return "", false
		}
		switch body[i+1] {
		case '"':
			b.WriteByte('"')
		case '\\':
			b.WriteByte('\\')
		case '/':
			b.WriteByte('/')
		case 'b':
			b.WriteByte('\b')
		case 'f':
			b.WriteByte('\f')
		case 'n':
			b.WriteByte('\n')
		case 'r':
			b.WriteByte('\r')
		case 't':
			b.WriteByte('\t')
		case 'u':
			if i+6 > len(body) {
				return "", false
			}
			hi, err := strconv.ParseUint(string(body[i+2:i+6]), 16, 32)
			if err != nil {
				return "", false
			}
			r := rune(hi)
			i += 6
			if utf16.IsSurrogate(r) && i+6 <= len(body) && body[i] == '\\' && body[i+1] == 'u' {
				lo, err := strconv.ParseUint(string(body[i+2:i+6]), 16, 32)
				if err == nil {
					if dec := utf16.DecodeRune(r, rune(lo)); dec != utf8.RuneError {
						r = dec
						i += 6
					}
				}
			}
			b.WriteRune(r)
			continue
		default:
			return "", false
		}
		i += 2
	}
	return b.String(), true
}

// EscapeString encodes s for embedding between JSON quotes.
func EscapeString(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, c := range []byte(s) {
		switch c {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\b':
			b.WriteString(`\b`)
		case '\f':
			b.WriteString(`\f`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			if c < 0x20 {
				b.WriteString("\\u00")
				const hex = "0123456789abcdef"
				b.WriteByte(hex[c>>4])
				b.WriteByte(hex[c&0xF])
			} else {
				b.WriteByte(c)
			}
		}
	}
	return b.String()
}
