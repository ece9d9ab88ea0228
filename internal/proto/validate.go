package proto

import (
	"regexp"
	"strings"
)

var (
	channelNameRe = regexp.MustCompile(`^[a-z0-9_-]{1,32}$`)
	userNameRe    = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,32}$`)
	mudNameRe     = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,64}$`)
)

// ValidChannelName reports whether name is a legal channel name.
func ValidChannelName(name string) bool { return channelNameRe.MatchString(name) }

// ValidUserName reports whether name is a legal player name.
func ValidUserName(name string) bool { return userNameRe.MatchString(name) }

// ValidMudName reports whether name is a legal MUD name.
func ValidMudName(name string) bool { return mudNameRe.MatchString(name) }

// ParseTarget splits a "user@mud" argument.
func ParseTarget(s string) (user, mud string, ok bool) {
	user, mud, ok = strings.Cut(s, "@")
	if !ok || user == "" || mud == "" {
		return "", "", false
	}
	return user, mud, true
}

// SanitizeMessage strips non-printable characters (keeping newline
// and tab), truncates to maxLen bytes, and trims surrounding space.
func SanitizeMessage(s string, maxLen int) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, c := range []byte(s) {
		if (c >= 0x20 && c <= 0x7E) || c == '\n' || c == '\t' {
			b.WriteByte(c)
		}
	}
	out := b.String()
	if maxLen > 0 && len(out) > maxLen {
		out = out[:maxLen]
	}
	return strings.TrimSpace(out)
}
