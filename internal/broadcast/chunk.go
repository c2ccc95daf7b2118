package broadcast

import "strings"

// DefaultMaxMsgLen is Telegram's maximum single-message size.
const DefaultMaxMsgLen = 4096

// Normalize interprets the literal two-character token `\n` as a real
// line break. Admins type it in command arguments where the transport
// strips actual newlines.
func Normalize(s string) string {
	return strings.ReplaceAll(s, `\n`, "\n")
}

// Chunks splits s into slices of at most maxLen runes each, preserving
// order and content: strings.Join(Chunks(s, n), "") == s. Splitting is
// plain slicing; it makes no attempt to respect word boundaries.
func Chunks(s string, maxLen int) []string {
	if maxLen <= 0 {
		maxLen = DefaultMaxMsgLen
	}
	if s == "" {
		return nil
	}
	runes := []rune(s)
	out := make([]string, 0, (len(runes)+maxLen-1)/maxLen)
	for start := 0; start < len(runes); start += maxLen {
		end := start + maxLen
		if end > len(runes) {
			end = len(runes)
		}
		out = append(out, string(runes[start:end]))
	}
	return out
}
