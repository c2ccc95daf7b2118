package broadcast

import (
	"strings"
	"testing"
)

func TestNormalizeLineBreaks(t *testing.T) {
	t.Parallel()
	got := Normalize(`hello\nworld\n`)
	if got != "hello\nworld\n" {
		t.Fatalf("Normalize = %q", got)
	}
	if Normalize("plain") != "plain" {
		t.Fatalf("Normalize changed text without escape tokens")
	}
}

func TestChunksRoundTrip(t *testing.T) {
	t.Parallel()
	const maxLen = 32

	tests := []struct {
		name   string
		length int
		chunks int
	}{
		{name: "empty", length: 0, chunks: 0},
		{name: "one rune", length: 1, chunks: 1},
		{name: "exactly max", length: maxLen, chunks: 1},
		{name: "max plus one", length: maxLen + 1, chunks: 2},
		{name: "two max plus ten", length: 2*maxLen + 10, chunks: 3},
		{name: "three max", length: 3 * maxLen, chunks: 3},
	}

	// Multibyte runes make sure slicing never cuts a character in half.
	alphabet := []rune("abcdefghijéü世界")

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			runes := make([]rune, tt.length)
			for i := range runes {
				runes[i] = alphabet[i%len(alphabet)]
			}
			msg := string(runes)

			chunks := Chunks(msg, maxLen)
			if len(chunks) != tt.chunks {
				t.Fatalf("len(chunks) = %d, want %d", len(chunks), tt.chunks)
			}
			for i, c := range chunks {
				if n := len([]rune(c)); n > maxLen {
					t.Fatalf("chunk %d has %d runes, max %d", i, n, maxLen)
				}
			}
			if got := strings.Join(chunks, ""); got != msg {
				t.Fatalf("round trip mismatch: got %d bytes, want %d", len(got), len(msg))
			}
		})
	}
}

func TestChunksDefaultMax(t *testing.T) {
	t.Parallel()
	msg := strings.Repeat("x", DefaultMaxMsgLen+1)
	chunks := Chunks(msg, 0)
	if len(chunks) != 2 {
		t.Fatalf("len(chunks) = %d, want 2", len(chunks))
	}
}
