package rand

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewToken(t *testing.T) {
	tok := NewToken(24)
	assert.Len(t, tok, 24)
	for _, r := range tok {
		assert.Contains(t, charset, string(r))
	}
}

func TestNewSessionTokenIsUnique(t *testing.T) {
	seen := make(map[string]struct{}, 1000)
	for range 1000 {
		tok := NewSessionToken()
		_, dup := seen[tok]
		assert.False(t, dup, "duplicate token %q", tok)
		seen[tok] = struct{}{}
	}
}

func BenchmarkNewSessionToken(b *testing.B) {
	for i := 0; i < b.N; i++ {
		NewSessionToken()
	}
}
