package timeout

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestTruncate(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"short", "{not json", "{not json"},
		{"exact length", strings.Repeat("a", MaxTruncateLength), strings.Repeat("a", MaxTruncateLength)},
		{"ascii", strings.Repeat("a", MaxTruncateLength+5), strings.Repeat("a", MaxTruncateLength) + "..."},
		// 199 ASCII bytes put the three-byte rune across the cut.
		{"rune across cut", strings.Repeat("a", MaxTruncateLength-1) + "买牛奶", strings.Repeat("a", MaxTruncateLength-1) + "..."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Truncate(tt.input)
			assert.Equal(t, tt.expected, got)
			assert.True(t, utf8.ValidString(got))
		})
	}
}

func TestTruncateMultibyte(t *testing.T) {
	got := Truncate(strings.Repeat("白板", 100))
	assert.True(t, utf8.ValidString(got))
	assert.LessOrEqual(t, len(got), MaxTruncateLength+len("..."))
	assert.True(t, strings.HasSuffix(got, "..."))
}
