package textutil

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanHTML(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"empty", "", ""},
		{"entities", "Tom &amp; Jerry &lt;3", "Tom & Jerry <3"},
		{"whitespace collapsed", "a\n\n  b\t c", "a b c"},
		{"tag gaps closed", "<p>hi</p>\n   <p>there</p>", "<p>hi</p><p>there</p>"},
		{"trimmed", "  <b>x</b>  ", "<b>x</b>"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, CleanHTML(tt.input))
		})
	}
}

func TestTruncate(t *testing.T) {
	long := strings.Repeat("a", 100)

	assert.Equal(t, long, Truncate(long, 0))
	assert.Equal(t, long, Truncate(long, 100))

	out := Truncate(long, 10)
	assert.True(t, strings.HasPrefix(out, "aaaaaaaaaa"))
	assert.Contains(t, out, "Content truncated")
}

func TestTruncateRespectsUTF8Boundary(t *testing.T) {
	// "héllo" with the cut landing inside the two-byte é.
	out := Truncate("héllo", 2)
	assert.True(t, strings.HasPrefix(out, "h"))
	assert.NotContains(t, out, "\xc3")
}

func TestSanitizeUTF8(t *testing.T) {
	assert.Equal(t, "clean", SanitizeUTF8("clean"))
	assert.Equal(t, "ab", SanitizeUTF8("a\xffb"))
}
