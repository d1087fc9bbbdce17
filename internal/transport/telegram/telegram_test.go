package telegram

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestSplitTextShort(t *testing.T) {
	assert.Equal(t, []string{"hello"}, splitText("hello", 10))
}

func TestSplitTextPrefersNewlines(t *testing.T) {
	body := strings.Repeat("• line of notes\n", 10)
	chunks := splitText(body, 40)

	assert.Greater(t, len(chunks), 1)
	for _, c := range chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(c), 40)
		assert.False(t, strings.HasSuffix(c, "\n"))
		assert.True(t, strings.HasPrefix(c, "• "), "chunk %q should start at a line boundary", c)
	}
	assert.Equal(t, strings.TrimRight(body, "\n"), strings.Join(chunks, "\n"))
}

func TestSplitTextHardCut(t *testing.T) {
	chunks := splitText(strings.Repeat("x", 25), 10)
	assert.Equal(t, []string{"xxxxxxxxxx", "xxxxxxxxxx", "xxxxx"}, chunks)
}
