package session

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeriveTitle(t *testing.T) {
	tests := []struct {
		name    string
		message string
		want    string
	}{
		{"short message", "What camera does she use?", "What camera does she use?"},
		{"first line only", "What camera?\nAnd what mic?", "What camera?"},
		{"whitespace trimmed", "  hello there  ", "hello there"},
		{"empty message", "", "New conversation"},
		{"whitespace only", "   \n  ", "New conversation"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DeriveTitle(tt.message))
		})
	}
}

func TestDeriveTitleTruncatesLongMessages(t *testing.T) {
	long := strings.Repeat("word ", 40)
	title := DeriveTitle(long)
	assert.True(t, strings.HasSuffix(title, "..."))
	assert.LessOrEqual(t, len(title), titleLimit+len("..."))
}
