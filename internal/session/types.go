// Package session persists chat sessions and their message history in
// PostgreSQL.
//
// History is append-only and transactional: a completed turn lands as one
// user/assistant pair or not at all, so a cancelled or failed turn never
// leaves a dangling half-exchange.
package session

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// titleLimit caps auto-derived session titles.
const titleLimit = 60

// ErrNotFound indicates the session does not exist.
var ErrNotFound = errors.New("session not found")

// Session is one conversation with a creator's assistant.
type Session struct {
	ID           uuid.UUID
	CreatorID    int64
	Title        string
	MessageCount int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Message is one utterance in a session. Sequence is 1-based and dense
// within a session.
type Message struct {
	ID        uuid.UUID
	SessionID uuid.UUID
	Role      string
	Content   string
	Sequence  int
	CreatedAt time.Time
}

// DeriveTitle builds a session title from the first user message: the
// first line, cut to titleLimit characters.
func DeriveTitle(message string) string {
	title := strings.TrimSpace(message)
	if i := strings.IndexByte(title, '\n'); i >= 0 {
		title = strings.TrimSpace(title[:i])
	}
	if len(title) > titleLimit {
		title = strings.TrimSpace(title[:titleLimit]) + "..."
	}
	if title == "" {
		return "New conversation"
	}
	return title
}
