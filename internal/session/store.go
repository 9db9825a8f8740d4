package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB is the subset of pgxpool.Pool the store needs.
// Defined by the consumer so tests can supply a mock.
type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Store persists sessions and messages.
//
// Store is safe for concurrent use by multiple goroutines.
type Store struct {
	db     DB
	logger *slog.Logger
}

// New creates a new Store instance.
func New(db DB, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, logger: logger}
}

// Create starts a new session for the creator. An empty title is allowed;
// it is filled in from the first exchange.
func (s *Store) Create(ctx context.Context, creatorID int64, title string) (*Session, error) {
	var sess Session
	err := s.db.QueryRow(ctx, `
		INSERT INTO chat_sessions (creator_id, title)
		VALUES ($1, $2)
		RETURNING id, creator_id, title, message_count, created_at, updated_at`,
		creatorID, title,
	).Scan(&sess.ID, &sess.CreatorID, &sess.Title, &sess.MessageCount, &sess.CreatedAt, &sess.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("creating session: %w", err)
	}

	s.logger.Debug("created session", "session_id", sess.ID, "creator_id", creatorID)
	return &sess, nil
}

// Get retrieves a session by id.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (*Session, error) {
	var sess Session
	err := s.db.QueryRow(ctx, `
		SELECT id, creator_id, title, message_count, created_at, updated_at
		FROM chat_sessions WHERE id = $1`,
		id,
	).Scan(&sess.ID, &sess.CreatorID, &sess.Title, &sess.MessageCount, &sess.CreatedAt, &sess.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("querying session %s: %w", id, err)
	}
	return &sess, nil
}

// List returns the creator's sessions, most recently active first.
func (s *Store) List(ctx context.Context, creatorID int64, limit int) ([]Session, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(ctx, `
		SELECT id, creator_id, title, message_count, created_at, updated_at
		FROM chat_sessions
		WHERE creator_id = $1
		ORDER BY updated_at DESC
		LIMIT $2`,
		creatorID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing sessions for creator %d: %w", creatorID, err)
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		var sess Session
		if err := rows.Scan(&sess.ID, &sess.CreatorID, &sess.Title, &sess.MessageCount,
			&sess.CreatedAt, &sess.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning session: %w", err)
		}
		sessions = append(sessions, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating sessions: %w", err)
	}
	return sessions, nil
}

// Delete removes a session and its messages (cascade).
func (s *Store) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM chat_sessions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting session %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// History returns the last limit messages of the session in chronological
// order. A session with no messages yields an empty history, not an error.
func (s *Store) History(ctx context.Context, sessionID uuid.UUID, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(ctx, `
		SELECT id, session_id, role, content, sequence_number, created_at
		FROM (
			SELECT id, session_id, role, content, sequence_number, created_at
			FROM chat_messages
			WHERE session_id = $1
			ORDER BY sequence_number DESC
			LIMIT $2
		) recent
		ORDER BY sequence_number ASC`,
		sessionID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying history for session %s: %w", sessionID, err)
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Role, &m.Content, &m.Sequence, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating messages: %w", err)
	}
	return messages, nil
}

// AppendExchange records one completed turn: the user message and the
// assistant's full answer, in a single transaction. If the session has no
// title yet, one is derived from the user message. Nothing is persisted
// when any step fails, so history never holds a partial exchange.
func (s *Store) AppendExchange(ctx context.Context, sessionID uuid.UUID, userContent, assistantContent string) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning exchange transaction: %w", err)
	}
	defer tx.Rollback(ctx) // no-op after commit

	var seq int
	err = tx.QueryRow(ctx,
		`SELECT COALESCE(MAX(sequence_number), 0) FROM chat_messages WHERE session_id = $1`,
		sessionID,
	).Scan(&seq)
	if err != nil {
		return fmt.Errorf("reading sequence for session %s: %w", sessionID, err)
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO chat_messages (session_id, role, content, sequence_number)
		VALUES ($1, $2, $3, $4), ($1, $5, $6, $7)`,
		sessionID,
		RoleUser, userContent, seq+1,
		RoleAssistant, assistantContent, seq+2,
	); err != nil {
		return fmt.Errorf("inserting exchange for session %s: %w", sessionID, err)
	}

	tag, err := tx.Exec(ctx, `
		UPDATE chat_sessions
		SET message_count = message_count + 2,
		    updated_at = now(),
		    title = CASE WHEN title = '' THEN $2 ELSE title END
		WHERE id = $1`,
		sessionID, DeriveTitle(userContent),
	)
	if err != nil {
		return fmt.Errorf("updating session %s: %w", sessionID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, sessionID)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing exchange for session %s: %w", sessionID, err)
	}

	s.logger.Debug("appended exchange", "session_id", sessionID, "sequence", seq+2)
	return nil
}
