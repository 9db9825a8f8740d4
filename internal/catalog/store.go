package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
)

// ErrNotFound indicates the requested creator does not exist.
var ErrNotFound = errors.New("not found")

// DB is the subset of pgxpool.Pool the store needs.
// Defined by the consumer so tests can supply a mock.
type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store provides read-only catalog queries scoped by creator.
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

// Creator retrieves a creator by id.
func (s *Store) Creator(ctx context.Context, creatorID int64) (*Creator, error) {
	var (
		c       Creator
		summary *string
	)
	err := s.db.QueryRow(ctx,
		`SELECT id, name, summary, created_at FROM creators WHERE id = $1`,
		creatorID,
	).Scan(&c.ID, &c.Name, &summary, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: creator %d", ErrNotFound, creatorID)
	}
	if err != nil {
		return nil, fmt.Errorf("querying creator %d: %w", creatorID, err)
	}
	if summary != nil {
		c.Summary = *summary
	}
	return &c, nil
}

// ItemsByCreator returns all content items owned by the creator across its
// platforms, newest first. Ordering ties are broken by lower item id so the
// assembled catalog is reproducible for identical input.
func (s *Store) ItemsByCreator(ctx context.Context, creatorID int64) ([]ContentItem, error) {
	rows, err := s.db.Query(ctx, `
		SELECT ci.id, ci.external_id, p.type, p.handle, ci.type,
		       ci.title, ci.caption, ci.url, ci.transcript, ci.transcript_source,
		       ci.views, ci.likes, ci.comments, ci.duration_seconds, ci.published_at
		FROM content_items ci
		JOIN platforms p ON p.id = ci.platform_id
		WHERE p.creator_id = $1
		ORDER BY ci.published_at DESC NULLS LAST, ci.id ASC`,
		creatorID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying content items for creator %d: %w", creatorID, err)
	}
	defer rows.Close()

	var items []ContentItem
	for rows.Next() {
		var (
			it                                   ContentItem
			title, caption, url, transcript, src *string
			publishedAt                          *time.Time
		)
		if err := rows.Scan(
			&it.ID, &it.ExternalID, &it.PlatformType, &it.PlatformHandle, &it.Type,
			&title, &caption, &url, &transcript, &src,
			&it.Views, &it.Likes, &it.Comments, &it.DurationSeconds, &publishedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning content item: %w", err)
		}
		if title != nil {
			it.Title = *title
		}
		if caption != nil {
			it.Caption = *caption
		}
		if url != nil {
			it.URL = *url
		}
		if transcript != nil {
			it.Transcript = *transcript
		}
		if src != nil {
			it.TranscriptSource = *src
		}
		if publishedAt != nil {
			it.PublishedAt = *publishedAt
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating content items: %w", err)
	}

	s.logger.Debug("loaded catalog", "creator_id", creatorID, "items", len(items))
	return items, nil
}

// LatestKnowledge returns the newest version of each knowledge type for the
// creator. Missing types are simply absent from the result, not an error.
func (s *Store) LatestKnowledge(ctx context.Context, creatorID int64) (map[string]KnowledgeEntry, error) {
	rows, err := s.db.Query(ctx, `
		SELECT DISTINCT ON (type) id, creator_id, type, version, content, generated_at
		FROM creator_knowledge
		WHERE creator_id = $1
		ORDER BY type, version DESC`,
		creatorID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying knowledge for creator %d: %w", creatorID, err)
	}
	defer rows.Close()

	entries := make(map[string]KnowledgeEntry)
	for rows.Next() {
		var e KnowledgeEntry
		if err := rows.Scan(&e.ID, &e.CreatorID, &e.Type, &e.Version, &e.Content, &e.GeneratedAt); err != nil {
			return nil, fmt.Errorf("scanning knowledge entry: %w", err)
		}
		entries[e.Type] = e
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating knowledge entries: %w", err)
	}

	return entries, nil
}
