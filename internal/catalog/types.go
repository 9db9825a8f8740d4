// Package catalog provides read-only access to a creator's scraped content
// and precomputed knowledge entries.
//
// Rows are produced by the external scraping and knowledge-generation
// pipelines; this package only queries them. Chat persistence lives in the
// session package.
package catalog

import (
	"strings"
	"time"
)

// Knowledge entry types produced by the knowledge pipeline.
const (
	// KnowledgeProfile is the synthesized creator profile.
	KnowledgeProfile = "profile"

	// KnowledgeTopics is the topic-cluster summary.
	KnowledgeTopics = "topics"

	// KnowledgeStyle is the style analysis.
	KnowledgeStyle = "style"
)

// Creator is a content creator tracked by the system.
type Creator struct {
	ID        int64
	Name      string
	Summary   string
	CreatedAt time.Time
}

// ContentItem is one owned content unit (video or post), immutable after
// scraping except for transcript backfill.
type ContentItem struct {
	ID               int64
	ExternalID       string
	PlatformType     string // e.g. "youtube", "instagram"
	PlatformHandle   string
	Type             string // e.g. "video", "reel"
	Title            string
	Caption          string
	URL              string
	Transcript       string // empty = no transcript yet
	TranscriptSource string // e.g. "captions", "whisper"
	Views            int64
	Likes            int64
	Comments         int64
	DurationSeconds  int
	PublishedAt      time.Time
}

// PlatformLabel returns the "type:handle" label used in prompt text.
func (it *ContentItem) PlatformLabel() string {
	if it.PlatformHandle == "" {
		return it.PlatformType
	}
	return it.PlatformType + ":" + it.PlatformHandle
}

// DisplayTitle returns the best human-readable identifier for the item.
func (it *ContentItem) DisplayTitle() string {
	if it.Title != "" {
		return it.Title
	}
	return it.ExternalID
}

// SearchableText returns the case-folded text the keyword tier scores
// against: transcript, caption and title joined together.
func (it *ContentItem) SearchableText() string {
	return strings.ToLower(it.Transcript + " " + it.Caption + " " + it.Title)
}

// KnowledgeEntry is one versioned knowledge document for a creator.
// The assembler always consumes the latest version of each type.
type KnowledgeEntry struct {
	ID          int64
	CreatorID   int64
	Type        string // profile | topics | style
	Version     int
	Content     string
	GeneratedAt time.Time
}

// Stats are catalog-wide aggregates over all of a creator's items.
type Stats struct {
	TotalItems   int
	MeanViews    float64
	MeanLikes    float64
	MeanComments float64
}

// ComputeStats aggregates engagement counters across the full catalog.
// A nil or empty catalog yields all-zero stats.
func ComputeStats(items []ContentItem) Stats {
	s := Stats{TotalItems: len(items)}
	if len(items) == 0 {
		return s
	}
	var views, likes, comments int64
	for i := range items {
		views += items[i].Views
		likes += items[i].Likes
		comments += items[i].Comments
	}
	n := float64(len(items))
	s.MeanViews = float64(views) / n
	s.MeanLikes = float64(likes) / n
	s.MeanComments = float64(comments) / n
	return s
}
