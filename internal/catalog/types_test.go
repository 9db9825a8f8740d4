package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComputeStats(t *testing.T) {
	items := []ContentItem{
		{Views: 100, Likes: 10, Comments: 1},
		{Views: 200, Likes: 20, Comments: 2},
		{Views: 300, Likes: 30, Comments: 3},
	}

	s := ComputeStats(items)
	assert.Equal(t, 3, s.TotalItems)
	assert.InDelta(t, 200.0, s.MeanViews, 1e-9)
	assert.InDelta(t, 20.0, s.MeanLikes, 1e-9)
	assert.InDelta(t, 2.0, s.MeanComments, 1e-9)
}

func TestComputeStatsEmptyCatalog(t *testing.T) {
	s := ComputeStats(nil)
	assert.Equal(t, 0, s.TotalItems)
	assert.Zero(t, s.MeanViews)
	assert.Zero(t, s.MeanLikes)
	assert.Zero(t, s.MeanComments)
}

func TestPlatformLabel(t *testing.T) {
	it := ContentItem{PlatformType: "youtube", PlatformHandle: "somecreator"}
	assert.Equal(t, "youtube:somecreator", it.PlatformLabel())

	it.PlatformHandle = ""
	assert.Equal(t, "youtube", it.PlatformLabel())
}

func TestDisplayTitle(t *testing.T) {
	it := ContentItem{Title: "How I edit", ExternalID: "abc123"}
	assert.Equal(t, "How I edit", it.DisplayTitle())

	it.Title = ""
	assert.Equal(t, "abc123", it.DisplayTitle())
}

func TestSearchableTextFoldsCase(t *testing.T) {
	it := ContentItem{Title: "Morning ROUTINE", Caption: "My Desk Setup", Transcript: "Alpha Beta"}
	text := it.SearchableText()
	assert.Contains(t, text, "morning routine")
	assert.Contains(t, text, "my desk setup")
	assert.Contains(t, text, "alpha beta")
}
