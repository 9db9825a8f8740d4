// Package keyword implements the lexical retrieval tier: occurrence-count
// scoring of query keywords against each item's searchable text. It needs
// no index or external service, so it stays available even when the
// embedding provider is down.
package keyword

import (
	"regexp"
	"sort"
	"strings"
	"time"
)

// MaxKeywords caps how many distinct keywords score a query.
// The most frequent ones in the query win.
const MaxKeywords = 15

// wordPattern matches candidate keywords: runs of three or more letters.
// Shorter words carry almost no signal and blow up match counts.
var wordPattern = regexp.MustCompile(`\b[a-zA-Z]{3,}\b`)

// stopwords are query words too common to discriminate between items.
var stopwords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "is": {}, "are": {}, "was": {}, "were": {},
	"be": {}, "been": {}, "being": {}, "have": {}, "has": {}, "had": {},
	"do": {}, "does": {}, "did": {}, "will": {}, "would": {}, "could": {},
	"should": {}, "may": {}, "might": {}, "can": {}, "shall": {}, "to": {},
	"of": {}, "in": {}, "for": {}, "on": {}, "with": {}, "at": {}, "by": {},
	"from": {}, "as": {}, "into": {}, "about": {}, "between": {},
	"what": {}, "when": {}, "where": {}, "who": {}, "which": {}, "why": {},
	"how": {}, "this": {}, "that": {}, "these": {}, "those": {}, "you": {},
	"your": {}, "they": {}, "their": {}, "his": {}, "her": {}, "its": {},
	"our": {}, "and": {}, "or": {}, "but": {}, "not": {}, "all": {},
	"any": {}, "some": {}, "there": {}, "out": {}, "get": {}, "got": {},
	"like": {}, "also": {}, "tell": {}, "think": {}, "know": {}, "say": {},
	"said": {}, "make": {}, "go": {}, "going": {}, "want": {},
	"really": {}, "right": {},
}

// Document is one searchable content item.
type Document struct {
	ItemID      int64
	Text        string // pre-folded searchable text (transcript + caption + title)
	PublishedAt time.Time
}

// Match is one scored hit.
type Match struct {
	ItemID int64
	Score  int
}

// ExtractKeywords tokenizes the query, drops stopwords, and returns the
// surviving keywords ordered by in-query frequency, capped at MaxKeywords.
// A query left empty after stopword stripping yields nil; common words
// alone must never match everything. An empty or letterless query also
// yields nil.
func ExtractKeywords(query string) []string {
	words := wordPattern.FindAllString(strings.ToLower(query), -1)
	if len(words) == 0 {
		return nil
	}

	keywords := make([]string, 0, len(words))
	for _, w := range words {
		if _, stop := stopwords[w]; !stop {
			keywords = append(keywords, w)
		}
	}
	if len(keywords) == 0 {
		return nil
	}

	counts := make(map[string]int, len(keywords))
	order := make([]string, 0, len(keywords))
	for _, w := range keywords {
		if counts[w] == 0 {
			order = append(order, w)
		}
		counts[w]++
	}
	sort.SliceStable(order, func(i, j int) bool {
		return counts[order[i]] > counts[order[j]]
	})

	if len(order) > MaxKeywords {
		order = order[:MaxKeywords]
	}
	return order
}

// Search scores every document by the total occurrence count of the
// query's keywords in its text and returns the top-n matches. Documents
// scoring zero are excluded entirely. Ordering is score descending; ties
// prefer the more recently published document, then the lower item id.
// An empty query returns no matches.
func Search(query string, docs []Document, topN int) []Match {
	if topN <= 0 {
		return nil
	}
	keywords := ExtractKeywords(query)
	if len(keywords) == 0 {
		return nil
	}

	published := make(map[int64]time.Time, len(docs))
	matches := make([]Match, 0, len(docs))
	for i := range docs {
		score := 0
		for _, kw := range keywords {
			score += strings.Count(docs[i].Text, kw)
		}
		if score > 0 {
			matches = append(matches, Match{ItemID: docs[i].ItemID, Score: score})
			published[docs[i].ItemID] = docs[i].PublishedAt
		}
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		pi, pj := published[matches[i].ItemID], published[matches[j].ItemID]
		if !pi.Equal(pj) {
			return pi.After(pj)
		}
		return matches[i].ItemID < matches[j].ItemID
	})

	if topN > len(matches) {
		topN = len(matches)
	}
	return matches[:topN]
}
