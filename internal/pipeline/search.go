// Package pipeline provides the default local implementations of the
// injected collaborator functions: semantic search over the document
// catalog, the streaming answer exchange built on it, and the
// regeneration callback.
//
// The managers and the tool layer depend only on the function types in
// internal/session and internal/jobs, so this package is replaceable
// without touching them.
package pipeline

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/farce1/handover-sub002/internal/catalog"
)

// SearchResult is one scored hit against the catalog.
type SearchResult struct {
	URI     string  `json:"uri"`
	Name    string  `json:"name"`
	Type    string  `json:"type"` // "docs" or "analysis"
	Score   float64 `json:"score"`
	Snippet string  `json:"snippet"`
}

// Searcher scores catalog entries against a query. Scoring is plain
// keyword overlap; the embedding-based ranker lives outside this
// server and plugs in through the same signature.
type Searcher struct {
	cat *catalog.Catalog
}

// NewSearcher creates a Searcher over the given catalog.
func NewSearcher(cat *catalog.Catalog) *Searcher {
	return &Searcher{cat: cat}
}

// Search returns up to limit results matching query, best first.
// types filters by namespace ("docs", "analysis"); empty means both.
func (s *Searcher) Search(query string, limit int, types []string) []SearchResult {
	terms := tokenize(query)
	if len(terms) == 0 {
		return nil
	}
	if limit <= 0 {
		limit = 5
	}

	wantType := map[string]bool{}
	for _, t := range types {
		wantType[strings.ToLower(strings.TrimSpace(t))] = true
	}

	var results []SearchResult
	for _, e := range s.cat.Entries() {
		kind := entryType(e.URI)
		if len(wantType) > 0 && !wantType[kind] {
			continue
		}

		data, _, err := s.cat.Read(e.URI)
		if err != nil {
			continue
		}
		body := strings.ToLower(string(data))

		var score float64
		for _, term := range terms {
			n := strings.Count(body, term)
			score += float64(n)
			// Title hits rank above body hits.
			if strings.Contains(strings.ToLower(e.Name), term) {
				score += 5
			}
		}
		if score == 0 {
			continue
		}

		results = append(results, SearchResult{
			URI:     e.URI,
			Name:    e.Name,
			Type:    kind,
			Score:   score,
			Snippet: snippet(string(data), terms),
		})
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > limit {
		results = results[:limit]
	}
	return results
}

func entryType(uri string) string {
	if strings.HasPrefix(uri, catalog.AnalysisScheme) {
		return "analysis"
	}
	return "docs"
}

func tokenize(query string) []string {
	var terms []string
	for _, f := range strings.Fields(strings.ToLower(query)) {
		f = strings.Trim(f, ".,;:!?\"'()[]")
		if len(f) >= 3 {
			terms = append(terms, f)
		}
	}
	return terms
}

// snippet returns the first line containing any term, trimmed to a
// readable length.
func snippet(body string, terms []string) string {
	const maxLen = 200
	for _, line := range strings.Split(body, "\n") {
		lower := strings.ToLower(line)
		for _, term := range terms {
			if strings.Contains(lower, term) {
				line = strings.TrimSpace(line)
				if len(line) > maxLen {
					// Back up to a rune boundary so the cut never
					// splits a multi-byte character.
					cut := maxLen
					for cut > 0 && !utf8.RuneStart(line[cut]) {
						cut--
					}
					line = line[:cut] + "…"
				}
				return line
			}
		}
	}
	return ""
}
