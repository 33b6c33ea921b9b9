// Package extractor pulls candidate entities out of raw query text using
// deterministic pattern rules. There is no ML classifier here on purpose:
// identical queries must always yield identical entities so the whole
// pipeline stays reproducible.
package extractor

import (
	"regexp"
	"sort"
	"strings"

	"github.com/mnemohq/rehydrate/pkg/types"
)

// Rules are applied in priority order; a span claimed by an earlier rule
// is invisible to later ones, so a URL never also matches as a path.
var (
	urlPattern = regexp.MustCompile(`https?://[^\s<>"')\]]+`)

	pathPattern = regexp.MustCompile(`(?:~/|\.{1,2}/|/)?[\w.-]+(?:/[\w.-]+)+/?`)

	// CamelCase, mixedCase, or snake_case identifiers.
	identPattern = regexp.MustCompile(
		`(?:[A-Z][a-z0-9]+){2,}[A-Za-z0-9]*` + // PascalCase with >=2 humps
			`|[a-z]+(?:[A-Z][a-z0-9]*)+` + // mixedCase
			`|[A-Za-z][A-Za-z0-9]*_[A-Za-z0-9_]+`) // snake_case

	// Capitalization runs of two or more words, or short acronyms.
	tokenPattern = regexp.MustCompile(`[A-Z][a-z]+(?:[ \t][A-Z][a-z]+)+|\b[A-Z]{2,}\b`)
)

// Extractor scans query text for entities.
type Extractor struct{}

// New creates an Extractor.
func New() *Extractor { return &Extractor{} }

type match struct {
	entity types.Entity
}

// Extract returns the entities found in query, ordered by position and
// deduplicated by normalized (lowercased) text with insertion order
// preserved. No matches is a valid outcome and yields an empty list.
func (e *Extractor) Extract(query string) []types.Entity {
	covered := make([]bool, len(query))
	var matches []match

	scan := func(re *regexp.Regexp, kind types.EntityKind) {
		for _, loc := range re.FindAllStringIndex(query, -1) {
			if claimed(covered, loc[0], loc[1]) {
				continue
			}
			claim(covered, loc[0], loc[1])
			matches = append(matches, match{entity: types.Entity{
				Text:      query[loc[0]:loc[1]],
				Kind:      kind,
				SpanStart: loc[0],
				SpanEnd:   loc[1],
			}})
		}
	}

	scan(urlPattern, types.EntityURL)
	scan(pathPattern, types.EntityPath)
	scan(identPattern, types.EntityIdentifier)
	scan(tokenPattern, types.EntityToken)

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].entity.SpanStart < matches[j].entity.SpanStart
	})

	seen := make(map[string]bool, len(matches))
	entities := make([]types.Entity, 0, len(matches))
	for _, m := range matches {
		key := strings.ToLower(m.entity.Text)
		if seen[key] {
			continue
		}
		seen[key] = true
		entities = append(entities, m.entity)
	}
	return entities
}

func claimed(covered []bool, start, end int) bool {
	for i := start; i < end; i++ {
		if covered[i] {
			return true
		}
	}
	return false
}

func claim(covered []bool, start, end int) {
	for i := start; i < end; i++ {
		covered[i] = true
	}
}
