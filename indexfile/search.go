package indexfile

import (
	"sort"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// match ranks, lower is better.
const (
	rankExact = iota
	rankPrefix
	rankContains
)

// Search returns all entries whose key contains the query,
// case-insensitively. Results are ordered exact match first, then prefix
// matches, then remaining substring matches; ties within a rank break by
// collated ascending key order. An empty (or all-whitespace) query returns
// nil — the "show everything" default view is a caller concern, not a
// search result.
func (f *File) Search(query string) []Entry {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil
	}

	type ranked struct {
		entry Entry
		rank  int
	}

	var hits []ranked
	for _, e := range f.entries {
		idx := strings.Index(e.folded, q)
		if idx < 0 {
			continue
		}
		rank := rankContains
		switch {
		case e.folded == q:
			rank = rankExact
		case idx == 0:
			rank = rankPrefix
		}
		hits = append(hits, ranked{entry: e, rank: rank})
	}

	// Collators are not safe for concurrent use, so each search builds its
	// own.
	coll := collate.New(language.Und)
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].rank != hits[j].rank {
			return hits[i].rank < hits[j].rank
		}
		return coll.CompareString(hits[i].entry.Key, hits[j].entry.Key) < 0
	})

	out := make([]Entry, len(hits))
	for i, h := range hits {
		out[i] = h.entry
	}
	return out
}
