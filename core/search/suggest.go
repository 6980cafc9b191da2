package search

import (
	"context"
	"sort"
	"strings"
	"unicode/utf8"

	"tunevault/cache"
	"tunevault/repository"

	"golang.org/x/sync/errgroup"
)

const (
	DefaultSuggestLimit = 10
	MaxSuggestLimit     = 50

	minPartialLen = 2
)

// Suggestion is one autocomplete candidate.
type Suggestion struct {
	Type  string `json:"type"`
	Value string `json:"value"`
	Count int64  `json:"count"`
}

var suggestFields = []struct {
	kind  string
	field repository.Field
}{
	{"title", repository.FieldTitle},
	{"artist", repository.FieldArtist},
	{"album", repository.FieldAlbum},
}

// Suggest returns up to limit completions for partial across titles,
// artists and albums, most frequent first. Types are not balanced: the
// merged list is truncated to limit in total.
func (s *Service) Suggest(ctx context.Context, partial string, ownerID int64, limit int) ([]Suggestion, error) {
	partial = strings.TrimSpace(partial)
	if utf8.RuneCountInString(partial) < minPartialLen {
		return []Suggestion{}, nil
	}
	if limit <= 0 {
		limit = DefaultSuggestLimit
	}
	if limit > MaxSuggestLimit {
		limit = MaxSuggestLimit
	}

	key := cache.SuggestKey(ownerID, s.cache.Version(ctx, ownerID), partial, limit)
	var cached []Suggestion
	if s.cache.Get(ctx, cache.KindSuggest, key, &cached) {
		return cached, nil
	}

	perField := make([][]Suggestion, len(suggestFields))
	g, gctx := errgroup.WithContext(ctx)
	for i, sf := range suggestFields {
		g.Go(func() error {
			rows, err := s.records.GroupCount(gctx, ownerID, sf.field, partial, limit)
			if err != nil {
				return err
			}
			out := make([]Suggestion, 0, len(rows))
			for _, row := range rows {
				out = append(out, Suggestion{Type: sf.kind, Value: row.Value, Count: row.Count})
			}
			perField[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := mergeSuggestions(perField, limit)
	s.cache.Set(ctx, cache.KindSuggest, key, merged)
	return merged, nil
}

// mergeSuggestions concatenates per-field lists in field order, re-sorts by
// count descending (ties keep that order) and truncates.
func mergeSuggestions(lists [][]Suggestion, limit int) []Suggestion {
	merged := []Suggestion{}
	for _, l := range lists {
		merged = append(merged, l...)
	}
	sort.SliceStable(merged, func(i, j int) bool { return merged[i].Count > merged[j].Count })
	if len(merged) > limit {
		merged = merged[:limit]
	}
	return merged
}
