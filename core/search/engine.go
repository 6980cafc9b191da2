// Package search answers catalog queries for one owner: filtered and ranked
// search, facet summaries for filter UIs and autocomplete suggestions.
package search

import (
	"context"
	"fmt"
	"strings"
	"time"

	"tunevault/cache"
	"tunevault/core/apperr"
	"tunevault/logger"
	"tunevault/metrics"
	"tunevault/model"
	"tunevault/repository"
)

// Sort keys accepted by Search.
const (
	SortRelevance = "relevance"
	SortTitle     = "title"
	SortArtist    = "artist"
	SortAlbum     = "album"
	SortYear      = "year"
	SortDuration  = "duration"
	SortCreatedAt = "createdAt"
	SortBPM       = "bpm"
)

const (
	OrderAsc  = "asc"
	OrderDesc = "desc"

	DefaultLimit = 20
	MaxLimit     = 100
)

var sortFields = map[string]repository.Field{
	SortTitle:     repository.FieldTitle,
	SortArtist:    repository.FieldArtist,
	SortAlbum:     repository.FieldAlbum,
	SortYear:      repository.FieldYear,
	SortDuration:  repository.FieldDuration,
	SortCreatedAt: repository.FieldCreatedAt,
	SortBPM:       repository.FieldBPM,
}

// NumRange is an inclusive [From, To] bound. Either side may be nil.
type NumRange struct {
	From *float64
	To   *float64
}

func (r NumRange) empty() bool { return r.From == nil && r.To == nil }

// Request is a parsed search request. nil pointers and empty strings mean
// the filter is absent.
type Request struct {
	Query string

	Genre       *string
	Key         *string
	Channels    *int
	Encoding    *string
	DiscNumber  *int
	TrackNumber *int

	Artist      *string
	Album       *string
	AlbumArtist *string
	Mood        *string

	Year       NumRange
	Duration   NumRange
	BPM        NumRange
	MinBitrate *int

	HasLyrics   *bool
	HasCoverArt *bool

	Composers []string

	Sort  string
	Order string
	Page  int
	Limit int
}

// Validate checks paging, sort and range bounds.
func (r Request) Validate() error {
	if r.Page < 1 {
		return apperr.Validation("page must be >= 1")
	}
	if r.Limit < 1 || r.Limit > MaxLimit {
		return apperr.Validation(fmt.Sprintf("limit must be between 1 and %d", MaxLimit))
	}
	if _, ok := sortFields[r.Sort]; !ok && r.Sort != SortRelevance {
		return apperr.Validation("unknown sort key: " + r.Sort)
	}
	if r.Order != OrderAsc && r.Order != OrderDesc {
		return apperr.Validation("order must be asc or desc")
	}
	for name, rg := range map[string]NumRange{"year": r.Year, "duration": r.Duration, "bpm": r.BPM} {
		if rg.From != nil && rg.To != nil && *rg.From > *rg.To {
			return apperr.Validation(name + " range: from must not exceed to")
		}
	}
	return nil
}

// Service runs searches, facets and suggestions against the catalog store.
type Service struct {
	records repository.RecordRepository
	cache   cache.CatalogCache
	now     func() time.Time
}

// NewService creates a search service. A nil cache disables caching.
func NewService(records repository.RecordRepository, c cache.CatalogCache) *Service {
	if c == nil {
		c = cache.Nop{}
	}
	return &Service{records: records, cache: c, now: time.Now}
}

// Search returns one page of the owner's records matching req.
func (s *Service) Search(ctx context.Context, req Request, ownerID int64) (model.Page, error) {
	if err := req.Validate(); err != nil {
		return model.Page{}, err
	}
	q := buildQuery(req, ownerID)

	start := time.Now()
	records, total, err := s.records.Search(ctx, q)
	metrics.SearchDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		logger.Error("catalog search failed", logger.Int64("ownerID", ownerID), logger.ErrorField(err))
		return model.Page{}, err
	}
	return model.NewPage(records, total, req.Page, req.Limit), nil
}

// buildQuery folds the request into a predicate list. Absent filters add
// nothing.
func buildQuery(req Request, ownerID int64) repository.Query {
	var preds []repository.Predicate
	eqStr := func(f repository.Field, v *string) {
		if t := trimmed(v); t != "" {
			preds = append(preds, repository.Equals{Field: f, Value: t})
		}
	}
	eqInt := func(f repository.Field, v *int) {
		if v != nil {
			preds = append(preds, repository.Equals{Field: f, Value: *v})
		}
	}
	contains := func(f repository.Field, v *string) {
		if t := trimmed(v); t != "" {
			preds = append(preds, repository.Contains{Field: f, Value: t})
		}
	}
	between := func(f repository.Field, r NumRange) {
		if !r.empty() {
			preds = append(preds, repository.Range{Field: f, From: r.From, To: r.To})
		}
	}
	present := func(f repository.Field, v *bool) {
		if v != nil {
			preds = append(preds, repository.TriState{Field: f, Want: *v})
		}
	}

	eqStr(repository.FieldGenre, req.Genre)
	eqStr(repository.FieldKey, req.Key)
	eqInt(repository.FieldChannels, req.Channels)
	contains(repository.FieldEncoding, req.Encoding)
	eqInt(repository.FieldDiscNumber, req.DiscNumber)
	eqInt(repository.FieldTrackNumber, req.TrackNumber)

	contains(repository.FieldArtist, req.Artist)
	contains(repository.FieldAlbum, req.Album)
	contains(repository.FieldAlbumArtist, req.AlbumArtist)
	contains(repository.FieldMood, req.Mood)

	between(repository.FieldYear, req.Year)
	between(repository.FieldDuration, req.Duration)
	between(repository.FieldBPM, req.BPM)
	if req.MinBitrate != nil {
		from := float64(*req.MinBitrate)
		between(repository.FieldBitrate, NumRange{From: &from})
	}

	present(repository.FieldLyrics, req.HasLyrics)
	present(repository.FieldCoverArt, req.HasCoverArt)

	var composers []string
	for _, c := range req.Composers {
		if t := strings.TrimSpace(c); t != "" {
			composers = append(composers, t)
		}
	}
	if len(composers) > 0 {
		preds = append(preds, repository.AnyContains{Field: repository.FieldComposers, Values: composers})
	}

	q := repository.Query{
		OwnerID:    ownerID,
		Predicates: preds,
		Text:       strings.TrimSpace(req.Query),
		Offset:     (req.Page - 1) * req.Limit,
		Limit:      req.Limit,
	}
	if req.Sort == SortRelevance || req.Sort == "" {
		q.Relevance = true
	} else {
		q.Sort = repository.Sort{Field: sortFields[req.Sort], Desc: req.Order != OrderAsc}
	}
	return q
}

func trimmed(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}
