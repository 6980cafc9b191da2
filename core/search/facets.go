package search

import (
	"context"

	"tunevault/cache"
	"tunevault/logger"
	"tunevault/repository"

	"golang.org/x/sync/errgroup"
)

// Range is an inclusive numeric span.
type Range struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Facets summarizes one owner's catalog for filter UIs.
type Facets struct {
	AvailableGenres    []string `json:"availableGenres"`
	AvailableArtists   []string `json:"availableArtists"`
	AvailableAlbums    []string `json:"availableAlbums"`
	AvailableKeys      []string `json:"availableKeys"`
	AvailableMoods     []string `json:"availableMoods"`
	AvailableEncodings []string `json:"availableEncodings"`

	YearRange     Range `json:"yearRange"`
	DurationRange Range `json:"durationRange"`
	BPMRange      Range `json:"bpmRange"`
	BitrateRange  Range `json:"bitrateRange"`
}

// Ranges returned when no record has a value for the field.
var (
	defaultDuration = Range{Min: 0, Max: 600}
	defaultBPM      = Range{Min: 0, Max: 200}
	defaultBitrate  = Range{Min: 32000, Max: 320000}
)

const minYear = 1900

// Facets computes distinct values and numeric ranges. The ten sub-queries
// run concurrently; the first failure cancels the rest.
func (s *Service) Facets(ctx context.Context, ownerID int64) (*Facets, error) {
	key := cache.FacetsKey(ownerID, s.cache.Version(ctx, ownerID))
	var cached Facets
	if s.cache.Get(ctx, cache.KindFacets, key, &cached) {
		return &cached, nil
	}

	f := &Facets{}
	g, gctx := errgroup.WithContext(ctx)

	distinct := []struct {
		field repository.Field
		dest  *[]string
	}{
		{repository.FieldGenre, &f.AvailableGenres},
		{repository.FieldArtist, &f.AvailableArtists},
		{repository.FieldAlbum, &f.AvailableAlbums},
		{repository.FieldKey, &f.AvailableKeys},
		{repository.FieldMood, &f.AvailableMoods},
		{repository.FieldEncoding, &f.AvailableEncodings},
	}
	for _, d := range distinct {
		g.Go(func() error {
			values, err := s.records.Distinct(gctx, ownerID, d.field)
			if err != nil {
				return err
			}
			if values == nil {
				values = []string{}
			}
			*d.dest = values
			return nil
		})
	}

	defaultYear := Range{Min: minYear, Max: float64(s.now().Year())}
	ranges := []struct {
		field        repository.Field
		positiveOnly bool
		fallback     Range
		dest         *Range
	}{
		{repository.FieldYear, false, defaultYear, &f.YearRange},
		{repository.FieldDuration, false, defaultDuration, &f.DurationRange},
		{repository.FieldBPM, true, defaultBPM, &f.BPMRange},
		{repository.FieldBitrate, false, defaultBitrate, &f.BitrateRange},
	}
	for _, r := range ranges {
		g.Go(func() error {
			lo, hi, err := s.records.MinMax(gctx, ownerID, r.field, r.positiveOnly)
			if err != nil {
				return err
			}
			if lo == nil || hi == nil {
				*r.dest = r.fallback
				return nil
			}
			*r.dest = Range{Min: *lo, Max: *hi}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		logger.Error("facet aggregation failed", logger.Int64("ownerID", ownerID), logger.ErrorField(err))
		return nil, err
	}
	s.cache.Set(ctx, cache.KindFacets, key, f)
	return f, nil
}
