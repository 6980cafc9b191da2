package search

import (
	"context"
	"sync"

	"tunevault/model"
	"tunevault/repository"
)

// fakeRecords implements repository.RecordRepository; only the read paths
// used by the search service are wired to fn fields.
type fakeRecords struct {
	repository.RecordRepository

	searchFn     func(ctx context.Context, q repository.Query) ([]model.Record, int64, error)
	distinctFn   func(ctx context.Context, ownerID int64, field repository.Field) ([]string, error)
	minMaxFn     func(ctx context.Context, ownerID int64, field repository.Field, positiveOnly bool) (*float64, *float64, error)
	groupCountFn func(ctx context.Context, ownerID int64, field repository.Field, partial string, limit int) ([]repository.ValueCount, error)

	mu    sync.Mutex
	calls int
}

func (f *fakeRecords) count() {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
}

func (f *fakeRecords) Search(ctx context.Context, q repository.Query) ([]model.Record, int64, error) {
	f.count()
	return f.searchFn(ctx, q)
}

func (f *fakeRecords) Distinct(ctx context.Context, ownerID int64, field repository.Field) ([]string, error) {
	f.count()
	if f.distinctFn == nil {
		return nil, nil
	}
	return f.distinctFn(ctx, ownerID, field)
}

func (f *fakeRecords) MinMax(ctx context.Context, ownerID int64, field repository.Field, positiveOnly bool) (*float64, *float64, error) {
	f.count()
	if f.minMaxFn == nil {
		return nil, nil, nil
	}
	return f.minMaxFn(ctx, ownerID, field, positiveOnly)
}

func (f *fakeRecords) GroupCount(ctx context.Context, ownerID int64, field repository.Field, partial string, limit int) ([]repository.ValueCount, error) {
	f.count()
	if f.groupCountFn == nil {
		return nil, nil
	}
	return f.groupCountFn(ctx, ownerID, field, partial, limit)
}

func (f *fakeRecords) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func strPtr(s string) *string     { return &s }
func intPtr(i int) *int           { return &i }
func boolPtr(b bool) *bool        { return &b }
func floatPtr(v float64) *float64 { return &v }
