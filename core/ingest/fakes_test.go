package ingest

import (
	"bytes"
	"context"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"tunevault/core/apperr"
	"tunevault/core/metadata"
	"tunevault/model"
	"tunevault/repository"
	"tunevault/storage"
)

// memArtifacts is an in-memory ArtifactStore.
type memArtifacts struct {
	mu       sync.Mutex
	objects  map[string][]byte
	modified map[string]time.Time
	saveErr  func(key string) error
	deleted  []string
}

func newMemArtifacts() *memArtifacts {
	return &memArtifacts{objects: map[string][]byte{}, modified: map[string]time.Time{}}
}

func (m *memArtifacts) Save(_ context.Context, key string, r io.Reader, _ int64, _ string) (string, error) {
	if m.saveErr != nil {
		if err := m.saveErr(key); err != nil {
			return "", err
		}
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = data
	m.modified[key] = time.Now()
	return key, nil
}

func (m *memArtifacts) Delete(_ context.Context, ref string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, ref)
	_, ok := m.objects[ref]
	delete(m.objects, ref)
	delete(m.modified, ref)
	return ok, nil
}

func (m *memArtifacts) Exists(_ context.Context, ref string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[ref]
	return ok, nil
}

func (m *memArtifacts) Open(_ context.Context, ref string) (io.ReadCloser, *storage.ObjectInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[ref]
	if !ok {
		return nil, nil, apperr.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), &storage.ObjectInfo{Key: ref, Size: int64(len(data))}, nil
}

func (m *memArtifacts) List(_ context.Context, prefix string) ([]storage.ObjectInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []storage.ObjectInfo
	for k, v := range m.objects {
		if strings.HasPrefix(k, prefix) {
			out = append(out, storage.ObjectInfo{Key: k, Size: int64(len(v)), LastModified: m.modified[k]})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (m *memArtifacts) has(ref string) bool {
	ok, _ := m.Exists(context.Background(), ref)
	return ok
}

func (m *memArtifacts) keysWithPrefix(prefix string) []string {
	objs, _ := m.List(context.Background(), prefix)
	keys := make([]string, 0, len(objs))
	for _, o := range objs {
		keys = append(keys, o.Key)
	}
	return keys
}

// memRecords is an in-memory RecordRepository with error hooks.
type memRecords struct {
	mu     sync.Mutex
	nextID int64
	recs   map[int64]model.Record

	createErr   error
	setCoverErr error
}

func newMemRecords() *memRecords {
	return &memRecords{nextID: 1, recs: map[int64]model.Record{}}
}

func (m *memRecords) Create(_ context.Context, rec *model.Record) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	rec.ID = m.nextID
	m.nextID++
	rec.CreatedAt = time.Now()
	rec.UpdatedAt = rec.CreatedAt
	m.recs[rec.ID] = *rec
	return nil
}

func (m *memRecords) GetByID(_ context.Context, id, ownerID int64) (*model.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.recs[id]
	if !ok || rec.OwnerID != ownerID {
		return nil, apperr.ErrNotFound
	}
	return &rec, nil
}

func (m *memRecords) GetAnyOwner(_ context.Context, id int64) (*model.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.recs[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return &rec, nil
}

func (m *memRecords) ListByOwner(_ context.Context, ownerID int64, offset, limit int) ([]model.Record, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var all []model.Record
	for _, r := range m.recs {
		if r.OwnerID == ownerID {
			all = append(all, r)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID > all[j].ID })
	total := int64(len(all))
	if offset >= len(all) {
		return []model.Record{}, total, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], total, nil
}

func (m *memRecords) Update(_ context.Context, id, ownerID int64, updates map[string]interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.recs[id]
	if !ok || rec.OwnerID != ownerID {
		return apperr.ErrNotFound
	}
	for col, v := range updates {
		switch col {
		case "title":
			rec.Title = v.(string)
		case "artist":
			rec.Artist = v.(string)
		case "album":
			rec.Album = v.(string)
		case "genre":
			rec.Genre = v.(*string)
		case "year":
			y := v.(int)
			rec.Year = &y
		case "composers":
			rec.Composers = v.(model.StringList)
		case "cover_art_path":
			rec.CoverArtPath = v.(*string)
		}
	}
	m.recs[id] = rec
	return nil
}

func (m *memRecords) SetCoverArt(ctx context.Context, id, ownerID int64, ref *string) error {
	if m.setCoverErr != nil {
		return m.setCoverErr
	}
	return m.Update(ctx, id, ownerID, map[string]interface{}{"cover_art_path": ref})
}

func (m *memRecords) Delete(_ context.Context, id, ownerID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.recs[id]
	if !ok || rec.OwnerID != ownerID {
		return apperr.ErrNotFound
	}
	delete(m.recs, id)
	return nil
}

func (m *memRecords) Search(context.Context, repository.Query) ([]model.Record, int64, error) {
	return nil, 0, nil
}

func (m *memRecords) Distinct(context.Context, int64, repository.Field) ([]string, error) {
	return nil, nil
}

func (m *memRecords) MinMax(context.Context, int64, repository.Field, bool) (*float64, *float64, error) {
	return nil, nil, nil
}

func (m *memRecords) GroupCount(context.Context, int64, repository.Field, string, int) ([]repository.ValueCount, error) {
	return nil, nil
}

func (m *memRecords) ArtifactRefs(context.Context) (map[string]struct{}, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	refs := map[string]struct{}{}
	for _, r := range m.recs {
		refs[r.FilePath] = struct{}{}
		if r.HasCoverArt() {
			refs[*r.CoverArtPath] = struct{}{}
		}
	}
	return refs, nil
}

func (m *memRecords) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.recs)
}

// fakeExtractor returns a fixed result.
type fakeExtractor struct {
	extractFn func(ctx context.Context, path, originalFilename string) (*metadata.Result, error)
}

func (f *fakeExtractor) Extract(ctx context.Context, path, originalFilename string) (*metadata.Result, error) {
	if f.extractFn != nil {
		return f.extractFn(ctx, path, originalFilename)
	}
	return &metadata.Result{FallbackTitle: metadata.TitleFromFilename(originalFilename), Fallback: true}, nil
}

// countingCache records version bumps.
type countingCache struct {
	mu    sync.Mutex
	bumps map[int64]int
}

func (c *countingCache) Version(context.Context, int64) int64 { return 0 }
func (c *countingCache) Bump(_ context.Context, ownerID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.bumps == nil {
		c.bumps = map[int64]int{}
	}
	c.bumps[ownerID]++
}
func (c *countingCache) Get(context.Context, string, string, interface{}) bool { return false }
func (c *countingCache) Set(context.Context, string, string, interface{})      {}

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }

func floatPtr(f float64) *float64 { return &f }
