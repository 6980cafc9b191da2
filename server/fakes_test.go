package server

import (
	"context"
	"time"

	"tunevault/core/apperr"
	"tunevault/core/auth"
	"tunevault/core/ingest"
	"tunevault/core/search"
	"tunevault/core/share"
	"tunevault/model"
)

type fakeCatalog struct {
	stageFn  func(ctx context.Context, up ingest.Upload, ownerID int64) (*ingest.FileHandle, error)
	ingestFn func(ctx context.Context, h ingest.FileHandle, f ingest.Fields, ownerID int64) (*model.Record, error)
	coverFn  func(ctx context.Context, id, ownerID int64, up ingest.Upload) (*model.Record, error)
	updateFn func(ctx context.Context, id, ownerID int64, f ingest.Fields) (*model.Record, error)
	deleteFn func(ctx context.Context, id, ownerID int64) error
	getFn    func(ctx context.Context, id, ownerID int64) (*model.Record, error)
	listFn   func(ctx context.Context, ownerID int64, page, limit int) (model.Page, error)
}

func (f *fakeCatalog) Stage(ctx context.Context, up ingest.Upload, ownerID int64) (*ingest.FileHandle, error) {
	return f.stageFn(ctx, up, ownerID)
}

func (f *fakeCatalog) Ingest(ctx context.Context, h ingest.FileHandle, fields ingest.Fields, ownerID int64) (*model.Record, error) {
	return f.ingestFn(ctx, h, fields, ownerID)
}

func (f *fakeCatalog) AttachCoverArt(ctx context.Context, id, ownerID int64, up ingest.Upload) (*model.Record, error) {
	return f.coverFn(ctx, id, ownerID, up)
}

func (f *fakeCatalog) UpdateFields(ctx context.Context, id, ownerID int64, fields ingest.Fields) (*model.Record, error) {
	return f.updateFn(ctx, id, ownerID, fields)
}

func (f *fakeCatalog) Delete(ctx context.Context, id, ownerID int64) error {
	return f.deleteFn(ctx, id, ownerID)
}

func (f *fakeCatalog) Get(ctx context.Context, id, ownerID int64) (*model.Record, error) {
	return f.getFn(ctx, id, ownerID)
}

func (f *fakeCatalog) List(ctx context.Context, ownerID int64, page, limit int) (model.Page, error) {
	return f.listFn(ctx, ownerID, page, limit)
}

type fakeSearcher struct {
	searchFn  func(ctx context.Context, req search.Request, ownerID int64) (model.Page, error)
	facetsFn  func(ctx context.Context, ownerID int64) (*search.Facets, error)
	suggestFn func(ctx context.Context, partial string, ownerID int64, limit int) ([]search.Suggestion, error)
}

func (f *fakeSearcher) Search(ctx context.Context, req search.Request, ownerID int64) (model.Page, error) {
	return f.searchFn(ctx, req, ownerID)
}

func (f *fakeSearcher) Facets(ctx context.Context, ownerID int64) (*search.Facets, error) {
	return f.facetsFn(ctx, ownerID)
}

func (f *fakeSearcher) Suggest(ctx context.Context, partial string, ownerID int64, limit int) ([]search.Suggestion, error) {
	return f.suggestFn(ctx, partial, ownerID, limit)
}

type fakeSharer struct {
	createFn  func(ctx context.Context, ownerID, recordID int64, allowDownload bool, expiresIn time.Duration) (*model.ShareLink, error)
	resolveFn func(ctx context.Context, shareID string) (*share.Shared, error)
	openFn    func(ctx context.Context, shareID string) (*share.Download, error)
}

func (f *fakeSharer) Create(ctx context.Context, ownerID, recordID int64, allowDownload bool, expiresIn time.Duration) (*model.ShareLink, error) {
	return f.createFn(ctx, ownerID, recordID, allowDownload, expiresIn)
}

func (f *fakeSharer) List(context.Context, int64) ([]model.ShareLink, error) {
	return []model.ShareLink{}, nil
}

func (f *fakeSharer) Revoke(context.Context, int64, string) error { return apperr.ErrNotFound }

func (f *fakeSharer) Resolve(ctx context.Context, shareID string) (*share.Shared, error) {
	return f.resolveFn(ctx, shareID)
}

func (f *fakeSharer) Open(ctx context.Context, shareID string) (*share.Download, error) {
	return f.openFn(ctx, shareID)
}

type fakeAccounts struct {
	loginFn func(ctx context.Context, username, password string) (*auth.Session, error)
}

func (f *fakeAccounts) Register(_ context.Context, username, email, _ string) (*auth.Session, error) {
	if username == "taken" {
		return nil, apperr.ErrConflict
	}
	return &auth.Session{Token: "t", User: &model.User{ID: 1, Username: username, Email: email}}, nil
}

func (f *fakeAccounts) Login(ctx context.Context, username, password string) (*auth.Session, error) {
	return f.loginFn(ctx, username, password)
}

// staticTokens 按固定表解析 token
type staticTokens map[string]int64

func (s staticTokens) Parse(token string) (int64, error) {
	if id, ok := s[token]; ok {
		return id, nil
	}
	return 0, auth.ErrInvalidToken
}
