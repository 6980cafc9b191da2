package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"tunevault/core/apperr"
	"tunevault/core/auth"
	"tunevault/core/ingest"
	"tunevault/core/search"
	"tunevault/core/share"
	"tunevault/model"
)

const validToken = "good-token"

type testEnv struct {
	catalog  *fakeCatalog
	searcher *fakeSearcher
	sharer   *fakeSharer
	accounts *fakeAccounts
	router   http.Handler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		catalog:  &fakeCatalog{},
		searcher: &fakeSearcher{},
		sharer:   &fakeSharer{},
		accounts: &fakeAccounts{},
	}
	h := NewAPIHandler(env.catalog, env.searcher, env.sharer, env.accounts, staticTokens{validToken: 7}, Options{
		UploadMaxBytes: 1 << 20,
		UploadTmpDir:   t.TempDir(),
		HealthChecks: map[string]HealthCheck{
			"db": func(context.Context) error { return nil },
		},
	})
	env.router = NewRouter(h)
	return env
}

func (e *testEnv) do(method, target string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, body)
	req.Header.Set("Authorization", "Bearer "+validToken)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	return rr
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var env errorEnvelope
	if err := json.NewDecoder(rr.Body).Decode(&env); err != nil {
		t.Fatalf("decode error envelope: %v (body %q)", err, rr.Body.String())
	}
	return env.Error
}

func TestAuthRequired(t *testing.T) {
	env := newTestEnv(t)
	for _, header := range []string{"", "Basic abc", "Bearer wrong"} {
		req := httptest.NewRequest(http.MethodGet, "/music", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rr := httptest.NewRecorder()
		env.router.ServeHTTP(rr, req)
		if rr.Code != http.StatusUnauthorized {
			t.Fatalf("%q: status = %d", header, rr.Code)
		}
		if body := decodeError(t, rr); body.Code != CodeUnauthorized {
			t.Fatalf("%q: code = %s", header, body.Code)
		}
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{apperr.Validation("bad"), 400, CodeValidation},
		{apperr.ErrEmptyUpload, 400, CodeValidation},
		{fmt.Errorf("wrapped: %w", apperr.ErrNotFound), 404, CodeNotFound},
		{apperr.ErrConflict, 409, CodeConflict},
		{apperr.ErrForbidden, 403, CodeForbidden},
		{auth.ErrBadCredentials, 401, CodeUnauthorized},
		{fmt.Errorf("%w: %w", apperr.ErrPersistence, apperr.ErrStoreUnavailable), 503, CodeStoreUnavailable},
		{fmt.Errorf("%w: dup", apperr.ErrPersistence), 500, CodeInternal},
		{errors.New("boom"), 500, CodeInternal},
	}
	for _, tt := range tests {
		status, code, _ := classify(tt.err)
		if status != tt.status || code != tt.code {
			t.Errorf("classify(%v) = %d %s, want %d %s", tt.err, status, code, tt.status, tt.code)
		}
	}
}

func TestSearchParsesFilters(t *testing.T) {
	env := newTestEnv(t)
	var got search.Request
	env.searcher.searchFn = func(_ context.Context, req search.Request, ownerID int64) (model.Page, error) {
		if ownerID != 7 {
			t.Errorf("ownerID = %d", ownerID)
		}
		got = req
		return model.NewPage([]model.Record{{ID: 1, Title: "So What"}}, 1, req.Page, req.Limit), nil
	}

	rr := env.do(http.MethodGet, "/music/search?q=miles&genre=Jazz&yearFrom=1955&yearTo=1965&hasLyrics=false&composers=Davis,Evans&sort=year&order=ASC&page=2&limit=5", nil, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rr.Code, rr.Body.String())
	}
	if got.Query != "miles" || *got.Genre != "Jazz" || *got.Year.From != 1955 || *got.Year.To != 1965 {
		t.Errorf("unexpected request: %+v", got)
	}
	if got.HasLyrics == nil || *got.HasLyrics {
		t.Errorf("HasLyrics = %v", got.HasLyrics)
	}
	if len(got.Composers) != 2 || got.Sort != "year" || got.Order != "asc" || got.Page != 2 || got.Limit != 5 {
		t.Errorf("unexpected request: %+v", got)
	}

	var page model.Page
	if err := json.NewDecoder(rr.Body).Decode(&page); err != nil {
		t.Fatal(err)
	}
	if page.Total != 1 || page.CurrentPage != 2 || len(page.Records) != 1 {
		t.Errorf("unexpected page: %+v", page)
	}
}

func TestSearchRejectsBadInput(t *testing.T) {
	env := newTestEnv(t)
	env.searcher.searchFn = func(context.Context, search.Request, int64) (model.Page, error) {
		t.Fatal("engine must not be called")
		return model.Page{}, nil
	}
	for _, query := range []string{
		"yearFrom=abc",
		"yearFrom=2000&yearTo=1990",
		"page=0",
		"limit=101",
		"sort=rating",
		"order=sideways",
		"hasCoverArt=maybe",
	} {
		rr := env.do(http.MethodGet, "/music/search?"+query, nil, "")
		if rr.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d", query, rr.Code)
			continue
		}
		if body := decodeError(t, rr); body.Code != CodeValidation {
			t.Errorf("%s: code = %s", query, body.Code)
		}
	}
}

func TestSearchStoreUnavailable(t *testing.T) {
	env := newTestEnv(t)
	env.searcher.searchFn = func(context.Context, search.Request, int64) (model.Page, error) {
		return model.Page{}, fmt.Errorf("count records: %w", apperr.ErrStoreUnavailable)
	}
	rr := env.do(http.MethodGet, "/music/search", nil, "")
	if rr.Code != http.StatusServiceUnavailable || decodeError(t, rr).Code != CodeStoreUnavailable {
		t.Fatalf("status = %d", rr.Code)
	}
}

func TestSuggestions(t *testing.T) {
	env := newTestEnv(t)
	env.searcher.suggestFn = func(_ context.Context, partial string, _ int64, limit int) ([]search.Suggestion, error) {
		if partial != "ro" || limit != 5 {
			t.Errorf("partial=%q limit=%d", partial, limit)
		}
		return []search.Suggestion{{Type: "artist", Value: "Roxette", Count: 3}}, nil
	}
	rr := env.do(http.MethodGet, "/music/search/suggestions?q=ro&limit=5", nil, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var body struct {
		Suggestions []search.Suggestion `json:"suggestions"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil || len(body.Suggestions) != 1 {
		t.Fatalf("body = %+v, %v", body, err)
	}

	if rr := env.do(http.MethodGet, "/music/search/suggestions?q=ro&limit=51", nil, ""); rr.Code != http.StatusBadRequest {
		t.Fatalf("limit over max: status = %d", rr.Code)
	}
}

func TestFilters(t *testing.T) {
	env := newTestEnv(t)
	env.searcher.facetsFn = func(context.Context, int64) (*search.Facets, error) {
		return &search.Facets{AvailableGenres: []string{"Jazz"}, DurationRange: search.Range{Min: 0, Max: 600}}, nil
	}
	rr := env.do(http.MethodGet, "/music/search/filters", nil, "")
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"durationRange":{"min":0,"max":600}`) {
		t.Fatalf("status = %d body = %s", rr.Code, rr.Body.String())
	}
}

func multipartBody(t *testing.T, fileField, filename string, data []byte, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatal(err)
		}
	}
	if fileField != "" {
		fw, err := mw.CreateFormFile(fileField, filename)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := fw.Write(data); err != nil {
			t.Fatal(err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	return &buf, mw.FormDataContentType()
}

func TestUploadSpoolsAndIngests(t *testing.T) {
	env := newTestEnv(t)
	var spooled string
	env.catalog.stageFn = func(_ context.Context, up ingest.Upload, ownerID int64) (*ingest.FileHandle, error) {
		data, err := os.ReadFile(up.Path)
		if err != nil {
			t.Fatalf("spooled file unreadable: %v", err)
		}
		if string(data) != "fake-audio" || up.OriginalFilename != "song.mp3" || up.Size != 10 || ownerID != 7 {
			t.Errorf("unexpected upload: %+v", up)
		}
		spooled = up.Path
		return &ingest.FileHandle{Ref: "audio/7/x.mp3", Size: up.Size, LocalPath: up.Path}, nil
	}
	env.catalog.ingestFn = func(_ context.Context, h ingest.FileHandle, f ingest.Fields, _ int64) (*model.Record, error) {
		if f.Title == nil || *f.Title != "My Song" || f.Year == nil || *f.Year != 2001 {
			t.Errorf("unexpected fields: %+v", f)
		}
		if len(f.Composers) != 2 {
			t.Errorf("Composers = %v", f.Composers)
		}
		return &model.Record{ID: 5, Title: *f.Title, FilePath: h.Ref}, nil
	}

	body, ct := multipartBody(t, "file", "song.mp3", []byte("fake-audio"), map[string]string{
		"title":     "My Song",
		"year":      "2001",
		"composers": "A. Writer; B. Writer",
	})
	rr := env.do(http.MethodPost, "/music/upload", body, ct)
	if rr.Code != http.StatusCreated {
		t.Fatalf("status = %d body = %s", rr.Code, rr.Body.String())
	}
	if strings.Contains(rr.Body.String(), "audio/7/x.mp3") {
		t.Error("artifact ref must not be exposed")
	}
	if _, err := os.Stat(spooled); !os.IsNotExist(err) {
		t.Errorf("spooled file should be removed, stat err = %v", err)
	}
}

func TestUploadValidation(t *testing.T) {
	env := newTestEnv(t)
	env.catalog.stageFn = func(context.Context, ingest.Upload, int64) (*ingest.FileHandle, error) {
		return nil, apperr.ErrEmptyUpload
	}

	body, ct := multipartBody(t, "", "", nil, map[string]string{"title": "x"})
	if rr := env.do(http.MethodPost, "/music/upload", body, ct); rr.Code != http.StatusBadRequest {
		t.Errorf("missing file: status = %d", rr.Code)
	}

	body, ct = multipartBody(t, "file", "a.mp3", []byte("x"), map[string]string{"year": "nineteen"})
	if rr := env.do(http.MethodPost, "/music/upload", body, ct); rr.Code != http.StatusBadRequest {
		t.Errorf("bad year: status = %d", rr.Code)
	}

	body, ct = multipartBody(t, "file", "a.mp3", nil, nil)
	rr := env.do(http.MethodPost, "/music/upload", body, ct)
	if rr.Code != http.StatusBadRequest || decodeError(t, rr).Message != "uploaded file is empty" {
		t.Errorf("empty file: status = %d", rr.Code)
	}

	big := bytes.Repeat([]byte("a"), 2<<20)
	body, ct = multipartBody(t, "file", "a.mp3", big, nil)
	if rr := env.do(http.MethodPost, "/music/upload", body, ct); rr.Code != http.StatusBadRequest {
		t.Errorf("too large: status = %d", rr.Code)
	}
}

func TestRecordNotFoundIsUniform(t *testing.T) {
	env := newTestEnv(t)
	env.catalog.getFn = func(context.Context, int64, int64) (*model.Record, error) {
		return nil, apperr.ErrNotFound
	}
	env.catalog.deleteFn = func(context.Context, int64, int64) error { return apperr.ErrNotFound }

	if rr := env.do(http.MethodGet, "/music/42", nil, ""); rr.Code != http.StatusNotFound {
		t.Errorf("get: status = %d", rr.Code)
	}
	if rr := env.do(http.MethodDelete, "/music/42", nil, ""); rr.Code != http.StatusNotFound {
		t.Errorf("delete: status = %d", rr.Code)
	}
	if rr := env.do(http.MethodGet, "/music/abc", nil, ""); rr.Code != http.StatusNotFound {
		t.Errorf("non-numeric id should not match a route: status = %d", rr.Code)
	}
}

func TestPatchRecord(t *testing.T) {
	env := newTestEnv(t)
	env.catalog.updateFn = func(_ context.Context, id, _ int64, f ingest.Fields) (*model.Record, error) {
		if id != 3 || f.Genre == nil || *f.Genre != "" {
			t.Errorf("id=%d genre=%v", id, f.Genre)
		}
		return &model.Record{ID: id}, nil
	}
	rr := env.do(http.MethodPatch, "/music/3", strings.NewReader(`{"genre":""}`), "application/json")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rr.Code, rr.Body.String())
	}
	rr = env.do(http.MethodPatch, "/music/3", strings.NewReader(`{"owner":1}`), "application/json")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("unknown field: status = %d", rr.Code)
	}
}

func TestListPaging(t *testing.T) {
	env := newTestEnv(t)
	env.catalog.listFn = func(_ context.Context, _ int64, page, limit int) (model.Page, error) {
		return model.NewPage(nil, 0, page, limit), nil
	}
	rr := env.do(http.MethodGet, "/music?page=1&limit=10", nil, "")
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"records":[]`) {
		t.Fatalf("status = %d body = %s", rr.Code, rr.Body.String())
	}
	if rr := env.do(http.MethodGet, "/music?limit=0", nil, ""); rr.Code != http.StatusBadRequest {
		t.Fatalf("limit=0: status = %d", rr.Code)
	}
}

func TestSharedDownload(t *testing.T) {
	env := newTestEnv(t)
	env.sharer.openFn = func(_ context.Context, id string) (*share.Download, error) {
		if id == "view-only" {
			return nil, apperr.ErrForbidden
		}
		return &share.Download{
			Body:        io.NopCloser(strings.NewReader("audio-bytes")),
			Size:        11,
			ContentType: "audio/mpeg",
			Filename:    "song.mp3",
		}, nil
	}

	req := httptest.NewRequest(http.MethodGet, "/shared/abc/download", nil)
	rr := httptest.NewRecorder()
	env.router.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK || rr.Body.String() != "audio-bytes" {
		t.Fatalf("status = %d body = %q", rr.Code, rr.Body.String())
	}
	if cd := rr.Header().Get("Content-Disposition"); !strings.Contains(cd, "song.mp3") {
		t.Errorf("Content-Disposition = %q", cd)
	}

	req = httptest.NewRequest(http.MethodGet, "/shared/view-only/download", nil)
	rr = httptest.NewRecorder()
	env.router.ServeHTTP(rr, req)
	if rr.Code != http.StatusForbidden || decodeError(t, rr).Code != CodeForbidden {
		t.Fatalf("status = %d", rr.Code)
	}
}

func TestCreateShare(t *testing.T) {
	env := newTestEnv(t)
	env.sharer.createFn = func(_ context.Context, ownerID, recordID int64, allow bool, expires time.Duration) (*model.ShareLink, error) {
		if ownerID != 7 || recordID != 3 || !allow || expires != time.Hour {
			t.Errorf("owner=%d record=%d allow=%v expires=%v", ownerID, recordID, allow, expires)
		}
		return &model.ShareLink{ID: "abc", RecordID: recordID}, nil
	}
	rr := env.do(http.MethodPost, "/music/shares", strings.NewReader(`{"recordId":3,"allowDownload":true,"expiresInSeconds":3600}`), "application/json")
	if rr.Code != http.StatusCreated {
		t.Fatalf("status = %d body = %s", rr.Code, rr.Body.String())
	}
	rr = env.do(http.MethodPost, "/music/shares", strings.NewReader(`{"allowDownload":true}`), "application/json")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("missing record: status = %d", rr.Code)
	}
}

func TestAuthEndpoints(t *testing.T) {
	env := newTestEnv(t)
	env.accounts.loginFn = func(_ context.Context, username, _ string) (*auth.Session, error) {
		if username != "alice" {
			return nil, auth.ErrBadCredentials
		}
		return &auth.Session{Token: "tok", User: &model.User{ID: 1, Username: "alice"}}, nil
	}

	post := func(path, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
		rr := httptest.NewRecorder()
		env.router.ServeHTTP(rr, req)
		return rr
	}

	if rr := post("/auth/login", `{"username":"alice","password":"pw"}`); rr.Code != http.StatusOK || strings.Contains(rr.Body.String(), "passwordHash") {
		t.Errorf("login: status = %d body = %s", rr.Code, rr.Body.String())
	}
	if rr := post("/auth/login", `{"username":"bob","password":"pw"}`); rr.Code != http.StatusUnauthorized {
		t.Errorf("bad login: status = %d", rr.Code)
	}
	if rr := post("/auth/register", `{"username":"taken","email":"a@b.c","password":"longenough"}`); rr.Code != http.StatusConflict {
		t.Errorf("duplicate register: status = %d", rr.Code)
	}
	if rr := post("/auth/register", `{"username":"new","email":"a@b.c","password":"longenough"}`); rr.Code != http.StatusCreated {
		t.Errorf("register: status = %d", rr.Code)
	}
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rr := httptest.NewRecorder()
	env.router.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"db":"ok"`) {
		t.Fatalf("status = %d body = %s", rr.Code, rr.Body.String())
	}
}
