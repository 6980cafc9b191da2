package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"tunevault/core/auth"
	"tunevault/core/ingest"
	"tunevault/core/search"
	"tunevault/core/share"
	"tunevault/logger"
	"tunevault/model"
)

// Catalog 录入与记录管理
type Catalog interface {
	Stage(ctx context.Context, up ingest.Upload, ownerID int64) (*ingest.FileHandle, error)
	Ingest(ctx context.Context, h ingest.FileHandle, fields ingest.Fields, ownerID int64) (*model.Record, error)
	AttachCoverArt(ctx context.Context, recordID, ownerID int64, up ingest.Upload) (*model.Record, error)
	UpdateFields(ctx context.Context, recordID, ownerID int64, fields ingest.Fields) (*model.Record, error)
	Delete(ctx context.Context, recordID, ownerID int64) error
	Get(ctx context.Context, recordID, ownerID int64) (*model.Record, error)
	List(ctx context.Context, ownerID int64, page, limit int) (model.Page, error)
}

// Searcher 搜索、筛选项与联想
type Searcher interface {
	Search(ctx context.Context, req search.Request, ownerID int64) (model.Page, error)
	Facets(ctx context.Context, ownerID int64) (*search.Facets, error)
	Suggest(ctx context.Context, partial string, ownerID int64, limit int) ([]search.Suggestion, error)
}

// Sharer 分享链接
type Sharer interface {
	Create(ctx context.Context, ownerID, recordID int64, allowDownload bool, expiresIn time.Duration) (*model.ShareLink, error)
	List(ctx context.Context, ownerID int64) ([]model.ShareLink, error)
	Revoke(ctx context.Context, ownerID int64, shareID string) error
	Resolve(ctx context.Context, shareID string) (*share.Shared, error)
	Open(ctx context.Context, shareID string) (*share.Download, error)
}

// Accounts 注册与登录
type Accounts interface {
	Register(ctx context.Context, username, email, password string) (*auth.Session, error)
	Login(ctx context.Context, username, password string) (*auth.Session, error)
}

// TokenParser 将 Bearer token 解析为用户 ID
type TokenParser interface {
	Parse(token string) (int64, error)
}

// HealthCheck 检查单个依赖是否可用
type HealthCheck func(ctx context.Context) error

// Options 处理器配置
type Options struct {
	UploadMaxBytes int64
	UploadTmpDir   string
	HealthChecks   map[string]HealthCheck
}

// APIHandler 处理所有API请求
type APIHandler struct {
	catalog  Catalog
	search   Searcher
	shares   Sharer
	accounts Accounts
	tokens   TokenParser
	opts     Options
}

// NewAPIHandler 创建新的API处理器
func NewAPIHandler(catalog Catalog, searcher Searcher, shares Sharer, accounts Accounts, tokens TokenParser, opts Options) *APIHandler {
	if opts.UploadMaxBytes <= 0 {
		opts.UploadMaxBytes = 100 << 20
	}
	return &APIHandler{
		catalog:  catalog,
		search:   searcher,
		shares:   shares,
		accounts: accounts,
		tokens:   tokens,
		opts:     opts,
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("写入响应失败", logger.ErrorField(err))
	}
}

// decodeJSON 读取最大 1MB 的 JSON 请求体，拒绝未知字段
func decodeJSON(r *http.Request, dest interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dest); err != nil {
		return badRequest("invalid JSON body: " + err.Error())
	}
	return nil
}

// HealthHandler 健康检查
func (h *APIHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	status := http.StatusOK
	checks := make(map[string]string, len(h.opts.HealthChecks))
	for name, check := range h.opts.HealthChecks {
		if err := check(ctx); err != nil {
			logger.Warn("健康检查失败", logger.String("component", name), logger.ErrorField(err))
			checks[name] = "unavailable"
			status = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}
	overall := "ok"
	if status != http.StatusOK {
		overall = "degraded"
	}
	writeJSON(w, status, map[string]interface{}{"status": overall, "checks": checks})
}
