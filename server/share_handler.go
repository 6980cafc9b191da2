package server

import (
	"io"
	"mime"
	"net/http"
	"strconv"
	"time"

	"tunevault/logger"

	"github.com/gorilla/mux"
)

type createShareRequest struct {
	RecordID         int64 `json:"recordId"`
	AllowDownload    bool  `json:"allowDownload"`
	ExpiresInSeconds int64 `json:"expiresInSeconds"`
}

// CreateShareHandler 创建分享链接
func (h *APIHandler) CreateShareHandler(w http.ResponseWriter, r *http.Request) {
	ownerID, _ := OwnerIDFromContext(r.Context())
	var req createShareRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.RecordID <= 0 {
		writeError(w, r, badRequest("recordId is required"))
		return
	}
	if req.ExpiresInSeconds < 0 {
		writeError(w, r, badRequest("expiresInSeconds must not be negative"))
		return
	}
	link, err := h.shares.Create(r.Context(), ownerID, req.RecordID, req.AllowDownload, time.Duration(req.ExpiresInSeconds)*time.Second)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, link)
}

// ListSharesHandler 列出当前用户的分享链接
func (h *APIHandler) ListSharesHandler(w http.ResponseWriter, r *http.Request) {
	ownerID, _ := OwnerIDFromContext(r.Context())
	links, err := h.shares.List(r.Context(), ownerID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"shares": links})
}

// RevokeShareHandler 撤销分享链接
func (h *APIHandler) RevokeShareHandler(w http.ResponseWriter, r *http.Request) {
	ownerID, _ := OwnerIDFromContext(r.Context())
	if err := h.shares.Revoke(r.Context(), ownerID, mux.Vars(r)["shareId"]); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SharedHandler 公开访问分享的记录
func (h *APIHandler) SharedHandler(w http.ResponseWriter, r *http.Request) {
	shared, err := h.shares.Resolve(r.Context(), mux.Vars(r)["shareId"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, shared)
}

// SharedDownloadHandler 公开下载分享的音频
func (h *APIHandler) SharedDownloadHandler(w http.ResponseWriter, r *http.Request) {
	dl, err := h.shares.Open(r.Context(), mux.Vars(r)["shareId"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer dl.Body.Close()

	w.Header().Set("Content-Type", dl.ContentType)
	if dl.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(dl.Size, 10))
	}
	if dl.Filename != "" {
		w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": dl.Filename}))
	}
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, dl.Body); err != nil {
		logger.Warn("分享下载中断", logger.String("shareID", mux.Vars(r)["shareId"]), logger.ErrorField(err))
	}
}
