package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"tunevault/core/ingest"
	"tunevault/core/metadata"
	"tunevault/logger"
)

const multipartMemory = 32 << 20

// UploadHandler 上传音频并入库
// multipart 字段: file (必填), title artist album genre year albumArtist
// trackNumber discNumber composers (可选)
func (h *APIHandler) UploadHandler(w http.ResponseWriter, r *http.Request) {
	ownerID, _ := OwnerIDFromContext(r.Context())

	if err := h.parseMultipart(w, r); err != nil {
		writeError(w, r, err)
		return
	}
	defer r.MultipartForm.RemoveAll()

	fields, err := uploadFields(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	up, cleanup, err := h.spool(r, "file")
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer cleanup()

	handle, err := h.catalog.Stage(r.Context(), up, ownerID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	rec, err := h.catalog.Ingest(r.Context(), *handle, fields, ownerID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

// CoverHandler 上传或替换封面
func (h *APIHandler) CoverHandler(w http.ResponseWriter, r *http.Request) {
	ownerID, _ := OwnerIDFromContext(r.Context())
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.parseMultipart(w, r); err != nil {
		writeError(w, r, err)
		return
	}
	defer r.MultipartForm.RemoveAll()

	up, cleanup, err := h.spool(r, "cover")
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer cleanup()

	rec, err := h.catalog.AttachCoverArt(r.Context(), id, ownerID, up)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// ListHandler 分页列出当前用户的记录
func (h *APIHandler) ListHandler(w http.ResponseWriter, r *http.Request) {
	ownerID, _ := OwnerIDFromContext(r.Context())
	page, limit, err := parsePaging(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	result, err := h.catalog.List(r.Context(), ownerID, page, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// GetHandler 获取单条记录
func (h *APIHandler) GetHandler(w http.ResponseWriter, r *http.Request) {
	ownerID, _ := OwnerIDFromContext(r.Context())
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	rec, err := h.catalog.Get(r.Context(), id, ownerID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// UpdateHandler 修改元数据 (PATCH, JSON)
func (h *APIHandler) UpdateHandler(w http.ResponseWriter, r *http.Request) {
	ownerID, _ := OwnerIDFromContext(r.Context())
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var fields ingest.Fields
	if err := decodeJSON(r, &fields); err != nil {
		writeError(w, r, err)
		return
	}
	rec, err := h.catalog.UpdateFields(r.Context(), id, ownerID, fields)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// DeleteHandler 删除记录及其文件
func (h *APIHandler) DeleteHandler(w http.ResponseWriter, r *http.Request) {
	ownerID, _ := OwnerIDFromContext(r.Context())
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.catalog.Delete(r.Context(), id, ownerID); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *APIHandler) parseMultipart(w http.ResponseWriter, r *http.Request) error {
	r.Body = http.MaxBytesReader(w, r.Body, h.opts.UploadMaxBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return badRequest(fmt.Sprintf("upload exceeds %d MB", h.opts.UploadMaxBytes>>20))
		}
		return badRequest("invalid multipart form")
	}
	return nil
}

// spool 将上传文件写入 UploadTmpDir，返回的 cleanup 删除临时文件
func (h *APIHandler) spool(r *http.Request, field string) (ingest.Upload, func(), error) {
	noop := func() {}
	file, header, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return ingest.Upload{}, noop, badRequest("missing '" + field + "' in form")
	}
	if err != nil {
		return ingest.Upload{}, noop, badRequest("invalid '" + field + "' part")
	}
	defer file.Close()

	tmp, err := os.CreateTemp(h.opts.UploadTmpDir, "upload-*"+strings.ToLower(filepath.Ext(header.Filename)))
	if err != nil {
		return ingest.Upload{}, noop, fmt.Errorf("create temp file: %w", err)
	}
	cleanup := func() {
		if err := os.Remove(tmp.Name()); err != nil && !os.IsNotExist(err) {
			logger.Warn("删除临时文件失败", logger.String("path", tmp.Name()), logger.ErrorField(err))
		}
	}
	size, err := io.Copy(tmp, file)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		cleanup()
		return ingest.Upload{}, noop, fmt.Errorf("spool upload: %w", err)
	}
	return ingest.Upload{
		Path:             tmp.Name(),
		OriginalFilename: filepath.Base(header.Filename),
		ContentType:      header.Header.Get("Content-Type"),
		Size:             size,
	}, cleanup, nil
}

// uploadFields 读取上传表单中可选的元数据字段
func uploadFields(r *http.Request) (ingest.Fields, error) {
	var f ingest.Fields
	str := func(name string) *string {
		v := strings.TrimSpace(r.FormValue(name))
		if v == "" {
			return nil
		}
		return &v
	}
	var parseErr error
	num := func(name string) *int {
		v := str(name)
		if v == nil {
			return nil
		}
		n, err := strconv.Atoi(*v)
		if err != nil && parseErr == nil {
			parseErr = badRequest("invalid " + name + ": expected an integer")
		}
		if err != nil {
			return nil
		}
		return &n
	}

	f.Title = str("title")
	f.Artist = str("artist")
	f.Album = str("album")
	f.Genre = str("genre")
	f.AlbumArtist = str("albumArtist")
	f.Year = num("year")
	f.TrackNumber = num("trackNumber")
	f.DiscNumber = num("discNumber")
	if c := str("composers"); c != nil {
		for _, part := range strings.Split(*c, ",") {
			f.Composers = append(f.Composers, metadata.SplitComposers(part)...)
		}
	}
	if parseErr != nil {
		return ingest.Fields{}, parseErr
	}
	if err := f.Validate(); err != nil {
		return ingest.Fields{}, err
	}
	return f, nil
}
