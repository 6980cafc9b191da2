package server

import (
	"errors"
	"net/http"

	"tunevault/core/apperr"
	"tunevault/core/auth"
	"tunevault/logger"
)

// 错误响应中的错误码
const (
	CodeValidation       = "VALIDATION_ERROR"
	CodeUnauthorized     = "UNAUTHORIZED"
	CodeForbidden        = "FORBIDDEN"
	CodeNotFound         = "NOT_FOUND"
	CodeConflict         = "CONFLICT"
	CodeStoreUnavailable = "STORE_UNAVAILABLE"
	CodeInternal         = "INTERNAL_ERROR"
)

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorEnvelope struct {
	Error errorBody `json:"error"`
}

func badRequest(msg string) error {
	return apperr.Validation(msg)
}

// classify 将错误映射为 HTTP 状态码、错误码和可返回给客户端的消息
func classify(err error) (int, string, string) {
	switch {
	case errors.Is(err, apperr.ErrEmptyUpload):
		return http.StatusBadRequest, CodeValidation, "uploaded file is empty"
	case errors.Is(err, apperr.ErrValidation):
		return http.StatusBadRequest, CodeValidation, err.Error()
	case errors.Is(err, auth.ErrBadCredentials):
		return http.StatusUnauthorized, CodeUnauthorized, err.Error()
	case errors.Is(err, auth.ErrInvalidToken):
		return http.StatusUnauthorized, CodeUnauthorized, "invalid or expired token"
	case errors.Is(err, apperr.ErrForbidden):
		return http.StatusForbidden, CodeForbidden, "download not allowed for this link"
	case errors.Is(err, apperr.ErrNotFound):
		return http.StatusNotFound, CodeNotFound, "not found"
	case errors.Is(err, apperr.ErrConflict):
		return http.StatusConflict, CodeConflict, "already exists"
	case errors.Is(err, apperr.ErrStoreUnavailable):
		return http.StatusServiceUnavailable, CodeStoreUnavailable, "storage temporarily unavailable, retry later"
	case errors.Is(err, apperr.ErrPersistence):
		return http.StatusInternalServerError, CodeInternal, "failed to save record"
	default:
		return http.StatusInternalServerError, CodeInternal, "internal server error"
	}
}

// writeError 统一错误响应 {"error":{"code","message"}}
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code, msg := classify(err)
	if status >= http.StatusInternalServerError {
		logger.Error("请求处理失败",
			logger.String("method", r.Method),
			logger.String("path", r.URL.Path),
			logger.ErrorField(err))
	}
	writeJSON(w, status, errorEnvelope{Error: errorBody{Code: code, Message: msg}})
}

func writeUnauthorized(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusUnauthorized, errorEnvelope{Error: errorBody{Code: CodeUnauthorized, Message: msg}})
}
