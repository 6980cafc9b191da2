package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"tunevault/logger"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter 注册所有路由
func NewRouter(h *APIHandler) *mux.Router {
	router := mux.NewRouter()
	router.Use(corsMiddleware, observeMiddleware)

	// 目录与搜索（需要登录）
	router.HandleFunc("/music/upload", h.AuthMiddleware(h.UploadHandler)).Methods(http.MethodPost, http.MethodOptions)
	router.HandleFunc("/music/search", h.AuthMiddleware(h.SearchHandler)).Methods(http.MethodGet, http.MethodOptions)
	router.HandleFunc("/music/search/filters", h.AuthMiddleware(h.FiltersHandler)).Methods(http.MethodGet, http.MethodOptions)
	router.HandleFunc("/music/search/suggestions", h.AuthMiddleware(h.SuggestionsHandler)).Methods(http.MethodGet, http.MethodOptions)
	router.HandleFunc("/music/shares", h.AuthMiddleware(h.CreateShareHandler)).Methods(http.MethodPost, http.MethodOptions)
	router.HandleFunc("/music/shares", h.AuthMiddleware(h.ListSharesHandler)).Methods(http.MethodGet)
	router.HandleFunc("/music/shares/{shareId}", h.AuthMiddleware(h.RevokeShareHandler)).Methods(http.MethodDelete, http.MethodOptions)
	router.HandleFunc("/music", h.AuthMiddleware(h.ListHandler)).Methods(http.MethodGet, http.MethodOptions)
	router.HandleFunc("/music/{id:[0-9]+}", h.AuthMiddleware(h.GetHandler)).Methods(http.MethodGet, http.MethodOptions)
	router.HandleFunc("/music/{id:[0-9]+}", h.AuthMiddleware(h.UpdateHandler)).Methods(http.MethodPatch)
	router.HandleFunc("/music/{id:[0-9]+}", h.AuthMiddleware(h.DeleteHandler)).Methods(http.MethodDelete)
	router.HandleFunc("/music/{id:[0-9]+}/cover", h.AuthMiddleware(h.CoverHandler)).Methods(http.MethodPost, http.MethodOptions)

	// 公开分享
	router.HandleFunc("/shared/{shareId}", h.SharedHandler).Methods(http.MethodGet, http.MethodOptions)
	router.HandleFunc("/shared/{shareId}/download", h.SharedDownloadHandler).Methods(http.MethodGet, http.MethodOptions)

	// 用户认证
	router.HandleFunc("/auth/register", h.RegisterHandler).Methods(http.MethodPost, http.MethodOptions)
	router.HandleFunc("/auth/login", h.LoginHandler).Methods(http.MethodPost, http.MethodOptions)

	router.HandleFunc("/healthz", h.HealthHandler).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, errorEnvelope{Error: errorBody{Code: CodeNotFound, Message: "route not found"}})
	})
	return router
}

// Run 在 addr 上提供服务，ctx 取消后优雅关闭
func Run(ctx context.Context, addr string, handler http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		// 上传大文件需要较长的读写超时
		ReadTimeout:  10 * time.Minute,
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP 服务启动", logger.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("正在关闭 HTTP 服务...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	logger.Info("HTTP 服务已停止")
	return nil
}
