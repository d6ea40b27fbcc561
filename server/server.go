package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"Decibel/logger"

	"github.com/gorilla/mux"
)

// Server is the remote control HTTP server.
type Server struct {
	hub     *Hub
	handler *APIHandler
	srv     *http.Server
}

// New 创建服务器, the hub must be the one the state module broadcasts to.
func New(addr string, handler *APIHandler) *Server {
	s := &Server{hub: handler.hub, handler: handler}
	s.srv = &http.Server{
		Addr:         addr,
		Handler:      s.Router(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	return s
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.Header().Set("Access-Control-Max-Age", "86400") // 24 hours

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Router 构建路由
func (s *Server) Router() *mux.Router {
	h := s.handler
	router := mux.NewRouter()
	router.Use(corsMiddleware)
	// 预检请求, 路由匹配后中间件才会执行
	router.PathPrefix("/").Methods(http.MethodOptions).HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})

	// 播放控制
	router.HandleFunc("/api/state", h.StateHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/play", h.CommandHandler(MsgTypePlay)).Methods(http.MethodPost)
	router.HandleFunc("/api/stop", h.CommandHandler(MsgTypeStop)).Methods(http.MethodPost)
	router.HandleFunc("/api/next", h.CommandHandler(MsgTypeNext)).Methods(http.MethodPost)
	router.HandleFunc("/api/previous", h.CommandHandler(MsgTypePrevious)).Methods(http.MethodPost)
	router.HandleFunc("/api/toggle-pause", h.CommandHandler(MsgTypeTogglePause)).Methods(http.MethodPost)
	router.HandleFunc("/api/seek", h.CommandHandler(MsgTypeSeek)).Methods(http.MethodPost)
	router.HandleFunc("/api/volume", h.CommandHandler(MsgTypeSetVolume)).Methods(http.MethodPost)
	router.HandleFunc("/api/repeat", h.CommandHandler(MsgTypeRepeat)).Methods(http.MethodPost)

	// 播放列表
	router.HandleFunc("/api/tracklist", h.TracklistHandler).Methods(http.MethodGet, http.MethodPost, http.MethodDelete)
	router.HandleFunc("/api/tracklist/shuffle", h.CommandHandler(MsgTypeShuffle)).Methods(http.MethodPost)
	router.HandleFunc("/api/tracklist/revert", h.CommandHandler(MsgTypeRevert)).Methods(http.MethodPost)
	router.HandleFunc("/api/tracklist/remove", h.CommandHandler(MsgTypeRemove)).Methods(http.MethodPost)

	// 文件浏览
	router.HandleFunc("/api/explorer", h.ExplorerHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/explorer/root", h.ExplorerRootHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/explorer/expand", h.ExpandHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/explorer/collapse", h.CollapseHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/explorer/refresh", h.RefreshHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/explorer/play", h.ExplorerPlayHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/explorer/folders", h.FoldersHandler).Methods(http.MethodPost, http.MethodPut, http.MethodDelete)

	router.HandleFunc("/ws", h.WebSocketHandler).Methods(http.MethodGet)

	return router
}

// Start runs the hub and listens in the background.
// The returned channel receives the serve error, if any.
func (s *Server) Start() (<-chan error, error) {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return nil, err
	}
	go s.hub.Run()

	errc := make(chan error, 1)
	go func() {
		logger.Info("remote control listening", logger.String("addr", ln.Addr().String()))
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("remote control server failed", logger.ErrorField(err))
			errc <- err
		}
		close(errc)
	}()
	return errc, nil
}

// Shutdown 优雅关闭服务器
func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.Stop()
	return s.srv.Shutdown(ctx)
}
