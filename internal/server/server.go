// Package server exposes the host over HTTP: the popup API, raw storage and
// alarm access for page contexts, and the page websocket.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/site_focus/internal/domain"
	"github.com/eliteGoblin/focusd/site_focus/internal/usecase"
)

const shutdownTimeout = 5 * time.Second

// TabRegistry is the host's view of connected pages.
type TabRegistry interface {
	Open(url string) (domain.Tab, <-chan struct{})
	Close(id string)
	Activate(id string) bool
	All() []domain.Tab
}

// Deps are the host components the API serves.
type Deps struct {
	Popup   *usecase.Popup
	Storage domain.Storage
	Alarms  domain.AlarmScheduler
	Feed    domain.ChangeFeed
	Tabs    TabRegistry
	Host    domain.HostInfo
	Logger  *zap.Logger
}

// Server is the host's HTTP server.
type Server struct {
	deps     Deps
	validate *validator.Validate
	upgrader websocket.Upgrader
	logger   *zap.Logger
	router   http.Handler
}

// New creates a server and its routes.
func New(deps Deps) *Server {
	s := &Server{
		deps:     deps,
		validate: validator.New(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		logger: deps.Logger,
	}
	s.router = s.routes()
	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Route("/api", func(api chi.Router) {
		api.Get("/health", s.handleHealth)

		api.Route("/popup", func(popup chi.Router) {
			popup.Get("/", s.handlePopupState)
			popup.Post("/start", s.handlePopupStart)
			popup.Post("/stop", s.handlePopupStop)
			popup.Put("/theme", s.handlePopupTheme)
		})

		api.Get("/storage", s.handleStorageGet)
		api.Put("/storage", s.handleStorageSet)
		api.Delete("/storage", s.handleStorageRemove)

		api.Get("/alarms", s.handleAlarmsList)
		api.Post("/alarms", s.handleAlarmCreate)
		api.Delete("/alarms/{name}", s.handleAlarmClear)
	})

	r.Get("/ws/page", s.handlePageSocket)
	return r
}

// requestLogger logs each request at debug level.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("http request",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)))
	})
}

// Listen opens the listening socket, so the bound address is known before serving.
func Listen(addr string) (net.Listener, error) {
	return net.Listen("tcp", addr)
}

// Serve handles requests on ln until ctx is canceled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	s.logger.Info("http server listening", zap.String("addr", ln.Addr().String()))

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("http server shutdown", zap.Error(err))
		}
		return nil
	}
}
