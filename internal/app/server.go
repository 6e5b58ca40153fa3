package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	log "github.com/sirupsen/logrus"

	"github.com/markdave123-py/ragchat/internal/api/handlers"
	appMiddleware "github.com/markdave123-py/ragchat/internal/api/middlewares"
	"github.com/markdave123-py/ragchat/internal/config"
)

// Server wraps the HTTP server instance and its handlers.
type Server struct {
	httpServer *http.Server
}

// NewRouter builds all routes. Streaming endpoints are kept out of the request timeout.
func NewRouter(cfg *config.Config, docHandler *handlers.DocumentHandler, chatHandler *handlers.ChatHandler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8501"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/api", func(api chi.Router) {
		if cfg.JWTSecret != "" {
			api.Use(appMiddleware.JWTMiddleware(cfg.JWTSecret))
		}

		api.Group(func(bounded chi.Router) {
			bounded.Use(middleware.Timeout(5 * time.Minute))
			bounded.Post("/documents/extract", docHandler.Extract)
			bounded.Post("/documents/upload", docHandler.Upload)
			bounded.Post("/documents/url", docHandler.FromURL)
			bounded.Get("/documents/jobs/{id}", docHandler.JobStatus)

			bounded.Post("/sessions", chatHandler.CreateSession)
			bounded.Get("/sessions/{id}", chatHandler.GetSession)
			bounded.Delete("/sessions/{id}", chatHandler.DeleteSession)
		})

		// server-sent event streams
		api.Post("/documents/ask", docHandler.Ask)
		api.Post("/sessions/{id}/messages", chatHandler.PostMessage)
	})

	return r
}

func NewServer(cfg *config.Config, docHandler *handlers.DocumentHandler, chatHandler *handlers.ChatHandler) *Server {
	httpSrv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           NewRouter(cfg, docHandler, chatHandler),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return &Server{httpServer: httpSrv}
}

// Start runs the HTTP server.
func (s *Server) Start() {
	log.Infof("HTTP server listening on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("server error: %v", err)
	}
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	log.Info("Shutting down HTTP server...")
	return s.httpServer.Shutdown(ctx)
}
