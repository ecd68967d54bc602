package server

import (
	"log/slog"
	"net/http"

	httpSwagger "github.com/swaggo/http-swagger"

	_ "retail-analytics/internal/docs"
	"retail-analytics/internal/handlers"
)

type Server struct {
	mux         *http.ServeMux
	logger      *slog.Logger
	apiHandlers *handlers.APIHandlers
	sseHandlers *handlers.SSEHandlers
}

type TemplateHandlers struct {
	Dashboard http.HandlerFunc
}

// NewServer wires the routes. A nil ledger disables /api/runs.
func NewServer(analyzer handlers.Analyzer, ledger handlers.RunLedger, logger *slog.Logger, maxUploadBytes int64, templateHandlers *TemplateHandlers) *Server {
	s := &Server{
		mux:         http.NewServeMux(),
		logger:      logger,
		apiHandlers: handlers.NewAPIHandlers(analyzer, ledger, logger, maxUploadBytes),
		sseHandlers: handlers.NewSSEHandlers(analyzer, ledger, logger, maxUploadBytes),
	}
	s.setupRoutes(templateHandlers)
	return s
}

func (s *Server) setupRoutes(templateHandlers *TemplateHandlers) {
	// Dashboard routes
	s.mux.HandleFunc("GET /{$}", templateHandlers.Dashboard)
	s.mux.HandleFunc("GET /health", s.apiHandlers.HandleHealth)
	s.mux.HandleFunc("GET /admin/stats", s.apiHandlers.HandleStats)

	// REST API endpoints
	s.mux.HandleFunc("POST /api/predict", s.apiHandlers.HandlePredict)
	s.mux.HandleFunc("GET /api/runs", s.apiHandlers.HandleRuns)
	s.mux.Handle("GET /swagger/", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))

	// Datastar SSE endpoints
	s.mux.HandleFunc("POST /sse/predict", s.sseHandlers.HandlePredict)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}
