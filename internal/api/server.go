package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MikeSquared-Agency/subtext/internal/metrics"
	"github.com/MikeSquared-Agency/subtext/internal/safety"
	"github.com/MikeSquared-Agency/subtext/internal/store"
)

// maxBodyBytes caps request bodies; pasted transcripts are small.
const maxBodyBytes = 1 << 20

// Analyzer runs the safety classifier.
type Analyzer interface {
	Analyze(ctx context.Context, messages []safety.Message) (*safety.Analysis, error)
}

// AnalysisReader looks up stored analyses.
type AnalysisReader interface {
	GetAnalysis(ctx context.Context, id uuid.UUID) (*store.AnalysisRecord, error)
	ListAnalyses(ctx context.Context, conversationRef string, limit int) ([]store.AnalysisRecord, error)
	Ping(ctx context.Context) error
}

// EventBus reports the state of the event connection.
type EventBus interface {
	Connected() bool
}

// Deps are the optional collaborators of the server. A nil Classifier or
// Analyses disables the endpoints that need it. Model is reported by the
// status endpoint, AnalysisTimeout bounds one analyze request (zero means no
// bound) and CORSOrigins enables browser access from the listed origins.
type Deps struct {
	Classifier      Analyzer
	Model           string
	Analyses        AnalysisReader
	Events          EventBus
	Metrics         *metrics.Metrics
	Gatherer        prometheus.Gatherer
	AnalysisTimeout time.Duration
	APIToken        string
	CORSOrigins     []string
	Logger          *slog.Logger
}

type Server struct {
	router  *chi.Mux
	deps    Deps
	logger  *slog.Logger
	httpSrv *http.Server
}

func NewServer(port int, deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Gatherer == nil {
		deps.Gatherer = prometheus.DefaultGatherer
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	if len(deps.CORSOrigins) > 0 {
		router.Use(cors.Handler(cors.Options{
			AllowedOrigins: deps.CORSOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Authorization", "Content-Type"},
			MaxAge:         300,
		}))
	}

	s := &Server{
		router: router,
		deps:   deps,
		logger: deps.Logger,
	}

	router.Get("/health", s.health)
	router.Handle("/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))

	router.Route("/api/v1", func(r chi.Router) {
		r.Get("/subtext/status", s.status)

		r.Group(func(r chi.Router) {
			r.Use(BearerAuthMiddleware(deps.APIToken))
			r.Post("/transcripts/detect", s.detectFormat)
			r.Post("/transcripts/parse", s.parseTranscript)
			r.Post("/safety/analyze", s.analyzeSafety)
			r.Get("/safety/analyses", s.listAnalyses)
			r.Get("/safety/analyses/{id}", s.getAnalysis)
		})
	})

	s.httpSrv = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s
}

func (s *Server) Start() error {
	s.logger.Info("API server starting", "addr", s.httpSrv.Addr)
	if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the listener and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// statusPingTimeout bounds the store check in the status endpoint.
const statusPingTimeout = 2 * time.Second

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	body := map[string]string{
		"service":    "subtext",
		"classifier": "unavailable",
		"store":      "disabled",
		"events":     "disabled",
	}
	if s.deps.Classifier != nil {
		body["classifier"] = "ready"
		if s.deps.Model != "" {
			body["model"] = s.deps.Model
		}
	}
	if s.deps.Analyses != nil {
		ctx, cancel := context.WithTimeout(r.Context(), statusPingTimeout)
		defer cancel()
		body["store"] = "ok"
		if err := s.deps.Analyses.Ping(ctx); err != nil {
			s.logger.Warn("store ping failed", "error", err)
			body["store"] = "down"
		}
	}
	if s.deps.Events != nil {
		body["events"] = "disconnected"
		if s.deps.Events.Connected() {
			body["events"] = "connected"
		}
	}
	writeJSON(w, http.StatusOK, body)
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorBody{Error: code, Message: message})
}

// decodeBody reads a size-limited JSON body into v.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return false
	}
	return true
}
