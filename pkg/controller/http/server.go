package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/itmoou/attendbot/pkg/domain/model"
	"github.com/itmoou/attendbot/pkg/service/metrics"
	"github.com/itmoou/attendbot/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

// ActivityVerifier authenticates inbound Bot Framework requests.
type ActivityVerifier interface {
	Verify(ctx context.Context, authorization, serviceURL string) error
}

// ActivityHandler processes an authenticated activity.
type ActivityHandler interface {
	HandleActivity(ctx context.Context, activity *model.Activity) error
}

type Server struct {
	router         *chi.Mux
	handler        ActivityHandler
	verifier       ActivityVerifier
	noAuthn        bool
	metricsHandler http.Handler
	recorder       metrics.Recorder
	vacation       VacationHandler
	webhookToken   string
}

type Options func(*Server)

func WithVerifier(v ActivityVerifier) Options {
	return func(s *Server) {
		s.verifier = v
	}
}

// WithNoAuthn accepts activities without a bearer token. Local testing only.
func WithNoAuthn() Options {
	return func(s *Server) {
		s.noAuthn = true
	}
}

func WithMetricsHandler(h http.Handler) Options {
	return func(s *Server) {
		s.metricsHandler = h
	}
}

func WithMetrics(rec metrics.Recorder) Options {
	return func(s *Server) {
		s.recorder = rec
	}
}

// WithVacationHandler mounts POST /api/vacation/approved. Callers present
// token as a bearer or X-Webhook-Token header.
func WithVacationHandler(h VacationHandler, token string) Options {
	return func(s *Server) {
		s.vacation = h
		s.webhookToken = token
	}
}

func New(handler ActivityHandler, opts ...Options) (*Server, error) {
	r := chi.NewRouter()

	s := &Server{
		router:   r,
		handler:  handler,
		recorder: metrics.Nop{},
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.handler == nil {
		return nil, goerr.New("activity handler is required")
	}
	if s.verifier == nil && !s.noAuthn {
		return nil, goerr.New("bot framework verifier is required unless authentication is disabled")
	}

	if s.vacation != nil && s.webhookToken == "" && !s.noAuthn {
		return nil, goerr.New("webhook token is required unless authentication is disabled")
	}

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(accessLogger)
	r.Use(middleware.Recoverer)

	r.Get("/health", healthHandler)
	if s.metricsHandler != nil {
		r.Handle("/metrics", s.metricsHandler)
	}

	r.Route("/api/messages", func(r chi.Router) {
		r.Use(activityMiddleware(s.verifier, s.recorder))
		r.Post("/", activityHandler(s.handler, s.recorder))
	})

	if s.vacation != nil {
		r.Route("/api/vacation", func(r chi.Router) {
			r.Use(webhookAuth(s.webhookToken, s.recorder))
			r.Post("/approved", vacationApprovedHandler(s.vacation, s.recorder))
		})
	}

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`)) //nolint:errcheck // header already committed
}

// accessLogger is a middleware that logs HTTP requests
func accessLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		logger := logging.From(r.Context()).With("request_id", middleware.GetReqID(r.Context()))
		ctx := logging.With(r.Context(), logger)

		defer func() {
			logger.Info("access",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"remote", r.RemoteAddr,
				"user_agent", r.UserAgent(),
			)
		}()

		next.ServeHTTP(ww, r.WithContext(ctx))
	})
}
