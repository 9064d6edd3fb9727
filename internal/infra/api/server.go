package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"course-billing/internal/infra/logging"
	red "course-billing/internal/infra/redis"
	"course-billing/internal/infra/worker"
	"course-billing/internal/usecase"
)

// Server exposes the public payment API: checkout initiation, the provider
// webhook, status polling and the registration check.
type Server struct {
	checkoutUC    usecase.CheckoutUseCase
	statusUC      usecase.StatusUseCase
	reconcileUC   usecase.ReconcileUseCase
	pool          *worker.Pool
	limiter       *red.RateLimiter
	webhookSecret string
	statusLimit   int
	log           *zerolog.Logger
}

func NewServer(
	checkoutUC usecase.CheckoutUseCase,
	statusUC usecase.StatusUseCase,
	reconcileUC usecase.ReconcileUseCase,
	pool *worker.Pool,
	limiter *red.RateLimiter,
	webhookSecret string,
	statusLimit int,
	logger *zerolog.Logger,
) *Server {
	if statusLimit <= 0 {
		statusLimit = 60
	}
	return &Server{
		checkoutUC:    checkoutUC,
		statusUC:      statusUC,
		reconcileUC:   reconcileUC,
		pool:          pool,
		limiter:       limiter,
		webhookSecret: webhookSecret,
		statusLimit:   statusLimit,
		log:           logger,
	}
}

// Router builds the chi router for the public API.
func (s *Server) Router() *chi.Mux {
	r := chi.NewRouter()
	r.Use(s.traceMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/checkout", s.handleCheckout)
		r.Post("/payments/webhook", s.handleWebhook)
		r.With(s.rateLimitMiddleware).Get("/payments/{id}/status", s.handleStatus)
		r.Get("/registrations/check", s.handleRegistrationCheck)
	})
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	return r
}

// traceMiddleware tags every request with a ULID trace id.
func (s *Server) traceMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID := ulid.Make().String()
		ctx := logging.WithTraceID(r.Context(), traceID)
		w.Header().Set("X-Trace-Id", traceID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// rateLimitMiddleware buckets status polling per remote address. A broken
// limiter fails open: polling is read-only.
func (s *Server) rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limiter != nil {
			ok, err := s.limiter.Allow(r.Context(), red.StatusPollKey(r.RemoteAddr), s.statusLimit, time.Minute)
			if err == nil && !ok {
				writeError(w, http.StatusTooManyRequests, "rate limit exceeded", "rate_limited")
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}
