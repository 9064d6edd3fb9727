package web

import (
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"course-billing/internal/usecase"
)

// Server is the operator-facing admin API. It lives on its own port, away
// from the public payment surface, and is gated by a static API key that can
// be exchanged for a short-lived session token.
type Server struct {
	codeUC usecase.CodeUseCase
	auth   *AuthManager
	apiKey string
	log    *zerolog.Logger
}

func NewServer(codeUC usecase.CodeUseCase, auth *AuthManager, apiKey string, logger *zerolog.Logger) *Server {
	return &Server{
		codeUC: codeUC,
		auth:   auth,
		apiKey: apiKey,
		log:    logger,
	}
}

// RegisterRoutes sets up the routing for the admin API.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/v1/login", s.loginHandler)
	mux.HandleFunc("/api/v1/logout", s.logoutHandler)

	codesRouter := s.authMiddleware(s.codesRouter())
	mux.Handle("/api/v1/codes", codesRouter)
	mux.Handle("/api/v1/codes/", codesRouter)

	mux.Handle("/api/v1/stats/revenue", s.authMiddleware(revenueHandler(s.codeUC)))

	mux.Handle("/metrics", promhttp.Handler())
}

// authMiddleware accepts either the raw API key or a minted session token.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.apiKey == "" {
			s.log.Error().Msg("admin API key is not configured")
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}

		if hdr := r.Header.Get("Authorization"); hdr != "" {
			parts := strings.Split(hdr, " ")
			if len(parts) == 2 && strings.ToLower(parts[0]) == "bearer" && parts[1] == s.apiKey {
				next.ServeHTTP(w, r)
				return
			}
		}

		if _, err := s.auth.ParseFromRequest(r); err == nil {
			next.ServeHTTP(w, r)
			return
		}

		http.Error(w, "Unauthorized", http.StatusUnauthorized)
	})
}

// codesRouter dispatches /api/v1/codes and /api/v1/codes/{id}.
func (s *Server) codesRouter() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := strings.TrimPrefix(r.URL.Path, "/api/v1/codes")
		path = strings.TrimSuffix(path, "/")

		if path == "" {
			switch r.Method {
			case http.MethodGet:
				codesListHandler(s.codeUC)(w, r)
			case http.MethodPost:
				codesCreateHandler(s.codeUC)(w, r)
			default:
				http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			}
			return
		}

		http.Error(w, "Not found", http.StatusNotFound)
	})
}
