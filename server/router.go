package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/openlms/mediagate/auth"
	"github.com/openlms/mediagate/config"
	"github.com/openlms/mediagate/issuer"
	"github.com/openlms/mediagate/metrics"
	"github.com/openlms/mediagate/providers"
	"github.com/openlms/mediagate/server/handlers"
	authMiddleware "github.com/openlms/mediagate/server/middleware"
	"github.com/openlms/mediagate/token"
)

// NewRouter creates and configures the HTTP router
func NewRouter(
	iss *issuer.Issuer,
	authority *token.Authority,
	registry *providers.Registry,
	authenticator auth.Authenticator,
	authCfg *config.AuthConfig,
	logger *zap.Logger,
) chi.Router {
	r := chi.NewRouter()

	// Basic middleware
	r.Use(authMiddleware.RequestIDMiddleware())
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(authMiddleware.SecurityHeaders())

	// Custom logging and metrics middleware
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			duration := time.Since(start)

			metrics.HTTPRequestsTotal.WithLabelValues(
				r.Method,
				r.URL.Path,
				strconv.Itoa(ww.Status()),
			).Inc()

			metrics.HTTPRequestDuration.WithLabelValues(
				r.Method,
				r.URL.Path,
			).Observe(duration.Seconds())

			logger.Info("HTTP request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("duration", duration),
				zap.String("remote_addr", r.RemoteAddr))
		})
	})

	// Health check endpoint (no auth required)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte(`{"status":"ok"}`)); err != nil {
			logger.Error("Failed to write health check response", zap.Error(err))
		}
	})

	// Metrics endpoint (no auth required)
	r.Handle("/metrics", promhttp.Handler())

	// Issuance API with authentication. A short per-request timeout is fine
	// here: issuance degrades to proxy delivery on slow providers.
	r.Route("/v1", func(r chi.Router) {
		r.Use(middleware.Timeout(30 * time.Second))
		r.Use(authMiddleware.AuthMiddleware(authenticator, logger))

		r.Route("/links", func(r chi.Router) {
			issueRateLimiter := rate.NewLimiter(100, 20)
			r.With(authMiddleware.RateLimitMiddleware(issueRateLimiter, logger)).
				Post("/issue", handlers.IssueLink(iss, authCfg.DefaultExpirySeconds, logger))
		})
	})

	// Streaming proxy endpoint. Token-authorized, so no API-key middleware,
	// and no server-side timeout: lecture videos stream for as long as the
	// client keeps reading.
	streamHandler := handlers.Stream(authority, registry, logger)
	r.Get("/media/stream", streamHandler)
	r.Head("/media/stream", streamHandler)

	logger.Info("HTTP router configured successfully")

	return r
}
