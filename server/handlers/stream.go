package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/openlms/mediagate/metrics"
	"github.com/openlms/mediagate/providers"
	"github.com/openlms/mediagate/token"
)

// Stream creates the handler for GET/HEAD /media/stream. It verifies the
// proxy token, dispatches to the provider adapter named in its claims, and
// pipes bytes through without buffering. Range requests are answered with
// 206 Partial Content.
func Stream(authority *token.Authority, registry *providers.Registry, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		defer func() {
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, "/media/stream").Observe(time.Since(start).Seconds())
		}()

		tokenStr := r.URL.Query().Get("token")
		if tokenStr == "" {
			metrics.StreamRequestsTotal.WithLabelValues("unknown", "rejected").Inc()
			SendErrorResponse(w, logger, fmt.Errorf("%w: missing token", token.ErrTokenMalformed), http.StatusBadRequest)
			return
		}

		// Verify before touching any provider.
		claims, err := authority.Verify(tokenStr)
		if err != nil {
			recordVerification(err)
			metrics.StreamRequestsTotal.WithLabelValues("unknown", "rejected").Inc()
			logger.Warn("Rejected streaming request",
				zap.String("token", token.Truncate(tokenStr)),
				zap.Error(err))
			SendErrorResponse(w, logger, err, http.StatusUnauthorized)
			return
		}
		metrics.TokenVerificationsTotal.WithLabelValues("valid").Inc()

		ref, err := claims.FileReference()
		if err != nil {
			metrics.StreamRequestsTotal.WithLabelValues("unknown", "rejected").Inc()
			SendErrorResponse(w, logger, token.ErrTokenMalformed, http.StatusBadRequest)
			return
		}
		providerLabel := ref.Kind.String()

		adapter, err := registry.Lookup(ref.Kind)
		if err != nil {
			metrics.StreamRequestsTotal.WithLabelValues(providerLabel, "upstream_error").Inc()
			logger.Error("No adapter for token provider",
				zap.String("provider", providerLabel),
				zap.Error(err))
			SendErrorResponse(w, logger, providers.ErrUnavailable, http.StatusBadGateway)
			return
		}

		if r.Method == http.MethodHead {
			headStream(w, r, adapter, ref, providerLabel, logger)
			return
		}

		rangeHeader := r.Header.Get("Range")
		if rangeHeader == "" {
			serveFull(w, r, adapter, ref, providerLabel, logger)
			return
		}

		br, err := parseRangeHeader(rangeHeader)
		if err != nil {
			// Unsupported range forms fall back to the full representation.
			logger.Debug("Unsupported range header, serving full content",
				zap.String("range", rangeHeader))
			serveFull(w, r, adapter, ref, providerLabel, logger)
			return
		}

		servePartial(w, r, adapter, ref, br, providerLabel, logger)
	}
}

func headStream(w http.ResponseWriter, r *http.Request, adapter providers.Provider, ref providers.FileReference, providerLabel string, logger *zap.Logger) {
	md, err := adapter.Metadata(r.Context(), ref.FileID)
	if err != nil {
		metrics.StreamRequestsTotal.WithLabelValues(providerLabel, "upstream_error").Inc()
		logger.Warn("Metadata probe failed",
			zap.String("provider", providerLabel),
			zap.Error(err))
		SendErrorResponse(w, logger, err, http.StatusBadGateway)
		return
	}

	w.Header().Set("Accept-Ranges", "bytes")
	w.Header().Set("Content-Type", md.MimeType)
	if md.Size >= 0 {
		w.Header().Set("Content-Length", fmt.Sprintf("%d", md.Size))
	}
	w.WriteHeader(http.StatusOK)

	metrics.StreamRequestsTotal.WithLabelValues(providerLabel, "ok").Inc()
}

func serveFull(w http.ResponseWriter, r *http.Request, adapter providers.Provider, ref providers.FileReference, providerLabel string, logger *zap.Logger) {
	stream, err := adapter.OpenStream(r.Context(), ref.FileID)
	if err != nil {
		metrics.StreamRequestsTotal.WithLabelValues(providerLabel, "upstream_error").Inc()
		logger.Warn("Upstream stream open failed",
			zap.String("provider", providerLabel),
			zap.String("file_id", ref.FileID),
			zap.Error(err))
		SendErrorResponse(w, logger, upstreamSentinel(err), http.StatusBadGateway)
		return
	}
	defer stream.Close()

	setStreamHeaders(w, stream)
	w.WriteHeader(http.StatusOK)

	pipe(w, stream, providerLabel, "ok", logger)
}

func servePartial(w http.ResponseWriter, r *http.Request, adapter providers.Provider, ref providers.FileReference, br byteRange, providerLabel string, logger *zap.Logger) {
	stream, err := adapter.OpenRangeStream(r.Context(), ref.FileID, br.Start, br.End)
	if err != nil {
		if errors.Is(err, providers.ErrRangeNotSatisfiable) {
			metrics.StreamRequestsTotal.WithLabelValues(providerLabel, "rejected").Inc()
			SendErrorResponse(w, logger, err, http.StatusRequestedRangeNotSatisfiable)
			return
		}
		metrics.StreamRequestsTotal.WithLabelValues(providerLabel, "upstream_error").Inc()
		logger.Warn("Upstream range open failed",
			zap.String("provider", providerLabel),
			zap.String("file_id", ref.FileID),
			zap.Int64("start", br.Start),
			zap.Int64("end", br.End),
			zap.Error(err))
		SendErrorResponse(w, logger, upstreamSentinel(err), http.StatusBadGateway)
		return
	}
	defer stream.Close()

	setStreamHeaders(w, stream)
	if stream.ContentRange != "" {
		w.Header().Set("Content-Range", stream.ContentRange)
	}
	w.WriteHeader(http.StatusPartialContent)

	pipe(w, stream, providerLabel, "partial", logger)
}

// pipe copies the upstream body to the client incrementally. The body was
// opened with the request context, so a client disconnect cancels the
// upstream read promptly.
func pipe(w http.ResponseWriter, stream *providers.Stream, providerLabel, status string, logger *zap.Logger) {
	n, err := io.Copy(w, stream.Body)
	metrics.StreamBytesTotal.WithLabelValues(providerLabel).Add(float64(n))

	if err != nil {
		// Aborted mid-stream: client went away or upstream dropped. Headers
		// are already written; all that remains is releasing the upstream.
		logger.Debug("Stream aborted",
			zap.String("provider", providerLabel),
			zap.Int64("bytes_sent", n),
			zap.Error(err))
		metrics.StreamRequestsTotal.WithLabelValues(providerLabel, "aborted").Inc()
		return
	}

	metrics.StreamRequestsTotal.WithLabelValues(providerLabel, status).Inc()
}

func setStreamHeaders(w http.ResponseWriter, stream *providers.Stream) {
	contentType := stream.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Accept-Ranges", "bytes")
	w.Header().Set("Content-Disposition", "inline")
	if stream.ContentLength >= 0 {
		w.Header().Set("Content-Length", fmt.Sprintf("%d", stream.ContentLength))
	}
}

// upstreamSentinel collapses wrapped adapter errors into their provider
// sentinel so the response mapping never exposes upstream detail.
func upstreamSentinel(err error) error {
	switch {
	case errors.Is(err, providers.ErrNotFound):
		return providers.ErrNotFound
	case errors.Is(err, providers.ErrUpstreamTimeout):
		return providers.ErrUpstreamTimeout
	case errors.Is(err, providers.ErrUpstreamAuth):
		return providers.ErrUpstreamAuth
	default:
		return providers.ErrUnavailable
	}
}

func recordVerification(err error) {
	if errors.Is(err, token.ErrTokenExpired) {
		metrics.TokenVerificationsTotal.WithLabelValues("expired").Inc()
		return
	}
	metrics.TokenVerificationsTotal.WithLabelValues("malformed").Inc()
}
