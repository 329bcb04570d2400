package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/openlms/mediagate/issuer"
	"github.com/openlms/mediagate/providers"
	"github.com/openlms/mediagate/server/middleware"
)

// IssueLinkRequest is the issuance API payload consumed by internal
// platform services.
type IssueLinkRequest struct {
	FileID        string `json:"file_id"`
	Provider      string `json:"provider"`
	StartSeconds  int    `json:"start,omitempty"`
	ExpirySeconds int    `json:"expiry,omitempty"`
	UserID        string `json:"user_id,omitempty"`
	ModuleID      string `json:"module_id,omitempty"`
}

// IssueLinkResponse is the playback descriptor returned to the caller.
type IssueLinkResponse struct {
	PlayURL      string    `json:"playUrl"`
	StartSeconds int       `json:"start_sec"`
	ExpiresAt    time.Time `json:"expiry_at"`
	IsProxy      bool      `json:"is_proxy"`
}

// IssueLink creates the handler for POST /v1/links/issue. Issuance never
// hard-fails on provider trouble: unavailability degrades to a proxied
// descriptor inside the issuer.
func IssueLink(iss *issuer.Issuer, defaultExpirySeconds int, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var req IssueLinkRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			logger.Warn("Invalid JSON in link issuance request", zap.Error(err))
			SendErrorResponse(w, logger, fmt.Errorf("%w: invalid JSON body", issuer.ErrInvalidRequest), http.StatusBadRequest)
			return
		}

		if req.FileID == "" {
			SendErrorResponse(w, logger, fmt.Errorf("%w: file_id is required", issuer.ErrInvalidRequest), http.StatusBadRequest)
			return
		}

		kind, err := providers.ParseKind(req.Provider)
		if err != nil {
			SendErrorResponse(w, logger, fmt.Errorf("%w: %v", issuer.ErrInvalidRequest, err), http.StatusBadRequest)
			return
		}

		if req.ExpirySeconds == 0 {
			req.ExpirySeconds = defaultExpirySeconds
		}

		callerID := req.UserID
		if callerID == "" {
			callerID, _ = middleware.GetCallerID(ctx)
		}

		desc, err := iss.Issue(ctx, issuer.Request{
			FileID:        req.FileID,
			Kind:          kind,
			StartSeconds:  req.StartSeconds,
			ExpirySeconds: req.ExpirySeconds,
			CallerID:      callerID,
			Scope:         req.ModuleID,
		})
		if err != nil {
			if errors.Is(err, issuer.ErrInvalidRequest) {
				SendErrorResponse(w, logger, err, http.StatusBadRequest)
				return
			}
			logger.Error("Link issuance failed",
				zap.String("provider", kind.String()),
				zap.String("file_id", req.FileID),
				zap.Error(err))
			SendErrorResponse(w, logger, errors.New("failed to issue playback link"), http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		if err := json.NewEncoder(w).Encode(IssueLinkResponse{
			PlayURL:      desc.PlayURL,
			StartSeconds: desc.StartSeconds,
			ExpiresAt:    desc.ExpiresAt.UTC(),
			IsProxy:      desc.Proxied,
		}); err != nil {
			logger.Error("Failed to encode response", zap.Error(err))
			return
		}

		logger.Info("Issued playback link",
			zap.String("provider", kind.String()),
			zap.String("file_id", req.FileID),
			zap.Bool("is_proxy", desc.Proxied),
			zap.Time("expires_at", desc.ExpiresAt))
	}
}
