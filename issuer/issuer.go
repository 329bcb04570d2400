// Package issuer orchestrates playback link issuance: provider-native
// direct links when available, signed proxy links otherwise.
package issuer

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/openlms/mediagate/internal/fileid"
	"github.com/openlms/mediagate/metrics"
	"github.com/openlms/mediagate/providers"
	"github.com/openlms/mediagate/token"
)

// Expiry clamp bounds. Requests outside this window are silently corrected;
// issuance never rejects a request over its expiry value.
const (
	MinExpiry = 60 * time.Second
	MaxExpiry = 3600 * time.Second
)

// ErrInvalidRequest indicates the request failed shape validation before
// any provider I/O.
var ErrInvalidRequest = errors.New("invalid link request")

// Request describes a playback link to issue.
type Request struct {
	FileID        string
	Kind          providers.Kind
	StartSeconds  int
	ExpirySeconds int
	CallerID      string
	Scope         string
}

// Descriptor is the issued playback descriptor. It is transient: returned
// to the caller and never persisted.
type Descriptor struct {
	PlayURL      string
	StartSeconds int
	ExpiresAt    time.Time
	Proxied      bool
}

// Issuer composes direct and proxied playback URLs.
type Issuer struct {
	registry      *providers.Registry
	authority     *token.Authority
	baseURL       string
	directTimeout time.Duration
	logger        *zap.Logger
	now           func() time.Time
}

// New creates an Issuer. baseURL is the externally reachable prefix used to
// build proxy URLs.
func New(registry *providers.Registry, authority *token.Authority, baseURL string, directTimeout time.Duration, logger *zap.Logger) *Issuer {
	return &Issuer{
		registry:      registry,
		authority:     authority,
		baseURL:       strings.TrimSuffix(baseURL, "/"),
		directTimeout: directTimeout,
		logger:        logger,
		now:           time.Now,
	}
}

// WithClock overrides the time source for tests.
func (i *Issuer) WithClock(now func() time.Time) *Issuer {
	i.now = now
	return i
}

// Issue returns a playback descriptor for the request. Provider failures
// degrade to proxied delivery; only a missing signing secret fails outright.
func (i *Issuer) Issue(ctx context.Context, req Request) (*Descriptor, error) {
	if err := fileid.Validate(req.FileID); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if req.StartSeconds < 0 {
		req.StartSeconds = 0
	}

	expiry := clampExpiry(req.ExpirySeconds)

	if req.Kind.Remote() {
		link, err := i.tryDirect(ctx, req)
		if err == nil {
			metrics.LinkIssuanceTotal.WithLabelValues(req.Kind.String(), "direct").Inc()
			return &Descriptor{
				PlayURL:      link,
				StartSeconds: req.StartSeconds,
				ExpiresAt:    i.now().Add(expiry),
				Proxied:      false,
			}, nil
		}

		i.logger.Info("direct link unavailable, falling back to proxy",
			zap.String("provider", req.Kind.String()),
			zap.String("file_id", req.FileID),
			zap.Error(err))
		return i.issueProxy(req, expiry, "proxy_fallback")
	}

	// Local files always go through the proxy; DirectLink is never invoked.
	return i.issueProxy(req, expiry, "proxy")
}

func (i *Issuer) tryDirect(ctx context.Context, req Request) (string, error) {
	adapter, err := i.registry.Lookup(req.Kind)
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, i.directTimeout)
	defer cancel()

	link, err := adapter.DirectLink(ctx, req.FileID)
	if err != nil {
		return "", err
	}

	return appendStartOffset(link, req.Kind, req.StartSeconds), nil
}

func (i *Issuer) issueProxy(req Request, expiry time.Duration, mode string) (*Descriptor, error) {
	ref := providers.FileReference{FileID: req.FileID, Kind: req.Kind}
	tok, err := i.authority.Mint(ref, expiry, req.CallerID, req.Scope)
	if err != nil {
		return nil, fmt.Errorf("minting proxy token: %w", err)
	}

	playURL := fmt.Sprintf("%s/media/stream?token=%s&start=%d",
		i.baseURL, url.QueryEscape(tok), req.StartSeconds)

	metrics.LinkIssuanceTotal.WithLabelValues(req.Kind.String(), mode).Inc()

	i.logger.Debug("issued proxy playback link",
		zap.String("provider", req.Kind.String()),
		zap.String("file_id", req.FileID),
		zap.String("token", token.Truncate(tok)),
		zap.Duration("expiry", expiry))

	return &Descriptor{
		PlayURL:      playURL,
		StartSeconds: req.StartSeconds,
		ExpiresAt:    i.now().Add(expiry),
		Proxied:      true,
	}, nil
}

// appendStartOffset renders the start offset in the provider's own seek
// convention. Drive's embedded player reads a fragment; Graph download URLs
// take a query parameter.
func appendStartOffset(link string, kind providers.Kind, startSeconds int) string {
	if startSeconds <= 0 {
		return link
	}

	switch kind {
	case providers.GoogleDrive:
		return fmt.Sprintf("%s#t=%d", link, startSeconds)
	case providers.OneDrive:
		sep := "?"
		if strings.Contains(link, "?") {
			sep = "&"
		}
		return fmt.Sprintf("%s%sst=%d", link, sep, startSeconds)
	case providers.Local:
		return link
	}
	return link
}

func clampExpiry(seconds int) time.Duration {
	d := time.Duration(seconds) * time.Second
	if d < MinExpiry {
		return MinExpiry
	}
	if d > MaxExpiry {
		return MaxExpiry
	}
	return d
}
