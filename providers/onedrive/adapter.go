// Package onedrive implements the providers.Provider interface against the
// Microsoft Graph API using an application (client-credential) grant.
package onedrive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/oauth2/microsoft"

	"github.com/openlms/mediagate/credentials"
	"github.com/openlms/mediagate/internal/fileid"
	"github.com/openlms/mediagate/metrics"
	"github.com/openlms/mediagate/providers"
)

const (
	graphBase = "https://graph.microsoft.com/v1.0"

	// graphScope is the .default scope; application permissions are granted
	// on the app registration, not per request.
	graphScope = "https://graph.microsoft.com/.default"
)

// Adapter talks to Microsoft Graph for a single drive.
type Adapter struct {
	client      *http.Client
	creds       *credentials.Cache
	apiBase     string
	driveID     string
	callTimeout time.Duration
	logger      *zap.Logger
}

// Config holds the Azure AD application registration details.
type Config struct {
	TenantID     string
	ClientID     string
	ClientSecret string
	DriveID      string
}

// New creates a Graph adapter. Token exchanges run lazily through the shared
// credential cache using the client-credential grant.
func New(cfg Config, callTimeout time.Duration, logger *zap.Logger) (*Adapter, error) {
	if cfg.TenantID == "" || cfg.ClientID == "" || cfg.ClientSecret == "" || cfg.DriveID == "" {
		return nil, errors.New("onedrive: tenant_id, client_id, client_secret and drive_id are required")
	}

	endpoint := microsoft.AzureADEndpoint(cfg.TenantID)
	conf := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     endpoint.TokenURL,
		Scopes:       []string{graphScope},
	}

	fetch := func(ctx context.Context) (credentials.Credential, error) {
		tok, err := conf.Token(ctx)
		if err != nil {
			metrics.CredentialRefreshesTotal.WithLabelValues("onedrive", "failure").Inc()
			return credentials.Credential{}, fmt.Errorf("%w: %v", providers.ErrUpstreamAuth, err)
		}
		metrics.CredentialRefreshesTotal.WithLabelValues("onedrive", "success").Inc()
		return credentials.Credential{
			AccessToken: tok.AccessToken,
			ExpiresAt:   tok.Expiry,
		}, nil
	}

	return &Adapter{
		// No client-level timeout: it would also bound streaming body
		// reads. Metadata and auth calls get per-call deadlines instead.
		client:      &http.Client{},
		creds:       credentials.NewCache(fetch),
		apiBase:     graphBase,
		driveID:     cfg.DriveID,
		callTimeout: callTimeout,
		logger:      logger,
	}, nil
}

// NewWithCache creates an adapter with an injected credential cache and API
// base. Tests use this to point the adapter at an httptest server.
func NewWithCache(creds *credentials.Cache, apiBase, driveID string, callTimeout time.Duration, logger *zap.Logger) *Adapter {
	return &Adapter{
		client:      &http.Client{},
		creds:       creds,
		apiBase:     apiBase,
		driveID:     driveID,
		callTimeout: callTimeout,
		logger:      logger,
	}
}

// driveItem is the subset of the Graph driveItem resource mediagate reads.
type driveItem struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
	File *struct {
		MimeType string `json:"mimeType"`
	} `json:"file"`
	DownloadURL string `json:"@microsoft.graph.downloadUrl"`
}

// Metadata resolves name, MIME type and size for a drive item.
func (a *Adapter) Metadata(ctx context.Context, fileID string) (*providers.FileMetadata, error) {
	item, err := a.item(ctx, fileID)
	if err != nil {
		return nil, err
	}

	md := &providers.FileMetadata{Name: item.Name, Size: item.Size}
	if item.File != nil {
		md.MimeType = item.File.MimeType
	}
	if md.Size == 0 {
		md.Size = -1
	}
	return md, nil
}

// DirectLink returns the pre-authenticated download URL Graph annotates on
// every driveItem. The URL is short-lived and dereferenceable without a
// bearer token, which is exactly the direct-delivery contract.
func (a *Adapter) DirectLink(ctx context.Context, fileID string) (string, error) {
	item, err := a.item(ctx, fileID)
	if err != nil {
		if errors.Is(err, providers.ErrNotFound) {
			return "", providers.ErrNotFound
		}
		return "", fmt.Errorf("%w: %v", providers.ErrUnavailable, err)
	}
	if item.DownloadURL == "" {
		return "", providers.ErrUnavailable
	}
	return item.DownloadURL, nil
}

// OpenStream opens the full item content.
func (a *Adapter) OpenStream(ctx context.Context, fileID string) (*providers.Stream, error) {
	return a.openContent(ctx, fileID, "")
}

// OpenRangeStream opens bytes [start, end] of the item. end < 0 requests
// through the last byte.
func (a *Adapter) OpenRangeStream(ctx context.Context, fileID string, start, end int64) (*providers.Stream, error) {
	rangeHeader := fmt.Sprintf("bytes=%d-", start)
	if end >= 0 {
		rangeHeader = fmt.Sprintf("bytes=%d-%d", start, end)
	}
	return a.openContent(ctx, fileID, rangeHeader)
}

func (a *Adapter) item(ctx context.Context, fileID string) (*driveItem, error) {
	if err := fileid.Validate(fileID); err != nil {
		return nil, providers.ErrNotFound
	}

	start := time.Now()
	defer func() {
		metrics.UpstreamRequestDuration.WithLabelValues("onedrive", "metadata").Observe(time.Since(start).Seconds())
	}()

	ctx, cancel := context.WithTimeout(ctx, a.callTimeout)
	defer cancel()

	url := fmt.Sprintf("%s/drives/%s/items/%s", a.apiBase, a.driveID, fileID)
	resp, err := a.get(ctx, url, "")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := a.checkStatus(resp); err != nil {
		return nil, err
	}

	var item driveItem
	if err := json.NewDecoder(resp.Body).Decode(&item); err != nil {
		return nil, fmt.Errorf("decoding drive item: %w", err)
	}
	return &item, nil
}

func (a *Adapter) openContent(ctx context.Context, fileID, rangeHeader string) (*providers.Stream, error) {
	if err := fileid.Validate(fileID); err != nil {
		return nil, providers.ErrNotFound
	}

	opStart := time.Now()
	defer func() {
		metrics.UpstreamRequestDuration.WithLabelValues("onedrive", "stream").Observe(time.Since(opStart).Seconds())
	}()

	// The /content endpoint 302s to the download URL; the default client
	// follows it and forwards the Range header on the redirect.
	url := fmt.Sprintf("%s/drives/%s/items/%s/content", a.apiBase, a.driveID, fileID)
	resp, err := a.get(ctx, url, rangeHeader)
	if err != nil {
		return nil, err
	}

	if err := a.checkStatus(resp); err != nil {
		resp.Body.Close()
		return nil, err
	}

	return &providers.Stream{
		Body:          resp.Body,
		ContentType:   resp.Header.Get("Content-Type"),
		ContentLength: resp.ContentLength,
		ContentRange:  resp.Header.Get("Content-Range"),
	}, nil
}

func (a *Adapter) get(ctx context.Context, url, rangeHeader string) (*http.Response, error) {
	accessToken, err := a.creds.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", providers.ErrUpstreamAuth, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building graph request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	if rangeHeader != "" {
		req.Header.Set("Range", rangeHeader)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || ctx.Err() == context.DeadlineExceeded {
			return nil, providers.ErrUpstreamTimeout
		}
		return nil, fmt.Errorf("%w: %v", providers.ErrUnavailable, err)
	}
	return resp, nil
}

func (a *Adapter) checkStatus(resp *http.Response) error {
	switch {
	case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusPartialContent:
		return nil
	case resp.StatusCode == http.StatusNotFound:
		return providers.ErrNotFound
	case resp.StatusCode == http.StatusRequestedRangeNotSatisfiable:
		return providers.ErrRangeNotSatisfiable
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		a.creds.Invalidate()
		a.logger.Warn("graph rejected credential", zap.Int("status", resp.StatusCode))
		return providers.ErrUpstreamAuth
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		a.logger.Warn("graph upstream error",
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", body))
		return fmt.Errorf("%w: graph returned %d", providers.ErrUnavailable, resp.StatusCode)
	}
}
