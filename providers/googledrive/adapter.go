// Package googledrive implements the providers.Provider interface against
// the Google Drive v3 API using a service-account credential.
package googledrive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2/google"

	"github.com/openlms/mediagate/credentials"
	"github.com/openlms/mediagate/internal/fileid"
	"github.com/openlms/mediagate/metrics"
	"github.com/openlms/mediagate/providers"
)

const (
	apiBase = "https://www.googleapis.com/drive/v3"

	// previewURL is the Drive-native player page for a shared file.
	previewURL = "https://drive.google.com/file/d/%s/preview"

	driveReadScope = "https://www.googleapis.com/auth/drive.readonly"
)

// Adapter talks to the Google Drive API.
type Adapter struct {
	client      *http.Client
	creds       *credentials.Cache
	apiBase     string
	callTimeout time.Duration
	logger      *zap.Logger
}

// New creates a Drive adapter from a service-account key file. The key is
// read once at startup; token exchanges happen lazily through the shared
// credential cache.
func New(serviceAccountPath string, callTimeout time.Duration, logger *zap.Logger) (*Adapter, error) {
	keyJSON, err := os.ReadFile(serviceAccountPath)
	if err != nil {
		return nil, fmt.Errorf("reading service account key %s: %w", serviceAccountPath, err)
	}

	conf, err := google.JWTConfigFromJSON(keyJSON, driveReadScope)
	if err != nil {
		return nil, fmt.Errorf("parsing service account key: %w", err)
	}

	fetch := func(ctx context.Context) (credentials.Credential, error) {
		tok, err := conf.TokenSource(ctx).Token()
		if err != nil {
			metrics.CredentialRefreshesTotal.WithLabelValues("google_drive", "failure").Inc()
			return credentials.Credential{}, fmt.Errorf("%w: %v", providers.ErrUpstreamAuth, err)
		}
		metrics.CredentialRefreshesTotal.WithLabelValues("google_drive", "success").Inc()
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
		apiBase:     apiBase,
		callTimeout: callTimeout,
		logger:      logger,
	}, nil
}

// NewWithCache creates an adapter with an injected credential cache and API
// base. Tests use this to point the adapter at an httptest server.
func NewWithCache(creds *credentials.Cache, apiBase string, callTimeout time.Duration, logger *zap.Logger) *Adapter {
	return &Adapter{
		client:      &http.Client{},
		creds:       creds,
		apiBase:     apiBase,
		callTimeout: callTimeout,
		logger:      logger,
	}
}

type fileResource struct {
	Name     string `json:"name"`
	MimeType string `json:"mimeType"`
	Size     string `json:"size"` // Drive reports size as a decimal string
}

// Metadata resolves name, MIME type and size for a Drive file.
func (a *Adapter) Metadata(ctx context.Context, fileID string) (*providers.FileMetadata, error) {
	if err := fileid.Validate(fileID); err != nil {
		return nil, providers.ErrNotFound
	}

	start := time.Now()
	defer func() {
		metrics.UpstreamRequestDuration.WithLabelValues("google_drive", "metadata").Observe(time.Since(start).Seconds())
	}()

	ctx, cancel := context.WithTimeout(ctx, a.callTimeout)
	defer cancel()

	url := fmt.Sprintf("%s/files/%s?fields=name,mimeType,size&supportsAllDrives=true", a.apiBase, fileID)
	resp, err := a.get(ctx, url, "")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := a.checkStatus(resp); err != nil {
		return nil, err
	}

	var fr fileResource
	if err := json.NewDecoder(resp.Body).Decode(&fr); err != nil {
		return nil, fmt.Errorf("decoding drive file resource: %w", err)
	}

	size := int64(-1)
	if fr.Size != "" {
		if n, err := strconv.ParseInt(fr.Size, 10, 64); err == nil {
			size = n
		}
	}

	return &providers.FileMetadata{
		Name:     fr.Name,
		MimeType: fr.MimeType,
		Size:     size,
	}, nil
}

// DirectLink returns the Drive preview player URL for a file. The metadata
// call doubles as an existence and access check so a dead link is never
// handed out.
func (a *Adapter) DirectLink(ctx context.Context, fileID string) (string, error) {
	if _, err := a.Metadata(ctx, fileID); err != nil {
		if errors.Is(err, providers.ErrNotFound) {
			return "", providers.ErrNotFound
		}
		return "", fmt.Errorf("%w: %v", providers.ErrUnavailable, err)
	}
	return fmt.Sprintf(previewURL, fileID), nil
}

// OpenStream opens the full file content via alt=media.
func (a *Adapter) OpenStream(ctx context.Context, fileID string) (*providers.Stream, error) {
	return a.openMedia(ctx, fileID, "")
}

// OpenRangeStream opens bytes [start, end] of the file. end < 0 requests
// through the last byte.
func (a *Adapter) OpenRangeStream(ctx context.Context, fileID string, start, end int64) (*providers.Stream, error) {
	rangeHeader := fmt.Sprintf("bytes=%d-", start)
	if end >= 0 {
		rangeHeader = fmt.Sprintf("bytes=%d-%d", start, end)
	}
	return a.openMedia(ctx, fileID, rangeHeader)
}

func (a *Adapter) openMedia(ctx context.Context, fileID, rangeHeader string) (*providers.Stream, error) {
	if err := fileid.Validate(fileID); err != nil {
		return nil, providers.ErrNotFound
	}

	opStart := time.Now()
	defer func() {
		metrics.UpstreamRequestDuration.WithLabelValues("google_drive", "stream").Observe(time.Since(opStart).Seconds())
	}()

	url := fmt.Sprintf("%s/files/%s?alt=media&supportsAllDrives=true", a.apiBase, fileID)
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

// get performs an authenticated GET. A streaming body is returned open; the
// caller closes it.
func (a *Adapter) get(ctx context.Context, url, rangeHeader string) (*http.Response, error) {
	accessToken, err := a.creds.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", providers.ErrUpstreamAuth, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building drive request: %w", err)
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

// checkStatus maps upstream HTTP status codes to provider sentinels. The
// upstream body is drained and discarded on error so its detail never
// reaches a client.
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
		a.logger.Warn("drive rejected credential", zap.Int("status", resp.StatusCode))
		return providers.ErrUpstreamAuth
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		a.logger.Warn("drive upstream error",
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", body))
		return fmt.Errorf("%w: drive returned %d", providers.ErrUnavailable, resp.StatusCode)
	}
}
