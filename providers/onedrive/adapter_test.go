package onedrive

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/openlms/mediagate/credentials"
	"github.com/openlms/mediagate/providers"
)

func staticCreds(token string) *credentials.Cache {
	return credentials.NewCache(func(ctx context.Context) (credentials.Credential, error) {
		return credentials.Credential{
			AccessToken: token,
			ExpiresAt:   time.Now().Add(time.Hour),
		}, nil
	})
}

func newGraphServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *Adapter) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	adapter := NewWithCache(staticCreds("graph-token"), srv.URL, "drive-1", 2*time.Second, zap.NewNop())
	return srv, adapter
}

func TestMetadata(t *testing.T) {
	srv, adapter := newGraphServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/drives/drive-1/items/item-9", r.URL.Path)
		assert.Equal(t, "Bearer graph-token", r.Header.Get("Authorization"))

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{
			"name": "lecture.mp4",
			"size": 1000,
			"file": {"mimeType": "video/mp4"},
			"@microsoft.graph.downloadUrl": "https://example.com/dl/abc"
		}`)
	})
	_ = srv

	md, err := adapter.Metadata(context.Background(), "item-9")
	require.NoError(t, err)
	assert.Equal(t, "lecture.mp4", md.Name)
	assert.Equal(t, "video/mp4", md.MimeType)
	assert.Equal(t, int64(1000), md.Size)
}

func TestDirectLink(t *testing.T) {
	_, adapter := newGraphServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{
			"name": "lecture.mp4",
			"size": 1000,
			"@microsoft.graph.downloadUrl": "https://example.com/dl/abc"
		}`)
	})

	link, err := adapter.DirectLink(context.Background(), "item-9")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/dl/abc", link)
}

func TestDirectLinkMissingAnnotation(t *testing.T) {
	_, adapter := newGraphServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"name": "lecture.mp4", "size": 1000}`)
	})

	_, err := adapter.DirectLink(context.Background(), "item-9")
	assert.ErrorIs(t, err, providers.ErrUnavailable)
}

func TestMetadataNotFound(t *testing.T) {
	_, adapter := newGraphServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := adapter.Metadata(context.Background(), "missing")
	assert.ErrorIs(t, err, providers.ErrNotFound)
}

func TestOpenRangeStreamForwardsRangeHeader(t *testing.T) {
	content := []byte("partial-bytes")
	_, adapter := newGraphServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/drives/drive-1/items/item-9/content", r.URL.Path)
		assert.Equal(t, "bytes=200-499", r.Header.Get("Range"))

		w.Header().Set("Content-Type", "video/mp4")
		w.Header().Set("Content-Range", "bytes 200-499/1000")
		w.WriteHeader(http.StatusPartialContent)
		w.Write(content)
	})

	stream, err := adapter.OpenRangeStream(context.Background(), "item-9", 200, 499)
	require.NoError(t, err)
	defer stream.Close()

	assert.Equal(t, "bytes 200-499/1000", stream.ContentRange)
	assert.Equal(t, "video/mp4", stream.ContentType)
}

func TestUpstreamAuthFailureInvalidatesCredential(t *testing.T) {
	_, adapter := newGraphServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, err := adapter.Metadata(context.Background(), "item-9")
	assert.ErrorIs(t, err, providers.ErrUpstreamAuth)
}

func TestServerErrorMapsToUnavailable(t *testing.T) {
	_, adapter := newGraphServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprint(w, "internal provider detail that must not leak")
	})

	_, err := adapter.OpenStream(context.Background(), "item-9")
	require.Error(t, err)
	assert.ErrorIs(t, err, providers.ErrUnavailable)
}

func TestNewRequiresRegistration(t *testing.T) {
	_, err := New(Config{}, time.Second, zap.NewNop())
	require.Error(t, err)
}
