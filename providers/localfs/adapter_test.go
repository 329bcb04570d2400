package localfs

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/openlms/mediagate/providers"
)

func newTestAdapter(t *testing.T, files map[string][]byte) *Adapter {
	t.Helper()

	root := t.TempDir()
	for name, content := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(path, content, 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}

	adapter, err := New(root)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return adapter
}

func TestMetadata(t *testing.T) {
	adapter := newTestAdapter(t, map[string][]byte{
		"courses/intro.mp4": bytes.Repeat([]byte("x"), 1000),
	})

	md, err := adapter.Metadata(context.Background(), "courses/intro.mp4")
	if err != nil {
		t.Fatalf("Metadata failed: %v", err)
	}

	if md.Name != "intro.mp4" {
		t.Errorf("name = %q", md.Name)
	}
	if md.Size != 1000 {
		t.Errorf("size = %d, want 1000", md.Size)
	}
	if md.MimeType != "video/mp4" {
		t.Errorf("mime type = %q, want video/mp4", md.MimeType)
	}
}

func TestMetadataNotFound(t *testing.T) {
	adapter := newTestAdapter(t, nil)

	_, err := adapter.Metadata(context.Background(), "missing.mp4")
	if !errors.Is(err, providers.ErrNotFound) {
		t.Errorf("Metadata = %v, want ErrNotFound", err)
	}
}

func TestDirectLinkAlwaysUnavailable(t *testing.T) {
	adapter := newTestAdapter(t, map[string][]byte{"intro.mp4": []byte("data")})

	_, err := adapter.DirectLink(context.Background(), "intro.mp4")
	if !errors.Is(err, providers.ErrUnavailable) {
		t.Errorf("DirectLink = %v, want ErrUnavailable", err)
	}
}

func TestOpenStream(t *testing.T) {
	content := []byte("0123456789")
	adapter := newTestAdapter(t, map[string][]byte{"clip.mp4": content})

	stream, err := adapter.OpenStream(context.Background(), "clip.mp4")
	if err != nil {
		t.Fatalf("OpenStream failed: %v", err)
	}
	defer stream.Close()

	if stream.ContentLength != int64(len(content)) {
		t.Errorf("content length = %d, want %d", stream.ContentLength, len(content))
	}

	got, err := io.ReadAll(stream.Body)
	if err != nil {
		t.Fatalf("reading stream: %v", err)
	}
	if !bytes.Equal(got, content) {
		t.Errorf("body = %q, want %q", got, content)
	}
}

func TestOpenRangeStream(t *testing.T) {
	content := bytes.Repeat([]byte("x"), 1000)
	copy(content[200:], "RANGESTART")
	adapter := newTestAdapter(t, map[string][]byte{"clip.mp4": content})

	tests := []struct {
		name          string
		start, end    int64
		wantLength    int64
		wantRange     string
		wantFirstByte byte
	}{
		{
			name:       "bounded range",
			start:      200,
			end:        499,
			wantLength: 300,
			wantRange:  "bytes 200-499/1000",
		},
		{
			name:       "open-ended range",
			start:      900,
			end:        -1,
			wantLength: 100,
			wantRange:  "bytes 900-999/1000",
		},
		{
			name:       "end clamped to size",
			start:      990,
			end:        5000,
			wantLength: 10,
			wantRange:  "bytes 990-999/1000",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stream, err := adapter.OpenRangeStream(context.Background(), "clip.mp4", tt.start, tt.end)
			if err != nil {
				t.Fatalf("OpenRangeStream failed: %v", err)
			}
			defer stream.Close()

			if stream.ContentLength != tt.wantLength {
				t.Errorf("content length = %d, want %d", stream.ContentLength, tt.wantLength)
			}
			if stream.ContentRange != tt.wantRange {
				t.Errorf("content range = %q, want %q", stream.ContentRange, tt.wantRange)
			}

			got, err := io.ReadAll(stream.Body)
			if err != nil {
				t.Fatalf("reading stream: %v", err)
			}
			if int64(len(got)) != tt.wantLength {
				t.Errorf("read %d bytes, want %d", len(got), tt.wantLength)
			}
		})
	}
}

func TestOpenRangeStreamNotSatisfiable(t *testing.T) {
	adapter := newTestAdapter(t, map[string][]byte{"clip.mp4": []byte("0123456789")})

	_, err := adapter.OpenRangeStream(context.Background(), "clip.mp4", 100, -1)
	if !errors.Is(err, providers.ErrRangeNotSatisfiable) {
		t.Errorf("OpenRangeStream past EOF = %v, want ErrRangeNotSatisfiable", err)
	}
}

func TestTraversalBlocked(t *testing.T) {
	adapter := newTestAdapter(t, nil)

	_, err := adapter.OpenStream(context.Background(), "a/../../outside")
	if !errors.Is(err, providers.ErrNotFound) {
		t.Errorf("OpenStream traversal = %v, want ErrNotFound", err)
	}
}
