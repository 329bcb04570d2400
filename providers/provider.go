// Package providers defines the storage provider abstraction for mediagate.
// It includes adapter implementations for Google Drive, Microsoft Graph
// (OneDrive), and the local filesystem.
package providers

import (
	"context"
	"errors"
	"fmt"
	"io"
)

var (
	// ErrNotFound indicates the file does not exist at the provider.
	ErrNotFound = errors.New("file not found at provider")

	// ErrUnavailable indicates the provider cannot serve the request right
	// now (no direct link capability, upstream outage, degraded auth).
	ErrUnavailable = errors.New("provider unavailable")

	// ErrUpstreamAuth indicates credential acquisition against the provider
	// failed.
	ErrUpstreamAuth = errors.New("provider credential acquisition failed")

	// ErrUpstreamTimeout indicates a provider call exceeded its deadline.
	ErrUpstreamTimeout = errors.New("provider call timed out")

	// ErrRangeNotSatisfiable indicates the requested byte range starts
	// beyond the end of the file.
	ErrRangeNotSatisfiable = errors.New("requested range not satisfiable")
)

// Kind identifies a storage provider. It is a closed set; every dispatch
// site switches exhaustively so adding a provider is a compile-time change.
type Kind int

const (
	GoogleDrive Kind = iota
	OneDrive
	Local
)

// String returns the wire name of the provider kind.
func (k Kind) String() string {
	switch k {
	case GoogleDrive:
		return "google_drive"
	case OneDrive:
		return "onedrive"
	case Local:
		return "local"
	}
	return fmt.Sprintf("unknown(%d)", int(k))
}

// ParseKind maps a wire name to a Kind.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "google_drive":
		return GoogleDrive, nil
	case "onedrive":
		return OneDrive, nil
	case "local":
		return Local, nil
	}
	return 0, fmt.Errorf("unknown provider %q", s)
}

// Remote reports whether the provider is an external API that may be able
// to hand out direct links. Local files are never exposed as bare URLs.
func (k Kind) Remote() bool {
	switch k {
	case GoogleDrive, OneDrive:
		return true
	case Local:
		return false
	}
	return false
}

// FileReference is a logical pointer to a media object owned by a provider.
type FileReference struct {
	FileID string
	Kind   Kind
}

// FileMetadata describes a media object. Size is -1 when the provider does
// not report it.
type FileMetadata struct {
	Name     string
	MimeType string
	Size     int64
}

// Stream is a lazy, finite, non-restartable byte stream handed back by an
// adapter. The caller owns Body and must close it. ContentLength is -1 when
// unknown; ContentRange is set only for partial streams.
type Stream struct {
	Body          io.ReadCloser
	ContentType   string
	ContentLength int64
	ContentRange  string
}

// Close closes the underlying body if present.
func (s *Stream) Close() error {
	if s == nil || s.Body == nil {
		return nil
	}
	return s.Body.Close()
}

// Provider is the common capability surface over storage back ends.
type Provider interface {
	// Metadata resolves name, MIME type and size for a file.
	Metadata(ctx context.Context, fileID string) (*FileMetadata, error)

	// DirectLink resolves a provider-native playback URL that a client can
	// dereference without passing through the proxy. Adapters that cannot
	// hand out direct links return ErrUnavailable.
	DirectLink(ctx context.Context, fileID string) (string, error)

	// OpenStream opens the full content of a file.
	OpenStream(ctx context.Context, fileID string) (*Stream, error)

	// OpenRangeStream opens bytes [start, end] of a file. end < 0 means
	// through the last byte. The returned stream carries Content-Range and
	// an exact ContentLength.
	OpenRangeStream(ctx context.Context, fileID string, start, end int64) (*Stream, error)
}
