// Package localfs implements the providers.Provider interface over a local
// media directory. Local files are never handed out as bare URLs; every
// read goes through the streaming proxy.
package localfs

import (
	"context"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"

	"github.com/openlms/mediagate/internal/fileid"
	"github.com/openlms/mediagate/providers"
)

// Adapter serves media from a directory tree rooted at rootPath.
type Adapter struct {
	rootPath string
}

// New creates a local filesystem adapter.
func New(rootPath string) (*Adapter, error) {
	info, err := os.Stat(rootPath)
	if err != nil {
		return nil, fmt.Errorf("media root %s is not accessible: %w", rootPath, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("media root %s is not a directory", rootPath)
	}

	return &Adapter{rootPath: rootPath}, nil
}

// Metadata returns name, MIME type (guessed from the extension) and size.
func (a *Adapter) Metadata(ctx context.Context, fileID string) (*providers.FileMetadata, error) {
	fullPath, err := fileid.SafeJoin(a.rootPath, fileID)
	if err != nil {
		return nil, providers.ErrNotFound
	}

	info, err := os.Stat(fullPath)
	if err != nil || info.IsDir() {
		return nil, providers.ErrNotFound
	}

	return &providers.FileMetadata{
		Name:     info.Name(),
		MimeType: contentTypeFor(fullPath),
		Size:     info.Size(),
	}, nil
}

// DirectLink always reports ErrUnavailable: local files have no
// provider-native URL and must be proxied.
func (a *Adapter) DirectLink(ctx context.Context, fileID string) (string, error) {
	return "", providers.ErrUnavailable
}

// OpenStream opens the full file content.
func (a *Adapter) OpenStream(ctx context.Context, fileID string) (*providers.Stream, error) {
	fullPath, err := fileid.SafeJoin(a.rootPath, fileID)
	if err != nil {
		return nil, providers.ErrNotFound
	}

	f, err := os.Open(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, providers.ErrNotFound
		}
		return nil, fmt.Errorf("opening %s: %w", fileID, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat %s: %w", fileID, err)
	}

	return &providers.Stream{
		Body:          f,
		ContentType:   contentTypeFor(fullPath),
		ContentLength: info.Size(),
	}, nil
}

// OpenRangeStream opens bytes [start, end] of the file. end < 0 means
// through the last byte.
func (a *Adapter) OpenRangeStream(ctx context.Context, fileID string, start, end int64) (*providers.Stream, error) {
	fullPath, err := fileid.SafeJoin(a.rootPath, fileID)
	if err != nil {
		return nil, providers.ErrNotFound
	}

	f, err := os.Open(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, providers.ErrNotFound
		}
		return nil, fmt.Errorf("opening %s: %w", fileID, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat %s: %w", fileID, err)
	}

	size := info.Size()
	if end < 0 || end >= size {
		end = size - 1
	}
	if start < 0 || start > end {
		f.Close()
		return nil, fmt.Errorf("%w: %d-%d of %d bytes", providers.ErrRangeNotSatisfiable, start, end, size)
	}

	if _, err := f.Seek(start, io.SeekStart); err != nil {
		f.Close()
		return nil, fmt.Errorf("seeking %s to %d: %w", fileID, start, err)
	}

	length := end - start + 1
	return &providers.Stream{
		Body:          &limitedFile{Reader: io.LimitReader(f, length), file: f},
		ContentType:   contentTypeFor(fullPath),
		ContentLength: length,
		ContentRange:  fmt.Sprintf("bytes %d-%d/%d", start, end, size),
	}, nil
}

// limitedFile bounds reads to the requested range while closing the
// underlying file.
type limitedFile struct {
	io.Reader
	file *os.File
}

func (l *limitedFile) Close() error {
	return l.file.Close()
}

func contentTypeFor(path string) string {
	if ct := mime.TypeByExtension(filepath.Ext(path)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
