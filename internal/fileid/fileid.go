// Package fileid provides validation for provider file identifiers and
// safe local path resolution for the local filesystem adapter.
package fileid

import (
	"errors"
	"path/filepath"
	"strings"
)

// ErrInvalid is returned when a file identifier fails validation.
var ErrInvalid = errors.New("invalid file identifier")

// maxLen bounds identifier length; provider IDs and relative media paths
// are both well under this in practice.
const maxLen = 254

// Validate checks that id is safe to interpolate into a provider API path
// or resolve against the local media root. Identifiers must start with an
// alphanumeric character and may contain alphanumerics, dots, underscores,
// hyphens and forward slashes. Traversal sequences are rejected outright.
func Validate(id string) error {
	if id == "" || len(id) > maxLen {
		return ErrInvalid
	}

	first := id[0]
	if !isAlnum(first) {
		return ErrInvalid
	}

	for i := 0; i < len(id); i++ {
		c := id[i]
		if isAlnum(c) || c == '.' || c == '_' || c == '-' || c == '/' {
			continue
		}
		return ErrInvalid
	}

	// Reject traversal even when the charset check passes ("a/../b").
	for _, part := range strings.Split(id, "/") {
		if part == ".." {
			return ErrInvalid
		}
	}

	return nil
}

// SafeJoin joins a validated identifier onto the local media root, ensuring
// the result cannot escape the root boundary.
func SafeJoin(root, id string) (string, error) {
	if err := Validate(id); err != nil {
		return "", err
	}

	cleanRoot := filepath.Clean(root)
	joined := filepath.Join(cleanRoot, filepath.FromSlash(id))

	rel, err := filepath.Rel(cleanRoot, joined)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", ErrInvalid
	}

	return joined, nil
}

func isAlnum(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}
