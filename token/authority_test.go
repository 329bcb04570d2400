package token

import (
	"errors"
	"testing"
	"time"

	"github.com/openlms/mediagate/providers"
)

func TestMintVerifyRoundTrip(t *testing.T) {
	authority, err := NewAuthority("test-secret")
	if err != nil {
		t.Fatalf("NewAuthority failed: %v", err)
	}

	ref := providers.FileReference{FileID: "lecture-42.mp4", Kind: providers.Local}

	tok, err := authority.Mint(ref, 5*time.Minute, "student-7", "module-3")
	if err != nil {
		t.Fatalf("Mint failed: %v", err)
	}

	claims, err := authority.Verify(tok)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}

	got, err := claims.FileReference()
	if err != nil {
		t.Fatalf("FileReference failed: %v", err)
	}
	if got != ref {
		t.Errorf("round-trip file reference = %+v, want %+v", got, ref)
	}
	if claims.Subject != "student-7" {
		t.Errorf("subject = %q, want %q", claims.Subject, "student-7")
	}
	if claims.Scope != "module-3" {
		t.Errorf("scope = %q, want %q", claims.Scope, "module-3")
	}
}

func TestVerifyExpired(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	now := base

	authority, err := NewAuthority("test-secret")
	if err != nil {
		t.Fatalf("NewAuthority failed: %v", err)
	}
	authority.WithClock(func() time.Time { return now })

	ref := providers.FileReference{FileID: "abc123", Kind: providers.GoogleDrive}
	tok, err := authority.Mint(ref, 60*time.Second, "", "")
	if err != nil {
		t.Fatalf("Mint failed: %v", err)
	}

	// Still valid just before expiry.
	now = base.Add(59 * time.Second)
	if _, err := authority.Verify(tok); err != nil {
		t.Fatalf("Verify at +59s failed: %v", err)
	}

	// Expired one second past the window.
	now = base.Add(61 * time.Second)
	_, err = authority.Verify(tok)
	if !errors.Is(err, ErrTokenExpired) {
		t.Errorf("Verify at +61s = %v, want ErrTokenExpired", err)
	}
}

func TestVerifyMalformed(t *testing.T) {
	authority, err := NewAuthority("test-secret")
	if err != nil {
		t.Fatalf("NewAuthority failed: %v", err)
	}

	tests := []struct {
		name  string
		token string
	}{
		{"garbage", "not-a-token"},
		{"empty", ""},
		{"truncated jwt", "eyJhbGciOiJIUzI1NiJ9.eyJmaWQ"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := authority.Verify(tt.token)
			if !errors.Is(err, ErrTokenMalformed) {
				t.Errorf("Verify(%q) = %v, want ErrTokenMalformed", tt.token, err)
			}
		})
	}
}

func TestVerifyWrongSecret(t *testing.T) {
	minter, _ := NewAuthority("secret-a")
	verifier, _ := NewAuthority("secret-b")

	ref := providers.FileReference{FileID: "abc123", Kind: providers.OneDrive}
	tok, err := minter.Mint(ref, time.Minute, "", "")
	if err != nil {
		t.Fatalf("Mint failed: %v", err)
	}

	if _, err := verifier.Verify(tok); !errors.Is(err, ErrTokenMalformed) {
		t.Errorf("Verify with wrong secret = %v, want ErrTokenMalformed", err)
	}
}

func TestNewAuthorityRequiresSecret(t *testing.T) {
	if _, err := NewAuthority(""); !errors.Is(err, ErrNoSigningSecret) {
		t.Errorf("NewAuthority(\"\") = %v, want ErrNoSigningSecret", err)
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("abcdefghijkl"); got != "abcdefgh..." {
		t.Errorf("Truncate long = %q", got)
	}
	if got := Truncate("short"); got != "short" {
		t.Errorf("Truncate short = %q", got)
	}
}
