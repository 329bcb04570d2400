package issuer

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/openlms/mediagate/providers"
	"github.com/openlms/mediagate/token"
)

// fakeProvider implements providers.Provider with scripted direct-link
// behavior and call recording.
type fakeProvider struct {
	directLink      string
	directErr       error
	directLinkCalls int
}

func (f *fakeProvider) Metadata(ctx context.Context, fileID string) (*providers.FileMetadata, error) {
	return &providers.FileMetadata{Name: fileID, MimeType: "video/mp4", Size: 1000}, nil
}

func (f *fakeProvider) DirectLink(ctx context.Context, fileID string) (string, error) {
	f.directLinkCalls++
	if f.directErr != nil {
		return "", f.directErr
	}
	return f.directLink, nil
}

func (f *fakeProvider) OpenStream(ctx context.Context, fileID string) (*providers.Stream, error) {
	return &providers.Stream{
		Body:          io.NopCloser(strings.NewReader("")),
		ContentType:   "video/mp4",
		ContentLength: 0,
	}, nil
}

func (f *fakeProvider) OpenRangeStream(ctx context.Context, fileID string, start, end int64) (*providers.Stream, error) {
	return f.OpenStream(ctx, fileID)
}

func newTestIssuer(t *testing.T, drive, graph, local providers.Provider) (*Issuer, *token.Authority) {
	t.Helper()

	authority, err := token.NewAuthority("test-secret")
	if err != nil {
		t.Fatalf("NewAuthority failed: %v", err)
	}

	registry := providers.NewRegistry(drive, graph, local)
	iss := New(registry, authority, "https://lms.example.com", time.Second, zap.NewNop())
	return iss, authority
}

func TestIssueDirectWhenProviderResolves(t *testing.T) {
	drive := &fakeProvider{directLink: "https://drive.google.com/file/d/abc123/preview"}
	iss, _ := newTestIssuer(t, drive, nil, nil)

	desc, err := iss.Issue(context.Background(), Request{
		FileID:        "abc123",
		Kind:          providers.GoogleDrive,
		ExpirySeconds: 600,
	})
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	if desc.Proxied {
		t.Error("expected direct descriptor, got proxied")
	}
	if desc.PlayURL != drive.directLink {
		t.Errorf("play URL = %q, want %q", desc.PlayURL, drive.directLink)
	}
}

func TestIssueAppendsStartOffsetPerProvider(t *testing.T) {
	tests := []struct {
		name string
		kind providers.Kind
		link string
		want string
	}{
		{
			name: "drive uses fragment",
			kind: providers.GoogleDrive,
			link: "https://drive.google.com/file/d/abc123/preview",
			want: "https://drive.google.com/file/d/abc123/preview#t=90",
		},
		{
			name: "onedrive uses query parameter",
			kind: providers.OneDrive,
			link: "https://public.sn.files.1drv.com/dl?x=1",
			want: "https://public.sn.files.1drv.com/dl?x=1&st=90",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeProvider{directLink: tt.link}
			var iss *Issuer
			if tt.kind == providers.GoogleDrive {
				iss, _ = newTestIssuer(t, fake, nil, nil)
			} else {
				iss, _ = newTestIssuer(t, nil, fake, nil)
			}

			desc, err := iss.Issue(context.Background(), Request{
				FileID:        "abc123",
				Kind:          tt.kind,
				StartSeconds:  90,
				ExpirySeconds: 600,
			})
			if err != nil {
				t.Fatalf("Issue failed: %v", err)
			}
			if desc.PlayURL != tt.want {
				t.Errorf("play URL = %q, want %q", desc.PlayURL, tt.want)
			}
		})
	}
}

func TestIssueFallsBackToProxyDeterministically(t *testing.T) {
	drive := &fakeProvider{directErr: providers.ErrUnavailable}
	iss, authority := newTestIssuer(t, drive, nil, nil)

	for i := 0; i < 5; i++ {
		desc, err := iss.Issue(context.Background(), Request{
			FileID:        "abc123",
			Kind:          providers.GoogleDrive,
			ExpirySeconds: 600,
		})
		if err != nil {
			t.Fatalf("Issue failed: %v", err)
		}

		if !desc.Proxied {
			t.Fatal("expected proxied descriptor when direct link is unavailable")
		}
		if !strings.HasPrefix(desc.PlayURL, "https://lms.example.com/media/stream?token=") {
			t.Fatalf("unexpected proxy URL %q", desc.PlayURL)
		}

		// The embedded token must verify against the same file reference.
		tok := extractToken(t, desc.PlayURL)
		claims, err := authority.Verify(tok)
		if err != nil {
			t.Fatalf("embedded token failed verification: %v", err)
		}
		ref, err := claims.FileReference()
		if err != nil {
			t.Fatalf("FileReference failed: %v", err)
		}
		if ref.FileID != "abc123" || ref.Kind != providers.GoogleDrive {
			t.Errorf("token reference = %+v", ref)
		}
	}
}

func TestIssueClampsExpiry(t *testing.T) {
	local := &fakeProvider{}
	iss, _ := newTestIssuer(t, nil, nil, local)

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	iss.WithClock(func() time.Time { return base })

	tests := []struct {
		name   string
		expiry int
		want   time.Duration
	}{
		{"below minimum", 5, MinExpiry},
		{"above maximum", 999999, MaxExpiry},
		{"within bounds", 600, 600 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			desc, err := iss.Issue(context.Background(), Request{
				FileID:        "lecture.mp4",
				Kind:          providers.Local,
				ExpirySeconds: tt.expiry,
			})
			if err != nil {
				t.Fatalf("Issue failed: %v", err)
			}

			if got := desc.ExpiresAt.Sub(base); got != tt.want {
				t.Errorf("expiry window = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestIssueLocalNeverCallsDirectLink(t *testing.T) {
	local := &fakeProvider{directLink: "https://should-never-appear.example.com"}
	iss, _ := newTestIssuer(t, nil, nil, local)

	for i := 0; i < 3; i++ {
		desc, err := iss.Issue(context.Background(), Request{
			FileID:        "lecture.mp4",
			Kind:          providers.Local,
			ExpirySeconds: 300,
		})
		if err != nil {
			t.Fatalf("Issue failed: %v", err)
		}
		if !desc.Proxied {
			t.Fatal("local descriptors must always be proxied")
		}
	}

	if local.directLinkCalls != 0 {
		t.Errorf("DirectLink called %d times for local provider, want 0", local.directLinkCalls)
	}
}

func TestIssueRejectsInvalidFileID(t *testing.T) {
	iss, _ := newTestIssuer(t, nil, nil, &fakeProvider{})

	_, err := iss.Issue(context.Background(), Request{
		FileID:        "../../../etc/passwd",
		Kind:          providers.Local,
		ExpirySeconds: 300,
	})
	if err == nil {
		t.Fatal("expected validation error for traversal file_id")
	}
}

func extractToken(t *testing.T, playURL string) string {
	t.Helper()
	_, rest, found := strings.Cut(playURL, "token=")
	if !found {
		t.Fatalf("no token in %q", playURL)
	}
	tok, _, _ := strings.Cut(rest, "&")
	return tok
}
