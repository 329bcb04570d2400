// Package token implements the stateless authority that mints and verifies
// the short-lived authorization tokens embedded in proxy playback URLs.
//
// Tokens are self-contained HS256 JWTs: verification needs no external state,
// so the streaming endpoint scales horizontally without a shared session
// store. The trade-off is that an issued token cannot be revoked before its
// natural expiry; lifetimes are capped at one hour to bound exposure.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/openlms/mediagate/providers"
)

var (
	// ErrNoSigningSecret indicates the authority was built without a secret.
	ErrNoSigningSecret = errors.New("no token signing secret configured")

	// ErrTokenExpired indicates the token was valid but is past its expiry.
	ErrTokenExpired = errors.New("token expired")

	// ErrTokenMalformed indicates the token is structurally invalid or its
	// signature does not verify.
	ErrTokenMalformed = errors.New("token malformed")
)

// Claims is the payload carried by an authorization token.
type Claims struct {
	FileID   string `json:"fid"`
	Provider string `json:"prv"`
	Scope    string `json:"scope,omitempty"`
	jwt.RegisteredClaims
}

// Authority signs and verifies authorization tokens. It exclusively owns
// the signing secret, loaded once at startup.
type Authority struct {
	secret []byte
	now    func() time.Time
}

// NewAuthority creates an Authority. Fails when secret is empty.
func NewAuthority(secret string) (*Authority, error) {
	if secret == "" {
		return nil, ErrNoSigningSecret
	}
	return &Authority{
		secret: []byte(secret),
		now:    time.Now,
	}, nil
}

// WithClock overrides the time source. Tests use this to verify expiry
// behavior without sleeping.
func (a *Authority) WithClock(now func() time.Time) *Authority {
	a.now = now
	return a
}

// Mint issues a signed token for a file reference. callerID and scope are
// optional and empty strings omit the corresponding claims.
func (a *Authority) Mint(ref providers.FileReference, expiry time.Duration, callerID, scope string) (string, error) {
	if len(a.secret) == 0 {
		return "", ErrNoSigningSecret
	}

	issued := a.now()
	claims := Claims{
		FileID:   ref.FileID,
		Provider: ref.Kind.String(),
		Scope:    scope,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   callerID,
			IssuedAt:  jwt.NewNumericDate(issued),
			ExpiresAt: jwt.NewNumericDate(issued.Add(expiry)),
		},
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(a.secret)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}

// Verify checks a token's signature and expiry and returns its claims
// unchanged. The distinction between ErrTokenExpired and ErrTokenMalformed
// matters to the HTTP layer: expired maps to 401, malformed to 400.
func (a *Authority) Verify(tokenStr string) (*Claims, error) {
	claims := &Claims{}
	tok, err := jwt.ParseWithClaims(tokenStr, claims,
		func(_ *jwt.Token) (interface{}, error) { return a.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrTokenMalformed, err)
	}
	if !tok.Valid {
		return nil, ErrTokenMalformed
	}

	if _, err := providers.ParseKind(claims.Provider); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTokenMalformed, err)
	}

	return claims, nil
}

// FileReference reconstructs the file reference embedded in the claims.
func (c *Claims) FileReference() (providers.FileReference, error) {
	kind, err := providers.ParseKind(c.Provider)
	if err != nil {
		return providers.FileReference{}, err
	}
	return providers.FileReference{FileID: c.FileID, Kind: kind}, nil
}

// Truncate returns a redacted token suitable for logs.
func Truncate(token string) string {
	if len(token) <= 8 {
		return token
	}
	return token[:8] + "..."
}
