// Package auth provides authentication for the mediagate issuance API.
// The issuance endpoint is consumed by internal platform services (course
// dashboards, admin tooling), which authenticate with static API keys.
package auth

import (
	"context"
	"errors"
	"strings"
)

// ErrAuthenticationFailed indicates the presented credential is missing or
// unknown.
var ErrAuthenticationFailed = errors.New("authentication failed")

// Authenticator defines the interface for caller authentication
type Authenticator interface {
	// Authenticate validates a credential and returns the caller ID
	Authenticate(ctx context.Context, credential string) (callerID string, err error)
}

// APIKeyAuthenticator implements authentication using static API keys
type APIKeyAuthenticator struct {
	validKeys map[string]bool
}

// NewAPIKeyAuthenticator creates a new API key authenticator
func NewAPIKeyAuthenticator(keys []string) *APIKeyAuthenticator {
	validKeys := make(map[string]bool)
	for _, key := range keys {
		if key != "" {
			validKeys[key] = true
		}
	}

	return &APIKeyAuthenticator{
		validKeys: validKeys,
	}
}

// Authenticate validates a credential and returns the caller ID
func (a *APIKeyAuthenticator) Authenticate(ctx context.Context, credential string) (string, error) {
	credential = strings.TrimPrefix(credential, "Bearer ")
	credential = strings.TrimSpace(credential)

	if credential == "" {
		return "", ErrAuthenticationFailed
	}

	if !a.validKeys[credential] {
		return "", ErrAuthenticationFailed
	}

	// API keys identify a service, not an end user; the end-user identity
	// travels in the issuance request body.
	return "internal-service", nil
}
