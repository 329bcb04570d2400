// Package credentials provides a per-provider access-token cache with
// single-flight refresh semantics.
//
// Remote adapters share one Cache per provider. Concurrent requests that
// observe an expired credential collapse into a single upstream refresh
// call; all waiters see its result. A cached credential is considered stale
// slightly before its reported expiry so in-flight requests never race the
// provider-side cutoff.
package credentials

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Credential is an access token with its reported expiry.
type Credential struct {
	AccessToken string
	ExpiresAt   time.Time
}

// FetchFunc performs the actual credential exchange against a provider
// (service-account grant, client-credential grant). It must be safe to call
// from multiple goroutines, though the Cache ensures only one call is in
// flight at a time.
type FetchFunc func(ctx context.Context) (Credential, error)

// Cache lazily acquires and reuses a provider credential.
type Cache struct {
	fetch  FetchFunc
	margin time.Duration
	now    func() time.Time

	mu      sync.RWMutex
	current Credential

	group singleflight.Group
}

// DefaultMargin is how long before reported expiry a credential is treated
// as stale.
const DefaultMargin = 60 * time.Second

// NewCache creates a credential cache around a fetch function.
func NewCache(fetch FetchFunc) *Cache {
	return &Cache{
		fetch:  fetch,
		margin: DefaultMargin,
		now:    time.Now,
	}
}

// WithClock overrides the time source for tests.
func (c *Cache) WithClock(now func() time.Time) *Cache {
	c.now = now
	return c
}

// WithMargin overrides the staleness margin.
func (c *Cache) WithMargin(margin time.Duration) *Cache {
	c.margin = margin
	return c
}

// Token returns a valid access token, refreshing through the fetch function
// when the cached one is absent or stale. Under concurrent expiry exactly
// one refresh call reaches the provider.
func (c *Cache) Token(ctx context.Context) (string, error) {
	c.mu.RLock()
	cur := c.current
	c.mu.RUnlock()

	if c.fresh(cur) {
		return cur.AccessToken, nil
	}

	v, err, _ := c.group.Do("refresh", func() (interface{}, error) {
		// Another waiter may have completed the refresh while this caller
		// was queued on the flight group.
		c.mu.RLock()
		cur := c.current
		c.mu.RUnlock()
		if c.fresh(cur) {
			return cur.AccessToken, nil
		}

		cred, err := c.fetch(ctx)
		if err != nil {
			return "", fmt.Errorf("refreshing credential: %w", err)
		}

		c.mu.Lock()
		c.current = cred
		c.mu.Unlock()

		return cred.AccessToken, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// Invalidate drops the cached credential, forcing the next Token call to
// refresh. Adapters call this after an upstream 401.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.current = Credential{}
	c.mu.Unlock()
}

func (c *Cache) fresh(cred Credential) bool {
	if cred.AccessToken == "" {
		return false
	}
	return c.now().Before(cred.ExpiresAt.Add(-c.margin))
}
