package providers

import "fmt"

// Registry holds the configured adapter for each provider kind.
type Registry struct {
	googleDrive Provider
	oneDrive    Provider
	local       Provider
}

// NewRegistry builds a registry. A nil adapter means the provider is not
// configured in this deployment; lookups for it fail with ErrUnavailable.
func NewRegistry(googleDrive, oneDrive, local Provider) *Registry {
	return &Registry{
		googleDrive: googleDrive,
		oneDrive:    oneDrive,
		local:       local,
	}
}

// Lookup returns the adapter for a kind.
func (r *Registry) Lookup(k Kind) (Provider, error) {
	var p Provider
	switch k {
	case GoogleDrive:
		p = r.googleDrive
	case OneDrive:
		p = r.oneDrive
	case Local:
		p = r.local
	default:
		return nil, fmt.Errorf("unknown provider kind %d", int(k))
	}

	if p == nil {
		return nil, fmt.Errorf("provider %s not configured: %w", k, ErrUnavailable)
	}
	return p, nil
}
