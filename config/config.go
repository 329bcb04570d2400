// Package config provides configuration management for mediagate.
// It handles loading and validating configuration from YAML files and environment variables.
package config

import "time"

// AppConfig represents the complete application configuration
type AppConfig struct {
	Server    ServerConfig    `koanf:"server"`
	Auth      AuthConfig      `koanf:"auth"`
	Log       LogConfig       `koanf:"log"`
	Metrics   MetricsConfig   `koanf:"metrics"`
	Providers ProvidersConfig `koanf:"providers"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	ListenAddr   string        `koanf:"listen_addr"`
	ExternalURL  string        `koanf:"external_url"`
	ReadTimeout  time.Duration `koanf:"read_timeout"`
	WriteTimeout time.Duration `koanf:"write_timeout"`
	IdleTimeout  time.Duration `koanf:"idle_timeout"`
}

// AuthConfig holds token signing and issuance API configuration
type AuthConfig struct {
	// SigningSecret signs proxy authorization tokens. Rotating it
	// invalidates all outstanding tokens.
	SigningSecret string `koanf:"signing_secret"`

	// APIKeys authenticate internal callers of the issuance endpoint.
	APIKeys []string `koanf:"api_keys"`

	// DefaultExpirySeconds is used when an issuance request carries no
	// expiry. Clamped into [60, 3600] like any other value.
	DefaultExpirySeconds int `koanf:"default_expiry_seconds"`

	// AllowInsecureSecret permits the shipped default secret outside
	// production. It is always logged as a warning.
	AllowInsecureSecret bool `koanf:"allow_insecure_secret"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// MetricsConfig holds metrics server configuration
type MetricsConfig struct {
	ListenAddr string `koanf:"listen_addr"`
}

// ProvidersConfig holds per-provider adapter configuration. A provider with
// no configuration is disabled in this deployment.
type ProvidersConfig struct {
	// UpstreamTimeout bounds provider metadata, direct-link and credential
	// calls.
	UpstreamTimeout time.Duration `koanf:"upstream_timeout"`

	GoogleDrive GoogleDriveConfig `koanf:"google_drive"`
	OneDrive    OneDriveConfig    `koanf:"onedrive"`
	Local       LocalConfig       `koanf:"local"`
}

// GoogleDriveConfig holds the Drive service-account location
type GoogleDriveConfig struct {
	ServiceAccountFile string `koanf:"service_account_file"`
}

// OneDriveConfig holds the Azure AD application registration
type OneDriveConfig struct {
	TenantID     string `koanf:"tenant_id"`
	ClientID     string `koanf:"client_id"`
	ClientSecret string `koanf:"client_secret"`
	DriveID      string `koanf:"drive_id"`
}

// LocalConfig holds the local media root
type LocalConfig struct {
	RootPath string `koanf:"root_path"`
}
