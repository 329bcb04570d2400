package config

import "time"

// DefaultSigningSecret is the shipped placeholder secret. It is rejected in
// production configurations.
const DefaultSigningSecret = "change-me-signing-secret"

// DefaultAppConfig returns an AppConfig struct with sensible default values
func DefaultAppConfig() AppConfig {
	return AppConfig{
		Server: ServerConfig{
			ListenAddr:   ":8080",
			ExternalURL:  "http://localhost:8080",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 0, // streaming responses must not be cut off
			IdleTimeout:  120 * time.Second,
		},
		Auth: AuthConfig{
			SigningSecret:        DefaultSigningSecret,
			APIKeys:              []string{"default-api-key"},
			DefaultExpirySeconds: 900,
			AllowInsecureSecret:  false,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			ListenAddr: ":9090",
		},
		Providers: ProvidersConfig{
			UpstreamTimeout: 8 * time.Second,
			Local: LocalConfig{
				RootPath: "",
			},
		},
	}
}
