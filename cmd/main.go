package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/openlms/mediagate/auth"
	"github.com/openlms/mediagate/config"
	"github.com/openlms/mediagate/issuer"
	"github.com/openlms/mediagate/providers"
	"github.com/openlms/mediagate/providers/googledrive"
	"github.com/openlms/mediagate/providers/localfs"
	"github.com/openlms/mediagate/providers/onedrive"
	"github.com/openlms/mediagate/server"
	"github.com/openlms/mediagate/token"
)

var rootCmd = &cobra.Command{
	Use:   "mediagate",
	Short: "mediagate - signed media access and streaming proxy",
	Long: `mediagate turns logical references to lecture media owned by external
storage providers into short-lived, authorized, seekable playback URLs,
and proxies bytes itself when a provider cannot hand out direct links.`,
}

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the mediagate server",
	Long:  "Start the mediagate server with the configured providers and API endpoints",
	RunE:  runServer,
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management commands",
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration",
	Long:  "Validate the mediagate configuration and display the loaded settings",
	RunE:  validateConfig,
}

var configFilePath string

func main() {
	serverCmd.Flags().StringVarP(&configFilePath, "config", "c", "", "Path to configuration file")

	configCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(serverCmd, configCmd)

	// If no command specified, default to server
	if len(os.Args) == 1 {
		os.Args = append(os.Args, "server")
	}

	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("Error: %v", err)
	}
}

// runServer starts the mediagate server
func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfigFromFile(configFilePath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := initializeLogger(cfg.Log)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() {
		if err := logger.Sync(); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to sync logger: %v\n", err)
		}
	}()

	logger.Info("Starting mediagate server",
		zap.String("listen_addr", cfg.Server.ListenAddr),
		zap.String("external_url", cfg.Server.ExternalURL))

	if cfg.InsecureSecret() {
		logger.Warn("Running with the default signing secret; all issued tokens are forgeable. Never use this outside local development.")
	}

	// Token authority owns the signing secret for the process lifetime.
	authority, err := token.NewAuthority(cfg.Auth.SigningSecret)
	if err != nil {
		return fmt.Errorf("failed to initialize token authority: %w", err)
	}

	// Initialize provider adapters conditionally
	logger.Info("Initializing provider adapters")

	var googleDriveAdapter providers.Provider
	if cfg.Providers.GoogleDrive.ServiceAccountFile != "" {
		logger.Info("Initializing Google Drive adapter",
			zap.String("service_account_file", cfg.Providers.GoogleDrive.ServiceAccountFile))
		adapter, err := googledrive.New(cfg.Providers.GoogleDrive.ServiceAccountFile, cfg.Providers.UpstreamTimeout, logger)
		if err != nil {
			return fmt.Errorf("failed to initialize Google Drive adapter: %w", err)
		}
		googleDriveAdapter = adapter
	} else {
		logger.Info("Google Drive adapter disabled (no service account configured)")
	}

	var oneDriveAdapter providers.Provider
	if cfg.Providers.OneDrive.ClientID != "" {
		logger.Info("Initializing OneDrive adapter",
			zap.String("drive_id", cfg.Providers.OneDrive.DriveID))
		adapter, err := onedrive.New(onedrive.Config{
			TenantID:     cfg.Providers.OneDrive.TenantID,
			ClientID:     cfg.Providers.OneDrive.ClientID,
			ClientSecret: cfg.Providers.OneDrive.ClientSecret,
			DriveID:      cfg.Providers.OneDrive.DriveID,
		}, cfg.Providers.UpstreamTimeout, logger)
		if err != nil {
			return fmt.Errorf("failed to initialize OneDrive adapter: %w", err)
		}
		oneDriveAdapter = adapter
	} else {
		logger.Info("OneDrive adapter disabled (no client registration configured)")
	}

	var localAdapter providers.Provider
	if cfg.Providers.Local.RootPath != "" {
		logger.Info("Initializing local media adapter",
			zap.String("root_path", cfg.Providers.Local.RootPath))
		adapter, err := localfs.New(cfg.Providers.Local.RootPath)
		if err != nil {
			return fmt.Errorf("failed to initialize local media adapter: %w", err)
		}
		localAdapter = adapter
	} else {
		logger.Info("Local media adapter disabled (no root path configured)")
	}

	registry := providers.NewRegistry(googleDriveAdapter, oneDriveAdapter, localAdapter)

	// Link issuer composes direct and proxied playback URLs.
	iss := issuer.New(registry, authority, cfg.Server.ExternalURL, cfg.Providers.UpstreamTimeout, logger)

	authenticator := auth.NewAPIKeyAuthenticator(cfg.Auth.APIKeys)

	logger.Info("Initializing HTTP router")
	router := server.NewRouter(iss, authority, registry, authenticator, &cfg.Auth, logger)

	srv := &http.Server{
		Addr:         cfg.Server.ListenAddr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", cfg.Server.ListenAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Dedicated metrics listener so scrapes stay off the media port.
	var metricsSrv *http.Server
	if cfg.Metrics.ListenAddr != "" {
		metricsMux := http.NewServeMux()
		metricsMux.Handle("/metrics", promhttp.Handler())
		metricsSrv = &http.Server{Addr: cfg.Metrics.ListenAddr, Handler: metricsMux}
		go func() {
			logger.Info("Starting metrics server", zap.String("addr", cfg.Metrics.ListenAddr))
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("Metrics server failed", zap.Error(err))
			}
		}()
	}

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if metricsSrv != nil {
		if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Metrics server forced to shutdown", zap.Error(err))
		}
	}

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
		return err
	}

	logger.Info("Server exited gracefully")
	return nil
}

// validateConfig validates the mediagate configuration and displays settings
func validateConfig(cmd *cobra.Command, args []string) error {
	fmt.Println("Validating configuration...")

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Printf("Configuration validation failed: %v\n", err)
		return err
	}

	fmt.Println("Configuration is valid")
	fmt.Printf("Listen Address: %s\n", cfg.Server.ListenAddr)
	fmt.Printf("External URL: %s\n", cfg.Server.ExternalURL)
	fmt.Printf("Signing Secret: %s\n", maskSecret(cfg.Auth.SigningSecret))
	fmt.Printf("Default Link Expiry: %ds\n", cfg.Auth.DefaultExpirySeconds)
	fmt.Printf("Upstream Timeout: %s\n", cfg.Providers.UpstreamTimeout)
	if cfg.Providers.GoogleDrive.ServiceAccountFile != "" {
		fmt.Printf("Google Drive: enabled (%s)\n", cfg.Providers.GoogleDrive.ServiceAccountFile)
	}
	if cfg.Providers.OneDrive.ClientID != "" {
		fmt.Printf("OneDrive: enabled (drive %s)\n", cfg.Providers.OneDrive.DriveID)
	}
	if cfg.Providers.Local.RootPath != "" {
		fmt.Printf("Local Media Root: %s\n", cfg.Providers.Local.RootPath)
	}

	return nil
}

// maskSecret masks a secret for display
func maskSecret(secret string) string {
	if secret == "" {
		return ""
	}
	if len(secret) > 8 {
		return secret[:4] + "***"
	}
	return "***"
}

// initializeLogger creates a zap logger based on configuration
func initializeLogger(logCfg config.LogConfig) (*zap.Logger, error) {
	var cfg zap.Config

	if logCfg.Format == "json" {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
	}

	switch logCfg.Level {
	case "debug":
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "info":
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "warn":
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		cfg.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	default:
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}

	return cfg.Build()
}
