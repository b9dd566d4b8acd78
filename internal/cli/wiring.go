package cli

import (
	"context"
	"fmt"
	"time"

	"interviewroom/internal/config"
	"interviewroom/internal/errors"
	"interviewroom/internal/media"
	"interviewroom/internal/observability"
	"interviewroom/internal/service"
	"interviewroom/internal/speech"
	"interviewroom/internal/tlsutil"
)

const shutdownTimeout = 5 * time.Second

// appEnv holds the collaborators shared by the commands that talk to the service
type appEnv struct {
	om     *observability.ObservabilityManager
	tls    *tlsutil.ClientTLS
	vault  *tlsutil.VaultWatcher
	client *service.Client
	logger *errors.Logger
}

// newAppEnv builds observability, client TLS and the service client from cfg
func newAppEnv(cfg *config.Config, logger *errors.Logger) (*appEnv, error) {
	om, err := observability.NewObservabilityManager(observability.GetObservabilityConfig(cfg, Version), cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize observability: %w", err)
	}
	rt := &appEnv{om: om, logger: logger}

	ct, err := tlsutil.NewClientTLS(cfg.Service.TLS, logger)
	if err != nil {
		rt.close()
		return nil, fmt.Errorf("failed to load client TLS configuration: %w", err)
	}
	if ct != nil {
		if err := ct.Watch(); err != nil {
			// Reload is a convenience; the loaded material keeps working
			logger.Warn("Certificate auto-reload unavailable", "error", err.Error())
		}
		rt.tls = ct
		rt.watchVault(cfg)
	}

	client, err := service.NewClient(&cfg.Service, logger,
		service.WithTLS(rt.tls),
		service.WithObservability(om))
	if err != nil {
		rt.close()
		return nil, fmt.Errorf("failed to create service client: %w", err)
	}
	rt.client = client
	return rt, nil
}

// watchVault follows certificate rotation in Vault during long sessions
func (rt *appEnv) watchVault(cfg *config.Config) {
	if !cfg.Vault.Enabled || cfg.Vault.Secrets.TLSCerts == "" || cfg.Vault.PollInterval <= 0 {
		return
	}
	vc, err := config.NewVaultClient(cfg.Vault, rt.logger)
	if err != nil {
		rt.logger.Warn("Vault certificate rotation unavailable", "error", err.Error())
		return
	}
	watcher, err := tlsutil.WatchVault(rt.tls, vc, cfg.Vault.Secrets.TLSCerts, cfg.Vault.PollInterval, rt.logger)
	if err != nil {
		rt.logger.Warn("Vault certificate rotation unavailable", "error", err.Error())
		return
	}
	rt.vault = watcher
}

func (rt *appEnv) close() {
	if err := rt.vault.Stop(); err != nil {
		rt.logger.Warn("Failed to stop Vault watcher", "error", err.Error())
	}
	if err := rt.tls.Close(); err != nil {
		rt.logger.Warn("Failed to stop certificate watcher", "error", err.Error())
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if rt.om != nil {
		if err := rt.om.Shutdown(ctx); err != nil {
			rt.logger.Warn("Observability shutdown failed", "error", err.Error())
		}
	}
}

// newSpeaker builds the playback adapter: remote synthesis through the
// service with local synthesis as fallback
func newSpeaker(cfg *config.Config, rt *appEnv) *speech.Adapter {
	local := speech.NewLocalSynthesizer(cfg.Speech, nil, rt.logger)
	player := speech.NewPlayer(cfg.Speech.Player, nil, rt.logger)
	return speech.NewAdapter(rt.client, player, local, rt.om, rt.logger)
}

// newDevice picks the capture device from the media configuration
func newDevice(cfg config.MediaConfig) media.Device {
	if cfg.Device == "file" {
		return media.NewFileDevice(cfg.Answers, cfg.MIMEType, cfg.ChunkSize)
	}
	return media.NewCommandDevice(cfg.Command, cfg.MIMEType, cfg.ChunkSize)
}
