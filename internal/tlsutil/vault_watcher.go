package tlsutil

import (
	"fmt"
	"sync"
	"time"

	"interviewroom/internal/config"
	"interviewroom/internal/errors"
)

// SecretReader reads a KVv2 secret with its version
type SecretReader interface {
	GetSecretV2(path string) (*config.VaultSecret, error)
}

// CertificateData holds PEM material fetched from Vault
type CertificateData struct {
	CertContent string
	KeyContent  string
	CAContent   string
}

// VaultReloadCallback is called when new certificate data is available from Vault
type VaultReloadCallback func(data *CertificateData, err error)

// VaultWatcher polls a Vault secret and reports new certificate data whenever
// the secret version increases.
type VaultWatcher struct {
	mu sync.RWMutex

	client         SecretReader
	secretPath     string
	pollInterval   time.Duration
	reloadCallback VaultReloadCallback
	logger         *errors.Logger

	stopChan    chan struct{}
	done        chan struct{}
	running     bool
	lastVersion int64
}

// NewVaultWatcher creates a new VaultWatcher
func NewVaultWatcher(client SecretReader, secretPath string, pollInterval time.Duration, reloadCallback VaultReloadCallback, logger *errors.Logger) *VaultWatcher {
	return &VaultWatcher{
		client:         client,
		secretPath:     secretPath,
		pollInterval:   pollInterval,
		reloadCallback: reloadCallback,
		logger:         logger,
	}
}

// WatchVault keeps ct in sync with the certificate secret at path
func WatchVault(ct *ClientTLS, client SecretReader, path string, pollInterval time.Duration, logger *errors.Logger) (*VaultWatcher, error) {
	vw := NewVaultWatcher(client, path, pollInterval, func(data *CertificateData, err error) {
		if err != nil {
			return
		}
		if err := ct.UpdateContent(data.CertContent, data.KeyContent, data.CAContent); err != nil {
			logger.Warn("Rotated certificate from Vault rejected, keeping current one", "error", err.Error())
		}
	}, logger)
	if err := vw.Start(); err != nil {
		return nil, err
	}
	return vw, nil
}

// Start records the current secret version and begins polling
func (vw *VaultWatcher) Start() error {
	if vw.pollInterval <= 0 {
		return fmt.Errorf("vault poll interval must be positive")
	}

	vw.mu.Lock()
	defer vw.mu.Unlock()
	if vw.running {
		return fmt.Errorf("vault watcher is already running")
	}

	// The material at startup was applied with the config
	secret, err := vw.client.GetSecretV2(vw.secretPath)
	if err != nil {
		return fmt.Errorf("failed to read secret: %w", err)
	}
	vw.lastVersion = secret.Version

	vw.stopChan = make(chan struct{})
	vw.done = make(chan struct{})
	vw.running = true
	go vw.pollLoop(vw.stopChan, vw.done)

	vw.logger.Info("Vault watcher started",
		"secret_path", vw.secretPath,
		"poll_interval", vw.pollInterval,
		"version", vw.lastVersion)
	return nil
}

// Stop stops the Vault watcher and waits for the poll loop to exit
func (vw *VaultWatcher) Stop() error {
	if vw == nil {
		return nil
	}
	vw.mu.Lock()
	if !vw.running {
		vw.mu.Unlock()
		return nil
	}
	close(vw.stopChan)
	done := vw.done
	vw.running = false
	vw.mu.Unlock()

	<-done
	vw.logger.Info("Vault watcher stopped")
	return nil
}

func (vw *VaultWatcher) pollLoop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(vw.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			vw.poll()
		case <-stop:
			return
		}
	}
}

// poll fetches the secret once and reports it when its version moved forward
func (vw *VaultWatcher) poll() {
	secret, err := vw.client.GetSecretV2(vw.secretPath)
	if err != nil {
		vw.logger.LogError(err, "Failed to check Vault for updates", "secret_path", vw.secretPath)
		return
	}

	vw.mu.Lock()
	changed := secret.Version > vw.lastVersion
	if changed {
		vw.lastVersion = secret.Version
	}
	vw.mu.Unlock()
	if !changed {
		return
	}

	data := certificateData(secret)
	if data.CertContent == "" && data.KeyContent == "" && data.CAContent == "" {
		err := fmt.Errorf("secret %s version %d holds no certificate data", vw.secretPath, secret.Version)
		vw.logger.LogError(err, "Ignoring Vault secret update")
		vw.reloadCallback(nil, err)
		return
	}

	vw.logger.Info("Vault secret changed, reloading client certificate", "version", secret.Version)
	vw.reloadCallback(data, nil)
}

func certificateData(secret *config.VaultSecret) *CertificateData {
	data := &CertificateData{}
	if certContent, ok := secret.Data["cert"].(string); ok {
		data.CertContent = certContent
	}
	if keyContent, ok := secret.Data["key"].(string); ok {
		data.KeyContent = keyContent
	}
	if caContent, ok := secret.Data["ca"].(string); ok {
		data.CAContent = caContent
	}
	return data
}

// Status returns the current status of the VaultWatcher for diagnostics
func (vw *VaultWatcher) Status() map[string]any {
	vw.mu.RLock()
	defer vw.mu.RUnlock()
	return map[string]any{
		"running":       vw.running,
		"poll_interval": vw.pollInterval.String(),
		"secret_path":   vw.secretPath,
		"last_version":  vw.lastVersion,
	}
}
