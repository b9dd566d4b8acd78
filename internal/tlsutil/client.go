// Package tlsutil builds the client TLS configuration used to reach the
// Interview Service and reloads the client certificate when its files change.
package tlsutil

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"sync"

	"interviewroom/internal/config"
	"interviewroom/internal/errors"
)

// ReloadCallback is notified after every reload attempt
type ReloadCallback func(success bool, err error)

// ClientTLS holds the current client certificate and CA pool
type ClientTLS struct {
	mu   sync.RWMutex
	cfg  config.TLSConfig
	cert *tls.Certificate
	pool *x509.CertPool

	watcher   *CertWatcher
	callbacks []ReloadCallback
	logger    *errors.Logger
}

// NewClientTLS loads the material described by cfg. It returns nil when TLS customization is disabled.
func NewClientTLS(cfg config.TLSConfig, logger *errors.Logger) (*ClientTLS, error) {
	if cfg.Mode == "" || cfg.Mode == "disabled" {
		return nil, nil
	}

	ct := &ClientTLS{cfg: cfg, logger: logger}
	if err := ct.load(); err != nil {
		return nil, err
	}
	return ct, nil
}

// AddReloadCallback registers fn to be called after each reload
func (ct *ClientTLS) AddReloadCallback(fn ReloadCallback) {
	ct.mu.Lock()
	defer ct.mu.Unlock()
	ct.callbacks = append(ct.callbacks, fn)
}

// Config returns a tls.Config that always presents the latest loaded client certificate
func (ct *ClientTLS) Config() *tls.Config {
	ct.mu.RLock()
	defer ct.mu.RUnlock()

	tlsConfig := &tls.Config{
		MinVersion:         minVersion(ct.cfg.MinVersion),
		ServerName:         ct.cfg.ServerName,
		InsecureSkipVerify: ct.cfg.InsecureSkipVerify, // #nosec G402 -- opt-in for development
		RootCAs:            ct.pool,
	}
	if ct.cfg.Mode == "mutual" {
		tlsConfig.GetClientCertificate = func(*tls.CertificateRequestInfo) (*tls.Certificate, error) {
			return ct.Certificate()
		}
	}
	return tlsConfig
}

// Certificate returns the current client certificate
func (ct *ClientTLS) Certificate() (*tls.Certificate, error) {
	ct.mu.RLock()
	defer ct.mu.RUnlock()
	if ct.cert == nil {
		return nil, fmt.Errorf("no client certificate loaded")
	}
	return ct.cert, nil
}

// Reload re-reads certificate files. The previous certificate stays in use if reading fails.
func (ct *ClientTLS) Reload() error {
	err := ct.load()

	ct.mu.RLock()
	callbacks := append([]ReloadCallback(nil), ct.callbacks...)
	ct.mu.RUnlock()

	if err != nil {
		ct.logger.LogError(err, "Failed to reload client TLS material")
	} else {
		ct.logger.Info("Client TLS material reloaded")
	}
	for _, cb := range callbacks {
		cb(err == nil, err)
	}
	return err
}

// Watch starts reloading on file changes when auto reload is enabled and files are used
func (ct *ClientTLS) Watch() error {
	if !ct.cfg.AutoReload.Enabled {
		return nil
	}
	files := []string{ct.cfg.CertFile, ct.cfg.KeyFile, ct.cfg.CAFile}
	if ct.cfg.CertFile == "" && ct.cfg.KeyFile == "" && ct.cfg.CAFile == "" {
		return nil
	}

	watcher := NewCertWatcher(files, ct.cfg.AutoReload.DebounceDelay, func() { _ = ct.Reload() }, ct.logger)
	if err := watcher.Start(); err != nil {
		return err
	}

	ct.mu.Lock()
	ct.watcher = watcher
	ct.mu.Unlock()
	return nil
}

// Close stops the file watcher if one is running
func (ct *ClientTLS) Close() error {
	if ct == nil {
		return nil
	}
	ct.mu.Lock()
	watcher := ct.watcher
	ct.watcher = nil
	ct.mu.Unlock()

	if watcher == nil {
		return nil
	}
	return watcher.Stop()
}

// UpdateContent swaps in PEM material delivered out of band, e.g. rotated in
// Vault. Empty values keep the current material for that slot. On failure the
// previous material stays in use.
func (ct *ClientTLS) UpdateContent(certPEM, keyPEM, caPEM string) error {
	ct.mu.Lock()
	prev := ct.cfg
	if certPEM != "" && keyPEM != "" {
		ct.cfg.CertContent, ct.cfg.KeyContent = certPEM, keyPEM
	}
	if caPEM != "" {
		ct.cfg.CAContent = caPEM
	}
	ct.mu.Unlock()

	if err := ct.Reload(); err != nil {
		ct.mu.Lock()
		ct.cfg = prev
		ct.mu.Unlock()
		return err
	}
	return nil
}

func (ct *ClientTLS) load() error {
	ct.mu.RLock()
	cfg := ct.cfg
	ct.mu.RUnlock()

	var cert *tls.Certificate
	if cfg.Mode == "mutual" {
		loaded, err := loadClientCertificate(cfg)
		if err != nil {
			return err
		}
		cert = &loaded
	}

	pool, err := loadCAPool(cfg)
	if err != nil {
		return err
	}

	ct.mu.Lock()
	ct.cert = cert
	ct.pool = pool
	ct.mu.Unlock()
	return nil
}

// loadClientCertificate loads the client certificate from content or files
func loadClientCertificate(cfg config.TLSConfig) (tls.Certificate, error) {
	if cfg.CertContent != "" && cfg.KeyContent != "" {
		cert, err := tls.X509KeyPair([]byte(cfg.CertContent), []byte(cfg.KeyContent))
		if err != nil {
			return tls.Certificate{}, fmt.Errorf("failed to load client cert/key from content: %w", err)
		}
		return cert, nil
	}

	if cfg.CertFile != "" && cfg.KeyFile != "" {
		cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
		if err != nil {
			return tls.Certificate{}, fmt.Errorf("failed to load client cert/key from files: %w", err)
		}
		return cert, nil
	}

	return tls.Certificate{}, fmt.Errorf("client certificate and key are required for mutual TLS")
}

// loadCAPool returns nil (system roots) when no CA is configured
func loadCAPool(cfg config.TLSConfig) (*x509.CertPool, error) {
	var pem []byte
	switch {
	case cfg.CAContent != "":
		pem = []byte(cfg.CAContent)
	case cfg.CAFile != "":
		data, err := os.ReadFile(cfg.CAFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA file: %w", err)
		}
		pem = data
	default:
		return nil, nil
	}

	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("no valid CA certificates found")
	}
	return pool, nil
}

func minVersion(v string) uint16 {
	if v == "1.3" {
		return tls.VersionTLS13
	}
	return tls.VersionTLS12
}
