package tlsutil

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"interviewroom/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeSelfSigned writes a self-signed certificate and key into dir and returns their paths
func writeSelfSigned(t *testing.T, dir, commonName string) (certPath, keyPath string) {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	template := &x509.Certificate{
		SerialNumber:          big.NewInt(time.Now().UnixNano()),
		Subject:               pkix.Name{CommonName: commonName},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(time.Hour),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth},
		BasicConstraintsValid: true,
		IsCA:                  true,
	}
	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	require.NoError(t, err)

	keyDER, err := x509.MarshalECPrivateKey(key)
	require.NoError(t, err)

	certPath = filepath.Join(dir, "client.pem")
	keyPath = filepath.Join(dir, "client-key.pem")
	require.NoError(t, os.WriteFile(certPath, pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}), 0o600))
	require.NoError(t, os.WriteFile(keyPath, pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER}), 0o600))
	return certPath, keyPath
}

func leafCommonName(t *testing.T, cert *tls.Certificate) string {
	t.Helper()
	parsed, err := x509.ParseCertificate(cert.Certificate[0])
	require.NoError(t, err)
	return parsed.Subject.CommonName
}

func TestNewClientTLSDisabled(t *testing.T) {
	ct, err := NewClientTLS(config.TLSConfig{Mode: "disabled"}, nil)
	require.NoError(t, err)
	assert.Nil(t, ct)
	assert.NoError(t, ct.Close())
}

func TestNewClientTLSMutualFromFiles(t *testing.T) {
	dir := t.TempDir()
	certPath, keyPath := writeSelfSigned(t, dir, "candidate-1")

	ct, err := NewClientTLS(config.TLSConfig{
		Mode:       "mutual",
		CertFile:   certPath,
		KeyFile:    keyPath,
		CAFile:     certPath,
		MinVersion: "1.3",
		ServerName: "interview.example.com",
	}, nil)
	require.NoError(t, err)

	tlsConfig := ct.Config()
	assert.Equal(t, uint16(tls.VersionTLS13), tlsConfig.MinVersion)
	assert.Equal(t, "interview.example.com", tlsConfig.ServerName)
	assert.NotNil(t, tlsConfig.RootCAs)
	require.NotNil(t, tlsConfig.GetClientCertificate)

	cert, err := tlsConfig.GetClientCertificate(&tls.CertificateRequestInfo{})
	require.NoError(t, err)
	assert.Equal(t, "candidate-1", leafCommonName(t, cert))
}

func TestNewClientTLSFromContent(t *testing.T) {
	dir := t.TempDir()
	certPath, keyPath := writeSelfSigned(t, dir, "from-vault")
	certPEM, err := os.ReadFile(certPath)
	require.NoError(t, err)
	keyPEM, err := os.ReadFile(keyPath)
	require.NoError(t, err)

	ct, err := NewClientTLS(config.TLSConfig{
		Mode:        "mutual",
		CertContent: string(certPEM),
		KeyContent:  string(keyPEM),
	}, nil)
	require.NoError(t, err)

	cert, err := ct.Certificate()
	require.NoError(t, err)
	assert.Equal(t, "from-vault", leafCommonName(t, cert))
	assert.Nil(t, ct.Config().RootCAs, "system roots without a CA")
}

func TestNewClientTLSErrors(t *testing.T) {
	dir := t.TempDir()
	badCA := filepath.Join(dir, "ca.pem")
	require.NoError(t, os.WriteFile(badCA, []byte("not a certificate"), 0o600))

	tests := []struct {
		name string
		cfg  config.TLSConfig
	}{
		{name: "missing key pair", cfg: config.TLSConfig{Mode: "mutual", CertFile: filepath.Join(dir, "nope.pem"), KeyFile: filepath.Join(dir, "nope-key.pem")}},
		{name: "invalid CA", cfg: config.TLSConfig{Mode: "custom", CAFile: badCA}},
		{name: "missing CA", cfg: config.TLSConfig{Mode: "custom", CAFile: filepath.Join(dir, "missing.pem")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewClientTLS(tt.cfg, nil)
			assert.Error(t, err)
		})
	}
}

func TestReloadKeepsPreviousCertificateOnFailure(t *testing.T) {
	dir := t.TempDir()
	certPath, keyPath := writeSelfSigned(t, dir, "first")

	ct, err := NewClientTLS(config.TLSConfig{Mode: "mutual", CertFile: certPath, KeyFile: keyPath}, nil)
	require.NoError(t, err)

	var failures atomic.Int32
	ct.AddReloadCallback(func(success bool, err error) {
		if !success {
			failures.Add(1)
		}
	})

	require.NoError(t, os.WriteFile(certPath, []byte("garbage"), 0o600))
	assert.Error(t, ct.Reload())
	assert.Equal(t, int32(1), failures.Load())

	cert, err := ct.Certificate()
	require.NoError(t, err)
	assert.Equal(t, "first", leafCommonName(t, cert))
}

func TestWatchReloadsChangedCertificate(t *testing.T) {
	dir := t.TempDir()
	certPath, keyPath := writeSelfSigned(t, dir, "before")

	ct, err := NewClientTLS(config.TLSConfig{
		Mode:     "mutual",
		CertFile: certPath,
		KeyFile:  keyPath,
		AutoReload: config.AutoReloadConfig{
			Enabled:       true,
			DebounceDelay: 20 * time.Millisecond,
		},
	}, nil)
	require.NoError(t, err)

	reloaded := make(chan bool, 4)
	ct.AddReloadCallback(func(success bool, err error) { reloaded <- success })

	require.NoError(t, ct.Watch())
	t.Cleanup(func() { _ = ct.Close() })

	// Ensure a distinct mod time on coarse-grained filesystems
	time.Sleep(50 * time.Millisecond)
	writeSelfSigned(t, dir, "after")

	deadline := time.After(5 * time.Second)
	for {
		select {
		case ok := <-reloaded:
			if !ok {
				continue // key and cert written separately, a half-written pair may fail once
			}
			cert, err := ct.Certificate()
			require.NoError(t, err)
			if leafCommonName(t, cert) == "after" {
				return
			}
		case <-deadline:
			t.Fatal("certificate was not reloaded")
		}
	}
}
