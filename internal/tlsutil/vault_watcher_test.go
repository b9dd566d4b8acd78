package tlsutil

import (
	stderrors "errors"
	"os"
	"sync"
	"testing"
	"time"

	"interviewroom/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockVaultClient serves one secret whose version can be bumped by the test
type mockVaultClient struct {
	mu     sync.Mutex
	secret *config.VaultSecret
	err    error
}

func (m *mockVaultClient) GetSecretV2(path string) (*config.VaultSecret, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	return m.secret, nil
}

func (m *mockVaultClient) set(version int64, data map[string]any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.secret = &config.VaultSecret{Data: data, Version: version}
}

func TestVaultWatcherReportsNewVersionOnly(t *testing.T) {
	client := &mockVaultClient{}
	client.set(1, map[string]any{"cert": "c1", "key": "k1"})

	vw := NewVaultWatcher(client, "secret/data/tls", time.Minute, nil, nil)
	var got []*CertificateData
	vw.reloadCallback = func(data *CertificateData, err error) {
		require.NoError(t, err)
		got = append(got, data)
	}
	require.NoError(t, vw.Start())
	defer func() { _ = vw.Stop() }()

	vw.poll()
	assert.Empty(t, got, "startup version is already applied")

	client.set(2, map[string]any{"cert": "c2", "key": "k2", "ca": "ca2"})
	vw.poll()
	require.Len(t, got, 1)
	assert.Equal(t, &CertificateData{CertContent: "c2", KeyContent: "k2", CAContent: "ca2"}, got[0])
	assert.Equal(t, int64(2), vw.Status()["last_version"])

	vw.poll()
	assert.Len(t, got, 1)
}

func TestVaultWatcherEmptySecretIsError(t *testing.T) {
	client := &mockVaultClient{}
	client.set(1, map[string]any{})

	var gotErr error
	vw := NewVaultWatcher(client, "secret/data/tls", time.Minute, func(data *CertificateData, err error) {
		gotErr = err
	}, nil)
	require.NoError(t, vw.Start())
	defer func() { _ = vw.Stop() }()

	client.set(2, map[string]any{"unrelated": "x"})
	vw.poll()
	assert.Error(t, gotErr)
}

func TestVaultWatcherStartErrors(t *testing.T) {
	client := &mockVaultClient{err: stderrors.New("permission denied")}
	vw := NewVaultWatcher(client, "secret/data/tls", time.Minute, func(*CertificateData, error) {}, nil)
	assert.Error(t, vw.Start())
	assert.False(t, vw.Status()["running"].(bool))

	vw = NewVaultWatcher(client, "secret/data/tls", 0, func(*CertificateData, error) {}, nil)
	assert.Error(t, vw.Start())

	var nilWatcher *VaultWatcher
	assert.NoError(t, nilWatcher.Stop())
}

func TestWatchVaultRotatesClientCertificate(t *testing.T) {
	dir := t.TempDir()
	certPath, keyPath := writeSelfSigned(t, dir, "before-rotation")
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

	client := &mockVaultClient{}
	client.set(3, map[string]any{"cert": string(certPEM), "key": string(keyPEM)})

	vw, err := WatchVault(ct, client, "secret/data/tls", time.Hour, nil)
	require.NoError(t, err)
	defer func() { _ = vw.Stop() }()

	rotatedDir := t.TempDir()
	newCert, newKey := writeSelfSigned(t, rotatedDir, "after-rotation")
	newCertPEM, err := os.ReadFile(newCert)
	require.NoError(t, err)
	newKeyPEM, err := os.ReadFile(newKey)
	require.NoError(t, err)

	client.set(4, map[string]any{"cert": string(newCertPEM), "key": string(newKeyPEM)})
	vw.poll()

	cert, err := ct.Certificate()
	require.NoError(t, err)
	assert.Equal(t, "after-rotation", leafCommonName(t, cert))

	// Broken material is rejected and the rotated certificate stays
	client.set(5, map[string]any{"cert": "not a pem", "key": "nope"})
	vw.poll()
	cert, err = ct.Certificate()
	require.NoError(t, err)
	assert.Equal(t, "after-rotation", leafCommonName(t, cert))
}
