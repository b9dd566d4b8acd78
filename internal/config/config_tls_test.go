package config

import (
	"strings"
	"testing"
)

func TestValidateTLSMode(t *testing.T) {
	tests := []struct {
		name        string
		tls         TLSConfig
		expectError bool
		errorMsg    string
	}{
		{
			name: "disabled mode",
			tls:  TLSConfig{Mode: "disabled"},
		},
		{
			name: "custom mode with CA file",
			tls:  TLSConfig{Mode: "custom", CAFile: "/etc/ssl/service-ca.pem"},
		},
		{
			name: "custom mode with insecure skip verify",
			tls:  TLSConfig{Mode: "custom", InsecureSkipVerify: true},
		},
		{
			name:        "custom mode without CA",
			tls:         TLSConfig{Mode: "custom"},
			expectError: true,
			errorMsg:    "custom TLS mode requires a CA",
		},
		{
			name:        "custom mode with duplicate CA sources",
			tls:         TLSConfig{Mode: "custom", CAFile: "ca.pem", CAContent: "pem"},
			expectError: true,
			errorMsg:    "cannot specify both caFile and caContent",
		},
		{
			name: "mutual mode with files",
			tls:  TLSConfig{Mode: "mutual", CertFile: "client.pem", KeyFile: "client-key.pem"},
		},
		{
			name: "mutual mode with content",
			tls:  TLSConfig{Mode: "mutual", CertContent: "cert", KeyContent: "key", CAContent: "ca"},
		},
		{
			name:        "mutual mode missing key",
			tls:         TLSConfig{Mode: "mutual", CertFile: "client.pem"},
			expectError: true,
			errorMsg:    "client certificate and key are required",
		},
		{
			name:        "mutual mode duplicate cert sources",
			tls:         TLSConfig{Mode: "mutual", CertFile: "client.pem", CertContent: "cert", KeyFile: "key.pem"},
			expectError: true,
			errorMsg:    "cannot specify both certFile and certContent",
		},
		{
			name:        "mutual mode duplicate key sources",
			tls:         TLSConfig{Mode: "mutual", CertFile: "client.pem", KeyFile: "key.pem", KeyContent: "key"},
			expectError: true,
			errorMsg:    "cannot specify both keyFile and keyContent",
		},
		{
			name:        "unknown mode",
			tls:         TLSConfig{Mode: "server"},
			expectError: true,
			errorMsg:    "invalid TLS mode: server",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateTLSMode(tt.tls)
			if tt.expectError {
				if err == nil {
					t.Errorf("Expected error but got none")
					return
				}
				if !strings.Contains(err.Error(), tt.errorMsg) {
					t.Errorf("Expected error to contain '%s', got '%s'", tt.errorMsg, err.Error())
				}
				return
			}
			if err != nil {
				t.Errorf("Expected no error but got: %v", err)
			}
		})
	}
}

func TestValidateTLSVersion(t *testing.T) {
	tests := []struct {
		version     string
		expectError bool
	}{
		{version: ""},
		{version: "1.2"},
		{version: "1.3"},
		{version: "1.1", expectError: true},
		{version: "tls13", expectError: true},
	}

	for _, tt := range tests {
		t.Run("version_"+tt.version, func(t *testing.T) {
			err := validateTLSVersion(TLSConfig{MinVersion: tt.version})
			if tt.expectError && err == nil {
				t.Errorf("Expected error for version %q", tt.version)
			}
			if !tt.expectError && err != nil {
				t.Errorf("Expected no error for version %q, got %v", tt.version, err)
			}
		})
	}
}

func TestValidateTLSConfigIntegration(t *testing.T) {
	cfg := validConfig()
	cfg.Service.TLS = TLSConfig{Mode: "mutual", CertFile: "c.pem", KeyFile: "k.pem", MinVersion: "1.3"}
	if err := cfg.ValidateTLSConfig(); err != nil {
		t.Errorf("Expected valid mutual TLS config, got %v", err)
	}

	cfg.Service.TLS.MinVersion = "1.0"
	if err := cfg.ValidateTLSConfig(); err == nil {
		t.Error("Expected error for TLS 1.0")
	}
}
