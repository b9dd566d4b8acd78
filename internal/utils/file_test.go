package utils

import (
	"os"
	"path/filepath"
	"testing"
)

func TestExtensionForMIMEType(t *testing.T) {
	tests := []struct {
		mime     string
		expected string
	}{
		{"audio/webm", "webm"},
		{"audio/webm;codecs=opus", "webm"},
		{"audio/wav", "wav"},
		{"audio/x-wav", "wav"},
		{"Audio/MPEG", "mp3"},
		{"audio/mp3", "mp3"},
		{"audio/ogg; codecs=vorbis", "ogg"},
		{"audio/x-m4a", "m4a"},
		{"application/octet-stream", "bin"},
		{"", "bin"},
	}

	for _, tt := range tests {
		t.Run(tt.mime, func(t *testing.T) {
			if got := ExtensionForMIMEType(tt.mime); got != tt.expected {
				t.Errorf("ExtensionForMIMEType(%q) = %q, want %q", tt.mime, got, tt.expected)
			}
		})
	}
}

func TestMIMETypeForFile(t *testing.T) {
	if got := MIMETypeForFile("answers/01.WAV"); got != "audio/wav" {
		t.Errorf("Expected audio/wav, got %q", got)
	}
	if got := MIMETypeForFile("notes.txt"); got != "" {
		t.Errorf("Expected empty type for text file, got %q", got)
	}
	if !IsAudioFile("a.webm") || IsAudioFile("a.md") {
		t.Error("IsAudioFile returned unexpected result")
	}
}

func TestFormatFileSize(t *testing.T) {
	tests := []struct {
		size     int64
		expected string
	}{
		{0, "0 B"},
		{1023, "1023 B"},
		{1024, "1.0 KB"},
		{1536, "1.5 KB"},
		{25 * 1024 * 1024, "25.0 MB"},
	}

	for _, tt := range tests {
		if got := FormatFileSize(tt.size); got != tt.expected {
			t.Errorf("FormatFileSize(%d) = %q, want %q", tt.size, got, tt.expected)
		}
	}
}

func TestValidateInputFile(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "answer.wav")
	if err := os.WriteFile(file, []byte("RIFF"), 0o600); err != nil {
		t.Fatal(err)
	}

	if err := ValidateInputFile(file); err != nil {
		t.Errorf("Expected valid file, got %v", err)
	}
	if err := ValidateInputFile(""); err == nil {
		t.Error("Expected error for empty filename")
	}
	if err := ValidateInputFile(dir); err == nil {
		t.Error("Expected error for directory")
	}
	if err := ValidateInputFile(filepath.Join(dir, "missing.wav")); err == nil {
		t.Error("Expected error for missing file")
	}
}

func TestValidateOutputFileCreatesDirectory(t *testing.T) {
	target := filepath.Join(t.TempDir(), "exports", "nested", "transcript.json")
	if err := ValidateOutputFile(target); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if _, err := os.Stat(filepath.Dir(target)); err != nil {
		t.Errorf("Expected directory to be created: %v", err)
	}
	if err := ValidateOutputFile(""); err != nil {
		t.Errorf("Expected stdout target to be valid, got %v", err)
	}
}
