package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ValidateInputFile checks if a file exists and is readable
func ValidateInputFile(filename string) error {
	if filename == "" {
		return fmt.Errorf("filename cannot be empty")
	}

	info, err := os.Stat(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("file does not exist: %s", filename)
		}
		return fmt.Errorf("cannot access file %s: %w", filename, err)
	}

	if info.IsDir() {
		return fmt.Errorf("path is a directory, not a file: %s", filename)
	}

	file, err := os.Open(filename)
	if err != nil {
		return fmt.Errorf("cannot read file %s: %w", filename, err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("failed to close file %s: %w", filename, err)
	}

	return nil
}

// ValidateOutputFile checks if the output file path is valid, creating its directory if needed
func ValidateOutputFile(filename string) error {
	if filename == "" {
		return nil // stdout is valid
	}

	dir := filepath.Dir(filename)
	if dir != "." {
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			if err := os.MkdirAll(dir, 0750); err != nil {
				return fmt.Errorf("cannot create directory %s: %w", dir, err)
			}
		}
	}

	return nil
}

// GetFileExtension returns the file extension in lowercase
func GetFileExtension(filename string) string {
	return strings.ToLower(filepath.Ext(filename))
}

var audioTypes = []struct {
	ext  string
	mime string
}{
	{".webm", "audio/webm"},
	{".wav", "audio/wav"},
	{".ogg", "audio/ogg"},
	{".mp3", "audio/mpeg"},
	{".m4a", "audio/mp4"},
	{".flac", "audio/flac"},
}

// IsAudioFile checks if the file has a known audio extension
func IsAudioFile(filename string) bool {
	return MIMETypeForFile(filename) != ""
}

// MIMETypeForFile returns the audio MIME type for filename's extension, or "" if unknown
func MIMETypeForFile(filename string) string {
	ext := GetFileExtension(filename)
	for _, t := range audioTypes {
		if t.ext == ext {
			return t.mime
		}
	}
	return ""
}

// ExtensionForMIMEType returns the file extension, without the dot, for an audio MIME type.
// Parameters such as ";codecs=opus" are ignored. Unknown types map to "bin".
func ExtensionForMIMEType(mimeType string) string {
	base, _, _ := strings.Cut(mimeType, ";")
	base = strings.ToLower(strings.TrimSpace(base))
	switch base {
	case "audio/x-wav", "audio/wave", "audio/vnd.wave":
		base = "audio/wav"
	case "audio/mp3":
		base = "audio/mpeg"
	case "audio/x-m4a":
		base = "audio/mp4"
	}
	for _, t := range audioTypes {
		if t.mime == base {
			return strings.TrimPrefix(t.ext, ".")
		}
	}
	return "bin"
}

// FormatFileSize returns a human-readable file size
func FormatFileSize(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}
	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(size)/float64(div), "KMGTPE"[exp])
}
