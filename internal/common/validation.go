package common

import (
	"fmt"
	"slices"
	"strings"
	"unicode"

	"interviewroom/internal/errors"
)

const maxSessionIDLength = 128

// ValidateOutputFormat checks format against the configured formats. An empty list allows any format.
func ValidateOutputFormat(format string, supportedFormats []string) error {
	if len(supportedFormats) == 0 || slices.Contains(supportedFormats, format) {
		return nil
	}
	return errors.NewValidationError(errors.ErrCodeInvalidFormat,
		fmt.Sprintf("unsupported output format '%s', supported formats: %s", format, strings.Join(supportedFormats, ", ")), nil)
}

// ValidateSessionID rejects IDs that cannot be sent to the service or placed in a report URL
func ValidateSessionID(sessionID string) error {
	switch {
	case sessionID == "":
		return errors.NewValidationError(errors.ErrCodeInvalidRequest, "session ID must not be empty", nil)
	case len(sessionID) > maxSessionIDLength:
		return errors.NewValidationError(errors.ErrCodeInvalidRequest,
			fmt.Sprintf("session ID is longer than %d characters", maxSessionIDLength), nil)
	}

	for _, r := range sessionID {
		if unicode.IsSpace(r) || unicode.IsControl(r) || strings.ContainsRune("/?#%", r) {
			return errors.NewValidationError(errors.ErrCodeInvalidRequest,
				fmt.Sprintf("session ID %q contains %q", sessionID, r), nil)
		}
	}
	return nil
}
