package security

import (
	"fmt"
	"regexp"
	"strings"
)

// ErrorCode is the machine-readable code in an error body.
type ErrorCode string

const (
	ErrCodeInternal     ErrorCode = "INTERNAL_ERROR"
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
	ErrCodeNotFound     ErrorCode = "NOT_FOUND"
	ErrCodeUnauthorized ErrorCode = "UNAUTHORIZED"
	ErrCodeForbidden    ErrorCode = "FORBIDDEN"
	ErrCodeRateLimit    ErrorCode = "RATE_LIMIT"
	ErrCodeTimeout      ErrorCode = "TIMEOUT"
	ErrCodeValidation   ErrorCode = "VALIDATION_ERROR"
	ErrCodeUnavailable  ErrorCode = "UNAVAILABLE"
)

// SecureError is an error body safe to return to clients.
type SecureError struct {
	Code    ErrorCode      `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// Error implements the error interface
func (e *SecureError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewSecureError builds a client error with a fixed message.
func NewSecureError(code ErrorCode, message string) *SecureError {
	return &SecureError{Code: code, Message: message}
}

// SanitizeError converts an internal error into a generic client error. In
// debug mode a scrubbed copy of the cause is attached.
func SanitizeError(err error, debugMode bool) *SecureError {
	return SanitizeErrorWithCode(err, ErrCodeInternal, "An internal error occurred", debugMode)
}

// SanitizeErrorWithCode is SanitizeError with a caller-chosen code and message.
func SanitizeErrorWithCode(err error, code ErrorCode, message string, debugMode bool) *SecureError {
	if err == nil {
		return nil
	}
	secureErr := &SecureError{Code: code, Message: message}
	if debugMode {
		secureErr.Details = map[string]any{"error": sanitizeErrorMessage(err.Error())}
	}
	return secureErr
}

// SanitizeLogMessage strips credentials from a message bound for logs.
func SanitizeLogMessage(msg string) string {
	return removeSecretPatterns(msg)
}

// sanitizeErrorMessage removes sensitive information from error messages
func sanitizeErrorMessage(msg string) string {
	// Remove file paths
	msg = removeFilePaths(msg)

	// Remove IP addresses
	msg = removeIPAddresses(msg)

	// Remove potential secrets (patterns like API keys)
	msg = removeSecretPatterns(msg)

	// Remove stack traces
	msg = removeStackTraces(msg)

	return msg
}

// removeFilePaths removes file system paths from error messages
func removeFilePaths(msg string) string {
	// Remove Unix-style paths
	msg = strings.ReplaceAll(msg, "/Users/", "/home/")
	msg = strings.ReplaceAll(msg, "/home/", "[PATH]/")
	msg = strings.ReplaceAll(msg, "/var/", "[PATH]/")
	msg = strings.ReplaceAll(msg, "/etc/", "[PATH]/")
	msg = strings.ReplaceAll(msg, "/opt/", "[PATH]/")
	msg = strings.ReplaceAll(msg, "/tmp/", "[PATH]/")

	// Remove Windows-style paths
	for _, drive := range []string{"C:", "D:", "E:", "F:"} {
		if strings.Contains(msg, drive) {
			msg = strings.ReplaceAll(msg, drive+"\\", "[PATH]\\")
		}
	}

	return msg
}

// removeIPAddresses removes IP addresses from messages
func removeIPAddresses(msg string) string {
	// Simple IP address pattern removal
	parts := strings.Fields(msg)
	var cleaned []string

	for _, part := range parts {
		// Check if it looks like an IP address
		if strings.Count(part, ".") == 3 || strings.Count(part, ":") > 2 {
			// Simple heuristic: if it has 3 dots or multiple colons, might be an IP
			octets := strings.Split(part, ".")
			if len(octets) == 4 {
				cleaned = append(cleaned, "[IP_ADDRESS]")
				continue
			}
		}
		cleaned = append(cleaned, part)
	}

	return strings.Join(cleaned, " ")
}

// removeSecretPatterns removes patterns that look like API keys or secrets
func removeSecretPatterns(msg string) string {
	// Remove things that look like API keys
	patterns := []struct {
		prefix string
		length int
	}{
		{"sk-", 32},
		{"api_key=", 20},
		{"apiKey=", 20},
		{"token=", 20},
		{"Bearer ", 20},
	}

	for _, pattern := range patterns {
		idx := strings.Index(msg, pattern.prefix)
		if idx != -1 {
			endIdx := idx + len(pattern.prefix) + pattern.length
			if endIdx > len(msg) {
				endIdx = len(msg)
			}
			msg = msg[:idx] + "[REDACTED]" + msg[endIdx:]
		}
	}

	return msg
}

// removeStackTraces removes Go stack traces from error messages
func removeStackTraces(msg string) string {
	msg = goroutinePattern.ReplaceAllString(msg, "[STACK_TRACE_REMOVED]")
	msg = fileLinePattern.ReplaceAllString(msg, "[FILE:LINE]")
	msg = addrPattern.ReplaceAllString(msg, "[ADDR]")
	msg = panicPattern.ReplaceAllString(msg, "panic: [DETAILS_REMOVED]")
	return msg
}

// MaskSecret masks a secret for logging purposes
func MaskSecret(secret string) string {
	if secret == "" {
		return ""
	}

	if len(secret) <= 8 {
		return "****"
	}

	return secret[:4] + "****" + secret[len(secret)-4:]
}

var (
	goroutinePattern = regexp.MustCompile(`goroutine \d+ \[[^\]]+\]:[\s\S]*?(?:\n\n|\z)`)
	fileLinePattern  = regexp.MustCompile(`\S+\.go:\d+`)
	addrPattern      = regexp.MustCompile(`0x[0-9a-fA-F]+`)
	panicPattern     = regexp.MustCompile(`panic:.*`)
)
