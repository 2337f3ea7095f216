package util

import (
	"errors"
	"fmt"
	"strings"

	"github.com/wordsonphone/phrasecurator/pkg/phrases"
)

// ErrorWithSuggestion wraps an error with a helpful suggestion
type ErrorWithSuggestion struct {
	Err        error
	Suggestion string
}

func (e *ErrorWithSuggestion) Error() string {
	return fmt.Sprintf("%v\nSuggestion: %s", e.Err, e.Suggestion)
}

func (e *ErrorWithSuggestion) Unwrap() error {
	return e.Err
}

// WrapErrorWithSuggestion creates an error with a helpful suggestion
func WrapErrorWithSuggestion(err error, suggestion string) error {
	if err == nil {
		return nil
	}
	return &ErrorWithSuggestion{
		Err:        err,
		Suggestion: suggestion,
	}
}

// GetErrorSuggestion returns helpful suggestions based on common error patterns
func GetErrorSuggestion(err error) string {
	if err == nil {
		return ""
	}

	if errors.Is(err, phrases.ErrNotFound) {
		return "Run 'phrasecurator quota status' to list known categories"
	}
	if errors.Is(err, phrases.ErrInvalidQuota) {
		return "Quotas must be whole numbers of zero or more. Use 0 to freeze a category"
	}

	errStr := err.Error()

	// Database errors
	if strings.Contains(errStr, "connection refused") || strings.Contains(errStr, "no route to host") {
		return "Make sure Postgres is running and PHRASECURATOR_DATABASE_URL points at it"
	}
	if strings.Contains(errStr, "another phrasecurator process") {
		return "Wait for the running import or maintenance command to finish, then retry"
	}
	if strings.Contains(errStr, "relation") && strings.Contains(errStr, "does not exist") {
		return "The schema is missing. Run 'phrasecurator migrate' first"
	}
	if strings.Contains(errStr, "database is locked") {
		return "The score cache is in use by another process. Retry or disable the cache with PHRASECURATOR_CACHE_ENABLED=false"
	}

	// File errors
	if strings.Contains(errStr, "no such file or directory") {
		return "Check the file path and ensure the file exists"
	}
	if strings.Contains(errStr, "permission denied") {
		return "Check file permissions or try running with appropriate privileges"
	}

	// Input errors
	if strings.Contains(errStr, "invalid character") || strings.Contains(errStr, "cannot unmarshal") {
		return "The input must be JSON: either [{\"phrase\", \"category\"}] or {\"category\", \"phrases\": []}"
	}

	// Network errors
	if strings.Contains(errStr, "timeout") || strings.Contains(errStr, "context deadline exceeded") {
		return "The operation timed out. External lookups degrade to zero, so retry or raise scoring.timeout_seconds"
	}

	// Configuration errors
	if strings.Contains(errStr, "failed to load config") || strings.Contains(errStr, "invalid configuration") {
		return "Check the configuration file is valid JSON or YAML. Use -config to specify a custom path"
	}

	return "Check the error message above and ensure all requirements are met"
}

// FormatError formats an error with suggestions for better user experience
func FormatError(err error) string {
	if err == nil {
		return ""
	}

	var withSuggestion *ErrorWithSuggestion
	if errors.As(err, &withSuggestion) {
		return "Error: " + err.Error()
	}

	suggestion := GetErrorSuggestion(err)
	if suggestion != "" {
		return fmt.Sprintf("Error: %v\nSuggestion: %s", err, suggestion)
	}

	return fmt.Sprintf("Error: %v", err)
}
