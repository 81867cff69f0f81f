package errors

import "errors"

var (
	ErrMonitorNotFound = errors.New("monitor not found")
	ErrAlertNotFound   = errors.New("alert not found")
	ErrDuplicateAlert  = errors.New("duplicate alert suppressed")

	ErrQuotaExceeded   = errors.New("search API quota exceeded or key rejected")
	ErrInvalidQuery    = errors.New("search API rejected the query")
	ErrMissingAPIKey   = errors.New("search and analyzer API keys are required")
	ErrInvalidStatus   = errors.New("invalid alert status transition")
	ErrMonitorInactive = errors.New("monitor is inactive")
)

// Retryable reports whether a scan failure is worth another attempt.
// Quota/auth rejections and missing entities never recover within a cycle;
// everything else (network errors, timeouts, 5xx) is treated as transient.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	switch {
	case errors.Is(err, ErrQuotaExceeded),
		errors.Is(err, ErrInvalidQuery),
		errors.Is(err, ErrMonitorNotFound),
		errors.Is(err, ErrMonitorInactive):
		return false
	}
	return true
}
