// Package errors defines the coded application error used across transports,
// along with retry and circuit-breaker helpers for outbound calls.
package errors

import "fmt"

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

const (
	CodeValidation  = "E100"
	CodeDatabase    = "E200"
	CodeExternalAPI = "E300"
	CodeState       = "E400"
	CodeRateLimit   = "E500"
	CodeInternal    = "E600"
)

// Translation keys for user-facing error text.
const (
	KeyInvalidRequest = "invalid_request"
	KeyErrorGeneric   = "error_generic"
	KeyRateLimited    = "rate_limited"
	KeyPlanIncomplete = "error_plan_incomplete"
)

// AppError carries a stable code, an internal message and the translation key
// of the text shown to the end user.
type AppError struct {
	Code      string
	Message   string
	UserKey   string
	Severity  Severity
	Retryable bool
	cause     error
}

func (e *AppError) Error() string {
	if e == nil {
		return ""
	}

	return e.Message
}

func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}

	return e.cause
}

func (e *AppError) Cause() error {
	return e.Unwrap()
}

// Is matches another *AppError by code so sentinel values work with errors.Is.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok || e == nil || t == nil {
		return false
	}
	return e.Code == t.Code && (t.Message == "" || e.Message == t.Message)
}

func NewValidationError(msg string) *AppError {
	return &AppError{
		Code:      CodeValidation,
		Message:   msg,
		UserKey:   KeyInvalidRequest,
		Severity:  SeverityLow,
		Retryable: false,
	}
}

func NewDatabaseError(cause error) *AppError {
	var underlyingMsg string
	if cause != nil {
		underlyingMsg = cause.Error()
	}

	return &AppError{
		Code:      CodeDatabase,
		Message:   fmt.Sprintf("database error: %s", underlyingMsg),
		UserKey:   KeyErrorGeneric,
		Severity:  SeverityHigh,
		Retryable: true,
		cause:     cause,
	}
}

func NewExternalAPIError(apiName string, cause error) *AppError {
	return &AppError{
		Code:      CodeExternalAPI,
		Message:   fmt.Sprintf("external API error: %s", apiName),
		UserKey:   KeyErrorGeneric,
		Severity:  SeverityMedium,
		Retryable: true,
		cause:     cause,
	}
}

func NewStateError(msg string) *AppError {
	return &AppError{
		Code:      CodeState,
		Message:   msg,
		UserKey:   KeyErrorGeneric,
		Severity:  SeverityMedium,
		Retryable: false,
	}
}

func NewRateLimitError(retryAfter int) *AppError {
	return &AppError{
		Code:      CodeRateLimit,
		Message:   fmt.Sprintf("rate limit exceeded: retry after %d seconds", retryAfter),
		UserKey:   KeyRateLimited,
		Severity:  SeverityLow,
		Retryable: false,
	}
}

// NewInternalError wraps an unexpected failure of the conversation engine or plan generation.
func NewInternalError(msg string, cause error) *AppError {
	if cause != nil {
		msg = fmt.Sprintf("%s: %s", msg, cause.Error())
	}

	return &AppError{
		Code:      CodeInternal,
		Message:   msg,
		UserKey:   KeyErrorGeneric,
		Severity:  SeverityHigh,
		Retryable: false,
		cause:     cause,
	}
}

// NewIncompletePlanError reports a finished flow whose weight, height or age
// was skipped. The user is told to start again rather than retry.
func NewIncompletePlanError(cause error) *AppError {
	msg := "generate plan: incomplete metrics"
	if cause != nil {
		msg = fmt.Sprintf("%s: %s", msg, cause.Error())
	}

	return &AppError{
		Code:      CodeInternal,
		Message:   msg,
		UserKey:   KeyPlanIncomplete,
		Severity:  SeverityMedium,
		Retryable: false,
		cause:     cause,
	}
}

// CodeOf returns the code of the first AppError in err's chain, or CodeInternal.
func CodeOf(err error) string {
	var appErr *AppError
	if As(err, &appErr) && appErr != nil {
		return appErr.Code
	}
	return CodeInternal
}
