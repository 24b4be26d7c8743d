// Package apierrors defines the error taxonomy shared by the REST, gRPC and
// WebSocket surfaces of the control plane.
package apierrors

import (
	"fmt"
	"net/http"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Kind tags an APIError with the category of failure it represents. Every
// transport maps a Kind to its own status vocabulary (HTTP status, gRPC
// code) from the same table.
type Kind string

const (
	KindValidationFailed   Kind = "VALIDATION_FAILED"
	KindUnauthenticated    Kind = "UNAUTHENTICATED"
	KindAccessDenied       Kind = "ACCESS_DENIED"
	KindNotFound           Kind = "NOT_FOUND"
	KindConflict           Kind = "CONFLICT"
	KindRateLimited        Kind = "RATE_LIMITED"
	KindTransient          Kind = "TRANSIENT"
	KindTimeout            Kind = "TIMEOUT"
	KindElementNotFound    Kind = "ELEMENT_NOT_FOUND"
	KindNavigationFailed   Kind = "NAVIGATION_FAILED"
	KindInteractionFailed  Kind = "INTERACTION_FAILED"
	KindPageClosed         Kind = "PAGE_CLOSED"
	KindBrowserClosed      Kind = "BROWSER_CLOSED"
	KindSecurityError      Kind = "SECURITY_ERROR"
	KindNotSupported       Kind = "NOT_SUPPORTED"
	KindInternal           Kind = "INTERNAL"
	KindEvaluationFailed   Kind = "EVALUATION_FAILED"
	KindFileUploadFailed   Kind = "FILE_UPLOAD_FAILED"
	KindExecutionFailed    Kind = "EXECUTION_FAILED"
)

// retryable mirrors spec.md §7's table: which kinds the executor's retry
// loop is allowed to re-attempt.
var retryable = map[Kind]bool{
	KindRateLimited:       true,
	KindTransient:         true,
	KindTimeout:           true,
	KindElementNotFound:   true,
	KindNavigationFailed:  true,
	KindInteractionFailed: true,
	KindEvaluationFailed:  true,
	KindExecutionFailed:   true,
}

// recycleOnFailure marks kinds that, besides being surfaced to the caller,
// also flag the owning page/browser for recycling.
var recycleOnFailure = map[Kind]bool{
	KindPageClosed:    true,
	KindBrowserClosed: true,
	KindSecurityError: true,
}

// APIError is the single error type returned across package boundaries in
// this module. It carries enough structure for every transport to render
// its own representation without re-deriving the failure category.
type APIError struct {
	Kind    Kind
	Message string
	Detail  string
	Code    string // machine-readable sub-code, e.g. XSS_PATTERN_DETECTED
	Cause   error
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s", e.Message, e.Detail)
	}
	return e.Message
}

func (e *APIError) Unwrap() error { return e.Cause }

// Retryable reports whether the executor's retry loop may re-attempt the
// action that produced this error.
func (e *APIError) Retryable() bool {
	return retryable[e.Kind]
}

// RecycleOnFailure reports whether the page/browser that produced this
// error should be flagged for recycling regardless of retry outcome.
func (e *APIError) RecycleOnFailure() bool {
	return recycleOnFailure[e.Kind]
}

// New builds an APIError of the given kind with no sub-code or cause.
func New(kind Kind, message string) *APIError {
	return &APIError{Kind: kind, Message: message}
}

// Wrap builds an APIError of the given kind, preserving cause for logging
// and metadata while keeping message the safe, user-facing text.
func Wrap(kind Kind, message string, cause error) *APIError {
	return &APIError{Kind: kind, Message: message, Cause: cause}
}

// WithCode attaches a machine-readable sub-code (e.g. XSS_PATTERN_DETECTED)
// used by clients that branch on more than the broad Kind.
func (e *APIError) WithCode(code string) *APIError {
	e.Code = code
	return e
}

// WithDetail attaches free-form detail text, mirroring the teacher's
// CustomError.Detail field.
func (e *APIError) WithDetail(detail string) *APIError {
	e.Detail = detail
	return e
}

func ValidationFailed(detail string) *APIError {
	return New(KindValidationFailed, "validation failed").WithDetail(detail)
}

func Unauthenticated(detail string) *APIError {
	return New(KindUnauthenticated, "authentication required").WithDetail(detail)
}

func AccessDenied(detail string) *APIError {
	return New(KindAccessDenied, "access denied").WithDetail(detail)
}

func NotFound(resource, id string) *APIError {
	return New(KindNotFound, fmt.Sprintf("%s not found", resource)).WithDetail(id)
}

func Conflict(detail string) *APIError {
	return New(KindConflict, "conflicting state").WithDetail(detail)
}

func RateLimited(detail string) *APIError {
	return New(KindRateLimited, "rate limit exceeded").WithDetail(detail)
}

func Transient(detail string) *APIError {
	return New(KindTransient, "temporarily unavailable").WithDetail(detail)
}

func Timeout(detail string) *APIError {
	return New(KindTimeout, "operation timed out").WithDetail(detail)
}

func Internal(cause error) *APIError {
	return Wrap(KindInternal, "internal error", cause)
}

// MapHTTPStatus returns the HTTP status code a REST handler should write
// for an error of this kind.
func MapHTTPStatus(kind Kind) int {
	switch kind {
	case KindValidationFailed, KindSecurityError:
		return http.StatusBadRequest
	case KindUnauthenticated:
		return http.StatusUnauthorized
	case KindAccessDenied:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindRateLimited:
		return http.StatusTooManyRequests
	case KindTransient:
		return http.StatusServiceUnavailable
	case KindTimeout:
		return http.StatusRequestTimeout
	case KindElementNotFound, KindNavigationFailed, KindInteractionFailed,
		KindEvaluationFailed, KindFileUploadFailed, KindExecutionFailed:
		return http.StatusUnprocessableEntity
	case KindPageClosed, KindBrowserClosed:
		return http.StatusGone
	case KindNotSupported:
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}

// MapGRPCCode returns the gRPC status code an error of this kind should be
// translated to by the server's recovery/status interceptor.
func MapGRPCCode(kind Kind) codes.Code {
	switch kind {
	case KindValidationFailed, KindSecurityError:
		return codes.InvalidArgument
	case KindUnauthenticated:
		return codes.Unauthenticated
	case KindAccessDenied:
		return codes.PermissionDenied
	case KindNotFound:
		return codes.NotFound
	case KindConflict:
		return codes.FailedPrecondition
	case KindRateLimited:
		return codes.ResourceExhausted
	case KindTransient:
		return codes.Unavailable
	case KindTimeout:
		return codes.DeadlineExceeded
	case KindElementNotFound, KindNavigationFailed, KindInteractionFailed,
		KindEvaluationFailed, KindFileUploadFailed, KindExecutionFailed:
		return codes.Aborted
	case KindPageClosed, KindBrowserClosed:
		return codes.FailedPrecondition
	case KindNotSupported:
		return codes.Unimplemented
	default:
		return codes.Internal
	}
}

// GRPCStatus lets the gRPC transport turn an APIError into a *status.Status
// directly, picking up the error's Detail as the status message.
func (e *APIError) GRPCStatus() *status.Status {
	msg := e.Message
	if e.Detail != "" {
		msg = fmt.Sprintf("%s: %s", e.Message, e.Detail)
	}
	return status.New(MapGRPCCode(e.Kind), msg)
}

// As extracts an *APIError from err, falling back to wrapping err as
// KindInternal when it isn't already one — the boundary every handler
// funnels unexpected errors through before they leave the executor.
func As(err error) *APIError {
	if err == nil {
		return nil
	}
	if ae, ok := err.(*APIError); ok {
		return ae
	}
	return Internal(err)
}
