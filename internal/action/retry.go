package action

import "strings"

// nonRetryableSubstrings mark an error message as final; the executor will
// not retry regardless of the error's Kind.
var nonRetryableSubstrings = []string{
	"page closed",
	"browser closed",
	"session closed",
	"invalid selector",
	"invalid argument",
	"security error",
	"permission denied",
	"not supported",
}

// retryableSubstrings mark an error message as worth another attempt.
var retryableSubstrings = []string{
	"timeout",
	"network error",
	"connection refused",
	"element not found",
	"element not visible",
	"element not interactable",
	"waiting for",
	"navigation failed",
}

// isRetryable classifies an error message per the non-retryable/retryable
// substring tables; unknown messages default to retryable (conservative).
func isRetryable(msg string) bool {
	lower := strings.ToLower(msg)
	for _, s := range nonRetryableSubstrings {
		if strings.Contains(lower, s) {
			return false
		}
	}
	for _, s := range retryableSubstrings {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return true
}
