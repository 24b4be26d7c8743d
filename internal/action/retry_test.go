package action

import "testing"

func TestIsRetryableNonRetryableMessages(t *testing.T) {
	cases := []string{
		"page closed unexpectedly",
		"the browser closed the connection",
		"session closed by peer",
		"invalid selector syntax",
		"invalid argument passed",
		"security error: mixed content",
		"permission denied by policy",
		"operation not supported",
	}
	for _, msg := range cases {
		if isRetryable(msg) {
			t.Errorf("isRetryable(%q) = true, want false", msg)
		}
	}
}

func TestIsRetryableRetryableMessages(t *testing.T) {
	cases := []string{
		"context deadline exceeded: timeout",
		"network error while fetching resource",
		"connection refused by remote host",
		"element not found in dom",
		"element not visible yet",
		"element not interactable",
		"still waiting for selector",
		"navigation failed mid-flight",
	}
	for _, msg := range cases {
		if !isRetryable(msg) {
			t.Errorf("isRetryable(%q) = false, want true", msg)
		}
	}
}

func TestIsRetryableDefaultsToTrueForUnknownMessage(t *testing.T) {
	if !isRetryable("some completely novel failure") {
		t.Fatal("isRetryable(unknown) = false, want true (conservative default)")
	}
}

func TestIsRetryableNonRetryableTakesPrecedence(t *testing.T) {
	// "page closed" while waiting should still be treated as final.
	if isRetryable("page closed while waiting for navigation") {
		t.Fatal("isRetryable(page closed + waiting) = true, want false")
	}
}
