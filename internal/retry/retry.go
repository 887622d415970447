// Package retry decides whether a failed pipeline step may be retried.
package retry

import (
	"strings"

	"github.com/ashureev/shsh-chat/internal/domain"
)

// MaxRetries is the ceiling on transient retries for one message.
const MaxRetries = 3

// transientMarkers are substrings of backend errors that indicate overload or throttling.
var transientMarkers = []string{
	"overloaded",
	"rate_limit",
	"rate limit",
	"resource_exhausted",
	"too many requests",
}

// IsTransient reports whether errText carries a known overload or throttling marker.
func IsTransient(errText string) bool {
	lower := strings.ToLower(errText)
	for _, m := range transientMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}

// Classify returns state updated for the failure described by errText.
// Transient failures under the ceiling go back to Pending with one more retry;
// everything else is Failed with the retry count untouched.
func Classify(state domain.MessageState, errText string) domain.MessageState {
	state.LastError = errText
	if IsTransient(errText) && state.Retries < MaxRetries {
		state.Status = domain.StatusPending
		state.Retries++
		return state
	}
	state.Status = domain.StatusFailed
	return state
}
