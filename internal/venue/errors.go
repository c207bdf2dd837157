package venue

import "fmt"

// ErrorKind tags a venue error so the backoff controller and the
// orchestrator's rejection logging can branch on it without string
// matching ("fails with Transport, Auth, RateLimited,
// Rejected(reason), NotFound, Stale").
type ErrorKind string

const (
	ErrTransport   ErrorKind = "transport"
	ErrAuth        ErrorKind = "auth"
	ErrRateLimited ErrorKind = "rate_limited"
	ErrRejected    ErrorKind = "rejected"
	ErrNotFound    ErrorKind = "not_found"
	ErrStale       ErrorKind = "stale"
)

// Error is the single tagged error type every adapter method returns.
// Same Venue/Code/Message/Unwrap shape as the venue clients' own error
// type, with Kind added so callers branch on a closed enum instead of
// parsing Code strings.
type Error struct {
	Venue    ID
	Kind     ErrorKind
	Code     string
	Message  string
	Original error
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: %s (%s/%s)", e.Venue, e.Message, e.Kind, e.Code)
	}
	return fmt.Sprintf("%s: %s (%s)", e.Venue, e.Message, e.Kind)
}

// Unwrap supports errors.Is()/errors.As() against the original error.
func (e *Error) Unwrap() error {
	return e.Original
}

// IsTransient reports whether the backoff controller should treat this
// as a transient, retryable condition rather than a terminal rejection.
func (e *Error) IsTransient() bool {
	switch e.Kind {
	case ErrTransport, ErrRateLimited, ErrStale:
		return true
	default:
		return false
	}
}
