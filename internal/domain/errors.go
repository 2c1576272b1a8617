package domain

import "errors"

var (
	ErrNotFound              = errors.New("not found")
	ErrUnauthorized          = errors.New("unauthorized")
	ErrForbidden             = errors.New("forbidden")
	ErrRateLimited           = errors.New("rate limited")
	ErrInvalidInput          = errors.New("invalid input")
	ErrPayloadTooLarge       = errors.New("payload too large")
	ErrNotEnoughCredits      = errors.New("not enough credits")
	ErrNotRetryable          = errors.New("only failed jobs can be retried")
	ErrNotReady              = errors.New("not ready")
	ErrInputMissing          = errors.New("input file missing")
	ErrWorkerNotConfigured   = errors.New("worker not configured")
	ErrUpstreamUnavailable   = errors.New("upstream unavailable")
	ErrUnsupportedOutputType = errors.New("unsupported output type")
	ErrInvalidKey            = errors.New("invalid storage key")
)

// Error attaches a client-facing message to one of the sentinel errors above.
type Error struct {
	Kind    error
	Message string
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Kind }

// NewError wraps kind with a message that is safe to show to callers.
func NewError(kind error, message string) error {
	return &Error{Kind: kind, Message: message}
}

// CreditsError reports a rejected charge together with the numbers the client
// needs to explain it.
type CreditsError struct {
	Required int
	// Included and Used are only set when the charge came from the monthly quota.
	Included int
	Used     int
	Monthly  bool
}

func (e *CreditsError) Error() string { return "Not enough credits." }

func (e *CreditsError) Unwrap() error { return ErrNotEnoughCredits }
