package hub

import (
	"errors"
	"fmt"
	"time"
)

// RateLimitError is returned by a HubClient implementation when the Hub
// signals its request budget is exhausted. RepositoryBuilder honours
// RetryAfter before resuming (§4.5 "Rate limiting").
type RateLimitError struct {
	RetryAfter time.Duration
	Cause      error
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("hub rate limit exceeded, retry after %s", e.RetryAfter)
}

func (e *RateLimitError) Unwrap() error {
	return e.Cause
}

// AsRateLimitError reports whether err is (or wraps) a *RateLimitError and
// returns it.
func AsRateLimitError(err error) (*RateLimitError, bool) {
	var rle *RateLimitError
	if errors.As(err, &rle) {
		return rle, true
	}
	return nil, false
}

// NotFoundError is returned when a Hub lookup (file, directory, webhook)
// finds nothing, distinct from a transport failure.
type NotFoundError struct {
	Resource string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("not found: %s", e.Resource)
}

// AlreadyExistsError is returned by CreateLabel when the Hub reports the
// label already exists, the trigger for the update_label fallback that
// makes label application idempotent (§4.5 step 5).
type AlreadyExistsError struct {
	Resource string
}

func (e *AlreadyExistsError) Error() string {
	return fmt.Sprintf("already exists: %s", e.Resource)
}

func IsAlreadyExists(err error) bool {
	var aee *AlreadyExistsError
	return errors.As(err, &aee)
}

func IsNotFound(err error) bool {
	var nfe *NotFoundError
	return errors.As(err, &nfe)
}

// UnavailableError is returned when a Hub call fails for a reason that
// isn't a recognised not-found/already-exists/rate-limit/auth outcome —
// a transport failure, a 5xx, a timeout — distinct from those and from a
// malformed request. ConfigResolver treats it as the signal to degrade to
// CompiledDefaults rather than fail the whole resolution.
type UnavailableError struct {
	Resource string
	Cause    error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("hub unavailable: %s: %v", e.Resource, e.Cause)
}

func (e *UnavailableError) Unwrap() error {
	return e.Cause
}

func IsUnavailable(err error) bool {
	var ue *UnavailableError
	return errors.As(err, &ue)
}
