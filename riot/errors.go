package riot

import (
	"fmt"
	"time"

	"github.com/riftwatch/smurfwatch/errors"
)

// APIError is a non-2xx response from the game-statistics API,
// classified by status code. Callers branch on the concrete type or
// the helpers below rather than parsing messages.
type APIError struct {
	StatusCode int
	Endpoint   string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api request %s failed with status %d: %s", e.Endpoint, e.StatusCode, e.Message)
}

// RateLimitError is a 429: the budget for a scope is exhausted and the
// server told us how long to back off. Jobs treat this as a signal to
// checkpoint and end the run early, not as a failure.
type RateLimitError struct {
	APIError
	RetryAfter  time.Duration
	AppLimit    string
	MethodLimit string
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited on %s, retry after %s", e.Endpoint, e.RetryAfter)
}

// NotFoundError is a 404. For player-facing lookups this usually means
// a deleted or transferred account and is skippable, not fatal.
type NotFoundError struct {
	APIError
}

// AuthError is a 401 or 403: the API key is missing, invalid, or
// expired. Always fatal; retrying cannot help.
type AuthError struct {
	APIError
}

// ServerError is a 5xx from the API. Transient; the client retries
// these with backoff before surfacing one.
type ServerError struct {
	APIError
}

// classifyStatus wraps a non-2xx response in the matching error type.
func classifyStatus(status int, endpoint, message string, retryAfter time.Duration, appLimit, methodLimit string) error {
	base := APIError{StatusCode: status, Endpoint: endpoint, Message: message}

	switch {
	case status == 404:
		return errors.Mark(&NotFoundError{APIError: base}, errors.ErrNotFound)
	case status == 401:
		return errors.Mark(&AuthError{APIError: base}, errors.ErrUnauthorized)
	case status == 403:
		return errors.Mark(&AuthError{APIError: base}, errors.ErrForbidden)
	case status == 429:
		return &RateLimitError{
			APIError:    base,
			RetryAfter:  retryAfter,
			AppLimit:    appLimit,
			MethodLimit: methodLimit,
		}
	case status == 503:
		return errors.Mark(&ServerError{APIError: base}, errors.ErrServiceUnavailable)
	case status >= 500:
		return &ServerError{APIError: base}
	case status == 400:
		return errors.Mark(&base, errors.ErrBadRequest)
	default:
		return &base
	}
}

// IsNotFound reports whether err is a 404 from the API.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// IsRateLimited reports whether err is a 429, returning the parsed
// error when it is.
func IsRateLimited(err error) (*RateLimitError, bool) {
	var rl *RateLimitError
	if errors.As(err, &rl) {
		return rl, true
	}
	return nil, false
}

// IsAuthError reports whether err means the API key is bad. These are
// never retried and fail the whole run.
func IsAuthError(err error) bool {
	var ae *AuthError
	return errors.As(err, &ae)
}

// IsServerError reports whether err is a 5xx from the API.
func IsServerError(err error) bool {
	var se *ServerError
	return errors.As(err, &se)
}
