package tender

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a per-page failure.
type Kind string

const (
	KindTransport      Kind = "transport"
	KindTimeout        Kind = "timeout"
	KindUpstreamStatus Kind = "upstream_status"
	KindMalformed      Kind = "malformed"
)

var (
	// ErrMalformedPage is returned by extraction when content lacks the
	// listing scaffolding entirely.
	ErrMalformedPage = errors.New("malformed page")

	// ErrSinkFailure wraps any failure to persist the final record set.
	ErrSinkFailure = errors.New("sink failure")

	// ErrExhaustedSource is returned when no page of a run succeeded.
	ErrExhaustedSource = errors.New("source exhausted: no page fetched successfully")
)

// PageError is a classified failure for a single listing page.
type PageError struct {
	Page       PageID
	Kind       Kind
	StatusCode int
	Err        error
}

func (e *PageError) Error() string {
	switch {
	case e.Kind == KindUpstreamStatus && e.StatusCode != 0:
		return fmt.Sprintf("page %d: %s: HTTP %d %s", e.Page, e.Kind, e.StatusCode, http.StatusText(e.StatusCode))
	case e.Err != nil:
		return fmt.Sprintf("page %d: %s: %v", e.Page, e.Kind, e.Err)
	default:
		return fmt.Sprintf("page %d: %s", e.Page, e.Kind)
	}
}

func (e *PageError) Unwrap() error {
	return e.Err
}

// Retryable reports whether another attempt at the same page may succeed.
// Timeouts count as transport failures; only 429 and 5xx upstream statuses
// are worth repeating.
func (e *PageError) Retryable() bool {
	switch e.Kind {
	case KindTransport, KindTimeout:
		return true
	case KindUpstreamStatus:
		return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
	default:
		return false
	}
}

// KindOf returns the failure class of err, defaulting to transport for
// unclassified errors.
func KindOf(err error) Kind {
	var pe *PageError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	if errors.Is(err, ErrMalformedPage) {
		return KindMalformed
	}
	return KindTransport
}
