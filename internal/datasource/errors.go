package datasource

import (
	"errors"
	"fmt"
)

// ErrNotConnected is returned when schema or preview is requested before a
// successful fetch has populated the adapter.
var ErrNotConnected = errors.New("datasource: not connected")

// ConnectionError reports a failed connect: missing required configuration,
// an unreachable endpoint, or an authentication failure.
type ConnectionError struct {
	Reason string
	Err    error
}

func (e *ConnectionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("connect: %s: %v", e.Reason, e.Err)
	}
	return "connect: " + e.Reason
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// FetchKind discriminates fetch failures. None are retried here; retry and
// backoff policy belongs to the caller.
type FetchKind int

const (
	// FetchNotFound: missing file, 404, unknown table.
	FetchNotFound FetchKind = iota
	// FetchMalformed: the source bytes could not be parsed.
	FetchMalformed
	// FetchQuery: the source rejected the query (SQL error, HTTP 4xx/5xx).
	FetchQuery
	// FetchTimeout: the bounded wait elapsed before the source answered.
	FetchTimeout
	// FetchInvalidShape: the response parsed but the configured result path
	// or structure did not match.
	FetchInvalidShape
)

// String returns the short tag used in error text.
func (k FetchKind) String() string {
	switch k {
	case FetchNotFound:
		return "not found"
	case FetchMalformed:
		return "malformed"
	case FetchQuery:
		return "query"
	case FetchTimeout:
		return "timeout"
	case FetchInvalidShape:
		return "invalid shape"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// FetchError reports a failed fetch with a machine-checkable kind.
type FetchError struct {
	Kind FetchKind
	Err  error
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fetch (%s): %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("fetch (%s)", e.Kind)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Fetchf builds a FetchError wrapping a formatted cause.
func Fetchf(kind FetchKind, format string, args ...any) *FetchError {
	return &FetchError{Kind: kind, Err: fmt.Errorf(format, args...)}
}

// FetchKindOf extracts the FetchKind from err, when err is (or wraps) a
// FetchError.
func FetchKindOf(err error) (FetchKind, bool) {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Kind, true
	}
	return 0, false
}
