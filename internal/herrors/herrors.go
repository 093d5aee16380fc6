// Package herrors defines the typed error taxonomy shared across adapters
// and the orchestrator. Adapters convert raw I/O failures into one of these
// kinds; the orchestrator is the single place that branches on kind to
// decide between a skip, a retry, or a timeline message.
package herrors

import (
	"errors"
	"fmt"
)

// Kind identifies one of the error categories from the design's error
// handling section. It is a classification, not a wrapper for a specific
// Go type — callers compare with errors.Is against the sentinel values
// below, or with Is(err, kind).
type Kind string

const (
	KindConfig            Kind = "config_error"
	KindTransientExternal  Kind = "transient_external"
	KindStaleData         Kind = "stale_data"
	KindInvalidTelemetry  Kind = "invalid_telemetry"
	KindConstraintViolation Kind = "constraint_violation"
	KindPersistenceFull   Kind = "persistence_full"
	KindFatal             Kind = "fatal"
)

// Error wraps an underlying cause with a Kind and a short reason token
// suitable for a timeline entry (e.g. "stale_prices", "lockout").
type Error struct {
	Kind   Kind
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds a Error. err may be nil when there is no underlying cause
// (e.g. a pure validation failure).
func New(kind Kind, reason string, err error) *Error {
	return &Error{Kind: kind, Reason: reason, Err: err}
}

// Is reports whether err (or anything it wraps) carries the given Kind.
func Is(err error, kind Kind) bool {
	var he *Error
	if errors.As(err, &he) {
		return he.Kind == kind
	}
	return false
}

// Sentinel errors for conditions that don't need a dynamic reason string.
var (
	ErrInvalidTimezone  = errors.New("invalid IANA timezone")
	ErrStalePrices      = errors.New("price series is stale")
	ErrStaleWeather     = errors.New("weather forecast is stale")
	ErrNoFeasibleWindow = errors.New("no feasible window found")
)
