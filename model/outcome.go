package model

// OutcomeStatus distinguishes a value from a missing one and from a failure.
type OutcomeStatus int

const (
	OutcomeOK OutcomeStatus = iota
	OutcomeUnavailable
	OutcomeError
)

func (s OutcomeStatus) String() string {
	switch s {
	case OutcomeOK:
		return "ok"
	case OutcomeUnavailable:
		return "not available"
	case OutcomeError:
		return "error"
	}
	return "unknown"
}

// Outcome carries the result of an optional call: a value, "unavailable"
// (timeout, not applicable), or an error with detail.
type Outcome[T any] struct {
	Status OutcomeStatus `json:"status"`
	Value  T             `json:"value,omitempty"`
	Detail string        `json:"detail,omitempty"`
}

// OK wraps a value.
func OK[T any](v T) Outcome[T] { return Outcome[T]{Status: OutcomeOK, Value: v} }

// Unavailable marks a value that could not be obtained without that being a fault.
func Unavailable[T any](detail string) Outcome[T] {
	return Outcome[T]{Status: OutcomeUnavailable, Detail: detail}
}

// Failed marks a value whose retrieval failed.
func Failed[T any](err error) Outcome[T] {
	return Outcome[T]{Status: OutcomeError, Detail: err.Error()}
}

// Ok reports whether a value is present.
func (o Outcome[T]) Ok() bool { return o.Status == OutcomeOK }

// MarshalText renders the status by name in JSON output.
func (s OutcomeStatus) MarshalText() ([]byte, error) { return []byte(s.String()), nil }
