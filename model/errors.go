package model

import "fmt"

// CollectionError is a recoverable failure to read one counter or domain.
type CollectionError struct {
	Domain  Domain
	Counter string
	Err     error
}

func (e *CollectionError) Error() string {
	if e.Counter == "" {
		return fmt.Sprintf("collect %s: %v", e.Domain, e.Err)
	}
	return fmt.Sprintf("collect %s/%s: %v", e.Domain, e.Counter, e.Err)
}

func (e *CollectionError) Unwrap() error { return e.Err }

// CleanupError is a failure to release a scratch resource. Never escalated.
type CleanupError struct {
	Path string
	Err  error
}

func (e *CleanupError) Error() string {
	return fmt.Sprintf("cleanup %s: %v", e.Path, e.Err)
}

func (e *CleanupError) Unwrap() error { return e.Err }

// SubmissionKind classifies ticketing failures.
type SubmissionKind int

const (
	SubmissionUnreachable SubmissionKind = iota
	SubmissionAuth
	SubmissionIneligible
	SubmissionRejected
)

func (k SubmissionKind) String() string {
	switch k {
	case SubmissionUnreachable:
		return "unreachable"
	case SubmissionAuth:
		return "authentication failed"
	case SubmissionIneligible:
		return "support plan ineligible"
	case SubmissionRejected:
		return "rejected"
	}
	return "unknown"
}

// SubmissionError is a failure to file a support case. The report that was
// being submitted stays valid.
type SubmissionError struct {
	Kind   SubmissionKind
	Advice string
	Err    error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("support case submission %s: %v", e.Kind, e.Err)
}

func (e *SubmissionError) Unwrap() error { return e.Err }

// PrivilegeError means the process lacks the privileges required to collect.
type PrivilegeError struct {
	Euid int
}

func (e *PrivilegeError) Error() string {
	return fmt.Sprintf("root privileges required (running as uid %d)", e.Euid)
}
