// Package errs holds the sentinel errors and wrapped-error type shared
// across every sub-package, mirroring the framework-wide error taxonomy.
// It intentionally has no dependencies on any other package in this
// module so it can sit underneath both the leaf components and the root
// orchestrator without creating an import cycle.
package errs

import (
	"errors"
	"fmt"
)

// Sentinel errors for comparison with errors.Is(). Each corresponds to a
// taxonomy kind from the error handling design; wrap with New to add
// operation context before returning across a package boundary.
var (
	ErrInputInvalid        = errors.New("input invalid")
	ErrNoSuitableServer    = errors.New("no suitable mcp server")
	ErrServerCircuitOpen   = errors.New("server circuit open")
	ErrRequestTimeout      = errors.New("request timeout")
	ErrPolicyDeny          = errors.New("policy denied")
	ErrRiskAssessmentError = errors.New("risk assessment failed")
	ErrBackendError        = errors.New("model backend error")
	ErrCacheRemoteUnavail  = errors.New("cache remote unavailable")
	ErrPersistenceError    = errors.New("persistence error")
	ErrPlanQualityFail     = errors.New("plan quality failure")
	ErrCancelled           = errors.New("operation cancelled")

	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrNotReady      = errors.New("not ready")
	ErrClosed        = errors.New("already closed")
)

// Error wraps a sentinel with operation and entity context, following the
// Op/Kind/ID/Err shape used throughout this codebase's sub-packages.
type Error struct {
	Op      string // e.g. "cache.Get", "approval.Evaluate"
	Kind    string // taxonomy kind, e.g. "CacheRemoteUnavailable"
	ID      string // optional entity id (sessionId, planId, stepId...)
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Op != "" && e.Err != nil {
		if e.ID != "" {
			return fmt.Sprintf("%s [%s]: %v", e.Op, e.ID, e.Err)
		}
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s error", e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an *Error wrapping err with operation/kind context.
func New(op, kind string, err error) *Error {
	return &Error{Op: op, Kind: kind, Err: err}
}

// WithID attaches an entity id and returns the same error for chaining.
func (e *Error) WithID(id string) *Error {
	e.ID = id
	return e
}

// IsRetryable reports whether err represents a transient condition that a
// caller may retry (MCP timeouts, open circuits, unavailable remote tiers).
func IsRetryable(err error) bool {
	return errors.Is(err, ErrRequestTimeout) ||
		errors.Is(err, ErrServerCircuitOpen) ||
		errors.Is(err, ErrCacheRemoteUnavail) ||
		errors.Is(err, ErrNoSuitableServer)
}

// IsNotFound reports whether err represents a missing entity.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsDenied reports whether err represents a fail-closed approval decision.
func IsDenied(err error) bool {
	return errors.Is(err, ErrPolicyDeny) || errors.Is(err, ErrRiskAssessmentError)
}
