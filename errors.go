// Package council implements a multi-voice AI collaboration engine: voice
// selection and synthesis, MCP tool coordination, a risk-scored approval
// gate, and a durable memory/learning store, tied together by a
// round-based orchestrator.
package council

import "github.com/voicecouncil/council/internal/errs"

// Sentinel errors re-exported at the top level so callers of this
// package's public API never need to import internal/errs directly.
var (
	ErrInputInvalid        = errs.ErrInputInvalid
	ErrNoSuitableServer    = errs.ErrNoSuitableServer
	ErrServerCircuitOpen   = errs.ErrServerCircuitOpen
	ErrRequestTimeout      = errs.ErrRequestTimeout
	ErrPolicyDeny          = errs.ErrPolicyDeny
	ErrRiskAssessmentError = errs.ErrRiskAssessmentError
	ErrBackendError        = errs.ErrBackendError
	ErrCacheRemoteUnavail  = errs.ErrCacheRemoteUnavail
	ErrPersistenceError    = errs.ErrPersistenceError
	ErrPlanQualityFail     = errs.ErrPlanQualityFail
	ErrCancelled           = errs.ErrCancelled

	ErrNotFound      = errs.ErrNotFound
	ErrAlreadyExists = errs.ErrAlreadyExists
	ErrNotReady      = errs.ErrNotReady
	ErrClosed        = errs.ErrClosed
)

// Error is the wrapped-error type returned by every sub-package.
type Error = errs.Error

// NewError builds an *Error wrapping err with operation/kind context.
func NewError(op, kind string, err error) *Error { return errs.New(op, kind, err) }

// IsRetryable reports whether err represents a transient condition that a
// caller may retry.
func IsRetryable(err error) bool { return errs.IsRetryable(err) }

// IsNotFound reports whether err represents a missing entity.
func IsNotFound(err error) bool { return errs.IsNotFound(err) }

// IsDenied reports whether err represents a fail-closed approval decision.
func IsDenied(err error) bool { return errs.IsDenied(err) }
