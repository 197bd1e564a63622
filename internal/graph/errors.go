package graph

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	ErrNotFound        = errors.New("graph: node not found")
	ErrVersionConflict = errors.New("graph: version conflict")
	ErrRateLimited     = errors.New("graph: rate limited")
	ErrTimeout         = errors.New("graph: operation timed out")
	ErrValidation      = errors.New("graph: backend rejected payload")
	ErrUnavailable     = errors.New("graph: backend unavailable")
	ErrMalformedPage   = errors.New("graph: malformed collection page")
)

// OpError annotates a failed graph call with the operation and node it
// targeted. RetryAfter carries the backend's requested wait, if any.
type OpError struct {
	Op         string
	NodeID     string
	RetryAfter time.Duration
	Err        error
}

func (e *OpError) Error() string {
	if e.NodeID != "" {
		return fmt.Sprintf("graph: %s %s: %v", e.Op, e.NodeID, e.Err)
	}
	return fmt.Sprintf("graph: %s: %v", e.Op, e.Err)
}

func (e *OpError) Unwrap() error { return e.Err }

// NewNotFound marks a lookup that missed.
func NewNotFound(op, nodeID string) error {
	return &OpError{Op: op, NodeID: nodeID, Err: ErrNotFound}
}

// NewVersionConflict marks a write rejected because the node moved on.
func NewVersionConflict(op, nodeID string) error {
	return &OpError{Op: op, NodeID: nodeID, Err: ErrVersionConflict}
}

// NewRateLimited marks a call the backend throttled. retryAfter may be zero
// when the backend gave no hint.
func NewRateLimited(op string, retryAfter time.Duration) error {
	return &OpError{Op: op, RetryAfter: retryAfter, Err: ErrRateLimited}
}

// NewTimeout marks a call that exceeded its per-attempt deadline.
func NewTimeout(op, nodeID string) error {
	return &OpError{Op: op, NodeID: nodeID, Err: ErrTimeout}
}

// NewValidation marks a payload the backend refused, keeping its detail.
func NewValidation(op, nodeID, detail string) error {
	err := error(ErrValidation)
	if detail != "" {
		err = fmt.Errorf("%w: %s", ErrValidation, detail)
	}
	return &OpError{Op: op, NodeID: nodeID, Err: err}
}

// NewUnavailable marks a transient transport or server failure.
func NewUnavailable(op string, cause error) error {
	err := error(ErrUnavailable)
	if cause != nil {
		err = fmt.Errorf("%w: %v", ErrUnavailable, cause)
	}
	return &OpError{Op: op, Err: err}
}

// NewMalformedPage marks a collection response the client refuses to trust.
func NewMalformedPage(op, detail string) error {
	err := error(ErrMalformedPage)
	if detail != "" {
		err = fmt.Errorf("%w: %s", ErrMalformedPage, detail)
	}
	return &OpError{Op: op, Err: err}
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsVersionConflict(err error) bool {
	return errors.Is(err, ErrVersionConflict)
}

func IsRateLimited(err error) bool {
	return errors.Is(err, ErrRateLimited)
}

func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout) || errors.Is(err, context.DeadlineExceeded)
}

func IsMalformedPage(err error) bool {
	return errors.Is(err, ErrMalformedPage)
}

// IsRetryable reports whether backing off and calling again can help.
// Version conflicts are excluded: they need a fresh read, not a retry.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	return IsRateLimited(err) || IsTimeout(err) || errors.Is(err, ErrUnavailable)
}

// RetryAfter extracts the backend's requested wait from an error chain.
func RetryAfter(err error) time.Duration {
	var opErr *OpError
	if errors.As(err, &opErr) {
		return opErr.RetryAfter
	}
	return 0
}
