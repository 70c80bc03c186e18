package model

import (
	"errors"
	"fmt"
)

// ValidationCode categorizes illegal transition attempts.
type ValidationCode string

const (
	// ErrCodeTerminalConflict indicates a transition on a terminal node.
	ErrCodeTerminalConflict ValidationCode = "TERMINAL_CONFLICT"

	// ErrCodeStageReversed indicates a backward stage move outside the
	// debug ladder's history-state restore.
	ErrCodeStageReversed ValidationCode = "STAGE_REVERSED"

	// ErrCodeStageSkipped indicates a stage move that skips levels.
	ErrCodeStageSkipped ValidationCode = "STAGE_SKIPPED"

	// ErrCodeHoldTerminusClash indicates a non-ready hold combined with a
	// terminus. The two are mutually exclusive.
	ErrCodeHoldTerminusClash ValidationCode = "HOLD_TERMINUS_CLASH"

	// ErrCodeUnknownValue indicates a stage, hold, or terminus outside the
	// known vocabulary.
	ErrCodeUnknownValue ValidationCode = "UNKNOWN_VALUE"

	// ErrCodeDecisionUnavailable indicates a human decision filed against a
	// node that is neither escalated nor parked.
	ErrCodeDecisionUnavailable ValidationCode = "DECISION_UNAVAILABLE"
)

// ValidationError is an illegal transition, rejected before any commit.
// The node's persisted state is unchanged.
type ValidationError struct {
	Code    ValidationCode
	NodeID  string
	Message string
}

func (e *ValidationError) Error() string {
	if e.NodeID != "" {
		return fmt.Sprintf("%s: %s (node=%s)", e.Code, e.Message, e.NodeID)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NotFoundError indicates an unknown node id (or, for tree inserts, an
// unknown parent).
type NotFoundError struct {
	Kind string // "node", "parent"
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
}

// ConcurrencyConflict indicates a heartbeat lost a race: the node's state
// changed between read and commit. The caller retries the heartbeat.
type ConcurrencyConflict struct {
	NodeID          string
	ExpectedVersion int64
}

func (e *ConcurrencyConflict) Error() string {
	return fmt.Sprintf("concurrent update on node %s (read at version %d)", e.NodeID, e.ExpectedVersion)
}

// DependencyUnmet signals that a gating condition is still false. It is a
// no-op outcome, not a failure: heartbeats translate it into "nothing to do
// this beat" rather than surfacing it to callers.
type DependencyUnmet struct {
	NodeID string
	Reason string
}

func (e *DependencyUnmet) Error() string {
	return fmt.Sprintf("node %s not ready to advance: %s", e.NodeID, e.Reason)
}

// IsValidation reports whether err is a ValidationError, optionally with a
// specific code. Uses errors.As to handle wrapped errors.
func IsValidation(err error, code ValidationCode) bool {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return code == "" || ve.Code == code
	}
	return false
}

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// IsConcurrencyConflict reports whether err is a ConcurrencyConflict.
func IsConcurrencyConflict(err error) bool {
	var cc *ConcurrencyConflict
	return errors.As(err, &cc)
}

// IsDependencyUnmet reports whether err is a DependencyUnmet signal.
func IsDependencyUnmet(err error) bool {
	var du *DependencyUnmet
	return errors.As(err, &du)
}
