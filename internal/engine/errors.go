package engine

import (
	"errors"
	"fmt"

	"github.com/roach88/vaultrev/internal/store"
)

// ErrorCode categorizes engine errors.
type ErrorCode string

const (
	// ErrCodeBackendUnavailable indicates a prepare/execute/connect failure.
	ErrCodeBackendUnavailable ErrorCode = "BACKEND_UNAVAILABLE"

	// ErrCodeNotFound indicates a referenced item, revision or conflict
	// does not exist.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"

	// ErrCodeInvalidBase indicates the base revision does not belong to
	// the item being edited.
	ErrCodeInvalidBase ErrorCode = "INVALID_BASE"

	// ErrCodeInvalidRevisionType indicates a caller asked RecordRevision
	// for a revision type other than edit.
	ErrCodeInvalidRevisionType ErrorCode = "INVALID_REVISION_TYPE"

	// ErrCodeUnknownField indicates a field outside the item column set.
	ErrCodeUnknownField ErrorCode = "UNKNOWN_FIELD"

	// ErrCodeStaleHead indicates a standalone detection whose remote
	// revision is no longer the item head.
	ErrCodeStaleHead ErrorCode = "STALE_HEAD"

	// ErrCodeAlreadyResolved is returned by strict resolution of a
	// conflict that is already resolved.
	ErrCodeAlreadyResolved ErrorCode = "ALREADY_RESOLVED"

	// ErrCodeMergeAmbiguous and ErrCodeMergePrimitiveFailure classify
	// conflicts in logs and metrics. They are never returned.
	ErrCodeMergeAmbiguous        ErrorCode = "MERGE_AMBIGUOUS"
	ErrCodeMergePrimitiveFailure ErrorCode = "MERGE_PRIMITIVE_FAILURE"
)

// Error is an engine failure with structured context.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// ItemID identifies the affected item, when known.
	ItemID string

	// ConflictID identifies the affected conflict, when known.
	ConflictID string

	// Err is the underlying cause.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	switch {
	case e.ConflictID != "":
		msg += fmt.Sprintf(" (conflict=%s)", e.ConflictID)
	case e.ItemID != "":
		msg += fmt.Sprintf(" (item=%s)", e.ItemID)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

func hasCode(err error, code ErrorCode) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// IsNotFound returns true for NOT_FOUND errors and bare store.ErrNotFound.
func IsNotFound(err error) bool {
	return hasCode(err, ErrCodeNotFound) || errors.Is(err, store.ErrNotFound)
}

// IsBackendUnavailable returns true for backend failures.
func IsBackendUnavailable(err error) bool {
	return hasCode(err, ErrCodeBackendUnavailable) || errors.Is(err, store.ErrBackendUnavailable)
}

// IsInvalidBase returns true if the base revision was rejected.
func IsInvalidBase(err error) bool {
	return hasCode(err, ErrCodeInvalidBase)
}

// IsInvalidRevisionType returns true if RecordRevision rejected the
// requested revision type.
func IsInvalidRevisionType(err error) bool {
	return hasCode(err, ErrCodeInvalidRevisionType)
}

// IsUnknownField returns true if a field name was rejected.
func IsUnknownField(err error) bool {
	return hasCode(err, ErrCodeUnknownField) || errors.Is(err, store.ErrUnknownField)
}

// IsStaleHead returns true if a standalone detection found the head moved.
func IsStaleHead(err error) bool {
	return hasCode(err, ErrCodeStaleHead)
}

// IsAlreadyResolved returns true for strict re-resolution attempts.
func IsAlreadyResolved(err error) bool {
	return hasCode(err, ErrCodeAlreadyResolved)
}

// classify converts a store error into an *Error. Errors that already
// carry a code pass through unchanged.
func classify(err error, itemID, conflictID string) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}

	code := ErrCodeBackendUnavailable
	msg := "backend operation failed"
	switch {
	case errors.Is(err, store.ErrNotFound):
		code, msg = ErrCodeNotFound, "not found"
	case errors.Is(err, store.ErrUnknownField):
		code, msg = ErrCodeUnknownField, "unknown field"
	}
	return &Error{Code: code, Message: msg, ItemID: itemID, ConflictID: conflictID, Err: err}
}

func newInvalidBaseError(itemID, baseID, reason string) *Error {
	return &Error{
		Code:    ErrCodeInvalidBase,
		Message: fmt.Sprintf("base revision %s %s", baseID, reason),
		ItemID:  itemID,
	}
}

func newMissingRevisionError(itemID, revisionID, reason string) *Error {
	return &Error{
		Code:    ErrCodeNotFound,
		Message: fmt.Sprintf("revision %s %s", revisionID, reason),
		ItemID:  itemID,
		Err:     store.ErrNotFound,
	}
}

func newUnknownFieldError(itemID, field string) *Error {
	return &Error{
		Code:    ErrCodeUnknownField,
		Message: fmt.Sprintf("field %q is not an item field", field),
		ItemID:  itemID,
		Err:     store.ErrUnknownField,
	}
}
