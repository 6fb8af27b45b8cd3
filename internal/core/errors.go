package core

import (
	"errors"
	"fmt"
)

var (
	ErrNoRowsAffected = errors.New("no rows affected")
	ErrNoGeneratedID  = errors.New("insert succeeded but no id returned")
	ErrCategoryInUse  = errors.New("category is referenced by expenses")
	ErrSchemaMismatch = errors.New("schema does not match column table")

	// ErrInvalidAmount is wrapped by the *ValidationError returned for a
	// non-positive amount.
	ErrInvalidAmount = errors.New("Amount must be greater than 0")
)

// ConnectivityError means the store could not be reached or refused the
// credentials. It is never retried.
type ConnectivityError struct {
	Op  string
	Err error
}

func (e *ConnectivityError) Error() string {
	return fmt.Sprintf("%s: store unreachable: %v", e.Op, e.Err)
}

func (e *ConnectivityError) Unwrap() error { return e.Err }

// PersistenceError means a write ran but did not take effect as required.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// ValidationError reports a field invariant broken by caller input. Err,
// when set, is the sentinel behind the message.
type ValidationError struct {
	Field string
	Msg   string
	Err   error
}

func (e *ValidationError) Error() string {
	return e.Msg
}

func (e *ValidationError) Unwrap() error { return e.Err }

func NewValidationError(field, msg string) error {
	return &ValidationError{Field: field, Msg: msg}
}

// DecodeError reports a stored value that does not map onto its record field.
type DecodeError struct {
	Column string
	RowID  int64
	Value  string
	Null   bool
}

func (e *DecodeError) Error() string {
	if e.Null {
		return fmt.Sprintf("decode %s (row %d): unexpected NULL", e.Column, e.RowID)
	}
	return fmt.Sprintf("decode %s (row %d): unknown value %q", e.Column, e.RowID, e.Value)
}

func invalidAmount() error {
	return &ValidationError{Field: "amount", Msg: ErrInvalidAmount.Error(), Err: ErrInvalidAmount}
}

func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func IsPersistenceError(err error) bool {
	var pe *PersistenceError
	return errors.As(err, &pe)
}

func IsConnectivityError(err error) bool {
	var ce *ConnectivityError
	return errors.As(err, &ce)
}

func IsDecodeError(err error) bool {
	var de *DecodeError
	return errors.As(err, &de)
}
