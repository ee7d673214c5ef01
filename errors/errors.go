// Package errors provides error handling for powergraph.
//
// This package re-exports github.com/cockroachdb/errors, providing:
//   - Stack traces for debugging
//   - Error wrapping and context
//   - PII-safe error formatting
//
// Usage:
//
//	// Create new error
//	err := errors.New("something went wrong")
//
//	// Wrap with context
//	if err := doSomething(); err != nil {
//	    return errors.Wrap(err, "failed to do something")
//	}
//
//	// Check errors
//	if errors.Is(err, errors.ErrNotFound) {
//	    // handle not found
//	}
//
// For full documentation see: https://pkg.go.dev/github.com/cockroachdb/errors
package errors

import (
	crdb "github.com/cockroachdb/errors"
)

// Core error creation and wrapping
var (
	New          = crdb.New
	Newf         = crdb.Newf
	Wrap         = crdb.Wrap
	Wrapf        = crdb.Wrapf
	WithStack    = crdb.WithStack
	WithMessage  = crdb.WithMessage
	WithMessagef = crdb.WithMessagef
)

// User-facing messages and details
var (
	WithHint    = crdb.WithHint
	WithHintf   = crdb.WithHintf
	WithDetail  = crdb.WithDetail
	WithDetailf = crdb.WithDetailf
)

// Error inspection
var (
	Is            = crdb.Is
	IsAny         = crdb.IsAny
	As            = crdb.As
	Unwrap        = crdb.Unwrap
	UnwrapAll     = crdb.UnwrapAll
	GetAllHints   = crdb.GetAllHints
	GetAllDetails = crdb.GetAllDetails
)

// Assertions
var (
	AssertionFailedf = crdb.AssertionFailedf
)

// Common sentinel errors for use across powergraph.
// Use these with errors.Is() for type-safe error checking.
// Wrap these with errors.Wrap() to add context while preserving the type.
var (
	// ErrNotFound indicates the referenced entity, edge, or record does not exist
	ErrNotFound = New("not found")

	// ErrDuplicate indicates a uniqueness constraint was violated, most notably
	// a second ACTIVE edge for a (from, to, edge_type) triple. Stores resolve
	// this by merging; it surfaces only when the merge itself is ambiguous.
	ErrDuplicate = New("duplicate constraint violation")

	// ErrMalformed indicates a record failed schema validation at the store
	// boundary and was rejected without being partially applied.
	ErrMalformed = New("malformed record")

	// ErrArchived indicates an operation targeted an edge whose status is
	// ARCHIVED. Archival is terminal; archived edges never return to ACTIVE.
	ErrArchived = New("edge is archived")
)

// IsNotFound checks if an error is or wraps ErrNotFound.
func IsNotFound(err error) bool {
	return err != nil && Is(err, ErrNotFound)
}

// IsDuplicate checks if an error is or wraps ErrDuplicate.
func IsDuplicate(err error) bool {
	return err != nil && Is(err, ErrDuplicate)
}

// IsMalformed checks if an error is or wraps ErrMalformed.
func IsMalformed(err error) bool {
	return err != nil && Is(err, ErrMalformed)
}

// IsArchived checks if an error is or wraps ErrArchived.
func IsArchived(err error) bool {
	return err != nil && Is(err, ErrArchived)
}

// NewNotFound creates a not-found error with a formatted message.
func NewNotFound(format string, args ...interface{}) error {
	return Wrap(ErrNotFound, Newf(format, args...).Error())
}

// NewMalformed creates a malformed-record error with a formatted message.
func NewMalformed(format string, args ...interface{}) error {
	return Wrap(ErrMalformed, Newf(format, args...).Error())
}
