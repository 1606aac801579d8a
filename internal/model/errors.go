package model

import (
	"errors"
	"fmt"
)

// Error represents a construction-time fault detected while building or
// persisting a record.
//
// Faults include:
//   - Integrity violation: a not-null reference points to a record that
//     does not exist, or a dedup hit found a record that differs from the
//     candidate outside the unique-key tuple
//   - Malformed enum: an enum field holds a value outside its domain
//   - Orphan sequence element: a sequence field contains an invalid
//     reference element
//
// None of these are retried; they abort the current insert and propagate
// to the calling driver. A benign duplicate (same full natural key) is not
// an error and never surfaces as one.
type Error struct {
	// Code identifies the fault category.
	Code ErrorCode

	// Entity names the record type being constructed.
	Entity string

	// Message is a human-readable description.
	Message string

	// Details contains additional context.
	Details map[string]string
}

// ErrorCode categorizes construction faults.
type ErrorCode string

const (
	// ErrCodeIntegrityViolation indicates a dangling reference or a
	// unique-key collision with a non-identical record.
	ErrCodeIntegrityViolation ErrorCode = "INTEGRITY_VIOLATION"

	// ErrCodeMalformedEnum indicates an enum value outside its domain.
	ErrCodeMalformedEnum ErrorCode = "MALFORMED_ENUM"

	// ErrCodeOrphanSequenceElement indicates an invalid reference inside
	// a sequence field.
	ErrCodeOrphanSequenceElement ErrorCode = "ORPHAN_SEQUENCE_ELEMENT"
)

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Entity != "" {
		return fmt.Sprintf("%s: %s (entity=%s)", e.Code, e.Message, e.Entity)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsIntegrityViolation returns true if the error is an integrity violation.
// Uses errors.As to handle wrapped errors.
func IsIntegrityViolation(err error) bool {
	var me *Error
	if errors.As(err, &me) {
		return me.Code == ErrCodeIntegrityViolation
	}
	return false
}

// IsMalformedEnum returns true if the error is a malformed-enum fault.
func IsMalformedEnum(err error) bool {
	var me *Error
	if errors.As(err, &me) {
		return me.Code == ErrCodeMalformedEnum
	}
	return false
}

// IsOrphanSequenceElement returns true if the error is an orphan sequence
// element fault.
func IsOrphanSequenceElement(err error) bool {
	var me *Error
	if errors.As(err, &me) {
		return me.Code == ErrCodeOrphanSequenceElement
	}
	return false
}

// CodeOf returns the error's code, or "" for non-model errors.
func CodeOf(err error) ErrorCode {
	var me *Error
	if errors.As(err, &me) {
		return me.Code
	}
	return ""
}

// NewIntegrityViolation creates an integrity violation error.
func NewIntegrityViolation(entity, message string) *Error {
	return &Error{Code: ErrCodeIntegrityViolation, Entity: entity, Message: message}
}

// NewMalformedEnum creates a malformed-enum error.
func NewMalformedEnum(entity, field string, value int32) *Error {
	return &Error{
		Code:    ErrCodeMalformedEnum,
		Entity:  entity,
		Message: fmt.Sprintf("%s holds value %d outside its domain", field, value),
	}
}

// NewOrphanSequenceElement creates an orphan-sequence-element error.
func NewOrphanSequenceElement(entity, field string, index int, ref RecID) *Error {
	return &Error{
		Code:    ErrCodeOrphanSequenceElement,
		Entity:  entity,
		Message: fmt.Sprintf("%s[%d] references nonexistent record %d", field, index, ref),
		Details: map[string]string{
			"field": field,
			"index": fmt.Sprintf("%d", index),
			"ref":   fmt.Sprintf("%d", ref),
		},
	}
}
