// Copyright (c) 2015-2021, NVIDIA CORPORATION.
// SPDX-License-Identifier: Apache-2.0

// Package blunder provides error-handling wrappers
//
// These wrappers allow callers to provide additional information in Go errors
// while still conforming to the Go error interface.
//
// This package classifies every failure a differential run can report into a
// ViolationKind and lets the detecting code attach the offending action, the
// expected value, and the observed value so that the driver can report (or
// preserve for replay) a failing input with full diagnostic context.
//
// This package is currently implemented on top of the ansel1/merry package:
//   https://github.com/ansel1/merry
//
//   From merry godoc:
//     You can add any context information to an error with `e = merry.WithValue(e, "code", 12345)`
//     You can retrieve that value with `v, _ := merry.Value(e, "code").(int)`
package blunder

import (
	"fmt"

	"github.com/ansel1/merry"

	"github.com/NVIDIA/rbfuzz/logger"
)

// ViolationKind classifies a run failure.
type ViolationKind int

const (
	// NoViolation is reported for a nil error.
	NoViolation ViolationKind = iota

	// UnclassifiedError is reported for a non-nil error that never had a kind attached.
	UnclassifiedError

	// EquivalenceViolation: oracle and tree disagree on a query or mutation result.
	EquivalenceViolation

	// StructuralViolation: the tree's self-check found a broken invariant.
	StructuralViolation

	// CardinalityViolation: a lockstep walk ended with one side not exhausted.
	CardinalityViolation

	// PreconditionViolation: the harness was about to break a collaborator's contract.
	PreconditionViolation

	// ConfigError: a run or campaign configuration could not be used.
	ConfigError

	// TimeoutError: the driver's deadline expired and the run was abandoned.
	TimeoutError
)

var violationKindStrings = []string{
	"NoViolation",
	"UnclassifiedError",
	"EquivalenceViolation",
	"StructuralViolation",
	"CardinalityViolation",
	"PreconditionViolation",
	"ConfigError",
	"TimeoutError",
}

func (kind ViolationKind) String() string {
	if (kind < 0) || (int(kind) >= len(violationKindStrings)) {
		return fmt.Sprintf("ViolationKind(%d)", int(kind))
	}
	return violationKindStrings[kind]
}

// Fatal reports whether a failure of this kind must terminate the run.
//
// Every detected mismatch is fatal; only the absence of an error is not.
func (kind ViolationKind) Fatal() bool {
	return NoViolation != kind
}

// Keys of the values attached to a blunder error
const (
	kindKey     = "kind"
	actionKey   = "action"
	expectedKey = "expected"
	observedKey = "observed"
	stepKey     = "step"
)

// NewError creates a new merry/blunder.ViolationKind-annotated error using the
// given format string and arguments.
func NewError(kind ViolationKind, format string, a ...interface{}) error {
	return merry.WrapSkipping(fmt.Errorf(format, a...), 1).WithValue(kindKey, kind)
}

// AddKind is used to add a ViolationKind to a Go error.
//
// NOTE: merry replaces an existing kind with the new one. That is normally a
//       mistake (a StructuralViolation re-reported as an EquivalenceViolation
//       hides the real defect), so it is logged.
func AddKind(e error, kind ViolationKind) error {
	if nil == e {
		return merry.New("unspecified " + kind.String()).WithValue(kindKey, kind)
	}

	prevKind := Kind(e)
	if (UnclassifiedError != prevKind) && (prevKind != kind) {
		logger.Warnf("replacing violation kind %v with %v for error %v", prevKind, kind, e)
	}

	return merry.WrapSkipping(e, 1).WithValue(kindKey, kind)
}

// Kind extracts the ViolationKind from the error, if it was previously set.
func Kind(e error) ViolationKind {
	if nil == e {
		return NoViolation
	}

	kind, ok := merry.Value(e, kindKey).(ViolationKind)
	if !ok {
		return UnclassifiedError
	}

	return kind
}

// Is checks if an error matches a particular ViolationKind.
func Is(e error, kind ViolationKind) bool {
	return Kind(e) == kind
}

// IsNot checks if an error is NOT a particular ViolationKind.
func IsNot(e error, kind ViolationKind) bool {
	return Kind(e) != kind
}

// WithAction records the action (kind and arguments, already rendered) that
// exposed the failure.
func WithAction(e error, action string) error {
	if nil == e {
		return nil
	}
	return merry.WrapSkipping(e, 1).WithValue(actionKey, action)
}

// Action returns the rendered action attached by WithAction(), or "".
func Action(e error) string {
	action, _ := merry.Value(e, actionKey).(string)
	return action
}

// WithExpectedObserved records what the oracle predicted and what the tree returned.
func WithExpectedObserved(e error, expected interface{}, observed interface{}) error {
	if nil == e {
		return nil
	}
	return merry.WrapSkipping(e, 1).WithValue(expectedKey, expected).WithValue(observedKey, observed)
}

// Expected returns the value attached by WithExpectedObserved(), or nil.
func Expected(e error) interface{} {
	return merry.Value(e, expectedKey)
}

// Observed returns the value attached by WithExpectedObserved(), or nil.
func Observed(e error) interface{} {
	return merry.Value(e, observedKey)
}

// WithStep records the round (0-based) during which the failure was detected.
func WithStep(e error, step int) error {
	if nil == e {
		return nil
	}
	return merry.WrapSkipping(e, 1).WithValue(stepKey, step)
}

// Step returns the round attached by WithStep().
func Step(e error) (step int, ok bool) {
	step, ok = merry.Value(e, stepKey).(int)
	return
}

// ErrorString renders the error message followed by every attached value.
func ErrorString(e error) string {
	if nil == e {
		return ""
	}

	errString := fmt.Sprintf("%s [%v]", e.Error(), Kind(e))

	if step, ok := Step(e); ok {
		errString += fmt.Sprintf(" step=%d", step)
	}
	if action := Action(e); "" != action {
		errString += fmt.Sprintf(" action=%s", action)
	}
	if expected := Expected(e); nil != expected {
		errString += fmt.Sprintf(" expected=%v observed=%v", expected, Observed(e))
	}

	return errString
}

// Location returns the file and line number of the code that generated the error.
// Returns zero values if e has no stacktrace.
func Location(e error) (file string, line int) {
	file, line = merry.Location(e)
	return
}

// SourceLine returns the string representation of Location's result
// Returns empty string if e has no stacktrace.
func SourceLine(e error) string {
	return merry.SourceLine(e)
}

// Details wraps merry.Details, which returns all error details including stacktrace in a string.
func Details(e error) string {
	return merry.Details(e)
}

// Stacktrace wraps merry.Stacktrace, which returns error stacktrace (if set) in a string.
func Stacktrace(e error) string {
	return merry.Stacktrace(e)
}
