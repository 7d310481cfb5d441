// Package vm provides error handling for the FSL virtual machine.
package vm

import (
	"errors"
	"fmt"
)

// ErrorType represents the type of runtime error.
type ErrorType string

const (
	// ErrorMalformedCommand is raised when a command lacks a required field
	// or has the wrong operand shape.
	ErrorMalformedCommand ErrorType = "MALFORMED_COMMAND"

	// ErrorArithmetic is raised for division by zero, non-numeric operands
	// and integer overflow.
	ErrorArithmetic ErrorType = "ARITHMETIC_ERROR"

	// ErrorRecursionLimit is raised when block calls nest deeper than the
	// configured maximum.
	ErrorRecursionLimit ErrorType = "RECURSION_LIMIT_EXCEEDED"

	// ErrorCancelled is raised when the execution context is done.
	ErrorCancelled ErrorType = "CANCELLED"

	// ErrorParse is raised in strict mode when a script has diagnostics.
	ErrorParse ErrorType = "PARSE_ERROR"

	// ErrorOutput is raised when print cannot write to the output.
	ErrorOutput ErrorType = "OUTPUT_ERROR"
)

// RuntimeError represents an error raised while running a script.
type RuntimeError struct {
	Type    ErrorType
	Message string
	Block   string // Block that was executing, empty at top level
	Line    int    // Source line of the command, 0 if unknown
	Err     error  // Underlying cause, if any
}

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	switch {
	case e.Block != "" && e.Line > 0:
		return fmt.Sprintf("[%s] %s in block %s at line %d", e.Type, e.Message, e.Block, e.Line)
	case e.Line > 0:
		return fmt.Sprintf("[%s] %s at line %d", e.Type, e.Message, e.Line)
	case e.Block != "":
		return fmt.Sprintf("[%s] %s in block %s", e.Type, e.Message, e.Block)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap returns the underlying cause.
func (e *RuntimeError) Unwrap() error {
	return e.Err
}

// NewRuntimeError creates a new RuntimeError.
func NewRuntimeError(errType ErrorType, message string) *RuntimeError {
	return &RuntimeError{
		Type:    errType,
		Message: message,
	}
}

// IsErrorType reports whether err is, or wraps, a RuntimeError of type t.
func IsErrorType(err error, t ErrorType) bool {
	var rt *RuntimeError
	if errors.As(err, &rt) {
		return rt.Type == t
	}
	return false
}

// NewMissingFieldError creates an error for a command without a required field.
func NewMissingFieldError(cmd, field string) *RuntimeError {
	if cmd == "" {
		return NewRuntimeError(ErrorMalformedCommand, fmt.Sprintf("command has no %q field", field))
	}
	return NewRuntimeError(ErrorMalformedCommand, fmt.Sprintf("%s: missing %q field", cmd, field))
}

// NewOperandCountError creates an error for an arithmetic command whose
// operand fields cannot be determined.
func NewOperandCountError(cmd string, count int) *RuntimeError {
	return NewRuntimeError(ErrorMalformedCommand,
		fmt.Sprintf("%s: expected lhs/rhs or exactly two operand fields, got %d", cmd, count))
}

// NewArithmeticError wraps an arithmetic failure.
func NewArithmeticError(cmd string, err error) *RuntimeError {
	return &RuntimeError{
		Type:    ErrorArithmetic,
		Message: fmt.Sprintf("%s: %v", cmd, err),
		Err:     err,
	}
}

// NewRecursionLimitError creates an error for a call nested too deeply.
func NewRecursionLimitError(block string, limit int) *RuntimeError {
	return NewRuntimeError(ErrorRecursionLimit,
		fmt.Sprintf("call to %s exceeds maximum call depth %d", block, limit))
}

// NewCancelledError wraps a context error.
func NewCancelledError(err error) *RuntimeError {
	return &RuntimeError{
		Type:    ErrorCancelled,
		Message: fmt.Sprintf("execution stopped: %v", err),
		Err:     err,
	}
}
