// Unified error handling for the printer simulator
//
// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents the category of error
type ErrorCode string

const (
	// G-code errors
	ErrCodeMalformedMove ErrorCode = "MALFORMED_MOVE"
	ErrCodeProgramIO     ErrorCode = "PROGRAM_IO"

	// Motion errors
	ErrCodeQueueEmpty ErrorCode = "QUEUE_EMPTY"
	ErrCodeNoFeedRate ErrorCode = "NO_FEED_RATE"

	// Ambient errors
	ErrCodeConfig  ErrorCode = "CONFIG"
	ErrCodeStorage ErrorCode = "STORAGE"
)

// Sentinels for use with errors.Is. Matching is by code, so any SimError
// carrying the same code compares equal.
var (
	ErrMalformedMove = New(ErrCodeMalformedMove, "malformed move")
	ErrQueueEmpty    = New(ErrCodeQueueEmpty, "motion queue is empty")
	ErrNoFeedRate    = New(ErrCodeNoFeedRate, "no feed rate set")
)

// SimError is the unified error type for the simulator
type SimError struct {
	// Code is the error category
	Code ErrorCode

	// Message is a human-readable error description
	Message string

	// Command is the G-code line being processed (if any)
	Command string

	// Line is the 1-based program line (if known)
	Line int

	// Err wraps the underlying error
	Err error
}

// Error implements the error interface
func (e *SimError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Code, e.Message)
	if e.Command != "" {
		msg += fmt.Sprintf(" (command %q)", e.Command)
	}
	if e.Line > 0 {
		msg += fmt.Sprintf(" at line %d", e.Line)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error
func (e *SimError) Unwrap() error {
	return e.Err
}

// Is reports whether target is a SimError with the same code.
func (e *SimError) Is(target error) bool {
	t, ok := target.(*SimError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// SetCommand sets the G-code command
func (e *SimError) SetCommand(cmd string) *SimError {
	e.Command = cmd
	return e
}

// SetLine sets the program line number
func (e *SimError) SetLine(line int) *SimError {
	e.Line = line
	return e
}

// New creates a new SimError
func New(code ErrorCode, message string) *SimError {
	return &SimError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an existing error with a code and message
func Wrap(err error, code ErrorCode, message string) *SimError {
	return &SimError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// MalformedMoveError creates an error for a move parameter that is not a number
func MalformedMoveError(command, token string, err error) *SimError {
	return Wrap(err, ErrCodeMalformedMove, fmt.Sprintf("parameter %q is not a number", token)).
		SetCommand(command)
}

// QueueEmptyError creates an error for popping an empty motion queue
func QueueEmptyError() *SimError {
	return New(ErrCodeQueueEmpty, "motion queue is empty")
}

// NoFeedRateError creates an error for planning with a zero movement rate
func NoFeedRateError(command string) *SimError {
	return New(ErrCodeNoFeedRate, "movement rate is zero, no F parameter seen yet").
		SetCommand(command)
}

// ProgramError creates an error for a G-code file that cannot be read
func ProgramError(path string, err error) *SimError {
	return Wrap(err, ErrCodeProgramIO, fmt.Sprintf("unable to read program %s", path))
}

// StorageError creates an error for recording or history failures
func StorageError(operation string, err error) *SimError {
	return Wrap(err, ErrCodeStorage, fmt.Sprintf("storage %s failed", operation))
}

// Is checks if err (or anything it wraps) carries the given code
func Is(err error, code ErrorCode) bool {
	var simErr *SimError
	if stderrors.As(err, &simErr) {
		return simErr.Code == code
	}
	return false
}

// CodeOf returns the code of the first SimError in err's chain, or "" if none.
func CodeOf(err error) ErrorCode {
	var simErr *SimError
	if stderrors.As(err, &simErr) {
		return simErr.Code
	}
	return ""
}
