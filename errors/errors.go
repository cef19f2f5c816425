// Copyright 2018 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package errors provides basic utilities to construct errors.
//
// To construct new errors or wrap other errors, use this package rather than
// standard libraries (errors.New, fmt.Errorf) or any other third-party
// libraries. This package records stack traces and chained errors, which end
// up in the traceback of a test result when the harness itself fails.
//
// To construct a new error, use New or Errorf.
//
//	errors.New("catalog is empty")
//	errors.Errorf("profile %q not found", name)
//
// To construct an error by adding context to an existing error, use Wrap or
// Wrapf.
//
//	errors.Wrap(err, "failed to probe driver")
//	errors.Wrapf(err, "failed to read %s", path)
//
// Errors that must terminate a run carry a Kind, which determines the exit
// status of the front-end. Use ConfigErrorf, UserErrorf or AbortErrorf to
// construct them, and KindOf to inspect an error chain.
//
// A stack trace can be printed by formatting an error with the fmt package
// with the "%+v" verb.
package errors

import (
	stderrors "errors"
	"fmt"
	"io"
	"strings"

	"go.chromium.org/gfxconform/errors/stack"
)

// Kind classifies errors that terminate a run.
type Kind int

const (
	// KindNone is the kind of ordinary errors.
	KindNone Kind = iota
	// KindConfig is the kind of fatal configuration errors detected before a
	// run starts, e.g. an unknown profile or a duplicated catalog key.
	KindConfig
	// KindUser is the kind of errors caused by user input, e.g. filters that
	// select no tests.
	KindUser
	// KindAbort is the kind of errors raised when a monitor aborted a run.
	KindAbort
)

// ExitCode returns the process exit status a front-end should use for k.
func (k Kind) ExitCode() int {
	switch k {
	case KindConfig:
		return 2
	case KindUser:
		return 3
	case KindAbort:
		return 4
	default:
		return 1
	}
}

func (k Kind) String() string {
	switch k {
	case KindConfig:
		return "configuration error"
	case KindUser:
		return "user error"
	case KindAbort:
		return "aborted"
	default:
		return "error"
	}
}

// impl is the error implementation used by this package.
type impl struct {
	msg   string      // error message to be prepended to cause
	stk   stack.Stack // stack trace where this error was created
	cause error       // original error that caused this error if non-nil
	kind  Kind        // kind of this error; KindNone inherits from cause
}

// Error implements the error interface.
func (e *impl) Error() string {
	if e.cause == nil {
		return e.msg
	}
	return fmt.Sprintf("%s: %s", e.msg, e.cause.Error())
}

// Unwrap returns the cause of e.
func (e *impl) Unwrap() error {
	return e.cause
}

// formatChain formats an error chain.
func formatChain(err error) string {
	var chain []string
	for err != nil {
		if e, ok := err.(*impl); !ok {
			chain = append(chain, fmt.Sprintf("%s\n\tat ???", err.Error()))
			err = nil
		} else {
			chain = append(chain, fmt.Sprintf("%s\n%v", e.msg, e.stk))
			err = e.cause
		}
	}
	return strings.Join(chain, "\n")
}

// Format implements the fmt.Formatter interface.
// In particular, it is supported to format an error chain by "%+v" verb.
func (e *impl) Format(s fmt.State, verb rune) {
	if verb == 'v' && s.Flag('+') {
		io.WriteString(s, formatChain(e))
	} else {
		io.WriteString(s, e.Error())
	}
}

// New creates a new error with the given message.
// This is similar to the standard errors.New, but also records the location
// where it was called.
func New(msg string) error {
	s := stack.New(1)
	return &impl{msg: msg, stk: s}
}

// Errorf creates a new error with the given message.
// This is similar to the standard fmt.Errorf, but also records the location
// where it was called.
func Errorf(format string, args ...interface{}) error {
	s := stack.New(1)
	msg := fmt.Sprintf(format, args...)
	return &impl{msg: msg, stk: s}
}

// Wrap creates a new error with the given message, wrapping another error.
// This function also records the location where it was called.
// If cause is nil, this is the same as New.
func Wrap(cause error, msg string) error {
	s := stack.New(1)
	return &impl{msg: msg, stk: s, cause: cause}
}

// Wrapf creates a new error with the given message, wrapping another error.
// This function also records the location where it was called.
// If cause is nil, this is the same as Errorf.
func Wrapf(cause error, format string, args ...interface{}) error {
	s := stack.New(1)
	msg := fmt.Sprintf(format, args...)
	return &impl{msg: msg, stk: s, cause: cause}
}

// ConfigErrorf creates a new error of KindConfig.
func ConfigErrorf(format string, args ...interface{}) error {
	s := stack.New(1)
	return &impl{msg: fmt.Sprintf(format, args...), stk: s, kind: KindConfig}
}

// UserErrorf creates a new error of KindUser.
func UserErrorf(format string, args ...interface{}) error {
	s := stack.New(1)
	return &impl{msg: fmt.Sprintf(format, args...), stk: s, kind: KindUser}
}

// AbortErrorf creates a new error of KindAbort.
func AbortErrorf(format string, args ...interface{}) error {
	s := stack.New(1)
	return &impl{msg: fmt.Sprintf(format, args...), stk: s, kind: KindAbort}
}

// WithKind wraps cause so that KindOf reports kind for it.
// If cause is nil, WithKind returns nil.
func WithKind(cause error, kind Kind) error {
	if cause == nil {
		return nil
	}
	s := stack.New(1)
	return &impl{msg: kind.String(), stk: s, cause: cause, kind: kind}
}

// KindOf returns the outermost Kind recorded in the chain of err.
// It returns KindNone if err is nil or no error in the chain has a kind.
func KindOf(err error) Kind {
	for err != nil {
		if e, ok := err.(*impl); ok && e.kind != KindNone {
			return e.kind
		}
		err = stderrors.Unwrap(err)
	}
	return KindNone
}

// Origin returns the stack frame where the innermost error of this package
// in the chain of err was created. ok is false if there is none.
func Origin(err error) (f stack.Frame, ok bool) {
	for err != nil {
		if e, isImpl := err.(*impl); isImpl {
			if top, found := e.stk.Top(); found {
				f, ok = top, true
			}
		}
		err = stderrors.Unwrap(err)
	}
	return f, ok
}

// Root returns the innermost error in the chain of err.
func Root(err error) error {
	for {
		next := stderrors.Unwrap(err)
		if next == nil {
			return err
		}
		err = next
	}
}

// Is reports whether any error in the chain of err matches target.
// It is equivalent to the standard errors.Is.
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

// As finds the first error in the chain of err that matches target.
// It is equivalent to the standard errors.As.
func As(err error, target interface{}) bool {
	return stderrors.As(err, target)
}
