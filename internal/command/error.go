// Copyright 2018 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package command contains code shared by the executables of the runner.
package command

import (
	"io"

	"go.chromium.org/gfxconform/errors"
)

// Exit statuses of the runner front-end.
const (
	StatusSuccess = 0 // the run completed, regardless of individual test results
	StatusError   = 1 // unclassified error
	StatusConfig  = 2 // fatal configuration error, e.g. unknown profile or duplicated test name
	StatusUser    = 3 // user error, e.g. no test matched the filters
	StatusAborted = 4 // a monitor aborted the run
)

// ExitStatus returns the exit status to use for err.
func ExitStatus(err error) int {
	if err == nil {
		return StatusSuccess
	}
	return errors.KindOf(err).ExitCode()
}

// WriteError writes a newline-terminated fatal error to w and returns the status code to use when exiting.
// The status code is derived from the kind of err; see errors.Kind.
func WriteError(w io.Writer, err error) int {
	msg := err.Error()
	if kind := errors.KindOf(err); kind != errors.KindNone {
		msg = kind.String() + ": " + msg
	}
	if len(msg) > 0 && msg[len(msg)-1] != '\n' {
		msg += "\n"
	}
	io.WriteString(w, msg)

	return ExitStatus(err)
}
