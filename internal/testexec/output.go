// Copyright 2019 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package testexec

import (
	"time"

	"golang.org/x/text/encoding/unicode"
)

// Ladder describes how far the timeout escalation went for a process.
type Ladder int

const (
	// Exited means the process exited on its own.
	Exited Ladder = iota
	// Terminated means the timeout expired and the process was asked to terminate.
	Terminated
	// Killed means the process survived the grace period and its process group was killed.
	Killed
)

func (l Ladder) String() string {
	switch l {
	case Exited:
		return "exited"
	case Terminated:
		return "terminated"
	case Killed:
		return "killed"
	default:
		return "unknown"
	}
}

// Output is the raw outcome of running one test process. It is never
// interpreted by this package.
type Output struct {
	// Argv is the command line that was spawned.
	Argv []string
	// Stdout and Stderr hold captured output decoded as UTF-8, with invalid
	// sequences replaced.
	Stdout, Stderr string
	// ExitCode is the exit status of the process. A process killed by a
	// signal has the negated signal number.
	ExitCode int
	// PID is the process ID of the child. It is zero if nothing was spawned.
	PID int
	// NotFound is true if the executable does not exist. Nothing was spawned.
	NotFound bool
	// Ladder is the terminal state of the timeout escalation.
	Ladder Ladder
	// Start and End delimit the run.
	Start, End time.Time
}

// TimedOut reports whether the timeout expired.
func (o *Output) TimedOut() bool { return o.Ladder != Exited }

// Crashed reports whether the exit code indicates an abnormal termination on goos.
func (o *Output) Crashed(goos string) bool { return IsCrash(o.ExitCode, goos) }

// IsCrash reports whether code indicates an abnormal termination on goos.
// A negative code means the process was killed by a signal. On Windows,
// MSVCRT's abort() exits with status 3.
func IsCrash(code int, goos string) bool {
	if code < 0 {
		return true
	}
	return goos == "windows" && code == 3
}

// decode converts captured bytes to a string, replacing invalid UTF-8.
func decode(b []byte) string {
	s, err := unicode.UTF8.NewDecoder().Bytes(b)
	if err != nil {
		return string(b)
	}
	return string(s)
}
