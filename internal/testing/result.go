// Copyright 2021 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package testing

import (
	"fmt"
	"time"

	"go.chromium.org/gfxconform/errors"
	"go.chromium.org/gfxconform/shutil"
)

// Image describes an image artifact produced by a test.
type Image struct {
	// Path is the location of the image, relative to the results directory.
	Path string `json:"path"`
	// Description says what the image shows, e.g. "expected" or "observed".
	Description string `json:"description,omitempty"`
}

// Result is the outcome of a single test. It is owned by the worker running
// the test until it is committed.
type Result struct {
	// Name is the normalized name of the test.
	Name   string `json:"name"`
	Status Status `json:"result"`
	// ReturnCode is nil if no process was started.
	ReturnCode  *int              `json:"returncode"`
	Stdout      string            `json:"out"`
	Stderr      string            `json:"err"`
	Subtests    Subtests          `json:"subtests"`
	Command     []string          `json:"command,omitempty"`
	Environment map[string]string `json:"environment,omitempty"`
	Start       time.Time         `json:"start"`
	End         time.Time         `json:"end"`
	PID         int               `json:"pid,omitempty"`
	// Exception and Traceback describe an error in the runner itself.
	Exception string  `json:"exception,omitempty"`
	Traceback string  `json:"traceback,omitempty"`
	Images    []Image `json:"images,omitempty"`
	// Dmesg holds kernel log lines that appeared while the test ran.
	Dmesg string `json:"dmesg,omitempty"`
}

// NewResult returns a result for the test name with status notrun.
func NewResult(name string) *Result {
	return &Result{Name: name, Status: StatusNotRun}
}

// SetReturnCode records the exit status of the test process.
func (r *Result) SetReturnCode(code int) {
	r.ReturnCode = &code
}

// CommandLine returns a shell command line reproducing the run.
func (r *Result) CommandLine() string {
	return shutil.CommandLine(r.Environment, r.Command)
}

// Duration returns the wall time of the test.
func (r *Result) Duration() time.Duration {
	if r.Start.IsZero() || r.End.IsZero() {
		return 0
	}
	return r.End.Sub(r.Start)
}

// SetHarnessError marks r as failed because the runner itself failed while
// running the test. err's type, message and traceback are recorded.
func (r *Result) SetHarnessError(err error) {
	r.Status = StatusFail
	r.Exception = fmt.Sprintf("%T: %v", errors.Root(err), err)
	r.Traceback = fmt.Sprintf("%+v", err)
}

// Validate returns an error if r cannot be committed.
func (r *Result) Validate() error {
	if !r.Status.Valid() {
		return errors.Errorf("result of %s has invalid status %q", r.Name, r.Status)
	}
	return nil
}

// Clone returns a deep copy of r.
func (r *Result) Clone() *Result {
	c := *r
	if r.ReturnCode != nil {
		c.SetReturnCode(*r.ReturnCode)
	}
	c.Subtests = r.Subtests.Clone()
	c.Command = append([]string(nil), r.Command...)
	if r.Environment != nil {
		c.Environment = make(map[string]string, len(r.Environment))
		for k, v := range r.Environment {
			c.Environment[k] = v
		}
	}
	c.Images = append([]Image(nil), r.Images...)
	return &c
}
