// Copyright 2021 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package family

import (
	"strings"

	"go.chromium.org/gfxconform/internal/testexec"
	"go.chromium.org/gfxconform/internal/testing"
)

// unwrapper is implemented by families that decorate another family.
type unwrapper interface {
	Unwrap() testing.Family
}

// ValgrindPrefix is prepended to the command line of tests run under the
// memory checker. The checker exits with status 1 when it finds errors.
var ValgrindPrefix = []string{"valgrind", "--quiet", "--error-exitcode=1", "--tool=memcheck"}

type valgrind struct {
	testing.Family
	prefix []string
}

// WithValgrind returns f decorated to run tests under the memory checker.
// The underlying verdict is reinterpreted: a test that did not pass reports
// skip, since it says nothing about memory errors; a passing test fails if
// the checker reported errors.
func WithValgrind(f testing.Family) testing.Family {
	return &valgrind{Family: f, prefix: ValgrindPrefix}
}

func (v *valgrind) Name() string { return v.Family.Name() + "+valgrind" }

func (v *valgrind) Unwrap() testing.Family { return v.Family }

func (v *valgrind) Command(t *testing.Test) []string {
	return append(append([]string(nil), v.prefix...), v.Family.Command(t)...)
}

func (v *valgrind) Interpret(t *testing.Test, out *testexec.Output, res *testing.Result) {
	v.Family.Interpret(t, out, res)

	// Protocol interpretation turns a pass with a non-zero exit status into warn.
	passed := res.Status == testing.StatusPass ||
		(res.Status == testing.StatusWarn && out.ExitCode != 0)
	switch {
	case !passed:
		res.Status = testing.StatusSkip
	case out.ExitCode != 0:
		res.Status = testing.StatusFail
	default:
		res.Status = testing.StatusPass
	}
}

// spuriousResize is printed by the native framework when the window system
// resized its window unexpectedly.
const spuriousResize = "Got spurious window resize"

type windowResize struct {
	testing.Family
}

// WithWindowResizeRetry returns f decorated to rerun tests that saw a
// spurious window resize.
func WithWindowResizeRetry(f testing.Family) testing.Family {
	return &windowResize{Family: f}
}

func (w *windowResize) Unwrap() testing.Family { return w.Family }

func (w *windowResize) Retry(out *testexec.Output) bool {
	return strings.Contains(out.Stdout, spuriousResize) || w.Family.Retry(out)
}
