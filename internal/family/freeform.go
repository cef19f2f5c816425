// Copyright 2021 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package family

import (
	"regexp"
	"runtime"
	"time"

	"go.chromium.org/gfxconform/internal/testexec"
	"go.chromium.org/gfxconform/internal/testing"
)

// freeformRE finds the verdict printed by free-form tests.
var freeformRE = regexp.MustCompile(`FAIL|PASS`)

// FreeForm runs executables that print PASS or FAIL somewhere in their output.
type FreeForm struct{}

// Name implements testing.Family.
func (FreeForm) Name() string { return "freeform" }

// DefaultTimeout implements testing.Family. Free-form tests have no timeout by default.
func (FreeForm) DefaultTimeout() time.Duration { return 0 }

// Command implements testing.Family.
func (FreeForm) Command(t *testing.Test) []string { return append([]string(nil), t.Argv...) }

// Interpret implements testing.Family. FAIL takes precedence over PASS. If
// neither is printed, the exit status decides.
func (FreeForm) Interpret(t *testing.Test, out *testexec.Output, res *testing.Result) {
	res.Stdout = out.Stdout
	res.Stderr = out.Stderr

	if out.Crashed(runtime.GOOS) {
		res.Status = testing.StatusCrash
		return
	}

	verdicts := freeformRE.FindAllString(out.Stdout, -1)
	switch {
	case contains(verdicts, "FAIL"):
		res.Status = testing.StatusFail
	case contains(verdicts, "PASS"):
		res.Status = testing.StatusPass
	case out.ExitCode != 0:
		res.Status = testing.StatusFail
	default:
		res.Status = testing.StatusPass
	}
}

// Retry implements testing.Family.
func (FreeForm) Retry(out *testexec.Output) bool { return false }

func contains(list []string, s string) bool {
	for _, e := range list {
		if e == s {
			return true
		}
	}
	return false
}
