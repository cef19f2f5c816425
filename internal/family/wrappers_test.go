// Copyright 2021 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package family

import (
	gotesting "testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"go.chromium.org/gfxconform/internal/testexec"
	"go.chromium.org/gfxconform/internal/testing"
)

// fixedFamily reports a fixed status regardless of output.
type fixedFamily struct {
	status testing.Status
	retry  bool
}

func (fixedFamily) Name() string                                                         { return "fixed" }
func (fixedFamily) DefaultTimeout() time.Duration                                        { return time.Second }
func (fixedFamily) Command(t *testing.Test) []string                                     { return t.Argv }
func (f fixedFamily) Interpret(_ *testing.Test, _ *testexec.Output, res *testing.Result) { res.Status = f.status }
func (f fixedFamily) Retry(*testexec.Output) bool                                        { return f.retry }

func TestValgrindReclassification(t *gotesting.T) {
	for _, tc := range []struct {
		inner testing.Status
		code  int
		want  testing.Status
	}{
		{testing.StatusPass, 0, testing.StatusPass},
		{testing.StatusPass, 1, testing.StatusFail},
		{testing.StatusPass, 2, testing.StatusFail},
		{testing.StatusWarn, 1, testing.StatusFail},
		{testing.StatusWarn, 3, testing.StatusFail},
		{testing.StatusWarn, 0, testing.StatusSkip},
		{testing.StatusFail, 0, testing.StatusSkip},
		{testing.StatusFail, 1, testing.StatusSkip},
		{testing.StatusCrash, -11, testing.StatusSkip},
		{testing.StatusSkip, 0, testing.StatusSkip},
	} {
		f := WithValgrind(fixedFamily{status: tc.inner})
		res := interpret(f, &testing.Test{Argv: []string{"t"}}, &testexec.Output{ExitCode: tc.code})
		if res.Status != tc.want {
			t.Errorf("Underlying %v with exit %d: got %v; want %v", tc.inner, tc.code, res.Status, tc.want)
		}
	}
}

func TestValgrindNativeWarn(t *gotesting.T) {
	f := WithValgrind(NewNative())
	for _, tc := range []struct {
		stdout string
		code   int
		want   testing.Status
	}{
		{"PIGLIT: {\"result\": \"pass\"}\n", 0, testing.StatusPass},
		{"PIGLIT: {\"result\": \"pass\"}\n", 1, testing.StatusFail},
		{"PIGLIT: {\"result\": \"pass\"}\n", 2, testing.StatusFail},
		{"PIGLIT: {\"result\": \"pass\"}\n", 3, testing.StatusFail},
		{"PIGLIT: {\"result\": \"warn\"}\n", 0, testing.StatusSkip},
		{"PIGLIT: {\"result\": \"fail\"}\n", 1, testing.StatusSkip},
	} {
		out := &testexec.Output{Stdout: tc.stdout, ExitCode: tc.code}
		if res := interpret(f, &testing.Test{Argv: []string{"t"}}, out); res.Status != tc.want {
			t.Errorf("%q with exit %d: got %v; want %v", tc.stdout, tc.code, res.Status, tc.want)
		}
	}
}

func TestValgrindCommand(t *gotesting.T) {
	f := WithValgrind(NewNative())
	want := []string{"valgrind", "--quiet", "--error-exitcode=1", "--tool=memcheck", "fbo-blit", "-auto"}
	if diff := cmp.Diff(f.Command(&testing.Test{Argv: []string{"fbo-blit"}}), want); diff != "" {
		t.Errorf("Command mismatch (-got +want):\n%s", diff)
	}
	if got := f.Name(); got != "native+valgrind" {
		t.Errorf("Name = %q; want %q", got, "native+valgrind")
	}
}

func TestWindowResizeRetry(t *gotesting.T) {
	f := WithWindowResizeRetry(NewNative())
	if !f.Retry(&testexec.Output{Stdout: "Got spurious window resize\n"}) {
		t.Error("Retry = false for spurious resize; want true")
	}
	if f.Retry(&testexec.Output{Stdout: "PIGLIT: {\"result\": \"pass\"}\n"}) {
		t.Error("Retry = true for clean output; want false")
	}
	if !WithWindowResizeRetry(fixedFamily{retry: true}).Retry(&testexec.Output{}) {
		t.Error("Retry did not defer to the wrapped family")
	}
	if u, ok := f.(unwrapper); !ok || u.Unwrap().Name() != "native" {
		t.Error("Wrapped family is not reachable through Unwrap")
	}
}
