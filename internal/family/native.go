// Copyright 2021 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package family implements the kinds of tests the runner knows how to run
// and how their output is interpreted.
package family

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"go.chromium.org/gfxconform/internal/testexec"
	"go.chromium.org/gfxconform/internal/testing"
)

// protocolPrefix starts lines of the machine-readable protocol spoken by native tests.
const protocolPrefix = "PIGLIT:"

// protocolMessage is the JSON object following protocolPrefix.
type protocolMessage struct {
	Result    *string           `json:"result"`
	Subtest   *testing.Subtests `json:"subtest"`
	Enumerate []string          `json:"enumerate subtests"`
}

// parseProtocol applies protocol lines in stdout to res and returns stdout
// with those lines removed.
func parseProtocol(stdout string, res *testing.Result) (string, error) {
	lines := strings.Split(stdout, "\n")
	kept := lines[:0:0]
	var firstErr error
	fail := func(err error) {
		if firstErr == nil {
			firstErr = err
		}
	}

	for _, line := range lines {
		if !strings.HasPrefix(line, protocolPrefix) {
			kept = append(kept, line)
			continue
		}
		var msg protocolMessage
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, protocolPrefix)), &msg); err != nil {
			fail(fmt.Errorf("malformed protocol line %q: %v", line, err))
			continue
		}
		for _, name := range msg.Enumerate {
			res.Subtests.Set(name, testing.StatusNotRun)
		}
		if msg.Subtest != nil {
			for _, name := range msg.Subtest.Names() {
				s, _ := msg.Subtest.Get(name)
				st, err := testing.ParseStatus(string(s))
				if err != nil {
					fail(fmt.Errorf("subtest %q: %v", name, err))
					continue
				}
				res.Subtests.Set(name, st)
			}
		}
		if msg.Result != nil {
			st, err := testing.ParseStatus(*msg.Result)
			if err != nil {
				fail(err)
				continue
			}
			res.Status = st
		}
	}

	if res.Status == testing.StatusSkip && res.Subtests.Len() > 0 {
		res.Subtests.Replace(testing.StatusNotRun, testing.StatusSkip)
	}
	return strings.Join(kept, "\n"), firstErr
}

// interpretProtocol implements the interpretation shared by tests speaking
// the native protocol.
func interpretProtocol(out *testexec.Output, res *testing.Result) {
	res.Stderr = out.Stderr
	stdout, err := parseProtocol(out.Stdout, res)
	res.Stdout = stdout
	if err != nil {
		res.Status = testing.StatusFail
		res.Exception = err.Error()
		return
	}

	switch {
	case out.Crashed(runtime.GOOS):
		res.Status = testing.StatusCrash
	case out.ExitCode != 0 && res.Status == testing.StatusPass:
		res.Status = testing.StatusWarn
	case out.ExitCode != 0 && res.Status == testing.StatusNotRun:
		res.Status = testing.StatusFail
	case res.Status == testing.StatusNotRun:
		// The test exited successfully without reporting a result.
		res.Status = testing.StatusFail
	}
}

// Native runs tests built against the native test framework. They report
// results through protocol lines on stdout.
type Native struct {
	// Timeout is given to tests that do not override it.
	Timeout time.Duration
	// SPIRV makes the shader runner consume SPIR-V instead of GLSL.
	SPIRV bool
}

// NativeTimeout is the default timeout of native tests.
const NativeTimeout = 60 * time.Second

// NewNative returns a Native family with the default timeout.
func NewNative() *Native { return &Native{Timeout: NativeTimeout} }

// Name implements testing.Family.
func (*Native) Name() string { return "native" }

// DefaultTimeout implements testing.Family.
func (f *Native) DefaultTimeout() time.Duration { return f.Timeout }

// Command implements testing.Family. Tests always run without waiting for
// user input; concurrent tests render offscreen so they do not fight over
// windows.
func (f *Native) Command(t *testing.Test) []string {
	argv := append([]string(nil), t.Argv...)
	argv = appendMissing(argv, "-auto")
	if t.Concurrent {
		argv = appendMissing(argv, "-fbo")
	}
	if f.SPIRV && filepath.Base(argv[0]) == shaderRunner {
		argv = appendMissing(argv, "-spirv")
	}
	return argv
}

// shaderRunner is the native executable running shader tests.
const shaderRunner = "shader_runner"

// Interpret implements testing.Family.
func (*Native) Interpret(t *testing.Test, out *testexec.Output, res *testing.Result) {
	interpretProtocol(out, res)
}

// Retry implements testing.Family.
func (*Native) Retry(out *testexec.Output) bool { return false }

func appendMissing(argv []string, arg string) []string {
	for _, a := range argv[1:] {
		if a == arg {
			return argv
		}
	}
	return append(argv, arg)
}

// OpenCL runs OpenCL tests, which speak the native protocol but take no extra arguments.
type OpenCL struct{}

// OpenCLTimeout is the default timeout of OpenCL tests.
const OpenCLTimeout = 60 * time.Second

// Name implements testing.Family.
func (OpenCL) Name() string { return "opencl" }

// DefaultTimeout implements testing.Family.
func (OpenCL) DefaultTimeout() time.Duration { return OpenCLTimeout }

// Command implements testing.Family.
func (OpenCL) Command(t *testing.Test) []string { return append([]string(nil), t.Argv...) }

// Interpret implements testing.Family.
func (OpenCL) Interpret(t *testing.Test, out *testexec.Output, res *testing.Result) {
	interpretProtocol(out, res)
}

// Retry implements testing.Family.
func (OpenCL) Retry(out *testexec.Output) bool { return false }
