// Copyright 2021 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package testing defines test definitions, results and the catalog that
// holds definitions by name.
package testing

import (
	"time"

	"go.chromium.org/gfxconform/errors"
	"go.chromium.org/gfxconform/internal/dep"
	"go.chromium.org/gfxconform/internal/testexec"
)

// Family is the behavior shared by all tests of one kind, e.g. native tests
// or dEQP cases. Implementations must be safe for concurrent use.
type Family interface {
	// Name identifies the family, e.g. "native".
	Name() string
	// DefaultTimeout is the timeout given to tests created by a GroupManager.
	DefaultTimeout() time.Duration
	// Command returns the command line to spawn for t.
	Command(t *Test) []string
	// Interpret sets the status and subtests of res, as well as the output
	// surfaced to users, from a finished run of t.
	Interpret(t *Test, out *testexec.Output, res *Result)
	// Retry reports whether a run that produced out should be repeated.
	Retry(out *testexec.Output) bool
}

// Test describes a single invocation of a test executable.
// A Test must not be modified after it is added to a Catalog.
type Test struct {
	// Argv is the command line. Argv[0] is the executable. It is never empty.
	Argv []string
	// Dir is the working directory of the process. If empty, the runner's is used.
	Dir string
	// Env is layered onto the ambient and profile environment.
	Env map[string]string
	// Concurrent is true if the test may run alongside other tests.
	Concurrent bool
	// Timeout is the maximum run time. Zero disables the timeout.
	Timeout time.Duration
	// Requirements are checked before the test is started.
	Requirements dep.Requirements
	// Family interprets the output of the test.
	Family Family
	// ForceStatus, if non-empty, is reported without running the test.
	ForceStatus Status
}

// Validate returns a configuration error if t is malformed.
func (t *Test) Validate() error {
	if len(t.Argv) == 0 {
		return errors.ConfigErrorf("test has an empty command line")
	}
	if t.Family == nil {
		return errors.ConfigErrorf("test %q has no family", t.Argv[0])
	}
	if t.Timeout < 0 {
		return errors.ConfigErrorf("test %q has negative timeout %v", t.Argv[0], t.Timeout)
	}
	if t.ForceStatus != "" && !t.ForceStatus.Valid() {
		return errors.ConfigErrorf("test %q has invalid forced status %q", t.Argv[0], t.ForceStatus)
	}
	return nil
}

// Clone returns a deep copy of t. The Family is shared.
func (t *Test) Clone() *Test {
	c := *t
	c.Argv = append([]string(nil), t.Argv...)
	if t.Env != nil {
		c.Env = make(map[string]string, len(t.Env))
		for k, v := range t.Env {
			c.Env[k] = v
		}
	}
	c.Requirements = t.Requirements.Clone()
	return &c
}

// Option customizes a Test built by a GroupManager.
type Option func(t *Test)

// Dir sets the working directory.
func Dir(dir string) Option {
	return func(t *Test) { t.Dir = dir }
}

// Env adds environment variables, overriding ones set earlier.
func Env(env map[string]string) Option {
	return func(t *Test) {
		if t.Env == nil {
			t.Env = make(map[string]string)
		}
		for k, v := range env {
			t.Env[k] = v
		}
	}
}

// Concurrent sets whether the test may run alongside other tests.
func Concurrent(c bool) Option {
	return func(t *Test) { t.Concurrent = c }
}

// Timeout sets the timeout. Zero disables it.
func Timeout(d time.Duration) Option {
	return func(t *Test) { t.Timeout = d }
}

// Require applies f to the requirements.
func Require(f func(r *dep.Requirements)) Option {
	return func(t *Test) { f(&t.Requirements) }
}

// RequireExtensions adds required extensions.
func RequireExtensions(exts ...string) Option {
	return func(t *Test) {
		for _, e := range exts {
			t.Requirements.AddExtension(e)
		}
	}
}

// Platforms restricts the test to the given window-system platforms.
func Platforms(platforms ...string) Option {
	return func(t *Test) { t.Requirements.Platforms = append([]string(nil), platforms...) }
}

// ExcludePlatforms prevents the test from running on the given platforms.
func ExcludePlatforms(platforms ...string) Option {
	return func(t *Test) { t.Requirements.ExcludePlatforms = append([]string(nil), platforms...) }
}
