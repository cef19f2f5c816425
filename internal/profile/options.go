// Copyright 2021 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package profile

// RunOptions are the options of a whole run, as given on the command line.
type RunOptions struct {
	// Execute is false for a dry run, which reports every test as notrun
	// without starting it.
	Execute bool
	// Valgrind runs tests of every family but dEQP under the memory checker.
	Valgrind bool
	// Sync flushes every result to disk as soon as it is written.
	Sync bool
	// DEQPMustpass reads dEQP cases from curated must-pass lists instead of
	// enumerating them with the binary.
	DEQPMustpass bool
	// ProcessIsolation runs each test in its own process. Batching tests in
	// a shared process is not supported, so false only produces a warning.
	ProcessIsolation bool
	// Jobs is the width of the parallel pool. Zero means the number of CPUs.
	Jobs int
	// ForceGLSL runs GLSL ES parser tests with the desktop parser.
	ForceGLSL bool
	// SPIRV makes shader tests consume SPIR-V.
	SPIRV bool
	// Env is layered onto the environment of every profile.
	Env map[string]string
	// IncludeFilter keeps only tests matching any of the patterns.
	IncludeFilter []string
	// ExcludeFilter drops tests matching any of the patterns.
	ExcludeFilter []string
	// ExcludeTests drops tests with exactly these names.
	ExcludeTests []string
	// TestList, if non-empty, names the tests to run in order.
	TestList []string
	// IgnoreMissing, Dmesg and Monitor override the options of every profile.
	IgnoreMissing bool
	Dmesg         bool
	Monitor       string
}

// DefaultRunOptions returns the options used when none are given.
func DefaultRunOptions() RunOptions {
	return RunOptions{Execute: true, ProcessIsolation: true}
}
