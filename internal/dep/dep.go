// Copyright 2020 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package dep decides whether a test can possibly pass on the driver under
// test before the test is started.
package dep

import (
	"fmt"
	"strings"

	"go.chromium.org/gfxconform/internal/capability"
)

// Requirements contains prerequisites a test declares. Zero-valued fields
// impose no requirement.
type Requirements struct {
	// Extensions lists extension names that must all be supported.
	Extensions []string `json:"extensions,omitempty"`
	// GLVersion etc. are minimum versions.
	GLVersion     capability.Version `json:"glVersion,omitempty"`
	GLESVersion   capability.Version `json:"glesVersion,omitempty"`
	GLSLVersion   capability.Version `json:"glslVersion,omitempty"`
	GLSLESVersion capability.Version `json:"glslEsVersion,omitempty"`
	// Platforms is an allow-list of window-system platforms.
	Platforms []string `json:"platforms,omitempty"`
	// ExcludePlatforms is a deny-list of window-system platforms.
	ExcludePlatforms []string `json:"excludePlatforms,omitempty"`
}

// Empty reports whether r imposes no requirement.
func (r *Requirements) Empty() bool {
	return len(r.Extensions) == 0 && r.GLVersion == 0 && r.GLESVersion == 0 &&
		r.GLSLVersion == 0 && r.GLSLESVersion == 0 &&
		len(r.Platforms) == 0 && len(r.ExcludePlatforms) == 0
}

// Clone returns a deep copy of r.
func (r *Requirements) Clone() Requirements {
	c := *r
	c.Extensions = append([]string(nil), r.Extensions...)
	c.Platforms = append([]string(nil), r.Platforms...)
	c.ExcludePlatforms = append([]string(nil), r.ExcludePlatforms...)
	return c
}

// AddExtension adds ext to the required extensions unless it is already present.
func (r *Requirements) AddExtension(ext string) {
	for _, e := range r.Extensions {
		if e == ext {
			return
		}
	}
	r.Extensions = append(r.Extensions, ext)
}

// Features describes the environment tests are checked against.
type Features struct {
	// Snapshot holds the driver's capabilities. A nil Snapshot makes every
	// capability unknown.
	Snapshot *capability.Snapshot
	// Platform is the window-system platform tests run on.
	Platform string
	// CheckDeps is false if requirements should not be evaluated at all,
	// leaving it to tests to skip themselves.
	CheckDeps bool
}

// Check evaluates r against f. On success, it returns a list of reasons for
// which a test should be skipped. If reasons is empty, the test should be run.
//
// A capability the driver could not report never causes a skip.
func (r *Requirements) Check(f *Features) (reasons []string) {
	if !f.CheckDeps {
		return nil
	}

	s := f.Snapshot
	if s == nil {
		s = &capability.Snapshot{}
	}

	if s.ExtensionsKnown() {
		for _, ext := range r.Extensions {
			if !s.HasExtension(ext) {
				reasons = append(reasons, fmt.Sprintf("requires extension %s, which is not available", ext))
			}
		}
	}

	for _, v := range []struct {
		name      string
		want, got capability.Version
	}{
		{"GL", r.GLVersion, s.GLVersion},
		{"GLES", r.GLESVersion, s.GLESVersion},
		{"GLSL", r.GLSLVersion, s.GLSLVersion},
		{"GLSL ES", r.GLSLESVersion, s.GLSLESVersion},
	} {
		if v.want.Known() && v.got.Known() && v.got < v.want {
			reasons = append(reasons, fmt.Sprintf("requires %s version %v, but only %v is available", v.name, v.want, v.got))
		}
	}

	if len(r.Platforms) > 0 && !contains(r.Platforms, f.Platform) {
		reasons = append(reasons, fmt.Sprintf("only runs on platforms %s, not %s", strings.Join(r.Platforms, ", "), f.Platform))
	}
	if contains(r.ExcludePlatforms, f.Platform) {
		reasons = append(reasons, fmt.Sprintf("does not run on platform %s", f.Platform))
	}
	return reasons
}

func contains(list []string, s string) bool {
	for _, e := range list {
		if e == s {
			return true
		}
	}
	return false
}
