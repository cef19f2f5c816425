// Copyright 2018 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package capability

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Version is a decimal API or shading language version scaled by 100,
// e.g. 4.5 and 4.50 are both 450. The zero value means the version is unknown.
type Version int

// Unknown is the Version reported when a value could not be determined.
const Unknown Version = 0

// versionRE matches the first decimal version number in a string.
var versionRE = regexp.MustCompile(`(\d+)\.(\d+)`)

// errorSentinel is printed by wflinfo in place of a value it failed to query.
const errorSentinel = "WFLINFO_GL_ERROR"

// ParseVersion parses a version such as "3.2", "1.10" or "4.60". The minor
// part is interpreted as a decimal fraction, so "1.1" equals "1.10".
func ParseVersion(s string) (Version, error) {
	m := versionRE.FindStringSubmatch(s)
	if m == nil || m[0] != s {
		return Unknown, fmt.Errorf("malformed version %q", s)
	}
	return fromParts(m[1], m[2])
}

// scanVersion extracts the first version number found in s, skipping any
// leading text and ignoring trailing vendor text. Unknown is returned if s
// holds no version or carries the wflinfo error sentinel.
func scanVersion(s string) Version {
	if s == "" || strings.Contains(s, errorSentinel) {
		return Unknown
	}
	m := versionRE.FindStringSubmatch(s)
	if m == nil {
		return Unknown
	}
	v, err := fromParts(m[1], m[2])
	if err != nil {
		return Unknown
	}
	return v
}

func fromParts(major, minor string) (Version, error) {
	maj, err := strconv.Atoi(major)
	if err != nil {
		return Unknown, err
	}
	// Only the first two fractional digits are significant.
	if len(minor) > 2 {
		minor = minor[:2]
	}
	frac, err := strconv.Atoi(minor)
	if err != nil {
		return Unknown, err
	}
	if len(minor) == 1 {
		frac *= 10
	}
	return Version(maj*100 + frac), nil
}

// Known reports whether v holds a version.
func (v Version) Known() bool { return v != Unknown }

func (v Version) String() string {
	if !v.Known() {
		return "unknown"
	}
	return fmt.Sprintf("%d.%02d", int(v)/100, int(v)%100)
}

// MarshalText implements encoding.TextMarshaler.
func (v Version) MarshalText() ([]byte, error) { return []byte(v.String()), nil }
