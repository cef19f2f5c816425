// Copyright 2021 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package testing

import (
	"regexp"
	"strings"

	"go.chromium.org/gfxconform/errors"
)

// Filter decides whether a test is part of a run. Implementations must not
// modify t.
type Filter interface {
	Keep(name string, t *Test) bool
}

// FilterFunc adapts a function to Filter.
type FilterFunc func(name string, t *Test) bool

// Keep implements Filter.
func (f FilterFunc) Keep(name string, t *Test) bool { return f(name, t) }

// KeepAll reports whether every filter keeps the test.
func KeepAll(filters []Filter, name string, t *Test) bool {
	for _, f := range filters {
		if !f.Keep(name, t) {
			return false
		}
	}
	return true
}

// RegexFilter matches test names against user-supplied patterns.
type RegexFilter struct {
	res     []*regexp.Regexp
	inverse bool
}

// compilePattern compiles a user-supplied pattern. Matching is
// case-insensitive and "/" matches any character, so users can type group
// paths regardless of the separator used in names.
func compilePattern(pat string) (*regexp.Regexp, error) {
	re, err := regexp.Compile("(?i)" + strings.ReplaceAll(pat, "/", "."))
	if err != nil {
		return nil, errors.ConfigErrorf("bad filter %q: %v", pat, err)
	}
	return re, nil
}

func newRegexFilter(pats []string, inverse bool) (*RegexFilter, error) {
	f := &RegexFilter{inverse: inverse}
	for _, p := range pats {
		re, err := compilePattern(p)
		if err != nil {
			return nil, err
		}
		f.res = append(f.res, re)
	}
	return f, nil
}

// NewIncludeFilter returns a filter keeping tests whose name matches any of pats.
func NewIncludeFilter(pats []string) (*RegexFilter, error) { return newRegexFilter(pats, false) }

// NewExcludeFilter returns a filter dropping tests whose name matches any of pats.
func NewExcludeFilter(pats []string) (*RegexFilter, error) { return newRegexFilter(pats, true) }

// Keep implements Filter.
func (f *RegexFilter) Keep(name string, t *Test) bool {
	if len(f.res) == 0 {
		return true
	}
	matched := false
	for _, re := range f.res {
		if re.MatchString(name) {
			matched = true
			break
		}
	}
	return matched != f.inverse
}

// NameFilter drops tests whose normalized name is in a set.
type NameFilter struct {
	names map[string]struct{}
}

// NewExcludeNamesFilter returns a filter dropping the named tests.
func NewExcludeNamesFilter(names []string) *NameFilter {
	f := &NameFilter{names: make(map[string]struct{})}
	for _, n := range names {
		f.names[NormalizeName(n)] = struct{}{}
	}
	return f
}

// Keep implements Filter.
func (f *NameFilter) Keep(name string, t *Test) bool {
	_, ok := f.names[NormalizeName(name)]
	return !ok
}
