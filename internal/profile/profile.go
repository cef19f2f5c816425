// Copyright 2021 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package profile bundles catalogs of tests with the filters and options
// used to run them.
package profile

import (
	"golang.org/x/exp/maps"

	"go.chromium.org/gfxconform/errors"
	"go.chromium.org/gfxconform/internal/testing"
)

// Options configure how the tests of a profile run.
type Options struct {
	// Dmesg annotates results with kernel log lines matching DmesgFilter.
	Dmesg bool `yaml:"dmesg"`
	// DmesgFilter selects the kernel log lines that affect results. If
	// empty, DefaultDmesgFilter is used.
	DmesgFilter string `yaml:"dmesg_filter"`
	// IgnoreMissing reports forced tests absent from the catalog as notrun
	// instead of failing the run.
	IgnoreMissing bool `yaml:"ignore_missing"`
	// Monitor is a pattern over kernel log lines that aborts the run. Empty
	// disables the monitor.
	Monitor string `yaml:"monitor"`
	// Env is layered onto the environment of every test.
	Env map[string]string `yaml:"env"`
}

// DefaultDmesgFilter matches every kernel log line.
const DefaultDmesgFilter = "."

// Profile is a named catalog together with filters and options.
type Profile struct {
	Name    string
	Catalog *testing.Catalog
	// Filters must all keep a test for it to run.
	Filters []testing.Filter
	// Forced, if non-empty, lists the tests to run in order instead of the
	// whole catalog.
	Forced  []string
	Options Options
}

// New returns a profile with an empty filter list.
func New(name string, cat *testing.Catalog) *Profile {
	return &Profile{Name: name, Catalog: cat}
}

// Entry is a test yielded by iterating a profile.
type Entry struct {
	Name    string
	Test    *testing.Test
	Profile *Profile
}

// AddFilter appends f to the filters of p.
func (p *Profile) AddFilter(f testing.Filter) {
	p.Filters = append(p.Filters, f)
}

// missing returns the test standing in for a forced name absent from the catalog.
func missing(name string) *testing.Test {
	return &testing.Test{Argv: []string{name}, ForceStatus: testing.StatusNotRun}
}

// Each calls f for every test of p that passes all filters, in order, until
// f returns false. The catalog is never modified.
//
// If a forced name is absent from the catalog, a test forced to notrun is
// yielded when IgnoreMissing is set; otherwise Each returns a configuration
// error upon reaching it.
func (p *Profile) Each(f func(e *Entry) bool) error {
	if len(p.Forced) == 0 {
		p.Catalog.Each(func(name string, t *testing.Test) bool {
			if !testing.KeepAll(p.Filters, name, t) {
				return true
			}
			return f(&Entry{Name: name, Test: t, Profile: p})
		})
		return nil
	}

	for _, name := range p.Forced {
		key := testing.NormalizeName(name)
		t, ok := p.Catalog.Get(key)
		if !ok {
			if !p.Options.IgnoreMissing {
				return errors.ConfigErrorf("test %q is not in profile %s", name, p.Name)
			}
			t = missing(key)
		}
		if !testing.KeepAll(p.Filters, key, t) {
			continue
		}
		if !f(&Entry{Name: key, Test: t, Profile: p}) {
			return nil
		}
	}
	return nil
}

// Count returns the number of tests Each yields.
func (p *Profile) Count() (int, error) {
	n := 0
	err := p.Each(func(*Entry) bool {
		n++
		return true
	})
	return n, err
}

// Clone returns a copy of p whose catalog, filters and options may be
// modified independently.
func (p *Profile) Clone() *Profile {
	c := *p
	c.Catalog = p.Catalog.Clone()
	c.Filters = append([]testing.Filter(nil), p.Filters...)
	c.Forced = append([]string(nil), p.Forced...)
	if p.Options.Env != nil {
		c.Options.Env = maps.Clone(p.Options.Env)
	}
	return &c
}

// Apply adds the filters, forced list and environment of o to p.
func (p *Profile) Apply(o *RunOptions) error {
	if len(o.IncludeFilter) > 0 {
		f, err := testing.NewIncludeFilter(o.IncludeFilter)
		if err != nil {
			return err
		}
		p.AddFilter(f)
	}
	if len(o.ExcludeFilter) > 0 {
		f, err := testing.NewExcludeFilter(o.ExcludeFilter)
		if err != nil {
			return err
		}
		p.AddFilter(f)
	}
	if len(o.ExcludeTests) > 0 {
		p.AddFilter(testing.NewExcludeNamesFilter(o.ExcludeTests))
	}
	if len(o.TestList) > 0 {
		p.Forced = append([]string(nil), o.TestList...)
	}
	if len(o.Env) > 0 {
		if p.Options.Env == nil {
			p.Options.Env = make(map[string]string)
		}
		maps.Copy(p.Options.Env, o.Env)
	}
	if o.IgnoreMissing {
		p.Options.IgnoreMissing = true
	}
	if o.Dmesg {
		p.Options.Dmesg = true
	}
	if o.Monitor != "" {
		p.Options.Monitor = o.Monitor
	}
	return nil
}

// CountAll returns the number of tests yielded by all profiles.
func CountAll(ps []*Profile) (int, error) {
	total := 0
	for _, p := range ps {
		n, err := p.Count()
		if err != nil {
			return 0, err
		}
		total += n
	}
	return total, nil
}
