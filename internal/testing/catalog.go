// Copyright 2017 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package testing

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"go.chromium.org/gfxconform/errors"
	"go.chromium.org/gfxconform/shutil"
)

var lower = cases.Lower(language.Und)

// NormalizeName returns the catalog key for a user-facing test name.
func NormalizeName(name string) string {
	return lower.String(name)
}

// Catalog holds tests by name. Names are case-insensitive and iteration
// follows insertion order. A Catalog is not safe for concurrent modification;
// it is populated while a profile is loaded and read-only afterwards.
type Catalog struct {
	names    []string
	tests    map[string]*Test
	reassign int // depth of active AllowReassignment scopes
}

// NewCatalog returns an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{tests: make(map[string]*Test)}
}

// Add adds a copy of t under name.
//
// Adding a name that is already present is a configuration error unless an
// AllowReassignment scope is active, in which case the existing test is
// replaced and keeps its position.
func (c *Catalog) Add(name string, t *Test) error {
	if t == nil {
		return errors.ConfigErrorf("cannot add nil test %q", name)
	}
	if err := t.Validate(); err != nil {
		return errors.Wrapf(err, "cannot add %q", name)
	}
	key := NormalizeName(name)
	if old, ok := c.tests[key]; ok {
		if c.reassign == 0 {
			return errors.ConfigErrorf("test %q already registered: existing %s, new %s",
				key, shutil.EscapeSlice(old.Argv), shutil.EscapeSlice(t.Argv))
		}
	} else {
		c.names = append(c.names, key)
	}
	c.tests[key] = t.Clone()
	return nil
}

// AllowReassignment opens a scope in which Add may replace existing tests.
// Scopes nest; the returned function closes the scope and must be called
// exactly once, typically with defer.
func (c *Catalog) AllowReassignment() (release func()) {
	c.reassign++
	released := false
	return func() {
		if released {
			return
		}
		released = true
		c.reassign--
	}
}

// Get returns the test registered under name. The returned test must not be modified.
func (c *Catalog) Get(name string) (*Test, bool) {
	t, ok := c.tests[NormalizeName(name)]
	return t, ok
}

// Delete removes the test registered under name, if any.
func (c *Catalog) Delete(name string) {
	key := NormalizeName(name)
	if _, ok := c.tests[key]; !ok {
		return
	}
	delete(c.tests, key)
	for i, n := range c.names {
		if n == key {
			c.names = append(c.names[:i:i], c.names[i+1:]...)
			break
		}
	}
}

// Len returns the number of tests.
func (c *Catalog) Len() int { return len(c.names) }

// Names returns test names in insertion order.
func (c *Catalog) Names() []string { return append([]string(nil), c.names...) }

// Each calls f for each test in insertion order until f returns false.
func (c *Catalog) Each(f func(name string, t *Test) bool) {
	for _, n := range c.names {
		if !f(n, c.tests[n]) {
			return
		}
	}
}

// Clone returns a copy of c. Tests are shared, as they are immutable.
func (c *Catalog) Clone() *Catalog {
	n := NewCatalog()
	n.names = append([]string(nil), c.names...)
	for k, t := range c.tests {
		n.tests[k] = t
	}
	return n
}

// Group returns a GroupManager adding tests of family under prefix.
// defaults are applied to every test before per-test options.
func (c *Catalog) Group(family Family, prefix string, defaults ...Option) *GroupManager {
	return &GroupManager{cat: c, family: family, prefix: prefix, defaults: defaults}
}

// GroupManager adds tests sharing a family, a name prefix and default options.
type GroupManager struct {
	cat      *Catalog
	family   Family
	prefix   string
	defaults []Option
	err      error // first error returned by Add
}

// JoinName joins name components with "/".
func JoinName(elems ...string) string {
	var parts []string
	for _, e := range elems {
		if e = strings.Trim(e, "/"); e != "" {
			parts = append(parts, e)
		}
	}
	return strings.Join(parts, "/")
}

// Add adds a test running args. If name is empty, the arguments joined by
// spaces are used. Options override the group defaults.
func (g *GroupManager) Add(args []string, name string, opts ...Option) error {
	if name == "" {
		name = strings.Join(args, " ")
	}
	t := &Test{Argv: append([]string(nil), args...), Family: g.family}
	if g.family != nil {
		t.Timeout = g.family.DefaultTimeout()
	}
	for _, o := range g.defaults {
		o(t)
	}
	for _, o := range opts {
		o(t)
	}
	err := g.cat.Add(JoinName(g.prefix, name), t)
	if err != nil && g.err == nil {
		g.err = err
	}
	return err
}

// Err returns the first error returned by Add, if any.
func (g *GroupManager) Err() error { return g.err }
