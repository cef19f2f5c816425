// Copyright 2021 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package profile

import (
	gotesting "testing"

	"github.com/google/go-cmp/cmp"

	"go.chromium.org/gfxconform/errors"
	"go.chromium.org/gfxconform/internal/family"
	"go.chromium.org/gfxconform/internal/testing"
)

func newTestProfile(t *gotesting.T, names ...string) *Profile {
	t.Helper()
	cat := testing.NewCatalog()
	g := cat.Group(family.FreeForm{}, "")
	for _, n := range names {
		if err := g.Add([]string{"/bin/true"}, n); err != nil {
			t.Fatal(err)
		}
	}
	return New("test", cat)
}

func names(t *gotesting.T, p *Profile) []string {
	t.Helper()
	var ns []string
	if err := p.Each(func(e *Entry) bool {
		ns = append(ns, e.Name)
		return true
	}); err != nil {
		t.Fatal("Each failed: ", err)
	}
	return ns
}

func TestEachFilters(t *gotesting.T) {
	p := newTestProfile(t, "spec/a/one", "spec/a/two", "spec/b/one", "other")
	o := DefaultRunOptions()
	o.IncludeFilter = []string{"spec/a", "spec/b"}
	o.ExcludeFilter = []string{"TWO"}
	o.ExcludeTests = []string{"Spec/B/One"}
	if err := p.Apply(&o); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(names(t, p), []string{"spec/a/one"}); diff != "" {
		t.Errorf("Names mismatch (-got +want):\n%s", diff)
	}
}

func TestEachDoesNotModifyCatalog(t *gotesting.T) {
	p := newTestProfile(t, "a", "b", "c")
	p.AddFilter(testing.FilterFunc(func(name string, _ *testing.Test) bool { return name != "b" }))
	before := p.Catalog.Names()

	for i := 0; i < 2; i++ {
		if diff := cmp.Diff(names(t, p), []string{"a", "c"}); diff != "" {
			t.Errorf("Iteration %d mismatch (-got +want):\n%s", i, diff)
		}
	}
	if diff := cmp.Diff(p.Catalog.Names(), before); diff != "" {
		t.Errorf("Catalog changed by iteration (-got +want):\n%s", diff)
	}
}

func TestEachStops(t *gotesting.T) {
	p := newTestProfile(t, "a", "b", "c")
	n := 0
	p.Each(func(*Entry) bool {
		n++
		return n < 2
	})
	if n != 2 {
		t.Errorf("Each visited %d tests after stop; want 2", n)
	}
}

func TestForcedOrder(t *gotesting.T) {
	p := newTestProfile(t, "a", "b", "c")
	p.Forced = []string{"C", "a"}
	if diff := cmp.Diff(names(t, p), []string{"c", "a"}); diff != "" {
		t.Errorf("Names mismatch (-got +want):\n%s", diff)
	}
}

func TestForcedMissing(t *gotesting.T) {
	p := newTestProfile(t, "a")
	p.Forced = []string{"a", "gone"}
	if err := p.Each(func(*Entry) bool { return true }); errors.KindOf(err) != errors.KindConfig {
		t.Errorf("Each = %v; want a configuration error", err)
	}
	if _, err := p.Count(); err == nil {
		t.Error("Count succeeded with a missing forced test")
	}
}

func TestForcedMissingIgnored(t *gotesting.T) {
	p := newTestProfile(t, "a")
	p.Forced = []string{"gone", "a"}
	p.Options.IgnoreMissing = true

	var entries []*Entry
	if err := p.Each(func(e *Entry) bool {
		entries = append(entries, e)
		return true
	}); err != nil {
		t.Fatal("Each failed: ", err)
	}
	if len(entries) != 2 {
		t.Fatalf("Got %d entries; want 2", len(entries))
	}
	if e := entries[0]; e.Name != "gone" || e.Test.ForceStatus != testing.StatusNotRun {
		t.Errorf("Missing entry = %q forced to %q; want \"gone\" forced to notrun", e.Name, e.Test.ForceStatus)
	}
	if e := entries[1]; e.Test.ForceStatus != "" {
		t.Errorf("Entry %q forced to %q; want none", e.Name, e.Test.ForceStatus)
	}
	if _, ok := p.Catalog.Get("gone"); ok {
		t.Error("Missing test was added to the catalog")
	}
}

func TestApplyOptions(t *gotesting.T) {
	p := newTestProfile(t, "a")
	p.Options.Env = map[string]string{"A": "profile", "B": "profile"}
	o := DefaultRunOptions()
	o.Env = map[string]string{"B": "run"}
	o.TestList = []string{"a"}
	o.Dmesg = true
	o.Monitor = "GPU HANG"
	if err := p.Apply(&o); err != nil {
		t.Fatal(err)
	}
	want := Options{
		Dmesg:   true,
		Monitor: "GPU HANG",
		Env:     map[string]string{"A": "profile", "B": "run"},
	}
	if diff := cmp.Diff(p.Options, want); diff != "" {
		t.Errorf("Options mismatch (-got +want):\n%s", diff)
	}
	if diff := cmp.Diff(p.Forced, []string{"a"}); diff != "" {
		t.Errorf("Forced mismatch (-got +want):\n%s", diff)
	}
}

func TestApplyBadFilter(t *gotesting.T) {
	p := newTestProfile(t, "a")
	o := DefaultRunOptions()
	o.IncludeFilter = []string{"("}
	if err := p.Apply(&o); errors.KindOf(err) != errors.KindConfig {
		t.Errorf("Apply = %v; want a configuration error", err)
	}
}

func TestCloneIsIndependent(t *gotesting.T) {
	p := newTestProfile(t, "a", "b")
	c := p.Clone()
	c.Catalog.Delete("a")
	c.AddFilter(testing.NewExcludeNamesFilter([]string{"b"}))

	if diff := cmp.Diff(names(t, p), []string{"a", "b"}); diff != "" {
		t.Errorf("Original changed (-got +want):\n%s", diff)
	}
	if n, _ := c.Count(); n != 0 {
		t.Errorf("Clone has %d tests; want 0", n)
	}
}

func TestCountAll(t *gotesting.T) {
	n, err := CountAll([]*Profile{newTestProfile(t, "a", "b"), newTestProfile(t, "c")})
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Errorf("CountAll = %d; want 3", n)
	}
}
