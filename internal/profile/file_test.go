// Copyright 2021 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package profile

import (
	"context"
	"path/filepath"
	gotesting "testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"go.chromium.org/gfxconform/errors"
	"go.chromium.org/gfxconform/internal/config"
	"go.chromium.org/gfxconform/internal/dep"
	"go.chromium.org/gfxconform/internal/family"
	"go.chromium.org/gfxconform/testutil"
)

const quickProfile = `
name: quick
options:
  dmesg: true
  ignore_missing: true
  env:
    MESA_DEBUG: silent
tests:
  - name: sanity
    family: freeform
    argv: [/bin/true]
groups:
  - family: native
    prefix: spec/arb_foo
    concurrent: true
    timeout: 30s
    tests:
      - argv: [arb_foo-basic, -x]
        name: basic
        requires:
          extensions: [GL_ARB_foo]
          gl: "3.0"
          exclude_platforms: [gbm]
      - argv: [arb_foo-window]
        concurrent: false
  - family: glslparser
    prefix: glslparsertest
    shaders: shaders
override:
  - name: sanity
    family: freeform
    argv: [/bin/false]
`

const shader = `// [config]
// expect_result: pass
// glsl_version: 1.30
// [end config]
`

func fakeEnv(vars map[string]string) func(string) (string, bool) {
	return func(name string) (string, bool) {
		v, ok := vars[name]
		return v, ok
	}
}

func TestLoadFile(t *gotesting.T) {
	td := testutil.TempDir(t)
	if err := testutil.WriteFiles(td, map[string]string{
		"quick.yaml":          quickProfile,
		"shaders/simple.frag": shader,
	}); err != nil {
		t.Fatal(err)
	}
	env := &LoadEnv{Config: config.New(nil, fakeEnv(nil)), BinDir: "/piglit/bin"}
	p, err := Load(context.Background(), filepath.Join(td, "quick.yaml"), env)
	if err != nil {
		t.Fatal("Load failed: ", err)
	}

	if p.Name != "quick" {
		t.Errorf("Name = %q; want quick", p.Name)
	}
	want := Options{Dmesg: true, IgnoreMissing: true, Env: map[string]string{"MESA_DEBUG": "silent"}}
	if diff := cmp.Diff(p.Options, want); diff != "" {
		t.Errorf("Options mismatch (-got +want):\n%s", diff)
	}
	if diff := cmp.Diff(p.Catalog.Names(), []string{
		"sanity",
		"spec/arb_foo/basic",
		"spec/arb_foo/arb_foo-window",
		"glslparsertest/simple.frag",
	}); diff != "" {
		t.Errorf("Names mismatch (-got +want):\n%s", diff)
	}

	sanity, _ := p.Catalog.Get("sanity")
	if diff := cmp.Diff(sanity.Argv, []string{"/bin/false"}); diff != "" {
		t.Errorf("Override not applied (-got +want):\n%s", diff)
	}

	basic, _ := p.Catalog.Get("spec/arb_foo/basic")
	if diff := cmp.Diff(basic.Argv, []string{"/piglit/bin/arb_foo-basic", "-x"}); diff != "" {
		t.Errorf("Argv mismatch (-got +want):\n%s", diff)
	}
	if !basic.Concurrent || basic.Timeout != 30*time.Second {
		t.Errorf("Concurrent, Timeout = %v, %v; want true, 30s", basic.Concurrent, basic.Timeout)
	}
	wantReq := dep.Requirements{Extensions: []string{"GL_ARB_foo"}, GLVersion: 300, ExcludePlatforms: []string{"gbm"}}
	if diff := cmp.Diff(basic.Requirements, wantReq, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("Requirements mismatch (-got +want):\n%s", diff)
	}
	if got := basic.Family.Name(); got != "native" {
		t.Errorf("Family = %q; want native", got)
	}

	window, _ := p.Catalog.Get("spec/arb_foo/arb_foo-window")
	if window.Concurrent {
		t.Error("Per-test concurrent: false did not override the group default")
	}

	shaderTest, _ := p.Catalog.Get("glslparsertest/simple.frag")
	if shaderTest.Requirements.GLSLVersion != 130 {
		t.Errorf("GLSLVersion = %v; want 1.30", shaderTest.Requirements.GLSLVersion)
	}
}

func TestLoadFileValgrind(t *gotesting.T) {
	td := testutil.TempDir(t)
	if err := testutil.WriteFiles(td, map[string]string{
		"quick.yaml":          quickProfile,
		"shaders/simple.frag": shader,
	}); err != nil {
		t.Fatal(err)
	}
	o := DefaultRunOptions()
	o.Valgrind = true
	env := &LoadEnv{Config: config.New(nil, fakeEnv(nil)), BinDir: "/piglit/bin", Options: &o}
	p, err := Load(context.Background(), filepath.Join(td, "quick.yaml"), env)
	if err != nil {
		t.Fatal("Load failed: ", err)
	}

	sanity, _ := p.Catalog.Get("sanity")
	want := append(append([]string(nil), family.ValgrindPrefix...), "/bin/false")
	if diff := cmp.Diff(sanity.Family.Command(sanity), want); diff != "" {
		t.Errorf("freeform command mismatch (-got +want):\n%s", diff)
	}

	for _, name := range []string{"sanity", "spec/arb_foo/basic", "glslparsertest/simple.frag"} {
		tst, _ := p.Catalog.Get(name)
		argv := tst.Family.Command(tst)
		if len(argv) <= len(family.ValgrindPrefix) {
			t.Errorf("%s: command %q is not wrapped", name, argv)
			continue
		}
		if diff := cmp.Diff(argv[:len(family.ValgrindPrefix)], family.ValgrindPrefix); diff != "" {
			t.Errorf("%s: command prefix mismatch (-got +want):\n%s", name, diff)
		}
	}
}

func TestLoadFileErrors(t *gotesting.T) {
	for _, tc := range []struct {
		name string
		body string
	}{
		{"duplicate", "tests:\n  - {name: a, family: freeform, argv: [x]}\n  - {name: a, family: freeform, argv: [y]}\n"},
		{"unknown family", "tests:\n  - {name: a, family: magic, argv: [x]}\n"},
		{"no family", "tests:\n  - {name: a, argv: [x]}\n"},
		{"empty argv", "tests:\n  - {name: a, family: freeform}\n"},
		{"unknown field", "tests:\n  - {name: a, family: freeform, argv: [x], color: red}\n"},
		{"bad timeout", "tests:\n  - {name: a, family: freeform, argv: [x], timeout: soon}\n"},
		{"bad version", "tests:\n  - {name: a, family: freeform, argv: [x], requires: {gl: three}}\n"},
		{"deqp without bin", "groups:\n  - {family: deqp, prefix: d}\n"},
		{"syntax", "tests: [\n"},
	} {
		td := testutil.TempDir(t)
		path := filepath.Join(td, "p.yaml")
		if err := testutil.WriteFiles(td, map[string]string{"p.yaml": tc.body}); err != nil {
			t.Fatal(err)
		}
		_, err := Load(context.Background(), path, &LoadEnv{Config: config.New(nil, fakeEnv(nil))})
		if errors.KindOf(err) != errors.KindConfig {
			t.Errorf("%s: Load = %v; want a configuration error", tc.name, err)
		}
	}
}

func TestLoadUnknownProfile(t *gotesting.T) {
	_, err := Load(context.Background(), "no-such-profile", &LoadEnv{Config: config.New(nil, fakeEnv(nil))})
	if errors.KindOf(err) != errors.KindConfig {
		t.Errorf("Load = %v; want a configuration error", err)
	}
}

func TestLoadDEQP(t *gotesting.T) {
	td := testutil.TempDir(t)
	bin := testutil.WriteScript(t, td, "deqp-gles2",
		`printf 'TEST: dEQP-GLES2.info.vendor\nTEST: dEQP-GLES2.info.renderer\n' > dEQP-GLES2-cases.txt`)
	if err := testutil.WriteFiles(td, map[string]string{"mustpass.txt": "dEQP-GLES2.info.version\n"}); err != nil {
		t.Fatal(err)
	}
	cfg := config.New(map[string]map[string]string{
		"deqp-gles2": {"mustpass_list": filepath.Join(td, "mustpass.txt")},
	}, fakeEnv(map[string]string{"PIGLIT_DEQP_GLES2_BIN": bin}))

	o := DefaultRunOptions()
	p, err := Load(context.Background(), "deqp-gles2", &LoadEnv{Config: cfg, Options: &o})
	if err != nil {
		t.Fatal("Load failed: ", err)
	}
	if diff := cmp.Diff(p.Catalog.Names(), []string{"deqp-gles2/info/vendor", "deqp-gles2/info/renderer"}); diff != "" {
		t.Errorf("Names mismatch (-got +want):\n%s", diff)
	}
	tst, _ := p.Catalog.Get("deqp-gles2/info/vendor")
	if !tst.Concurrent {
		t.Error("dEQP cases are not concurrent")
	}

	o.DEQPMustpass = true
	p, err = Load(context.Background(), "deqp-gles2", &LoadEnv{Config: cfg, Options: &o})
	if err != nil {
		t.Fatal("Load failed: ", err)
	}
	if diff := cmp.Diff(p.Catalog.Names(), []string{"deqp-gles2/info/version"}); diff != "" {
		t.Errorf("Must-pass names mismatch (-got +want):\n%s", diff)
	}
}

func TestLoadDEQPMissingBinary(t *gotesting.T) {
	_, err := Load(context.Background(), "deqp-vk", &LoadEnv{Config: config.New(nil, fakeEnv(nil))})
	if errors.KindOf(err) != errors.KindConfig {
		t.Errorf("Load = %v; want a configuration error", err)
	}
}

func TestBinDir(t *gotesting.T) {
	for _, tc := range []struct {
		name string
		env  map[string]string
		file map[string]map[string]string
		want string
	}{
		{"env", map[string]string{"PIGLIT_BUILD_DIR": "/build"}, nil, "/build/bin"},
		{"tree", map[string]string{"PIGLIT_BUILD_TREE": "/tree"}, nil, "/tree/bin"},
		{"file", nil, map[string]map[string]string{"core": {"build_dir": "/cfg"}}, "/cfg/bin"},
		{"default", nil, nil, "bin"},
	} {
		if got := BinDir(config.New(tc.file, fakeEnv(tc.env))); got != tc.want {
			t.Errorf("%s: BinDir = %q; want %q", tc.name, got, tc.want)
		}
	}
}
