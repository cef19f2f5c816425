// Copyright 2019 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package config

import (
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"go.chromium.org/gfxconform/errors"
	"go.chromium.org/gfxconform/testutil"
)

func fakeEnv(vars map[string]string) func(string) (string, bool) {
	return func(name string) (string, bool) {
		v, ok := vars[name]
		return v, ok
	}
}

func TestEnvName(t *testing.T) {
	for _, tc := range []struct{ section, key, want string }{
		{"deqp-vk", "bin", "PIGLIT_DEQP_VK_BIN"},
		{"deqp-vk", "extra_args", "PIGLIT_DEQP_VK_EXTRA_ARGS"},
		{"core", "platform", "PIGLIT_CORE_PLATFORM"},
	} {
		if got := EnvName(tc.section, tc.key); got != tc.want {
			t.Errorf("EnvName(%q, %q) = %q; want %q", tc.section, tc.key, got, tc.want)
		}
	}
}

func TestGetPrecedence(t *testing.T) {
	cfg := New(map[string]map[string]string{
		"deqp-vk": {"bin": "/from/file", "extra_args": "--x"},
	}, fakeEnv(map[string]string{
		"PIGLIT_DEQP_VK_BIN": "/from/env",
		"MY_PLATFORM":        "gbm",
	}))

	for _, tc := range []struct {
		name string
		opt  Option
		want string
	}{
		{"env wins", Option{Section: "deqp-vk", Key: "bin"}, "/from/env"},
		{"file on env miss", Option{Section: "deqp-vk", Key: "extra_args"}, "--x"},
		{"default", Option{Section: "deqp-gles2", Key: "bin", Default: "deqp-gles2"}, "deqp-gles2"},
		{"explicit env", Option{Env: "MY_PLATFORM", Section: "core", Key: "platform"}, "gbm"},
		{"skip env", Option{Env: "-", Section: "deqp-vk", Key: "bin"}, "/from/file"},
	} {
		got, err := cfg.Get(tc.opt)
		if err != nil {
			t.Errorf("%s: Get failed: %v", tc.name, err)
		} else if got != tc.want {
			t.Errorf("%s: Get = %q; want %q", tc.name, got, tc.want)
		}
	}
}

func TestGetRequired(t *testing.T) {
	cfg := New(nil, fakeEnv(nil))
	_, err := cfg.Get(Option{Section: "deqp-vk", Key: "bin", Required: true})
	if err == nil {
		t.Fatal("Get succeeded for a missing required value")
	}
	if k := errors.KindOf(err); k != errors.KindConfig {
		t.Errorf("KindOf(%v) = %v; want %v", err, k, errors.KindConfig)
	}
}

func TestLoad(t *testing.T) {
	td := testutil.TempDir(t)
	if err := testutil.WriteFiles(td, map[string]string{
		FileName: "core:\n  platform: surfaceless_egl\nvalgrind:\n  enabled: \"yes\"\n",
	}); err != nil {
		t.Fatal(err)
	}
	cfg, err := Find(filepath.Join(td, FileName))
	if err != nil {
		t.Fatal("Find failed: ", err)
	}
	cfg.lookupEnv = fakeEnv(nil)
	if got := cfg.String("core", "platform", "glx"); got != "surfaceless_egl" {
		t.Errorf("platform = %q; want surfaceless_egl", got)
	}
	if !cfg.Bool("valgrind", "enabled") {
		t.Error("valgrind.enabled = false; want true")
	}
	if diff := cmp.Diff(cfg.Sections(), []string{"core", "valgrind"}); diff != "" {
		t.Errorf("Sections mismatch (-got +want):\n%s", diff)
	}
}

func TestLoadMissingExplicit(t *testing.T) {
	td := testutil.TempDir(t)
	_, err := Find(filepath.Join(td, "missing.yaml"))
	if err == nil {
		t.Fatal("Find succeeded for a missing explicit file")
	}
	if k := errors.KindOf(err); k != errors.KindConfig {
		t.Errorf("KindOf(%v) = %v; want %v", err, k, errors.KindConfig)
	}
}

func TestParseBool(t *testing.T) {
	for s, want := range map[string]bool{
		"1": true, "TRUE": true, " yes ": true, "on": true,
		"": false, "0": false, "no": false, "false": false,
	} {
		if got := ParseBool(s); got != want {
			t.Errorf("ParseBool(%q) = %v; want %v", s, got, want)
		}
	}
}
