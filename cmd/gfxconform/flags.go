// Copyright 2021 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package main

import (
	"bufio"
	"context"
	"flag"
	"os"
	"strings"

	"go.chromium.org/gfxconform/errors"
	"go.chromium.org/gfxconform/internal/capability"
	"go.chromium.org/gfxconform/internal/command"
	"go.chromium.org/gfxconform/internal/config"
	"go.chromium.org/gfxconform/internal/profile"
)

// loadFlags holds flags shared by subcommands that load profiles.
type loadFlags struct {
	configPath   string
	platform     string
	testListPath string
	opts         profile.RunOptions
}

func newLoadFlags() *loadFlags {
	return &loadFlags{opts: profile.DefaultRunOptions()}
}

// SetFlags registers lf's flags in f.
func (lf *loadFlags) SetFlags(f *flag.FlagSet) {
	f.StringVar(&lf.configPath, "config", "", "configuration file (default: $XDG_CONFIG_HOME/"+config.FileName+" or ./"+config.FileName+")")
	f.StringVar(&lf.platform, "platform", "", "window-system platform (default: $PIGLIT_PLATFORM or [core] platform)")
	f.StringVar(&lf.testListPath, "test-list", "", "file listing the tests to run, one per line, in order")

	include := command.RepeatedFlag(func(v string) error {
		lf.opts.IncludeFilter = append(lf.opts.IncludeFilter, v)
		return nil
	})
	f.Var(&include, "t", "run only tests matching the regular expression (may be repeated)")
	exclude := command.RepeatedFlag(func(v string) error {
		lf.opts.ExcludeFilter = append(lf.opts.ExcludeFilter, v)
		return nil
	})
	f.Var(&exclude, "x", "skip tests matching the regular expression (may be repeated)")
	f.Var(command.NewListFlag(",", func(v []string) { lf.opts.ExcludeTests = v }, nil),
		"exclude-tests", "comma-separated names of tests to skip")
	env := command.RepeatedFlag(func(v string) error {
		k, val, ok := strings.Cut(v, "=")
		if !ok || k == "" {
			return errors.Errorf("want KEY=VALUE, got %q", v)
		}
		if lf.opts.Env == nil {
			lf.opts.Env = make(map[string]string)
		}
		lf.opts.Env[k] = val
		return nil
	})
	f.Var(&env, "env", "KEY=VALUE set in the environment of every test (may be repeated)")

	f.BoolVar(&lf.opts.IgnoreMissing, "ignore-missing", false, "report tests from -test-list missing in profiles as notrun")
	f.BoolVar(&lf.opts.DEQPMustpass, "deqp-mustpass", false, "run dEQP must-pass lists instead of every case")
	f.BoolVar(&lf.opts.ForceGLSL, "force-glsl", false, "run GLSL ES parser tests with the desktop parser")
	f.BoolVar(&lf.opts.SPIRV, "spirv", false, "run shader tests with SPIR-V")
	f.BoolVar(&lf.opts.Valgrind, "valgrind", false, "run native tests under valgrind")
}

// readTestList reads test names from path, skipping blank lines and
// comments starting with '#'.
func readTestList(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.WithKind(errors.Wrap(err, "failed to open test list"), errors.KindUser)
	}
	defer f.Close()

	var names []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		names = append(names, line)
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", path)
	}
	return names, nil
}

// loaded is the outcome of loadFlags.load.
type loaded struct {
	cfg      *config.Config
	platform string
	binDir   string
	profiles []*profile.Profile
}

// load reads the configuration and loads the named profiles.
func (lf *loadFlags) load(ctx context.Context, names []string, resultsDir string) (*loaded, error) {
	cfg, err := config.Find(lf.configPath)
	if err != nil {
		return nil, err
	}

	platform := lf.platform
	if platform == "" {
		platform, _ = cfg.Get(config.Option{Env: "PIGLIT_PLATFORM", Section: "core", Key: "platform", Default: capability.DefaultPlatform})
	}
	if lf.testListPath != "" {
		if lf.opts.TestList, err = readTestList(lf.testListPath); err != nil {
			return nil, err
		}
	}
	if lf.opts.Env == nil {
		lf.opts.Env = make(map[string]string)
	}
	lf.opts.Env["PIGLIT_PLATFORM"] = platform

	binDir := profile.BinDir(cfg)
	env := &profile.LoadEnv{Config: cfg, Options: &lf.opts, BinDir: binDir, ResultsDir: resultsDir}
	profiles, err := profile.LoadAll(ctx, names, env)
	if err != nil {
		return nil, err
	}
	return &loaded{cfg: cfg, platform: platform, binDir: binDir, profiles: profiles}, nil
}
