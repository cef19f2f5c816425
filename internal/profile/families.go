// Copyright 2021 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package profile

import (
	"path/filepath"
	"strings"

	"go.chromium.org/gfxconform/errors"
	"go.chromium.org/gfxconform/internal/config"
	"go.chromium.org/gfxconform/internal/family"
	"go.chromium.org/gfxconform/internal/testing"
)

// families creates the families used by one profile, so that tests of the
// same kind share an instance configured from the run options.
type families struct {
	env   *LoadEnv
	cache map[string]testing.Family
	glsl  *family.GLSLParser
}

func newFamilies(env *LoadEnv) *families {
	return &families{env: env, cache: make(map[string]testing.Family)}
}

func (fs *families) runOptions() *RunOptions {
	if fs.env.Options == nil {
		o := DefaultRunOptions()
		return &o
	}
	return fs.env.Options
}

// get returns the family called name, decorated as the run options ask.
// deqp families are configured per group and are not available here.
func (fs *families) get(name string) (testing.Family, error) {
	if f, ok := fs.cache[name]; ok {
		return f, nil
	}
	var f testing.Family
	switch name {
	case "native":
		f = family.WithWindowResizeRetry(&family.Native{Timeout: family.NativeTimeout, SPIRV: fs.runOptions().SPIRV})
	case "opencl":
		f = family.OpenCL{}
	case "freeform":
		f = family.FreeForm{}
	case "igt":
		f = family.NewIGT()
	case "glslparser":
		f = fs.glslParser()
	default:
		return nil, errors.ConfigErrorf("unknown test family %q", name)
	}
	f = fs.decorate(f)
	fs.cache[name] = f
	return f, nil
}

// decorate applies the wrappers requested by the run options to f.
func (fs *families) decorate(f testing.Family) testing.Family {
	if fs.runOptions().Valgrind {
		f = family.WithValgrind(f)
	}
	return f
}

func (fs *families) glslParser() *family.GLSLParser {
	if fs.glsl == nil {
		force := fs.runOptions().ForceGLSL
		if fs.env.Config != nil && fs.env.Config.Env("PIGLIT_FORCE_GLSLPARSER_DESKTOP") {
			force = true
		}
		fs.glsl = family.NewGLSLParser(fs.env.BinDir, force)
	}
	return fs.glsl
}

// withImages decorates f to collect images referenced by its tests.
func (fs *families) withImages(f testing.Family) testing.Family {
	conv := filepath.Join(fs.env.BinDir, "xwd2png")
	if fs.env.Config != nil {
		conv = fs.env.Config.String("xts", "converter", conv)
	}
	return family.WithImages(f, &family.ImageCollector{Converter: conv, ResultsDir: fs.env.ResultsDir})
}

// argv resolves the executable of native tests against the binary directory.
func (fs *families) argv(name string, argv []string) []string {
	argv = append([]string(nil), argv...)
	if len(argv) == 0 {
		return argv
	}
	switch name {
	case "native", "opencl":
		if !strings.ContainsRune(argv[0], '/') && fs.env.BinDir != "" {
			argv[0] = filepath.Join(fs.env.BinDir, argv[0])
		}
	}
	return argv
}

// extraArgs returns the extra arguments configured for section.
func extraArgs(cfg *config.Config, section string) []string {
	return strings.Fields(cfg.String(section, "extra_args", ""))
}
