// Copyright 2021 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package profile

import (
	"context"
	"path/filepath"

	"go.chromium.org/gfxconform/errors"
	"go.chromium.org/gfxconform/internal/config"
	"go.chromium.org/gfxconform/internal/family"
	"go.chromium.org/gfxconform/internal/logging"
	"go.chromium.org/gfxconform/internal/testing"
)

// deqpModules are the dEQP modules with built-in profiles. Each is
// configured by the section of the same name, e.g. PIGLIT_DEQP_VK_BIN or
// the "bin" key of [deqp-vk].
var deqpModules = []string{"deqp-egl", "deqp-gles2", "deqp-gles3", "deqp-gles31", "deqp-vk"}

func init() {
	for _, m := range deqpModules {
		m := m
		Register(m, func(ctx context.Context, env *LoadEnv) (*Profile, error) {
			return loadDEQP(ctx, env, m)
		})
	}
	Register("glslparser", loadGLSLParser)
}

func loadDEQP(ctx context.Context, env *LoadEnv, module string) (*Profile, error) {
	cfg := env.Config
	bin, err := cfg.Get(config.Option{Section: module, Key: "bin", Required: true})
	if err != nil {
		return nil, err
	}
	f := family.NewDEQP(bin, extraArgs(cfg, module))

	var cases []string
	if env.Options != nil && env.Options.DEQPMustpass {
		list, err := cfg.Get(config.Option{Section: module, Key: "mustpass_list", Required: true})
		if err != nil {
			return nil, err
		}
		cases, err = family.ReadCaseList(list)
		if err != nil {
			return nil, err
		}
	} else {
		cases, err = f.EnumerateCases(ctx)
		if err != nil {
			return nil, err
		}
	}
	logging.Debugf(ctx, "Found %d cases for %s", len(cases), module)

	cat := testing.NewCatalog()
	if err := f.AddCases(cat.Group(f, ""), cases, testing.Concurrent(true)); err != nil {
		return nil, err
	}
	return New(module, cat), nil
}

func loadGLSLParser(ctx context.Context, env *LoadEnv) (*Profile, error) {
	src, err := env.Config.Get(config.Option{Env: "PIGLIT_SOURCE_DIR", Section: "core", Key: "source_dir", Required: true})
	if err != nil {
		return nil, err
	}
	fs := newFamilies(env)
	f := fs.glslParser()
	cat := testing.NewCatalog()
	root := filepath.Join(src, "tests")
	if err := f.AddDir(cat.Group(fs.decorate(f), "glslparsertest", testing.Concurrent(true)), root); err != nil {
		return nil, errors.WithKind(errors.Wrapf(err, "failed to collect shaders under %s", root), errors.KindConfig)
	}
	return New("glslparser", cat), nil
}
