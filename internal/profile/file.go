// Copyright 2021 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package profile

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v2"

	"go.chromium.org/gfxconform/errors"
	"go.chromium.org/gfxconform/internal/capability"
	"go.chromium.org/gfxconform/internal/dep"
	"go.chromium.org/gfxconform/internal/family"
	"go.chromium.org/gfxconform/internal/testing"
)

// fileProfile is the YAML representation of a profile.
//
//	name: quick
//	options:
//	  dmesg: true
//	groups:
//	  - family: native
//	    prefix: spec/arb_foo
//	    concurrent: true
//	    tests:
//	      - argv: [arb_foo-basic]
//	        requires: {extensions: [GL_ARB_foo]}
type fileProfile struct {
	Name     string      `yaml:"name"`
	Options  Options     `yaml:"options"`
	Tests    []fileTest  `yaml:"tests"`
	Groups   []fileGroup `yaml:"groups"`
	Override []fileTest  `yaml:"override"`
}

type fileTest struct {
	Name       string            `yaml:"name"`
	Family     string            `yaml:"family"`
	Argv       []string          `yaml:"argv"`
	Dir        string            `yaml:"dir"`
	Env        map[string]string `yaml:"env"`
	Concurrent *bool             `yaml:"concurrent"`
	Timeout    string            `yaml:"timeout"`
	Requires   fileRequirements  `yaml:"requires"`
}

type fileRequirements struct {
	Extensions       []string `yaml:"extensions"`
	GL               string   `yaml:"gl"`
	GLES             string   `yaml:"gles"`
	GLSL             string   `yaml:"glsl"`
	GLSLES           string   `yaml:"glsl_es"`
	Platforms        []string `yaml:"platforms"`
	ExcludePlatforms []string `yaml:"exclude_platforms"`
}

type fileGroup struct {
	Family     string            `yaml:"family"`
	Prefix     string            `yaml:"prefix"`
	Concurrent bool              `yaml:"concurrent"`
	Timeout    string            `yaml:"timeout"`
	Env        map[string]string `yaml:"env"`
	Images     bool              `yaml:"images"`
	Tests      []fileTest        `yaml:"tests"`
	// Shaders is a directory of shader sources for the glslparser family.
	Shaders string `yaml:"shaders"`
	// Bin, ExtraArgs and Cases configure the deqp family. If Cases is
	// empty, the binary is asked for its cases.
	Bin       string   `yaml:"bin"`
	ExtraArgs []string `yaml:"extra_args"`
	Cases     string   `yaml:"cases"`
}

// LoadFile loads a profile from the YAML file at path. Relative paths in
// the file are resolved against the directory containing it.
func LoadFile(ctx context.Context, path string, env *LoadEnv) (*Profile, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WithKind(errors.Wrap(err, "failed to read profile"), errors.KindConfig)
	}
	var fp fileProfile
	if err := yaml.UnmarshalStrict(b, &fp); err != nil {
		return nil, errors.WithKind(errors.Wrapf(err, "failed to parse %s", path), errors.KindConfig)
	}

	name := fp.Name
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	l := &fileLoader{env: env, dir: filepath.Dir(path), fams: newFamilies(env)}
	cat := testing.NewCatalog()

	for i := range fp.Tests {
		if err := l.addTest(cat, "", &fp.Tests[i]); err != nil {
			return nil, err
		}
	}
	for i := range fp.Groups {
		if err := l.addGroup(ctx, cat, &fp.Groups[i]); err != nil {
			return nil, err
		}
	}
	if len(fp.Override) > 0 {
		release := cat.AllowReassignment()
		defer release()
		for i := range fp.Override {
			if err := l.addTest(cat, "", &fp.Override[i]); err != nil {
				return nil, err
			}
		}
	}

	p := New(name, cat)
	p.Options = fp.Options
	return p, nil
}

type fileLoader struct {
	env  *LoadEnv
	dir  string
	fams *families
}

func (l *fileLoader) resolve(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(l.dir, p)
}

func parseTimeout(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return 0, errors.ConfigErrorf("bad timeout %q", s)
	}
	return d, nil
}

func parseVersion(s string) (capability.Version, error) {
	if s == "" {
		return capability.Unknown, nil
	}
	v, err := capability.ParseVersion(s)
	if err != nil {
		return 0, errors.ConfigErrorf("bad version %q: %v", s, err)
	}
	return v, nil
}

func (r *fileRequirements) toDep() (dep.Requirements, error) {
	var d dep.Requirements
	for _, e := range r.Extensions {
		d.AddExtension(e)
	}
	for _, x := range []struct {
		s   string
		dst *capability.Version
	}{
		{r.GL, &d.GLVersion},
		{r.GLES, &d.GLESVersion},
		{r.GLSL, &d.GLSLVersion},
		{r.GLSLES, &d.GLSLESVersion},
	} {
		v, err := parseVersion(x.s)
		if err != nil {
			return d, err
		}
		*x.dst = v
	}
	d.Platforms = r.Platforms
	d.ExcludePlatforms = r.ExcludePlatforms
	return d, nil
}

// options converts the per-test settings of ft to options.
func (l *fileLoader) options(ft *fileTest) ([]testing.Option, error) {
	var opts []testing.Option
	if ft.Dir != "" {
		opts = append(opts, testing.Dir(l.resolve(ft.Dir)))
	}
	if len(ft.Env) > 0 {
		opts = append(opts, testing.Env(ft.Env))
	}
	if ft.Concurrent != nil {
		opts = append(opts, testing.Concurrent(*ft.Concurrent))
	}
	if ft.Timeout != "" {
		d, err := parseTimeout(ft.Timeout)
		if err != nil {
			return nil, err
		}
		opts = append(opts, testing.Timeout(d))
	}
	req, err := ft.Requires.toDep()
	if err != nil {
		return nil, err
	}
	if !req.Empty() {
		opts = append(opts, testing.Require(func(r *dep.Requirements) {
			for _, e := range req.Extensions {
				r.AddExtension(e)
			}
			for _, x := range []struct{ src, dst *capability.Version }{
				{&req.GLVersion, &r.GLVersion},
				{&req.GLESVersion, &r.GLESVersion},
				{&req.GLSLVersion, &r.GLSLVersion},
				{&req.GLSLESVersion, &r.GLSLESVersion},
			} {
				if x.src.Known() {
					*x.dst = *x.src
				}
			}
			if len(req.Platforms) > 0 {
				r.Platforms = append([]string(nil), req.Platforms...)
			}
			if len(req.ExcludePlatforms) > 0 {
				r.ExcludePlatforms = append([]string(nil), req.ExcludePlatforms...)
			}
		}))
	}
	return opts, nil
}

// addTest adds a test outside any group.
func (l *fileLoader) addTest(cat *testing.Catalog, prefix string, ft *fileTest) error {
	if ft.Family == "" {
		return errors.ConfigErrorf("test %q has no family", ft.Name)
	}
	f, err := l.fams.get(ft.Family)
	if err != nil {
		return err
	}
	opts, err := l.options(ft)
	if err != nil {
		return err
	}
	return cat.Group(f, prefix).Add(l.fams.argv(ft.Family, ft.Argv), ft.Name, opts...)
}

func (l *fileLoader) addGroup(ctx context.Context, cat *testing.Catalog, fg *fileGroup) error {
	var defaults []testing.Option
	if fg.Concurrent {
		defaults = append(defaults, testing.Concurrent(true))
	}
	if fg.Timeout != "" {
		d, err := parseTimeout(fg.Timeout)
		if err != nil {
			return err
		}
		defaults = append(defaults, testing.Timeout(d))
	}
	if len(fg.Env) > 0 {
		defaults = append(defaults, testing.Env(fg.Env))
	}

	switch fg.Family {
	case "deqp":
		if fg.Bin == "" {
			return errors.ConfigErrorf("deqp group %q has no bin", fg.Prefix)
		}
		f := family.NewDEQP(l.resolve(fg.Bin), fg.ExtraArgs)
		cases, err := l.deqpCases(ctx, f, fg.Cases)
		if err != nil {
			return err
		}
		g := cat.Group(f, fg.Prefix, defaults...)
		return f.AddCases(g, cases)
	case "glslparser":
		f := l.fams.glslParser()
		g := cat.Group(l.fams.decorate(f), fg.Prefix, defaults...)
		if fg.Shaders != "" {
			if err := f.AddDir(g, l.resolve(fg.Shaders)); err != nil {
				return err
			}
		}
		return l.addGroupTests(g, fg)
	}

	f, err := l.fams.get(fg.Family)
	if err != nil {
		return err
	}
	if fg.Images {
		f = l.fams.withImages(f)
	}
	return l.addGroupTests(cat.Group(f, fg.Prefix, defaults...), fg)
}

func (l *fileLoader) addGroupTests(g *testing.GroupManager, fg *fileGroup) error {
	for i := range fg.Tests {
		ft := &fg.Tests[i]
		if ft.Family != "" && ft.Family != fg.Family {
			return errors.ConfigErrorf("test %q in group %q has family %s, not %s", ft.Name, fg.Prefix, ft.Family, fg.Family)
		}
		opts, err := l.options(ft)
		if err != nil {
			return err
		}
		if err := g.Add(l.fams.argv(fg.Family, ft.Argv), ft.Name, opts...); err != nil {
			return err
		}
	}
	return nil
}

func (l *fileLoader) deqpCases(ctx context.Context, f *family.DEQP, list string) ([]string, error) {
	if list != "" {
		return family.ReadCaseList(l.resolve(list))
	}
	return f.EnumerateCases(ctx)
}
