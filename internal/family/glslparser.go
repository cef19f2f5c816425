// Copyright 2021 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package family

import (
	"bufio"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"golang.org/x/exp/slices"

	"go.chromium.org/gfxconform/errors"
	"go.chromium.org/gfxconform/internal/capability"
	"go.chromium.org/gfxconform/internal/dep"
	"go.chromium.org/gfxconform/internal/testexec"
	"go.chromium.org/gfxconform/internal/testing"
)

// ShaderConfig is the [config] block at the head of a shader source file.
type ShaderConfig struct {
	// ExpectResult is "pass" or "fail".
	ExpectResult string
	// GLSLVersion is the version string, e.g. "1.10" or "3.00 es".
	GLSLVersion string
	// RequireExtensions lists extensions the shader needs. A leading "!"
	// requires an extension to be absent.
	RequireExtensions []string
	// CheckLink asks the parser to also link the shader.
	CheckLink bool
}

var (
	configStartRE = regexp.MustCompile(`^\s*(?://|/\*|\*)?\s*\[config\]\s*$`)
	configEndRE   = regexp.MustCompile(`^\s*(?://|/\*|\*)?\s*\[end config\]\s*(?:\*/)?\s*$`)
	commentRE     = regexp.MustCompile(`^\s*(?://|/\*|\*/|\*)?\s*`)
	extensionRE   = regexp.MustCompile(`^!?[A-Za-z_][A-Za-z0-9_]*$`)
	esVersions    = map[string]bool{"1.00": true, "3.00": true, "3.10": true, "3.20": true}
)

// shaderConfigKeys are the keys recognized in a [config] block.
var shaderConfigKeys = map[string]bool{
	"expect_result":      true,
	"glsl_version":       true,
	"require_extensions": true,
	"check_link":         true,
}

// ParseShaderConfig reads the [config] block from r. name is used in errors.
func ParseShaderConfig(r io.Reader, name string) (*ShaderConfig, error) {
	sc := bufio.NewScanner(r)
	inBlock, ended := false, false
	seen := make(map[string]bool)
	cfg := &ShaderConfig{}

	for !ended && sc.Scan() {
		line := sc.Text()
		if !inBlock {
			inBlock = configStartRE.MatchString(line)
			continue
		}
		if configEndRE.MatchString(line) {
			ended = true
			continue
		}

		text := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(commentRE.ReplaceAllString(line, "")), "*/"))
		if text == "" {
			continue
		}
		key, value, ok := strings.Cut(text, ":")
		if !ok {
			return nil, errors.ConfigErrorf("%s: malformed [config] line %q", name, line)
		}
		key, value = strings.TrimSpace(key), strings.TrimSpace(value)
		if !shaderConfigKeys[key] {
			return nil, errors.ConfigErrorf("%s: unknown [config] key %q", name, key)
		}
		if seen[key] {
			return nil, errors.ConfigErrorf("%s: duplicate [config] key %q", name, key)
		}
		seen[key] = true

		switch key {
		case "expect_result":
			if value != "pass" && value != "fail" {
				return nil, errors.ConfigErrorf("%s: expect_result must be pass or fail, got %q", name, value)
			}
			cfg.ExpectResult = value
		case "glsl_version":
			if _, err := capability.ParseVersion(strings.TrimSuffix(value, " es")); err != nil {
				return nil, errors.ConfigErrorf("%s: bad glsl_version: %v", name, err)
			}
			cfg.GLSLVersion = value
		case "require_extensions":
			for _, ext := range strings.Fields(value) {
				if !extensionRE.MatchString(ext) {
					return nil, errors.ConfigErrorf("%s: bad extension name %q", name, ext)
				}
				cfg.RequireExtensions = append(cfg.RequireExtensions, ext)
			}
		case "check_link":
			switch strings.ToLower(value) {
			case "true":
				cfg.CheckLink = true
			case "false":
				cfg.CheckLink = false
			default:
				return nil, errors.ConfigErrorf("%s: check_link must be true or false, got %q", name, value)
			}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", name)
	}

	switch {
	case !inBlock:
		return nil, errors.ConfigErrorf("%s: no [config] block", name)
	case !ended:
		return nil, errors.ConfigErrorf("%s: [config] block is not terminated", name)
	case cfg.ExpectResult == "":
		return nil, errors.ConfigErrorf("%s: missing expect_result", name)
	case cfg.GLSLVersion == "":
		return nil, errors.ConfigErrorf("%s: missing glsl_version", name)
	}
	return cfg, nil
}

// IsES reports whether the shader targets GLSL ES.
func (c *ShaderConfig) IsES() bool {
	v := c.GLSLVersion
	if strings.HasSuffix(v, " es") {
		return true
	}
	return esVersions[v]
}

// Version returns the numeric GLSL version.
func (c *ShaderConfig) Version() capability.Version {
	v, _ := capability.ParseVersion(strings.TrimSuffix(c.GLSLVersion, " es"))
	return v
}

// compatExtension returns the desktop extension providing GLSL ES version v,
// e.g. GL_ARB_ES3_1_compatibility for 3.10.
func compatExtension(v capability.Version) string {
	switch {
	case v < 300:
		return "GL_ARB_ES2_compatibility"
	case v%100 == 0:
		return "GL_ARB_ES" + v.String()[:1] + "_compatibility"
	default:
		s := v.String()
		return "GL_ARB_ES" + s[:1] + "_" + s[2:3] + "_compatibility"
	}
}

// GLSLParser runs the shader parser against shader source files.
type GLSLParser struct {
	// DesktopBin, GLES2Bin and GLES3Bin are parser binaries per API.
	DesktopBin, GLES2Bin, GLES3Bin string
	// ForceDesktop runs GLSL ES shaders with the desktop binary, requiring
	// the matching ES compatibility extension.
	ForceDesktop bool
}

// NewGLSLParser returns a GLSLParser using binaries in bindir.
func NewGLSLParser(bindir string, forceDesktop bool) *GLSLParser {
	return &GLSLParser{
		DesktopBin:   filepath.Join(bindir, "glslparsertest"),
		GLES2Bin:     filepath.Join(bindir, "glslparsertest_gles2"),
		GLES3Bin:     filepath.Join(bindir, "glslparsertest_gles3"),
		ForceDesktop: forceDesktop,
	}
}

// Name implements testing.Family.
func (*GLSLParser) Name() string { return "glslparser" }

// DefaultTimeout implements testing.Family.
func (*GLSLParser) DefaultTimeout() time.Duration { return NativeTimeout }

// Command implements testing.Family.
func (*GLSLParser) Command(t *testing.Test) []string { return append([]string(nil), t.Argv...) }

// Interpret implements testing.Family.
func (*GLSLParser) Interpret(t *testing.Test, out *testexec.Output, res *testing.Result) {
	interpretProtocol(out, res)
}

// Retry implements testing.Family.
func (*GLSLParser) Retry(out *testexec.Output) bool { return false }

// Build returns the command line and requirement options for the shader at path.
func (f *GLSLParser) Build(path string, cfg *ShaderConfig) (argv []string, opts []testing.Option) {
	exts := append([]string(nil), cfg.RequireExtensions...)
	v := cfg.Version()
	bin := f.DesktopBin

	switch {
	case !cfg.IsES():
		opts = append(opts, testing.Require(func(r *dep.Requirements) { r.GLSLVersion = v }))
	case f.ForceDesktop:
		compat := compatExtension(v)
		if !slices.Contains(exts, compat) {
			exts = append(exts, compat)
		}
	default:
		if v < 300 {
			bin = f.GLES2Bin
		} else {
			bin = f.GLES3Bin
		}
		opts = append(opts, testing.Require(func(r *dep.Requirements) { r.GLSLESVersion = v }))
	}

	argv = []string{bin, path, cfg.ExpectResult, strings.TrimSuffix(cfg.GLSLVersion, " es")}
	if cfg.CheckLink {
		argv = append(argv, "--check-link")
	}
	argv = append(argv, exts...)

	var required []string
	for _, e := range exts {
		if !strings.HasPrefix(e, "!") {
			required = append(required, e)
		}
	}
	if len(required) > 0 {
		opts = append(opts, testing.RequireExtensions(required...))
	}
	return argv, opts
}

// AddFile adds a test for the shader at path, named name, to g.
func (f *GLSLParser) AddFile(g *testing.GroupManager, name, path string, opts ...testing.Option) error {
	fd, err := os.Open(path)
	if err != nil {
		return errors.WithKind(errors.Wrap(err, "failed to open shader"), errors.KindConfig)
	}
	defer fd.Close()
	cfg, err := ParseShaderConfig(fd, path)
	if err != nil {
		return err
	}
	argv, fopts := f.Build(path, cfg)
	return g.Add(argv, name, append(fopts, opts...)...)
}

// shaderExts are the file extensions of shader sources.
var shaderExts = map[string]bool{
	".vert": true, ".tesc": true, ".tese": true, ".geom": true, ".frag": true, ".comp": true,
}

// AddDir adds a test for every shader source under root. Tests are named
// after the path relative to root.
func (f *GLSLParser) AddDir(g *testing.GroupManager, root string, opts ...testing.Option) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !shaderExts[filepath.Ext(path)] {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		return f.AddFile(g, filepath.ToSlash(rel), path, opts...)
	})
}
