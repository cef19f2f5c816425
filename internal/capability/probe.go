// Copyright 2018 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package capability queries the graphics driver for the API versions and
// extensions it supports.
//
// The driver is queried by running wflinfo once per API profile. Results are
// memoized for the lifetime of a Prober; Default returns the process-wide
// instance.
package capability

import (
	"bufio"
	"bytes"
	"context"
	"os"
	"os/exec"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"go.chromium.org/gfxconform/internal/logging"
	"go.chromium.org/gfxconform/internal/timing"
)

// API identifies an API profile the driver is queried for.
type API int

const (
	GLCore API = iota
	GLCompat
	GLES2
	GLES3
	numAPIs
)

// APIs lists all profiles queried by a Prober, in probing order.
var APIs = []API{GLCore, GLCompat, GLES2, GLES3}

func (a API) String() string {
	switch a {
	case GLCore:
		return "gl core"
	case GLCompat:
		return "gl compat"
	case GLES2:
		return "gles2"
	case GLES3:
		return "gles3"
	default:
		return "unknown"
	}
}

// args returns the wflinfo arguments selecting a.
func (a API) args() []string {
	switch a {
	case GLCore:
		return []string{"--api", "gl", "--profile", "core"}
	case GLCompat:
		return []string{"--api", "gl", "--profile", "compat"}
	case GLES2:
		return []string{"--api", "gles2"}
	case GLES3:
		return []string{"--api", "gles3"}
	default:
		panic("unknown API")
	}
}

// Line prefixes printed by wflinfo.
const (
	versionPrefix    = "OpenGL version string:"
	glslPrefix       = "OpenGL shading language version string:"
	extensionsPrefix = "OpenGL extensions:"
)

// DefaultPlatform is used when no platform is configured.
const DefaultPlatform = "mixed_glx_egl"

// ProbePlatform maps a window-system platform to the one wflinfo is run with.
// wflinfo has no notion of the mixed GLX/EGL platform, which uses GLX for desktop GL.
func ProbePlatform(platform string) string {
	switch platform {
	case "":
		return "glx"
	case "mixed_glx_egl":
		return "glx"
	default:
		return platform
	}
}

// apiInfo holds facts reported for a single API profile.
type apiInfo struct {
	version    Version
	glsl       Version
	extensions []string
	ok         bool // false if the query failed
}

// parseOutput parses wflinfo output. Unrecognized lines, such as warnings
// printed by the driver, are ignored.
func parseOutput(out []byte) apiInfo {
	info := apiInfo{ok: true}
	sc := bufio.NewScanner(bytes.NewReader(out))
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for sc.Scan() {
		line := sc.Text()
		switch {
		case strings.HasPrefix(line, versionPrefix):
			info.version = scanVersion(strings.TrimPrefix(line, versionPrefix))
		case strings.HasPrefix(line, glslPrefix):
			info.glsl = scanVersion(strings.TrimPrefix(line, glslPrefix))
		case strings.HasPrefix(line, extensionsPrefix):
			v := strings.TrimPrefix(line, extensionsPrefix)
			if !strings.Contains(v, errorSentinel) {
				info.extensions = strings.Fields(v)
			}
		}
	}
	return info
}

// Snapshot is a consistent view of the driver's capabilities.
type Snapshot struct {
	GLVersion     Version `json:"glVersion"`
	GLESVersion   Version `json:"glesVersion"`
	GLSLVersion   Version `json:"glslVersion"`
	GLSLESVersion Version `json:"glslEsVersion"`
	// Extensions is nil if the extension set could not be determined.
	Extensions map[string]struct{} `json:"-"`
}

// ExtensionsKnown reports whether s carries an extension set.
func (s *Snapshot) ExtensionsKnown() bool { return s.Extensions != nil }

// HasExtension reports whether name is supported. It returns false if the
// extension set is unknown.
func (s *Snapshot) HasExtension(name string) bool {
	_, ok := s.Extensions[name]
	return ok
}

// merge combines per-profile facts. Desktop profiles contribute GL and GLSL
// versions; ES profiles contribute GLES and GLSL ES versions. The extension
// set is the union over all successful queries.
func merge(infos [numAPIs]apiInfo) *Snapshot {
	s := &Snapshot{}
	higher := func(a, b Version) Version {
		if b > a {
			return b
		}
		return a
	}
	for api, info := range infos {
		if !info.ok {
			continue
		}
		switch API(api) {
		case GLCore, GLCompat:
			s.GLVersion = higher(s.GLVersion, info.version)
			s.GLSLVersion = higher(s.GLSLVersion, info.glsl)
		case GLES2, GLES3:
			s.GLESVersion = higher(s.GLESVersion, info.version)
			s.GLSLESVersion = higher(s.GLSLESVersion, info.glsl)
		}
		if info.extensions != nil {
			if s.Extensions == nil {
				s.Extensions = make(map[string]struct{})
			}
			for _, e := range info.extensions {
				s.Extensions[e] = struct{}{}
			}
		}
	}
	return s
}

// runFunc runs a command and returns its stdout.
type runFunc func(ctx context.Context, env []string, name string, args ...string) ([]byte, error)

func runCommand(ctx context.Context, env []string, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Env = env
	return cmd.Output()
}

// entry memoizes the query for one API profile.
type entry struct {
	mu   sync.Mutex
	done bool
	info apiInfo
}

// Prober queries the driver and memoizes the results.
type Prober struct {
	binary   string // path to wflinfo
	platform string // platform passed to wflinfo
	run      runFunc

	entries [numAPIs]entry
	sf      singleflight.Group
}

// NewProber returns a Prober running binary (typically "wflinfo") against
// the window-system platform.
func NewProber(binary, platform string) *Prober {
	return &Prober{binary: binary, platform: ProbePlatform(platform), run: runCommand}
}

var (
	defaultOnce   sync.Once
	defaultProber *Prober
)

// Default returns the process-wide Prober, creating it on first call with
// binary and platform. Later calls return the same Prober and ignore their
// arguments, so every caller shares one set of probe results. An empty binary
// means "wflinfo"; an empty platform means $PIGLIT_PLATFORM or DefaultPlatform.
func Default(binary, platform string) *Prober {
	defaultOnce.Do(func() {
		if binary == "" {
			binary = "wflinfo"
		}
		if platform == "" {
			platform = os.Getenv("PIGLIT_PLATFORM")
		}
		if platform == "" {
			platform = DefaultPlatform
		}
		defaultProber = NewProber(binary, platform)
	})
	return defaultProber
}

// Platform returns the platform wflinfo is run with.
func (p *Prober) Platform() string { return p.platform }

// query returns facts for api, running wflinfo on first access only.
// Concurrent callers for the same api wait for the first one.
func (p *Prober) query(ctx context.Context, api API) apiInfo {
	e := &p.entries[api]
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.done {
		return e.info
	}

	args := append([]string{"--platform", p.platform, "--verbose"}, api.args()...)
	env := append(os.Environ(), "PIGLIT_PLATFORM="+p.platform)
	out, err := p.run(ctx, env, p.binary, args...)
	if err != nil {
		logging.Debugf(ctx, "Failed to query %s capabilities with %s: %v", api, p.binary, err)
		e.info = apiInfo{}
	} else {
		e.info = parseOutput(out)
	}
	e.done = true
	return e.info
}

// Snapshot returns the driver's capabilities. A failed query leaves the
// corresponding values unknown; it is never fatal.
func (p *Prober) Snapshot(ctx context.Context) *Snapshot {
	v, _, _ := p.sf.Do("snapshot", func() (interface{}, error) {
		ctx, st := timing.Start(ctx, "probe")
		defer st.End()

		var infos [numAPIs]apiInfo
		g, ctx := errgroup.WithContext(ctx)
		for _, api := range APIs {
			api := api
			g.Go(func() error {
				infos[api] = p.query(ctx, api)
				return nil
			})
		}
		g.Wait()
		return merge(infos), nil
	})
	return v.(*Snapshot)
}

// GLVersion returns the desktop GL version, or Unknown.
func (p *Prober) GLVersion(ctx context.Context) Version { return p.Snapshot(ctx).GLVersion }

// GLESVersion returns the GLES version, or Unknown.
func (p *Prober) GLESVersion(ctx context.Context) Version { return p.Snapshot(ctx).GLESVersion }

// GLSLVersion returns the GLSL version, or Unknown.
func (p *Prober) GLSLVersion(ctx context.Context) Version { return p.Snapshot(ctx).GLSLVersion }

// GLSLESVersion returns the GLSL ES version, or Unknown.
func (p *Prober) GLSLESVersion(ctx context.Context) Version { return p.Snapshot(ctx).GLSLESVersion }

// Extensions returns the supported extensions, or nil if unknown.
func (p *Prober) Extensions(ctx context.Context) map[string]struct{} {
	return p.Snapshot(ctx).Extensions
}
