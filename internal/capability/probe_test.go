// Copyright 2018 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package capability

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"go.chromium.org/gfxconform/testutil"
)

const (
	coreOutput = `Waffle platform: glx
Waffle api: gl
OpenGL vendor string: Mesa
OpenGL renderer string: llvmpipe
OpenGL version string: 4.5 (Core Profile) Mesa 23.1.0
OpenGL context flags: 0x0
OpenGL shading language version string: 4.50
OpenGL extensions: GL_ARB_a GL_ARB_b
`
	compatOutput = `libEGL warning: DRI2: failed to authenticate
OpenGL version string: 4.5 (Compatibility Profile) Mesa 23.1.0
OpenGL shading language version string: 4.50
OpenGL extensions: GL_ARB_a GL_ARB_compat
`
	gles3Output = `OpenGL version string: OpenGL ES 3.2 Mesa 23.1.0
OpenGL shading language version string: OpenGL ES GLSL ES 3.20
OpenGL extensions: GL_OES_x
`
)

func TestParseOutput(t *testing.T) {
	info := parseOutput([]byte(coreOutput))
	if info.version != 450 || info.glsl != 450 {
		t.Errorf("versions = (%v, %v); want (4.50, 4.50)", info.version, info.glsl)
	}
	if diff := cmp.Diff(info.extensions, []string{"GL_ARB_a", "GL_ARB_b"}); diff != "" {
		t.Errorf("extensions mismatch (-got +want):\n%s", diff)
	}

	info = parseOutput([]byte("OpenGL version string: WFLINFO_GL_ERROR\nOpenGL extensions: WFLINFO_GL_ERROR\n"))
	if info.version.Known() || info.extensions != nil {
		t.Errorf("parseOutput accepted the error sentinel: %+v", info)
	}
}

// fakeRunner returns canned wflinfo output keyed by API and counts calls.
type fakeRunner struct {
	mu    sync.Mutex
	calls map[string]int
	delay time.Duration
}

func (f *fakeRunner) run(ctx context.Context, env []string, name string, args ...string) ([]byte, error) {
	key := strings.Join(args, " ")
	f.mu.Lock()
	f.calls[key]++
	f.mu.Unlock()
	time.Sleep(f.delay)

	switch {
	case strings.Contains(key, "core"):
		return []byte(coreOutput), nil
	case strings.Contains(key, "compat"):
		return []byte(compatOutput), nil
	case strings.Contains(key, "gles3"):
		return []byte(gles3Output), nil
	default:
		return nil, errors.New("exit status 1")
	}
}

func TestSnapshot(t *testing.T) {
	fr := &fakeRunner{calls: make(map[string]int)}
	p := NewProber("wflinfo", "gbm")
	p.run = fr.run

	got := p.Snapshot(context.Background())
	if got.GLVersion != 450 || got.GLSLVersion != 450 {
		t.Errorf("desktop versions = (%v, %v); want (4.50, 4.50)", got.GLVersion, got.GLSLVersion)
	}
	if got.GLESVersion != 320 || got.GLSLESVersion != 320 {
		t.Errorf("ES versions = (%v, %v); want (3.20, 3.20)", got.GLESVersion, got.GLSLESVersion)
	}
	want := map[string]struct{}{"GL_ARB_a": {}, "GL_ARB_b": {}, "GL_ARB_compat": {}, "GL_OES_x": {}}
	if diff := cmp.Diff(got.Extensions, want); diff != "" {
		t.Errorf("extensions mismatch (-got +want):\n%s", diff)
	}
}

func TestSnapshotFailure(t *testing.T) {
	p := NewProber("wflinfo", "gbm")
	p.run = func(ctx context.Context, env []string, name string, args ...string) ([]byte, error) {
		return nil, errors.New("not found")
	}
	s := p.Snapshot(context.Background())
	if s.GLVersion.Known() || s.GLESVersion.Known() || s.GLSLVersion.Known() || s.GLSLESVersion.Known() {
		t.Errorf("Snapshot reported versions after failures: %+v", s)
	}
	if s.ExtensionsKnown() {
		t.Error("Snapshot reported an extension set after failures")
	}
}

func TestConcurrentAccessProbesOnce(t *testing.T) {
	fr := &fakeRunner{calls: make(map[string]int), delay: 50 * time.Millisecond}
	p := NewProber("wflinfo", "glx")
	p.run = fr.run

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.Snapshot(context.Background())
			p.GLVersion(context.Background())
		}()
	}
	wg.Wait()

	if len(fr.calls) != len(APIs) {
		t.Errorf("Got %d distinct queries; want %d", len(fr.calls), len(APIs))
	}
	for args, n := range fr.calls {
		if n != 1 {
			t.Errorf("Query %q ran %d times; want 1", args, n)
		}
	}
}

func TestAccessors(t *testing.T) {
	fr := &fakeRunner{calls: make(map[string]int)}
	p := NewProber("wflinfo", "gbm")
	p.run = fr.run
	ctx := context.Background()

	for _, tc := range []struct {
		name string
		got  Version
		want Version
	}{
		{"GLVersion", p.GLVersion(ctx), 450},
		{"GLESVersion", p.GLESVersion(ctx), 320},
		{"GLSLVersion", p.GLSLVersion(ctx), 450},
		{"GLSLESVersion", p.GLSLESVersion(ctx), 320},
	} {
		if tc.got != tc.want {
			t.Errorf("%s = %v; want %v", tc.name, tc.got, tc.want)
		}
	}
	if _, ok := p.Extensions(ctx)["GL_OES_x"]; !ok {
		t.Errorf("Extensions = %v; want GL_OES_x included", p.Extensions(ctx))
	}
	for args, n := range fr.calls {
		if n != 1 {
			t.Errorf("Query %q ran %d times; want 1", args, n)
		}
	}
}

func TestDefault(t *testing.T) {
	p := Default("/opt/wflinfo", "gbm")
	if p.Platform() != "gbm" {
		t.Errorf("Platform = %q; want gbm", p.Platform())
	}
	if p.binary != "/opt/wflinfo" {
		t.Errorf("binary = %q; want /opt/wflinfo", p.binary)
	}
	if q := Default("wflinfo", "x11"); q != p {
		t.Error("Default returned a different Prober on the second call")
	}
}

func TestProbePlatform(t *testing.T) {
	for in, want := range map[string]string{
		"mixed_glx_egl": "glx",
		"":              "glx",
		"gbm":           "gbm",
		"x11_egl":       "x11_egl",
	} {
		if got := ProbePlatform(in); got != want {
			t.Errorf("ProbePlatform(%q) = %q; want %q", in, got, want)
		}
	}
}

func TestRunCommand(t *testing.T) {
	td := testutil.TempDir(t)
	bin := testutil.WriteScript(t, td, "wflinfo", `echo "OpenGL version string: 3.3 $PIGLIT_PLATFORM"`)

	p := NewProber(bin, "mixed_glx_egl")
	info := p.query(context.Background(), GLCore)
	if !info.ok || info.version != 330 {
		t.Errorf("query = %+v; want version 3.30", info)
	}
}
