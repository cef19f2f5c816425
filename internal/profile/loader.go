// Copyright 2021 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package profile

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"go.chromium.org/gfxconform/errors"
	"go.chromium.org/gfxconform/internal/config"
	"go.chromium.org/gfxconform/internal/logging"
	"go.chromium.org/gfxconform/internal/timing"
)

// LoadEnv is what loaders need to know to build a profile.
type LoadEnv struct {
	Config  *config.Config
	Options *RunOptions
	// BinDir holds native test executables.
	BinDir string
	// ResultsDir receives artifacts such as images.
	ResultsDir string
}

// Loader builds a profile.
type Loader func(ctx context.Context, env *LoadEnv) (*Profile, error)

var (
	loadersMu sync.Mutex
	loaders   = make(map[string]Loader)
)

// Register makes a profile loadable by name. It panics if name is already
// registered, as that is a programming error.
func Register(name string, l Loader) {
	loadersMu.Lock()
	defer loadersMu.Unlock()
	if _, ok := loaders[name]; ok {
		panic(fmt.Sprintf("profile %q registered twice", name))
	}
	loaders[name] = l
}

// Registered returns the names of registered profiles, sorted.
func Registered() []string {
	loadersMu.Lock()
	defer loadersMu.Unlock()
	var names []string
	for n := range loaders {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func lookupLoader(name string) (Loader, bool) {
	loadersMu.Lock()
	defer loadersMu.Unlock()
	l, ok := loaders[name]
	return l, ok
}

// isFile reports whether name refers to a profile file rather than a
// registered profile.
func isFile(name string) bool {
	switch filepath.Ext(name) {
	case ".yaml", ".yml":
		return true
	}
	return strings.ContainsRune(name, os.PathSeparator)
}

// Load loads the profile name, which is either a registered profile or the
// path of a profile file. Run options are applied to the result.
func Load(ctx context.Context, name string, env *LoadEnv) (*Profile, error) {
	ctx, st := timing.Start(ctx, "load "+name)
	defer st.End()

	var p *Profile
	var err error
	if isFile(name) {
		p, err = LoadFile(ctx, name, env)
	} else {
		l, ok := lookupLoader(name)
		if !ok {
			return nil, errors.ConfigErrorf("unknown profile %q (known: %s)", name, strings.Join(Registered(), ", "))
		}
		p, err = l(ctx, env)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load profile %s", name)
	}
	if p.Name == "" {
		p.Name = name
	}
	if env.Options != nil {
		if err := p.Apply(env.Options); err != nil {
			return nil, err
		}
	}
	logging.Debugf(ctx, "Loaded profile %s with %d tests", p.Name, p.Catalog.Len())
	return p, nil
}

// LoadAll loads each named profile.
func LoadAll(ctx context.Context, names []string, env *LoadEnv) ([]*Profile, error) {
	var ps []*Profile
	for _, n := range names {
		p, err := Load(ctx, n, env)
		if err != nil {
			return nil, err
		}
		ps = append(ps, p)
	}
	return ps, nil
}

// BinDir returns the directory holding test executables: the bin
// subdirectory of the build tree named by PIGLIT_BUILD_DIR (or
// PIGLIT_BUILD_TREE), falling back to the [core] build_dir key.
func BinDir(cfg *config.Config) string {
	dir, _ := cfg.Get(config.Option{Env: "PIGLIT_BUILD_DIR", Section: "core", Key: "build_dir"})
	if dir == "" {
		if v, ok := cfg.EnvValue("PIGLIT_BUILD_TREE"); ok {
			dir = v
		}
	}
	if dir == "" {
		dir = "."
	}
	return filepath.Join(dir, "bin")
}
