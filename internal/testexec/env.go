// Copyright 2019 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package testexec

import (
	"strings"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// MergeEnv returns an environment for a child process. ambient is a list of
// "NAME=value" entries, typically os.Environ(). overlays are applied in order,
// so a later overlay takes precedence over earlier ones and over ambient.
// Variables from ambient keep their order; new variables are appended sorted
// by name. ambient is not modified.
func MergeEnv(ambient []string, overlays ...map[string]string) []string {
	merged := make(map[string]string)
	for _, ov := range overlays {
		for k, v := range ov {
			merged[k] = v
		}
	}

	env := make([]string, 0, len(ambient)+len(merged))
	seen := make(map[string]struct{})
	for _, kv := range ambient {
		name := kv
		if i := strings.IndexByte(kv, '='); i >= 0 {
			name = kv[:i]
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		if v, ok := merged[name]; ok {
			env = append(env, name+"="+v)
		} else {
			env = append(env, kv)
		}
	}

	names := maps.Keys(merged)
	slices.Sort(names)
	for _, name := range names {
		if _, ok := seen[name]; !ok {
			env = append(env, name+"="+merged[name])
		}
	}
	return env
}

// OverlayEnv merges overlays into a single map, later ones taking precedence.
// The result is recorded in results for reproducibility.
func OverlayEnv(overlays ...map[string]string) map[string]string {
	m := make(map[string]string)
	for _, ov := range overlays {
		maps.Copy(m, ov)
	}
	return m
}
