// Copyright 2021 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package main

import (
	"context"
	"encoding/json"
	"flag"
	"io"

	"github.com/google/subcommands"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"go.chromium.org/gfxconform/internal/capability"
	"go.chromium.org/gfxconform/internal/command"
	"go.chromium.org/gfxconform/internal/config"
)

// probeCmd implements subcommands.Command to print driver capabilities as
// seen by skip decisions.
type probeCmd struct {
	configPath string
	platform   string
	wflinfo    string
	stdout     io.Writer
	stderr     io.Writer
}

var _ = subcommands.Command(&probeCmd{})

func newProbeCmd(stdout, stderr io.Writer) *probeCmd {
	return &probeCmd{stdout: stdout, stderr: stderr}
}

func (*probeCmd) Name() string     { return "probe" }
func (*probeCmd) Synopsis() string { return "print driver capabilities" }
func (*probeCmd) Usage() string {
	return `Usage: probe [flag]...

Description:
    Queries the driver with wflinfo and prints the API versions and
    extensions used to skip tests, as JSON. Unknown values are omitted.

Flag:
`
}

func (pc *probeCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&pc.configPath, "config", "", "configuration file")
	f.StringVar(&pc.platform, "platform", "", "window-system platform (default: $PIGLIT_PLATFORM or [core] platform)")
	f.StringVar(&pc.wflinfo, "wflinfo", "wflinfo", "program used to probe driver capabilities")
}

// probeOutput is the JSON printed by probeCmd.
type probeOutput struct {
	Platform      string   `json:"platform"`
	GLVersion     string   `json:"glVersion,omitempty"`
	GLESVersion   string   `json:"glesVersion,omitempty"`
	GLSLVersion   string   `json:"glslVersion,omitempty"`
	GLSLESVersion string   `json:"glslEsVersion,omitempty"`
	Extensions    []string `json:"extensions"`
}

func newProbeOutput(ctx context.Context, p *capability.Prober) *probeOutput {
	exts := maps.Keys(p.Extensions(ctx))
	slices.Sort(exts)
	return &probeOutput{
		Platform:      p.Platform(),
		GLVersion:     versionString(p.GLVersion(ctx)),
		GLESVersion:   versionString(p.GLESVersion(ctx)),
		GLSLVersion:   versionString(p.GLSLVersion(ctx)),
		GLSLESVersion: versionString(p.GLSLESVersion(ctx)),
		Extensions:    exts,
	}
}

func versionString(v capability.Version) string {
	if !v.Known() {
		return ""
	}
	return v.String()
}

func (pc *probeCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	cfg, err := config.Find(pc.configPath)
	if err != nil {
		return subcommands.ExitStatus(command.WriteError(pc.stderr, err))
	}
	platform := pc.platform
	if platform == "" {
		platform, _ = cfg.Get(config.Option{Env: "PIGLIT_PLATFORM", Section: "core", Key: "platform", Default: capability.DefaultPlatform})
	}

	out := newProbeOutput(ctx, capability.Default(pc.wflinfo, platform))
	enc := json.NewEncoder(pc.stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return subcommands.ExitStatus(command.WriteError(pc.stderr, err))
	}
	return subcommands.ExitSuccess
}
