// Copyright 2021 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package family

import (
	"bufio"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"time"

	"go.chromium.org/gfxconform/errors"
	"go.chromium.org/gfxconform/internal/logging"
	"go.chromium.org/gfxconform/internal/testexec"
	"go.chromium.org/gfxconform/internal/testing"
)

// DEQPTimeout is the default timeout of dEQP cases.
const DEQPTimeout = 240 * time.Second

// deqpStatuses maps status tokens printed by dEQP to normalized statuses.
var deqpStatuses = map[string]testing.Status{
	"Pass":           testing.StatusPass,
	"Fail":           testing.StatusFail,
	"QualityWarning": testing.StatusWarn,
	"InternalError":  testing.StatusFail,
	"Crash":          testing.StatusCrash,
	"NotSupported":   testing.StatusSkip,
	"ResourceError":  testing.StatusCrash,
}

// deqpStatusRE matches a status line such as "  Pass (Rendering succeeded)".
var deqpStatusRE = regexp.MustCompile(`^\s*(Pass|Fail|QualityWarning|InternalError|Crash|NotSupported|ResourceError)\b`)

// deqpRetryMarkers indicate a failure of the environment rather than the
// driver, e.g. a display server that was not ready. Such runs are repeated.
var deqpRetryMarkers = []string{
	"Failed to open X display",
	"cannot open display",
	"Couldn't open display",
	"XOpenDisplay failed",
}

// deqpOutOfMemoryRE matches a resource error caused by exhausting device
// memory, which is typically transient when tests run concurrently.
var deqpOutOfMemoryRE = regexp.MustCompile(`(?i)ResourceError \(.*out of (device|host) memory.*\)`)

// DEQPDefaultArgs are passed to every dEQP case.
var DEQPDefaultArgs = []string{
	"--deqp-surface-type=pbuffer",
	"--deqp-gl-config-name=rgba8888d24s8ms0",
	"--deqp-visibility=hidden",
}

// DEQP runs cases of a dEQP conformance module, one process per case.
type DEQP struct {
	// Bin is the path of the dEQP module binary, e.g. deqp-gles2.
	Bin string
	// ExtraArgs are appended to the command line of every case.
	ExtraArgs []string
	// Timeout is given to cases that do not override it.
	Timeout time.Duration
}

// NewDEQP returns a DEQP family running bin.
func NewDEQP(bin string, extraArgs []string) *DEQP {
	return &DEQP{Bin: bin, ExtraArgs: extraArgs, Timeout: DEQPTimeout}
}

// Name implements testing.Family.
func (*DEQP) Name() string { return "deqp" }

// DefaultTimeout implements testing.Family.
func (f *DEQP) DefaultTimeout() time.Duration { return f.Timeout }

// CaseArgs returns the command line selecting the case named c.
func (f *DEQP) CaseArgs(c string) []string {
	return []string{f.Bin, "--deqp-case=" + c}
}

// Command implements testing.Family.
func (f *DEQP) Command(t *testing.Test) []string {
	argv := append([]string(nil), t.Argv...)
	argv = append(argv, DEQPDefaultArgs...)
	return append(argv, f.ExtraArgs...)
}

// Interpret implements testing.Family. A non-zero exit status overrides any
// status token printed by the case.
func (*DEQP) Interpret(t *testing.Test, out *testexec.Output, res *testing.Result) {
	res.Stdout = out.Stdout
	res.Stderr = out.Stderr

	switch {
	case out.Crashed(runtime.GOOS):
		res.Status = testing.StatusCrash
		return
	case out.ExitCode != 0:
		res.Status = testing.StatusFail
		return
	}

	res.Status = testing.StatusFail
	for _, line := range strings.Split(out.Stdout, "\n") {
		if m := deqpStatusRE.FindStringSubmatch(line); m != nil {
			res.Status = deqpStatuses[m[1]]
			return
		}
	}
	res.Stderr += "\nNo status found in dEQP output\n"
}

// Retry implements testing.Family.
func (*DEQP) Retry(out *testexec.Output) bool {
	for _, m := range deqpRetryMarkers {
		if strings.Contains(out.Stdout, m) || strings.Contains(out.Stderr, m) {
			return true
		}
	}
	return deqpOutOfMemoryRE.MatchString(out.Stdout)
}

// ReadCaseList reads case names from a must-pass or case-list file. Lines may
// be bare case names or "TEST: <name>" as written by --deqp-runmode=txt-caselist.
// Blank lines and "#" comments are ignored.
func ReadCaseList(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.WithKind(errors.Wrap(err, "failed to read dEQP case list"), errors.KindConfig)
	}
	defer f.Close()

	var cases []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "GROUP:") {
			continue
		}
		cases = append(cases, strings.TrimSpace(strings.TrimPrefix(line, "TEST:")))
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", path)
	}
	return cases, nil
}

// EnumerateCases asks the binary for its case list. The binary writes
// <name>-cases.txt into its working directory, which is a temporary
// directory removed afterwards.
func (f *DEQP) EnumerateCases(ctx context.Context) ([]string, error) {
	dir, err := os.MkdirTemp("", "gfxconform_deqp_")
	if err != nil {
		return nil, errors.Wrap(err, "failed to create case list directory")
	}
	defer os.RemoveAll(dir)

	bin, err := filepath.Abs(f.Bin)
	if err != nil {
		return nil, errors.Wrap(err, "failed to resolve dEQP binary")
	}
	cmd := exec.CommandContext(ctx, bin, append([]string{"--deqp-runmode=txt-caselist"}, f.ExtraArgs...)...)
	cmd.Dir = dir
	logging.Debugf(ctx, "Enumerating dEQP cases with %s", bin)
	if b, err := cmd.CombinedOutput(); err != nil {
		return nil, errors.WithKind(errors.Wrapf(err, "failed to enumerate cases of %s: %s", f.Bin, strings.TrimSpace(string(b))), errors.KindConfig)
	}

	matches, err := filepath.Glob(filepath.Join(dir, "*-cases.txt"))
	if err != nil || len(matches) == 0 {
		return nil, errors.ConfigErrorf("%s wrote no case list", f.Bin)
	}
	return ReadCaseList(matches[0])
}

// AddCases adds one test per case to g. Cases are named after their dotted
// path with "." replaced by "/".
func (f *DEQP) AddCases(g *testing.GroupManager, cases []string, opts ...testing.Option) error {
	for _, c := range cases {
		if err := g.Add(f.CaseArgs(c), strings.ReplaceAll(c, ".", "/"), opts...); err != nil {
			return err
		}
	}
	return nil
}
