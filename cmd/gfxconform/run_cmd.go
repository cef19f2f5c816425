// Copyright 2021 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package main

import (
	"context"
	"flag"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"code.cloudfoundry.org/clock"
	"github.com/google/subcommands"

	"go.chromium.org/gfxconform/errors"
	"go.chromium.org/gfxconform/internal/capability"
	"go.chromium.org/gfxconform/internal/command"
	"go.chromium.org/gfxconform/internal/dep"
	"go.chromium.org/gfxconform/internal/logging"
	"go.chromium.org/gfxconform/internal/planner"
	"go.chromium.org/gfxconform/internal/reporting"
	"go.chromium.org/gfxconform/internal/testexec"
	"go.chromium.org/gfxconform/internal/timing"
)

const (
	fullLogName   = "full.txt"    // file in the results directory containing full output
	timingLogName = "timing.json" // file in the results directory containing timing information
)

// runCmd implements subcommands.Command to support running tests.
type runCmd struct {
	lf      *loadFlags
	mode    planner.Mode
	dryRun  bool
	noIsol  bool
	wflinfo string
	timeout time.Duration // overall timeout; 0 if no timeout
	stdout  io.Writer     // where progress is written
	stderr  io.Writer     // where fatal errors are written
	clk     clock.Clock
}

var _ = subcommands.Command(&runCmd{})

func newRunCmd(stdout, stderr io.Writer) *runCmd {
	return &runCmd{lf: newLoadFlags(), stdout: stdout, stderr: stderr, clk: clock.NewClock()}
}

func (*runCmd) Name() string     { return "run" }
func (*runCmd) Synopsis() string { return "run tests" }
func (*runCmd) Usage() string {
	return `Usage: run [flag]... <profile>... <results-dir>

Description:
    Runs the tests of one or more profiles and writes their results to
    results-dir. A profile is either the name of a built-in profile or the
    path of a YAML profile file.

    Exits with 0 if all tests were executed, even if some of them failed.
    Exit status 2 indicates a configuration error, 3 a usage error such as
    filters matching no test, and 4 a run aborted by the kernel log monitor.
    Examine results.json or streamed_results.jsonl for failing tests.

Flag:
`
}

func (r *runCmd) SetFlags(f *flag.FlagSet) {
	r.lf.SetFlags(f)

	modes := make(map[string]int)
	for i, m := range planner.Modes {
		modes[m] = i
	}
	cf := command.NewEnumFlag(modes, func(v int) { r.mode = planner.Mode(planner.Modes[v]) }, string(planner.ModeSome))
	f.Var(cf, "concurrency", "tests to run in parallel ("+cf.QuotedValues()+")")
	f.IntVar(&r.lf.opts.Jobs, "jobs", 0, "width of the parallel pool (default: number of CPUs)")
	f.BoolVar(&r.dryRun, "dry-run", false, "report tests without running them")
	f.BoolVar(&r.lf.opts.Sync, "sync", false, "flush every result to disk as soon as it is written")
	f.BoolVar(&r.lf.opts.Dmesg, "dmesg", false, "annotate results with kernel log messages")
	f.StringVar(&r.lf.opts.Monitor, "monitor", "", "abort the run when a kernel log line matches the regular expression")
	f.BoolVar(&r.noIsol, "no-process-isolation", false, "share processes between tests (unsupported)")
	f.StringVar(&r.wflinfo, "wflinfo", "wflinfo", "program used to probe driver capabilities")
	f.Var(command.NewDurationFlag(time.Second, &r.timeout, 0), "timeout", "run timeout in seconds; 0 for none")
}

func (r *runCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if len(f.Args()) < 2 {
		logging.Info(ctx, "Missing profile or results directory.\n\n"+r.Usage())
		return subcommands.ExitUsageError
	}
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeoutCause(ctx, r.timeout, errors.Errorf("%v: global timeout reached (%v)", context.DeadlineExceeded, r.timeout))
		defer cancel()
	}
	args := f.Args()
	if err := r.run(ctx, args[:len(args)-1], args[len(args)-1]); err != nil {
		return subcommands.ExitStatus(command.WriteError(r.stderr, err))
	}
	return subcommands.ExitSuccess
}

// run runs the tests of the named profiles, writing results to resDir.
func (r *runCmd) run(ctx context.Context, names []string, resDir string) error {
	r.lf.opts.Execute = !r.dryRun
	r.lf.opts.ProcessIsolation = !r.noIsol

	if err := os.MkdirAll(resDir, 0755); err != nil {
		return errors.Wrap(err, "failed to create results directory")
	}

	tl := timing.NewLog()
	ctx = timing.NewContext(ctx, tl)
	ctx, st := timing.Start(ctx, "exec")

	// Write the timing log after the command finishes.
	defer func() {
		st.End()
		f, err := os.Create(filepath.Join(resDir, timingLogName))
		if err != nil {
			logging.Info(ctx, err)
			return
		}
		defer f.Close()
		if err := tl.WritePretty(f); err != nil {
			logging.Info(ctx, err)
		}
	}()

	// Log the full output of the command to disk.
	fullLog, err := os.Create(filepath.Join(resDir, fullLogName))
	if err != nil {
		return errors.Wrap(err, "failed to create log")
	}
	defer fullLog.Close()
	ctx = logging.AttachLogger(ctx, logging.NewSinkLogger(logging.LevelDebug, true, logging.NewWriterSink(fullLog)).LabelAll())

	logging.Info(ctx, "Command line: ", strings.Join(os.Args, " "))
	logging.Info(ctx, "Writing results to ", resDir)
	if !r.lf.opts.ProcessIsolation {
		logging.Warning(ctx, "Process isolation cannot be disabled; every test runs in its own process")
	}

	ld, err := r.lf.load(ctx, names, resDir)
	if err != nil {
		return err
	}

	w, err := reporting.NewStreamedWriter(resDir, r.lf.opts.Sync)
	if err != nil {
		return err
	}
	defer w.Close()

	progress := reporting.NewProgress(r.stdout, 0, reporting.ProgressOptions{BinDir: ld.binDir, DryRun: r.dryRun})
	pcfg := &planner.Config{
		Mode:    r.mode,
		Jobs:    r.lf.opts.Jobs,
		Execute: r.lf.opts.Execute,
		Features: dep.Features{
			Platform:  ld.platform,
			CheckDeps: !ld.cfg.Env("PIGLIT_NO_FAST_SKIP"),
		},
		Prober:   capability.Default(r.wflinfo, ld.platform),
		Runner:   testexec.NewRunner(r.clk),
		Backend:  w,
		Observer: progress,
		Clock:    r.clk,
	}
	logging.Debug(ctx, "Planner: ", pcfg)

	results := &reporting.Results{
		Name:    filepath.Base(resDir),
		Options: r.resultOptions(names, ld),
		Start:   r.clk.Now(),
	}
	_, runErr := planner.Run(ctx, ld.profiles, pcfg)
	progress.Close()
	results.End = r.clk.Now()
	if errors.KindOf(runErr) == errors.KindAbort {
		results.Aborted = runErr.Error()
	}

	if err := w.Finalize(results); err != nil {
		if runErr == nil {
			return err
		}
		logging.Info(ctx, "Failed to write results: ", err)
	}
	return runErr
}

// resultOptions returns the options recorded in results.json.
func (r *runCmd) resultOptions(names []string, ld *loaded) map[string]interface{} {
	o := &r.lf.opts
	return map[string]interface{}{
		"profile":       names,
		"platform":      ld.platform,
		"concurrency":   string(r.mode),
		"execute":       o.Execute,
		"valgrind":      o.Valgrind,
		"sync":          o.Sync,
		"dmesg":         o.Dmesg,
		"monitor":       o.Monitor,
		"deqp_mustpass": o.DEQPMustpass,
		"include":       o.IncludeFilter,
		"exclude":       o.ExcludeFilter,
		"env":           o.Env,
	}
}
