// Copyright 2021 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package planner dispatches the tests of profiles to worker pools and
// reports their results.
package planner

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"sync"

	"code.cloudfoundry.org/clock"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"go.chromium.org/gfxconform/errors"
	"go.chromium.org/gfxconform/internal/capability"
	"go.chromium.org/gfxconform/internal/dep"
	"go.chromium.org/gfxconform/internal/dmesg"
	"go.chromium.org/gfxconform/internal/family"
	"go.chromium.org/gfxconform/internal/logging"
	"go.chromium.org/gfxconform/internal/profile"
	"go.chromium.org/gfxconform/internal/reporting"
	"go.chromium.org/gfxconform/internal/testexec"
	"go.chromium.org/gfxconform/internal/testing"
	"go.chromium.org/gfxconform/internal/timing"
)

// Mode selects which tests may run alongside others.
type Mode string

const (
	// ModeAll runs every test on the parallel pool.
	ModeAll Mode = "all"
	// ModeNone runs every test on the serial pool.
	ModeNone Mode = "none"
	// ModeSome runs concurrent tests on the parallel pool first, then the
	// remaining tests on the serial pool.
	ModeSome Mode = "some"
)

// Modes lists valid modes.
var Modes = []string{string(ModeAll), string(ModeNone), string(ModeSome)}

// DryRunOutput is the output of tests in a dry run.
const DryRunOutput = "dry-run"

// Prober provides driver capabilities for skip decisions.
// *capability.Prober implements it.
type Prober interface {
	Snapshot(ctx context.Context) *capability.Snapshot
}

// Observer is notified as tests start and finish.
// *reporting.Progress implements it.
type Observer interface {
	SetTotal(total int)
	Start(name string)
	Finish(res *testing.Result)
}

// Config contains details about how the planner should run tests.
type Config struct {
	// Mode selects the pool each test runs on.
	Mode Mode
	// Jobs is the width of the parallel pool. Zero means the number of CPUs.
	Jobs int
	// Execute is false for a dry run.
	Execute bool
	// Features is the environment requirements are checked against. If its
	// Snapshot is nil, one is taken from Prober when a test first needs it.
	Features dep.Features
	Prober   Prober
	// Runner spawns test processes.
	Runner *testexec.Runner
	// Backend receives results. It is required.
	Backend reporting.Backend
	// Observer, if non-nil, is notified of progress.
	Observer Observer
	// DmesgReader reads the kernel log for profiles that monitor it. If nil,
	// dmesg.DefaultArgv is run.
	DmesgReader dmesg.Reader
	// Clock is used to timestamp results. If nil, the real clock is used.
	Clock clock.Clock
}

// run holds the state of a single call to Run.
type run struct {
	cfg      *Config
	clk      clock.Clock
	monitors map[*profile.Profile]*dmesg.Monitor
	sum      *reporting.Summary

	featOnce sync.Once
	feat     dep.Features

	mu     sync.Mutex
	reason string // first abort reason
}

// Run runs the tests of profiles as configured by cfg and returns the counts
// of their statuses.
//
// The summary is returned even if the run fails. If a kernel log monitor
// requested an abort, running tests finish, no further test is started, and
// an error of kind errors.KindAbort is returned.
func Run(ctx context.Context, profiles []*profile.Profile, cfg *Config) (*reporting.Summary, error) {
	r := &run{cfg: cfg, clk: cfg.Clock, sum: reporting.NewSummary()}
	if r.clk == nil {
		r.clk = clock.NewClock()
	}

	total, err := profile.CountAll(profiles)
	if err != nil {
		return r.sum, err
	}
	if total == 0 {
		return r.sum, errors.UserErrorf("no tests to run")
	}
	if cfg.Observer != nil {
		cfg.Observer.SetTotal(total)
	}
	if err := r.compileMonitors(profiles); err != nil {
		return r.sum, err
	}

	ctx, st := timing.Start(ctx, "dispatch")
	err = r.dispatch(ctx, profiles)
	st.End()
	if err == nil && ctx.Err() != nil {
		err = errors.Wrap(context.Cause(ctx), "run interrupted")
	}

	logging.Infof(ctx, "Ran %d tests: %s", r.sum.Total(), r.sum)
	if err != nil {
		return r.sum, err
	}
	if reason, ok := r.aborted(); ok {
		return r.sum, errors.AbortErrorf("run aborted by kernel log monitor: %s", reason)
	}
	return r.sum, nil
}

func (r *run) compileMonitors(profiles []*profile.Profile) error {
	read := r.cfg.DmesgReader
	if read == nil {
		read = dmesg.CommandReader(dmesg.DefaultArgv...)
	}
	r.monitors = make(map[*profile.Profile]*dmesg.Monitor)
	for _, p := range profiles {
		o := p.Options
		if !o.Dmesg && o.Monitor == "" {
			continue
		}
		var filter string
		if o.Dmesg {
			filter = o.DmesgFilter
			if filter == "" {
				filter = profile.DefaultDmesgFilter
			}
		}
		m, err := dmesg.CompileMonitor(read, filter, o.Monitor)
		if err != nil {
			return errors.Wrapf(err, "profile %s", p.Name)
		}
		r.monitors[p] = m
	}
	return nil
}

func (r *run) width() int {
	if r.cfg.Jobs > 0 {
		return r.cfg.Jobs
	}
	return runtime.NumCPU()
}

// dispatch submits tests to pools as profiles yield them and waits for all
// of them to finish.
func (r *run) dispatch(ctx context.Context, profiles []*profile.Profile) error {
	g, ctx := errgroup.WithContext(ctx)
	width := int64(r.width())
	par := semaphore.NewWeighted(width)
	ser := semaphore.NewWeighted(1)

	// submit blocks until pool has room, so tests enter each pool in
	// iteration order.
	submit := func(e *profile.Entry, pool *semaphore.Weighted) bool {
		if _, ok := r.aborted(); ok {
			return false
		}
		if err := pool.Acquire(ctx, 1); err != nil {
			return false
		}
		if _, ok := r.aborted(); ok {
			pool.Release(1)
			return false
		}
		g.Go(func() error {
			defer pool.Release(1)
			return r.runTest(ctx, e)
		})
		return true
	}

	each := func(keep func(t *testing.Test) bool, pool *semaphore.Weighted) error {
		for _, p := range profiles {
			stopped := false
			if err := p.Each(func(e *profile.Entry) bool {
				if !keep(e.Test) {
					return true
				}
				stopped = !submit(e, pool)
				return !stopped
			}); err != nil {
				return err
			}
			if stopped {
				break
			}
		}
		return nil
	}

	all := func(*testing.Test) bool { return true }

	var err error
	switch r.cfg.Mode {
	case ModeAll:
		err = each(all, par)
	case ModeNone:
		err = each(all, ser)
	case ModeSome:
		err = each(func(t *testing.Test) bool { return t.Concurrent }, par)
		if err == nil && par.Acquire(ctx, width) == nil {
			// The parallel pool is drained; serial tests run alone.
			par.Release(width)
			err = each(func(t *testing.Test) bool { return !t.Concurrent }, ser)
		}
	default:
		err = errors.ConfigErrorf("unknown concurrency mode %q", r.cfg.Mode)
	}

	if werr := g.Wait(); err == nil {
		err = werr
	}
	return err
}

func (r *run) aborted() (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.reason, r.reason != ""
}

func (r *run) abort(reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.reason == "" {
		r.reason = reason
	}
}

// features returns the environment to check requirements against, probing
// the driver on first use.
func (r *run) features(ctx context.Context) *dep.Features {
	r.featOnce.Do(func() {
		r.feat = r.cfg.Features
		if r.feat.CheckDeps && r.feat.Snapshot == nil && r.cfg.Prober != nil {
			r.feat.Snapshot = r.cfg.Prober.Snapshot(ctx)
		}
	})
	return &r.feat
}

// runTest runs a single test and commits its result. An error is returned
// only if the result could not be recorded.
func (r *run) runTest(ctx context.Context, e *profile.Entry) error {
	ctx = logging.SetLogPrefix(ctx, e.Name+": ")
	ctx, st := timing.Start(ctx, e.Name)
	defer st.End()

	if r.cfg.Observer != nil {
		r.cfg.Observer.Start(e.Name)
	}
	var final *testing.Result
	err := reporting.WriteTest(r.cfg.Backend, e.Name, r.clk.Now(), func(res *testing.Result) {
		final = res
		defer func() {
			if val := recover(); val != nil {
				res.SetHarnessError(errors.Errorf("panic: %v", val))
				logging.Infof(ctx, "Panic while running test: %v", val)
			}
			if res.End.IsZero() {
				res.End = r.clk.Now()
			}
		}()
		res.Start = r.clk.Now()
		r.runBody(ctx, e, res)
	})
	if final == nil {
		// The started record could not be written.
		return errors.Wrapf(err, "failed to record start of %s", e.Name)
	}
	r.sum.Add(final.Status)
	if r.cfg.Observer != nil {
		r.cfg.Observer.Finish(final)
	}
	if err != nil {
		return errors.Wrapf(err, "failed to record result of %s", e.Name)
	}
	return nil
}

// runBody fills in res for e.
func (r *run) runBody(ctx context.Context, e *profile.Entry, res *testing.Result) {
	t := e.Test
	if t.ForceStatus != "" {
		res.Status = t.ForceStatus
		return
	}
	if !r.cfg.Execute {
		res.Status = testing.StatusNotRun
		res.Stdout = DryRunOutput
		return
	}
	if !t.Requirements.Empty() {
		if reasons := t.Requirements.Check(r.features(ctx)); len(reasons) > 0 {
			res.Status = testing.StatusSkip
			res.Stdout = strings.Join(reasons, "\n")
			return
		}
	}

	mon := r.monitors[e.Profile]
	var mk dmesg.Mark
	if mon != nil {
		mk = mon.Begin(ctx)
	}

	if err := family.Execute(ctx, r.cfg.Runner, e.Name, t, e.Profile.Options.Env, res); err != nil {
		logging.Infof(ctx, "Failed to run test: %v", err)
		res.SetHarnessError(errors.Wrap(err, "failed to run test"))
	}

	if mon != nil {
		mon.End(ctx, mk, res)
		if reason, ok := mon.Aborted(); ok {
			r.abort(reason)
		}
	}
}

// String returns a description of cfg for logs.
func (c *Config) String() string {
	return fmt.Sprintf("mode=%s jobs=%d execute=%v", c.Mode, c.Jobs, c.Execute)
}
