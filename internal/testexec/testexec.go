// Copyright 2019 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package testexec spawns test processes and supervises them.
//
// Each process is started as the leader of its own process group. When a
// timeout expires, the process is first asked to terminate; if it is still
// alive after a grace period, the whole group is killed. Either way, no member
// of the group survives Run.
package testexec

import (
	"bytes"
	"context"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"code.cloudfoundry.org/clock"
	"golang.org/x/sys/unix"

	"go.chromium.org/gfxconform/errors"
	"go.chromium.org/gfxconform/internal/logging"
)

// DefaultGracePeriod is the time a process is given to exit after being asked to terminate.
const DefaultGracePeriod = 5 * time.Second

// Command describes a process to run.
type Command struct {
	// Argv is the command line. Argv[0] is looked up in $PATH if it contains no slash.
	Argv []string
	// Dir is the working directory. If empty, the runner's working directory is used.
	Dir string
	// Env is the complete environment of the process; see MergeEnv.
	Env []string
	// Timeout is the maximum run time. Zero disables the timeout.
	Timeout time.Duration
}

// Runner runs test processes.
type Runner struct {
	clk   clock.Clock
	grace time.Duration
}

// NewRunner returns a Runner that measures timeouts with clk.
func NewRunner(clk clock.Clock) *Runner {
	return &Runner{clk: clk, grace: DefaultGracePeriod}
}

// SetGracePeriod overrides DefaultGracePeriod.
func (r *Runner) SetGracePeriod(d time.Duration) { r.grace = d }

// Run runs cmd and waits for it to finish.
//
// A missing executable is reported via Output.NotFound rather than an error.
// An error is returned only if the process could not be supervised, or if
// ctx was canceled, in which case the process group has been killed.
func (r *Runner) Run(ctx context.Context, cmd *Command) (*Output, error) {
	if len(cmd.Argv) == 0 {
		return nil, errors.New("empty command line")
	}
	out := &Output{Argv: append([]string(nil), cmd.Argv...), Start: r.clk.Now()}

	c := exec.Command(cmd.Argv[0], cmd.Argv[1:]...)
	c.Dir = cmd.Dir
	c.Env = cmd.Env
	c.SysProcAttr = &unix.SysProcAttr{Setpgid: true}

	// Pipes are created by hand so that Wait returns as soon as the process
	// exits, even if descendants keep the write ends open.
	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		return nil, errors.Wrap(err, "failed to create stdout pipe")
	}
	defer stdoutR.Close()
	stderrR, stderrW, err := os.Pipe()
	if err != nil {
		stdoutW.Close()
		return nil, errors.Wrap(err, "failed to create stderr pipe")
	}
	defer stderrR.Close()
	c.Stdout = stdoutW
	c.Stderr = stderrW

	err = c.Start()
	stdoutW.Close()
	stderrW.Close()
	if err != nil {
		out.End = r.clk.Now()
		if isNotFound(err) {
			out.NotFound = true
			return out, nil
		}
		return nil, errors.Wrapf(err, "failed to start %s", cmd.Argv[0])
	}
	out.PID = c.Process.Pid
	pgid := out.PID

	var stdout, stderr bytes.Buffer
	var wg sync.WaitGroup
	for _, p := range []struct {
		dst *bytes.Buffer
		src io.Reader
	}{{&stdout, stdoutR}, {&stderr, stderrR}} {
		p := p
		wg.Add(1)
		go func() {
			defer wg.Done()
			io.Copy(p.dst, p.src)
		}()
	}
	drained := make(chan struct{})
	go func() {
		wg.Wait()
		close(drained)
	}()

	var waitErr error
	exited := make(chan struct{})
	go func() {
		waitErr = c.Wait()
		close(exited)
	}()

	canceled := false
	if cmd.Timeout > 0 {
		timer := r.clk.NewTimer(cmd.Timeout)
		select {
		case <-exited:
		case <-ctx.Done():
			canceled = true
		case <-timer.C():
			out.Ladder = r.escalate(ctx, c.Process, pgid, exited)
		}
		timer.Stop()
	} else {
		select {
		case <-exited:
		case <-ctx.Done():
			canceled = true
		}
	}

	if canceled {
		killGroup(r.clk, pgid, unix.SIGKILL)
		<-exited
	} else if out.Ladder != Exited {
		// The leader is gone, but descendants may still hold the group.
		killGroup(r.clk, pgid, unix.SIGKILL)
	}

	// Descendants of a normally exited process may keep the pipes open.
	grace := r.clk.NewTimer(r.grace)
	select {
	case <-drained:
	case <-grace.C():
		logging.Debugf(ctx, "Output of %s still open after exit; closing", cmd.Argv[0])
		stdoutR.Close()
		stderrR.Close()
		<-drained
	}
	grace.Stop()

	out.End = r.clk.Now()
	out.Stdout = decode(stdout.Bytes())
	out.Stderr = decode(stderr.Bytes())
	out.ExitCode = exitCode(c.ProcessState, waitErr)

	if canceled {
		return out, errors.Wrapf(ctx.Err(), "%s was interrupted", cmd.Argv[0])
	}
	return out, nil
}

// escalate runs the termination ladder for a process whose timeout expired.
// It returns after the process has been reaped.
func (r *Runner) escalate(ctx context.Context, proc *os.Process, pgid int, exited <-chan struct{}) Ladder {
	logging.Debugf(ctx, "Timeout expired; terminating process %d", proc.Pid)
	proc.Signal(unix.SIGTERM)

	grace := r.clk.NewTimer(r.grace)
	defer grace.Stop()
	select {
	case <-exited:
		return Terminated
	case <-grace.C():
	}

	logging.Debugf(ctx, "Process %d survived SIGTERM; killing process group", proc.Pid)
	killGroup(r.clk, pgid, unix.SIGKILL)
	<-exited
	return Killed
}

// isNotFound reports whether err from exec.Cmd.Start means the executable is missing.
func isNotFound(err error) bool {
	return errors.Is(err, exec.ErrNotFound) || errors.Is(err, os.ErrNotExist)
}

// exitCode extracts the exit status from ps. A process killed by a signal
// yields the negated signal number.
func exitCode(ps *os.ProcessState, waitErr error) int {
	if ps == nil {
		if waitErr != nil {
			return -1
		}
		return 0
	}
	if ws, ok := ps.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return -int(ws.Signal())
	}
	return ps.ExitCode()
}
