// Copyright 2019 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package testexec

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"code.cloudfoundry.org/clock"
	"golang.org/x/sys/unix"

	"go.chromium.org/gfxconform/testutil"
)

func TestRunCapturesOutput(t *testing.T) {
	td := testutil.TempDir(t)
	bin := testutil.WriteScript(t, td, "hello", `echo out; echo err >&2; printf 'bad\377byte\n'; exit 3`)

	r := NewRunner(clock.NewClock())
	out, err := r.Run(context.Background(), &Command{Argv: []string{bin}, Env: os.Environ()})
	if err != nil {
		t.Fatal("Run failed: ", err)
	}
	if want := "out\nbad�byte\n"; out.Stdout != want {
		t.Errorf("Stdout = %q; want %q", out.Stdout, want)
	}
	if out.Stderr != "err\n" {
		t.Errorf("Stderr = %q; want %q", out.Stderr, "err\n")
	}
	if out.ExitCode != 3 {
		t.Errorf("ExitCode = %d; want 3", out.ExitCode)
	}
	if out.PID == 0 || out.NotFound || out.TimedOut() {
		t.Errorf("Unexpected output state: %+v", out)
	}
}

func TestRunEnvAndDir(t *testing.T) {
	td := testutil.TempDir(t)
	bin := testutil.WriteScript(t, td, "env", `echo "$FOO $BAR"; pwd`)

	env := MergeEnv([]string{"FOO=ambient", "BAR=ambient"},
		map[string]string{"FOO": "profile", "BAR": "profile"},
		map[string]string{"BAR": "test"})
	r := NewRunner(clock.NewClock())
	out, err := r.Run(context.Background(), &Command{Argv: []string{bin}, Dir: td, Env: env})
	if err != nil {
		t.Fatal("Run failed: ", err)
	}
	realTD, _ := filepath.EvalSymlinks(td)
	lines := strings.Split(strings.TrimSpace(out.Stdout), "\n")
	if len(lines) != 2 || lines[0] != "profile test" {
		t.Errorf("Stdout = %q; want \"profile test\" followed by the directory", out.Stdout)
	} else if got, _ := filepath.EvalSymlinks(lines[1]); got != realTD {
		t.Errorf("Working directory = %q; want %q", got, realTD)
	}
}

func TestRunNotFound(t *testing.T) {
	td := testutil.TempDir(t)
	r := NewRunner(clock.NewClock())
	for _, argv0 := range []string{filepath.Join(td, "missing"), "gfxconform-missing-binary"} {
		out, err := r.Run(context.Background(), &Command{Argv: []string{argv0}})
		if err != nil {
			t.Errorf("Run(%q) failed: %v", argv0, err)
			continue
		}
		if !out.NotFound || out.PID != 0 {
			t.Errorf("Run(%q) = %+v; want NotFound with no PID", argv0, out)
		}
	}
}

func TestRunSignaled(t *testing.T) {
	td := testutil.TempDir(t)
	bin := testutil.WriteScript(t, td, "abort", `kill -s SEGV $$`)

	r := NewRunner(clock.NewClock())
	out, err := r.Run(context.Background(), &Command{Argv: []string{bin}})
	if err != nil {
		t.Fatal("Run failed: ", err)
	}
	if out.ExitCode != -int(unix.SIGSEGV) {
		t.Errorf("ExitCode = %d; want %d", out.ExitCode, -int(unix.SIGSEGV))
	}
	if !out.Crashed("linux") {
		t.Error("Crashed() = false; want true")
	}
}

func TestIsCrash(t *testing.T) {
	for _, tc := range []struct {
		code int
		goos string
		want bool
	}{
		{0, "linux", false},
		{1, "linux", false},
		{3, "linux", false},
		{-11, "linux", true},
		{3, "windows", true},
		{-1, "windows", true},
	} {
		if got := IsCrash(tc.code, tc.goos); got != tc.want {
			t.Errorf("IsCrash(%d, %q) = %v; want %v", tc.code, tc.goos, got, tc.want)
		}
	}
}

func TestRunTimeout(t *testing.T) {
	r := NewRunner(clock.NewClock())
	start := time.Now()
	out, err := r.Run(context.Background(), &Command{Argv: []string{"sleep", "60"}, Timeout: time.Second})
	if err != nil {
		t.Fatal("Run failed: ", err)
	}
	if elapsed := time.Since(start); elapsed > 6*time.Second {
		t.Errorf("Run took %v; want at most 6s", elapsed)
	}
	if out.Ladder != Terminated {
		t.Errorf("Ladder = %v; want %v", out.Ladder, Terminated)
	}
	if err := waitForGroup(out.PID, 0, time.Second); err != nil {
		t.Errorf("Process survived: %v", err)
	}
}

// waitForGroup waits up to maxTime for process group pgid to have num live members.
func waitForGroup(pgid, num int, maxTime time.Duration) error {
	start := time.Now()
	for {
		pids, err := groupMembers(pgid)
		if err != nil {
			return err
		}
		if len(pids) == num {
			return nil
		} else if time.Since(start) > maxTime {
			return fmt.Errorf("got %d proc(s): %v", len(pids), pids)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestRunTimeoutKillsDescendants(t *testing.T) {
	td := testutil.TempDir(t)
	// The background sleep outlives the shell when the shell is terminated.
	bin := testutil.WriteScript(t, td, "fork", `sleep 60 & sleep 60`)

	r := NewRunner(clock.NewClock())
	out, err := r.Run(context.Background(), &Command{Argv: []string{bin}, Timeout: 500 * time.Millisecond})
	if err != nil {
		t.Fatal("Run failed: ", err)
	}
	if !out.TimedOut() {
		t.Errorf("TimedOut() = false; Ladder = %v", out.Ladder)
	}
	if err := waitForGroup(out.PID, 0, time.Second); err != nil {
		t.Errorf("Descendants survived: %v", err)
	}
}

func TestRunTimeoutEscalatesToKill(t *testing.T) {
	td := testutil.TempDir(t)
	bin := testutil.WriteScript(t, td, "stubborn", `trap '' TERM; while :; do sleep 0.1; done`)

	r := NewRunner(clock.NewClock())
	r.SetGracePeriod(300 * time.Millisecond)
	out, err := r.Run(context.Background(), &Command{Argv: []string{bin}, Timeout: 300 * time.Millisecond})
	if err != nil {
		t.Fatal("Run failed: ", err)
	}
	if out.Ladder != Killed {
		t.Errorf("Ladder = %v; want %v", out.Ladder, Killed)
	}
	if out.ExitCode != -int(unix.SIGKILL) {
		t.Errorf("ExitCode = %d; want %d", out.ExitCode, -int(unix.SIGKILL))
	}
	if err := waitForGroup(out.PID, 0, time.Second); err != nil {
		t.Errorf("Group members survived: %v", err)
	}
}

func TestRunCanceled(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	r := NewRunner(clock.NewClock())
	out, err := r.Run(ctx, &Command{Argv: []string{"sleep", "60"}})
	if err == nil {
		t.Fatal("Run succeeded despite cancellation")
	}
	if out == nil || out.PID == 0 {
		t.Fatalf("Run returned output %+v; want a started process", out)
	}
	if err := waitForGroup(out.PID, 0, time.Second); err != nil {
		t.Errorf("Group members survived: %v", err)
	}
}

func TestMergeEnv(t *testing.T) {
	ambient := []string{"PATH=/bin", "FOO=a", "BAR=b"}
	got := MergeEnv(ambient,
		map[string]string{"FOO": "profile", "ZED": "profile"},
		map[string]string{"FOO": "test", "ALPHA": "test"})
	want := []string{"PATH=/bin", "FOO=test", "BAR=b", "ALPHA=test", "ZED=profile"}
	if strings.Join(got, " ") != strings.Join(want, " ") {
		t.Errorf("MergeEnv = %q; want %q", got, want)
	}
	if ambient[1] != "FOO=a" {
		t.Error("MergeEnv modified ambient")
	}
}
