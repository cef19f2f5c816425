// Copyright 2019 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package testexec

import (
	"os/exec"
	"testing"
	"time"

	"code.cloudfoundry.org/clock/fakeclock"
	"golang.org/x/sys/unix"
)

func TestKillGroupUsesClock(t *testing.T) {
	// The leader forks a grandchild that stays in its process group.
	cmd := exec.Command("sh", "-c", "sleep 60 & exec sleep 60")
	cmd.SysProcAttr = &unix.SysProcAttr{Setpgid: true}
	if err := cmd.Start(); err != nil {
		t.Fatal(err)
	}
	pgid := cmd.Process.Pid
	defer unix.Kill(-pgid, unix.SIGKILL)

	// Wait for the grandchild to join the group.
	for deadline := time.Now().Add(10 * time.Second); ; {
		if pids, err := groupMembers(pgid); err == nil && len(pids) >= 2 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("Process group never reached two members")
		}
		time.Sleep(10 * time.Millisecond)
	}

	fc := fakeclock.NewFakeClock(time.Unix(0, 0))
	done := make(chan struct{})
	go func() {
		killGroup(fc, pgid, unix.SIGKILL)
		close(done)
	}()

	// Passes only advance when the fake clock does.
	timeout := time.After(10 * time.Second)
	for finished := false; !finished; {
		select {
		case <-done:
			finished = true
		case <-time.After(5 * time.Millisecond):
			fc.Increment(killPassInterval)
		case <-timeout:
			t.Fatal("killGroup did not return")
		}
	}
	cmd.Wait()

	if pids, err := groupMembers(pgid); err != nil {
		t.Fatal(err)
	} else if len(pids) != 0 {
		t.Errorf("Processes %v survived killGroup", pids)
	}
}
