// Copyright 2019 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package testexec

import (
	"time"

	"code.cloudfoundry.org/clock"
	"github.com/shirou/gopsutil/v3/process"
	"golang.org/x/exp/slices"
	"golang.org/x/sys/unix"
)

// groupMembers returns live (non-zombie) processes in process group pgid.
func groupMembers(pgid int) ([]int, error) {
	procs, err := process.Processes()
	if err != nil {
		return nil, err
	}
	var pids []int
	for _, p := range procs {
		pid := int(p.Pid)
		if g, err := unix.Getpgid(pid); err != nil || g != pgid {
			continue
		}
		// Orphaned zombies may linger until init reaps them; they hold no resources.
		if st, err := p.Status(); err == nil && slices.Contains(st, process.Zombie) {
			continue
		}
		pids = append(pids, pid)
	}
	return pids, nil
}

// killPassInterval is the time given to signaled processes to exit before
// the group is scanned again.
const killPassInterval = 10 * time.Millisecond

// killGroup makes a best-effort attempt to kill all processes in process
// group pgid, including descendants that outlived the group leader. It
// returns once no live member remains or the attempts are exhausted.
func killGroup(clk clock.Clock, pgid int, sig unix.Signal) {
	const maxPasses = 10
	unix.Kill(-pgid, sig)
	for i := 0; i < maxPasses; i++ {
		pids, err := groupMembers(pgid)
		if err != nil || len(pids) == 0 {
			return
		}
		for _, pid := range pids {
			unix.Kill(pid, sig)
		}
		clk.Sleep(killPassInterval)
	}
}
