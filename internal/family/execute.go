// Copyright 2021 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package family

import (
	"context"
	"fmt"
	"os"

	"go.chromium.org/gfxconform/internal/logging"
	"go.chromium.org/gfxconform/internal/testexec"
	"go.chromium.org/gfxconform/internal/testing"
)

// MaxAttempts bounds how many times a test is run when its family asks for a retry.
const MaxAttempts = 5

// Execute runs t and interprets its output into res.
//
// profileEnv is layered onto the ambient environment, and t.Env onto both.
// A missing executable results in StatusSkip. An error is returned only if
// the test could not be supervised; res is then left for the caller to mark.
func Execute(ctx context.Context, r *testexec.Runner, name string, t *testing.Test, profileEnv map[string]string, res *testing.Result) error {
	argv := t.Family.Command(t)
	res.Command = argv
	res.Environment = testexec.OverlayEnv(profileEnv, t.Env)
	cmd := &testexec.Command{
		Argv:    argv,
		Dir:     t.Dir,
		Env:     testexec.MergeEnv(os.Environ(), profileEnv, t.Env),
		Timeout: t.Timeout,
	}

	var out *testexec.Output
	exhausted := false
	for attempt := 1; ; attempt++ {
		o, err := r.Run(ctx, cmd)
		if err != nil {
			return err
		}
		if attempt == 1 {
			res.Start = o.Start
		}
		out = o
		res.End = o.End
		if out.NotFound {
			res.Status = testing.StatusSkip
			res.Stdout = fmt.Sprintf("Test executable %s not found", argv[0])
			return nil
		}
		if !t.Family.Retry(out) {
			break
		}
		if attempt == MaxAttempts {
			exhausted = true
			break
		}
		logging.Infof(ctx, "Rerunning %s (attempt %d of %d)", name, attempt+1, MaxAttempts)
	}

	res.PID = out.PID
	res.SetReturnCode(out.ExitCode)
	t.Family.Interpret(t, out, res)

	if out.TimedOut() {
		res.Status = testing.StatusTimeout
	} else if exhausted {
		res.Status = testing.StatusFail
		res.Stderr += fmt.Sprintf("\nGave up after %d attempts\n", MaxAttempts)
	}

	for f := t.Family; f != nil; {
		if c, ok := f.(artifactCollector); ok {
			c.collectArtifacts(ctx, name, t, res)
			break
		}
		u, ok := f.(unwrapper)
		if !ok {
			break
		}
		f = u.Unwrap()
	}
	return nil
}
