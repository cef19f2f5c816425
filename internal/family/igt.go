// Copyright 2021 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package family

import (
	"regexp"
	"strings"
	"time"

	"go.chromium.org/gfxconform/internal/testexec"
	"go.chromium.org/gfxconform/internal/testing"
)

// IGTTimeout is the default timeout of kernel/driver integration tests.
const IGTTimeout = 600 * time.Second

// Exit statuses with special meaning to IGT.
const (
	igtExitSkip    = 77
	igtExitTimeout = 78
	igtExitSegv    = 139
)

var igtSubtestRE = regexp.MustCompile(`^Subtest (.*): ([A-Z]+)`)

var igtSubtestStatuses = map[string]testing.Status{
	"SUCCESS": testing.StatusPass,
	"FAIL":    testing.StatusFail,
	"SKIP":    testing.StatusSkip,
	"CRASH":   testing.StatusCrash,
	"TIMEOUT": testing.StatusTimeout,
	"WARN":    testing.StatusWarn,
}

// IGT runs kernel/driver integration tests from igt-gpu-tools.
type IGT struct {
	// Timeout is given to tests that do not override it.
	Timeout time.Duration
}

// NewIGT returns an IGT family with the default timeout.
func NewIGT() *IGT { return &IGT{Timeout: IGTTimeout} }

// Name implements testing.Family.
func (*IGT) Name() string { return "igt" }

// DefaultTimeout implements testing.Family.
func (f *IGT) DefaultTimeout() time.Duration { return f.Timeout }

// Command implements testing.Family.
func (*IGT) Command(t *testing.Test) []string { return append([]string(nil), t.Argv...) }

// Interpret implements testing.Family. The exit status determines the
// overall status; "Subtest <name>: <RESULT>" lines populate subtests.
func (*IGT) Interpret(t *testing.Test, out *testexec.Output, res *testing.Result) {
	res.Stdout = out.Stdout
	res.Stderr = out.Stderr

	for _, line := range strings.Split(out.Stdout, "\n") {
		m := igtSubtestRE.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		st, ok := igtSubtestStatuses[m[2]]
		if !ok {
			st = testing.StatusFail
		}
		res.Subtests.Set(m[1], st)
	}

	switch code := out.ExitCode; {
	case code == 0:
		res.Status = testing.StatusPass
	case code == igtExitSkip:
		res.Status = testing.StatusSkip
	case code == igtExitTimeout:
		res.Status = testing.StatusTimeout
	case code == igtExitSegv || code < 0:
		res.Status = testing.StatusCrash
	default:
		res.Status = testing.StatusFail
	}
}

// Retry implements testing.Family.
func (*IGT) Retry(out *testexec.Output) bool { return false }
