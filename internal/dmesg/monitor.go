// Copyright 2021 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package dmesg

import (
	"context"
	"regexp"
	"strings"
	"sync"

	"go.chromium.org/gfxconform/errors"
	"go.chromium.org/gfxconform/internal/logging"
	"go.chromium.org/gfxconform/internal/testing"
)

// Monitor annotates results with kernel messages logged while tests ran.
type Monitor struct {
	s      *Sampler
	filter *regexp.Regexp // lines elevating results; nil disables annotation
	abort  *regexp.Regexp // lines aborting the run; nil disables aborting

	warnOnce sync.Once

	mu     sync.Mutex
	reason string // first line matching abort
}

// NewMonitor returns a Monitor reading the log through s.
// filter selects lines that elevate a result; nil disables annotation.
// abort selects lines that abort the run; nil disables aborting.
func NewMonitor(s *Sampler, filter, abort *regexp.Regexp) *Monitor {
	return &Monitor{s: s, filter: filter, abort: abort}
}

// CompileMonitor returns a Monitor reading the log with read. An empty
// pattern disables the corresponding behavior.
func CompileMonitor(read Reader, filterPattern, abortPattern string) (*Monitor, error) {
	var filter, abort *regexp.Regexp
	var err error
	if filterPattern != "" {
		if filter, err = regexp.Compile(filterPattern); err != nil {
			return nil, errors.ConfigErrorf("bad dmesg filter %q: %v", filterPattern, err)
		}
	}
	if abortPattern != "" {
		if abort, err = regexp.Compile(abortPattern); err != nil {
			return nil, errors.ConfigErrorf("bad abort pattern %q: %v", abortPattern, err)
		}
	}
	return NewMonitor(NewSampler(read), filter, abort), nil
}

// Begin marks the log before a test starts. Failures to read the log are
// logged once and yield an invalid mark, which End ignores.
func (m *Monitor) Begin(ctx context.Context) Mark {
	mk, err := m.s.Mark(ctx)
	if err != nil {
		m.warnOnce.Do(func() {
			logging.Warningf(ctx, "Failed to read kernel log; results will not be annotated: %v", err)
		})
		return Mark{}
	}
	return mk
}

// End inspects lines logged since mk and updates res. It records an abort
// reason if a line matches the abort pattern.
func (m *Monitor) End(ctx context.Context, mk Mark, res *testing.Result) {
	if !mk.Valid() {
		return
	}
	lines, err := m.s.Since(ctx, mk)
	if err != nil {
		logging.Debugf(ctx, "Failed to read kernel log: %v", err)
		return
	}
	if len(lines) == 0 {
		return
	}

	if m.filter != nil {
		var matched []string
		for _, l := range lines {
			if m.filter.MatchString(l) {
				matched = append(matched, l)
			}
		}
		if len(matched) > 0 {
			res.Dmesg = strings.Join(matched, "\n")
			res.Status = Elevate(res.Status)
			for _, name := range res.Subtests.Names() {
				st, _ := res.Subtests.Get(name)
				res.Subtests.Set(name, Elevate(st))
			}
		}
	}

	if m.abort != nil {
		for _, l := range lines {
			if m.abort.MatchString(l) {
				m.raise(l)
				break
			}
		}
	}
}

func (m *Monitor) raise(line string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.reason == "" {
		m.reason = line
	}
}

// Aborted returns the kernel log line that aborted the run, if any.
func (m *Monitor) Aborted() (reason string, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reason, m.reason != ""
}

// Elevate returns the status a result takes when the kernel logged
// suspicious messages while it ran.
func Elevate(s testing.Status) testing.Status {
	switch s {
	case testing.StatusPass:
		return testing.StatusWarn
	case testing.StatusWarn, testing.StatusFail:
		return testing.StatusFail
	default:
		return s
	}
}
