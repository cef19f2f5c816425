// Copyright 2021 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package dmesg watches the kernel log while tests run.
//
// A Monitor takes a Mark before a test starts and inspects the lines logged
// since then once the test has finished. New lines matching its filter
// elevate the test's result, and lines matching its abort pattern stop the
// run.
package dmesg

import (
	"context"
	"os/exec"
	"strings"

	"go.chromium.org/gfxconform/errors"
)

// DefaultArgv is the command used to read the kernel log.
var DefaultArgv = []string{"dmesg", "--level", "emerg,alert,crit,err,warn,notice", "--time-format", "iso"}

// Reader returns all lines currently in the kernel log.
type Reader func(ctx context.Context) ([]string, error)

// CommandReader returns a Reader running argv and splitting its output into lines.
func CommandReader(argv ...string) Reader {
	return func(ctx context.Context) ([]string, error) {
		cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
		b, err := cmd.Output()
		if err != nil {
			var stderr string
			if ee, ok := err.(*exec.ExitError); ok {
				stderr = strings.TrimSpace(string(ee.Stderr))
			}
			return nil, errors.Wrapf(err, "%s failed: %s", argv[0], stderr)
		}
		return splitLines(string(b)), nil
	}
}

func splitLines(s string) []string {
	s = strings.TrimRight(s, "\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

// Mark records the state of the kernel log at a point in time.
type Mark struct {
	valid bool
	n     int    // number of lines
	last  string // last line
}

// Valid reports whether the mark was taken successfully.
func (m Mark) Valid() bool { return m.valid }

// Sampler takes marks and diffs the kernel log against them.
type Sampler struct {
	read Reader
}

// NewSampler returns a Sampler reading the log with read.
func NewSampler(read Reader) *Sampler {
	return &Sampler{read: read}
}

// Mark returns a Mark for the current end of the log.
func (s *Sampler) Mark(ctx context.Context) (Mark, error) {
	lines, err := s.read(ctx)
	if err != nil {
		return Mark{}, err
	}
	m := Mark{valid: true, n: len(lines)}
	if len(lines) > 0 {
		m.last = lines[len(lines)-1]
	}
	return m, nil
}

// Since returns lines logged after m was taken.
//
// The kernel log is a ring buffer, so old lines may have been dropped since
// m was taken. In that case the line m ended at is searched for, and if it
// is gone every line is considered new.
func (s *Sampler) Since(ctx context.Context, m Mark) ([]string, error) {
	if !m.valid {
		return nil, errors.New("invalid mark")
	}
	lines, err := s.read(ctx)
	if err != nil {
		return nil, err
	}
	if m.n == 0 {
		return lines, nil
	}
	if m.n <= len(lines) && lines[m.n-1] == m.last {
		return lines[m.n:], nil
	}
	for i := len(lines) - 1; i >= 0; i-- {
		if lines[i] == m.last {
			return lines[i+1:], nil
		}
	}
	return lines, nil
}
