// Copyright 2021 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package reporting

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"golang.org/x/term"

	"go.chromium.org/gfxconform/internal/testing"
)

// BinDirPlaceholder replaces the binary directory in command lines shown in
// the progress log.
const BinDirPlaceholder = "<bindir>"

// Progress displays the progress of a run. On a terminal a single status
// line is redrawn in place; otherwise a line is printed per finished test.
// It is safe for concurrent use.
type Progress struct {
	w      io.Writer
	live   bool
	width  int // terminal width; 0 if unknown
	total  int
	bindir string
	dryRun bool

	mu      sync.Mutex
	done    int
	sum     *Summary
	running []string
	lastLen int // length of the last live line
}

// ProgressOptions configure a Progress.
type ProgressOptions struct {
	// BinDir is replaced by BinDirPlaceholder in displayed command lines.
	BinDir string
	// DryRun marks the display as a dry run.
	DryRun bool
	// Live forces single-line display on or off. If nil, it is used when w
	// is a terminal.
	Live *bool
}

// NewProgress returns a Progress writing to w for a run of total tests.
func NewProgress(w io.Writer, total int, opts ProgressOptions) *Progress {
	p := &Progress{w: w, total: total, bindir: opts.BinDir, dryRun: opts.DryRun, sum: NewSummary()}
	if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		p.live = true
		if cols, _, err := term.GetSize(int(f.Fd())); err == nil {
			p.width = cols
		}
	}
	if opts.Live != nil {
		p.live = *opts.Live
	}
	return p
}

// Summary returns the counts of finished tests.
func (p *Progress) Summary() *Summary { return p.sum }

// statusLine returns e.g. "3/10 [pass: 2, fail: 1] Running: a, b".
// p.mu must be held.
func (p *Progress) statusLine() string {
	var sb strings.Builder
	if p.dryRun {
		sb.WriteString("dry-run ")
	}
	fmt.Fprintf(&sb, "%d/%d [%s]", p.done, p.total, p.sum.String())
	if len(p.running) > 0 {
		fmt.Fprintf(&sb, " Running: %s", strings.Join(p.running, ", "))
	}
	return sb.String()
}

// redraw rewrites the live status line. p.mu must be held.
func (p *Progress) redraw() {
	s := p.statusLine()
	if p.width > 0 && len(s) >= p.width {
		s = s[:p.width-1]
	}
	pad := ""
	if n := p.lastLen - len(s); n > 0 {
		pad = strings.Repeat(" ", n)
	}
	fmt.Fprintf(p.w, "\r%s%s", s, pad)
	p.lastLen = len(s)
}

// SetTotal sets the number of tests in the run.
func (p *Progress) SetTotal(total int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.total = total
}

// Start records that the test name started.
func (p *Progress) Start(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.running = append(p.running, name)
	if p.live {
		p.redraw()
	}
}

// Finish records the result of a test started with Start.
func (p *Progress) Finish(res *testing.Result) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, n := range p.running {
		if n == res.Name {
			p.running = append(p.running[:i:i], p.running[i+1:]...)
			break
		}
	}
	p.done++
	p.sum.Add(res.Status)

	if p.live {
		p.redraw()
		return
	}
	line := fmt.Sprintf("%s: %s", res.Status, res.Name)
	if p.dryRun {
		line = "dry-run: " + res.Name
	} else if res.Status != testing.StatusPass && len(res.Command) > 0 {
		line += " (" + p.Sanitize(res.CommandLine()) + ")"
	}
	fmt.Fprintf(p.w, "%s\n%s\n", line, p.statusLine())
}

// Sanitize replaces the binary directory in s with BinDirPlaceholder.
func (p *Progress) Sanitize(s string) string {
	if p.bindir == "" {
		return s
	}
	return strings.ReplaceAll(s, p.bindir, BinDirPlaceholder)
}

// Close ends the live status line.
func (p *Progress) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.live && p.lastLen > 0 {
		fmt.Fprintln(p.w)
		p.lastLen = 0
	}
}
