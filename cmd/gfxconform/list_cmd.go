// Copyright 2021 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"

	"github.com/google/subcommands"

	"go.chromium.org/gfxconform/internal/command"
	"go.chromium.org/gfxconform/internal/logging"
	"go.chromium.org/gfxconform/internal/profile"
)

// listCmd implements subcommands.Command to support listing tests.
type listCmd struct {
	lf     *loadFlags
	json   bool      // marshal tests to JSON instead of just printing names
	stdout io.Writer // where to write tests
	stderr io.Writer // where fatal errors are written
}

var _ = subcommands.Command(&listCmd{})

// newListCmd returns a new listCmd that will write tests to stdout.
func newListCmd(stdout, stderr io.Writer) *listCmd {
	return &listCmd{lf: newLoadFlags(), stdout: stdout, stderr: stderr}
}

func (*listCmd) Name() string     { return "list" }
func (*listCmd) Synopsis() string { return "list tests" }
func (*listCmd) Usage() string {
	return `Usage: list [flag]... <profile>...

Description:
    Lists the tests the run subcommand would run for the profiles, after
    filters are applied, in the order they would be dispatched.

Flag:
`
}

func (lc *listCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&lc.json, "json", false, "print full test details as JSON")
	lc.lf.SetFlags(f)
}

// listedTest is the JSON representation of a test printed by listCmd.
type listedTest struct {
	Name       string   `json:"name"`
	Profile    string   `json:"profile"`
	Family     string   `json:"family,omitempty"`
	Command    []string `json:"command"`
	Concurrent bool     `json:"concurrent"`
	Timeout    string   `json:"timeout,omitempty"`
	Status     string   `json:"status,omitempty"`
}

func (lc *listCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if len(f.Args()) == 0 {
		logging.Info(ctx, "Missing profile.\n\n"+lc.Usage())
		return subcommands.ExitUsageError
	}
	tests, err := lc.list(ctx, f.Args())
	if err != nil {
		return subcommands.ExitStatus(command.WriteError(lc.stderr, err))
	}
	if err := lc.printTests(tests); err != nil {
		logging.Info(ctx, "Failed to write tests: ", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

// list loads the named profiles and returns their tests.
func (lc *listCmd) list(ctx context.Context, names []string) ([]*listedTest, error) {
	ld, err := lc.lf.load(ctx, names, "")
	if err != nil {
		return nil, err
	}
	var tests []*listedTest
	for _, p := range ld.profiles {
		if err := p.Each(func(e *profile.Entry) bool {
			lt := &listedTest{
				Name:       e.Name,
				Profile:    p.Name,
				Command:    e.Test.Argv,
				Concurrent: e.Test.Concurrent,
				Status:     string(e.Test.ForceStatus),
			}
			if e.Test.Family != nil {
				lt.Family = e.Test.Family.Name()
				lt.Command = e.Test.Family.Command(e.Test)
			}
			if e.Test.Timeout > 0 {
				lt.Timeout = e.Test.Timeout.String()
			}
			tests = append(tests, lt)
			return true
		}); err != nil {
			return nil, err
		}
	}
	return tests, nil
}

// printTests writes the supplied tests to lc.stdout.
func (lc *listCmd) printTests(tests []*listedTest) error {
	if lc.json {
		enc := json.NewEncoder(lc.stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(tests)
	}

	// If -json wasn't passed, just print test names, one per line.
	for _, t := range tests {
		if _, err := fmt.Fprintln(lc.stdout, t.Name); err != nil {
			return err
		}
	}
	return nil
}
