// Copyright 2021 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package family

import (
	gotesting "testing"

	"go.chromium.org/gfxconform/internal/testexec"
	"go.chromium.org/gfxconform/internal/testing"
)

func TestFreeFormInterpret(t *gotesting.T) {
	for _, tc := range []struct {
		name   string
		stdout string
		code   int
		want   testing.Status
	}{
		{"pass", "result: PASS\n", 0, testing.StatusPass},
		{"fail wins", "PASS\nFAIL\n", 0, testing.StatusFail},
		{"silent success", "", 0, testing.StatusPass},
		{"silent failure", "", 1, testing.StatusFail},
		{"pass despite exit", "PASS\n", 1, testing.StatusPass},
		{"signal", "PASS\n", -6, testing.StatusCrash},
	} {
		res := interpret(FreeForm{}, &testing.Test{Argv: []string{"t"}}, &testexec.Output{Stdout: tc.stdout, ExitCode: tc.code})
		if res.Status != tc.want {
			t.Errorf("%s: Status = %v; want %v", tc.name, res.Status, tc.want)
		}
	}
}
