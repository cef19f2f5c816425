// Copyright 2021 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package testing

import "fmt"

// Status is the normalized outcome of a test or subtest.
type Status string

// Valid Status values.
const (
	StatusPass       Status = "pass"
	StatusFail       Status = "fail"
	StatusWarn       Status = "warn"
	StatusSkip       Status = "skip"
	StatusCrash      Status = "crash"
	StatusTimeout    Status = "timeout"
	StatusNotRun     Status = "notrun"
	StatusIncomplete Status = "incomplete"
)

// Statuses lists all valid statuses in report order.
var Statuses = []Status{
	StatusPass, StatusFail, StatusWarn, StatusSkip, StatusCrash, StatusTimeout, StatusNotRun, StatusIncomplete,
}

// severity orders statuses from least to most severe for Worst.
var severity = map[Status]int{
	StatusNotRun:     0,
	StatusSkip:       1,
	StatusPass:       2,
	StatusWarn:       3,
	StatusFail:       4,
	StatusTimeout:    5,
	StatusCrash:      6,
	StatusIncomplete: 7,
}

// Valid reports whether s is one of the enumerated statuses.
func (s Status) Valid() bool {
	_, ok := severity[s]
	return ok
}

// ParseStatus converts s to a Status.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if !st.Valid() {
		return "", fmt.Errorf("unknown status %q", s)
	}
	return st, nil
}

// Worst returns the more severe of a and b.
func Worst(a, b Status) Status {
	if severity[b] > severity[a] {
		return b
	}
	return a
}
