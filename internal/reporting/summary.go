// Copyright 2021 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package reporting writes results and progress of a run.
package reporting

import (
	"fmt"
	"strings"
	"sync"

	"go.chromium.org/gfxconform/internal/testing"
)

// Summary counts results per status. It is safe for concurrent use.
type Summary struct {
	mu     sync.Mutex
	counts map[testing.Status]int
	total  int
}

// NewSummary returns an empty Summary.
func NewSummary() *Summary {
	return &Summary{counts: make(map[testing.Status]int)}
}

// Add counts a result with status st.
func (s *Summary) Add(st testing.Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counts[st]++
	s.total++
}

// Count returns the number of results with status st.
func (s *Summary) Count(st testing.Status) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts[st]
}

// Total returns the number of results counted.
func (s *Summary) Total() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total
}

// Totals returns the counts of all statuses, including zero counts.
func (s *Summary) Totals() map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := make(map[string]int, len(testing.Statuses))
	for _, st := range testing.Statuses {
		m[string(st)] = s.counts[st]
	}
	return m
}

// String lists non-zero counts in status order, e.g. "pass: 3, fail: 1".
func (s *Summary) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var parts []string
	for _, st := range testing.Statuses {
		if n := s.counts[st]; n > 0 {
			parts = append(parts, fmt.Sprintf("%s: %d", st, n))
		}
	}
	return strings.Join(parts, ", ")
}
