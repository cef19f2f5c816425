// Copyright 2021 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package testing

import (
	"bytes"
	"encoding/json"
)

// Subtests is an insertion-ordered map from subtest name to status.
// The zero value is an empty map ready to use.
type Subtests struct {
	names    []string
	statuses map[string]Status
}

// Set records st for name. An existing status is not replaced by
// StatusNotRun, so announcing subtests after they reported does not lose
// their outcome.
func (s *Subtests) Set(name string, st Status) {
	if s.statuses == nil {
		s.statuses = make(map[string]Status)
	}
	if _, ok := s.statuses[name]; ok {
		if st == StatusNotRun {
			return
		}
	} else {
		s.names = append(s.names, name)
	}
	s.statuses[name] = st
}

// Get returns the status of name.
func (s *Subtests) Get(name string) (Status, bool) {
	st, ok := s.statuses[name]
	return st, ok
}

// Len returns the number of subtests.
func (s *Subtests) Len() int { return len(s.names) }

// Names returns subtest names in insertion order.
func (s *Subtests) Names() []string { return append([]string(nil), s.names...) }

// Map returns a copy of s as a plain map.
func (s *Subtests) Map() map[string]Status {
	m := make(map[string]Status, len(s.names))
	for _, n := range s.names {
		m[n] = s.statuses[n]
	}
	return m
}

// Replace overwrites the status of every subtest whose status is from with to.
func (s *Subtests) Replace(from, to Status) {
	for _, n := range s.names {
		if s.statuses[n] == from {
			s.statuses[n] = to
		}
	}
}

// Clone returns a deep copy of s.
func (s *Subtests) Clone() Subtests {
	var c Subtests
	for _, n := range s.names {
		c.Set(n, s.statuses[n])
	}
	return c
}

// MarshalJSON encodes s as a JSON object preserving insertion order.
func (s Subtests) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, n := range s.names {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(n)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		v, err := json.Marshal(s.statuses[n])
		if err != nil {
			return nil, err
		}
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object preserving key order.
func (s *Subtests) UnmarshalJSON(b []byte) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	if _, err := dec.Token(); err != nil { // {
		return err
	}
	*s = Subtests{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		name, _ := tok.(string)
		var st Status
		if err := dec.Decode(&st); err != nil {
			return err
		}
		s.Set(name, st)
	}
	_, err := dec.Token() // }
	return err
}
