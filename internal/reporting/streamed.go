// Copyright 2021 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package reporting

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"go.chromium.org/gfxconform/errors"
	"go.chromium.org/gfxconform/internal/testing"
)

const (
	// StreamedResultsFilename is the file receiving one JSON record per line
	// as tests start and finish.
	StreamedResultsFilename = "streamed_results.jsonl"
	// ResultsFilename is the file receiving the final results of a run.
	ResultsFilename = "results.json"
)

// Backend receives results of a run. Implementations must be safe for
// concurrent use.
type Backend interface {
	// Start records that the test name started.
	Start(name string, ts time.Time) error
	// Commit records the final result of a test.
	Commit(res *testing.Result) error
}

// WriteTest runs body between Start and Commit of the test name. The result
// is committed even if body panics; the panic is then propagated.
func WriteTest(b Backend, name string, ts time.Time, body func(res *testing.Result)) (err error) {
	if err := b.Start(name, ts); err != nil {
		return err
	}
	res := testing.NewResult(name)
	res.Status = testing.StatusIncomplete
	defer func() {
		if cerr := b.Commit(res); cerr != nil && err == nil {
			err = cerr
		}
	}()
	body(res)
	return nil
}

// StreamedWriter writes records to streamed_results.jsonl in a results
// directory. A test may have several records; the last one is its result.
type StreamedWriter struct {
	dir  string
	sync bool

	mu  sync.Mutex
	f   *os.File
	enc *json.Encoder
}

// NewStreamedWriter creates dir if needed and opens the streamed results
// file within it. If the file already exists, records are appended. If sync
// is true, every record is flushed to disk before the write returns.
func NewStreamedWriter(dir string, sync bool) (*StreamedWriter, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.Wrap(err, "failed to create results directory")
	}
	f, err := os.OpenFile(filepath.Join(dir, StreamedResultsFilename), os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open streamed results")
	}
	return &StreamedWriter{dir: dir, sync: sync, f: f, enc: json.NewEncoder(f)}, nil
}

// Dir returns the results directory.
func (w *StreamedWriter) Dir() string { return w.dir }

func (w *StreamedWriter) write(res *testing.Result) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.enc.Encode(res); err != nil {
		return errors.Wrapf(err, "failed to write result of %s", res.Name)
	}
	if w.sync {
		if err := w.f.Sync(); err != nil {
			return errors.Wrap(err, "failed to sync streamed results")
		}
	}
	return nil
}

// Start implements Backend. It writes an incomplete record, which stays the
// test's result if the run dies before the test finishes.
func (w *StreamedWriter) Start(name string, ts time.Time) error {
	res := testing.NewResult(name)
	res.Status = testing.StatusIncomplete
	res.Start = ts
	return w.write(res)
}

// Commit implements Backend.
func (w *StreamedWriter) Commit(res *testing.Result) error {
	if err := res.Validate(); err != nil {
		return err
	}
	return w.write(res)
}

// Close closes the underlying file.
func (w *StreamedWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.f.Close()
}

// ReadStreamed reads a streamed results file and returns the last record of
// each test, in the order tests first appeared.
func ReadStreamed(path string) ([]*testing.Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var order []string
	last := make(map[string]*testing.Result)
	dec := json.NewDecoder(bufio.NewReader(f))
	for dec.More() {
		var res testing.Result
		if err := dec.Decode(&res); err != nil {
			return nil, errors.Wrapf(err, "failed to parse %s", path)
		}
		if _, ok := last[res.Name]; !ok {
			order = append(order, res.Name)
		}
		last[res.Name] = &res
	}
	results := make([]*testing.Result, len(order))
	for i, n := range order {
		results[i] = last[n]
	}
	return results, nil
}

// Results is the content of results.json.
type Results struct {
	Name    string                     `json:"name"`
	Options map[string]interface{}     `json:"options,omitempty"`
	Start   time.Time                  `json:"start"`
	End     time.Time                  `json:"end"`
	Totals  map[string]int             `json:"totals"`
	Aborted string                     `json:"aborted,omitempty"`
	Tests   map[string]*testing.Result `json:"tests"`
}

// Finalize writes results.json from the streamed results in the results
// directory of w. Tests that never finished are reported as incomplete.
func (w *StreamedWriter) Finalize(r *Results) error {
	results, err := ReadStreamed(filepath.Join(w.dir, StreamedResultsFilename))
	if err != nil {
		return errors.Wrap(err, "failed to read streamed results")
	}
	sum := NewSummary()
	r.Tests = make(map[string]*testing.Result, len(results))
	for _, res := range results {
		r.Tests[res.Name] = res
		sum.Add(res.Status)
	}
	r.Totals = sum.Totals()

	b, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(w.dir, ResultsFilename), append(b, '\n'), 0644)
}

// SortedNames returns the test names of r in lexical order.
func (r *Results) SortedNames() []string {
	names := maps.Keys(r.Tests)
	slices.Sort(names)
	return names
}
