// Copyright 2021 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package logging

import (
	"io"
	"strings"
	"sync"
	"time"
)

// timestampLayout is prepended to logs of SinkLoggers created with timestamps.
const timestampLayout = "2006-01-02T15:04:05.000000Z"

// SinkLogger is a Logger that formats logs and hands them to a Sink.
//
// Warnings are always labeled with their level. Other logs are labeled only
// if LabelAll was called.
type SinkLogger struct {
	min       Level
	timestamp bool
	labelAll  bool
	sink      Sink
}

// NewSinkLogger creates a new SinkLogger that drops logs below min. If
// timestamp is true, each log starts with its time in UTC.
func NewSinkLogger(min Level, timestamp bool, sink Sink) *SinkLogger {
	return &SinkLogger{min: min, timestamp: timestamp, sink: sink}
}

// LabelAll makes l label logs of every level, as in "INFO: msg". It returns l.
func (l *SinkLogger) LabelAll() *SinkLogger {
	l.labelAll = true
	return l
}

// Log sends a log to the associated sink.
func (l *SinkLogger) Log(level Level, ts time.Time, msg string) {
	if level < l.min {
		return
	}
	var sb strings.Builder
	if l.timestamp {
		sb.WriteString(ts.UTC().Format(timestampLayout))
		sb.WriteByte(' ')
	}
	if l.labelAll || level >= LevelWarning {
		sb.WriteString(level.String())
		sb.WriteString(": ")
	}
	sb.WriteString(msg)
	l.sink.Log(sb.String())
}

// Sink represents a destination of formatted logs, e.g. a log file or the
// console.
type Sink interface {
	Log(msg string)
}

// WriterSink is a Sink writing one log per line to an io.Writer. Writes are
// synchronized, so the writer may be shared by loggers of concurrent tests.
type WriterSink struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriterSink creates a new WriterSink writing to w.
func NewWriterSink(w io.Writer) *WriterSink {
	return &WriterSink{w: w}
}

// Log writes msg to the underlying writer, terminating it with a newline
// unless it already ends with one.
func (s *WriterSink) Log(msg string) {
	if !strings.HasSuffix(msg, "\n") {
		msg += "\n"
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	io.WriteString(s.w, msg)
}
