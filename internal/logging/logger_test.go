// Copyright 2021 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package logging_test

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"go.chromium.org/gfxconform/internal/logging"
	"go.chromium.org/gfxconform/internal/logging/loggingtest"
)

func TestMultiLogger(t *testing.T) {
	logger1 := loggingtest.NewLogger(t, logging.LevelInfo)
	logger2 := loggingtest.NewLogger(t, logging.LevelInfo)

	logger := logging.NewMultiLogger(logger1)
	logger.Log(logging.LevelInfo, time.Time{}, "aaa")
	logger.AddLogger(logger2)
	logger.Log(logging.LevelInfo, time.Time{}, "bbb")
	logger.RemoveLogger(logger1)
	logger.Log(logging.LevelInfo, time.Time{}, "ccc")

	if diff := cmp.Diff(logger1.Logs(), []string{"aaa", "bbb"}); diff != "" {
		t.Errorf("Messages mismatch for logger1 (-got +want):\n%s", diff)
	}
	if diff := cmp.Diff(logger2.Logs(), []string{"bbb", "ccc"}); diff != "" {
		t.Errorf("Messages mismatch for logger2 (-got +want):\n%s", diff)
	}
}

func TestFuncLogger(t *testing.T) {
	var gotLevels []logging.Level
	var gotMsgs []string
	logger := logging.NewFuncLogger(func(level logging.Level, ts time.Time, msg string) {
		gotLevels = append(gotLevels, level)
		gotMsgs = append(gotMsgs, msg)
	})
	logger.Log(logging.LevelDebug, time.UnixMilli(1), "foo")
	logger.Log(logging.LevelWarning, time.UnixMilli(2), "bar")

	if diff := cmp.Diff(gotLevels, []logging.Level{logging.LevelDebug, logging.LevelWarning}); diff != "" {
		t.Errorf("Levels mismatch (-got +want):\n%s", diff)
	}
	if diff := cmp.Diff(gotMsgs, []string{"foo", "bar"}); diff != "" {
		t.Errorf("Messages mismatch (-got +want):\n%s", diff)
	}
}
