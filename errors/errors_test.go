// Copyright 2018 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package errors

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"testing"
)

func check(t *testing.T, err error, msg string, traceRegexp *regexp.Regexp) {
	t.Helper()
	if s := err.Error(); s != msg {
		t.Errorf("Wrong error message %q; want %q", s, msg)
	}
	if s := fmt.Sprintf("%v", err); s != msg {
		t.Errorf("Wrong default value %q; want %q", s, msg)
	}
	if tr := fmt.Sprintf("%+v", err); !traceRegexp.MatchString(tr) {
		t.Errorf("Wrong trace %q; should match %q", tr, traceRegexp)
	}
}

func TestNew(t *testing.T) {
	const msg = "meow"
	traceRegexp := regexp.MustCompile(`^meow
	at go\.chromium\.org/gfxconform/errors\.TestNew \(errors_test.go:\d+\)`)

	err := New(msg)

	check(t, err, msg, traceRegexp)
}

func TestErrorf(t *testing.T) {
	const msg = "meow"
	traceRegexp := regexp.MustCompile(`^meow
	at go\.chromium\.org/gfxconform/errors\.TestErrorf \(errors_test.go:\d+\)`)

	err := Errorf("%sow", "me")

	check(t, err, msg, traceRegexp)
}

func TestWrap(t *testing.T) {
	const msg = "meow: woof"
	traceRegexp := regexp.MustCompile(`(?s)^meow
	at go\.chromium\.org/gfxconform/errors\.TestWrap \(errors_test.go:\d+\)
.*
woof
	at go\.chromium\.org/gfxconform/errors\.TestWrap \(errors_test.go:\d+\)`)

	err := Wrap(New("woof"), "meow")

	check(t, err, msg, traceRegexp)
}

func TestWrapForeignError(t *testing.T) {
	const msg = "meow: woof"
	traceRegexp := regexp.MustCompile(`(?s)^meow
	at go\.chromium\.org/gfxconform/errors\.TestWrapForeignError \(errors_test.go:\d+\)
.*
woof
	at \?\?\?$`)

	// Use standard errors package to create an error without trace.
	err := Wrap(errors.New("woof"), "meow")

	check(t, err, msg, traceRegexp)
}

func TestWrapf(t *testing.T) {
	const msg = "meow: woof"
	traceRegexp := regexp.MustCompile(`(?s)^meow
	at go\.chromium\.org/gfxconform/errors\.TestWrapf \(errors_test.go:\d+\)
.*
woof
	at go\.chromium\.org/gfxconform/errors\.TestWrapf \(errors_test.go:\d+\)`)

	err := Wrapf(New("woof"), "%sow", "me")

	check(t, err, msg, traceRegexp)
}

func TestUnwrap(t *testing.T) {
	err := Wrapf(os.ErrNotExist, "failed to open %s", "foo")
	if !Is(err, os.ErrNotExist) {
		t.Errorf("Is(%v, os.ErrNotExist) = false; want true", err)
	}
	var pe *os.PathError
	if As(err, &pe) {
		t.Errorf("As(%v, *os.PathError) = true; want false", err)
	}
}

func TestKindOf(t *testing.T) {
	for _, tc := range []struct {
		name string
		err  error
		want Kind
		code int
	}{
		{"nil", nil, KindNone, 1},
		{"plain", New("foo"), KindNone, 1},
		{"config", ConfigErrorf("duplicate %q", "a"), KindConfig, 2},
		{"user", UserErrorf("no tests"), KindUser, 3},
		{"abort", AbortErrorf("gpu hang"), KindAbort, 4},
		{"wrapped config", Wrap(ConfigErrorf("bad"), "loading profile"), KindConfig, 2},
		{"with kind", WithKind(errors.New("foreign"), KindUser), KindUser, 3},
		{"outermost wins", WithKind(ConfigErrorf("bad"), KindAbort), KindAbort, 4},
	} {
		t.Run(tc.name, func(t *testing.T) {
			if got := KindOf(tc.err); got != tc.want {
				t.Errorf("KindOf(%v) = %v; want %v", tc.err, got, tc.want)
			}
			if got := KindOf(tc.err).ExitCode(); got != tc.code {
				t.Errorf("ExitCode = %d; want %d", got, tc.code)
			}
		})
	}
}

func TestWithKindNil(t *testing.T) {
	if err := WithKind(nil, KindConfig); err != nil {
		t.Errorf("WithKind(nil) = %v; want nil", err)
	}
}

func TestOrigin(t *testing.T) {
	err := Wrap(New("inner"), "outer")
	f, ok := Origin(err)
	if !ok {
		t.Fatal("Origin returned no frame")
	}
	if f.File != "errors_test.go" {
		t.Errorf("Origin file = %q; want errors_test.go", f.File)
	}
	if _, ok := Origin(errors.New("foreign")); ok {
		t.Error("Origin of a foreign error returned a frame")
	}
}

func TestRoot(t *testing.T) {
	if err := Root(Wrap(Wrap(os.ErrNotExist, "a"), "b")); err != os.ErrNotExist {
		t.Errorf("Root = %v; want %v", err, os.ErrNotExist)
	}
	if err := Root(nil); err != nil {
		t.Errorf("Root(nil) = %v; want nil", err)
	}
}
