// Copyright 2018 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package fsutil implements file operations used to collect test artifacts.
package fsutil

import (
	"io"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"

	"go.chromium.org/gfxconform/errors"
)

// CopyFile copies the regular file src to dst, which inherits src's mode.
// dst is replaced atomically if it exists, so readers never see a partial
// artifact.
func CopyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return errors.Wrap(err, "failed to open source")
	}
	defer in.Close()

	fi, err := in.Stat()
	if err != nil {
		return errors.Wrap(err, "failed to stat source")
	}
	if !fi.Mode().IsRegular() {
		return errors.Errorf("%s is not a regular file (mode %s)", src, fi.Mode())
	}

	out, err := os.CreateTemp(filepath.Dir(dst), "."+filepath.Base(dst)+".")
	if err != nil {
		return errors.Wrap(err, "failed to create temporary file")
	}
	tmp := out.Name()
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(tmp)
		return errors.Wrap(err, "failed to copy data")
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return errors.Wrap(err, "failed to close temporary file")
	}
	if err := os.Chmod(tmp, fi.Mode().Perm()); err != nil {
		os.Remove(tmp)
		return errors.Wrap(err, "failed to set mode")
	}
	if err := os.Rename(tmp, dst); err != nil {
		os.Remove(tmp)
		return errors.Wrapf(err, "failed to rename to %s", dst)
	}
	return nil
}

// MoveFile moves the regular file src to dst, which may be on another file
// system.
func MoveFile(src, dst string) error {
	fi, err := os.Stat(src)
	if err != nil {
		return errors.Wrap(err, "failed to stat source")
	}
	if !fi.Mode().IsRegular() {
		return errors.Errorf("%s is not a regular file (mode %s)", src, fi.Mode())
	}

	err = os.Rename(src, dst)
	if err == nil {
		return nil
	}
	var lerr *os.LinkError
	if !errors.As(err, &lerr) || lerr.Err != unix.EXDEV {
		return errors.Wrapf(err, "failed to rename %s", src)
	}

	if err := CopyFile(src, dst); err != nil {
		return err
	}
	return os.Remove(src)
}
