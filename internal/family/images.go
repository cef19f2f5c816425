// Copyright 2021 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package family

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"go.chromium.org/gfxconform/errors"
	"go.chromium.org/gfxconform/fsutil"
	"go.chromium.org/gfxconform/internal/logging"
	"go.chromium.org/gfxconform/internal/testing"
)

// ImageDir is the directory under the results directory holding images.
const ImageDir = "images"

// errFileRE finds references to image dumps in test output.
var errFileRE = regexp.MustCompile(`See file (\S+\.err)`)

// unsafeNameRE matches characters not allowed in image file names.
var unsafeNameRE = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// artifactCollector is implemented by families producing artifacts beyond
// the captured output.
type artifactCollector interface {
	collectArtifacts(ctx context.Context, name string, t *testing.Test, res *testing.Result)
}

// ImageCollector converts image dumps referenced in a test's stderr to PNGs.
type ImageCollector struct {
	// Converter is run as "Converter <dump> <prefix>" and writes <prefix>*.png.
	Converter string
	// ResultsDir is the results directory; images go to its ImageDir subdirectory.
	ResultsDir string
}

type images struct {
	testing.Family
	c *ImageCollector
}

// WithImages returns f decorated to attach images referenced by its tests.
func WithImages(f testing.Family, c *ImageCollector) testing.Family {
	return &images{Family: f, c: c}
}

func (i *images) Unwrap() testing.Family { return i.Family }

func (i *images) collectArtifacts(ctx context.Context, name string, t *testing.Test, res *testing.Result) {
	i.c.Collect(ctx, name, t.Dir, res)
}

// Collect converts dumps referenced in res.Stderr and attaches the images to
// res. dir is the directory relative dump paths are resolved against.
// Conversion failures are noted in res.Stderr and never change the status.
func (c *ImageCollector) Collect(ctx context.Context, name, dir string, res *testing.Result) {
	ms := errFileRE.FindAllStringSubmatch(res.Stderr, -1)
	if len(ms) == 0 {
		return
	}
	outDir := filepath.Join(c.ResultsDir, ImageDir)
	if err := os.MkdirAll(outDir, 0755); err != nil {
		res.Stderr += fmt.Sprintf("\nFailed to create image directory: %v\n", err)
		return
	}

	base := strings.Trim(unsafeNameRE.ReplaceAllString(name, "_"), "_")
	for n, m := range ms {
		dump := m[1]
		if !filepath.IsAbs(dump) && dir != "" {
			dump = filepath.Join(dir, dump)
		}
		imgs, err := c.convert(ctx, dump, outDir, fmt.Sprintf("%s-%d", base, n))
		if err != nil {
			logging.Debugf(ctx, "Failed to convert %s: %v", dump, err)
			res.Stderr += fmt.Sprintf("\nFailed to convert %s to images: %v\n", m[1], err)
			continue
		}
		res.Images = append(res.Images, imgs...)
	}
}

// convert runs the converter on dump and moves the resulting PNGs into outDir
// with names starting with prefix.
func (c *ImageCollector) convert(ctx context.Context, dump, outDir, prefix string) ([]testing.Image, error) {
	tmp, err := os.MkdirTemp("", "gfxconform_images_")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(tmp)

	cmd := exec.CommandContext(ctx, c.Converter, dump, filepath.Join(tmp, "image"))
	if b, err := cmd.CombinedOutput(); err != nil {
		return nil, errors.Wrapf(err, "%s: %s", c.Converter, strings.TrimSpace(string(b)))
	}

	pngs, err := filepath.Glob(filepath.Join(tmp, "image*.png"))
	if err != nil {
		return nil, err
	}
	if len(pngs) == 0 {
		return nil, errors.Errorf("%s produced no images", c.Converter)
	}
	sort.Strings(pngs)

	var imgs []testing.Image
	for _, p := range pngs {
		desc := strings.Trim(strings.TrimSuffix(strings.TrimPrefix(filepath.Base(p), "image"), ".png"), "-_")
		fn := prefix + strings.TrimPrefix(filepath.Base(p), "image")
		if err := fsutil.MoveFile(p, filepath.Join(outDir, fn)); err != nil {
			return nil, err
		}
		imgs = append(imgs, testing.Image{Path: filepath.Join(ImageDir, fn), Description: desc})
	}
	return imgs, nil
}
