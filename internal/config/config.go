// Copyright 2019 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package config resolves runner options from the environment and from a YAML
// configuration file.
//
// A configuration file maps section names to key-value pairs:
//
//	core:
//	  platform: gbm
//	deqp-vk:
//	  bin: /usr/local/deqp/external/vulkancts/modules/vulkan/deqp-vk
//	  extra_args: --deqp-log-images=disable
//
// An environment variable always takes precedence over the file. The default
// variable name for (section, key) is PIGLIT_<SECTION>_<KEY>, e.g.
// PIGLIT_DEQP_VK_BIN for ("deqp-vk", "bin").
package config

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v2"

	"go.chromium.org/gfxconform/errors"
)

// FileName is the base name of the configuration file looked up by Find.
const FileName = "gfxconform.yaml"

// Config holds configuration values loaded from a file.
// A zero Config is not usable; use New, Load or Find.
type Config struct {
	sections  map[string]map[string]string
	path      string                           // file the sections were read from; empty if none
	lookupEnv func(name string) (string, bool) // typically os.LookupEnv
}

// New returns a Config holding sections. If lookupEnv is nil, the process
// environment is consulted.
func New(sections map[string]map[string]string, lookupEnv func(string) (string, bool)) *Config {
	if sections == nil {
		sections = make(map[string]map[string]string)
	}
	if lookupEnv == nil {
		lookupEnv = os.LookupEnv
	}
	return &Config{sections: sections, lookupEnv: lookupEnv}
}

// Load reads a YAML configuration file at path.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WithKind(errors.Wrap(err, "failed to read configuration file"), errors.KindConfig)
	}
	sections := make(map[string]map[string]string)
	if err := yaml.Unmarshal(b, &sections); err != nil {
		return nil, errors.WithKind(errors.Wrapf(err, "failed to parse %s", path), errors.KindConfig)
	}
	cfg := New(sections, nil)
	cfg.path = path
	return cfg, nil
}

// SearchPath returns the candidate configuration files in the order Find
// consults them. explicit is the path passed on the command line and may be
// empty.
func SearchPath(explicit string) []string {
	if explicit != "" {
		return []string{explicit}
	}
	var paths []string
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		paths = append(paths, filepath.Join(dir, FileName))
	}
	return append(paths, FileName)
}

// Find loads the first existing file in SearchPath(explicit). An explicitly
// requested file must exist. If no file is found otherwise, an empty Config
// backed by the environment is returned.
func Find(explicit string) (*Config, error) {
	if explicit != "" {
		return Load(explicit)
	}
	for _, p := range SearchPath("") {
		if _, err := os.Stat(p); err == nil {
			return Load(p)
		}
	}
	return New(nil, nil), nil
}

// Path returns the path of the file c was loaded from, or an empty string.
func (c *Config) Path() string { return c.path }

// Sections returns the sorted names of sections present in the file.
func (c *Config) Sections() []string {
	var names []string
	for n := range c.sections {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// EnvName returns the default environment variable consulted for (section, key).
func EnvName(section, key string) string {
	r := strings.NewReplacer("-", "_", ".", "_", " ", "_")
	return "PIGLIT_" + strings.ToUpper(r.Replace(section)) + "_" + strings.ToUpper(r.Replace(key))
}

// Option describes a single lookup performed by Config.Get.
type Option struct {
	// Env is the environment variable consulted first. If empty, EnvName(Section, Key) is used.
	// Set Env to "-" to skip the environment.
	Env string
	// Section and Key locate the value in the configuration file.
	Section, Key string
	// Default is returned when the value is found nowhere.
	Default string
	// Required makes a missing value a configuration error.
	Required bool
}

// Get resolves o: the environment takes precedence over the file, and the file
// over o.Default.
func (c *Config) Get(o Option) (string, error) {
	env := o.Env
	if env == "" && o.Section != "" {
		env = EnvName(o.Section, o.Key)
	}
	if env != "" && env != "-" {
		if v, ok := c.lookupEnv(env); ok {
			return v, nil
		}
	}
	if v, ok := c.Lookup(o.Section, o.Key); ok {
		return v, nil
	}
	if o.Required {
		return "", errors.ConfigErrorf("%s not set; set %s or the %q key of section %q in %s",
			o.Key, env, o.Key, o.Section, FileName)
	}
	return o.Default, nil
}

// Lookup returns the value of key in section of the file, ignoring the environment.
func (c *Config) Lookup(section, key string) (string, bool) {
	s, ok := c.sections[section]
	if !ok {
		return "", false
	}
	v, ok := s[key]
	return v, ok
}

// String returns the resolved value of (section, key), or def if unset.
func (c *Config) String(section, key, def string) string {
	v, _ := c.Get(Option{Section: section, Key: key, Default: def})
	return v
}

// Bool returns the resolved value of (section, key) interpreted by ParseBool.
func (c *Config) Bool(section, key string) bool {
	return ParseBool(c.String(section, key, ""))
}

// Env reports whether the environment variable name is set to a truthy value.
func (c *Config) Env(name string) bool {
	v, _ := c.lookupEnv(name)
	return ParseBool(v)
}

// EnvValue returns the value of the environment variable name as seen by c.
func (c *Config) EnvValue(name string) (string, bool) {
	return c.lookupEnv(name)
}

// ParseBool interprets common truthy spellings ("1", "true", "yes", "on") as true.
// Anything else, including an empty string, is false.
func ParseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}
