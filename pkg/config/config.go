// Package config handles romlink.toml link configuration.
package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// FileName is the configuration file looked up by FindAndLoad.
const FileName = "romlink.toml"

// Config is a romlink.toml file.
type Config struct {
	Link   Link   `toml:"link"`
	Output Output `toml:"output"`

	// Dir is the directory holding the file; relative paths resolve
	// against it.
	Dir string `toml:"-"`
}

// Link configures the linking pipeline.
type Link struct {
	Inputs                []string `toml:"inputs"`
	Relocatable           bool     `toml:"relocatable"`
	SharedPool            bool     `toml:"shared-pool"`
	KeepUnknownAttributes bool     `toml:"keep-unknown-attributes"`
	VerifyMembers         bool     `toml:"verify-members"`
}

// Output configures what the link step writes.
type Output struct {
	Image    string `toml:"image"`
	Compress bool   `toml:"compress"`
	LinkMap  string `toml:"link-map"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Link: Link{
			Inputs:        []string{"classes"},
			Relocatable:   true,
			VerifyMembers: true,
		},
		Output: Output{
			Image:    "out.rimg",
			Compress: true,
			LinkMap:  "out.linkmap",
		},
		Dir: ".",
	}
}

// Load parses the file at path. Keys it leaves out keep their defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg := Default()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if cfg.Dir, err = filepath.Abs(filepath.Dir(path)); err != nil {
		return nil, fmt.Errorf("resolve config dir: %w", err)
	}
	if len(cfg.Link.Inputs) == 0 {
		return nil, fmt.Errorf("parse config %s: link.inputs is empty", path)
	}
	return cfg, nil
}

// FindAndLoad walks up from startDir looking for romlink.toml. It returns
// the defaults, rooted at startDir, when none is found.
func FindAndLoad(startDir string) (*Config, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}
	for d := dir; ; {
		path := filepath.Join(d, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}
		parent := filepath.Dir(d)
		if parent == d {
			break
		}
		d = parent
	}
	cfg := Default()
	cfg.Dir = dir
	return cfg, nil
}

// Resolve returns p relative to the config directory unless it is
// absolute or empty.
func (c *Config) Resolve(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.Dir, p)
}

// InputPaths returns the configured inputs resolved against Dir.
func (c *Config) InputPaths() []string {
	out := make([]string, len(c.Link.Inputs))
	for i, in := range c.Link.Inputs {
		out[i] = c.Resolve(in)
	}
	return out
}

// Write atomically writes cfg to path.
func Write(path string, cfg *Config) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("write config: encode: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".romlink-tmp-*")
	if err != nil {
		return fmt.Errorf("write config: tmpfile: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write config: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write config: close: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write config: rename: %w", err)
	}
	return nil
}
