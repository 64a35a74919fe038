// Package conf parses a package's build declaration file, cargo-lite.conf.
package conf

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

// FileName is the declaration file looked up in every package directory.
const FileName = "cargo-lite.conf"

var (
	// ErrNoConf is returned when a package directory has no declaration file.
	ErrNoConf = errors.New("no " + FileName)

	// ErrNoBuildInfo is returned when a declaration has neither a build
	// section nor subpackages.
	ErrNoBuildInfo = errors.New("no build information in " + FileName)
)

// CrateType is the kind of build output a package produces.
type CrateType int

const (
	// Binary produces a standalone executable.
	Binary CrateType = iota
	// Library produces the linkable library output kinds.
	Library
)

func (c CrateType) String() string {
	if c == Library {
		return "library"
	}
	return "binary"
}

// UnmarshalText implements encoding.TextUnmarshaler. The empty string keeps
// the Binary default.
func (c *CrateType) UnmarshalText(text []byte) error {
	switch string(text) {
	case "", "binary":
		*c = Binary
	case "library":
		*c = Library
	default:
		return fmt.Errorf("unrecognized crate_type %q", text)
	}
	return nil
}

// Build is the optional build section of a declaration. Exactly one of
// CrateRoot and BuildCmd must be set when the section is present.
type Build struct {
	CrateType   CrateType `toml:"crate_type"`
	CrateRoot   string    `toml:"crate_root"`
	BuildCmd    []string  `toml:"build_cmd"`
	RustcArgs   []string  `toml:"rustc_args"`
	Fingerprint []string  `toml:"fingerprint"`
}

// Conf is one package's parsed declaration. Deps entries are argv-style
// install invocations, resolved by the builder in declared order before the
// package itself is built.
type Conf struct {
	Deps        [][]string `toml:"deps"`
	Subpackages []string   `toml:"subpackages"`
	Build       *Build     `toml:"build"`
}

// Load reads and parses <dir>/cargo-lite.conf.
func Load(dir string) (*Conf, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w in %s", ErrNoConf, dir)
		}
		return nil, err
	}
	var c Conf
	if err := toml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if c.Build != nil {
		if err := c.Build.validate(path); err != nil {
			return nil, err
		}
	}
	return &c, nil
}

func (b *Build) validate(path string) error {
	hasRoot := b.CrateRoot != ""
	hasCmd := len(b.BuildCmd) > 0
	if hasRoot && hasCmd {
		return fmt.Errorf("%s: crate_root and build_cmd are mutually exclusive", path)
	}
	if !hasRoot && !hasCmd {
		return fmt.Errorf("%s: build section needs crate_root or build_cmd", path)
	}
	return nil
}
