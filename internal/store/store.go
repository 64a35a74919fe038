// Package store persists package build metadata and the global configuration
// as two TOML documents: a database of per-package records, and a
// configuration file the database points at.
package store

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"

	"cargolite/internal/vcs"
)

// Pending is a build record written before a build is attempted. It is
// promoted to the confirmed triple only when the build succeeds, so a failed
// build never silently caches its fingerprint.
type Pending struct {
	Fingerprint      string    `toml:"fingerprint"`
	ToolchainVersion string    `toml:"toolchain"`
	Time             time.Time `toml:"time"`
}

// Record tracks one package: where its source comes from, the last confirmed
// build, and the artifacts installed into the library directory.
//
// Fingerprint, ToolchainVersion and BuildTime form the confirmed triple and
// are only ever written together, by Promote.
type Record struct {
	Name             string     `toml:"-"`
	Method           vcs.Method `toml:"method,omitempty"`
	Origin           string     `toml:"origin,omitempty"`
	SourceDest       string     `toml:"source_dest,omitempty"`
	Fingerprint      string     `toml:"fingerprint,omitempty"`
	ToolchainVersion string     `toml:"toolchain,omitempty"`
	BuildTime        time.Time  `toml:"build_time,omitempty"`
	Artifacts        []string   `toml:"artifacts,omitempty"`
	Pending          *Pending   `toml:"pending,omitempty"`
}

// Config is the process-wide directory layout.
type Config struct {
	SourceDir  string `toml:"source_dir"`
	LibraryDir string `toml:"library_dir"`
	TempDir    string `toml:"temp_dir"`
}

// dbDoc is the on-disk shape of the database document.
type dbDoc struct {
	ConfigFile string             `toml:"config"`
	Packages   map[string]*Record `toml:"packages,omitempty"`
}

// Store holds all package records and the global configuration in memory.
// It is read in full at startup and written back in full by Save; there is
// no cross-process locking.
type Store struct {
	path       string
	configPath string

	Config   Config
	packages map[string]*Record
}

// Open loads the database at dbPath, or initializes an empty store when the
// file does not exist yet. When no configuration file exists either, default
// directories are derived under the database's directory using the host
// triple reported by probe, and created.
func Open(dbPath string, probe func() (string, error)) (*Store, error) {
	s := &Store{
		path:     dbPath,
		packages: make(map[string]*Record),
	}

	var doc dbDoc
	data, err := os.ReadFile(dbPath)
	switch {
	case err == nil:
		if err := toml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("parse %s: %w", dbPath, err)
		}
	case errors.Is(err, fs.ErrNotExist):
		// First use: empty record set.
	default:
		return nil, err
	}

	s.configPath = doc.ConfigFile
	if s.configPath == "" {
		s.configPath = filepath.Join(filepath.Dir(dbPath), "config.toml")
	}
	for name, rec := range doc.Packages {
		rec.Name = name
		s.packages[name] = rec
	}

	if err := s.loadConfig(probe); err != nil {
		return nil, err
	}
	for _, dir := range []string{s.Config.SourceDir, s.Config.LibraryDir, s.Config.TempDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *Store) loadConfig(probe func() (string, error)) error {
	data, err := os.ReadFile(s.configPath)
	if err == nil {
		if err := toml.Unmarshal(data, &s.Config); err != nil {
			return fmt.Errorf("parse %s: %w", s.configPath, err)
		}
		return nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return err
	}

	// First use: derive the layout from the toolchain's host triple.
	triple, err := probe()
	if err != nil {
		return fmt.Errorf("derive default directories: %w", err)
	}
	root := filepath.Dir(s.path)
	s.Config = Config{
		SourceDir:  filepath.Join(root, "src"),
		LibraryDir: filepath.Join(root, "lib", triple),
		TempDir:    filepath.Join(root, "tmp"),
	}
	return nil
}

// ConfigPath returns where the configuration document is persisted.
func (s *Store) ConfigPath() string { return s.configPath }

// Get returns the record for name, or nil when the package is unknown.
func (s *Store) Get(name string) *Record {
	return s.packages[name]
}

// Put inserts or replaces the record for rec.Name.
func (s *Store) Put(rec *Record) {
	s.packages[rec.Name] = rec
}

// SetPending records the fingerprint and toolchain of a build about to be
// attempted. The confirmed triple is left untouched.
func (s *Store) SetPending(name, fingerprint, toolchain string, now time.Time) {
	rec := s.packages[name]
	if rec == nil {
		rec = &Record{Name: name}
		s.packages[name] = rec
	}
	rec.Pending = &Pending{
		Fingerprint:      fingerprint,
		ToolchainVersion: toolchain,
		Time:             now,
	}
}

// Promote moves the pending record into the confirmed triple after a
// successful build.
func (s *Store) Promote(name string) error {
	rec := s.packages[name]
	if rec == nil || rec.Pending == nil {
		return fmt.Errorf("promote %s: no pending build record", name)
	}
	rec.Fingerprint = rec.Pending.Fingerprint
	rec.ToolchainVersion = rec.Pending.ToolchainVersion
	rec.BuildTime = rec.Pending.Time
	rec.Pending = nil
	return nil
}

// Save persists both documents. Each file is written to a temporary sibling
// and renamed into place so a partial write never corrupts either document.
func (s *Store) Save() error {
	doc := dbDoc{
		ConfigFile: s.configPath,
		Packages:   s.packages,
	}
	if err := writeTOML(s.path, doc); err != nil {
		return err
	}
	return writeTOML(s.configPath, s.Config)
}

func writeTOML(path string, v any) error {
	data, err := toml.Marshal(v)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}
