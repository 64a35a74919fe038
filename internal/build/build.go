// Package build is the orchestration and caching engine: it decides whether
// a package needs rebuilding, resolves declared dependencies and subpackages
// first, invokes the compiler or a declared build command, and records build
// state so repeated invocations are idempotent.
package build

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"cargolite/internal/conf"
	"cargolite/internal/fingerprint"
	"cargolite/internal/rustc"
	"cargolite/internal/store"
	"cargolite/internal/vcs"
)

// ErrCycle is returned when a package's dependency chain reaches the package
// itself again.
var ErrCycle = errors.New("dependency cycle detected")

// Options control one build invocation.
type Options struct {
	Force       bool     // rebuild even when fingerprint and toolchain match
	OutputToCwd bool     // leave artifacts in the package directory
	RustcFlags  []string // compiler flags from the command line
}

// Builder wires the store, fetcher and toolchain together for one process
// invocation. It tracks temporary output directories it creates; Close
// removes them and must run on every exit path.
type Builder struct {
	Store     *store.Store
	Fetcher   *vcs.Fetcher
	Toolchain rustc.Toolchain
	Logger    *log.Logger

	building map[string]bool
	tempDirs []string
}

// New returns a Builder operating on st.
func New(st *store.Store, f *vcs.Fetcher, tc rustc.Toolchain, logger *log.Logger) *Builder {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Builder{
		Store:     st,
		Fetcher:   f,
		Toolchain: tc,
		Logger:    logger,
		building:  make(map[string]bool),
	}
}

// Close removes every temporary output directory created by this builder.
func (b *Builder) Close() error {
	var firstErr error
	for _, dir := range b.tempDirs {
		if err := os.RemoveAll(dir); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	b.tempDirs = nil
	return firstErr
}

// Install fetches, builds and installs one package: its artifacts are copied
// into the library directory and recorded. Dependencies install recursively
// through the same path.
func (b *Builder) Install(ctx context.Context, req InstallRequest, opts Options) ([]string, error) {
	name := req.Name
	if name == "" {
		if req.Origin == "" {
			cwd, err := os.Getwd()
			if err != nil {
				return nil, err
			}
			name = InferName(cwd)
		} else {
			name = InferName(req.Origin)
		}
	}

	dir, err := b.materialize(ctx, name, req)
	if err != nil {
		return nil, err
	}
	return b.installFrom(ctx, dir, name, opts)
}

// Update re-pulls an already-fetched package and rebuilds it from the
// refreshed tree. Unlike Install, it pulls exactly once, never falls back to
// a fresh clone, and requires an existing record with fetch metadata.
func (b *Builder) Update(ctx context.Context, name string, opts Options) ([]string, error) {
	rec := b.Store.Get(name)
	if rec == nil {
		return nil, fmt.Errorf("unknown package %q", name)
	}
	if rec.Origin == "" {
		return nil, fmt.Errorf("package %q has no fetch origin to update from", name)
	}
	dir, err := b.Fetcher.Update(ctx, name, rec.Method, rec.Origin)
	if err != nil {
		return nil, err
	}
	rec.SourceDest = dir
	return b.installFrom(ctx, dir, name, opts)
}

// installFrom builds the package rooted at an already-materialized dir and
// installs its artifacts.
func (b *Builder) installFrom(ctx context.Context, dir, name string, opts Options) ([]string, error) {
	c, err := conf.Load(dir)
	if err != nil {
		return nil, err
	}

	outDirs, err := b.buildConf(ctx, dir, name, c, withTempOutput(opts))
	if err != nil {
		return nil, err
	}

	artifacts, err := b.installArtifacts(outDirs)
	if err != nil {
		return nil, err
	}
	rec := b.record(name)
	if len(outDirs) > 0 {
		// A fully cached build returns no output dirs; keep the artifact
		// list from the last real build instead of clearing it.
		rec.Artifacts = artifacts
	}
	if err := b.Store.Save(); err != nil {
		return nil, err
	}
	b.Logger.Info("installed", "package", name, "artifacts", len(artifacts))
	return artifacts, nil
}

// Build builds the package rooted at dir in place, without fetching or
// installing, and returns the produced output directories.
func (b *Builder) Build(ctx context.Context, dir, name string, opts Options) ([]string, error) {
	c, err := conf.Load(dir)
	if err != nil {
		return nil, err
	}
	return b.buildConf(ctx, dir, name, c, opts)
}

// materialize resolves the source directory for a package: the current
// directory when no origin was given, a fetched tree otherwise. The resolved
// fetch metadata is persisted before returning.
func (b *Builder) materialize(ctx context.Context, name string, req InstallRequest) (string, error) {
	if req.Origin == "" {
		dir, err := os.Getwd()
		if err != nil {
			return "", err
		}
		rec := b.record(name)
		rec.Method = vcs.Local
		rec.SourceDest = dir
		return dir, nil
	}

	dest, method, err := b.Fetcher.Fetch(ctx, name, req.Method, req.Origin)
	if err != nil {
		return "", err
	}
	rec := b.record(name)
	rec.Method = method
	rec.Origin = req.Origin
	rec.SourceDest = dest
	if err := b.Store.Save(); err != nil {
		return "", err
	}
	return dest, nil
}

// buildConf runs the core algorithm for one parsed declaration: install
// dependencies, build subpackages, check staleness, then invoke exactly one
// of the compiler or the declared build command.
func (b *Builder) buildConf(ctx context.Context, dir, name string, c *conf.Conf, opts Options) ([]string, error) {
	if b.building[name] {
		return nil, fmt.Errorf("%w: %s depends on itself", ErrCycle, name)
	}
	b.building[name] = true
	defer delete(b.building, name)

	for _, dep := range c.Deps {
		req, err := ParseDepArgs(dep)
		if err != nil {
			return nil, fmt.Errorf("dependency of %s: %w", name, err)
		}
		if _, err := b.Install(ctx, req, withTempOutput(opts)); err != nil {
			return nil, err
		}
	}

	var outDirs []string
	for _, sub := range c.Subpackages {
		subDir := filepath.Join(dir, sub)
		subConf, err := conf.Load(subDir)
		if err != nil {
			return nil, err
		}
		subOut, err := b.buildConf(ctx, subDir, name+"/"+sub, subConf, opts)
		if err != nil {
			return nil, err
		}
		outDirs = append(outDirs, subOut...)
	}

	if c.Build == nil {
		if len(c.Subpackages) > 0 {
			// Umbrella package: nothing to build here.
			return outDirs, nil
		}
		return nil, fmt.Errorf("%s: %w", name, conf.ErrNoBuildInfo)
	}

	fp, err := fingerprint.Tree(dir, c.Build.Fingerprint)
	if err != nil {
		return nil, err
	}
	version, err := b.Toolchain.Version(ctx)
	if err != nil {
		return nil, err
	}
	if !opts.Force {
		if rec := b.Store.Get(name); rec != nil && rec.Fingerprint == fp && rec.ToolchainVersion == version {
			b.Logger.Debug("up to date", "package", name, "fingerprint", fp)
			return outDirs, nil
		}
	}

	// Pending first: the record is promoted only once the build succeeds,
	// so a failing build is retried on the next invocation.
	b.Store.SetPending(name, fp, version, time.Now())
	if err := b.Store.Save(); err != nil {
		return nil, err
	}

	outDir := dir
	if !opts.OutputToCwd {
		outDir, err = os.MkdirTemp(b.Store.Config.TempDir, "cargo-lite-")
		if err != nil {
			return nil, err
		}
		b.tempDirs = append(b.tempDirs, outDir)
	}

	flags := append(append([]string{}, opts.RustcFlags...), c.Build.RustcArgs...)
	b.Logger.Info("building", "package", name, "dir", dir)
	if len(c.Build.BuildCmd) > 0 {
		env := []string{
			"CARGO_LITE_OUT_DIR=" + outDir,
			"CARGO_LITE_RUSTC_FLAGS=" + strings.Join(flags, " "),
		}
		if err := b.Toolchain.RunBuildCmd(ctx, dir, c.Build.BuildCmd, env); err != nil {
			return nil, fmt.Errorf("build command for %s: %w", name, err)
		}
	} else {
		err := b.Toolchain.Compile(ctx, rustc.CompileOptions{
			Dir:        dir,
			CrateRoot:  c.Build.CrateRoot,
			Library:    c.Build.CrateType == conf.Library,
			OutDir:     outDir,
			LibraryDir: b.Store.Config.LibraryDir,
			Args:       flags,
		})
		if err != nil {
			return nil, fmt.Errorf("compile %s: %w", name, err)
		}
	}

	if err := b.Store.Promote(name); err != nil {
		return nil, err
	}
	outDirs = append(outDirs, outDir)
	if err := b.Store.Save(); err != nil {
		return nil, err
	}
	return outDirs, nil
}

// installArtifacts copies every regular file from the output directories
// into the library directory, returning the installed filenames in order.
func (b *Builder) installArtifacts(outDirs []string) ([]string, error) {
	var names []string
	for _, dir := range outDirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			src := filepath.Join(dir, e.Name())
			dest := filepath.Join(b.Store.Config.LibraryDir, e.Name())
			if err := copyFile(src, dest); err != nil {
				return nil, fmt.Errorf("install %s: %w", e.Name(), err)
			}
			names = append(names, e.Name())
		}
	}
	return names, nil
}

func (b *Builder) record(name string) *store.Record {
	rec := b.Store.Get(name)
	if rec == nil {
		rec = &store.Record{Name: name}
		b.Store.Put(rec)
	}
	return rec
}

// withTempOutput clears OutputToCwd: only the package named on the command
// line may build into the current directory, never dependencies.
func withTempOutput(opts Options) Options {
	opts.OutputToCwd = false
	return opts
}

func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	info, err := in.Stat()
	if err != nil {
		return err
	}
	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
