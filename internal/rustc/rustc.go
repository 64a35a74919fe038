// Package rustc invokes the Rust compiler and user-declared build commands.
package rustc

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
)

// Toolchain abstracts the compiler so the build engine can be tested without
// a rustc installation.
type Toolchain interface {
	// Version returns the compiler's exact version string, the toolchain
	// identity used for staleness checks.
	Version(ctx context.Context) (string, error)

	// HostTriple returns the compiler's reported host target triple.
	HostTriple(ctx context.Context) (string, error)

	// Compile compiles a single crate root.
	Compile(ctx context.Context, opts CompileOptions) error

	// RunBuildCmd runs a user-declared build command in dir with extra
	// environment entries appended to the process environment.
	RunBuildCmd(ctx context.Context, dir string, argv, extraEnv []string) error
}

// CompileOptions describe one compiler invocation.
type CompileOptions struct {
	Dir        string   // working directory
	CrateRoot  string   // source file handed to the compiler
	Library    bool     // emit the linked library kinds instead of a binary
	OutDir     string   // --out-dir
	LibraryDir string   // -L search path for installed dependencies
	Args       []string // extra compiler flags, passed through first
}

// ExitError reports a compiler or build-command failure with everything
// needed to diagnose it.
type ExitError struct {
	Argv   []string
	Code   int
	Stdout string
	Stderr string
}

func (e *ExitError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s exited with status %d", strings.Join(e.Argv, " "), e.Code)
	if s := strings.TrimSpace(e.Stderr); s != "" {
		b.WriteString("\nstderr:\n")
		b.WriteString(s)
	}
	if s := strings.TrimSpace(e.Stdout); s != "" {
		b.WriteString("\nstdout:\n")
		b.WriteString(s)
	}
	return b.String()
}

// Rustc is the real toolchain.
type Rustc struct {
	path string

	versionOnce sync.Once
	version     string
	versionErr  error

	tripleOnce sync.Once
	triple     string
	tripleErr  error
}

// Option configures a Rustc.
type Option func(*Rustc)

// WithPath sets a custom compiler executable path.
func WithPath(path string) Option {
	return func(r *Rustc) { r.path = path }
}

// New returns a ready-to-use Rustc.
func New(opts ...Option) *Rustc {
	r := &Rustc{path: "rustc"}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Rustc) Version(ctx context.Context) (string, error) {
	r.versionOnce.Do(func() {
		out, err := exec.CommandContext(ctx, r.path, "--version").Output()
		if err != nil {
			r.versionErr = fmt.Errorf("probe %s --version: %w", r.path, err)
			return
		}
		r.version = strings.TrimSpace(string(out))
	})
	return r.version, r.versionErr
}

func (r *Rustc) HostTriple(ctx context.Context) (string, error) {
	r.tripleOnce.Do(func() {
		out, err := exec.CommandContext(ctx, r.path, "-vV").Output()
		if err != nil {
			r.tripleErr = fmt.Errorf("probe %s -vV: %w", r.path, err)
			return
		}
		for _, line := range strings.Split(string(out), "\n") {
			if t, ok := strings.CutPrefix(line, "host: "); ok {
				r.triple = strings.TrimSpace(t)
				return
			}
		}
		r.tripleErr = fmt.Errorf("no host triple in %s -vV output", r.path)
	})
	return r.triple, r.tripleErr
}

func (r *Rustc) Compile(ctx context.Context, opts CompileOptions) error {
	argv := append([]string{r.path}, opts.Args...)
	argv = append(argv, opts.CrateRoot, "--crate-type="+crateTypeFlag(opts.Library))
	if opts.LibraryDir != "" {
		argv = append(argv, "-L", opts.LibraryDir)
	}
	argv = append(argv, "--out-dir", opts.OutDir)
	return run(ctx, opts.Dir, argv, nil)
}

// crateTypeFlag maps the requested output kind onto rustc's flag: a single
// executable, or the linked library kinds.
func crateTypeFlag(library bool) string {
	if library {
		return "lib,rlib,dylib"
	}
	return "bin"
}

func (r *Rustc) RunBuildCmd(ctx context.Context, dir string, argv, extraEnv []string) error {
	if len(argv) == 0 {
		return fmt.Errorf("empty build command")
	}
	return run(ctx, dir, argv, extraEnv)
}

func run(ctx context.Context, dir string, argv, extraEnv []string) error {
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = dir
	if len(extraEnv) > 0 {
		cmd.Env = append(os.Environ(), extraEnv...)
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err == nil {
		return nil
	}
	if exit, ok := err.(*exec.ExitError); ok {
		return &ExitError{
			Argv:   argv,
			Code:   exit.ExitCode(),
			Stdout: stdout.String(),
			Stderr: stderr.String(),
		}
	}
	// Tool missing or not executable.
	return fmt.Errorf("run %s: %w", argv[0], err)
}
