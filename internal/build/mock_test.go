package build

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"cargolite/internal/rustc"
)

// fakeToolchain implements rustc.Toolchain for unit testing. Compile drops a
// plausibly-named artifact into the output directory so install paths have
// something to copy.
type fakeToolchain struct {
	mu       sync.Mutex
	version  string
	compiles []rustc.CompileOptions
	cmds     [][]string
	cmdEnvs  [][]string

	compileErr error
	cmdErr     error
}

func newFakeToolchain() *fakeToolchain {
	return &fakeToolchain{version: "rustc 1.84.0 (test)"}
}

func (f *fakeToolchain) Version(ctx context.Context) (string, error) {
	return f.version, nil
}

func (f *fakeToolchain) HostTriple(ctx context.Context) (string, error) {
	return "x86_64-unknown-linux-gnu", nil
}

func (f *fakeToolchain) Compile(ctx context.Context, opts rustc.CompileOptions) error {
	f.mu.Lock()
	f.compiles = append(f.compiles, opts)
	f.mu.Unlock()
	if f.compileErr != nil {
		return f.compileErr
	}
	name := strings.TrimSuffix(filepath.Base(opts.CrateRoot), ".rs")
	if opts.Library {
		name = "lib" + name + ".rlib"
	}
	return os.WriteFile(filepath.Join(opts.OutDir, name), []byte("artifact"), 0o755)
}

func (f *fakeToolchain) RunBuildCmd(ctx context.Context, dir string, argv, extraEnv []string) error {
	f.mu.Lock()
	f.cmds = append(f.cmds, argv)
	f.cmdEnvs = append(f.cmdEnvs, extraEnv)
	f.mu.Unlock()
	if f.cmdErr != nil {
		return f.cmdErr
	}
	for _, kv := range extraEnv {
		if out, ok := strings.CutPrefix(kv, "CARGO_LITE_OUT_DIR="); ok {
			return os.WriteFile(filepath.Join(out, "cmd-output"), []byte("artifact"), 0o644)
		}
	}
	return nil
}

// recordingRunner implements vcs.Runner, recording client invocations so
// tests can assert which VCS operations a builder performed.
type recordingRunner struct {
	calls []string
	err   error
}

func (r *recordingRunner) Run(ctx context.Context, dir, name string, args ...string) error {
	r.calls = append(r.calls, name+" "+strings.Join(args, " "))
	return r.err
}

// compiledDirs returns the working directories of all Compile calls, in
// invocation order.
func (f *fakeToolchain) compiledDirs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	dirs := make([]string, len(f.compiles))
	for i, c := range f.compiles {
		dirs[i] = c.Dir
	}
	return dirs
}
