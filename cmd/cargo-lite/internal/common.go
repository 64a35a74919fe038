package internal

import (
	"context"

	"github.com/charmbracelet/log"

	"cargolite/internal/build"
	"cargolite/internal/env"
	"cargolite/internal/rustc"
	"cargolite/internal/store"
	"cargolite/internal/vcs"
)

// newBuilder wires the store, fetcher and toolchain together. Callers must
// defer Close on the returned builder so temporary build directories are
// removed on every exit path.
func newBuilder(ctx context.Context) (*build.Builder, error) {
	dbPath := flagDB
	if dbPath == "" {
		var err error
		dbPath, err = env.DefaultDBPath()
		if err != nil {
			return nil, err
		}
	}

	toolchain := rustc.New()
	st, err := store.Open(dbPath, func() (string, error) {
		return toolchain.HostTriple(ctx)
	})
	if err != nil {
		return nil, err
	}
	fetcher := vcs.NewFetcher(st.Config.SourceDir)
	return build.New(st, fetcher, toolchain, log.Default()), nil
}

// methodFromFlags maps the fetch flags onto a Method; Unset means infer
// from the origin.
func methodFromFlags() vcs.Method {
	switch {
	case flagGit:
		return vcs.Git
	case flagHg:
		return vcs.Mercurial
	case flagLocal:
		return vcs.Local
	}
	return vcs.Unset
}

// compileFlags assembles the compiler flag list from the command-line
// options: optimized by default, debug info and LTO on request.
func compileFlags() []string {
	var flags []string
	if flagDebug {
		flags = append(flags, "-g")
	}
	if !flagNoOpt {
		flags = append(flags, "-O")
	}
	if flagLTO {
		flags = append(flags, "-C", "lto")
	}
	return flags
}

func buildOptions(outputToCwd bool) build.Options {
	return build.Options{
		Force:       flagForce,
		OutputToCwd: outputToCwd,
		RustcFlags:  compileFlags(),
	}
}
