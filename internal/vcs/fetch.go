package vcs

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Runner executes a version-control client command in dir. Tests substitute
// a fake so no git or hg installation is required.
type Runner interface {
	Run(ctx context.Context, dir, name string, args ...string) error
}

// execRunner runs the real client and surfaces its trimmed stderr as the
// error message.
type execRunner struct{}

func (execRunner) Run(ctx context.Context, dir, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	if dir != "" {
		cmd.Dir = dir
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("%s %s: %s", name, args[0], msg)
		}
		return fmt.Errorf("%s %s: %w", name, args[0], err)
	}
	return nil
}

// clone materializes origin into dest, which must not exist yet.
func (m Method) clone(ctx context.Context, r Runner, origin, dest string) error {
	switch m {
	case Git:
		return r.Run(ctx, "", "git", "clone", origin, dest)
	case Mercurial:
		return r.Run(ctx, "", "hg", "clone", origin, dest)
	case Local:
		return copyTree(origin, dest)
	}
	return fmt.Errorf("%w: clone with method %s", ErrUnknownFetchMethod, m)
}

// pull refreshes an existing checkout in place. For Local the tree is copied
// over the destination, overwriting files that already exist.
func (m Method) pull(ctx context.Context, r Runner, origin, dest string) error {
	switch m {
	case Git:
		return r.Run(ctx, dest, "git", "pull")
	case Mercurial:
		if err := r.Run(ctx, dest, "hg", "pull"); err != nil {
			return err
		}
		return r.Run(ctx, dest, "hg", "update")
	case Local:
		return copyTree(origin, dest)
	}
	return fmt.Errorf("%w: update with method %s", ErrUnknownFetchMethod, m)
}

// Fetcher materializes package sources under SourceDir, one subdirectory per
// package name.
type Fetcher struct {
	SourceDir string
	run       Runner
}

// NewFetcher returns a Fetcher using the real version-control clients.
func NewFetcher(sourceDir string) *Fetcher {
	return &Fetcher{SourceDir: sourceDir, run: execRunner{}}
}

// NewFetcherWithRunner is for tests that stub out the client commands.
func NewFetcherWithRunner(sourceDir string, r Runner) *Fetcher {
	return &Fetcher{SourceDir: sourceDir, run: r}
}

// Dest returns the destination directory for a package name.
func (f *Fetcher) Dest(name string) string {
	return filepath.Join(f.SourceDir, name)
}

// Fetch ensures the source tree for name is present and current, returning
// its directory and the resolved method so callers record what was actually
// used. An existing destination is updated in place; if the update fails the
// destination is discarded and a fresh clone or copy is attempted, so only a
// fresh-fetch failure is fatal.
func (f *Fetcher) Fetch(ctx context.Context, name string, method Method, origin string) (string, Method, error) {
	if method == Unset {
		var err error
		if method, err = Infer(origin); err != nil {
			return "", Unset, err
		}
	}
	dest := f.Dest(name)
	if _, err := os.Stat(dest); err == nil {
		if err := method.pull(ctx, f.run, origin, dest); err == nil {
			return dest, method, nil
		}
		if err := os.RemoveAll(dest); err != nil {
			return "", Unset, fmt.Errorf("discard stale source for %s: %w", name, err)
		}
	}
	if err := os.MkdirAll(f.SourceDir, 0o755); err != nil {
		return "", Unset, err
	}
	if err := method.clone(ctx, f.run, origin, dest); err != nil {
		return "", Unset, fmt.Errorf("fetch %s: %w", name, err)
	}
	return dest, method, nil
}

// Update refreshes an already-fetched tree in place, with no reclone
// fallback. It is only valid once fetch metadata has been recorded.
func (f *Fetcher) Update(ctx context.Context, name string, method Method, origin string) (string, error) {
	if method == Unset {
		return "", fmt.Errorf("%w: %s has never been fetched", ErrUnknownFetchMethod, name)
	}
	dest := f.Dest(name)
	if err := method.pull(ctx, f.run, origin, dest); err != nil {
		return "", fmt.Errorf("update %s: %w", name, err)
	}
	return dest, nil
}
