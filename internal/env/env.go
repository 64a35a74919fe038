// Package env locates the per-user cargo-lite root.
package env

import (
	"os"
	"path/filepath"
)

// Root returns the per-user state directory, ~/.cargo-lite, honoring a
// CARGO_LITE_ROOT override.
func Root() (string, error) {
	if root := os.Getenv("CARGO_LITE_ROOT"); root != "" {
		return root, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cargo-lite"), nil
}

// DefaultDBPath returns the default database document location under Root.
func DefaultDBPath() (string, error) {
	root, err := Root()
	if err != nil {
		return "", err
	}
	return filepath.Join(root, "db.toml"), nil
}
