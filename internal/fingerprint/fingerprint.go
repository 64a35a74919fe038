// Package fingerprint summarizes the staleness-relevant state of a source
// tree as a fixed-length hex digest.
//
// The digest folds file modification times, not file contents, into a BLAKE3
// hash. That keeps fingerprinting cheap for large trees at the cost of being
// defeated by mtime-preserving copies, which is an accepted approximation for
// a rebuild-avoidance check rather than a content-addressed guarantee.
package fingerprint

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io/fs"
	"path"
	"path/filepath"

	"lukechampine.com/blake3"
)

// DefaultGlobs is used when a build declaration does not list its own
// fingerprint patterns.
var DefaultGlobs = []string{"*.rs"}

// Tree walks the directory rooted at root and folds the name and mtime of
// every regular file whose base name matches one of globs into a running
// hash, in lexical traversal order. The returned digest is reproducible for
// a fixed file set with fixed mtimes.
func Tree(root string, globs []string) (string, error) {
	if len(globs) == 0 {
		globs = DefaultGlobs
	}
	h := blake3.New(32, nil)
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		ok, err := matchAny(globs, d.Name())
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		h.Write([]byte(filepath.ToSlash(rel)))
		var mtime [8]byte
		binary.BigEndian.PutUint64(mtime[:], uint64(info.ModTime().UnixNano()))
		h.Write(mtime[:])
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("fingerprint %s: %w", root, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// matchAny reports whether name matches at least one pattern. A malformed
// pattern is an error rather than a silent non-match.
func matchAny(globs []string, name string) (bool, error) {
	for _, g := range globs {
		ok, err := path.Match(g, name)
		if err != nil {
			return false, fmt.Errorf("bad fingerprint pattern %q: %w", g, err)
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}
