// Package vcs acquires package source trees from git, mercurial or a local
// directory, and keeps already-fetched trees up to date.
package vcs

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// ErrUnknownFetchMethod is returned when no fetch method was given and none
// can be inferred from the origin.
var ErrUnknownFetchMethod = errors.New("unknown fetch method")

// Method identifies how a package's source is acquired.
type Method int

const (
	Unset Method = iota
	Git
	Mercurial
	Local
)

func (m Method) String() string {
	switch m {
	case Git:
		return "git"
	case Mercurial:
		return "hg"
	case Local:
		return "local"
	default:
		return "unset"
	}
}

// ParseMethod converts the persisted form back into a Method. The empty
// string maps to Unset so records written before a fetch round-trip.
func ParseMethod(s string) (Method, error) {
	switch s {
	case "git":
		return Git, nil
	case "hg":
		return Mercurial, nil
	case "local":
		return Local, nil
	case "", "unset":
		return Unset, nil
	}
	return Unset, fmt.Errorf("%w: %q", ErrUnknownFetchMethod, s)
}

// MarshalText persists the Method into TOML documents.
func (m Method) MarshalText() ([]byte, error) {
	if m == Unset {
		return nil, nil
	}
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Method) UnmarshalText(text []byte) error {
	parsed, err := ParseMethod(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Infer guesses the fetch method for an origin: a URI scheme carrying a
// version-control hint wins, then the well-known ".git" suffix, then an
// existing local path. Anything else fails with ErrUnknownFetchMethod.
func Infer(origin string) (Method, error) {
	if scheme, _, ok := strings.Cut(origin, "://"); ok {
		switch {
		case strings.Contains(scheme, "git"):
			return Git, nil
		case strings.Contains(scheme, "hg"):
			return Mercurial, nil
		}
	}
	if strings.HasSuffix(origin, ".git") {
		return Git, nil
	}
	if _, err := os.Stat(origin); err == nil {
		return Local, nil
	}
	return Unset, fmt.Errorf("%w: cannot infer from %q", ErrUnknownFetchMethod, origin)
}
