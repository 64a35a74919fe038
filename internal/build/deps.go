package build

import (
	"fmt"
	"path/filepath"
	"strings"

	"cargolite/internal/vcs"
)

// InstallRequest identifies one package to fetch, build and install. Name
// may be empty, in which case it is inferred from the origin's last path
// segment with any extension stripped.
type InstallRequest struct {
	Name   string
	Method vcs.Method
	Origin string
}

// ParseDepArgs resolves one argv-style dependency entry from a declaration
// file into an install invocation, accepting the same flags as the install
// command: --git, --hg, --local, --pkgname=NAME, plus a positional origin
// and an optional positional package name.
func ParseDepArgs(args []string) (InstallRequest, error) {
	var req InstallRequest
	var positional []string
	for _, arg := range args {
		switch {
		case arg == "--git":
			req.Method = vcs.Git
		case arg == "--hg":
			req.Method = vcs.Mercurial
		case arg == "--local":
			req.Method = vcs.Local
		case strings.HasPrefix(arg, "--pkgname="):
			req.Name = strings.TrimPrefix(arg, "--pkgname=")
		case strings.HasPrefix(arg, "--"):
			return InstallRequest{}, fmt.Errorf("unrecognized dependency flag %q", arg)
		default:
			positional = append(positional, arg)
		}
	}
	switch len(positional) {
	case 0:
		return InstallRequest{}, fmt.Errorf("dependency entry %q has no origin", strings.Join(args, " "))
	case 1:
		req.Origin = positional[0]
	case 2:
		req.Origin = positional[0]
		if req.Name == "" {
			req.Name = positional[1]
		}
	default:
		return InstallRequest{}, fmt.Errorf("dependency entry %q has too many arguments", strings.Join(args, " "))
	}
	return req, nil
}

// InferName derives a package name from an origin: the last path segment
// with its extension stripped, so "https://example.com/foo.git" and
// "/src/foo" both name the package "foo".
func InferName(origin string) string {
	base := filepath.Base(filepath.Clean(origin))
	return strings.TrimSuffix(base, filepath.Ext(base))
}
