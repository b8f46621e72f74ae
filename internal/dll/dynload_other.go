//go:build !linux

package dll

import "golang.org/x/xerrors"

// probeLibraryDir has no portable equivalent to dlinfo's link_map outside
// Unix-like dynamic loaders. Per spec.md §4.8, this is an explicit
// unsupported-platform error, not a silent skip.
func probeLibraryDir(filename string) (string, error) {
	return "", xerrors.Errorf("dynamic loader introspection unsupported on this platform (probing %s)", filename)
}
