// Package wineruntime resolves a brie.Runtime selector to a concrete wine
// binary path, fetching GE-Proton or wine-tkg-git builds through the cache
// when requested (spec.md §4.6).
package wineruntime

import (
	"fmt"
	"os/exec"
	"path/filepath"
	"time"

	"golang.org/x/xerrors"

	"github.com/briehq/brie"
	"github.com/briehq/brie/internal/cache"
	"github.com/briehq/brie/internal/provider"
)

// State is what Resolve returns: the absolute wine binary path, and
// whether resolving it changed anything observable (a fresh runtime
// download, or a confirmed-current freshness check).
type State struct {
	Path    string
	Updated bool
}

// ErrNotFound reports that the system wine binary could not be located.
type ErrNotFound struct {
	SearchedPath string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("wine binary not found at %q", e.SearchedPath)
}

// Resolver resolves a brie.Runtime against the shared CacheStore.
type Resolver struct {
	Cache cache.Store
}

// Resolve implements spec §4.6's RuntimeResolver.
func (r Resolver) Resolve(rt brie.Runtime, lastChecked time.Time) (State, error) {
	switch {
	case rt.IsSystem():
		return r.resolveSystem(rt.Path())

	case rt.IsGeProton():
		target := cache.Target{Name: provider.WineGeName, Substring: provider.WineGeSubstring}
		res, err := r.Cache.Ensure(target, rt.Version(), provider.WineGeResolver(), lastChecked)
		if err != nil {
			return State{}, err
		}
		return State{Path: filepath.Join(res.Path, "bin", "wine"), Updated: res.Updated}, nil

	case rt.IsTkg():
		target := cache.Target{Name: provider.WineTkgName}
		res, err := r.Cache.Ensure(target, rt.Version(), provider.WineTkgResolver(), lastChecked)
		if err != nil {
			return State{}, err
		}
		return State{Path: filepath.Join(res.Path, "usr", "bin", "wine"), Updated: res.Updated}, nil

	default:
		return State{}, xerrors.New("wineruntime: unknown runtime kind")
	}
}

func (r Resolver) resolveSystem(root string) (State, error) {
	if root == "" {
		path, err := exec.LookPath("wine")
		if err != nil {
			return State{}, &ErrNotFound{SearchedPath: "wine (PATH)"}
		}
		return State{Path: path, Updated: false}, nil
	}

	path := filepath.Join(root, "wine")
	if _, err := exec.LookPath(path); err != nil {
		return State{}, &ErrNotFound{SearchedPath: path}
	}
	return State{Path: path, Updated: false}, nil
}
