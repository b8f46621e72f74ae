package cache

import "os"

// dirGuard mirrors the Rust original's scope-exit cleanup: it removes Path
// on Close unless Success has been set. Go has no destructors, so every
// caller must defer Close() immediately after a successful directory
// creation (spec.md §4.4, §5's DirGuard pattern).
type dirGuard struct {
	Path    string
	Success bool
}

func newDirGuard(path string) *dirGuard {
	return &dirGuard{Path: path}
}

func (g *dirGuard) Close() error {
	if g.Success {
		return nil
	}
	return os.RemoveAll(g.Path)
}
