// Package brie defines the data model shared by every component of the
// provisioning core: filesystem layout (Paths) and the fully-resolved
// launch request (Unit). Everything else — config parsing, the CLI, asset
// fetching for storefront integration — lives outside this module and
// talks to the core only through these types and launch.Pipeline.
package brie

import "path/filepath"

// Paths is the on-disk layout the core operates against. Both directories
// are created on first use.
type Paths struct {
	// Libraries holds the shared, content-addressed cache of runtimes and
	// graphics-translation libraries (libraries/<name>/<version>), the
	// auxiliary tool directory (.bin), the state file (.state) and the
	// cache-wide lock (.brie.lock).
	Libraries string

	// Prefixes holds one directory per wine prefix (prefixes/<name>).
	Prefixes string
}

// New returns the Paths rooted at dataHome, e.g. $XDG_DATA_HOME/brie.
func New(dataHome string) Paths {
	return Paths{
		Libraries: filepath.Join(dataHome, "libraries"),
		Prefixes:  filepath.Join(dataHome, "prefixes"),
	}
}

// BinDir holds auxiliary executables fetched once (winetricks, cabextract).
func (p Paths) BinDir() string {
	return filepath.Join(p.Libraries, ".bin")
}

// StateFile is the JSON freshness-timestamp store.
func (p Paths) StateFile() string {
	return filepath.Join(p.Libraries, ".state")
}

// LibrariesLock is the advisory lock guarding concurrent cache mutation.
func (p Paths) LibrariesLock() string {
	return filepath.Join(p.Libraries, ".brie.lock")
}

// LibraryDir is the root directory for a single library's versions.
func (p Paths) LibraryDir(name string) string {
	return filepath.Join(p.Libraries, name)
}

// PrefixDir is the root directory of a named wine prefix.
func (p Paths) PrefixDir(prefix string) string {
	return filepath.Join(p.Prefixes, prefix)
}
