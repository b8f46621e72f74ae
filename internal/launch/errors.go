package launch

import (
	"fmt"

	"github.com/briehq/brie"
)

// ErrKind tags the pipeline-boundary error taxonomy from spec.md §7.
type ErrKind int

const (
	ErrRuntime ErrKind = iota
	ErrLibraryDownload
	ErrLibraryInstall
	ErrPrefix
	ErrWinetricks
	ErrMounts
	ErrBefore
	ErrLock
	ErrStateWrite
	ErrRun
	ErrExpand
)

func (k ErrKind) String() string {
	switch k {
	case ErrRuntime:
		return "Runtime"
	case ErrLibraryDownload:
		return "LibraryDownload"
	case ErrLibraryInstall:
		return "LibraryInstall"
	case ErrPrefix:
		return "Prefix"
	case ErrWinetricks:
		return "Winetricks"
	case ErrMounts:
		return "Mounts"
	case ErrBefore:
		return "Before"
	case ErrLock:
		return "Lock"
	case ErrStateWrite:
		return "StateWrite"
	case ErrRun:
		return "Run"
	case ErrExpand:
		return "Expand"
	default:
		return "Unknown"
	}
}

// Error is the single typed error surfaced at the pipeline boundary. Cause
// is a *brie.LibraryError or *brie.PathError when the failure is
// library- or filesystem-specific (spec §7: "library-specific failures
// carry the library's short name […]; filesystem failures carry the
// path."); those two types carry the name/path themselves, so Error only
// needs to add the taxonomy Kind on top.
type Error struct {
	Kind  ErrKind
	Cause error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Cause)
}

func (e *Error) Unwrap() error { return e.Cause }

func withLibrary(kind ErrKind, library string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Cause: brie.WithLibrary(library, err)}
}

func withPath(kind ErrKind, path string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Cause: brie.WithPath(path, err)}
}

func wrap(kind ErrKind, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Cause: err}
}
