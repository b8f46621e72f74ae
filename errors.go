package brie

import "golang.org/x/xerrors"

// LibraryError annotates an error with the short library/tool name it
// occurred for, matching the "library-specific failures carry the
// library's short name in their message" requirement (spec §7).
type LibraryError struct {
	Name  string
	Cause error
}

func (e *LibraryError) Error() string {
	return xerrors.Errorf("%s: %w", e.Name, e.Cause).Error()
}

func (e *LibraryError) Unwrap() error { return e.Cause }

// WithLibrary wraps err, if non-nil, as a *LibraryError carrying name.
func WithLibrary(name string, err error) error {
	if err == nil {
		return nil
	}
	return &LibraryError{Name: name, Cause: err}
}

// PathError annotates an error with the filesystem path it occurred for
// ("filesystem failures carry the path", spec §7).
type PathError struct {
	Path  string
	Cause error
}

func (e *PathError) Error() string {
	return xerrors.Errorf("%s: %w", e.Path, e.Cause).Error()
}

func (e *PathError) Unwrap() error { return e.Cause }

// WithPath wraps err, if non-nil, as a *PathError carrying path.
func WithPath(path string, err error) error {
	if err == nil {
		return nil
	}
	return &PathError{Path: path, Cause: err}
}
