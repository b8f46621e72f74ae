package cache

import (
	"encoding/json"
	"os"
	"time"

	"github.com/google/renameio"
	"golang.org/x/xerrors"

	"github.com/briehq/brie"
)

// State is the on-disk record of when each cached thing was last refreshed,
// used to throttle re-checking a Latest release against the freshness
// window (spec.md §4.5).
type State struct {
	Wine      *time.Time           `json:"wine,omitempty"`
	Libraries map[string]time.Time `json:"libraries,omitempty"`
}

// libraryKey is the state map key for a library's cached version: its name
// plus the requested ReleaseVersion, so pinned tags and "latest" don't
// collide.
func libraryKey(l brie.Library, v brie.ReleaseVersion) string {
	return l.Name() + "@" + v.Key()
}

func (s *State) LibraryUpdated(l brie.Library, v brie.ReleaseVersion) (time.Time, bool) {
	t, ok := s.Libraries[libraryKey(l, v)]
	return t, ok
}

func (s *State) TouchLibrary(l brie.Library, v brie.ReleaseVersion, at time.Time) {
	if s.Libraries == nil {
		s.Libraries = map[string]time.Time{}
	}
	s.Libraries[libraryKey(l, v)] = at
}

// StateStore reads and writes the state file at Path.
type StateStore struct {
	Path string
}

// Load reads the state file. A missing or unparseable file is treated as
// empty state rather than an error — this is best-effort bookkeeping, not
// a source of truth for what's on disk.
func (s StateStore) Load() *State {
	b, err := os.ReadFile(s.Path)
	if err != nil {
		return &State{}
	}
	var st State
	if err := json.Unmarshal(b, &st); err != nil {
		return &State{}
	}
	return &st
}

// Save writes the state file atomically. Failures are not fatal to a
// launch; callers log and continue.
func (s StateStore) Save(st *State) error {
	b, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return xerrors.Errorf("marshaling state: %w", err)
	}
	if err := renameio.WriteFile(s.Path, b, 0644); err != nil {
		return xerrors.Errorf("writing %s: %w", s.Path, err)
	}
	return nil
}
