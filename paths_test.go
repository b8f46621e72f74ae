package brie

import (
	"path/filepath"
	"testing"
)

func TestPathsLayout(t *testing.T) {
	p := New("/home/player/.local/share/brie")

	checks := []struct {
		name string
		got  string
		want string
	}{
		{"Libraries", p.Libraries, "/home/player/.local/share/brie/libraries"},
		{"Prefixes", p.Prefixes, "/home/player/.local/share/brie/prefixes"},
		{"BinDir", p.BinDir(), filepath.Join(p.Libraries, ".bin")},
		{"StateFile", p.StateFile(), filepath.Join(p.Libraries, ".state")},
		{"LibrariesLock", p.LibrariesLock(), filepath.Join(p.Libraries, ".brie.lock")},
		{"LibraryDir", p.LibraryDir("dxvk"), filepath.Join(p.Libraries, "dxvk")},
		{"PrefixDir", p.PrefixDir("my-game"), filepath.Join(p.Prefixes, "my-game")},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %q, want %q", c.name, c.got, c.want)
		}
	}
}
