package prefix

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestReadLinesMissingFileIsEmpty(t *testing.T) {
	lines, err := readLines(filepath.Join(t.TempDir(), "nonexistent"))
	if err != nil {
		t.Fatalf("readLines: %v", err)
	}
	if lines != nil {
		t.Errorf("readLines on missing file = %v, want nil", lines)
	}
}

func TestAppendLineThenReadLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".winetricks")

	for _, verb := range []string{"vcrun2019", "corefonts"} {
		if err := appendLine(path, verb); err != nil {
			t.Fatalf("appendLine(%q): %v", verb, err)
		}
	}

	got, err := readLines(path)
	if err != nil {
		t.Fatalf("readLines: %v", err)
	}
	want := []string{"vcrun2019", "corefonts"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("readLines mismatch (-want +got):\n%s", diff)
	}
}

func TestWinetricksSkipsAlreadyDoneVerbs(t *testing.T) {
	prefixDir := t.TempDir()
	p := Prepare{Runner: Runner{PrefixDir: prefixDir, BinDir: filepath.Join(prefixDir, "bin")}}

	if err := appendLine(p.winetricksPath(), "corefonts"); err != nil {
		t.Fatalf("appendLine: %v", err)
	}

	// winetricks would try to exec a nonexistent binary for any verb not
	// already on the ledger; passing only the already-done verb proves the
	// skip path never shells out.
	if err := p.winetricks([]string{"corefonts"}); err != nil {
		t.Fatalf("winetricks: %v", err)
	}
}

func TestMountsCreatesAndUpdatesSymlinks(t *testing.T) {
	prefixDir := t.TempDir()
	p := Prepare{Runner: Runner{PrefixDir: prefixDir}}

	if err := p.mounts([]Mount{{Drive: 'r', Target: "/mnt/games"}}); err != nil {
		t.Fatalf("mounts: %v", err)
	}

	link := filepath.Join(prefixDir, "dosdevices", "r:")
	target, err := os.Readlink(link)
	if err != nil {
		t.Fatalf("Readlink: %v", err)
	}
	if target != "/mnt/games" {
		t.Errorf("target = %q, want %q", target, "/mnt/games")
	}

	// Re-pointing to a different target should replace the symlink.
	if err := p.mounts([]Mount{{Drive: 'r', Target: "/mnt/other"}}); err != nil {
		t.Fatalf("mounts (repoint): %v", err)
	}
	target, err = os.Readlink(link)
	if err != nil {
		t.Fatalf("Readlink after repoint: %v", err)
	}
	if target != "/mnt/other" {
		t.Errorf("target after repoint = %q, want %q", target, "/mnt/other")
	}
}

func TestPurgeUserDirSymlinksReplacesSymlinksWithDirs(t *testing.T) {
	prefixDir := t.TempDir()
	userDir := filepath.Join(prefixDir, "drive_c", "users", "steamuser")
	if err := os.MkdirAll(userDir, 0755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	realHome := filepath.Join(t.TempDir(), "home")
	if err := os.MkdirAll(realHome, 0755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	link := filepath.Join(userDir, "Desktop")
	if err := os.Symlink(realHome, link); err != nil {
		t.Fatalf("Symlink: %v", err)
	}

	p := Prepare{Runner: Runner{PrefixDir: prefixDir}}
	if err := p.purgeUserDirSymlinks(); err != nil {
		t.Fatalf("purgeUserDirSymlinks: %v", err)
	}

	fi, err := os.Lstat(link)
	if err != nil {
		t.Fatalf("Lstat: %v", err)
	}
	if fi.Mode()&os.ModeSymlink != 0 {
		t.Error("Desktop is still a symlink after purge")
	}
	if !fi.IsDir() {
		t.Error("Desktop should be a directory after purge")
	}
}

func TestPurgeUserDirSymlinksMissingUsersDirIsNoop(t *testing.T) {
	p := Prepare{Runner: Runner{PrefixDir: t.TempDir()}}
	if err := p.purgeUserDirSymlinks(); err != nil {
		t.Errorf("purgeUserDirSymlinks on prefix with no users dir: %v", err)
	}
}
