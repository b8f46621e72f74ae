package prefix

import (
	"bufio"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/renameio"
	"golang.org/x/xerrors"

	"github.com/briehq/brie"
	"github.com/briehq/brie/internal/dll"
)

// Mount mirrors brie.Mount.
type Mount struct {
	Drive  byte
	Target string
}

// Prepare drives spec.md §4.10's PrefixPrepare sequence: init, winetricks,
// mounts, DLL install, before hooks, wineserver join. Invoked once per
// launch under the prefix's advisory lock.
type Prepare struct {
	Runner    Runner
	Installer dll.Installer
	Log       *slog.Logger
}

// Run executes the full sequence. cacheDirs maps each library in libs to
// its unpacked cache directory (from the CacheStore fan-out).
func (p Prepare) Run(libs []brie.LibraryVersion, cacheDirs map[brie.Library]string, mounts []Mount, winetricksVerbs []string, before [][]string) error {
	if err := p.initPrefix(); err != nil {
		return xerrors.Errorf("initializing prefix: %w", err)
	}
	if err := p.winetricks(winetricksVerbs); err != nil {
		return xerrors.Errorf("running winetricks: %w", err)
	}
	if err := p.mounts(mounts); err != nil {
		return xerrors.Errorf("configuring mounts: %w", err)
	}
	if _, err := p.Installer.Install(p.Runner.PrefixDir, libs, cacheDirs); err != nil {
		return xerrors.Errorf("installing DLLs: %w", err)
	}
	for _, argv := range before {
		if len(argv) == 0 {
			continue
		}
		if err := p.Runner.Run(p.Runner.PrefixDir, argv...); err != nil {
			return xerrors.Errorf("running before-hook %v: %w", argv, err)
		}
	}
	return p.Runner.Wineserver(p.Runner.PrefixDir)
}

// initPrefix is idempotent: a no-op once the prefix directory holds
// anything besides the .brie.lock file, which the pipeline creates before
// preparation starts (spec §4.11 step 7: "no-op if prefix exists").
func (p Prepare) initPrefix() error {
	if entries, err := os.ReadDir(p.Runner.PrefixDir); err == nil {
		for _, e := range entries {
			if e.Name() != ".brie.lock" {
				return nil
			}
		}
	}

	if err := os.MkdirAll(filepath.Dir(p.Runner.PrefixDir), 0755); err != nil {
		return xerrors.Errorf("mkdir %s: %w", filepath.Dir(p.Runner.PrefixDir), err)
	}
	if err := p.Runner.Wine(p.Runner.PrefixDir, "__INIT_PREFIX"); err != nil {
		return err
	}
	if err := p.Runner.Wineserver(p.Runner.PrefixDir); err != nil {
		return err
	}

	return p.purgeUserDirSymlinks()
}

// purgeUserDirSymlinks replaces the per-user-folder symlinks wine creates
// (pointing at $HOME) with empty directories, isolating the prefix from
// the real home directory (spec §4.10 step 1).
func (p Prepare) purgeUserDirSymlinks() error {
	usersDir := filepath.Join(p.Runner.PrefixDir, "drive_c", "users")
	userDirs, err := os.ReadDir(usersDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return xerrors.Errorf("reading %s: %w", usersDir, err)
	}

	for _, user := range userDirs {
		root := filepath.Join(usersDir, user.Name())
		entries, err := os.ReadDir(root)
		if err != nil {
			continue
		}
		for _, e := range entries {
			path := filepath.Join(root, e.Name())
			fi, err := os.Lstat(path)
			if err != nil || fi.Mode()&os.ModeSymlink == 0 {
				continue
			}
			if err := os.Remove(path); err != nil {
				return xerrors.Errorf("removing %s: %w", path, err)
			}
			if err := os.MkdirAll(path, 0755); err != nil {
				return xerrors.Errorf("recreating %s: %w", path, err)
			}
		}
	}
	return nil
}

func (p Prepare) winetricksPath() string {
	return filepath.Join(p.Runner.PrefixDir, ".winetricks")
}

// winetricks runs any requested verb not already on the append-only
// ledger, appending it to the ledger on success (spec §4.10 step 2).
func (p Prepare) winetricks(verbs []string) error {
	if len(verbs) == 0 {
		return nil
	}

	done, err := readLines(p.winetricksPath())
	if err != nil {
		return err
	}
	doneSet := map[string]bool{}
	for _, v := range done {
		doneSet[v] = true
	}

	winetricksBin := filepath.Join(p.Runner.BinDir, "winetricks")
	for _, verb := range verbs {
		if doneSet[verb] {
			continue
		}
		if err := p.Runner.Run(p.Runner.PrefixDir, winetricksBin, "-q", verb); err != nil {
			return xerrors.Errorf("verb %s: %w", verb, err)
		}
		if err := appendLine(p.winetricksPath(), verb); err != nil {
			return xerrors.Errorf("updating ledger for %s: %w", verb, err)
		}
	}
	return nil
}

// mounts ensures each drive-letter symlink under dosdevices points at its
// configured target, recreating it if it exists and points elsewhere
// (spec §4.10 step 3).
func (p Prepare) mounts(mounts []Mount) error {
	dosdevices := filepath.Join(p.Runner.PrefixDir, "dosdevices")
	if err := os.MkdirAll(dosdevices, 0755); err != nil {
		return xerrors.Errorf("mkdir %s: %w", dosdevices, err)
	}

	for _, m := range mounts {
		link := filepath.Join(dosdevices, string(m.Drive)+":")
		current, err := os.Readlink(link)
		if err == nil && current == m.Target {
			continue
		}
		if err == nil || !os.IsNotExist(err) {
			if err := os.Remove(link); err != nil && !os.IsNotExist(err) {
				return xerrors.Errorf("removing %s: %w", link, err)
			}
		}
		if err := os.Symlink(m.Target, link); err != nil {
			return xerrors.Errorf("linking %s -> %s: %w", link, m.Target, err)
		}
	}
	return nil
}

func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, xerrors.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	var lines []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	return lines, sc.Err()
}

func appendLine(path, line string) error {
	existing, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	var b strings.Builder
	b.Write(existing)
	if len(existing) > 0 && !strings.HasSuffix(string(existing), "\n") {
		b.WriteByte('\n')
	}
	b.WriteString(line)
	b.WriteByte('\n')
	return renameio.WriteFile(path, []byte(b.String()), 0644)
}
