// Package launch implements LaunchPipeline, the top-level orchestration
// that ties every other component together: cache fan-out under a
// process-wide lock, prefix preparation under a per-prefix lock, then the
// user's command (spec.md §4.11).
package launch

import (
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"golang.org/x/sync/errgroup"

	"github.com/briehq/brie"
	"github.com/briehq/brie/internal/cache"
	"github.com/briehq/brie/internal/dll"
	"github.com/briehq/brie/internal/download"
	"github.com/briehq/brie/internal/join"
	"github.com/briehq/brie/internal/prefix"
	"github.com/briehq/brie/internal/progress"
	"github.com/briehq/brie/internal/provider"
	"github.com/briehq/brie/internal/wineruntime"
)

// Pipeline is the core's single entry point: everything it needs to
// provision and run a Unit, rooted at one data directory.
type Pipeline struct {
	Paths    brie.Paths
	Tokens   provider.Tokens
	Log      *slog.Logger
	Reporter progress.Reporter
}

// New returns a Pipeline with a fresh HTTP client and a no-op reporter.
func New(paths brie.Paths, tokens provider.Tokens, log *slog.Logger) *Pipeline {
	if log == nil {
		log = slog.Default()
	}
	return &Pipeline{Paths: paths, Tokens: tokens, Log: log, Reporter: progress.Nop}
}

type libraryResult struct {
	Dir     string
	Updated bool
}

// Launch runs spec §4.11's full sequence for unit.
func (p *Pipeline) Launch(unit brie.Unit) error {
	if err := os.MkdirAll(p.Paths.Libraries, 0755); err != nil {
		return withPath(ErrLock, p.Paths.Libraries, err)
	}

	cacheLock := flock.New(p.Paths.LibrariesLock())
	if err := cacheLock.Lock(); err != nil {
		return withPath(ErrLock, p.Paths.LibrariesLock(), err)
	}

	store := cache.Store{
		Paths:    p.Paths,
		Download: download.New(),
		Tokens:   p.Tokens,
		Log:      p.Log,
		Reporter: p.Reporter,
	}
	states := cache.StateStore{Path: p.Paths.StateFile()}
	state := states.Load()

	runtimeResolver := wineruntime.Resolver{Cache: store}

	var wineLastChecked time.Time
	if state.Wine != nil {
		wineLastChecked = *state.Wine
	}

	runtimeState, winetricksPath, cabextractPath, libResults, err := p.fanOut(
		unit, store, runtimeResolver, state, wineLastChecked,
	)

	_ = cacheLock.Unlock()
	if err != nil {
		return err
	}

	now := time.Now()
	if runtimeState.Updated {
		state.Wine = &now
	}
	for _, lv := range unit.Libraries {
		if libResults[lv.Library].Updated {
			state.TouchLibrary(lv.Library, lv.Version, now)
		}
	}
	if err := states.Save(state); err != nil {
		p.Log.Warn("writing state failed", "error", err)
	}

	return p.prepareAndRun(unit, runtimeState, winetricksPath, cabextractPath, libResults)
}

// fanOut implements spec §4.11 step 3: a heterogeneous join of the
// runtime, winetricks, cabextract and per-library ensures, the last of
// which itself fans out over the library map.
func (p *Pipeline) fanOut(
	unit brie.Unit,
	store cache.Store,
	runtimeResolver wineruntime.Resolver,
	state *cache.State,
	wineLastChecked time.Time,
) (wineruntime.State, string, string, map[brie.Library]libraryResult, error) {
	runtimeState, winetricksPath, cabextractPath, libResults, err := join.Four(
		func() (wineruntime.State, error) {
			st, err := runtimeResolver.Resolve(unit.Runtime, wineLastChecked)
			return st, wrap(ErrRuntime, err)
		},
		func() (string, error) {
			path, err := store.EnsureWinetricks()
			return path, withPath(ErrLibraryDownload, p.Paths.BinDir(), err)
		},
		func() (string, error) {
			path, err := store.EnsureCabextract()
			return path, withPath(ErrLibraryDownload, p.Paths.BinDir(), err)
		},
		func() (map[brie.Library]libraryResult, error) {
			return p.ensureLibraries(unit.Libraries, store, state)
		},
	)
	return runtimeState, winetricksPath, cabextractPath, libResults, err
}

// ensureLibraries fans out across unit's library map (spec §4.11 step 3's
// inner parallelism); each entry writes only under its own
// libraries/<name>/<version>, so they never contend with each other.
func (p *Pipeline) ensureLibraries(libs []brie.LibraryVersion, store cache.Store, state *cache.State) (map[brie.Library]libraryResult, error) {
	results := make(map[brie.Library]libraryResult, len(libs))
	if len(libs) == 0 {
		return results, nil
	}

	var mu sync.Mutex
	var g errgroup.Group
	for _, lv := range libs {
		lv := lv
		g.Go(func() error {
			target := cache.Target{Name: lv.Library.Name()}
			resolver := provider.Route(lv.Library)

			var lastChecked time.Time
			if ts, ok := state.libraryUpdated(lv.Library, lv.Version); ok {
				lastChecked = ts
			}

			res, err := store.Ensure(target, lv.Version, resolver, lastChecked)
			if err != nil {
				return withLibrary(ErrLibraryDownload, lv.Library.Name(), err)
			}

			mu.Lock()
			results[lv.Library] = libraryResult{Dir: res.Path, Updated: res.Updated}
			mu.Unlock()
			return nil
		})
	}
	err := g.Wait()
	return results, err
}

// prepareAndRun implements spec §4.11 steps 6-12: construct the
// PrefixRunner, prepare the prefix under its lock (§4.10), then run the
// user command outside the lock and join the final wineserver.
func (p *Pipeline) prepareAndRun(
	unit brie.Unit,
	runtimeState wineruntime.State,
	winetricksPath, cabextractPath string,
	libResults map[brie.Library]libraryResult,
) error {
	_ = cabextractPath // reserved for winetricks verbs that shell out to it

	sanitized := brie.SanitizePrefix(unit.Prefix, "", "")
	prefixDir := p.Paths.PrefixDir(sanitized)

	cacheDirs := make(map[brie.Library]string, len(libResults))
	var wineDllPathDirs []string
	for lib, res := range libResults {
		cacheDirs[lib] = res.Dir
		if lib == brie.NvidiaLibs {
			wineDllPathDirs = append(wineDllPathDirs, filepath.Join(res.Dir, "lib64", "wine"))
		}
	}

	runner := prefix.Runner{
		WineBin:         runtimeState.Path,
		WineDir:         filepath.Dir(runtimeState.Path),
		BinDir:          p.Paths.BinDir(),
		PrefixDir:       prefixDir,
		UserEnv:         toPrefixEnv(unit.Env),
		WineDllPathDirs: wineDllPathDirs,
	}

	_ = winetricksPath // winetricks script lives in BinDir, resolved by prefix.Prepare

	prefixLock := flock.New(filepath.Join(prefixDir, ".brie.lock"))
	if err := os.MkdirAll(prefixDir, 0755); err != nil {
		return withPath(ErrPrefix, prefixDir, err)
	}
	if err := prefixLock.Lock(); err != nil {
		return withPath(ErrLock, prefixLock.Path(), err)
	}

	prep := prefix.Prepare{
		Runner:    runner,
		Installer: dll.Installer{Log: p.Log, WineBin: runtimeState.Path},
		Log:       p.Log,
	}
	err := prep.Run(unit.Libraries, cacheDirs, toPrefixMounts(unit.Mounts), unit.Winetricks, unit.Before)
	_ = prefixLock.Unlock()
	if err != nil {
		return wrap(ErrPrefix, err)
	}

	if len(unit.Command) == 0 {
		return nil
	}

	cd, err := p.commandDir(unit, prefixDir)
	if err != nil {
		return err
	}

	argv := append(append([]string{}, unit.Wrapper...), unit.Command...)
	if err := runner.Wine(cd, argv...); err != nil {
		return wrap(ErrRun, err)
	}

	if err := runner.Wineserver(prefixDir); err != nil {
		return wrap(ErrRun, err)
	}
	return nil
}

func (p *Pipeline) commandDir(unit brie.Unit, prefixDir string) (string, error) {
	if unit.Cd == "" {
		return filepath.Join(prefixDir, "drive_c"), nil
	}
	return expandShell(unit.Cd)
}

func toPrefixEnv(env []brie.EnvVar) []prefix.EnvVar {
	out := make([]prefix.EnvVar, len(env))
	for i, e := range env {
		out[i] = prefix.EnvVar{Name: e.Name, Value: e.Value}
	}
	return out
}

func toPrefixMounts(mounts []brie.Mount) []prefix.Mount {
	out := make([]prefix.Mount, len(mounts))
	for i, m := range mounts {
		out[i] = prefix.Mount{Drive: m.Drive, Target: m.Target}
	}
	return out
}
