// Package prefix constructs the child-process environment for a wine
// prefix and drives the one-time preparation sequence (init, winetricks,
// mounts, DLL install, before-hooks) under the prefix's advisory lock
// (spec.md §4.9, §4.10).
package prefix

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Runner builds the environment a wine invocation runs under and spawns
// processes inside a prefix (spec §4.9).
type Runner struct {
	WineBin         string
	WineDir         string // directory containing WineBin
	BinDir          string // libraries/.bin, appended to PATH
	PrefixDir       string // absolute prefixes/<sanitized prefix>
	UserEnv         []EnvVar
	WineDllPathDirs []string // per-library mutations, e.g. NvidiaLibs' lib64/wine
}

// EnvVar mirrors brie.EnvVar to avoid an import of the root package
// purely for a two-field struct; Pipeline converts at the boundary.
type EnvVar struct {
	Name  string
	Value string
}

// env builds the full child-process environment, applying the core's
// fixed keys first so user-set values always win for keys the user
// actually specified (spec §4.9).
func (r Runner) env() []string {
	base := map[string]string{
		"PATH":             r.path(),
		"WINEPREFIX":       r.PrefixDir,
		"WINEDLLOVERRIDES": "winemenubuilder.exe=",
	}
	if dllPath := strings.Join(r.WineDllPathDirs, ":"); dllPath != "" {
		base["WINEDLLPATH"] = dllPath
	}

	inherited := os.Environ()
	result := make([]string, 0, len(inherited)+len(base)+len(r.UserEnv))

	set := map[string]bool{}
	for k := range base {
		set[k] = false
	}

	for _, kv := range inherited {
		name, _, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		if v, isCore := base[name]; isCore {
			result = append(result, name+"="+v)
			set[name] = true
			continue
		}
		result = append(result, kv)
	}
	for k, v := range base {
		if !set[k] {
			result = append(result, k+"="+v)
		}
	}

	for _, kv := range r.UserEnv {
		result = append(result, kv.Name+"="+kv.Value)
	}
	return result
}

func (r Runner) path() string {
	parts := []string{r.WineDir, os.Getenv("PATH")}
	if r.BinDir != "" {
		parts = append(parts, r.BinDir)
	}
	return strings.Join(parts, ":")
}

// Command builds (but does not start) a child process: stdin is /dev/null,
// stdout/stderr are inherited, and the environment from env() is applied.
func (r Runner) Command(dir string, argv ...string) (*exec.Cmd, error) {
	if len(argv) == 0 {
		return nil, os.ErrInvalid
	}
	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Dir = dir
	cmd.Env = r.env()
	cmd.Stdin = nil
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd, nil
}

// Run is a convenience wrapper that blocks on exit status. A non-zero
// exit is not itself a pipeline error (spec §4.9): only a process-spawn
// failure is — the distinction exec.Cmd draws between Start and Wait.
func (r Runner) Run(dir string, argv ...string) error {
	cmd, err := r.Command(dir, argv...)
	if err != nil {
		return err
	}
	if err := cmd.Start(); err != nil {
		return err
	}
	_ = cmd.Wait()
	return nil
}

// Wine is a convenience for invoking the resolved wine binary itself.
func (r Runner) Wine(dir string, args ...string) error {
	return r.Run(dir, append([]string{r.WineBin}, args...)...)
}

// Wineserver waits for the background wine server to exit
// ("wineserver --wait", spec §4.9/§4.10 step 6, §4.11 steps 9/12).
func (r Runner) Wineserver(dir string) error {
	return r.Run(dir, filepath.Join(r.WineDir, "wineserver"), "--wait")
}
