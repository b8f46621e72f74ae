// Package dll installs graphics-translation-library DLLs into a wine
// prefix and reconciles the registry override ledger that tells wine to
// prefer them over its built-in stubs (spec.md §4.7).
package dll

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"golang.org/x/xerrors"

	"github.com/briehq/brie"
)

// copySpec is one (source subdir, filenames) pair for one architecture.
type copySpec struct {
	sourceDir string
	files     []string
}

// matrix is the fixed per-library DLL copy table (spec §4.7's table).
var matrix = map[brie.Library]struct {
	x64 copySpec
	x86 copySpec
}{
	brie.Dxvk: {
		x64: copySpec{"x64", []string{"d3d9.dll", "d3d10core.dll", "d3d11.dll", "dxgi.dll"}},
		x86: copySpec{"x32", []string{"d3d9.dll", "d3d10core.dll", "d3d11.dll", "dxgi.dll"}},
	},
	brie.DxvkGplAsync: {
		x64: copySpec{"x64", []string{"d3d9.dll", "d3d10core.dll", "d3d11.dll", "dxgi.dll"}},
		x86: copySpec{"x32", []string{"d3d9.dll", "d3d10core.dll", "d3d11.dll", "dxgi.dll"}},
	},
	brie.DxvkNvapi: {
		x64: copySpec{"x64", []string{"nvapi64.dll"}},
		x86: copySpec{"x32", []string{"nvapi.dll"}},
	},
	brie.Vkd3dProton: {
		x64: copySpec{"x64", []string{"d3d12.dll", "d3d12core.dll"}},
		x86: copySpec{"x86", []string{"d3d12.dll", "d3d12core.dll"}},
	},
	brie.NvidiaLibs: {
		x64: copySpec{"lib64/wine/x86_64-unix", []string{"nvcuda.dll.so", "nvoptix.dll.so"}},
		x86: copySpec{"lib/wine/i386-unix", []string{"nvcuda.dll.so"}},
	},
}

const (
	system32  = "drive_c/windows/system32"
	syswow64  = "drive_c/windows/syswow64"
	nvidiaLib = "libGLX_nvidia.so.0"
)

// Installed is the result of a successful Install: any WINEDLLPATH
// prefixes that must be prepended to the child environment (spec §4.7:
// "when NvidiaLibs is installed, prepend <libdir>/lib64/wine").
type Installed struct {
	WineDllPathPrefixes []string
}

// Installer installs DLLs for a Unit's resolved library set into a
// prefix. WineBin is used to invoke `wine regedit` for override
// reconciliation.
type Installer struct {
	Log     *slog.Logger
	WineBin string
}

// Install implements spec §4.7: copies each library's DLL matrix into the
// prefix in Unit map order, probes for system NVIDIA NGX DLLs, then
// reconciles <prefix>/.overrides and applies any new entries via the
// registry.
func (in Installer) Install(prefixDir string, libs []brie.LibraryVersion, cacheDirs map[brie.Library]string) (Installed, error) {
	var result Installed
	var newEntries []override

	for _, lv := range libs {
		spec, ok := matrix[lv.Library]
		if !ok {
			continue
		}
		libDir := cacheDirs[lv.Library]
		if libDir == "" {
			continue
		}

		for arch, cs := range map[Arch]copySpec{X64: spec.x64, X86: spec.x86} {
			destDir := filepath.Join(prefixDir, destSubdir(arch))
			for _, fn := range cs.files {
				entry, err := copyDLL(filepath.Join(libDir, cs.sourceDir, fn), destDir, fn)
				if err != nil {
					return Installed{}, xerrors.Errorf("installing %s for %s: %w", fn, lv.Library.Name(), err)
				}
				newEntries = append(newEntries, override{Arch: arch, Stem: entry})
			}
		}

		if lv.Library == brie.NvidiaLibs {
			result.WineDllPathPrefixes = append(result.WineDllPathPrefixes, filepath.Join(libDir, "lib64/wine"))
		}
	}

	if entries, err := in.installSystemNvngx(prefixDir); err != nil {
		in.logf("system NVIDIA NGX probe failed, skipping: %v", err)
	} else {
		newEntries = append(newEntries, entries...)
	}

	set, err := loadOverrides(overridesPath(prefixDir))
	if err != nil {
		return Installed{}, xerrors.Errorf("loading overrides: %w", err)
	}
	var toApply []override
	for _, e := range newEntries {
		if !set.has(e) {
			toApply = append(toApply, e)
			set.add(e)
		}
	}

	if len(toApply) > 0 {
		if err := in.applyOverrides(prefixDir, toApply); err != nil {
			return Installed{}, xerrors.Errorf("applying overrides: %w", err)
		}
		if err := appendOverrides(overridesPath(prefixDir), toApply); err != nil {
			return Installed{}, xerrors.Errorf("updating override ledger: %w", err)
		}
	}

	return result, nil
}

func overridesPath(prefixDir string) string {
	return filepath.Join(prefixDir, ".overrides")
}

func destSubdir(arch Arch) string {
	if arch == X64 {
		return system32
	}
	return syswow64
}

// copyDLL copies one DLL from src into destDir (stripping a trailing .so
// from the destination filename), removing any pre-existing symlink at
// the destination first, and returns the override stem it should
// register.
func copyDLL(src, destDir, filename string) (string, error) {
	destName := strings.TrimSuffix(filename, ".so")
	dest := filepath.Join(destDir, destName)

	if fi, err := os.Lstat(dest); err == nil && fi.Mode()&os.ModeSymlink != 0 {
		if err := os.Remove(dest); err != nil {
			return "", xerrors.Errorf("removing stale symlink %s: %w", dest, err)
		}
	}

	if err := os.MkdirAll(destDir, 0755); err != nil {
		return "", xerrors.Errorf("mkdir %s: %w", destDir, err)
	}
	if err := copyFile(src, dest); err != nil {
		return "", err
	}

	return stemOf(filename), nil
}

func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return xerrors.Errorf("opening %s: %w", src, err)
	}
	defer in.Close()

	fi, err := in.Stat()
	if err != nil {
		return xerrors.Errorf("stat %s: %w", src, err)
	}

	out, err := os.OpenFile(dest, os.O_RDWR|os.O_CREATE|os.O_TRUNC, fi.Mode().Perm())
	if err != nil {
		return xerrors.Errorf("creating %s: %w", dest, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return xerrors.Errorf("copying to %s: %w", dest, err)
	}
	return out.Close()
}

// installSystemNvngx probes for the system NVIDIA driver's Wine NGX DLLs
// (spec §4.7: "System NVIDIA NGX") and copies whichever of nvngx.dll /
// _nvngx.dll are present into the x64 system directory.
func (in Installer) installSystemNvngx(prefixDir string) ([]override, error) {
	dir, err := probeLibraryDir(nvidiaLib)
	if err != nil {
		return nil, err
	}

	wineDir := filepath.Join(dir, "nvidia", "wine")
	destDir := filepath.Join(prefixDir, system32)

	var entries []override
	for _, fn := range []string{"nvngx.dll", "_nvngx.dll"} {
		src := filepath.Join(wineDir, fn)
		if _, err := os.Stat(src); err != nil {
			continue
		}
		if err := os.MkdirAll(destDir, 0755); err != nil {
			return entries, xerrors.Errorf("mkdir %s: %w", destDir, err)
		}
		if err := copyFile(src, filepath.Join(destDir, fn)); err != nil {
			return entries, err
		}
		entries = append(entries, override{Arch: X64, Stem: stemOf(fn)})
	}
	return entries, nil
}

// applyOverrides writes all new stems into a single temporary .reg file
// and imports it with one `wine regedit <file>` invocation, with the
// interactive prompt-suppressing WINEDLLOVERRIDES set on that invocation
// only (spec §4.7). The temp file is removed on a best-effort basis
// afterward: its presence or absence doesn't affect correctness, since
// the override ledger is the source of truth, not the .reg file.
func (in Installer) applyOverrides(prefixDir string, entries []override) error {
	reg := filepath.Join(prefixDir, "dlls.reg")
	if err := os.WriteFile(reg, []byte(regFileContents(entries)), 0644); err != nil {
		return xerrors.Errorf("writing %s: %w", reg, err)
	}
	defer os.Remove(reg)

	cmd := exec.Command(in.WineBin, "regedit", reg)
	cmd.Env = append(os.Environ(),
		"WINEPREFIX="+prefixDir,
		"WINEDLLOVERRIDES=winemenubuilder.exe,mscoree,mshtml=",
	)
	cmd.Stdin = nil
	if out, err := cmd.CombinedOutput(); err != nil {
		return xerrors.Errorf("wine regedit %s: %w (%s)", reg, err, strings.TrimSpace(string(out)))
	}
	return nil
}

// regFileContents renders entries as a Windows .reg v5 file setting each
// stem to "native" under the DllOverrides key.
func regFileContents(entries []override) string {
	var b strings.Builder
	b.WriteString("Windows Registry Editor Version 5.00\n\n")
	b.WriteString(`[HKEY_CURRENT_USER\Software\Wine\DllOverrides]` + "\n")
	for _, e := range entries {
		b.WriteString(`"` + e.Stem + `"="native"` + "\n")
	}
	return b.String()
}

func (in Installer) logf(format string, args ...interface{}) {
	if in.Log == nil {
		return
	}
	in.Log.Warn(fmt.Sprintf(format, args...))
}
