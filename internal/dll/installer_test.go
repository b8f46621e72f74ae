package dll

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/briehq/brie"
)

// writeFakeWine installs a shell script standing in for the wine binary.
// Every invocation appends its argv to logPath; a "regedit <file>"
// invocation additionally appends the contents of <file>, so a test can
// assert both that regedit was called and what it was asked to import.
func writeFakeWine(t *testing.T, logPath string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "wine")
	script := "#!/bin/sh\n" +
		"echo \"$@\" >> \"" + logPath + "\"\n" +
		"if [ \"$1\" = \"regedit\" ]; then cat \"$2\" >> \"" + logPath + "\"; fi\n" +
		"exit 0\n"
	if err := os.WriteFile(path, []byte(script), 0755); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

// writeLibraryDir lays out a fake dxvk release matching matrix[brie.Dxvk],
// so copyDLL has real files to copy from.
func writeLibraryDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	for _, sub := range []string{"x64", "x32"} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0755); err != nil {
			t.Fatalf("MkdirAll: %v", err)
		}
	}
	for _, fn := range matrix[brie.Dxvk].x64.files {
		if err := os.WriteFile(filepath.Join(dir, "x64", fn), []byte(fn), 0644); err != nil {
			t.Fatalf("WriteFile: %v", err)
		}
	}
	for _, fn := range matrix[brie.Dxvk].x86.files {
		if err := os.WriteFile(filepath.Join(dir, "x32", fn), []byte(fn), 0644); err != nil {
			t.Fatalf("WriteFile: %v", err)
		}
	}
	return dir
}

func TestInstallCopiesDLLsAndAppliesOverrides(t *testing.T) {
	prefixDir := t.TempDir()
	logPath := filepath.Join(t.TempDir(), "wine.log")
	in := Installer{WineBin: writeFakeWine(t, logPath)}
	libDir := writeLibraryDir(t)
	cacheDirs := map[brie.Library]string{brie.Dxvk: libDir}
	libs := []brie.LibraryVersion{{Library: brie.Dxvk, Version: brie.Latest}}

	if _, err := in.Install(prefixDir, libs, cacheDirs); err != nil {
		t.Fatalf("Install: %v", err)
	}

	for _, fn := range matrix[brie.Dxvk].x64.files {
		dest := filepath.Join(prefixDir, system32, strings.TrimSuffix(fn, ".so"))
		if _, err := os.Stat(dest); err != nil {
			t.Errorf("expected %s to exist: %v", dest, err)
		}
	}
	for _, fn := range matrix[brie.Dxvk].x86.files {
		dest := filepath.Join(prefixDir, syswow64, strings.TrimSuffix(fn, ".so"))
		if _, err := os.Stat(dest); err != nil {
			t.Errorf("expected %s to exist: %v", dest, err)
		}
	}

	log, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("ReadFile log: %v", err)
	}
	if !strings.Contains(string(log), "regedit") {
		t.Errorf("wine log = %q, want a regedit invocation", log)
	}
	if !strings.Contains(string(log), `[HKEY_CURRENT_USER\Software\Wine\DllOverrides]`) {
		t.Errorf("wine log = %q, want the imported .reg contents", log)
	}
	for _, fn := range matrix[brie.Dxvk].x64.files {
		stem := stemOf(fn)
		if !strings.Contains(string(log), fmt.Sprintf(`"%s"="native"`, stem)) {
			t.Errorf("wine log missing override entry for %s", stem)
		}
	}
	if _, err := os.Stat(filepath.Join(prefixDir, "dlls.reg")); !os.IsNotExist(err) {
		t.Errorf("dlls.reg should have been removed after import, stat err = %v", err)
	}

	overrides, err := os.ReadFile(overridesPath(prefixDir))
	if err != nil {
		t.Fatalf("ReadFile overrides: %v", err)
	}
	for _, fn := range matrix[brie.Dxvk].x64.files {
		if !strings.Contains(string(overrides), stemOf(fn)+"\n") {
			t.Errorf("overrides ledger missing %s", stemOf(fn))
		}
	}

	// S5: a second Install with the same libraries must not re-invoke
	// wine, since every override is already on the ledger.
	logBefore, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("ReadFile log: %v", err)
	}
	if _, err := in.Install(prefixDir, libs, cacheDirs); err != nil {
		t.Fatalf("second Install: %v", err)
	}
	logAfter, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("ReadFile log: %v", err)
	}
	if string(logBefore) != string(logAfter) {
		t.Errorf("second Install re-invoked wine: before %q, after %q", logBefore, logAfter)
	}
}

func TestInstallPrependsNvidiaLibsWineDllPath(t *testing.T) {
	prefixDir := t.TempDir()
	logPath := filepath.Join(t.TempDir(), "wine.log")
	in := Installer{WineBin: writeFakeWine(t, logPath)}

	libDir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(libDir, "lib64/wine/x86_64-unix"), 0755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.MkdirAll(filepath.Join(libDir, "lib/wine/i386-unix"), 0755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	for _, f := range []string{"lib64/wine/x86_64-unix/nvcuda.dll.so", "lib64/wine/x86_64-unix/nvoptix.dll.so", "lib/wine/i386-unix/nvcuda.dll.so"} {
		if err := os.WriteFile(filepath.Join(libDir, f), []byte("bin"), 0644); err != nil {
			t.Fatalf("WriteFile: %v", err)
		}
	}

	result, err := in.Install(prefixDir, []brie.LibraryVersion{{Library: brie.NvidiaLibs, Version: brie.Latest}}, map[brie.Library]string{brie.NvidiaLibs: libDir})
	if err != nil {
		t.Fatalf("Install: %v", err)
	}
	want := filepath.Join(libDir, "lib64/wine")
	if len(result.WineDllPathPrefixes) != 1 || result.WineDllPathPrefixes[0] != want {
		t.Errorf("WineDllPathPrefixes = %v, want [%s]", result.WineDllPathPrefixes, want)
	}
}

func TestDestSubdir(t *testing.T) {
	if got := destSubdir(X64); got != system32 {
		t.Errorf("destSubdir(X64) = %q, want %q", got, system32)
	}
	if got := destSubdir(X86); got != syswow64 {
		t.Errorf("destSubdir(X86) = %q, want %q", got, syswow64)
	}
}

func TestCopyDLLStripsSoSuffixAndReturnsStem(t *testing.T) {
	src := filepath.Join(t.TempDir(), "nvcuda.dll.so")
	if err := os.WriteFile(src, []byte("binary"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	destDir := t.TempDir()

	stem, err := copyDLL(src, destDir, "nvcuda.dll.so")
	if err != nil {
		t.Fatalf("copyDLL: %v", err)
	}
	if stem != "nvcuda" {
		t.Errorf("stem = %q, want %q", stem, "nvcuda")
	}

	got, err := os.ReadFile(filepath.Join(destDir, "nvcuda.dll"))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(got) != "binary" {
		t.Errorf("content = %q, want %q", got, "binary")
	}
}

func TestCopyDLLRemovesStaleSymlinkFirst(t *testing.T) {
	src := filepath.Join(t.TempDir(), "d3d11.dll")
	if err := os.WriteFile(src, []byte("new"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	destDir := t.TempDir()
	dest := filepath.Join(destDir, "d3d11.dll")
	if err := os.Symlink("/nonexistent", dest); err != nil {
		t.Fatalf("Symlink: %v", err)
	}

	if _, err := copyDLL(src, destDir, "d3d11.dll"); err != nil {
		t.Fatalf("copyDLL: %v", err)
	}

	fi, err := os.Lstat(dest)
	if err != nil {
		t.Fatalf("Lstat: %v", err)
	}
	if fi.Mode()&os.ModeSymlink != 0 {
		t.Error("destination is still a symlink after copyDLL")
	}
}

func TestMatrixCoversEveryInstallableLibrary(t *testing.T) {
	for _, lib := range []brie.Library{brie.Dxvk, brie.DxvkGplAsync, brie.DxvkNvapi, brie.Vkd3dProton, brie.NvidiaLibs} {
		if _, ok := matrix[lib]; !ok {
			t.Errorf("matrix has no entry for %s", lib)
		}
	}
}
