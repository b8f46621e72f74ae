package cache

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDirGuardRemovesOnFailure(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "dest")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}

	g := newDirGuard(dir)
	g.Close()

	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Errorf("Stat(%s) after failed guard = %v, want IsNotExist", dir, err)
	}
}

func TestDirGuardKeepsOnSuccess(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "dest")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}

	g := newDirGuard(dir)
	g.Success = true
	g.Close()

	if _, err := os.Stat(dir); err != nil {
		t.Errorf("Stat(%s) after successful guard: %v", dir, err)
	}
}
