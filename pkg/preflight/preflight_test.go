package preflight_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pushback-tool/pushback/pkg/preflight"
)

func TestCheckSourceAccessible(t *testing.T) {
	dir := t.TempDir()

	if err := preflight.CheckSourceAccessible(dir); err != nil {
		t.Errorf("existing directory failed: %v", err)
	}

	if err := preflight.CheckSourceAccessible(filepath.Join(dir, "missing")); err == nil {
		t.Error("missing directory must fail")
	}

	file := filepath.Join(dir, "file.txt")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := preflight.CheckSourceAccessible(file); err == nil {
		t.Error("plain file must fail")
	}
}

func TestCheckArchiveDirWritable(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "archive")

	if err := preflight.CheckArchiveDirWritable(dir); err != nil {
		t.Fatalf("writable dir failed: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("probe file left behind: %v", entries)
	}
}

func TestCheckFreeSpace(t *testing.T) {
	dir := t.TempDir()

	if err := preflight.CheckFreeSpace(dir, 0); err != nil {
		t.Errorf("zero requirement must pass: %v", err)
	}
	if err := preflight.CheckFreeSpace(dir, 1); err != nil {
		t.Errorf("one byte requirement should pass on a test filesystem: %v", err)
	}
	// More space than any filesystem exposes.
	if err := preflight.CheckFreeSpace(dir, 1<<62); err == nil {
		t.Error("absurd requirement must fail")
	}
}
