package lockfile

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func lockPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "app_deadbeef.lock")
}

func TestAcquireAndRelease(t *testing.T) {
	path := lockPath(t)

	lock, err := Acquire(context.Background(), path)
	if err != nil {
		t.Fatalf("first acquire failed: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("lock file missing after acquire: %v", err)
	}

	lock.Release()
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("lock file must be removed on release")
	}

	// Double release is a no-op.
	lock.Release()

	again, err := Acquire(context.Background(), path)
	if err != nil {
		t.Fatalf("re-acquire after release failed: %v", err)
	}
	again.Release()
}

func TestAcquireHeldLock(t *testing.T) {
	path := lockPath(t)

	lock, err := Acquire(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	defer lock.Release()

	_, err = Acquire(context.Background(), path)
	var active *ErrLockActive
	if !errors.As(err, &active) {
		t.Fatalf("second acquire error = %v, want *ErrLockActive", err)
	}
	if active.PID != int64(os.Getpid()) {
		t.Errorf("reported holder PID = %d, want %d", active.PID, os.Getpid())
	}
}

func TestAcquireTakesOverStaleLock(t *testing.T) {
	path := lockPath(t)

	stale := Content{
		PID:        99999,
		Hostname:   "elsewhere",
		LastUpdate: time.Now().UTC().Add(-staleTimeout - time.Minute),
	}
	data, err := json.Marshal(stale)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatal(err)
	}

	lock, err := Acquire(context.Background(), path)
	if err != nil {
		t.Fatalf("stale lock must be taken over, got %v", err)
	}
	defer lock.Release()

	content, err := readContent(path)
	if err != nil {
		t.Fatal(err)
	}
	if content.PID != int64(os.Getpid()) {
		t.Errorf("lock holder after takeover = %d, want this process", content.PID)
	}
}

func TestAcquireTakesOverCorruptLock(t *testing.T) {
	path := lockPath(t)
	if err := os.WriteFile(path, []byte("not json"), 0o600); err != nil {
		t.Fatal(err)
	}

	lock, err := Acquire(context.Background(), path)
	if err != nil {
		t.Fatalf("corrupt lock must be taken over, got %v", err)
	}
	lock.Release()
}

func TestDefaultPathUsesConfigDir(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg")

	got := DefaultPath("app_deadbeef")
	want := filepath.Join("/tmp/xdg", "pushback", "locks", "app_deadbeef.lock")
	if got != want {
		t.Errorf("DefaultPath = %q, want %q", got, want)
	}
}
