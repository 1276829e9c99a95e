// Package lockfile serializes pushes of the same project. A lock file under
// the tool's config directory, keyed by the project's remote name, stops a
// second push from racing the first one to the same remote directories. A
// background heartbeat keeps the lock fresh so a crashed run can be taken
// over once its lock goes stale.
package lockfile

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/pushback-tool/pushback/pkg/buildinfo"
	"github.com/pushback-tool/pushback/pkg/plog"
	"github.com/pushback-tool/pushback/pkg/util"
)

// Content is the data written to the lock file.
type Content struct {
	PID        int64     `json:"pid"`
	Hostname   string    `json:"hostname"`
	LastUpdate time.Time `json:"lastUpdate"`
	// Nonce resolves takeover races: after seizing a stale lock, the writer
	// reads the file back and only wins if its own nonce survived.
	Nonce string `json:"nonce,omitempty"`
}

// ErrLockActive is returned when the lock is held by a live process.
type ErrLockActive struct {
	PID       int64
	Hostname  string
	TimeSince time.Duration
}

func (e *ErrLockActive) Error() string {
	return fmt.Sprintf("another push is running: PID %d on %q, last heartbeat %s ago",
		e.PID, e.Hostname, e.TimeSince.Truncate(time.Second))
}

// ErrLostRace is returned internally when another process wins a stale-lock
// takeover.
var ErrLostRace = errors.New("lost race during stale lock takeover")

// ErrCorruptLockFile indicates the lock file on disk is empty or unreadable.
var ErrCorruptLockFile = errors.New("lock file is corrupt or empty")

// These are vars so tests can shrink the timing.
var (
	heartbeatInterval = 30 * time.Second
	// A lock without a heartbeat for three intervals is considered dead.
	staleTimeout = 3 * heartbeatInterval
)

// Lock is a held lock file with a running heartbeat.
type Lock struct {
	path    string
	content Content

	ctx    context.Context
	cancel context.CancelFunc
	mu     sync.Mutex
	held   bool
}

// DefaultPath returns the lock file location for a remote target name,
// inside the tool's config directory.
func DefaultPath(target string) string {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			home = "."
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, buildinfo.Name, "locks", target+".lock")
}

// Acquire attempts to take the lock at path, creating parent directories as
// needed. It returns *ErrLockActive when a live process holds the lock, and
// takes over locks whose heartbeat has gone stale.
func Acquire(ctx context.Context, path string) (*Lock, error) {
	if err := os.MkdirAll(filepath.Dir(path), util.PrivateDirPerms); err != nil {
		return nil, fmt.Errorf("creating lock directory: %w", err)
	}

	// A few attempts cover races with a concurrent release or takeover.
	const maxAttempts = 3
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		lock, err := tryAcquire(path)
		if err == nil {
			go lock.heartbeat()
			return lock, nil
		}
		if !os.IsExist(err) {
			return nil, fmt.Errorf("failed to access lock file: %w", err)
		}

		// Someone holds it. Stale or corrupt locks are fair game.
		content, readErr := readContent(path)
		if readErr != nil {
			if !errors.Is(readErr, ErrCorruptLockFile) {
				time.Sleep(100 * time.Millisecond)
				continue
			}
			plog.Warn("Found corrupt lock file, treating as stale", "path", path)
		} else {
			elapsed := time.Since(content.LastUpdate)
			if elapsed < staleTimeout {
				return nil, &ErrLockActive{PID: content.PID, Hostname: content.Hostname, TimeSince: elapsed}
			}
			plog.Warn("Found stale lock, attempting takeover", "pid", content.PID, "age", elapsed)
		}

		lock, takeoverErr := takeover(path)
		if takeoverErr != nil {
			if errors.Is(takeoverErr, ErrLostRace) {
				plog.Debug("Lock takeover race lost, retrying")
			} else {
				plog.Warn("Lock takeover failed, retrying", "error", takeoverErr)
			}
			time.Sleep(100 * time.Millisecond)
			continue
		}
		go lock.heartbeat()
		return lock, nil
	}

	return nil, fmt.Errorf("failed to acquire lock after %d attempts", maxAttempts)
}

// Release stops the heartbeat and removes the lock file. Safe to call twice.
func (l *Lock) Release() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.held {
		return
	}
	l.cancel()
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		plog.Warn("Failed to remove lock file", "path", l.path, "error", err)
	}
	l.held = false
}

// tryAcquire creates the lock file atomically; O_EXCL guarantees only one
// creator wins.
func tryAcquire(path string) (*Lock, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, util.PrivateFilePerms)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	content, err := newContent()
	if err != nil {
		return nil, err
	}
	if err := writeContent(f, content); err != nil {
		os.Remove(path)
		return nil, err
	}
	return newLock(path, content), nil
}

// takeover seizes a stale or corrupt lock by atomically renaming fresh
// content over it, then reading back to verify this process won.
func takeover(path string) (*Lock, error) {
	content, err := newContent()
	if err != nil {
		return nil, err
	}
	if err := replaceAtomic(path, content); err != nil {
		return nil, err
	}

	readback, err := readContent(path)
	if err != nil {
		return nil, fmt.Errorf("reading back lock after takeover: %w", err)
	}
	if readback.PID != content.PID || readback.Nonce != content.Nonce {
		return nil, ErrLostRace
	}

	plog.Debug("Took over stale lock", "path", path)
	return newLock(path, content), nil
}

func newLock(path string, content Content) *Lock {
	ctx, cancel := context.WithCancel(context.Background())
	return &Lock{path: path, content: content, ctx: ctx, cancel: cancel, held: true}
}

func newContent() (Content, error) {
	hostname, err := os.Hostname()
	if err != nil {
		return Content{}, err
	}
	nonce := make([]byte, 16)
	if _, err := rand.Read(nonce); err != nil {
		return Content{}, fmt.Errorf("failed to generate nonce: %w", err)
	}
	return Content{
		PID:        int64(os.Getpid()),
		Hostname:   hostname,
		LastUpdate: time.Now().UTC(),
		Nonce:      fmt.Sprintf("%x", nonce),
	}, nil
}

func (l *Lock) heartbeat() {
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-l.ctx.Done():
			return
		case <-ticker.C:
			l.content.LastUpdate = time.Now().UTC()
			if err := replaceAtomic(l.path, l.content); err != nil {
				// Keep ticking; the next heartbeat may succeed.
				plog.Warn("Heartbeat failed to update lock file", "error", err)
			}
		}
	}
}

// replaceAtomic writes content to a temp file in the same directory and
// renames it over the lock, so the file at path is never seen half-written.
func replaceAtomic(path string, content Content) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp lock file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := writeContent(tmp, content); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp lock file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace lock file: %w", err)
	}
	return nil
}

func writeContent(w io.Writer, content Content) error {
	data, err := json.MarshalIndent(content, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal lock content: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write lock content: %w", err)
	}
	return nil
}

// readContent reads the lock file, retrying briefly around transient empty
// or partial states.
func readContent(path string) (Content, error) {
	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		data, err := os.ReadFile(path)
		if err != nil {
			return Content{}, err
		}
		if len(data) == 0 {
			lastErr = fmt.Errorf("lock file is empty")
			time.Sleep(50 * time.Millisecond)
			continue
		}

		var content Content
		if err := json.Unmarshal(data, &content); err != nil {
			lastErr = err
			time.Sleep(50 * time.Millisecond)
			continue
		}
		return content, nil
	}
	return Content{}, fmt.Errorf("%w: %v", ErrCorruptLockFile, lastErr)
}
