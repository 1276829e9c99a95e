// Package state persists a small run history: the outcome of the last push
// per remote and target directory. The history powers the status listing and
// lets a later run show when a target was last touched; losing it is
// harmless, the remote stays the source of truth.
package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/pushback-tool/pushback/pkg/buildinfo"
	"github.com/pushback-tool/pushback/pkg/util"
)

// storeOpenTimeout caps the wait for the bolt file lock so a concurrent run
// fails fast instead of hanging.
const storeOpenTimeout = 5 * time.Second

var runsBucket = []byte("runs")

// Run records the outcome of one push to one remote target.
type Run struct {
	Remote     string    `json:"remote"`
	Target     string    `json:"target"`
	LocalPath  string    `json:"localPath"`
	Mode       string    `json:"mode"`
	DryRun     bool      `json:"dryRun"`
	Success    bool      `json:"success"`
	FinishedAt time.Time `json:"finishedAt"`
}

// Store wraps a bolt database holding the run history.
type Store struct {
	db *bolt.DB
}

// DefaultPath returns the state database location next to the config file.
func DefaultPath() string {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			home = "."
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, buildinfo.Name, "state.db")
}

// Open opens (or creates) the state database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), util.PrivateDirPerms); err != nil {
		return nil, fmt.Errorf("creating state directory: %w", err)
	}

	db, err := bolt.Open(path, util.PrivateFilePerms, &bolt.Options{Timeout: storeOpenTimeout})
	if err != nil {
		return nil, fmt.Errorf("opening state db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(runsBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing state db: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// runKey identifies a run record by remote and target directory name.
func runKey(remote, target string) []byte {
	return []byte(remote + "/" + target)
}

// RecordRun stores the outcome of a push, replacing any earlier record for
// the same remote and target.
func (s *Store) RecordRun(run Run) error {
	data, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("marshaling run record: %w", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(runsBucket).Put(runKey(run.Remote, run.Target), data)
	})
}

// LastRun returns the most recent recorded push for a remote target. The
// second return value is false when no push was ever recorded.
func (s *Store) LastRun(remote, target string) (Run, bool, error) {
	var run Run
	found := false

	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(runsBucket).Get(runKey(remote, target))
		if v == nil {
			return nil
		}
		found = true
		return json.Unmarshal(v, &run)
	})
	return run, found, err
}

// Runs returns every recorded run in key order.
func (s *Store) Runs() ([]Run, error) {
	var runs []Run
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(runsBucket).ForEach(func(k, v []byte) error {
			var run Run
			if err := json.Unmarshal(v, &run); err != nil {
				return fmt.Errorf("corrupt run record %q: %w", k, err)
			}
			runs = append(runs, run)
			return nil
		})
	})
	return runs, err
}
