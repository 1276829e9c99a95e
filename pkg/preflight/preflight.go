// Package preflight validates the local side of a run before any remote
// contact: the project folder must exist and, when a local archive is
// requested, its destination must be writable with enough free space. The
// checks are stateless apart from the write probe.
package preflight

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pushback-tool/pushback/pkg/buildinfo"
	"github.com/pushback-tool/pushback/pkg/util"
)

// CheckSourceAccessible validates that the project path exists and is a
// directory.
func CheckSourceAccessible(srcPath string) error {
	info, err := os.Stat(srcPath)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("project directory %s does not exist", srcPath)
		}
		return fmt.Errorf("cannot stat project directory %s: %w", srcPath, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("project path %s is not a directory", srcPath)
	}
	return nil
}

// CheckArchiveDirWritable ensures the archive destination can be created and
// is writable, by creating and deleting a probe file.
func CheckArchiveDirWritable(dir string) error {
	if err := os.MkdirAll(dir, util.UserWritableDirPerms); err != nil {
		return fmt.Errorf("failed to create archive directory %s: %w", dir, err)
	}

	probe := filepath.Join(dir, "."+buildinfo.Name+"-writetest.tmp")
	f, err := os.Create(probe)
	if err != nil {
		return fmt.Errorf("archive directory %s is not writable: %w", dir, err)
	}
	f.Close()
	_ = os.Remove(probe)
	return nil
}

// CheckFreeSpace verifies that the filesystem holding dir has at least
// requiredBytes available. A zero requirement passes without touching the
// filesystem.
func CheckFreeSpace(dir string, requiredBytes int64) error {
	if requiredBytes <= 0 {
		return nil
	}

	available, err := availableBytes(dir)
	if err != nil {
		return fmt.Errorf("cannot determine free space for %s: %w", dir, err)
	}
	if available < requiredBytes {
		return fmt.Errorf("not enough free space in %s: need %s, have %s",
			dir, util.ByteCount(requiredBytes), util.ByteCount(available))
	}
	return nil
}
