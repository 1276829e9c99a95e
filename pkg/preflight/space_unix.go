//go:build !windows

package preflight

import "golang.org/x/sys/unix"

// availableBytes reports the space available to an unprivileged caller on
// the filesystem holding dir.
func availableBytes(dir string) (int64, error) {
	var stat unix.Statfs_t
	if err := unix.Statfs(dir, &stat); err != nil {
		return 0, err
	}
	return int64(stat.Bavail) * int64(stat.Bsize), nil
}
