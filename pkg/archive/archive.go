// Package archive exports a local snapshot of the project as a compressed
// tarball, honoring the same ignore rules as the transfer. The archive lands
// next to nothing remote: it is a purely local artifact for users who want an
// offline copy alongside the push.
package archive

import (
	"archive/tar"
	"bufio"
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
	"github.com/klauspost/pgzip"

	"github.com/pushback-tool/pushback/pkg/buildinfo"
	"github.com/pushback-tool/pushback/pkg/ignore"
	"github.com/pushback-tool/pushback/pkg/plog"
	"github.com/pushback-tool/pushback/pkg/util"
)

// ioBufferSize is the copy buffer for file reads. 256KB keeps syscall
// overhead low without hogging memory.
const ioBufferSize = 256 * 1024

// Writer produces project archives.
type Writer struct {
	format Format
	dryRun bool
}

// NewWriter creates a Writer for the given format.
func NewWriter(format Format, dryRun bool) *Writer {
	return &Writer{format: format, dryRun: dryRun}
}

// Create archives the tree under sourcePath into archivePath, skipping
// everything the rule set excludes. The archive is written to a temp file in
// the destination directory and renamed into place, so a failed run never
// leaves a half-written archive under the final name.
func (w *Writer) Create(ctx context.Context, sourcePath, archivePath string, rules *ignore.RuleSet) (retErr error) {
	if w.dryRun {
		plog.Notice("[DRY RUN] ARCHIVE", "source", sourcePath, "target", archivePath)
		return nil
	}
	plog.Notice("ARCHIVE", "source", sourcePath, "target", archivePath)

	if err := os.MkdirAll(filepath.Dir(archivePath), util.UserWritableDirPerms); err != nil {
		return fmt.Errorf("failed to create archive directory: %w", err)
	}

	tmpFile, err := os.CreateTemp(filepath.Dir(archivePath), buildinfo.Name+"-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp archive: %w", err)
	}
	tmpPath := tmpFile.Name()

	defer func() {
		if retErr != nil {
			tmpFile.Close()
			os.Remove(tmpPath)
		}
	}()

	if err := w.writeArchive(ctx, tmpFile, sourcePath, rules); err != nil {
		return err
	}

	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, archivePath); err != nil {
		return fmt.Errorf("failed to rename temp archive to final path: %w", err)
	}
	return nil
}

func (w *Writer) writeArchive(ctx context.Context, dst io.Writer, sourcePath string, rules *ignore.RuleSet) (retErr error) {
	bufWriter := bufio.NewWriterSize(dst, ioBufferSize)

	var compressedWriter io.WriteCloser
	switch w.format {
	case TarZst:
		zstdWriter, err := zstd.NewWriter(bufWriter)
		if err != nil {
			return fmt.Errorf("failed to create zstd writer: %w", err)
		}
		compressedWriter = zstdWriter
	default:
		pgzipWriter, err := pgzip.NewWriterLevel(bufWriter, pgzip.DefaultCompression)
		if err != nil {
			return fmt.Errorf("failed to create gzip writer: %w", err)
		}
		compressedWriter = pgzipWriter
	}

	tarWriter := tar.NewWriter(compressedWriter)

	defer func() {
		if err := tarWriter.Close(); err != nil && retErr == nil {
			retErr = fmt.Errorf("tar writer close failed: %w", err)
		}
		if err := compressedWriter.Close(); err != nil && retErr == nil {
			retErr = fmt.Errorf("compressed writer close failed: %w", err)
		}
		if err := bufWriter.Flush(); err != nil && retErr == nil {
			retErr = fmt.Errorf("buffer flush failed: %w", err)
		}
	}()

	buf := make([]byte, ioBufferSize)

	return filepath.WalkDir(sourcePath, func(absPath string, d fs.DirEntry, walkErr error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if walkErr != nil {
			return walkErr
		}
		if absPath == sourcePath {
			return nil
		}

		rel, err := filepath.Rel(sourcePath, absPath)
		if err != nil {
			return fmt.Errorf("failed to get relative path for %s: %w", absPath, err)
		}
		rel = util.NormalizePath(rel)

		if d.IsDir() {
			if rules.Match(rel, true) == ignore.Excluded && !rules.MayReincludeWithin(rel) {
				return filepath.SkipDir
			}
			return nil
		}
		if rules.Match(rel, false) == ignore.Excluded {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return fmt.Errorf("failed to get file info for %s: %w", absPath, err)
		}

		if info.Mode()&os.ModeSymlink != 0 {
			linkTarget, err := os.Readlink(absPath)
			if err != nil {
				return fmt.Errorf("failed to read link %s: %w", absPath, err)
			}
			header, err := tar.FileInfoHeader(info, linkTarget)
			if err != nil {
				return fmt.Errorf("failed to create tar header for %s: %w", rel, err)
			}
			header.Name = rel
			return tarWriter.WriteHeader(header)
		}
		if !info.Mode().IsRegular() {
			return nil
		}

		plog.Debug("ADD", "file", rel)

		header, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return fmt.Errorf("failed to create tar header for %s: %w", rel, err)
		}
		header.Name = rel
		if err := tarWriter.WriteHeader(header); err != nil {
			return fmt.Errorf("failed to write tar header for %s: %w", rel, err)
		}

		file, err := os.Open(absPath)
		if err != nil {
			return fmt.Errorf("failed to open file %s: %w", absPath, err)
		}
		defer file.Close()

		if _, err := io.CopyBuffer(tarWriter, file, buf); err != nil {
			return fmt.Errorf("failed to archive %s: %w", rel, err)
		}
		return nil
	})
}
