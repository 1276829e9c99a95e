// Package largefile flags oversized files before a transfer so the user can
// keep or drop them deliberately. Triage itself is pure; the tree scan that
// feeds it lives in Scan and honors the run's ignore rules so already-excluded
// files never surface.
package largefile

import (
	"io/fs"
	"path/filepath"
	"sort"

	"github.com/pushback-tool/pushback/pkg/ignore"
)

// File is one flagged candidate, identified by its slash-separated path
// relative to the backup root.
type File struct {
	Path string
	Size int64
}

// Result splits flagged files by how they were settled. Reviewed files await
// an external decision; AutoExcluded files are already converted into ad-hoc
// exclude rules.
type Result struct {
	Reviewed     []File
	AutoExcluded []File
}

// Triage flags every file at or above thresholdMB. In automation mode the
// flagged files land in AutoExcluded, otherwise they land in Reviewed for an
// interactive pass. A threshold of zero disables triage entirely.
func Triage(sizes map[string]int64, thresholdMB int64, auto bool) Result {
	if thresholdMB <= 0 {
		return Result{}
	}
	minBytes := thresholdMB * 1024 * 1024

	var flagged []File
	for path, size := range sizes {
		if size >= minBytes {
			flagged = append(flagged, File{Path: path, Size: size})
		}
	}
	sort.Slice(flagged, func(i, j int) bool { return flagged[i].Path < flagged[j].Path })

	if auto {
		return Result{AutoExcluded: flagged}
	}
	return Result{Reviewed: flagged}
}

// ExcludePatterns converts flagged files into anchored ignore patterns, one
// per file, suitable both for the ad-hoc rule source and for appending to the
// project ignore file.
func ExcludePatterns(files []File) []string {
	patterns := make([]string, 0, len(files))
	for _, f := range files {
		patterns = append(patterns, "/"+f.Path)
	}
	return patterns
}

// Scan walks the tree under root and reports the size of every file the rule
// set includes. Excluded directories are skipped wholesale unless a rule
// re-includes something beneath them, in which case the walk must descend.
func Scan(root string, rules *ignore.RuleSet) (map[string]int64, error) {
	sizes := make(map[string]int64)

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == root {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if rules.Match(rel, true) == ignore.Excluded && !rules.MayReincludeWithin(rel) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if rules.Match(rel, false) == ignore.Excluded {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		sizes[rel] = info.Size()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sizes, nil
}
