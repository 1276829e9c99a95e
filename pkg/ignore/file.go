package ignore

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// ProjectIgnoreFileName is the per-project pattern file expected in the
// root of the folder being backed up.
const ProjectIgnoreFileName = ".backupignore"

// DefaultExcludes is the built-in safety net of patterns that are always
// compiled ahead of the global and project sources. They cover VCS metadata,
// editor state, package caches, and build output.
var DefaultExcludes = []string{
	"/.git/",
	"/.hg/",
	"/.svn/",
	"/.DS_Store",
	"/.idea/",
	"/.vscode/",
	"/.cache/",
	"/.mypy_cache/",
	"/.pytest_cache/",
	"/__pycache__/",
	"/*.pyc",
	"/.tox/",
	"/.venv/",
	"/venv/",
	"/env/",
	"/.poetry/",
	"/.poetry-cache/",
	"/*.egg-info/",
	"/dist/",
	"/build/",
	"/coverage/",
	"/node_modules/",
	"/.pnpm-store/",
	"/.yarn/*",
	"/.eslintcache",
	"/.turbo/",
	"/.next/",
	"/.vercel/",
	"/.out/",
	"/target/",
	"/Cargo.lock",
	"/*.log",
}

// ParseReader reads pattern lines from r. Blank lines and '#' comments are
// skipped; everything else is returned verbatim for later compilation, so
// the caller sees parse failures with their source attached.
func ParseReader(r io.Reader) ([]string, error) {
	var patterns []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading ignore patterns: %w", err)
	}
	return patterns, nil
}

// LoadFile reads pattern lines from a file on disk. A missing file is not an
// error; it simply contributes no patterns (the caller may warn about it).
func LoadFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening ignore file %s: %w", path, err)
	}
	defer f.Close()

	patterns, err := ParseReader(f)
	if err != nil {
		return nil, fmt.Errorf("parsing ignore file %s: %w", path, err)
	}
	return patterns, nil
}

// AppendToFile appends patterns to a pattern file with an attribution
// comment, creating the file if needed. Used to persist large-file
// exclusions chosen during a run.
func AppendToFile(path, comment string, patterns []string) error {
	if len(patterns) == 0 {
		return nil
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("opening ignore file %s for append: %w", path, err)
	}
	defer f.Close()

	var b strings.Builder
	b.WriteString("\n# " + comment + "\n")
	for _, p := range patterns {
		b.WriteString(p + "\n")
	}
	if _, err := f.WriteString(b.String()); err != nil {
		return fmt.Errorf("appending to ignore file %s: %w", path, err)
	}
	return nil
}
