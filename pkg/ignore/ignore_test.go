package ignore_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pushback-tool/pushback/pkg/ignore"
)

func mustCompile(t *testing.T, global, project, adhoc []string) *ignore.RuleSet {
	t.Helper()
	rs, err := ignore.Compile(global, project, adhoc)
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	return rs
}

func TestMatchBasics(t *testing.T) {
	tests := []struct {
		name     string
		patterns []string
		path     string
		isDir    bool
		want     ignore.Verdict
	}{
		{"no rules includes", nil, "main.go", false, ignore.Included},
		{"basename glob", []string{"*.log"}, "debug.log", false, ignore.Excluded},
		{"basename glob nested", []string{"*.log"}, "logs/app/debug.log", false, ignore.Excluded},
		{"non-matching glob", []string{"*.log"}, "main.go", false, ignore.Included},
		{"anchored matches top level only", []string{"/*.log"}, "debug.log", false, ignore.Excluded},
		{"anchored skips nested", []string{"/*.log"}, "logs/debug.log", false, ignore.Included},
		{"bare name matches dir anywhere", []string{"node_modules"}, "web/node_modules", true, ignore.Excluded},
		{"bare name excludes dir contents", []string{"node_modules"}, "web/node_modules/lib/index.js", false, ignore.Excluded},
		{"dir-only pattern skips file", []string{"build/"}, "build", false, ignore.Included},
		{"dir-only pattern matches dir", []string{"build/"}, "build", true, ignore.Excluded},
		{"dir-only pattern excludes descendants", []string{"build/"}, "build/debug.log", false, ignore.Excluded},
		{"full-path pattern", []string{"docs/config.json"}, "docs/config.json", false, ignore.Excluded},
		{"full-path pattern wrong location", []string{"docs/config.json"}, "other/config.json", false, ignore.Included},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rs := mustCompile(t, tc.patterns, nil, nil)
			if got := rs.Match(tc.path, tc.isDir); got != tc.want {
				t.Errorf("Match(%q, dir=%v) = %v, want %v", tc.path, tc.isDir, got, tc.want)
			}
		})
	}
}

func TestReincludeInsideExcludedDirectory(t *testing.T) {
	rs := mustCompile(t, nil, []string{"build/", "!build/important.log"}, nil)

	if got := rs.Match("build/debug.log", false); got != ignore.Excluded {
		t.Errorf("sibling should stay excluded, got %v", got)
	}
	if got := rs.Match("build/important.log", false); got != ignore.Included {
		t.Errorf("re-included file should be included, got %v", got)
	}
}

func TestLastMatchWinsReExclude(t *testing.T) {
	rs := mustCompile(t, nil, []string{"*.log", "!keep.log", "*.log"}, nil)

	if got := rs.Match("keep.log", false); got != ignore.Excluded {
		t.Errorf("re-exclude after re-include should win, got %v", got)
	}
}

func TestReincludeWithoutPriorExcludeIsNoop(t *testing.T) {
	rs := mustCompile(t, nil, []string{"!keep.log"}, nil)

	// Never excluded in the first place; still included either way.
	if got := rs.Match("keep.log", false); got != ignore.Included {
		t.Errorf("got %v, want Included", got)
	}
	if got := rs.Match("other.log", false); got != ignore.Included {
		t.Errorf("unrelated path got %v, want Included", got)
	}
}

func TestSourceOrderGlobalThenProjectThenAdhoc(t *testing.T) {
	// The project file re-includes something the global rules excluded,
	// then an ad-hoc rule excludes it again. Ad-hoc comes last, so it wins.
	rs := mustCompile(t,
		[]string{"*.iso"},
		[]string{"!golden.iso"},
		[]string{"/golden.iso"},
	)

	if got := rs.Match("golden.iso", false); got != ignore.Excluded {
		t.Errorf("adhoc exclude must win over project re-include, got %v", got)
	}
}

func TestDefaultExcludesCompile(t *testing.T) {
	rs := mustCompile(t, ignore.DefaultExcludes, nil, nil)

	if got := rs.Match(".git/config", false); got != ignore.Excluded {
		t.Errorf(".git contents should be excluded, got %v", got)
	}
	if got := rs.Match("node_modules", true); got != ignore.Excluded {
		t.Errorf("node_modules should be excluded, got %v", got)
	}
	if got := rs.Match("src/main.go", false); got != ignore.Included {
		t.Errorf("source files should be included, got %v", got)
	}
}

func TestCompileRejectsMalformedPatterns(t *testing.T) {
	tests := []struct {
		name     string
		patterns []string
	}{
		{"bare negation", []string{"!"}},
		{"bare slash suffix negation", []string{"!/"}},
		{"unterminated class", []string{"[abc"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ignore.Compile(nil, tc.patterns, nil)
			if !errors.Is(err, ignore.ErrBadPattern) {
				t.Errorf("expected ErrBadPattern, got %v", err)
			}
		})
	}
}

func TestCompileSkipsCommentsAndBlanks(t *testing.T) {
	rs := mustCompile(t, nil, []string{"", "# comment", "   ", "*.tmp"}, nil)

	if rs.Len() != 1 {
		t.Errorf("expected 1 compiled rule, got %d", rs.Len())
	}
}

func TestParseReader(t *testing.T) {
	input := strings.NewReader("# header\n\nbuild/\n!build/keep.txt\n  \n# trailing\n*.log\n")

	patterns, err := ignore.ParseReader(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"build/", "!build/keep.txt", "*.log"}
	if len(patterns) != len(want) {
		t.Fatalf("got %v, want %v", patterns, want)
	}
	for i := range want {
		if patterns[i] != want[i] {
			t.Errorf("pattern %d: got %q, want %q", i, patterns[i], want[i])
		}
	}
}

func TestLoadFileMissingIsEmpty(t *testing.T) {
	patterns, err := ignore.LoadFile(filepath.Join(t.TempDir(), "nope.txt"))
	if err != nil {
		t.Fatalf("missing file must not error, got %v", err)
	}
	if len(patterns) != 0 {
		t.Errorf("missing file must yield no patterns, got %v", patterns)
	}
}

func TestAppendToFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".backupignore")
	if err := os.WriteFile(path, []byte("*.tmp\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := ignore.AppendToFile(path, "added by pushback (large files)", []string{"/huge.bin", "/video.mp4"}); err != nil {
		t.Fatalf("append failed: %v", err)
	}

	patterns, err := ignore.LoadFile(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	want := []string{"*.tmp", "/huge.bin", "/video.mp4"}
	if len(patterns) != len(want) {
		t.Fatalf("got %v, want %v", patterns, want)
	}
	for i := range want {
		if patterns[i] != want[i] {
			t.Errorf("pattern %d: got %q, want %q", i, patterns[i], want[i])
		}
	}
}
