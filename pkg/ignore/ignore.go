// Package ignore compiles layered ignore-pattern sources (built-in defaults,
// the global ignore file, the project .backupignore, and ad-hoc large-file
// exclusions) into a single ordered rule set and evaluates path membership
// with gitignore-style "last match wins" semantics.
package ignore

import (
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/pushback-tool/pushback/pkg/util"
)

// Polarity determines whether a matching rule excludes or re-includes a path.
type Polarity int

const (
	// Exclude removes matching paths from the transfer set.
	Exclude Polarity = iota
	// Reinclude restores matching paths that an earlier rule excluded.
	Reinclude
)

// String returns the string representation of a Polarity.
func (p Polarity) String() string {
	if p == Reinclude {
		return "reinclude"
	}
	return "exclude"
}

// Verdict is the result of evaluating a path against a RuleSet.
type Verdict int

const (
	// Included means no rule excluded the path (the default), or the last
	// matching rule was a re-include.
	Included Verdict = iota
	// Excluded means the last matching rule was an exclude.
	Excluded
)

// String returns the string representation of a Verdict.
func (v Verdict) String() string {
	if v == Excluded {
		return "excluded"
	}
	return "included"
}

// ErrBadPattern is returned when a pattern line cannot be compiled.
// Malformed ignore rules are fatal: silently dropping one risks transferring
// files the user meant to keep private.
var ErrBadPattern = errors.New("invalid ignore pattern")

// Rule is one compiled ignore pattern. Rules are evaluated strictly in
// compilation order; the polarity of the last matching rule wins.
type Rule struct {
	// Raw is the original pattern line, preserved for rendering transfer
	// tool directives and diagnostics.
	Raw string
	// Pattern is the normalized glob: no '!' prefix, no trailing '/',
	// no leading '/' (anchoring is tracked separately).
	Pattern string
	// Polarity is Exclude or Reinclude ('!'-prefixed lines).
	Polarity Polarity
	// DirOnly is true for patterns with a trailing '/', which match
	// directories only.
	DirOnly bool
	// Anchored is true for patterns with a leading '/', which match only
	// relative to the transfer root.
	Anchored bool
	// hasSlash marks patterns containing an interior path separator;
	// those match against the full relative path instead of the basename.
	hasSlash bool
}

// RuleSet is an ordered, immutable collection of compiled rules.
type RuleSet struct {
	rules []Rule
}

// Compile concatenates the pattern sources in strict priority order (global
// defaults first, then project-local patterns, then ad-hoc excludes) and
// compiles them into a RuleSet. Order within each source is preserved.
func Compile(globalRules, projectRules, adhocExcludes []string) (*RuleSet, error) {
	sources := []struct {
		name     string
		patterns []string
	}{
		{"global", globalRules},
		{"project", projectRules},
		{"adhoc", adhocExcludes},
	}

	var rules []Rule
	for _, src := range sources {
		for i, line := range src.patterns {
			rule, ok, err := compileLine(line)
			if err != nil {
				return nil, fmt.Errorf("%w: %s pattern %d: %q", ErrBadPattern, src.name, i+1, line)
			}
			if !ok {
				continue // blank or comment
			}
			rules = append(rules, rule)
		}
	}
	return &RuleSet{rules: rules}, nil
}

// compileLine parses a single pattern line. The second return value is false
// for lines that contribute no rule (blanks and comments).
func compileLine(line string) (Rule, bool, error) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" || strings.HasPrefix(trimmed, "#") {
		return Rule{}, false, nil
	}

	rule := Rule{Raw: trimmed, Polarity: Exclude}

	pattern := trimmed
	if strings.HasPrefix(pattern, "!") {
		rule.Polarity = Reinclude
		pattern = strings.TrimSpace(pattern[1:])
		if pattern == "" {
			return Rule{}, false, ErrBadPattern
		}
	}
	if strings.HasSuffix(pattern, "/") {
		rule.DirOnly = true
		pattern = strings.TrimSuffix(pattern, "/")
		if pattern == "" {
			return Rule{}, false, ErrBadPattern
		}
	}
	if strings.HasPrefix(pattern, "/") {
		rule.Anchored = true
		pattern = strings.TrimPrefix(pattern, "/")
		if pattern == "" {
			return Rule{}, false, ErrBadPattern
		}
	}

	rule.Pattern = pattern
	rule.hasSlash = strings.Contains(pattern, "/")

	// Reject globs that path.Match can never evaluate.
	if _, err := path.Match(pattern, ""); err != nil {
		return Rule{}, false, ErrBadPattern
	}
	return rule, true, nil
}

// Rules returns the compiled rules in evaluation order.
func (rs *RuleSet) Rules() []Rule {
	return rs.rules
}

// Len returns the number of compiled rules.
func (rs *RuleSet) Len() int {
	return len(rs.rules)
}

// Match evaluates a slash-separated path relative to the transfer root and
// reports whether it is included or excluded. Every rule is tested in order
// and the polarity of the last match is kept, so a re-include rule for a file
// inside an excluded directory restores that one file while its siblings stay
// excluded: the ancestor-directory match of the exclude rule is overridden by
// the later, more specific re-include match on the file itself.
func (rs *RuleSet) Match(relPath string, isDir bool) Verdict {
	p := normalizeRelPath(relPath)
	if p == "" || p == "." {
		return Included
	}

	verdict := Included
	for _, rule := range rs.rules {
		if rule.appliesTo(p, isDir) {
			verdict = verdictFor(rule.Polarity)
		}
	}
	return verdict
}

// MayReincludeWithin reports whether any re-include rule could match a path
// below the given directory. Tree walks use this to decide whether an
// excluded directory can be skipped wholesale or must still be descended.
func (rs *RuleSet) MayReincludeWithin(dir string) bool {
	d := normalizeRelPath(dir)
	for _, rule := range rs.rules {
		if rule.Polarity != Reinclude {
			continue
		}
		// Bare basename patterns can match at any depth.
		if !rule.Anchored && !rule.hasSlash {
			return true
		}
		if strings.HasPrefix(rule.Pattern, d+"/") {
			return true
		}
		// Wildcards in a directory segment defeat the prefix check; keep
		// descending rather than risk missing a re-include.
		if strings.ContainsAny(rule.Pattern, "*?[") {
			return true
		}
	}
	return false
}

// appliesTo reports whether the rule matches the path itself or one of its
// ancestor directories. An ancestor match propagates the rule's polarity to
// all descendants (a directory exclude takes its subtree with it).
func (r Rule) appliesTo(p string, isDir bool) bool {
	// Direct match. Directory-only rules never match plain files directly.
	if (!r.DirOnly || isDir) && r.matchesName(p) {
		return true
	}

	// Ancestor match: every ancestor is by definition a directory.
	for ancestor := path.Dir(p); ancestor != "." && ancestor != "/"; ancestor = path.Dir(ancestor) {
		if r.matchesName(ancestor) {
			return true
		}
	}
	return false
}

// matchesName tests the glob against a normalized path. Patterns containing a
// path separator (or anchored with a leading '/') match the full relative
// path; bare patterns match the basename anywhere in the tree, mirroring
// gitignore behavior.
func (r Rule) matchesName(p string) bool {
	if r.Anchored || r.hasSlash {
		ok, _ := path.Match(r.Pattern, p)
		return ok
	}
	ok, _ := path.Match(r.Pattern, path.Base(p))
	return ok
}

func verdictFor(p Polarity) Verdict {
	if p == Reinclude {
		return Included
	}
	return Excluded
}

// normalizeRelPath converts OS separators to forward slashes and strips any
// leading "./" or "/" so that patterns and paths are always compared in the
// same shape.
func normalizeRelPath(p string) string {
	p = util.NormalizePath(p)
	p = strings.TrimPrefix(p, "./")
	p = strings.TrimPrefix(p, "/")
	return strings.TrimSuffix(p, "/")
}
