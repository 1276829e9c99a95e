// Package transferplan assembles the fully resolved, immutable description
// of one transfer: the remote path, create-or-update mode, the ordered filter
// directives derived from the ignore rules, and the passthrough flags. The
// plan is side-effect-free; executing it belongs to the transfer tool.
package transferplan

import (
	"errors"
	"fmt"
	"strings"

	"github.com/pushback-tool/pushback/pkg/ignore"
	"github.com/pushback-tool/pushback/pkg/resolver"
)

// ErrUndecided is returned when a plan is requested for a resolution that is
// still pending a collision answer.
var ErrUndecided = errors.New("cannot build a plan from an undecided resolution")

// Plan is the complete instruction set for one transfer invocation. Built
// once, consumed exactly once, never mutated afterwards.
type Plan struct {
	// RemotePath is the target directory on the remote, base included.
	RemotePath string
	// Mode is Create or Update; informational for reporting, the transfer
	// itself is identical either way.
	Mode resolver.Decision
	// FilterArgs holds ordered --include=/--exclude= directives. Order is
	// significant and mirrors rule order, so the transfer tool reproduces
	// the rule set's matching semantics.
	FilterArgs []string
	// DeleteExtraneous removes remote files absent locally. Destructive;
	// passed through exactly as configured.
	DeleteExtraneous bool
	// DryRun previews the transfer. The executed command differs from a
	// live run by a single additive flag, nothing else.
	DryRun bool
	// Stats requests transfer statistics from the tool.
	Stats bool
	// ExtraArgs are opaque user-supplied tool arguments, passed through in
	// order after the filter directives.
	ExtraArgs []string
}

// Options carries the per-run switches that shape a plan.
type Options struct {
	// RemoteBase is the remote parent directory holding all backups.
	RemoteBase string
	Delete     bool
	DryRun     bool
	Stats      bool
	ExtraArgs  []string
}

// Build combines a settled resolution with the compiled rule set into a Plan.
func Build(res resolver.Resolution, rules *ignore.RuleSet, opts Options) (*Plan, error) {
	if res.Decision == resolver.NeedsDecision {
		return nil, ErrUndecided
	}
	if res.Candidate.FullName == "" {
		return nil, fmt.Errorf("resolution carries no target name")
	}

	return &Plan{
		RemotePath:       strings.TrimSuffix(opts.RemoteBase, "/") + "/" + res.Candidate.FullName,
		Mode:             res.Decision,
		FilterArgs:       FilterArgs(rules),
		DeleteExtraneous: opts.Delete,
		DryRun:           opts.DryRun,
		Stats:            opts.Stats,
		ExtraArgs:        opts.ExtraArgs,
	}, nil
}

// FilterArgs renders the rule set into ordered filter directives. Each rule
// becomes one --exclude= or --include= argument in rule order. Re-include
// rules with path components additionally need their parent directories
// included first, or the transfer tool never descends far enough to see the
// re-included path; those traversal entries are injected immediately before
// the re-include they serve and deduplicated across the plan.
func FilterArgs(rules *ignore.RuleSet) []string {
	var args []string
	injected := make(map[string]bool)

	for _, rule := range rules.Rules() {
		pattern := renderPattern(rule)
		if rule.Polarity == ignore.Reinclude {
			for _, parent := range parentDirs(pattern) {
				if injected[parent] {
					continue
				}
				injected[parent] = true
				args = append(args, "--include="+parent)
			}
			args = append(args, "--include="+pattern)
			continue
		}
		args = append(args, "--exclude="+pattern)
	}
	return args
}

// renderPattern reconstructs the transfer-tool pattern from a compiled rule:
// leading '/' for anchored rules, trailing '/' for directory-only rules.
func renderPattern(rule ignore.Rule) string {
	p := rule.Pattern
	if rule.DirOnly {
		p += "/"
	}
	if rule.Anchored {
		p = "/" + p
	}
	return p
}

// parentDirs lists every ancestor directory of a slash-containing pattern,
// shallowest first, each with a trailing slash and the pattern's anchoring
// preserved.
func parentDirs(pattern string) []string {
	anchored := strings.HasPrefix(pattern, "/")
	trimmed := strings.Trim(pattern, "/")
	parts := strings.Split(trimmed, "/")
	if len(parts) < 2 {
		return nil
	}

	var parents []string
	current := ""
	for _, part := range parts[:len(parts)-1] {
		if current != "" {
			current += "/"
		}
		current += part
		parent := current + "/"
		if anchored {
			parent = "/" + parent
		}
		parents = append(parents, parent)
	}
	return parents
}
