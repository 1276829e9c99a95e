// Package resolver decides which remote directory a run targets and whether
// the run creates it or updates it. It works from a listing snapshot taken
// once per run and never touches the remote itself: ambiguous collisions come
// back as a deferred decision for the caller to settle.
package resolver

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/pushback-tool/pushback/pkg/pathtoken"
	"github.com/pushback-tool/pushback/pkg/snapshot"
)

// Decision is the resolver's verdict for a run.
type Decision int

const (
	// Create stands up a fresh remote directory under the resolved name.
	Create Decision = iota
	// Update re-syncs into a directory that already exists on the remote.
	Update
	// NeedsDecision means siblings collide with the intended name and no
	// forcing policy applies. The caller must answer via Resolution.Decide.
	NeedsDecision
)

var decisionToString = map[Decision]string{
	Create:        "create",
	Update:        "update",
	NeedsDecision: "needs-decision",
}

// String returns the string representation of a Decision.
func (d Decision) String() string {
	if str, ok := decisionToString[d]; ok {
		return str
	}
	return fmt.Sprintf("unknown_decision(%d)", d)
}

// CollisionState classifies what the remote listing held for the project.
type CollisionState int

const (
	// NoCollision: nothing related on the remote, the name is free.
	NoCollision CollisionState = iota
	// ExactMatch: the intended directory (or one for the same snapshot
	// period) already exists.
	ExactMatch
	// SameBaseDifferentName: directories for the same project exist under a
	// different hash or a different (or absent) snapshot suffix.
	SameBaseDifferentName
)

var collisionToString = map[CollisionState]string{
	NoCollision:           "no-collision",
	ExactMatch:            "exact-match",
	SameBaseDifferentName: "same-base-different-name",
}

// String returns the string representation of a CollisionState.
func (c CollisionState) String() string {
	if str, ok := collisionToString[c]; ok {
		return str
	}
	return fmt.Sprintf("unknown_collision_state(%d)", c)
}

// Policy carries the automation flags that pre-answer collision prompts.
// With both flags set, create wins: starting a fresh directory can never
// clobber an unrelated one.
type Policy struct {
	ForceCreate bool
	ForceUpdate bool
}

// Candidate is the resolved remote directory name for one run against one
// remote. Built fresh from the listing snapshot, never persisted.
type Candidate struct {
	// BaseName is "<project>_<hash>", without any snapshot suffix.
	BaseName string
	// FullName is the directory name the run will target.
	FullName string
	// ExistsOnRemote reports whether FullName appeared in the listing.
	ExistsOnRemote bool
	// CollisionState classifies the listing outcome.
	CollisionState CollisionState
}

// Resolution is the resolver's complete answer. When Decision is
// NeedsDecision, Alternatives holds the colliding sibling names (sorted
// ascending) for the caller to present, and Decide finalizes the choice.
type Resolution struct {
	Candidate    Candidate
	Decision     Decision
	Alternatives []string
}

// ErrUndecidable is returned by Decide when called with NeedsDecision, or on
// a resolution that is not pending.
var ErrUndecidable = errors.New("resolution cannot be finalized")

// Resolve determines the remote target for a project token and snapshot
// bucket against a listing of the remote base directory.
//
// Resolution order:
//  1. The exact intended name exists -> update it.
//  2. In a snapshot mode, a directory for the same period exists (intended
//     name plus any trailing detail) -> update that one.
//  3. Other directories for the same project exist (different hash, or a
//     different or missing snapshot suffix) -> collision. Forcing policy
//     answers it, otherwise the decision is deferred.
//  4. Nothing related exists -> create.
//
// Resolve is pure: the same token, bucket, listing and policy always yield
// the same resolution.
func Resolve(token pathtoken.Token, bucket snapshot.Bucket, listing []string, policy Policy) Resolution {
	baseName := token.BaseName()
	fullName := baseName + bucket.Suffix()

	for _, entry := range listing {
		if entry == fullName {
			return Resolution{
				Candidate: Candidate{
					BaseName:       baseName,
					FullName:       fullName,
					ExistsOnRemote: true,
					CollisionState: ExactMatch,
				},
				Decision: Update,
			}
		}
	}

	if bucket.Suffix() != "" {
		for _, entry := range listing {
			if strings.HasPrefix(entry, fullName) {
				return Resolution{
					Candidate: Candidate{
						BaseName:       baseName,
						FullName:       entry,
						ExistsOnRemote: true,
						CollisionState: ExactMatch,
					},
					Decision: Update,
				}
			}
		}
	}

	siblings := projectSiblings(listing, token.ProjectName, fullName)
	if len(siblings) == 0 {
		return Resolution{
			Candidate: Candidate{
				BaseName:       baseName,
				FullName:       fullName,
				CollisionState: NoCollision,
			},
			Decision: Create,
		}
	}

	candidate := Candidate{
		BaseName:       baseName,
		FullName:       fullName,
		CollisionState: SameBaseDifferentName,
	}

	switch {
	case policy.ForceCreate:
		// Also covers both flags set: creating is the safe default.
		return Resolution{Candidate: candidate, Decision: Create, Alternatives: siblings}
	case policy.ForceUpdate:
		chosen := siblings[len(siblings)-1]
		candidate.FullName = chosen
		candidate.ExistsOnRemote = true
		return Resolution{Candidate: candidate, Decision: Update, Alternatives: siblings}
	default:
		return Resolution{Candidate: candidate, Decision: NeedsDecision, Alternatives: siblings}
	}
}

// Decide finalizes a pending resolution with the caller's answer, which must
// be Create or Update. Update targets the lexicographically greatest
// colliding sibling, matching what a forced-update policy would have picked.
func (r Resolution) Decide(choice Decision) (Resolution, error) {
	if r.Decision != NeedsDecision {
		return Resolution{}, fmt.Errorf("%w: resolution already decided (%s)", ErrUndecidable, r.Decision)
	}

	switch choice {
	case Create:
		r.Decision = Create
		return r, nil
	case Update:
		if len(r.Alternatives) == 0 {
			return Resolution{}, fmt.Errorf("%w: no existing directory to update", ErrUndecidable)
		}
		r.Decision = Update
		r.Candidate.FullName = r.Alternatives[len(r.Alternatives)-1]
		r.Candidate.ExistsOnRemote = true
		return r, nil
	default:
		return Resolution{}, fmt.Errorf("%w: choice must be create or update, got %s", ErrUndecidable, choice)
	}
}

// projectSiblings returns listing entries that belong to the same project
// but are not the intended target, sorted ascending so the greatest label
// sits last. The tie-break for "which existing one" is deliberately the
// lexicographically greatest sibling: for calendar labels that is also the
// most recent one.
func projectSiblings(listing []string, projectName, fullName string) []string {
	prefix := projectName + "_"
	var siblings []string
	for _, entry := range listing {
		if entry != fullName && strings.HasPrefix(entry, prefix) {
			siblings = append(siblings, entry)
		}
	}
	sort.Strings(siblings)
	return siblings
}
