// Package orchestrator drives a push end to end: per remote it takes one
// listing snapshot, resolves the target directory, builds the transfer plan,
// and hands it to the transfer runner. Remotes are independent and run
// concurrently; a failure on one never aborts the others.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pushback-tool/pushback/pkg/ignore"
	"github.com/pushback-tool/pushback/pkg/pathtoken"
	"github.com/pushback-tool/pushback/pkg/plog"
	"github.com/pushback-tool/pushback/pkg/remote"
	"github.com/pushback-tool/pushback/pkg/resolver"
	"github.com/pushback-tool/pushback/pkg/snapshot"
	"github.com/pushback-tool/pushback/pkg/state"
	"github.com/pushback-tool/pushback/pkg/transferplan"
)

// ErrDecisionNeeded is returned for a remote whose collision could not be
// settled: no forcing policy applied and no decider was available (or it
// declined). The run for that remote aborts cleanly with no transfer.
var ErrDecisionNeeded = errors.New("collision requires a decision")

// RemoteQuerier answers existence and listing queries for a host.
type RemoteQuerier interface {
	TestDir(ctx context.Context, h remote.Host, dir string) (bool, error)
	ListEntries(ctx context.Context, h remote.Host) ([]string, error)
	SSHOptions(h remote.Host) []string
}

// TransferRunner executes a completed plan against a host.
type TransferRunner interface {
	Run(ctx context.Context, p *transferplan.Plan, src, destAddr string, sshOptions []string) error
}

// Decider settles collisions the forcing policy left open. Implementations
// typically prompt the user; returning an error aborts the remote cleanly.
type Decider interface {
	ResolveCollision(h remote.Host, pending resolver.Resolution) (resolver.Decision, error)
}

// Recorder persists run outcomes. Satisfied by *state.Store.
type Recorder interface {
	RecordRun(run state.Run) error
}

// Request carries everything one push needs, assembled by the CLI layer.
type Request struct {
	// LocalPath is the canonical absolute project path.
	LocalPath string
	Token     pathtoken.Token
	Bucket    snapshot.Bucket
	Rules     *ignore.RuleSet
	Policy    resolver.Policy
	Hosts     []remote.Host

	Delete    bool
	DryRun    bool
	Stats     bool
	ExtraArgs []string
}

// Result is the outcome for one remote.
type Result struct {
	Host       remote.Host
	Resolution resolver.Resolution
	Plan       *transferplan.Plan
	Err        error
}

// Failed reports whether any remote in the batch failed.
func Failed(results []Result) bool {
	for _, r := range results {
		if r.Err != nil {
			return true
		}
	}
	return false
}

// Orchestrator coordinates pushes across remotes.
type Orchestrator struct {
	querier  RemoteQuerier
	runner   TransferRunner
	decider  Decider
	recorder Recorder

	// decideMu serializes decider calls so concurrent remotes don't
	// interleave their prompts.
	decideMu sync.Mutex

	now func() time.Time
}

// New creates an Orchestrator. decider and recorder may be nil: without a
// decider, open collisions fail with ErrDecisionNeeded; without a recorder,
// outcomes are not persisted.
func New(querier RemoteQuerier, runner TransferRunner, decider Decider, recorder Recorder) *Orchestrator {
	return &Orchestrator{
		querier:  querier,
		runner:   runner,
		decider:  decider,
		recorder: recorder,
		now:      time.Now,
	}
}

// Push runs the transfer pipeline against every host in the request. The
// returned slice has one entry per host, in request order.
func (o *Orchestrator) Push(ctx context.Context, req Request) []Result {
	results := make([]Result, len(req.Hosts))

	g, gctx := errgroup.WithContext(ctx)
	for i, host := range req.Hosts {
		i, host := i, host
		g.Go(func() error {
			results[i] = o.pushOne(gctx, req, host)
			// Errors stay in the result so sibling remotes keep going.
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// pushOne runs the sequential pipeline for a single host: one listing
// snapshot, one resolution, one plan, one transfer.
func (o *Orchestrator) pushOne(ctx context.Context, req Request, host remote.Host) Result {
	result := Result{Host: host}

	exists, err := o.querier.TestDir(ctx, host, host.Base)
	if err != nil {
		result.Err = fmt.Errorf("checking remote base on %s: %w", host.Name, err)
		return result
	}
	if !exists {
		result.Err = fmt.Errorf("%w: %s on %s (create it manually and rerun)",
			remote.ErrBaseMissing, host.Base, host.Name)
		return result
	}

	listing, err := o.querier.ListEntries(ctx, host)
	if err != nil {
		result.Err = err
		return result
	}

	res := resolver.Resolve(req.Token, req.Bucket, listing, req.Policy)
	if res.Decision == resolver.NeedsDecision {
		res, err = o.settle(host, res)
		if err != nil {
			result.Resolution = res
			result.Err = err
			return result
		}
	}
	result.Resolution = res

	plan, err := transferplan.Build(res, req.Rules, transferplan.Options{
		RemoteBase: host.Base,
		Delete:     req.Delete,
		DryRun:     req.DryRun,
		Stats:      req.Stats,
		ExtraArgs:  req.ExtraArgs,
	})
	if err != nil {
		result.Err = err
		return result
	}
	result.Plan = plan

	plog.Info("Pushing", "remote", host.Name, "target", plan.RemotePath, "mode", plan.Mode.String(), "dryRun", plan.DryRun)

	transferErr := o.runner.Run(ctx, plan, req.LocalPath, host.Addr(), o.querier.SSHOptions(host))
	if transferErr != nil {
		result.Err = fmt.Errorf("transfer to %s failed: %w", host.Name, transferErr)
	}

	o.record(req, host, plan, transferErr == nil)
	return result
}

// settle asks the decider to resolve an open collision.
func (o *Orchestrator) settle(host remote.Host, pending resolver.Resolution) (resolver.Resolution, error) {
	if o.decider == nil {
		return pending, fmt.Errorf("%w on %s: target %s collides with %v",
			ErrDecisionNeeded, host.Name, pending.Candidate.FullName, pending.Alternatives)
	}

	o.decideMu.Lock()
	choice, err := o.decider.ResolveCollision(host, pending)
	o.decideMu.Unlock()
	if err != nil {
		return pending, fmt.Errorf("%w on %s: %v", ErrDecisionNeeded, host.Name, err)
	}
	return pending.Decide(choice)
}

// record persists the run outcome. Dry runs are not recorded: nothing on the
// remote changed.
func (o *Orchestrator) record(req Request, host remote.Host, plan *transferplan.Plan, success bool) {
	if o.recorder == nil || plan.DryRun {
		return
	}
	run := state.Run{
		Remote:     host.Name,
		Target:     plan.RemotePath,
		LocalPath:  req.LocalPath,
		Mode:       plan.Mode.String(),
		DryRun:     plan.DryRun,
		Success:    success,
		FinishedAt: o.now(),
	}
	if err := o.recorder.RecordRun(run); err != nil {
		plog.Warn("Could not record run outcome", "remote", host.Name, "error", err)
	}
}
