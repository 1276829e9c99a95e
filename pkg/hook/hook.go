// Package hook runs user-configured shell commands before and after a push,
// for things like dumping a database into the project folder or pinging a
// monitoring endpoint afterwards.
package hook

import (
	"context"
	"fmt"
	"os"
	"os/exec"

	"github.com/pushback-tool/pushback/pkg/hints"
	"github.com/pushback-tool/pushback/pkg/plog"
)

// ErrNothingToRun signals that a stage had no commands configured. It is a
// hint, not a failure.
var ErrNothingToRun = hints.New("no hook commands configured")

// Commands holds the configured hook commands for a push. Each entry is a
// full shell command line.
type Commands struct {
	Pre  []string `yaml:"pre"`
	Post []string `yaml:"post"`
	// FailFast aborts on the first failing command instead of logging a
	// warning and continuing.
	FailFast bool `yaml:"fail_fast"`
}

// Runner executes hook commands through the platform shell.
type Runner struct {
	// commandContext allows mocking os/exec for testing hooks.
	commandContext func(ctx context.Context, name string, arg ...string) *exec.Cmd
}

// NewRunner creates a Runner.
func NewRunner() *Runner {
	return &Runner{commandContext: exec.CommandContext}
}

// NewRunnerWithCommand creates a Runner with an injected command constructor.
func NewRunnerWithCommand(commandContext func(ctx context.Context, name string, arg ...string) *exec.Cmd) *Runner {
	return &Runner{commandContext: commandContext}
}

// RunPre runs the pre-push commands. A failing command aborts the push when
// FailFast is set.
func (r *Runner) RunPre(ctx context.Context, c Commands, dryRun bool) error {
	return r.run(ctx, "pre-push", c.Pre, c.FailFast, dryRun)
}

// RunPost runs the post-push commands.
func (r *Runner) RunPost(ctx context.Context, c Commands, dryRun bool) error {
	return r.run(ctx, "post-push", c.Post, c.FailFast, dryRun)
}

func (r *Runner) run(ctx context.Context, stage string, commands []string, failFast, dryRun bool) error {
	if len(commands) == 0 {
		return ErrNothingToRun
	}

	plog.Info("Running hook commands", "stage", stage, "count", len(commands))

	for _, command := range commands {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if dryRun {
			plog.Notice("[DRY RUN] Executing command", "stage", stage, "command", command)
			continue
		}
		plog.Info("Executing command", "stage", stage, "command", command)

		cmd := r.createCommand(ctx, command)
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr

		if err := cmd.Run(); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if failFast {
				return fmt.Errorf("%s command '%s' failed: %w", stage, command, err)
			}
			plog.Warn("Hook command failed", "stage", stage, "command", command, "error", err)
		}
	}
	return nil
}
