// Package rsync builds and executes the transfer invocation for a completed
// plan. The command is assembled deterministically from the plan, run once,
// and its exit status surfaced verbatim; retries are an operator concern.
package rsync

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/pushback-tool/pushback/pkg/plog"
	"github.com/pushback-tool/pushback/pkg/transferplan"
)

// ExitError carries the transfer tool's exit code unchanged so the process
// can propagate it.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("rsync exited with code %d", e.Code)
}

// Runner invokes the rsync binary for completed transfer plans.
type Runner struct {
	// commandContext allows mocking os/exec for testing invocations.
	commandContext func(ctx context.Context, name string, arg ...string) *exec.Cmd
}

// NewRunner creates a Runner using the real rsync binary.
func NewRunner() *Runner {
	return &Runner{commandContext: exec.CommandContext}
}

// NewRunnerWithCommand creates a Runner with an injected command constructor.
func NewRunnerWithCommand(commandContext func(ctx context.Context, name string, arg ...string) *exec.Cmd) *Runner {
	return &Runner{commandContext: commandContext}
}

// Args assembles the full rsync argument list for a plan. sshOptions is the
// ssh argument set shared with the query client, so the transfer rides the
// same multiplexed connection. A dry-run command differs from the live one
// by the single --dry-run flag.
func Args(p *transferplan.Plan, src, destAddr string, sshOptions []string) []string {
	args := []string{
		"-azP",
		"--safe-links",
		"--prune-empty-dirs",
	}
	if p.DeleteExtraneous {
		args = append(args, "--delete")
	}
	if p.DryRun {
		args = append(args, "--dry-run")
	}
	if p.Stats {
		args = append(args, "--stats")
	}
	args = append(args, "-e", "ssh "+strings.Join(sshOptions, " "))
	args = append(args, p.FilterArgs...)
	args = append(args, sanitizeExtraArgs(p.ExtraArgs)...)

	args = append(args,
		strings.TrimSuffix(src, "/")+"/",
		destAddr+":"+p.RemotePath+"/",
	)
	return args
}

// Run executes the plan and streams rsync's output through. A non-zero exit
// comes back as *ExitError with the tool's code preserved.
func (r *Runner) Run(ctx context.Context, p *transferplan.Plan, src, destAddr string, sshOptions []string) error {
	args := Args(p, src, destAddr, sshOptions)
	plog.Debug("Running rsync", "args", strings.Join(args, " "))

	cmd := r.commandContext(ctx, "rsync", args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return &ExitError{Code: exitErr.ExitCode()}
		}
		return fmt.Errorf("running rsync: %w", err)
	}
	return nil
}

// sanitizeExtraArgs drops attempts to override the remote shell, which would
// silently bypass the port and multiplexing setup.
func sanitizeExtraArgs(extra []string) []string {
	var out []string
	skipNext := false
	for _, arg := range extra {
		if skipNext {
			skipNext = false
			continue
		}
		if arg == "-e" || arg == "--rsh" {
			skipNext = true
			continue
		}
		if strings.HasPrefix(arg, "-e") && !strings.HasPrefix(arg, "-e=") && len(arg) > 2 {
			continue
		}
		if strings.HasPrefix(arg, "--rsh=") || strings.HasPrefix(arg, "-e=") {
			continue
		}
		out = append(out, arg)
	}
	return out
}
