// Package remote addresses backup hosts and answers existence and listing
// queries over ssh. It owns the ssh invocation details (port, connection
// multiplexing, tilde-safe quoting) so the resolution logic above it only
// ever sees directory names.
package remote

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pushback-tool/pushback/pkg/buildinfo"
)

// ErrBaseMissing reports that the configured remote base directory does not
// exist. This is distinct from an empty base: a missing base aborts the run
// for that host instead of quietly creating everything from scratch in the
// wrong place.
var ErrBaseMissing = errors.New("remote base directory does not exist")

// missingExitCode marks a missing directory in the probe scripts, so the
// answer survives the ssh round trip without parsing stdout.
const missingExitCode = 42

// Host is one configured backup destination.
type Host struct {
	Name    string `yaml:"-"`
	User    string `yaml:"user"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
	Base    string `yaml:"base"`
	Default bool   `yaml:"default"`
}

// Addr returns the ssh destination, "user@host".
func (h Host) Addr() string {
	return h.User + "@" + h.Host
}

// String renders the host for log lines and listings.
func (h Host) String() string {
	return fmt.Sprintf("%s (%s:%d %s)", h.Name, h.Addr(), h.Port, h.Base)
}

// Validate reports the first missing required field.
func (h Host) Validate() error {
	if h.User == "" {
		return fmt.Errorf("remote %q: missing required 'user'", h.Name)
	}
	if h.Host == "" {
		return fmt.Errorf("remote %q: missing required 'host'", h.Name)
	}
	if h.Port <= 0 || h.Port > 65535 {
		return fmt.Errorf("remote %q: invalid port %d", h.Name, h.Port)
	}
	if h.Base == "" {
		return fmt.Errorf("remote %q: missing required 'base'", h.Name)
	}
	return nil
}

// Client runs queries against remote hosts via the ssh binary.
type Client struct {
	// commandContext allows mocking os/exec for testing queries.
	commandContext func(ctx context.Context, name string, arg ...string) *exec.Cmd
	multiplex      bool
}

// NewClient creates a Client. With multiplex enabled, ssh connections are
// shared through a control socket so the several round trips of one run pay
// for a single handshake.
func NewClient(multiplex bool) *Client {
	return &Client{commandContext: exec.CommandContext, multiplex: multiplex}
}

// NewClientWithCommand creates a Client with an injected command constructor.
func NewClientWithCommand(multiplex bool, commandContext func(ctx context.Context, name string, arg ...string) *exec.Cmd) *Client {
	return &Client{commandContext: commandContext, multiplex: multiplex}
}

// SSHOptions returns the ssh arguments for a host, shared with the transfer
// tool so its embedded ssh reuses the same control socket.
func (c *Client) SSHOptions(h Host) []string {
	args := []string{"-p", strconv.Itoa(h.Port)}
	if !c.multiplex {
		return args
	}
	controlPath := filepath.Join(homeDir(), ".ssh", buildinfo.Name+"-%r@%h-%p")
	return append(args,
		"-o", "ControlMaster=auto",
		"-o", "ControlPath="+controlPath,
		"-o", "ControlPersist=60",
	)
}

// TestDir reports whether a directory exists on the host.
func (c *Client) TestDir(ctx context.Context, h Host, dir string) (bool, error) {
	tilde, rest := splitTilde(dir)
	var script string
	if tilde {
		script = fmt.Sprintf("cd ~ && test -d %s", quote(orDot(rest)))
	} else {
		script = fmt.Sprintf("test -d %s", quote(dir))
	}

	_, err := c.run(ctx, h, script)
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() == 1 {
		// test(1) answers "no" with exit 1.
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// ListEntries lists the names inside the host's base directory, one level
// deep, in the order the remote reports them. A missing base yields
// ErrBaseMissing rather than an empty listing.
func (c *Client) ListEntries(ctx context.Context, h Host) ([]string, error) {
	tilde, rest := splitTilde(h.Base)
	var script string
	if tilde {
		target := quote(orDot(strings.TrimSuffix(rest, "/")))
		script = fmt.Sprintf("cd ~ && { test -d %s || exit %d; } && ls -1 %s", target, missingExitCode, target)
	} else {
		target := quote(strings.TrimSuffix(h.Base, "/"))
		script = fmt.Sprintf("{ test -d %s || exit %d; } && ls -1 %s", target, missingExitCode, target)
	}

	out, err := c.run(ctx, h, script)
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() == missingExitCode {
		return nil, fmt.Errorf("%w: %s on %s", ErrBaseMissing, h.Base, h.Name)
	}
	if err != nil {
		return nil, fmt.Errorf("listing %s on %s: %w", h.Base, h.Name, err)
	}

	var entries []string
	for _, line := range strings.Split(out, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			entries = append(entries, line)
		}
	}
	return entries, nil
}

// run executes a shell script on the host and returns its stdout.
func (c *Client) run(ctx context.Context, h Host, script string) (string, error) {
	args := append(c.SSHOptions(h), h.Addr(), script)
	cmd := c.commandContext(ctx, "ssh", args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			// Preserve the exit error for callers that interpret codes,
			// but carry the remote's stderr for diagnostics.
			exitErr.Stderr = stderr.Bytes()
			return stdout.String(), exitErr
		}
		return "", fmt.Errorf("ssh to %s: %w", h.Addr(), err)
	}
	return stdout.String(), nil
}

// splitTilde detects a home-relative base ("~" or "~/...") and returns the
// part after the tilde. Tilde paths must not be quoted whole, or the remote
// shell stops expanding them.
func splitTilde(p string) (bool, string) {
	if p == "~" {
		return true, ""
	}
	if strings.HasPrefix(p, "~/") {
		return true, p[2:]
	}
	return false, p
}

// quote wraps a string in single quotes for the remote shell.
func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

func orDot(s string) string {
	if s == "" {
		return "."
	}
	return s
}

func homeDir() string {
	if home, err := os.UserHomeDir(); err == nil {
		return home
	}
	return "."
}
