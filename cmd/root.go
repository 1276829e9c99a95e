// Package cmd wires the CLI surface: flag parsing, config layering,
// interactive prompts, and the assembly of a push request for the
// orchestrator. All decision logic lives in the packages below; this layer
// owns I/O with the user.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/pushback-tool/pushback/pkg/buildinfo"
	"github.com/pushback-tool/pushback/pkg/config"
	"github.com/pushback-tool/pushback/pkg/hints"
	"github.com/pushback-tool/pushback/pkg/hook"
	"github.com/pushback-tool/pushback/pkg/ignore"
	"github.com/pushback-tool/pushback/pkg/largefile"
	"github.com/pushback-tool/pushback/pkg/lockfile"
	"github.com/pushback-tool/pushback/pkg/orchestrator"
	"github.com/pushback-tool/pushback/pkg/pathtoken"
	"github.com/pushback-tool/pushback/pkg/plog"
	"github.com/pushback-tool/pushback/pkg/preflight"
	"github.com/pushback-tool/pushback/pkg/remote"
	"github.com/pushback-tool/pushback/pkg/resolver"
	"github.com/pushback-tool/pushback/pkg/rsync"
	"github.com/pushback-tool/pushback/pkg/snapshot"
	"github.com/pushback-tool/pushback/pkg/state"
	"github.com/pushback-tool/pushback/pkg/util"
)

var (
	flagConfig       string
	flagLogLevel     string
	flagVerbose      bool
	flagServers      []string
	flagDryRun       bool
	flagDelete       bool
	flagStats        bool
	flagNoMultiplex  bool
	flagSnapshotMode string
	flagCustomHours  int
	flagLargeFileMB  int64
	flagRsyncExtra   string

	flagForceAll          bool
	flagForceNew          bool
	flagForceUpdate       bool
	flagForceBackupignore bool
)

var rootCmd = &cobra.Command{
	Use:   buildinfo.Name + " PROJECT_PATH",
	Short: "Push a local folder to remote hosts over rsync/ssh",
	Long: `Pushes the contents of a local folder to one or more remote hosts.

The remote directory name is derived deterministically from the folder's
absolute path, so the same folder always lands in the same place and two
folders with the same name never collide. With a snapshot mode configured,
each time period gets its own remote directory.

Ignore rules are layered from built-in defaults, the global ignore file,
the project's .backupignore, and large-file decisions made during the run.`,
	Args:          cobra.ExactArgs(1),
	RunE:          runPush,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Config file path (default: "+config.DefaultPath()+")")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "Log level: debug, info, notice, warn, error")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "Shorthand for --log-level debug")

	rootCmd.Flags().StringSliceVar(&flagServers, "server", nil, "Remote(s) to push to (default: all remotes marked default)")
	rootCmd.Flags().BoolVarP(&flagDryRun, "dry-run", "n", false, "Preview the transfer without changing the remote")
	rootCmd.Flags().BoolVar(&flagDelete, "delete", false, "Delete remote files that no longer exist locally (destructive)")
	rootCmd.Flags().BoolVar(&flagStats, "stats", false, "Show transfer statistics")
	rootCmd.Flags().BoolVar(&flagNoMultiplex, "no-multiplex", false, "Disable ssh connection multiplexing")
	rootCmd.Flags().StringVar(&flagSnapshotMode, "snapshot-mode", "", "Snapshot mode: none, hourly, daily, weekly, monthly, yearly, custom")
	rootCmd.Flags().IntVar(&flagCustomHours, "snapshot-custom-hours", 0, "Bucket width in hours for custom snapshot mode")
	rootCmd.Flags().Int64Var(&flagLargeFileMB, "large-file-mb", -1, "Large-file threshold in MB (0 disables triage)")
	rootCmd.Flags().StringVar(&flagRsyncExtra, "rsync-extra", "", "Extra arguments passed through to rsync")

	rootCmd.Flags().BoolVar(&flagForceAll, "force-all", false, "Answer every prompt automatically (implies the other force flags)")
	rootCmd.Flags().BoolVar(&flagForceNew, "force-collision-new", false, "On name collision, create a new directory without asking")
	rootCmd.Flags().BoolVar(&flagForceUpdate, "force-collision-update", false, "On name collision, update the existing directory without asking")
	rootCmd.Flags().BoolVar(&flagForceBackupignore, "force-backupignore", false, "Append large-file exclusions to .backupignore without asking")
}

// Execute runs the CLI and returns the process exit code. A push that failed
// because the transfer tool failed exits with the tool's own code; any other
// push failure exits 1, and usage or configuration errors exit 2.
func Execute(ctx context.Context) int {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		plog.Error(err.Error())
		var pushErr *pushError
		if errors.As(err, &pushErr) {
			if pushErr.rsyncExit != 0 {
				return pushErr.rsyncExit
			}
			return 1
		}
		return 2
	}
	return 0
}

// loadConfig layers file, environment, and command-line flags.
func loadConfig() (config.Config, error) {
	path := flagConfig
	if path == "" {
		path = config.DefaultPath()
	}

	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, err
	}
	if err := cfg.ApplyEnv(); err != nil {
		return config.Config{}, err
	}

	if flagLogLevel != "" {
		cfg.LogLevel = flagLogLevel
	}
	if flagVerbose {
		cfg.LogLevel = "debug"
	}
	if flagSnapshotMode != "" {
		mode, err := snapshot.ParseMode(flagSnapshotMode)
		if err != nil {
			return config.Config{}, err
		}
		cfg.Snapshot.Mode = mode
	}
	if flagCustomHours > 0 {
		cfg.Snapshot.CustomHours = flagCustomHours
	}
	if flagLargeFileMB >= 0 {
		cfg.LargeFileMB = flagLargeFileMB
	}
	if flagDelete {
		cfg.DeleteRemote = true
	}
	if flagNoMultiplex {
		cfg.Multiplex = false
	}

	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}

	plog.SetLevel(plog.LevelFromString(cfg.LogLevel))

	return cfg, nil
}

// pushError marks a failed push so Execute can derive the exit code.
type pushError struct {
	msg       string
	rsyncExit int
}

func (e *pushError) Error() string { return e.msg }

func runPush(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	root, err := util.CanonicalPath(args[0])
	if err != nil {
		return fmt.Errorf("could not resolve project path: %w", err)
	}
	if err := preflight.CheckSourceAccessible(root); err != nil {
		return err
	}

	token, err := pathtoken.New(root)
	if err != nil {
		return err
	}
	bucket, err := snapshot.BucketFor(cfg.Snapshot.Mode, time.Now(), cfg.Snapshot.CustomHours)
	if err != nil {
		return err
	}

	// One push per project at a time; a second invocation for the same
	// folder fails fast instead of racing this one.
	lock, err := lockfile.Acquire(cmd.Context(), lockfile.DefaultPath(token.BaseName()))
	if err != nil {
		return fmt.Errorf("could not lock project %s: %w", token.ProjectName, err)
	}
	defer lock.Release()

	hosts, err := cfg.SelectRemotes(flagServers)
	if err != nil {
		return err
	}

	prompt := newPrompter(cmd)

	rules, err := buildRules(prompt, cfg, root)
	if err != nil {
		return err
	}

	plog.Info("Starting push",
		"project", token.ProjectName,
		"target", token.BaseName()+bucket.Suffix(),
		"snapshotMode", cfg.Snapshot.Mode.String(),
		"remotes", len(hosts),
	)

	var recorder orchestrator.Recorder
	store, err := state.Open(state.DefaultPath())
	if err != nil {
		plog.Warn("Run history unavailable", "error", err)
	} else {
		defer store.Close()
		recorder = store
	}

	var decider orchestrator.Decider
	if !flagForceAll && !flagForceNew && !flagForceUpdate {
		decider = prompt
	}

	client := remote.NewClient(cfg.Multiplex)
	o := orchestrator.New(client, rsync.NewRunner(), decider, recorder)

	req := orchestrator.Request{
		LocalPath: root,
		Token:     token,
		Bucket:    bucket,
		Rules:     rules,
		Policy: resolver.Policy{
			ForceCreate: flagForceAll || flagForceNew,
			ForceUpdate: flagForceAll || flagForceUpdate,
		},
		Hosts:     hosts,
		Delete:    cfg.DeleteRemote,
		DryRun:    flagDryRun,
		Stats:     flagStats,
		ExtraArgs: splitExtraArgs(flagRsyncExtra),
	}

	hooks := hook.NewRunner()
	if err := hooks.RunPre(cmd.Context(), cfg.Hooks, flagDryRun); err != nil && !hints.IsHint(err) {
		return err
	}

	results := o.Push(cmd.Context(), req)

	postErr := hooks.RunPost(cmd.Context(), cfg.Hooks, flagDryRun)
	if postErr != nil && !hints.IsHint(postErr) {
		plog.Error("Post-push hook failed", "error", postErr)
	}

	if err := reportResults(cmd, results, flagDryRun); err != nil {
		return err
	}
	if postErr != nil && !hints.IsHint(postErr) {
		return &pushError{msg: postErr.Error()}
	}
	return nil
}

// buildRules compiles the layered ignore sources and folds in large-file
// decisions.
func buildRules(prompt *prompter, cfg config.Config, root string) (*ignore.RuleSet, error) {
	globalPath, err := util.ExpandPath(cfg.GlobalIgnore)
	if err != nil {
		return nil, fmt.Errorf("could not expand global ignore path: %w", err)
	}
	globalPatterns, err := ignore.LoadFile(globalPath)
	if err != nil {
		return nil, err
	}
	if len(globalPatterns) == 0 {
		if _, statErr := os.Stat(globalPath); os.IsNotExist(statErr) {
			plog.Debug("Global ignore file not found", "path", globalPath)
		}
	}

	projectPatterns, err := ignore.LoadFile(filepath.Join(root, ignore.ProjectIgnoreFileName))
	if err != nil {
		return nil, err
	}

	global := append(append([]string{}, ignore.DefaultExcludes...), globalPatterns...)
	rules, err := ignore.Compile(global, projectPatterns, nil)
	if err != nil {
		return nil, err
	}

	adhoc, err := triageLargeFiles(prompt, cfg, root, rules)
	if err != nil {
		return nil, err
	}
	if len(adhoc) == 0 {
		return rules, nil
	}
	return ignore.Compile(global, projectPatterns, adhoc)
}

// triageLargeFiles scans the tree and settles oversized files, returning the
// ad-hoc exclude patterns for the final rule set.
func triageLargeFiles(prompt *prompter, cfg config.Config, root string, rules *ignore.RuleSet) ([]string, error) {
	if cfg.LargeFileMB <= 0 {
		return nil, nil
	}

	sizes, err := largefile.Scan(root, rules)
	if err != nil {
		return nil, fmt.Errorf("scanning for large files: %w", err)
	}

	result := largefile.Triage(sizes, cfg.LargeFileMB, flagForceAll)
	excluded := result.AutoExcluded

	if len(result.Reviewed) > 0 {
		chosen, err := prompt.ReviewLargeFiles(result.Reviewed, cfg.LargeFileMB)
		if err != nil {
			return nil, err
		}
		excluded = append(excluded, chosen...)
	}
	if len(excluded) == 0 {
		return nil, nil
	}

	patterns := largefile.ExcludePatterns(excluded)

	appendToIgnore := flagForceAll || flagForceBackupignore
	if !appendToIgnore {
		appendToIgnore = prompt.Confirm("Append ignored ones to "+ignore.ProjectIgnoreFileName+" for next time?", true)
	}
	if appendToIgnore {
		ignorePath := filepath.Join(root, ignore.ProjectIgnoreFileName)
		if err := ignore.AppendToFile(ignorePath, "added by "+buildinfo.Name+" (large files)", patterns); err != nil {
			plog.Warn("Could not update project ignore file", "path", ignorePath, "error", err)
		} else {
			plog.Info("Updated project ignore file", "path", ignorePath)
		}
	}
	return patterns, nil
}

// reportResults prints per-remote outcomes and converts failures into a
// pushError carrying the right exit code.
func reportResults(cmd *cobra.Command, results []orchestrator.Result, dryRun bool) error {
	var failures []string
	rsyncExit := 0

	for _, res := range results {
		if res.Err != nil {
			plog.Error("Push failed", "remote", res.Host.Name, "error", res.Err)
			failures = append(failures, res.Host.Name)
			var exitErr *rsync.ExitError
			if errors.As(res.Err, &exitErr) && rsyncExit == 0 {
				rsyncExit = exitErr.Code
			}
			continue
		}
		if dryRun {
			cmd.Printf("Dry-run complete for %s (no changes made).\n", res.Host.Name)
		} else {
			cmd.Printf("Backup complete for %s.\n   %s:%s\n", res.Host.Name, res.Host.Addr(), res.Plan.RemotePath)
		}
	}

	if len(failures) > 0 {
		return &pushError{
			msg:       fmt.Sprintf("push failed for %s", strings.Join(failures, ", ")),
			rsyncExit: rsyncExit,
		}
	}
	return nil
}

// splitExtraArgs tokenizes the --rsync-extra string on whitespace.
func splitExtraArgs(s string) []string {
	return strings.Fields(s)
}
