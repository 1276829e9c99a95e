package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pushback-tool/pushback/pkg/buildinfo"
	"github.com/pushback-tool/pushback/pkg/config"
	"github.com/pushback-tool/pushback/pkg/ignore"
	"github.com/pushback-tool/pushback/pkg/util"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate the config and global ignore files",
	Long: `Writes a config file with placeholder remote values and a global
ignore file with the built-in default patterns. Refuses to overwrite
existing files unless --force-all is given.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := flagConfig
		if path == "" {
			path = config.DefaultPath()
		}

		cfg := config.NewDefault()
		if initForce {
			if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
				return err
			}
		}
		if err := config.Generate(path, cfg); err != nil {
			return err
		}

		ignorePath, err := util.ExpandPath(cfg.GlobalIgnore)
		if err != nil {
			return err
		}
		if err := writeGlobalIgnore(ignorePath, initForce); err != nil {
			return err
		}

		cmd.Printf("Wrote %s\nWrote %s\nEdit the remote values before the first push.\n", path, ignorePath)
		return nil
	},
}

// writeGlobalIgnore seeds the global ignore file with the built-in defaults
// so users have a template to edit.
func writeGlobalIgnore(path string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("refusing to overwrite existing ignore file: %s (use --force-all)", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), util.PrivateDirPerms); err != nil {
		return fmt.Errorf("failed to create ignore file directory: %w", err)
	}

	var b strings.Builder
	b.WriteString("# Global ignore patterns for " + buildinfo.Name + ".\n")
	b.WriteString("# One gitignore-style pattern per line; '!' re-includes.\n\n")
	for _, p := range ignore.DefaultExcludes {
		b.WriteString(p + "\n")
	}
	return os.WriteFile(path, []byte(b.String()), util.UserWritableFilePerms)
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force-all", false, "Overwrite existing files")
	rootCmd.AddCommand(initCmd)
}
