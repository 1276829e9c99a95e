package cmd

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/pushback-tool/pushback/pkg/archive"
	"github.com/pushback-tool/pushback/pkg/ignore"
	"github.com/pushback-tool/pushback/pkg/largefile"
	"github.com/pushback-tool/pushback/pkg/pathtoken"
	"github.com/pushback-tool/pushback/pkg/preflight"
	"github.com/pushback-tool/pushback/pkg/snapshot"
	"github.com/pushback-tool/pushback/pkg/util"
)

var (
	archiveOutput string
	archiveFormat string
	archiveDryRun bool
)

var archiveCmd = &cobra.Command{
	Use:   "archive PROJECT_PATH",
	Short: "Write a local compressed archive of the project",
	Long: `Writes a compressed tarball of the project to a local directory,
honoring the same ignore rules as a push. The archive name matches the
remote directory name, snapshot suffix included.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		format, err := archive.ParseFormat(archiveFormat)
		if err != nil {
			return err
		}

		root, err := util.CanonicalPath(args[0])
		if err != nil {
			return err
		}
		if err := preflight.CheckSourceAccessible(root); err != nil {
			return err
		}

		outDir, err := util.CanonicalPath(archiveOutput)
		if err != nil {
			return err
		}
		if !archiveDryRun {
			if err := preflight.CheckArchiveDirWritable(outDir); err != nil {
				return err
			}
		}

		token, err := pathtoken.New(root)
		if err != nil {
			return err
		}
		bucket, err := snapshot.BucketFor(cfg.Snapshot.Mode, time.Now(), cfg.Snapshot.CustomHours)
		if err != nil {
			return err
		}

		rules, err := buildRules(newPrompter(cmd), cfg, root)
		if err != nil {
			return err
		}

		if !archiveDryRun {
			required, err := estimateArchiveSize(root, rules)
			if err != nil {
				return err
			}
			if err := preflight.CheckFreeSpace(outDir, required); err != nil {
				return err
			}
		}

		archivePath := filepath.Join(outDir, token.BaseName()+bucket.Suffix()+format.Extension())
		writer := archive.NewWriter(format, archiveDryRun)
		if err := writer.Create(cmd.Context(), root, archivePath, rules); err != nil {
			return err
		}

		if !archiveDryRun {
			cmd.Printf("Archive written to %s\n", archivePath)
		}
		return nil
	},
}

// estimateArchiveSize sums the sizes of the files the rule set includes.
// The uncompressed total is a conservative free-space requirement for the
// finished archive.
func estimateArchiveSize(root string, rules *ignore.RuleSet) (int64, error) {
	sizes, err := largefile.Scan(root, rules)
	if err != nil {
		return 0, fmt.Errorf("estimating archive size: %w", err)
	}
	var total int64
	for _, size := range sizes {
		total += size
	}
	return total, nil
}

func init() {
	archiveCmd.Flags().StringVarP(&archiveOutput, "output", "o", ".", "Directory to write the archive to")
	archiveCmd.Flags().StringVar(&archiveFormat, "format", "tar.gz", "Archive format: tar.gz or tar.zst")
	archiveCmd.Flags().BoolVarP(&archiveDryRun, "dry-run", "n", false, "Preview without writing the archive")
	rootCmd.AddCommand(archiveCmd)
}
