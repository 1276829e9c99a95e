package cmd

import (
	"github.com/spf13/cobra"

	"github.com/pushback-tool/pushback/pkg/state"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the recorded push history",
	Long: `Shows the outcome of the last push per remote and target directory,
as recorded locally. Dry runs are never recorded; the remote itself stays
the source of truth.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := state.Open(state.DefaultPath())
		if err != nil {
			return err
		}
		defer store.Close()

		runs, err := store.Runs()
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			cmd.Println("No pushes recorded yet.")
			return nil
		}

		for _, run := range runs {
			outcome := "ok"
			if !run.Success {
				outcome = "FAILED"
			}
			cmd.Printf("%s  %-6s  %s -> %s:%s\n",
				run.FinishedAt.Format("2006-01-02 15:04"), outcome, run.LocalPath, run.Remote, run.Target)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
