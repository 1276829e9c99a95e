package cmd

import (
	"sort"

	"github.com/spf13/cobra"

	"github.com/pushback-tool/pushback/pkg/plog"
	"github.com/pushback-tool/pushback/pkg/state"
)

var serversCmd = &cobra.Command{
	Use:   "servers",
	Short: "List configured remotes and their last recorded push",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		lastByRemote := map[string]state.Run{}
		if store, err := state.Open(state.DefaultPath()); err == nil {
			defer store.Close()
			runs, err := store.Runs()
			if err != nil {
				plog.Warn("Could not read run history", "error", err)
			}
			for _, run := range runs {
				if !run.Success {
					continue
				}
				if prev, ok := lastByRemote[run.Remote]; !ok || run.FinishedAt.After(prev.FinishedAt) {
					lastByRemote[run.Remote] = run
				}
			}
		}

		names := make([]string, 0, len(cfg.Remotes))
		for name := range cfg.Remotes {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			host := cfg.Remotes[name]
			marker := " "
			if host.Default {
				marker = "*"
			}
			cmd.Printf("%s %s\n", marker, host)
			if run, ok := lastByRemote[name]; ok {
				cmd.Printf("    last push: %s -> %s\n", run.FinishedAt.Format("2006-01-02 15:04"), run.Target)
			}
		}
		cmd.Println("\n* = pushed to when no --server is given")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serversCmd)
}
