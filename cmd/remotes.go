package cmd

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/pushback-tool/pushback/pkg/plog"
	"github.com/pushback-tool/pushback/pkg/remote"
)

var remotesServers []string

var remotesCmd = &cobra.Command{
	Use:   "remotes [PREFIX]",
	Short: "List backup directories on the remotes",
	Long: `Lists the directories under each remote's base directory. With a
prefix argument, only directories whose name starts with it are shown
(e.g. the project name to see every hash and snapshot of one project).`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		hosts, err := cfg.SelectRemotes(remotesServers)
		if err != nil {
			return err
		}

		var prefix string
		if len(args) == 1 {
			prefix = args[0]
		}

		client := remote.NewClient(cfg.Multiplex)
		for _, host := range hosts {
			entries, err := client.ListEntries(cmd.Context(), host)
			if err != nil {
				plog.Error("Could not list remote", "remote", host.Name, "error", err)
				continue
			}

			cmd.Printf("%s (%s:%s)\n", host.Name, host.Addr(), host.Base)
			shown := 0
			for _, entry := range entries {
				if prefix != "" && !strings.HasPrefix(entry, prefix) {
					continue
				}
				cmd.Printf("  %s\n", entry)
				shown++
			}
			if shown == 0 {
				cmd.Println("  (nothing)")
			}
		}
		return nil
	},
}

func init() {
	remotesCmd.Flags().StringSliceVar(&remotesServers, "server", nil, "Remote(s) to list (default: all remotes marked default)")
	rootCmd.AddCommand(remotesCmd)
}
