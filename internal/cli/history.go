package cli

import (
	"fmt"

	"github.com/example/msf-auditor/internal/config"
	"github.com/example/msf-auditor/internal/history"
	"github.com/spf13/cobra"
)

func newHistoryCmd(loader *config.Loader) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent scan runs from the history database",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loader.Load()
			if err != nil {
				return err
			}
			if cfg.HistoryDB == "" {
				return fmt.Errorf("history_db is not configured in %s", loader.ConfigPath)
			}

			store, err := history.Open(cfg.HistoryDB)
			if err != nil {
				return err
			}
			defer store.Close()

			runs, err := store.ListRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded yet")
				return nil
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%-5s  %-8s  %-25s  %-8s  %-6s  %-20s  %s\n",
				"ID", "Command", "Target", "Modules", "Failed", "Started", "Report")
			for _, run := range runs {
				fmt.Fprintf(cmd.OutOrStdout(), "%-5d  %-8s  %-25s  %-8d  %-6d  %-20s  %s\n",
					run.ID, run.Command, run.Target, run.Modules, run.Failed,
					run.StartedAt.Format("2006-01-02 15:04:05"), run.ReportPath)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of runs to list")

	return cmd
}
