package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the msf-auditor version",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), version)
			return err
		},
	}
}

const infoText = `msf-auditor drives Metasploit modules through the msfrpcd RPC interface
and can ask an AI provider to select modules for a target.

Use it only within an authorized assessment scope. Every module listed in
allowed_modules is executed against live infrastructure when the RPC daemon
is reachable.

Quick start:
  msf-auditor init                          write a sample configuration
  msfrpcd -P <password> -U msf -a 127.0.0.1 start the RPC daemon
  msf-auditor doctor                        check the environment
  msf-auditor scan 10.0.0.5 -o scan.json    run the allow-listed modules
`

func newInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show usage notes and the authorized-use notice",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprint(cmd.OutOrStdout(), infoText)
			return err
		},
	}
}
