// Package cli builds the msf-auditor command tree. Human diagnostics go to
// stderr; stdout carries the NDJSON event stream and machine-readable
// output so both can be piped independently.
package cli

import (
	"context"

	"github.com/example/msf-auditor/internal/config"
	"github.com/spf13/cobra"
)

// version is stamped by the release build via -ldflags.
var version = "0.1.0"

// Execute builds the root command tree and runs the CLI.
func Execute(ctx context.Context) error {
	loader := &config.Loader{ConfigPath: config.DefaultConfigPath}

	rootCmd := &cobra.Command{
		Use:           "msf-auditor",
		Short:         "Orchestrate Metasploit RPC audits with optional AI assistance",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version,
	}
	rootCmd.SetVersionTemplate("msf-auditor version {{.Version}}\n")

	var configPath string
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultConfigPath, "Path to the configuration file (JSON or YAML)")
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		if configPath != "" {
			loader.ConfigPath = configPath
		}
	}

	rootCmd.AddCommand(
		newVersionCmd(),
		newInfoCmd(),
		newScanCmd(loader),
		newAIScanCmd(loader),
		newInitCmd(loader),
		newDoctorCmd(loader),
		newHistoryCmd(loader),
		newVerifyCmd(),
	)

	return rootCmd.ExecuteContext(ctx)
}
