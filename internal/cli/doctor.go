package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/example/msf-auditor/internal/ai"
	"github.com/example/msf-auditor/internal/config"
	"github.com/example/msf-auditor/internal/history"
	"github.com/example/msf-auditor/internal/msfrpc"
	"github.com/spf13/cobra"
)

type doctorCheck struct {
	Name   string
	Status string // "✓", "✗" or "⊘"
	Detail string
	Err    error
}

func newDoctorCmd(loader *config.Loader) *cobra.Command {
	var timeout int

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Validate the configuration, RPC reachability, AI credentials, and history DB",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loader.Load()
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), time.Duration(timeout)*time.Second)
			defer cancel()

			checks := runDoctorChecks(ctx, cfg)

			fmt.Fprintln(cmd.OutOrStdout(), "Running environment diagnostics...")
			failed := false
			for _, check := range checks {
				fmt.Fprintf(cmd.OutOrStdout(), "%s %-20s %s\n", check.Status, check.Name+":", check.Detail)
				if check.Err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "   Error: %v\n", check.Err)
					failed = true
				}
			}

			if failed {
				return fmt.Errorf("doctor checks failed")
			}

			fmt.Fprintln(cmd.OutOrStdout(), "\n✓ All checks passed. System is ready.")
			return nil
		},
	}

	cmd.Flags().IntVar(&timeout, "timeout", 30, "Timeout in seconds for network checks")

	return cmd
}

func runDoctorChecks(ctx context.Context, cfg config.Config) []doctorCheck {
	checks := []doctorCheck{checkConfiguration(cfg)}

	// A broken configuration makes the remaining probes meaningless.
	if checks[0].Err != nil {
		return checks
	}

	checks = append(checks,
		checkRPC(ctx, cfg),
		checkAICredentials(cfg),
		checkHistoryDB(cfg),
	)
	return checks
}

func checkConfiguration(cfg config.Config) doctorCheck {
	if err := cfg.Validate(); err != nil {
		return doctorCheck{Name: "Configuration", Status: "✗", Detail: "Invalid configuration", Err: err}
	}
	return doctorCheck{
		Name:   "Configuration",
		Status: "✓",
		Detail: fmt.Sprintf("%d allowed modules, timeout %ds", len(cfg.AllowedModules), cfg.Timeout),
	}
}

func checkRPC(ctx context.Context, cfg config.Config) doctorCheck {
	name := "Metasploit RPC"
	endpoint := fmt.Sprintf("%s:%d", cfg.MSF.Host, cfg.MSF.Port)

	client := msfrpc.NewClient(cfg.MSF)
	if err := client.Login(ctx); err != nil {
		return doctorCheck{Name: name, Status: "✗", Detail: "Unreachable at " + endpoint, Err: err}
	}
	defer func() {
		_ = client.Logout(context.Background())
	}()

	version, err := client.CoreVersion(ctx)
	if err != nil {
		return doctorCheck{Name: name, Status: "✗", Detail: "Login ok, core.version failed", Err: err}
	}

	return doctorCheck{Name: name, Status: "✓", Detail: fmt.Sprintf("Framework %s at %s", version.Version, endpoint)}
}

func checkAICredentials(cfg config.Config) doctorCheck {
	name := "AI Credentials"
	if !cfg.AI.Enabled {
		return doctorCheck{Name: name, Status: "⊘", Detail: "Skipped (ai_config.enabled is false)"}
	}
	if !ai.HasCredentials(cfg.AI) {
		return doctorCheck{
			Name:   name,
			Status: "✗",
			Detail: "No key for provider " + cfg.AI.Provider,
			Err:    fmt.Errorf("set ai_config.api_key or the provider's environment variable"),
		}
	}
	return doctorCheck{Name: name, Status: "✓", Detail: "Key available for " + cfg.AI.Provider}
}

func checkHistoryDB(cfg config.Config) doctorCheck {
	name := "History DB"
	if cfg.HistoryDB == "" {
		return doctorCheck{Name: name, Status: "⊘", Detail: "Skipped (history_db not configured)"}
	}

	store, err := history.Open(cfg.HistoryDB)
	if err != nil {
		return doctorCheck{Name: name, Status: "✗", Detail: cfg.HistoryDB, Err: err}
	}
	store.Close()

	return doctorCheck{Name: name, Status: "✓", Detail: cfg.HistoryDB}
}
