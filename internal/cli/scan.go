package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/example/msf-auditor/internal/config"
	"github.com/example/msf-auditor/internal/events"
	"github.com/example/msf-auditor/internal/msfrpc"
	"github.com/example/msf-auditor/internal/report"
	"github.com/example/msf-auditor/internal/runner"
	"github.com/spf13/cobra"
)

func newScanCmd(loader *config.Loader) *cobra.Command {
	var outputPath string
	var moduleOverride string
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "scan <target>",
		Short: "Run allow-listed auxiliary modules against a target",
		Long: `Run each module from the allowed_modules list (or a single --module
override) against the target through the Metasploit RPC daemon. A failing
module is recorded as failed and the scan continues with the next one.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target := args[0]

			cfg, err := loader.Load()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			modules := cfg.AllowedModules
			if moduleOverride != "" {
				if !cfg.IsAllowed(moduleOverride) {
					fmt.Fprintf(cmd.ErrOrStderr(), "Warning: module %q is not in the allowed list, proceeding anyway\n", moduleOverride)
				}
				modules = []string{moduleOverride}
			}
			if len(modules) == 0 {
				return errors.New("no modules to run: add allowed_modules to the config or pass --module")
			}

			emitter := events.NewEmitter(cmd.OutOrStdout())
			reporter := report.NewReporter()
			started := time.Now()

			if err := emitter.Emit(events.ScanStart(target, len(modules), dryRun)); err != nil {
				return err
			}

			if dryRun {
				for _, module := range modules {
					reporter.Add(report.Result{
						Module:     module,
						ModuleType: "auxiliary",
						Target:     target,
						Status:     report.StatusPlanned,
					})
				}
			} else {
				if err := runAuxiliaryModules(cmd.Context(), cfg, modules, target, emitter, reporter); err != nil {
					return err
				}
			}

			fmt.Fprintln(cmd.ErrOrStderr())
			if err := reporter.WriteSummary(cmd.ErrOrStderr()); err != nil {
				return err
			}

			if outputPath != "" {
				if err := reporter.Save(outputPath); err != nil {
					return err
				}
				if err := emitter.Emit(events.ReportWritten(outputPath)); err != nil {
					return err
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "Report saved to %s\n", outputPath)
			}

			if err := recordRun(cmd.Context(), cfg, "scan", target, outputPath, started, reporter); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "Warning: run not recorded in history: %v\n", err)
			}

			completed, failed := reporter.Counts()
			return emitter.Emit(events.ScanFinished(completed, failed))
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Report file; extension picks the format (json/yaml/pdf, default text)")
	cmd.Flags().StringVarP(&moduleOverride, "module", "m", "", "Run a single module instead of the allow-list")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Plan the scan without contacting the RPC daemon")

	return cmd
}

// runAuxiliaryModules connects, runs each module with per-module failure
// records, and always logs out on the way back.
func runAuxiliaryModules(ctx context.Context, cfg config.Config, modules []string, target string, emitter *events.Emitter, reporter *report.Reporter) error {
	client := msfrpc.NewClient(cfg.MSF)
	if err := client.Login(ctx); err != nil {
		return fmt.Errorf("connect to Metasploit RPC at %s:%d: %w", cfg.MSF.Host, cfg.MSF.Port, err)
	}
	defer func() {
		// Logout uses a fresh context so an interrupt cannot leak the session.
		_ = client.Logout(context.Background())
	}()

	aux := runner.NewAuxiliary(client, emitter)
	timeout := time.Duration(cfg.Timeout) * time.Second

	for _, module := range modules {
		result, err := aux.Run(ctx, module, target, nil, timeout)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			reporter.Add(report.Result{
				Module:     module,
				ModuleType: "auxiliary",
				Target:     target,
				Status:     report.StatusFailed,
				Error:      err.Error(),
			})
			continue
		}
		reporter.Add(result)
	}

	return nil
}
