package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/example/msf-auditor/internal/ai"
	"github.com/example/msf-auditor/internal/config"
	"github.com/example/msf-auditor/internal/events"
	"github.com/example/msf-auditor/internal/msfrpc"
	"github.com/example/msf-auditor/internal/report"
	"github.com/example/msf-auditor/internal/runner"
	"github.com/spf13/cobra"
)

func newAIScanCmd(loader *config.Loader) *cobra.Command {
	var outputPath string
	var priority string
	var autoRun bool

	cmd := &cobra.Command{
		Use:     "ai-scan <target>",
		Aliases: []string{"ai_scan"},
		Short:   "AI-assisted module selection and execution",
		Long: `Ask the configured AI provider to pick Metasploit modules for the target,
filter them by minimum priority, and run the survivors in sequence. With
ai_config.enabled a second AI pass summarizes the results into a separate
analysis artifact next to the report.`,
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

			if priority != "high" && priority != "medium" && priority != "low" {
				return fmt.Errorf("--priority must be high, medium, or low (got %q)", priority)
			}

			if !cfg.AI.Enabled && cfg.AI.APIKey == "" {
				return fmt.Errorf("AI is not configured: set ai_config in %s or export %s / %s", loader.ConfigPath, ai.EnvOpenAIKey, ai.EnvAnthropicKey)
			}

			selProvider, err := ai.NewProvider(cfg.AI, ai.UseSelection)
			if err != nil {
				return err
			}

			emitter := events.NewEmitter(cmd.OutOrStdout())
			fmt.Fprintf(cmd.ErrOrStderr(), "Selecting modules for %s via %s/%s...\n", target, selProvider.Name(), selProvider.Model())

			selection := ai.NewSelector(selProvider).Select(cmd.Context(), target, nil)
			if selection.Error != "" {
				return fmt.Errorf("module selection failed: %s", selection.Error)
			}

			selection = ai.FilterByPriority(selection, priority)
			specs := ai.Flatten(selection)

			if err := emitter.Emit(events.AISelection(selProvider.Name(), selProvider.Model(), len(specs))); err != nil {
				return err
			}

			if selection.TargetAnalysis != "" {
				fmt.Fprintf(cmd.ErrOrStderr(), "\nTarget analysis: %s\n", selection.TargetAnalysis)
			}
			for i, phase := range selection.ExecutionOrder {
				fmt.Fprintf(cmd.ErrOrStderr(), "  %d. %s\n", i+1, phase)
			}

			if len(specs) == 0 {
				fmt.Fprintln(cmd.ErrOrStderr(), "No modules selected")
				return nil
			}

			for _, spec := range specs {
				fmt.Fprintf(cmd.ErrOrStderr(), "  [%s] %s\n", spec.Priority, spec.Path)
			}

			if !autoRun {
				if !confirm(cmd, fmt.Sprintf("Run %d selected modules against %s?", len(specs), target)) {
					fmt.Fprintln(cmd.ErrOrStderr(), "Scan cancelled")
					return nil
				}
			}

			reporter := report.NewReporter()
			started := time.Now()

			if err := emitter.Emit(events.ScanStart(target, len(specs), false)); err != nil {
				return err
			}

			if err := runSelectedModules(cmd.Context(), cfg, specs, target, emitter, reporter); err != nil {
				return err
			}

			if cfg.AI.Enabled {
				analyzeResults(cmd, cfg, outputPath, reporter)
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

			if err := recordRun(cmd.Context(), cfg, "ai-scan", target, outputPath, started, reporter); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "Warning: run not recorded in history: %v\n", err)
			}

			completed, failed := reporter.Counts()
			return emitter.Emit(events.ScanFinished(completed, failed))
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Report file; extension picks the format (json/yaml/pdf, default text)")
	cmd.Flags().StringVarP(&priority, "priority", "p", "high", "Minimum module priority to execute (high/medium/low)")
	cmd.Flags().BoolVarP(&autoRun, "auto-run", "a", false, "Run the selected modules without confirmation")

	return cmd
}

func runSelectedModules(ctx context.Context, cfg config.Config, specs []runner.ModuleSpec, target string, emitter *events.Emitter, reporter *report.Reporter) error {
	client := msfrpc.NewClient(cfg.MSF)
	if err := client.Login(ctx); err != nil {
		return fmt.Errorf("connect to Metasploit RPC at %s:%d: %w", cfg.MSF.Host, cfg.MSF.Port, err)
	}
	defer func() {
		_ = client.Logout(context.Background())
	}()

	universal := runner.NewUniversal(client, emitter)
	universal.Verbose = true

	results, err := universal.RunSequence(ctx, specs, target, time.Duration(cfg.Timeout)*time.Second)
	for _, result := range results {
		reporter.Add(result)
	}
	return err
}

// analyzeResults runs the second AI pass. Its failures degrade to fallback
// payloads inside the analysis itself, so this never aborts the scan.
func analyzeResults(cmd *cobra.Command, cfg config.Config, outputPath string, reporter *report.Reporter) {
	provider, err := ai.NewProvider(cfg.AI, ai.UseAnalysis)
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Warning: AI analysis skipped: %v\n", err)
		return
	}

	fmt.Fprintln(cmd.ErrOrStderr(), "Running AI analysis on results...")
	analysis := ai.NewAnalyzer(provider).Analyze(cmd.Context(), reporter.Results())
	fmt.Fprintf(cmd.ErrOrStderr(), "Risk level: %s\n", analysis.RiskLevel)

	if outputPath == "" {
		return
	}
	analysisPath := report.AnalysisPath(outputPath)
	if err := report.SaveAnalysis(analysisPath, analysis); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Warning: analysis not saved: %v\n", err)
		return
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Analysis saved to %s\n", analysisPath)
}
