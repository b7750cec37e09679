package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/example/msf-auditor/internal/config"
	"github.com/example/msf-auditor/internal/history"
	"github.com/example/msf-auditor/internal/report"
	"github.com/spf13/cobra"
)

// confirm asks a yes/no question on stderr and reads the answer from the
// command's input. Anything but y/yes declines.
func confirm(cmd *cobra.Command, question string) bool {
	fmt.Fprintf(cmd.ErrOrStderr(), "\n%s [y/N]: ", question)

	reader := bufio.NewReader(cmd.InOrStdin())
	line, err := reader.ReadString('\n')
	if err != nil && line == "" {
		return false
	}

	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}

// recordRun stores the finished run in the history database when one is
// configured; otherwise it is a no-op.
func recordRun(ctx context.Context, cfg config.Config, command, target, reportPath string, started time.Time, reporter *report.Reporter) error {
	if cfg.HistoryDB == "" {
		return nil
	}

	store, err := history.Open(cfg.HistoryDB)
	if err != nil {
		return err
	}
	defer store.Close()

	results := reporter.Results()
	completed, failed := reporter.Counts()

	_, err = store.RecordRun(ctx, history.Run{
		Command:    command,
		Target:     target,
		Modules:    len(results),
		Completed:  completed,
		Failed:     failed,
		ReportPath: reportPath,
		StartedAt:  started,
		FinishedAt: time.Now(),
	}, results)
	return err
}
