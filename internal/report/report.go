// Package report collects scan results and writes them to the supported
// report sinks (JSON, YAML, plain text, PDF) plus a console summary table.
package report

import (
	"fmt"
	"io"
	"time"
)

// Result statuses. Dry runs use StatusPlanned for placeholder records.
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusPlanned   = "planned"
)

// Result is one module execution outcome. Records are append-only and never
// mutated after Add.
type Result struct {
	Module        string      `json:"module" yaml:"module"`
	ModuleType    string      `json:"module_type,omitempty" yaml:"module_type,omitempty"`
	Target        string      `json:"target" yaml:"target"`
	Status        string      `json:"status" yaml:"status"`
	ExecutionTime float64     `json:"execution_time,omitempty" yaml:"execution_time,omitempty"`
	Details       interface{} `json:"result,omitempty" yaml:"result,omitempty"`
	Error         string      `json:"error,omitempty" yaml:"error,omitempty"`
	Timestamp     string      `json:"timestamp" yaml:"timestamp"`
}

// Reporter accumulates results for the lifetime of one CLI invocation.
type Reporter struct {
	results []Result

	// Now may be replaced in tests for stable timestamps.
	Now func() time.Time
}

// NewReporter returns an empty reporter.
func NewReporter() *Reporter {
	return &Reporter{Now: time.Now}
}

// Add appends a result, stamping the collection time if the caller left it
// empty.
func (r *Reporter) Add(result Result) {
	if result.Timestamp == "" {
		now := r.Now
		if now == nil {
			now = time.Now
		}
		result.Timestamp = now().UTC().Format(time.RFC3339)
	}
	r.results = append(r.results, result)
}

// Results returns a copy of the collected records in insertion order.
func (r *Reporter) Results() []Result {
	out := make([]Result, len(r.results))
	copy(out, r.results)
	return out
}

// Counts returns the number of completed and failed records.
func (r *Reporter) Counts() (completed, failed int) {
	for _, res := range r.results {
		switch res.Status {
		case StatusCompleted:
			completed++
		case StatusFailed:
			failed++
		}
	}
	return completed, failed
}

// WriteSummary prints a fixed-width results table followed by the success
// count.
func (r *Reporter) WriteSummary(w io.Writer) error {
	if len(r.results) == 0 {
		_, err := fmt.Fprintln(w, "No results to display")
		return err
	}

	moduleWidth := len("Module")
	targetWidth := len("Target")
	for _, res := range r.results {
		if len(res.Module) > moduleWidth {
			moduleWidth = len(res.Module)
		}
		if len(res.Target) > targetWidth {
			targetWidth = len(res.Target)
		}
	}

	format := fmt.Sprintf("%%-%ds  %%-%ds  %%-10s  %%s\n", moduleWidth, targetWidth)
	if _, err := fmt.Fprintf(w, format, "Module", "Target", "Status", "Timestamp"); err != nil {
		return err
	}
	for _, res := range r.results {
		if _, err := fmt.Fprintf(w, format, res.Module, res.Target, res.Status, res.Timestamp); err != nil {
			return err
		}
	}

	completed, _ := r.Counts()
	_, err := fmt.Fprintf(w, "\nSuccessful: %d/%d\n", completed, len(r.results))
	return err
}
