package report

import (
	"bytes"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/phpdave11/gofpdf"
	"gopkg.in/yaml.v3"
)

const textBanner = "MSF AUXILIARY SCAN REPORT"

// Save writes the report to path, choosing the sink from the extension:
// .json, .yaml/.yml, .pdf, anything else plain text. Every sink also writes
// a <path>.sha256 checksum sidecar.
func (r *Reporter) Save(path string) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return r.SaveJSON(path)
	case ".yaml", ".yml":
		return r.SaveYAML(path)
	case ".pdf":
		return r.SavePDF(path)
	default:
		return r.SaveText(path)
	}
}

// SaveJSON writes the records as a pretty-printed JSON list.
func (r *Reporter) SaveJSON(path string) error {
	data, err := json.MarshalIndent(r.results, "", "  ")
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return writeArtifact(path, append(data, '\n'))
}

// SaveYAML writes the records as a YAML list.
func (r *Reporter) SaveYAML(path string) error {
	data, err := yaml.Marshal(r.results)
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return writeArtifact(path, data)
}

// SaveText writes the fixed banner/section template per result.
func (r *Reporter) SaveText(path string) error {
	var buf bytes.Buffer
	rule := strings.Repeat("=", 80)

	fmt.Fprintln(&buf, rule)
	fmt.Fprintln(&buf, textBanner)
	fmt.Fprintln(&buf, rule)
	fmt.Fprintln(&buf)

	for i, res := range r.results {
		fmt.Fprintf(&buf, "Result %d\n", i+1)
		fmt.Fprintln(&buf, strings.Repeat("-", 80))
		fmt.Fprintf(&buf, "Module: %s\n", res.Module)
		if res.ModuleType != "" {
			fmt.Fprintf(&buf, "Type: %s\n", res.ModuleType)
		}
		fmt.Fprintf(&buf, "Target: %s\n", res.Target)
		fmt.Fprintf(&buf, "Status: %s\n", res.Status)
		fmt.Fprintf(&buf, "Timestamp: %s\n", res.Timestamp)
		if res.Error != "" {
			fmt.Fprintf(&buf, "Error: %s\n", res.Error)
		}
		fmt.Fprintf(&buf, "\nDetails:\n%s\n", detailsJSON(res.Details))
		fmt.Fprintf(&buf, "\n%s\n\n", rule)
	}

	return writeArtifact(path, buf.Bytes())
}

// SavePDF renders an A4 portrait report with a summary header and one
// section per result.
func (r *Reporter) SavePDF(path string) error {
	if err := ensureParentDir(path); err != nil {
		return err
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(textBanner, false)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 10, textBanner, "", 1, "C", false, 0, "")

	completed, failed := r.Counts()
	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(0, 6, fmt.Sprintf("Results: %d total, %d completed, %d failed", len(r.results), completed, failed), "", 1, "C", false, 0, "")
	pdf.Ln(4)

	for i, res := range r.results {
		pdf.SetFont("Helvetica", "B", 12)
		pdf.CellFormat(0, 8, fmt.Sprintf("Result %d: %s", i+1, res.Module), "B", 1, "L", false, 0, "")

		pdf.SetFont("Helvetica", "", 10)
		pdf.CellFormat(0, 6, fmt.Sprintf("Target: %s", res.Target), "", 1, "L", false, 0, "")
		pdf.CellFormat(0, 6, fmt.Sprintf("Status: %s    Timestamp: %s", res.Status, res.Timestamp), "", 1, "L", false, 0, "")
		if res.Error != "" {
			pdf.MultiCell(0, 6, "Error: "+res.Error, "", "L", false)
		}
		if res.Details != nil {
			pdf.SetFont("Courier", "", 8)
			pdf.MultiCell(0, 4, detailsJSON(res.Details), "", "L", false)
		}
		pdf.Ln(4)
	}

	if err := pdf.OutputFileAndClose(path); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}

	data, err := os.ReadFile(path) // #nosec G304 -- path was just written by us
	if err != nil {
		return fmt.Errorf("read back %s: %w", path, err)
	}
	return writeChecksumSidecar(path, data)
}

// LoadJSON reads a report previously written by SaveJSON.
func LoadJSON(path string) ([]Result, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- report path is operator input
	if err != nil {
		return nil, fmt.Errorf("read report %s: %w", path, err)
	}

	var results []Result
	if err := json.Unmarshal(data, &results); err != nil {
		return nil, fmt.Errorf("parse report %s: %w", path, err)
	}
	return results, nil
}

// SaveAnalysis writes an AI analysis payload next to a report as its own
// artifact; it is never merged into the result list.
func SaveAnalysis(path string, analysis interface{}) error {
	data, err := json.MarshalIndent(analysis, "", "  ")
	if err != nil {
		return fmt.Errorf("encode analysis: %w", err)
	}
	return writeArtifact(path, append(data, '\n'))
}

// AnalysisPath derives the analysis artifact path for a report path, e.g.
// scan.json -> scan.analysis.json.
func AnalysisPath(reportPath string) string {
	ext := filepath.Ext(reportPath)
	return strings.TrimSuffix(reportPath, ext) + ".analysis.json"
}

func detailsJSON(details interface{}) string {
	if details == nil {
		details = map[string]interface{}{}
	}
	data, err := json.MarshalIndent(details, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", details)
	}
	return string(data)
}

func writeArtifact(path string, data []byte) error {
	if err := ensureParentDir(path); err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil { // #nosec G306 -- reports are shareable artifacts
		return fmt.Errorf("write %s: %w", path, err)
	}
	return writeChecksumSidecar(path, data)
}

func writeChecksumSidecar(path string, data []byte) error {
	sum := sha256.Sum256(data)
	line := fmt.Sprintf("%x  %s\n", sum, filepath.Base(path))
	if err := os.WriteFile(path+".sha256", []byte(line), 0o644); err != nil { // #nosec G306
		return fmt.Errorf("write checksum sidecar: %w", err)
	}
	return nil
}

func ensureParentDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create report directory %s: %w", dir, err)
	}
	return nil
}
