package report

import (
	"bytes"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

func fixedClock() time.Time {
	return time.Date(2025, 11, 2, 10, 30, 0, 0, time.UTC)
}

func sampleResults() []Result {
	return []Result{
		{
			Module:        "auxiliary/scanner/http/http_version",
			ModuleType:    "auxiliary",
			Target:        "10.0.0.5",
			Status:        StatusCompleted,
			ExecutionTime: 1.25,
			Details:       map[string]interface{}{"uuid": "abc-123"},
		},
		{
			Module:     "auxiliary/scanner/portscan/tcp",
			ModuleType: "auxiliary",
			Target:     "10.0.0.5",
			Status:     StatusFailed,
			Error:      "module 'auxiliary/scanner/portscan/tcp' not found",
		},
	}
}

func TestAddStampsTimestamp(t *testing.T) {
	r := NewReporter()
	r.Now = fixedClock

	r.Add(Result{Module: "auxiliary/scanner/http/http_version", Target: "10.0.0.5", Status: StatusCompleted})

	results := r.Results()
	if len(results) != 1 {
		t.Fatalf("expected one record, got %d", len(results))
	}
	if results[0].Timestamp != "2025-11-02T10:30:00Z" {
		t.Fatalf("unexpected timestamp %q", results[0].Timestamp)
	}
}

func TestAddKeepsExplicitTimestamp(t *testing.T) {
	r := NewReporter()
	r.Add(Result{Module: "m", Target: "t", Status: StatusFailed, Timestamp: "2024-01-01T00:00:00Z"})

	if got := r.Results()[0].Timestamp; got != "2024-01-01T00:00:00Z" {
		t.Fatalf("explicit timestamp was overwritten: %q", got)
	}
}

func TestCounts(t *testing.T) {
	r := NewReporter()
	r.Now = fixedClock
	for _, res := range sampleResults() {
		r.Add(res)
	}
	r.Add(Result{Module: "auxiliary/scanner/ssh/ssh_version", Target: "10.0.0.5", Status: StatusCompleted})

	completed, failed := r.Counts()
	if completed != 2 || failed != 1 {
		t.Fatalf("expected 2 completed / 1 failed, got %d / %d", completed, failed)
	}
}

func TestWriteSummaryEmpty(t *testing.T) {
	buf := &bytes.Buffer{}
	if err := NewReporter().WriteSummary(buf); err != nil {
		t.Fatalf("summary: %v", err)
	}
	if !strings.Contains(buf.String(), "No results to display") {
		t.Fatalf("empty reporter should print a notice, got %q", buf.String())
	}
}

func TestWriteSummaryTable(t *testing.T) {
	r := NewReporter()
	r.Now = fixedClock
	for _, res := range sampleResults() {
		r.Add(res)
	}

	buf := &bytes.Buffer{}
	if err := r.WriteSummary(buf); err != nil {
		t.Fatalf("summary: %v", err)
	}

	out := buf.String()
	for _, want := range []string{"Module", "auxiliary/scanner/http/http_version", "completed", "failed", "Successful: 1/2"} {
		if !strings.Contains(out, want) {
			t.Fatalf("summary missing %q:\n%s", want, out)
		}
	}
}

func TestJSONRoundTrip(t *testing.T) {
	r := NewReporter()
	r.Now = fixedClock
	for _, res := range sampleResults() {
		r.Add(res)
	}

	path := filepath.Join(t.TempDir(), "reports", "scan.json")
	if err := r.SaveJSON(path); err != nil {
		t.Fatalf("save json: %v", err)
	}

	loaded, err := LoadJSON(path)
	if err != nil {
		t.Fatalf("load json: %v", err)
	}

	if !reflect.DeepEqual(loaded, r.Results()) {
		t.Fatalf("round trip mismatch:\nsaved:  %#v\nloaded: %#v", r.Results(), loaded)
	}
}

func TestSaveTextBannerAndSections(t *testing.T) {
	r := NewReporter()
	r.Now = fixedClock
	for _, res := range sampleResults() {
		r.Add(res)
	}

	path := filepath.Join(t.TempDir(), "scan.txt")
	if err := r.SaveText(path); err != nil {
		t.Fatalf("save text: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read text: %v", err)
	}

	out := string(data)
	for _, want := range []string{"MSF AUXILIARY SCAN REPORT", "Result 1", "Result 2", "Module: auxiliary/scanner/http/http_version", "Error: module"} {
		if !strings.Contains(out, want) {
			t.Fatalf("text report missing %q:\n%s", want, out)
		}
	}
}

func TestSaveDispatchesOnExtension(t *testing.T) {
	dir := t.TempDir()

	r := NewReporter()
	r.Now = fixedClock
	r.Add(sampleResults()[0])

	cases := []struct {
		name string
		path string
		want string
	}{
		{"json", filepath.Join(dir, "scan.json"), "\"module\""},
		{"yaml", filepath.Join(dir, "scan.yaml"), "module: auxiliary/scanner/http/http_version"},
		{"text", filepath.Join(dir, "scan.log"), "MSF AUXILIARY SCAN REPORT"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := r.Save(tc.path); err != nil {
				t.Fatalf("save: %v", err)
			}
			data, err := os.ReadFile(tc.path)
			if err != nil {
				t.Fatalf("read: %v", err)
			}
			if !strings.Contains(string(data), tc.want) {
				t.Fatalf("artifact missing %q:\n%s", tc.want, data)
			}
			if _, err := os.Stat(tc.path + ".sha256"); err != nil {
				t.Fatalf("checksum sidecar missing: %v", err)
			}
		})
	}
}

func TestSavePDFWritesFileAndSidecar(t *testing.T) {
	r := NewReporter()
	r.Now = fixedClock
	for _, res := range sampleResults() {
		r.Add(res)
	}

	path := filepath.Join(t.TempDir(), "scan.pdf")
	if err := r.Save(path); err != nil {
		t.Fatalf("save pdf: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read pdf: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("%PDF")) {
		t.Fatalf("artifact does not look like a PDF: %q", data[:8])
	}
	if err := VerifyChecksum(path); err != nil {
		t.Fatalf("pdf sidecar should verify: %v", err)
	}
}

func TestVerifyChecksum(t *testing.T) {
	r := NewReporter()
	r.Now = fixedClock
	r.Add(sampleResults()[0])

	path := filepath.Join(t.TempDir(), "scan.json")
	if err := r.SaveJSON(path); err != nil {
		t.Fatalf("save: %v", err)
	}

	if err := VerifyChecksum(path); err != nil {
		t.Fatalf("fresh artifact should verify: %v", err)
	}

	// Tamper with the artifact; the sidecar must now reject it.
	if err := os.WriteFile(path, []byte("[]\n"), 0o644); err != nil {
		t.Fatalf("tamper: %v", err)
	}
	if err := VerifyChecksum(path); err == nil {
		t.Fatal("tampered artifact should fail verification")
	}
}

func TestVerifySignatureErrors(t *testing.T) {
	dir := t.TempDir()
	artifact := filepath.Join(dir, "scan.json")
	if err := os.WriteFile(artifact, []byte("[]\n"), 0o644); err != nil {
		t.Fatalf("write artifact: %v", err)
	}

	t.Run("missing keyring", func(t *testing.T) {
		if _, err := VerifySignature(artifact, artifact, filepath.Join(dir, "absent.asc")); err == nil {
			t.Fatal("expected error for missing keyring")
		}
	})

	t.Run("invalid keyring", func(t *testing.T) {
		keyring := filepath.Join(dir, "bogus.asc")
		if err := os.WriteFile(keyring, []byte("not a keyring"), 0o644); err != nil {
			t.Fatalf("write keyring: %v", err)
		}
		if _, err := VerifySignature(artifact, artifact, keyring); err == nil {
			t.Fatal("expected error for invalid keyring")
		}
	})
}

func TestAnalysisPath(t *testing.T) {
	cases := map[string]string{
		"scan.json":          "scan.analysis.json",
		"out/report.yaml":    "out/report.analysis.json",
		"plain-report":       "plain-report.analysis.json",
		"nested/scan.v2.pdf": "nested/scan.v2.analysis.json",
	}
	for in, want := range cases {
		if got := AnalysisPath(in); got != want {
			t.Fatalf("AnalysisPath(%q) = %q, want %q", in, got, want)
		}
	}
}
