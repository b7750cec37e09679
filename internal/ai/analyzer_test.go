package ai

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/example/msf-auditor/internal/report"
)

// fakeProvider returns canned replies without any HTTP.
type fakeProvider struct {
	reply    string
	err      error
	requests []Request
}

func (f *fakeProvider) Complete(ctx context.Context, req Request) (string, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

func (f *fakeProvider) Name() string  { return "fake" }
func (f *fakeProvider) Model() string { return "fake-model" }

func someResults() []report.Result {
	return []report.Result{
		{Module: "auxiliary/scanner/http/http_version", Target: "10.0.0.5", Status: report.StatusCompleted, Details: map[string]interface{}{"banner": "Apache/2.4.41"}},
		{Module: "auxiliary/scanner/portscan/tcp", Target: "10.0.0.5", Status: report.StatusFailed, Error: "module not found"},
	}
}

func TestAnalyzeEmptyResultsShortCircuits(t *testing.T) {
	provider := &fakeProvider{}
	analysis := NewAnalyzer(provider).Analyze(context.Background(), nil)

	if analysis.Analysis != "No scan results to analyze." {
		t.Fatalf("unexpected analysis %q", analysis.Analysis)
	}
	if analysis.RiskLevel != RiskUnknown {
		t.Fatalf("unexpected risk level %q", analysis.RiskLevel)
	}
	if len(provider.requests) != 0 {
		t.Fatal("empty input must not reach the provider")
	}
}

func TestAnalyzeParsesValidJSON(t *testing.T) {
	provider := &fakeProvider{reply: `{
		"summary": "One outdated web server.",
		"vulnerabilities": [{"title": "Outdated Apache", "severity": "Medium", "description": "Apache 2.4.41 is EOL."}],
		"risk_level": "Medium",
		"recommendations": [{"priority": "High", "action": "Upgrade Apache"}],
		"priority_actions": ["Upgrade Apache"]
	}`}

	analysis := NewAnalyzer(provider).Analyze(context.Background(), someResults())

	if analysis.RiskLevel != "Medium" {
		t.Fatalf("unexpected risk level %q", analysis.RiskLevel)
	}
	if len(analysis.Vulnerabilities) != 1 || analysis.Vulnerabilities[0].Title != "Outdated Apache" {
		t.Fatalf("unexpected vulnerabilities %+v", analysis.Vulnerabilities)
	}
	if len(analysis.Recommendations) != 1 || analysis.Recommendations[0].Action != "Upgrade Apache" {
		t.Fatalf("unexpected recommendations %+v", analysis.Recommendations)
	}
}

func TestAnalyzeMalformedReplyFallsBack(t *testing.T) {
	cases := []string{
		"The scan shows nothing interesting.",
		"```json\n{}\n```",
		"{\"unterminated\": ",
		"",
	}

	for _, reply := range cases {
		provider := &fakeProvider{reply: reply}
		analysis := NewAnalyzer(provider).Analyze(context.Background(), someResults())

		if analysis.Analysis != reply {
			t.Fatalf("fallback should carry the raw reply, got %q", analysis.Analysis)
		}
		if analysis.RiskLevel != RiskUnknown {
			t.Fatalf("fallback risk level should be unknown, got %q", analysis.RiskLevel)
		}
		if analysis.Vulnerabilities == nil || len(analysis.Vulnerabilities) != 0 {
			t.Fatalf("fallback vulnerabilities should be empty, got %+v", analysis.Vulnerabilities)
		}
		if analysis.Recommendations == nil || len(analysis.Recommendations) != 0 {
			t.Fatalf("fallback recommendations should be empty, got %+v", analysis.Recommendations)
		}
	}
}

func TestAnalyzeProviderFailure(t *testing.T) {
	provider := &fakeProvider{err: errors.New("rate limited")}
	analysis := NewAnalyzer(provider).Analyze(context.Background(), someResults())

	if !strings.HasPrefix(analysis.Analysis, "Analysis failed:") {
		t.Fatalf("unexpected analysis %q", analysis.Analysis)
	}
	if analysis.Error == "" {
		t.Fatal("error field should be set")
	}
	if analysis.RiskLevel != RiskUnknown {
		t.Fatalf("unexpected risk level %q", analysis.RiskLevel)
	}
}

func TestAnalyzePromptContents(t *testing.T) {
	provider := &fakeProvider{reply: "{}"}
	NewAnalyzer(provider).Analyze(context.Background(), someResults())

	if len(provider.requests) != 1 {
		t.Fatalf("expected one provider call, got %d", len(provider.requests))
	}
	req := provider.requests[0]

	if req.Temperature != 0.3 {
		t.Fatalf("unexpected temperature %v", req.Temperature)
	}
	if !req.JSONOnly {
		t.Fatal("analysis should request JSON-only replies")
	}
	for _, want := range []string{"--- Result 1 ---", "auxiliary/scanner/http/http_version", "Error: module not found", "Apache/2.4.41"} {
		if !strings.Contains(req.Prompt, want) {
			t.Fatalf("prompt missing %q", want)
		}
	}
}

func TestSummarizeVulnerability(t *testing.T) {
	provider := &fakeProvider{reply: "Short summary."}
	analyzer := NewAnalyzer(provider)

	got := analyzer.SummarizeVulnerability(context.Background(), Vulnerability{Title: "Outdated Apache", Severity: "Medium", Description: "EOL version."})
	if got != "Short summary." {
		t.Fatalf("unexpected summary %q", got)
	}
	if provider.requests[0].MaxTokens != 150 {
		t.Fatalf("summary should cap at 150 tokens, got %d", provider.requests[0].MaxTokens)
	}

	provider.err = errors.New("down")
	got = analyzer.SummarizeVulnerability(context.Background(), Vulnerability{})
	if !strings.HasPrefix(got, "Summary generation failed:") {
		t.Fatalf("failure should become text, got %q", got)
	}
}
