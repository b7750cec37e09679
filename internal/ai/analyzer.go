package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/example/msf-auditor/internal/report"
)

// RiskUnknown is the risk level reported when analysis is unavailable or
// the provider reply could not be parsed.
const RiskUnknown = "unknown"

// Vulnerability is one finding in an analysis reply.
type Vulnerability struct {
	Title          string `json:"title"`
	Severity       string `json:"severity"`
	Description    string `json:"description"`
	AffectedTarget string `json:"affected_target,omitempty"`
}

// Recommendation is one remediation step in an analysis reply.
type Recommendation struct {
	Priority  string `json:"priority"`
	Action    string `json:"action"`
	Rationale string `json:"rationale,omitempty"`
}

// Analysis is the parsed AI review of a result list. When the provider
// reply is not valid JSON, Analysis carries the raw text and the list
// fields stay empty.
type Analysis struct {
	Summary         string           `json:"summary,omitempty"`
	Analysis        string           `json:"analysis,omitempty"`
	Vulnerabilities []Vulnerability  `json:"vulnerabilities"`
	RiskLevel       string           `json:"risk_level"`
	Recommendations []Recommendation `json:"recommendations"`
	PriorityActions []string         `json:"priority_actions,omitempty"`
	Error           string           `json:"error,omitempty"`
}

// Analyzer summarizes scan results through a chat-completion provider.
type Analyzer struct {
	provider Provider
}

// NewAnalyzer wraps a provider for result analysis.
func NewAnalyzer(provider Provider) *Analyzer {
	return &Analyzer{provider: provider}
}

const analyzerSystemPrompt = "You are a cybersecurity expert analyzing penetration test results. " +
	"Provide detailed, actionable security analysis."

// Analyze reviews the results and always returns a usable payload: provider
// failures and unparseable replies degrade to the fixed fallback shape
// instead of an error.
func (a *Analyzer) Analyze(ctx context.Context, results []report.Result) Analysis {
	if len(results) == 0 {
		return Analysis{
			Analysis:        "No scan results to analyze.",
			Vulnerabilities: []Vulnerability{},
			Recommendations: []Recommendation{},
			RiskLevel:       RiskUnknown,
		}
	}

	reply, err := a.provider.Complete(ctx, Request{
		System:      analyzerSystemPrompt,
		Prompt:      buildAnalysisPrompt(results),
		Temperature: 0.3,
		JSONOnly:    true,
	})
	if err != nil {
		return Analysis{
			Analysis:        fmt.Sprintf("Analysis failed: %v", err),
			Vulnerabilities: []Vulnerability{},
			Recommendations: []Recommendation{},
			RiskLevel:       RiskUnknown,
			Error:           err.Error(),
		}
	}

	return parseAnalysis(reply)
}

// SummarizeVulnerability asks for a 2-3 sentence brief on one finding.
// Provider failure becomes the returned text, never an error.
func (a *Analyzer) SummarizeVulnerability(ctx context.Context, v Vulnerability) string {
	prompt := fmt.Sprintf(`Provide a brief (2-3 sentence) summary of this vulnerability:

Title: %s
Severity: %s
Description: %s

Focus on business impact and immediate risk.`, orUnknown(v.Title), orUnknown(v.Severity), orDefault(v.Description, "No description"))

	reply, err := a.provider.Complete(ctx, Request{
		Prompt:      prompt,
		Temperature: 0.3,
		MaxTokens:   150,
	})
	if err != nil {
		return fmt.Sprintf("Summary generation failed: %v", err)
	}
	return reply
}

func buildAnalysisPrompt(results []report.Result) string {
	var b strings.Builder
	b.WriteString(`You are a security analyst reviewing Metasploit auxiliary module scan results.
Analyze the following scan results and provide:

1. A summary of findings
2. List of potential vulnerabilities identified
3. Risk level assessment (Critical, High, Medium, Low, Info)
4. Specific remediation recommendations
5. Priority actions

Scan Results:
`)

	for i, res := range results {
		fmt.Fprintf(&b, "\n--- Result %d ---\n", i+1)
		fmt.Fprintf(&b, "Module: %s\n", orUnknown(res.Module))
		fmt.Fprintf(&b, "Target: %s\n", orUnknown(res.Target))
		fmt.Fprintf(&b, "Status: %s\n", orUnknown(res.Status))
		if res.Error != "" {
			fmt.Fprintf(&b, "Error: %s\n", res.Error)
		}
		if res.Details != nil {
			if data, err := json.Marshal(res.Details); err == nil {
				fmt.Fprintf(&b, "Details: %s\n", data)
			}
		}
	}

	b.WriteString(`

Please provide your analysis in the following JSON format:
{
  "summary": "Brief overview of findings",
  "vulnerabilities": [
    {
      "title": "Vulnerability name",
      "severity": "Critical|High|Medium|Low|Info",
      "description": "Detailed description",
      "affected_target": "Target identifier"
    }
  ],
  "risk_level": "Critical|High|Medium|Low|Info",
  "recommendations": [
    {
      "priority": "High|Medium|Low",
      "action": "Specific action to take",
      "rationale": "Why this is important"
    }
  ],
  "priority_actions": ["Action 1", "Action 2"]
}

Only respond with valid JSON, no additional text.
`)

	return b.String()
}

func parseAnalysis(reply string) Analysis {
	var parsed Analysis
	if err := json.Unmarshal([]byte(reply), &parsed); err != nil {
		return Analysis{
			Analysis:        reply,
			Vulnerabilities: []Vulnerability{},
			Recommendations: []Recommendation{},
			RiskLevel:       RiskUnknown,
		}
	}

	if parsed.Vulnerabilities == nil {
		parsed.Vulnerabilities = []Vulnerability{}
	}
	if parsed.Recommendations == nil {
		parsed.Recommendations = []Recommendation{}
	}
	if parsed.RiskLevel == "" {
		parsed.RiskLevel = RiskUnknown
	}
	return parsed
}

func orUnknown(s string) string {
	return orDefault(s, "unknown")
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
