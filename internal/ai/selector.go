package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/example/msf-auditor/internal/runner"
)

// SelectedModule is one module recommendation inside a Selection.
type SelectedModule struct {
	Module             string                 `json:"module"`
	Priority           string                 `json:"priority"`
	Rationale          string                 `json:"rationale,omitempty"`
	Options            map[string]interface{} `json:"options,omitempty"`
	RecommendedPayload string                 `json:"recommended_payload,omitempty"`
}

// Selection is the parsed module-selection reply, keyed by module type.
// Error is set when the provider call failed or the reply was not JSON; in
// that case every type maps to an empty list.
type Selection struct {
	TargetAnalysis string                      `json:"target_analysis,omitempty"`
	ExecutionOrder []string                    `json:"execution_order,omitempty"`
	Modules        map[string][]SelectedModule `json:"modules"`
	Error          string                      `json:"error,omitempty"`
	RawResponse    string                      `json:"raw_response,omitempty"`
}

// Selector asks a chat-completion provider to pick framework modules for a
// target.
type Selector struct {
	provider Provider
}

// NewSelector wraps a provider for module selection.
func NewSelector(provider Provider) *Selector {
	return &Selector{provider: provider}
}

// Provider exposes the wrapped provider for event reporting.
func (s *Selector) Provider() Provider {
	return s.provider
}

const selectorSystemPrompt = "You are a cybersecurity expert specializing in Metasploit Framework. " +
	"Provide specific, actionable module recommendations for authorized penetration testing."

// Select recommends modules for the target. Failures never surface as Go
// errors: the returned Selection carries Error and empty module lists, and
// the caller decides whether to abort.
func (s *Selector) Select(ctx context.Context, target string, targetInfo map[string]interface{}) Selection {
	reply, err := s.provider.Complete(ctx, Request{
		System:      selectorSystemPrompt,
		Prompt:      buildSelectionPrompt(target, targetInfo),
		Temperature: 0.2,
		JSONOnly:    true,
	})
	if err != nil {
		return Selection{Error: err.Error(), Modules: emptyModules()}
	}

	return parseSelection(reply)
}

func buildSelectionPrompt(target string, targetInfo map[string]interface{}) string {
	var b strings.Builder
	fmt.Fprintf(&b, `You are a penetration testing expert using Metasploit Framework.
Analyze the target and recommend specific Metasploit modules to run.

Target: %s
`, target)

	if len(targetInfo) > 0 {
		if data, err := json.MarshalIndent(targetInfo, "", "  "); err == nil {
			fmt.Fprintf(&b, "\nAdditional Information:\n%s\n", data)
		}
	}

	b.WriteString(`

Based on the target, recommend specific Metasploit modules to test. Consider:

1. Target type: URL (web app), IP address, hostname, service?
2. Common vulnerabilities the modules should test for
3. Reconnaissance: auxiliary modules that gather information
4. Exploitation: exploit modules where vulnerabilities are likely
5. Post-exploitation modules useful after compromise
6. Appropriate payloads
7. Evasion techniques if needed
8. Encoder/NOP requirements

Provide your recommendations in JSON format with the following structure:
{
  "target_analysis": "Brief analysis of the target and attack approach",
  "execution_order": ["phase1_description", "phase2_description"],
  "modules": {
    "auxiliary": [
      {
        "module": "auxiliary/scanner/http/http_version",
        "priority": "high|medium|low",
        "rationale": "Why this module",
        "options": {"key": "value"}
      }
    ],
    "exploit": [
      {
        "module": "exploit/unix/webapp/example",
        "priority": "high|medium|low",
        "rationale": "Why this exploit",
        "options": {"key": "value"},
        "recommended_payload": "payload/generic/shell_reverse_tcp"
      }
    ],
    "payload": [],
    "post": [],
    "encoder": [],
    "nop": [],
    "evasion": []
  }
}

Important:
- Use real, existing Metasploit module paths
- Prioritize modules based on likelihood of success and information value
- Include proper options for each module where applicable
- For web targets (URLs), focus on web application modules
- For IP addresses, include network scanning and service enumeration
- Only recommend modules that are appropriate for AUTHORIZED security testing
- Be specific and practical

Only respond with valid JSON, no additional text.`)

	return b.String()
}

func parseSelection(reply string) Selection {
	var parsed Selection
	if err := json.Unmarshal([]byte(reply), &parsed); err != nil {
		return Selection{
			Error:       "failed to parse AI response",
			RawResponse: reply,
			Modules:     emptyModules(),
		}
	}

	if parsed.Modules == nil {
		parsed.Modules = emptyModules()
	}
	for _, moduleType := range runner.ModuleTypes {
		if parsed.Modules[moduleType] == nil {
			parsed.Modules[moduleType] = []SelectedModule{}
		}
	}
	return parsed
}

func emptyModules() map[string][]SelectedModule {
	modules := make(map[string][]SelectedModule, len(runner.ModuleTypes))
	for _, moduleType := range runner.ModuleTypes {
		modules[moduleType] = []SelectedModule{}
	}
	return modules
}

// Priority ranks used for client-side filtering. Unknown labels rank low.
var priorityRank = map[string]int{"high": 3, "medium": 2, "low": 1}

// PriorityRank maps a priority label to its numeric rank.
func PriorityRank(priority string) int {
	if rank, ok := priorityRank[strings.ToLower(priority)]; ok {
		return rank
	}
	return 1
}

// FilterByPriority keeps modules whose rank is at least that of min,
// preserving the target analysis and execution order.
func FilterByPriority(sel Selection, min string) Selection {
	minRank := PriorityRank(min)

	filtered := Selection{
		TargetAnalysis: sel.TargetAnalysis,
		ExecutionOrder: sel.ExecutionOrder,
		Modules:        make(map[string][]SelectedModule, len(runner.ModuleTypes)),
	}

	for _, moduleType := range runner.ModuleTypes {
		kept := []SelectedModule{}
		for _, mod := range sel.Modules[moduleType] {
			if PriorityRank(mod.Priority) >= minRank {
				kept = append(kept, mod)
			}
		}
		filtered.Modules[moduleType] = kept
	}

	return filtered
}

// CountModules returns the total number of selected modules.
func CountModules(sel Selection) int {
	count := 0
	for _, moduleType := range runner.ModuleTypes {
		count += len(sel.Modules[moduleType])
	}
	return count
}

// Flatten turns a selection into an execution list in canonical type order,
// keeping the list order within each type.
func Flatten(sel Selection) []runner.ModuleSpec {
	var specs []runner.ModuleSpec
	for _, moduleType := range runner.ModuleTypes {
		for _, mod := range sel.Modules[moduleType] {
			if mod.Module == "" {
				continue
			}
			specs = append(specs, runner.ModuleSpec{
				Type:     moduleType,
				Path:     mod.Module,
				Options:  mod.Options,
				Priority: mod.Priority,
			})
		}
	}
	return specs
}
