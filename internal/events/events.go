package events

// Event types emitted over one CLI invocation.
const (
	TypeScanStart       = "scan-start"
	TypeModuleStart     = "module-start"
	TypeModuleInfo      = "module-info"
	TypeOptionSet       = "option-set"
	TypeModuleCompleted = "module-completed"
	TypeModuleFailed    = "module-failed"
	TypeSequenceDone    = "sequence-done"
	TypeAISelection     = "ai-selection"
	TypeAIAnalysis      = "ai-analysis"
	TypeReportWritten   = "report-written"
	TypeScanFinished    = "scan-finished"
)

// ScanStart announces a new run against a target.
func ScanStart(target string, modules int, dryRun bool) Event {
	return Event{
		Type:    TypeScanStart,
		Message: "Starting scan",
		Fields:  map[string]interface{}{"target": target, "modules": modules, "dryRun": dryRun},
	}
}

// ModuleStart announces a single module execution.
func ModuleStart(module, moduleType, target string) Event {
	return Event{
		Type:   TypeModuleStart,
		Fields: map[string]interface{}{"module": module, "moduleType": moduleType, "target": target},
	}
}

// ModuleCompleted reports a successful execution with its elapsed seconds.
func ModuleCompleted(module, target string, elapsed float64) Event {
	return Event{
		Type:   TypeModuleCompleted,
		Fields: map[string]interface{}{"module": module, "target": target, "elapsedSeconds": elapsed},
	}
}

// ModuleFailed reports a failed execution; the run continues regardless.
func ModuleFailed(module, target string, err error) Event {
	return Event{
		Type:   TypeModuleFailed,
		Fields: map[string]interface{}{"module": module, "target": target, "error": err.Error()},
	}
}

// AISelection reports how many modules the provider picked for the target.
func AISelection(provider, model string, selected int) Event {
	return Event{
		Type:   TypeAISelection,
		Fields: map[string]interface{}{"provider": provider, "model": model, "selected": selected},
	}
}

// ReportWritten announces a saved report artifact.
func ReportWritten(path string) Event {
	return Event{
		Type:   TypeReportWritten,
		Fields: map[string]interface{}{"path": path},
	}
}

// ScanFinished closes the stream with the final counts.
func ScanFinished(completed, failed int) Event {
	return Event{
		Type:    TypeScanFinished,
		Message: "Scan complete",
		Fields:  map[string]interface{}{"completed": completed, "failed": failed},
	}
}
