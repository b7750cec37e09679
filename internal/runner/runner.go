// Package runner executes Metasploit modules through the RPC client and
// turns each execution into a report record. One failing module never stops
// a sequence; it is recorded as failed and the run continues.
package runner

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/example/msf-auditor/internal/events"
	"github.com/example/msf-auditor/internal/msfrpc"
	"github.com/example/msf-auditor/internal/report"
)

// ModuleTypes is the framework's fixed module taxonomy, in canonical order.
var ModuleTypes = []string{"auxiliary", "exploit", "payload", "encoder", "nop", "post", "evasion"}

// ModuleSpec describes one module to execute.
type ModuleSpec struct {
	Type     string
	Path     string
	Options  map[string]interface{}
	Priority string
}

// RPC is the slice of the Metasploit client the runners consume. The
// *msfrpc.Client satisfies it; tests substitute fakes.
type RPC interface {
	ModuleExecute(ctx context.Context, moduleType, name string, options map[string]interface{}) (msfrpc.ExecResult, error)
	ModuleInfo(ctx context.Context, moduleType, name string) (map[string]interface{}, error)
	JobList(ctx context.Context) (map[string]string, error)
}

// Universal runs any module type. The zero intervals default to the fixed
// 1s job poll cadence and a 2s pause after a failed module.
type Universal struct {
	rpc     RPC
	emitter *events.Emitter

	Verbose      bool
	PollInterval time.Duration
	FailurePause time.Duration
}

// NewUniversal returns a runner over the given RPC client. The emitter may
// be nil to silence events.
func NewUniversal(rpc RPC, emitter *events.Emitter) *Universal {
	return &Universal{
		rpc:          rpc,
		emitter:      emitter,
		PollInterval: time.Second,
		FailurePause: 2 * time.Second,
	}
}

// Run executes a single module and waits for its job to leave the job list,
// polling every PollInterval up to timeout. The target is applied as RHOSTS
// for auxiliary and exploit modules only.
func (u *Universal) Run(ctx context.Context, spec ModuleSpec, target string, timeout time.Duration) (report.Result, error) {
	moduleType := spec.Type
	if moduleType == "" {
		moduleType = "auxiliary"
	}

	name := StripTypePrefix(spec.Path)

	options := map[string]interface{}{}
	if moduleType == "auxiliary" || moduleType == "exploit" {
		options["RHOSTS"] = target
	}
	for key, value := range spec.Options {
		options[key] = value
	}

	u.emit(events.ModuleStart(spec.Path, moduleType, target))

	if u.Verbose {
		if info, err := u.rpc.ModuleInfo(ctx, moduleType, name); err == nil {
			if desc, ok := info["description"].(string); ok && desc != "" {
				u.emit(events.Event{Type: events.TypeModuleInfo, Message: desc, Fields: map[string]interface{}{"module": spec.Path}})
			}
		}
		for key, value := range options {
			u.emit(events.Event{
				Type:   events.TypeOptionSet,
				Fields: map[string]interface{}{"module": spec.Path, "option": key, "value": maskOptionValue(key, value)},
			})
		}
	}

	start := time.Now()

	exec, err := u.rpc.ModuleExecute(ctx, moduleType, name, options)
	if err != nil {
		u.emit(events.ModuleFailed(spec.Path, target, err))
		return report.Result{}, fmt.Errorf("execute module %q: %w", spec.Path, err)
	}

	if !exec.Inline {
		if err := u.awaitJob(ctx, exec.JobID, start, timeout); err != nil {
			u.emit(events.ModuleFailed(spec.Path, target, err))
			return report.Result{}, fmt.Errorf("module %q: %w", spec.Path, err)
		}
	}

	elapsed := time.Since(start).Seconds()
	u.emit(events.ModuleCompleted(spec.Path, target, elapsed))

	details := map[string]interface{}{"uuid": exec.UUID}
	if !exec.Inline {
		details["job_id"] = exec.JobID
	}

	return report.Result{
		Module:        spec.Path,
		ModuleType:    moduleType,
		Target:        target,
		Status:        report.StatusCompleted,
		ExecutionTime: elapsed,
		Details:       details,
	}, nil
}

// RunSequence executes the specs in order. A failing module becomes a
// failed record and the loop continues, pausing FailurePause before the
// next module. Exactly one record per spec is returned; the only error is
// context cancellation.
func (u *Universal) RunSequence(ctx context.Context, specs []ModuleSpec, target string, timeout time.Duration) ([]report.Result, error) {
	results := make([]report.Result, 0, len(specs))

	for i, spec := range specs {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		result, err := u.Run(ctx, spec, target, timeout)
		if err != nil {
			if ctx.Err() != nil {
				return results, ctx.Err()
			}

			moduleType := spec.Type
			if moduleType == "" {
				moduleType = "auxiliary"
			}
			results = append(results, report.Result{
				Module:     spec.Path,
				ModuleType: moduleType,
				Target:     target,
				Status:     report.StatusFailed,
				Error:      err.Error(),
			})

			if i < len(specs)-1 {
				u.pause(ctx)
			}
			continue
		}

		results = append(results, result)
	}

	completed := 0
	for _, r := range results {
		if r.Status == report.StatusCompleted {
			completed++
		}
	}
	u.emit(events.Event{
		Type:    events.TypeSequenceDone,
		Message: "Module sequence complete",
		Fields:  map[string]interface{}{"completed": completed, "total": len(results)},
	})

	return results, nil
}

func (u *Universal) awaitJob(ctx context.Context, jobID int, start time.Time, timeout time.Duration) error {
	id := strconv.Itoa(jobID)
	interval := u.PollInterval
	if interval <= 0 {
		interval = time.Second
	}

	for {
		if time.Since(start) >= timeout {
			return fmt.Errorf("job %d still running after %s", jobID, timeout)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}

		jobs, err := u.rpc.JobList(ctx)
		if err != nil {
			return fmt.Errorf("poll jobs: %w", err)
		}
		if _, active := jobs[id]; !active {
			return nil
		}
	}
}

func (u *Universal) pause(ctx context.Context) {
	pause := u.FailurePause
	if pause <= 0 {
		return
	}
	select {
	case <-ctx.Done():
	case <-time.After(pause):
	}
}

func (u *Universal) emit(evt events.Event) {
	if u.emitter == nil {
		return
	}
	_ = u.emitter.Emit(evt)
}

// Auxiliary is the single-module-type runner behind the scan command. It
// accepts bare auxiliary/... paths and delegates to the universal core.
type Auxiliary struct {
	universal *Universal
}

// NewAuxiliary wraps the RPC client for auxiliary-only runs.
func NewAuxiliary(rpc RPC, emitter *events.Emitter) *Auxiliary {
	return &Auxiliary{universal: NewUniversal(rpc, emitter)}
}

// Run executes one auxiliary module against the target.
func (a *Auxiliary) Run(ctx context.Context, modulePath, target string, options map[string]interface{}, timeout time.Duration) (report.Result, error) {
	return a.universal.Run(ctx, ModuleSpec{Type: "auxiliary", Path: modulePath, Options: options}, target, timeout)
}

// SetPollInterval adjusts the job poll cadence (tests shrink it).
func (a *Auxiliary) SetPollInterval(d time.Duration) {
	a.universal.PollInterval = d
}

// StripTypePrefix removes a leading module-type namespace from a path, so
// auxiliary/scanner/http/http_version becomes scanner/http/http_version as
// the RPC lookup expects.
func StripTypePrefix(path string) string {
	for _, moduleType := range ModuleTypes {
		prefix := moduleType + "/"
		if strings.HasPrefix(path, prefix) {
			return strings.TrimPrefix(path, prefix)
		}
	}
	return path
}

// maskOptionValue hides sensitive option values in verbose output.
func maskOptionValue(key string, value interface{}) interface{} {
	lower := strings.ToLower(key)
	for _, marker := range []string{"pass", "key", "secret", "token"} {
		if strings.Contains(lower, marker) {
			return "***"
		}
	}
	return value
}
