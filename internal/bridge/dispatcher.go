// Package bridge routes decoded requests to tool handlers and runs the
// newline-delimited stdio protocol loop.
package bridge

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bc-dunia/agentbridge/internal/executor"
	"github.com/bc-dunia/agentbridge/internal/metrics"
	"github.com/bc-dunia/agentbridge/internal/otel"
	"github.com/bc-dunia/agentbridge/internal/registry"
	"github.com/bc-dunia/agentbridge/internal/validation"
)

// HealthCheckTool is the pseudo-tool that bypasses process execution.
// Both spellings are accepted.
const (
	HealthCheckTool    = "health_check"
	HealthCheckToolAlt = "healthcheck"
)

// Runner executes a resolved agent. The process executor implements it;
// tests substitute stubs.
type Runner interface {
	Execute(ctx context.Context, spec *registry.AgentSpec, params map[string]any) *executor.Result
}

// Response is the legacy wire shape: a status field plus tool-specific
// fields.
type Response = map[string]any

type handlerFunc func(ctx context.Context, params map[string]any) Response

// Dispatcher routes a tool name to its handler. All collaborators are
// injected so tests can construct isolated instances.
type Dispatcher struct {
	registry      *registry.Registry
	runner        Runner
	collector     *metrics.Collector
	telemetry     *otel.Metrics
	tracer        *otel.Tracer
	logger        *slog.Logger
	maxParamBytes int

	handlers map[string]handlerFunc
}

// NewDispatcher wires the dispatch table. telemetry and tracer may be the
// no-op instances.
func NewDispatcher(
	reg *registry.Registry,
	runner Runner,
	collector *metrics.Collector,
	telemetry *otel.Metrics,
	tracer *otel.Tracer,
	logger *slog.Logger,
	maxParamBytes int,
) *Dispatcher {
	d := &Dispatcher{
		registry:      reg,
		runner:        runner,
		collector:     collector,
		telemetry:     telemetry,
		tracer:        tracer,
		logger:        logger,
		maxParamBytes: maxParamBytes,
	}
	d.handlers = map[string]handlerFunc{
		"label_github_issue":   d.handleLabelGitHubIssue,
		"watch_collect":        d.handleWatchCollect,
		"analyse_watch_report": d.handleAnalyseWatchReport,
		"curate_digest":        d.handleCurateDigest,
		HealthCheckTool:        d.handleHealthCheck,
		HealthCheckToolAlt:     d.handleHealthCheck,
	}
	return d
}

// ToolNames returns the externally visible tool names, sorted. The
// healthcheck alias is omitted from listings.
func (d *Dispatcher) ToolNames() []string {
	names := make([]string, 0, len(d.handlers))
	for name := range d.handlers {
		if name == HealthCheckToolAlt {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Dispatch routes one decoded request. It always returns a well-formed
// response object; no error escapes to the caller.
func (d *Dispatcher) Dispatch(ctx context.Context, tool string, params map[string]any) Response {
	traceID := uuid.New().String()
	logger := d.logger.With("trace_id", traceID, "tool", tool)

	ctx, span := d.tracer.StartRequest(ctx, "legacy", tool)
	defer span.End()

	logger.Info("dispatching tool", "params", truncateForLog(params))

	params, err := validation.ValidateParams(params, d.maxParamBytes)
	if err != nil {
		logger.Error("parameter validation failed", "err", err)
		return errorResponse("Validation error: %v", err)
	}

	handler, ok := d.handlers[tool]
	if !ok {
		available := d.ToolNames()
		logger.Error("unknown tool requested", "available", available)
		return errorResponse("Unknown tool '%s'. Available tools: [%s]", tool, strings.Join(available, ", "))
	}

	resp := handler(ctx, params)
	logger.Info("tool completed", "status", resp["status"])
	return resp
}

// execute resolves the agent, merges configured defaults under the caller
// parameters (caller wins), and runs it.
func (d *Dispatcher) execute(ctx context.Context, name string, params map[string]any) Response {
	spec, err := d.registry.Resolve(name)
	if err != nil {
		return errorResponse("%v", err)
	}

	merged := make(map[string]any, len(spec.Defaults)+len(params))
	for k, v := range spec.Defaults {
		merged[k] = v
	}
	for k, v := range params {
		merged[k] = v
	}

	start := time.Now()
	result := d.runner.Execute(ctx, spec, merged)
	duration := time.Since(start)

	d.telemetry.RecordToolExecution(ctx, name, duration.Seconds(), result.Success())
	if !result.Success() {
		d.telemetry.RecordError(ctx, name, "execution")
	}
	return result.ToMap()
}

func (d *Dispatcher) handleLabelGitHubIssue(ctx context.Context, params map[string]any) Response {
	var missing []string
	for _, p := range []string{"repo_name", "issue_number"} {
		if _, ok := params[p]; !ok {
			missing = append(missing, p)
		}
	}
	if len(missing) > 0 {
		return errorResponse("Missing required parameters: [%s]", strings.Join(missing, ", "))
	}

	repo, err := validation.ValidateRepoName(params["repo_name"])
	if err != nil {
		return errorResponse("Validation error: %v", err)
	}
	issue, err := validation.ValidateIssueNumber(params["issue_number"])
	if err != nil {
		return errorResponse("Validation error: %v", err)
	}
	params["repo_name"] = repo
	params["issue_number"] = issue

	return d.execute(ctx, "label_github_issue", params)
}

func (d *Dispatcher) handleWatchCollect(ctx context.Context, params map[string]any) Response {
	if raw, ok := params["sources"]; ok {
		sources, err := validation.ValidateSources(raw)
		if err != nil {
			return errorResponse("%v", err)
		}
		params["sources"] = sources
	}
	return d.execute(ctx, "watch_collect", params)
}

func (d *Dispatcher) handleAnalyseWatchReport(ctx context.Context, params map[string]any) Response {
	if _, ok := params["report"]; !ok {
		if _, ok := params["report_path"]; !ok {
			return errorResponse("Missing 'report' or 'report_path' parameter")
		}
	}
	return d.execute(ctx, "analyse_watch_report", params)
}

func (d *Dispatcher) handleCurateDigest(ctx context.Context, params map[string]any) Response {
	if _, ok := params["analysis_json"]; !ok {
		return errorResponse("Missing required parameters: [analysis_json]")
	}
	return d.execute(ctx, "curate_digest", params)
}

// handleHealthCheck bypasses the executor entirely: it reports the current
// health snapshot plus per-agent file readiness.
func (d *Dispatcher) handleHealthCheck(_ context.Context, _ map[string]any) Response {
	ready := make(map[string]any)
	for _, name := range d.registry.Names() {
		ok, issues := d.registry.Validate(name)
		entry := map[string]any{"ready": ok}
		if len(issues) > 0 {
			entry["issues"] = issues
		}
		ready[name] = entry
	}
	return Response{
		"status": "success",
		"health": d.collector.HealthSnapshot(),
		"agents": ready,
	}
}

func errorResponse(format string, args ...any) Response {
	return Response{"status": "error", "error": fmt.Sprintf(format, args...)}
}

// truncateForLog bounds logged parameter context so oversized payloads do
// not bloat the log while staying reproducible.
func truncateForLog(params map[string]any) string {
	s := fmt.Sprintf("%v", params)
	if len(s) > 200 {
		return s[:200] + "..."
	}
	return s
}
