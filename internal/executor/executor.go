// Package executor runs external agent processes inside an explicit
// sandbox: workspace-contained paths, a minimal environment, parameters
// delivered as JSON on stdin, and a hard wall-clock timeout.
package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/bc-dunia/agentbridge/internal/metrics"
	"github.com/bc-dunia/agentbridge/internal/registry"
	"github.com/bc-dunia/agentbridge/internal/validation"
)

// WorkspaceEnvVar marks the workspace root in the child environment.
const WorkspaceEnvVar = "AGENT_WORKSPACE"

// MaxCaptureBytes bounds captured stdout/stderr per stream.
const MaxCaptureBytes = 1 << 20

// Result is the normalized outcome of one agent invocation.
type Result struct {
	Status string         `json:"status"`
	Output any            `json:"output,omitempty"`
	Error  string         `json:"error,omitempty"`
	Stdout string         `json:"stdout,omitempty"`
	Fields map[string]any `json:"-"`
}

// Success reports whether the invocation succeeded.
func (r *Result) Success() bool {
	return r.Status == "success"
}

// ToMap flattens the result into the legacy response shape. Agent-supplied
// JSON objects are returned as-is (they carry their own status field).
func (r *Result) ToMap() map[string]any {
	if r.Fields != nil {
		return r.Fields
	}
	out := map[string]any{"status": r.Status}
	if r.Output != nil {
		out["output"] = r.Output
	}
	if r.Error != "" {
		out["error"] = r.Error
	}
	if r.Stdout != "" {
		out["stdout"] = r.Stdout
	}
	return out
}

// Executor spawns agent processes. Every invocation outcome, including
// pre-spawn validation failures, is reported to the metrics recorder
// exactly once.
type Executor struct {
	workspace string
	recorder  metrics.Recorder
	logger    *slog.Logger
}

// New creates an executor rooted at the given workspace.
func New(workspace string, recorder metrics.Recorder, logger *slog.Logger) *Executor {
	return &Executor{workspace: workspace, recorder: recorder, logger: logger}
}

// Execute runs the agent with the validated parameter object. The params
// are written to the child's stdin as one JSON document; selected scalar
// fields are additionally mirrored as command-line flags for agents that
// expect them. No user-controlled string ever reaches a shell.
func (e *Executor) Execute(ctx context.Context, spec *registry.AgentSpec, params map[string]any) *Result {
	start := time.Now()

	fail := func(msg string) *Result {
		e.logger.Error("agent execution rejected", "agent", spec.Name, "err", msg)
		e.recorder.Record(spec.Name, time.Since(start), metrics.StatusError, msg)
		return &Result{Status: "error", Error: msg}
	}

	if issues := spec.CheckFiles(); len(issues) > 0 {
		return fail(strings.Join(issues, "; "))
	}
	if err := e.checkContainment(spec.Interpreter); err != nil {
		return fail(err.Error())
	}
	if err := e.checkContainment(spec.ScriptPath); err != nil {
		return fail(err.Error())
	}

	env, err := e.buildEnv(spec)
	if err != nil {
		return fail(err.Error())
	}

	input, err := json.Marshal(params)
	if err != nil {
		return fail(fmt.Sprintf("parameters not serializable: %v", err))
	}

	flags, err := mirrorFlags(params)
	if err != nil {
		return fail(fmt.Sprintf("Validation error: %v", err))
	}
	args := append([]string{spec.ScriptPath}, flags...)

	execCtx, cancel := context.WithTimeout(ctx, spec.Timeout)
	defer cancel()

	cmd := exec.CommandContext(execCtx, spec.Interpreter, args...)
	cmd.Env = env
	cmd.Dir = e.workspace
	cmd.Stdin = bytes.NewReader(input)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = newBoundedWriter(&stdout, MaxCaptureBytes)
	cmd.Stderr = newBoundedWriter(&stderr, MaxCaptureBytes)

	e.logger.Info("executing agent",
		"agent", spec.Name,
		"interpreter", spec.Interpreter,
		"script", spec.ScriptPath,
		"timeout", spec.Timeout,
	)

	runErr := cmd.Run()
	duration := time.Since(start)

	if errors.Is(execCtx.Err(), context.DeadlineExceeded) {
		msg := fmt.Sprintf("agent execution timed out after %gs", spec.Timeout.Seconds())
		e.logger.Error("agent timed out", "agent", spec.Name, "timeout", spec.Timeout)
		e.recorder.Record(spec.Name, duration, metrics.StatusError, msg)
		return &Result{Status: "error", Error: msg}
	}

	if runErr != nil {
		var exitErr *exec.ExitError
		msg := runErr.Error()
		if errors.As(runErr, &exitErr) {
			msg = strings.TrimSpace(stderr.String())
			if msg == "" {
				msg = fmt.Sprintf("process failed with code %d", exitErr.ExitCode())
			}
		}
		e.logger.Error("agent failed", "agent", spec.Name, "err", msg, "duration", duration)
		e.recorder.Record(spec.Name, duration, metrics.StatusError, msg)
		return &Result{Status: "error", Error: msg, Stdout: stdout.String()}
	}

	return e.normalizeOutput(spec.Name, stdout.String(), duration)
}

// normalizeOutput applies the agent stdout contract: parseable JSON is the
// payload, empty or plain text becomes a raw-text success, and output that
// looks like JSON but fails to parse is the agent breaking its contract.
func (e *Executor) normalizeOutput(agent, stdout string, duration time.Duration) *Result {
	trimmed := strings.TrimSpace(stdout)
	if trimmed == "" {
		e.recorder.Record(agent, duration, metrics.StatusSuccess, "")
		return &Result{Status: "success", Output: stdout}
	}

	var payload any
	if err := json.Unmarshal([]byte(trimmed), &payload); err == nil {
		e.logger.Info("agent completed", "agent", agent, "duration", duration)
		e.recorder.Record(agent, duration, metrics.StatusSuccess, "")
		if obj, ok := payload.(map[string]any); ok {
			return &Result{Status: "success", Fields: obj}
		}
		return &Result{Status: "success", Output: payload}
	}

	if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") {
		msg := "agent returned invalid JSON"
		e.logger.Warn("agent output rejected", "agent", agent, "err", msg)
		e.recorder.Record(agent, duration, metrics.StatusError, msg)
		return &Result{Status: "error", Error: msg, Stdout: stdout}
	}

	e.logger.Info("agent completed", "agent", agent, "duration", duration)
	e.recorder.Record(agent, duration, metrics.StatusSuccess, "")
	return &Result{Status: "success", Output: stdout}
}

// checkContainment rejects any path that resolves outside the workspace
// root. This is the sandbox boundary.
func (e *Executor) checkContainment(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve path %q: %w", path, err)
	}
	root := filepath.Clean(e.workspace) + string(filepath.Separator)
	if !strings.HasPrefix(filepath.Clean(abs)+string(filepath.Separator), root) {
		return fmt.Errorf("path %q is outside the workspace %q", abs, e.workspace)
	}
	return nil
}

// buildEnv composes the minimal child environment: PATH, the workspace
// marker, and the agent's declared required variables. A declared variable
// missing from the parent environment fails the call before spawn.
func (e *Executor) buildEnv(spec *registry.AgentSpec) ([]string, error) {
	env := []string{
		"PATH=" + os.Getenv("PATH"),
		WorkspaceEnvVar + "=" + e.workspace,
		"PYTHONPATH=" + e.workspace,
	}
	for _, name := range spec.RequiredEnv {
		value, ok := os.LookupEnv(name)
		if !ok {
			return nil, fmt.Errorf("missing required environment variable %q for agent %q", name, spec.Name)
		}
		env = append(env, name+"="+value)
	}
	return env, nil
}

// mirrorFlags converts selected scalar params into the flags the agents'
// CLIs expect. Mirrored values are re-validated here regardless of which
// handler the call came through: nothing reaches argv unvalidated, and
// this never constructs a shell string.
func mirrorFlags(params map[string]any) ([]string, error) {
	var flags []string
	if v, ok := params["issue_number"]; ok {
		n, err := validation.ValidateIssueNumber(v)
		if err != nil {
			return nil, err
		}
		flags = append(flags, "--issue", strconv.Itoa(n))
	}
	if v, ok := params["repo_name"]; ok {
		repo, err := validation.ValidateRepoName(v)
		if err != nil {
			return nil, err
		}
		flags = append(flags, "--repo", repo)
	}
	if v, ok := params["dry_run"].(bool); ok && v {
		flags = append(flags, "--dry-run")
	}
	return flags, nil
}

// boundedWriter caps how much child output is retained.
type boundedWriter struct {
	buf   *bytes.Buffer
	limit int
}

func newBoundedWriter(buf *bytes.Buffer, limit int) *boundedWriter {
	return &boundedWriter{buf: buf, limit: limit}
}

func (w *boundedWriter) Write(p []byte) (int, error) {
	remaining := w.limit - w.buf.Len()
	if remaining > 0 {
		if len(p) > remaining {
			w.buf.Write(p[:remaining])
			w.buf.WriteString("\n...[truncated]")
			w.limit = w.buf.Len()
		} else {
			w.buf.Write(p)
		}
	}
	// Report full consumption so the child never blocks on a full pipe.
	return len(p), nil
}
