// Package registry maps tool names to the external agent programs that
// implement them.
package registry

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/bc-dunia/agentbridge/internal/config"
)

// ErrUnknownAgent is returned by Resolve for names not in the registry.
var ErrUnknownAgent = errors.New("unknown agent")

// AgentSpec is the resolved, immutable description of one external agent.
// Both paths are absolute and live under the workspace root.
type AgentSpec struct {
	Name        string
	ScriptPath  string
	Interpreter string
	Timeout     time.Duration
	RequiredEnv []string
	Defaults    map[string]any
	Description string
}

// CheckFiles verifies that the interpreter and script exist on disk.
// The filesystem can change between calls, so the executor re-runs this
// before every invocation.
func (s *AgentSpec) CheckFiles() []string {
	var issues []string
	if _, err := os.Stat(s.Interpreter); err != nil {
		issues = append(issues, fmt.Sprintf("interpreter not found: %s", s.Interpreter))
	}
	if _, err := os.Stat(s.ScriptPath); err != nil {
		issues = append(issues, fmt.Sprintf("agent script not found: %s", s.ScriptPath))
	}
	return issues
}

// Registry is the static tool-name → AgentSpec mapping, built once at
// startup. Construction never fails; entries pointing at missing files
// are reported lazily when invoked.
type Registry struct {
	workspace string
	agents    map[string]*AgentSpec
}

// New builds the registry from configuration, expanding every per-agent
// relative path against the workspace root.
func New(cfg *config.Config) *Registry {
	r := &Registry{
		workspace: cfg.Workspace.Path,
		agents:    make(map[string]*AgentSpec, len(cfg.Agents)),
	}
	for name, ac := range cfg.Agents {
		interpreter := ac.Python
		if interpreter == "" {
			interpreter = cfg.Workspace.GlobalPython
		}
		timeout := time.Duration(ac.TimeoutSeconds) * time.Second
		if timeout <= 0 {
			timeout = 300 * time.Second
		}
		r.agents[name] = &AgentSpec{
			Name:        name,
			ScriptPath:  filepath.Join(cfg.Workspace.Path, filepath.Clean(ac.Path)),
			Interpreter: filepath.Join(cfg.Workspace.Path, filepath.Clean(interpreter)),
			Timeout:     timeout,
			RequiredEnv: append([]string(nil), ac.RequiredEnv...),
			Defaults:    cloneDefaults(ac.Defaults),
			Description: ac.Description,
		}
	}
	return r
}

// Workspace returns the workspace root that sandboxes all agent paths.
func (r *Registry) Workspace() string {
	return r.workspace
}

// Resolve looks up an agent by tool name.
func (r *Registry) Resolve(name string) (*AgentSpec, error) {
	spec, ok := r.agents[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAgent, name)
	}
	return spec, nil
}

// Validate reports whether the named agent's files exist on disk.
func (r *Registry) Validate(name string) (bool, []string) {
	spec, err := r.Resolve(name)
	if err != nil {
		return false, []string{err.Error()}
	}
	issues := spec.CheckFiles()
	return len(issues) == 0, issues
}

// Names returns the sorted list of registered tool names.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.agents))
	for name := range r.agents {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func cloneDefaults(defaults map[string]any) map[string]any {
	out := make(map[string]any, len(defaults))
	for k, v := range defaults {
		out[k] = v
	}
	return out
}
