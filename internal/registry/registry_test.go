package registry

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/bc-dunia/agentbridge/internal/config"
)

func testConfig(workspace string) *config.Config {
	return &config.Config{
		Workspace: config.WorkspaceConfig{
			Path:         workspace,
			GlobalPython: "venv/bin/python",
		},
		Agents: map[string]config.AgentConfig{
			"alpha": {
				Path:           "alpha/main.py",
				Python:         "alpha/.venv/bin/python",
				TimeoutSeconds: 60,
				Defaults:       map[string]any{"dry_run": true},
			},
			"beta": {
				Path: "beta/main.py",
			},
		},
	}
}

func TestResolve(t *testing.T) {
	ws := t.TempDir()
	r := New(testConfig(ws))

	spec, err := r.Resolve("alpha")
	if err != nil {
		t.Fatalf("Resolve(alpha): %v", err)
	}
	if spec.ScriptPath != filepath.Join(ws, "alpha/main.py") {
		t.Errorf("ScriptPath = %q", spec.ScriptPath)
	}
	if spec.Interpreter != filepath.Join(ws, "alpha/.venv/bin/python") {
		t.Errorf("Interpreter = %q", spec.Interpreter)
	}
	if spec.Timeout != 60*time.Second {
		t.Errorf("Timeout = %v, want 60s", spec.Timeout)
	}
	if !reflect.DeepEqual(spec.Defaults, map[string]any{"dry_run": true}) {
		t.Errorf("Defaults = %v", spec.Defaults)
	}
}

func TestResolveUnknown(t *testing.T) {
	r := New(testConfig(t.TempDir()))
	_, err := r.Resolve("gamma")
	if !errors.Is(err, ErrUnknownAgent) {
		t.Errorf("err = %v, want ErrUnknownAgent", err)
	}
}

func TestGlobalInterpreterFallback(t *testing.T) {
	ws := t.TempDir()
	r := New(testConfig(ws))

	spec, err := r.Resolve("beta")
	if err != nil {
		t.Fatal(err)
	}
	if spec.Interpreter != filepath.Join(ws, "venv/bin/python") {
		t.Errorf("Interpreter = %q, want workspace global", spec.Interpreter)
	}
	if spec.Timeout != 300*time.Second {
		t.Errorf("Timeout = %v, want default 300s", spec.Timeout)
	}
}

func TestPathsStayInsideWorkspace(t *testing.T) {
	ws := t.TempDir()
	cfg := testConfig(ws)
	cfg.Agents["sneaky"] = config.AgentConfig{Path: "../../etc/passwd"}
	r := New(cfg)

	spec, err := r.Resolve("sneaky")
	if err != nil {
		t.Fatal(err)
	}
	// Joining a cleaned relative path can still climb; the executor's
	// containment check is the enforcement point. The registry at least
	// yields an absolute path rooted at the workspace join.
	if !filepath.IsAbs(spec.ScriptPath) {
		t.Errorf("ScriptPath = %q, want absolute", spec.ScriptPath)
	}
}

func TestValidateReportsMissingFiles(t *testing.T) {
	ws := t.TempDir()
	r := New(testConfig(ws))

	ok, issues := r.Validate("alpha")
	if ok || len(issues) != 2 {
		t.Errorf("Validate on empty workspace = %v, %v; want both files missing", ok, issues)
	}

	// Create both files and validation passes.
	for _, rel := range []string{"alpha/main.py", "alpha/.venv/bin/python"} {
		path := filepath.Join(ws, rel)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte("#"), 0o755); err != nil {
			t.Fatal(err)
		}
	}
	if ok, issues := r.Validate("alpha"); !ok {
		t.Errorf("Validate after creating files = false, issues %v", issues)
	}

	if ok, _ := r.Validate("gamma"); ok {
		t.Error("Validate(gamma) = true for unknown agent")
	}
}

func TestNamesSorted(t *testing.T) {
	r := New(testConfig(t.TempDir()))
	got := r.Names()
	want := []string{"alpha", "beta"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Names() = %v, want %v", got, want)
	}
}
