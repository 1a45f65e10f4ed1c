// Package config loads bridge configuration from defaults, an optional
// YAML file, and environment variable overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Environment variables recognized by the bridge.
const (
	EnvWorkspace = "ADK_WORKSPACE"
	EnvLogLevel  = "BRIDGE_LOG_LEVEL"
	EnvLogFile   = "BRIDGE_LOG_FILE"
)

// AgentConfig describes one external agent as configured.
// Path and Python are relative to the workspace root.
type AgentConfig struct {
	Path           string         `yaml:"path"`
	Python         string         `yaml:"python"`
	Description    string         `yaml:"description"`
	TimeoutSeconds int            `yaml:"timeout"`
	RequiredEnv    []string       `yaml:"required_env,omitempty"`
	Defaults       map[string]any `yaml:"defaults,omitempty"`
}

// WorkspaceConfig locates the agent workspace and the shared interpreter.
type WorkspaceConfig struct {
	Path         string `yaml:"path"`
	GlobalPython string `yaml:"global_python"`
}

// LoggingConfig controls the bridge's diagnostic log. The log never goes
// to stdout, which carries protocol responses.
type LoggingConfig struct {
	File  string `yaml:"file"`
	Level string `yaml:"level"`
}

// SecurityConfig controls parameter validation.
type SecurityConfig struct {
	ValidateInputs bool `yaml:"validate_inputs"`
	SanitizeInputs bool `yaml:"sanitize_inputs"`
	MaxParamLength int  `yaml:"max_param_length"`
}

// PerformanceConfig controls in-memory metrics collection.
type PerformanceConfig struct {
	CollectMetrics bool `yaml:"collect_metrics"`
}

// TelemetryConfig controls optional OpenTelemetry export. Disabled by
// default; the in-memory metrics collector works regardless.
type TelemetryConfig struct {
	Enabled      bool   `yaml:"enabled"`
	Exporter     string `yaml:"exporter"` // none, stdout, otlp-grpc, otlp-http
	OTLPEndpoint string `yaml:"otlp_endpoint"`
	OTLPInsecure bool   `yaml:"otlp_insecure"`
}

// Config is the root bridge configuration.
type Config struct {
	Workspace   WorkspaceConfig        `yaml:"workspace"`
	Logging     LoggingConfig          `yaml:"logging"`
	Agents      map[string]AgentConfig `yaml:"agents"`
	Security    SecurityConfig         `yaml:"security"`
	Performance PerformanceConfig      `yaml:"performance"`
	Telemetry   TelemetryConfig        `yaml:"telemetry"`
}

// Default returns the built-in configuration: the four known agents with
// their timeouts and default parameters.
func Default() *Config {
	return &Config{
		Workspace: WorkspaceConfig{
			Path:         "~/adk-workspace",
			GlobalPython: "adk-env/bin/python",
		},
		Logging: LoggingConfig{
			File:  "~/.agentbridge/bridge.log",
			Level: "INFO",
		},
		Agents: map[string]AgentConfig{
			"label_github_issue": {
				Path:           "github_labeler/main.py",
				Python:         "adk-env/bin/python",
				Description:    "GitHub Issue Labeler Agent",
				TimeoutSeconds: 300,
				RequiredEnv:    []string{"GITHUB_TOKEN"},
				Defaults:       map[string]any{"dry_run": true},
			},
			"watch_collect": {
				Path:           "veille_agent/main.py",
				Python:         "veille_agent/.venv/bin/python",
				Description:    "Watch Agent for collecting tech updates",
				TimeoutSeconds: 600,
				Defaults: map[string]any{
					"sources":       []any{"github", "pypi", "npm"},
					"output_format": "markdown",
				},
			},
			"analyse_watch_report": {
				Path:           "gemini_analysis/main.py",
				Python:         "adk-env/bin/python",
				Description:    "Analysis Agent for report analysis",
				TimeoutSeconds: 300,
				RequiredEnv:    []string{"GEMINI_API_KEY"},
				Defaults:       map[string]any{"format": "json"},
			},
			"curate_digest": {
				Path:           "curateur_agent/main.py",
				Python:         "adk-env/bin/python",
				Description:    "Curator Agent for content curation",
				TimeoutSeconds: 180,
				Defaults:       map[string]any{"format": "newsletter", "output": "markdown"},
			},
		},
		Security: SecurityConfig{
			ValidateInputs: true,
			SanitizeInputs: true,
			MaxParamLength: 10000,
		},
		Performance: PerformanceConfig{
			CollectMetrics: true,
		},
		Telemetry: TelemetryConfig{
			Enabled:  false,
			Exporter: "none",
		},
	}
}

// Load builds the configuration from defaults, then the YAML file at path
// (skipped if it does not exist), then environment overrides, and finally
// expands ~ in paths. A missing file is not an error; a malformed one is.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// Defaults stand.
		case err != nil:
			return nil, fmt.Errorf("read config %q: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %q: %w", path, err)
			}
		}
	}

	cfg.applyEnvOverrides()
	if err := cfg.expandPaths(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(EnvWorkspace); v != "" {
		c.Workspace.Path = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv(EnvLogFile); v != "" {
		c.Logging.File = v
	}
}

func (c *Config) expandPaths() error {
	ws, err := ExpandHome(c.Workspace.Path)
	if err != nil {
		return err
	}
	c.Workspace.Path = ws

	lf, err := ExpandHome(c.Logging.File)
	if err != nil {
		return err
	}
	c.Logging.File = lf
	return nil
}

// ExpandHome resolves a leading ~ against the current user's home
// directory and returns an absolute, cleaned path.
func ExpandHome(path string) (string, error) {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		path = filepath.Join(home, strings.TrimPrefix(path, "~"))
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve path %q: %w", path, err)
	}
	return abs, nil
}

// DefaultConfigPath returns the conventional config file location next to
// the user's bridge state directory.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "config.yaml"
	}
	return filepath.Join(home, ".agentbridge", "config.yaml")
}
