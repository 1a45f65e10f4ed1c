// Command diagnose checks a bridge installation: configuration, workspace
// layout, agent files, required environment variables, and host capacity.
// With --fix it creates missing directories. It exits non-zero when any
// check fails.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/bc-dunia/agentbridge/internal/bridge"
	"github.com/bc-dunia/agentbridge/internal/config"
	"github.com/bc-dunia/agentbridge/internal/events"
	"github.com/bc-dunia/agentbridge/internal/executor"
	"github.com/bc-dunia/agentbridge/internal/metrics"
	"github.com/bc-dunia/agentbridge/internal/otel"
	"github.com/bc-dunia/agentbridge/internal/registry"
)

type report struct {
	verbose  bool
	failures int
}

func (r *report) pass(format string, args ...any) {
	fmt.Printf("  [ok]   "+format+"\n", args...)
}

func (r *report) fail(format string, args ...any) {
	r.failures++
	fmt.Printf("  [FAIL] "+format+"\n", args...)
}

func (r *report) info(format string, args ...any) {
	if r.verbose {
		fmt.Printf("  [info] "+format+"\n", args...)
	}
}

func main() {
	configPath := flag.String("config", config.DefaultConfigPath(), "Path to the bridge configuration file")
	verbose := flag.Bool("verbose", false, "Print informational detail for every check")
	fix := flag.Bool("fix", false, "Create missing workspace and log directories")
	flag.Parse()

	r := &report{verbose: *verbose}

	fmt.Println("Configuration")
	cfg, err := config.Load(*configPath)
	if err != nil {
		r.fail("load %s: %v", *configPath, err)
		os.Exit(1)
	}
	r.pass("loaded %s", *configPath)
	r.info("workspace: %s", cfg.Workspace.Path)
	r.info("log file:  %s", cfg.Logging.File)

	fmt.Println("Workspace")
	checkDir(r, cfg.Workspace.Path, *fix)
	if logDir := filepath.Dir(cfg.Logging.File); logDir != "." {
		checkDir(r, logDir, *fix)
	}

	fmt.Println("Agents")
	reg := registry.New(cfg)
	for _, name := range reg.Names() {
		ok, issues := reg.Validate(name)
		if ok {
			r.pass("%s", name)
		} else {
			for _, issue := range issues {
				r.fail("%s: %s", name, issue)
			}
		}
		spec, _ := reg.Resolve(name)
		for _, env := range spec.RequiredEnv {
			if _, set := os.LookupEnv(env); set {
				r.pass("%s: %s is set", name, env)
			} else {
				r.fail("%s: required environment variable %s is not set", name, env)
			}
		}
	}

	fmt.Println("Host")
	hostReport(r)

	fmt.Println("Bridge")
	smokeTest(r, cfg)

	if r.failures > 0 {
		fmt.Printf("\n%d check(s) failed\n", r.failures)
		os.Exit(1)
	}
	fmt.Println("\nAll checks passed")
}

func checkDir(r *report, path string, fix bool) {
	info, err := os.Stat(path)
	switch {
	case err == nil && info.IsDir():
		r.pass("directory exists: %s", path)
	case err == nil:
		r.fail("not a directory: %s", path)
	case fix:
		if mkErr := os.MkdirAll(path, 0o755); mkErr != nil {
			r.fail("create %s: %v", path, mkErr)
		} else {
			r.pass("created directory: %s", path)
		}
	default:
		r.fail("missing directory: %s (re-run with --fix to create)", path)
	}
}

// hostReport prints a capacity snapshot. Failures here are informational;
// a host that cannot report load can still run agents.
func hostReport(r *report) {
	r.pass("%s/%s, %d CPUs", runtime.GOOS, runtime.GOARCH, runtime.NumCPU())

	if percents, err := cpu.Percent(200*time.Millisecond, false); err == nil && len(percents) > 0 {
		r.info("cpu usage: %.1f%%", percents[0])
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		r.info("memory: %.1f%% used of %d MiB", vm.UsedPercent, vm.Total/(1<<20))
		if vm.UsedPercent > 95 {
			r.fail("memory nearly exhausted (%.1f%% used)", vm.UsedPercent)
		}
	}
	if avg, err := load.Avg(); err == nil {
		r.info("load average: %.2f %.2f %.2f", avg.Load1, avg.Load5, avg.Load15)
	}
}

// smokeTest runs health_check through a real dispatcher, exercising the
// same wiring the bridge binary uses.
func smokeTest(r *report, cfg *config.Config) {
	logger := events.Discard()
	reg := registry.New(cfg)
	collector := metrics.NewCollector(cfg.Performance.CollectMetrics)
	exec := executor.New(reg.Workspace(), collector, logger)

	telemetry := otel.NoopMetrics()
	tracer, err := otel.NewTracer(context.Background(), nil)
	if err != nil {
		r.fail("tracer init: %v", err)
		return
	}

	d := bridge.NewDispatcher(reg, exec, collector, telemetry, tracer, logger, cfg.Security.MaxParamLength)
	resp := d.Dispatch(context.Background(), bridge.HealthCheckTool, nil)
	if resp["status"] == "success" {
		r.pass("health_check dispatch succeeded")
	} else {
		r.fail("health_check dispatch returned %v", resp["error"])
	}
}
