// Command mcpcompare launches two stdio MCP servers, runs the same
// handshake against both, and reports structural and timing differences.
// Useful when swapping one bridge implementation for another.
//
//	mcpcompare -a "bridge" -b "python bridge.py"
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/kballard/go-shellquote"

	"github.com/bc-dunia/agentbridge/internal/mcp"
)

type probe struct {
	label       string
	init        *mcp.InitializeResult
	initTime    time.Duration
	tools       *mcp.ToolsListResult
	toolsTime   time.Duration
	toolsByName map[string]mcp.Tool
}

func main() {
	cmdA := flag.String("a", "", "First server command (shell-quoted)")
	cmdB := flag.String("b", "", "Second server command (shell-quoted)")
	timeout := flag.Duration("timeout", 30*time.Second, "Overall comparison timeout")
	flag.Parse()

	if *cmdA == "" || *cmdB == "" {
		fmt.Fprintln(os.Stderr, "Error: both -a and -b server commands are required")
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	a, err := runProbe(ctx, "A", *cmdA)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Server A: %v\n", err)
		os.Exit(1)
	}
	b, err := runProbe(ctx, "B", *cmdB)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Server B: %v\n", err)
		os.Exit(1)
	}

	diffs := compare(a, b)

	fmt.Printf("A: %s %s (protocol %s)  initialize %v, tools/list %v, %d tools\n",
		a.init.ServerInfo.Name, a.init.ServerInfo.Version, a.init.ProtocolVersion,
		a.initTime.Round(time.Microsecond), a.toolsTime.Round(time.Microsecond), len(a.tools.Tools))
	fmt.Printf("B: %s %s (protocol %s)  initialize %v, tools/list %v, %d tools\n",
		b.init.ServerInfo.Name, b.init.ServerInfo.Version, b.init.ProtocolVersion,
		b.initTime.Round(time.Microsecond), b.toolsTime.Round(time.Microsecond), len(b.tools.Tools))

	if len(diffs) == 0 {
		fmt.Println("\nServers are structurally identical")
		return
	}
	fmt.Printf("\n%d difference(s):\n", len(diffs))
	for _, d := range diffs {
		fmt.Printf("  - %s\n", d)
	}
	os.Exit(1)
}

func runProbe(ctx context.Context, label, command string) (*probe, error) {
	argv, err := shellquote.Split(command)
	if err != nil {
		return nil, fmt.Errorf("parse command: %w", err)
	}
	client, err := mcp.StartClient(ctx, argv)
	if err != nil {
		return nil, err
	}
	defer client.Close()

	p := &probe{label: label}
	if p.init, p.initTime, err = client.Initialize(); err != nil {
		return nil, err
	}
	if p.tools, p.toolsTime, err = client.ListTools(); err != nil {
		return nil, err
	}
	p.toolsByName = make(map[string]mcp.Tool, len(p.tools.Tools))
	for _, t := range p.tools.Tools {
		p.toolsByName[t.Name] = t
	}
	return p, nil
}

func compare(a, b *probe) []string {
	var diffs []string
	if a.init.ProtocolVersion != b.init.ProtocolVersion {
		diffs = append(diffs, fmt.Sprintf("protocol version: A=%s B=%s",
			a.init.ProtocolVersion, b.init.ProtocolVersion))
	}

	names := map[string]bool{}
	for name := range a.toolsByName {
		names[name] = true
	}
	for name := range b.toolsByName {
		names[name] = true
	}
	sorted := make([]string, 0, len(names))
	for name := range names {
		sorted = append(sorted, name)
	}
	sort.Strings(sorted)

	for _, name := range sorted {
		ta, inA := a.toolsByName[name]
		tb, inB := b.toolsByName[name]
		switch {
		case !inA:
			diffs = append(diffs, fmt.Sprintf("tool %q: only in B", name))
		case !inB:
			diffs = append(diffs, fmt.Sprintf("tool %q: only in A", name))
		case ta.Description != tb.Description:
			diffs = append(diffs, fmt.Sprintf("tool %q: descriptions differ", name))
		case string(ta.InputSchema) != string(tb.InputSchema):
			diffs = append(diffs, fmt.Sprintf("tool %q: input schemas differ", name))
		}
	}
	return diffs
}
