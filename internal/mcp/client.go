package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/exec"
	"time"
)

// Client drives a stdio MCP server as a subprocess: one JSON request per
// line in, one JSON response per line out. It is a diagnostic tool, not a
// connection pool; calls are strictly sequential.
type Client struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	out    *bufio.Scanner
	nextID int
}

// StartClient launches the server command and attaches to its stdio.
func StartClient(ctx context.Context, argv []string) (*Client, error) {
	if len(argv) == 0 {
		return nil, fmt.Errorf("empty server command")
	}
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("attach stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("attach stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", argv[0], err)
	}

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 64*1024), 1<<20)
	return &Client{cmd: cmd, stdin: stdin, out: scanner, nextID: 1}, nil
}

// Call sends one request and blocks for its response, reporting the
// round-trip time.
func (c *Client) Call(method string, params any) (*JSONRPCResponse, time.Duration, error) {
	id := c.nextID
	c.nextID++

	var raw json.RawMessage
	if params != nil {
		encoded, err := json.Marshal(params)
		if err != nil {
			return nil, 0, fmt.Errorf("encode params: %w", err)
		}
		raw = encoded
	}
	req := JSONRPCRequest{JSONRPC: "2.0", ID: id, Method: method, Params: raw}
	line, err := json.Marshal(req)
	if err != nil {
		return nil, 0, fmt.Errorf("encode request: %w", err)
	}

	start := time.Now()
	if _, err := c.stdin.Write(append(line, '\n')); err != nil {
		return nil, 0, fmt.Errorf("write request: %w", err)
	}
	if !c.out.Scan() {
		if err := c.out.Err(); err != nil {
			return nil, 0, fmt.Errorf("read response: %w", err)
		}
		return nil, 0, fmt.Errorf("server closed stdout before responding")
	}
	elapsed := time.Since(start)

	var resp JSONRPCResponse
	if err := json.Unmarshal(c.out.Bytes(), &resp); err != nil {
		return nil, elapsed, fmt.Errorf("decode response: %w", err)
	}
	return &resp, elapsed, nil
}

// Initialize performs the MCP handshake and returns the decoded result.
func (c *Client) Initialize() (*InitializeResult, time.Duration, error) {
	params := map[string]any{
		"protocolVersion": ProtocolVersion,
		"capabilities":    map[string]any{},
		"clientInfo":      ServerInfo{Name: "mcpcompare", Version: ServerVersion},
	}
	resp, elapsed, err := c.Call("initialize", params)
	if err != nil {
		return nil, elapsed, err
	}
	if resp.Error != nil {
		return nil, elapsed, fmt.Errorf("initialize failed: %s (code %d)", resp.Error.Message, resp.Error.Code)
	}
	var result InitializeResult
	if err := decodeResult(resp.Result, &result); err != nil {
		return nil, elapsed, err
	}
	return &result, elapsed, nil
}

// ListTools fetches the server's tool catalogue.
func (c *Client) ListTools() (*ToolsListResult, time.Duration, error) {
	resp, elapsed, err := c.Call("tools/list", map[string]any{})
	if err != nil {
		return nil, elapsed, err
	}
	if resp.Error != nil {
		return nil, elapsed, fmt.Errorf("tools/list failed: %s (code %d)", resp.Error.Message, resp.Error.Code)
	}
	var result ToolsListResult
	if err := decodeResult(resp.Result, &result); err != nil {
		return nil, elapsed, err
	}
	return &result, elapsed, nil
}

// Close ends the session by closing stdin and waiting for exit.
func (c *Client) Close() error {
	c.stdin.Close()
	return c.cmd.Wait()
}

func decodeResult(result any, into any) error {
	encoded, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("re-encode result: %w", err)
	}
	if err := json.Unmarshal(encoded, into); err != nil {
		return fmt.Errorf("decode result: %w", err)
	}
	return nil
}
