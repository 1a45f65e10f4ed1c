package bridge

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/bc-dunia/agentbridge/internal/mcp"
)

// HandleRPC serves one JSON-RPC request. It never returns a Go error;
// every failure mode maps to a JSON-RPC error object so the caller can
// always write a response line.
func (d *Dispatcher) HandleRPC(ctx context.Context, req *mcp.JSONRPCRequest) mcp.JSONRPCResponse {
	switch req.Method {
	case "initialize":
		return d.handleInitialize(req)
	case "tools/list":
		return d.handleToolsList(req)
	case "tools/call":
		return d.handleToolsCall(ctx, req)
	default:
		return mcp.NewErrorResponse(req.ID, mcp.CodeMethodNotFound,
			fmt.Sprintf("method not found: %s", req.Method))
	}
}

func (d *Dispatcher) handleInitialize(req *mcp.JSONRPCRequest) mcp.JSONRPCResponse {
	resp := mcp.NewResponse(req.ID)
	resp.Result = mcp.InitializeResult{
		ProtocolVersion: mcp.ProtocolVersion,
		Capabilities: map[string]interface{}{
			"tools": map[string]interface{}{"listChanged": false},
		},
		ServerInfo: mcp.ServerInfo{Name: mcp.ServerName, Version: mcp.ServerVersion},
	}
	return resp
}

func (d *Dispatcher) handleToolsList(req *mcp.JSONRPCRequest) mcp.JSONRPCResponse {
	names := d.ToolNames()
	tools := make([]mcp.Tool, 0, len(names))
	for _, name := range names {
		tools = append(tools, mcp.Tool{
			Name:        name,
			Description: d.describeTool(name),
			InputSchema: schemaFor(name),
		})
	}
	resp := mcp.NewResponse(req.ID)
	resp.Result = mcp.ToolsListResult{Tools: tools}
	return resp
}

func (d *Dispatcher) handleToolsCall(ctx context.Context, req *mcp.JSONRPCRequest) mcp.JSONRPCResponse {
	var params mcp.ToolsCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return mcp.NewErrorResponse(req.ID, mcp.CodeInvalidParams,
			fmt.Sprintf("invalid tools/call params: %v", err))
	}
	if params.Name == "" {
		return mcp.NewErrorResponse(req.ID, mcp.CodeInvalidParams, "missing tool name")
	}

	result := d.Dispatch(ctx, params.Name, params.Arguments)

	payload, err := json.Marshal(result)
	if err != nil {
		return mcp.NewErrorResponse(req.ID, mcp.CodeInternalError,
			fmt.Sprintf("failed to encode tool result: %v", err))
	}

	resp := mcp.NewResponse(req.ID)
	resp.Result = mcp.TextResult(string(payload), result["status"] == "error")
	return resp
}

func (d *Dispatcher) describeTool(name string) string {
	if name == HealthCheckTool {
		return "Report bridge health metrics and per-agent readiness"
	}
	if spec, err := d.registry.Resolve(name); err == nil && spec.Description != "" {
		return spec.Description
	}
	return ""
}
