package bridge

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/bc-dunia/agentbridge/internal/mcp"
)

// maxLineBytes bounds a single request line. Inline reports can be large,
// so this is well above the parameter byte budget.
const maxLineBytes = 1 << 20

// legacyRequest is the pre-MCP line protocol.
type legacyRequest struct {
	Tool   string         `json:"tool"`
	Params map[string]any `json:"params"`
}

// Server reads newline-delimited JSON requests and writes exactly one
// JSON response line per request, flushed immediately. stdout carries
// only protocol frames; all logging goes elsewhere.
type Server struct {
	dispatcher *Dispatcher
	logger     *slog.Logger
	in         io.Reader
	out        *bufio.Writer
}

func NewServer(d *Dispatcher, logger *slog.Logger, in io.Reader, out io.Writer) *Server {
	return &Server{
		dispatcher: d,
		logger:     logger,
		in:         in,
		out:        bufio.NewWriter(out),
	}
}

// Run serves requests until stdin closes or ctx is cancelled. A line over
// the byte limit is rejected with a per-line error response and the loop
// continues; a write failure on stdout means the consumer is gone and
// ends the loop cleanly.
func (s *Server) Run(ctx context.Context) error {
	reader := bufio.NewReaderSize(s.in, 64*1024)

	lineNum := 0
	for {
		if ctx.Err() != nil {
			s.logger.Info("shutdown requested, stopping request loop")
			return nil
		}

		data, tooLong, readErr := readLine(reader)
		if readErr != nil && readErr != io.EOF {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("reading stdin: %w", readErr)
		}
		if readErr == io.EOF && len(data) == 0 && !tooLong {
			s.logger.Info("stdin closed, exiting")
			return nil
		}
		lineNum++

		var resp any
		line := strings.TrimSpace(string(data))
		switch {
		case tooLong:
			s.logger.Error("request line over byte limit", "line", lineNum, "limit", maxLineBytes)
			resp = errorResponse("Request on line %d exceeds the %d-byte limit", lineNum, maxLineBytes)
		case line == "":
			if readErr == io.EOF {
				s.logger.Info("stdin closed, exiting")
				return nil
			}
			continue
		default:
			resp = s.serveLine(ctx, lineNum, line)
		}

		if err := s.writeLine(resp); err != nil {
			s.logger.Info("output closed, stopping", "err", err)
			return nil
		}
		if readErr == io.EOF {
			s.logger.Info("stdin closed, exiting")
			return nil
		}
	}
}

// readLine reads one newline-terminated line, retaining at most
// maxLineBytes. An oversized line is drained to its newline and reported
// via tooLong so the caller can answer it and keep the stream usable.
func readLine(r *bufio.Reader) ([]byte, bool, error) {
	var buf []byte
	tooLong := false
	for {
		chunk, err := r.ReadSlice('\n')
		if !tooLong {
			buf = append(buf, chunk...)
			n := len(buf)
			if n > 0 && buf[n-1] == '\n' {
				n--
			}
			if n > maxLineBytes {
				tooLong = true
				buf = nil
			}
		}
		if err == bufio.ErrBufferFull {
			continue
		}
		return buf, tooLong, err
	}
}

// serveLine decodes one request line and dispatches it. Lines carrying a
// method key speak JSON-RPC; everything else is the legacy protocol.
func (s *Server) serveLine(ctx context.Context, lineNum int, line string) any {
	var probe struct {
		Method string `json:"method"`
	}
	if err := json.Unmarshal([]byte(line), &probe); err != nil {
		s.logger.Error("malformed request line", "line", lineNum, "err", err)
		return errorResponse("Invalid JSON on line %d: %v", lineNum, err)
	}

	if probe.Method != "" {
		var req mcp.JSONRPCRequest
		if err := json.Unmarshal([]byte(line), &req); err != nil {
			return mcp.NewErrorResponse(nil, mcp.CodeParseError,
				fmt.Sprintf("parse error on line %d: %v", lineNum, err))
		}
		return s.dispatcher.HandleRPC(ctx, &req)
	}

	var req legacyRequest
	if err := json.Unmarshal([]byte(line), &req); err != nil {
		return errorResponse("Invalid JSON on line %d: %v", lineNum, err)
	}
	if req.Tool == "" {
		return errorResponse("Missing 'tool' in payload")
	}
	return s.dispatcher.Dispatch(ctx, req.Tool, req.Params)
}

func (s *Server) writeLine(resp any) error {
	data, err := json.Marshal(resp)
	if err != nil {
		// The response shapes are all marshalable; this indicates a bug.
		data = []byte(`{"status":"error","error":"internal encoding failure"}`)
		s.logger.Error("failed to encode response", "err", err)
	}
	if _, err := s.out.Write(append(data, '\n')); err != nil {
		return err
	}
	return s.out.Flush()
}

// RunOnce serves a single command-line invocation: the tool name and a
// JSON parameter object. The response is written indented. The exit code
// reflects structural success only; a status:error response body still
// exits zero.
func (s *Server) RunOnce(ctx context.Context, tool, paramsJSON string) int {
	params := map[string]any{}
	if strings.TrimSpace(paramsJSON) != "" {
		if err := json.Unmarshal([]byte(paramsJSON), &params); err != nil {
			s.writeLine(errorResponse("Invalid JSON parameters: %v", err))
			return 1
		}
	}

	resp := s.dispatcher.Dispatch(ctx, tool, params)
	data, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		s.logger.Error("failed to encode response", "err", err)
		return 1
	}
	s.out.Write(append(data, '\n'))
	s.out.Flush()
	return 0
}
