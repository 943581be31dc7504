// Package mcp serves examwatch analyses over the Model Context Protocol:
// newline-delimited JSON-RPC 2.0 on stdio.
package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"slices"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/blackwell-systems/examwatch/internal/logger"
)

// ErrUnknownTool is reported for tools/call requests naming no registered tool.
var ErrUnknownTool = errors.New("unknown tool")

// JSON-RPC error codes.
const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
)

// protocolVersions lists the MCP revisions the server speaks, newest first.
var protocolVersions = []string{"2025-03-26", "2024-11-05"}

const (
	// maxLineBytes bounds a single request line.
	maxLineBytes = 1 << 20
	// defaultCallTimeout bounds one tool invocation.
	defaultCallTimeout = 30 * time.Second
)

// Server is an MCP stdio server dispatching tools/call requests to the
// registered tools.
type Server struct {
	tools       map[string]toolDef
	order       []string
	engine      Analyzer
	version     string
	callTimeout time.Duration
	log         *logger.Logger
	tracer      trace.Tracer
}

type toolDef struct {
	Name        string
	Description string
	InputSchema json.RawMessage
	Handler     toolHandler
}

type toolHandler func(ctx context.Context, args json.RawMessage) (any, error)

type request struct {
	JSONRPC string           `json:"jsonrpc"`
	ID      *json.RawMessage `json:"id,omitempty"`
	Method  string           `json:"method"`
	Params  json.RawMessage  `json:"params,omitempty"`
}

type response struct {
	JSONRPC string           `json:"jsonrpc"`
	ID      *json.RawMessage `json:"id"`
	Result  any              `json:"result,omitempty"`
	Error   *rpcError        `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type initializeParams struct {
	ProtocolVersion string `json:"protocolVersion"`
}

type toolsCallParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// toolsCallResult is the MCP content envelope for a tool result. Tool
// failures travel here with IsError set, not as protocol errors.
type toolsCallResult struct {
	Content []mcpContent `json:"content"`
	IsError bool         `json:"isError"`
}

type mcpContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type toolListEntry struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema"`
}

// NewServer constructs a Server whose tools query a.
func NewServer(a Analyzer, version string, log *logger.Logger) *Server {
	if version == "" {
		version = "dev"
	}
	s := &Server{
		tools:       make(map[string]toolDef),
		engine:      a,
		version:     version,
		callTimeout: defaultCallTimeout,
		log:         logger.OrNop(log).With("component", "mcp"),
		tracer:      otel.Tracer("github.com/blackwell-systems/examwatch/internal/mcp"),
	}
	addTools(s)
	return s
}

// registerTool adds def. Names must be unique.
func (s *Server) registerTool(def toolDef) {
	if _, dup := s.tools[def.Name]; dup {
		panic(fmt.Sprintf("mcp: tool %q registered twice", def.Name))
	}
	s.tools[def.Name] = def
	s.order = append(s.order, def.Name)
}

// Run reads requests from r and writes responses to w until ctx is done or
// r reaches EOF, both of which return nil. Read and write failures are
// returned.
func (s *Server) Run(ctx context.Context, r io.Reader, w io.Writer) error {
	lines := make(chan []byte)
	readErr := make(chan error, 1)

	go func() {
		defer close(lines)
		sc := bufio.NewScanner(r)
		sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
		for sc.Scan() {
			line := slices.Clone(sc.Bytes())
			select {
			case lines <- line:
			case <-ctx.Done():
				readErr <- nil
				return
			}
		}
		readErr <- sc.Err()
	}()

	bw := bufio.NewWriter(w)
	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return <-readErr
			}
			if len(line) == 0 {
				continue
			}
			resp, reply := s.handle(ctx, line)
			if !reply {
				continue
			}
			if err := writeResponse(bw, resp); err != nil {
				return fmt.Errorf("writing response: %w", err)
			}
		}
	}
}

// handle processes one request line. reply is false for notifications.
func (s *Server) handle(ctx context.Context, line []byte) (resp response, reply bool) {
	resp.JSONRPC = "2.0"

	var req request
	if err := json.Unmarshal(line, &req); err != nil {
		resp.Error = &rpcError{Code: codeParseError, Message: "Parse error"}
		return resp, true
	}
	if req.ID == nil {
		s.log.Debug("notification", "method", req.Method)
		return resp, false
	}
	resp.ID = req.ID

	if req.JSONRPC != "2.0" || req.Method == "" {
		resp.Error = &rpcError{Code: codeInvalidRequest, Message: "Invalid Request"}
		return resp, true
	}

	switch req.Method {
	case "initialize":
		resp.Result = s.initialize(req.Params)
	case "ping":
		resp.Result = struct{}{}
	case "tools/list":
		entries := make([]toolListEntry, 0, len(s.order))
		for _, name := range s.order {
			t := s.tools[name]
			entries = append(entries, toolListEntry{Name: t.Name, Description: t.Description, InputSchema: t.InputSchema})
		}
		resp.Result = map[string]any{"tools": entries}
	case "tools/call":
		var params toolsCallParams
		if err := json.Unmarshal(req.Params, &params); err != nil || params.Name == "" {
			resp.Error = &rpcError{Code: codeInvalidParams, Message: "Invalid params"}
			break
		}
		resp.Result = s.callTool(ctx, params)
	default:
		resp.Error = &rpcError{Code: codeMethodNotFound, Message: "Method not found"}
	}
	return resp, true
}

// initialize answers with the client's protocol version when supported and
// the newest one otherwise.
func (s *Server) initialize(raw json.RawMessage) map[string]any {
	version := protocolVersions[0]
	var p initializeParams
	if len(raw) > 0 && json.Unmarshal(raw, &p) == nil && slices.Contains(protocolVersions, p.ProtocolVersion) {
		version = p.ProtocolVersion
	}
	return map[string]any{
		"protocolVersion": version,
		"capabilities":    map[string]any{"tools": map[string]any{}},
		"serverInfo":      map[string]any{"name": "examwatch", "version": s.version},
	}
}

// callTool runs one tool under a span and the per-call timeout.
func (s *Server) callTool(ctx context.Context, p toolsCallParams) toolsCallResult {
	tool, ok := s.tools[p.Name]
	if !ok {
		return errorResult(fmt.Errorf("%w: %s", ErrUnknownTool, p.Name))
	}
	args := p.Arguments
	if len(args) == 0 || string(args) == "null" {
		args = json.RawMessage(`{}`)
	}

	ctx, span := s.tracer.Start(ctx, "mcp.tools/call", trace.WithAttributes(attribute.String("mcp.tool", tool.Name)))
	defer span.End()
	if s.callTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.callTimeout)
		defer cancel()
	}

	start := time.Now()
	result, err := tool.Handler(ctx, args)
	if err == nil {
		var data []byte
		if data, err = json.Marshal(result); err == nil {
			s.log.Debug("tool call", "tool", tool.Name, "elapsed", time.Since(start))
			return toolsCallResult{Content: []mcpContent{{Type: "text", Text: string(data)}}}
		}
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	s.log.Warn("tool failed", "tool", tool.Name, "error", err)
	return errorResult(err)
}

func errorResult(err error) toolsCallResult {
	return toolsCallResult{Content: []mcpContent{{Type: "text", Text: err.Error()}}, IsError: true}
}

// writeResponse writes resp as one line and flushes.
func writeResponse(bw *bufio.Writer, resp response) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	data = append(data, '\n')
	if _, err := bw.Write(data); err != nil {
		return err
	}
	return bw.Flush()
}
