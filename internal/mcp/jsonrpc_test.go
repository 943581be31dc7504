package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blackwell-systems/examwatch/internal/engine"
	"github.com/blackwell-systems/examwatch/internal/records"
)

// newEmptyServer creates a Server over an engine with no records.
func newEmptyServer(t *testing.T) *Server {
	t.Helper()
	cfg := engine.DefaultConfig()
	cfg.SweepInterval = -1
	e, err := engine.New(cfg, records.NewStore(records.DefaultCaps()))
	require.NoError(t, err)
	t.Cleanup(e.Stop)
	return NewServer(e, "test", nil)
}

// session is a running server wired to in-memory pipes.
type session struct {
	t      *testing.T
	in     *io.PipeWriter
	out    *bufio.Reader
	cancel context.CancelFunc
	done   chan error
}

func startSession(t *testing.T, s *Server) *session {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	pr, pw := io.Pipe()
	sr, sw := io.Pipe()

	sess := &session{t: t, in: pw, out: bufio.NewReader(sr), cancel: cancel, done: make(chan error, 1)}
	go func() { sess.done <- s.Run(ctx, pr, sw) }()

	t.Cleanup(func() {
		cancel()
		_ = pw.Close()
		_ = sr.Close()
		select {
		case <-sess.done:
		case <-time.After(2 * time.Second):
			t.Error("Run did not return after cancel")
		}
	})
	return sess
}

// call sends one line and decodes the response line into v.
func (s *session) call(line string, v any) {
	s.t.Helper()
	_, err := io.WriteString(s.in, line+"\n")
	require.NoError(s.t, err)
	resp, err := s.out.ReadBytes('\n')
	require.NoError(s.t, err)
	require.NoError(s.t, json.Unmarshal(resp, v), "response: %s", resp)
}

type envelope struct {
	ID     json.RawMessage `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

func TestRun_Initialize(t *testing.T) {
	sess := startSession(t, newEmptyServer(t))

	var resp struct {
		Result struct {
			ProtocolVersion string `json:"protocolVersion"`
			ServerInfo      struct {
				Name    string `json:"name"`
				Version string `json:"version"`
			} `json:"serverInfo"`
		} `json:"result"`
	}
	sess.call(`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2024-11-05"}}`, &resp)
	assert.Equal(t, "2024-11-05", resp.Result.ProtocolVersion)
	assert.Equal(t, "examwatch", resp.Result.ServerInfo.Name)
	assert.Equal(t, "test", resp.Result.ServerInfo.Version)

	sess.call(`{"jsonrpc":"2.0","id":2,"method":"initialize","params":{"protocolVersion":"1999-01-01"}}`, &resp)
	assert.Equal(t, protocolVersions[0], resp.Result.ProtocolVersion, "unknown versions get the newest")
}

func TestRun_Ping(t *testing.T) {
	sess := startSession(t, newEmptyServer(t))

	var resp envelope
	sess.call(`{"jsonrpc":"2.0","id":"p-1","method":"ping"}`, &resp)
	assert.Nil(t, resp.Error)
	assert.JSONEq(t, `"p-1"`, string(resp.ID))
	assert.JSONEq(t, `{}`, string(resp.Result))
}

func TestRun_ToolsList(t *testing.T) {
	s := newEmptyServer(t)
	s.registerTool(toolDef{
		Name:        "test_tool",
		InputSchema: json.RawMessage(`{"type":"object","properties":{}}`),
		Handler:     func(context.Context, json.RawMessage) (any, error) { return "ok", nil },
	})
	sess := startSession(t, s)

	var resp struct {
		Result struct {
			Tools []toolListEntry `json:"tools"`
		} `json:"result"`
	}
	sess.call(`{"jsonrpc":"2.0","id":2,"method":"tools/list"}`, &resp)

	var names []string
	for _, tool := range resp.Result.Tools {
		names = append(names, tool.Name)
		assert.NotEmpty(t, tool.InputSchema, tool.Name)
	}
	assert.Equal(t, []string{
		"get_metrics", "get_trends", "get_weaknesses", "get_recommendations",
		"get_learning_path", "get_latest_summary", "record_assessment", "test_tool",
	}, names, "registration order is kept")
}

func TestRegisterTool_DuplicatePanics(t *testing.T) {
	s := newEmptyServer(t)
	assert.Panics(t, func() {
		s.registerTool(toolDef{Name: "get_metrics"})
	})
}

func TestRun_ProtocolErrors(t *testing.T) {
	tests := []struct {
		name string
		line string
		code int
	}{
		{"parse error", `{"jsonrpc":`, codeParseError},
		{"wrong version", `{"jsonrpc":"1.0","id":1,"method":"ping"}`, codeInvalidRequest},
		{"unknown method", `{"jsonrpc":"2.0","id":3,"method":"resources/list"}`, codeMethodNotFound},
		{"call without name", `{"jsonrpc":"2.0","id":4,"method":"tools/call","params":{}}`, codeInvalidParams},
	}
	sess := startSession(t, newEmptyServer(t))
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var resp envelope
			sess.call(tc.line, &resp)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tc.code, resp.Error.Code)
		})
	}
}

func TestRun_UnknownToolIsToolError(t *testing.T) {
	sess := startSession(t, newEmptyServer(t))

	var resp struct {
		Result toolsCallResult `json:"result"`
		Error  *rpcError       `json:"error"`
	}
	sess.call(`{"jsonrpc":"2.0","id":4,"method":"tools/call","params":{"name":"get_cost"}}`, &resp)
	require.Nil(t, resp.Error)
	assert.True(t, resp.Result.IsError)
	require.Len(t, resp.Result.Content, 1)
	assert.Equal(t, "unknown tool: get_cost", resp.Result.Content[0].Text)
}

func TestRun_ToolCall(t *testing.T) {
	sess := startSession(t, newEmptyServer(t))

	var resp struct {
		Result toolsCallResult `json:"result"`
	}
	sess.call(`{"jsonrpc":"2.0","id":5,"method":"tools/call","params":{"name":"get_metrics","arguments":{"timeframe":"daily"}}}`, &resp)
	require.False(t, resp.Result.IsError)
	require.Len(t, resp.Result.Content, 1)
	assert.Equal(t, "text", resp.Result.Content[0].Type)
	assert.Contains(t, resp.Result.Content[0].Text, `"timeframe":"daily"`)

	// A bad timeframe is reported inside the result.
	sess.call(`{"jsonrpc":"2.0","id":6,"method":"tools/call","params":{"name":"get_metrics","arguments":{"timeframe":"yearly"}}}`, &resp)
	assert.True(t, resp.Result.IsError)
}

func TestCallTool_AppliesTimeout(t *testing.T) {
	s := newEmptyServer(t)
	s.callTimeout = 10 * time.Millisecond
	s.registerTool(toolDef{
		Name: "slow",
		Handler: func(ctx context.Context, _ json.RawMessage) (any, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	})

	res := s.callTool(context.Background(), toolsCallParams{Name: "slow"})
	assert.True(t, res.IsError)
	assert.Contains(t, res.Content[0].Text, "deadline exceeded")
}

func TestRun_NotificationGetsNoReply(t *testing.T) {
	sess := startSession(t, newEmptyServer(t))

	_, err := io.WriteString(sess.in, `{"jsonrpc":"2.0","method":"notifications/initialized"}`+"\n")
	require.NoError(t, err)

	// The next reply must belong to the ping, not the notification.
	var resp envelope
	sess.call(`{"jsonrpc":"2.0","id":9,"method":"ping"}`, &resp)
	assert.JSONEq(t, `9`, string(resp.ID))
}

func TestRun_StopsOnCancelAndEOF(t *testing.T) {
	t.Run("cancel", func(t *testing.T) {
		s := newEmptyServer(t)
		ctx, cancel := context.WithCancel(context.Background())
		pr, pw := io.Pipe()
		defer pw.Close()

		done := make(chan error, 1)
		go func() { done <- s.Run(ctx, pr, io.Discard) }()
		cancel()

		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Fatal("Run did not return after cancel")
		}
	})
	t.Run("eof", func(t *testing.T) {
		s := newEmptyServer(t)
		pr, pw := io.Pipe()

		done := make(chan error, 1)
		go func() { done <- s.Run(context.Background(), pr, io.Discard) }()
		require.NoError(t, pw.Close())

		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Fatal("Run did not return after EOF")
		}
	})
}
