package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"lighter-mcp/internal/orders"
)

const protocolVersion = "2025-03-26"

// JSON-RPC 2.0 error codes.
const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
)

type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// isNotification reports a request without an id, which gets no response.
func (r *rpcRequest) isNotification() bool {
	return len(r.ID) == 0 || string(r.ID) == "null"
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

func errorResponse(id json.RawMessage, code int, msg string) *rpcResponse {
	if len(id) == 0 {
		id = json.RawMessage("null")
	}
	return &rpcResponse{JSONRPC: "2.0", ID: id, Error: &rpcError{Code: code, Message: msg}}
}

type toolInfo struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema"`
}

type callParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

type textContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type callResult struct {
	Content []textContent `json:"content"`
	IsError bool          `json:"isError"`
}

// dispatch runs one request. It returns nil for notifications.
func (s *Server) dispatch(ctx context.Context, c orders.Caller, req *rpcRequest) *rpcResponse {
	if req.JSONRPC != "2.0" || req.Method == "" {
		if req.isNotification() {
			return nil
		}
		return errorResponse(req.ID, codeInvalidRequest, "Invalid Request")
	}

	var (
		result any
		rpcErr *rpcError
	)
	switch req.Method {
	case "initialize":
		result = s.initializeResult(req.Params)
	case "notifications/initialized", "notifications/cancelled":
		return nil
	case "ping":
		result = struct{}{}
	case "tools/list":
		list := s.registry.List()
		infos := make([]toolInfo, 0, len(list))
		for _, t := range list {
			infos = append(infos, toolInfo{Name: t.Name, Description: t.Description, InputSchema: t.InputSchema})
		}
		result = map[string]any{"tools": infos}
	case "tools/call":
		result, rpcErr = s.callTool(ctx, c, req.Params)
	default:
		rpcErr = &rpcError{Code: codeMethodNotFound, Message: "Method not found: " + req.Method}
	}

	if req.isNotification() {
		return nil
	}
	if rpcErr != nil {
		return errorResponse(req.ID, rpcErr.Code, rpcErr.Message)
	}
	return &rpcResponse{JSONRPC: "2.0", ID: req.ID, Result: result}
}

func (s *Server) initializeResult(params json.RawMessage) map[string]any {
	version := protocolVersion
	var p struct {
		ProtocolVersion string `json:"protocolVersion"`
	}
	if len(params) > 0 && json.Unmarshal(params, &p) == nil && p.ProtocolVersion != "" {
		version = p.ProtocolVersion
	}
	return map[string]any{
		"protocolVersion": version,
		"capabilities":    map[string]any{"tools": map[string]bool{"listChanged": false}},
		"serverInfo":      map[string]string{"name": "lighter-mcp", "version": s.opts.Version},
	}
}

func (s *Server) callTool(ctx context.Context, c orders.Caller, params json.RawMessage) (any, *rpcError) {
	var p callParams
	if err := json.Unmarshal(params, &p); err != nil || p.Name == "" {
		return nil, &rpcError{Code: codeInvalidParams, Message: "tools/call requires a tool name"}
	}
	env := s.registry.Call(ctx, p.Name, c, p.Arguments)
	text, err := json.Marshal(env)
	if err != nil {
		// Data that cannot be encoded still reports the outcome.
		text, _ = json.Marshal(map[string]any{"success": env.Success, "message": env.Message})
	}
	return callResult{
		Content: []textContent{{Type: "text", Text: string(text)}},
		IsError: !env.Success,
	}, nil
}

// handleRPC serves POST /mcp. A body may hold one request or a batch.
func (s *Server) handleRPC(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBodyBytes))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(nil, codeParseError, "Parse error"))
		return
	}
	body = bytes.TrimSpace(body)

	sessionID := c.GetHeader(HeaderSession)
	log := requestLog(c, s.log)

	if len(body) > 0 && body[0] == '[' {
		var batch []rpcRequest
		if err := json.Unmarshal(body, &batch); err != nil || len(batch) == 0 {
			c.JSON(http.StatusBadRequest, errorResponse(nil, codeInvalidRequest, "Invalid Request"))
			return
		}
		if sessionID == "" && hasInitialize(batch) {
			sessionID = uuid.NewString()
		}
		if sessionID != "" {
			c.Header(HeaderSession, sessionID)
		}
		caller := s.caller(c.Request.Header, sessionID)
		out := make([]*rpcResponse, 0, len(batch))
		for i := range batch {
			if resp := s.dispatch(c.Request.Context(), caller, &batch[i]); resp != nil {
				out = append(out, resp)
			}
		}
		if len(out) == 0 {
			c.Status(http.StatusAccepted)
			return
		}
		c.JSON(http.StatusOK, out)
		return
	}

	var req rpcRequest
	if err := json.Unmarshal(body, &req); err != nil {
		log.WithError(err).Debug("malformed JSON-RPC body")
		c.JSON(http.StatusBadRequest, errorResponse(nil, codeParseError, "Parse error"))
		return
	}
	if sessionID == "" && req.Method == "initialize" {
		sessionID = uuid.NewString()
	}
	if sessionID != "" {
		c.Header(HeaderSession, sessionID)
	}

	resp := s.dispatch(c.Request.Context(), s.caller(c.Request.Header, sessionID), &req)
	if resp == nil {
		c.Status(http.StatusAccepted)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func hasInitialize(batch []rpcRequest) bool {
	for _, r := range batch {
		if r.Method == "initialize" {
			return true
		}
	}
	return false
}
