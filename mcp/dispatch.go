package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/mhpenta/devicemcp/jsonrpc"
	"github.com/mhpenta/devicemcp/schema"
	"github.com/mhpenta/devicemcp/tools"
	"github.com/mhpenta/devicemcp/transport"
)

// MCP method names
const (
	MethodInitialize  = "initialize"
	MethodInitialized = "notifications/initialized"
	MethodToolsList   = "tools/list"
	MethodToolsCall   = "tools/call"
	MethodPing        = "ping"
)

type initializeParams struct {
	ProtocolVersion string `json:"protocolVersion"`
	ClientInfo      struct {
		Name string `json:"name"`
	} `json:"clientInfo"`
}

type initializeResult struct {
	ProtocolVersion string             `json:"protocolVersion"`
	Capabilities    serverCapabilities `json:"capabilities"`
	ServerInfo      serverInfo         `json:"serverInfo"`
}

type serverCapabilities struct {
	Tools struct{} `json:"tools"`
}

type serverInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type toolsListResult struct {
	Tools []toolDescription `json:"tools"`
}

type toolDescription struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"inputSchema"`
}

// HandleRequest is the transport's request handler: it dispatches raw and
// sends the reply through the transport.
func (s *Server) HandleRequest(raw string) {
	resp := s.Dispatch(s.ctx, raw)
	if err := s.transport.SendResponse(resp); err != nil {
		s.logger.Error("failed to send response", "error", err)
	}
}

// Dispatch processes one raw message and returns the reply. Notifications
// yield transport.NotificationAck.
func (s *Server) Dispatch(ctx context.Context, raw string) string {
	req, err := jsonrpc.ParseRequest(raw)
	if err != nil {
		s.logger.Warn("failed to parse request", "error", err)
		return jsonrpc.CreateError(0, jsonrpc.CodeParseError, "Parse error")
	}

	logger := s.logger.With("method", req.Method, "id", req.ID, "trace_id", uuid.NewString())
	logger.Debug("handling request", "notification", req.IsNotification)

	var (
		result any
		rpcErr *jsonrpc.Error
	)

	switch req.Method {
	case MethodInitialize:
		result = s.handleInitialize(logger, req)
	case MethodInitialized:
		s.stateMu.Lock()
		s.initialized = true
		s.stateMu.Unlock()
		logger.Info("client initialized")
		return transport.NotificationAck
	case MethodToolsList:
		result, rpcErr = s.handleToolsList(logger)
	case MethodToolsCall:
		result, rpcErr = s.handleToolsCall(ctx, logger, req)
	case MethodPing:
		result = struct{}{}
	default:
		if req.IsNotification {
			logger.Debug("ignoring notification")
			return transport.NotificationAck
		}
		logger.Warn("method not found")
		rpcErr = jsonrpc.NewError(jsonrpc.CodeMethodNotFound, "Method not found")
	}

	if rpcErr != nil {
		if rpcErr.Cause != nil {
			logger.Error("request failed", "error", rpcErr)
		}
		return jsonrpc.CreateError(req.ID, rpcErr.Code, rpcErr.Message)
	}

	resp, err := jsonrpc.CreateResponse(req.ID, result)
	if err != nil {
		logger.Error("failed to build response", "error", err)
		return jsonrpc.CreateError(req.ID, jsonrpc.CodeInternalError, "Internal error")
	}
	return resp
}

func (s *Server) handleInitialize(logger *slog.Logger, req *jsonrpc.Request) initializeResult {
	var params initializeParams
	if len(req.Params) > 0 {
		// Both fields are optional; a malformed params object is treated as empty.
		if err := json.Unmarshal(req.Params, &params); err != nil {
			logger.Warn("ignoring malformed initialize params", "error", err)
			params = initializeParams{}
		}
	}

	s.stateMu.Lock()
	s.protocolVersion = params.ProtocolVersion
	s.clientName = params.ClientInfo.Name
	s.stateMu.Unlock()

	logger.Info("MCP client connected",
		"client", params.ClientInfo.Name,
		"protocol_version", params.ProtocolVersion)

	version := params.ProtocolVersion
	if version == "" {
		version = s.protocolDefault
	}
	return initializeResult{
		ProtocolVersion: version,
		ServerInfo:      serverInfo{Name: s.name, Version: s.version},
	}
}

func (s *Server) handleToolsList(logger *slog.Logger) (any, *jsonrpc.Error) {
	entries := s.registry.Entries()
	list := make([]toolDescription, 0, len(entries))

	for _, e := range entries {
		inputSchema := schema.EmptyInputSchema
		if len(e.Parameters) > 0 {
			data, err := schema.ToJSON(logger, e.Parameters)
			if err != nil {
				return nil, jsonrpc.NewInternalError(fmt.Errorf("schema for %s: %w", e.Name, err))
			}
			inputSchema = data
		}
		list = append(list, toolDescription{
			Name:        e.Name,
			Description: e.Description,
			InputSchema: inputSchema,
		})
	}

	return toolsListResult{Tools: list}, nil
}

func (s *Server) handleToolsCall(ctx context.Context, logger *slog.Logger, req *jsonrpc.Request) (any, *jsonrpc.Error) {
	params := req.ParamsObject()

	var name *string
	if raw, ok := params["name"]; !ok || json.Unmarshal(raw, &name) != nil || name == nil {
		return nil, jsonrpc.NewInvalidParamsError("Missing 'name' parameter")
	}

	entry, ok := s.registry.Lookup(*name)
	if !ok {
		logger.Warn("tool not found", "tool", *name)
		return nil, jsonrpc.NewInvalidParamsError("Tool not found")
	}

	toolName := entry.Name
	args := tools.NewArgs(params["arguments"])

	if s.validate && len(entry.Parameters) > 0 {
		if err := schema.Validate(schema.Build(logger, entry.Parameters), args.Map()); err != nil {
			logger.Warn("invalid tool arguments", "tool", toolName, "error", err)
			return nil, jsonrpc.NewInvalidParamsError(fmt.Sprintf("Invalid params: %v", err))
		}
	}

	logger.Info("executing tool", "tool", toolName)
	result, err := invoke(ctx, entry.Handler, args)
	if err != nil {
		return nil, jsonrpc.NewInternalError(fmt.Errorf("tool %s: %w", toolName, err))
	}
	if !result.Success {
		logger.Warn("tool reported failure", "tool", toolName, "error", result.ErrorMessage)
	}

	payload, err := result.JSON()
	if err != nil {
		return nil, jsonrpc.NewInternalError(err)
	}
	return payload, nil
}

// invoke runs a handler, converting a panic into an error.
func invoke(ctx context.Context, h tools.Handler, args tools.Args) (result tools.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return h(ctx, args), nil
}
