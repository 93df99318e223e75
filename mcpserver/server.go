package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/isdmx/coderun/config"
	"github.com/isdmx/coderun/engine"
)

// ToolName is the name of the code execution tool
const ToolName = "execute_code"

// LanguageNamer lists the supported language names
type LanguageNamer interface {
	Names() []string
}

// MCPServer represents the MCP server
type MCPServer struct {
	config    *config.Config
	logger    *zap.Logger
	executor  engine.Executor
	languages []string
	mcpServer *server.MCPServer
}

// New creates a new MCPServer
func New(cfg *config.Config, logger *zap.Logger, executor engine.Executor, languages LanguageNamer) (*MCPServer, error) {
	s := &MCPServer{
		config:    cfg,
		logger:    logger,
		executor:  executor,
		languages: languages.Names(),
	}

	// Log configuration parameters on startup
	logger.Info("configuration loaded",
		zap.String("server.transport", s.config.Server.Transport),
		zap.Int("server.http_port", s.config.Server.HTTPPort),
		zap.Int("server.rest_port", s.config.Server.RESTPort),
		zap.String("engine.backend", s.config.Engine.Backend),
		zap.Int("engine.compile_timeout_sec", s.config.Engine.CompileTimeoutSec),
		zap.Int("engine.run_timeout_sec", s.config.Engine.RunTimeoutSec),
		zap.Int("engine.max_code_bytes", s.config.Engine.MaxCodeBytes),
		zap.Int("engine.memory_mb", s.config.Engine.MemoryMB),
		zap.Bool("engine.network_enabled", s.config.Engine.NetworkEnabled),
		zap.String("engine.default_language", s.config.Engine.DefaultLanguage),
		zap.Strings("languages", s.languages),
	)

	s.mcpServer = server.NewMCPServer("coderun-executor", "A code execution server for untrusted programs")
	s.registerExecuteCodeTool()

	return s, nil
}

// registerExecuteCodeTool registers the execute_code tool
func (s *MCPServer) registerExecuteCodeTool() {
	tool := mcp.Tool{
		Name:        ToolName,
		Description: "Compile (if needed) and run a single-file program, returning its output or a classified failure",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"code": map[string]any{
					"type":        "string",
					"description": "Complete program source",
				},
				"input": map[string]any{
					"type":        "string",
					"description": "Text fed to the program's standard input (optional)",
				},
				"language": map[string]any{
					"type":        "string",
					"description": fmt.Sprintf("Program language (default %s)", s.config.Engine.DefaultLanguage),
					"enum":        s.languages,
				},
			},
			Required: []string{"code"},
		},
	}

	s.mcpServer.AddTool(tool, s.handleExecuteCode)
}

// handleExecuteCode handles the execute_code tool. Validation is left to the
// engine so every transport returns the same envelope for the same input.
func (s *MCPServer) handleExecuteCode(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	req := engine.Request{
		Code:     request.GetString("code", ""),
		Input:    request.GetString("input", ""),
		Language: request.GetString("language", ""),
	}

	result := s.executor.Execute(ctx, req)

	resultJSON, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("failed to encode result: %w", err)
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{
				Type: "text",
				Text: string(resultJSON),
			},
		},
		IsError: !result.Success,
	}, nil
}

// ServeStdio starts the server on stdio
func (s *MCPServer) ServeStdio() error {
	s.logger.Info("starting MCP server on stdio")
	return server.ServeStdio(s.mcpServer)
}

// ServeHTTP starts the server on HTTP
func (s *MCPServer) ServeHTTP() error {
	port := s.config.Server.HTTPPort
	s.logger.Info("starting MCP server on HTTP", zap.Int("port", port))

	httpServer := server.NewStreamableHTTPServer(s.mcpServer)
	return httpServer.Start(fmt.Sprintf(":%d", port))
}

// GetMCPServer returns the underlying MCP server for fx
func (s *MCPServer) GetMCPServer() *server.MCPServer {
	return s.mcpServer
}
