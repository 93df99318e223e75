// Package mcpserver provides the Model Context Protocol (MCP) server implementation.
//
// The mcpserver package implements an MCP-compliant server that exposes the
// execution engine as a single tool, execute_code. It uses the mark3labs/mcp-go
// library to handle the protocol details. The tool result carries the same JSON
// envelope the REST API returns and is flagged as an error whenever the
// execution did not succeed.
//
// The server supports both stdio and HTTP transports as configured by the
// application configuration.
//
// Usage:
//
//	server, err := mcpserver.New(config, logger, executor, registry)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	err = server.ServeStdio() // or server.ServeHTTP()
package mcpserver
