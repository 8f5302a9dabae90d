// Package server implements the MCP (Model Context Protocol) server that
// exposes annodiff's dataset comparison as tools.
//
// # Protocol
//
// The server communicates over stdio using JSON-RPC 2.0:
//   - Input: JSON-RPC requests on stdin (one per line)
//   - Output: JSON-RPC responses on stdout
//
// Supported MCP methods:
//   - initialize: Protocol handshake
//   - tools/list: Enumerate available tools
//   - tools/call: Execute a tool with arguments
//   - ping: Health check
//
// Log records go to stderr; stdout carries only protocol messages.
//
// # Available Tools
//
//   - dataset_diff: compare two dataset manifests and return the report
//     summary (totals, confusion cells, failures), optionally with per-item
//     results
//   - dataset_diff_render: compare and render in any output format, either
//     into a destination directory or, for text and json, inline
//
// Tool arguments override ANNODIFF_* environment variables, which override
// the config file given with WithConfigFile, which overrides the defaults.
//
// # Image Caching
//
// Overlay renders load source images through a cache shared by every tool
// call. The cache is emptied after a render leaves more than
// DefaultMaxCachedImages images in it (see WithMaxCachedImages).
//
// # Error Handling
//
// Tool execution errors are returned as JSON-RPC error responses with:
//   - code: -32000 (tool execution failure) or standard JSON-RPC codes
//   - message: Human-readable error description
//   - data: the Go error string
//
// # Usage
//
//	srv := server.New(server.WithVersion(version))
//	if err := srv.Run(ctx, os.Stdin, os.Stdout); err != nil {
//	    log.Fatal(err)
//	}
package server
