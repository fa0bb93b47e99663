// Package cmd implements the command-line interface for calconnect.
//
// This package provides the following commands:
//   - serve: Start the integration HTTP API, optionally with the MCP endpoint at /mcp
//   - mcp: Serve the integration tools over MCP stdio for a single user
//   - migrate: Apply database migrations and exit
//   - keygen: Print a new token encryption key
//   - generate-docs: Generate markdown documentation for all MCP tools
//   - version: Display version information
//
// All commands read their configuration from the environment; see internal/config.
package cmd
