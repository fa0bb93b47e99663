// Package server exposes the integration facade over HTTP.
//
// # Key Components
//
// ServerContext carries the process-wide dependencies shared by the HTTP API
// and the MCP tools: the integration service, the store, metrics and the
// audit logger.
//
// HTTPServer serves the integration API under /api/integration, Kubernetes
// health checks, and optionally the MCP streamable HTTP endpoint at /mcp.
// The calling application authenticates users; the user id arrives in the
// X-User-ID header.
//
// OAuth callbacks never answer with JSON. They redirect the browser to the
// configured frontend URL with app_type and either success=true or error.
//
// MetricsServer serves Prometheus metrics on a dedicated port.
package server
