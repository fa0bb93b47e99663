// Package common provides shared helpers for MCP tool implementations:
// user resolution, argument parsing and instrumentation wrappers.
package common
