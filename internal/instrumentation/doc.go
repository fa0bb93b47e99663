// Package instrumentation provides OpenTelemetry metrics, tracing and audit
// logging for calconnect.
//
// # Metrics
//
// HTTP:
//   - http_requests_total, http_request_duration_seconds
//
// Provider APIs (Google Calendar, Microsoft Graph, OAuth token endpoints):
//   - provider_api_calls_total, provider_api_call_duration_seconds
//
// OAuth lifecycle:
//   - oauth_flow_transitions_total: by provider and flow state
//   - oauth_token_exchange_total, oauth_token_refresh_total: by provider and result
//
// MCP tools:
//   - mcp_tool_invocations_total, mcp_tool_duration_seconds
//
// Labels never carry user identifiers.
//
// # Configuration
//
// Config is read from the environment (INSTRUMENTATION_ENABLED, METRICS_EXPORTER,
// TRACING_EXPORTER, OTEL_EXPORTER_OTLP_ENDPOINT, ...). Prometheus is the default
// metrics exporter and is served by the metrics server on its own port.
package instrumentation
