package instrumentation

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	attrMethod    = "method"
	attrRoute     = "route"
	attrStatus    = "status"
	attrOperation = "operation"
	attrProvider  = "provider"
	attrResult    = "result"
	attrState     = "state"
	attrTool      = "tool"
)

var durationBuckets = []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0}

// Metrics records calconnect metrics. The zero value is a no-op recorder.
type Metrics struct {
	httpRequestsTotal   metric.Int64Counter
	httpRequestDuration metric.Float64Histogram

	providerCallsTotal   metric.Int64Counter
	providerCallDuration metric.Float64Histogram

	flowTransitionsTotal metric.Int64Counter
	tokenExchangeTotal   metric.Int64Counter
	tokenRefreshTotal    metric.Int64Counter

	toolInvocationsTotal metric.Int64Counter
	toolDuration         metric.Float64Histogram
}

// NewMetrics creates all instruments on meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	counters := []struct {
		dst  *metric.Int64Counter
		name string
		desc string
		unit string
	}{
		{&m.httpRequestsTotal, "http_requests_total", "Total number of HTTP requests", "{request}"},
		{&m.providerCallsTotal, "provider_api_calls_total", "Total number of calls to provider APIs", "{call}"},
		{&m.flowTransitionsTotal, "oauth_flow_transitions_total", "OAuth flow state transitions", "{transition}"},
		{&m.tokenExchangeTotal, "oauth_token_exchange_total", "Authorization code exchanges by result", "{attempt}"},
		{&m.tokenRefreshTotal, "oauth_token_refresh_total", "Token refresh attempts by result", "{attempt}"},
		{&m.toolInvocationsTotal, "mcp_tool_invocations_total", "Total number of MCP tool invocations", "{invocation}"},
	}
	for _, c := range counters {
		*c.dst, err = meter.Int64Counter(c.name, metric.WithDescription(c.desc), metric.WithUnit(c.unit))
		if err != nil {
			return nil, fmt.Errorf("failed to create %s counter: %w", c.name, err)
		}
	}

	histograms := []struct {
		dst  *metric.Float64Histogram
		name string
		desc string
	}{
		{&m.httpRequestDuration, "http_request_duration_seconds", "HTTP request duration in seconds"},
		{&m.providerCallDuration, "provider_api_call_duration_seconds", "Provider API call duration in seconds"},
		{&m.toolDuration, "mcp_tool_duration_seconds", "MCP tool execution duration in seconds"},
	}
	for _, h := range histograms {
		*h.dst, err = meter.Float64Histogram(h.name,
			metric.WithDescription(h.desc),
			metric.WithUnit("s"),
			metric.WithExplicitBucketBoundaries(durationBuckets...),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create %s histogram: %w", h.name, err)
		}
	}

	return m, nil
}

// RecordHTTPRequest records a request by route pattern, never by raw path.
func (m *Metrics) RecordHTTPRequest(ctx context.Context, method, route string, statusCode int, duration time.Duration) {
	if m == nil || m.httpRequestsTotal == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String(attrMethod, method),
		attribute.String(attrRoute, route),
		attribute.String(attrStatus, strconv.Itoa(statusCode)),
	)
	m.httpRequestsTotal.Add(ctx, 1, attrs)
	m.httpRequestDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordProviderCall records one outbound call to a provider API.
func (m *Metrics) RecordProviderCall(ctx context.Context, provider, operation, status string, duration time.Duration) {
	if m == nil || m.providerCallsTotal == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String(attrProvider, provider),
		attribute.String(attrOperation, operation),
		attribute.String(attrStatus, status),
	)
	m.providerCallsTotal.Add(ctx, 1, attrs)
	m.providerCallDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordFlowTransition counts an OAuth flow entering state.
func (m *Metrics) RecordFlowTransition(ctx context.Context, provider, state string) {
	if m == nil || m.flowTransitionsTotal == nil {
		return
	}
	m.flowTransitionsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String(attrProvider, provider),
		attribute.String(attrState, state),
	))
}

// RecordTokenExchange records an authorization code exchange.
func (m *Metrics) RecordTokenExchange(ctx context.Context, provider, result string) {
	if m == nil || m.tokenExchangeTotal == nil {
		return
	}
	m.tokenExchangeTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String(attrProvider, provider),
		attribute.String(attrResult, result),
	))
}

// RecordTokenRefresh records a refresh attempt.
func (m *Metrics) RecordTokenRefresh(ctx context.Context, provider, result string) {
	if m == nil || m.tokenRefreshTotal == nil {
		return
	}
	m.tokenRefreshTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String(attrProvider, provider),
		attribute.String(attrResult, result),
	))
}

// RecordToolInvocation records an MCP tool call.
func (m *Metrics) RecordToolInvocation(ctx context.Context, tool, status string, duration time.Duration) {
	if m == nil || m.toolInvocationsTotal == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String(attrTool, tool),
		attribute.String(attrStatus, status),
	)
	m.toolInvocationsTotal.Add(ctx, 1, attrs)
	m.toolDuration.Record(ctx, duration.Seconds(), attrs)
}

// StatusOf maps an error to a status label.
func StatusOf(err error) string {
	if err != nil {
		return StatusError
	}
	return StatusSuccess
}

// ResultOf maps an error to a result label.
func ResultOf(err error) string {
	if err != nil {
		return ResultFailure
	}
	return ResultSuccess
}
