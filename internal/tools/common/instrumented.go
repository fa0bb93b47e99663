package common

import (
	"context"
	"errors"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/teemow/calconnect/internal/instrumentation"
	"github.com/teemow/calconnect/internal/server"
)

var errToolResult = errors.New("tool returned an error result")

// ToolHandler is the mcp-go tool handler signature.
type ToolHandler = func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error)

// InstrumentedToolHandler wraps a tool handler with a span, metrics and audit logging.
//
// Usage:
//
//	s.AddTool(myTool, common.InstrumentedToolHandler("my_tool", sc, handler))
func InstrumentedToolHandler(toolName string, sc *server.ServerContext, handler ToolHandler) ToolHandler {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		metrics := sc.Metrics()
		auditLogger := sc.AuditLogger()

		ctx, span := instrumentation.StartToolSpan(ctx, toolName)
		start := time.Now()

		result, err := handler(ctx, request)
		duration := time.Since(start)

		failed := err != nil || (result != nil && result.IsError)
		status := instrumentation.StatusSuccess
		if failed {
			status = instrumentation.StatusError
		}
		instrumentation.EndSpan(span, err)
		metrics.RecordToolInvocation(ctx, toolName, status, duration)

		userID, _ := GetUserFromArgs(ctx, request.GetArguments(), sc)
		auditErr := err
		if auditErr == nil && failed {
			auditErr = errToolResult
		}
		appType, _ := request.GetArguments()["app_type"].(string)
		auditLogger.Log(ctx, instrumentation.AuditEvent{
			Action:   "tool:" + toolName,
			UserID:   userID,
			AppType:  appType,
			Duration: duration,
			Err:      auditErr,
		})

		return result, err
	}
}
