package integration_tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/calconnect/internal/integration"
	"github.com/teemow/calconnect/internal/server"
	"github.com/teemow/calconnect/internal/tools/common"
)

const userIDDescription = "User to act for. Ignored when the transport authenticates the user."

func appTypeDescription() string {
	names := make([]string, 0, len(integration.AllAppTypes()))
	for _, at := range integration.AllAppTypes() {
		names = append(names, string(at))
	}
	return "App type, one of: " + strings.Join(names, ", ")
}

// RegisterIntegrationTools registers the integration tools with the MCP server.
func RegisterIntegrationTools(s *mcpserver.MCPServer, sc *server.ServerContext, readOnly bool) error {
	if sc == nil || sc.Service() == nil {
		return fmt.Errorf("integration tools require a server context with a service")
	}

	listTool := mcp.NewTool("integration_list",
		mcp.WithDescription("List every supported app with whether the user has connected it"),
		mcp.WithString("user_id", mcp.Description(userIDDescription)),
	)
	s.AddTool(listTool, common.InstrumentedToolHandler("integration_list", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleList(ctx, request, sc)
		}))

	checkTool := mcp.NewTool("integration_check",
		mcp.WithDescription("Check whether the user has connected an app"),
		mcp.WithString("user_id", mcp.Description(userIDDescription)),
		mcp.WithString("app_type", mcp.Required(), mcp.Description(appTypeDescription())),
	)
	s.AddTool(checkTool, common.InstrumentedToolHandler("integration_check", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleCheck(ctx, request, sc)
		}))

	connectTool := mcp.NewTool("integration_connect",
		mcp.WithDescription("Get the provider consent URL that connects an app. The user must open it in a browser."),
		mcp.WithString("user_id", mcp.Description(userIDDescription)),
		mcp.WithString("app_type", mcp.Required(), mcp.Description(appTypeDescription())),
	)
	s.AddTool(connectTool, common.InstrumentedToolHandler("integration_connect", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleConnect(ctx, request, sc)
		}))

	listCalendarsTool := mcp.NewTool("integration_list_calendars",
		mcp.WithDescription("List the calendars of a connected app and which of them are selected"),
		mcp.WithString("user_id", mcp.Description(userIDDescription)),
		mcp.WithString("app_type", mcp.Required(), mcp.Description(appTypeDescription())),
	)
	s.AddTool(listCalendarsTool, common.InstrumentedToolHandler("integration_list_calendars", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleListCalendars(ctx, request, sc)
		}))

	if readOnly {
		return nil
	}

	selectTool := mcp.NewTool("integration_select_calendars",
		mcp.WithDescription("Replace the set of selected calendars of a connected app"),
		mcp.WithString("user_id", mcp.Description(userIDDescription)),
		mcp.WithString("app_type", mcp.Required(), mcp.Description(appTypeDescription())),
		mcp.WithString("calendar_ids", mcp.Required(),
			mcp.Description("Comma-separated calendar IDs as returned by integration_list_calendars. Empty selects none."),
		),
	)
	s.AddTool(selectTool, common.InstrumentedToolHandler("integration_select_calendars", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleSelectCalendars(ctx, request, sc)
		}))

	disconnectTool := mcp.NewTool("integration_disconnect",
		mcp.WithDescription("Disconnect an app and delete its stored tokens"),
		mcp.WithString("user_id", mcp.Description(userIDDescription)),
		mcp.WithString("app_type", mcp.Required(), mcp.Description(appTypeDescription())),
	)
	s.AddTool(disconnectTool, common.InstrumentedToolHandler("integration_disconnect", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleDisconnect(ctx, request, sc)
		}))

	return nil
}

// userAndApp resolves the common arguments. A non-nil result is an error
// result to return to the client.
func userAndApp(ctx context.Context, args map[string]any, sc *server.ServerContext) (string, integration.AppType, *mcp.CallToolResult) {
	userID, err := common.GetUserFromArgs(ctx, args, sc)
	if err != nil {
		return "", "", mcp.NewToolResultError(err.Error())
	}
	raw, _ := args["app_type"].(string)
	if raw == "" {
		return "", "", mcp.NewToolResultError("app_type is required")
	}
	appType, err := integration.ParseAppType(strings.ToUpper(strings.TrimSpace(raw)))
	if err != nil {
		return "", "", mcp.NewToolResultError(integration.MessageFor(err))
	}
	return userID, appType, nil
}

func failure(action string, err error) *mcp.CallToolResult {
	return mcp.NewToolResultError(fmt.Sprintf("Failed to %s: %s", action, integration.MessageFor(err)))
}

func handleList(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	userID, err := common.GetUserFromArgs(ctx, request.GetArguments(), sc)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	summaries, err := sc.Service().ListUserIntegrations(ctx, userID)
	if err != nil {
		return failure("list integrations", err), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d app(s):\n\n", len(summaries))
	for i, s := range summaries {
		status := "not connected"
		if s.IsConnected {
			status = "connected"
		}
		fmt.Fprintf(&b, "%d. %s (%s)\n", i+1, s.Title, s.AppType)
		fmt.Fprintf(&b, "   Provider: %s\n", s.Provider)
		fmt.Fprintf(&b, "   Category: %s\n", s.Category)
		fmt.Fprintf(&b, "   Status: %s\n\n", status)
	}
	return mcp.NewToolResultText(b.String()), nil
}

func handleCheck(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	userID, appType, errResult := userAndApp(ctx, request.GetArguments(), sc)
	if errResult != nil {
		return errResult, nil
	}

	connected, err := sc.Service().IsConnected(ctx, userID, appType)
	if err != nil {
		return failure("check integration", err), nil
	}
	if connected {
		return mcp.NewToolResultText(fmt.Sprintf("%s is connected", appType)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("%s is not connected", appType)), nil
}

func handleConnect(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	userID, appType, errResult := userAndApp(ctx, request.GetArguments(), sc)
	if errResult != nil {
		return errResult, nil
	}

	url, err := sc.Service().Connect(ctx, userID, appType)
	if err != nil {
		return failure("start connection", err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf(`To connect %s:

1. Open this URL in a browser:
   %s

2. Sign in and grant access.
3. The browser returns to the application once the connection is stored.`, appType, url)), nil
}

func handleListCalendars(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	userID, appType, errResult := userAndApp(ctx, request.GetArguments(), sc)
	if errResult != nil {
		return errResult, nil
	}

	calendars, err := sc.Service().ListCalendars(ctx, userID, appType)
	if err != nil {
		return failure("list calendars", err), nil
	}
	if len(calendars) == 0 {
		return mcp.NewToolResultText(fmt.Sprintf("%s has no calendars", appType)), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d calendar(s):\n\n", len(calendars))
	for i, cal := range calendars {
		fmt.Fprintf(&b, "%d. %s\n", i+1, cal.Summary)
		fmt.Fprintf(&b, "   ID: %s\n", cal.ID)
		if cal.Selected {
			b.WriteString("   [SELECTED]\n")
		}
		b.WriteString("\n")
	}
	return mcp.NewToolResultText(b.String()), nil
}

func handleSelectCalendars(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	userID, appType, errResult := userAndApp(ctx, args, sc)
	if errResult != nil {
		return errResult, nil
	}
	ids, ok := common.StringList(args, "calendar_ids")
	if !ok {
		return mcp.NewToolResultError("calendar_ids is required"), nil
	}

	if err := sc.Service().SaveSelectedCalendars(ctx, userID, appType, ids); err != nil {
		return failure("save calendar selection", err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Saved %d selected calendar(s) for %s", len(ids), appType)), nil
}

func handleDisconnect(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	userID, appType, errResult := userAndApp(ctx, request.GetArguments(), sc)
	if errResult != nil {
		return errResult, nil
	}

	if err := sc.Service().Disconnect(ctx, userID, appType); err != nil {
		return failure("disconnect", err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("%s disconnected", appType)), nil
}
