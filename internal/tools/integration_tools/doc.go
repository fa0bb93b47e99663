// Package integration_tools exposes the integration facade as MCP tools.
//
// Available tools:
//   - integration_list: catalog of apps with connection status
//   - integration_check: whether one app is connected
//   - integration_connect: consent URL to start an OAuth connection
//   - integration_list_calendars: calendars of a connected app
//   - integration_select_calendars: save the calendar selection (write)
//   - integration_disconnect: remove a connection (write)
//
// Write tools are only registered when read-only mode is off.
package integration_tools
