package cmd

import (
	"context"
	"fmt"
	"os"
	"slices"
	"sort"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/spf13/cobra"

	"github.com/teemow/calconnect/internal/calendar"
	"github.com/teemow/calconnect/internal/integration"
	"github.com/teemow/calconnect/internal/oauth"
	"github.com/teemow/calconnect/internal/server"
	"github.com/teemow/calconnect/internal/service"
	"github.com/teemow/calconnect/internal/state"
	"github.com/teemow/calconnect/internal/store"
)

func newGenerateDocsCmd() *cobra.Command {
	var (
		outputFile string
	)

	cmd := &cobra.Command{
		Use:   "generate-docs",
		Short: "Generate MCP tool documentation",
		Long: `Generate markdown documentation for all available MCP tools.
This command introspects the registered tools and outputs their documentation
in markdown format, ensuring the documentation is always accurate and in sync
with the actual tool implementations.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerateDocs(outputFile)
		},
	}

	cmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file (default: stdout)")

	return cmd
}

func runGenerateDocs(outputFile string) error {
	// Tool definitions do not depend on configuration, so an in-memory
	// service with placeholder credentials is enough.
	registry, err := integration.NewRegistry(nil)
	if err != nil {
		return err
	}
	codec, err := state.NewCodec([]byte("generate-docs"))
	if err != nil {
		return err
	}
	svc := service.New(oauth.NewEngine(registry, codec), store.NewMemoryStore(),
		calendar.NewAdapter(calendar.Config{}), codec)

	serverContext := server.NewServerContext(context.Background(), svc)
	defer func() {
		_ = serverContext.Shutdown()
	}()

	readOnlySrv, err := newMCPServer(serverContext, true)
	if err != nil {
		return err
	}
	fullSrv, err := newMCPServer(serverContext, false)
	if err != nil {
		return err
	}

	readOnly := make(map[string]bool)
	for _, st := range readOnlySrv.ListTools() {
		readOnly[st.Tool.Name] = true
	}
	tools := make([]mcp.Tool, 0, len(readOnly))
	for _, st := range fullSrv.ListTools() {
		tools = append(tools, st.Tool)
	}

	markdown := generateToolsMarkdown(tools, readOnly)

	if outputFile == "" {
		fmt.Print(markdown)
		return nil
	}
	if err := os.WriteFile(outputFile, []byte(markdown), 0644); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}
	fmt.Fprintf(os.Stderr, "Documentation written to: %s\n", outputFile)
	return nil
}

// generateToolsMarkdown renders the tool reference. Tools missing from
// readOnly are marked as write tools.
func generateToolsMarkdown(tools []mcp.Tool, readOnly map[string]bool) string {
	var sb strings.Builder

	sb.WriteString("# MCP Tools Reference\n\n")
	sb.WriteString("Tools available when running calconnect as an MCP server, generated from the tool definitions.\n\n")

	groups := make(map[string][]mcp.Tool)
	for _, tool := range tools {
		group := toolGroup(tool.Name)
		groups[group] = append(groups[group], tool)
	}
	names := make([]string, 0, len(groups))
	for name := range groups {
		names = append(names, name)
	}
	sort.Strings(names)

	sb.WriteString("## Table of Contents\n\n")
	for _, name := range names {
		fmt.Fprintf(&sb, "- [%s](#%s)\n", name, strings.ToLower(strings.ReplaceAll(name, " ", "-")))
	}
	sb.WriteString("\n")

	sb.WriteString("## Acting User\n\n")
	sb.WriteString("Every tool acts for one user, resolved in this order:\n\n")
	sb.WriteString("1. The `X-User-ID` header on the HTTP transport. `user_id` is ignored.\n")
	sb.WriteString("2. The optional `user_id` argument.\n")
	sb.WriteString("3. The user given with `calconnect mcp --user`.\n\n")

	for _, name := range names {
		group := groups[name]
		sort.Slice(group, func(i, j int) bool { return group[i].Name < group[j].Name })

		fmt.Fprintf(&sb, "## %s\n\n", name)
		for _, tool := range group {
			writeToolMarkdown(&sb, tool, !readOnly[tool.Name])
		}
	}
	return sb.String()
}

func toolGroup(name string) string {
	prefix, _, _ := strings.Cut(name, "_")
	switch prefix {
	case "integration":
		return "Integration Tools"
	default:
		return "Other"
	}
}

func writeToolMarkdown(sb *strings.Builder, tool mcp.Tool, write bool) {
	fmt.Fprintf(sb, "### %s\n\n", tool.Name)
	if tool.Description != "" {
		fmt.Fprintf(sb, "%s\n\n", tool.Description)
	}
	if write {
		sb.WriteString("*Write tool, registered only with `--yolo`.*\n\n")
	}

	if len(tool.InputSchema.Properties) == 0 {
		return
	}
	props := make([]string, 0, len(tool.InputSchema.Properties))
	for name := range tool.InputSchema.Properties {
		props = append(props, name)
	}
	sort.Strings(props)

	sb.WriteString("| Argument | Type | Required | Description |\n")
	sb.WriteString("|---|---|---|---|\n")
	for _, name := range props {
		schema, _ := tool.InputSchema.Properties[name].(map[string]any)
		typ, _ := schema["type"].(string)
		if typ == "" {
			typ = "any"
		}
		desc, _ := schema["description"].(string)
		required := "no"
		if slices.Contains(tool.InputSchema.Required, name) {
			required = "yes"
		}
		fmt.Fprintf(sb, "| `%s` | %s | %s | %s |\n", name, typ, required, strings.ReplaceAll(desc, "|", "\\|"))
	}
	sb.WriteString("\n")
}
