package cmd

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/teemow/calconnect/internal/logging"
)

// rootCmd represents the base command for the calconnect application
var rootCmd = &cobra.Command{
	Use:   "calconnect",
	Short: "Connects Google, Zoom and Microsoft accounts for calendar scheduling",
	Long: `calconnect runs the OAuth connection flows for Google Calendar and Meet,
Zoom, Outlook Calendar and Microsoft Teams, stores the resulting tokens and
keeps them fresh, and lists the connected calendars.

It can run as:
  - An HTTP API consumed by the scheduling frontend (serve)
  - An MCP (Model Context Protocol) server for AI assistants (serve, mcp)`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger = logging.New(os.Stderr, logFormat, debugMode)
		slog.SetDefault(logger)
	},
}

var (
	// version will be set by main
	version = "dev"

	debugMode bool
	logFormat string
	logger    = slog.Default()
)

// SetVersion sets the version for the root command
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

// Execute is the main entry point for the CLI application
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "calconnect version %s\n" .Version}}`)

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "json", "Log format: json or text")

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newMCPCmd())
	rootCmd.AddCommand(newMigrateCmd())
	rootCmd.AddCommand(newKeygenCmd())
	rootCmd.AddCommand(newGenerateDocsCmd())
	rootCmd.AddCommand(newVersionCmd())
}
