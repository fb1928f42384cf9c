package cli

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/me/wesconsole/internal/logging"
)

var (
	flagServer    string
	flagDebug     bool
	flagLogLevel  string
	flagLogFormat string

	logger *slog.Logger
	client *Client
)

// defaultServer returns the default server URL, checking WESCONSOLE_SERVER env var first.
func defaultServer() string {
	if s := os.Getenv("WESCONSOLE_SERVER"); s != "" {
		return s
	}
	return "http://localhost:8080"
}

// NewRootCmd creates the root cobra command for the wesconsole CLI.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "wesconsole",
		Short: "Manage GA4GH WES services, workflows and runs",
		Long:  "wesconsole talks to a console server that tracks WES services, their workflows and the runs submitted to them.",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if flagDebug {
				flagLogLevel = "debug"
			}
			logger = logging.NewLoggerWithWriter(logging.ParseLevel(flagLogLevel), flagLogFormat, cmd.ErrOrStderr())
			client = NewClient(flagServer, logger)
		},
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&flagServer, "server", defaultServer(), "Console server URL (or WESCONSOLE_SERVER env)")
	root.PersistentFlags().BoolVar(&flagDebug, "debug", false, "Enable debug logging")
	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&flagLogFormat, "log-format", "text", "Log format (text, json)")

	root.AddCommand(
		newServiceCmd(),
		newWorkflowCmd(),
		newRunCmd(),
	)

	return root
}
