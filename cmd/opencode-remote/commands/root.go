// Package commands provides the CLI commands for opencode-remote.
package commands

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/opencode-ai/opencode-remote/internal/config"
	"github.com/opencode-ai/opencode-remote/internal/logging"
)

var (
	// Version information set at build time
	Version   = "0.1.0"
	BuildTime = "dev"
)

// Global flags
var (
	logLevel   string
	logToFile  bool
	prettyLogs bool
)

var rootCmd = &cobra.Command{
	Use:   "opencode-remote",
	Short: "Remote control for OpenCode servers",
	Long: `opencode-remote keeps live connections to one or more OpenCode
servers, mirrors their sessions locally and raises notifications when an
agent needs attention.

Run 'opencode-remote serve' to start the connection engine with its local
control API, and 'opencode-remote servers add' to register servers.`,
	Version: Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// .env is optional, used for credentials in {env:VAR} references.
		_ = godotenv.Load()

		paths := config.GetPaths()
		logging.Init(logging.Config{
			Level:     logging.ParseLevel(logLevel),
			Pretty:    prettyLogs,
			LogToFile: logToFile,
			LogDir:    paths.LogDir(),
		})
		return nil
	},
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "INFO", "Log level (DEBUG|INFO|WARN|ERROR)")
	rootCmd.PersistentFlags().BoolVar(&logToFile, "log-to-file", false, "Also write logs to the state directory")
	rootCmd.PersistentFlags().BoolVar(&prettyLogs, "pretty", false, "Human-readable console logs")

	rootCmd.SetVersionTemplate(fmt.Sprintf("opencode-remote %s (%s)\n", Version, BuildTime))

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(serversCmd)
	rootCmd.AddCommand(connectCmd)
	rootCmd.AddCommand(disconnectCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("opencode-remote %s (%s)\n", Version, BuildTime)
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
