// EdgeLink Core - backend for edge energy controllers
//
// This is the main entry point for the EdgeLink Core application. It
// accepts WebSocket connections from browsers and edge controllers,
// authenticates them, streams live channel values and applies
// configuration and power commands.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

// configEnv overrides the default configuration path.
const configEnv = "EDGELINK_CONFIG"

var cfgFile string

func main() {
	// Cancel on Ctrl+C and SIGTERM so every command shuts down cleanly.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		cancel()
		os.Exit(1)
	}
}

// newRootCmd builds the command tree. Tests build their own tree per case.
func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "edgelink",
		Short:         "EdgeLink Core - WebSocket backend for edge energy controllers",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "", fmt.Sprintf("config file (default $%s or %s)", configEnv, defaultConfigPath))

	root.AddCommand(
		newServeCmd(),
		newVersionCmd(),
		newUserCmd(),
		newEdgeCmd(),
	)
	return root
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the WebSocket server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), getConfigPath())
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "edgelink %s (commit %s, built %s)\n", version, commit, date)
		},
	}
}

// getConfigPath returns the configuration file path: the --config flag,
// then EDGELINK_CONFIG, then the default.
func getConfigPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	if path := os.Getenv(configEnv); path != "" {
		return path
	}
	return defaultConfigPath
}
