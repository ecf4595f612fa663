package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ironsheep/image-match-mcp/internal/server"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var flags globalFlags

	root := &cobra.Command{
		Use:   "image-mcp",
		Short: "MCP server that finds template images on screen",
		Long: `image-mcp locates small template images inside screenshots.

Without a subcommand it serves the MCP protocol over stdin/stdout;
configure it in your MCP client (e.g., Claude Desktop). The find and
wait subcommands run the same searches from a shell.

Environment variables:
  IMAGE_MCP_CONFIG=<path>      Configuration file
  IMAGE_MCP_LOG_LEVEL=debug    Enable debug logging
  IMAGE_MCP_DEBUG_DIR=<dir>    Write annotated images of every search`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, &flags)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&flags.configPath, "config", "c", "", "path to YAML configuration file")
	pf.StringVar(&flags.logLevel, "log-level", "", "log level: debug, info, warn, error")
	pf.StringVar(&flags.logFormat, "log-format", "", "log format: console, text, json")

	root.AddCommand(
		newServeCmd(&flags),
		newFindCmd(&flags),
		newWaitCmd(&flags),
		newTemplatesCmd(&flags),
		newVersionCmd(),
	)
	return root
}

func newServeCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve MCP over stdin/stdout (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, flags)
		},
	}
}

func runServe(cmd *cobra.Command, flags *globalFlags) error {
	srv, logger, err := flags.server()
	if err != nil {
		return err
	}
	server.Version = Version

	logger.Debug("image-mcp starting", "version", Version, "build_time", BuildTime, "commit", GitCommit)
	if err := srv.Run(cmd.Context()); err != nil && cmd.Context().Err() == nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "image-mcp %s\n", Version)
			fmt.Fprintf(out, "  Build time: %s\n", BuildTime)
			fmt.Fprintf(out, "  Git commit: %s\n", GitCommit)
		},
	}
}
