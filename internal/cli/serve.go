package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/policygate/policygate/internal/daemon"
	gatemcp "github.com/policygate/policygate/internal/mcp"
)

var serveIntake bool

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().BoolVar(&serveIntake, "intake", false, "Also watch the inbox directory for payload files")
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start MCP tool server for agent integration",
	Long: "Runs policygate as an MCP (Model Context Protocol) server over stdio.\n" +
		"Exposes the pipeline as tools: ingest, pending, clarify, finalize,\n" +
		"tasks, advance, escalate, audit, stats. With --intake, also watches\n" +
		"the configured inbox directory and ingests dropped payload files.",
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	pipe, cleanup, err := openPipeline()
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		fmt.Fprintln(os.Stderr, "\nShutting down...")
		cancel()
	}()

	if serveIntake {
		intake := daemon.NewIntake(cfg.Intake, pipe)
		go func() {
			if err := intake.Run(ctx); err != nil && ctx.Err() == nil {
				fmt.Fprintf(os.Stderr, "intake watcher stopped: %v\n", err)
			}
		}()
		fmt.Fprintf(os.Stderr, "intake watching %s\n", cfg.Intake.InboxDir)
	}

	fmt.Fprintln(os.Stderr, "policygate MCP server running on stdio")
	return gatemcp.New(pipe).Run(ctx)
}
