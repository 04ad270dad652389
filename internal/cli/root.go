// Package cli implements the policygate command tree.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/policygate/policygate/internal/audit"
	"github.com/policygate/policygate/internal/config"
	"github.com/policygate/policygate/internal/pipeline"
	"github.com/policygate/policygate/internal/rules"
	"github.com/policygate/policygate/internal/storage"
	"github.com/policygate/policygate/internal/tasks"
)

var cfgPath string

var rootCmd = &cobra.Command{
	Use:   "policygate",
	Short: "Policy-to-task pipeline with clarification gating",
	Long: "Turns extracted policy rules into tracked, role-assigned tasks.\n" +
		"No rule reaches execution while still ambiguous: clarifications resolve\n" +
		"ambiguity, finalization generates tasks, and every mutation lands in a\n" +
		"hash-chained audit log.",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "Path to config YAML (default ~/.policygate/config.yaml)")
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// openPipeline builds the pipeline from configuration. The returned cleanup
// closes the store and audit log.
func openPipeline() (*pipeline.Pipeline, func(), error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, nil, err
	}

	log, err := audit.Open(cfg.AuditLog)
	if err != nil {
		return nil, nil, fmt.Errorf("open audit log: %w", err)
	}

	switch cfg.Storage.Backend {
	case "sqlite":
		store, err := storage.Open(cfg.Storage.Path)
		if err != nil {
			log.Close()
			return nil, nil, fmt.Errorf("open store: %w", err)
		}
		cleanup := func() {
			store.Close()
			log.Close()
		}
		return pipeline.New(store, store, log), cleanup, nil
	default:
		cleanup := func() { log.Close() }
		return pipeline.New(rules.NewMemoryStore(), tasks.NewMemoryStore(), log), cleanup, nil
	}
}

// loadConfig exposes the resolved configuration to commands that need
// paths rather than a pipeline.
func loadConfig() (*config.Config, error) {
	return config.Load(cfgPath)
}

// fail prints a kind-tagged error and exits non-zero, so scripts can branch
// on the kind without parsing prose.
func fail(err error) {
	fmt.Fprintf(os.Stderr, "error (%s): %v\n", pipeline.ErrKind(err), err)
	os.Exit(1)
}
