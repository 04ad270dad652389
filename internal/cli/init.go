package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/policygate/policygate/internal/config"
)

func init() {
	rootCmd.AddCommand(initCmd)
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a commented config scaffold",
	Long:  "Writes a starter config.yaml with defaults and inline documentation.\nRefuses to overwrite an existing file.",
	RunE:  runInit,
}

func runInit(cmd *cobra.Command, args []string) error {
	path := cfgPath
	if path == "" {
		path = filepath.Join(config.ExpandHome("~/.policygate"), "config.yaml")
	}
	if err := config.WriteScaffold(path); err != nil {
		return err
	}
	fmt.Printf("Wrote %s\n", path)
	return nil
}
