package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(statsCmd)
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarize policies, rules and tasks",
	RunE:  runStats,
}

func runStats(cmd *cobra.Command, args []string) error {
	pipe, cleanup, err := openPipeline()
	if err != nil {
		return err
	}
	defer cleanup()

	s, err := pipe.Stats()
	if err != nil {
		fail(err)
	}

	out, _ := json.MarshalIndent(s, "", "  ")
	fmt.Println(string(out))
	return nil
}
