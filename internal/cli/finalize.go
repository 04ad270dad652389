package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(finalizeCmd)
}

var finalizeCmd = &cobra.Command{
	Use:   "finalize <policy>",
	Short: "Generate tasks from a fully resolved policy",
	Long: "Creates one task per rule, assigned to each rule's responsible role.\n" +
		"Refuses entirely if any rule is still ambiguous. Re-running is a no-op\n" +
		"for rules that already have tasks.",
	Args: cobra.ExactArgs(1),
	RunE: runFinalize,
}

func runFinalize(cmd *cobra.Command, args []string) error {
	pipe, cleanup, err := openPipeline()
	if err != nil {
		return err
	}
	defer cleanup()

	tasks, err := pipe.FinalizePolicy(args[0])
	if err != nil {
		fail(err)
	}

	fmt.Printf("Policy %s finalized: %d tasks\n", args[0], len(tasks))
	for _, t := range tasks {
		fmt.Printf("  %s  %s  [%s] %s\n", t.TaskID, t.RuleID, t.AssignedRole, t.Status)
	}
	return nil
}
