package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	advanceTo string
	advanceAs string
)

func init() {
	rootCmd.AddCommand(advanceCmd)
	advanceCmd.Flags().StringVar(&advanceTo, "to", "", "Target status (required)")
	advanceCmd.Flags().StringVar(&advanceAs, "as", "", "Acting role (required)")
	advanceCmd.MarkFlagRequired("to")
	advanceCmd.MarkFlagRequired("as")
}

var advanceCmd = &cobra.Command{
	Use:   "advance <task> --to <status> --as <role>",
	Short: "Move a task through its lifecycle",
	Long: "Applies one status transition. Only the assigned role may act, and\n" +
		"only transitions allowed by the lifecycle table are accepted:\n" +
		"CREATED -> ASSIGNED -> IN_PROGRESS -> COMPLETED or ESCALATED.",
	Args: cobra.ExactArgs(1),
	RunE: runAdvance,
}

func runAdvance(cmd *cobra.Command, args []string) error {
	pipe, cleanup, err := openPipeline()
	if err != nil {
		return err
	}
	defer cleanup()

	task, err := pipe.AdvanceTask(args[0], advanceTo, advanceAs)
	if err != nil {
		fail(err)
	}

	fmt.Printf("Task %s is now %s\n", task.TaskID, task.Status)
	return nil
}
