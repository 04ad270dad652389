package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var escalateAs string

func init() {
	rootCmd.AddCommand(escalateCmd)
	escalateCmd.Flags().StringVar(&escalateAs, "as", "", "Acting role (required)")
	escalateCmd.MarkFlagRequired("as")
}

var escalateCmd = &cobra.Command{
	Use:   "escalate <task> --as <role>",
	Short: "Escalate an in-progress task one role up",
	Long: "Hands the task to the next role in the chain (Clerk -> Officer -> Admin)\n" +
		"and reassigns it. Admin-held tasks cannot escalate further.",
	Args: cobra.ExactArgs(1),
	RunE: runEscalate,
}

func runEscalate(cmd *cobra.Command, args []string) error {
	pipe, cleanup, err := openPipeline()
	if err != nil {
		return err
	}
	defer cleanup()

	task, err := pipe.EscalateTask(args[0], escalateAs)
	if err != nil {
		fail(err)
	}

	fmt.Printf("Task %s escalated to %s\n", task.TaskID, task.EscalatedTo)
	return nil
}
