package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	tasksRole string
	tasksJSON bool
)

func init() {
	rootCmd.AddCommand(tasksCmd)
	tasksCmd.Flags().StringVar(&tasksRole, "role", "", "Filter by assigned role (Admin sees everything)")
	tasksCmd.Flags().BoolVar(&tasksJSON, "json", false, "Emit JSON instead of text")
}

var tasksCmd = &cobra.Command{
	Use:   "tasks [task-id]",
	Short: "List tasks or show one",
	Long:  "Lists tasks in creation order, optionally filtered to one role's queue.\nWith a task identifier, prints that task in full.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runTasks,
}

func runTasks(cmd *cobra.Command, args []string) error {
	pipe, cleanup, err := openPipeline()
	if err != nil {
		return err
	}
	defer cleanup()

	if len(args) == 1 {
		task, err := pipe.GetTask(args[0])
		if err != nil {
			fail(err)
		}
		out, _ := json.MarshalIndent(task, "", "  ")
		fmt.Println(string(out))
		return nil
	}

	ts, err := pipe.ListTasks(tasksRole)
	if err != nil {
		fail(err)
	}

	if tasksJSON {
		out, _ := json.MarshalIndent(ts, "", "  ")
		fmt.Println(string(out))
		return nil
	}

	if len(ts) == 0 {
		fmt.Println("No tasks")
		return nil
	}
	for _, t := range ts {
		line := fmt.Sprintf("%s  %-11s  [%s] %s", t.TaskID, t.Status, t.AssignedRole, t.Name)
		if t.Deadline != "" {
			line += "  due " + t.Deadline
		}
		fmt.Println(line)
	}
	return nil
}
