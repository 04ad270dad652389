package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	pendingPolicy string
	pendingJSON   bool
)

func init() {
	rootCmd.AddCommand(pendingCmd)
	pendingCmd.Flags().StringVar(&pendingPolicy, "policy", "", "Limit to one policy")
	pendingCmd.Flags().BoolVar(&pendingJSON, "json", false, "Emit JSON instead of text")
}

var pendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "List rules awaiting clarification",
	Long:  "Shows every ambiguous rule with the fields a clarification must supply.",
	RunE:  runPending,
}

func runPending(cmd *cobra.Command, args []string) error {
	pipe, cleanup, err := openPipeline()
	if err != nil {
		return err
	}
	defer cleanup()

	rs, err := pipe.PendingClarifications(pendingPolicy)
	if err != nil {
		fail(err)
	}

	if pendingJSON {
		out, _ := json.MarshalIndent(rs, "", "  ")
		fmt.Println(string(out))
		return nil
	}

	if len(rs) == 0 {
		fmt.Println("No rules pending clarification")
		return nil
	}
	for _, r := range rs {
		fmt.Printf("%s/%s: %s\n", r.PolicyID, r.RuleID, r.AmbiguityReason)
		for _, f := range r.FieldsNeedingClarification {
			fmt.Fprintf(os.Stdout, "  needs %s\n", f)
		}
	}
	return nil
}
