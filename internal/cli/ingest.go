package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/policygate/policygate/internal/ingest"
)

func init() {
	rootCmd.AddCommand(ingestCmd)
}

var ingestCmd = &cobra.Command{
	Use:   "ingest <payload.json>",
	Short: "Load an extracted policy payload",
	Long: "Validates a policy extraction payload and stores its rules verbatim,\n" +
		"ambiguity flags included. Re-submitting an identical payload is a no-op;\n" +
		"a payload that conflicts with stored content is rejected.",
	Args: cobra.ExactArgs(1),
	RunE: runIngest,
}

func runIngest(cmd *cobra.Command, args []string) error {
	payload, err := ingest.ReadPayload(args[0])
	if err != nil {
		fail(err)
	}

	pipe, cleanup, err := openPipeline()
	if err != nil {
		return err
	}
	defer cleanup()

	res, err := pipe.IngestPolicy(payload)
	if err != nil {
		fail(err)
	}

	if res.Duplicate {
		fmt.Printf("Policy %s already ingested (identical payload, no-op)\n", res.PolicyID)
	} else {
		fmt.Printf("Ingested policy %s: %d rules\n", res.PolicyID, res.RuleCount)
	}
	if res.AmbiguousCount > 0 {
		fmt.Printf("%d rules need clarification before tasks can be generated\n", res.AmbiguousCount)
	}
	return nil
}
