package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/policygate/policygate/internal/model"
)

var (
	clarifyPolicy      string
	clarifyRule        string
	clarifyRole        string
	clarifyDeadline    string
	clarifyConditions  []string
	clarifyBeneficiary string
	clarifyAction      string
)

func init() {
	rootCmd.AddCommand(clarifyCmd)
	clarifyCmd.Flags().StringVar(&clarifyPolicy, "policy", "", "Policy identifier (required)")
	clarifyCmd.Flags().StringVar(&clarifyRule, "rule", "", "Rule identifier (required)")
	clarifyCmd.Flags().StringVar(&clarifyRole, "role", "", "Responsible role (Clerk, Officer or Admin, required)")
	clarifyCmd.Flags().StringVar(&clarifyDeadline, "deadline", "", "Deadline to set")
	clarifyCmd.Flags().StringArrayVar(&clarifyConditions, "condition", nil, "Condition to add (repeatable)")
	clarifyCmd.Flags().StringVar(&clarifyBeneficiary, "beneficiary", "", "Beneficiary to set")
	clarifyCmd.Flags().StringVar(&clarifyAction, "action", "", "Action text to set")
	clarifyCmd.MarkFlagRequired("policy")
	clarifyCmd.MarkFlagRequired("rule")
	clarifyCmd.MarkFlagRequired("role")
}

var clarifyCmd = &cobra.Command{
	Use:   "clarify --policy <id> --rule <id> [fields]",
	Short: "Resolve an ambiguous rule",
	Long: "Merges the supplied fields into the rule and clears its ambiguity flag.\n" +
		"Supplied scalars overwrite, conditions append, omitted fields are kept.\n" +
		"A rule that already produced a task is frozen and cannot be clarified.",
	RunE: runClarify,
}

func runClarify(cmd *cobra.Command, args []string) error {
	pipe, cleanup, err := openPipeline()
	if err != nil {
		return err
	}
	defer cleanup()

	rule, err := pipe.ApplyClarification(model.ClarificationRequest{
		PolicyID:        clarifyPolicy,
		RuleID:          clarifyRule,
		ResponsibleRole: clarifyRole,
		Deadline:        clarifyDeadline,
		Conditions:      clarifyConditions,
		Beneficiary:     clarifyBeneficiary,
		Action:          clarifyAction,
	})
	if err != nil {
		fail(err)
	}

	fmt.Printf("Rule %s/%s resolved: role=%s deadline=%s\n",
		rule.PolicyID, rule.RuleID, rule.ResponsibleRole, rule.Deadline)
	return nil
}
