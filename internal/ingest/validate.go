package ingest

import (
	"fmt"
	"strings"

	"github.com/policygate/policygate/internal/model"
)

// ValidationError collects all validation failures for a payload.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("payload validation failed: %s", strings.Join(e.Errors, "; "))
}

func (e *ValidationError) Kind() string { return "invalid_input" }

// add appends an error message.
func (e *ValidationError) add(msg string) {
	e.Errors = append(e.Errors, msg)
}

// Validate checks a payload for completeness and consistency.
// Returns nil if valid, or a *ValidationError listing all problems.
func Validate(p *Payload) error {
	ve := &ValidationError{}

	if strings.TrimSpace(p.PolicyID) == "" {
		ve.add("policy_id is required")
	}

	if len(p.Rules) == 0 {
		ve.add("at least one rule is required")
	}

	seen := make(map[string]bool, len(p.Rules))
	for i, r := range p.Rules {
		prefix := fmt.Sprintf("rules[%d]", i)

		if strings.TrimSpace(r.RuleID) == "" {
			ve.add(fmt.Sprintf("%s: rule_id is required", prefix))
		} else if seen[r.RuleID] {
			ve.add(fmt.Sprintf("%s: duplicate rule_id %q", prefix, r.RuleID))
		} else {
			seen[r.RuleID] = true
		}

		if strings.TrimSpace(r.Action) == "" {
			ve.add(fmt.Sprintf("%s: action is required", prefix))
		}

		// An ambiguous rule must say why; a resolved one must name a
		// resolvable role.
		if r.AmbiguityFlag {
			if strings.TrimSpace(r.AmbiguityReason) == "" {
				ve.add(fmt.Sprintf("%s: ambiguity_reason is required when ambiguity_flag is set", prefix))
			}
		} else {
			if _, ok := model.ParseRole(r.ResponsibleRole); !ok {
				ve.add(fmt.Sprintf("%s: responsible_role %q is not one of Clerk, Officer, Admin", prefix, r.ResponsibleRole))
			}
		}
	}

	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}
