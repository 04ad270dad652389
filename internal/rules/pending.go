package rules

import "github.com/policygate/policygate/internal/model"

// PendingRule is an ambiguous rule annotated with the fields a clarifier
// most likely has to supply. The hints are derived from what is missing or
// unusable on the rule itself; the free-text reason stays authoritative.
type PendingRule struct {
	model.Rule
	FieldsNeedingClarification []string `json:"fields_needing_clarification"`
}

// Pending lists the ambiguous rules of one policy, or of every policy when
// policyID is empty. Results follow store order: policies by identifier,
// rules by identifier within each.
func Pending(s Store, policyID string) ([]PendingRule, error) {
	var ids []string
	if policyID != "" {
		ids = []string{policyID}
	} else {
		policies, err := s.ListPolicies()
		if err != nil {
			return nil, err
		}
		for _, p := range policies {
			ids = append(ids, p.PolicyID)
		}
	}

	var out []PendingRule
	for _, id := range ids {
		rs, err := s.ListRules(id)
		if err != nil {
			return nil, err
		}
		for _, r := range rs {
			if r.Resolved() {
				continue
			}
			out = append(out, PendingRule{
				Rule:                       r,
				FieldsNeedingClarification: missingFields(r),
			})
		}
	}
	return out, nil
}

func missingFields(r model.Rule) []string {
	var fields []string
	if !r.ResponsibleRole.Valid() {
		fields = append(fields, "responsible_role")
	}
	if r.Action == "" {
		fields = append(fields, "action")
	}
	if r.Deadline == "" {
		fields = append(fields, "deadline")
	}
	if len(r.Conditions) == 0 {
		fields = append(fields, "conditions")
	}
	return fields
}
