package rules

import (
	"errors"
	"strings"

	"github.com/policygate/policygate/internal/audit"
	"github.com/policygate/policygate/internal/locks"
	"github.com/policygate/policygate/internal/model"
)

// casRetries bounds re-validation when a rule moves between our read and our
// write. The per-rule lock makes this rare; external writers can still race.
const casRetries = 3

// Engine applies clarifications to ambiguous rules. Merging follows
// overwrite-if-supplied semantics for scalar fields and union-append for
// conditions. An accepted clarification clears the ambiguity flag and leaves
// a CLARIFIED entry in the audit log.
type Engine struct {
	store Store
	log   *audit.Log
	locks *locks.Keyed
}

func NewEngine(store Store, log *audit.Log, reg *locks.Keyed) *Engine {
	return &Engine{store: store, log: log, locks: reg}
}

func ruleKey(policyID, ruleID string) string {
	return "rule:" + policyID + "/" + ruleID
}

// Apply merges req into its target rule and returns the resolved rule.
//
// A clarification against an already-resolved rule is accepted as a no-op
// when it restates the stored values, and rejected with AlreadyResolvedError
// when it would change them. A rule that has produced a task is frozen.
func (e *Engine) Apply(req model.ClarificationRequest) (model.Rule, error) {
	if err := validateRequest(req); err != nil {
		return model.Rule{}, err
	}

	key := ruleKey(req.PolicyID, req.RuleID)
	e.locks.Lock(key)
	defer e.locks.Unlock(key)

	var lastErr error
	for attempt := 0; attempt < casRetries; attempt++ {
		rule, version, err := e.store.GetRule(req.PolicyID, req.RuleID)
		if err != nil {
			return model.Rule{}, err
		}
		if rule.Generated() {
			return model.Rule{}, &RuleFrozenError{PolicyID: rule.PolicyID, RuleID: rule.RuleID, TaskID: rule.TaskID}
		}
		if rule.Resolved() {
			if restatesRule(req, rule) {
				return rule, nil
			}
			return model.Rule{}, &AlreadyResolvedError{PolicyID: rule.PolicyID, RuleID: rule.RuleID, Stored: rule, Request: req}
		}

		before := rule.Clone()
		merged := merge(req, rule)

		if err := e.store.CompareAndSwapRule(merged, version); err != nil {
			var conflict *VersionConflictError
			if errors.As(err, &conflict) {
				lastErr = err
				continue
			}
			return model.Rule{}, err
		}

		entry := audit.Entry{
			PolicyID: merged.PolicyID,
			RuleID:   merged.RuleID,
			Action:   audit.ActionClarified,
			Role:     string(performer(req, merged)),
		}
		if err := e.log.Record(entry); err != nil {
			// The rule change is not observable without its audit entry.
			e.store.CompareAndSwapRule(before, version+1)
			return model.Rule{}, &StorageError{Op: "audit append", Err: err}
		}
		return merged, nil
	}
	return model.Rule{}, lastErr
}

func validateRequest(req model.ClarificationRequest) error {
	if strings.TrimSpace(req.PolicyID) == "" {
		return &InvalidInputError{Field: "policy_id", Value: req.PolicyID, Reason: "must not be empty"}
	}
	if strings.TrimSpace(req.RuleID) == "" {
		return &InvalidInputError{Field: "rule_id", Value: req.RuleID, Reason: "must not be empty"}
	}
	if strings.TrimSpace(req.ResponsibleRole) == "" {
		return &InvalidInputError{Field: "responsible_role", Value: req.ResponsibleRole, Reason: "must not be empty"}
	}
	if _, ok := model.ParseRole(req.ResponsibleRole); !ok {
		return &InvalidInputError{Field: "responsible_role", Value: req.ResponsibleRole, Reason: "unknown role"}
	}
	return nil
}

// merge applies req on top of rule. The responsible role is always set;
// other scalar fields overwrite only when supplied; conditions not yet
// present are appended in request order.
func merge(req model.ClarificationRequest, rule model.Rule) model.Rule {
	out := rule.Clone()
	role, _ := model.ParseRole(req.ResponsibleRole)
	out.ResponsibleRole = role
	if req.Deadline != "" {
		out.Deadline = req.Deadline
	}
	if req.Beneficiary != "" {
		out.Beneficiary = req.Beneficiary
	}
	if req.Action != "" {
		out.Action = req.Action
	}
	for _, c := range req.Conditions {
		if !out.HasCondition(c) {
			out.Conditions = append(out.Conditions, c)
		}
	}
	out.AmbiguityFlag = false
	out.AmbiguityReason = ""
	return out
}

// restatesRule reports whether req carries nothing the resolved rule does
// not already hold.
func restatesRule(req model.ClarificationRequest, rule model.Rule) bool {
	if role, _ := model.ParseRole(req.ResponsibleRole); !role.Equal(rule.ResponsibleRole) {
		return false
	}
	if req.Deadline != "" && req.Deadline != rule.Deadline {
		return false
	}
	if req.Beneficiary != "" && req.Beneficiary != rule.Beneficiary {
		return false
	}
	if req.Action != "" && req.Action != rule.Action {
		return false
	}
	for _, c := range req.Conditions {
		if !rule.HasCondition(c) {
			return false
		}
	}
	return true
}

// performer is the role recorded on the CLARIFIED audit entry, the role the
// clarifier supplied for the rule.
func performer(req model.ClarificationRequest, rule model.Rule) model.Role {
	if role, ok := model.ParseRole(req.ResponsibleRole); ok {
		return role
	}
	return rule.ResponsibleRole
}
