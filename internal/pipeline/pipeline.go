// Package pipeline wires the rule store, clarification engine, task
// generator and task state machine into the operations the transports
// expose. All mutations flow through here so locking and audit stay in one
// place.
package pipeline

import (
	"errors"

	"github.com/policygate/policygate/internal/audit"
	"github.com/policygate/policygate/internal/ingest"
	"github.com/policygate/policygate/internal/locks"
	"github.com/policygate/policygate/internal/model"
	"github.com/policygate/policygate/internal/rules"
	"github.com/policygate/policygate/internal/taskgen"
	"github.com/policygate/policygate/internal/tasks"
)

type Pipeline struct {
	rules   rules.Store
	tasks   tasks.Store
	log     *audit.Log
	engine  *rules.Engine
	gen     *taskgen.Generator
	machine *tasks.Machine
}

func New(rs rules.Store, ts tasks.Store, log *audit.Log) *Pipeline {
	reg := locks.NewKeyed()
	return &Pipeline{
		rules:   rs,
		tasks:   ts,
		log:     log,
		engine:  rules.NewEngine(rs, log, reg),
		gen:     taskgen.NewGenerator(rs, ts, log, reg),
		machine: tasks.NewMachine(ts, log, reg),
	}
}

// IngestResult summarizes an accepted extraction payload.
type IngestResult struct {
	PolicyID       string `json:"policy_id"`
	RuleCount      int    `json:"rule_count"`
	AmbiguousCount int    `json:"ambiguous_count"`
	Duplicate      bool   `json:"duplicate,omitempty"`
}

// IngestPolicy validates and stores an extraction payload. Submitting the
// same payload twice is a no-op reported as a duplicate; submitting a
// different payload under a taken identifier fails.
func (p *Pipeline) IngestPolicy(payload *ingest.Payload) (IngestResult, error) {
	if err := ingest.Validate(payload); err != nil {
		return IngestResult{}, err
	}

	policy, rs := payload.ToModel()
	result := IngestResult{PolicyID: policy.PolicyID, RuleCount: len(rs)}
	for _, r := range rs {
		if !r.Resolved() {
			result.AmbiguousCount++
		}
	}

	if err := p.rules.SavePolicy(policy, rs); err != nil {
		var exists *rules.PolicyExistsError
		if !errors.As(err, &exists) {
			return IngestResult{}, err
		}
		same, cmpErr := p.samePolicy(policy, rs)
		if cmpErr != nil {
			return IngestResult{}, cmpErr
		}
		if !same {
			return IngestResult{}, err
		}
		result.Duplicate = true
		result.AmbiguousCount = 0
		stored, listErr := p.rules.ListRules(policy.PolicyID)
		if listErr != nil {
			return IngestResult{}, listErr
		}
		for _, r := range stored {
			if !r.Resolved() {
				result.AmbiguousCount++
			}
		}
	}
	return result, nil
}

// samePolicy reports whether the stored policy matches the incoming one as
// extracted. Clarified fields and task links are ignored on ambiguous
// rules, so re-submitting a payload after clarification still counts as a
// duplicate rather than a conflict.
func (p *Pipeline) samePolicy(policy model.Policy, rs []model.Rule) (bool, error) {
	stored, err := p.rules.GetPolicy(policy.PolicyID)
	if err != nil {
		return false, err
	}
	if stored.Title != policy.Title || len(stored.RuleIDs) != len(policy.RuleIDs) {
		return false, nil
	}
	for _, r := range rs {
		have, _, err := p.rules.GetRule(policy.PolicyID, r.RuleID)
		if err != nil {
			var notFound *rules.NotFoundError
			if errors.As(err, &notFound) {
				return false, nil
			}
			return false, err
		}
		if !sameExtraction(have, r) {
			return false, nil
		}
	}
	return true, nil
}

// sameExtraction compares a stored rule against a freshly extracted one.
// A rule that was ambiguous on arrival may have been clarified since; only
// the fields the extractor controls are compared in that case.
func sameExtraction(stored, incoming model.Rule) bool {
	if incoming.AmbiguityFlag {
		// The rule arrived ambiguous. If it is still ambiguous the
		// reasons must match; if a clarification resolved it since, the
		// re-submission is still the same payload.
		if stored.AmbiguityFlag {
			return stored.AmbiguityReason == incoming.AmbiguityReason
		}
		return true
	}
	if stored.AmbiguityFlag {
		return false
	}
	if stored.Action != incoming.Action || stored.Deadline != incoming.Deadline {
		return false
	}
	if !stored.ResponsibleRole.Equal(incoming.ResponsibleRole) {
		return false
	}
	if stored.Beneficiary != incoming.Beneficiary {
		return false
	}
	if len(stored.Conditions) < len(incoming.Conditions) {
		return false
	}
	for _, c := range incoming.Conditions {
		if !stored.HasCondition(c) {
			return false
		}
	}
	return true
}

// PendingClarifications lists ambiguous rules, for one policy or all.
func (p *Pipeline) PendingClarifications(policyID string) ([]rules.PendingRule, error) {
	return rules.Pending(p.rules, policyID)
}

// ApplyClarification merges a clarification into its rule.
func (p *Pipeline) ApplyClarification(req model.ClarificationRequest) (model.Rule, error) {
	return p.engine.Apply(req)
}

// FinalizePolicy generates the policy's tasks once every rule is resolved.
func (p *Pipeline) FinalizePolicy(policyID string) ([]model.Task, error) {
	return p.gen.Generate(policyID)
}

// AdvanceTask moves a task to target on behalf of acting. Both arrive as
// client-supplied strings; the role is canonicalized, the status must match
// exactly.
func (p *Pipeline) AdvanceTask(taskID, target, acting string) (model.Task, error) {
	return p.machine.Transition(taskID, model.TaskStatus(target), canonicalRole(acting))
}

// EscalateTask hands a task to the next role up the chain.
func (p *Pipeline) EscalateTask(taskID, acting string) (model.Task, error) {
	return p.machine.Escalate(taskID, canonicalRole(acting))
}

// canonicalRole maps a client-supplied role string onto its canonical form.
// Unknown strings pass through unchanged so the state machine reports them.
func canonicalRole(s string) model.Role {
	if role, ok := model.ParseRole(s); ok {
		return role
	}
	return model.Role(s)
}

// ListTasks returns tasks visible to role: everything for Admin or an empty
// role, otherwise the tasks assigned to it. Unknown roles see nothing.
func (p *Pipeline) ListTasks(role string) ([]model.Task, error) {
	all, err := p.tasks.ListTasks()
	if err != nil {
		return nil, err
	}
	if role == "" {
		return all, nil
	}
	parsed, ok := model.ParseRole(role)
	if !ok {
		return nil, &tasks.InvalidInputError{Field: "role", Value: role, Reason: "unknown role"}
	}
	if parsed == model.RoleAdmin {
		return all, nil
	}
	out := all[:0]
	for _, t := range all {
		if parsed.Equal(t.AssignedRole) {
			out = append(out, t)
		}
	}
	return out, nil
}

// GetTask returns one task.
func (p *Pipeline) GetTask(taskID string) (model.Task, error) {
	t, _, err := p.tasks.GetTask(taskID)
	return t, err
}

// AuditTrail returns audit entries newest first.
func (p *Pipeline) AuditTrail(f audit.Filter) []audit.Entry {
	return p.log.Query(f)
}

// TaskHistory reconstructs one task's lifecycle from the audit log.
func (p *Pipeline) TaskHistory(taskID string) *audit.History {
	return audit.TaskHistory(p.log, taskID)
}
