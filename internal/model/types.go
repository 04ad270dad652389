package model

import "time"

// TimestampFormat is the layout used in audit entry timestamps.
const TimestampFormat = "2006-01-02T15:04:05.000Z"

// Policy groups the rules extracted from one source document. The identifier
// is immutable; the policy itself is mutated only through rule updates.
type Policy struct {
	PolicyID string   `json:"policy_id"`
	Title    string   `json:"policy_title,omitempty"`
	RuleIDs  []string `json:"rule_ids"`
}

// Rule is one extracted obligation within a policy. A rule flagged ambiguous
// carries a reason and is not executable until a clarification clears the
// flag. Once a task has been generated from it (TaskID set), the rule is
// frozen.
type Rule struct {
	PolicyID        string   `json:"policy_id"`
	RuleID          string   `json:"rule_id"`
	Action          string   `json:"action"`
	Conditions      []string `json:"conditions"`
	ResponsibleRole Role     `json:"responsible_role"`
	Beneficiary     string   `json:"beneficiary,omitempty"`
	Deadline        string   `json:"deadline,omitempty"`
	AmbiguityFlag   bool     `json:"ambiguity_flag"`
	AmbiguityReason string   `json:"ambiguity_reason,omitempty"`
	TaskID          string   `json:"task_id,omitempty"`
}

// Resolved returns true once the ambiguity flag is cleared.
func (r *Rule) Resolved() bool {
	return !r.AmbiguityFlag
}

// Generated returns true once a task has been created from this rule.
func (r *Rule) Generated() bool {
	return r.TaskID != ""
}

// Clone returns a deep copy, so callers can hand out rules without exposing
// store-internal state.
func (r *Rule) Clone() Rule {
	out := *r
	out.Conditions = append([]string(nil), r.Conditions...)
	return out
}

// HasCondition reports whether c is already present on the rule.
func (r *Rule) HasCondition(c string) bool {
	for _, have := range r.Conditions {
		if have == c {
			return true
		}
	}
	return false
}

// ClarificationRequest is the transient human input that resolves an
// ambiguity. It is consumed exactly once per acceptance and never persisted.
type ClarificationRequest struct {
	PolicyID        string   `json:"policy_id"`
	RuleID          string   `json:"rule_id"`
	ResponsibleRole string   `json:"responsible_role"`
	Deadline        string   `json:"deadline,omitempty"`
	Conditions      []string `json:"conditions,omitempty"`
	Beneficiary     string   `json:"beneficiary,omitempty"`
	Action          string   `json:"action,omitempty"`
}

// Task is the executable unit generated 1:1 from a finalized rule. Tasks are
// never deleted; terminal states are retained for audit.
type Task struct {
	TaskID       string     `json:"task_id"`
	PolicyID     string     `json:"policy_id"`
	RuleID       string     `json:"rule_id"`
	Name         string     `json:"task_name"`
	AssignedRole Role       `json:"assigned_role"`
	Status       TaskStatus `json:"status"`
	Deadline     string     `json:"deadline"`
	EscalatedTo  Role       `json:"escalated_to,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// Clone returns a copy. Task has no reference fields today, but callers
// treat store reads as snapshots, so the seam stays explicit.
func (t *Task) Clone() Task {
	return *t
}
