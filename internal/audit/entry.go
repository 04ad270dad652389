package audit

import (
	"fmt"

	"github.com/policygate/policygate/internal/model"
)

// Audit action vocabulary. Task history reconstruction depends on these
// exact strings, so they are built through the helpers below and never
// hand-formatted elsewhere.
const (
	ActionCreated   = "CREATED"
	ActionClarified = "CLARIFIED"
)

// RoleSystem marks entries produced by the pipeline itself rather than a
// role-acting client.
const RoleSystem = "SYSTEM"

// StatusUpdateAction renders the action string for a status transition.
func StatusUpdateAction(from, to model.TaskStatus) string {
	return fmt.Sprintf("STATUS_UPDATE: %s -> %s", from, to)
}

// EscalatedAction renders the action string for an escalation.
func EscalatedAction(to model.Role) string {
	return fmt.Sprintf("ESCALATED to %s", to)
}

// Entry is one line in the hash-chained JSONL audit log. Task events carry a
// task identifier; clarification events carry the policy/rule pair instead.
// All fields are plain values (no map[string]any) to guarantee deterministic
// json.Marshal field order for reproducible hashing.
type Entry struct {
	Timestamp string `json:"ts"`
	TaskID    string `json:"task_id,omitempty"`
	PolicyID  string `json:"policy_id,omitempty"`
	RuleID    string `json:"rule_id,omitempty"`
	Action    string `json:"action"`
	Role      string `json:"role"`
	PrevHash  string `json:"prev_hash"`
}
