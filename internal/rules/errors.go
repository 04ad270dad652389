package rules

import (
	"fmt"

	"github.com/policygate/policygate/internal/model"
)

// NotFoundError is returned when a policy or rule lookup misses.
type NotFoundError struct {
	Entity string // "policy" or "rule"
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Entity, e.ID)
}

func (e *NotFoundError) Kind() string { return "not_found" }

// PolicyExistsError is returned when ingesting a policy identifier that is
// already stored with different content.
type PolicyExistsError struct {
	PolicyID string
}

func (e *PolicyExistsError) Error() string {
	return fmt.Sprintf("policy %q already exists with different content", e.PolicyID)
}

func (e *PolicyExistsError) Kind() string { return "policy_exists" }

// AlreadyResolvedError is returned when a clarification would change a rule
// whose ambiguity flag is already cleared. Re-sending the same values is
// accepted as a no-op; changing them is not. Both sides are carried so the
// caller can see the stored decision it conflicted with.
type AlreadyResolvedError struct {
	PolicyID string
	RuleID   string
	Stored   model.Rule
	Request  model.ClarificationRequest
}

func (e *AlreadyResolvedError) Error() string {
	return fmt.Sprintf("rule %q in policy %q is already resolved (role %s, deadline %q); conflicting clarification rejected",
		e.RuleID, e.PolicyID, e.Stored.ResponsibleRole, e.Stored.Deadline)
}

func (e *AlreadyResolvedError) Kind() string { return "already_resolved_conflict" }

// RuleFrozenError is returned when a clarification targets a rule that has
// already produced a task.
type RuleFrozenError struct {
	PolicyID string
	RuleID   string
	TaskID   string
}

func (e *RuleFrozenError) Error() string {
	return fmt.Sprintf("rule %q in policy %q is frozen by task %s", e.RuleID, e.PolicyID, e.TaskID)
}

func (e *RuleFrozenError) Kind() string { return "rule_frozen" }

// InvalidInputError reports a malformed field on a request.
type InvalidInputError struct {
	Field  string
	Value  string
	Reason string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Reason)
}

func (e *InvalidInputError) Kind() string { return "invalid_input" }

// VersionConflictError is returned by CompareAndSwapRule when the stored
// version moved since the caller's read.
type VersionConflictError struct {
	PolicyID string
	RuleID   string
}

func (e *VersionConflictError) Error() string {
	return fmt.Sprintf("rule %q in policy %q was modified concurrently", e.RuleID, e.PolicyID)
}

func (e *VersionConflictError) Kind() string { return "version_conflict" }

// StorageError wraps a failure in the persistence or audit layer.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage failure during %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func (e *StorageError) Kind() string { return "storage_failure" }
