package tasks

import (
	"fmt"

	"github.com/policygate/policygate/internal/model"
)

// NotFoundError is returned when a task lookup misses.
type NotFoundError struct {
	TaskID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("task %q not found", e.TaskID)
}

func (e *NotFoundError) Kind() string { return "not_found" }

// InvalidTransitionError reports a status change the transition table does
// not allow. It names both ends so the caller can see what it asked against
// what the task currently is.
type InvalidTransitionError struct {
	TaskID string
	From   model.TaskStatus
	To     model.TaskStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("task %s: transition %s -> %s is not allowed", e.TaskID, e.From, e.To)
}

func (e *InvalidTransitionError) Kind() string { return "invalid_transition" }

// UnauthorizedRoleError reports an acting role that does not hold the task.
type UnauthorizedRoleError struct {
	TaskID   string
	Acting   model.Role
	Required model.Role
}

func (e *UnauthorizedRoleError) Error() string {
	return fmt.Sprintf("task %s: role %s cannot act, assigned to %s", e.TaskID, e.Acting, e.Required)
}

func (e *UnauthorizedRoleError) Kind() string { return "unauthorized_role" }

// NoFurtherEscalationError is returned when a task held by Admin is
// escalated. Admin is the ceiling of the role chain.
type NoFurtherEscalationError struct {
	TaskID string
	Role   model.Role
}

func (e *NoFurtherEscalationError) Error() string {
	return fmt.Sprintf("task %s: no role above %s to escalate to", e.TaskID, e.Role)
}

func (e *NoFurtherEscalationError) Kind() string { return "no_further_escalation" }

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

// VersionConflictError is returned by CompareAndSwapTask when the stored
// version moved since the caller's read.
type VersionConflictError struct {
	TaskID string
}

func (e *VersionConflictError) Error() string {
	return fmt.Sprintf("task %q was modified concurrently", e.TaskID)
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
