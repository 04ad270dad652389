package tasks

import (
	"errors"
	"time"

	"github.com/policygate/policygate/internal/audit"
	"github.com/policygate/policygate/internal/locks"
	"github.com/policygate/policygate/internal/model"
)

// casRetries bounds re-validation when a task moves between our read and our
// write. Every retry revalidates against fresh state, so a transition that
// lost the race surfaces as InvalidTransition, not as a silent replay.
const casRetries = 3

// Machine owns the task lifecycle: validated status transitions and
// escalation up the role chain, each leaving an audit entry. Mutations on
// the same task serialize on a per-task lock; different tasks do not block
// each other.
type Machine struct {
	store Store
	log   *audit.Log
	locks *locks.Keyed
	now   func() time.Time
}

func NewMachine(store Store, log *audit.Log, reg *locks.Keyed) *Machine {
	return &Machine{store: store, log: log, locks: reg, now: time.Now}
}

func taskKey(taskID string) string { return "task:" + taskID }

// Transition moves a task to target and returns the updated task. The
// acting role must hold the task; after an escalation that is the role the
// task was escalated to.
func (m *Machine) Transition(taskID string, target model.TaskStatus, acting model.Role) (model.Task, error) {
	if !acting.Valid() {
		return model.Task{}, &InvalidInputError{Field: "role", Value: string(acting), Reason: "unknown role"}
	}
	if !target.Valid() {
		return model.Task{}, &InvalidInputError{Field: "status", Value: string(target), Reason: "unknown status"}
	}

	key := taskKey(taskID)
	m.locks.Lock(key)
	defer m.locks.Unlock(key)

	var lastErr error
	for attempt := 0; attempt < casRetries; attempt++ {
		task, version, err := m.store.GetTask(taskID)
		if err != nil {
			return model.Task{}, err
		}
		if !task.Status.CanTransition(target) {
			return model.Task{}, &InvalidTransitionError{TaskID: taskID, From: task.Status, To: target}
		}
		if !acting.Equal(task.AssignedRole) {
			return model.Task{}, &UnauthorizedRoleError{TaskID: taskID, Acting: acting, Required: task.AssignedRole}
		}

		before := task.Clone()
		updated := task.Clone()
		updated.Status = target
		updated.UpdatedAt = m.now().UTC()

		if err := m.apply(updated, before, version, audit.Entry{
			TaskID:   task.TaskID,
			PolicyID: task.PolicyID,
			RuleID:   task.RuleID,
			Action:   audit.StatusUpdateAction(task.Status, target),
			Role:     string(acting),
		}); err != nil {
			var conflict *VersionConflictError
			if errors.As(err, &conflict) {
				lastErr = err
				continue
			}
			return model.Task{}, err
		}
		return updated, nil
	}
	return model.Task{}, lastErr
}

// Escalate hands a task to the next role up the chain. Only a task in
// IN_PROGRESS can be escalated, and Admin has nobody above it.
func (m *Machine) Escalate(taskID string, acting model.Role) (model.Task, error) {
	if !acting.Valid() {
		return model.Task{}, &InvalidInputError{Field: "role", Value: string(acting), Reason: "unknown role"}
	}

	key := taskKey(taskID)
	m.locks.Lock(key)
	defer m.locks.Unlock(key)

	var lastErr error
	for attempt := 0; attempt < casRetries; attempt++ {
		task, version, err := m.store.GetTask(taskID)
		if err != nil {
			return model.Task{}, err
		}
		if !task.Status.CanTransition(model.StatusEscalated) {
			return model.Task{}, &InvalidTransitionError{TaskID: taskID, From: task.Status, To: model.StatusEscalated}
		}
		if !acting.Equal(task.AssignedRole) {
			return model.Task{}, &UnauthorizedRoleError{TaskID: taskID, Acting: acting, Required: task.AssignedRole}
		}
		next, ok := task.AssignedRole.EscalationTarget()
		if !ok {
			return model.Task{}, &NoFurtherEscalationError{TaskID: taskID, Role: task.AssignedRole}
		}

		before := task.Clone()
		updated := task.Clone()
		updated.Status = model.StatusEscalated
		updated.EscalatedTo = next
		updated.AssignedRole = next
		updated.UpdatedAt = m.now().UTC()

		if err := m.apply(updated, before, version, audit.Entry{
			TaskID:   task.TaskID,
			PolicyID: task.PolicyID,
			RuleID:   task.RuleID,
			Action:   audit.EscalatedAction(next),
			Role:     string(acting),
		}); err != nil {
			var conflict *VersionConflictError
			if errors.As(err, &conflict) {
				lastErr = err
				continue
			}
			return model.Task{}, err
		}
		return updated, nil
	}
	return model.Task{}, lastErr
}

// apply writes the task and its audit entry as a unit. If the entry cannot
// be appended the task write is undone, so no mutation becomes observable
// without its audit record.
func (m *Machine) apply(updated, before model.Task, version uint64, entry audit.Entry) error {
	if err := m.store.CompareAndSwapTask(updated, version); err != nil {
		return err
	}
	if err := m.log.Record(entry); err != nil {
		m.store.CompareAndSwapTask(before, version+1)
		return &StorageError{Op: "audit append", Err: err}
	}
	return nil
}
