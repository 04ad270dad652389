package taskgen

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/policygate/policygate/internal/audit"
	"github.com/policygate/policygate/internal/locks"
	"github.com/policygate/policygate/internal/model"
	"github.com/policygate/policygate/internal/rules"
	"github.com/policygate/policygate/internal/tasks"
)

// StillAmbiguousError is returned when generation is attempted while any
// rule of the policy still carries its ambiguity flag.
type StillAmbiguousError struct {
	PolicyID string
	RuleIDs  []string
}

func (e *StillAmbiguousError) Error() string {
	return fmt.Sprintf("policy %q still ambiguous, unresolved rules: %s", e.PolicyID, strings.Join(e.RuleIDs, ", "))
}

func (e *StillAmbiguousError) Kind() string { return "still_ambiguous" }

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

// Generator turns a fully resolved policy into one task per rule. Rules are
// processed in identifier order, so repeated runs over the same policy see
// the same sequence. A rule that already carries a task identifier is
// skipped, which makes generation safe to retry.
type Generator struct {
	rules rules.Store
	tasks tasks.Store
	log   *audit.Log
	locks *locks.Keyed
	now   func() time.Time
	newID func() string
}

func NewGenerator(rs rules.Store, ts tasks.Store, log *audit.Log, reg *locks.Keyed) *Generator {
	return &Generator{
		rules: rs,
		tasks: ts,
		log:   log,
		locks: reg,
		now:   time.Now,
		newID: uuid.NewString,
	}
}

// TaskName is the display name given to a generated task.
func TaskName(ruleID string) string {
	return "Execute rule " + ruleID
}

// Generate creates tasks for every rule of policyID that does not have one
// yet and returns the policy's full task set, generated and pre-existing
// alike. It fails with StillAmbiguousError before touching anything if any
// rule is unresolved.
func (g *Generator) Generate(policyID string) ([]model.Task, error) {
	key := "policy:" + policyID
	g.locks.Lock(key)
	defer g.locks.Unlock(key)

	ruleList, err := g.rules.ListRules(policyID)
	if err != nil {
		return nil, err
	}

	var unresolved []string
	for _, r := range ruleList {
		if !r.Resolved() {
			unresolved = append(unresolved, r.RuleID)
		}
	}
	if len(unresolved) > 0 {
		return nil, &StillAmbiguousError{PolicyID: policyID, RuleIDs: unresolved}
	}

	out := make([]model.Task, 0, len(ruleList))
	for _, r := range ruleList {
		if r.Generated() {
			existing, _, err := g.tasks.GetTask(r.TaskID)
			if err != nil {
				return nil, &StorageError{Op: "load existing task", Err: err}
			}
			out = append(out, existing)
			continue
		}
		task, err := g.generateOne(r)
		if err != nil {
			return nil, err
		}
		out = append(out, task)
	}
	return out, nil
}

func (g *Generator) generateOne(r model.Rule) (model.Task, error) {
	now := g.now().UTC()
	task := model.Task{
		TaskID:       g.newID(),
		PolicyID:     r.PolicyID,
		RuleID:       r.RuleID,
		Name:         TaskName(r.RuleID),
		AssignedRole: r.ResponsibleRole,
		Status:       model.StatusCreated,
		Deadline:     r.Deadline,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := g.tasks.SaveTask(task); err != nil {
		return model.Task{}, &StorageError{Op: "save task", Err: err}
	}

	// Freeze the rule against any further clarification.
	frozen := r.Clone()
	frozen.TaskID = task.TaskID
	_, version, err := g.rules.GetRule(r.PolicyID, r.RuleID)
	if err != nil {
		return model.Task{}, &StorageError{Op: "reload rule", Err: err}
	}
	if err := g.rules.CompareAndSwapRule(frozen, version); err != nil {
		return model.Task{}, &StorageError{Op: "freeze rule", Err: err}
	}

	entry := audit.Entry{
		TaskID:   task.TaskID,
		PolicyID: task.PolicyID,
		RuleID:   task.RuleID,
		Action:   audit.ActionCreated,
		Role:     audit.RoleSystem,
	}
	if err := g.log.Record(entry); err != nil {
		// Undo the freeze so a retry regenerates this rule's task.
		g.rules.CompareAndSwapRule(r, version+1)
		return model.Task{}, &StorageError{Op: "audit append", Err: err}
	}
	return task, nil
}
