package tasks

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/policygate/policygate/internal/audit"
	"github.com/policygate/policygate/internal/locks"
	"github.com/policygate/policygate/internal/model"
)

func newMachine(t *testing.T) (*Machine, *MemoryStore, *audit.Log) {
	t.Helper()
	s := NewMemoryStore()
	log := audit.NewMemory()
	return NewMachine(s, log, locks.NewKeyed()), s, log
}

func seedTask(t *testing.T, s *MemoryStore, id string, status model.TaskStatus, role model.Role) {
	t.Helper()
	err := s.SaveTask(model.Task{
		TaskID:       id,
		PolicyID:     "POL-1",
		RuleID:       "R-1",
		Name:         "Execute rule R-1",
		AssignedRole: role,
		Status:       status,
		CreatedAt:    time.Now().UTC(),
		UpdatedAt:    time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("SaveTask failed: %v", err)
	}
}

func TestTransitionHappyPath(t *testing.T) {
	m, s, log := newMachine(t)
	seedTask(t, s, "T1", model.StatusCreated, model.RoleOfficer)

	got, err := m.Transition("T1", model.StatusAssigned, model.RoleOfficer)
	if err != nil {
		t.Fatalf("Transition failed: %v", err)
	}
	if got.Status != model.StatusAssigned {
		t.Errorf("status = %s, want ASSIGNED", got.Status)
	}

	entries := log.TaskEntries("T1")
	if len(entries) != 1 {
		t.Fatalf("got %d audit entries, want 1", len(entries))
	}
	if entries[0].Action != "STATUS_UPDATE: CREATED -> ASSIGNED" {
		t.Errorf("audit action = %q", entries[0].Action)
	}
	if entries[0].Role != "Officer" {
		t.Errorf("audit role = %q", entries[0].Role)
	}
}

func TestTransitionSkippingStateRejected(t *testing.T) {
	m, s, _ := newMachine(t)
	seedTask(t, s, "T1", model.StatusCreated, model.RoleOfficer)

	_, err := m.Transition("T1", model.StatusCompleted, model.RoleOfficer)
	var invalid *InvalidTransitionError
	if !errors.As(err, &invalid) {
		t.Fatalf("got %v, want InvalidTransitionError", err)
	}
	if invalid.From != model.StatusCreated || invalid.To != model.StatusCompleted {
		t.Errorf("error names %s -> %s", invalid.From, invalid.To)
	}
}

func TestTransitionWrongRoleRejected(t *testing.T) {
	m, s, log := newMachine(t)
	seedTask(t, s, "T1", model.StatusCreated, model.RoleOfficer)

	_, err := m.Transition("T1", model.StatusAssigned, model.RoleClerk)
	var unauthorized *UnauthorizedRoleError
	if !errors.As(err, &unauthorized) {
		t.Fatalf("got %v, want UnauthorizedRoleError", err)
	}
	if log.Len() != 0 {
		t.Error("rejected transition must not be audited")
	}

	task, _, _ := s.GetTask("T1")
	if task.Status != model.StatusCreated {
		t.Errorf("status changed to %s after rejection", task.Status)
	}
}

func TestTransitionRoleCaseInsensitive(t *testing.T) {
	m, s, _ := newMachine(t)
	seedTask(t, s, "T1", model.StatusCreated, model.RoleOfficer)

	role, ok := model.ParseRole("officer")
	if !ok {
		t.Fatal("ParseRole rejected officer")
	}
	if _, err := m.Transition("T1", model.StatusAssigned, role); err != nil {
		t.Fatalf("Transition failed: %v", err)
	}
}

func TestTransitionUnknownTask(t *testing.T) {
	m, _, _ := newMachine(t)
	_, err := m.Transition("nope", model.StatusAssigned, model.RoleClerk)
	var notFound *NotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("got %v, want NotFoundError", err)
	}
}

func TestEscalateFromInProgress(t *testing.T) {
	m, s, log := newMachine(t)
	seedTask(t, s, "T1", model.StatusInProgress, model.RoleClerk)

	got, err := m.Escalate("T1", model.RoleClerk)
	if err != nil {
		t.Fatalf("Escalate failed: %v", err)
	}
	if got.Status != model.StatusEscalated {
		t.Errorf("status = %s, want ESCALATED", got.Status)
	}
	if got.EscalatedTo != model.RoleOfficer {
		t.Errorf("escalated_to = %s, want Officer", got.EscalatedTo)
	}
	if got.AssignedRole != model.RoleOfficer {
		t.Errorf("assigned_role = %s, want Officer", got.AssignedRole)
	}

	entries := log.TaskEntries("T1")
	if len(entries) != 1 || entries[0].Action != "ESCALATED to Officer" {
		t.Fatalf("audit entries = %+v", entries)
	}

	// The escalated-to role picks the task back up.
	if _, err := m.Transition("T1", model.StatusAssigned, model.RoleOfficer); err != nil {
		t.Fatalf("escalated-to role blocked from resuming: %v", err)
	}
	// The original assignee no longer holds it.
	seedTask(t, s, "T2", model.StatusInProgress, model.RoleClerk)
	if _, err := m.Escalate("T2", model.RoleClerk); err != nil {
		t.Fatalf("Escalate failed: %v", err)
	}
	_, err = m.Transition("T2", model.StatusAssigned, model.RoleClerk)
	var unauthorized *UnauthorizedRoleError
	if !errors.As(err, &unauthorized) {
		t.Fatalf("got %v, want UnauthorizedRoleError for original assignee", err)
	}
}

func TestEscalateOnlyFromInProgress(t *testing.T) {
	m, s, _ := newMachine(t)
	seedTask(t, s, "T1", model.StatusInProgress, model.RoleClerk)

	if _, err := m.Escalate("T1", model.RoleClerk); err != nil {
		t.Fatalf("first Escalate failed: %v", err)
	}
	_, err := m.Escalate("T1", model.RoleOfficer)
	var invalid *InvalidTransitionError
	if !errors.As(err, &invalid) {
		t.Fatalf("got %v, want InvalidTransitionError from ESCALATED", err)
	}
}

func TestEscalateAdminCeiling(t *testing.T) {
	m, s, _ := newMachine(t)
	seedTask(t, s, "T1", model.StatusInProgress, model.RoleAdmin)

	_, err := m.Escalate("T1", model.RoleAdmin)
	var ceiling *NoFurtherEscalationError
	if !errors.As(err, &ceiling) {
		t.Fatalf("got %v, want NoFurtherEscalationError", err)
	}
}

func TestEscalateChainStrictlyIncreases(t *testing.T) {
	m, s, _ := newMachine(t)
	seedTask(t, s, "T1", model.StatusInProgress, model.RoleClerk)

	prev := model.RoleClerk
	for {
		got, err := m.Escalate("T1", prev)
		if err != nil {
			var ceiling *NoFurtherEscalationError
			if !errors.As(err, &ceiling) {
				t.Fatalf("chain ended with %v", err)
			}
			break
		}
		if model.RoleRank[got.AssignedRole] <= model.RoleRank[prev] {
			t.Fatalf("escalation did not increase rank: %s -> %s", prev, got.AssignedRole)
		}
		prev = got.AssignedRole
		// Walk the task back to IN_PROGRESS for the next hop.
		if _, err := m.Transition("T1", model.StatusAssigned, prev); err != nil {
			t.Fatalf("reassign failed: %v", err)
		}
		if _, err := m.Transition("T1", model.StatusInProgress, prev); err != nil {
			t.Fatalf("restart failed: %v", err)
		}
	}
	if prev != model.RoleAdmin {
		t.Errorf("chain stopped at %s, want Admin", prev)
	}
}

func TestConcurrentAssignExactlyOneWins(t *testing.T) {
	m, s, log := newMachine(t)
	seedTask(t, s, "T1", model.StatusCreated, model.RoleClerk)

	const attempts = 16
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = m.Transition("T1", model.StatusAssigned, model.RoleClerk)
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
			continue
		}
		var invalid *InvalidTransitionError
		if !errors.As(err, &invalid) {
			t.Errorf("loser got %v, want InvalidTransitionError", err)
		}
	}
	if wins != 1 {
		t.Errorf("%d transitions succeeded, want exactly 1", wins)
	}
	if log.Len() != 1 {
		t.Errorf("%d audit entries, want exactly 1", log.Len())
	}
}

func TestAuditWalkStaysValid(t *testing.T) {
	m, s, log := newMachine(t)
	seedTask(t, s, "T1", model.StatusCreated, model.RoleClerk)
	if err := log.Record(audit.Entry{TaskID: "T1", PolicyID: "POL-1", RuleID: "R-1", Action: audit.ActionCreated, Role: audit.RoleSystem}); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	steps := []model.TaskStatus{model.StatusAssigned, model.StatusInProgress}
	for _, to := range steps {
		if _, err := m.Transition("T1", to, model.RoleClerk); err != nil {
			t.Fatalf("Transition to %s failed: %v", to, err)
		}
	}
	if _, err := m.Escalate("T1", model.RoleClerk); err != nil {
		t.Fatalf("Escalate failed: %v", err)
	}

	h := audit.TaskHistory(log, "T1")
	if !h.ValidWalk {
		t.Errorf("audit walk invalid: %s", h.Problem)
	}
}
