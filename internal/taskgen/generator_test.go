package taskgen

import (
	"errors"
	"testing"

	"github.com/policygate/policygate/internal/audit"
	"github.com/policygate/policygate/internal/locks"
	"github.com/policygate/policygate/internal/model"
	"github.com/policygate/policygate/internal/rules"
	"github.com/policygate/policygate/internal/tasks"
)

func newGenerator(t *testing.T) (*Generator, *rules.MemoryStore, *tasks.MemoryStore, *audit.Log) {
	t.Helper()
	rs := rules.NewMemoryStore()
	ts := tasks.NewMemoryStore()
	log := audit.NewMemory()
	return NewGenerator(rs, ts, log, locks.NewKeyed()), rs, ts, log
}

func seedResolved(t *testing.T, rs *rules.MemoryStore) {
	t.Helper()
	p := model.Policy{PolicyID: "POL-1", RuleIDs: []string{"R-1", "R-2"}}
	list := []model.Rule{
		{PolicyID: "POL-1", RuleID: "R-1", Action: "archive records", ResponsibleRole: model.RoleOfficer, Deadline: "48 hours"},
		{PolicyID: "POL-1", RuleID: "R-2", Action: "notify owner", ResponsibleRole: model.RoleClerk},
	}
	if err := rs.SavePolicy(p, list); err != nil {
		t.Fatalf("SavePolicy failed: %v", err)
	}
}

func TestGenerateOneTaskPerRule(t *testing.T) {
	g, rs, _, log := newGenerator(t)
	seedResolved(t, rs)

	got, err := g.Generate("POL-1")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d tasks, want 2", len(got))
	}

	// Rule identifier order.
	if got[0].RuleID != "R-1" || got[1].RuleID != "R-2" {
		t.Errorf("task order = %s, %s", got[0].RuleID, got[1].RuleID)
	}
	first := got[0]
	if first.Name != "Execute rule R-1" {
		t.Errorf("name = %q", first.Name)
	}
	if first.Status != model.StatusCreated {
		t.Errorf("status = %s, want CREATED", first.Status)
	}
	if first.AssignedRole != model.RoleOfficer {
		t.Errorf("assigned role = %s, want Officer", first.AssignedRole)
	}
	if first.Deadline != "48 hours" {
		t.Errorf("deadline = %q, not copied from rule", first.Deadline)
	}
	if first.TaskID == "" || first.TaskID == got[1].TaskID {
		t.Errorf("task ids not unique: %q, %q", first.TaskID, got[1].TaskID)
	}

	// One CREATED entry per task, performed by the system.
	entries := log.Query(audit.Filter{PolicyID: "POL-1"})
	if len(entries) != 2 {
		t.Fatalf("got %d audit entries, want 2", len(entries))
	}
	for _, e := range entries {
		if e.Action != audit.ActionCreated || e.Role != audit.RoleSystem {
			t.Errorf("entry = %+v", e)
		}
	}

	// Rules are frozen by their task.
	r1, _, _ := rs.GetRule("POL-1", "R-1")
	if r1.TaskID != first.TaskID {
		t.Errorf("rule task_id = %q, want %q", r1.TaskID, first.TaskID)
	}
}

func TestGenerateRefusesAmbiguousPolicy(t *testing.T) {
	g, rs, ts, log := newGenerator(t)
	p := model.Policy{PolicyID: "POL-1", RuleIDs: []string{"R-1", "R-2"}}
	list := []model.Rule{
		{PolicyID: "POL-1", RuleID: "R-1", Action: "archive", ResponsibleRole: model.RoleOfficer},
		{PolicyID: "POL-1", RuleID: "R-2", Action: "purge", AmbiguityFlag: true, AmbiguityReason: "no role"},
	}
	if err := rs.SavePolicy(p, list); err != nil {
		t.Fatalf("SavePolicy failed: %v", err)
	}

	_, err := g.Generate("POL-1")
	var ambiguous *StillAmbiguousError
	if !errors.As(err, &ambiguous) {
		t.Fatalf("got %v, want StillAmbiguousError", err)
	}
	if len(ambiguous.RuleIDs) != 1 || ambiguous.RuleIDs[0] != "R-2" {
		t.Errorf("unresolved = %v, want [R-2]", ambiguous.RuleIDs)
	}

	// Nothing was written.
	if all, _ := ts.ListTasks(); len(all) != 0 {
		t.Errorf("%d tasks created despite refusal", len(all))
	}
	if log.Len() != 0 {
		t.Errorf("%d audit entries despite refusal", log.Len())
	}
}

func TestGenerateIdempotent(t *testing.T) {
	g, rs, ts, log := newGenerator(t)
	seedResolved(t, rs)

	first, err := g.Generate("POL-1")
	if err != nil {
		t.Fatalf("first Generate failed: %v", err)
	}
	second, err := g.Generate("POL-1")
	if err != nil {
		t.Fatalf("second Generate failed: %v", err)
	}

	if len(first) != len(second) {
		t.Fatalf("task sets differ in size: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].TaskID != second[i].TaskID {
			t.Errorf("task[%d] id changed: %s vs %s", i, first[i].TaskID, second[i].TaskID)
		}
	}
	if all, _ := ts.ListTasks(); len(all) != 2 {
		t.Errorf("%d tasks stored, want 2", len(all))
	}
	if log.Len() != 2 {
		t.Errorf("%d audit entries, want 2 (no re-audit on rerun)", log.Len())
	}
}

func TestGenerateUnknownPolicy(t *testing.T) {
	g, _, _, _ := newGenerator(t)
	_, err := g.Generate("nope")
	var notFound *rules.NotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("got %v, want NotFoundError", err)
	}
}
