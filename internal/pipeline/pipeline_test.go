package pipeline

import (
	"errors"
	"sync"
	"testing"

	"github.com/policygate/policygate/internal/audit"
	"github.com/policygate/policygate/internal/ingest"
	"github.com/policygate/policygate/internal/model"
	"github.com/policygate/policygate/internal/rules"
	"github.com/policygate/policygate/internal/taskgen"
	"github.com/policygate/policygate/internal/tasks"
)

func newPipeline(t *testing.T) *Pipeline {
	t.Helper()
	return New(rules.NewMemoryStore(), tasks.NewMemoryStore(), audit.NewMemory())
}

func payload() *ingest.Payload {
	return &ingest.Payload{
		PolicyID:    "POL-1",
		PolicyTitle: "Data retention",
		Rules: []ingest.RulePayload{
			{
				RuleID:          "R-1",
				Action:          "archive records",
				ResponsibleRole: "Clerk",
				Deadline:        "2026-12-31",
			},
			{
				RuleID:          "R-2",
				Action:          "purge drafts",
				AmbiguityFlag:   true,
				AmbiguityReason: "no responsible role named",
			},
		},
	}
}

func mustIngest(t *testing.T, p *Pipeline) {
	t.Helper()
	if _, err := p.IngestPolicy(payload()); err != nil {
		t.Fatalf("IngestPolicy failed: %v", err)
	}
}

func mustClarify(t *testing.T, p *Pipeline) {
	t.Helper()
	_, err := p.ApplyClarification(model.ClarificationRequest{
		PolicyID:        "POL-1",
		RuleID:          "R-2",
		ResponsibleRole: "Officer",
		Deadline:        "48 hours",
	})
	if err != nil {
		t.Fatalf("ApplyClarification failed: %v", err)
	}
}

func TestIngestReportsCounts(t *testing.T) {
	p := newPipeline(t)

	got, err := p.IngestPolicy(payload())
	if err != nil {
		t.Fatalf("IngestPolicy failed: %v", err)
	}
	if got.RuleCount != 2 || got.AmbiguousCount != 1 || got.Duplicate {
		t.Errorf("result = %+v", got)
	}
}

func TestIngestDuplicateIsNoOp(t *testing.T) {
	p := newPipeline(t)
	mustIngest(t, p)

	got, err := p.IngestPolicy(payload())
	if err != nil {
		t.Fatalf("re-ingest failed: %v", err)
	}
	if !got.Duplicate {
		t.Error("identical re-submission not reported as duplicate")
	}
}

func TestIngestDuplicateAfterClarification(t *testing.T) {
	p := newPipeline(t)
	mustIngest(t, p)
	mustClarify(t, p)

	got, err := p.IngestPolicy(payload())
	if err != nil {
		t.Fatalf("re-ingest after clarification failed: %v", err)
	}
	if !got.Duplicate {
		t.Error("re-submission after clarification not treated as duplicate")
	}
	if got.AmbiguousCount != 0 {
		t.Errorf("ambiguous count = %d after clarification", got.AmbiguousCount)
	}
}

func TestIngestConflictingPolicyRejected(t *testing.T) {
	p := newPipeline(t)
	mustIngest(t, p)

	changed := payload()
	changed.Rules[0].Action = "shred records"
	_, err := p.IngestPolicy(changed)
	if ErrKind(err) != "policy_exists" {
		t.Fatalf("got %v (kind %s), want policy_exists", err, ErrKind(err))
	}
}

// Clarification resolves the rule and leaves exactly one CLARIFIED entry.
func TestScenarioClarify(t *testing.T) {
	p := newPipeline(t)
	mustIngest(t, p)

	rule, err := p.ApplyClarification(model.ClarificationRequest{
		PolicyID:        "POL-1",
		RuleID:          "R-2",
		ResponsibleRole: "Officer",
		Deadline:        "48 hours",
	})
	if err != nil {
		t.Fatalf("ApplyClarification failed: %v", err)
	}
	if rule.AmbiguityFlag {
		t.Error("rule still ambiguous")
	}

	entries := p.AuditTrail(audit.Filter{PolicyID: "POL-1"})
	if len(entries) != 1 || entries[0].Action != audit.ActionClarified {
		t.Fatalf("audit = %+v", entries)
	}

	pending, err := p.PendingClarifications("")
	if err != nil {
		t.Fatalf("PendingClarifications failed: %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("%d rules still pending", len(pending))
	}
}

// Finalizing early fails naming the unresolved rule.
func TestScenarioFinalizeStillAmbiguous(t *testing.T) {
	p := newPipeline(t)
	mustIngest(t, p)

	_, err := p.FinalizePolicy("POL-1")
	var ambiguous *taskgen.StillAmbiguousError
	if !errors.As(err, &ambiguous) {
		t.Fatalf("got %v, want StillAmbiguousError", err)
	}
	if len(ambiguous.RuleIDs) != 1 || ambiguous.RuleIDs[0] != "R-2" {
		t.Errorf("unresolved = %v, want [R-2]", ambiguous.RuleIDs)
	}
	if ErrKind(err) != "still_ambiguous" {
		t.Errorf("kind = %s", ErrKind(err))
	}
}

// Generated task walks the lifecycle under role authorization.
func TestScenarioAdvance(t *testing.T) {
	p := newPipeline(t)
	mustIngest(t, p)
	mustClarify(t, p)

	generated, err := p.FinalizePolicy("POL-1")
	if err != nil {
		t.Fatalf("FinalizePolicy failed: %v", err)
	}
	if len(generated) != 2 {
		t.Fatalf("got %d tasks", len(generated))
	}
	task := generated[1] // R-2, clarified to Officer
	if task.AssignedRole != model.RoleOfficer || task.Status != model.StatusCreated {
		t.Fatalf("task = %+v", task)
	}

	got, err := p.AdvanceTask(task.TaskID, "ASSIGNED", "officer")
	if err != nil {
		t.Fatalf("AdvanceTask failed: %v", err)
	}
	if got.Status != model.StatusAssigned {
		t.Errorf("status = %s", got.Status)
	}

	// Skipping straight to COMPLETED is refused.
	_, err = p.AdvanceTask(task.TaskID, "COMPLETED", "Officer")
	if ErrKind(err) != "invalid_transition" {
		t.Errorf("got %v (kind %s), want invalid_transition", err, ErrKind(err))
	}

	// The wrong role is refused.
	_, err = p.AdvanceTask(task.TaskID, "IN_PROGRESS", "Clerk")
	if ErrKind(err) != "unauthorized_role" {
		t.Errorf("got %v (kind %s), want unauthorized_role", err, ErrKind(err))
	}
}

// Escalation reassigns up the chain and stops at Admin.
func TestScenarioEscalate(t *testing.T) {
	p := newPipeline(t)
	mustIngest(t, p)
	mustClarify(t, p)

	generated, err := p.FinalizePolicy("POL-1")
	if err != nil {
		t.Fatalf("FinalizePolicy failed: %v", err)
	}
	task := generated[0] // R-1, assigned Clerk
	for _, step := range []string{"ASSIGNED", "IN_PROGRESS"} {
		if _, err := p.AdvanceTask(task.TaskID, step, "Clerk"); err != nil {
			t.Fatalf("advance to %s failed: %v", step, err)
		}
	}

	got, err := p.EscalateTask(task.TaskID, "Clerk")
	if err != nil {
		t.Fatalf("EscalateTask failed: %v", err)
	}
	if got.Status != model.StatusEscalated || got.AssignedRole != model.RoleOfficer {
		t.Errorf("task = %+v", got)
	}

	// Escalating again while still ESCALATED is refused.
	_, err = p.EscalateTask(task.TaskID, "Officer")
	if ErrKind(err) != "invalid_transition" {
		t.Errorf("got %v (kind %s), want invalid_transition", err, ErrKind(err))
	}

	h := p.TaskHistory(task.TaskID)
	if !h.ValidWalk {
		t.Errorf("audit walk invalid: %s", h.Problem)
	}
}

func TestConcurrentAdvanceOneWinner(t *testing.T) {
	p := newPipeline(t)
	mustIngest(t, p)
	mustClarify(t, p)

	generated, err := p.FinalizePolicy("POL-1")
	if err != nil {
		t.Fatalf("FinalizePolicy failed: %v", err)
	}
	task := generated[0]

	const attempts = 8
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = p.AdvanceTask(task.TaskID, "ASSIGNED", "Clerk")
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
		} else if ErrKind(err) != "invalid_transition" {
			t.Errorf("loser got %v (kind %s)", err, ErrKind(err))
		}
	}
	if wins != 1 {
		t.Errorf("%d winners, want 1", wins)
	}
}

func TestListTasksRoleFiltered(t *testing.T) {
	p := newPipeline(t)
	mustIngest(t, p)
	mustClarify(t, p)
	if _, err := p.FinalizePolicy("POL-1"); err != nil {
		t.Fatalf("FinalizePolicy failed: %v", err)
	}

	clerk, err := p.ListTasks("clerk")
	if err != nil {
		t.Fatalf("ListTasks failed: %v", err)
	}
	if len(clerk) != 1 || clerk[0].RuleID != "R-1" {
		t.Errorf("clerk sees %+v", clerk)
	}

	admin, err := p.ListTasks("Admin")
	if err != nil {
		t.Fatalf("ListTasks failed: %v", err)
	}
	if len(admin) != 2 {
		t.Errorf("admin sees %d tasks, want all 2", len(admin))
	}

	if _, err := p.ListTasks("Wizard"); ErrKind(err) != "invalid_input" {
		t.Errorf("unknown role: got %v", err)
	}
}

func TestStats(t *testing.T) {
	p := newPipeline(t)
	mustIngest(t, p)
	mustClarify(t, p)
	if _, err := p.FinalizePolicy("POL-1"); err != nil {
		t.Fatalf("FinalizePolicy failed: %v", err)
	}

	s, err := p.Stats()
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if s.Policies != 1 || s.Rules != 2 || s.ResolvedRules != 2 || s.AmbiguousRules != 0 {
		t.Errorf("stats = %+v", s)
	}
	if s.Tasks != 2 || s.TasksByStatus["CREATED"] != 2 {
		t.Errorf("task stats = %+v", s)
	}
	if s.AuditEntries != 3 { // one CLARIFIED, two CREATED
		t.Errorf("audit entries = %d, want 3", s.AuditEntries)
	}
}

func TestErrKindNotFound(t *testing.T) {
	p := newPipeline(t)
	_, err := p.GetTask("nope")
	if ErrKind(err) != "not_found" {
		t.Errorf("kind = %s, want not_found", ErrKind(err))
	}
	if ErrKind(nil) != "" {
		t.Error("nil error must map to empty kind")
	}
	if ErrKind(errors.New("boom")) != KindInternal {
		t.Error("untyped error must map to internal")
	}
}
