package rules

import (
	"errors"
	"testing"

	"github.com/policygate/policygate/internal/model"
)

func seedPolicy(t *testing.T, s Store) {
	t.Helper()
	p := model.Policy{PolicyID: "POL-1", Title: "Data retention", RuleIDs: []string{"R-1", "R-2"}}
	rs := []model.Rule{
		{PolicyID: "POL-1", RuleID: "R-1", Action: "archive records", ResponsibleRole: model.RoleClerk, Deadline: "2026-12-31"},
		{PolicyID: "POL-1", RuleID: "R-2", Action: "purge drafts", AmbiguityFlag: true, AmbiguityReason: "no responsible role named"},
	}
	if err := s.SavePolicy(p, rs); err != nil {
		t.Fatalf("SavePolicy failed: %v", err)
	}
}

func TestSavePolicyRejectsDuplicate(t *testing.T) {
	s := NewMemoryStore()
	seedPolicy(t, s)

	err := s.SavePolicy(model.Policy{PolicyID: "POL-1"}, nil)
	var exists *PolicyExistsError
	if !errors.As(err, &exists) {
		t.Fatalf("got %v, want PolicyExistsError", err)
	}
}

func TestGetRuleUnknown(t *testing.T) {
	s := NewMemoryStore()
	seedPolicy(t, s)

	if _, _, err := s.GetRule("POL-1", "R-9"); err == nil {
		t.Error("expected error for unknown rule")
	}
	if _, _, err := s.GetRule("POL-9", "R-1"); err == nil {
		t.Error("expected error for unknown policy")
	}
}

func TestListRulesSorted(t *testing.T) {
	s := NewMemoryStore()
	p := model.Policy{PolicyID: "POL-2", RuleIDs: []string{"R-3", "R-1", "R-2"}}
	rs := []model.Rule{
		{PolicyID: "POL-2", RuleID: "R-3", Action: "c"},
		{PolicyID: "POL-2", RuleID: "R-1", Action: "a"},
		{PolicyID: "POL-2", RuleID: "R-2", Action: "b"},
	}
	if err := s.SavePolicy(p, rs); err != nil {
		t.Fatalf("SavePolicy failed: %v", err)
	}

	got, err := s.ListRules("POL-2")
	if err != nil {
		t.Fatalf("ListRules failed: %v", err)
	}
	for i, want := range []string{"R-1", "R-2", "R-3"} {
		if got[i].RuleID != want {
			t.Errorf("rule[%d] = %s, want %s", i, got[i].RuleID, want)
		}
	}
}

func TestCompareAndSwapRule(t *testing.T) {
	s := NewMemoryStore()
	seedPolicy(t, s)

	r, v, err := s.GetRule("POL-1", "R-2")
	if err != nil {
		t.Fatalf("GetRule failed: %v", err)
	}

	r.AmbiguityFlag = false
	if err := s.CompareAndSwapRule(r, v); err != nil {
		t.Fatalf("first swap failed: %v", err)
	}

	// Stale version must be refused.
	err = s.CompareAndSwapRule(r, v)
	var conflict *VersionConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("got %v, want VersionConflictError", err)
	}

	got, v2, err := s.GetRule("POL-1", "R-2")
	if err != nil {
		t.Fatalf("GetRule after swap failed: %v", err)
	}
	if got.AmbiguityFlag {
		t.Error("swap did not persist")
	}
	if v2 != v+1 {
		t.Errorf("version = %d, want %d", v2, v+1)
	}
}

func TestGetRuleReturnsSnapshot(t *testing.T) {
	s := NewMemoryStore()
	p := model.Policy{PolicyID: "POL-3", RuleIDs: []string{"R-1"}}
	rs := []model.Rule{{PolicyID: "POL-3", RuleID: "R-1", Conditions: []string{"a"}}}
	if err := s.SavePolicy(p, rs); err != nil {
		t.Fatalf("SavePolicy failed: %v", err)
	}

	r, _, _ := s.GetRule("POL-3", "R-1")
	r.Conditions[0] = "mutated"

	again, _, _ := s.GetRule("POL-3", "R-1")
	if again.Conditions[0] != "a" {
		t.Error("caller mutation leaked into store")
	}
}
