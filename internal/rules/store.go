package rules

import (
	"sort"
	"sync"

	"github.com/policygate/policygate/internal/model"
)

// Store persists policies and their rules. Rule reads carry a version
// counter; writes go through CompareAndSwapRule so concurrent clarifications
// cannot silently overwrite each other.
type Store interface {
	// SavePolicy stores a new policy with its rules. It fails with
	// PolicyExistsError when the identifier is taken.
	SavePolicy(p model.Policy, rs []model.Rule) error

	GetPolicy(policyID string) (model.Policy, error)

	// ListPolicies returns all policies sorted by identifier.
	ListPolicies() ([]model.Policy, error)

	// GetRule returns the rule and the version the caller must present to
	// CompareAndSwapRule.
	GetRule(policyID, ruleID string) (model.Rule, uint64, error)

	// ListRules returns a policy's rules sorted by rule identifier.
	ListRules(policyID string) ([]model.Rule, error)

	// CompareAndSwapRule replaces the stored rule if its version still
	// equals version, and fails with VersionConflictError otherwise.
	CompareAndSwapRule(r model.Rule, version uint64) error
}

type ruleSlot struct {
	rule    model.Rule
	version uint64
}

// MemoryStore is the in-process Store used by tests and by deployments that
// do not need persistence across restarts.
type MemoryStore struct {
	mu       sync.Mutex
	policies map[string]model.Policy
	rules    map[string]map[string]*ruleSlot
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		policies: make(map[string]model.Policy),
		rules:    make(map[string]map[string]*ruleSlot),
	}
}

func (s *MemoryStore) SavePolicy(p model.Policy, rs []model.Rule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.policies[p.PolicyID]; ok {
		return &PolicyExistsError{PolicyID: p.PolicyID}
	}

	byID := make(map[string]*ruleSlot, len(rs))
	for i := range rs {
		byID[rs[i].RuleID] = &ruleSlot{rule: rs[i].Clone(), version: 1}
	}

	s.policies[p.PolicyID] = p
	s.rules[p.PolicyID] = byID
	return nil
}

func (s *MemoryStore) GetPolicy(policyID string) (model.Policy, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.policies[policyID]
	if !ok {
		return model.Policy{}, &NotFoundError{Entity: "policy", ID: policyID}
	}
	return p, nil
}

func (s *MemoryStore) ListPolicies() ([]model.Policy, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.Policy, 0, len(s.policies))
	for _, p := range s.policies {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PolicyID < out[j].PolicyID })
	return out, nil
}

func (s *MemoryStore) GetRule(policyID, ruleID string) (model.Rule, uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	byID, ok := s.rules[policyID]
	if !ok {
		return model.Rule{}, 0, &NotFoundError{Entity: "policy", ID: policyID}
	}
	slot, ok := byID[ruleID]
	if !ok {
		return model.Rule{}, 0, &NotFoundError{Entity: "rule", ID: ruleID}
	}
	return slot.rule.Clone(), slot.version, nil
}

func (s *MemoryStore) ListRules(policyID string) ([]model.Rule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	byID, ok := s.rules[policyID]
	if !ok {
		return nil, &NotFoundError{Entity: "policy", ID: policyID}
	}
	out := make([]model.Rule, 0, len(byID))
	for _, slot := range byID {
		out = append(out, slot.rule.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RuleID < out[j].RuleID })
	return out, nil
}

func (s *MemoryStore) CompareAndSwapRule(r model.Rule, version uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	byID, ok := s.rules[r.PolicyID]
	if !ok {
		return &NotFoundError{Entity: "policy", ID: r.PolicyID}
	}
	slot, ok := byID[r.RuleID]
	if !ok {
		return &NotFoundError{Entity: "rule", ID: r.RuleID}
	}
	if slot.version != version {
		return &VersionConflictError{PolicyID: r.PolicyID, RuleID: r.RuleID}
	}
	slot.rule = r.Clone()
	slot.version++
	return nil
}
