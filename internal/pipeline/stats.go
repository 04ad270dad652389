package pipeline

import "github.com/policygate/policygate/internal/model"

// Stats is the dashboard summary over everything the pipeline holds.
type Stats struct {
	Policies       int            `json:"policies"`
	Rules          int            `json:"rules"`
	AmbiguousRules int            `json:"ambiguous_rules"`
	ResolvedRules  int            `json:"resolved_rules"`
	Tasks          int            `json:"tasks"`
	TasksByStatus  map[string]int `json:"tasks_by_status"`
	AuditEntries   int            `json:"audit_entries"`
}

// Stats counts policies, rules by ambiguity, and tasks by status.
func (p *Pipeline) Stats() (Stats, error) {
	s := Stats{TasksByStatus: make(map[string]int)}

	policies, err := p.rules.ListPolicies()
	if err != nil {
		return Stats{}, err
	}
	s.Policies = len(policies)
	for _, pol := range policies {
		rs, err := p.rules.ListRules(pol.PolicyID)
		if err != nil {
			return Stats{}, err
		}
		s.Rules += len(rs)
		for _, r := range rs {
			if r.Resolved() {
				s.ResolvedRules++
			} else {
				s.AmbiguousRules++
			}
		}
	}

	all, err := p.tasks.ListTasks()
	if err != nil {
		return Stats{}, err
	}
	s.Tasks = len(all)
	for _, t := range all {
		s.TasksByStatus[string(t.Status)]++
	}
	for _, status := range []model.TaskStatus{
		model.StatusCreated,
		model.StatusAssigned,
		model.StatusInProgress,
		model.StatusCompleted,
		model.StatusEscalated,
	} {
		if _, ok := s.TasksByStatus[string(status)]; !ok {
			s.TasksByStatus[string(status)] = 0
		}
	}

	s.AuditEntries = p.log.Len()
	return s, nil
}
