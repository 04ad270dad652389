package model

// TaskStatus is the lifecycle state of a task.
type TaskStatus string

const (
	StatusCreated    TaskStatus = "CREATED"
	StatusAssigned   TaskStatus = "ASSIGNED"
	StatusInProgress TaskStatus = "IN_PROGRESS"
	StatusCompleted  TaskStatus = "COMPLETED"
	StatusEscalated  TaskStatus = "ESCALATED"
)

// transitions is the full lifecycle table. CREATED is the sole initial
// state; COMPLETED is the sole terminal state.
var transitions = map[TaskStatus][]TaskStatus{
	StatusCreated:    {StatusAssigned},
	StatusAssigned:   {StatusInProgress},
	StatusInProgress: {StatusCompleted, StatusEscalated},
	StatusEscalated:  {StatusAssigned},
	StatusCompleted:  {},
}

// ParseStatus resolves a status name. Returns ("", false) for unknown values.
func ParseStatus(s string) (TaskStatus, bool) {
	switch TaskStatus(s) {
	case StatusCreated, StatusAssigned, StatusInProgress, StatusCompleted, StatusEscalated:
		return TaskStatus(s), true
	default:
		return "", false
	}
}

// Valid returns true if s is a known status.
func (s TaskStatus) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// CanTransition reports whether the table allows s → target.
func (s TaskStatus) CanTransition(target TaskStatus) bool {
	for _, t := range transitions[s] {
		if t == target {
			return true
		}
	}
	return false
}

// Targets returns the allowed next statuses from s.
func (s TaskStatus) Targets() []TaskStatus {
	out := make([]TaskStatus, len(transitions[s]))
	copy(out, transitions[s])
	return out
}

// Terminal returns true if s has no outgoing transitions.
func (s TaskStatus) Terminal() bool {
	return len(transitions[s]) == 0 && s.Valid()
}
