package audit

import (
	"fmt"
	"strings"

	"github.com/policygate/policygate/internal/model"
)

// HistoryStep is one audited event in a task's life.
type HistoryStep struct {
	Timestamp string           `json:"ts"`
	Action    string           `json:"action"`
	Role      string           `json:"role"`
	Status    model.TaskStatus `json:"status,omitempty"`
}

// History is a task's lifecycle reconstructed purely from the audit log.
// Dashboards use this to show what happened without touching the task store.
type History struct {
	TaskID    string             `json:"task_id"`
	Steps     []HistoryStep      `json:"steps"`
	Statuses  []model.TaskStatus `json:"statuses"`
	ValidWalk bool               `json:"valid_walk"`
	Problem   string             `json:"problem,omitempty"`
}

// TaskHistory replays all entries for a task, in insertion order, into a
// status walk and checks that walk against the transition table: it must
// start at CREATED and every step must be an allowed transition.
func TaskHistory(l *Log, taskID string) *History {
	h := &History{TaskID: taskID}

	for _, e := range l.TaskEntries(taskID) {
		step := HistoryStep{Timestamp: e.Timestamp, Action: e.Action, Role: e.Role}
		if st, ok := statusFromAction(e.Action); ok {
			step.Status = st
			h.Statuses = append(h.Statuses, st)
		}
		h.Steps = append(h.Steps, step)
	}

	h.ValidWalk, h.Problem = checkWalk(h.Statuses)
	return h
}

// statusFromAction maps an audit action string back to the status the task
// held after the event. Inverse of the Action helpers in entry.go.
func statusFromAction(action string) (model.TaskStatus, bool) {
	switch {
	case action == ActionCreated:
		return model.StatusCreated, true
	case strings.HasPrefix(action, "STATUS_UPDATE: "):
		parts := strings.Split(strings.TrimPrefix(action, "STATUS_UPDATE: "), " -> ")
		if len(parts) != 2 {
			return "", false
		}
		return model.ParseStatus(parts[1])
	case strings.HasPrefix(action, "ESCALATED to "):
		return model.StatusEscalated, true
	default:
		return "", false
	}
}

// checkWalk validates a status sequence against the transition table.
func checkWalk(statuses []model.TaskStatus) (bool, string) {
	if len(statuses) == 0 {
		return false, "no status events recorded"
	}
	if statuses[0] != model.StatusCreated {
		return false, fmt.Sprintf("walk starts at %s, expected %s", statuses[0], model.StatusCreated)
	}
	for i := 1; i < len(statuses); i++ {
		if !statuses[i-1].CanTransition(statuses[i]) {
			return false, fmt.Sprintf("illegal transition %s -> %s at step %d", statuses[i-1], statuses[i], i)
		}
	}
	return true, ""
}
