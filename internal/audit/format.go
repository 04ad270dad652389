package audit

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/policygate/policygate/internal/model"
)

const separator = "──────────────────────────────────────────────────────────────────"

// FormatTimeline renders a task History as a human-readable text timeline.
func FormatTimeline(h *History) string {
	if len(h.Steps) == 0 {
		return fmt.Sprintf("Task: %s | No audit entries found.\n", h.TaskID)
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("Task: %s | %s–%s UTC\n",
		h.TaskID,
		formatDate(h.Steps[0].Timestamp),
		formatClock(h.Steps[len(h.Steps)-1].Timestamp)))
	b.WriteString(separator + "\n")

	for _, s := range h.Steps {
		status := string(s.Status)
		if status == "" {
			status = "-"
		}
		b.WriteString(fmt.Sprintf("%-10s %-12s %-10s %s\n",
			formatClock(s.Timestamp), status, s.Role, s.Action))
	}

	b.WriteString(separator + "\n")
	if h.ValidWalk {
		b.WriteString(fmt.Sprintf("Walk: valid (%d status events)\n", len(h.Statuses)))
	} else {
		b.WriteString(fmt.Sprintf("Walk: INVALID: %s\n", h.Problem))
	}
	return b.String()
}

// FormatJSON renders a History as indented JSON.
func FormatJSON(h *History) (string, error) {
	data, err := json.MarshalIndent(h, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal history: %w", err)
	}
	return string(data), nil
}

func formatDate(ts string) string {
	t, err := time.Parse(model.TimestampFormat, ts)
	if err != nil {
		return ts
	}
	return t.Format("2006-01-02 15:04:05")
}

func formatClock(ts string) string {
	t, err := time.Parse(model.TimestampFormat, ts)
	if err != nil {
		return ts
	}
	return t.Format("15:04:05")
}
