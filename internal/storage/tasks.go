package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/policygate/policygate/internal/model"
	"github.com/policygate/policygate/internal/tasks"
)

const taskColumns = `task_id, policy_id, rule_id, name, assigned_role,
	status, deadline, escalated_to, created_at, updated_at, version`

func (s *Store) SaveTask(t model.Task) error {
	_, err := s.db.Exec(
		`INSERT INTO tasks
		 (task_id, policy_id, rule_id, name, assigned_role, status,
		  deadline, escalated_to, created_at, updated_at, version)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1)`,
		t.TaskID, t.PolicyID, t.RuleID, t.Name, string(t.AssignedRole), string(t.Status),
		t.Deadline, string(t.EscalatedTo),
		t.CreatedAt.UTC().Format(time.RFC3339Nano),
		t.UpdatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return &tasks.StorageError{Op: "insert task", Err: err}
	}
	return nil
}

func (s *Store) GetTask(taskID string) (model.Task, uint64, error) {
	row := s.db.QueryRow(
		fmt.Sprintf(`SELECT %s FROM tasks WHERE task_id = ?`, taskColumns), taskID,
	)
	t, version, err := scanTask(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Task{}, 0, &tasks.NotFoundError{TaskID: taskID}
	}
	if err != nil {
		return model.Task{}, 0, &tasks.StorageError{Op: "load task", Err: err}
	}
	return t, version, nil
}

func (s *Store) ListTasks() ([]model.Task, error) {
	rows, err := s.db.Query(
		fmt.Sprintf(`SELECT %s FROM tasks ORDER BY created_at, task_id`, taskColumns),
	)
	if err != nil {
		return nil, &tasks.StorageError{Op: "list tasks", Err: err}
	}
	defer rows.Close()

	var out []model.Task
	for rows.Next() {
		t, _, err := scanTask(rows.Scan)
		if err != nil {
			return nil, &tasks.StorageError{Op: "scan task", Err: err}
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, &tasks.StorageError{Op: "list tasks", Err: err}
	}
	return out, nil
}

func (s *Store) CompareAndSwapTask(t model.Task, version uint64) error {
	res, err := s.db.Exec(
		`UPDATE tasks SET
			name = ?, assigned_role = ?, status = ?, deadline = ?,
			escalated_to = ?, updated_at = ?, version = version + 1
		 WHERE task_id = ? AND version = ?`,
		t.Name, string(t.AssignedRole), string(t.Status), t.Deadline,
		string(t.EscalatedTo), t.UpdatedAt.UTC().Format(time.RFC3339Nano),
		t.TaskID, version,
	)
	if err != nil {
		return &tasks.StorageError{Op: "swap task", Err: err}
	}
	n, err := res.RowsAffected()
	if err != nil {
		return &tasks.StorageError{Op: "swap task", Err: err}
	}
	if n == 0 {
		if _, _, err := s.GetTask(t.TaskID); err != nil {
			return err
		}
		return &tasks.VersionConflictError{TaskID: t.TaskID}
	}
	return nil
}

func scanTask(scan func(dest ...any) error) (model.Task, uint64, error) {
	var t model.Task
	var role, status, escalated, createdAt, updatedAt string
	var version uint64
	err := scan(
		&t.TaskID, &t.PolicyID, &t.RuleID, &t.Name, &role,
		&status, &t.Deadline, &escalated, &createdAt, &updatedAt, &version,
	)
	if err != nil {
		return model.Task{}, 0, err
	}
	t.AssignedRole = model.Role(role)
	t.Status = model.TaskStatus(status)
	t.EscalatedTo = model.Role(escalated)
	if t.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return model.Task{}, 0, err
	}
	if t.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return model.Task{}, 0, err
	}
	return t, version, nil
}
