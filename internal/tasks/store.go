package tasks

import (
	"fmt"
	"sort"
	"sync"

	"github.com/policygate/policygate/internal/model"
)

// Store persists tasks. Task reads carry a version counter; writes go
// through CompareAndSwapTask so a transition validated against stale state
// cannot be applied.
type Store interface {
	// SaveTask stores a freshly generated task. Identifiers are
	// system-generated, so a collision is a caller bug.
	SaveTask(t model.Task) error

	// GetTask returns the task and the version the caller must present to
	// CompareAndSwapTask.
	GetTask(taskID string) (model.Task, uint64, error)

	// ListTasks returns every task ordered by creation time, identifier
	// breaking ties.
	ListTasks() ([]model.Task, error)

	// CompareAndSwapTask replaces the stored task if its version still
	// equals version, and fails with VersionConflictError otherwise.
	CompareAndSwapTask(t model.Task, version uint64) error
}

type taskSlot struct {
	task    model.Task
	version uint64
}

// MemoryStore is the in-process Store used by tests and by deployments that
// do not need persistence across restarts.
type MemoryStore struct {
	mu    sync.Mutex
	tasks map[string]*taskSlot
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tasks: make(map[string]*taskSlot)}
}

func (s *MemoryStore) SaveTask(t model.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tasks[t.TaskID]; ok {
		return fmt.Errorf("task %q already exists", t.TaskID)
	}
	s.tasks[t.TaskID] = &taskSlot{task: t.Clone(), version: 1}
	return nil
}

func (s *MemoryStore) GetTask(taskID string) (model.Task, uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	slot, ok := s.tasks[taskID]
	if !ok {
		return model.Task{}, 0, &NotFoundError{TaskID: taskID}
	}
	return slot.task.Clone(), slot.version, nil
}

func (s *MemoryStore) ListTasks() ([]model.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.Task, 0, len(s.tasks))
	for _, slot := range s.tasks {
		out = append(out, slot.task.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].TaskID < out[j].TaskID
	})
	return out, nil
}

func (s *MemoryStore) CompareAndSwapTask(t model.Task, version uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	slot, ok := s.tasks[t.TaskID]
	if !ok {
		return &NotFoundError{TaskID: t.TaskID}
	}
	if slot.version != version {
		return &VersionConflictError{TaskID: t.TaskID}
	}
	slot.task = t.Clone()
	slot.version++
	return nil
}
