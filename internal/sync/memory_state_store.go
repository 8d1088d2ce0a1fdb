package sync

import (
	"context"
	"fmt"
	"sync"
)

// MemoryStateStore is an in-memory StateStore for tests and local
// development. Safe for concurrent use.
type MemoryStateStore struct {
	mu             sync.RWMutex
	workflows      map[string]*EnrollmentWorkflow
	transitions    map[string][]StateTransition
	byEnrollmentID map[string]string
}

// NewMemoryStateStore creates a new in-memory state store
func NewMemoryStateStore() *MemoryStateStore {
	return &MemoryStateStore{
		workflows:      make(map[string]*EnrollmentWorkflow),
		transitions:    make(map[string][]StateTransition),
		byEnrollmentID: make(map[string]string),
	}
}

// SaveWorkflow persists a new workflow
func (s *MemoryStateStore) SaveWorkflow(ctx context.Context, workflow *EnrollmentWorkflow) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.workflows[workflow.ID]; exists {
		return fmt.Errorf("workflow %s already exists", workflow.ID)
	}

	s.workflows[workflow.ID] = copyWorkflow(workflow)
	s.byEnrollmentID[workflow.EnrollmentID] = workflow.ID
	return nil
}

// GetWorkflow retrieves a workflow by ID
func (s *MemoryStateStore) GetWorkflow(ctx context.Context, id string) (*EnrollmentWorkflow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	workflow, exists := s.workflows[id]
	if !exists {
		return nil, ErrWorkflowNotFound
	}
	return copyWorkflow(workflow), nil
}

// GetByEnrollmentID retrieves the workflow driving an enrollment
func (s *MemoryStateStore) GetByEnrollmentID(ctx context.Context, enrollmentID string) (*EnrollmentWorkflow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, exists := s.byEnrollmentID[enrollmentID]
	if !exists {
		return nil, ErrWorkflowNotFound
	}

	workflow, exists := s.workflows[id]
	if !exists {
		return nil, ErrWorkflowNotFound
	}
	return copyWorkflow(workflow), nil
}

// UpdateWorkflow updates an existing workflow
func (s *MemoryStateStore) UpdateWorkflow(ctx context.Context, workflow *EnrollmentWorkflow) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.workflows[workflow.ID]; !exists {
		return ErrWorkflowNotFound
	}

	s.workflows[workflow.ID] = copyWorkflow(workflow)
	return nil
}

// SaveTransition persists a state transition
func (s *MemoryStateStore) SaveTransition(ctx context.Context, transition *StateTransition) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.transitions[transition.WorkflowID] = append(s.transitions[transition.WorkflowID], *transition)
	return nil
}

// GetTransitions retrieves all transitions for a workflow in order
func (s *MemoryStateStore) GetTransitions(ctx context.Context, workflowID string) ([]StateTransition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	transitions := s.transitions[workflowID]
	result := make([]StateTransition, len(transitions))
	copy(result, transitions)
	return result, nil
}

// GetWorkflowsByState retrieves workflows in a given state
func (s *MemoryStateStore) GetWorkflowsByState(ctx context.Context, state WorkflowState, limit int) ([]*EnrollmentWorkflow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*EnrollmentWorkflow
	for _, workflow := range s.workflows {
		if workflow.State != state {
			continue
		}
		result = append(result, copyWorkflow(workflow))
		if limit > 0 && len(result) >= limit {
			break
		}
	}
	return result, nil
}

// Clear removes all workflows and transitions. Test helper.
func (s *MemoryStateStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.workflows = make(map[string]*EnrollmentWorkflow)
	s.transitions = make(map[string][]StateTransition)
	s.byEnrollmentID = make(map[string]string)
}

// Count returns the number of stored workflows. Test helper.
func (s *MemoryStateStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.workflows)
}

// copyWorkflow deep-copies a workflow so callers cannot mutate stored state
func copyWorkflow(workflow *EnrollmentWorkflow) *EnrollmentWorkflow {
	copied := *workflow

	if workflow.Data != nil {
		copied.Data = make(map[string]any, len(workflow.Data))
		for k, v := range workflow.Data {
			copied.Data[k] = v
		}
	}
	if workflow.CompletedAt != nil {
		completedAt := *workflow.CompletedAt
		copied.CompletedAt = &completedAt
	}
	return &copied
}
