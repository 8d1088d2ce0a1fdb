package sync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// WorkflowState is one step of the enrollment sync workflow. A workflow
// walks pending -> customer_synced -> membership_created -> completed;
// failed and cancelled are the terminal exits.
type WorkflowState string

const (
	StatePending           WorkflowState = "pending"
	StateCustomerSynced    WorkflowState = "customer_synced"
	StateMembershipCreated WorkflowState = "membership_created"
	StateCompleted         WorkflowState = "completed"
	StateFailed            WorkflowState = "failed"
	StateCancelled         WorkflowState = "cancelled"
)

var (
	// ErrInvalidStateTransition is returned when a state transition is not allowed
	ErrInvalidStateTransition = errors.New("invalid state transition")
	// ErrWorkflowNotFound is returned when a workflow is not found
	ErrWorkflowNotFound = errors.New("enrollment workflow not found")
)

// validTransitions defines allowed state transitions.
// Key is current state, value is list of allowed next states.
var validTransitions = map[WorkflowState][]WorkflowState{
	StatePending:           {StateCustomerSynced, StateFailed, StateCancelled},
	StateCustomerSynced:    {StateMembershipCreated, StateFailed, StateCancelled},
	StateMembershipCreated: {StateCompleted, StateFailed},
	StateCompleted:         {}, // Terminal state
	StateFailed:            {}, // Terminal state
	StateCancelled:         {}, // Terminal state
}

// IsTerminal returns true if the state is a terminal state
func (s WorkflowState) IsTerminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateCancelled
}

// IsValid returns true if the state is a known workflow state
func (s WorkflowState) IsValid() bool {
	_, exists := validTransitions[s]
	return exists
}

// CanTransitionTo returns true if transition to the target state is allowed
func (s WorkflowState) CanTransitionTo(target WorkflowState) bool {
	allowed, exists := validTransitions[s]
	if !exists {
		return false
	}
	for _, next := range allowed {
		if next == target {
			return true
		}
	}
	return false
}

// OpenStates are the non-terminal states a resume pass re-drives, in
// workflow order.
var OpenStates = []WorkflowState{StatePending, StateCustomerSynced, StateMembershipCreated}

// EnrollmentWorkflow tracks one enrollment's progress through the
// platform writes. Each step is idempotent on the platform side, so a
// crashed workflow can be re-driven from its last recorded state.
type EnrollmentWorkflow struct {
	ID                   string         `json:"id"`
	EnrollmentID         string         `json:"enrollment_id"`
	ClientID             string         `json:"client_id"`
	CustomerID           string         `json:"customer_id"`
	ClubStageID          string         `json:"club_stage_id"`
	State                WorkflowState  `json:"state"`
	PreviousState        WorkflowState  `json:"previous_state,omitempty"`
	Data                 map[string]any `json:"data"`
	PlatformCustomerID   string         `json:"platform_customer_id,omitempty"`
	PlatformClubID       string         `json:"platform_club_id,omitempty"`
	PlatformMembershipID string         `json:"platform_membership_id,omitempty"`
	ErrorMessage         string         `json:"error_message,omitempty"`
	RetryCount           int            `json:"retry_count"`
	CreatedAt            time.Time      `json:"created_at"`
	UpdatedAt            time.Time      `json:"updated_at"`
	CompletedAt          *time.Time     `json:"completed_at,omitempty"`
}

// StateTransition records one state change for audit and debugging
type StateTransition struct {
	ID         string        `json:"id"`
	WorkflowID string        `json:"workflow_id"`
	FromState  WorkflowState `json:"from_state"`
	ToState    WorkflowState `json:"to_state"`
	Reason     string        `json:"reason,omitempty"`
	Timestamp  time.Time     `json:"timestamp"`
}

// StateStore persists workflows and their transition history
type StateStore interface {
	// SaveWorkflow persists a new workflow
	SaveWorkflow(ctx context.Context, workflow *EnrollmentWorkflow) error
	// GetWorkflow retrieves a workflow by ID
	GetWorkflow(ctx context.Context, id string) (*EnrollmentWorkflow, error)
	// GetByEnrollmentID retrieves the workflow driving an enrollment
	GetByEnrollmentID(ctx context.Context, enrollmentID string) (*EnrollmentWorkflow, error)
	// UpdateWorkflow updates an existing workflow
	UpdateWorkflow(ctx context.Context, workflow *EnrollmentWorkflow) error
	// SaveTransition persists a state transition
	SaveTransition(ctx context.Context, transition *StateTransition) error
	// GetTransitions retrieves all transitions for a workflow
	GetTransitions(ctx context.Context, workflowID string) ([]StateTransition, error)
	// GetWorkflowsByState retrieves workflows in a given state
	GetWorkflowsByState(ctx context.Context, state WorkflowState, limit int) ([]*EnrollmentWorkflow, error)
}

// StateMachine validates and records workflow transitions
type StateMachine struct {
	store StateStore
}

// NewStateMachine creates a new state machine over a store
func NewStateMachine(store StateStore) *StateMachine {
	return &StateMachine{store: store}
}

// Begin creates a new workflow in pending state for an enrollment
func (sm *StateMachine) Begin(ctx context.Context, enrollmentID, clientID, customerID, clubStageID string, data map[string]any) (*EnrollmentWorkflow, error) {
	now := time.Now()
	if data == nil {
		data = make(map[string]any)
	}

	workflow := &EnrollmentWorkflow{
		ID:           uuid.New().String(),
		EnrollmentID: enrollmentID,
		ClientID:     clientID,
		CustomerID:   customerID,
		ClubStageID:  clubStageID,
		State:        StatePending,
		Data:         data,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := sm.store.SaveWorkflow(ctx, workflow); err != nil {
		return nil, fmt.Errorf("failed to save workflow: %w", err)
	}
	return workflow, nil
}

// TransitionTo transitions the workflow to a new state, recording the
// transition before the state is updated.
func (sm *StateMachine) TransitionTo(ctx context.Context, workflowID string, newState WorkflowState, reason string) (*EnrollmentWorkflow, error) {
	workflow, err := sm.store.GetWorkflow(ctx, workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to get workflow: %w", err)
	}

	if !workflow.State.CanTransitionTo(newState) {
		return nil, fmt.Errorf("%w: cannot transition from %s to %s", ErrInvalidStateTransition, workflow.State, newState)
	}

	transition := &StateTransition{
		ID:         uuid.New().String(),
		WorkflowID: workflowID,
		FromState:  workflow.State,
		ToState:    newState,
		Reason:     reason,
		Timestamp:  time.Now(),
	}
	if err := sm.store.SaveTransition(ctx, transition); err != nil {
		return nil, fmt.Errorf("failed to save transition: %w", err)
	}

	workflow.PreviousState = workflow.State
	workflow.State = newState
	workflow.UpdatedAt = time.Now()

	if newState.IsTerminal() {
		now := time.Now()
		workflow.CompletedAt = &now
	}

	if err := sm.store.UpdateWorkflow(ctx, workflow); err != nil {
		return nil, fmt.Errorf("failed to update workflow: %w", err)
	}
	return workflow, nil
}

// MarkCustomerSynced records that the platform customer exists
func (sm *StateMachine) MarkCustomerSynced(ctx context.Context, workflowID, platformCustomerID string) (*EnrollmentWorkflow, error) {
	workflow, err := sm.TransitionTo(ctx, workflowID, StateCustomerSynced, "Platform customer synced")
	if err != nil {
		return nil, err
	}

	workflow.PlatformCustomerID = platformCustomerID
	if err := sm.store.UpdateWorkflow(ctx, workflow); err != nil {
		return nil, fmt.Errorf("failed to update platform customer ID: %w", err)
	}
	return workflow, nil
}

// MarkMembershipCreated records the platform club membership
func (sm *StateMachine) MarkMembershipCreated(ctx context.Context, workflowID, platformClubID, platformMembershipID string) (*EnrollmentWorkflow, error) {
	workflow, err := sm.TransitionTo(ctx, workflowID, StateMembershipCreated, "Platform membership created")
	if err != nil {
		return nil, err
	}

	workflow.PlatformClubID = platformClubID
	workflow.PlatformMembershipID = platformMembershipID
	if err := sm.store.UpdateWorkflow(ctx, workflow); err != nil {
		return nil, fmt.Errorf("failed to update platform membership ID: %w", err)
	}
	return workflow, nil
}

// MarkCompleted transitions the workflow to its success terminal
func (sm *StateMachine) MarkCompleted(ctx context.Context, workflowID string) (*EnrollmentWorkflow, error) {
	return sm.TransitionTo(ctx, workflowID, StateCompleted, "Enrollment completed")
}

// RecordFailure notes a transient step failure without leaving the
// current state, so a later resume pass can re-drive the workflow.
func (sm *StateMachine) RecordFailure(ctx context.Context, workflowID, errorMessage string) (*EnrollmentWorkflow, error) {
	workflow, err := sm.store.GetWorkflow(ctx, workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to get workflow: %w", err)
	}
	if workflow.State.IsTerminal() {
		return nil, fmt.Errorf("%w: cannot record failure on terminal state %s", ErrInvalidStateTransition, workflow.State)
	}

	workflow.ErrorMessage = errorMessage
	workflow.RetryCount++
	workflow.UpdatedAt = time.Now()
	if err := sm.store.UpdateWorkflow(ctx, workflow); err != nil {
		return nil, fmt.Errorf("failed to record failure: %w", err)
	}
	return workflow, nil
}

// MarkFailed gives up on the workflow; failed is terminal and resume
// passes skip it
func (sm *StateMachine) MarkFailed(ctx context.Context, workflowID, errorMessage string) (*EnrollmentWorkflow, error) {
	workflow, err := sm.store.GetWorkflow(ctx, workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to get workflow: %w", err)
	}
	if workflow.State.IsTerminal() {
		return nil, fmt.Errorf("%w: cannot transition from terminal state %s", ErrInvalidStateTransition, workflow.State)
	}

	workflow, err = sm.TransitionTo(ctx, workflowID, StateFailed, errorMessage)
	if err != nil {
		return nil, err
	}

	workflow.ErrorMessage = errorMessage
	if err := sm.store.UpdateWorkflow(ctx, workflow); err != nil {
		return nil, fmt.Errorf("failed to update error message: %w", err)
	}
	return workflow, nil
}

// MarkCancelled abandons a workflow that has not created a platform
// membership yet
func (sm *StateMachine) MarkCancelled(ctx context.Context, workflowID, reason string) (*EnrollmentWorkflow, error) {
	workflow, err := sm.store.GetWorkflow(ctx, workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to get workflow: %w", err)
	}

	if workflow.State != StatePending && workflow.State != StateCustomerSynced {
		return nil, fmt.Errorf("%w: can only cancel before the platform membership exists", ErrInvalidStateTransition)
	}
	return sm.TransitionTo(ctx, workflowID, StateCancelled, reason)
}

// GetWorkflow retrieves a workflow by ID
func (sm *StateMachine) GetWorkflow(ctx context.Context, workflowID string) (*EnrollmentWorkflow, error) {
	return sm.store.GetWorkflow(ctx, workflowID)
}

// GetByEnrollmentID retrieves the workflow driving an enrollment
func (sm *StateMachine) GetByEnrollmentID(ctx context.Context, enrollmentID string) (*EnrollmentWorkflow, error) {
	return sm.store.GetByEnrollmentID(ctx, enrollmentID)
}

// GetTransitionHistory retrieves all transitions for a workflow
func (sm *StateMachine) GetTransitionHistory(ctx context.Context, workflowID string) ([]StateTransition, error) {
	return sm.store.GetTransitions(ctx, workflowID)
}

// OpenWorkflows retrieves workflows that have not reached a terminal
// state, oldest states first
func (sm *StateMachine) OpenWorkflows(ctx context.Context, limit int) ([]*EnrollmentWorkflow, error) {
	var result []*EnrollmentWorkflow
	for _, state := range OpenStates {
		workflows, err := sm.store.GetWorkflowsByState(ctx, state, limit)
		if err != nil {
			return nil, err
		}
		result = append(result, workflows...)
		if limit > 0 && len(result) >= limit {
			return result[:limit], nil
		}
	}
	return result, nil
}
