package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStateStore implements StateStore using PostgreSQL
type PostgresStateStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStateStore creates a new PostgreSQL-based state store
func NewPostgresStateStore(pool *pgxpool.Pool) *PostgresStateStore {
	return &PostgresStateStore{pool: pool}
}

// SaveWorkflow persists a new workflow
func (s *PostgresStateStore) SaveWorkflow(ctx context.Context, workflow *EnrollmentWorkflow) error {
	dataJSON, err := json.Marshal(workflow.Data)
	if err != nil {
		return fmt.Errorf("failed to marshal workflow data: %w", err)
	}

	query := `
		INSERT INTO enrollment_workflows (
			id, enrollment_id, client_id, customer_id, club_stage_id,
			state, previous_state, data, platform_customer_id,
			platform_club_id, platform_membership_id,
			error_message, retry_count, created_at, updated_at, completed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`

	_, err = s.pool.Exec(ctx, query,
		workflow.ID,
		workflow.EnrollmentID,
		workflow.ClientID,
		workflow.CustomerID,
		workflow.ClubStageID,
		string(workflow.State),
		nullableState(workflow.PreviousState),
		dataJSON,
		nullable(workflow.PlatformCustomerID),
		nullable(workflow.PlatformClubID),
		nullable(workflow.PlatformMembershipID),
		nullable(workflow.ErrorMessage),
		workflow.RetryCount,
		workflow.CreatedAt,
		workflow.UpdatedAt,
		workflow.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save workflow: %w", err)
	}

	return nil
}

// GetWorkflow retrieves a workflow by ID
func (s *PostgresStateStore) GetWorkflow(ctx context.Context, id string) (*EnrollmentWorkflow, error) {
	query := workflowSelect + ` WHERE id = $1`
	return s.scanWorkflow(s.pool.QueryRow(ctx, query, id))
}

// GetByEnrollmentID retrieves the workflow driving an enrollment
func (s *PostgresStateStore) GetByEnrollmentID(ctx context.Context, enrollmentID string) (*EnrollmentWorkflow, error) {
	query := workflowSelect + ` WHERE enrollment_id = $1 ORDER BY created_at DESC LIMIT 1`
	return s.scanWorkflow(s.pool.QueryRow(ctx, query, enrollmentID))
}

const workflowSelect = `
	SELECT id, enrollment_id, client_id, customer_id, club_stage_id,
		   state, previous_state, data, platform_customer_id,
		   platform_club_id, platform_membership_id,
		   error_message, retry_count, created_at, updated_at, completed_at
	FROM enrollment_workflows`

// scanWorkflow scans a row into an EnrollmentWorkflow
func (s *PostgresStateStore) scanWorkflow(row pgx.Row) (*EnrollmentWorkflow, error) {
	var workflow EnrollmentWorkflow
	var state, previousState *string
	var dataJSON []byte
	var platformCustomerID, platformClubID, platformMembershipID, errorMessage *string

	err := row.Scan(
		&workflow.ID,
		&workflow.EnrollmentID,
		&workflow.ClientID,
		&workflow.CustomerID,
		&workflow.ClubStageID,
		&state,
		&previousState,
		&dataJSON,
		&platformCustomerID,
		&platformClubID,
		&platformMembershipID,
		&errorMessage,
		&workflow.RetryCount,
		&workflow.CreatedAt,
		&workflow.UpdatedAt,
		&workflow.CompletedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrWorkflowNotFound
		}
		return nil, fmt.Errorf("failed to scan workflow: %w", err)
	}

	if state != nil {
		workflow.State = WorkflowState(*state)
	}
	if previousState != nil {
		workflow.PreviousState = WorkflowState(*previousState)
	}
	if platformCustomerID != nil {
		workflow.PlatformCustomerID = *platformCustomerID
	}
	if platformClubID != nil {
		workflow.PlatformClubID = *platformClubID
	}
	if platformMembershipID != nil {
		workflow.PlatformMembershipID = *platformMembershipID
	}
	if errorMessage != nil {
		workflow.ErrorMessage = *errorMessage
	}

	if len(dataJSON) > 0 {
		if err := json.Unmarshal(dataJSON, &workflow.Data); err != nil {
			return nil, fmt.Errorf("failed to unmarshal workflow data: %w", err)
		}
	} else {
		workflow.Data = make(map[string]any)
	}

	return &workflow, nil
}

// UpdateWorkflow updates an existing workflow
func (s *PostgresStateStore) UpdateWorkflow(ctx context.Context, workflow *EnrollmentWorkflow) error {
	dataJSON, err := json.Marshal(workflow.Data)
	if err != nil {
		return fmt.Errorf("failed to marshal workflow data: %w", err)
	}

	query := `
		UPDATE enrollment_workflows
		SET state = $2,
			previous_state = $3,
			data = $4,
			platform_customer_id = $5,
			platform_club_id = $6,
			platform_membership_id = $7,
			error_message = $8,
			retry_count = $9,
			updated_at = $10,
			completed_at = $11
		WHERE id = $1
	`

	result, err := s.pool.Exec(ctx, query,
		workflow.ID,
		string(workflow.State),
		nullableState(workflow.PreviousState),
		dataJSON,
		nullable(workflow.PlatformCustomerID),
		nullable(workflow.PlatformClubID),
		nullable(workflow.PlatformMembershipID),
		nullable(workflow.ErrorMessage),
		workflow.RetryCount,
		time.Now(),
		workflow.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update workflow: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrWorkflowNotFound
	}

	return nil
}

// SaveTransition persists a state transition
func (s *PostgresStateStore) SaveTransition(ctx context.Context, transition *StateTransition) error {
	query := `
		INSERT INTO workflow_transitions (id, workflow_id, from_state, to_state, reason, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := s.pool.Exec(ctx, query,
		transition.ID,
		transition.WorkflowID,
		string(transition.FromState),
		string(transition.ToState),
		nullable(transition.Reason),
		transition.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to save transition: %w", err)
	}

	return nil
}

// GetTransitions retrieves all transitions for a workflow
func (s *PostgresStateStore) GetTransitions(ctx context.Context, workflowID string) ([]StateTransition, error) {
	query := `
		SELECT id, workflow_id, from_state, to_state, reason, timestamp
		FROM workflow_transitions
		WHERE workflow_id = $1
		ORDER BY timestamp ASC
	`

	rows, err := s.pool.Query(ctx, query, workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to get transitions: %w", err)
	}
	defer rows.Close()

	var transitions []StateTransition
	for rows.Next() {
		var t StateTransition
		var fromState, toState string
		var reason *string

		if err := rows.Scan(&t.ID, &t.WorkflowID, &fromState, &toState, &reason, &t.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan transition: %w", err)
		}

		t.FromState = WorkflowState(fromState)
		t.ToState = WorkflowState(toState)
		if reason != nil {
			t.Reason = *reason
		}

		transitions = append(transitions, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transitions: %w", err)
	}

	return transitions, nil
}

// GetWorkflowsByState retrieves workflows in a given state, oldest first
func (s *PostgresStateStore) GetWorkflowsByState(ctx context.Context, state WorkflowState, limit int) ([]*EnrollmentWorkflow, error) {
	query := workflowSelect + ` WHERE state = $1 ORDER BY created_at ASC`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := s.pool.Query(ctx, query, string(state))
	if err != nil {
		return nil, fmt.Errorf("failed to get workflows by state: %w", err)
	}
	defer rows.Close()

	var workflows []*EnrollmentWorkflow
	for rows.Next() {
		workflow, err := s.scanWorkflow(rows)
		if err != nil {
			return nil, err
		}
		workflows = append(workflows, workflow)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating workflows: %w", err)
	}

	return workflows, nil
}

// nullable maps "" to SQL NULL
func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// nullableState maps the zero state to SQL NULL
func nullableState(s WorkflowState) *string {
	if s == "" {
		return nil
	}
	str := string(s)
	return &str
}
