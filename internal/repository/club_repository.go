package repository

import (
	"context"

	"github.com/BrainstormWilly/yno-libero-vino-sub003/internal/domain"
)

// ClubProgramRepository defines the interface for club program data access
type ClubProgramRepository interface {
	// Create creates a new club program
	Create(ctx context.Context, program *domain.ClubProgram) error
	// GetByID retrieves a program by ID
	GetByID(ctx context.Context, id string) (*domain.ClubProgram, error)
	// GetByClientID retrieves a client's active program. Each client has
	// at most one.
	GetByClientID(ctx context.Context, clientID string) (*domain.ClubProgram, error)
	// Update updates a program
	Update(ctx context.Context, program *domain.ClubProgram) error
}

// ClubStageRepository defines the interface for club stage data access
type ClubStageRepository interface {
	// Create creates a new stage
	Create(ctx context.Context, stage *domain.ClubStage) error
	// GetByID retrieves a stage by ID
	GetByID(ctx context.Context, id string) (*domain.ClubStage, error)
	// ListByProgram retrieves a program's stages ordered ascending by
	// stage_order, optionally active ones only
	ListByProgram(ctx context.Context, programID string, activeOnly bool) ([]*domain.ClubStage, error)
	// Update updates a stage
	Update(ctx context.Context, stage *domain.ClubStage) error
	// SoftDelete soft deletes a stage
	SoftDelete(ctx context.Context, id string) error
	// ActiveOrderTaken checks whether another active stage of the program
	// already holds the given stage_order
	ActiveOrderTaken(ctx context.Context, programID string, stageOrder int, excludeID string) (bool, error)
}
