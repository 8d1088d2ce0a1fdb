package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BrainstormWilly/yno-libero-vino-sub003/internal/crm"
	"github.com/BrainstormWilly/yno-libero-vino-sub003/internal/domain"
	"github.com/BrainstormWilly/yno-libero-vino-sub003/internal/dto"
	"github.com/BrainstormWilly/yno-libero-vino-sub003/internal/repository"
	"github.com/BrainstormWilly/yno-libero-vino-sub003/pkg/logger"
)

var (
	ErrStageOrderTaken = errors.New("another active stage already holds this stage_order")
	ErrStageInUse      = errors.New("open enrollments still reference this stage")
)

// StageService defines the interface for club program and tier
// management. Saves push the ladder to the platform club and keep each
// tier's platform discount in step with its percentage.
type StageService interface {
	// EnsureProgram creates the client's program on first call and
	// returns the existing one afterwards
	EnsureProgram(ctx context.Context, clientID string, req *dto.CreateProgramRequest) (*domain.ClubProgram, error)
	// GetProgram retrieves the client's program, nil when none exists
	GetProgram(ctx context.Context, clientID string) (*domain.ClubProgram, error)
	// UpdateProgram updates program metadata
	UpdateProgram(ctx context.Context, clientID string, req *dto.UpdateProgramRequest) (*domain.ClubProgram, error)
	// CreateStage adds a tier to the ladder
	CreateStage(ctx context.Context, clientID string, req *dto.CreateStageRequest) (*domain.ClubStage, error)
	// GetStage retrieves one stage within the client's scope
	GetStage(ctx context.Context, clientID, stageID string) (*domain.ClubStage, error)
	// ListStages retrieves the client's tier ladder, ascending by
	// stage_order
	ListStages(ctx context.Context, clientID string, activeOnly bool) ([]*domain.ClubStage, error)
	// UpdateStage applies a partial update, re-provisioning the platform
	// discount when the percentage changed
	UpdateStage(ctx context.Context, clientID, stageID string, req *dto.UpdateStageRequest) (*domain.ClubStage, error)
	// DeleteStage retires a tier no open enrollment references
	DeleteStage(ctx context.Context, clientID, stageID string) error
}

// stageService implements StageService
type stageService struct {
	clients     repository.ClientRepository
	programs    repository.ClubProgramRepository
	stages      repository.ClubStageRepository
	enrollments repository.EnrollmentRepository
	providers   ProviderFactory
}

// NewStageService creates a new StageService
func NewStageService(clients repository.ClientRepository, programs repository.ClubProgramRepository, stages repository.ClubStageRepository, enrollments repository.EnrollmentRepository, providers ProviderFactory) StageService {
	return &stageService{
		clients:     clients,
		programs:    programs,
		stages:      stages,
		enrollments: enrollments,
		providers:   providers,
	}
}

// EnsureProgram creates the client's program on first call
func (s *stageService) EnsureProgram(ctx context.Context, clientID string, req *dto.CreateProgramRequest) (*domain.ClubProgram, error) {
	client, err := s.clients.GetByID(ctx, clientID)
	if err != nil {
		return nil, fmt.Errorf("failed to get client: %w", err)
	}
	if client == nil {
		return nil, ErrClientNotFound
	}

	existing, err := s.programs.GetByClientID(ctx, clientID)
	if err != nil {
		return nil, fmt.Errorf("failed to load club program: %w", err)
	}
	if existing != nil {
		return existing, nil
	}

	now := time.Now()
	program := &domain.ClubProgram{
		ID:          uuid.New().String(),
		ClientID:    clientID,
		Name:        req.Name,
		Description: req.Description,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.programs.Create(ctx, program); err != nil {
		return nil, fmt.Errorf("failed to create club program: %w", err)
	}

	s.syncPlatformClub(ctx, client, program)

	logger.InfoCtx(ctx, "club program created",
		zap.String("client_id", clientID),
		zap.String("program_id", program.ID))
	return program, nil
}

// GetProgram retrieves the client's program
func (s *stageService) GetProgram(ctx context.Context, clientID string) (*domain.ClubProgram, error) {
	return s.programs.GetByClientID(ctx, clientID)
}

// UpdateProgram updates program metadata
func (s *stageService) UpdateProgram(ctx context.Context, clientID string, req *dto.UpdateProgramRequest) (*domain.ClubProgram, error) {
	client, err := s.clients.GetByID(ctx, clientID)
	if err != nil {
		return nil, fmt.Errorf("failed to get client: %w", err)
	}
	if client == nil {
		return nil, ErrClientNotFound
	}
	program, err := s.programs.GetByClientID(ctx, clientID)
	if err != nil {
		return nil, fmt.Errorf("failed to load club program: %w", err)
	}
	if program == nil {
		return nil, ErrNoProgram
	}

	changed := false
	if req.Name != nil && *req.Name != program.Name {
		program.Name = *req.Name
		changed = true
	}
	if req.Description != nil && *req.Description != program.Description {
		program.Description = *req.Description
		changed = true
	}
	if !changed {
		return program, nil
	}

	program.UpdatedAt = time.Now()
	if err := s.programs.Update(ctx, program); err != nil {
		return nil, fmt.Errorf("failed to update club program: %w", err)
	}

	s.syncPlatformClub(ctx, client, program)
	return program, nil
}

// CreateStage adds a tier to the ladder
func (s *stageService) CreateStage(ctx context.Context, clientID string, req *dto.CreateStageRequest) (*domain.ClubStage, error) {
	client, err := s.clients.GetByID(ctx, clientID)
	if err != nil {
		return nil, fmt.Errorf("failed to get client: %w", err)
	}
	if client == nil {
		return nil, ErrClientNotFound
	}
	program, err := s.programs.GetByClientID(ctx, clientID)
	if err != nil {
		return nil, fmt.Errorf("failed to load club program: %w", err)
	}
	if program == nil {
		return nil, ErrNoProgram
	}

	taken, err := s.stages.ActiveOrderTaken(ctx, program.ID, req.StageOrder, "")
	if err != nil {
		return nil, fmt.Errorf("failed to check stage order: %w", err)
	}
	if taken {
		return nil, ErrStageOrderTaken
	}

	now := time.Now()
	stage := &domain.ClubStage{
		ID:                uuid.New().String(),
		ClubProgramID:     program.ID,
		Name:              req.Name,
		StageOrder:        req.StageOrder,
		MinPurchaseAmount: req.MinPurchaseAmount,
		MinLtvAmount:      req.MinLtvAmount,
		DurationMonths:    req.DurationMonths,
		DiscountPercent:   req.DiscountPercent,
		IsActive:          true,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	provider, err := s.providers.ProviderFor(ctx, client)
	if err != nil {
		return nil, err
	}
	if err := s.provisionStageDiscount(ctx, provider, stage, false); err != nil {
		return nil, err
	}

	if err := s.stages.Create(ctx, stage); err != nil {
		return nil, fmt.Errorf("failed to create stage: %w", err)
	}

	s.syncPlatformClub(ctx, client, program)

	logger.InfoCtx(ctx, "club stage created",
		zap.String("client_id", clientID),
		zap.String("stage_id", stage.ID),
		zap.Int("stage_order", stage.StageOrder))
	return stage, nil
}

// GetStage retrieves one stage within the client's scope
func (s *stageService) GetStage(ctx context.Context, clientID, stageID string) (*domain.ClubStage, error) {
	_, stage, err := s.loadStage(ctx, clientID, stageID)
	return stage, err
}

// ListStages retrieves the client's tier ladder
func (s *stageService) ListStages(ctx context.Context, clientID string, activeOnly bool) ([]*domain.ClubStage, error) {
	program, err := s.programs.GetByClientID(ctx, clientID)
	if err != nil {
		return nil, fmt.Errorf("failed to load club program: %w", err)
	}
	if program == nil {
		return []*domain.ClubStage{}, nil
	}
	return s.stages.ListByProgram(ctx, program.ID, activeOnly)
}

// UpdateStage applies a partial update
func (s *stageService) UpdateStage(ctx context.Context, clientID, stageID string, req *dto.UpdateStageRequest) (*domain.ClubStage, error) {
	client, err := s.clients.GetByID(ctx, clientID)
	if err != nil {
		return nil, fmt.Errorf("failed to get client: %w", err)
	}
	if client == nil {
		return nil, ErrClientNotFound
	}
	program, stage, err := s.loadStage(ctx, clientID, stageID)
	if err != nil {
		return nil, err
	}

	if req.StageOrder != nil && *req.StageOrder != stage.StageOrder {
		taken, err := s.stages.ActiveOrderTaken(ctx, program.ID, *req.StageOrder, stage.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to check stage order: %w", err)
		}
		if taken {
			return nil, ErrStageOrderTaken
		}
		stage.StageOrder = *req.StageOrder
	}

	discountDirty := false
	if req.Name != nil && *req.Name != stage.Name {
		stage.Name = *req.Name
		discountDirty = true
	}
	if req.MinPurchaseAmount != nil {
		stage.MinPurchaseAmount = req.MinPurchaseAmount
	}
	if req.MinLtvAmount != nil {
		stage.MinLtvAmount = req.MinLtvAmount
	}
	if req.DurationMonths != nil {
		stage.DurationMonths = *req.DurationMonths
	}
	if req.DiscountPercent != nil {
		if stage.DiscountPercent == nil || *stage.DiscountPercent != *req.DiscountPercent {
			discountDirty = true
		}
		stage.DiscountPercent = req.DiscountPercent
	}
	if req.IsActive != nil && !*req.IsActive && stage.IsActive {
		count, err := s.enrollments.CountOpenByStage(ctx, stage.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to count open enrollments: %w", err)
		}
		if count > 0 {
			return nil, ErrStageInUse
		}
	}
	if req.IsActive != nil {
		stage.IsActive = *req.IsActive
	}

	provider, err := s.providers.ProviderFor(ctx, client)
	if err != nil {
		return nil, err
	}
	if err := s.provisionStageDiscount(ctx, provider, stage, discountDirty); err != nil {
		return nil, err
	}

	stage.UpdatedAt = time.Now()
	if err := s.stages.Update(ctx, stage); err != nil {
		return nil, fmt.Errorf("failed to update stage: %w", err)
	}

	s.syncPlatformClub(ctx, client, program)
	return stage, nil
}

// DeleteStage retires a tier no open enrollment references
func (s *stageService) DeleteStage(ctx context.Context, clientID, stageID string) error {
	client, err := s.clients.GetByID(ctx, clientID)
	if err != nil {
		return fmt.Errorf("failed to get client: %w", err)
	}
	if client == nil {
		return ErrClientNotFound
	}
	program, stage, err := s.loadStage(ctx, clientID, stageID)
	if err != nil {
		return err
	}

	count, err := s.enrollments.CountOpenByStage(ctx, stage.ID)
	if err != nil {
		return fmt.Errorf("failed to count open enrollments: %w", err)
	}
	if count > 0 {
		return ErrStageInUse
	}

	if stage.PlatformDiscountID != "" {
		provider, err := s.providers.ProviderFor(ctx, client)
		if err != nil {
			return err
		}
		if err := provider.DeleteDiscount(ctx, stage.PlatformDiscountID); err != nil && !errors.Is(err, crm.ErrNotImplemented) && !errors.Is(err, crm.ErrNotFound) {
			return fmt.Errorf("failed to delete platform discount: %w", err)
		}
	}

	if err := s.stages.SoftDelete(ctx, stageID); err != nil {
		return fmt.Errorf("failed to delete stage: %w", err)
	}

	s.syncPlatformClub(ctx, client, program)

	logger.InfoCtx(ctx, "club stage deleted",
		zap.String("client_id", clientID),
		zap.String("stage_id", stageID))
	return nil
}

// loadStage fetches a stage and checks it belongs to the client's program
func (s *stageService) loadStage(ctx context.Context, clientID, stageID string) (*domain.ClubProgram, *domain.ClubStage, error) {
	program, err := s.programs.GetByClientID(ctx, clientID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load club program: %w", err)
	}
	if program == nil {
		return nil, nil, ErrNoProgram
	}
	stage, err := s.stages.GetByID(ctx, stageID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load club stage: %w", err)
	}
	if stage == nil || stage.ClubProgramID != program.ID {
		return nil, nil, ErrStageNotFound
	}
	return program, stage, nil
}

// provisionStageDiscount reconciles the platform promotion behind a
// stage's discount percentage. Platforms without a discount surface are
// skipped.
func (s *stageService) provisionStageDiscount(ctx context.Context, provider crm.Provider, stage *domain.ClubStage, refresh bool) error {
	switch {
	case stage.HasDiscount() && stage.PlatformDiscountID == "":
		discount, err := provider.CreateDiscount(ctx, crm.DiscountInput{
			Title:      stage.Name + " member discount",
			Percentage: *stage.DiscountPercent,
		})
		if err != nil {
			if errors.Is(err, crm.ErrNotImplemented) {
				return nil
			}
			return fmt.Errorf("failed to create platform discount: %w", err)
		}
		stage.PlatformDiscountID = discount.ID

	case stage.HasDiscount() && stage.PlatformDiscountID != "" && refresh:
		_, err := provider.UpdateDiscount(ctx, stage.PlatformDiscountID, crm.DiscountInput{
			Title:      stage.Name + " member discount",
			Percentage: *stage.DiscountPercent,
		})
		if err != nil && !errors.Is(err, crm.ErrNotImplemented) {
			return fmt.Errorf("failed to update platform discount: %w", err)
		}

	case !stage.HasDiscount() && stage.PlatformDiscountID != "":
		err := provider.DeleteDiscount(ctx, stage.PlatformDiscountID)
		if err != nil && !errors.Is(err, crm.ErrNotImplemented) && !errors.Is(err, crm.ErrNotFound) {
			return fmt.Errorf("failed to delete platform discount: %w", err)
		}
		stage.PlatformDiscountID = ""
	}
	return nil
}

// syncPlatformClub pushes the program and its active ladder to the
// platform club. Sync failures never fail the local save; the enrollment
// path re-ensures the club before any membership is created.
func (s *stageService) syncPlatformClub(ctx context.Context, client *domain.Client, program *domain.ClubProgram) {
	provider, err := s.providers.ProviderFor(ctx, client)
	if err != nil {
		logger.WarnCtx(ctx, "platform club sync skipped",
			zap.String("client_id", client.ID),
			zap.Error(err))
		return
	}

	stages, err := s.stages.ListByProgram(ctx, program.ID, true)
	if err != nil {
		logger.WarnCtx(ctx, "platform club sync skipped",
			zap.String("client_id", client.ID),
			zap.Error(err))
		return
	}
	names := make([]string, 0, len(stages))
	for _, stage := range stages {
		names = append(names, stage.Name)
	}

	club, err := provider.UpsertClub(ctx, crm.ClubInput{
		PlatformClubID: program.PlatformClubID,
		Title:          program.Name,
		StageNames:     names,
	})
	if err != nil {
		if errors.Is(err, crm.ErrNotImplemented) {
			return
		}
		logger.WarnCtx(ctx, "platform club sync failed",
			zap.String("client_id", client.ID),
			zap.Error(err))
		return
	}

	if club.ID != program.PlatformClubID {
		program.PlatformClubID = club.ID
		program.UpdatedAt = time.Now()
		if err := s.programs.Update(ctx, program); err != nil {
			logger.WarnCtx(ctx, "failed to record platform club",
				zap.String("client_id", client.ID),
				zap.Error(err))
		}
	}
}
