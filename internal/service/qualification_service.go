package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/BrainstormWilly/yno-libero-vino-sub003/internal/domain"
	"github.com/BrainstormWilly/yno-libero-vino-sub003/internal/dto"
	"github.com/BrainstormWilly/yno-libero-vino-sub003/internal/repository"
)

var (
	ErrStageNotFound = errors.New("club stage not found")
)

// QualificationService defines the interface for tier qualification
type QualificationService interface {
	// QualifyCustomer decides the highest tier the supplied financial
	// signals earn under the client's program. A client without a
	// program yields an empty result, not an error.
	QualifyCustomer(ctx context.Context, clientID string, purchaseAmount, ltv *float64) (domain.QualificationResult, error)
	// Preview answers a what-if qualification request. When the request
	// names a mirrored customer and omits LTV, the stored LTV snapshot
	// fills in.
	Preview(ctx context.Context, clientID string, req *dto.QualificationPreviewRequest) (domain.QualificationResult, error)
	// QualifiesForStage tests one specific tier against a customer's
	// stored LTV and an optional purchase amount
	QualifiesForStage(ctx context.Context, clientID, customerID, stageID string, purchaseAmount *float64) (bool, error)
}

// qualificationService implements QualificationService
type qualificationService struct {
	programs  repository.ClubProgramRepository
	stages    repository.ClubStageRepository
	customers repository.CustomerRepository
}

// NewQualificationService creates a new QualificationService
func NewQualificationService(programs repository.ClubProgramRepository, stages repository.ClubStageRepository, customers repository.CustomerRepository) QualificationService {
	return &qualificationService{
		programs:  programs,
		stages:    stages,
		customers: customers,
	}
}

// QualifyCustomer decides the highest tier the signals earn
func (s *qualificationService) QualifyCustomer(ctx context.Context, clientID string, purchaseAmount, ltv *float64) (domain.QualificationResult, error) {
	program, err := s.programs.GetByClientID(ctx, clientID)
	if err != nil {
		return domain.QualificationResult{}, fmt.Errorf("failed to load club program: %w", err)
	}
	if program == nil {
		return domain.QualificationResult{}, nil
	}

	stages, err := s.stages.ListByProgram(ctx, program.ID, true)
	if err != nil {
		return domain.QualificationResult{}, fmt.Errorf("failed to load club stages: %w", err)
	}

	ladder := make([]domain.ClubStage, 0, len(stages))
	for _, stage := range stages {
		ladder = append(ladder, *stage)
	}
	return domain.Qualify(ladder, purchaseAmount, ltv), nil
}

// Preview answers a what-if qualification request
func (s *qualificationService) Preview(ctx context.Context, clientID string, req *dto.QualificationPreviewRequest) (domain.QualificationResult, error) {
	ltv := req.LTV
	if ltv == nil && req.CustomerID != "" {
		customer, err := s.customers.GetByID(ctx, req.CustomerID)
		if err != nil {
			return domain.QualificationResult{}, fmt.Errorf("failed to load customer: %w", err)
		}
		if customer != nil && customer.ClientID == clientID {
			stored := customer.LTV
			ltv = &stored
		}
	}
	return s.QualifyCustomer(ctx, clientID, req.PurchaseAmount, ltv)
}

// QualifiesForStage tests one specific tier
func (s *qualificationService) QualifiesForStage(ctx context.Context, clientID, customerID, stageID string, purchaseAmount *float64) (bool, error) {
	stage, err := s.stages.GetByID(ctx, stageID)
	if err != nil {
		return false, fmt.Errorf("failed to load club stage: %w", err)
	}
	if stage == nil || !stage.IsActive {
		return false, ErrStageNotFound
	}

	// Tenant isolation: the stage must belong to this client's program.
	program, err := s.programs.GetByClientID(ctx, clientID)
	if err != nil {
		return false, fmt.Errorf("failed to load club program: %w", err)
	}
	if program == nil || program.ID != stage.ClubProgramID {
		return false, ErrStageNotFound
	}

	var ltv *float64
	if customerID != "" {
		customer, err := s.customers.GetByID(ctx, customerID)
		if err != nil {
			return false, fmt.Errorf("failed to load customer: %w", err)
		}
		if customer != nil && customer.ClientID == clientID {
			stored := customer.LTV
			ltv = &stored
		}
	}

	byPurchase, byLTV := stage.SatisfiedBy(purchaseAmount, ltv)
	return byPurchase || byLTV, nil
}
