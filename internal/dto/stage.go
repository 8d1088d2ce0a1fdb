package dto

import (
	"time"

	"github.com/BrainstormWilly/yno-libero-vino-sub003/internal/domain"
)

// CreateProgramRequest represents a request to create the club program
type CreateProgramRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description,omitempty"`
}

// UpdateProgramRequest represents a partial program update
type UpdateProgramRequest struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
}

// ProgramResponse represents the club program returned to the embedded app
type ProgramResponse struct {
	ID             string    `json:"id"`
	ClientID       string    `json:"client_id"`
	Name           string    `json:"name"`
	Description    string    `json:"description,omitempty"`
	PlatformClubID string    `json:"platform_club_id,omitempty"`
	IsActive       bool      `json:"is_active"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// FromProgram converts a domain ClubProgram to ProgramResponse
func FromProgram(p *domain.ClubProgram) *ProgramResponse {
	return &ProgramResponse{
		ID:             p.ID,
		ClientID:       p.ClientID,
		Name:           p.Name,
		Description:    p.Description,
		PlatformClubID: p.PlatformClubID,
		IsActive:       p.IsActive,
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
	}
}

// CreateStageRequest represents a request to add a tier to the club
type CreateStageRequest struct {
	Name              string   `json:"name" binding:"required"`
	StageOrder        int      `json:"stage_order" binding:"required,gt=0"`
	MinPurchaseAmount *float64 `json:"min_purchase_amount,omitempty" binding:"omitempty,gte=0"`
	MinLtvAmount      *float64 `json:"min_ltv_amount,omitempty" binding:"omitempty,gte=0"`
	DurationMonths    int      `json:"duration_months" binding:"gte=0"`
	DiscountPercent   *float64 `json:"discount_percent,omitempty" binding:"omitempty,gt=0,lte=100"`
}

// UpdateStageRequest represents a partial tier update
type UpdateStageRequest struct {
	Name              *string  `json:"name,omitempty"`
	StageOrder        *int     `json:"stage_order,omitempty" binding:"omitempty,gt=0"`
	MinPurchaseAmount *float64 `json:"min_purchase_amount,omitempty" binding:"omitempty,gte=0"`
	MinLtvAmount      *float64 `json:"min_ltv_amount,omitempty" binding:"omitempty,gte=0"`
	DurationMonths    *int     `json:"duration_months,omitempty" binding:"omitempty,gte=0"`
	DiscountPercent   *float64 `json:"discount_percent,omitempty" binding:"omitempty,gt=0,lte=100"`
	IsActive          *bool    `json:"is_active,omitempty"`
}

// StageResponse represents a club stage returned to the embedded app
type StageResponse struct {
	ID                 string    `json:"id"`
	ClubProgramID      string    `json:"club_program_id"`
	Name               string    `json:"name"`
	StageOrder         int       `json:"stage_order"`
	MinPurchaseAmount  *float64  `json:"min_purchase_amount,omitempty"`
	MinLtvAmount       *float64  `json:"min_ltv_amount,omitempty"`
	DurationMonths     int       `json:"duration_months"`
	DiscountPercent    *float64  `json:"discount_percent,omitempty"`
	PlatformDiscountID string    `json:"platform_discount_id,omitempty"`
	IsActive           bool      `json:"is_active"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// FromStage converts a domain ClubStage to StageResponse
func FromStage(s *domain.ClubStage) *StageResponse {
	return &StageResponse{
		ID:                 s.ID,
		ClubProgramID:      s.ClubProgramID,
		Name:               s.Name,
		StageOrder:         s.StageOrder,
		MinPurchaseAmount:  s.MinPurchaseAmount,
		MinLtvAmount:       s.MinLtvAmount,
		DurationMonths:     s.DurationMonths,
		DiscountPercent:    s.DiscountPercent,
		PlatformDiscountID: s.PlatformDiscountID,
		IsActive:           s.IsActive,
		CreatedAt:          s.CreatedAt,
		UpdatedAt:          s.UpdatedAt,
	}
}

// StageListResponse represents the club's tier ladder
type StageListResponse struct {
	Stages []*StageResponse `json:"stages"`
	Total  int              `json:"total"`
}

// QualificationPreviewRequest asks which tier a set of financial
// signals would earn, without enrolling anyone
type QualificationPreviewRequest struct {
	CustomerID     string   `json:"customer_id,omitempty"`
	PurchaseAmount *float64 `json:"purchase_amount,omitempty" binding:"omitempty,gte=0"`
	LTV            *float64 `json:"ltv,omitempty" binding:"omitempty,gte=0"`
}

// QualificationResponse represents a tier qualification outcome
type QualificationResponse struct {
	QualifyingTier      *QualifyingTierResponse `json:"qualifying_tier"`
	QualifiedByPurchase bool                    `json:"qualified_by_purchase"`
	QualifiedByLTV      bool                    `json:"qualified_by_ltv"`
}

// QualifyingTierResponse identifies the winning tier
type QualifyingTierResponse struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	StageOrder int    `json:"stage_order"`
}

// FromQualification converts a domain QualificationResult to QualificationResponse
func FromQualification(r domain.QualificationResult) *QualificationResponse {
	resp := &QualificationResponse{
		QualifiedByPurchase: r.QualifiedByPurchase,
		QualifiedByLTV:      r.QualifiedByLTV,
	}
	if r.QualifyingTier != nil {
		resp.QualifyingTier = &QualifyingTierResponse{
			ID:         r.QualifyingTier.ID,
			Name:       r.QualifyingTier.Name,
			StageOrder: r.QualifyingTier.StageOrder,
		}
	}
	return resp
}
