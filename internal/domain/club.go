package domain

import "time"

// ClubProgram is a winery's membership club. Each client has at most one
// active program; its stages form the tier ladder.
type ClubProgram struct {
	ID             string     `json:"id"`
	ClientID       string     `json:"client_id"`
	Name           string     `json:"name"`
	Description    string     `json:"description,omitempty"`
	PlatformClubID string     `json:"platform_club_id,omitempty"`
	IsActive       bool       `json:"is_active"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	DeletedAt      *time.Time `json:"deleted_at,omitempty"`
}

// ClubStage is one membership tier within a program. StageOrder ranks
// tiers ascending: a higher stage_order is a higher (better) tier.
// Threshold fields are nullable; an unset threshold means that dimension
// has no minimum and any supplied signal clears it, so stages relying on
// one dimension only must set the other or gate by stage_order placement.
type ClubStage struct {
	ID                string   `json:"id"`
	ClubProgramID     string   `json:"club_program_id"`
	Name              string   `json:"name"`
	StageOrder        int      `json:"stage_order"`
	MinPurchaseAmount *float64 `json:"min_purchase_amount,omitempty"`
	MinLtvAmount      *float64 `json:"min_ltv_amount,omitempty"`
	DurationMonths    int      `json:"duration_months"`
	// DiscountPercent is the member discount this tier earns. Nil means
	// the tier carries no discount and no platform promotion is
	// provisioned for it.
	DiscountPercent    *float64   `json:"discount_percent,omitempty"`
	PlatformDiscountID string     `json:"platform_discount_id,omitempty"`
	IsActive           bool       `json:"is_active"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
	DeletedAt          *time.Time `json:"deleted_at,omitempty"`
}

// HasDiscount reports whether this tier earns a platform discount.
func (s *ClubStage) HasDiscount() bool {
	return s.DiscountPercent != nil && *s.DiscountPercent > 0
}

// MinPurchase returns the single-order threshold, zero when unset.
func (s *ClubStage) MinPurchase() float64 {
	if s.MinPurchaseAmount == nil {
		return 0
	}
	return *s.MinPurchaseAmount
}

// MinLTV returns the lifetime-value threshold, zero when unset.
func (s *ClubStage) MinLTV() float64 {
	if s.MinLtvAmount == nil {
		return 0
	}
	return *s.MinLtvAmount
}

// SatisfiedBy reports which of the two financial signals meet this
// stage's thresholds. Each dimension is only evaluated when its signal
// is supplied; a nil signal never satisfies anything.
func (s *ClubStage) SatisfiedBy(purchaseAmount, ltv *float64) (byPurchase, byLTV bool) {
	if purchaseAmount != nil && *purchaseAmount >= s.MinPurchase() {
		byPurchase = true
	}
	if ltv != nil && *ltv >= s.MinLTV() {
		byLTV = true
	}
	return byPurchase, byLTV
}
