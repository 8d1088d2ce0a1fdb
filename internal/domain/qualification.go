package domain

import "sort"

// QualifyingTier is the slice of a ClubStage carried back to callers in
// a qualification result.
type QualifyingTier struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	StageOrder int    `json:"stage_order"`
}

// QualificationResult reports the single highest tier a customer
// qualifies for. A nil QualifyingTier is a normal outcome, not an
// error: no stage was satisfied, or the program has no stages at all.
// Both qualified-by flags may be true at once when both signals clear
// the winning stage's thresholds.
type QualificationResult struct {
	QualifyingTier      *QualifyingTier `json:"qualifying_tier"`
	QualifiedByPurchase bool            `json:"qualified_by_purchase"`
	QualifiedByLTV      bool            `json:"qualified_by_ltv"`
}

// Qualified reports whether any tier was satisfied.
func (r QualificationResult) Qualified() bool {
	return r.QualifyingTier != nil
}

// Qualify decides the highest tier satisfied by the supplied financial
// signals. Inactive stages are skipped; the rest are ranked by
// stage_order ascending and scanned from the highest downward. A stage
// is satisfied when purchaseAmount meets its purchase threshold or ltv
// meets its LTV threshold, each tested only when that signal is
// supplied. The first satisfied stage wins.
//
// Pure over its inputs: no I/O, safe to call with in-memory stage lists.
func Qualify(stages []ClubStage, purchaseAmount, ltv *float64) QualificationResult {
	active := make([]ClubStage, 0, len(stages))
	for _, s := range stages {
		if s.IsActive {
			active = append(active, s)
		}
	}
	sort.Slice(active, func(i, j int) bool {
		return active[i].StageOrder < active[j].StageOrder
	})

	for i := len(active) - 1; i >= 0; i-- {
		byPurchase, byLTV := active[i].SatisfiedBy(purchaseAmount, ltv)
		if byPurchase || byLTV {
			return QualificationResult{
				QualifyingTier: &QualifyingTier{
					ID:         active[i].ID,
					Name:       active[i].Name,
					StageOrder: active[i].StageOrder,
				},
				QualifiedByPurchase: byPurchase,
				QualifiedByLTV:      byLTV,
			}
		}
	}
	return QualificationResult{}
}
