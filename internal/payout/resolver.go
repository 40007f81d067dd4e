package payout

import (
	"math"

	"github.com/parametric-rail/railpledge/internal/domain"
)

// Resolver turns a delay probability into a payout decision against
// the matrix, enforcing the insurable probability cap.
type Resolver struct {
	matrix *Matrix
	cap    float64
}

// NewResolver creates a resolver. A zero cap falls back to 40%.
func NewResolver(matrix *Matrix, cap float64) *Resolver {
	if cap == 0 {
		cap = 40
	}
	return &Resolver{matrix: matrix, cap: cap}
}

// Outcome is the result of resolving a probability for a tier.
type Outcome struct {
	Status domain.Status

	// Payout is set for a single concrete tier.
	Payout float64

	// Payouts is set instead of Payout when TierAll was requested.
	Payouts map[domain.Tier]float64
}

// Resolve looks up the payout for the given tier at the given
// probability percentage. The cap applies to the probability exactly
// as received; matrix lookup rounds the percentage up to the next
// whole row. TierAll yields one amount per concrete tier.
func (r *Resolver) Resolve(tier domain.Tier, pct float64) (*Outcome, error) {
	if pct > r.cap {
		return &Outcome{Status: domain.StatusProbabilityCap}, nil
	}

	row := int(math.Ceil(pct))
	if row < 0 {
		row = 0
	}

	if tier == domain.TierAll {
		payouts := make(map[domain.Tier]float64, len(domain.PolicyTiers))
		for _, t := range domain.PolicyTiers {
			amount, err := r.matrix.Amount(t, row)
			if err != nil {
				return nil, err
			}
			payouts[t] = amount
		}
		return &Outcome{Status: domain.StatusOK, Payouts: payouts}, nil
	}

	amount, err := r.matrix.Amount(tier, row)
	if err != nil {
		return nil, err
	}
	return &Outcome{Status: domain.StatusOK, Payout: amount}, nil
}
