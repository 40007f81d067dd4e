package domain

import (
	"time"
)

// Tier is a policy size tier.
type Tier string

const (
	TierSmall  Tier = "small"
	TierMedium Tier = "medium"
	TierLarge  Tier = "large"

	// TierAll requests one payout per tier in a single decision.
	TierAll Tier = "all"
)

// PolicyTiers are the tiers carried by the payout matrix.
var PolicyTiers = []Tier{TierSmall, TierMedium, TierLarge}

// Valid reports whether t is a known tier.
func (t Tier) Valid() bool {
	switch t {
	case TierSmall, TierMedium, TierLarge, TierAll:
		return true
	}
	return false
}

// Status is the outcome code of the decision pipeline.
type Status int

const (
	// StatusOK - journey insurable, payout resolved.
	StatusOK Status = 0

	// StatusRailReplacement - journey includes a rail-replacement bus
	// (or a configured coverage exclusion); not insurable.
	StatusRailReplacement Status = 10

	// StatusOutOfTimeframe - departure outside the bookable window.
	StatusOutOfTimeframe Status = 20

	// StatusProbabilityCap - delay probability above the insurable cap.
	StatusProbabilityCap Status = 30

	// StatusMissingDelay is reserved for a "delay data not yet
	// available, resubmit later" outcome. No code path emits it today;
	// it is kept in the taxonomy so the wire contract stays stable.
	StatusMissingDelay Status = 40

	// StatusError - malformed input, failed validation, or an upstream
	// failure. Deliberately generic toward the caller.
	StatusError Status = 100
)

// DecisionKind distinguishes payout decisions from settlements.
type DecisionKind string

const (
	KindPayout     DecisionKind = "payout"
	KindSettlement DecisionKind = "settlement"
)

// Decision is the persisted and published outcome of a pipeline run.
type Decision struct {
	ID          string       `json:"id"`
	Kind        DecisionKind `json:"kind"`
	Fingerprint string       `json:"fingerprint,omitempty"`
	Tier        Tier         `json:"tier,omitempty"`
	Status      Status       `json:"status"`

	// Probability is the delay probability percentage used for the
	// decision, unrounded as produced by the prediction service.
	Probability float64 `json:"probability,omitempty"`

	// Payout is the resolved amount for a single tier.
	Payout float64 `json:"payout"`

	// Payouts carries one amount per tier for TierAll requests.
	Payouts map[Tier]float64 `json:"payouts,omitempty"`

	// DelayMinutes is the settlement result, clamped to >= 0.
	DelayMinutes int64 `json:"delayMinutes,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
}
