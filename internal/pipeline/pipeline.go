// Package pipeline runs the decision flow: gate checks, probability
// lookup, and payout resolution for new policies, plus delay
// settlement for completed journeys.
package pipeline

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/parametric-rail/railpledge/internal/delay"
	"github.com/parametric-rail/railpledge/internal/domain"
	"github.com/parametric-rail/railpledge/internal/payout"
	"github.com/parametric-rail/railpledge/internal/policy"
	"github.com/parametric-rail/railpledge/internal/rules"
	"github.com/parametric-rail/railpledge/internal/validate"
)

// Tracker fetches observed arrival data for a scheduled journey.
type Tracker interface {
	ObservedJourney(ctx context.Context, j *domain.Journey) (*domain.Journey, error)
}

// Prober returns the delay probability percentage for a journey.
type Prober interface {
	Probability(ctx context.Context, j *domain.Journey) (float64, error)
}

// Pipeline orchestrates payout decisions and delay settlements.
// Rejections are ordinary outcomes, not errors: every path yields a
// Decision with a status, and the caller never sees which internal
// step produced a rejection beyond that status.
type Pipeline struct {
	validator  *validate.Validator
	gate       *policy.Gate
	exclusions *rules.Engine
	prob       Prober
	resolver   *payout.Resolver
	tracker    Tracker
	calc       *delay.Calculator
	repo       domain.Repository
	bus        domain.EventBus
}

// New assembles a pipeline. The repository and bus are optional; when
// nil the corresponding audit/publish step is skipped.
func New(
	validator *validate.Validator,
	gate *policy.Gate,
	exclusions *rules.Engine,
	prob Prober,
	resolver *payout.Resolver,
	tracker Tracker,
	calc *delay.Calculator,
	repo domain.Repository,
	bus domain.EventBus,
) *Pipeline {
	return &Pipeline{
		validator:  validator,
		gate:       gate,
		exclusions: exclusions,
		prob:       prob,
		resolver:   resolver,
		tracker:    tracker,
		calc:       calc,
		repo:       repo,
		bus:        bus,
	}
}

// Decide evaluates a payout request for the journey and tier. It
// always returns a decision; failures map to StatusError.
func (p *Pipeline) Decide(ctx context.Context, j *domain.Journey, tier domain.Tier) *domain.Decision {
	d := &domain.Decision{
		ID:        uuid.New().String(),
		Kind:      domain.KindPayout,
		Tier:      tier,
		CreatedAt: time.Now().UTC(),
	}

	if j == nil || j.Empty() {
		slog.Info("payout rejected: no legs", "decision_id", d.ID)
		d.Status = domain.StatusError
		return p.finish(ctx, d, domain.TopicDecision)
	}
	d.Fingerprint = j.Fingerprint()

	if msgs := p.validator.ValidateJourney(j); len(msgs) > 0 {
		slog.Info("payout rejected: journey failed validation",
			"decision_id", d.ID,
			"messages", msgs,
		)
		d.Status = domain.StatusError
		return p.finish(ctx, d, domain.TopicDecision)
	}
	if !tier.Valid() {
		slog.Info("payout rejected: unknown tier",
			"decision_id", d.ID,
			"tier", tier,
		)
		d.Status = domain.StatusError
		return p.finish(ctx, d, domain.TopicDecision)
	}

	out, err := p.gate.OutOfTimeframe(j)
	if err != nil {
		slog.Warn("departure instant unparseable",
			"decision_id", d.ID,
			"error", err,
		)
		d.Status = domain.StatusError
		return p.finish(ctx, d, domain.TopicDecision)
	}
	if out {
		slog.Info("payout rejected: outside bookable window", "decision_id", d.ID)
		d.Status = domain.StatusOutOfTimeframe
		return p.finish(ctx, d, domain.TopicDecision)
	}

	if policy.IncludesRailReplacement(j) {
		slog.Info("payout rejected: rail replacement leg", "decision_id", d.ID)
		d.Status = domain.StatusRailReplacement
		return p.finish(ctx, d, domain.TopicDecision)
	}
	if p.exclusions != nil {
		if ruleID, matched := p.exclusions.Matches(j); matched {
			slog.Info("payout rejected: coverage exclusion",
				"decision_id", d.ID,
				"rule_id", ruleID,
			)
			d.Status = domain.StatusRailReplacement
			return p.finish(ctx, d, domain.TopicDecision)
		}
	}

	pct, err := p.prob.Probability(ctx, j)
	if err != nil {
		slog.Error("probability fetch failed",
			"decision_id", d.ID,
			"fingerprint", d.Fingerprint,
			"error", err,
		)
		d.Status = domain.StatusError
		return p.finish(ctx, d, domain.TopicDecision)
	}
	d.Probability = pct

	outcome, err := p.resolver.Resolve(tier, pct)
	if err != nil {
		slog.Error("payout resolution failed",
			"decision_id", d.ID,
			"tier", tier,
			"error", err,
		)
		d.Status = domain.StatusError
		return p.finish(ctx, d, domain.TopicDecision)
	}

	d.Status = outcome.Status
	d.Payout = outcome.Payout
	d.Payouts = outcome.Payouts
	if d.Status == domain.StatusProbabilityCap {
		slog.Info("payout rejected: probability above cap",
			"decision_id", d.ID,
			"probability", pct,
		)
	}
	return p.finish(ctx, d, domain.TopicDecision)
}

// Settle computes the realized delay for a completed journey. It
// always returns a decision; failures map to StatusError.
func (p *Pipeline) Settle(ctx context.Context, j *domain.Journey) *domain.Decision {
	d := &domain.Decision{
		ID:        uuid.New().String(),
		Kind:      domain.KindSettlement,
		CreatedAt: time.Now().UTC(),
	}

	if j == nil || j.Empty() {
		slog.Info("settlement rejected: no legs", "decision_id", d.ID)
		d.Status = domain.StatusError
		return p.finish(ctx, d, domain.TopicSettlement)
	}
	d.Fingerprint = j.Fingerprint()

	if msgs := p.validator.ValidateJourney(j); len(msgs) > 0 {
		slog.Info("settlement rejected: journey failed validation",
			"decision_id", d.ID,
			"messages", msgs,
		)
		d.Status = domain.StatusError
		return p.finish(ctx, d, domain.TopicSettlement)
	}

	scheduled, err := j.ArrivalInstant()
	if err != nil {
		slog.Warn("scheduled arrival unparseable",
			"decision_id", d.ID,
			"error", err,
		)
		d.Status = domain.StatusError
		return p.finish(ctx, d, domain.TopicSettlement)
	}

	observed, err := p.tracker.ObservedJourney(ctx, j)
	if err != nil {
		slog.Error("tracking fetch failed",
			"decision_id", d.ID,
			"fingerprint", d.Fingerprint,
			"error", err,
		)
		d.Status = domain.StatusError
		return p.finish(ctx, d, domain.TopicSettlement)
	}

	actual, err := observed.ArrivalInstant()
	if err != nil {
		slog.Warn("observed arrival unparseable",
			"decision_id", d.ID,
			"error", err,
		)
		d.Status = domain.StatusError
		return p.finish(ctx, d, domain.TopicSettlement)
	}

	d.Status = domain.StatusOK
	d.DelayMinutes = p.calc.Minutes(scheduled, actual)
	return p.finish(ctx, d, domain.TopicSettlement)
}

// finish persists and publishes the decision best-effort. Audit
// failures never change the outcome returned to the caller.
func (p *Pipeline) finish(ctx context.Context, d *domain.Decision, topic string) *domain.Decision {
	if p.repo != nil {
		if err := p.repo.SaveDecision(ctx, d); err != nil {
			slog.Error("failed to persist decision",
				"decision_id", d.ID,
				"error", err,
			)
		}
	}
	if p.bus != nil {
		payload, err := json.Marshal(d)
		if err == nil {
			err = p.bus.Publish(ctx, topic, payload)
		}
		if err != nil {
			slog.Warn("failed to publish decision event",
				"decision_id", d.ID,
				"topic", topic,
				"error", err,
			)
		}
	}
	return d
}
