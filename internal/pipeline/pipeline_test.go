package pipeline

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/parametric-rail/railpledge/internal/delay"
	"github.com/parametric-rail/railpledge/internal/domain"
	"github.com/parametric-rail/railpledge/internal/payout"
	"github.com/parametric-rail/railpledge/internal/policy"
	"github.com/parametric-rail/railpledge/internal/rules"
	"github.com/parametric-rail/railpledge/internal/validate"
)

var testNow = time.Date(2026, 9, 1, 12, 0, 0, 0, time.Local)

// bookableJourney departs 4 days after testNow, inside the window.
func bookableJourney() *domain.Journey {
	return domain.NewJourney(domain.Leg{
		Train:     "ICE 123",
		StartStop: "Berlin Hbf", StartTime: "10:30", StartDate: "2026-09-05",
		ArrivalStop: "Hamburg Hbf", ArrivalTime: "12:15", ArrivalDate: "2026-09-05",
	})
}

type fakeProber struct {
	mu    sync.Mutex
	pct   float64
	err   error
	calls int
}

func (f *fakeProber) Probability(ctx context.Context, j *domain.Journey) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.pct, f.err
}

type fakeTracker struct {
	arrivalTime string
	arrivalDate string
	err         error
}

func (f *fakeTracker) ObservedJourney(ctx context.Context, j *domain.Journey) (*domain.Journey, error) {
	if f.err != nil {
		return nil, f.err
	}
	legs := append([]domain.Leg(nil), j.Legs...)
	observed := domain.NewJourney(legs...)
	last := len(observed.Legs) - 1
	if f.arrivalTime != "" {
		observed.Legs[last].ArrivalTime = f.arrivalTime
	}
	if f.arrivalDate != "" {
		observed.Legs[last].ArrivalDate = f.arrivalDate
	}
	return observed, nil
}

type fakeRepo struct {
	mu    sync.Mutex
	saved []*domain.Decision
}

func (f *fakeRepo) SaveDecision(ctx context.Context, d *domain.Decision) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved = append(f.saved, d)
	return nil
}
func (f *fakeRepo) GetDecision(ctx context.Context, id string) (*domain.Decision, error) {
	return nil, nil
}
func (f *fakeRepo) ListDecisions(ctx context.Context, limit int) ([]*domain.Decision, error) {
	return nil, nil
}
func (f *fakeRepo) Ping(ctx context.Context) error { return nil }
func (f *fakeRepo) Close() error                   { return nil }

func newTestPipeline(t *testing.T, prober Prober, tracker Tracker, repo domain.Repository) *Pipeline {
	t.Helper()

	validator, err := validate.New()
	if err != nil {
		t.Fatalf("validator: %v", err)
	}
	matrix, err := payout.LoadMatrix("")
	if err != nil {
		t.Fatalf("matrix: %v", err)
	}
	exclusions, err := rules.NewEngine()
	if err != nil {
		t.Fatalf("exclusions: %v", err)
	}
	gate := policy.NewGate(domain.PolicyConfig{MinLeadDays: 1, MaxLeadDays: 10}).
		WithClock(func() time.Time { return testNow })

	return New(
		validator,
		gate,
		exclusions,
		prober,
		payout.NewResolver(matrix, 40),
		tracker,
		delay.NewCalculator(4*time.Hour),
		repo,
		nil,
	)
}

func TestDecide(t *testing.T) {
	ctx := context.Background()

	t.Run("Accepted", func(t *testing.T) {
		p := newTestPipeline(t, &fakeProber{pct: 25}, &fakeTracker{}, nil)

		d := p.Decide(ctx, bookableJourney(), domain.TierSmall)
		if d.Status != domain.StatusOK {
			t.Fatalf("expected OK, got status %d", d.Status)
		}
		if d.Probability != 25 {
			t.Errorf("expected probability 25, got %v", d.Probability)
		}
		if d.Payout <= 0 {
			t.Errorf("expected positive payout, got %v", d.Payout)
		}
		if d.Fingerprint == "" {
			t.Error("expected fingerprint set")
		}
		if d.ID == "" {
			t.Error("expected decision ID set")
		}
	})

	t.Run("AllTiers", func(t *testing.T) {
		p := newTestPipeline(t, &fakeProber{pct: 25}, &fakeTracker{}, nil)

		d := p.Decide(ctx, bookableJourney(), domain.TierAll)
		if d.Status != domain.StatusOK {
			t.Fatalf("expected OK, got status %d", d.Status)
		}
		if len(d.Payouts) != 3 {
			t.Errorf("expected 3 payouts, got %d", len(d.Payouts))
		}
	})

	t.Run("EmptyJourney", func(t *testing.T) {
		p := newTestPipeline(t, &fakeProber{pct: 25}, &fakeTracker{}, nil)

		d := p.Decide(ctx, domain.NewJourney(), domain.TierSmall)
		if d.Status != domain.StatusError {
			t.Errorf("expected error status, got %d", d.Status)
		}
	})

	t.Run("InvalidLeg", func(t *testing.T) {
		p := newTestPipeline(t, &fakeProber{pct: 25}, &fakeTracker{}, nil)

		j := bookableJourney()
		j.Legs[0].StartTime = "25:99"
		d := p.Decide(ctx, j, domain.TierSmall)
		if d.Status != domain.StatusError {
			t.Errorf("expected error status, got %d", d.Status)
		}
	})

	t.Run("UnknownTier", func(t *testing.T) {
		p := newTestPipeline(t, &fakeProber{pct: 25}, &fakeTracker{}, nil)

		d := p.Decide(ctx, bookableJourney(), domain.Tier("jumbo"))
		if d.Status != domain.StatusError {
			t.Errorf("expected error status, got %d", d.Status)
		}
	})

	t.Run("OutOfTimeframe", func(t *testing.T) {
		prober := &fakeProber{pct: 25}
		p := newTestPipeline(t, prober, &fakeTracker{}, nil)

		// Departure within a day of booking.
		j := bookableJourney()
		j.Legs[0].StartDate = "2026-09-01"
		j.Legs[0].StartTime = "18:00"

		d := p.Decide(ctx, j, domain.TierSmall)
		if d.Status != domain.StatusOutOfTimeframe {
			t.Fatalf("expected out-of-timeframe, got status %d", d.Status)
		}
		if prober.calls != 0 {
			t.Errorf("expected no probability fetch for rejected journey, got %d", prober.calls)
		}
	})

	t.Run("RailReplacement", func(t *testing.T) {
		prober := &fakeProber{pct: 25}
		p := newTestPipeline(t, prober, &fakeTracker{}, nil)

		j := bookableJourney()
		j.Legs[0].Train = "Schienenersatzverkehr Bus 12"

		d := p.Decide(ctx, j, domain.TierSmall)
		if d.Status != domain.StatusRailReplacement {
			t.Fatalf("expected rail-replacement, got status %d", d.Status)
		}
		if prober.calls != 0 {
			t.Errorf("expected no probability fetch for rejected journey, got %d", prober.calls)
		}
	})

	t.Run("ExclusionRule", func(t *testing.T) {
		p := newTestPipeline(t, &fakeProber{pct: 25}, &fakeTracker{}, nil)
		if err := p.exclusions.LoadRule(&rules.ExclusionRule{
			ID:         "berlin",
			Expression: `departure_stop.contains("Berlin")`,
			Enabled:    true,
		}); err != nil {
			t.Fatalf("load rule: %v", err)
		}

		d := p.Decide(ctx, bookableJourney(), domain.TierSmall)
		if d.Status != domain.StatusRailReplacement {
			t.Errorf("expected exclusion rejection, got status %d", d.Status)
		}
	})

	t.Run("ProbabilityAboveCap", func(t *testing.T) {
		p := newTestPipeline(t, &fakeProber{pct: 40.01}, &fakeTracker{}, nil)

		d := p.Decide(ctx, bookableJourney(), domain.TierSmall)
		if d.Status != domain.StatusProbabilityCap {
			t.Fatalf("expected probability-cap, got status %d", d.Status)
		}
		if d.Payout != 0 {
			t.Errorf("expected no payout, got %v", d.Payout)
		}
	})

	t.Run("ProbabilityAtCapAccepted", func(t *testing.T) {
		p := newTestPipeline(t, &fakeProber{pct: 40.0}, &fakeTracker{}, nil)

		d := p.Decide(ctx, bookableJourney(), domain.TierSmall)
		if d.Status != domain.StatusOK {
			t.Errorf("expected OK at exactly the cap, got status %d", d.Status)
		}
	})

	t.Run("UpstreamFailure", func(t *testing.T) {
		p := newTestPipeline(t, &fakeProber{err: context.DeadlineExceeded}, &fakeTracker{}, nil)

		d := p.Decide(ctx, bookableJourney(), domain.TierSmall)
		if d.Status != domain.StatusError {
			t.Errorf("expected error status, got %d", d.Status)
		}
	})

	t.Run("DecisionAudited", func(t *testing.T) {
		repo := &fakeRepo{}
		p := newTestPipeline(t, &fakeProber{pct: 25}, &fakeTracker{}, repo)

		d := p.Decide(ctx, bookableJourney(), domain.TierSmall)

		repo.mu.Lock()
		defer repo.mu.Unlock()
		if len(repo.saved) != 1 {
			t.Fatalf("expected 1 audited decision, got %d", len(repo.saved))
		}
		if repo.saved[0].ID != d.ID {
			t.Errorf("expected audited decision %s, got %s", d.ID, repo.saved[0].ID)
		}
	})
}

func TestSettle(t *testing.T) {
	ctx := context.Background()

	t.Run("DelayedArrival", func(t *testing.T) {
		p := newTestPipeline(t, &fakeProber{}, &fakeTracker{arrivalTime: "12:45"}, nil)

		d := p.Settle(ctx, bookableJourney())
		if d.Status != domain.StatusOK {
			t.Fatalf("expected OK, got status %d", d.Status)
		}
		if d.DelayMinutes != 30 {
			t.Errorf("expected 30 minutes delay, got %d", d.DelayMinutes)
		}
		if d.Kind != domain.KindSettlement {
			t.Errorf("expected settlement kind, got %s", d.Kind)
		}
	})

	t.Run("OnTime", func(t *testing.T) {
		p := newTestPipeline(t, &fakeProber{}, &fakeTracker{}, nil)

		d := p.Settle(ctx, bookableJourney())
		if d.Status != domain.StatusOK {
			t.Fatalf("expected OK, got status %d", d.Status)
		}
		if d.DelayMinutes != 0 {
			t.Errorf("expected 0 minutes delay, got %d", d.DelayMinutes)
		}
	})

	t.Run("MidnightRollover", func(t *testing.T) {
		// Scheduled 23:50, observed 00:10 with the date unchanged: the
		// tracker reports clock times, so the calculator corrects the
		// apparent -23h40m to +20min.
		j := bookableJourney()
		j.Legs[0].ArrivalTime = "23:50"

		p := newTestPipeline(t, &fakeProber{}, &fakeTracker{arrivalTime: "00:10"}, nil)
		d := p.Settle(ctx, j)
		if d.Status != domain.StatusOK {
			t.Fatalf("expected OK, got status %d", d.Status)
		}
		if d.DelayMinutes != 20 {
			t.Errorf("expected 20 minutes delay, got %d", d.DelayMinutes)
		}
	})

	t.Run("TrackingFailure", func(t *testing.T) {
		p := newTestPipeline(t, &fakeProber{}, &fakeTracker{err: context.DeadlineExceeded}, nil)

		d := p.Settle(ctx, bookableJourney())
		if d.Status != domain.StatusError {
			t.Errorf("expected error status, got %d", d.Status)
		}
	})

	t.Run("EmptyJourney", func(t *testing.T) {
		p := newTestPipeline(t, &fakeProber{}, &fakeTracker{}, nil)

		d := p.Settle(ctx, domain.NewJourney())
		if d.Status != domain.StatusError {
			t.Errorf("expected error status, got %d", d.Status)
		}
	})
}
