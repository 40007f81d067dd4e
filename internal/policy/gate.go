// Package policy implements the insurability gates applied before any
// probability is fetched.
package policy

import (
	"strings"
	"time"

	"github.com/parametric-rail/railpledge/internal/domain"
)

// Gate evaluates the booking-window constraint. The clock is
// injectable so boundary behavior is testable without a real clock.
type Gate struct {
	minLeadDays float64
	maxLeadDays float64
	now         func() time.Time
}

// NewGate creates a gate from the policy configuration.
func NewGate(cfg domain.PolicyConfig) *Gate {
	g := &Gate{
		minLeadDays: cfg.MinLeadDays,
		maxLeadDays: cfg.MaxLeadDays,
		now:         time.Now,
	}
	if g.minLeadDays == 0 && g.maxLeadDays == 0 {
		g.minLeadDays = 1
		g.maxLeadDays = 10
	}
	return g
}

// WithClock overrides the gate's clock. Test use only.
func (g *Gate) WithClock(now func() time.Time) *Gate {
	g.now = now
	return g
}

// OutOfTimeframe reports whether the journey departs outside the
// bookable window. The window is exclusive on both ends: a departure
// exactly MinLeadDays or exactly MaxLeadDays away is rejected.
func (g *Gate) OutOfTimeframe(j *domain.Journey) (bool, error) {
	dep, err := j.DepartureInstant()
	if err != nil {
		return false, err
	}
	diffDays := dep.Sub(g.now()).Hours() / 24
	return diffDays <= g.minLeadDays || diffDays >= g.maxLeadDays, nil
}

// IncludesRailReplacement reports whether any leg is operated by a
// rail-replacement bus. Buses are excluded from coverage because their
// delay statistics are not modeled. The check is a case-insensitive
// substring match on the train identifier.
func IncludesRailReplacement(j *domain.Journey) bool {
	for _, leg := range j.Legs {
		if strings.Contains(strings.ToLower(leg.Train), "bus") {
			return true
		}
	}
	return false
}
