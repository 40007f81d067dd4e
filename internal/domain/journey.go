// Package domain defines the core types shared across Railpledge.
package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrNoLegs is returned when an instant is requested from a journey
// without any legs.
var ErrNoLegs = errors.New("journey has no legs")

// Leg is one train segment of a journey, from one boarding to one
// alighting. All fields are strings at the boundary; times and dates
// are combined into instants on demand.
type Leg struct {
	Train       string `json:"train"`
	StartStop   string `json:"start_stop"`
	StartTime   string `json:"start_time"` // HH:MM
	StartDate   string `json:"start_date"` // YYYY-MM-DD
	ArrivalStop string `json:"arrival_stop"`
	ArrivalTime string `json:"arrival_time"`
	ArrivalDate string `json:"arrival_date"`
}

// Journey is an ordered sequence of legs from initial departure to
// final arrival. On the wire it is a mapping from leg_1..leg_n to legs;
// the keys must be contiguous integers starting at 1.
type Journey struct {
	Legs []Leg
}

// NewJourney creates a journey from legs in travel order.
func NewJourney(legs ...Leg) *Journey {
	return &Journey{Legs: legs}
}

// Empty reports whether the journey has no legs.
func (j *Journey) Empty() bool {
	return j == nil || len(j.Legs) == 0
}

// FirstLeg returns the first leg of the journey.
func (j *Journey) FirstLeg() (Leg, error) {
	if j.Empty() {
		return Leg{}, ErrNoLegs
	}
	return j.Legs[0], nil
}

// LastLeg returns the final leg of the journey.
func (j *Journey) LastLeg() (Leg, error) {
	if j.Empty() {
		return Leg{}, ErrNoLegs
	}
	return j.Legs[len(j.Legs)-1], nil
}

// instantLayout combines the wire date and time fields.
// Parsed in the system's local timezone so that offsets sent upstream
// follow the actual timezone rules, not a fixed assumption.
const instantLayout = "2006-01-02 15:04"

func combineInstant(date, clock string) (time.Time, error) {
	return time.ParseInLocation(instantLayout, date+" "+clock, time.Local)
}

// DepartureInstant is the combined start date/time of the first leg.
func (j *Journey) DepartureInstant() (time.Time, error) {
	first, err := j.FirstLeg()
	if err != nil {
		return time.Time{}, err
	}
	return combineInstant(first.StartDate, first.StartTime)
}

// ArrivalInstant is the combined arrival date/time of the last leg.
func (j *Journey) ArrivalInstant() (time.Time, error) {
	last, err := j.LastLeg()
	if err != nil {
		return time.Time{}, err
	}
	return combineInstant(last.ArrivalDate, last.ArrivalTime)
}

// Fingerprint returns a stable content hash of the journey, used as
// the probability cache key. Leg order and field order are fixed, so
// identical journeys fingerprint identically regardless of origin.
func (j *Journey) Fingerprint() string {
	var b strings.Builder
	for i, leg := range j.Legs {
		fmt.Fprintf(&b, "leg_%d|%s|%s|%s|%s|%s|%s|%s\n",
			i+1, leg.Train,
			leg.StartStop, leg.StartTime, leg.StartDate,
			leg.ArrivalStop, leg.ArrivalTime, leg.ArrivalDate,
		)
	}
	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

// MarshalJSON serializes the journey as {"leg_1": {...}, "leg_2": {...}}.
func (j Journey) MarshalJSON() ([]byte, error) {
	out := make(map[string]Leg, len(j.Legs))
	for i, leg := range j.Legs {
		out["leg_"+strconv.Itoa(i+1)] = leg
	}
	return json.Marshal(out)
}

// UnmarshalJSON parses the numbered-key wire shape, enforcing that the
// keys are exactly leg_1..leg_n with no gaps or duplicates.
func (j *Journey) UnmarshalJSON(data []byte) error {
	var raw map[string]Leg
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	legs := make([]Leg, len(raw))
	seen := make([]bool, len(raw))
	for key, leg := range raw {
		suffix, ok := strings.CutPrefix(key, "leg_")
		if !ok {
			return fmt.Errorf("journey key %q: keys must be leg_1..leg_%d", key, len(raw))
		}
		n, err := strconv.Atoi(suffix)
		if err != nil || n < 1 || n > len(raw) {
			return fmt.Errorf("journey key %q: keys must be leg_1..leg_%d", key, len(raw))
		}
		if seen[n-1] {
			return fmt.Errorf("journey key %q: duplicate leg number", key)
		}
		seen[n-1] = true
		legs[n-1] = leg
	}

	j.Legs = legs
	return nil
}
