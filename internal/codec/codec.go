// Package codec implements the compact wire encoding of a journey:
// tokens joined by ";" in fixed-width records of 7 fields per leg.
package codec

import (
	"strings"

	"github.com/parametric-rail/railpledge/internal/domain"
)

// Separator delimits tokens in the encoded form.
const Separator = ";"

// fieldsPerLeg is the fixed record width:
// train;start_stop;start_time;start_date;arrival_stop;arrival_time;arrival_date
const fieldsPerLeg = 7

// Decode parses an encoded journey. A token count that is not an exact
// multiple of 7 yields an empty journey, which downstream treats as
// empty input rather than an error. Decode never fails and performs no
// field validation; that is the validation collaborator's job.
func Decode(encoded string) *domain.Journey {
	tokens := strings.Split(encoded, Separator)
	if len(tokens)%fieldsPerLeg != 0 {
		return domain.NewJourney()
	}

	legs := make([]domain.Leg, 0, len(tokens)/fieldsPerLeg)
	for i := 0; i+fieldsPerLeg <= len(tokens); i += fieldsPerLeg {
		legs = append(legs, domain.Leg{
			Train:       tokens[i],
			StartStop:   tokens[i+1],
			StartTime:   tokens[i+2],
			StartDate:   tokens[i+3],
			ArrivalStop: tokens[i+4],
			ArrivalTime: tokens[i+5],
			ArrivalDate: tokens[i+6],
		})
	}
	return domain.NewJourney(legs...)
}

// Encode is the inverse of Decode for journeys whose field values
// contain no separator character.
func Encode(j *domain.Journey) string {
	if j.Empty() {
		return ""
	}

	tokens := make([]string, 0, len(j.Legs)*fieldsPerLeg)
	for _, leg := range j.Legs {
		tokens = append(tokens,
			leg.Train,
			leg.StartStop, leg.StartTime, leg.StartDate,
			leg.ArrivalStop, leg.ArrivalTime, leg.ArrivalDate,
		)
	}
	return strings.Join(tokens, Separator)
}
