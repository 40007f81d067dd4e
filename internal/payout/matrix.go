// Package payout resolves the insured payout amount for a journey from
// the delay probability and the requested policy tier. Amounts come
// from a per-tier matrix keyed by whole probability percentages.
package payout

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/parametric-rail/railpledge/internal/domain"
)

//go:embed matrix.json
var embeddedMatrix []byte

// matrixRows is the number of whole-percentage rows per tier, 0..100
// inclusive.
const matrixRows = 101

// Matrix maps a policy tier and a whole probability percentage to the
// payout amount. It is immutable after loading.
type Matrix struct {
	amounts map[domain.Tier][]float64
}

// LoadMatrix loads the payout matrix from path, or the embedded
// default when path is empty. Every concrete tier must carry a
// complete set of rows for percentages 0 through 100.
func LoadMatrix(path string) (*Matrix, error) {
	raw := embeddedMatrix
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read payout matrix: %w", err)
		}
		raw = data
	}

	var parsed map[string]map[string]float64
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("parse payout matrix: %w", err)
	}

	m := &Matrix{amounts: make(map[domain.Tier][]float64, len(domain.PolicyTiers))}
	for _, tier := range domain.PolicyTiers {
		rows, ok := parsed[string(tier)]
		if !ok {
			return nil, fmt.Errorf("payout matrix: missing tier %q", tier)
		}
		amounts := make([]float64, matrixRows)
		for i := 0; i < matrixRows; i++ {
			amount, ok := rows[strconv.Itoa(i)]
			if !ok {
				return nil, fmt.Errorf("payout matrix: tier %q missing row %d", tier, i)
			}
			if amount < 0 {
				return nil, fmt.Errorf("payout matrix: tier %q row %d is negative", tier, i)
			}
			amounts[i] = amount
		}
		m.amounts[tier] = amounts
	}
	return m, nil
}

// Amount returns the payout for a tier at a whole probability
// percentage row.
func (m *Matrix) Amount(tier domain.Tier, row int) (float64, error) {
	amounts, ok := m.amounts[tier]
	if !ok {
		return 0, fmt.Errorf("payout matrix: unknown tier %q", tier)
	}
	if row < 0 || row >= matrixRows {
		return 0, fmt.Errorf("payout matrix: row %d out of range", row)
	}
	return amounts[row], nil
}
