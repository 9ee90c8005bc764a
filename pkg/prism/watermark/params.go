package watermark

import (
	"math"

	"github.com/prismdata/prism-go/pkg/prism"
)

// Selection chooses how the oracle decides whether a record is marked.
type Selection int

const (
	// SelectModulus marks a record when the selection lane is divisible by
	// floor(1/Gamma). The marked fraction is 1/floor(1/Gamma), which only
	// approximates Gamma.
	SelectModulus Selection = iota
	// SelectFraction marks a record when the selection lane, read as a
	// fraction of 2^64, is below Gamma.
	SelectFraction
)

func (s Selection) String() string {
	switch s {
	case SelectModulus:
		return "modulus"
	case SelectFraction:
		return "fraction"
	default:
		return "unknown"
	}
}

// ParseSelection parses "modulus" or "fraction".
func ParseSelection(s string) (Selection, error) {
	switch s {
	case "", "modulus":
		return SelectModulus, nil
	case "fraction":
		return SelectFraction, nil
	default:
		return 0, prism.Errorf("watermark.ParseSelection", "%w: unknown selection %q", prism.ErrInvalidParameter, s)
	}
}

// MaxBits is the largest accepted L. The sign bit is never touched.
const MaxBits = 62

// Params configures a Marker.
type Params struct {
	// Gamma is the target fraction of records marked, in (0, 1].
	Gamma float64
	// L is the number of low-order bits eligible for marking.
	L int
	// Threshold is the minimum match ratio reported as Detected, in [0, 1].
	Threshold float64
	// Selection picks the inclusion test.
	Selection Selection
}

// DefaultParams returns Gamma 0.4, L 2, Threshold 0.5 and modulus selection.
func DefaultParams() Params {
	return Params{Gamma: 0.4, L: 2, Threshold: 0.5, Selection: SelectModulus}
}

// Validate checks every parameter range.
func (p Params) Validate() error {
	const op = "watermark.Params"
	if math.IsNaN(p.Gamma) || p.Gamma <= 0 || p.Gamma > 1 {
		return prism.Errorf(op, "%w: gamma %v not in (0, 1]", prism.ErrInvalidParameter, p.Gamma)
	}
	if p.L < 1 || p.L > MaxBits {
		return prism.Errorf(op, "%w: l %d not in [1, %d]", prism.ErrInvalidParameter, p.L, MaxBits)
	}
	if err := validThreshold(p.Threshold); err != nil {
		return prism.Wrap(op, err)
	}
	if p.Selection != SelectModulus && p.Selection != SelectFraction {
		return prism.Errorf(op, "%w: unknown selection %d", prism.ErrInvalidParameter, p.Selection)
	}
	return nil
}

func validThreshold(t float64) error {
	if math.IsNaN(t) || t < 0 || t > 1 {
		return prism.Errorf("threshold", "%w: %v not in [0, 1]", prism.ErrInvalidParameter, t)
	}
	return nil
}
