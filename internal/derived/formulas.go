package derived

import (
	"errors"
	"fmt"
)

// Derivation names how a metric is computed from its provenance inputs.
type Derivation string

const (
	PassThrough   Derivation = "pass_through"
	Ratio         Derivation = "ratio"
	Percent       Derivation = "percent"
	VacancyRate   Derivation = "vacancy_rate"
	PercentChange Derivation = "percent_change"
	SharePercent  Derivation = "share_percent"
	Scaled        Derivation = "scaled"
)

var (
	ErrUnknownDerivation = errors.New("unknown derivation")
	ErrInputCount        = errors.New("wrong number of inputs for derivation")
	ErrUndefined         = errors.New("derivation undefined for inputs")
)

// Exact reports whether d must match its source bit for bit.
func (d Derivation) Exact() bool {
	return d == PassThrough
}

// Valid reports whether d is a known derivation.
func (d Derivation) Valid() bool {
	switch d {
	case PassThrough, Ratio, Percent, VacancyRate, PercentChange, SharePercent, Scaled:
		return true
	}
	return false
}

// Compute evaluates d over inputs, which are ordered as the metric's provenance list.
func Compute(d Derivation, factor float64, in []float64) (float64, error) {
	need := func(n int) error {
		if len(in) != n {
			return fmt.Errorf("%w: %s wants %d, got %d", ErrInputCount, d, n, len(in))
		}
		return nil
	}
	div := func(a, b float64) (float64, error) {
		if b == 0 {
			return 0, fmt.Errorf("%w: %s divides by zero", ErrUndefined, d)
		}
		return a / b, nil
	}

	switch d {
	case PassThrough:
		if err := need(1); err != nil {
			return 0, err
		}
		return in[0], nil
	case Ratio:
		if err := need(2); err != nil {
			return 0, err
		}
		return div(in[0], in[1])
	case Percent:
		if err := need(2); err != nil {
			return 0, err
		}
		r, err := div(in[0], in[1])
		return r * 100, err
	case VacancyRate:
		if err := need(3); err != nil {
			return 0, err
		}
		total, owner, renter := in[0], in[1], in[2]
		r, err := div(total-(owner+renter), total)
		return r * 100, err
	case PercentChange:
		if err := need(2); err != nil {
			return 0, err
		}
		r, err := div(in[0]-in[1], in[1])
		return r * 100, err
	case SharePercent:
		if len(in) < 2 {
			return 0, fmt.Errorf("%w: %s wants at least 2, got %d", ErrInputCount, d, len(in))
		}
		var sum float64
		for _, v := range in[:len(in)-1] {
			sum += v
		}
		r, err := div(sum, in[len(in)-1])
		return r * 100, err
	case Scaled:
		if err := need(1); err != nil {
			return 0, err
		}
		if factor == 0 {
			return 0, fmt.Errorf("%w: scaled needs a non-zero factor", ErrUndefined)
		}
		return in[0] * factor, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownDerivation, d)
	}
}
