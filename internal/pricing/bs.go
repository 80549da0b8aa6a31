package pricing

import (
	"math"
	"strings"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/contactkeval/bs-replay/internal/errors"
)

// OptionKind is the right carried by a European option.
type OptionKind string

const (
	Call OptionKind = "call"
	Put  OptionKind = "put"
)

// ParseOptionKind parses "call" or "put", ignoring case and surrounding spaces.
func ParseOptionKind(s string) (OptionKind, error) {
	switch OptionKind(strings.ToLower(strings.TrimSpace(s))) {
	case Call:
		return Call, nil
	case Put:
		return Put, nil
	}
	return "", errors.Newf(errors.ErrCodeInvalidOptionType, "invalid option type %q, use 'call' or 'put'", s)
}

// ContractParameters holds the market and contract inputs of one pricing call.
type ContractParameters struct {
	Spot       float64    `json:"spot"`       // S, underlying price
	Strike     float64    `json:"strike"`     // K
	Maturity   float64    `json:"maturity"`   // T, years
	Rate       float64    `json:"rate"`       // r, continuously compounded
	Volatility float64    `json:"volatility"` // sigma, annualized
	Kind       OptionKind `json:"kind"`
}

// Validate checks S, K, T and sigma are finite and strictly positive and the
// kind is known.
// The first violated constraint is reported.
func (p ContractParameters) Validate() error {
	checks := []struct {
		name  string
		value float64
	}{
		{"spot price (S)", p.Spot},
		{"strike price (K)", p.Strike},
		{"time to maturity (T)", p.Maturity},
		{"volatility (sigma)", p.Volatility},
	}
	for _, c := range checks {
		// written as !(v > 0) so NaN is rejected too
		if !(c.value > 0) {
			return errors.Newf(errors.ErrCodeDomain, "%s must be greater than 0, got %v", c.name, c.value)
		}
		if math.IsInf(c.value, 1) {
			return errors.Newf(errors.ErrCodeDomain, "%s must be finite, got %v", c.name, c.value)
		}
	}
	if math.IsNaN(p.Rate) || math.IsInf(p.Rate, 0) {
		return errors.Newf(errors.ErrCodeDomain, "risk-free rate (r) must be finite, got %v", p.Rate)
	}
	if _, err := ParseOptionKind(string(p.Kind)); err != nil {
		return err
	}
	return nil
}

// Price returns the Black-Scholes value of the contract.
func (p ContractParameters) Price() (float64, error) {
	if err := p.Validate(); err != nil {
		return 0, err
	}
	kind, _ := ParseOptionKind(string(p.Kind))

	S, K, T, r, sigma := p.Spot, p.Strike, p.Maturity, p.Rate, p.Volatility
	sqrtT := math.Sqrt(T)
	d1 := (math.Log(S/K) + (r+0.5*sigma*sigma)*T) / (sigma * sqrtT)
	d2 := d1 - sigma*sqrtT
	discountedK := K * math.Exp(-r*T)

	if kind == Call {
		return S*normCDF(d1) - discountedK*normCDF(d2), nil
	}
	return discountedK*normCDF(-d2) - S*normCDF(-d1), nil
}

// BlackScholesPrice calculates the price of a European option using the Black-Scholes model
// (continuous compounding, no dividends).
//
// Parameters:
//   - S: spot price of the underlying asset
//   - K: strike price of the option
//   - T: time to expiry in years
//   - r: risk-free interest rate (annual)
//   - sigma: volatility of the underlying asset (annual, as a decimal)
//   - kind: "call" or "put", case-insensitive
//
// Returns:
//
//	The theoretical price of the option. A DomainError is returned if S, K, T or sigma
//	is not strictly positive, and an InvalidOptionType error for an unknown kind.
func BlackScholesPrice(S, K, T, r, sigma float64, kind string) (float64, error) {
	return ContractParameters{
		Spot:       S,
		Strike:     K,
		Maturity:   T,
		Rate:       r,
		Volatility: sigma,
		Kind:       OptionKind(kind),
	}.Price()
}

// normCDF is the standard normal cumulative distribution function.
func normCDF(x float64) float64 {
	return distuv.UnitNormal.CDF(x)
}
