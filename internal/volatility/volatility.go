// Package volatility estimates realized volatility from daily closes under a
// 252-trading-day-year convention.
package volatility

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/contactkeval/bs-replay/internal/data"
	"github.com/contactkeval/bs-replay/internal/errors"
)

// TradingDaysPerYear is both the annualization factor and the trailing window length.
const TradingDaysPerYear = 252

// Trailing returns the annualized volatility of the TradingDaysPerYear closes
// strictly before index, i.e. closes at [index-252, index).
func Trailing(series data.Series, index int) (float64, error) {
	if index < TradingDaysPerYear {
		return 0, errors.Newf(errors.ErrCodeInsufficientHistory,
			"trailing volatility at index %d needs %d prior observations", index, TradingDaysPerYear)
	}
	if index > series.Len() {
		return 0, errors.Newf(errors.ErrCodeInsufficientData,
			"trailing volatility at index %d is past the end of a %d-point series", index, series.Len())
	}

	closes := make([]float64, 0, TradingDaysPerYear)
	for i := index - TradingDaysPerYear; i < index; i++ {
		closes = append(closes, series.Close(i))
	}

	sigma, err := Annualized(closes)
	if err != nil {
		return 0, errors.Wrapf(errors.GetCode(err), err, "trailing volatility at index %d", index)
	}
	return sigma, nil
}

// Annualized returns the sample standard deviation (n-1 denominator) of the
// daily log returns of closes, scaled by sqrt(252).
func Annualized(closes []float64) (float64, error) {
	returns, err := LogReturns(closes)
	if err != nil {
		return 0, err
	}
	if len(returns) < 2 {
		return 0, errors.Newf(errors.ErrCodeInsufficientHistory,
			"volatility needs at least 2 returns, got %d", len(returns))
	}
	return stat.StdDev(returns, nil) * math.Sqrt(TradingDaysPerYear), nil
}

// LogReturns returns ln(P_t / P_{t-1}) for each consecutive pair.
// Every price must be strictly positive.
func LogReturns(closes []float64) ([]float64, error) {
	if len(closes) < 2 {
		return nil, nil
	}
	out := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		prev, cur := closes[i-1], closes[i]
		if !(prev > 0) || !(cur > 0) {
			return nil, errors.Newf(errors.ErrCodeDomain,
				"log return undefined for prices %v -> %v at offset %d", prev, cur, i)
		}
		out = append(out, math.Log(cur/prev))
	}
	return out, nil
}
