package backtest

import (
	"fmt"
	"math"

	"github.com/moznion/go-optional"

	"github.com/contactkeval/bs-replay/internal/errors"
	"github.com/contactkeval/bs-replay/internal/volatility"
)

// Summary aggregates a full pass. ROI and AnnualizedReturn are None when the
// value is not a real number; the matching *Reason field says why.
type Summary struct {
	Steps     int     `json:"steps"`
	TotalCost float64 `json:"total_cost"` // sum of call prices
	NetReturn float64 `json:"net_return"` // sum of realized payoffs
	NetProfit float64 `json:"net_profit"` // NetReturn - TotalCost
	Years     float64 `json:"years"`      // Steps / 252

	ROI       optional.Option[float64] `json:"-"`
	ROIReason string                   `json:"-"`

	// AnnualizedReturn is (NetReturn/TotalCost)^(1/Years), a gross yearly factor.
	AnnualizedReturn       optional.Option[float64] `json:"-"`
	AnnualizedReturnReason string                   `json:"-"`
}

// Summarize folds steps in index order.
func Summarize(steps []Step) Summary {
	s := Summary{
		Steps: len(steps),
		Years: float64(len(steps)) / volatility.TradingDaysPerYear,
	}
	for _, st := range steps {
		s.TotalCost += st.CallPrice
		s.NetReturn += st.RealizedPayoff
	}
	s.NetProfit = s.NetReturn - s.TotalCost

	s.ROI, s.ROIReason = roi(s.NetProfit, s.TotalCost)
	s.AnnualizedReturn, s.AnnualizedReturnReason = annualize(s.NetReturn, s.TotalCost, s.Years)
	return s
}

func roi(netProfit, totalCost float64) (optional.Option[float64], string) {
	if totalCost == 0 {
		return optional.None[float64](), "total cost is zero"
	}
	v := netProfit / totalCost
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return optional.None[float64](), fmt.Sprintf("net profit / total cost is not finite (%v / %v)", netProfit, totalCost)
	}
	return optional.Some(v), ""
}

func annualize(netReturn, totalCost, years float64) (optional.Option[float64], string) {
	if totalCost == 0 {
		return optional.None[float64](), "total cost is zero"
	}
	if !(years > 0) {
		return optional.None[float64](), "no elapsed years"
	}
	base := netReturn / totalCost
	if !(base > 0) {
		return optional.None[float64](), fmt.Sprintf("base net return / total cost = %g is not positive", base)
	}
	v := math.Pow(base, 1/years)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return optional.None[float64](), fmt.Sprintf("%g^(1/%g) is not finite", base, years)
	}
	return optional.Some(v), ""
}

// ROIValue returns the ROI or an UndefinedAggregate error.
func (s Summary) ROIValue() (float64, error) {
	if s.ROI.IsSome() {
		return s.ROI.Unwrap(), nil
	}
	return 0, errors.Newf(errors.ErrCodeUndefinedAggregate, "return on investment is undefined: %s", s.ROIReason)
}

// AnnualizedReturnValue returns the annualized return or an UndefinedAggregate error.
func (s Summary) AnnualizedReturnValue() (float64, error) {
	if s.AnnualizedReturn.IsSome() {
		return s.AnnualizedReturn.Unwrap(), nil
	}
	return 0, errors.Newf(errors.ErrCodeUndefinedAggregate, "annualized return is undefined: %s", s.AnnualizedReturnReason)
}
