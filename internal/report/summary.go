package report

import (
	"fmt"
	"io"
	"time"

	"github.com/contactkeval/bs-replay/internal/backtest"
)

// PrintSummary writes the aggregate lines of a run to w. Undefined values are
// printed as "undefined (<reason>)".
func PrintSummary(w io.Writer, s backtest.Summary) error {
	roi := "undefined (" + s.ROIReason + ")"
	if s.ROI.IsSome() {
		roi = fmt.Sprintf("%.4f", s.ROI.Unwrap())
	}
	ann := "undefined (" + s.AnnualizedReturnReason + ")"
	if s.AnnualizedReturn.IsSome() {
		ann = fmt.Sprintf("%.4f", s.AnnualizedReturn.Unwrap())
	}

	_, err := fmt.Fprintf(w,
		"Steps: %d\nTotal Profit: %.4f\nTotal Cost: %.4f\nNet Return: %.4f\nROI: %s\nYears: %.4f\nAnnualized returns: %s\n",
		s.Steps, s.NetProfit, s.TotalCost, s.NetReturn, roi, s.Years, ann)
	return err
}

// TimeSeriesData holds parallel slices for a dated line plot.
type TimeSeriesData struct {
	Dates          []time.Time `json:"dates"`
	CallPrices     []float64   `json:"call_prices"`
	ForwardProfits []float64   `json:"forward_profits"`
}

// TimeSeries extracts call prices and unfloored forward profits by date.
func TimeSeries(steps []backtest.Step) TimeSeriesData {
	ts := TimeSeriesData{
		Dates:          make([]time.Time, len(steps)),
		CallPrices:     make([]float64, len(steps)),
		ForwardProfits: make([]float64, len(steps)),
	}
	for i, st := range steps {
		ts.Dates[i] = st.Date
		ts.CallPrices[i] = st.CallPrice
		ts.ForwardProfits[i] = st.ForwardProfit
	}
	return ts
}

type ScatterPoint struct {
	CallPrice     float64 `json:"call_price"`
	ForwardProfit float64 `json:"forward_profit"`
}

// Scatter pairs each call price with its forward profit.
func Scatter(steps []backtest.Step) []ScatterPoint {
	pts := make([]ScatterPoint, len(steps))
	for i, st := range steps {
		pts[i] = ScatterPoint{CallPrice: st.CallPrice, ForwardProfit: st.ForwardProfit}
	}
	return pts
}
