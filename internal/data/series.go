package data

import (
	"math"
	"sort"
	"time"

	"github.com/contactkeval/bs-replay/internal/errors"
)

// DateMatchType selects how a calendar date is mapped onto a trading day.
type DateMatchType string

const (
	MatchExact   DateMatchType = "exact"   // must match exactly
	MatchHigher  DateMatchType = "higher"  // first trading day on or after target
	MatchLower   DateMatchType = "lower"   // last trading day on or before target
	MatchNearest DateMatchType = "nearest" // closest trading day (default)
)

// Bar is one daily OHLCV record.
type Bar struct {
	Date  time.Time `json:"date"`
	Open  float64   `json:"open"`
	High  float64   `json:"high"`
	Low   float64   `json:"low"`
	Close float64   `json:"close"`
	Vol   float64   `json:"volume"`
}

// Series is the read-only view of a price history the backtest needs:
// an ascending-by-date sequence addressed by index.
type Series interface {
	Len() int
	Close(i int) float64
	Date(i int) time.Time
}

// PriceSeries is an ascending, gap-free (as far as the caller is concerned)
// sequence of daily bars. It is never mutated after construction.
type PriceSeries struct {
	bars []Bar
}

// NewSeries copies bars, sorts them by date and validates them.
// Duplicate dates and negative or non-finite closes are rejected.
func NewSeries(bars []Bar) (*PriceSeries, error) {
	out := make([]Bar, len(bars))
	copy(out, bars)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })

	for i, b := range out {
		if math.IsNaN(b.Close) || math.IsInf(b.Close, 0) || b.Close < 0 {
			return nil, errors.Newf(errors.ErrCodeDataSource,
				"bar %s has invalid close %v", b.Date.Format("2006-01-02"), b.Close)
		}
		if i > 0 && !out[i-1].Date.Before(b.Date) {
			return nil, errors.Newf(errors.ErrCodeDataSource,
				"duplicate bar date %s", b.Date.Format("2006-01-02"))
		}
	}
	return &PriceSeries{bars: out}, nil
}

// SeriesFromCloses builds a series of consecutive business days starting at start.
func SeriesFromCloses(start time.Time, closes []float64) (*PriceSeries, error) {
	bars := make([]Bar, 0, len(closes))
	d := start
	for _, c := range closes {
		for d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
			d = d.AddDate(0, 0, 1)
		}
		bars = append(bars, Bar{Date: d, Open: c, High: c, Low: c, Close: c})
		d = d.AddDate(0, 0, 1)
	}
	return NewSeries(bars)
}

func (s *PriceSeries) Len() int { return len(s.bars) }

func (s *PriceSeries) Close(i int) float64 { return s.bars[i].Close }

func (s *PriceSeries) Date(i int) time.Time { return s.bars[i].Date }

// Bar returns the i-th bar.
func (s *PriceSeries) Bar(i int) Bar { return s.bars[i] }

// Closes returns a copy of all closing prices.
func (s *PriceSeries) Closes() []float64 {
	out := make([]float64, len(s.bars))
	for i, b := range s.bars {
		out[i] = b.Close
	}
	return out
}

// IndexOf maps d onto a trading-day index according to mode.
// The boolean is false when no bar satisfies the mode.
func (s *PriceSeries) IndexOf(d time.Time, mode DateMatchType) (int, bool) {
	switch mode {
	case MatchExact, MatchHigher, MatchLower, MatchNearest:
	default:
		mode = MatchNearest
	}

	n := len(s.bars)
	// first bar on or after d
	i := sort.Search(n, func(i int) bool { return !s.bars[i].Date.Before(d) })
	exact := i < n && s.bars[i].Date.Equal(d)

	switch mode {
	case MatchExact:
		return i, exact
	case MatchHigher:
		return i, i < n
	case MatchLower:
		if exact {
			return i, true
		}
		return i - 1, i > 0
	}

	if exact {
		return i, true
	}
	switch {
	case i > 0 && i < n:
		if d.Sub(s.bars[i-1].Date) <= s.bars[i].Date.Sub(d) {
			return i - 1, true
		}
		return i, true
	case i > 0:
		return i - 1, true
	case i < n:
		return i, true
	}
	return -1, false
}

func filterBars(bars []Bar, fromDate, toDate time.Time) []Bar {
	if fromDate.IsZero() && toDate.IsZero() {
		return bars
	}
	out := bars[:0:0]
	for _, b := range bars {
		if !fromDate.IsZero() && b.Date.Before(fromDate) {
			continue
		}
		if !toDate.IsZero() && b.Date.After(toDate) {
			continue
		}
		out = append(out, b)
	}
	return out
}
