// Package testutil holds price-series fixtures shared by package tests.
package testutil

import (
	"testing"
	"time"

	"github.com/contactkeval/bs-replay/internal/data"
)

// Start is the first bar date of every fixture series (a Thursday).
var Start = time.Date(2020, 1, 2, 0, 0, 0, 0, time.UTC)

// FromCloses builds a business-day series from closes or fails the test.
func FromCloses(t testing.TB, closes []float64) *data.PriceSeries {
	t.Helper()
	s, err := data.SeriesFromCloses(Start, closes)
	if err != nil {
		t.Fatalf("building series: %v", err)
	}
	return s
}

// ConstantSeries returns n bars all closing at price.
func ConstantSeries(t testing.TB, n int, price float64) *data.PriceSeries {
	t.Helper()
	closes := make([]float64, n)
	for i := range closes {
		closes[i] = price
	}
	return FromCloses(t, closes)
}

// LinearSeries returns closes first, first+step, first+2*step, ...
func LinearSeries(t testing.TB, n int, first, step float64) *data.PriceSeries {
	t.Helper()
	closes := make([]float64, n)
	for i := range closes {
		closes[i] = first + float64(i)*step
	}
	return FromCloses(t, closes)
}

// NoisySeries returns price with a deterministic alternating relative
// perturbation of eps, so realized volatility is tiny but nonzero.
func NoisySeries(t testing.TB, n int, price, eps float64) *data.PriceSeries {
	t.Helper()
	closes := make([]float64, n)
	for i := range closes {
		if i%2 == 0 {
			closes[i] = price
		} else {
			closes[i] = price * (1 + eps)
		}
	}
	return FromCloses(t, closes)
}
