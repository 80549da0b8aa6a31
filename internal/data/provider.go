package data

import (
	"context"
	"time"

	"github.com/contactkeval/bs-replay/internal/errors"
	"github.com/contactkeval/bs-replay/internal/logger"
)

// Provider supplies daily bars for an underlying.
//
// Providers form a fallback chain: when a provider cannot serve a request it
// delegates to its Secondary, if any.
type Provider interface {
	Name() string
	Secondary() Provider
	GetBars(ctx context.Context, underlying string, fromDate, toDate time.Time) ([]Bar, error)
}

// LoadSeries fetches bars from prov and turns them into a validated PriceSeries.
func LoadSeries(ctx context.Context, prov Provider, underlying string, fromDate, toDate time.Time) (*PriceSeries, error) {
	logger.Infof("loading %s bars from %s provider", underlying, prov.Name())

	bars, err := prov.GetBars(ctx, underlying, fromDate, toDate)
	if err != nil {
		return nil, err
	}
	if len(bars) == 0 {
		return nil, errors.Newf(errors.ErrCodeDataSource, "%s provider returned no bars for %s", prov.Name(), underlying)
	}

	series, err := NewSeries(bars)
	if err != nil {
		return nil, err
	}
	logger.Infof("loaded %d bars for %s (%s .. %s)",
		series.Len(),
		underlying,
		series.Date(0).Format("2006-01-02"),
		series.Date(series.Len()-1).Format("2006-01-02"),
	)
	return series, nil
}

// fromSecondary delegates to secondary or reports cause when there is none.
func fromSecondary(ctx context.Context, secondary Provider, cause error, underlying string, fromDate, toDate time.Time) ([]Bar, error) {
	if secondary == nil {
		return nil, cause
	}
	logger.Debugf("falling back to %s provider: %v", secondary.Name(), cause)
	return secondary.GetBars(ctx, underlying, fromDate, toDate)
}
