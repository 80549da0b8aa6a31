// Package data provides market data providers and the price series the
// backtest reads from.
//
// This file contains a Massive-backed Provider that retrieves adjusted daily
// aggregates through the Massive Go SDK.
package data

import (
	"context"
	"strings"
	"time"

	massive "github.com/massive-com/client-go/v2/rest"
	"github.com/massive-com/client-go/v2/rest/models"

	"github.com/contactkeval/bs-replay/internal/errors"
	"github.com/contactkeval/bs-replay/internal/logger"
)

// maxAggsLimit is the largest page size the aggregates endpoint accepts.
const maxAggsLimit = 50000

// aggsFetcher drains an aggregates query. Swapped out in tests.
type aggsFetcher func(ctx context.Context, params *models.ListAggsParams) ([]models.Agg, error)

// massiveDataProvider implements the Provider interface using Massive APIs.
type massiveDataProvider struct {
	fetch     aggsFetcher
	secondary Provider
}

// NewMassiveDataProvider constructs a Massive-backed data provider.
//
// Parameters:
//   - apiKey: Massive API key for authentication
//   - secondary: optional fallback provider used when Massive fails or returns nothing
//
// Returns:
//   - *massiveDataProvider: initialized provider instance
//   - error: if apiKey is empty
func NewMassiveDataProvider(apiKey string, secondary Provider) (*massiveDataProvider, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New(errors.ErrCodeDataSource, "massive api key is required")
	}
	logger.Infof("initializing Massive data provider")

	client := massive.New(apiKey)
	return &massiveDataProvider{
		fetch: func(ctx context.Context, params *models.ListAggsParams) ([]models.Agg, error) {
			iter := client.ListAggs(ctx, params)
			var out []models.Agg
			for iter.Next() {
				out = append(out, iter.Item())
			}
			return out, iter.Err()
		},
		secondary: secondary,
	}, nil
}

func (massiveDataProv *massiveDataProvider) Name() string { return "massive" }

// Secondary returns the configured secondary Provider, if any.
func (massiveDataProv *massiveDataProvider) Secondary() Provider {
	return massiveDataProv.secondary
}

// GetBars retrieves adjusted daily bars for underlying in ascending order.
//
// Parameters:
//   - underlying: ticker symbol
//   - fromDate: first day (inclusive); zero means 20 years back
//   - toDate: last day (inclusive); zero means today
//
// Returns:
//   - []Bar: time-ordered bars
//   - error: if the request fails and no secondary provider can serve it
func (massiveDataProv *massiveDataProvider) GetBars(ctx context.Context, underlying string, fromDate, toDate time.Time) ([]Bar, error) {
	if toDate.IsZero() {
		toDate = time.Now().UTC()
	}
	if fromDate.IsZero() {
		fromDate = toDate.AddDate(-20, 0, 0)
	}

	logger.Debugf(
		"fetching bars: %s from=%s to=%s",
		underlying,
		fromDate.Format("2006-01-02"),
		toDate.Format("2006-01-02"),
	)

	params := models.ListAggsParams{
		Ticker:     strings.ToUpper(underlying),
		Multiplier: 1,
		Timespan:   models.Day,
		From:       models.Millis(fromDate),
		To:         models.Millis(toDate),
	}.WithAdjusted(true).WithOrder(models.Asc).WithLimit(maxAggsLimit)

	aggs, err := massiveDataProv.fetch(ctx, params)
	if err != nil {
		logger.Errorf("bars request failed for %s: %v", underlying, err)
		cause := errors.Wrapf(errors.ErrCodeDataSource, err, "massive aggregates for %s", underlying)
		return fromSecondary(ctx, massiveDataProv.secondary, cause, underlying, fromDate, toDate)
	}
	if len(aggs) == 0 {
		cause := errors.Newf(errors.ErrCodeDataSource, "massive returned no aggregates for %s", underlying)
		return fromSecondary(ctx, massiveDataProv.secondary, cause, underlying, fromDate, toDate)
	}

	logger.Tracef("bars received: %d records", len(aggs))

	out := make([]Bar, 0, len(aggs))
	for _, agg := range aggs {
		ts := time.Time(agg.Timestamp).UTC()
		out = append(out, Bar{
			Date:  time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, time.UTC),
			Open:  agg.Open,
			High:  agg.High,
			Low:   agg.Low,
			Close: agg.Close,
			Vol:   agg.Volume,
		})
	}
	return out, nil
}
