package data

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/contactkeval/bs-replay/internal/errors"
)

// synthDataProvider generates a reproducible geometric random walk on business days.
type synthDataProvider struct {
	seed       int64
	startPrice float64
	dailyVol   float64
	points     int
	secondary  Provider
}

// NewSyntheticProvider returns a provider seeded with seed. When GetBars is called
// with a zero toDate it produces exactly points bars starting at fromDate.
func NewSyntheticProvider(seed int64, startPrice, dailyVol float64, points int) *synthDataProvider {
	return &synthDataProvider{
		seed:       seed,
		startPrice: startPrice,
		dailyVol:   dailyVol,
		points:     points,
	}
}

func (synthDataProv *synthDataProvider) Name() string { return "synthetic" }

func (synthDataProv *synthDataProvider) Secondary() Provider {
	return synthDataProv.secondary
}

func (synthDataProv *synthDataProvider) GetBars(ctx context.Context, underlying string, fromDate, toDate time.Time) ([]Bar, error) {
	if synthDataProv.startPrice <= 0 {
		return nil, errors.Newf(errors.ErrCodeDataSource, "synthetic start price must be > 0, got %v", synthDataProv.startPrice)
	}
	if toDate.IsZero() && synthDataProv.points <= 0 {
		return nil, errors.New(errors.ErrCodeDataSource, "synthetic provider needs an end date or a point count")
	}
	if fromDate.IsZero() {
		fromDate = time.Date(2015, 1, 2, 0, 0, 0, 0, time.UTC)
	}

	rng := rand.New(rand.NewSource(synthDataProv.seed))
	sigma := synthDataProv.dailyVol
	price := synthDataProv.startPrice

	var out []Bar
	for cur := fromDate; ; cur = cur.AddDate(0, 0, 1) {
		if !toDate.IsZero() && cur.After(toDate) {
			break
		}
		if toDate.IsZero() && len(out) >= synthDataProv.points {
			break
		}
		if cur.Weekday() == time.Saturday || cur.Weekday() == time.Sunday {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		open := price
		closePx := price * math.Exp(sigma*rng.NormFloat64()-0.5*sigma*sigma)
		high := math.Max(open, closePx) * (1 + math.Abs(rng.NormFloat64())*sigma/4)
		low := math.Min(open, closePx) * (1 - math.Abs(rng.NormFloat64())*sigma/4)
		out = append(out, Bar{
			Date:  cur,
			Open:  open,
			High:  high,
			Low:   low,
			Close: closePx,
			Vol:   float64(1000 + rng.Intn(5000)),
		})
		price = closePx
	}
	return out, nil
}
