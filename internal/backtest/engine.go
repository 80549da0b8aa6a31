package backtest

import (
	"context"
	"math"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/contactkeval/bs-replay/internal/data"
	"github.com/contactkeval/bs-replay/internal/errors"
	"github.com/contactkeval/bs-replay/internal/logger"
	"github.com/contactkeval/bs-replay/internal/pricing"
	"github.com/contactkeval/bs-replay/internal/volatility"
)

const (
	// ForwardWindow is how many trading days after the sale each call is settled.
	ForwardWindow = volatility.TradingDaysPerYear
	// Maturity of every priced call, in years.
	Maturity = 1.0

	DefaultStartIndex  = volatility.TradingDaysPerYear
	DefaultStrikeRatio = 1.05
)

// RateMode selects the rate fed to the pricer.
type RateMode string

const (
	// RateStrikeLinked uses r = strikeRatio - 1. This couples the discount rate to
	// the strike offset; it is part of the strategy, not a market rate.
	RateStrikeLinked RateMode = "strike_linked"
	// RateFixed uses Config.Rate.
	RateFixed RateMode = "fixed"
)

// Config holds the strategy parameters of one backtest run.
type Config struct {
	StartIndex  int      `json:"start_index" yaml:"start_index"`   // first index that sells a call, >= 252
	StrikeRatio float64  `json:"strike_ratio" yaml:"strike_ratio"` // K = S * StrikeRatio, e.g. 1.05 for 5% OTM
	RateMode    RateMode `json:"rate_mode" yaml:"rate_mode"`       // default strike_linked
	Rate        float64  `json:"rate" yaml:"rate"`                 // used when RateMode is fixed
	Workers     int      `json:"workers" yaml:"workers"`           // steps priced concurrently, default 1
}

// WithDefaults fills zero values.
func (c Config) WithDefaults() Config {
	if c.StartIndex == 0 {
		c.StartIndex = DefaultStartIndex
	}
	if c.StrikeRatio == 0 {
		c.StrikeRatio = DefaultStrikeRatio
	}
	if c.RateMode == "" {
		c.RateMode = RateStrikeLinked
	}
	if c.Workers <= 0 {
		c.Workers = 1
	}
	return c
}

// Validate checks the strategy parameters, not the series length.
func (c Config) Validate() error {
	if c.StartIndex < volatility.TradingDaysPerYear {
		return errors.Newf(errors.ErrCodeInsufficientHistory,
			"start index %d leaves less than %d days of volatility history", c.StartIndex, volatility.TradingDaysPerYear)
	}
	if !(c.StrikeRatio > 0) || math.IsInf(c.StrikeRatio, 0) {
		return errors.Newf(errors.ErrCodeInvalidConfig, "strike ratio must be a positive number, got %v", c.StrikeRatio)
	}
	switch c.RateMode {
	case RateStrikeLinked, RateFixed:
	default:
		return errors.Newf(errors.ErrCodeInvalidConfig, "unknown rate mode %q", c.RateMode)
	}
	if math.IsNaN(c.Rate) || math.IsInf(c.Rate, 0) {
		return errors.Newf(errors.ErrCodeInvalidConfig, "rate must be finite, got %v", c.Rate)
	}
	return nil
}

// StrategyRate is the rate passed to the pricer for every step.
func (c Config) StrategyRate() float64 {
	if c.RateMode == RateFixed {
		return c.Rate
	}
	return c.StrikeRatio - 1
}

// Step is the hypothetical call sale made at one index.
type Step struct {
	Index          int       `json:"index"`
	Date           time.Time `json:"date"`
	Spot           float64   `json:"spot"`
	Strike         float64   `json:"strike"`
	Volatility     float64   `json:"volatility"`
	CallPrice      float64   `json:"call_price"`
	RealizedPayoff float64   `json:"realized_payoff"` // max(close[i+252] - ratio*S, 0)
	ForwardProfit  float64   `json:"forward_profit"`  // same, not floored
}

// Result is the output of one run.
type Result struct {
	Config  Config  `json:"config"`
	Steps   []Step  `json:"steps"`
	Summary Summary `json:"summary"`
}

type Engine struct {
	series data.Series
	cfg    Config
	onStep func(done, total int)
}

// Option customizes an Engine.
type Option func(*Engine)

// WithProgress registers fn to be called after each completed step.
// With Workers > 1 it is called from several goroutines.
func WithProgress(fn func(done, total int)) Option {
	return func(e *Engine) { e.onStep = fn }
}

func NewEngine(series data.Series, cfg Config, opts ...Option) *Engine {
	e := &Engine{series: series, cfg: cfg.WithDefaults()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Config returns the effective configuration, defaults applied.
func (e *Engine) Config() Config {
	return e.cfg
}

// Run executes the backtest over [StartIndex, Len-252).
//
// Every step must succeed: the first pricing or volatility error aborts the run
// and no partial result is returned.
func (e *Engine) Run(ctx context.Context) (*Result, error) {
	cfg := e.cfg
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	start := cfg.StartIndex
	end := e.series.Len() - ForwardWindow // exclusive
	if end <= start {
		return nil, errors.Newf(errors.ErrCodeInsufficientData,
			"series has %d points, start index %d needs at least %d", e.series.Len(), start, start+ForwardWindow+1)
	}

	rate := cfg.StrategyRate()
	logger.Infof("backtest over indices [%d, %d): strike_ratio=%.4f rate=%.4f (%s) workers=%d",
		start, end, cfg.StrikeRatio, rate, cfg.RateMode, cfg.Workers)

	steps := make([]Step, end-start)
	var err error
	if cfg.Workers > 1 {
		err = e.runParallel(ctx, steps, start, rate)
	} else {
		err = e.runSequential(ctx, steps, start, rate)
	}
	if err != nil {
		return nil, err
	}

	summary := Summarize(steps)
	logger.Infof("backtest done: steps=%d total_cost=%.4f net_return=%.4f net_profit=%.4f years=%.4f",
		summary.Steps, summary.TotalCost, summary.NetReturn, summary.NetProfit, summary.Years)

	return &Result{Config: cfg, Steps: steps, Summary: summary}, nil
}

func (e *Engine) runSequential(ctx context.Context, steps []Step, start int, rate float64) error {
	for k := range steps {
		if err := ctx.Err(); err != nil {
			return err
		}
		st, err := e.step(start+k, rate)
		if err != nil {
			return err
		}
		steps[k] = st
		if e.onStep != nil {
			e.onStep(k+1, len(steps))
		}
	}
	return nil
}

// runParallel prices steps concurrently. Each goroutine writes only its own
// slot, so the later reduction sees the same values in the same order as the
// sequential pass. On failure it returns the error of the lowest failing
// index, matching runSequential: steps above a known failure are skipped,
// steps below it still run.
func (e *Engine) runParallel(ctx context.Context, steps []Step, start int, rate float64) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Workers)

	errs := make([]error, len(steps))
	var failed atomic.Int64
	failed.Store(int64(len(steps)))

	var done atomic.Int64
	for k := range steps {
		if gctx.Err() != nil || int64(k) > failed.Load() {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if int64(k) > failed.Load() {
				return nil
			}
			st, err := e.step(start+k, rate)
			if err != nil {
				errs[k] = err
				for {
					cur := failed.Load()
					if int64(k) >= cur || failed.CompareAndSwap(cur, int64(k)) {
						break
					}
				}
				return nil
			}
			steps[k] = st
			n := done.Add(1)
			if e.onStep != nil {
				e.onStep(int(n), len(steps))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	if f := failed.Load(); f < int64(len(steps)) {
		return errs[f]
	}
	// the loop may have stopped early without any goroutine failing
	return ctx.Err()
}

func (e *Engine) step(i int, rate float64) (Step, error) {
	ratio := e.cfg.StrikeRatio
	date := e.series.Date(i)
	S := e.series.Close(i)
	K := S * ratio

	sigma, err := volatility.Trailing(e.series, i)
	if err != nil {
		return Step{}, errors.Wrapf(errors.GetCode(err), err, "step %d (%s)", i, date.Format("2006-01-02"))
	}

	callPrice, err := pricing.BlackScholesPrice(S, K, Maturity, rate, sigma, string(pricing.Call))
	if err != nil {
		return Step{}, errors.Wrapf(errors.GetCode(err), err, "step %d (%s) S=%.4f K=%.4f sigma=%g",
			i, date.Format("2006-01-02"), S, K, sigma)
	}

	forward := e.series.Close(i+ForwardWindow) - ratio*S
	st := Step{
		Index:          i,
		Date:           date,
		Spot:           S,
		Strike:         K,
		Volatility:     sigma,
		CallPrice:      callPrice,
		RealizedPayoff: math.Max(forward, 0),
		ForwardProfit:  forward,
	}
	logger.Tracef("step %d %s S=%.4f K=%.4f vol=%.6f call=%.6f payoff=%.6f",
		i, date.Format("2006-01-02"), S, K, sigma, callPrice, st.RealizedPayoff)
	return st, nil
}
