package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v3"

	"github.com/contactkeval/bs-replay/internal/backtest"
	"github.com/contactkeval/bs-replay/internal/config"
	"github.com/contactkeval/bs-replay/internal/data"
	"github.com/contactkeval/bs-replay/internal/errors"
	"github.com/contactkeval/bs-replay/internal/logger"
	"github.com/contactkeval/bs-replay/internal/pricing"
	"github.com/contactkeval/bs-replay/internal/prompt"
	"github.com/contactkeval/bs-replay/internal/report"
	"github.com/contactkeval/bs-replay/internal/server"
	"github.com/contactkeval/bs-replay/internal/volatility"
)

// ---------------------------------------------------------------------------
// price
// ---------------------------------------------------------------------------

func (a *app) priceCommand() *cli.Command {
	return &cli.Command{
		Name:  "price",
		Usage: "price a European option; prompts for inputs when no contract flags are given",
		Flags: []cli.Flag{
			&cli.FloatFlag{Name: "spot", Aliases: []string{"S"}, Usage: "underlying price"},
			&cli.FloatFlag{Name: "strike", Aliases: []string{"K"}, Usage: "strike price"},
			&cli.FloatFlag{Name: "maturity", Aliases: []string{"T"}, Usage: "time to maturity in years", Value: 1},
			&cli.FloatFlag{Name: "rate", Aliases: []string{"r"}, Usage: "continuously compounded risk-free rate, e.g. 0.05"},
			&cli.FloatFlag{Name: "vol", Usage: "annualized volatility, e.g. 0.2"},
			&cli.StringFlag{Name: "kind", Usage: "call or put", Value: "call"},
			&cli.BoolFlag{Name: "interactive", Aliases: []string{"i"}, Usage: "prompt for every input"},
		},
		Action: a.priceAction,
	}
}

func (a *app) priceAction(ctx context.Context, cmd *cli.Command) error {
	if cmd.Bool("interactive") || !(cmd.IsSet("spot") || cmd.IsSet("strike") || cmd.IsSet("vol")) {
		return prompt.NewPrompterFromReader(a.in, a.out).RunPricer()
	}

	kind, err := pricing.ParseOptionKind(cmd.String("kind"))
	if err != nil {
		return err
	}
	c := pricing.ContractParameters{
		Spot:       cmd.Float("spot"),
		Strike:     cmd.Float("strike"),
		Maturity:   cmd.Float("maturity"),
		Rate:       cmd.Float("rate"),
		Volatility: cmd.Float("vol"),
		Kind:       kind,
	}
	price, err := c.Price()
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "The %s option price is: %.4f\n", c.Kind, price)
	return nil
}

// ---------------------------------------------------------------------------
// data flags shared by backtest, vol and serve
// ---------------------------------------------------------------------------

func dataFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "underlying", Aliases: []string{"u"}, Usage: "ticker symbol"},
		&cli.StringFlag{Name: "provider", Aliases: []string{"p"}, Usage: "auto, csv, local, massive or synthetic"},
		&cli.StringFlag{Name: "csv", Usage: "read closes from this CSV `FILE` (implies --provider csv)"},
		&cli.StringFlag{Name: "data-dir", Usage: "directory holding <TICKER>.csv files"},
		&cli.StringFlag{Name: "from", Usage: "first date, `YYYY-MM-DD`"},
		&cli.StringFlag{Name: "to", Usage: "last date, `YYYY-MM-DD`"},
		&cli.IntFlag{Name: "seed", Usage: "synthetic provider seed"},
	}
}

// applyDataFlags overlays explicitly set data flags on the loaded config.
func (a *app) applyDataFlags(cmd *cli.Command) {
	if cmd.IsSet("underlying") {
		a.cfg.Underlying = cmd.String("underlying")
	}
	if cmd.IsSet("provider") {
		a.cfg.Data.Provider = cmd.String("provider")
	}
	if cmd.IsSet("csv") {
		a.cfg.Data.Provider = config.ProviderCSV
		a.cfg.Data.CSVFile = cmd.String("csv")
	}
	if cmd.IsSet("data-dir") {
		a.cfg.Data.Dir = cmd.String("data-dir")
	}
	if cmd.IsSet("from") {
		a.cfg.From = cmd.String("from")
	}
	if cmd.IsSet("to") {
		a.cfg.To = cmd.String("to")
	}
	if cmd.IsSet("seed") {
		a.cfg.Data.Seed = cmd.Int("seed")
	}
}

// ---------------------------------------------------------------------------
// backtest
// ---------------------------------------------------------------------------

func (a *app) backtestCommand() *cli.Command {
	flags := append(dataFlags(),
		&cli.IntFlag{Name: "start-index", Usage: "first index that sells a call (>= 252)"},
		&cli.StringFlag{Name: "start-date", Usage: "first trading day on or after `YYYY-MM-DD` sells a call; overrides --start-index"},
		&cli.FloatFlag{Name: "strike-ratio", Usage: "strike as a multiple of spot, e.g. 1.05"},
		&cli.StringFlag{Name: "rate-mode", Usage: "strike_linked (r = ratio - 1) or fixed"},
		&cli.FloatFlag{Name: "rate", Usage: "rate used with --rate-mode fixed"},
		&cli.IntFlag{Name: "workers", Aliases: []string{"w"}, Usage: "steps priced concurrently"},
		&cli.StringFlag{Name: "report-dir", Usage: "write backtest.json, steps.csv and summary.yaml here; empty disables"},
		&cli.BoolFlag{Name: "parquet", Usage: "also export steps.parquet to the report dir"},
		&cli.BoolFlag{Name: "print-steps", Usage: "print every step"},
		&cli.BoolFlag{Name: "no-progress", Usage: "hide the progress bar"},
	)
	return &cli.Command{
		Name:   "backtest",
		Usage:  "replay selling one-year calls every trading day and summarize the outcome",
		Flags:  flags,
		Action: a.backtestAction,
	}
}

func (a *app) backtestAction(ctx context.Context, cmd *cli.Command) error {
	a.applyDataFlags(cmd)
	bt := &a.cfg.Backtest
	if cmd.IsSet("start-index") {
		bt.StartIndex = int(cmd.Int("start-index"))
	}
	if cmd.IsSet("strike-ratio") {
		bt.StrikeRatio = cmd.Float("strike-ratio")
	}
	if cmd.IsSet("rate-mode") {
		bt.RateMode = backtest.RateMode(cmd.String("rate-mode"))
	}
	if cmd.IsSet("rate") {
		bt.Rate = cmd.Float("rate")
		if !cmd.IsSet("rate-mode") {
			bt.RateMode = backtest.RateFixed
		}
	}
	if cmd.IsSet("workers") {
		bt.Workers = int(cmd.Int("workers"))
	}
	if cmd.IsSet("report-dir") {
		a.cfg.ReportDir = cmd.String("report-dir")
	}
	if cmd.IsSet("parquet") {
		a.cfg.Parquet = cmd.Bool("parquet")
	}
	a.cfg.ApplyDefaults()
	if err := a.cfg.Validate(); err != nil {
		return err
	}

	series, err := loadSeries(ctx, a.cfg)
	if err != nil {
		return err
	}

	if s := cmd.String("start-date"); s != "" {
		d, err := time.Parse(config.DateLayout, s)
		if err != nil {
			return errors.Wrapf(errors.ErrCodeInvalidConfig, err, "start date %q", s)
		}
		idx, ok := series.IndexOf(d, data.MatchHigher)
		if !ok {
			return errors.Newf(errors.ErrCodeInsufficientData, "no trading day on or after %s", s)
		}
		bt.StartIndex = idx
	}

	var opts []backtest.Option
	if total := series.Len() - backtest.ForwardWindow - bt.StartIndex; total > 0 && !cmd.Bool("no-progress") {
		bar := progressbar.NewOptions(total,
			progressbar.OptionSetDescription(fmt.Sprintf("Replaying %s", a.cfg.Underlying)),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
		)
		defer bar.Finish()
		opts = append(opts, backtest.WithProgress(func(done, total int) { _ = bar.Add(1) }))
	}

	start := time.Now()
	res, err := backtest.NewEngine(series, *bt, opts...).Run(ctx)
	if err != nil {
		return err
	}
	logger.Infof("replayed %d steps in %v", len(res.Steps), time.Since(start))

	if cmd.Bool("print-steps") {
		printSteps(a, res.Steps)
	}
	fmt.Fprintln(a.out)
	if err := report.PrintSummary(a.out, res.Summary); err != nil {
		return err
	}

	if a.cfg.ReportDir == "" {
		return nil
	}
	rep := report.New(res, a.cfg.Underlying)
	paths, err := report.WriteAll(rep, a.cfg.ReportDir)
	if err != nil {
		return err
	}
	if a.cfg.Parquet {
		p := filepath.Join(a.cfg.ReportDir, report.ParquetFile)
		if err := report.WriteParquet(ctx, res.Steps, p); err != nil {
			return err
		}
		paths = append(paths, p)
	}
	for _, p := range paths {
		logger.Infof("wrote %s", p)
	}
	return nil
}

func printSteps(a *app, steps []backtest.Step) {
	for _, st := range steps {
		fmt.Fprintf(a.out, "%s  index=%d  S=%.4f  K=%.4f  vol=%.6f  call=%.4f  forward=%.4f\n",
			st.Date.Format(config.DateLayout), st.Index, st.Spot, st.Strike, st.Volatility, st.CallPrice, st.ForwardProfit)
	}
}

// ---------------------------------------------------------------------------
// vol
// ---------------------------------------------------------------------------

func (a *app) volCommand() *cli.Command {
	return &cli.Command{
		Name:  "vol",
		Usage: "print the trailing 252-day annualized volatility at an index",
		Flags: append(dataFlags(),
			&cli.IntFlag{Name: "index", Usage: "series index; defaults to the end of the series"},
		),
		Action: a.volAction,
	}
}

func (a *app) volAction(ctx context.Context, cmd *cli.Command) error {
	a.applyDataFlags(cmd)
	a.cfg.ApplyDefaults()
	if err := a.cfg.Validate(); err != nil {
		return err
	}
	series, err := loadSeries(ctx, a.cfg)
	if err != nil {
		return err
	}

	idx := series.Len()
	if cmd.IsSet("index") {
		idx = int(cmd.Int("index"))
	}
	sigma, err := volatility.Trailing(series, idx)
	if err != nil {
		return err
	}

	asOf := series.Date(idx - 1).Format(config.DateLayout)
	fmt.Fprintf(a.out, "%s trailing volatility at index %d (closes through %s): %.6f\n",
		a.cfg.Underlying, idx, asOf, sigma)
	return nil
}

// ---------------------------------------------------------------------------
// serve
// ---------------------------------------------------------------------------

func (a *app) serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "serve /health, /price and /backtest over HTTP",
		Flags: append(dataFlags(),
			&cli.StringFlag{Name: "addr", Usage: "listen address, e.g. :8080"},
		),
		Action: a.serveAction,
	}
}

func (a *app) serveAction(ctx context.Context, cmd *cli.Command) error {
	a.applyDataFlags(cmd)
	if cmd.IsSet("addr") {
		a.cfg.Server.Addr = cmd.String("addr")
	}
	a.cfg.ApplyDefaults()
	if err := a.cfg.Validate(); err != nil {
		return err
	}
	series, err := loadSeries(ctx, a.cfg)
	if err != nil {
		return err
	}
	return server.New(series, a.cfg.Underlying, a.cfg.Backtest).Run(ctx, a.cfg.Server.Addr)
}
