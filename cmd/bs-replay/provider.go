package main

import (
	"context"

	"github.com/contactkeval/bs-replay/internal/config"
	"github.com/contactkeval/bs-replay/internal/data"
	"github.com/contactkeval/bs-replay/internal/logger"
)

// buildProvider assembles the provider chain selected by cfg.Data.Provider.
// The auto chain is massive (when a key is set), then local files, then synthetic.
func buildProvider(cfg config.Config) (data.Provider, error) {
	synth := data.NewSyntheticProvider(cfg.Data.Seed, cfg.Data.StartPrice, cfg.Data.DailyVol, cfg.Data.Points)

	switch cfg.Data.Provider {
	case config.ProviderSynthetic:
		return synth, nil
	case config.ProviderCSV:
		return data.NewCSVFileDataProvider(cfg.Data.CSVFile, nil), nil
	case config.ProviderLocal:
		return data.NewLocalFileDataProvider(cfg.Data.Dir, nil), nil
	case config.ProviderMassive:
		prov, err := data.NewMassiveDataProvider(config.APIKey(), nil)
		if err != nil {
			return nil, err
		}
		return prov, nil
	}

	local := data.NewLocalFileDataProvider(cfg.Data.Dir, synth)
	key := config.APIKey()
	if key == "" {
		logger.Infof("%s not set, using %s/<ticker>.csv with synthetic fallback", config.APIKeyEnv, cfg.Data.Dir)
		return local, nil
	}
	prov, err := data.NewMassiveDataProvider(key, local)
	if err != nil {
		return nil, err
	}
	logger.Infof("massive provider enabled")
	return prov, nil
}

// loadSeries builds the provider for cfg and loads the configured date range.
func loadSeries(ctx context.Context, cfg config.Config) (*data.PriceSeries, error) {
	prov, err := buildProvider(cfg)
	if err != nil {
		return nil, err
	}
	from, to, err := cfg.Range()
	if err != nil {
		return nil, err
	}
	return data.LoadSeries(ctx, prov, cfg.Underlying, from, to)
}
