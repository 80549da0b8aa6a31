// Package config loads run settings from JSON or YAML files and the environment.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/contactkeval/bs-replay/internal/backtest"
	"github.com/contactkeval/bs-replay/internal/errors"
)

const (
	DateLayout = "2006-01-02"

	// APIKeyEnv holds the Massive API key. The legacy Polygon name is also read.
	APIKeyEnv       = "MASSIVE_API_KEY"
	LegacyAPIKeyEnv = "POLYGON_API_KEY"
)

// Provider names accepted in DataConfig.Provider.
const (
	ProviderAuto      = "auto" // massive if a key is set, then local files, then synthetic
	ProviderCSV       = "csv"
	ProviderLocal     = "local"
	ProviderMassive   = "massive"
	ProviderSynthetic = "synthetic"
)

type DataConfig struct {
	Provider   string  `json:"provider" yaml:"provider" validate:"oneof=auto csv local massive synthetic"`
	Dir        string  `json:"dir,omitempty" yaml:"dir,omitempty"`           // <dir>/<UNDERLYING>.csv
	CSVFile    string  `json:"csv_file,omitempty" yaml:"csv_file,omitempty"` // required for provider csv
	Seed       int64   `json:"seed" yaml:"seed"`
	Points     int     `json:"points" yaml:"points" validate:"gte=0"`
	StartPrice float64 `json:"start_price" yaml:"start_price" validate:"gt=0"`
	DailyVol   float64 `json:"daily_vol" yaml:"daily_vol" validate:"gte=0"`
}

type ServerConfig struct {
	Addr string `json:"addr" yaml:"addr" validate:"required"`
}

type Config struct {
	Underlying string          `json:"underlying" yaml:"underlying" validate:"required"`
	From       string          `json:"from,omitempty" yaml:"from,omitempty" validate:"omitempty,datetime=2006-01-02"`
	To         string          `json:"to,omitempty" yaml:"to,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Data       DataConfig      `json:"data" yaml:"data"`
	Backtest   backtest.Config `json:"backtest" yaml:"backtest"`
	ReportDir  string          `json:"report_dir,omitempty" yaml:"report_dir,omitempty"`
	Parquet    bool            `json:"parquet" yaml:"parquet"`
	Verbosity  int             `json:"verbosity" yaml:"verbosity" validate:"gte=0,lte=3"`
	Server     ServerConfig    `json:"server" yaml:"server"`
}

// Default returns the settings used when no file is given.
func Default() Config {
	return Config{
		Underlying: "SPY",
		Data: DataConfig{
			Provider:   ProviderAuto,
			Dir:        "data",
			Seed:       1,
			Points:     252 * 6,
			StartPrice: 100,
			DailyVol:   0.01,
		},
		Backtest:  backtest.Config{}.WithDefaults(),
		ReportDir: "reports",
		Verbosity: 1,
		Server:    ServerConfig{Addr: ":8080"},
	}
}

// Load reads path over Default(). Files ending in .yaml or .yml are YAML,
// everything else JSON. The result is validated.
//
// Parameters:
//   - path: config file location
//
// Returns:
//   - Config: defaults overlaid with the file contents
//   - error: an InvalidConfig error on read, decode or validation failure
func Load(path string) (Config, error) {
	cfg := Default()
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrapf(errors.ErrCodeInvalidConfig, err, "read config %s", path)
	}
	if err := Decode(b, filepath.Ext(path), &cfg); err != nil {
		return cfg, errors.Wrapf(errors.ErrCodeInvalidConfig, err, "decode config %s", path)
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Decode unmarshals b into cfg according to the file extension ext.
func Decode(b []byte, ext string, cfg *Config) error {
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		return yaml.Unmarshal(b, cfg)
	default:
		return json.Unmarshal(b, cfg)
	}
}

// ApplyDefaults fills zero values left by a partial file or flags.
func (c *Config) ApplyDefaults() {
	def := Default()
	c.Underlying = strings.ToUpper(strings.TrimSpace(c.Underlying))
	if c.Underlying == "" {
		c.Underlying = def.Underlying
	}
	if c.Data.Provider == "" {
		c.Data.Provider = def.Data.Provider
	}
	c.Data.Provider = strings.ToLower(c.Data.Provider)
	if c.Data.StartPrice == 0 {
		c.Data.StartPrice = def.Data.StartPrice
	}
	if c.Data.Points == 0 {
		c.Data.Points = def.Data.Points
	}
	c.Backtest = c.Backtest.WithDefaults()
	if c.Server.Addr == "" {
		c.Server.Addr = def.Server.Addr
	}
}

// Validate checks field constraints, the date range and the backtest settings.
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfig, "invalid config", err)
	}
	if c.Data.Provider == ProviderCSV && c.Data.CSVFile == "" {
		return errors.New(errors.ErrCodeInvalidConfig, "provider csv needs data.csv_file")
	}
	from, to, err := c.Range()
	if err != nil {
		return err
	}
	if !from.IsZero() && !to.IsZero() && from.After(to) {
		return errors.Newf(errors.ErrCodeInvalidConfig, "from %s is after to %s", c.From, c.To)
	}
	if err := c.Backtest.Validate(); err != nil {
		return errors.Wrap(errors.GetCode(err), "invalid backtest settings", err)
	}
	return nil
}

// Range parses From and To. Empty values give zero times.
func (c Config) Range() (from, to time.Time, err error) {
	if c.From != "" {
		if from, err = time.Parse(DateLayout, c.From); err != nil {
			return from, to, errors.Wrapf(errors.ErrCodeInvalidConfig, err, "from %q", c.From)
		}
	}
	if c.To != "" {
		if to, err = time.Parse(DateLayout, c.To); err != nil {
			return from, to, errors.Wrapf(errors.ErrCodeInvalidConfig, err, "to %q", c.To)
		}
	}
	return from, to, nil
}

// LoadEnv loads KEY=VALUE files into the process environment without
// overriding variables already set. With no arguments ./.env is tried, and a
// missing default file is not an error.
func LoadEnv(files ...string) error {
	if len(files) == 0 {
		if _, err := os.Stat(".env"); err != nil {
			return nil
		}
		files = []string{".env"}
	}
	if err := godotenv.Load(files...); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfig, "load env file", err)
	}
	return nil
}

// APIKey returns the Massive API key from the environment, or "".
func APIKey() string {
	if k := os.Getenv(APIKeyEnv); k != "" {
		return k
	}
	return os.Getenv(LegacyAPIKeyEnv)
}
