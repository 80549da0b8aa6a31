// Package report renders backtest results: JSON, CSV, YAML and Parquet files,
// a console summary, and plot-ready series.
package report

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/contactkeval/bs-replay/internal/backtest"
	"github.com/contactkeval/bs-replay/internal/errors"
)

const (
	JSONFile    = "backtest.json"
	CSVFile     = "steps.csv"
	YAMLFile    = "summary.yaml"
	ParquetFile = "steps.parquet"
)

// Summary is the serialized form of backtest.Summary. Undefined aggregates are
// null with the reason alongside.
type Summary struct {
	Steps     int     `json:"steps" yaml:"steps"`
	TotalCost float64 `json:"total_cost" yaml:"total_cost"`
	NetReturn float64 `json:"net_return" yaml:"net_return"`
	NetProfit float64 `json:"net_profit" yaml:"net_profit"`
	Years     float64 `json:"years" yaml:"years"`

	ROI                       *float64 `json:"roi" yaml:"roi"`
	ROIUndefined              string   `json:"roi_undefined,omitempty" yaml:"roi_undefined,omitempty"`
	AnnualizedReturn          *float64 `json:"annualized_return" yaml:"annualized_return"`
	AnnualizedReturnUndefined string   `json:"annualized_return_undefined,omitempty" yaml:"annualized_return_undefined,omitempty"`
}

// Report is one backtest run as written to disk or returned over REST.
type Report struct {
	RunID       string          `json:"run_id" yaml:"run_id"`
	GeneratedAt time.Time       `json:"generated_at" yaml:"generated_at"`
	Underlying  string          `json:"underlying,omitempty" yaml:"underlying,omitempty"`
	Config      backtest.Config `json:"config" yaml:"config"`
	Summary     Summary         `json:"summary" yaml:"summary"`
	Steps       []backtest.Step `json:"steps,omitempty" yaml:"-"`
}

// New builds a Report for res with a fresh run id.
func New(res *backtest.Result, underlying string) *Report {
	return &Report{
		RunID:       uuid.New().String(),
		GeneratedAt: time.Now().UTC(),
		Underlying:  underlying,
		Config:      res.Config,
		Summary:     NewSummary(res.Summary),
		Steps:       res.Steps,
	}
}

func NewSummary(s backtest.Summary) Summary {
	out := Summary{
		Steps:     s.Steps,
		TotalCost: s.TotalCost,
		NetReturn: s.NetReturn,
		NetProfit: s.NetProfit,
		Years:     s.Years,
	}
	if s.ROI.IsSome() {
		v := s.ROI.Unwrap()
		out.ROI = &v
	} else {
		out.ROIUndefined = s.ROIReason
	}
	if s.AnnualizedReturn.IsSome() {
		v := s.AnnualizedReturn.Unwrap()
		out.AnnualizedReturn = &v
	} else {
		out.AnnualizedReturnUndefined = s.AnnualizedReturnReason
	}
	return out
}

// WriteJSON writes rep to <outdir>/backtest.json and returns the path.
func WriteJSON(rep *Report, outdir string) (string, error) {
	b, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeReport, "marshal report", err)
	}
	return writeFile(outdir, JSONFile, b)
}

// WriteAll writes the JSON, CSV and YAML reports into outdir.
func WriteAll(rep *Report, outdir string) ([]string, error) {
	if err := os.MkdirAll(outdir, 0755); err != nil {
		return nil, errors.Wrapf(errors.ErrCodeReport, err, "create report dir %s", outdir)
	}
	var paths []string
	p, err := WriteJSON(rep, outdir)
	if err != nil {
		return paths, err
	}
	paths = append(paths, p)

	if p, err = WriteCSV(rep.Steps, outdir); err != nil {
		return paths, err
	}
	paths = append(paths, p)

	if p, err = WriteYAML(rep, outdir); err != nil {
		return paths, err
	}
	return append(paths, p), nil
}

func writeFile(outdir, name string, b []byte) (string, error) {
	path := filepath.Join(outdir, name)
	if err := os.WriteFile(path, b, 0644); err != nil {
		return "", errors.Wrapf(errors.ErrCodeReport, err, "write %s", path)
	}
	return path, nil
}
