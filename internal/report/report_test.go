package report

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"gopkg.in/yaml.v3"

	"github.com/contactkeval/bs-replay/internal/backtest"
)

type ReportSuite struct {
	suite.Suite
	day0 time.Time
}

func TestReportSuite(t *testing.T) {
	suite.Run(t, new(ReportSuite))
}

func (s *ReportSuite) SetupTest() {
	s.day0 = time.Date(2021, 1, 4, 0, 0, 0, 0, time.UTC)
}

func (s *ReportSuite) steps(n int, call, payoff float64) []backtest.Step {
	out := make([]backtest.Step, n)
	for i := range out {
		out[i] = backtest.Step{
			Index:          252 + i,
			Date:           s.day0.AddDate(0, 0, i),
			Spot:           100,
			Strike:         105,
			Volatility:     0.2,
			CallPrice:      call,
			RealizedPayoff: payoff,
			ForwardProfit:  payoff - 1,
		}
	}
	return out
}

func (s *ReportSuite) result(steps []backtest.Step) *backtest.Result {
	return &backtest.Result{
		Config:  backtest.Config{}.WithDefaults(),
		Steps:   steps,
		Summary: backtest.Summarize(steps),
	}
}

func (s *ReportSuite) TestNewReport() {
	rep := New(s.result(s.steps(504, 1, 2)), "SPY")

	_, err := uuid.Parse(rep.RunID)
	s.NoError(err)
	s.Equal("SPY", rep.Underlying)
	s.Len(rep.Steps, 504)
	s.Require().NotNil(rep.Summary.ROI)
	s.Equal(1.0, *rep.Summary.ROI)
	s.Require().NotNil(rep.Summary.AnnualizedReturn)
	s.InDelta(1.41421356, *rep.Summary.AnnualizedReturn, 1e-8)
	s.Empty(rep.Summary.ROIUndefined)
}

func (s *ReportSuite) TestWriteJSONUndefinedIsNull() {
	dir := s.T().TempDir()
	rep := New(s.result(s.steps(3, 0, 0)), "")

	path, err := WriteJSON(rep, dir)
	s.Require().NoError(err)
	s.Equal(filepath.Join(dir, JSONFile), path)

	b, err := os.ReadFile(path)
	s.Require().NoError(err)

	var raw map[string]any
	s.Require().NoError(json.Unmarshal(b, &raw))
	summary := raw["summary"].(map[string]any)
	s.Contains(summary, "roi")
	s.Nil(summary["roi"])
	s.Nil(summary["annualized_return"])
	s.Equal("total cost is zero", summary["roi_undefined"])
	s.Len(raw["steps"], 3)
}

func (s *ReportSuite) TestWriteCSV() {
	dir := s.T().TempDir()
	steps := s.steps(4, 1.5, 3)

	path, err := WriteCSV(steps, dir)
	s.Require().NoError(err)

	f, err := os.Open(path)
	s.Require().NoError(err)
	defer f.Close()

	var rows []stepRow
	s.Require().NoError(gocsv.UnmarshalFile(f, &rows))
	s.Require().Len(rows, 4)
	s.Equal("2021-01-04", rows[0].Date)
	s.Equal(252, rows[0].Index)
	s.Equal(1.5, rows[0].CallPrice)
	s.Equal(3.0, rows[0].RealizedPayoff)
	s.Equal(2.0, rows[0].ForwardProfit)
	s.Equal(255, rows[3].Index)
}

func (s *ReportSuite) TestWriteYAMLOmitsSteps() {
	dir := s.T().TempDir()
	rep := New(s.result(s.steps(10, 1, 0)), "QQQ")

	path, err := WriteYAML(rep, dir)
	s.Require().NoError(err)

	b, err := os.ReadFile(path)
	s.Require().NoError(err)
	s.NotContains(string(b), "steps:\n  -")

	var back Report
	s.Require().NoError(yaml.Unmarshal(b, &back))
	s.Equal(rep.RunID, back.RunID)
	s.Equal("QQQ", back.Underlying)
	s.Equal(10, back.Summary.Steps)
	s.Require().NotNil(back.Summary.ROI)
	s.Equal(-1.0, *back.Summary.ROI)
	s.Nil(back.Summary.AnnualizedReturn)
	s.NotEmpty(back.Summary.AnnualizedReturnUndefined)
	s.Equal(backtest.RateStrikeLinked, back.Config.RateMode)
}

func (s *ReportSuite) TestWriteAll() {
	dir := filepath.Join(s.T().TempDir(), "nested", "out")

	paths, err := WriteAll(New(s.result(s.steps(2, 1, 1)), ""), dir)
	s.Require().NoError(err)
	s.Len(paths, 3)
	for _, p := range paths {
		s.FileExists(p)
	}
}

func (s *ReportSuite) TestWriteParquet() {
	path := filepath.Join(s.T().TempDir(), "it's", ParquetFile)
	steps := s.steps(5, 2, 4)

	s.Require().NoError(WriteParquet(context.Background(), steps, path))
	s.FileExists(path)

	db, err := sql.Open("duckdb", "")
	s.Require().NoError(err)
	defer db.Close()

	var n int
	var total float64
	row := db.QueryRow(`SELECT count(*), sum(call_price) FROM read_parquet('` + quoteLiteral(path) + `')`)
	s.Require().NoError(row.Scan(&n, &total))
	s.Equal(5, n)
	s.Equal(10.0, total)
}

func (s *ReportSuite) TestParquetColumnsMatchCSV() {
	dir := s.T().TempDir()
	steps := s.steps(3, 1, 2)

	csvPath, err := WriteCSV(steps, dir)
	s.Require().NoError(err)
	b, err := os.ReadFile(csvPath)
	s.Require().NoError(err)
	header := strings.Split(strings.SplitN(string(b), "\n", 2)[0], ",")

	path := filepath.Join(dir, ParquetFile)
	s.Require().NoError(WriteParquet(context.Background(), steps, path))

	db, err := sql.Open("duckdb", "")
	s.Require().NoError(err)
	defer db.Close()

	rows, err := db.Query(`SELECT * FROM read_parquet('` + quoteLiteral(path) + `') LIMIT 0`)
	s.Require().NoError(err)
	defer rows.Close()
	cols, err := rows.Columns()
	s.Require().NoError(err)
	s.Equal(header, cols)

	var first int
	s.Require().NoError(db.QueryRow(`SELECT min("index") FROM read_parquet('` + quoteLiteral(path) + `')`).Scan(&first))
	s.Equal(252, first)
}

func (s *ReportSuite) TestPrintSummary() {
	var buf bytes.Buffer
	s.Require().NoError(PrintSummary(&buf, backtest.Summarize(s.steps(504, 1, 2))))
	out := buf.String()
	s.Contains(out, "Total Profit: 504.0000")
	s.Contains(out, "Total Cost: 504.0000")
	s.Contains(out, "ROI: 1.0000")
	s.Contains(out, "Years: 2.0000")
	s.Contains(out, "Annualized returns: 1.4142")

	buf.Reset()
	s.Require().NoError(PrintSummary(&buf, backtest.Summarize(s.steps(3, 0, 0))))
	s.Contains(buf.String(), "ROI: undefined (total cost is zero)")
	s.Contains(buf.String(), "Annualized returns: undefined (total cost is zero)")
}

func (s *ReportSuite) TestPlotSeries() {
	steps := s.steps(3, 1, 2)
	steps[1].CallPrice = 7

	ts := TimeSeries(steps)
	s.Len(ts.Dates, 3)
	s.Equal(s.day0.AddDate(0, 0, 1), ts.Dates[1])
	s.Equal([]float64{1, 7, 1}, ts.CallPrices)
	s.Equal([]float64{1, 1, 1}, ts.ForwardProfits)

	pts := Scatter(steps)
	s.Len(pts, 3)
	s.Equal(ScatterPoint{CallPrice: 7, ForwardProfit: 1}, pts[1])

	s.Empty(Scatter(nil))
	s.Empty(TimeSeries(nil).Dates)
}
