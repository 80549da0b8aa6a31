package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contactkeval/bs-replay/internal/config"
	"github.com/contactkeval/bs-replay/internal/errors"
	"github.com/contactkeval/bs-replay/internal/logger"
	"github.com/contactkeval/bs-replay/internal/report"
)

func runCLI(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	logger.SetOutput(io.Discard)
	var out bytes.Buffer
	_, cmd := newApp(strings.NewReader(stdin), &out)
	err := cmd.Run(context.Background(), append([]string{"bs-replay"}, args...))
	return out.String(), err
}

func TestPriceFlags(t *testing.T) {
	out, err := runCLI(t, "", "price", "--spot", "100", "--strike", "105", "--maturity", "1", "--rate", "0.05", "--vol", "0.2")
	require.NoError(t, err)
	assert.Contains(t, out, "The call option price is: 8.0214")

	out, err = runCLI(t, "", "price", "--spot", "100", "--strike", "105", "--rate", "0.05", "--vol", "0.2", "--kind", "put")
	require.NoError(t, err)
	assert.Contains(t, out, "The put option price is: 7.9004")
}

func TestPriceFlagErrors(t *testing.T) {
	_, err := runCLI(t, "", "price", "--spot", "100", "--strike", "105", "--vol", "0")
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeDomain))

	_, err = runCLI(t, "", "price", "--spot", "100", "--strike", "105", "--vol", "0.2", "--kind", "swap")
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeInvalidOptionType))
}

func TestPriceInteractive(t *testing.T) {
	out, err := runCLI(t, "100\n105\n1\n0.05\n0.2\ncall\n", "price")
	require.NoError(t, err)
	assert.Contains(t, out, "Enter strike price (K)")
	assert.Contains(t, out, "The call option price is: 8.0214")
}

func TestBacktestSyntheticWritesReports(t *testing.T) {
	dir := t.TempDir()
	out, err := runCLI(t, "",
		"backtest",
		"--provider", "synthetic",
		"--seed", "3",
		"--workers", "2",
		"--report-dir", dir,
		"--no-progress",
	)
	require.NoError(t, err)
	assert.Contains(t, out, "Total Profit:")
	assert.Contains(t, out, "Total Cost:")
	assert.Contains(t, out, "Annualized returns:")

	for _, name := range []string{report.JSONFile, report.CSVFile, report.YAMLFile} {
		assert.FileExists(t, filepath.Join(dir, name))
	}
}

func TestBacktestConfigFileAndStartDate(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "run.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`
underlying: spy
data:
  provider: synthetic
  points: 700
report_dir: ""
`), 0644))

	out, err := runCLI(t, "", "--config", cfgPath, "backtest", "--no-progress", "--print-steps", "--start-date", "2016-03-01")
	require.NoError(t, err)
	assert.Contains(t, out, "index=")
	assert.Contains(t, out, "ROI:")
}

func TestBacktestTooShort(t *testing.T) {
	_, err := runCLI(t, "", "backtest", "--provider", "synthetic", "--report-dir", "", "--no-progress", "--start-index", "1400")
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeInsufficientData))
}

func TestBacktestCSV(t *testing.T) {
	dir := t.TempDir()
	var b strings.Builder
	b.WriteString("Date,Close\n")
	day := time.Date(2019, 1, 1, 0, 0, 0, 0, time.UTC)
	price := 100.0
	for i := 0; i < 520; i++ {
		price *= 1.0005
		if i%3 == 0 {
			price *= 0.997
		}
		fmt.Fprintf(&b, "%s,%.4f\n", day.AddDate(0, 0, i).Format(config.DateLayout), price)
	}
	csvPath := filepath.Join(dir, "x.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte(b.String()), 0644))

	out, err := runCLI(t, "", "backtest", "--csv", csvPath, "--report-dir", "", "--no-progress")
	require.NoError(t, err)
	assert.Contains(t, out, "Steps: 16")
}

func TestVol(t *testing.T) {
	out, err := runCLI(t, "", "vol", "--provider", "synthetic", "--underlying", "qqq", "--index", "300")
	require.NoError(t, err)
	assert.Contains(t, out, "QQQ trailing volatility at index 300")

	_, err = runCLI(t, "", "vol", "--provider", "synthetic", "--index", "10")
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeInsufficientHistory))
}

func TestIntegerFlags(t *testing.T) {
	a, err := runCLI(t, "", "-v", "0", "vol", "--provider", "synthetic", "--seed", "3", "--index", "400")
	require.NoError(t, err)
	b, err := runCLI(t, "", "-v", "0", "vol", "--provider", "synthetic", "--seed", "3", "--index", "400")
	require.NoError(t, err)
	c, err := runCLI(t, "", "-v", "0", "vol", "--provider", "synthetic", "--seed", "4", "--index", "400")
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Contains(t, a, "at index 400")
}
