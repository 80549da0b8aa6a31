package data

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/shopspring/decimal"

	"github.com/contactkeval/bs-replay/internal/errors"
	"github.com/contactkeval/bs-replay/internal/logger"
)

// csvDateLayouts are tried in order; the first is the Nasdaq export format.
var csvDateLayouts = []string{"01/02/2006", "1/2/2006", "2006-01-02"}

// csvRow mirrors a Nasdaq historical-quotes export
// (Date,Close/Last,Volume,Open,High,Low). A plain "Close" column is accepted too.
type csvRow struct {
	Date      string `csv:"Date"`
	CloseLast string `csv:"Close/Last"`
	Close     string `csv:"Close"`
	Volume    string `csv:"Volume"`
	Open      string `csv:"Open"`
	High      string `csv:"High"`
	Low       string `csv:"Low"`
}

// localFileDataProvider reads <dir>/<UNDERLYING>.csv, or one fixed file.
type localFileDataProvider struct {
	dir       string
	file      string
	secondary Provider
}

// NewLocalFileDataProvider convenience constructor.
func NewLocalFileDataProvider(dir string, secondary Provider) *localFileDataProvider {
	return &localFileDataProvider{dir: dir, secondary: secondary}
}

// NewCSVFileDataProvider serves every underlying from the file at path.
func NewCSVFileDataProvider(path string, secondary Provider) *localFileDataProvider {
	return &localFileDataProvider{file: path, secondary: secondary}
}

func (localFileDataProv *localFileDataProvider) Name() string { return "csv" }

func (localFileDataProv *localFileDataProvider) Secondary() Provider {
	return localFileDataProv.secondary
}

// GetBars loads the underlying's CSV file and keeps bars within [fromDate, toDate].
// A zero bound is open. If the file is missing the secondary provider is asked.
func (localFileDataProv *localFileDataProvider) GetBars(ctx context.Context, underlying string, fromDate, toDate time.Time) ([]Bar, error) {
	path := localFileDataProv.file
	if path == "" {
		path = filepath.Join(localFileDataProv.dir, strings.ToUpper(underlying)+".csv")
	}

	bars, err := LoadCSVFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fromSecondary(ctx, localFileDataProv.secondary, err, underlying, fromDate, toDate)
		}
		return nil, err
	}
	return filterBars(bars, fromDate, toDate), nil
}

// LoadCSVFile opens path and parses it with ReadCSV.
func LoadCSVFile(path string) ([]Bar, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeDataSource, err, "open %s", path)
	}
	defer f.Close()

	bars, err := ReadCSV(f)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeDataSource, err, "read %s", path)
	}
	logger.Debugf("read %d rows from %s", len(bars), path)
	return bars, nil
}

// ReadCSV parses daily quotes. Prices may carry "$" and thousands separators.
// Rows come back in file order; NewSeries sorts them.
func ReadCSV(r io.Reader) ([]Bar, error) {
	var rows []*csvRow
	if err := gocsv.Unmarshal(r, &rows); err != nil {
		return nil, errors.Wrap(errors.ErrCodeDataSource, "decode csv", err)
	}

	bars := make([]Bar, 0, len(rows))
	for i, row := range rows {
		line := i + 2 // header is line 1

		date, err := parseCSVDate(row.Date)
		if err != nil {
			return nil, errors.Wrapf(errors.ErrCodeDataSource, err, "line %d", line)
		}

		closeText := row.CloseLast
		if strings.TrimSpace(closeText) == "" {
			closeText = row.Close
		}
		closePx, err := parsePrice(closeText, true)
		if err != nil {
			return nil, errors.Wrapf(errors.ErrCodeDataSource, err, "line %d close", line)
		}

		var b Bar
		b.Date = date
		b.Close = closePx
		for _, f := range []struct {
			dst  *float64
			text string
			name string
		}{
			{&b.Open, row.Open, "open"},
			{&b.High, row.High, "high"},
			{&b.Low, row.Low, "low"},
			{&b.Vol, row.Volume, "volume"},
		} {
			v, err := parsePrice(f.text, false)
			if err != nil {
				return nil, errors.Wrapf(errors.ErrCodeDataSource, err, "line %d %s", line, f.name)
			}
			*f.dst = v
		}
		bars = append(bars, b)
	}
	return bars, nil
}

func parseCSVDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	var lastErr error
	for _, layout := range csvDateLayouts {
		t, err := time.ParseInLocation(layout, s, time.UTC)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, errors.Wrapf(errors.ErrCodeDataSource, lastErr, "unparseable date %q", s)
}

// parsePrice accepts values such as "$1,234.56". Empty optional fields read as 0.
func parsePrice(s string, required bool) (float64, error) {
	s = strings.TrimSpace(s)
	s = strings.NewReplacer("$", "", ",", "", " ", "").Replace(s)
	if s == "" || strings.EqualFold(s, "N/A") {
		if required {
			return 0, errors.New(errors.ErrCodeDataSource, "missing value")
		}
		return 0, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, errors.Wrapf(errors.ErrCodeDataSource, err, "invalid number %q", s)
	}
	return d.InexactFloat64(), nil
}
