package report

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gocarina/gocsv"
	_ "github.com/marcboeker/go-duckdb"
	"gopkg.in/yaml.v3"

	"github.com/contactkeval/bs-replay/internal/backtest"
	"github.com/contactkeval/bs-replay/internal/errors"
)

// stepRow is one line of steps.csv.
type stepRow struct {
	Date           string  `csv:"date"`
	Index          int     `csv:"index"`
	Spot           float64 `csv:"spot"`
	Strike         float64 `csv:"strike"`
	Volatility     float64 `csv:"volatility"`
	CallPrice      float64 `csv:"call_price"`
	RealizedPayoff float64 `csv:"realized_payoff"`
	ForwardProfit  float64 `csv:"forward_profit"`
}

func toRows(steps []backtest.Step) []*stepRow {
	rows := make([]*stepRow, 0, len(steps))
	for _, st := range steps {
		rows = append(rows, &stepRow{
			Date:           st.Date.Format("2006-01-02"),
			Index:          st.Index,
			Spot:           st.Spot,
			Strike:         st.Strike,
			Volatility:     st.Volatility,
			CallPrice:      st.CallPrice,
			RealizedPayoff: st.RealizedPayoff,
			ForwardProfit:  st.ForwardProfit,
		})
	}
	return rows
}

// WriteCSV writes one row per step to <outdir>/steps.csv.
func WriteCSV(steps []backtest.Step, outdir string) (string, error) {
	path := filepath.Join(outdir, CSVFile)
	f, err := os.Create(path)
	if err != nil {
		return "", errors.Wrapf(errors.ErrCodeReport, err, "create %s", path)
	}
	defer f.Close()

	rows := toRows(steps)
	if err := gocsv.MarshalFile(&rows, f); err != nil {
		return "", errors.Wrapf(errors.ErrCodeReport, err, "write %s", path)
	}
	return path, nil
}

// WriteYAML writes the run header and summary, without steps, to <outdir>/summary.yaml.
func WriteYAML(rep *Report, outdir string) (string, error) {
	b, err := yaml.Marshal(rep)
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeReport, "marshal summary", err)
	}
	return writeFile(outdir, YAMLFile, b)
}

// WriteParquet exports steps to a Parquet file at path through an in-memory
// DuckDB database.
//
// Parameters:
//   - ctx: cancels the insert and export
//   - steps: the backtest steps, written in order
//   - path: destination file; its directory is created if missing
//
// Returns:
//   - error: a ReportError wrapping the DuckDB failure
func WriteParquet(ctx context.Context, steps []backtest.Step, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.Wrapf(errors.ErrCodeReport, err, "create directory for %s", path)
	}

	db, err := sql.Open("duckdb", "")
	if err != nil {
		return errors.Wrap(errors.ErrCodeReport, "open duckdb", err)
	}
	defer db.Close()

	if _, err := db.ExecContext(ctx, `
		CREATE TABLE steps (
			date DATE,
			"index" INTEGER,
			spot DOUBLE,
			strike DOUBLE,
			volatility DOUBLE,
			call_price DOUBLE,
			realized_payoff DOUBLE,
			forward_profit DOUBLE
		)`); err != nil {
		return errors.Wrap(errors.ErrCodeReport, "create steps table", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(errors.ErrCodeReport, "begin insert", err)
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO steps VALUES (CAST(? AS DATE), ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		_ = tx.Rollback()
		return errors.Wrap(errors.ErrCodeReport, "prepare insert", err)
	}
	for _, st := range steps {
		if _, err := stmt.ExecContext(ctx, st.Date.Format("2006-01-02"), st.Index, st.Spot, st.Strike,
			st.Volatility, st.CallPrice, st.RealizedPayoff, st.ForwardProfit); err != nil {
			_ = stmt.Close()
			_ = tx.Rollback()
			return errors.Wrapf(errors.ErrCodeReport, err, "insert step %d", st.Index)
		}
	}
	_ = stmt.Close()
	if err := tx.Commit(); err != nil {
		return errors.Wrap(errors.ErrCodeReport, "commit steps", err)
	}

	copySQL := fmt.Sprintf(`COPY (SELECT * FROM steps ORDER BY "index") TO '%s' (FORMAT PARQUET)`, quoteLiteral(path))
	if _, err := db.ExecContext(ctx, copySQL); err != nil {
		return errors.Wrapf(errors.ErrCodeReport, err, "export parquet %s", path)
	}
	return nil
}

// quoteLiteral escapes s for use inside a single-quoted SQL string.
func quoteLiteral(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}
