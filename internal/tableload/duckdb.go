// Copyright (C) 2025 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package tableload

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cardinalhq/lakescanner/internal/dataset"
	"github.com/cardinalhq/lakescanner/internal/duckdbx"
	"github.com/cardinalhq/lakescanner/internal/idgen"
	"github.com/cardinalhq/lakescanner/internal/logctx"
	"github.com/cardinalhq/lakescanner/internal/table"
)

// DuckDBLoader reads delimited and parquet datasets through DuckDB. Each
// load is copied into a scratch table that lives until the returned table
// is closed, so every column scan reads local memory rather than the store.
type DuckDBLoader struct {
	db     *duckdbx.DB
	locate Locator
}

type DuckDBOption func(*DuckDBLoader)

// WithLocator replaces the default s3:// locator.
func WithLocator(l Locator) DuckDBOption {
	return func(d *DuckDBLoader) { d.locate = l }
}

func NewDuckDBLoader(db *duckdbx.DB, opts ...DuckDBOption) *DuckDBLoader {
	d := &DuckDBLoader{db: db, locate: S3Locator}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func readExpr(url string, f dataset.Format) (string, error) {
	switch f.Name {
	case dataset.CSV.Name:
		var b strings.Builder
		_, _ = fmt.Fprintf(&b, "read_csv(%s, header = %t, auto_detect = true", duckdbx.QuoteLiteral(url), f.Read.Header)
		if !f.Read.InferSchema {
			b.WriteString(", all_varchar = true")
		}
		if f.Read.NullMarker != "" {
			_, _ = fmt.Fprintf(&b, ", nullstr = %s", duckdbx.QuoteLiteral(f.Read.NullMarker))
		}
		b.WriteString(")")
		return b.String(), nil
	case "parquet":
		return fmt.Sprintf("read_parquet(%s)", duckdbx.QuoteLiteral(url)), nil
	default:
		return "", fmt.Errorf("duckdb cannot read format %q", f.Name)
	}
}

func (d *DuckDBLoader) Load(ctx context.Context, bucket, path string, f dataset.Format) (table.Table, error) {
	url := d.locate(bucket, f.ObjectKey(path))
	src, err := readExpr(url, f)
	if err != nil {
		return nil, err
	}

	scratch := idgen.NextName("ls_")
	start := time.Now()
	stmt := fmt.Sprintf("CREATE TABLE %s AS SELECT * FROM %s", duckdbx.QuoteIdent(scratch), src)
	if err := d.db.Exec(ctx, stmt); err != nil {
		return nil, fmt.Errorf("read %s: %w", url, err)
	}

	t := &duckTable{db: d.db, name: datasetName(path, f), relation: duckdbx.QuoteIdent(scratch)}
	t.columns, err = describe(ctx, d.db, scratch)
	if err != nil {
		_ = t.Close()
		return nil, err
	}
	logctx.FromContext(ctx).Debug("Loaded table",
		slog.String("url", url),
		slog.Int("columns", len(t.columns)),
		slog.Duration("elapsed", time.Since(start)))
	return t, nil
}

func describe(ctx context.Context, db *duckdbx.DB, relation string) ([]table.Column, error) {
	var cols []table.Column
	err := db.QueryEach(ctx,
		"SELECT column_name, data_type FROM information_schema.columns WHERE table_name = ? ORDER BY ordinal_position",
		func(rows *sql.Rows) error {
			var c table.Column
			if err := rows.Scan(&c.Name, &c.Type); err != nil {
				return err
			}
			cols = append(cols, c)
			return nil
		}, relation)
	if err != nil {
		return nil, fmt.Errorf("describe %s: %w", relation, err)
	}
	return cols, nil
}

// duckTable is a table.Table over a DuckDB scratch table. Each call uses
// its own connection, so scans of different columns may run concurrently.
type duckTable struct {
	db       *duckdbx.DB
	name     string
	relation string
	columns  []table.Column
}

var _ table.Table = (*duckTable)(nil)

func (t *duckTable) Name() string { return t.name }

func (t *duckTable) Columns() []table.Column { return append([]table.Column(nil), t.columns...) }

func (t *duckTable) Count(ctx context.Context) (int64, error) {
	var n int64
	err := t.db.QueryEach(ctx, "SELECT COUNT(*) FROM "+t.relation, func(rows *sql.Rows) error {
		return rows.Scan(&n)
	})
	return n, err
}

func (t *duckTable) column(name string) (string, error) {
	for _, c := range t.columns {
		if c.Name == name {
			return duckdbx.QuoteIdent(name), nil
		}
	}
	return "", fmt.Errorf("table %q column %q: %w", t.name, name, table.ErrNoSuchColumn)
}

func (t *duckTable) scan(ctx context.Context, column, castType string, fn func(*sql.Rows) error) error {
	col, err := t.column(column)
	if err != nil {
		return err
	}
	q := fmt.Sprintf("SELECT TRY_CAST(%s AS %s) FROM %s", col, castType, t.relation)
	return t.db.QueryEach(ctx, q, fn)
}

func (t *duckTable) ScanFloat64(ctx context.Context, column string, fn func(float64, bool) error) error {
	return t.scan(ctx, column, "DOUBLE", func(rows *sql.Rows) error {
		var v sql.NullFloat64
		if err := rows.Scan(&v); err != nil {
			return err
		}
		return fn(v.Float64, v.Valid)
	})
}

// ScanDecimal reads the column as text so that HUGEINT and UBIGINT values
// keep every digit.
func (t *duckTable) ScanDecimal(ctx context.Context, column string, fn func(decimal.Decimal, bool) error) error {
	return t.scan(ctx, column, "VARCHAR", func(rows *sql.Rows) error {
		var v sql.NullString
		if err := rows.Scan(&v); err != nil {
			return err
		}
		if !v.Valid {
			return fn(decimal.Decimal{}, false)
		}
		d, err := decimal.NewFromString(v.String)
		if err != nil {
			return fmt.Errorf("column %q: %w", column, err)
		}
		return fn(d, true)
	})
}

func (t *duckTable) ScanString(ctx context.Context, column string, fn func(string, bool) error) error {
	return t.scan(ctx, column, "VARCHAR", func(rows *sql.Rows) error {
		var v sql.NullString
		if err := rows.Scan(&v); err != nil {
			return err
		}
		return fn(v.String, v.Valid)
	})
}

func (t *duckTable) ScanTime(ctx context.Context, column string, fn func(time.Time, bool) error) error {
	return t.scan(ctx, column, "TIMESTAMP", func(rows *sql.Rows) error {
		var v sql.NullTime
		if err := rows.Scan(&v); err != nil {
			return err
		}
		return fn(v.Time, v.Valid)
	})
}

// MostFrequent groups in DuckDB; ties come back in whatever order the
// aggregation produced them.
func (t *duckTable) MostFrequent(ctx context.Context, column string) (table.MostFrequent, error) {
	col, err := t.column(column)
	if err != nil {
		return table.MostFrequent{}, err
	}
	q := fmt.Sprintf(
		"SELECT CAST(%[1]s AS VARCHAR) AS v, COUNT(*) AS n FROM %[2]s WHERE %[1]s IS NOT NULL GROUP BY 1 ORDER BY n DESC LIMIT 1",
		col, t.relation)

	var mf table.MostFrequent
	err = t.db.QueryEach(ctx, q, func(rows *sql.Rows) error {
		mf.Found = true
		return rows.Scan(&mf.Value, &mf.Count)
	})
	return mf, err
}

func (t *duckTable) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return t.db.Exec(ctx, "DROP TABLE IF EXISTS "+t.relation)
}
