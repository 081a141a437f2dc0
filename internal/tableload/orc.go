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
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"time"

	"github.com/scritchley/orc"

	"github.com/cardinalhq/lakescanner/internal/awsclient/s3helper"
	"github.com/cardinalhq/lakescanner/internal/dataset"
	"github.com/cardinalhq/lakescanner/internal/logctx"
	"github.com/cardinalhq/lakescanner/internal/table"
)

// ObjectFetcher lists and downloads dataset objects. *s3helper.Store
// satisfies it.
type ObjectFetcher interface {
	ListDataObjects(ctx context.Context, bucket, prefix string) ([]string, error)
	Download(ctx context.Context, dir, bucket, key string) (string, error)
}

// orcDecoder reads one ORC file, reporting its column names once and then
// every row.
type orcDecoder func(ctx context.Context, path string, onSchema func([]string) error, onRow func([]any) error) error

// ORCLoader materializes an ORC dataset, one or more part files under the
// dataset prefix, as an in-memory table.
type ORCLoader struct {
	fetcher ObjectFetcher
	tmpDir  string
	decode  orcDecoder
}

func NewORCLoader(fetcher ObjectFetcher, tmpDir string) *ORCLoader {
	return &ORCLoader{
		fetcher: fetcher,
		tmpDir:  tmpDir,
		decode:  decodeORCFile,
	}
}

func (l *ORCLoader) Load(ctx context.Context, bucket, path string, f dataset.Format) (table.Table, error) {
	prefix := f.ObjectKey(path)
	keys, err := l.fetcher.ListDataObjects(ctx, bucket, prefix)
	if err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return nil, fmt.Errorf("no data objects under s3://%s/%s", bucket, prefix)
	}

	b := &rowBuilder{}
	start := time.Now()
	loaded := 0
	for _, key := range keys {
		err := l.loadPart(ctx, bucket, key, b)
		if errors.Is(err, s3helper.ErrObjectNotFound) {
			// Rewritten between list and download.
			logctx.FromContext(ctx).Warn("ORC part vanished, skipping", slog.String("key", key))
			continue
		}
		if err != nil {
			return nil, err
		}
		loaded++
	}
	if loaded == 0 {
		return nil, fmt.Errorf("no data objects under s3://%s/%s", bucket, prefix)
	}
	t := b.build(datasetName(path, f))
	logctx.FromContext(ctx).Debug("Loaded ORC table",
		slog.Int("parts", loaded),
		slog.Int("rows", len(b.rows)),
		slog.Duration("elapsed", time.Since(start)))
	return t, nil
}

func (l *ORCLoader) loadPart(ctx context.Context, bucket, key string, b *rowBuilder) error {
	local, err := l.fetcher.Download(ctx, l.tmpDir, bucket, key)
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(local) }()

	err = l.decode(ctx, local,
		func(cols []string) error { return b.setColumns(key, cols) },
		b.addRow)
	if err != nil {
		return fmt.Errorf("decode s3://%s/%s: %w", bucket, key, err)
	}
	return nil
}

func decodeORCFile(ctx context.Context, path string, onSchema func([]string) error, onRow func([]any) error) error {
	r, err := orc.Open(path)
	if err != nil {
		return err
	}
	defer func() { _ = r.Close() }()

	cols := r.Schema().Columns()
	if err := onSchema(cols); err != nil {
		return err
	}

	c := r.Select(cols...)
	n := 0
	for c.Stripes() {
		for c.Next() {
			n++
			if n%4096 == 0 {
				if err := ctx.Err(); err != nil {
					return err
				}
			}
			if err := onRow(slices.Clone(c.Row())); err != nil {
				return err
			}
		}
	}
	return c.Err()
}

// rowBuilder accumulates rows from every part file and infers a declared
// type per column from the Go values the decoder produced.
type rowBuilder struct {
	columns []string
	rows    [][]any
}

func (b *rowBuilder) setColumns(key string, cols []string) error {
	if b.columns == nil {
		b.columns = slices.Clone(cols)
		return nil
	}
	if !slices.Equal(b.columns, cols) {
		return fmt.Errorf("part %s has columns %v, want %v", key, cols, b.columns)
	}
	return nil
}

func (b *rowBuilder) addRow(row []any) error {
	if len(row) != len(b.columns) {
		return fmt.Errorf("row has %d values, want %d", len(row), len(b.columns))
	}
	b.rows = append(b.rows, row)
	return nil
}

func (b *rowBuilder) build(name string) *table.MemTable {
	types := make([]string, len(b.columns))
	for i := range b.columns {
		types[i] = inferType(b.rows, i)
	}

	cols := make([]table.Column, len(b.columns))
	for i, c := range b.columns {
		cols[i] = table.Column{Name: c, Type: types[i]}
	}
	m := table.NewMemTable(name, cols)
	for _, row := range b.rows {
		for i, v := range row {
			row[i] = normalize(v, types[i])
		}
		// Arity was checked in addRow.
		_ = m.AppendRow(row...)
	}
	return m
}

func goType(v any) string {
	switch v.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return "BIGINT"
	case float32, float64:
		return "DOUBLE"
	case bool:
		return "BOOLEAN"
	case time.Time:
		return "TIMESTAMP"
	default:
		return "VARCHAR"
	}
}

// inferType picks the type shared by every non-null value of column i,
// falling back to VARCHAR when they disagree or are all null.
func inferType(rows [][]any, i int) string {
	typ := ""
	for _, row := range rows {
		if row[i] == nil {
			continue
		}
		t := goType(row[i])
		switch {
		case typ == "":
			typ = t
		case typ != t:
			return "VARCHAR"
		}
	}
	if typ == "" {
		return "VARCHAR"
	}
	return typ
}

func normalize(v any, typ string) any {
	if v == nil {
		return nil
	}
	switch typ {
	case "BIGINT":
		switch n := v.(type) {
		case int:
			return int64(n)
		case int8:
			return int64(n)
		case int16:
			return int64(n)
		case int32:
			return int64(n)
		case uint:
			return int64(n)
		case uint8:
			return int64(n)
		case uint16:
			return int64(n)
		case uint32:
			return int64(n)
		case uint64:
			return int64(n)
		}
	case "DOUBLE":
		if f, ok := v.(float32); ok {
			return float64(f)
		}
	case "VARCHAR":
		switch s := v.(type) {
		case string:
			return s
		case []byte:
			return string(s)
		default:
			return fmt.Sprint(v)
		}
	}
	return v
}
