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

// Package parquetsink writes catalog records to local parquet files, one
// file per record kind per run, named with a ULID so uploads from
// successive runs sort by time.
package parquetsink

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/parquet-go/parquet-go"

	"github.com/cardinalhq/lakescanner/internal/idgen"
	"github.com/cardinalhq/lakescanner/internal/records"
	"github.com/cardinalhq/lakescanner/internal/sink"
)

const (
	StatsFilePrefix   = "column_stats"
	ColumnsFilePrefix = "table_columns"

	defaultBatchSize = 1024
)

// StatRow is the parquet layout of a records.ColumnStat.
type StatRow struct {
	Database     string `parquet:"database,dict"`
	Cluster      string `parquet:"cluster,dict"`
	Schema       string `parquet:"schema,dict"`
	TableName    string `parquet:"table_name,dict"`
	ColumnName   string `parquet:"column_name,dict"`
	StatName     string `parquet:"stat_name,dict"`
	StatValue    string `parquet:"stat_value"`
	StartTsMilli int64  `parquet:"start_ts_ms"`
	EndTsMilli   int64  `parquet:"end_ts_ms"`
}

// ColumnRow is one column of a records.TableMetadata.
type ColumnRow struct {
	Database   string   `parquet:"database,dict"`
	Cluster    string   `parquet:"cluster,dict"`
	Schema     string   `parquet:"schema,dict"`
	TableName  string   `parquet:"table_name,dict"`
	IsView     bool     `parquet:"is_view"`
	Tags       []string `parquet:"tags,list"`
	ColumnName string   `parquet:"column_name"`
	ColumnType string   `parquet:"column_type,dict"`
	SortOrder  int32    `parquet:"sort_order"`
}

// batchFile buffers rows of one kind and writes them to a zstd parquet
// file created on first use.
type batchFile[T any] struct {
	path    string
	f       *os.File
	w       *parquet.GenericWriter[T]
	pending []T
	rows    int64
}

func (b *batchFile[T]) add(row T, batchSize int) error {
	if b.w == nil {
		f, err := os.Create(b.path)
		if err != nil {
			return err
		}
		b.f = f
		b.w = parquet.NewGenericWriter[T](f, parquet.Compression(&parquet.Zstd))
	}
	b.pending = append(b.pending, row)
	if len(b.pending) >= batchSize {
		return b.flush()
	}
	return nil
}

func (b *batchFile[T]) flush() error {
	if len(b.pending) == 0 {
		return nil
	}
	n, err := b.w.Write(b.pending)
	b.rows += int64(n)
	b.pending = b.pending[:0]
	return err
}

func (b *batchFile[T]) close() error {
	if b.w == nil {
		return nil
	}
	var result *multierror.Error
	if err := b.flush(); err != nil {
		result = multierror.Append(result, err)
	}
	if err := b.w.Close(); err != nil {
		result = multierror.Append(result, err)
	}
	if err := b.f.Close(); err != nil {
		result = multierror.Append(result, err)
	}
	b.w = nil
	return result.ErrorOrNil()
}

// Loader is a sink.Loader writing parquet files under a directory. It is not
// safe for concurrent use.
type Loader struct {
	dir       string
	batchSize int
	stats     *batchFile[StatRow]
	columns   *batchFile[ColumnRow]
}

var _ sink.Loader = (*Loader)(nil)

type Option func(*Loader)

// WithBatchSize sets how many rows are buffered before a write.
func WithBatchSize(n int) Option {
	return func(l *Loader) {
		if n > 0 {
			l.batchSize = n
		}
	}
}

func New(dir string, opts ...Option) (*Loader, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	ids := idgen.NewULIDGenerator()
	now := time.Now()
	l := &Loader{
		dir:       dir,
		batchSize: defaultBatchSize,
		stats:     &batchFile[StatRow]{path: filepath.Join(dir, ids.FileName(StatsFilePrefix, now, ".parquet"))},
		columns:   &batchFile[ColumnRow]{path: filepath.Join(dir, ids.FileName(ColumnsFilePrefix, now, ".parquet"))},
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Dir is where the parquet files are written.
func (l *Loader) Dir() string { return l.dir }

// Files lists the files written so far.
func (l *Loader) Files() []string {
	var out []string
	if l.stats.f != nil {
		out = append(out, l.stats.path)
	}
	if l.columns.f != nil {
		out = append(out, l.columns.path)
	}
	return out
}

func (l *Loader) Load(ctx context.Context, record any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	switch r := record.(type) {
	case records.ColumnStat:
		return l.stats.add(statRow(r), l.batchSize)
	case *records.ColumnStat:
		return l.stats.add(statRow(*r), l.batchSize)
	case records.TableMetadata:
		return l.loadTable(r)
	case *records.TableMetadata:
		return l.loadTable(*r)
	default:
		return sink.Unsupported("parquet", record)
	}
}

func statRow(s records.ColumnStat) StatRow {
	return StatRow{
		Database:     s.Database,
		Cluster:      s.Cluster,
		Schema:       s.Schema,
		TableName:    s.TableName,
		ColumnName:   s.ColumnName,
		StatName:     s.StatName,
		StatValue:    s.StatValue,
		StartTsMilli: s.StartTimestamp.UnixMilli(),
		EndTsMilli:   s.EndTimestamp.UnixMilli(),
	}
}

func (l *Loader) loadTable(m records.TableMetadata) error {
	for _, c := range m.Columns {
		row := ColumnRow{
			Database:   m.Database,
			Cluster:    m.Cluster,
			Schema:     m.Schema,
			TableName:  m.Name,
			IsView:     m.IsView,
			Tags:       m.Tags,
			ColumnName: c.Name,
			ColumnType: c.Type,
			SortOrder:  int32(c.SortOrder),
		}
		if err := l.columns.add(row, l.batchSize); err != nil {
			return err
		}
	}
	return nil
}

func (l *Loader) Close() error {
	var result *multierror.Error
	if err := l.stats.close(); err != nil {
		result = multierror.Append(result, fmt.Errorf("close %s: %w", l.stats.path, err))
	}
	if err := l.columns.close(); err != nil {
		result = multierror.Append(result, fmt.Errorf("close %s: %w", l.columns.path, err))
	}
	return result.ErrorOrNil()
}
