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

// Package pgsink upserts catalog records into the catalog database.
package pgsink

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/cardinalhq/lakescanner/internal/records"
	"github.com/cardinalhq/lakescanner/internal/sink"
)

const (
	upsertTableSQL = `INSERT INTO table_metadata
  (table_key, database, cluster, schema_name, name, description, is_view, tags, run_id, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now())
ON CONFLICT (table_key) DO UPDATE SET
  description = EXCLUDED.description,
  is_view = EXCLUDED.is_view,
  tags = EXCLUDED.tags,
  run_id = EXCLUDED.run_id,
  updated_at = now()`

	deleteColumnsSQL = `DELETE FROM column_metadata WHERE table_key = $1`

	insertColumnSQL = `INSERT INTO column_metadata
  (table_key, name, col_type, description, sort_order)
VALUES ($1, $2, $3, $4, $5)`

	upsertStatSQL = `INSERT INTO column_stats
  (stat_key, table_key, column_name, stat_name, stat_value, start_ts, end_ts, run_id, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())
ON CONFLICT (stat_key) DO UPDATE SET
  stat_value = EXCLUDED.stat_value,
  start_ts = EXCLUDED.start_ts,
  end_ts = EXCLUDED.end_ts,
  run_id = EXCLUDED.run_id,
  updated_at = now()`

	defaultBatchSize = 500
	closeTimeout     = 30 * time.Second
)

// BatchSender runs a pgx batch. *pgxpool.Pool satisfies it.
type BatchSender interface {
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// Loader queues upserts and sends them in batches. A batch runs in one
// implicit transaction, so a table's columns are replaced atomically.
// It is not safe for concurrent use.
type Loader struct {
	db        BatchSender
	runID     string
	batchSize int
	batch     *pgx.Batch
	sent      int
}

var _ sink.Loader = (*Loader)(nil)

type Option func(*Loader)

func WithBatchSize(n int) Option {
	return func(l *Loader) {
		if n > 0 {
			l.batchSize = n
		}
	}
}

// WithRunID tags every written row with the run that produced it.
func WithRunID(id string) Option {
	return func(l *Loader) { l.runID = id }
}

func New(db BatchSender, opts ...Option) *Loader {
	l := &Loader{
		db:        db,
		batchSize: defaultBatchSize,
		batch:     &pgx.Batch{},
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Sent is the number of statements executed so far.
func (l *Loader) Sent() int { return l.sent }

func (l *Loader) Load(ctx context.Context, record any) error {
	switch r := record.(type) {
	case records.TableMetadata:
		l.queueTable(r)
	case *records.TableMetadata:
		l.queueTable(*r)
	case records.ColumnStat:
		l.queueStat(r)
	case *records.ColumnStat:
		l.queueStat(*r)
	default:
		return sink.Unsupported("postgres", record)
	}
	if l.batch.Len() >= l.batchSize {
		return l.flush(ctx)
	}
	return nil
}

func (l *Loader) queueTable(m records.TableMetadata) {
	key := m.Key()
	tags := m.Tags
	if tags == nil {
		tags = []string{}
	}
	l.batch.Queue(upsertTableSQL, key, m.Database, m.Cluster, m.Schema, m.Name, m.Description, m.IsView, tags, l.runID)
	l.batch.Queue(deleteColumnsSQL, key)
	for _, c := range m.Columns {
		l.batch.Queue(insertColumnSQL, key, c.Name, c.Type, c.Description, c.SortOrder)
	}
}

func (l *Loader) queueStat(s records.ColumnStat) {
	l.batch.Queue(upsertStatSQL,
		s.Key(), s.TableContext().Key(), s.ColumnName, s.StatName, s.StatValue,
		s.StartTimestamp, s.EndTimestamp, l.runID)
}

func (l *Loader) flush(ctx context.Context) error {
	n := l.batch.Len()
	if n == 0 {
		return nil
	}
	b := l.batch
	l.batch = &pgx.Batch{}

	br := l.db.SendBatch(ctx, b)
	for i := range n {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return fmt.Errorf("catalog batch statement %d of %d: %w", i+1, n, err)
		}
	}
	if err := br.Close(); err != nil {
		return err
	}
	l.sent += n
	return nil
}

// Close sends whatever is still queued.
func (l *Loader) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()
	return l.flush(ctx)
}
