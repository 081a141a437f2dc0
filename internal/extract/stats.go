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

package extract

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/cardinalhq/lakescanner/internal/dataset"
	"github.com/cardinalhq/lakescanner/internal/logctx"
	"github.com/cardinalhq/lakescanner/internal/records"
	"github.com/cardinalhq/lakescanner/internal/stats"
)

// StatsScope is the scope of the column statistics extractor.
const StatsScope = "extractor.objectstore.columnstats"

// StatsExtractor yields the ColumnStat records of every column of every
// dataset in the bucket, one dataset at a time.
type StatsExtractor struct {
	cfg     Config
	loader  TableLoader
	engine  *stats.Engine
	workers int
	walker  *datasetWalker[records.ColumnStat]
	cursor  *Cursor[records.ColumnStat]
}

var _ Extractor[records.ColumnStat] = (*StatsExtractor)(nil)

// NewStatsExtractor builds a stats extractor. columnWorkers bounds how many
// columns of one table are aggregated at once; values below 2 keep the
// columns sequential.
func NewStatsExtractor(
	lister DatasetLister,
	registry *dataset.Registry,
	loader TableLoader,
	engine *stats.Engine,
	cfg Config,
	columnWorkers int,
) *StatsExtractor {
	e := &StatsExtractor{
		cfg:     cfg.withDefaults(),
		loader:  loader,
		engine:  engine,
		workers: max(columnWorkers, 1),
	}
	e.walker = &datasetWalker[records.ColumnStat]{
		lister:   lister,
		registry: registry,
		bucket:   e.cfg.Bucket,
		version:  e.cfg.Version,
		scope:    StatsScope,
		produce:  e.produce,
	}
	e.cursor = NewCursor(e.walker.init)
	return e
}

func (e *StatsExtractor) Extract(ctx context.Context) (records.ColumnStat, error) {
	return e.cursor.Next(ctx)
}

func (e *StatsExtractor) Scope() string { return StatsScope }

// Failures returns the datasets skipped so far, as a *multierror.Error.
func (e *StatsExtractor) Failures() error { return e.walker.Failures() }

func (e *StatsExtractor) Close() error {
	e.cursor.Stop()
	e.walker.reset()
	return nil
}

func (e *StatsExtractor) produce(ctx context.Context, path string, id dataset.Identity) ([]records.ColumnStat, error) {
	t, err := e.loader.Load(ctx, e.cfg.Bucket, path, id.Format)
	if err != nil {
		return nil, fmt.Errorf("load %s table: %w", id.Format.Name, err)
	}
	defer func() { _ = t.Close() }()

	rowCount, err := t.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("count rows: %w", err)
	}

	tc := records.TableContext{
		Database:  e.cfg.Database,
		Cluster:   e.cfg.Cluster,
		Schema:    e.cfg.Schema,
		TableName: id.Basename,
	}
	cols := t.Columns()
	perColumn := make([][]records.ColumnStat, len(cols))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for i, c := range cols {
		g.Go(func() error {
			out, err := e.engine.ComputeColumnStats(gctx, tc, c.Name, c.Type, t, rowCount)
			if err != nil {
				return err
			}
			perColumn[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []records.ColumnStat
	for _, out := range perColumn {
		all = append(all, out...)
	}
	logctx.FromContext(ctx).Debug("Computed column statistics",
		slog.Int64("rows", rowCount),
		slog.Int("columns", len(cols)),
		slog.Int("stats", len(all)))
	return all, nil
}

