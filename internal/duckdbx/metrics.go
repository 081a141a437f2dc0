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

package duckdbx

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var meter = otel.Meter("github.com/cardinalhq/lakescanner/internal/duckdbx")

type memoryGauges struct {
	databaseSize metric.Int64Gauge
	usedBlocks   metric.Int64Gauge
	freeBlocks   metric.Int64Gauge
	walSize      metric.Int64Gauge
	memoryUsage  metric.Int64Gauge
	memoryLimit  metric.Int64Gauge
}

func newMemoryGauges() (*memoryGauges, error) {
	var (
		g   memoryGauges
		err error
	)
	gauge := func(name, desc, unit string) metric.Int64Gauge {
		if err != nil {
			return nil
		}
		var out metric.Int64Gauge
		out, err = meter.Int64Gauge(name, metric.WithDescription(desc), metric.WithUnit(unit))
		return out
	}
	g.databaseSize = gauge("lakescanner.duckdb.memory.database_size", "DuckDB database size", "By")
	g.usedBlocks = gauge("lakescanner.duckdb.memory.used_blocks", "DuckDB used blocks", "1")
	g.freeBlocks = gauge("lakescanner.duckdb.memory.free_blocks", "DuckDB free blocks", "1")
	g.walSize = gauge("lakescanner.duckdb.memory.wal_size", "DuckDB WAL size", "By")
	g.memoryUsage = gauge("lakescanner.duckdb.memory.memory_usage", "DuckDB memory usage", "By")
	g.memoryLimit = gauge("lakescanner.duckdb.memory.memory_limit", "DuckDB memory limit", "By")
	if err != nil {
		return nil, err
	}
	return &g, nil
}

func (d *DB) pollMemoryMetrics(ctx context.Context) {
	gauges, err := newMemoryGauges()
	if err != nil {
		slog.Error("failed to create duckdb memory metrics", slog.Any("error", err))
		return
	}

	for {
		if err := d.recordMemoryMetrics(ctx, gauges); err != nil {
			if errors.Is(err, sql.ErrConnDone) || ctx.Err() != nil || err.Error() == "sql: database is closed" {
				return
			}
			slog.Error("failed to get duckdb memory stats", slog.Any("error", err))
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(d.config.MetricsPeriod):
		}
	}
}

func (d *DB) recordMemoryMetrics(ctx context.Context, g *memoryGauges) error {
	conn, err := d.db.Conn(ctx)
	if err != nil {
		return err
	}
	stats, err := GetMemoryStats(ctx, conn)
	_ = conn.Close()
	if err != nil {
		return err
	}

	for _, stat := range stats {
		attributes := []attribute.KeyValue{
			attribute.String("database_name", stat.DatabaseName),
			attribute.String("database_type", "duckdb"),
		}
		if d.config.InstanceName != "" {
			attributes = append(attributes, attribute.String("instance_name", d.config.InstanceName))
		}
		attr := metric.WithAttributeSet(attribute.NewSet(attributes...))
		g.databaseSize.Record(ctx, stat.DatabaseSize, attr)
		g.usedBlocks.Record(ctx, stat.UsedBlocks, attr)
		g.freeBlocks.Record(ctx, stat.FreeBlocks, attr)
		g.walSize.Record(ctx, stat.WALSize, attr)
		g.memoryUsage.Record(ctx, stat.MemoryUsage, attr)
		g.memoryLimit.Record(ctx, stat.MemoryLimit, attr)
	}
	return nil
}
