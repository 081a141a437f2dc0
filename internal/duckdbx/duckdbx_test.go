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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func openLocal(t *testing.T, opts ...option) *DB {
	t.Helper()
	db, err := Open(":memory:", append([]option{WithoutExtension("httpfs")}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestOptions(t *testing.T) {
	var cfg Config
	WithName("foo")(&cfg)
	WithExtension("httpfs")(&cfg)
	WithExtension("httpfs")(&cfg)
	WithExtension("json")(&cfg)
	WithoutExtension("httpfs")(&cfg)
	WithMemoryLimitMB(512)(&cfg)
	WithThreads(2)(&cfg)

	assert.Equal(t, "foo", cfg.InstanceName)
	assert.Equal(t, []ExtensionConfig{{Name: "json"}}, cfg.Extensions)
	assert.Equal(t, int64(512), cfg.MemoryLimitMB)
	assert.Equal(t, 2, cfg.Threads)
}

func TestSharedDatabaseAcrossConnections(t *testing.T) {
	ctx := context.Background()
	db := openLocal(t, WithMemoryLimitMB(256), WithThreads(1), WithTempDirectory(t.TempDir()))

	require.NoError(t, db.Exec(ctx, "CREATE TABLE t (id BIGINT, name VARCHAR)"))
	require.NoError(t, db.Exec(ctx, "INSERT INTO t VALUES (1, 'a'), (2, 'b')"))

	var names []string
	err := db.QueryEach(ctx, "SELECT name FROM t ORDER BY id", func(rows *sql.Rows) error {
		var n string
		if err := rows.Scan(&n); err != nil {
			return err
		}
		names = append(names, n)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, names)
}

func TestQueryEachReportsErrors(t *testing.T) {
	db := openLocal(t)
	err := db.QueryEach(context.Background(), "SELECT * FROM missing_table", func(*sql.Rows) error { return nil })
	assert.Error(t, err)
}

func TestQuoting(t *testing.T) {
	assert.Equal(t, `"a""b"`, QuoteIdent(`a"b`))
	assert.Equal(t, `'it''s'`, QuoteLiteral("it's"))
}

func TestParseSize(t *testing.T) {
	tests := []struct {
		in   string
		want int64
	}{
		{"0 bytes", 0},
		{"512 bytes", 512},
		{"1.5 KiB", 1536},
		{"2 MiB", 2 << 20},
		{"1 GiB", 1 << 30},
		{"3 MB", 3_000_000},
		{"42", 42},
		{"", 0},
		{"lots", 0},
		{"1 parsecs", 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, parseSize(tt.in), tt.in)
	}
}

func TestPollMemoryMetricsRecordsInstanceName(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	orig := otel.GetMeterProvider()
	otel.SetMeterProvider(provider)
	t.Cleanup(func() { otel.SetMeterProvider(orig) })

	db := openLocal(t,
		WithMetrics(10*time.Millisecond),
		WithMetricsContext(ctx),
		WithName("test-instance"),
	)
	require.NoError(t, db.Exec(ctx, "SELECT 1"))

	require.Eventually(t, func() bool {
		var rm metricdata.ResourceMetrics
		if err := reader.Collect(context.Background(), &rm); err != nil {
			return false
		}
		for _, sm := range rm.ScopeMetrics {
			for _, m := range sm.Metrics {
				g, ok := m.Data.(metricdata.Gauge[int64])
				if !ok {
					continue
				}
				for _, dp := range g.DataPoints {
					if v, ok := dp.Attributes.Value("instance_name"); ok && v.AsString() == "test-instance" {
						return true
					}
				}
			}
		}
		return false
	}, 2*time.Second, 20*time.Millisecond)
}
