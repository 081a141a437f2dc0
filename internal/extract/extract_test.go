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
	"errors"
	"io"
	"testing"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/hashicorp/go-multierror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardinalhq/lakescanner/internal/dataset"
	"github.com/cardinalhq/lakescanner/internal/records"
	"github.com/cardinalhq/lakescanner/internal/stats"
	"github.com/cardinalhq/lakescanner/internal/table"
)

type fakeLister struct {
	paths []string
	calls int
	err   error
}

func (f *fakeLister) ListDatasets(context.Context, string, string) (mapset.Set[string], error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return mapset.NewSet(f.paths...), nil
}

type fakeLoader struct {
	tables map[string]func() table.Table
	errs   map[string]error
	loads  []string
	closed int
}

func (f *fakeLoader) Load(_ context.Context, _ string, path string, _ dataset.Format) (table.Table, error) {
	f.loads = append(f.loads, path)
	if err, ok := f.errs[path]; ok {
		return nil, err
	}
	return &closeCounter{Table: f.tables[path](), closed: &f.closed}, nil
}

type closeCounter struct {
	table.Table
	closed *int
}

func (c *closeCounter) Close() error {
	*c.closed++
	return c.Table.Close()
}

func ordersTable() table.Table {
	m := table.NewMemTable("orders", []table.Column{
		{Name: "id", Type: "BIGINT"},
		{Name: "region", Type: "VARCHAR"},
		{Name: "placed", Type: "TIMESTAMP"},
	})
	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	_ = m.AppendRow(int64(1), "east", ts)
	_ = m.AppendRow(int64(2), "east", ts.Add(time.Hour))
	_ = m.AppendRow(int64(3), "west", nil)
	_ = m.AppendRow(nil, nil, ts.Add(2*time.Hour))
	return m
}

func blobTable() table.Table {
	m := table.NewMemTable("blobs", []table.Column{
		{Name: "id", Type: "BIGINT"},
		{Name: "payload", Type: "BLOB"},
	})
	_ = m.AppendRow(int64(1), []byte{0x1})
	return m
}

func emptyTable() table.Table {
	return table.NewMemTable("empty", []table.Column{{Name: "id", Type: "BIGINT"}})
}

func newEngine(t *testing.T) *stats.Engine {
	t.Helper()
	e, err := stats.NewEngine()
	require.NoError(t, err)
	return e
}

func drain[T any](t *testing.T, ex Extractor[T]) []T {
	t.Helper()
	var out []T
	for {
		v, err := ex.Extract(context.Background())
		if errors.Is(err, io.EOF) {
			return out
		}
		require.NoError(t, err)
		out = append(out, v)
	}
}

func TestMetadataExtractor(t *testing.T) {
	lister := &fakeLister{paths: []string{"v0/orders.csv/", "v0/events.orc/"}}
	loader := &fakeLoader{tables: map[string]func() table.Table{
		"v0/orders.csv/": ordersTable,
		"v0/events.orc/": emptyTable,
	}}
	ex := NewMetadataExtractor(lister, dataset.DefaultRegistry(), loader, Config{Bucket: "warehouse", Version: "v0"})
	assert.Equal(t, MetadataScope, ex.Scope())
	assert.Zero(t, lister.calls, "listing waits for the first pull")

	got := drain(t, ex)
	require.Len(t, got, 2)

	// Datasets are visited in path order.
	assert.Equal(t, "events", got[0].Name)
	orders := got[1]
	assert.Equal(t, "orders", orders.Name)
	assert.Equal(t, "minio", orders.Database)
	assert.Equal(t, "minio", orders.Schema)
	assert.Equal(t, "warehouse", orders.Cluster)
	assert.True(t, orders.IsView)
	assert.Equal(t, []string{"minio", "raw"}, orders.Tags)
	assert.Equal(t, []records.ColumnMetadata{
		{Name: "id", Type: "BIGINT", SortOrder: 0},
		{Name: "region", Type: "VARCHAR", SortOrder: 1},
		{Name: "placed", Type: "TIMESTAMP", SortOrder: 2},
	}, orders.Columns)
	assert.Equal(t, "minio://warehouse.minio/orders", orders.Key())

	assert.Equal(t, 2, loader.closed)
	assert.NoError(t, ex.Failures())
	require.NoError(t, ex.Close())
}

func TestMetadataExtractorTagsAreIndependent(t *testing.T) {
	lister := &fakeLister{paths: []string{"v0/a.csv/", "v0/b.csv/"}}
	loader := &fakeLoader{tables: map[string]func() table.Table{
		"v0/a.csv/": ordersTable,
		"v0/b.csv/": ordersTable,
	}}
	tags := []string{"lake", "raw"}
	ex := NewMetadataExtractor(lister, dataset.DefaultRegistry(), loader,
		Config{Bucket: "warehouse", Version: "v0", Tags: tags})

	got := drain(t, ex)
	require.Len(t, got, 2)
	got[0].Tags[0] = "changed"
	got[0].Tags = append(got[0].Tags, "extra")

	assert.Equal(t, []string{"lake", "raw"}, got[1].Tags)
	assert.Equal(t, []string{"lake", "raw"}, tags)
}

func TestStatsExtractorYieldsPerColumnStats(t *testing.T) {
	lister := &fakeLister{paths: []string{"v0/orders.csv/"}}
	loader := &fakeLoader{tables: map[string]func() table.Table{"v0/orders.csv/": ordersTable}}
	ex := NewStatsExtractor(lister, dataset.DefaultRegistry(), loader, newEngine(t),
		Config{Bucket: "warehouse", Version: "v0", Cluster: "prod"}, 1)
	assert.Equal(t, StatsScope, ex.Scope())

	got := drain(t, ex)
	require.NotEmpty(t, got)

	byKey := map[string]string{}
	var columns []string
	for _, s := range got {
		byKey[s.ColumnName+"/"+s.StatName] = s.StatValue
		if len(columns) == 0 || columns[len(columns)-1] != s.ColumnName {
			columns = append(columns, s.ColumnName)
		}
		assert.Equal(t, "orders", s.TableName)
		assert.Equal(t, "prod", s.Cluster)
	}
	assert.Equal(t, []string{"id", "region", "placed"}, columns, "columns keep table order")
	assert.Equal(t, "25", byKey["id/null %"])
	assert.Equal(t, "2.0", byKey["id/mean"])
	assert.Equal(t, "east", byKey["region/most freq value"])
	assert.Equal(t, "50", byKey["region/most freq %"])
	assert.Equal(t, "2024-01-01 00:00:00", byKey["placed/min"])
	assert.Equal(t, "2024-01-01 02:00:00", byKey["placed/max"])
}

func TestStatsExtractorParallelMatchesSequential(t *testing.T) {
	run := func(workers int) []records.ColumnStat {
		lister := &fakeLister{paths: []string{"v0/orders.csv/", "v0/more.csv/"}}
		loader := &fakeLoader{tables: map[string]func() table.Table{
			"v0/orders.csv/": ordersTable,
			"v0/more.csv/":   ordersTable,
		}}
		ex := NewStatsExtractor(lister, dataset.DefaultRegistry(), loader, newEngine(t), Config{Bucket: "b"}, workers)
		return drain(t, ex)
	}
	strip := func(in []records.ColumnStat) []string {
		out := make([]string, len(in))
		for i, s := range in {
			out[i] = s.Key() + "=" + s.StatValue
		}
		return out
	}
	assert.Equal(t, strip(run(1)), strip(run(4)))
}

func TestStatsExtractorContinuesPastFailedDatasets(t *testing.T) {
	loadErr := errors.New("connection reset")
	lister := &fakeLister{paths: []string{
		"v0/a_blobs.csv/",
		"v0/b_broken.csv/",
		"v0/c_legacy.parquet/",
		"v0/d_orders.csv/",
		"v0/e_empty.orc/",
	}}
	loader := &fakeLoader{
		tables: map[string]func() table.Table{
			"v0/a_blobs.csv/":  blobTable,
			"v0/d_orders.csv/": ordersTable,
			"v0/e_empty.orc/":  emptyTable,
		},
		errs: map[string]error{"v0/b_broken.csv/": loadErr},
	}
	ex := NewStatsExtractor(lister, dataset.DefaultRegistry(), loader, newEngine(t), Config{Bucket: "b"}, 2)

	got := drain(t, ex)
	require.NotEmpty(t, got)
	for _, s := range got {
		assert.Equal(t, "d_orders", s.TableName)
	}

	failures := ex.Failures()
	require.Error(t, failures)
	var merr *multierror.Error
	require.ErrorAs(t, failures, &merr)
	require.Len(t, merr.Errors, 3)

	assert.ErrorIs(t, failures, stats.ErrUnsupportedColumnType)
	assert.ErrorIs(t, failures, loadErr)
	assert.ErrorIs(t, failures, dataset.ErrUnknownFormat)

	var de *DatasetError
	require.ErrorAs(t, merr.Errors[0], &de)
	assert.Equal(t, "v0/a_blobs.csv/", de.Path)
	assert.Equal(t, "b", de.Bucket)

	assert.NotContains(t, loader.loads, "v0/c_legacy.parquet/", "unknown formats never reach the loader")
}

func TestStatsExtractorIdempotentEOF(t *testing.T) {
	lister := &fakeLister{paths: []string{"v0/orders.csv/"}}
	loader := &fakeLoader{tables: map[string]func() table.Table{"v0/orders.csv/": ordersTable}}
	ex := NewStatsExtractor(lister, dataset.DefaultRegistry(), loader, newEngine(t), Config{Bucket: "b"}, 1)

	drain(t, ex)
	for range 3 {
		_, err := ex.Extract(context.Background())
		assert.ErrorIs(t, err, io.EOF)
	}
	assert.Equal(t, 1, lister.calls, "the catalog is scanned once")
	assert.Len(t, loader.loads, 1)
}

func TestExtractorListErrorRetriesOnNextPull(t *testing.T) {
	denied := errors.New("access denied")
	lister := &fakeLister{err: denied}
	loader := &fakeLoader{tables: map[string]func() table.Table{"v0/orders.csv/": ordersTable}}
	ex := NewMetadataExtractor(lister, dataset.DefaultRegistry(), loader, Config{Bucket: "b"})

	_, err := ex.Extract(context.Background())
	assert.ErrorIs(t, err, denied)

	lister.err = nil
	lister.paths = []string{"v0/orders.csv/"}
	md, err := ex.Extract(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "orders", md.Name)
	assert.Equal(t, 2, lister.calls)
}

func TestExtractorCancellationIsNotADatasetFailure(t *testing.T) {
	lister := &fakeLister{paths: []string{"v0/orders.csv/"}}
	loader := &fakeLoader{tables: map[string]func() table.Table{"v0/orders.csv/": ordersTable}}
	ex := NewStatsExtractor(lister, dataset.DefaultRegistry(), loader, newEngine(t), Config{Bucket: "b"}, 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := ex.Extract(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NoError(t, ex.Failures())
}

func TestExtractorCloseStopsStream(t *testing.T) {
	lister := &fakeLister{paths: []string{"v0/orders.csv/"}}
	loader := &fakeLoader{tables: map[string]func() table.Table{"v0/orders.csv/": ordersTable}}
	ex := NewMetadataExtractor(lister, dataset.DefaultRegistry(), loader, Config{Bucket: "b"})
	require.NoError(t, ex.Close())

	_, err := ex.Extract(context.Background())
	assert.ErrorIs(t, err, io.EOF)
	assert.Zero(t, lister.calls)
}
