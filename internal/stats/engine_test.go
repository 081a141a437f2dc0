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

package stats

import (
	"context"
	"math"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardinalhq/lakescanner/internal/records"
	"github.com/cardinalhq/lakescanner/internal/table"
)

var testTable = records.TableContext{
	Database:  "minio",
	Cluster:   "warehouse",
	Schema:    "minio",
	TableName: "orders",
}

func singleColumn(t *testing.T, typ string, values ...any) *table.MemTable {
	t.Helper()
	m := table.NewMemTable("orders", []table.Column{{Name: "c", Type: typ}})
	for _, v := range values {
		require.NoError(t, m.AppendRow(v))
	}
	return m
}

func byName(stats []records.ColumnStat) map[string]string {
	out := make(map[string]string, len(stats))
	for _, s := range stats {
		out[s.StatName] = s.StatValue
	}
	return out
}

func fixedClock() func() time.Time {
	ts := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	return func() time.Time {
		ts = ts.Add(time.Second)
		return ts
	}
}

func newTestEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	e, err := NewEngine(append([]Option{WithClock(fixedClock())}, opts...)...)
	require.NoError(t, err)
	return e
}

func TestNumericStats(t *testing.T) {
	e := newTestEngine(t)
	tbl := singleColumn(t, "BIGINT", int64(1), int64(2), int64(3), nil)

	got, err := e.ComputeColumnStats(context.Background(), testTable, "c", "BIGINT", tbl, 4)
	require.NoError(t, err)

	s := byName(got)
	assert.Equal(t, "25", s[StatNullPercent])
	assert.Equal(t, "1", s[StatMin])
	assert.Equal(t, "3", s[StatMax])
	assert.Equal(t, "2.0", s[StatMean])
	assert.Equal(t, "1.0", s[StatStdDev])
	assert.Equal(t, "1", s[StatP25])
	assert.Equal(t, "2", s[StatP50])
	assert.Contains(t, []string{"2", "3"}, s[StatP75])

	for _, st := range got {
		assert.Equal(t, "orders", st.TableName)
		assert.Equal(t, "c", st.ColumnName)
		assert.Equal(t, "warehouse", st.Cluster)
		assert.Equal(t, "minio", st.Database)
		assert.Equal(t, "minio", st.Schema)
		assert.False(t, st.EndTimestamp.Before(st.StartTimestamp))
	}
}

func TestNumericStatsFloatColumn(t *testing.T) {
	e := newTestEngine(t)
	tbl := singleColumn(t, "DOUBLE", 1.5, 2.5, math.NaN(), 10.0)

	got, err := e.ComputeColumnStats(context.Background(), testTable, "c", "DOUBLE", tbl, 4)
	require.NoError(t, err)

	s := byName(got)
	assert.Equal(t, "25", s[StatNullPercent], "NaN counts as null")
	assert.Equal(t, "1.5", s[StatMin])
	assert.Equal(t, "10.0", s[StatMax])
	assert.Equal(t, "4.7", s[StatMean])

	p50, err := strconv.ParseFloat(s[StatP50], 64)
	require.NoError(t, err)
	assert.InDelta(t, 2.5, p50, 2.5*e.RelativeAccuracy())
}

func TestNumericStatsAllNull(t *testing.T) {
	e := newTestEngine(t)
	tbl := singleColumn(t, "INTEGER", nil, nil)

	got, err := e.ComputeColumnStats(context.Background(), testTable, "c", "INTEGER", tbl, 2)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, StatNullPercent, got[0].StatName)
	assert.Equal(t, "100", got[0].StatValue)
}

func TestNumericStatsSingleValueHasNoStdDev(t *testing.T) {
	e := newTestEngine(t)
	tbl := singleColumn(t, "INTEGER", int64(7))

	got, err := e.ComputeColumnStats(context.Background(), testTable, "c", "int", tbl, 1)
	require.NoError(t, err)
	s := byName(got)
	assert.NotContains(t, s, StatStdDev)
	assert.Equal(t, "7.0", s[StatMean])
	assert.Equal(t, "7", s[StatP25])
	assert.Equal(t, "7", s[StatP75])
}

func TestIntegralStatsKeepEveryDigit(t *testing.T) {
	e := newTestEngine(t)
	tbl := singleColumn(t, "BIGINT", int64(9007199254740993), nil, int64(9007199254740995))

	got, err := e.ComputeColumnStats(context.Background(), testTable, "c", "BIGINT", tbl, 3)
	require.NoError(t, err)

	s := byName(got)
	assert.Equal(t, "9007199254740993", s[StatMin])
	assert.Equal(t, "9007199254740995", s[StatMax])
	assert.Equal(t, "9007199254740994.0", s[StatMean])
	assert.Equal(t, "1.4", s[StatStdDev])
	assert.Contains(t, []string{"9007199254740993", "9007199254740995"}, s[StatP50])
}

func TestIntegralStatsBeyondInt64(t *testing.T) {
	e := newTestEngine(t)
	tbl := singleColumn(t, "UBIGINT", uint64(1), uint64(math.MaxUint64))

	got, err := e.ComputeColumnStats(context.Background(), testTable, "c", "UBIGINT", tbl, 2)
	require.NoError(t, err)
	s := byName(got)
	assert.Equal(t, "1", s[StatMin])
	assert.Equal(t, "18446744073709551615", s[StatMax])
	assert.Equal(t, "9.223372036854776e+18", s[StatMean])
	for _, name := range []string{StatP25, StatP50, StatP75} {
		assert.Contains(t, []string{"1", "18446744073709551615"}, s[name], name)
	}

	huge := singleColumn(t, "HUGEINT", "-170141183460469231731687303715884105728", "170141183460469231731687303715884105727")
	got, err = e.ComputeColumnStats(context.Background(), testTable, "c", "HUGEINT", huge, 2)
	require.NoError(t, err)
	s = byName(got)
	assert.Equal(t, "-170141183460469231731687303715884105728", s[StatMin])
	assert.Equal(t, "170141183460469231731687303715884105727", s[StatMax])
}

func TestNumericStatsWithInfinities(t *testing.T) {
	e := newTestEngine(t)

	got, err := e.ComputeColumnStats(context.Background(), testTable, "c", "DOUBLE",
		singleColumn(t, "DOUBLE", 1.0, math.Inf(1), 3.0), 3)
	require.NoError(t, err)
	s := byName(got)
	assert.Equal(t, "Infinity", s[StatMean])
	assert.NotContains(t, s, StatStdDev)
	assert.Equal(t, "1.0", s[StatMin])
	assert.Equal(t, "Infinity", s[StatMax])
	assert.Equal(t, "0", s[StatNullPercent])

	got, err = e.ComputeColumnStats(context.Background(), testTable, "c", "DOUBLE",
		singleColumn(t, "DOUBLE", math.Inf(-1), 2.0), 2)
	require.NoError(t, err)
	assert.Equal(t, "-Infinity", byName(got)[StatMean])

	got, err = e.ComputeColumnStats(context.Background(), testTable, "c", "DOUBLE",
		singleColumn(t, "DOUBLE", math.Inf(1), math.Inf(-1), 2.0), 3)
	require.NoError(t, err)
	assert.Equal(t, "NaN", byName(got)[StatMean])
}

func TestNumericStatsNearFloatLimit(t *testing.T) {
	e := newTestEngine(t)
	got, err := e.ComputeColumnStats(context.Background(), testTable, "c", "DOUBLE",
		singleColumn(t, "DOUBLE", 1e308, 1e308), 2)
	require.NoError(t, err)

	s := byName(got)
	assert.Equal(t, "1e+308", s[StatMean])
	assert.Equal(t, "0.0", s[StatStdDev])
	assert.Equal(t, "1e+308", s[StatMax])
}

func TestTimeOfDayColumnIsCategorical(t *testing.T) {
	e := newTestEngine(t)
	tbl := singleColumn(t, "TIME", "12:30:00", "13:00:00", "12:30:00")

	got, err := e.ComputeColumnStats(context.Background(), testTable, "c", "TIME", tbl, 3)
	require.NoError(t, err)
	s := byName(got)
	assert.Equal(t, "12:30:00", s[StatMostFreqValue])
	assert.Equal(t, "2", s[StatDistinct])
}

func TestCategoricalStats(t *testing.T) {
	e := newTestEngine(t)
	tbl := singleColumn(t, "VARCHAR", "a", "a", "b")

	got, err := e.ComputeColumnStats(context.Background(), testTable, "c", "VARCHAR", tbl, 3)
	require.NoError(t, err)

	s := byName(got)
	assert.Equal(t, "a", s[StatMostFreqValue])
	assert.Equal(t, "67", s[StatMostFreqPercnt])
	assert.Equal(t, "0", s[StatNullPercent])
	assert.Equal(t, "2", s[StatDistinct])
}

func TestCategoricalStatsWithNulls(t *testing.T) {
	e := newTestEngine(t)
	tbl := singleColumn(t, "string", nil, nil, nil, "x")

	got, err := e.ComputeColumnStats(context.Background(), testTable, "c", "string", tbl, 4)
	require.NoError(t, err)

	s := byName(got)
	assert.Equal(t, "75", s[StatNullPercent])
	assert.Equal(t, "x", s[StatMostFreqValue], "nulls never win most frequent")
	assert.Equal(t, "25", s[StatMostFreqPercnt])
	assert.Equal(t, "1", s[StatDistinct])
}

func TestTemporalStats(t *testing.T) {
	e := newTestEngine(t)
	early := time.Date(2023, 1, 2, 3, 4, 5, 0, time.UTC)
	late := time.Date(2024, 6, 7, 8, 9, 10, 0, time.UTC)
	tbl := singleColumn(t, "TIMESTAMP", late, nil, early)

	got, err := e.ComputeColumnStats(context.Background(), testTable, "c", "TIMESTAMP", tbl, 3)
	require.NoError(t, err)
	require.Len(t, got, 2)

	s := byName(got)
	assert.Equal(t, "2023-01-02 03:04:05", s[StatMin])
	assert.Equal(t, "2024-06-07 08:09:10", s[StatMax])
}

func TestEmptyTableYieldsNoStats(t *testing.T) {
	e := newTestEngine(t)
	tbl := singleColumn(t, "BIGINT")

	got, err := e.ComputeColumnStats(context.Background(), testTable, "c", "BIGINT", tbl, 0)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestUnsupportedColumnType(t *testing.T) {
	e := newTestEngine(t)
	tbl := singleColumn(t, "BLOB", []byte("x"))

	for _, rows := range []int64{0, 1} {
		_, err := e.ComputeColumnStats(context.Background(), testTable, "c", "BLOB", tbl, rows)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrUnsupportedColumnType)

		var ute *UnsupportedColumnTypeError
		require.ErrorAs(t, err, &ute)
		assert.Equal(t, "BLOB", ute.Type)
		assert.Equal(t, "c", ute.Column)
	}
}

func TestComputeColumnStatsHonorsCancellation(t *testing.T) {
	e := newTestEngine(t)
	tbl := singleColumn(t, "BIGINT", int64(1))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.ComputeColumnStats(ctx, testTable, "c", "BIGINT", tbl, 1)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewEngineRelativeAccuracy(t *testing.T) {
	e, err := NewEngine()
	require.NoError(t, err)
	assert.Equal(t, DefaultRelativeAccuracy, e.RelativeAccuracy())

	for _, bad := range []float64{0, -0.1, 0.5, math.NaN()} {
		_, err := NewEngine(WithRelativeAccuracy(bad))
		assert.Error(t, err, "accuracy %v", bad)
	}

	e, err = NewEngine(WithRelativeAccuracy(MaxRelativeAccuracy))
	require.NoError(t, err)
	assert.Equal(t, MaxRelativeAccuracy, e.RelativeAccuracy())
}
