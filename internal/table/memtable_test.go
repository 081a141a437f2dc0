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

package table

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTable(t *testing.T) *MemTable {
	t.Helper()
	m := NewMemTable("orders", []Column{
		{Name: "id", Type: "BIGINT"},
		{Name: "region", Type: "VARCHAR"},
		{Name: "placed", Type: "TIMESTAMP"},
	})
	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, m.AppendRow(int64(1), "east", ts))
	require.NoError(t, m.AppendRow(int64(2), "west", nil))
	require.NoError(t, m.AppendRow(nil, "west", ts.Add(time.Hour)))
	require.NoError(t, m.AppendRow(int64(4), nil, ts.Add(-time.Hour)))
	return m
}

func TestMemTableCountAndColumns(t *testing.T) {
	m := newTestTable(t)
	n, err := m.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
	assert.Equal(t, "orders", m.Name())
	assert.Len(t, m.Columns(), 3)
	assert.True(t, HasColumn(m, "region"))
	assert.False(t, HasColumn(m, "missing"))
}

func TestMemTableAppendRowArity(t *testing.T) {
	m := NewMemTable("t", []Column{{Name: "a", Type: "BIGINT"}})
	assert.Error(t, m.AppendRow(int64(1), int64(2)))
}

func TestMemTableScans(t *testing.T) {
	ctx := context.Background()
	m := newTestTable(t)

	var nums []float64
	nulls := 0
	require.NoError(t, m.ScanFloat64(ctx, "id", func(v float64, valid bool) error {
		if !valid {
			nulls++
			return nil
		}
		nums = append(nums, v)
		return nil
	}))
	assert.Equal(t, []float64{1, 2, 4}, nums)
	assert.Equal(t, 1, nulls)

	var strs []string
	require.NoError(t, m.ScanString(ctx, "region", func(v string, valid bool) error {
		if valid {
			strs = append(strs, v)
		}
		return nil
	}))
	assert.Equal(t, []string{"east", "west", "west"}, strs)

	times := 0
	require.NoError(t, m.ScanTime(ctx, "placed", func(v time.Time, valid bool) error {
		if valid {
			times++
		}
		return nil
	}))
	assert.Equal(t, 3, times)

	err := m.ScanTime(ctx, "region", func(time.Time, bool) error { return nil })
	assert.Error(t, err)

	err = m.ScanString(ctx, "missing", func(string, bool) error { return nil })
	assert.ErrorIs(t, err, ErrNoSuchColumn)
}

func TestMemTableScanDecimal(t *testing.T) {
	m := NewMemTable("wide", []Column{{Name: "n", Type: "UBIGINT"}})
	require.NoError(t, m.AppendRow(uint64(math.MaxUint64)))
	require.NoError(t, m.AppendRow(int64(9007199254740993)))
	require.NoError(t, m.AppendRow("170141183460469231731687303715884105727"))
	require.NoError(t, m.AppendRow(nil))
	require.NoError(t, m.AppendRow(int32(-7)))

	var got []string
	nulls := 0
	require.NoError(t, m.ScanDecimal(context.Background(), "n", func(v decimal.Decimal, valid bool) error {
		if !valid {
			nulls++
			return nil
		}
		got = append(got, v.String())
		return nil
	}))
	assert.Equal(t, []string{
		"18446744073709551615",
		"9007199254740993",
		"170141183460469231731687303715884105727",
		"-7",
	}, got)
	assert.Equal(t, 1, nulls)

	bad := NewMemTable("bad", []Column{{Name: "n", Type: "VARCHAR"}})
	require.NoError(t, bad.AppendRow("twelve"))
	err := bad.ScanDecimal(context.Background(), "n", func(decimal.Decimal, bool) error { return nil })
	assert.Error(t, err)
}

func TestMemTableScanStopsOnCallbackError(t *testing.T) {
	m := newTestTable(t)
	stop := errors.New("stop")
	calls := 0
	err := m.ScanFloat64(context.Background(), "id", func(float64, bool) error {
		calls++
		return stop
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, calls)
}

func TestMemTableMostFrequent(t *testing.T) {
	ctx := context.Background()
	m := newTestTable(t)

	mf, err := m.MostFrequent(ctx, "region")
	require.NoError(t, err)
	assert.Equal(t, MostFrequent{Value: "west", Count: 2, Found: true}, mf)

	empty := NewMemTable("e", []Column{{Name: "s", Type: "VARCHAR"}})
	require.NoError(t, empty.AppendRow(nil))
	mf, err = empty.MostFrequent(ctx, "s")
	require.NoError(t, err)
	assert.False(t, mf.Found)

	tie := NewMemTable("tie", []Column{{Name: "s", Type: "VARCHAR"}})
	for _, v := range []string{"b", "a", "a", "b"} {
		require.NoError(t, tie.AppendRow(v))
	}
	mf, err = tie.MostFrequent(ctx, "s")
	require.NoError(t, err)
	assert.Equal(t, "b", mf.Value)
}

func TestMemTableHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	m := newTestTable(t)
	_, err := m.Count(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	err = m.ScanFloat64(ctx, "id", func(float64, bool) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}
