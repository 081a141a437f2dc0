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
	"fmt"
	"math"
	"math/big"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// MemTable is a column-major in-memory table. It is filled with AppendRow
// and is safe for concurrent reads once filling is done.
type MemTable struct {
	name    string
	columns []Column
	index   map[string]int
	data    [][]any
	rows    int
}

var _ Table = (*MemTable)(nil)

// NewMemTable creates an empty table with the given columns.
func NewMemTable(name string, columns []Column) *MemTable {
	m := &MemTable{
		name:    name,
		columns: append([]Column(nil), columns...),
		index:   make(map[string]int, len(columns)),
		data:    make([][]any, len(columns)),
	}
	for i, c := range columns {
		m.index[c.Name] = i
	}
	return m
}

// AppendRow adds one row. Values are positional and a nil value is NULL.
func (m *MemTable) AppendRow(values ...any) error {
	if len(values) != len(m.columns) {
		return fmt.Errorf("table %q: row has %d values, want %d", m.name, len(values), len(m.columns))
	}
	for i, v := range values {
		m.data[i] = append(m.data[i], v)
	}
	m.rows++
	return nil
}

func (m *MemTable) Name() string { return m.name }

func (m *MemTable) Columns() []Column { return append([]Column(nil), m.columns...) }

func (m *MemTable) Count(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return int64(m.rows), nil
}

func (m *MemTable) column(name string) ([]any, error) {
	i, ok := m.index[name]
	if !ok {
		return nil, noSuchColumn(m.name, name)
	}
	return m.data[i], nil
}

func (m *MemTable) ScanFloat64(ctx context.Context, column string, fn func(float64, bool) error) error {
	values, err := m.column(column)
	if err != nil {
		return err
	}
	for i, v := range values {
		if i%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		f, valid, err := toFloat64(v)
		if err != nil {
			return fmt.Errorf("table %q column %q row %d: %w", m.name, column, i, err)
		}
		if err := fn(f, valid); err != nil {
			return err
		}
	}
	return nil
}

func (m *MemTable) ScanDecimal(ctx context.Context, column string, fn func(decimal.Decimal, bool) error) error {
	values, err := m.column(column)
	if err != nil {
		return err
	}
	for i, v := range values {
		if i%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		d, valid, err := toDecimal(v)
		if err != nil {
			return fmt.Errorf("table %q column %q row %d: %w", m.name, column, i, err)
		}
		if err := fn(d, valid); err != nil {
			return err
		}
	}
	return nil
}

func (m *MemTable) ScanString(ctx context.Context, column string, fn func(string, bool) error) error {
	values, err := m.column(column)
	if err != nil {
		return err
	}
	for i, v := range values {
		if i%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		s, valid := toString(v)
		if err := fn(s, valid); err != nil {
			return err
		}
	}
	return nil
}

func (m *MemTable) ScanTime(ctx context.Context, column string, fn func(time.Time, bool) error) error {
	values, err := m.column(column)
	if err != nil {
		return err
	}
	for i, v := range values {
		if i%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		var ts time.Time
		valid := false
		switch tv := v.(type) {
		case nil:
		case time.Time:
			ts, valid = tv, true
		case *time.Time:
			if tv != nil {
				ts, valid = *tv, true
			}
		default:
			return fmt.Errorf("table %q column %q row %d: cannot read %T as time", m.name, column, i, v)
		}
		if err := fn(ts, valid); err != nil {
			return err
		}
	}
	return nil
}

// MostFrequent groups by the string form of each value. Ties go to the value
// seen first.
func (m *MemTable) MostFrequent(ctx context.Context, column string) (MostFrequent, error) {
	values, err := m.column(column)
	if err != nil {
		return MostFrequent{}, err
	}
	if err := ctx.Err(); err != nil {
		return MostFrequent{}, err
	}
	counts := make(map[string]int64)
	var order []string
	for _, v := range values {
		s, valid := toString(v)
		if !valid {
			continue
		}
		if _, seen := counts[s]; !seen {
			order = append(order, s)
		}
		counts[s]++
	}
	var best MostFrequent
	for _, s := range order {
		if c := counts[s]; c > best.Count {
			best = MostFrequent{Value: s, Count: c, Found: true}
		}
	}
	return best, nil
}

func (m *MemTable) Close() error { return nil }

func toFloat64(v any) (float64, bool, error) {
	switch n := v.(type) {
	case nil:
		return 0, false, nil
	case float64:
		return n, true, nil
	case float32:
		return float64(n), true, nil
	case int:
		return float64(n), true, nil
	case int8:
		return float64(n), true, nil
	case int16:
		return float64(n), true, nil
	case int32:
		return float64(n), true, nil
	case int64:
		return float64(n), true, nil
	case uint:
		return float64(n), true, nil
	case uint8:
		return float64(n), true, nil
	case uint16:
		return float64(n), true, nil
	case uint32:
		return float64(n), true, nil
	case uint64:
		return float64(n), true, nil
	case *float64:
		if n == nil {
			return 0, false, nil
		}
		return *n, true, nil
	case *int64:
		if n == nil {
			return 0, false, nil
		}
		return float64(*n), true, nil
	default:
		return 0, false, fmt.Errorf("cannot read %T as number", v)
	}
}

func toDecimal(v any) (decimal.Decimal, bool, error) {
	switch n := v.(type) {
	case nil:
		return decimal.Decimal{}, false, nil
	case decimal.Decimal:
		return n, true, nil
	case *big.Int:
		if n == nil {
			return decimal.Decimal{}, false, nil
		}
		return decimal.NewFromBigInt(n, 0), true, nil
	case uint64:
		return decimal.NewFromBigInt(new(big.Int).SetUint64(n), 0), true, nil
	case uint:
		return decimal.NewFromBigInt(new(big.Int).SetUint64(uint64(n)), 0), true, nil
	case string:
		d, err := decimal.NewFromString(n)
		if err != nil {
			return decimal.Decimal{}, false, fmt.Errorf("cannot read %q as decimal: %w", n, err)
		}
		return d, true, nil
	}
	f, valid, err := toFloat64(v)
	if err != nil || !valid {
		return decimal.Decimal{}, false, err
	}
	switch n := v.(type) {
	case int:
		return decimal.NewFromInt(int64(n)), true, nil
	case int64:
		return decimal.NewFromInt(n), true, nil
	case *int64:
		return decimal.NewFromInt(*n), true, nil
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return decimal.Decimal{}, false, fmt.Errorf("cannot read %v as decimal", f)
	}
	return decimal.NewFromFloat(f), true, nil
}

func toString(v any) (string, bool) {
	switch s := v.(type) {
	case nil:
		return "", false
	case string:
		return s, true
	case *string:
		if s == nil {
			return "", false
		}
		return *s, true
	case []byte:
		return string(s), true
	case bool:
		return strconv.FormatBool(s), true
	case time.Time:
		return s.Format(time.DateTime), true
	default:
		if f, valid, err := toFloat64(v); err == nil {
			if !valid {
				return "", false
			}
			return strconv.FormatFloat(f, 'f', -1, 64), true
		}
		return fmt.Sprint(v), true
	}
}
