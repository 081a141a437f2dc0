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

// Package table defines the loaded-table handle the statistics engine reads
// from. Implementations delegate scans, counting and grouping to whatever
// engine holds the data.
package table

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Column is a column name with the type declared by the loading engine.
type Column struct {
	Name string
	Type string
}

// MostFrequent is the result of grouping a column by value.
type MostFrequent struct {
	Value string
	Count int64
	// Found is false when the column holds no non-null values.
	Found bool
}

// Table is a read-only handle on a loaded dataset. Implementations must
// tolerate concurrent scans of different columns.
//
// Scan callbacks receive valid=false for SQL NULLs. Returning an error from a
// callback stops the scan and the error is returned unchanged.
type Table interface {
	Name() string
	Columns() []Column
	Count(ctx context.Context) (int64, error)
	ScanFloat64(ctx context.Context, column string, fn func(v float64, valid bool) error) error
	// ScanDecimal yields exact values, for integer columns wider than a
	// float64 mantissa.
	ScanDecimal(ctx context.Context, column string, fn func(v decimal.Decimal, valid bool) error) error
	ScanString(ctx context.Context, column string, fn func(v string, valid bool) error) error
	ScanTime(ctx context.Context, column string, fn func(v time.Time, valid bool) error) error
	// MostFrequent returns the most common non-null value of column.
	MostFrequent(ctx context.Context, column string) (MostFrequent, error)
	Close() error
}

// ErrNoSuchColumn is returned when a scan names a column the table lacks.
var ErrNoSuchColumn = errors.New("no such column")

func noSuchColumn(table, column string) error {
	return fmt.Errorf("table %q column %q: %w", table, column, ErrNoSuchColumn)
}

// HasColumn reports whether t has a column named name.
func HasColumn(t Table, name string) bool {
	for _, c := range t.Columns() {
		if c.Name == name {
			return true
		}
	}
	return false
}
