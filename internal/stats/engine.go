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

// Package stats computes per-column statistics over a loaded table.
package stats

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	otelmetric "go.opentelemetry.io/otel/metric"

	"github.com/cardinalhq/lakescanner/internal/records"
	"github.com/cardinalhq/lakescanner/internal/table"
)

// Stat names as they appear in ColumnStat.StatName.
const (
	StatMean           = "mean"
	StatStdDev         = "std dev"
	StatMin            = "min"
	StatMax            = "max"
	StatNullPercent    = "null %"
	StatP25            = "25%"
	StatP50            = "50%"
	StatP75            = "75%"
	StatDistinct       = "distinct values"
	StatMostFreqValue  = "most freq value"
	StatMostFreqPercnt = "most freq %"
)

const (
	DefaultRelativeAccuracy = 0.01
	MaxRelativeAccuracy     = 0.2
)

// Engine computes column statistics. It holds no per-call state and is
// safe for concurrent use.
type Engine struct {
	relativeAccuracy float64
	now              func() time.Time
}

type Option func(*Engine)

// WithRelativeAccuracy sets the relative accuracy of the quantile sketch.
func WithRelativeAccuracy(acc float64) Option {
	return func(e *Engine) { e.relativeAccuracy = acc }
}

// WithClock replaces the clock used for stat start and end timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func NewEngine(opts ...Option) (*Engine, error) {
	e := &Engine{
		relativeAccuracy: DefaultRelativeAccuracy,
		now:              time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if !(e.relativeAccuracy > 0 && e.relativeAccuracy <= MaxRelativeAccuracy) {
		return nil, fmt.Errorf("relative accuracy %v out of range (0, %v]", e.relativeAccuracy, MaxRelativeAccuracy)
	}
	return e, nil
}

func (e *Engine) RelativeAccuracy() float64 { return e.relativeAccuracy }

// statValue is one computed stat before it is stamped into a ColumnStat.
type statValue struct {
	name  string
	value any
}

// ComputeColumnStats computes the statistics for one column of t. rowCount
// is the table's row count and is the denominator of every percentage. A
// zero rowCount yields no stats; a declared type with no strategy yields an
// UnsupportedColumnTypeError whatever the row count.
func (e *Engine) ComputeColumnStats(
	ctx context.Context,
	tc records.TableContext,
	column string,
	declaredType string,
	t table.Table,
	rowCount int64,
) ([]records.ColumnStat, error) {
	class := Classify(declaredType)
	if class.Kind == KindUnsupported {
		return nil, &UnsupportedColumnTypeError{Table: tc.TableName, Column: column, Type: declaredType}
	}
	if rowCount < 0 {
		return nil, fmt.Errorf("table %q column %q: negative row count %d", tc.TableName, column, rowCount)
	}
	if rowCount == 0 {
		return nil, nil
	}

	start := e.now()
	var (
		values []statValue
		err    error
	)
	switch class.Kind {
	case KindNumeric:
		values, err = e.numericStats(ctx, t, column, class.Integral, rowCount)
	case KindCategorical:
		values, err = categoricalStats(ctx, t, column, rowCount)
	case KindTemporal:
		values, err = temporalStats(ctx, t, column)
	}
	if err != nil {
		return nil, fmt.Errorf("table %q column %q: %w", tc.TableName, column, err)
	}
	end := e.now()

	attrs := otelmetric.WithAttributes(attribute.String("kind", class.Kind.String()))
	columnDuration.Record(ctx, end.Sub(start).Seconds(), attrs)
	statsProduced.Add(ctx, int64(len(values)), attrs)

	out := make([]records.ColumnStat, 0, len(values))
	for _, v := range values {
		out = append(out, records.ColumnStat{
			TableName:      tc.TableName,
			ColumnName:     column,
			StatName:       v.name,
			StatValue:      FormatValue(v.value),
			StartTimestamp: start,
			EndTimestamp:   end,
			Database:       tc.Database,
			Cluster:        tc.Cluster,
			Schema:         tc.Schema,
		})
	}
	return out, nil
}
