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
	"fmt"
	"math"

	"github.com/DataDog/sketches-go/ddsketch"
	"github.com/shopspring/decimal"

	"github.com/cardinalhq/lakescanner/internal/table"
)

var (
	quantiles     = []float64{0.25, 0.5, 0.75}
	quantileNames = []string{StatP25, StatP50, StatP75}
)

// moments is a Welford running mean and variance over finite values.
type moments struct {
	n        int64
	mean, m2 float64
}

func (m *moments) add(x float64) {
	m.n++
	delta := x - m.mean
	m.mean += delta / float64(m.n)
	m.m2 += delta * (x - m.mean)
}

func (m *moments) stddev() (float64, bool) {
	if m.n < 2 {
		return 0, false
	}
	return math.Sqrt(m.m2 / float64(m.n-1)), true
}

// floatAccumulator folds a floating point column in one pass. NaN counts
// as null. Infinities take part in min, max and mean but not in the
// variance or the sketch.
type floatAccumulator struct {
	sketch         *ddsketch.DDSketch
	mom            moments
	nulls          int64
	posInf, negInf int64
	min, max       float64
}

func (a *floatAccumulator) add(v float64, valid bool) error {
	if !valid || math.IsNaN(v) {
		a.nulls++
		return nil
	}
	a.min = math.Min(a.min, v)
	a.max = math.Max(a.max, v)
	switch {
	case math.IsInf(v, 1):
		a.posInf++
		return nil
	case math.IsInf(v, -1):
		a.negInf++
		return nil
	}
	a.mom.add(v)
	return a.sketch.Add(v)
}

func (a *floatAccumulator) count() int64 { return a.mom.n + a.posInf + a.negInf }

func (a *floatAccumulator) mean() float64 {
	switch {
	case a.posInf > 0 && a.negInf > 0:
		return math.NaN()
	case a.posInf > 0:
		return math.Inf(1)
	case a.negInf > 0:
		return math.Inf(-1)
	}
	return round1(a.mom.mean)
}

// integralAccumulator folds an integer column exactly. Min and max are kept
// as decimals; the moments and the sketch see each value as its distance
// from the first one, which stays exact for columns of nearby large ids.
type integralAccumulator struct {
	sketch   *ddsketch.DDSketch
	mom      moments
	nulls    int64
	origin   decimal.Decimal
	min, max decimal.Decimal
}

func (a *integralAccumulator) add(v decimal.Decimal, valid bool) error {
	if !valid {
		a.nulls++
		return nil
	}
	if a.mom.n == 0 {
		a.origin, a.min, a.max = v, v, v
	} else {
		if v.LessThan(a.min) {
			a.min = v
		}
		if v.GreaterThan(a.max) {
			a.max = v
		}
	}
	d := v.Sub(a.origin).InexactFloat64()
	a.mom.add(d)
	return a.sketch.Add(d)
}

func (e *Engine) numericStats(ctx context.Context, t table.Table, column string, integral bool, rowCount int64) ([]statValue, error) {
	sketch, err := ddsketch.NewDefaultDDSketch(e.relativeAccuracy)
	if err != nil {
		return nil, fmt.Errorf("create sketch: %w", err)
	}
	if integral {
		acc := &integralAccumulator{sketch: sketch}
		if err := t.ScanDecimal(ctx, column, acc.add); err != nil {
			return nil, err
		}
		return acc.stats(rowCount)
	}
	acc := &floatAccumulator{sketch: sketch, min: math.Inf(1), max: math.Inf(-1)}
	if err := t.ScanFloat64(ctx, column, acc.add); err != nil {
		return nil, err
	}
	return acc.stats(rowCount)
}

func (a *floatAccumulator) stats(rowCount int64) ([]statValue, error) {
	out := make([]statValue, 0, 8)
	if a.count() > 0 {
		out = append(out, statValue{StatMean, a.mean()})
		if sd, ok := a.mom.stddev(); ok && a.posInf+a.negInf == 0 {
			out = append(out, statValue{StatStdDev, round1(sd)})
		}
		out = append(out,
			statValue{StatMin, a.min},
			statValue{StatMax, a.max},
		)
	}
	out = append(out, statValue{StatNullPercent, percent(a.nulls, rowCount)})

	if a.sketch.IsEmpty() {
		return out, nil
	}
	qs, err := a.sketch.GetValuesAtQuantiles(quantiles)
	if err != nil {
		return nil, fmt.Errorf("quantiles: %w", err)
	}
	for i, q := range qs {
		// Sketch values carry relative error; keep them inside the observed range.
		out = append(out, statValue{quantileNames[i], math.Min(math.Max(q, a.min), a.max)})
	}
	return out, nil
}

func (a *integralAccumulator) stats(rowCount int64) ([]statValue, error) {
	out := make([]statValue, 0, 8)
	if a.mom.n > 0 {
		mean := a.origin.Add(decimal.NewFromFloat(a.mom.mean))
		out = append(out, statValue{StatMean, decimalMean(mean)})
		if sd, ok := a.mom.stddev(); ok {
			out = append(out, statValue{StatStdDev, round1(sd)})
		}
		out = append(out,
			statValue{StatMin, a.min.String()},
			statValue{StatMax, a.max.String()},
		)
	}
	out = append(out, statValue{StatNullPercent, percent(a.nulls, rowCount)})

	if a.sketch.IsEmpty() {
		return out, nil
	}
	qs, err := a.sketch.GetValuesAtQuantiles(quantiles)
	if err != nil {
		return nil, fmt.Errorf("quantiles: %w", err)
	}
	for i, q := range qs {
		v := a.origin.Add(decimal.NewFromFloat(math.Round(q)))
		v = decimal.Min(decimal.Max(v, a.min), a.max)
		out = append(out, statValue{quantileNames[i], v.String()})
	}
	return out, nil
}

// decimalMean renders an integer column mean with one decimal place, the
// way float means print, unless it is large enough for exponent form.
func decimalMean(d decimal.Decimal) any {
	if d.Abs().LessThan(exponentThreshold) {
		return d.StringFixed(1)
	}
	return d.InexactFloat64()
}
