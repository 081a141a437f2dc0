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
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// TimestampLayout renders temporal stat values; fractional seconds are
// printed only when present.
const TimestampLayout = "2006-01-02 15:04:05.999999"

// FormatValue renders a raw stat value as the string stored in
// ColumnStat.StatValue. Floats always carry a decimal point so that a mean
// of 2 prints as "2.0" and stays distinguishable from integer stats. Very
// large or small magnitudes use exponent form such as 1e+308 or 1.5e-07.
func FormatValue(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return formatFloat(x)
	case bool:
		return strconv.FormatBool(x)
	case time.Time:
		return x.Format(TimestampLayout)
	default:
		return fmt.Sprint(v)
	}
}

func formatFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	}
	if a := math.Abs(f); a != 0 && (a < 1e-4 || a >= 1e16) {
		return strconv.FormatFloat(f, 'e', -1, 64)
	}
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.ContainsRune(s, '.') {
		s += ".0"
	}
	return s
}

// exponentThreshold is the magnitude from which values print in exponent
// form, as 1e+16.
var exponentThreshold = decimal.New(1, 16)

// round1 rounds to one decimal place. Beyond 1e15 a float64 has no
// fractional digits left and f*10 could overflow.
func round1(f float64) float64 {
	if math.Abs(f) > 1e15 || math.IsNaN(f) || math.IsInf(f, 0) {
		return f
	}
	return math.Round(f*10) / 10
}

// percent returns round(100*part/whole). whole must be positive.
func percent(part, whole int64) int64 {
	p := int64(math.Round(float64(part) * 100 / float64(whole)))
	return min(max(p, 0), 100)
}
