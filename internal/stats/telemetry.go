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

	"go.opentelemetry.io/otel"
	otelmetric "go.opentelemetry.io/otel/metric"
)

var (
	columnDuration otelmetric.Float64Histogram
	statsProduced  otelmetric.Int64Counter
)

func init() {
	meter := otel.Meter("github.com/cardinalhq/lakescanner/internal/stats")

	var err error
	columnDuration, err = meter.Float64Histogram(
		"lakescanner.stats.column.duration",
		otelmetric.WithDescription("Time spent computing the statistics of one column"),
		otelmetric.WithUnit("s"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create stats.column.duration histogram: %w", err))
	}

	statsProduced, err = meter.Int64Counter(
		"lakescanner.stats.records",
		otelmetric.WithDescription("Number of column stat records produced"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create stats.records counter: %w", err))
	}
}
