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
	"fmt"

	"go.opentelemetry.io/otel"
	otelmetric "go.opentelemetry.io/otel/metric"
)

var (
	datasetsProcessed otelmetric.Int64Counter
	datasetsFailed    otelmetric.Int64Counter
)

func init() {
	meter := otel.Meter("github.com/cardinalhq/lakescanner/internal/extract")

	var err error
	datasetsProcessed, err = meter.Int64Counter(
		"lakescanner.extract.datasets.processed",
		otelmetric.WithDescription("Number of datasets whose records were extracted"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create extract.datasets.processed counter: %w", err))
	}

	datasetsFailed, err = meter.Int64Counter(
		"lakescanner.extract.datasets.failed",
		otelmetric.WithDescription("Number of datasets skipped after a load or aggregation failure"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create extract.datasets.failed counter: %w", err))
	}
}
