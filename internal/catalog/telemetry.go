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

package catalog

import (
	"fmt"

	"go.opentelemetry.io/otel"
	otelmetric "go.opentelemetry.io/otel/metric"
)

var (
	pagesListed      otelmetric.Int64Counter
	prefixesAccepted otelmetric.Int64Counter
	prefixesSkipped  otelmetric.Int64Counter
)

func init() {
	meter := otel.Meter("github.com/cardinalhq/lakescanner/internal/catalog")

	var err error
	pagesListed, err = meter.Int64Counter(
		"lakescanner.catalog.pages",
		otelmetric.WithDescription("Number of object store listing pages consumed"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create catalog.pages counter: %w", err))
	}

	prefixesAccepted, err = meter.Int64Counter(
		"lakescanner.catalog.prefixes.accepted",
		otelmetric.WithDescription("Number of distinct common prefixes accepted as datasets"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create catalog.prefixes.accepted counter: %w", err))
	}

	prefixesSkipped, err = meter.Int64Counter(
		"lakescanner.catalog.prefixes.skipped",
		otelmetric.WithDescription("Number of common prefixes that did not name a dataset"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create catalog.prefixes.skipped counter: %w", err))
	}
}
