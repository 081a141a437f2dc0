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

	"github.com/axiomhq/hyperloglog"

	"github.com/cardinalhq/lakescanner/internal/table"
)

func categoricalStats(ctx context.Context, t table.Table, column string, rowCount int64) ([]statValue, error) {
	hll := hyperloglog.New14()
	var nulls int64
	err := t.ScanString(ctx, column, func(v string, valid bool) error {
		if !valid {
			nulls++
			return nil
		}
		hll.Insert([]byte(v))
		return nil
	})
	if err != nil {
		return nil, err
	}

	mf, err := t.MostFrequent(ctx, column)
	if err != nil {
		return nil, err
	}

	out := []statValue{
		{StatDistinct, int64(hll.Estimate())},
		{StatNullPercent, percent(nulls, rowCount)},
	}
	if mf.Found {
		out = append(out,
			statValue{StatMostFreqValue, mf.Value},
			statValue{StatMostFreqPercnt, percent(mf.Count, rowCount)},
		)
	}
	return out, nil
}
