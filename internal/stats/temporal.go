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
	"time"

	"github.com/cardinalhq/lakescanner/internal/table"
)

func temporalStats(ctx context.Context, t table.Table, column string) ([]statValue, error) {
	var (
		lo, hi time.Time
		seen   bool
	)
	err := t.ScanTime(ctx, column, func(v time.Time, valid bool) error {
		if !valid {
			return nil
		}
		if !seen {
			lo, hi, seen = v, v, true
			return nil
		}
		if v.Before(lo) {
			lo = v
		}
		if v.After(hi) {
			hi = v
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !seen {
		return nil, nil
	}
	return []statValue{
		{StatMin, lo},
		{StatMax, hi},
	}, nil
}
