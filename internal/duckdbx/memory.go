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

package duckdbx

import (
	"context"
	"database/sql"
	"strconv"
	"strings"
)

type MemoryStats struct {
	DatabaseName string
	DatabaseSize int64
	BlockSize    int64
	TotalBlocks  int64
	UsedBlocks   int64
	FreeBlocks   int64
	WALSize      int64
	MemoryUsage  int64
	MemoryLimit  int64
}

// GetMemoryStats reads PRAGMA database_size on conn.
func GetMemoryStats(ctx context.Context, conn *sql.Conn) ([]MemoryStats, error) {
	rows, err := conn.QueryContext(ctx, "PRAGMA database_size")
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var ret []MemoryStats
	for rows.Next() {
		var (
			stat                                      MemoryStats
			dbSize, walSize, memoryUsage, memoryLimit string
		)
		if err := rows.Scan(&stat.DatabaseName, &dbSize, &stat.BlockSize, &stat.TotalBlocks,
			&stat.UsedBlocks, &stat.FreeBlocks, &walSize, &memoryUsage, &memoryLimit); err != nil {
			return nil, err
		}
		stat.DatabaseSize = parseSize(dbSize)
		stat.WALSize = parseSize(walSize)
		stat.MemoryUsage = parseSize(memoryUsage)
		stat.MemoryLimit = parseSize(memoryLimit)
		ret = append(ret, stat)
	}
	return ret, rows.Err()
}

var sizeUnits = map[string]float64{
	"bytes": 1,
	"byte":  1,
	"kb":    1e3,
	"mb":    1e6,
	"gb":    1e9,
	"tb":    1e12,
	"pb":    1e15,
	"kib":   1 << 10,
	"mib":   1 << 20,
	"gib":   1 << 30,
	"tib":   1 << 40,
	"pib":   1 << 50,
}

// parseSize turns strings like "0 bytes", "1.2 MB" or "3.1 GiB" into bytes.
// Unparseable input yields 0.
func parseSize(sizeStr string) int64 {
	parts := strings.Fields(sizeStr)
	if len(parts) == 0 {
		return 0
	}
	value, err := strconv.ParseFloat(parts[0], 64)
	if err != nil {
		return 0
	}
	if len(parts) == 1 {
		return int64(value)
	}
	mult, ok := sizeUnits[strings.ToLower(parts[1])]
	if !ok {
		return 0
	}
	return int64(value * mult)
}
