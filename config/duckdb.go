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


package config

import (
	"os"
	"path/filepath"
	"runtime"
)

// DuckDBConfig bounds the embedded engine used to read tabular objects.
// Zero values leave the DuckDB defaults in place.
type DuckDBConfig struct {
	MemoryLimit   int64  `mapstructure:"memory_limit"`   // MB
	TempDirectory string `mapstructure:"temp_directory"` // spill files
	Threads       int    `mapstructure:"threads"`
	MaxConns      int    `mapstructure:"max_conns"`
}

func DefaultDuckDBConfig() DuckDBConfig {
	return DuckDBConfig{MaxConns: 8}
}

// SpillDirectory is where DuckDB writes spill files. Without an explicit
// setting it lives under the process scratch directory.
func (c DuckDBConfig) SpillDirectory() string {
	if c.TempDirectory != "" {
		return c.TempDirectory
	}
	return filepath.Join(os.TempDir(), "duckdb")
}

// ConnLimit caps open DuckDB connections, which in turn caps how many
// column scans run at once.
func (c DuckDBConfig) ConnLimit() int {
	if c.MaxConns > 0 {
		return c.MaxConns
	}
	return runtime.GOMAXPROCS(0)
}
