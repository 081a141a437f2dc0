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

import "strings"

// Kind selects the aggregation strategy for a column.
type Kind int

const (
	KindUnsupported Kind = iota
	KindNumeric
	KindCategorical
	KindTemporal
)

func (k Kind) String() string {
	switch k {
	case KindNumeric:
		return "numeric"
	case KindCategorical:
		return "categorical"
	case KindTemporal:
		return "temporal"
	default:
		return "unsupported"
	}
}

// ColumnClass is the result of classifying a declared column type.
type ColumnClass struct {
	Kind Kind
	// Integral is set for numeric columns whose values are whole numbers;
	// their min and max are reported as integers.
	Integral bool
}

// Classify maps a declared column type to its aggregation class. It accepts
// DuckDB type names (any case, with or without parameters) and the legacy
// short names int, bigint, double, string and datetime.
func Classify(declaredType string) ColumnClass {
	t := strings.ToUpper(strings.TrimSpace(declaredType))
	if i := strings.IndexByte(t, '('); i >= 0 {
		t = strings.TrimSpace(t[:i])
	}
	if strings.HasSuffix(t, "[]") {
		return ColumnClass{Kind: KindUnsupported}
	}

	switch t {
	case "TINYINT", "SMALLINT", "INTEGER", "INT", "BIGINT", "HUGEINT",
		"UTINYINT", "USMALLINT", "UINTEGER", "UBIGINT", "UHUGEINT",
		"INT1", "INT2", "INT4", "INT8", "LONG", "SHORT", "BYTE":
		return ColumnClass{Kind: KindNumeric, Integral: true}
	case "FLOAT", "REAL", "FLOAT4", "DOUBLE", "FLOAT8", "DECIMAL", "NUMERIC":
		return ColumnClass{Kind: KindNumeric}
	case "VARCHAR", "STRING", "TEXT", "CHAR", "BPCHAR", "BOOLEAN", "BOOL", "UUID", "ENUM":
		return ColumnClass{Kind: KindCategorical}
	case "TIME", "TIMETZ", "TIME WITH TIME ZONE":
		// A time of day has no date to place it on a timeline; it is
		// summarized like a string.
		return ColumnClass{Kind: KindCategorical}
	case "TIMESTAMP", "DATETIME", "DATE",
		"TIMESTAMP WITH TIME ZONE", "TIMESTAMPTZ",
		"TIMESTAMP_S", "TIMESTAMP_MS", "TIMESTAMP_NS":
		return ColumnClass{Kind: KindTemporal}
	default:
		return ColumnClass{Kind: KindUnsupported}
	}
}
