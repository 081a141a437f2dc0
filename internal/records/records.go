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

// Package records holds the record shapes handed to downstream loaders.
package records

import (
	"fmt"
	"time"
)

// TableContext names the table a set of records belongs to.
type TableContext struct {
	Database  string
	Cluster   string
	Schema    string
	TableName string
}

// Key is the catalog key of the table, "<db>://<cluster>.<schema>/<table>".
func (tc TableContext) Key() string {
	return fmt.Sprintf("%s://%s.%s/%s", tc.Database, tc.Cluster, tc.Schema, tc.TableName)
}

// ColumnStat is one metric for one column. StatValue is always a string,
// whatever the underlying value type.
type ColumnStat struct {
	TableName      string    `json:"table_name"`
	ColumnName     string    `json:"column_name"`
	StatName       string    `json:"stat_name"`
	StatValue      string    `json:"stat_value"`
	StartTimestamp time.Time `json:"start_timestamp"`
	EndTimestamp   time.Time `json:"end_timestamp"`
	Database       string    `json:"database"`
	Cluster        string    `json:"cluster"`
	Schema         string    `json:"schema"`
}

// TableContext returns the table this stat belongs to.
func (s ColumnStat) TableContext() TableContext {
	return TableContext{
		Database:  s.Database,
		Cluster:   s.Cluster,
		Schema:    s.Schema,
		TableName: s.TableName,
	}
}

// ColumnKey is the catalog key of the column the stat describes.
func (s ColumnStat) ColumnKey() string {
	return s.TableContext().Key() + "/" + s.ColumnName
}

// Key uniquely identifies the stat within a catalog.
func (s ColumnStat) Key() string {
	return s.ColumnKey() + "/" + s.StatName + "/"
}

// ColumnMetadata describes one column of a table.
type ColumnMetadata struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
	SortOrder   int    `json:"sort_order"`
}

// TableMetadata describes a discovered table.
type TableMetadata struct {
	Database    string           `json:"database"`
	Cluster     string           `json:"cluster"`
	Schema      string           `json:"schema"`
	Name        string           `json:"name"`
	Description string           `json:"description,omitempty"`
	Columns     []ColumnMetadata `json:"columns"`
	IsView      bool             `json:"is_view"`
	Tags        []string         `json:"tags,omitempty"`
}

func (m TableMetadata) TableContext() TableContext {
	return TableContext{
		Database:  m.Database,
		Cluster:   m.Cluster,
		Schema:    m.Schema,
		TableName: m.Name,
	}
}

func (m TableMetadata) Key() string {
	return m.TableContext().Key()
}
