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

// Package dataset maps raw object-store prefixes to dataset identities:
// a table basename plus the storage format used to load it.
package dataset

import (
	"path"
	"strings"
)

// ReadOptions are the load-time options a table loader applies for a format.
type ReadOptions struct {
	Header      bool
	InferSchema bool
	NullMarker  string
}

// Format describes a named storage encoding.
type Format struct {
	// Name is the loader-facing format name, eg "csv" or "orc".
	Name string
	// Extension is the dataset-name suffix that selects this format, including the dot.
	Extension string
	// DataFile, when set, is the fixed object name under the dataset prefix
	// that holds the data.
	DataFile string
	Read     ReadOptions
}

// HasDataFile reports whether loads read a single fixed object.
func (f Format) HasDataFile() bool {
	return f.DataFile != ""
}

// ObjectKey returns the key a table load reads for the dataset at datasetPath.
// For formats with a fixed data file this is "<path>/<DataFile>", otherwise it
// is the dataset prefix itself, always ending in "/".
func (f Format) ObjectKey(datasetPath string) string {
	trimmed := strings.TrimRight(datasetPath, "/")
	if f.HasDataFile() {
		return path.Join(trimmed, f.DataFile)
	}
	return trimmed + "/"
}

// CSV is the delimited-text format: one data.csv per dataset prefix, with a
// header row, inferred column types and "-" as the null marker.
var CSV = Format{
	Name:      "csv",
	Extension: ".csv",
	DataFile:  "data.csv",
	Read: ReadOptions{
		Header:      true,
		InferSchema: true,
		NullMarker:  "-",
	},
}

// ORC is the columnar format: any number of part files under the prefix.
var ORC = Format{
	Name:      "orc",
	Extension: ".orc",
}

// Identity is the resolved form of a dataset path.
type Identity struct {
	Basename string
	Format   Format
}
