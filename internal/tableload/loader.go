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

// Package tableload materializes datasets as tables the statistics engine
// can read.
package tableload

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/cardinalhq/lakescanner/internal/dataset"
	"github.com/cardinalhq/lakescanner/internal/table"
)

// Loader loads the dataset at path in bucket. The caller closes the table.
type Loader interface {
	Load(ctx context.Context, bucket, path string, f dataset.Format) (table.Table, error)
}

// Locator turns a bucket and object key into a URL the analytics engine
// can open.
type Locator func(bucket, key string) string

// S3Locator addresses objects as s3://bucket/key.
func S3Locator(bucket, key string) string {
	return "s3://" + bucket + "/" + strings.TrimPrefix(key, "/")
}

// LocalLocator maps buckets to directories under root.
func LocalLocator(root string) Locator {
	return func(bucket, key string) string {
		return filepath.Join(root, bucket, filepath.FromSlash(key))
	}
}

// datasetName is the table name for a dataset path: its last segment
// without the format extension.
func datasetName(p string, f dataset.Format) string {
	base := path.Base(strings.TrimRight(p, "/"))
	return strings.TrimSuffix(base, f.Extension)
}

// MultiLoader dispatches to a Loader by format name.
type MultiLoader struct {
	byFormat map[string]Loader
}

func NewMultiLoader(loaders map[string]Loader) *MultiLoader {
	m := &MultiLoader{byFormat: make(map[string]Loader, len(loaders))}
	for name, l := range loaders {
		m.byFormat[name] = l
	}
	return m
}

func (m *MultiLoader) Load(ctx context.Context, bucket, path string, f dataset.Format) (table.Table, error) {
	l, ok := m.byFormat[f.Name]
	if !ok {
		return nil, fmt.Errorf("no table loader for format %q", f.Name)
	}
	return l.Load(ctx, bucket, path, f)
}
