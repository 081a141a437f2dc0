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
	"context"
	"fmt"
	"slices"

	"github.com/cardinalhq/lakescanner/internal/dataset"
	"github.com/cardinalhq/lakescanner/internal/records"
)

// MetadataScope is the scope of the table metadata extractor.
const MetadataScope = "extractor.objectstore.metadata"

// MetadataExtractor yields one TableMetadata per dataset in the bucket.
type MetadataExtractor struct {
	cfg    Config
	loader TableLoader
	walker *datasetWalker[records.TableMetadata]
	cursor *Cursor[records.TableMetadata]
}

var _ Extractor[records.TableMetadata] = (*MetadataExtractor)(nil)

func NewMetadataExtractor(lister DatasetLister, registry *dataset.Registry, loader TableLoader, cfg Config) *MetadataExtractor {
	e := &MetadataExtractor{
		cfg:    cfg.withDefaults(),
		loader: loader,
	}
	e.walker = &datasetWalker[records.TableMetadata]{
		lister:   lister,
		registry: registry,
		bucket:   e.cfg.Bucket,
		version:  e.cfg.Version,
		scope:    MetadataScope,
		produce:  e.produce,
	}
	e.cursor = NewCursor(e.walker.init)
	return e
}

func (e *MetadataExtractor) Extract(ctx context.Context) (records.TableMetadata, error) {
	return e.cursor.Next(ctx)
}

func (e *MetadataExtractor) Scope() string { return MetadataScope }

// Failures returns the datasets skipped so far, as a *multierror.Error.
func (e *MetadataExtractor) Failures() error { return e.walker.Failures() }

func (e *MetadataExtractor) Close() error {
	e.cursor.Stop()
	e.walker.reset()
	return nil
}

func (e *MetadataExtractor) produce(ctx context.Context, path string, id dataset.Identity) ([]records.TableMetadata, error) {
	t, err := e.loader.Load(ctx, e.cfg.Bucket, path, id.Format)
	if err != nil {
		return nil, fmt.Errorf("load %s table: %w", id.Format.Name, err)
	}
	defer func() { _ = t.Close() }()

	cols := t.Columns()
	md := records.TableMetadata{
		Database: e.cfg.Database,
		Cluster:  e.cfg.Cluster,
		Schema:   e.cfg.Schema,
		Name:     id.Basename,
		Columns:  make([]records.ColumnMetadata, 0, len(cols)),
		IsView:   true,
		Tags:     slices.Clone(e.cfg.Tags),
	}
	for i, c := range cols {
		md.Columns = append(md.Columns, records.ColumnMetadata{
			Name:      c.Name,
			Type:      c.Type,
			SortOrder: i,
		})
	}
	return []records.TableMetadata{md}, nil
}
