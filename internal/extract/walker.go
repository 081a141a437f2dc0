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
	"io"
	"log/slog"
	"slices"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/hashicorp/go-multierror"
	"go.opentelemetry.io/otel/attribute"
	otelmetric "go.opentelemetry.io/otel/metric"

	"github.com/cardinalhq/lakescanner/internal/dataset"
	"github.com/cardinalhq/lakescanner/internal/logctx"
	"github.com/cardinalhq/lakescanner/internal/table"
)

const (
	DefaultDatabase = "minio"
	DefaultSchema   = "minio"
)

// DefaultTags are attached to every table when Config.Tags is nil.
var DefaultTags = []string{"minio", "raw"}

// DatasetLister discovers dataset paths. *catalog.Scanner satisfies it.
type DatasetLister interface {
	ListDatasets(ctx context.Context, bucket, version string) (mapset.Set[string], error)
}

// TableLoader materializes a dataset as a table. The caller closes the
// returned table.
type TableLoader interface {
	Load(ctx context.Context, bucket, path string, f dataset.Format) (table.Table, error)
}

// Config names the bucket to scan and how its tables are labeled.
type Config struct {
	Bucket  string
	Version string

	Database string
	Cluster  string
	Schema   string
	Tags     []string
}

func (c Config) withDefaults() Config {
	if c.Database == "" {
		c.Database = DefaultDatabase
	}
	if c.Schema == "" {
		c.Schema = DefaultSchema
	}
	if c.Cluster == "" {
		c.Cluster = c.Bucket
	}
	if c.Tags == nil {
		c.Tags = slices.Clone(DefaultTags)
	}
	return c
}

// DatasetError records a dataset that could not be processed.
type DatasetError struct {
	Bucket string
	Path   string
	Err    error
}

func (e *DatasetError) Error() string {
	return fmt.Sprintf("dataset s3://%s/%s: %v", e.Bucket, e.Path, e.Err)
}

func (e *DatasetError) Unwrap() error { return e.Err }

// produceFunc derives the records of one resolved dataset.
type produceFunc[T any] func(ctx context.Context, path string, id dataset.Identity) ([]T, error)

// datasetWalker is the Source behind both extractors. It lists the bucket
// once, then visits one dataset at a time, holding only that dataset's
// records in memory.
type datasetWalker[T any] struct {
	lister   DatasetLister
	registry *dataset.Registry
	bucket   string
	version  string
	scope    string
	produce  produceFunc[T]

	paths    []string
	buf      []T
	failures *multierror.Error
}

func (w *datasetWalker[T]) init(ctx context.Context) (Source[T], error) {
	set, err := w.lister.ListDatasets(ctx, w.bucket, w.version)
	if err != nil {
		return nil, err
	}
	w.paths = set.ToSlice()
	slices.Sort(w.paths)
	logctx.FromContext(ctx).Info("Discovered datasets",
		slog.String("scope", w.scope),
		slog.String("bucket", w.bucket),
		slog.Int("count", len(w.paths)))
	return w, nil
}

func (w *datasetWalker[T]) Next(ctx context.Context) (T, error) {
	var zero T
	for {
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		if len(w.buf) > 0 {
			v := w.buf[0]
			w.buf = w.buf[1:]
			return v, nil
		}
		if len(w.paths) == 0 {
			return zero, io.EOF
		}

		path := w.paths[0]
		w.paths = w.paths[1:]
		recs, err := w.visit(ctx, path)
		if err != nil {
			if ctx.Err() != nil {
				return zero, err
			}
			w.fail(ctx, path, err)
			continue
		}
		w.buf = recs
	}
}

func (w *datasetWalker[T]) visit(ctx context.Context, path string) ([]T, error) {
	ctx = logctx.WithDataset(ctx, w.bucket, path)
	id, err := w.registry.Resolve(path)
	if err != nil {
		return nil, err
	}
	recs, err := w.produce(ctx, path, id)
	if err != nil {
		return nil, err
	}
	datasetsProcessed.Add(ctx, 1, otelmetric.WithAttributes(attribute.String("scope", w.scope)))
	logctx.FromContext(ctx).Debug("Extracted dataset", slog.Int("records", len(recs)))
	return recs, nil
}

func (w *datasetWalker[T]) fail(ctx context.Context, path string, err error) {
	datasetsFailed.Add(ctx, 1, otelmetric.WithAttributes(attribute.String("scope", w.scope)))
	logctx.FromContext(ctx).Error("Skipping dataset",
		slog.String("scope", w.scope),
		slog.String("bucket", w.bucket),
		slog.String("dataset", path),
		slog.Any("error", err))
	w.failures = multierror.Append(w.failures, &DatasetError{Bucket: w.bucket, Path: path, Err: err})
}

// Failures returns the per-dataset errors seen so far, or nil.
func (w *datasetWalker[T]) Failures() error {
	return w.failures.ErrorOrNil()
}

func (w *datasetWalker[T]) reset() {
	w.paths = nil
	w.buf = nil
}
