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

// Package catalog discovers datasets in an object store bucket.
package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	mapset "github.com/deckarep/golang-set/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/cardinalhq/lakescanner/internal/dataset"
	"github.com/cardinalhq/lakescanner/internal/logctx"
)

// Lister is the subset of the S3 API the scanner needs. *s3.Client
// satisfies it.
type Lister interface {
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// Dataset is a discovered dataset path with its resolved identity.
type Dataset struct {
	Path     string
	Identity dataset.Identity
}

type Scanner struct {
	lister   Lister
	registry *dataset.Registry
	pageSize int32
	tracer   trace.Tracer
}

type Option func(*Scanner)

// WithPageSize caps the number of keys requested per listing call.
func WithPageSize(n int32) Option {
	return func(s *Scanner) { s.pageSize = n }
}

func NewScanner(lister Lister, registry *dataset.Registry, opts ...Option) *Scanner {
	s := &Scanner{
		lister:   lister,
		registry: registry,
		tracer:   otel.Tracer("github.com/cardinalhq/lakescanner/internal/catalog"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// versionRoot returns the listing prefix for a version, always ending in "/".
func versionRoot(version string) string {
	version = strings.Trim(version, "/")
	if version == "" {
		return ""
	}
	return version + "/"
}

// ListDatasets returns the dataset paths one level below version in bucket.
// Every listing page is consumed before returning. Paths are normalized to
// "<version>/<name>/" so a prefix repeated across pages collapses to one
// entry.
func (s *Scanner) ListDatasets(ctx context.Context, bucket, version string) (mapset.Set[string], error) {
	root := versionRoot(version)
	ctx, span := s.tracer.Start(ctx, "catalog.ListDatasets",
		trace.WithAttributes(
			attribute.String("bucket", bucket),
			attribute.String("prefix", root),
		),
	)
	defer span.End()

	logger := logctx.FromContext(ctx)
	input := &s3.ListObjectsV2Input{
		Bucket:    aws.String(bucket),
		Delimiter: aws.String("/"),
		Prefix:    aws.String(root),
	}
	if s.pageSize > 0 {
		input.MaxKeys = aws.Int32(s.pageSize)
	}

	bucketAttr := otelmetric.WithAttributes(attribute.String("bucket", bucket))
	found := mapset.NewThreadUnsafeSet[string]()
	paginator := s3.NewListObjectsV2Paginator(s.lister, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "list failed")
			return nil, fmt.Errorf("list s3://%s/%s: %w", bucket, root, err)
		}
		pagesListed.Add(ctx, 1, bucketAttr)

		for _, cp := range page.CommonPrefixes {
			prefix := aws.ToString(cp.Prefix)
			name, ok := s.registry.PathToDatasetName(prefix)
			if !ok {
				prefixesSkipped.Add(ctx, 1, bucketAttr)
				logger.Debug("Skipping non-dataset prefix",
					slog.String("bucket", bucket),
					slog.String("prefix", prefix))
				continue
			}
			if found.Add(root + name + "/") {
				prefixesAccepted.Add(ctx, 1, bucketAttr)
			}
		}
	}

	span.SetAttributes(attribute.Int("datasets", found.Cardinality()))
	return found, nil
}

// ResolveAll lists the datasets under version and resolves each one,
// returning them sorted by path.
func (s *Scanner) ResolveAll(ctx context.Context, bucket, version string) ([]Dataset, error) {
	paths, err := s.ListDatasets(ctx, bucket, version)
	if err != nil {
		return nil, err
	}
	sorted := paths.ToSlice()
	slices.Sort(sorted)

	out := make([]Dataset, 0, len(sorted))
	for _, p := range sorted {
		id, err := s.registry.Resolve(p)
		if err != nil {
			return nil, err
		}
		out = append(out, Dataset{Path: p, Identity: id})
	}
	return out, nil
}
