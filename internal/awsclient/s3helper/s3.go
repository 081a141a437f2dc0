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

// Package s3helper moves whole objects between S3 and local files.
package s3helper

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/cardinalhq/lakescanner/internal/awsclient"
)

// ErrObjectNotFound is returned by Download when the key does not exist.
var ErrObjectNotFound = errors.New("object not found")

func S3ErrorIs404(err error) bool {
	var noKeyErr *types.NoSuchKey
	return errors.As(err, &noKeyErr)
}

// IsDataObject reports whether key names a data part rather than a marker
// such as _SUCCESS, a hidden file or a directory placeholder.
func IsDataObject(key string) bool {
	if strings.HasSuffix(key, "/") {
		return false
	}
	base := path.Base(key)
	return base != "" && !strings.HasPrefix(base, "_") && !strings.HasPrefix(base, ".")
}

// Store is an S3 bucket accessor with tracing.
type Store struct {
	client *awsclient.S3Client
}

func NewStore(client *awsclient.S3Client) *Store {
	return &Store{client: client}
}

// ListDataObjects returns the data object keys under prefix, in listing
// order, following every continuation token.
func (s *Store) ListDataObjects(ctx context.Context, bucket, prefix string) ([]string, error) {
	ctx, span := s.client.Tracer.Start(ctx, "s3helper.ListDataObjects",
		trace.WithAttributes(
			attribute.String("bucketID", bucket),
			attribute.String("prefix", prefix),
		),
	)
	defer span.End()

	var keys []string
	paginator := s3.NewListObjectsV2Paginator(s.client.Client, &s3.ListObjectsV2Input{
		Bucket: aws.String(bucket),
		Prefix: aws.String(prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list %s/%s: %w", bucket, prefix, err)
		}
		for _, obj := range page.Contents {
			if key := aws.ToString(obj.Key); IsDataObject(key) {
				keys = append(keys, key)
			}
		}
	}
	return keys, nil
}

// Download copies an object into a new temp file under dir and returns its
// name. The caller removes the file.
func (s *Store) Download(ctx context.Context, dir, bucket, key string) (string, error) {
	downloader := manager.NewDownloader(s.client.Client)

	f, err := os.CreateTemp(dir, "s3-*"+path.Ext(key))
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}

	ctx, span := s.client.Tracer.Start(ctx, "s3helper.Download",
		trace.WithAttributes(
			attribute.String("bucketID", bucket),
			attribute.String("objectID", key),
		),
	)
	defer span.End()

	_, err = downloader.Download(ctx, f, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		if S3ErrorIs404(err) {
			return "", fmt.Errorf("download %s/%s: %w", bucket, key, ErrObjectNotFound)
		}
		return "", fmt.Errorf("download %s/%s: %w", bucket, key, err)
	}

	if err := f.Close(); err != nil {
		_ = os.Remove(f.Name())
		return "", fmt.Errorf("close %s: %w", f.Name(), err)
	}
	return f.Name(), nil
}

// Upload writes a local file to bucket/key.
func (s *Store) Upload(ctx context.Context, bucket, key, sourceFilename, contentType string) error {
	uploader := manager.NewUploader(s.client.Client)
	file, err := os.Open(sourceFilename)
	if err != nil {
		return fmt.Errorf("failed to open file %s: %w", sourceFilename, err)
	}
	defer func() { _ = file.Close() }()

	ctx, span := s.client.Tracer.Start(ctx, "s3helper.Upload",
		trace.WithAttributes(
			attribute.String("bucketID", bucket),
			attribute.String("objectID", key),
		),
	)
	defer span.End()

	_, err = uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		Body:        file,
		ContentType: aws.String(contentType),
		Metadata: map[string]string{
			"writer": "lakescanner",
		},
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s/%s: %w", bucket, key, err)
	}
	return nil
}
