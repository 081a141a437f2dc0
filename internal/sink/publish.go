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

package sink

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"path/filepath"
	"strings"

	"github.com/cardinalhq/lakescanner/internal/logctx"
)

// Uploader copies a local file to an object store. *s3helper.Store
// satisfies it.
type Uploader interface {
	Upload(ctx context.Context, bucket, key, sourceFilename, contentType string) error
}

// DirPublisher uploads every regular file under Dir to
// s3://Bucket/Prefix/Tag/<relative path>.
type DirPublisher struct {
	Uploader Uploader
	Dir      string
	Bucket   string
	Prefix   string
	// Tag separates runs; usually a run id.
	Tag string
}

func (p *DirPublisher) Publish(ctx context.Context) error {
	base := path.Join(strings.Trim(p.Prefix, "/"), p.Tag)
	n := 0
	err := filepath.WalkDir(p.Dir, func(local string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		rel, err := filepath.Rel(p.Dir, local)
		if err != nil {
			return err
		}
		key := path.Join(base, filepath.ToSlash(rel))
		if err := p.Uploader.Upload(ctx, p.Bucket, key, local, contentType(local)); err != nil {
			return fmt.Errorf("upload %s: %w", local, err)
		}
		n++
		return nil
	})
	if err != nil {
		return err
	}
	logctx.FromContext(ctx).Info("Published files",
		slog.String("bucket", p.Bucket),
		slog.String("prefix", base),
		slog.Int("files", n))
	return nil
}

func contentType(name string) string {
	switch filepath.Ext(name) {
	case ".csv":
		return "text/csv"
	case ".parquet":
		return "application/vnd.apache.parquet"
	case ".json":
		return "application/json"
	default:
		return "application/octet-stream"
	}
}
