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

package tableload

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardinalhq/lakescanner/internal/awsclient/s3helper"
	"github.com/cardinalhq/lakescanner/internal/dataset"
	"github.com/cardinalhq/lakescanner/internal/table"
)

type fakeFetcher struct {
	keys       []string
	listErr    error
	downloaded []string
	dir        string
	missing    map[string]bool
}

func (f *fakeFetcher) ListDataObjects(_ context.Context, _ string, prefix string) ([]string, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []string
	for _, k := range f.keys {
		if len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			out = append(out, k)
		}
	}
	return out, nil
}

func (f *fakeFetcher) Download(_ context.Context, dir, _ string, key string) (string, error) {
	if f.missing[key] {
		return "", fmt.Errorf("download %s: %w", key, s3helper.ErrObjectNotFound)
	}
	p := filepath.Join(dir, filepath.Base(key))
	if err := os.WriteFile(p, []byte(key), 0o644); err != nil {
		return "", err
	}
	f.downloaded = append(f.downloaded, p)
	return p, nil
}

// partDecoder serves canned rows keyed by the downloaded file's contents.
func partDecoder(parts map[string][][]any, cols map[string][]string) orcDecoder {
	return func(_ context.Context, path string, onSchema func([]string) error, onRow func([]any) error) error {
		b, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		key := string(b)
		if err := onSchema(cols[key]); err != nil {
			return err
		}
		for _, r := range parts[key] {
			if err := onRow(r); err != nil {
				return err
			}
		}
		return nil
	}
}

func TestORCLoaderMergesParts(t *testing.T) {
	ts := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	schema := []string{"id", "score", "name", "active", "seen", "empty", "mixed"}
	fetcher := &fakeFetcher{keys: []string{
		"v0/events.orc/part-0.orc",
		"v0/events.orc/part-1.orc",
	}}
	loader := NewORCLoader(fetcher, t.TempDir())
	loader.decode = partDecoder(
		map[string][][]any{
			"v0/events.orc/part-0.orc": {
				{int32(1), float32(0.5), "a", true, ts, nil, int64(1)},
			},
			"v0/events.orc/part-1.orc": {
				{int64(2), 1.5, []byte("b"), nil, nil, nil, "x"},
				{nil, nil, nil, false, ts.Add(time.Hour), nil, nil},
			},
		},
		map[string][]string{
			"v0/events.orc/part-0.orc": schema,
			"v0/events.orc/part-1.orc": schema,
		},
	)

	tbl, err := loader.Load(context.Background(), "warehouse", "v0/events.orc/", dataset.ORC)
	require.NoError(t, err)
	defer func() { _ = tbl.Close() }()

	assert.Equal(t, "events", tbl.Name())
	assert.Equal(t, []table.Column{
		{Name: "id", Type: "BIGINT"},
		{Name: "score", Type: "DOUBLE"},
		{Name: "name", Type: "VARCHAR"},
		{Name: "active", Type: "BOOLEAN"},
		{Name: "seen", Type: "TIMESTAMP"},
		{Name: "empty", Type: "VARCHAR"},
		{Name: "mixed", Type: "VARCHAR"},
	}, tbl.Columns())

	n, err := tbl.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	var names []string
	require.NoError(t, tbl.ScanString(context.Background(), "name", func(v string, valid bool) error {
		if valid {
			names = append(names, v)
		}
		return nil
	}))
	assert.Equal(t, []string{"a", "b"}, names)

	var mixed []string
	require.NoError(t, tbl.ScanString(context.Background(), "mixed", func(v string, valid bool) error {
		if valid {
			mixed = append(mixed, v)
		}
		return nil
	}))
	assert.Equal(t, []string{"1", "x"}, mixed)

	for _, p := range fetcher.downloaded {
		_, err := os.Stat(p)
		assert.True(t, os.IsNotExist(err), "downloaded part %s must be removed", p)
	}
}

func TestORCLoaderRejectsSchemaDrift(t *testing.T) {
	fetcher := &fakeFetcher{keys: []string{"v0/e.orc/a.orc", "v0/e.orc/b.orc"}}
	loader := NewORCLoader(fetcher, t.TempDir())
	loader.decode = partDecoder(
		map[string][][]any{},
		map[string][]string{
			"v0/e.orc/a.orc": {"id"},
			"v0/e.orc/b.orc": {"id", "extra"},
		},
	)

	_, err := loader.Load(context.Background(), "b", "v0/e.orc/", dataset.ORC)
	assert.ErrorContains(t, err, "has columns")
}

func TestORCLoaderNoParts(t *testing.T) {
	loader := NewORCLoader(&fakeFetcher{}, t.TempDir())
	_, err := loader.Load(context.Background(), "b", "v0/e.orc/", dataset.ORC)
	assert.ErrorContains(t, err, "no data objects")
}

func TestORCLoaderListError(t *testing.T) {
	denied := errors.New("denied")
	loader := NewORCLoader(&fakeFetcher{listErr: denied}, t.TempDir())
	_, err := loader.Load(context.Background(), "b", "v0/e.orc/", dataset.ORC)
	assert.ErrorIs(t, err, denied)
}

func TestORCLoaderSkipsVanishedParts(t *testing.T) {
	f := &fakeFetcher{
		keys:    []string{"v0/e.orc/p0", "v0/e.orc/p1"},
		missing: map[string]bool{"v0/e.orc/p0": true},
	}
	l := NewORCLoader(f, t.TempDir())
	l.decode = partDecoder(
		map[string][][]any{"v0/e.orc/p1": {{int64(1)}}},
		map[string][]string{"v0/e.orc/p1": {"id"}},
	)

	tbl, err := l.Load(context.Background(), "b", "v0/e.orc/", dataset.ORC)
	require.NoError(t, err)
	n, err := tbl.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	f.missing["v0/e.orc/p1"] = true
	_, err = l.Load(context.Background(), "b", "v0/e.orc/", dataset.ORC)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no data objects")
}
