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

package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardinalhq/lakescanner/internal/dataset"
)

// fakeLister serves pages of common prefixes chained by continuation token.
type fakeLister struct {
	pages  [][]string
	calls  []*s3.ListObjectsV2Input
	failAt int
	err    error
}

func (f *fakeLister) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.calls = append(f.calls, in)
	idx := 0
	if in.ContinuationToken != nil {
		idx = int(aws.ToString(in.ContinuationToken)[0] - '0')
	}
	if f.err != nil && idx == f.failAt {
		return nil, f.err
	}

	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(false)}
	for _, p := range f.pages[idx] {
		out.CommonPrefixes = append(out.CommonPrefixes, types.CommonPrefix{Prefix: aws.String(p)})
	}
	if idx+1 < len(f.pages) {
		out.IsTruncated = aws.Bool(true)
		out.NextContinuationToken = aws.String(string(rune('0' + idx + 1)))
	}
	return out, nil
}

func newTestScanner(l Lister) *Scanner {
	return NewScanner(l, dataset.DefaultRegistry())
}

func TestListDatasetsFiltersHiddenAndUnknown(t *testing.T) {
	l := &fakeLister{pages: [][]string{{"v0/orders.csv/", "v0/.tmp/", "v0/legacy.parquet/"}}}

	got, err := newTestScanner(l).ListDatasets(context.Background(), "warehouse", "v0")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"v0/orders.csv/"}, got.ToSlice())

	require.Len(t, l.calls, 1)
	assert.Equal(t, "warehouse", aws.ToString(l.calls[0].Bucket))
	assert.Equal(t, "/", aws.ToString(l.calls[0].Delimiter))
	assert.Equal(t, "v0/", aws.ToString(l.calls[0].Prefix))
}

func TestListDatasetsFollowsPagination(t *testing.T) {
	l := &fakeLister{pages: [][]string{
		{"v0/a.csv/", "v0/b.orc/"},
		{"v0/b.orc/", "v0/c.csv/", "v0/readme.txt/"},
		{"v0/a.csv/", "v0/d.orc/"},
	}}

	got, err := newTestScanner(l).ListDatasets(context.Background(), "warehouse", "v0/")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"v0/a.csv/", "v0/b.orc/", "v0/c.csv/", "v0/d.orc/"}, got.ToSlice())
	assert.Len(t, l.calls, 3)
	assert.Equal(t, "2", aws.ToString(l.calls[2].ContinuationToken))
}

func TestListDatasetsUniqueBasenames(t *testing.T) {
	l := &fakeLister{pages: [][]string{
		{"v0/orders.csv/"},
		{"v0/orders.csv/", "v0/orders.csv//"},
	}}

	ds, err := newTestScanner(l).ResolveAll(context.Background(), "warehouse", "v0")
	require.NoError(t, err)
	require.Len(t, ds, 1)
	assert.Equal(t, "v0/orders.csv/", ds[0].Path)
	assert.Equal(t, "orders", ds[0].Identity.Basename)
	assert.Equal(t, dataset.CSV.Name, ds[0].Identity.Format.Name)
}

func TestListDatasetsPropagatesListError(t *testing.T) {
	denied := errors.New("access denied")
	l := &fakeLister{
		pages:  [][]string{{"v0/a.csv/"}, {"v0/b.csv/"}},
		failAt: 1,
		err:    denied,
	}

	_, err := newTestScanner(l).ListDatasets(context.Background(), "warehouse", "v0")
	require.Error(t, err)
	assert.ErrorIs(t, err, denied)
	assert.Len(t, l.calls, 2, "no retry")
}

func TestResolveAllSorted(t *testing.T) {
	l := &fakeLister{pages: [][]string{{"v1/zeta.orc/", "v1/alpha.csv/"}}}

	ds, err := NewScanner(l, dataset.DefaultRegistry(), WithPageSize(2)).ResolveAll(context.Background(), "b", "v1")
	require.NoError(t, err)
	require.Len(t, ds, 2)
	assert.Equal(t, "v1/alpha.csv/", ds[0].Path)
	assert.Equal(t, "zeta", ds[1].Identity.Basename)
	assert.Equal(t, "orc", ds[1].Identity.Format.Name)
	assert.Equal(t, int32(2), aws.ToInt32(l.calls[0].MaxKeys))
}

func TestListDatasetsEmptyBucket(t *testing.T) {
	l := &fakeLister{pages: [][]string{{}}}
	got, err := newTestScanner(l).ListDatasets(context.Background(), "b", "v0")
	require.NoError(t, err)
	assert.Equal(t, 0, got.Cardinality())
}
