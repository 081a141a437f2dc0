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


package idgen

import (
	"sort"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeBase36(t *testing.T) {
	assert.Equal(t, strings.Repeat("0", runIDWidth), EncodeBase36(uuid.Nil))
	assert.Equal(t, "0000000000000000000000074",
		EncodeBase36(uuid.MustParse("00000000-0000-0000-0000-000000000100")))
	assert.Equal(t, "f5lxx1zz5pnorynqglhzmsp33", EncodeBase36(uuid.Max))
	assert.Equal(t, "12vqjrnxk8whv3i8qi6qgrlz5",
		EncodeBase36(uuid.MustParse("123e4567-e89b-12d3-a456-426614174001")))
}

func TestEncodeBase36PreservesOrder(t *testing.T) {
	ids := []uuid.UUID{
		uuid.MustParse("00000000-0000-0000-0000-0000000000ff"),
		uuid.MustParse("00000000-0000-0000-0001-000000000000"),
		uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8"),
		uuid.Max,
	}
	enc := make([]string, len(ids))
	for i, id := range ids {
		enc[i] = EncodeBase36(id)
	}
	assert.True(t, sort.StringsAreSorted(enc), "%v", enc)
}

func TestNewRunID(t *testing.T) {
	prev := NewRunID()
	require.Len(t, prev, runIDWidth)
	for range 50 {
		next := NewRunID()
		require.Len(t, next, runIDWidth)
		assert.Equal(t, strings.ToLower(next), next)
		assert.Less(t, prev, next, "run ids are time ordered")
		prev = next
	}
}
