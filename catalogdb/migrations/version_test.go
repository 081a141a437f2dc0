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

package migrations

import (
	"strings"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLatestVersionOfEmbeddedFiles(t *testing.T) {
	v, err := LatestVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(1760500000), v)
}

func TestEveryUpMigrationHasADown(t *testing.T) {
	entries, err := migrationFiles.ReadDir(".")
	require.NoError(t, err)

	names := map[string]bool{}
	for _, e := range entries {
		names[e.Name()] = true
	}
	for name := range names {
		if base, ok := strings.CutSuffix(name, ".up.sql"); ok {
			assert.True(t, names[base+".down.sql"], "missing down migration for %s", name)
		}
	}
}

func TestLatestVersion(t *testing.T) {
	files := fstest.MapFS{
		"10_a.up.sql":    {},
		"10_a.down.sql":  {},
		"200_b.up.sql":   {},
		"junk_c.up.sql":  {},
		"999_d.down.sql": {},
	}
	v, err := latestVersion(files)
	require.NoError(t, err)
	assert.Equal(t, uint(200), v)

	_, err = latestVersion(fstest.MapFS{"README.md": {}})
	assert.Error(t, err)
}
