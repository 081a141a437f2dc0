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
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/jackc/pgx/v5/pgxpool"
)

// LatestVersion is the highest migration version embedded in the binary.
func LatestVersion() (uint, error) {
	return latestVersion(migrationFiles)
}

func latestVersion(files fs.ReadDirFS) (uint, error) {
	entries, err := files.ReadDir(".")
	if err != nil {
		return 0, fmt.Errorf("failed to read migration directory: %w", err)
	}

	var maxVersion uint
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".up.sql") {
			continue
		}
		// "1760400000_initial.up.sql"
		prefix, _, _ := strings.Cut(name, "_")
		v, err := strconv.ParseUint(prefix, 10, 64)
		if err != nil {
			continue
		}
		maxVersion = max(maxVersion, uint(v))
	}
	if maxVersion == 0 {
		return 0, errors.New("no valid migration files found")
	}
	return maxVersion, nil
}

// CheckOptions controls WaitForVersion.
type CheckOptions struct {
	Timeout       time.Duration
	RetryInterval time.Duration
	AllowDirty    bool
}

func DefaultCheckOptions() CheckOptions {
	return CheckOptions{
		Timeout:       60 * time.Second,
		RetryInterval: 5 * time.Second,
	}
}

// WaitForVersion blocks until the database reports the latest embedded
// version, failing when it is newer, dirty, or still behind at the timeout.
func WaitForVersion(ctx context.Context, pool *pgxpool.Pool, opts CheckOptions) error {
	expected, err := LatestVersion()
	if err != nil {
		return err
	}

	deadline := time.Now().Add(opts.Timeout)
	ticker := time.NewTicker(opts.RetryInterval)
	defer ticker.Stop()

	for {
		current, dirty, err := currentVersion(pool)
		if err != nil {
			return fmt.Errorf("failed to get current migration version: %w", err)
		}
		if dirty && !opts.AllowDirty {
			return errors.New("catalog database migration is in dirty state, please fix before proceeding")
		}
		if current == expected {
			return nil
		}
		if current > expected {
			return fmt.Errorf("catalog database version %d is newer than expected version %d", current, expected)
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("timeout waiting for catalog migrations: current version %d, expected %d", current, expected)
		}

		slog.Info("Waiting for catalog migrations",
			slog.Uint64("current_version", uint64(current)),
			slog.Uint64("expected_version", uint64(expected)))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func currentVersion(pool *pgxpool.Pool) (uint, bool, error) {
	m, cleanup, err := newMigrate(pool)
	if err != nil {
		return 0, false, err
	}
	defer cleanup()

	v, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return v, dirty, err
}
