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

package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/cardinalhq/lakescanner/catalogdb"
	"github.com/cardinalhq/lakescanner/catalogdb/migrations"
	"github.com/cardinalhq/lakescanner/config"
)

func init() {
	rootCmd.AddCommand(migrateCmd)
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run catalog database migrations",
	Long:  "Create or upgrade the catalog tables the postgres sink writes to.",
	RunE: func(c *cobra.Command, _ []string) error {
		cfg, err := config.Load(c.Flags())
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		return migrateCatalog(c.Context(), cfg.Sink.Postgres.URL)
	},
}

func catalogDSN(url string) (string, error) {
	if url != "" {
		return url, nil
	}
	return catalogdb.URLFromEnv()
}

func migrateCatalog(parent context.Context, url string) error {
	if parent == nil {
		parent = context.Background()
	}
	dsn, err := catalogDSN(url)
	if err != nil {
		if errors.Is(err, catalogdb.ErrDatabaseNotConfigured) {
			slog.Info("Catalog database not configured, skipping migration")
			return nil
		}
		return err
	}

	ctx, cancel := context.WithTimeout(parent, 5*time.Minute)
	defer cancel()
	pool, err := catalogdb.NewConnectionPool(ctx, dsn)
	if err != nil {
		return err
	}
	defer pool.Close()

	target, err := migrations.LatestVersion()
	if err != nil {
		return err
	}
	slog.Info("Running catalog migrations", slog.Uint64("targetVersion", uint64(target)))
	if err := migrations.RunMigrationsUp(ctx, pool); err != nil {
		return fmt.Errorf("failed to migrate catalog database: %w", err)
	}
	slog.Info("Catalog migrations completed successfully")
	return nil
}
