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
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/cardinalhq/lakescanner/catalogdb"
	"github.com/cardinalhq/lakescanner/catalogdb/migrations"
	"github.com/cardinalhq/lakescanner/config"
	"github.com/cardinalhq/lakescanner/internal/awsclient"
	"github.com/cardinalhq/lakescanner/internal/awsclient/s3helper"
	"github.com/cardinalhq/lakescanner/internal/catalog"
	"github.com/cardinalhq/lakescanner/internal/dataset"
	"github.com/cardinalhq/lakescanner/internal/duckdbx"
	"github.com/cardinalhq/lakescanner/internal/extract"
	"github.com/cardinalhq/lakescanner/internal/sink"
	"github.com/cardinalhq/lakescanner/internal/sink/graphcsv"
	"github.com/cardinalhq/lakescanner/internal/sink/kafkasink"
	"github.com/cardinalhq/lakescanner/internal/sink/parquetsink"
	"github.com/cardinalhq/lakescanner/internal/sink/pgsink"
	"github.com/cardinalhq/lakescanner/internal/stats"
	"github.com/cardinalhq/lakescanner/internal/tableload"
)

// scanner bundles the clients one run needs.
type scanner struct {
	cfg      *config.Config
	registry *dataset.Registry
	catalog  *catalog.Scanner
	store    *s3helper.Store
	db       *duckdbx.DB
	loader   tableload.Loader
	tmpDir   string
}

func loadConfig(c *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(c.Flags())
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func objectStore(cfg config.ObjectStoreConfig) awsclient.Store {
	return awsclient.Store{
		Endpoint:    cfg.Endpoint,
		Region:      cfg.Region,
		Role:        cfg.Role,
		PathStyle:   cfg.PathStyle,
		InsecureTLS: cfg.InsecureTLS,
		GCSInterop:  cfg.GCSInterop,
	}
}

func newS3Client(ctx context.Context, cfg config.ObjectStoreConfig) (*awsclient.S3Client, error) {
	mgr, err := awsclient.NewManager(ctx,
		awsclient.WithAssumeRoleSessionName("lakescanner"),
		awsclient.WithStaticCredentials(cfg.AccessKey, cfg.SecretKey),
		awsclient.WithDefaultRegion(cfg.Region),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS manager: %w", err)
	}
	client, err := mgr.GetS3ForStore(ctx, objectStore(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to get S3 client: %w", err)
	}
	return client, nil
}

// newScanner connects to the object store and opens the analytics engine.
func newScanner(ctx context.Context, cfg *config.Config) (*scanner, error) {
	client, err := newS3Client(ctx, cfg.ObjectStore)
	if err != nil {
		return nil, err
	}

	registry := dataset.DefaultRegistry()
	store := s3helper.NewStore(client)

	urlStyle := "vhost"
	if cfg.ObjectStore.PathStyle {
		urlStyle = "path"
	}
	db, err := duckdbx.Open("",
		duckdbx.WithMemoryLimitMB(cfg.DuckDB.MemoryLimit),
		duckdbx.WithThreads(cfg.DuckDB.Threads),
		duckdbx.WithTempDirectory(cfg.DuckDB.SpillDirectory()),
		duckdbx.WithS3Secret(duckdbx.S3Secret{
			Endpoint: cfg.ObjectStore.Endpoint,
			Region:   cfg.ObjectStore.Region,
			KeyID:    cfg.ObjectStore.AccessKey,
			Secret:   cfg.ObjectStore.SecretKey,
			URLStyle: urlStyle,
			Scope:    "s3://" + cfg.ObjectStore.Bucket,
		}),
		duckdbx.WithMetrics(30 * time.Second),
		duckdbx.WithMetricsContext(ctx),
		duckdbx.WithName("lakescanner"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to open duckdb: %w", err)
	}
	db.SetMaxOpenConns(cfg.DuckDB.ConnLimit())

	tmpDir, err := os.MkdirTemp("", "lakescanner-*")
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	duck := tableload.NewDuckDBLoader(db)
	return &scanner{
		cfg:      cfg,
		registry: registry,
		catalog:  catalog.NewScanner(client.Client, registry, catalog.WithPageSize(cfg.ObjectStore.PageSize)),
		store:    store,
		db:       db,
		loader: tableload.NewMultiLoader(map[string]tableload.Loader{
			dataset.CSV.Name: duck,
			dataset.ORC.Name: tableload.NewORCLoader(store, tmpDir),
		}),
		tmpDir: tmpDir,
	}, nil
}

func (s *scanner) extractConfig() extract.Config {
	return extract.Config{
		Bucket:   s.cfg.ObjectStore.Bucket,
		Version:  s.cfg.ObjectStore.Version,
		Database: s.cfg.Catalog.Database,
		Schema:   s.cfg.Catalog.Schema,
		Tags:     s.cfg.Catalog.Tags,
	}
}

func (s *scanner) statsEngine() (*stats.Engine, error) {
	return stats.NewEngine(stats.WithRelativeAccuracy(s.cfg.Stats.RelativeAccuracy))
}

func (s *scanner) Close() error {
	_ = os.RemoveAll(s.tmpDir)
	return s.db.Close()
}

// sinkSet is the loaders and publishers enabled for one run.
type sinkSet struct {
	loaders    []sink.Loader
	publishers sink.Publishers
	names      []string
	pool       *pgxpool.Pool
}

func (s *sinkSet) loader() sink.Loader { return sink.NewFanout(s.loaders...) }

func (s *sinkSet) close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// buildSinks opens every sink the configuration enables. Local file sinks
// write under a per-run directory and, when a publish bucket is set, are
// uploaded once the run completes.
func buildSinks(ctx context.Context, cfg config.SinkConfig, runID string, uploader sink.Uploader) (*sinkSet, error) {
	set := &sinkSet{}
	fail := func(err error) (*sinkSet, error) {
		for _, l := range set.loaders {
			_ = l.Close()
		}
		set.close()
		return nil, err
	}

	publishDir := func(dir, kind string) {
		if cfg.Publish.Bucket == "" || uploader == nil {
			return
		}
		set.publishers = append(set.publishers, &sink.DirPublisher{
			Uploader: uploader,
			Dir:      dir,
			Bucket:   cfg.Publish.Bucket,
			Prefix:   filepath.ToSlash(filepath.Join(cfg.Publish.Prefix, kind)),
			Tag:      runID,
		})
	}

	if cfg.GraphCSV.Dir != "" {
		dir := filepath.Join(cfg.GraphCSV.Dir, runID)
		l, err := graphcsv.New(dir)
		if err != nil {
			return fail(fmt.Errorf("graphcsv sink: %w", err))
		}
		set.loaders = append(set.loaders, l)
		set.names = append(set.names, "graphcsv")
		publishDir(dir, "graph")
	}

	if cfg.Parquet.Dir != "" {
		dir := filepath.Join(cfg.Parquet.Dir, runID)
		l, err := parquetsink.New(dir, parquetsink.WithBatchSize(cfg.Parquet.BatchSize))
		if err != nil {
			return fail(fmt.Errorf("parquet sink: %w", err))
		}
		set.loaders = append(set.loaders, l)
		set.names = append(set.names, "parquet")
		publishDir(dir, "parquet")
	}

	if cfg.Postgres.Enabled || cfg.Postgres.URL != "" {
		dsn, err := catalogDSN(cfg.Postgres.URL)
		if err != nil {
			return fail(err)
		}
		pool, err := catalogdb.NewConnectionPool(ctx, dsn)
		if err != nil {
			return fail(fmt.Errorf("postgres sink: %w", err))
		}
		set.pool = pool
		if err := migrations.WaitForVersion(ctx, pool, migrations.DefaultCheckOptions()); err != nil {
			return fail(fmt.Errorf("postgres sink: %w", err))
		}
		set.loaders = append(set.loaders, pgsink.New(pool,
			pgsink.WithBatchSize(cfg.Postgres.BatchSize),
			pgsink.WithRunID(runID)))
		set.names = append(set.names, "postgres")
	}

	if len(cfg.Kafka.Brokers) > 0 {
		kcfg := kafkasink.Config{
			Brokers:      cfg.Kafka.Brokers,
			Topic:        cfg.Kafka.Topic,
			BatchSize:    cfg.Kafka.BatchSize,
			BatchTimeout: cfg.Kafka.BatchTimeout,
		}
		auth := kafkasink.Auth{
			SASLEnabled:   cfg.Kafka.SASLEnabled,
			SASLMechanism: cfg.Kafka.SASLMechanism,
			Username:      cfg.Kafka.SASLUsername,
			Password:      cfg.Kafka.SASLPassword,
			TLSEnabled:    cfg.Kafka.TLSEnabled,
			TLSSkipVerify: cfg.Kafka.TLSSkipVerify,
		}
		if err := auth.Apply(&kcfg); err != nil {
			return fail(err)
		}
		set.loaders = append(set.loaders, kafkasink.New(kafkasink.NewWriter(kcfg), cfg.Kafka.BatchSize))
		set.names = append(set.names, "kafka")
	}

	if len(set.loaders) == 0 {
		return fail(fmt.Errorf("no sink configured: set sink.graphcsv.dir, sink.parquet.dir, sink.postgres.url or sink.kafka.brokers"))
	}
	slog.Info("Sinks configured", slog.Any("sinks", set.names), slog.Int("publishers", len(set.publishers)))
	return set, nil
}
