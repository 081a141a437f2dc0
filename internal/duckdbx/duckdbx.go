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

// Package duckdbx wraps an in-process DuckDB database with per-connection
// setup: memory limits, extensions and object store credentials.
package duckdbx

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/marcboeker/go-duckdb/v2"
)

type option func(*Config)

type Config struct {
	MemoryLimitMB int64
	Threads       int
	TempDirectory string
	Extensions    []ExtensionConfig
	S3Secret      *S3Secret
	Metrics       bool
	MetricsPeriod time.Duration
	InstanceName  string

	pollerContext context.Context
}

type ExtensionConfig struct {
	Name string
}

// WithMemoryLimitMB sets a memory limit for DuckDB in megabytes.
func WithMemoryLimitMB(limit int64) option {
	return func(c *Config) {
		c.MemoryLimitMB = limit
	}
}

// WithThreads caps the worker threads DuckDB uses per query.
func WithThreads(n int) option {
	return func(c *Config) {
		c.Threads = n
	}
}

// WithTempDirectory sets where DuckDB spills when over the memory limit.
func WithTempDirectory(dir string) option {
	return func(c *Config) {
		c.TempDirectory = dir
	}
}

// WithExtension specifies a DuckDB extension to install and load on connection setup.
// When LAKESCANNER_EXTENSIONS_PATH is set, extensions are loaded from
// pre-installed files only; otherwise they may be downloaded.
func WithExtension(ext string) option {
	return func(c *Config) {
		for _, existing := range c.Extensions {
			if existing.Name == ext {
				return
			}
		}
		c.Extensions = append(c.Extensions, ExtensionConfig{Name: ext})
	}
}

// WithoutExtension removes an extension from the list of extensions to load.
// Local-file databases use it to skip the default httpfs.
func WithoutExtension(ext string) option {
	return func(c *Config) {
		for i, existing := range c.Extensions {
			if existing.Name == ext {
				c.Extensions = append(c.Extensions[:i], c.Extensions[i+1:]...)
				return
			}
		}
	}
}

// WithS3Secret installs an S3 secret on every connection so read_csv and
// friends can reach s3:// URLs.
func WithS3Secret(s S3Secret) option {
	return func(c *Config) {
		c.S3Secret = &s
	}
}

// WithMetrics enables periodic polling of DuckDB memory metrics.
func WithMetrics(period time.Duration) option {
	return func(c *Config) {
		c.Metrics = true
		c.MetricsPeriod = period
	}
}

// WithMetricsContext sets the context used for metrics polling; cancel it
// to stop the poller.
func WithMetricsContext(ctx context.Context) option {
	return func(c *Config) {
		c.pollerContext = ctx
	}
}

// WithName labels the metrics of this instance.
func WithName(name string) option {
	return func(c *Config) {
		c.InstanceName = name
	}
}

type DB struct {
	db     *sql.DB
	config Config
}

// Open opens a DuckDB database. It is called once per process and the
// returned DB is shared. The httpfs extension is loaded by default.
func Open(dataSourceName string, opts ...option) (*DB, error) {
	db, err := sql.Open("duckdb", dataSourceName)
	if err != nil {
		return nil, err
	}

	config := Config{
		MetricsPeriod: 10 * time.Second,
		pollerContext: context.Background(),
		Extensions: []ExtensionConfig{
			{Name: "httpfs"},
		},
	}
	for _, opt := range opts {
		opt(&config)
	}

	d := &DB{db: db, config: config}
	if config.Metrics {
		go d.pollMemoryMetrics(config.pollerContext)
	}
	return d, nil
}

// Conn returns a new connection with setup already performed. The caller
// closes it.
func (d *DB) Conn(ctx context.Context) (*sql.Conn, error) {
	conn, err := d.db.Conn(ctx)
	if err != nil {
		return nil, err
	}

	if err := d.setupConn(ctx, conn); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return conn, nil
}

// WithConn runs fn on a fresh connection and closes it afterwards.
func (d *DB) WithConn(ctx context.Context, fn func(*sql.Conn) error) error {
	conn, err := d.Conn(ctx)
	if err != nil {
		return fmt.Errorf("failed to get duckdb connection: %w", err)
	}
	defer func() { _ = conn.Close() }()
	return fn(conn)
}

func (d *DB) setupConn(ctx context.Context, conn *sql.Conn) error {
	if _, err := conn.ExecContext(ctx, "PRAGMA enable_object_cache;"); err != nil {
		return fmt.Errorf("failed to enable object cache: %w", err)
	}

	if d.config.MemoryLimitMB > 0 {
		stmt := fmt.Sprintf("SET memory_limit='%dMB';", d.config.MemoryLimitMB)
		if _, err := conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to set memory limit: %w", err)
		}
	}
	if d.config.Threads > 0 {
		stmt := fmt.Sprintf("SET threads=%d;", d.config.Threads)
		if _, err := conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to set threads: %w", err)
		}
	}
	if d.config.TempDirectory != "" {
		stmt := fmt.Sprintf("SET temp_directory='%s';", escapeSingle(d.config.TempDirectory))
		if _, err := conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to set temp directory: %w", err)
		}
	}
	for _, ext := range d.config.Extensions {
		if err := d.loadExtension(ctx, conn, ext.Name); err != nil {
			return fmt.Errorf("failed to load extension '%s': %w", ext.Name, err)
		}
	}
	if d.config.S3Secret != nil {
		if _, err := conn.ExecContext(ctx, d.config.S3Secret.createSQL()); err != nil {
			return fmt.Errorf("failed to create s3 secret: %w", err)
		}
	}
	return nil
}

func (d *DB) SetMaxOpenConns(n int) {
	d.db.SetMaxOpenConns(n)
}

func (d *DB) Close() error {
	return d.db.Close()
}

func (d *DB) loadExtension(ctx context.Context, conn *sql.Conn, extensionName string) error {
	if basePath := os.Getenv("LAKESCANNER_EXTENSIONS_PATH"); basePath != "" {
		return loadAirGappedExtension(ctx, conn, extensionName, basePath)
	}
	return loadNetworkExtension(ctx, conn, extensionName)
}

// loadAirGappedExtension loads extensions from pre-installed files only.
func loadAirGappedExtension(ctx context.Context, conn *sql.Conn, extensionName, basePath string) error {
	specificEnvVar := fmt.Sprintf("LAKESCANNER_%s_EXTENSION", strings.ToUpper(extensionName))
	extensionPath := os.Getenv(specificEnvVar)
	if extensionPath == "" {
		extensionPath = filepath.Join(basePath, extensionName+".duckdb_extension")
	}

	if _, err := os.Stat(extensionPath); os.IsNotExist(err) {
		return fmt.Errorf("extension '%s' not found at %s (air-gapped mode)", extensionName, extensionPath)
	}

	stmt := fmt.Sprintf("LOAD '%s';", escapeSingle(extensionPath))
	if _, err := conn.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("failed to load extension from %s: %w", extensionPath, err)
	}
	return nil
}

func loadNetworkExtension(ctx context.Context, conn *sql.Conn, extensionName string) error {
	// Statically linked extensions load without an install.
	if _, err := conn.ExecContext(ctx, fmt.Sprintf("LOAD %s;", extensionName)); err == nil {
		return nil
	}
	if _, err := conn.ExecContext(ctx, fmt.Sprintf("INSTALL %s;", extensionName)); err != nil {
		return fmt.Errorf("failed to install extension: %w", err)
	}
	if _, err := conn.ExecContext(ctx, fmt.Sprintf("LOAD %s;", extensionName)); err != nil {
		return fmt.Errorf("failed to load extension after install: %w", err)
	}
	return nil
}

// Exec runs a statement on a fresh connection.
func (d *DB) Exec(ctx context.Context, query string, args ...any) error {
	return d.WithConn(ctx, func(conn *sql.Conn) error {
		if _, err := conn.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("exec failed: %w", err)
		}
		return nil
	})
}

// QueryEach runs query on a fresh connection and calls fn once per row.
// Iteration stops at the first error from fn.
func (d *DB) QueryEach(ctx context.Context, query string, fn func(*sql.Rows) error, args ...any) error {
	return d.WithConn(ctx, func(conn *sql.Conn) error {
		rows, err := conn.QueryContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("query execution failed: %w", err)
		}
		defer func() { _ = rows.Close() }()

		for rows.Next() {
			if err := fn(rows); err != nil {
				return err
			}
		}
		return rows.Err()
	})
}

// QuoteIdent quotes s as a SQL identifier.
func QuoteIdent(s string) string { return `"` + strings.ReplaceAll(s, `"`, `""`) + `"` }

// QuoteLiteral quotes s as a SQL string literal.
func QuoteLiteral(s string) string { return `'` + escapeSingle(s) + `'` }

func escapeSingle(s string) string { return strings.ReplaceAll(s, `'`, `''`) }
