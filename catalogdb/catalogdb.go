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

// Package catalogdb connects to the PostgreSQL database the catalog sink
// writes table metadata and column statistics into.
package catalogdb

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgx-contrib/pgxotel"
)

// EnvPrefix prefixes the connection environment variables, eg
// CATALOGDB_URL or CATALOGDB_HOST.
const EnvPrefix = "CATALOGDB_"

var ErrDatabaseNotConfigured = errors.New("catalog database connection configuration is unavailable")

// NewConnectionPool opens a pgx pool with query tracing.
func NewConnectionPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	cfg.ConnConfig.Tracer = &pgxotel.QueryTracer{
		Name: "catalogdb",
	}
	return pgxpool.NewWithConfig(ctx, cfg)
}

// URLFromEnv returns CATALOGDB_URL when set, otherwise builds a URL from
// CATALOGDB_HOST, _PORT, _USER, _PASSWORD, _DBNAME and _SSLMODE.
func URLFromEnv() (string, error) {
	return urlFromLookup(os.Getenv)
}

func urlFromLookup(get func(string) string) (string, error) {
	if u := get(EnvPrefix + "URL"); u != "" {
		return u, nil
	}

	host, dbname := get(EnvPrefix+"HOST"), get(EnvPrefix+"DBNAME")
	var missing []string
	if host == "" {
		missing = append(missing, EnvPrefix+"HOST")
	}
	if dbname == "" {
		missing = append(missing, EnvPrefix+"DBNAME")
	}
	if len(missing) > 0 {
		return "", errors.Join(ErrDatabaseNotConfigured,
			fmt.Errorf("missing required environment variable(s): %s", strings.Join(missing, ", ")))
	}

	port := get(EnvPrefix + "PORT")
	if port == "" {
		port = "5432"
	}
	u := &url.URL{
		Scheme: "postgresql",
		Host:   host + ":" + port,
		Path:   dbname,
	}
	if user := get(EnvPrefix + "USER"); user != "" {
		if pass := get(EnvPrefix + "PASSWORD"); pass != "" {
			u.User = url.UserPassword(user, pass)
		} else {
			u.User = url.User(user)
		}
	}

	q := u.Query()
	if ssl := get(EnvPrefix + "SSLMODE"); ssl != "" {
		q.Set("sslmode", ssl)
	}
	q.Set("application_name", "lakescanner")
	u.RawQuery = q.Encode()
	return u.String(), nil
}
