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

package config

import (
	"errors"
	"fmt"
	"net"
	"reflect"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config aggregates configuration for the scanner.
type Config struct {
	ObjectStore ObjectStoreConfig `mapstructure:"objectstore"`
	DuckDB      DuckDBConfig      `mapstructure:"duckdb"`
	Stats       StatsConfig       `mapstructure:"stats"`
	Catalog     CatalogConfig     `mapstructure:"catalog"`
	Sink        SinkConfig        `mapstructure:"sink"`
}

// ObjectStoreConfig locates the bucket that is scanned.
type ObjectStoreConfig struct {
	Endpoint    string `mapstructure:"endpoint"`
	Region      string `mapstructure:"region"`
	AccessKey   string `mapstructure:"access_key"`
	SecretKey   string `mapstructure:"secret_key"`
	Role        string `mapstructure:"role"`
	Bucket      string `mapstructure:"bucket"`
	Version     string `mapstructure:"version"`
	PathStyle   bool   `mapstructure:"path_style"`
	InsecureTLS bool   `mapstructure:"insecure_tls"`
	// GCSInterop adjusts request signing for the GCS XML API.
	GCSInterop  bool   `mapstructure:"gcs_interop"`
	PageSize    int32  `mapstructure:"page_size"`
}

type StatsConfig struct {
	RelativeAccuracy float64 `mapstructure:"relative_accuracy"`
	ColumnWorkers    int     `mapstructure:"column_workers"`
}

// CatalogConfig labels the tables written to the catalog.
type CatalogConfig struct {
	Database string   `mapstructure:"database"`
	Schema   string   `mapstructure:"schema"`
	Tags     []string `mapstructure:"tags"`
}

func DefaultConfig() *Config {
	return &Config{
		ObjectStore: ObjectStoreConfig{
			Region:    "us-east-1",
			Version:   "v0",
			PathStyle: true,
		},
		DuckDB: DefaultDuckDBConfig(),
		Stats: StatsConfig{
			RelativeAccuracy: 0.01,
			ColumnWorkers:    4,
		},
		Catalog: CatalogConfig{
			Database: "minio",
			Schema:   "minio",
			Tags:     []string{"minio", "raw"},
		},
		Sink: DefaultSinkConfig(),
	}
}

// Legacy flag names accepted for compatibility with older deployments.
const (
	FlagScheme    = "scheme"
	FlagHostname  = "hostname"
	FlagPort      = "port"
	FlagAccessKey = "accesskey"
	FlagSecretKey = "secretkey"
	FlagBucket    = "bucket"
)

// FlagConfigFile names an explicit configuration file to read instead of
// looking for config.yaml in the working directory.
const FlagConfigFile = "config"

// RegisterLegacyFlags adds the object store flags of older releases.
func RegisterLegacyFlags(fs *pflag.FlagSet) {
	fs.String(FlagScheme, "http", "Object store URL scheme")
	fs.String(FlagHostname, "", "Object store host name")
	fs.String(FlagPort, "9000", "Object store port")
	fs.String(FlagAccessKey, "", "Object store access key")
	fs.String(FlagSecretKey, "", "Object store secret key")
	fs.String(FlagBucket, "", "Bucket to scan")
}

// Load reads configuration from defaults, a config file, and environment
// variables, in increasing precedence. The file is the one named by the
// --config flag, which must exist, or else an optional config.yaml in the
// working directory. Flags
// that were set explicitly win over all of them.
// Environment variables use the prefix "LAKESCANNER" and the dot character
// in keys is replaced by an underscore, so "objectstore.bucket" becomes
// "LAKESCANNER_OBJECTSTORE_BUCKET".
func Load(flags *pflag.FlagSet) (*Config, error) {
	cfg := DefaultConfig()

	v := viper.New()
	explicit := configFile(flags)
	if explicit != "" {
		v.SetConfigFile(explicit)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
	}
	v.SetEnvPrefix("LAKESCANNER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvs(v, cfg)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if explicit != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	if flags != nil {
		bindFlag(v, flags, "objectstore.access_key", FlagAccessKey)
		bindFlag(v, flags, "objectstore.secret_key", FlagSecretKey)
		bindFlag(v, flags, "objectstore.bucket", FlagBucket)
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	if b := v.GetString("sink.kafka.brokers"); b != "" {
		cfg.Sink.Kafka.Brokers = splitList(b)
	}
	if t := v.GetString("catalog.tags"); t != "" {
		cfg.Catalog.Tags = splitList(t)
	}
	if flags != nil {
		if ep := legacyEndpoint(flags); ep != "" {
			cfg.ObjectStore.Endpoint = ep
		}
	}
	return cfg, nil
}

// Validate reports settings no command can run without.
func (c *Config) Validate() error {
	var missing []string
	if c.ObjectStore.Bucket == "" {
		missing = append(missing, "objectstore.bucket")
	}
	if c.ObjectStore.Version == "" {
		missing = append(missing, "objectstore.version")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}
	return nil
}

func configFile(flags *pflag.FlagSet) string {
	if flags == nil {
		return ""
	}
	f := flags.Lookup(FlagConfigFile)
	if f == nil {
		return ""
	}
	return f.Value.String()
}

func bindFlag(v *viper.Viper, flags *pflag.FlagSet, key, name string) {
	f := flags.Lookup(name)
	if f == nil || !f.Changed {
		return
	}
	_ = v.BindPFlag(key, f)
}

// legacyEndpoint builds scheme://hostname:port when --hostname was given.
func legacyEndpoint(flags *pflag.FlagSet) string {
	host, err := flags.GetString(FlagHostname)
	if err != nil || host == "" {
		return ""
	}
	scheme, _ := flags.GetString(FlagScheme)
	port, _ := flags.GetString(FlagPort)
	if scheme == "" {
		scheme = "http"
	}
	if port == "" {
		return scheme + "://" + host
	}
	return scheme + "://" + net.JoinHostPort(host, port)
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// bindEnvs registers all keys within cfg so that viper will look up
// corresponding environment variables when unmarshalling.
func bindEnvs(v *viper.Viper, cfg any, parts ...string) {
	val := reflect.ValueOf(cfg)
	typ := reflect.TypeOf(cfg)
	if typ.Kind() == reflect.Ptr {
		val = val.Elem()
		typ = typ.Elem()
	}
	for i := 0; i < typ.NumField(); i++ {
		f := typ.Field(i)
		tag := f.Tag.Get("mapstructure")
		if tag == "" {
			tag = strings.ToLower(f.Name)
		}
		key := append(parts, tag)
		if f.Type.Kind() == reflect.Struct {
			bindEnvs(v, val.Field(i).Interface(), key...)
			continue
		}
		_ = v.BindEnv(strings.Join(key, "."))
	}
}
