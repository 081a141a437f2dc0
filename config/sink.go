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

import "time"

// SinkConfig selects where extracted records are written. A sink with an
// empty directory, URL or broker list is disabled.
type SinkConfig struct {
	GraphCSV GraphCSVConfig `mapstructure:"graphcsv"`
	Parquet  ParquetConfig  `mapstructure:"parquet"`
	Postgres PostgresConfig `mapstructure:"postgres"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	Publish  PublishConfig  `mapstructure:"publish"`
}

type GraphCSVConfig struct {
	Dir string `mapstructure:"dir"`
}

type ParquetConfig struct {
	Dir       string `mapstructure:"dir"`
	BatchSize int    `mapstructure:"batch_size"`
}

type PostgresConfig struct {
	// URL falls back to the CATALOGDB_* environment when empty and Enabled.
	URL       string `mapstructure:"url"`
	Enabled   bool   `mapstructure:"enabled"`
	BatchSize int    `mapstructure:"batch_size"`
}

type KafkaConfig struct {
	Brokers       []string      `mapstructure:"brokers"`
	Topic         string        `mapstructure:"topic"`
	BatchSize     int           `mapstructure:"batch_size"`
	BatchTimeout  time.Duration `mapstructure:"batch_timeout"`
	SASLEnabled   bool          `mapstructure:"sasl_enabled"`
	SASLMechanism string        `mapstructure:"sasl_mechanism"`
	SASLUsername  string        `mapstructure:"sasl_username"`
	SASLPassword  string        `mapstructure:"sasl_password"`
	TLSEnabled    bool          `mapstructure:"tls_enabled"`
	TLSSkipVerify bool          `mapstructure:"tls_skip_verify"`
}

// PublishConfig names the bucket local sink files are uploaded to once a
// run completes. Publishing is off when Bucket is empty.
type PublishConfig struct {
	Bucket string `mapstructure:"bucket"`
	Prefix string `mapstructure:"prefix"`
}

func DefaultSinkConfig() SinkConfig {
	return SinkConfig{
		Parquet:  ParquetConfig{BatchSize: 1024},
		Postgres: PostgresConfig{BatchSize: 500},
		Kafka: KafkaConfig{
			Topic:         "lakescanner.catalog",
			BatchSize:     100,
			BatchTimeout:  time.Second,
			SASLMechanism: "SCRAM-SHA-256",
		},
		Publish: PublishConfig{Prefix: "lakescanner"},
	}
}
