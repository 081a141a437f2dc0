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

// Package kafkasink streams catalog records to a Kafka topic as JSON,
// keyed by catalog key so updates to one table or stat land on one
// partition.
package kafkasink

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/sasl"

	"github.com/cardinalhq/lakescanner/internal/records"
	"github.com/cardinalhq/lakescanner/internal/sink"
)

const (
	KindTableMetadata = "table_metadata"
	KindColumnStat    = "column_stat"

	// KindHeader carries the record kind on every message.
	KindHeader = "lakescanner-kind"

	defaultBatchSize = 100
)

// Config describes the brokers and topic to write to.
type Config struct {
	Brokers      []string
	Topic        string
	BatchSize    int
	BatchTimeout time.Duration

	SASLMechanism sasl.Mechanism
	TLSConfig     *tls.Config
}

// MessageWriter writes messages to a topic. *kafka.Writer satisfies it.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// NewWriter builds a hash-balanced writer that waits for all in-sync
// replicas.
func NewWriter(cfg Config) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchSize:    cfg.BatchSize,
		BatchTimeout: cfg.BatchTimeout,
		RequiredAcks: kafka.RequireAll,
		Compression:  kafka.Zstd,
		Transport: &kafka.Transport{
			SASL: cfg.SASLMechanism,
			TLS:  cfg.TLSConfig,
		},
	}
}

// Envelope is the JSON value of every message.
type Envelope struct {
	Kind   string `json:"kind"`
	Key    string `json:"key"`
	Record any    `json:"record"`
}

// Loader buffers messages and writes them in batches. It is not safe for
// concurrent use.
type Loader struct {
	w         MessageWriter
	batchSize int
	pending   []kafka.Message
	written   int
}

var _ sink.Loader = (*Loader)(nil)

func New(w MessageWriter, batchSize int) *Loader {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &Loader{w: w, batchSize: batchSize}
}

// Written is the number of messages acknowledged so far.
func (l *Loader) Written() int { return l.written }

func (l *Loader) Load(ctx context.Context, record any) error {
	var env Envelope
	switch r := record.(type) {
	case records.TableMetadata:
		env = Envelope{Kind: KindTableMetadata, Key: r.Key(), Record: r}
	case *records.TableMetadata:
		env = Envelope{Kind: KindTableMetadata, Key: r.Key(), Record: r}
	case records.ColumnStat:
		env = Envelope{Kind: KindColumnStat, Key: r.Key(), Record: r}
	case *records.ColumnStat:
		env = Envelope{Kind: KindColumnStat, Key: r.Key(), Record: r}
	default:
		return sink.Unsupported("kafka", record)
	}

	value, err := json.Marshal(env)
	if err != nil {
		return err
	}
	l.pending = append(l.pending, kafka.Message{
		Key:     []byte(env.Key),
		Value:   value,
		Headers: []kafka.Header{{Key: KindHeader, Value: []byte(env.Kind)}},
	})
	if len(l.pending) >= l.batchSize {
		return l.flush(ctx)
	}
	return nil
}

func (l *Loader) flush(ctx context.Context) error {
	if len(l.pending) == 0 {
		return nil
	}
	msgs := l.pending
	l.pending = nil
	if err := l.w.WriteMessages(ctx, msgs...); err != nil {
		return err
	}
	l.written += len(msgs)
	return nil
}

// Close writes what is still buffered and closes the writer.
func (l *Loader) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var result *multierror.Error
	if err := l.flush(ctx); err != nil {
		result = multierror.Append(result, err)
	}
	if err := l.w.Close(); err != nil {
		result = multierror.Append(result, err)
	}
	return result.ErrorOrNil()
}
