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

// Package sink defines where extracted records go once an extractor yields
// them, and how a finished run is made visible downstream.
package sink

import (
	"context"
	"errors"
	"fmt"

	"github.com/hashicorp/go-multierror"
)

// Loader receives records one at a time. Close flushes anything buffered.
type Loader interface {
	Load(ctx context.Context, record any) error
	Close() error
}

// Publisher makes what the loaders wrote visible once a run completes.
type Publisher interface {
	Publish(ctx context.Context) error
}

// ErrUnsupportedRecord is returned by loaders handed a record type they do
// not store.
var ErrUnsupportedRecord = errors.New("unsupported record type")

func Unsupported(loader string, record any) error {
	return fmt.Errorf("%s: %T: %w", loader, record, ErrUnsupportedRecord)
}

// Fanout hands every record to each of its loaders in order. A failing
// loader does not stop the others from seeing the record.
type Fanout struct {
	loaders []Loader
}

func NewFanout(loaders ...Loader) *Fanout {
	return &Fanout{loaders: loaders}
}

func (f *Fanout) Load(ctx context.Context, record any) error {
	var result *multierror.Error
	for _, l := range f.loaders {
		if err := l.Load(ctx, record); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

func (f *Fanout) Close() error {
	var result *multierror.Error
	for _, l := range f.loaders {
		if err := l.Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

// Publishers runs each publisher in order, stopping at the first failure.
type Publishers []Publisher

func (p Publishers) Publish(ctx context.Context) error {
	for _, pub := range p {
		if err := pub.Publish(ctx); err != nil {
			return err
		}
	}
	return nil
}

// NopPublisher publishes nothing.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context) error { return nil }
