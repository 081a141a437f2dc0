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

// Package extract turns discovered datasets into a pull-based stream of
// records. Every producer returns io.EOF once it is exhausted.
package extract

import (
	"context"
	"errors"
	"io"
)

// Extractor is a pull-based record producer.
type Extractor[T any] interface {
	// Extract returns the next record, or io.EOF when the stream is done.
	// Calling it again after io.EOF keeps returning io.EOF.
	Extract(ctx context.Context) (T, error)
	Scope() string
	Close() error
}

// Source yields records until it returns io.EOF.
type Source[T any] interface {
	Next(ctx context.Context) (T, error)
}

// FuncSource adapts a function to a Source.
type FuncSource[T any] func(ctx context.Context) (T, error)

func (f FuncSource[T]) Next(ctx context.Context) (T, error) { return f(ctx) }

// SliceSource yields the elements of a slice in order.
type SliceSource[T any] struct {
	items []T
}

func NewSliceSource[T any](items []T) *SliceSource[T] {
	return &SliceSource[T]{items: items}
}

func (s *SliceSource[T]) Next(ctx context.Context) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}
	if len(s.items) == 0 {
		return zero, io.EOF
	}
	v := s.items[0]
	s.items = s.items[1:]
	return v, nil
}

// State is the lifecycle position of a Cursor.
type State int

const (
	StateUninitialized State = iota
	StateActive
	StateExhausted
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateActive:
		return "active"
	case StateExhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}

// InitFunc builds the source a cursor reads from. It runs on the first
// pull, not when the cursor is created.
type InitFunc[T any] func(ctx context.Context) (Source[T], error)

// Cursor is a lazily initialized, single-owner record stream.
//
// Uninitialized moves to Active once init succeeds; a failed init leaves
// the cursor Uninitialized so the next pull retries it. Active moves to
// Exhausted on the first io.EOF from the source. Exhausted is terminal: the
// source and init are never called again.
//
// A Cursor is not safe for concurrent use.
type Cursor[T any] struct {
	init  InitFunc[T]
	state State
	src   Source[T]
}

func NewCursor[T any](init InitFunc[T]) *Cursor[T] {
	return &Cursor[T]{init: init}
}

func (c *Cursor[T]) State() State { return c.state }

func (c *Cursor[T]) Next(ctx context.Context) (T, error) {
	var zero T
	switch c.state {
	case StateExhausted:
		return zero, io.EOF
	case StateUninitialized:
		src, err := c.init(ctx)
		if err != nil {
			return zero, err
		}
		c.src = src
		c.state = StateActive
	}

	v, err := c.src.Next(ctx)
	if errors.Is(err, io.EOF) {
		c.finish()
		return zero, io.EOF
	}
	return v, err
}

// Stop moves the cursor straight to Exhausted.
func (c *Cursor[T]) Stop() {
	c.finish()
}

func (c *Cursor[T]) finish() {
	c.state = StateExhausted
	c.src = nil
}
