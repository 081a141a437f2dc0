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

// Package job drives an extractor into a loader and publishes the result.
package job

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/hashicorp/go-multierror"
	"go.opentelemetry.io/otel/attribute"
	otelmetric "go.opentelemetry.io/otel/metric"

	"github.com/cardinalhq/lakescanner/internal/extract"
	"github.com/cardinalhq/lakescanner/internal/idgen"
	"github.com/cardinalhq/lakescanner/internal/logctx"
	"github.com/cardinalhq/lakescanner/internal/sink"
)

// failureReporter is implemented by extractors that skip failing datasets
// and report them at the end.
type failureReporter interface {
	Failures() error
}

// Result summarizes one run.
type Result struct {
	RunID   string
	Records int
	// Failures holds per-dataset errors the extractor skipped past.
	Failures error
	Elapsed  time.Duration
}

// Task pulls every record from Extractor and hands it to Loader.
type Task[T any] struct {
	Extractor extract.Extractor[T]
	Loader    sink.Loader
}

// Run drains the extractor. Extraction or load errors stop the run; the
// extractor and loader are closed either way.
func (t Task[T]) Run(ctx context.Context) (res Result, err error) {
	ctx = logctx.WithScope(ctx, t.Extractor.Scope())
	start := time.Now()

	defer func() {
		var closeErr *multierror.Error
		if cerr := t.Extractor.Close(); cerr != nil {
			closeErr = multierror.Append(closeErr, fmt.Errorf("close extractor: %w", cerr))
		}
		if cerr := t.Loader.Close(); cerr != nil {
			closeErr = multierror.Append(closeErr, fmt.Errorf("close loader: %w", cerr))
		}
		if cerr := closeErr.ErrorOrNil(); cerr != nil {
			err = errors.Join(err, cerr)
		}
		res.Elapsed = time.Since(start)
	}()

	scope := attribute.String("scope", t.Extractor.Scope())
	for {
		rec, xerr := t.Extractor.Extract(ctx)
		if errors.Is(xerr, io.EOF) {
			break
		}
		if xerr != nil {
			return res, fmt.Errorf("extract: %w", xerr)
		}
		if lerr := t.Loader.Load(ctx, rec); lerr != nil {
			return res, fmt.Errorf("load record %d: %w", res.Records+1, lerr)
		}
		res.Records++
		recordsLoaded.Add(ctx, 1, otelmetric.WithAttributes(scope))
	}

	if fr, ok := t.Extractor.(failureReporter); ok {
		res.Failures = fr.Failures()
	}
	return res, nil
}

// Job runs a task and then, if it succeeded, its publisher.
type Job[T any] struct {
	Task      Task[T]
	Publisher sink.Publisher
	// RunID names the run; one is generated when empty.
	RunID string
}

func (j Job[T]) Launch(ctx context.Context) (Result, error) {
	runID := j.RunID
	if runID == "" {
		runID = idgen.NewRunID()
	}
	ctx = logctx.WithLogger(ctx, logctx.FromContext(ctx).With(slog.String("run_id", runID)))
	logger := logctx.FromContext(ctx)
	logger.Info("Starting job", slog.String("scope", j.Task.Extractor.Scope()))

	res, err := j.Task.Run(ctx)
	res.RunID = runID
	if err != nil {
		logger.Error("Job failed", slog.Any("error", err), slog.Int("records", res.Records))
		return res, err
	}

	if j.Publisher != nil {
		if err := j.Publisher.Publish(ctx); err != nil {
			return res, fmt.Errorf("publish: %w", err)
		}
	}

	attrs := []any{
		slog.Int("records", res.Records),
		slog.Duration("elapsed", res.Elapsed),
	}
	if res.Failures != nil {
		var merr *multierror.Error
		n := 1
		if errors.As(res.Failures, &merr) {
			n = len(merr.Errors)
		}
		attrs = append(attrs, slog.Int("failed_datasets", n))
		logger.Warn("Job finished with dataset failures", attrs...)
	} else {
		logger.Info("Job finished", attrs...)
	}
	return res, nil
}
