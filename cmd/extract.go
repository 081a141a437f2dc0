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

	"github.com/spf13/cobra"

	"github.com/cardinalhq/lakescanner/internal/extract"
	"github.com/cardinalhq/lakescanner/internal/idgen"
	"github.com/cardinalhq/lakescanner/internal/job"
	"github.com/cardinalhq/lakescanner/internal/records"
)

var strictRun bool

func init() {
	for _, c := range []*cobra.Command{metadataCmd, statsCmd} {
		c.Flags().BoolVar(&strictRun, "strict", false, "Exit non-zero when any dataset fails")
		rootCmd.AddCommand(c)
	}
}

var metadataCmd = &cobra.Command{
	Use:   "metadata",
	Short: "Describe every dataset table and write the metadata to the sinks",
	RunE: func(c *cobra.Command, _ []string) error {
		return runExtraction(c, "lakescanner-metadata", func(_ context.Context, s *scanner) (extract.Extractor[records.TableMetadata], error) {
			return extract.NewMetadataExtractor(s.catalog, s.registry, s.loader, s.extractConfig()), nil
		})
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Compute per-column statistics for every dataset and write them to the sinks",
	RunE: func(c *cobra.Command, _ []string) error {
		return runExtraction(c, "lakescanner-stats", func(_ context.Context, s *scanner) (extract.Extractor[records.ColumnStat], error) {
			engine, err := s.statsEngine()
			if err != nil {
				return nil, err
			}
			return extract.NewStatsExtractor(s.catalog, s.registry, s.loader, engine, s.extractConfig(), s.cfg.Stats.ColumnWorkers), nil
		})
	},
}

type extractorFactory[T any] func(ctx context.Context, s *scanner) (extract.Extractor[T], error)

func runExtraction[T any](c *cobra.Command, service string, build extractorFactory[T]) error {
	ctx, doneFx, err := setupTelemetry(service)
	defer func() {
		if err := doneFx(); err != nil {
			slog.Error("Error shutting down telemetry", slog.Any("error", err))
		}
	}()
	if err != nil {
		return err
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	s, err := newScanner(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	runID := idgen.NewRunID()
	sinks, err := buildSinks(ctx, cfg.Sink, runID, s.store)
	if err != nil {
		return err
	}
	defer sinks.close()

	ex, err := build(ctx, s)
	if err != nil {
		return err
	}

	res, err := job.Job[T]{
		Task:      job.Task[T]{Extractor: ex, Loader: sinks.loader()},
		Publisher: sinks.publishers,
		RunID:     runID,
	}.Launch(ctx)
	recordRun(ctx, ex.Scope(), res.Elapsed, res.Records, err != nil)
	if err != nil {
		return err
	}
	if res.Failures != nil {
		slog.Warn("Some datasets were skipped", slog.Any("error", res.Failures))
		if strictRun {
			return fmt.Errorf("run %s: %w", res.RunID, res.Failures)
		}
	}
	return nil
}
