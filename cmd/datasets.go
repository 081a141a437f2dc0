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
	"fmt"
	"io"
	"log/slog"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/cardinalhq/lakescanner/internal/catalog"
	"github.com/cardinalhq/lakescanner/internal/dataset"
)

func init() {
	rootCmd.AddCommand(datasetsCmd)
}

var datasetsCmd = &cobra.Command{
	Use:   "datasets",
	Short: "List the datasets found under the configured version prefix",
	RunE: func(c *cobra.Command, _ []string) error {
		ctx, doneFx, err := setupTelemetry("lakescanner-datasets")
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
		client, err := newS3Client(ctx, cfg.ObjectStore)
		if err != nil {
			return err
		}
		sc := catalog.NewScanner(client.Client, dataset.DefaultRegistry(), catalog.WithPageSize(cfg.ObjectStore.PageSize))
		found, err := sc.ResolveAll(ctx, cfg.ObjectStore.Bucket, cfg.ObjectStore.Version)
		if err != nil {
			return err
		}
		return printDatasets(c.OutOrStdout(), found)
	},
}

func printDatasets(w io.Writer, found []catalog.Dataset) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "PATH\tTABLE\tFORMAT\tOBJECT")
	for _, d := range found {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
			d.Path, d.Identity.Basename, d.Identity.Format.Name, d.Identity.Format.ObjectKey(d.Path))
	}
	return tw.Flush()
}
