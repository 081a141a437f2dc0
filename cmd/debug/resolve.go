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

package debug

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/cardinalhq/lakescanner/internal/dataset"
)

func GetResolveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <path>...",
		Short: "Show the dataset name, table name and format a path resolves to",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			return resolvePaths(c.OutOrStdout(), dataset.DefaultRegistry(), args)
		},
	}
}

func resolvePaths(w io.Writer, registry *dataset.Registry, paths []string) error {
	var failed int
	for _, p := range paths {
		id, err := registry.Resolve(p)
		if err != nil {
			_, _ = fmt.Fprintf(w, "%s\terror: %v\n", p, err)
			failed++
			continue
		}
		name, _ := registry.PathToDatasetName(p)
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", p, name, id.Basename, id.Format.Name, id.Format.ObjectKey(p))
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d paths did not resolve", failed, len(paths))
	}
	return nil
}
