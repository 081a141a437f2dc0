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
	"os"

	"github.com/spf13/cobra"

	"github.com/cardinalhq/lakescanner/config"
)

var rootCmd = &cobra.Command{
	Use:   "lakescanner",
	Short: "Catalog datasets stored in an object store",
	Long: `Discover the datasets under a versioned prefix of an S3-compatible bucket,
describe their tables and compute per-column statistics, and write the
results to the configured catalog sinks.

Settings come from a config file, LAKESCANNER_* environment variables and
flags, in increasing precedence.`,
	SilenceUsage: true,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.String(config.FlagConfigFile, "", "Configuration file (default ./config.yaml when present)")
	config.RegisterLegacyFlags(pf)

	rootCmd.AddCommand(debugCmd)
}

// Execute runs the command selected on the command line and exits non-zero
// when it fails.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
