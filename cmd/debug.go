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

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/spf13/cobra"

	debugcmd "github.com/cardinalhq/lakescanner/cmd/debug"
)

var debugCmd = &cobra.Command{
	Use:   "debug",
	Short: "Debug commands for troubleshooting",
	Long:  `Debug commands for inspecting the object store and dataset naming.`,
}

func init() {
	debugCmd.AddCommand(debugcmd.GetS3LSCmd(debugS3Client))
	debugCmd.AddCommand(debugcmd.GetResolveCmd())
}

func debugS3Client(ctx context.Context, c *cobra.Command) (*s3.Client, string, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, "", err
	}
	client, err := newS3Client(ctx, cfg.ObjectStore)
	if err != nil {
		return nil, "", err
	}
	return client.Client, cfg.ObjectStore.Bucket, nil
}
