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
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/spf13/cobra"
)

// ClientFunc returns an S3 client for the command's configured object store.
type ClientFunc func(ctx context.Context, c *cobra.Command) (*s3.Client, string, error)

func GetS3LSCmd(newClient ClientFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "s3ls",
		Short: "List a bucket prefix in the object store",
		RunE: func(c *cobra.Command, _ []string) error {
			prefix, err := c.Flags().GetString("prefix")
			if err != nil {
				return fmt.Errorf("failed to get prefix flag: %w", err)
			}
			delimited, err := c.Flags().GetBool("delimited")
			if err != nil {
				return fmt.Errorf("failed to get delimited flag: %w", err)
			}

			client, bucket, err := newClient(c.Context(), c)
			if err != nil {
				return err
			}
			return listS3Objects(c.Context(), client, c.OutOrStdout(), bucket, prefix, delimited)
		},
	}

	cmd.Flags().String("prefix", "", "Prefix to list")
	cmd.Flags().Bool("delimited", false, "Only list the common prefixes one level below --prefix")

	return cmd
}

// listS3Objects writes every key under prefix, or only the common prefixes
// when delimited is set.
func listS3Objects(ctx context.Context, client s3.ListObjectsV2APIClient, w io.Writer, bucket, prefix string, delimited bool) error {
	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(bucket),
		Prefix: aws.String(prefix),
	}
	if delimited {
		input.Delimiter = aws.String("/")
	}
	paginator := s3.NewListObjectsV2Paginator(client, input)

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			slog.Error("Failed to list S3 objects",
				slog.String("bucket", bucket),
				slog.String("prefix", prefix),
				slog.Any("error", err),
			)
			return err
		}

		for _, cp := range page.CommonPrefixes {
			_, _ = fmt.Fprintln(w, aws.ToString(cp.Prefix))
		}
		if delimited {
			continue
		}
		for _, obj := range page.Contents {
			_, _ = fmt.Fprintln(w, aws.ToString(obj.Key))
		}
	}

	return nil
}
