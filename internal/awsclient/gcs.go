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

package awsclient

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go/middleware"
	smithyhttp "github.com/aws/smithy-go/transport/http"
)

// GCS rewrites Accept-Encoding in transit, which breaks SigV4 when the
// header is signed. The header is lifted off the request before signing and
// put back afterwards.

const acceptEncodingHeader = "Accept-Encoding"

type acceptEncodingKey struct{}

func stashedAcceptEncoding(ctx context.Context) string {
	v, _ := middleware.GetStackValue(ctx, acceptEncodingKey{}).(string)
	return v
}

func httpRequest(in middleware.FinalizeInput) (*smithyhttp.Request, error) {
	req, ok := in.Request.(*smithyhttp.Request)
	if !ok {
		return nil, &v4.SigningError{Err: fmt.Errorf("unexpected request middleware type %T", in.Request)}
	}
	return req, nil
}

var stashAcceptEncoding = middleware.FinalizeMiddlewareFunc("StashAcceptEncoding",
	func(ctx context.Context, in middleware.FinalizeInput, next middleware.FinalizeHandler) (middleware.FinalizeOutput, middleware.Metadata, error) {
		req, err := httpRequest(in)
		if err != nil {
			return middleware.FinalizeOutput{}, middleware.Metadata{}, err
		}
		ctx = middleware.WithStackValue(ctx, acceptEncodingKey{}, req.Header.Get(acceptEncodingHeader))
		req.Header.Del(acceptEncodingHeader)
		return next.HandleFinalize(ctx, in)
	},
)

var restoreAcceptEncoding = middleware.FinalizeMiddlewareFunc("RestoreAcceptEncoding",
	func(ctx context.Context, in middleware.FinalizeInput, next middleware.FinalizeHandler) (middleware.FinalizeOutput, middleware.Metadata, error) {
		req, err := httpRequest(in)
		if err != nil {
			return middleware.FinalizeOutput{}, middleware.Metadata{}, err
		}
		if ae := stashedAcceptEncoding(ctx); ae != "" {
			req.Header.Set(acceptEncodingHeader, ae)
		}
		return next.HandleFinalize(ctx, in)
	},
)

// signForGCS wraps the Signing step with the stash and restore middlewares.
func signForGCS(stack *middleware.Stack) error {
	if err := stack.Finalize.Insert(stashAcceptEncoding, "Signing", middleware.Before); err != nil {
		return err
	}
	return stack.Finalize.Insert(restoreAcceptEncoding, "Signing", middleware.After)
}

// WithGCSInterop makes requests acceptable to the GCS S3-compatible XML API.
func WithGCSInterop() S3Option {
	return func(c *s3Config) {
		c.onConfig(func(cfg *aws.Config) {
			// GCS rejects the default CRC trailers and may decompress gzip
			// objects in flight, which breaks response checksums.
			cfg.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
			cfg.ResponseChecksumValidation = aws.ResponseChecksumValidationWhenRequired
		})
		c.onS3(func(o *s3.Options) {
			o.APIOptions = append(o.APIOptions, signForGCS)
		})
	}
}
