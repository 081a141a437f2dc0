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
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go/middleware"
	smithyhttp "github.com/aws/smithy-go/transport/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var noopSigning = middleware.FinalizeMiddlewareFunc("Signing",
	func(ctx context.Context, in middleware.FinalizeInput, next middleware.FinalizeHandler) (middleware.FinalizeOutput, middleware.Metadata, error) {
		return next.HandleFinalize(ctx, in)
	},
)

func TestWithGCSInteropWrapsSigning(t *testing.T) {
	var sc s3Config
	WithGCSInterop()(&sc)
	require.Len(t, sc.applyS3s, 1)
	require.Len(t, sc.applyConfigs, 1)

	var cfg aws.Config
	sc.applyConfigs[0](&cfg)
	assert.Equal(t, aws.RequestChecksumCalculationWhenRequired, cfg.RequestChecksumCalculation)
	assert.Equal(t, aws.ResponseChecksumValidationWhenRequired, cfg.ResponseChecksumValidation)

	var o s3.Options
	sc.applyS3s[0](&o)
	require.Len(t, o.APIOptions, 1)

	stack := middleware.NewStack("test", smithyhttp.NewStackRequest)
	require.NoError(t, stack.Finalize.Add(noopSigning, middleware.After))
	require.NoError(t, o.APIOptions[0](stack))
	assert.Equal(t, []string{"StashAcceptEncoding", "Signing", "RestoreAcceptEncoding"}, stack.Finalize.List())
}

func TestAcceptEncodingHiddenDuringSigning(t *testing.T) {
	req := smithyhttp.NewStackRequest().(*smithyhttp.Request)
	req.Header.Set(acceptEncodingHeader, "gzip")

	var duringSigning, afterSigning string
	final := middleware.FinalizeHandlerFunc(func(ctx context.Context, in middleware.FinalizeInput) (middleware.FinalizeOutput, middleware.Metadata, error) {
		afterSigning = in.Request.(*smithyhttp.Request).Header.Get(acceptEncodingHeader)
		return middleware.FinalizeOutput{}, middleware.Metadata{}, nil
	})
	signer := middleware.FinalizeHandlerFunc(func(ctx context.Context, in middleware.FinalizeInput) (middleware.FinalizeOutput, middleware.Metadata, error) {
		duringSigning = in.Request.(*smithyhttp.Request).Header.Get(acceptEncodingHeader)
		return restoreAcceptEncoding.HandleFinalize(ctx, in, final)
	})

	ctx := middleware.ClearStackValues(context.Background())
	_, _, err := stashAcceptEncoding.HandleFinalize(ctx, middleware.FinalizeInput{Request: req}, signer)
	require.NoError(t, err)
	assert.Empty(t, duringSigning)
	assert.Equal(t, "gzip", afterSigning)
}

func TestAcceptEncodingRejectsForeignRequest(t *testing.T) {
	_, _, err := stashAcceptEncoding.HandleFinalize(context.Background(), middleware.FinalizeInput{Request: "nope"},
		middleware.FinalizeHandlerFunc(func(ctx context.Context, in middleware.FinalizeInput) (middleware.FinalizeOutput, middleware.Metadata, error) {
			t.Fatal("next handler must not run")
			return middleware.FinalizeOutput{}, middleware.Metadata{}, nil
		}))
	assert.Error(t, err)
}
