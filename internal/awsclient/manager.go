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

// Package awsclient builds S3 clients for AWS and S3-compatible stores such
// as MinIO.
package awsclient

import (
	"context"
	"fmt"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"go.opentelemetry.io/contrib/instrumentation/github.com/aws/aws-sdk-go-v2/otelaws"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// DefaultRegion is used when neither the environment nor an option names one.
const DefaultRegion = "us-east-1"

type Manager struct {
	baseCfg     aws.Config
	stsClient   *sts.Client
	sessionName string

	sync.RWMutex
	providers map[roleKey]aws.CredentialsProvider
	clients   map[Store]*S3Client
	tracer    trace.Tracer
}

// ManagerOption is a functional option for configuring the Manager.
type ManagerOption func(*Manager)

func WithAssumeRoleSessionName(name string) ManagerOption {
	return func(mgr *Manager) {
		mgr.sessionName = name
	}
}

// WithStaticCredentials replaces the default credential chain with a fixed
// access key pair. Empty keys leave the chain in place.
func WithStaticCredentials(accessKey, secretKey string) ManagerOption {
	return func(mgr *Manager) {
		if accessKey == "" && secretKey == "" {
			return
		}
		mgr.baseCfg.Credentials = aws.NewCredentialsCache(
			credentials.NewStaticCredentialsProvider(accessKey, secretKey, ""))
	}
}

// WithDefaultRegion sets the region used when GetS3 is not given one.
func WithDefaultRegion(region string) ManagerOption {
	return func(mgr *Manager) {
		if region != "" {
			mgr.baseCfg.Region = region
		}
	}
}

// NewManager loads the AWS config and builds a single STS client for role
// assumption.
func NewManager(ctx context.Context, opts ...ManagerOption) (*Manager, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	otelaws.AppendMiddlewares(&cfg.APIOptions)

	mgr := &Manager{
		baseCfg:     cfg,
		sessionName: "lakescanner",
		providers:   make(map[roleKey]aws.CredentialsProvider),
		clients:     make(map[Store]*S3Client),
		tracer:      otel.Tracer("github.com/cardinalhq/lakescanner/internal/awsclient"),
	}
	for _, opt := range opts {
		opt(mgr)
	}
	if mgr.baseCfg.Region == "" {
		mgr.baseCfg.Region = DefaultRegion
	}
	mgr.stsClient = sts.NewFromConfig(mgr.baseCfg)

	return mgr, nil
}
