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
	"crypto/tls"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials/stscreds"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.opentelemetry.io/otel/trace"
)

type S3Client struct {
	Client *s3.Client
	Tracer trace.Tracer
}

// s3Config collects what the options ask for before a client is built.
// Config edits apply to the copied aws.Config, S3 edits to the client.
type s3Config struct {
	RoleARN      string
	Region       string
	applyConfigs []func(*aws.Config)
	applyS3s     []func(*s3.Options)
}

func (c *s3Config) onConfig(fn func(*aws.Config)) { c.applyConfigs = append(c.applyConfigs, fn) }
func (c *s3Config) onS3(fn func(*s3.Options)) { c.applyS3s = append(c.applyS3s, fn) }

// S3Option adjusts one GetS3 call.
type S3Option func(*s3Config)

// WithRole assumes roleARN through STS. Empty uses the base credentials.
func WithRole(roleARN string) S3Option {
	return func(c *s3Config) { c.RoleARN = roleARN }
}

func WithRegion(region string) S3Option {
	return func(c *s3Config) { c.Region = region }
}

// WithEndpoint points the client at an S3-compatible service such as MinIO.
func WithEndpoint(url string) S3Option {
	return func(c *s3Config) {
		c.onS3(func(o *s3.Options) { o.BaseEndpoint = aws.String(url) })
	}
}

func WithPathStyle() S3Option {
	return func(c *s3Config) {
		c.onS3(func(o *s3.Options) { o.UsePathStyle = true })
	}
}

// WithInsecureTLS skips certificate verification, for lab stores with
// self-signed certificates.
func WithInsecureTLS() S3Option {
	return func(c *s3Config) {
		c.onConfig(func(cfg *aws.Config) {
			tr := http.DefaultTransport.(*http.Transport).Clone()
			tr.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
			cfg.HTTPClient = &http.Client{Transport: tr}
		})
	}
}

// Store is the objectstore section of the configuration as the client
// builder sees it. It is comparable, so the Manager caches one client per
// distinct Store.
type Store struct {
	Endpoint    string
	Region      string
	Role        string
	PathStyle   bool
	InsecureTLS bool
	GCSInterop  bool
}

func (s Store) Options() []S3Option {
	var opts []S3Option
	add := func(cond bool, o S3Option) {
		if cond {
			opts = append(opts, o)
		}
	}
	add(s.Role != "", WithRole(s.Role))
	add(s.Region != "", WithRegion(s.Region))
	add(s.Endpoint != "", WithEndpoint(s.Endpoint))
	add(s.PathStyle, WithPathStyle())
	add(s.InsecureTLS, WithInsecureTLS())
	add(s.GCSInterop, WithGCSInterop())
	return opts
}

type roleKey struct {
	Region  string
	RoleARN string
}

// credentialsFor returns the shared provider for a region and role, so
// every client assuming the same role reuses one cached STS session.
func (m *Manager) credentialsFor(key roleKey) aws.CredentialsProvider {
	m.RLock()
	p, ok := m.providers[key]
	m.RUnlock()
	if ok {
		return p
	}

	m.Lock()
	defer m.Unlock()
	if p, ok = m.providers[key]; ok {
		return p
	}
	if key.RoleARN == "" {
		p = m.baseCfg.Credentials
	} else {
		p = aws.NewCredentialsCache(stscreds.NewAssumeRoleProvider(m.stsClient, key.RoleARN,
			func(o *stscreds.AssumeRoleOptions) { o.RoleSessionName = m.sessionName }))
	}
	m.providers[key] = p
	return p
}

// GetS3 builds a new client from the base config and opts.
func (m *Manager) GetS3(_ context.Context, opts ...S3Option) (*S3Client, error) {
	sc := s3Config{Region: m.baseCfg.Region}
	for _, o := range opts {
		o(&sc)
	}

	cfg := m.baseCfg.Copy()
	cfg.Region = sc.Region
	cfg.Credentials = m.credentialsFor(roleKey{Region: sc.Region, RoleARN: sc.RoleARN})
	for _, fn := range sc.applyConfigs {
		fn(&cfg)
	}
	return &S3Client{Client: s3.NewFromConfig(cfg, sc.applyS3s...), Tracer: m.tracer}, nil
}

// GetS3ForStore returns the client for s, building it on first use.
func (m *Manager) GetS3ForStore(ctx context.Context, s Store) (*S3Client, error) {
	m.RLock()
	c, ok := m.clients[s]
	m.RUnlock()
	if ok {
		return c, nil
	}

	c, err := m.GetS3(ctx, s.Options()...)
	if err != nil {
		return nil, err
	}
	m.Lock()
	defer m.Unlock()
	if prev, ok := m.clients[s]; ok {
		return prev, nil
	}
	m.clients[s] = c
	return c, nil
}
