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

package duckdbx

import (
	"fmt"
	"strings"
)

// S3Secret holds the credentials DuckDB uses for s3:// URLs.
type S3Secret struct {
	// Name defaults to "lakescanner_s3".
	Name     string
	Endpoint string
	Region   string
	KeyID    string
	Secret   string
	// URLStyle is "path" or "vhost"; empty means path, which MinIO needs.
	URLStyle string
	// Scope limits the secret to URLs under it, e.g. "s3://bucket".
	Scope string
}

func (s S3Secret) createSQL() string {
	name := s.Name
	if name == "" {
		name = "lakescanner_s3"
	}
	region := s.Region
	if region == "" {
		region = "us-east-1"
	}
	urlStyle := s.URLStyle
	if urlStyle == "" {
		urlStyle = "path"
	}

	useSSL := "true"
	endpoint := s.Endpoint
	switch {
	case endpoint == "":
		endpoint = fmt.Sprintf("s3.%s.amazonaws.com", region)
	case strings.HasPrefix(endpoint, "http://"):
		endpoint = strings.TrimPrefix(endpoint, "http://")
		useSSL = "false"
	case strings.HasPrefix(endpoint, "https://"):
		endpoint = strings.TrimPrefix(endpoint, "https://")
	}
	endpoint = strings.TrimSuffix(endpoint, "/")

	var b strings.Builder
	_, _ = fmt.Fprintf(&b, "CREATE OR REPLACE SECRET %s (\n", QuoteIdent(name))
	_, _ = fmt.Fprintf(&b, "  TYPE S3,\n")
	_, _ = fmt.Fprintf(&b, "  ENDPOINT '%s',\n", escapeSingle(endpoint))
	_, _ = fmt.Fprintf(&b, "  URL_STYLE '%s',\n", escapeSingle(urlStyle))
	_, _ = fmt.Fprintf(&b, "  USE_SSL '%s',\n", useSSL)
	if s.KeyID != "" {
		_, _ = fmt.Fprintf(&b, "  KEY_ID '%s',\n", escapeSingle(s.KeyID))
		_, _ = fmt.Fprintf(&b, "  SECRET '%s',\n", escapeSingle(s.Secret))
	}
	if s.Scope != "" {
		_, _ = fmt.Fprintf(&b, "  SCOPE '%s',\n", escapeSingle(s.Scope))
	}
	_, _ = fmt.Fprintf(&b, "  REGION '%s'\n", escapeSingle(region))
	_, _ = fmt.Fprintf(&b, ");")
	return b.String()
}
