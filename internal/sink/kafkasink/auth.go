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

package kafkasink

import (
	"crypto/tls"
	"fmt"

	"github.com/segmentio/kafka-go/sasl"
	"github.com/segmentio/kafka-go/sasl/plain"
	"github.com/segmentio/kafka-go/sasl/scram"
)

// Auth describes broker authentication.
type Auth struct {
	SASLEnabled   bool
	SASLMechanism string // "SCRAM-SHA-256", "SCRAM-SHA-512" or "PLAIN"
	Username      string
	Password      string

	TLSEnabled    bool
	TLSSkipVerify bool
}

// Apply sets the SASL mechanism and TLS config on cfg.
func (a Auth) Apply(cfg *Config) error {
	if a.SASLEnabled {
		m, err := a.mechanism()
		if err != nil {
			return fmt.Errorf("failed to create SASL mechanism: %w", err)
		}
		cfg.SASLMechanism = m
	}
	if a.TLSEnabled {
		cfg.TLSConfig = &tls.Config{
			InsecureSkipVerify: a.TLSSkipVerify,
		}
	}
	return nil
}

func (a Auth) mechanism() (sasl.Mechanism, error) {
	switch a.SASLMechanism {
	case "SCRAM-SHA-256":
		return scram.Mechanism(scram.SHA256, a.Username, a.Password)
	case "SCRAM-SHA-512":
		return scram.Mechanism(scram.SHA512, a.Username, a.Password)
	case "PLAIN":
		return plain.Mechanism{Username: a.Username, Password: a.Password}, nil
	default:
		return nil, fmt.Errorf("unsupported SASL mechanism: %s", a.SASLMechanism)
	}
}
