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

// Package idgen hands out the identifiers used for scratch tables, output
// objects and runs.
package idgen

import (
	"errors"
	"math/rand/v2"
	"os"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/hashicorp/go-multierror"
	"github.com/sony/sonyflake"
)

var defaultFlake *FlakeGenerator

func init() {
	var err error
	defaultFlake, err = NewFlakeGenerator()
	if err != nil {
		panic(err)
	}
}

// FlakeGenerator produces positive int64 ids that increase roughly in time
// order and never repeat within a process.
type FlakeGenerator struct {
	sf *sonyflake.Sonyflake
}

var flakeEpoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// NewFlakeGenerator uses the low bits of a private IPv4 address as the
// machine id, falling back to a hash of the host name on hosts without one.
func NewFlakeGenerator() (*FlakeGenerator, error) {
	return newFlakeGenerator(nil, hostMachineID)
}

// newFlakeGenerator tries each machine id source in turn; a nil source is
// the sonyflake default.
func newFlakeGenerator(sources ...func() (uint16, error)) (*FlakeGenerator, error) {
	var errs *multierror.Error
	for _, src := range sources {
		sf, err := sonyflake.New(sonyflake.Settings{StartTime: flakeEpoch, MachineID: src})
		if err == nil && sf != nil {
			return &FlakeGenerator{sf: sf}, nil
		}
		if err == nil {
			err = errors.New("failed to create Sonyflake instance")
		}
		errs = multierror.Append(errs, err)
	}
	if errs == nil {
		return nil, errors.New("no machine id source")
	}
	return nil, errs
}

// hostMachineID hashes the host name, or picks a random id when there is
// none.
func hostMachineID() (uint16, error) {
	name, err := os.Hostname()
	if err != nil || name == "" {
		return uint16(rand.Uint32()), nil
	}
	return uint16(xxhash.Sum64String(name)), nil
}

func (g *FlakeGenerator) NextID() int64 {
	v, err := g.sf.NextID()
	if err != nil {
		return rand.Int64()
	}
	return int64(v)
}

// NextName returns prefix followed by a fresh id in base 36. The result is
// a valid unquoted SQL identifier when prefix is.
func (g *FlakeGenerator) NextName(prefix string) string {
	return prefix + strconv.FormatInt(g.NextID(), 36)
}

// NextName uses the process-wide generator.
func NextName(prefix string) string {
	return defaultFlake.NextName(prefix)
}

// NextID uses the process-wide generator.
func NextID() int64 {
	return defaultFlake.NextID()
}
