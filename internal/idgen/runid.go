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


package idgen

import (
	"math/big"
	"strings"

	"github.com/google/uuid"
)

// runIDWidth is the length of a 128 bit value written in base 36.
const runIDWidth = 25

// EncodeBase36 writes id as lower case base 36, left padded with zeros so
// that encodings of equal-width ids sort the same way the ids do.
func EncodeBase36(id uuid.UUID) string {
	s := new(big.Int).SetBytes(id[:]).Text(36)
	if pad := runIDWidth - len(s); pad > 0 {
		return strings.Repeat("0", pad) + s
	}
	return s
}

// NewRunID names one extraction run. Ids are UUIDv7 based, so runs started
// later sort after earlier ones in sink prefixes and catalog rows.
func NewRunID() string {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return EncodeBase36(id)
}
