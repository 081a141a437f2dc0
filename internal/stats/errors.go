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

package stats

import (
	"errors"
	"fmt"
)

// ErrUnsupportedColumnType matches any UnsupportedColumnTypeError.
var ErrUnsupportedColumnType = errors.New("unsupported column type")

// UnsupportedColumnTypeError is returned for a column whose declared type
// has no aggregation strategy. It is never downgraded to a skip.
type UnsupportedColumnTypeError struct {
	Table  string
	Column string
	Type   string
}

func (e *UnsupportedColumnTypeError) Error() string {
	return fmt.Sprintf("table %q column %q: unsupported column type %q", e.Table, e.Column, e.Type)
}

func (e *UnsupportedColumnTypeError) Is(target error) bool {
	return target == ErrUnsupportedColumnType
}
