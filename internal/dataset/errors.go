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

package dataset

import (
	"errors"
	"fmt"
)

// ErrInvalidDatasetPath is returned by Resolve when a listing entry is not a
// dataset at all. Scanners treat it as a skip, not a failure.
var ErrInvalidDatasetPath = errors.New("not a dataset path")

// ErrUnknownFormat matches any UnknownFormatError via errors.Is.
var ErrUnknownFormat = errors.New("unknown dataset format")

// UnknownFormatError reports a dataset name whose extension has no
// registered format.
type UnknownFormatError struct {
	Name      string
	Extension string
}

func (e *UnknownFormatError) Error() string {
	if e.Extension == "" {
		return fmt.Sprintf("dataset %q has no extension", e.Name)
	}
	return fmt.Sprintf("dataset %q: no format registered for extension %q", e.Name, e.Extension)
}

func (e *UnknownFormatError) Is(target error) bool {
	return target == ErrUnknownFormat
}
