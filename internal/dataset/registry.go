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
	"fmt"
	"slices"
	"strings"
)

// Registry is an immutable extension -> Format table. Build one at startup
// and pass it to whatever needs to resolve dataset paths.
type Registry struct {
	byExt map[string]Format
	exts  []string
}

// NewRegistry builds a registry from the given formats. Every format needs
// an extension starting with "." and extensions must be unique.
func NewRegistry(formats ...Format) (*Registry, error) {
	r := &Registry{
		byExt: make(map[string]Format, len(formats)),
		exts:  make([]string, 0, len(formats)),
	}
	for _, f := range formats {
		if !strings.HasPrefix(f.Extension, ".") || len(f.Extension) < 2 {
			return nil, fmt.Errorf("format %q: invalid extension %q", f.Name, f.Extension)
		}
		if f.Name == "" {
			return nil, fmt.Errorf("format with extension %q has no name", f.Extension)
		}
		if _, dup := r.byExt[f.Extension]; dup {
			return nil, fmt.Errorf("duplicate format extension %q", f.Extension)
		}
		r.byExt[f.Extension] = f
		r.exts = append(r.exts, f.Extension)
	}
	slices.Sort(r.exts)
	return r, nil
}

// DefaultRegistry returns the v0 layout registry: csv and orc.
func DefaultRegistry() *Registry {
	r, err := NewRegistry(CSV, ORC)
	if err != nil {
		panic(fmt.Errorf("default dataset registry: %w", err))
	}
	return r
}

// Extensions returns the registered extensions in sorted order.
func (r *Registry) Extensions() []string {
	return slices.Clone(r.exts)
}

// Lookup returns the format registered for ext.
func (r *Registry) Lookup(ext string) (Format, bool) {
	f, ok := r.byExt[ext]
	return f, ok
}

// IsValidDataset reports whether name ends with a registered extension.
func (r *Registry) IsValidDataset(name string) bool {
	for _, ext := range r.exts {
		if strings.HasSuffix(name, ext) {
			return true
		}
	}
	return false
}

// PathToDatasetName turns a listing entry such as "v0/sales.csv/" into the
// dataset name "sales.csv". It returns false for empty names, hidden
// entries (leading ".") and names without a registered extension.
func (r *Registry) PathToDatasetName(p string) (string, bool) {
	p = strings.TrimRight(p, "/")
	name := p
	if i := strings.LastIndexByte(p, '/'); i >= 0 {
		name = p[i+1:]
	}
	if name == "" || strings.HasPrefix(name, ".") || !r.IsValidDataset(name) {
		return "", false
	}
	return name, true
}

// SplitDataset splits a dataset name on its final "." and looks the
// extension up. Callers use it on names they already know are datasets, so an
// unregistered extension is an error rather than a skip.
func (r *Registry) SplitDataset(name string) (Identity, error) {
	i := strings.LastIndexByte(name, '.')
	if i <= 0 {
		return Identity{}, &UnknownFormatError{Name: name}
	}
	base, ext := name[:i], name[i:]
	f, ok := r.byExt[ext]
	if !ok {
		return Identity{}, &UnknownFormatError{Name: name, Extension: ext}
	}
	return Identity{Basename: base, Format: f}, nil
}

// Resolve maps a raw listing path straight to an Identity.
func (r *Registry) Resolve(p string) (Identity, error) {
	name, ok := r.PathToDatasetName(p)
	if !ok {
		return Identity{}, fmt.Errorf("%q: %w", p, ErrInvalidDatasetPath)
	}
	return r.SplitDataset(name)
}
