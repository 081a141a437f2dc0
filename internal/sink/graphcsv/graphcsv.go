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

// Package graphcsv writes catalog records as node and relationship CSV
// files laid out for bulk graph import: one file per node label under
// nodes/ and one per relationship type under relationships/.
package graphcsv

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/hashicorp/go-multierror"

	"github.com/cardinalhq/lakescanner/internal/records"
	"github.com/cardinalhq/lakescanner/internal/sink"
)

const (
	LabelSchema = "Schema"
	LabelTable  = "Table"
	LabelColumn = "Column"
	LabelTag    = "Tag"
	LabelStat   = "Stat"

	NodesDir         = "nodes"
	RelationshipsDir = "relationships"
)

var relationshipHeader = []string{"START_LABEL", "END_LABEL", "START_KEY", "END_KEY", "TYPE", "REVERSE_TYPE"}

type attr struct {
	name, value string
}

type node struct {
	key, label string
	attrs      []attr
}

type relationship struct {
	startLabel, endLabel string
	startKey, endKey     string
	typ, reverse         string
}

type csvFile struct {
	f      *os.File
	w      *csv.Writer
	header []string
}

// Loader is a sink.Loader writing graph CSV files under a directory.
// It is not safe for concurrent use.
type Loader struct {
	dir   string
	files map[string]*csvFile
	// nodes already written, keyed by label and key
	seen mapset.Set[string]
}

var _ sink.Loader = (*Loader)(nil)

func New(dir string) (*Loader, error) {
	for _, sub := range []string{NodesDir, RelationshipsDir} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			return nil, err
		}
	}
	return &Loader{
		dir:   dir,
		files: map[string]*csvFile{},
		seen:  mapset.NewThreadUnsafeSet[string](),
	}, nil
}

// Dir is the root the node and relationship directories live under.
func (l *Loader) Dir() string { return l.dir }

func (l *Loader) Load(ctx context.Context, record any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	switch r := record.(type) {
	case records.TableMetadata:
		return l.loadTable(r)
	case *records.TableMetadata:
		return l.loadTable(*r)
	case records.ColumnStat:
		return l.loadStat(r)
	case *records.ColumnStat:
		return l.loadStat(*r)
	default:
		return sink.Unsupported("graphcsv", record)
	}
}

func schemaKey(tc records.TableContext) string {
	return fmt.Sprintf("%s://%s.%s", tc.Database, tc.Cluster, tc.Schema)
}

func (l *Loader) loadTable(m records.TableMetadata) error {
	tc := m.TableContext()
	tableKey := m.Key()

	if err := l.writeNode(node{
		key:   schemaKey(tc),
		label: LabelSchema,
		attrs: []attr{{"name", m.Schema}},
	}); err != nil {
		return err
	}
	if err := l.writeNode(node{
		key:   tableKey,
		label: LabelTable,
		attrs: []attr{
			{"name", m.Name},
			{"is_view", strconv.FormatBool(m.IsView)},
			{"description", m.Description},
		},
	}); err != nil {
		return err
	}
	if err := l.writeRelationship(relationship{LabelSchema, LabelTable, schemaKey(tc), tableKey, "TABLE", "TABLE_OF"}); err != nil {
		return err
	}

	for _, c := range m.Columns {
		colKey := tableKey + "/" + c.Name
		if err := l.writeNode(node{
			key:   colKey,
			label: LabelColumn,
			attrs: []attr{
				{"name", c.Name},
				{"col_type", c.Type},
				{"sort_order", strconv.Itoa(c.SortOrder)},
				{"description", c.Description},
			},
		}); err != nil {
			return err
		}
		if err := l.writeRelationship(relationship{LabelTable, LabelColumn, tableKey, colKey, "COLUMN", "COLUMN_OF"}); err != nil {
			return err
		}
	}

	for _, tag := range m.Tags {
		if err := l.writeNode(node{key: tag, label: LabelTag, attrs: []attr{{"tag_type", "default"}}}); err != nil {
			return err
		}
		if err := l.writeRelationship(relationship{LabelTable, LabelTag, tableKey, tag, "TAGGED_BY", "TAG"}); err != nil {
			return err
		}
	}
	return nil
}

func (l *Loader) loadStat(s records.ColumnStat) error {
	if err := l.writeNode(node{
		key:   s.Key(),
		label: LabelStat,
		attrs: []attr{
			{"stat_name", s.StatName},
			{"stat_val", s.StatValue},
			{"start_epoch", strconv.FormatInt(s.StartTimestamp.Unix(), 10)},
			{"end_epoch", strconv.FormatInt(s.EndTimestamp.Unix(), 10)},
		},
	}); err != nil {
		return err
	}
	return l.writeRelationship(relationship{LabelColumn, LabelStat, s.ColumnKey(), s.Key(), "STAT", "STAT_OF"})
}

func (l *Loader) writeNode(n node) error {
	id := n.label + "\x00" + n.key
	if l.seen.Contains(id) {
		return nil
	}
	header := make([]string, 0, 2+len(n.attrs))
	row := make([]string, 0, 2+len(n.attrs))
	header = append(header, "KEY", "LABEL")
	row = append(row, n.key, n.label)
	for _, a := range n.attrs {
		header = append(header, a.name)
		row = append(row, a.value)
	}
	if err := l.write(filepath.Join(NodesDir, n.label+".csv"), header, row); err != nil {
		return err
	}
	l.seen.Add(id)
	return nil
}

func (l *Loader) writeRelationship(r relationship) error {
	name := fmt.Sprintf("%s_%s_%s.csv", r.startLabel, r.endLabel, r.typ)
	return l.write(filepath.Join(RelationshipsDir, name), relationshipHeader,
		[]string{r.startLabel, r.endLabel, r.startKey, r.endKey, r.typ, r.reverse})
}

func (l *Loader) write(name string, header, row []string) error {
	cf, ok := l.files[name]
	if !ok {
		f, err := os.Create(filepath.Join(l.dir, name))
		if err != nil {
			return err
		}
		cf = &csvFile{f: f, w: csv.NewWriter(f), header: header}
		if err := cf.w.Write(header); err != nil {
			_ = f.Close()
			return err
		}
		l.files[name] = cf
	}
	if len(row) != len(cf.header) {
		return fmt.Errorf("%s: row has %d fields, header has %d", name, len(row), len(cf.header))
	}
	return cf.w.Write(row)
}

// Close flushes and closes every open file.
func (l *Loader) Close() error {
	var result *multierror.Error
	for name, cf := range l.files {
		cf.w.Flush()
		if err := cf.w.Error(); err != nil {
			result = multierror.Append(result, fmt.Errorf("flush %s: %w", name, err))
		}
		if err := cf.f.Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	l.files = map[string]*csvFile{}
	return result.ErrorOrNil()
}
