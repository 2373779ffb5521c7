package models

import (
	"database/sql"
	"fmt"
	"strconv"
	"time"
)

// Kind identifies the value type held by a Column.
type Kind int

const (
	KindString Kind = iota
	KindInt
	KindTime
	KindBool
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInt:
		return "int64"
	case KindTime:
		return "timestamp"
	case KindBool:
		return "bool"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// TimeLayout is the text form of timestamps in written tables.
const TimeLayout = "2006-01-02 15:04:05.999999-07:00"

// Column is a named, homogeneously typed sequence of cells. Columns are
// immutable: constructors copy their input and accessors return copies.
type Column struct {
	name    string
	kind    Kind
	strings []sql.NullString
	ints    []sql.NullInt64
	times   []sql.NullTime
	bools   []bool
}

func StringColumn(name string, values []sql.NullString) Column {
	return Column{name: name, kind: KindString, strings: append([]sql.NullString(nil), values...)}
}

func IntColumn(name string, values []sql.NullInt64) Column {
	return Column{name: name, kind: KindInt, ints: append([]sql.NullInt64(nil), values...)}
}

func TimeColumn(name string, values []sql.NullTime) Column {
	return Column{name: name, kind: KindTime, times: append([]sql.NullTime(nil), values...)}
}

func BoolColumn(name string, values []bool) Column {
	return Column{name: name, kind: KindBool, bools: append([]bool(nil), values...)}
}

func (c Column) Name() string { return c.name }
func (c Column) Kind() Kind   { return c.kind }

func (c Column) Len() int {
	switch c.kind {
	case KindInt:
		return len(c.ints)
	case KindTime:
		return len(c.times)
	case KindBool:
		return len(c.bools)
	default:
		return len(c.strings)
	}
}

// Strings returns the cells of a string column, or nil for other kinds.
func (c Column) Strings() []sql.NullString { return append([]sql.NullString(nil), c.strings...) }

// Ints returns the cells of an integer column, or nil for other kinds.
func (c Column) Ints() []sql.NullInt64 { return append([]sql.NullInt64(nil), c.ints...) }

// Times returns the cells of a timestamp column, or nil for other kinds.
func (c Column) Times() []sql.NullTime { return append([]sql.NullTime(nil), c.times...) }

// Bools returns the cells of a boolean column, or nil for other kinds.
func (c Column) Bools() []bool { return append([]bool(nil), c.bools...) }

// IsNull reports whether cell i holds no value. Boolean cells are never null.
func (c Column) IsNull(i int) bool {
	switch c.kind {
	case KindInt:
		return !c.ints[i].Valid
	case KindTime:
		return !c.times[i].Valid
	case KindBool:
		return false
	default:
		return !c.strings[i].Valid
	}
}

// NullCount returns the number of null cells.
func (c Column) NullCount() int {
	n := 0
	for i := 0; i < c.Len(); i++ {
		if c.IsNull(i) {
			n++
		}
	}
	return n
}

// Format renders cell i as text. Null cells render as the empty string.
func (c Column) Format(i int) string {
	if c.IsNull(i) {
		return ""
	}
	switch c.kind {
	case KindInt:
		return strconv.FormatInt(c.ints[i].Int64, 10)
	case KindTime:
		return c.times[i].Time.Format(TimeLayout)
	case KindBool:
		if c.bools[i] {
			return "True"
		}
		return "False"
	default:
		return c.strings[i].String
	}
}

// Renamed returns a copy of the column under a new name.
func (c Column) Renamed(name string) Column {
	c.name = name
	return c
}

// Table is an ordered set of uniquely named columns sharing one row index.
// Tables are values: every operation returns a new Table and leaves the
// receiver untouched.
type Table struct {
	columns []Column
	rows    int
}

// NewTable builds a table from columns of equal length.
func NewTable(columns ...Column) (*Table, error) {
	t := &Table{columns: make([]Column, 0, len(columns))}
	seen := make(map[string]bool, len(columns))
	for i, col := range columns {
		if col.name == "" {
			return nil, fmt.Errorf("column %d has no name", i)
		}
		if seen[col.name] {
			return nil, fmt.Errorf("duplicate column %q", col.name)
		}
		seen[col.name] = true
		if i == 0 {
			t.rows = col.Len()
		} else if col.Len() != t.rows {
			return nil, fmt.Errorf("column %q has %d rows, want %d", col.name, col.Len(), t.rows)
		}
		t.columns = append(t.columns, col)
	}
	return t, nil
}

// MustTable is NewTable for statically known inputs; it panics on error.
func MustTable(columns ...Column) *Table {
	t, err := NewTable(columns...)
	if err != nil {
		panic(err)
	}
	return t
}

func (t *Table) Len() int   { return t.rows }
func (t *Table) Width() int { return len(t.columns) }

func (t *Table) Names() []string {
	names := make([]string, len(t.columns))
	for i, c := range t.columns {
		names[i] = c.name
	}
	return names
}

func (t *Table) index(name string) int {
	for i, c := range t.columns {
		if c.name == name {
			return i
		}
	}
	return -1
}

func (t *Table) Has(name string) bool { return t.index(name) >= 0 }

func (t *Table) Column(name string) (Column, bool) {
	i := t.index(name)
	if i < 0 {
		return Column{}, false
	}
	return t.columns[i], true
}

// Columns returns the columns in table order.
func (t *Table) Columns() []Column { return append([]Column(nil), t.columns...) }

// WithColumn returns a table with col replacing the column of the same name,
// or appended at the end when no such column exists.
func (t *Table) WithColumn(col Column) (*Table, error) {
	cols := t.Columns()
	if i := t.index(col.name); i >= 0 {
		cols[i] = col
	} else {
		cols = append(cols, col)
	}
	if len(t.columns) == 0 {
		return NewTable(cols...)
	}
	if col.Len() != t.rows {
		return nil, fmt.Errorf("column %q has %d rows, want %d", col.name, col.Len(), t.rows)
	}
	return &Table{columns: cols, rows: t.rows}, nil
}

// Rename returns a table with column from renamed to to, keeping its position.
func (t *Table) Rename(from, to string) (*Table, error) {
	i := t.index(from)
	if i < 0 {
		return nil, fmt.Errorf("column %q not found", from)
	}
	if from != to && t.Has(to) {
		return nil, fmt.Errorf("duplicate column %q", to)
	}
	cols := t.Columns()
	cols[i] = cols[i].Renamed(to)
	return &Table{columns: cols, rows: t.rows}, nil
}

// Select returns a table holding only the named columns, in the given order.
func (t *Table) Select(names ...string) (*Table, error) {
	cols := make([]Column, 0, len(names))
	for _, name := range names {
		col, ok := t.Column(name)
		if !ok {
			return nil, fmt.Errorf("column %q not found", name)
		}
		cols = append(cols, col)
	}
	return &Table{columns: cols, rows: t.rows}, nil
}

// Reorder moves the listed columns to the front in the given order, skipping
// names the table lacks, and keeps every other column after them in its
// original relative order.
func (t *Table) Reorder(leading ...string) *Table {
	cols := make([]Column, 0, len(t.columns))
	placed := make(map[string]bool, len(leading))
	for _, name := range leading {
		if placed[name] {
			continue
		}
		if col, ok := t.Column(name); ok {
			cols = append(cols, col)
			placed[name] = true
		}
	}
	for _, col := range t.columns {
		if !placed[col.name] {
			cols = append(cols, col)
		}
	}
	return &Table{columns: cols, rows: t.rows}
}

// NullCounts returns the null count of every column that has at least one
// null, keyed by column name.
func (t *Table) NullCounts() map[string]int {
	counts := make(map[string]int)
	for _, c := range t.columns {
		if n := c.NullCount(); n > 0 {
			counts[c.name] = n
		}
	}
	return counts
}

// Row renders row i as text cells in column order.
func (t *Table) Row(i int) []string {
	out := make([]string, len(t.columns))
	for j, c := range t.columns {
		out[j] = c.Format(i)
	}
	return out
}

// TimeValue is a convenience for building timestamp cells.
func TimeValue(t time.Time) sql.NullTime { return sql.NullTime{Time: t, Valid: true} }

// IntValue is a convenience for building integer cells.
func IntValue(v int64) sql.NullInt64 { return sql.NullInt64{Int64: v, Valid: true} }

// StringValue is a convenience for building string cells.
func StringValue(s string) sql.NullString { return sql.NullString{String: s, Valid: true} }
