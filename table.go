package hnf

import (
	"fmt"
	"math"
	"slices"
)

// Categorical is a column of codes into a list of levels. Code -1 marks a
// missing value. Categoricals are written as their string values.
type Categorical struct {
	Codes  []int32
	Levels []string
}

// Values materializes the represented strings.
func (c Categorical) Values() []string {
	out := make([]string, len(c.Codes))
	for i, code := range c.Codes {
		if code >= 0 && int(code) < len(c.Levels) {
			out[i] = c.Levels[code]
		}
	}
	return out
}

// Table is an ordered set of named, equal-length columns.
//
// Supported column types are []float64, []float32, []int64, []int32,
// []uint64, []uint32, []uint8, []bool, []string and Categorical.
type Table struct {
	// Attrs travel with the table when it is stored as an annotation.
	Attrs map[string]any

	names []string
	cols  map[string]any
	rows  int
}

// NewTable returns an empty table.
func NewTable() *Table {
	return &Table{cols: make(map[string]any)}
}

func columnLen(col any) (int, error) {
	switch c := col.(type) {
	case []float64:
		return len(c), nil
	case []float32:
		return len(c), nil
	case []int64:
		return len(c), nil
	case []int32:
		return len(c), nil
	case []uint64:
		return len(c), nil
	case []uint32:
		return len(c), nil
	case []uint8:
		return len(c), nil
	case []bool:
		return len(c), nil
	case []string:
		return len(c), nil
	case Categorical:
		return len(c.Codes), nil
	}
	return 0, fmt.Errorf("hnf: unsupported column type %T", col)
}

// AddColumn appends a column. The name must be new and the length must
// match the existing columns.
func (t *Table) AddColumn(name string, col any) error {
	if name == "" {
		return fmt.Errorf("hnf: empty column name")
	}
	if _, ok := t.cols[name]; ok {
		return &ColumnExistsError{Column: name}
	}
	n, err := columnLen(col)
	if err != nil {
		return fmt.Errorf("column %q: %w", name, err)
	}
	if len(t.names) > 0 && n != t.rows {
		return fmt.Errorf("%w: column %q has %d rows, table has %d", ErrRaggedTable, name, n, t.rows)
	}
	if t.cols == nil {
		t.cols = make(map[string]any)
	}
	t.names = append(t.names, name)
	t.cols[name] = col
	t.rows = n
	return nil
}

// SetColumn replaces an existing column or appends a new one.
func (t *Table) SetColumn(name string, col any) error {
	if _, ok := t.cols[name]; !ok {
		return t.AddColumn(name, col)
	}
	n, err := columnLen(col)
	if err != nil {
		return fmt.Errorf("column %q: %w", name, err)
	}
	if len(t.names) > 1 && n != t.rows {
		return fmt.Errorf("%w: column %q has %d rows, table has %d", ErrRaggedTable, name, n, t.rows)
	}
	t.cols[name] = col
	t.rows = n
	return nil
}

// DropColumn removes a column, reporting whether it existed.
func (t *Table) DropColumn(name string) bool {
	if _, ok := t.cols[name]; !ok {
		return false
	}
	delete(t.cols, name)
	t.names = slices.DeleteFunc(t.names, func(n string) bool { return n == name })
	if len(t.names) == 0 {
		t.rows = 0
	}
	return true
}

// Column returns the named column.
func (t *Table) Column(name string) (any, bool) {
	c, ok := t.cols[name]
	return c, ok
}

// Has reports whether the named column exists.
func (t *Table) Has(name string) bool {
	_, ok := t.cols[name]
	return ok
}

// Columns returns the column names in order.
func (t *Table) Columns() []string {
	return slices.Clone(t.names)
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return t.rows
}

// Select returns a table holding only the named columns that exist, in
// the order given. Attributes are shared.
func (t *Table) Select(names ...string) *Table {
	out := NewTable()
	out.Attrs = t.Attrs
	for _, name := range names {
		if col, ok := t.cols[name]; ok && !out.Has(name) {
			_ = out.AddColumn(name, col)
		}
	}
	return out
}

// Float64s returns a numeric column converted to float64.
func (t *Table) Float64s(name string) ([]float64, error) {
	col, ok := t.cols[name]
	if !ok {
		return nil, fmt.Errorf("hnf: no column %q", name)
	}
	switch c := col.(type) {
	case []float64:
		return c, nil
	case []float32:
		return convertSlice[float32, float64](c), nil
	case []int64:
		return convertSlice[int64, float64](c), nil
	case []int32:
		return convertSlice[int32, float64](c), nil
	case []uint64:
		return convertSlice[uint64, float64](c), nil
	case []uint32:
		return convertSlice[uint32, float64](c), nil
	case []uint8:
		return convertSlice[uint8, float64](c), nil
	}
	return nil, fmt.Errorf("hnf: column %q of type %T is not numeric", name, col)
}

// Int64s returns an integer column converted to int64. Float columns are
// accepted when every value is integral.
func (t *Table) Int64s(name string) ([]int64, error) {
	col, ok := t.cols[name]
	if !ok {
		return nil, fmt.Errorf("hnf: no column %q", name)
	}
	switch c := col.(type) {
	case []int64:
		return c, nil
	case []int32:
		return convertSlice[int32, int64](c), nil
	case []uint32:
		return convertSlice[uint32, int64](c), nil
	case []uint8:
		return convertSlice[uint8, int64](c), nil
	case []uint64:
		for _, v := range c {
			if v > math.MaxInt64 {
				return nil, fmt.Errorf("hnf: column %q: value %d overflows int64", name, v)
			}
		}
		return convertSlice[uint64, int64](c), nil
	case []float64:
		return integralFloats(name, c)
	case []float32:
		return integralFloats(name, convertSlice[float32, float64](c))
	}
	return nil, fmt.Errorf("hnf: column %q of type %T is not an integer column", name, col)
}

// Strings returns a string or categorical column.
func (t *Table) Strings(name string) ([]string, error) {
	col, ok := t.cols[name]
	if !ok {
		return nil, fmt.Errorf("hnf: no column %q", name)
	}
	switch c := col.(type) {
	case []string:
		return c, nil
	case Categorical:
		return c.Values(), nil
	}
	return nil, fmt.Errorf("hnf: column %q of type %T is not a string column", name, col)
}

func integralFloats(name string, vals []float64) ([]int64, error) {
	out := make([]int64, len(vals))
	for i, v := range vals {
		if v != math.Trunc(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("hnf: column %q: value %v is not an integer", name, v)
		}
		out[i] = int64(v)
	}
	return out, nil
}

type number interface {
	~int8 | ~int16 | ~int32 | ~int64 | ~uint8 | ~uint16 | ~uint32 | ~uint64 | ~float32 | ~float64
}

func convertSlice[T, U number](in []T) []U {
	out := make([]U, len(in))
	for i, v := range in {
		out[i] = U(v)
	}
	return out
}
