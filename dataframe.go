package hnf

import (
	"fmt"
	"slices"
	"strings"

	"github.com/scigolib/hnf/internal/store"
)

// hiddenPrefix marks datasets read_dataframe skips by default.
const hiddenPrefix = "."

// attrColumnType records column types the container cannot express.
const attrColumnType = "hnf_column_type"

type frameWriteOptions struct {
	subset      []string
	exclude     []string
	overwrite   bool
	compression Compression
}

type frameReadOptions struct {
	subset     []string
	exclude    []string
	skipHidden bool
}

// selected applies subset and exclude filters. An explicit subset entry
// also unhides a hidden name.
func selected(name string, subset, exclude []string, skipHidden bool) bool {
	if slices.Contains(exclude, name) {
		return false
	}
	if subset != nil {
		return slices.Contains(subset, name)
	}
	return !skipHidden || !strings.HasPrefix(name, hiddenPrefix)
}

// writeDataframe stores every selected column of t as its own compressed
// dataset under dst.
func writeDataframe(t *Table, dst *store.Group, o frameWriteOptions) error {
	for _, name := range t.Columns() {
		if !selected(name, o.subset, o.exclude, false) {
			continue
		}
		if dst.Has(name) {
			if !o.overwrite {
				return &ColumnExistsError{Column: name}
			}
			dst.Delete(name)
		}

		col, _ := t.Column(name)
		ds, err := columnDataset(col)
		if err != nil {
			return fmt.Errorf("column %q: %w", name, err)
		}
		if _, ok := col.([]bool); ok {
			if err := ds.SetAttr(attrColumnType, "bool"); err != nil {
				return err
			}
		}
		if err := dst.CreateDataset(name, ds, store.WithCompression(o.compression)); err != nil {
			return err
		}
	}
	return nil
}

func columnDataset(col any) (*store.Dataset, error) {
	switch c := col.(type) {
	case []float64:
		return store.NewNumeric(c)
	case []float32:
		return store.NewNumeric(c)
	case []int64:
		return store.NewNumeric(c)
	case []int32:
		return store.NewNumeric(c)
	case []uint64:
		return store.NewNumeric(c)
	case []uint32:
		return store.NewNumeric(c)
	case []uint8:
		return store.NewNumeric(c)
	case []bool:
		b := make([]uint8, len(c))
		for i, v := range c {
			if v {
				b[i] = 1
			}
		}
		return store.NewNumeric(b)
	case []string:
		return store.NewStrings(c)
	case Categorical:
		return store.NewStrings(c.Values())
	}
	return nil, fmt.Errorf("hnf: unsupported column type %T", col)
}

// readDataframe rebuilds a table from the datasets under src. 1-D
// datasets become columns; a 2-D dataset "xyz" of width 3 becomes
// columns xyz_0, xyz_1 and xyz_2.
func readDataframe(src *store.Group, o frameReadOptions) (*Table, error) {
	t := NewTable()
	for _, name := range src.Names() {
		if !selected(name, o.subset, o.exclude, o.skipHidden) {
			continue
		}
		isGroup, err := src.IsGroup(name)
		if err != nil {
			return nil, err
		}
		if isGroup {
			continue
		}
		ds, err := src.Dataset(name)
		if err != nil {
			return nil, err
		}

		vals, err := ds.Values()
		if err != nil {
			return nil, fmt.Errorf("dataset %q: %w", name, err)
		}
		if kind, _ := ds.Attr(attrColumnType); kind == "bool" {
			if b, ok := vals.([]uint8); ok {
				bools := make([]bool, len(b))
				for i, v := range b {
					bools[i] = v != 0
				}
				vals = bools
			}
		}

		shape := ds.Shape()
		switch len(shape) {
		case 1:
			if err := t.AddColumn(name, vals); err != nil {
				return nil, err
			}
		case 2:
			cols, err := splitColumns(vals, int(shape[0]), int(shape[1])) //nolint:gosec // G115: shape matches decoded data
			if err != nil {
				return nil, fmt.Errorf("dataset %q: %w", name, err)
			}
			for i, col := range cols {
				if err := t.AddColumn(fmt.Sprintf("%s_%d", name, i), col); err != nil {
					return nil, err
				}
			}
		default:
			return nil, &UnsupportedShapeError{Name: name, Shape: shape}
		}
	}
	return t, nil
}

func splitColumns(vals any, rows, cols int) ([]any, error) {
	switch v := vals.(type) {
	case []float64:
		return split(v, rows, cols), nil
	case []float32:
		return split(v, rows, cols), nil
	case []int64:
		return split(v, rows, cols), nil
	case []int32:
		return split(v, rows, cols), nil
	case []uint64:
		return split(v, rows, cols), nil
	case []uint32:
		return split(v, rows, cols), nil
	case []uint8:
		return split(v, rows, cols), nil
	case []bool:
		return split(v, rows, cols), nil
	case []string:
		return split(v, rows, cols), nil
	}
	return nil, fmt.Errorf("hnf: cannot split %T", vals)
}

// split turns a row-major rows x cols matrix into cols columns.
func split[T any](vals []T, rows, cols int) []any {
	out := make([]any, cols)
	for j := range out {
		col := make([]T, rows)
		for i := range col {
			col[i] = vals[i*cols+j]
		}
		out[j] = col
	}
	return out
}
