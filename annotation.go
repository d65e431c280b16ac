package hnf

import (
	"fmt"
	"maps"
	"slices"

	"github.com/scigolib/hnf/internal/store"
)

// writeAnnotation stores one annotation table under
// <neuron>/annotations/<name>. Table attributes become attributes of the
// annotation group. The annotations group is copied before it changes, so
// a clone of neuron never alters the group it was cloned from.
func writeAnnotation(neuron *store.Group, id, name string, value any, overwrite bool, c Compression) error {
	t, ok := value.(*Table)
	if !ok {
		return &UnsupportedAnnotationTypeError{Name: name, Type: fmt.Sprintf("%T", value)}
	}

	parent := store.New()
	if neuron.Has(annotationsGroup) {
		stored, err := neuron.Group(annotationsGroup)
		if err != nil {
			return err
		}
		parent = stored.Clone()
	}
	if parent.Has(name) && !overwrite {
		return &BlockExistsError{ID: id, Block: annotationsGroup + "/" + name}
	}

	dst := store.New()
	if err := writeDataframe(t, dst, frameWriteOptions{compression: c}); err != nil {
		return fmt.Errorf("annotation %q: %w", name, err)
	}
	for _, k := range slices.Sorted(maps.Keys(t.Attrs)) {
		if err := dst.SetAttr(k, t.Attrs[k]); err != nil {
			return fmt.Errorf("annotation %q: %w", name, err)
		}
	}
	if err := parent.ReplaceGroup(name, dst); err != nil {
		return err
	}
	return neuron.ReplaceGroup(annotationsGroup, parent)
}

// annotationNames lists the annotations stored for a neuron.
func annotationNames(neuron *store.Group) ([]string, error) {
	if !neuron.Has(annotationsGroup) {
		return nil, nil
	}
	g, err := neuron.Group(annotationsGroup)
	if err != nil {
		return nil, err
	}
	return g.Names(), nil
}

// readAnnotations decodes the annotations picked by sel. Names the
// neuron does not have are skipped.
func readAnnotations(neuron *store.Group, sel AnnotationSelector) (map[string]any, error) {
	if sel.IsNone() || !neuron.Has(annotationsGroup) {
		return nil, nil
	}
	parent, err := neuron.Group(annotationsGroup)
	if err != nil {
		return nil, err
	}

	out := make(map[string]any)
	for _, name := range sel.pick(parent.Names()) {
		g, err := parent.Group(name)
		if err != nil {
			return nil, fmt.Errorf("annotation %q: %w", name, err)
		}
		t, err := readDataframe(g, frameReadOptions{skipHidden: true})
		if err != nil {
			return nil, fmt.Errorf("annotation %q: %w", name, err)
		}
		for _, a := range g.Attrs() {
			if t.Attrs == nil {
				t.Attrs = make(map[string]any)
			}
			t.Attrs[a.Name] = a.Value
		}
		out[name] = t
	}
	return out, nil
}
