package hnf

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/scigolib/hnf/internal/store"
)

// Writer adds neurons to an archive. Changes are staged in memory and
// written atomically by Close; Abort leaves the file untouched. A Writer
// is not safe for concurrent use and an archive must have one writer at a
// time.
type Writer struct {
	path   string
	opts   *options
	logger *Logger
	format *Format

	mu     sync.Mutex
	src    *store.File
	root   *store.Group
	closed bool
}

// OpenWriter opens path for writing. In ModeAppend an existing archive is
// loaded and its declared format must agree with the writer's, otherwise
// OpenWriter fails with a *FormatConflictError before anything is
// written. ModeOverwrite starts from an empty archive.
func OpenWriter(path string, opts ...Option) (*Writer, error) {
	o := newOptions(true, opts)
	if !o.serialized && !o.raw {
		return nil, ErrNoStorage
	}

	w := &Writer{path: path, opts: o, logger: o.logger.WithPath(path)}

	stored := ""
	if o.mode == ModeAppend {
		if err := w.load(); err != nil {
			return nil, err
		}
		if w.root != nil {
			if v, ok := w.root.Attr(attrFormatSpec); ok {
				spec, isString := v.(string)
				if !isString {
					w.release()
					return nil, &SchemaError{Path: path, Reason: fmt.Sprintf("%s attribute is %T, want string", attrFormatSpec, v)}
				}
				stored = spec
			} else if w.root.Len() > 0 {
				w.release()
				return nil, &SchemaError{Path: path, Reason: "missing " + attrFormatSpec + " attribute"}
			}
		}
	}

	format, err := o.registry.ResolveWrite(o.format, stored)
	if err != nil {
		w.release()
		return nil, err
	}
	w.format = format

	if w.root == nil {
		w.root = store.New()
	}
	if err := w.root.SetAttr(attrFormatSpec, format.Spec); err != nil {
		w.release()
		return nil, err
	}
	url := format.URL
	if url == "" {
		url = FormatURL
	}
	if err := w.root.SetAttr(attrFormatURL, url); err != nil {
		w.release()
		return nil, err
	}
	return w, nil
}

// load opens an existing archive for appending. A missing file is not an
// error.
func (w *Writer) load() error {
	f, err := store.Open(w.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return &SchemaError{Path: w.path, Reason: "cannot open archive", cause: err}
	}
	root, err := f.Root()
	if err != nil {
		_ = f.Close()
		return &SchemaError{Path: w.path, Reason: "cannot read root group", cause: err}
	}
	w.src, w.root = f, root
	return nil
}

func (w *Writer) release() {
	if w.src != nil {
		_ = w.src.Close()
		w.src = nil
	}
}

// Format returns the format the writer uses.
func (w *Writer) Format() *Format {
	return w.format
}

// Write stages neurons. Each neuron is validated and checked for
// collisions before its group is touched, so a failing neuron leaves the
// staged archive as it was.
func (w *Writer) Write(ctx context.Context, neurons ...Neuron) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrClosed
	}
	for _, n := range neurons {
		if err := ctx.Err(); err != nil {
			return err
		}
		start := time.Now()
		id, err := w.writeOne(n)
		w.opts.metrics.RecordWrite(id, n.Kind(), time.Since(start), err)
		w.logger.LogWrite(ctx, id, n.Kind(), err)
		if err != nil {
			return err
		}
	}
	return nil
}

func (w *Writer) writeOne(n Neuron) (string, error) {
	info := n.NeuronInfo()
	id, err := NormalizeID(info.ID)
	if err != nil {
		return info.ID, err
	}
	if err := n.Validate(); err != nil {
		return id, err
	}
	c, err := w.format.codec(n.Kind())
	if err != nil {
		return id, err
	}
	annotations := w.opts.annotations.pick(slices.Sorted(maps.Keys(info.Annotations)))
	if err := w.precheck(id, n.Kind(), info, annotations); err != nil {
		return id, err
	}

	// Changes go to a shallow copy of the neuron group, which replaces the
	// staged one only once every step succeeded.
	g := store.New()
	if w.root.Has(id) {
		stored, err := w.root.Group(id)
		if err != nil {
			return id, fmt.Errorf("neuron %s: %w", id, err)
		}
		g = stored.Clone()
	}

	block := store.New()
	eo := encodeOptions{serialized: w.opts.serialized, raw: w.opts.raw, compression: w.opts.compression}
	if err := c.encode(n, block, eo); err != nil {
		return id, fmt.Errorf("neuron %s: %s: %w", id, n.Kind(), err)
	}
	if err := g.ReplaceGroup(n.Kind().String(), block); err != nil {
		return id, err
	}
	for _, name := range annotations {
		if err := writeAnnotation(g, id, name, info.Annotations[name], w.opts.overwrite, w.opts.compression); err != nil {
			return id, fmt.Errorf("neuron %s: %w", id, err)
		}
	}
	if info.Name != "" {
		if err := g.SetAttr(attrNeuronName, info.Name); err != nil {
			return id, fmt.Errorf("neuron %s: %w", id, err)
		}
	}

	if err := w.root.ReplaceGroup(id, g); err != nil {
		return id, err
	}
	return id, nil
}

// precheck rejects collisions and unsupported annotations before any
// change is staged.
func (w *Writer) precheck(id string, k Kind, info *Info, annotations []string) error {
	for _, name := range annotations {
		if _, ok := info.Annotations[name].(*Table); !ok {
			return &UnsupportedAnnotationTypeError{Name: name, Type: fmt.Sprintf("%T", info.Annotations[name])}
		}
	}
	if !w.root.Has(id) {
		return nil
	}
	g, err := w.root.Group(id)
	if err != nil {
		return fmt.Errorf("neuron %s: %w", id, err)
	}
	if w.opts.overwrite {
		return nil
	}
	if g.Has(k.String()) {
		return &BlockExistsError{ID: id, Block: k.String()}
	}
	stored, err := annotationNames(g)
	if err != nil {
		return fmt.Errorf("neuron %s: %w", id, err)
	}
	for _, name := range annotations {
		if slices.Contains(stored, name) {
			return &BlockExistsError{ID: id, Block: annotationsGroup + "/" + name}
		}
	}
	return nil
}

// Close writes the staged archive and releases the writer.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	defer w.release()

	return store.Save(w.path, w.root)
}

// Abort discards staged changes.
func (w *Writer) Abort() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	w.release()
}

// Write stores neurons in the archive at path, creating it if needed.
// Nothing is written if any neuron fails.
func Write(ctx context.Context, path string, neurons []Neuron, opts ...Option) error {
	w, err := OpenWriter(path, opts...)
	if err != nil {
		return err
	}
	if err := w.Write(ctx, neurons...); err != nil {
		w.Abort()
		return err
	}
	return w.Close()
}
