package hnf

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"strings"
	"sync"
	"time"

	"github.com/scigolib/hnf/internal/store"
)

// Result is the outcome of a read: decoded neurons in request order and,
// under ErrorModeWarn or ErrorModeIgnore, the failures keyed by id.
type Result struct {
	Neurons []Neuron
	Errors  map[string]error
}

// ByID returns every decoded representation of the neuron id.
func (r *Result) ByID(id string) []Neuron {
	var out []Neuron
	for _, n := range r.Neurons {
		if n.NeuronInfo().ID == id {
			out = append(out, n)
		}
	}
	return out
}

// Reader is an open archive. A Reader is not safe for concurrent use;
// parallel reads open one handle per neuron.
type Reader struct {
	path   string
	opts   *options
	logger *Logger
	format *Format

	mu     sync.Mutex
	file   *store.File
	root   *store.Group
	closed bool
}

// OpenReader opens an archive and validates its declared format. An
// archive that cannot be parsed, declares no format or declares one the
// registry cannot read fails with a *SchemaError.
func OpenReader(path string, opts ...Option) (*Reader, error) {
	return openReader(path, newOptions(false, opts))
}

func openReader(path string, o *options) (*Reader, error) {
	var sopts []store.Option
	if o.headerCache != nil {
		sopts = append(sopts, store.WithHeaderCache(o.headerCache))
	}
	f, err := store.Open(path, sopts...)
	if err != nil {
		return nil, &SchemaError{Path: path, Reason: "cannot open archive", cause: err}
	}

	format, root, err := checkSchema(f, o)
	if err != nil {
		_ = f.Close()
		return nil, err
	}

	return &Reader{
		path:   path,
		opts:   o,
		logger: o.logger.WithPath(path),
		format: format,
		file:   f,
		root:   root,
	}, nil
}

func checkSchema(f *store.File, o *options) (*Format, *store.Group, error) {
	root, err := f.Root()
	if err != nil {
		return nil, nil, &SchemaError{Path: f.Path(), Reason: "cannot read root group", cause: err}
	}
	v, ok := root.Attr(attrFormatSpec)
	if !ok {
		return nil, nil, &SchemaError{Path: f.Path(), Reason: "missing " + attrFormatSpec + " attribute"}
	}
	spec, ok := v.(string)
	if !ok {
		return nil, nil, &SchemaError{Path: f.Path(), Reason: fmt.Sprintf("%s attribute is %T, want string", attrFormatSpec, v)}
	}
	format, err := o.registry.ResolveRead(o.format, spec)
	if err != nil {
		return nil, nil, &SchemaError{Path: f.Path(), Reason: "incompatible format", cause: err}
	}
	return format, root, nil
}

// Format returns the format the archive is read with.
func (r *Reader) Format() *Format {
	return r.format
}

// IDs lists the neuron ids in storage order.
func (r *Reader) IDs() ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, ErrClosed
	}
	return neuronIDs(r.root)
}

func neuronIDs(root *store.Group) ([]string, error) {
	var ids []string
	for _, name := range root.Names() {
		if strings.HasPrefix(name, hiddenPrefix) {
			continue
		}
		isGroup, err := root.IsGroup(name)
		if err != nil {
			return nil, err
		}
		if isGroup {
			ids = append(ids, name)
		}
	}
	return ids, nil
}

// ReadNeuron decodes the representations the read policy selects for
// one neuron. A neuron matching no policy chain yields an empty slice.
func (r *Reader) ReadNeuron(id any) ([]Neuron, error) {
	key, err := NormalizeID(id)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, ErrClosed
	}
	return r.readOne(key)
}

// Read decodes every selected neuron, in parallel when the options ask
// for it. Under ErrorModeStop the first failure aborts the read.
func (r *Reader) Read(ctx context.Context) (*Result, error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, ErrClosed
	}
	ids, err := r.selectIDs()
	r.mu.Unlock()
	if err != nil {
		return nil, err
	}

	var res *Result
	if r.opts.useParallel(len(ids)) {
		res, err = r.readParallel(ctx, ids)
	} else {
		res, err = r.readSequential(ctx, ids)
	}

	var decoded, failed int
	if res != nil {
		decoded, failed = len(res.Neurons), len(res.Errors)
	}
	r.logger.LogRead(ctx, len(ids), decoded, failed, err)
	return res, err
}

// Close releases the archive. It is idempotent.
func (r *Reader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	return r.file.Close()
}

// selectIDs applies the subset option. Requested ids that are not in the
// archive are dropped.
func (r *Reader) selectIDs() ([]string, error) {
	all, err := neuronIDs(r.root)
	if err != nil {
		return nil, err
	}
	if r.opts.subset == nil {
		return all, nil
	}
	want, err := normalizeIDs(r.opts.subset)
	if err != nil {
		return nil, err
	}
	ids := want[:0]
	for _, id := range want {
		if r.root.Has(id) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (r *Reader) readSequential(ctx context.Context, ids []string) (*Result, error) {
	res := &Result{Errors: make(map[string]error)}
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		r.mu.Lock()
		neurons, err := r.readOne(id)
		r.mu.Unlock()
		if err != nil {
			if err := r.handleFailure(ctx, res, id, err); err != nil {
				return nil, err
			}
			continue
		}
		res.Neurons = append(res.Neurons, neurons...)
	}
	return res, nil
}

// handleFailure applies the error mode to one failed neuron. It returns
// the error when the read must stop.
func (r *Reader) handleFailure(ctx context.Context, res *Result, id string, err error) error {
	switch r.opts.onError {
	case ErrorModeWarn:
		r.logger.LogNeuronFailure(ctx, id, err)
	case ErrorModeIgnore:
	default:
		return err
	}
	res.Errors[id] = err
	return nil
}

// readOne decodes one neuron group. The caller holds r.mu.
func (r *Reader) readOne(id string) (neurons []Neuron, err error) {
	start := time.Now()
	var kinds []Kind
	defer func() {
		r.opts.metrics.RecordRead(id, kinds, time.Since(start), err)
	}()

	if !r.root.Has(id) {
		return nil, fmt.Errorf("%w: %s", ErrNeuronNotFound, id)
	}
	g, err := r.root.Group(id)
	if err != nil {
		return nil, &DecodeError{ID: id, Err: err}
	}

	kinds = r.opts.policy.Select(func(k Kind) bool {
		ok, err := g.IsGroup(k.String())
		return err == nil && ok
	})
	if len(kinds) == 0 {
		return nil, nil
	}

	var name string
	if v, ok := g.Attr(attrNeuronName); ok {
		name, _ = v.(string)
	}
	annotations, err := readAnnotations(g, r.opts.annotations)
	if err != nil {
		return nil, &DecodeError{ID: id, Err: err}
	}

	opts := decodeOptions{strict: r.opts.strict, preferRaw: r.opts.preferRaw}
	for _, k := range kinds {
		n, err := r.decodeBlock(g, id, k, opts)
		if err != nil {
			return nil, err
		}
		info := n.NeuronInfo()
		info.ID = id
		if name != "" {
			info.Name = name
		}
		if annotations != nil {
			info.Annotations = maps.Clone(annotations)
		}
		if err := n.Validate(); err != nil {
			return nil, &DecodeError{ID: id, Kind: k, Err: err}
		}
		neurons = append(neurons, n)
	}
	return neurons, nil
}

func (r *Reader) decodeBlock(g *store.Group, id string, k Kind, o decodeOptions) (Neuron, error) {
	c, err := r.format.codec(k)
	if err != nil {
		return nil, &DecodeError{ID: id, Kind: k, Err: err}
	}
	block, err := g.Group(k.String())
	if err != nil {
		return nil, &DecodeError{ID: id, Kind: k, Err: err}
	}
	n, err := c.decode(block, o)
	if errors.Is(err, errNoData) {
		return nil, &RepresentationMissingError{ID: id, Kind: k}
	}
	if err != nil {
		return nil, &DecodeError{ID: id, Kind: k, Err: err}
	}
	return n, nil
}

// Read opens the archive at path, decodes the selected neurons and closes
// it again.
func Read(ctx context.Context, path string, opts ...Option) (*Result, error) {
	o := newOptions(false, opts)
	if o.headerCache == nil {
		c, err := NewHeaderCache(0)
		if err != nil {
			return nil, err
		}
		o.headerCache = c
	}
	r, err := openReader(path, o)
	if err != nil {
		return nil, err
	}
	defer func() { _ = r.Close() }()
	return r.Read(ctx)
}
