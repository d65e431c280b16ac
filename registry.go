package hnf

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/scigolib/hnf/internal/store"
)

// FormatURL is written to every archive as provenance.
const FormatURL = "https://github.com/scigolib/hnf"

// Names used inside an archive.
const (
	attrFormatSpec = "format_spec"
	attrFormatURL  = "format_url"
	attrNeuronName = "neuron_name"
	attrUnitsNM    = "units_nm"
	attrSoma       = "soma"
	attrK          = "k"

	blobName         = ".serialized_navis"
	annotationsGroup = "annotations"
)

type encodeOptions struct {
	serialized  bool
	raw         bool
	compression Compression
}

type decodeOptions struct {
	strict    bool
	preferRaw bool
}

// codec stores one representation inside its block group.
type codec interface {
	kind() Kind
	encode(n Neuron, dst *store.Group, o encodeOptions) error
	decode(src *store.Group, o decodeOptions) (Neuron, error)
}

// Format is one version of the archive schema with the codecs that read
// and write it.
type Format struct {
	Spec    string
	Version int
	URL     string

	codecs map[Kind]codec
}

// FormatV1 returns the hnf_v1 schema.
func FormatV1() *Format {
	return &Format{
		Spec:    "hnf_v1",
		Version: 1,
		URL:     FormatURL,
		codecs: map[Kind]codec{
			KindSkeleton: skeletonCodec{},
			KindMesh:     meshCodec{},
			KindDotprops: dotpropsCodec{},
		},
	}
}

// Alias returns a copy of f declared under another spec and version that
// shares f's codecs.
func (f *Format) Alias(spec string, version int) *Format {
	return &Format{Spec: spec, Version: version, URL: f.URL, codecs: f.codecs}
}

func (f *Format) codec(k Kind) (codec, error) {
	c, ok := f.codecs[k]
	if !ok {
		return nil, fmt.Errorf("hnf: format %s has no %s codec", f.Spec, k)
	}
	return c, nil
}

// Registry maps format specs to formats.
type Registry struct {
	mu      sync.RWMutex
	formats map[string]*Format
}

// DefaultRegistry knows every format this package implements.
var DefaultRegistry = mustRegistry(FormatV1())

// NewRegistry returns a registry holding formats.
func NewRegistry(formats ...*Format) (*Registry, error) {
	r := &Registry{formats: make(map[string]*Format)}
	for _, f := range formats {
		if err := r.Register(f); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func mustRegistry(formats ...*Format) *Registry {
	r, err := NewRegistry(formats...)
	if err != nil {
		panic(err)
	}
	return r
}

// Register adds a format. Specs must be unique.
func (r *Registry) Register(f *Format) error {
	if f == nil || f.Spec == "" {
		return fmt.Errorf("hnf: format without spec")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.formats[f.Spec]; ok {
		return fmt.Errorf("hnf: format %q already registered", f.Spec)
	}
	r.formats[f.Spec] = f
	return nil
}

// canonicalSpec accepts the bare version form "v1" for "hnf_v1".
func canonicalSpec(spec string) string {
	if strings.HasPrefix(spec, "v") {
		return "hnf_" + spec
	}
	return spec
}

// Lookup returns the format for spec.
func (r *Registry) Lookup(spec string) (*Format, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if f, ok := r.formats[canonicalSpec(spec)]; ok {
		return f, nil
	}
	return nil, &UnsupportedFormatError{Spec: spec}
}

// Latest returns the format with the highest version.
func (r *Registry) Latest() (*Format, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var latest *Format
	for _, f := range r.formats {
		if latest == nil || f.Version > latest.Version {
			latest = f
		}
	}
	if latest == nil {
		return nil, &UnsupportedFormatError{Spec: FormatLatest}
	}
	return latest, nil
}

// Specs returns the registered specs in sorted order.
func (r *Registry) Specs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	specs := make([]string, 0, len(r.formats))
	for s := range r.formats {
		specs = append(specs, s)
	}
	sort.Strings(specs)
	return specs
}

// ResolveRead picks the format for reading an archive that declares
// stored. "auto" follows the archive; an explicit spec must match it.
func (r *Registry) ResolveRead(requested, stored string) (*Format, error) {
	if requested == FormatAuto || requested == "" {
		return r.Lookup(stored)
	}
	var (
		f   *Format
		err error
	)
	if requested == FormatLatest {
		f, err = r.Latest()
	} else {
		f, err = r.Lookup(requested)
	}
	if err != nil {
		return nil, err
	}
	if f.Spec != stored {
		return nil, &FormatConflictError{Existing: stored, Writer: f.Spec}
	}
	return f, nil
}

// ResolveWrite picks the format for writing to an archive that declares
// stored, or to a new archive when stored is empty. "latest" always
// picks the newest format and "auto" follows the archive. The result must
// agree with stored.
func (r *Registry) ResolveWrite(requested, stored string) (*Format, error) {
	var (
		f   *Format
		err error
	)
	switch {
	case requested == FormatLatest || requested == "":
		f, err = r.Latest()
	case requested == FormatAuto && stored != "":
		f, err = r.Lookup(stored)
	case requested == FormatAuto:
		f, err = r.Latest()
	default:
		f, err = r.Lookup(requested)
	}
	if err != nil {
		return nil, err
	}
	if stored != "" && f.Spec != stored {
		return nil, &FormatConflictError{Existing: stored, Writer: f.Spec}
	}
	return f, nil
}
