package hnf

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrClosed is returned when a reader or writer is used after Close.
	ErrClosed = errors.New("hnf: archive is closed")

	// ErrInvalidID is returned for identifiers that cannot name a neuron group.
	ErrInvalidID = errors.New("hnf: invalid neuron id")

	// ErrInvalidReadPolicy is returned for malformed representation selectors.
	ErrInvalidReadPolicy = errors.New("hnf: invalid read policy")

	// ErrNeuronNotFound is returned when a requested neuron is not in the archive.
	ErrNeuronNotFound = errors.New("hnf: neuron not found")

	// ErrRaggedTable is returned when table columns differ in length.
	ErrRaggedTable = errors.New("hnf: columns have different lengths")

	// ErrNoStorage is returned when a write requests neither serialized nor raw storage.
	ErrNoStorage = errors.New("hnf: neither serialized nor raw storage requested")

	// ErrInvalidNeuron is returned when a neuron fails geometric validation.
	ErrInvalidNeuron = errors.New("hnf: invalid neuron")
)

// SchemaError reports an archive that is unreadable or declares a schema
// this library cannot handle.
type SchemaError struct {
	Path   string
	Reason string
	cause  error
}

func (e *SchemaError) Error() string {
	msg := fmt.Sprintf("hnf: %s: %s", e.Path, e.Reason)
	if e.cause != nil {
		msg += ": " + e.cause.Error()
	}
	return msg
}

func (e *SchemaError) Unwrap() error { return e.cause }

// UnsupportedFormatError reports a format specifier no registered format
// answers to.
type UnsupportedFormatError struct {
	Spec string
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("hnf: unsupported format %q", e.Spec)
}

// FormatConflictError reports a write whose format disagrees with the
// format already declared by the archive.
type FormatConflictError struct {
	Existing string
	Writer   string
}

func (e *FormatConflictError) Error() string {
	return fmt.Sprintf("hnf: archive declares %q, writer uses %q", e.Existing, e.Writer)
}

// RepresentationMissingError reports a representation block that holds
// neither a serialized blob nor raw data.
type RepresentationMissingError struct {
	ID   string
	Kind Kind
}

func (e *RepresentationMissingError) Error() string {
	return fmt.Sprintf("hnf: neuron %s: %s block has no serialized or raw data", e.ID, e.Kind)
}

// BlockExistsError reports a write into an occupied block without
// overwrite.
type BlockExistsError struct {
	ID    string
	Block string
}

func (e *BlockExistsError) Error() string {
	return fmt.Sprintf("hnf: neuron %s: %s already exists", e.ID, e.Block)
}

// ColumnExistsError reports a table column whose name is already taken.
type ColumnExistsError struct {
	Column string
}

func (e *ColumnExistsError) Error() string {
	return fmt.Sprintf("hnf: column %q already exists", e.Column)
}

// UnsupportedShapeError reports a dataset that cannot be turned into
// table columns.
type UnsupportedShapeError struct {
	Name  string
	Shape []uint64
}

func (e *UnsupportedShapeError) Error() string {
	dims := make([]string, len(e.Shape))
	for i, d := range e.Shape {
		dims[i] = fmt.Sprint(d)
	}
	return fmt.Sprintf("hnf: dataset %q has unsupported shape (%s)", e.Name, strings.Join(dims, ", "))
}

// UnsupportedAnnotationTypeError reports an annotation value that is not
// a table.
type UnsupportedAnnotationTypeError struct {
	Name string
	Type string
}

func (e *UnsupportedAnnotationTypeError) Error() string {
	return fmt.Sprintf("hnf: annotation %q: unsupported type %s, want *hnf.Table", e.Name, e.Type)
}

// DecodeError wraps any failure to decode one representation of one
// neuron.
type DecodeError struct {
	ID   string
	Kind Kind
	Err  error
}

func (e *DecodeError) Error() string {
	if e.Kind == 0 {
		return fmt.Sprintf("hnf: neuron %s: %v", e.ID, e.Err)
	}
	return fmt.Sprintf("hnf: neuron %s: %s: %v", e.ID, e.Kind, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }
