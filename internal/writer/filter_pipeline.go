package writer

import (
	"fmt"

	"github.com/scigolib/hnf/internal/core"
)

// FilterID represents HDF5 filter identifiers.
type FilterID uint16

// Filter identifiers understood by this package.
const (
	FilterDeflate FilterID = 1     // zlib deflate
	FilterShuffle FilterID = 2     // byte shuffle
	FilterLZ4     FilterID = 32004 // registered HDF5 LZ4 plugin
)

// Filter transforms chunk data. Filters are applied in sequence on write
// (e.g. Shuffle then Deflate) and reversed on read.
type Filter interface {
	// ID returns the HDF5 filter identifier.
	ID() FilterID

	// Name returns the filter name recorded for plugin filters.
	Name() string

	// Apply transforms data on the write path.
	Apply(data []byte) ([]byte, error)

	// Remove reverses Apply on the read path.
	Remove(data []byte) ([]byte, error)

	// Encode returns the pipeline message flags and client data values.
	Encode() (flags uint16, cdValues []uint32)
}

// FilterPipeline manages a chain of filters applied to chunk data.
//
// On write: data → Shuffle → Deflate → stored.
// On read:  stored → Deflate → Shuffle → data.
type FilterPipeline struct {
	filters []Filter
}

// NewFilterPipeline creates a pipeline from filters in write order.
func NewFilterPipeline(filters ...Filter) *FilterPipeline {
	return &FilterPipeline{filters: filters}
}

// AddFilter adds a filter to the end of the pipeline.
func (fp *FilterPipeline) AddFilter(f Filter) {
	fp.filters = append(fp.filters, f)
}

// Apply applies all filters in sequence (write path).
func (fp *FilterPipeline) Apply(data []byte) ([]byte, error) {
	result := data
	for _, filter := range fp.filters {
		var err error
		result, err = filter.Apply(result)
		if err != nil {
			return nil, fmt.Errorf("filter %s failed: %w", filter.Name(), err)
		}
	}
	return result, nil
}

// Remove reverses all filters in reverse order (read path). Filters whose
// bit is set in mask were skipped on write and are skipped here as well.
func (fp *FilterPipeline) Remove(data []byte, mask uint32) ([]byte, error) {
	result := data
	for i := len(fp.filters) - 1; i >= 0; i-- {
		if mask&(1<<uint(i)) != 0 { //nolint:gosec // G115: i is a small index
			continue
		}
		filter := fp.filters[i]
		var err error
		result, err = filter.Remove(result)
		if err != nil {
			return nil, fmt.Errorf("filter %s remove failed: %w", filter.Name(), err)
		}
	}
	return result, nil
}

// IsEmpty returns true if the pipeline has no filters.
func (fp *FilterPipeline) IsEmpty() bool {
	return len(fp.filters) == 0
}

// Count returns the number of filters in the pipeline.
func (fp *FilterPipeline) Count() int {
	return len(fp.filters)
}

// Message returns the pipeline as a filter pipeline header message.
func (fp *FilterPipeline) Message() *core.FilterPipelineMessage {
	msg := &core.FilterPipelineMessage{Version: 2}
	for _, f := range fp.filters {
		flags, cd := f.Encode()
		info := core.FilterInfo{ID: uint16(f.ID()), Flags: flags, ClientData: cd}
		if f.ID() >= 256 {
			info.Name = f.Name()
		}
		msg.Filters = append(msg.Filters, info)
	}
	return msg
}

// PipelineFromMessage rebuilds the read-side pipeline described by a stored
// filter pipeline message. elementSize is used when the shuffle filter
// carries no client data.
func PipelineFromMessage(msg *core.FilterPipelineMessage, elementSize uint32) (*FilterPipeline, error) {
	fp := NewFilterPipeline()
	for _, info := range msg.Filters {
		switch FilterID(info.ID) {
		case FilterDeflate:
			level := 6
			if len(info.ClientData) > 0 {
				level = int(info.ClientData[0])
			}
			fp.AddFilter(NewDeflateFilter(level))
		case FilterShuffle:
			size := elementSize
			if len(info.ClientData) > 0 && info.ClientData[0] > 0 {
				size = info.ClientData[0]
			}
			fp.AddFilter(NewShuffleFilter(size))
		case FilterLZ4:
			var block uint32
			if len(info.ClientData) > 0 {
				block = info.ClientData[0]
			}
			fp.AddFilter(NewLZ4Filter(block))
		default:
			name := info.Name
			if name == "" {
				name = "unnamed"
			}
			return nil, fmt.Errorf("unsupported filter %d (%s)", info.ID, name)
		}
	}
	return fp, nil
}
