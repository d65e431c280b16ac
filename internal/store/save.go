package store

import (
	"fmt"

	"github.com/scigolib/hnf/internal/core"
	"github.com/scigolib/hnf/internal/utils"
	"github.com/scigolib/hnf/internal/writer"
)

// Save writes the tree rooted at root to path. The file is built in a
// temporary sibling and renamed over path only after every object has
// been written, so a failed save leaves any existing file untouched.
//
// Children are written before their parents and the root group last.
// Unmodified compressed datasets loaded from a file are copied in their
// stored form. Files the tree was loaded from must stay open until Save
// returns.
func Save(path string, root *Group) error {
	fw, err := writer.NewFileWriter(path, core.SuperblockV2Size)
	if err != nil {
		return utils.WrapErrorf(err, "save %s", path)
	}

	s := &saver{fw: fw}
	rootAddr, err := s.writeGroup(root)
	if err != nil {
		_ = fw.Abort()
		return utils.WrapErrorf(err, "save %s", path)
	}

	sb := &core.Superblock{RootGroup: rootAddr, EOFAddress: fw.EndOfFile()}
	if err := sb.WriteTo(fw); err != nil {
		_ = fw.Abort()
		return utils.WrapErrorf(err, "save %s", path)
	}

	if err := fw.Commit(); err != nil {
		_ = fw.Abort()
		return utils.WrapErrorf(err, "save %s", path)
	}
	return nil
}

type saver struct {
	fw *writer.FileWriter
}

func (s *saver) writeGroup(g *Group) (uint64, error) {
	ohw := &core.ObjectHeaderWriter{}
	ohw.Add(core.MsgLinkInfo, core.EncodeLinkInfoMessage())
	ohw.Add(core.MsgGroupInfo, core.EncodeGroupInfoMessage())

	for _, l := range g.members() {
		if err := g.resolve(l); err != nil {
			return 0, err
		}
		var addr uint64
		var err error
		if l.group != nil {
			addr, err = s.writeGroup(l.group)
		} else {
			addr, err = s.writeDataset(l.dataset)
		}
		if err != nil {
			return 0, fmt.Errorf("%s: %w", l.name, err)
		}
		ohw.Add(core.MsgLinkMessage, core.EncodeHardLink(l.name, addr))
	}

	if err := s.addAttrs(ohw, &g.attrSet); err != nil {
		return 0, err
	}
	return s.writeHeader(ohw)
}

func (s *saver) writeDataset(d *Dataset) (uint64, error) {
	if d.dtype.Class == core.DatatypeVarLen {
		fixed, err := d.fixedStrings()
		if err != nil {
			return 0, err
		}
		d = fixed
	}

	dtMsg, err := d.dtype.Encode()
	if err != nil {
		return 0, err
	}

	ohw := &core.ObjectHeaderWriter{}
	ohw.Add(core.MsgDataspace, core.EncodeDataspaceMessage(d.dims))
	ohw.Add(core.MsgDatatype, dtMsg)

	layout, filters, err := s.writeData(d)
	if err != nil {
		return 0, err
	}
	ohw.Add(core.MsgFillValue, core.EncodeFillValueMessage(filters != nil))
	if filters != nil {
		ohw.Add(core.MsgFilterPipeline, filters.Encode())
	}
	ohw.Add(core.MsgDataLayout, layout)

	if err := s.addAttrs(ohw, &d.attrSet); err != nil {
		return 0, err
	}
	return s.writeHeader(ohw)
}

// writeData stores the dataset contents and returns the layout message
// plus the filter pipeline, which is nil for contiguous storage.
func (s *saver) writeData(d *Dataset) ([]byte, *core.FilterPipelineMessage, error) {
	stored, ok, err := d.storedChunk()
	if err != nil {
		return nil, nil, err
	}
	if ok {
		addr, err := s.fw.WriteAtWithAllocation(stored)
		if err != nil {
			return nil, nil, err
		}
		layout := core.EncodeSingleChunkLayout(d.dims, d.dtype.Size, addr, uint64(len(stored)), true)
		return layout, d.filters, nil
	}

	raw, err := d.Raw()
	if err != nil {
		return nil, nil, err
	}
	if len(raw) == 0 {
		return core.EncodeContiguousLayout(core.UndefinedAddress, 0), nil, nil
	}

	fp := d.compression.pipeline(d.dtype.Size)
	if fp == nil || len(d.dims) == 0 {
		addr, err := s.fw.WriteAtWithAllocation(raw)
		if err != nil {
			return nil, nil, err
		}
		return core.EncodeContiguousLayout(addr, uint64(len(raw))), nil, nil
	}

	filtered, err := fp.Apply(raw)
	if err != nil {
		return nil, nil, utils.WrapError("apply filters", err)
	}
	addr, err := s.fw.WriteAtWithAllocation(filtered)
	if err != nil {
		return nil, nil, err
	}
	layout := core.EncodeSingleChunkLayout(d.dims, d.dtype.Size, addr, uint64(len(filtered)), true)
	return layout, fp.Message(), nil
}

func (s *saver) addAttrs(ohw *core.ObjectHeaderWriter, attrs *attrSet) error {
	encoded, err := attrs.encodeAll()
	if err != nil {
		return err
	}
	for _, b := range encoded {
		ohw.Add(core.MsgAttribute, b)
	}
	return nil
}

func (s *saver) writeHeader(ohw *core.ObjectHeaderWriter) (uint64, error) {
	buf, err := ohw.Encode()
	if err != nil {
		return 0, err
	}
	return s.fw.WriteAtWithAllocation(buf)
}

// fixedStrings rewrites a variable-length string dataset, whose elements
// point into the source file's global heap, as fixed-length strings.
func (d *Dataset) fixedStrings() (*Dataset, error) {
	vals, err := d.Strings()
	if err != nil {
		return nil, err
	}
	fixed, err := NewStrings(vals)
	if err != nil {
		return nil, err
	}
	fixed.attrSet = d.attrSet
	fixed.compression = d.compression
	return fixed, nil
}
