package index

import (
	"encoding/binary"

	"btreeindex/errors"
	"btreeindex/storage/pagefile"
)

// AttrType tags the type of the secondary attribute an index is built
// over. This revision only builds int32-keyed indexes; the field exists
// so Open's identity check has something concrete to compare, matching
// the original's Datatype enum.
type AttrType uint8

const (
	// AttrInt32 is the only attribute type this revision supports.
	AttrInt32 AttrType = 1

	// AttrString mirrors the original's second Datatype tag. No engine
	// code in this revision builds or scans a string-keyed index; the
	// value exists so Open's identity check has two distinct tags to
	// compare, the same role it plays in the original.
	AttrString AttrType = 2
)

const relationNameWidth = 64

// metaPage is the header page of an index file, always the first page
// allocated. Layout (little-endian):
//
//	relationName   [64]byte  NUL-padded
//	attrByteOffset int32
//	attrType       uint8
//	rootIsLeaf     uint8
//	_pad           [2]byte
//	rootPageNo     uint32
type metaPage struct {
	RelationName   string
	AttrByteOffset int32
	AttrType       AttrType
	RootIsLeaf     bool
	RootPageNo     pagefile.PageID
}

const metaPageEncodedSize = relationNameWidth + 4 + 1 + 1 + 2 + 4

func encodeMeta(m metaPage, buf []byte) error {
	if len(buf) != pagefile.PageSize {
		return errors.Errorf("index: meta buffer must be %d bytes", pagefile.PageSize)
	}
	if len(m.RelationName) > relationNameWidth {
		return errors.Errorf("index: relation name %q exceeds %d bytes", m.RelationName, relationNameWidth)
	}

	for i := range buf[:metaPageEncodedSize] {
		buf[i] = 0
	}
	copy(buf[0:relationNameWidth], m.RelationName)

	off := relationNameWidth
	binary.LittleEndian.PutUint32(buf[off:], uint32(m.AttrByteOffset))
	off += 4

	buf[off] = byte(m.AttrType)
	off++

	if m.RootIsLeaf {
		buf[off] = 1
	}
	off++
	off += 2 // padding

	binary.LittleEndian.PutUint32(buf[off:], uint32(m.RootPageNo))

	return nil
}

func decodeMeta(buf []byte) (metaPage, error) {
	if len(buf) != pagefile.PageSize {
		return metaPage{}, errors.Errorf("index: meta buffer must be %d bytes", pagefile.PageSize)
	}

	var m metaPage
	nameBytes := buf[0:relationNameWidth]
	end := len(nameBytes)
	for i, b := range nameBytes {
		if b == 0 {
			end = i
			break
		}
	}
	m.RelationName = string(nameBytes[:end])

	off := relationNameWidth
	m.AttrByteOffset = int32(binary.LittleEndian.Uint32(buf[off:]))
	off += 4

	m.AttrType = AttrType(buf[off])
	off++

	m.RootIsLeaf = buf[off] != 0
	off++
	off += 2

	m.RootPageNo = pagefile.PageID(binary.LittleEndian.Uint32(buf[off:]))

	return m, nil
}
