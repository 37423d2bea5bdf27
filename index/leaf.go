package index

import (
	"encoding/binary"

	"btreeindex/storage/pagefile"
	"btreeindex/storage/rid"
)

// leafView interprets a pinned page's bytes as a leaf node in place. There
// is no tag byte distinguishing a leaf page from an inner page — the
// parent's level field is the only thing that says which view to use — so
// decode/encode happens per field access rather than through a single
// marshaled struct.
//
// Layout:
//
//	n         uint16
//	rightSib  uint32
//	entries   [leafCapacity]{ key int32, rid { pageNo uint32, slotNo uint32 } }
type leafView struct {
	buf []byte
}

func newLeafView(buf []byte) leafView { return leafView{buf: buf} }

func (v leafView) n() int {
	return int(binary.LittleEndian.Uint16(v.buf[0:2]))
}

func (v leafView) setN(n int) {
	binary.LittleEndian.PutUint16(v.buf[0:2], uint16(n))
}

func (v leafView) rightSib() pagefile.PageID {
	return pagefile.PageID(binary.LittleEndian.Uint32(v.buf[2:6]))
}

func (v leafView) setRightSib(id pagefile.PageID) {
	binary.LittleEndian.PutUint32(v.buf[2:6], uint32(id))
}

func (v leafView) entryOffset(i int) int {
	return leafHeaderSize + i*leafEntrySize
}

func (v leafView) key(i int) int32 {
	off := v.entryOffset(i)
	return int32(binary.LittleEndian.Uint32(v.buf[off : off+4]))
}

func (v leafView) rid(i int) rid.RID {
	off := v.entryOffset(i) + 4
	return rid.RID{
		PageNo: binary.LittleEndian.Uint32(v.buf[off : off+4]),
		SlotNo: binary.LittleEndian.Uint32(v.buf[off+4 : off+8]),
	}
}

func (v leafView) setEntry(i int, key int32, r rid.RID) {
	off := v.entryOffset(i)
	binary.LittleEndian.PutUint32(v.buf[off:off+4], uint32(key))
	binary.LittleEndian.PutUint32(v.buf[off+4:off+8], r.PageNo)
	binary.LittleEndian.PutUint32(v.buf[off+8:off+12], r.SlotNo)
}

func (v leafView) clearEntry(i int) {
	off := v.entryOffset(i)
	for j := 0; j < leafEntrySize; j++ {
		v.buf[off+j] = 0
	}
}

func (v leafView) init() {
	v.setN(0)
	v.setRightSib(0)
}

// locateInLeaf returns the smallest i < n with keys[i] >= key, or n if no
// such entry exists.
func (v leafView) locateInLeaf(key int32) int {
	n := v.n()
	for i := 0; i < n; i++ {
		if v.key(i) >= key {
			return i
		}
	}
	return n
}

// placeInLeaf inserts (key, r) in sorted position. Precondition: the leaf
// has room (n < leafCapacity).
func (v leafView) placeInLeaf(key int32, r rid.RID) {
	n := v.n()
	i := v.locateInLeaf(key)
	for j := n; j > i; j-- {
		k := v.key(j - 1)
		rr := v.rid(j - 1)
		v.setEntry(j, k, rr)
	}
	v.setEntry(i, key, r)
	v.setN(n + 1)
}

// splitLeaf initializes a fresh right sibling in rightBuf (a page the
// caller has already allocated as rightID), redistributes the
// existing L entries plus the new (key, r) between left (the receiver)
// and right, and returns the separator key that should be copied up to
// the parent. A leaf split COPIES its separator: it remains present as
// right's first key.
func (v leafView) splitLeaf(key int32, r rid.RID, rightBuf []byte, rightID pagefile.PageID) (right leafView, sepKey int32) {
	right = newLeafView(rightBuf)
	right.init()

	n := v.n()
	type kv struct {
		key int32
		rid rid.RID
	}
	merged := make([]kv, 0, n+1)
	inserted := false
	for i := 0; i < n; i++ {
		k, rr := v.key(i), v.rid(i)
		if !inserted && k >= key {
			merged = append(merged, kv{key, r})
			inserted = true
		}
		merged = append(merged, kv{k, rr})
	}
	if !inserted {
		merged = append(merged, kv{key, r})
	}

	h := (len(merged) + 1) / 2 // ceil((L+1)/2)

	for i := 0; i < h; i++ {
		v.setEntry(i, merged[i].key, merged[i].rid)
	}
	for i := h; i < leafCapacity; i++ {
		v.clearEntry(i)
	}
	v.setN(h)

	for i := h; i < len(merged); i++ {
		right.setEntry(i-h, merged[i].key, merged[i].rid)
	}
	right.setN(len(merged) - h)

	right.setRightSib(v.rightSib())
	v.setRightSib(rightID)

	sepKey = right.key(0)
	return right, sepKey
}
