package index

import (
	"encoding/binary"

	"btreeindex/storage/pagefile"
)

// innerView interprets a pinned page's bytes as an inner node in place,
// mirroring leafView. Layout:
//
//	n         uint16
//	level     uint16   (1 = children are leaves, 0 = children are inner)
//	keys      [innerCapacity]int32
//	children  [innerCapacity+1]uint32  (0 = absent)
type innerView struct {
	buf []byte
}

func newInnerView(buf []byte) innerView { return innerView{buf: buf} }

func (v innerView) n() int {
	return int(binary.LittleEndian.Uint16(v.buf[0:2]))
}

func (v innerView) setN(n int) {
	binary.LittleEndian.PutUint16(v.buf[0:2], uint16(n))
}

func (v innerView) level() int {
	return int(binary.LittleEndian.Uint16(v.buf[2:4]))
}

func (v innerView) setLevel(l int) {
	binary.LittleEndian.PutUint16(v.buf[2:4], uint16(l))
}

func (v innerView) keyOffset(i int) int {
	return innerHeaderSize + i*innerKeySize
}

func (v innerView) childOffset(i int) int {
	return innerHeaderSize + innerCapacity*innerKeySize + i*innerChildSize
}

func (v innerView) key(i int) int32 {
	off := v.keyOffset(i)
	return int32(binary.LittleEndian.Uint32(v.buf[off : off+4]))
}

func (v innerView) setKey(i int, key int32) {
	off := v.keyOffset(i)
	binary.LittleEndian.PutUint32(v.buf[off:off+4], uint32(key))
}

func (v innerView) child(i int) pagefile.PageID {
	off := v.childOffset(i)
	return pagefile.PageID(binary.LittleEndian.Uint32(v.buf[off : off+4]))
}

func (v innerView) setChild(i int, id pagefile.PageID) {
	off := v.childOffset(i)
	binary.LittleEndian.PutUint32(v.buf[off:off+4], uint32(id))
}

func (v innerView) clearKey(i int) {
	off := v.keyOffset(i)
	for j := 0; j < innerKeySize; j++ {
		v.buf[off+j] = 0
	}
}

func (v innerView) clearChild(i int) {
	off := v.childOffset(i)
	for j := 0; j < innerChildSize; j++ {
		v.buf[off+j] = 0
	}
}

func (v innerView) init(level int) {
	v.setN(0)
	v.setLevel(level)
}

// descendIndex returns the index of the child whose subtree contains key,
// during insertion: the number of keys <= key, i.e. one past the largest i
// with keys[i] <= key, or 0 if there is none. A key equal to keys[i]
// descends to children[i+1], the "≥"-side tie-break.
func (v innerView) descendIndex(key int32) int {
	n := v.n()
	i := 0
	for i < n && v.key(i) <= key {
		i++
	}
	return i
}

// descendScan returns the index of the child to descend into while
// positioning a range scan: the smallest i with keys[i] > target, or n
// (the rightmost child) if no such key exists.
func (v innerView) descendScan(target int32) int {
	n := v.n()
	i := 0
	for i < n && v.key(i) <= target {
		i++
	}
	return i
}

// placeInInner inserts sepKey and rightChild at the position matching
// where sepKey belongs among the existing keys, shifting higher keys and
// their right-hand child pointers up by one. children[0] is never
// touched. Precondition: node has room (n < innerCapacity).
func (v innerView) placeInInner(sepKey int32, rightChild pagefile.PageID) {
	n := v.n()
	i := 0
	for i < n && v.key(i) <= sepKey {
		i++
	}
	for j := n; j > i; j-- {
		v.setKey(j, v.key(j-1))
	}
	for j := n + 1; j > i+1; j-- {
		v.setChild(j, v.child(j-1))
	}
	v.setKey(i, sepKey)
	v.setChild(i+1, rightChild)
	v.setN(n + 1)
}

// splitInner initializes a fresh right sibling in rightBuf (a page the
// caller has already allocated), redistributes
// the existing M keys / M+1 children plus the new (sepKeyIn,
// rightChildIn) between left (the receiver) and right, and returns the
// key that should be pushed up to the parent. Unlike a leaf split, an
// inner split MOVES its separator: it is removed from both children.
func (v innerView) splitInner(sepKeyIn int32, rightChildIn pagefile.PageID, rightBuf []byte) (right innerView, sepKeyOut int32) {
	right = newInnerView(rightBuf)
	right.init(v.level())

	n := v.n()
	mergedKeys := make([]int32, 0, n+1)
	mergedChildren := make([]pagefile.PageID, 0, n+2)

	insertAt := n
	for i := 0; i < n; i++ {
		if v.key(i) > sepKeyIn {
			insertAt = i
			break
		}
	}

	for i := 0; i < insertAt; i++ {
		mergedKeys = append(mergedKeys, v.key(i))
	}
	mergedKeys = append(mergedKeys, sepKeyIn)
	for i := insertAt; i < n; i++ {
		mergedKeys = append(mergedKeys, v.key(i))
	}

	for i := 0; i <= insertAt; i++ {
		mergedChildren = append(mergedChildren, v.child(i))
	}
	mergedChildren = append(mergedChildren, rightChildIn)
	for i := insertAt + 1; i <= n; i++ {
		mergedChildren = append(mergedChildren, v.child(i))
	}

	h := (len(mergedKeys) + 1) / 2 // ceil((M+1)/2)

	for i := 0; i < h; i++ {
		v.setKey(i, mergedKeys[i])
	}
	for i := h; i < innerCapacity; i++ {
		v.clearKey(i)
	}
	for i := 0; i <= h; i++ {
		v.setChild(i, mergedChildren[i])
	}
	for i := h + 1; i <= innerCapacity; i++ {
		v.clearChild(i)
	}
	v.setN(h)

	for i := h + 1; i < len(mergedKeys); i++ {
		right.setKey(i-h-1, mergedKeys[i])
	}
	for i := h + 1; i < len(mergedChildren); i++ {
		right.setChild(i-h-1, mergedChildren[i])
	}
	right.setN(len(mergedKeys) - h - 1)

	sepKeyOut = mergedKeys[h]
	return right, sepKeyOut
}
