package index

import (
	"btreeindex/errors"
	"btreeindex/storage/pagefile"
	"btreeindex/storage/rid"
)

// Op is a scan boundary operator.
type Op int

const (
	GT Op = iota
	GTE
	LT
	LTE
)

type scanKind int

const (
	scanInactive scanKind = iota
	scanActive
	scanExhausted
)

// scanState holds everything start_scan/scan_next/end_scan need to thread
// across calls: which leaf is pinned, the cached bytes of that leaf, the
// slot the next result comes from, and the four comparison parameters.
type scanState struct {
	state scanKind

	pageNo    pagefile.PageID
	buf       []byte
	nextEntry int

	lowVal  int32
	lowOp   Op
	highVal int32
	highOp  Op
}

func validOps(lowOp, highOp Op) bool {
	lowOK := lowOp == GT || lowOp == GTE
	highOK := highOp == LT || highOp == LTE
	return lowOK && highOK
}

func satisfiesLow(key, lowVal int32, lowOp Op) bool {
	if lowOp == GT {
		return key > lowVal
	}
	return key >= lowVal
}

func satisfiesHigh(key, highVal int32, highOp Op) bool {
	if highOp == LT {
		return key < highVal
	}
	return key <= highVal
}

// StartScan establishes a forward scan over entries whose key satisfies
// (key lowOp lowVal) ∧ (key highOp highVal).
func (idx *Index) StartScan(lowVal int32, lowOp Op, highVal int32, highOp Op) error {
	if !validOps(lowOp, highOp) {
		return errors.ErrBadOpcodes
	}
	if lowVal > highVal {
		return errors.ErrBadScanRange
	}

	target := lowVal
	if lowOp == GT {
		target = lowVal + 1
	}

	pageNo := idx.meta.RootPageNo
	isLeaf := idx.meta.RootIsLeaf
	for !isLeaf {
		buf, err := idx.pool.ReadPage(idx.file, pageNo)
		if err != nil {
			return err
		}
		node := newInnerView(buf)
		i := node.descendScan(target)
		child := node.child(i)
		childIsLeaf := node.level() == 1
		if err := idx.pool.UnpinPage(idx.file, pageNo, false); err != nil {
			return err
		}
		pageNo = child
		isLeaf = childIsLeaf
	}

	for {
		buf, err := idx.pool.ReadPage(idx.file, pageNo)
		if err != nil {
			return err
		}
		leaf := newLeafView(buf)
		n := leaf.n()

		found := -1
		for i := 0; i < n; i++ {
			key := leaf.key(i)
			if !satisfiesHigh(key, highVal, highOp) {
				// Keys are non-decreasing: once one exceeds the upper
				// bound, no later entry in this or any later leaf can
				// satisfy the range.
				if err := idx.pool.UnpinPage(idx.file, pageNo, false); err != nil {
					return err
				}
				return errors.ErrNoSuchKeyFound
			}
			if satisfiesLow(key, lowVal, lowOp) {
				found = i
				break
			}
		}

		if found >= 0 {
			idx.scan = scanState{
				state:     scanActive,
				pageNo:    pageNo,
				buf:       buf,
				nextEntry: found,
				lowVal:    lowVal, lowOp: lowOp,
				highVal: highVal, highOp: highOp,
			}
			return nil
		}

		rightSib := leaf.rightSib()
		if err := idx.pool.UnpinPage(idx.file, pageNo, false); err != nil {
			return err
		}
		if rightSib == 0 {
			return errors.ErrNoSuchKeyFound
		}
		pageNo = rightSib
	}
}

// ScanNext returns the RID at the scan's current position, then advances
// to the next qualifying entry, hopping to the right sibling leaf when
// the current one is exhausted.
func (idx *Index) ScanNext(out *rid.RID) error {
	switch idx.scan.state {
	case scanInactive:
		return errors.ErrScanNotInitialized
	case scanExhausted:
		return errors.ErrIndexScanCompleted
	}

	leaf := newLeafView(idx.scan.buf)
	*out = leaf.rid(idx.scan.nextEntry)

	n := leaf.n()
	next := idx.scan.nextEntry + 1
	if next < n && satisfiesHigh(leaf.key(next), idx.scan.highVal, idx.scan.highOp) {
		idx.scan.nextEntry = next
		return nil
	}

	rightSib := leaf.rightSib()
	if err := idx.pool.UnpinPage(idx.file, idx.scan.pageNo, false); err != nil {
		return err
	}
	idx.scan.buf = nil

	if rightSib == 0 {
		idx.scan.state = scanExhausted
		return nil
	}

	buf, err := idx.pool.ReadPage(idx.file, rightSib)
	if err != nil {
		return err
	}
	sibling := newLeafView(buf)
	if sibling.n() > 0 && satisfiesHigh(sibling.key(0), idx.scan.highVal, idx.scan.highOp) {
		idx.scan.pageNo = rightSib
		idx.scan.buf = buf
		idx.scan.nextEntry = 0
		return nil
	}

	if err := idx.pool.UnpinPage(idx.file, rightSib, false); err != nil {
		return err
	}
	idx.scan.state = scanExhausted
	return nil
}

// EndScan unpins the current leaf (tolerating "already unpinned"/"not
// present") and marks the scan inactive.
func (idx *Index) EndScan() error {
	if idx.scan.state == scanInactive {
		return errors.ErrScanNotInitialized
	}

	if idx.scan.buf != nil {
		err := idx.pool.UnpinPage(idx.file, idx.scan.pageNo, false)
		if err != nil && !errors.Is(err, errors.ErrPageNotPinned) && !errors.Is(err, errors.ErrHashNotFound) {
			return err
		}
	}

	idx.scan = scanState{}
	return nil
}
