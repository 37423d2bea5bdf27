package index

import (
	"btreeindex/logging"
	"btreeindex/storage/pagefile"
	"btreeindex/storage/rid"
)

// pendingChild is the single reusable "PC" slot threaded through the
// recursive descent: empty (childPageID == 0) unless the frame below
// just split, in which case it carries the new right sibling's page id
// and the separator key to place in (or split) the parent.
type pendingChild struct {
	childPageID pagefile.PageID
	sepKey      int32
}

func (pc pendingChild) empty() bool { return pc.childPageID == 0 }

// Insert inserts a new (key, r) entry into the tree. There is no
// uniqueness check — duplicate keys are appended as distinct entries.
func (idx *Index) Insert(key int32, r rid.RID) error {
	var pc pendingChild
	if err := idx.descendInsert(idx.meta.RootPageNo, idx.meta.RootIsLeaf, key, r, &pc); err != nil {
		return err
	}

	if !pc.empty() {
		if err := idx.growRoot(pc); err != nil {
			return err
		}
	}
	return nil
}

// descendInsert recurses down the tree toward the leaf that should hold
// (key, r). It pins pageID for exactly the duration of this frame; any pin
// taken on a child happens in the nested call and is released before this
// function returns, so a page is never pinned longer than its own frame.
func (idx *Index) descendInsert(pageID pagefile.PageID, childIsLeaf bool, key int32, r rid.RID, pc *pendingChild) error {
	buf, err := idx.pool.ReadPage(idx.file, pageID)
	if err != nil {
		return err
	}
	dirty := false

	if childIsLeaf {
		leaf := newLeafView(buf)
		if leaf.n() < leafCapacity {
			leaf.placeInLeaf(key, r)
			dirty = true
			*pc = pendingChild{}
		} else {
			rightID, rightBuf, err := idx.pool.AllocPage(idx.file)
			if err != nil {
				_ = idx.pool.UnpinPage(idx.file, pageID, dirty)
				return err
			}
			_, sepKey := leaf.splitLeaf(key, r, rightBuf, rightID)
			if err := idx.pool.UnpinPage(idx.file, rightID, true); err != nil {
				_ = idx.pool.UnpinPage(idx.file, pageID, true)
				return err
			}
			dirty = true
			*pc = pendingChild{childPageID: rightID, sepKey: sepKey}
			logging.WithField("leaf", pageID).WithField("right", rightID).Debug("index: split leaf")
		}
		return idx.pool.UnpinPage(idx.file, pageID, dirty)
	}

	node := newInnerView(buf)
	i := node.descendIndex(key)
	childLevel := node.level()
	childPageID := node.child(i)

	var childPC pendingChild
	if err := idx.descendInsert(childPageID, childLevel == 1, key, r, &childPC); err != nil {
		_ = idx.pool.UnpinPage(idx.file, pageID, dirty)
		return err
	}

	if !childPC.empty() {
		if node.n() < innerCapacity {
			node.placeInInner(childPC.sepKey, childPC.childPageID)
			dirty = true
			*pc = pendingChild{}
		} else {
			rightID, rightBuf, err := idx.pool.AllocPage(idx.file)
			if err != nil {
				_ = idx.pool.UnpinPage(idx.file, pageID, dirty)
				return err
			}
			_, sepKeyOut := node.splitInner(childPC.sepKey, childPC.childPageID, rightBuf)
			if err := idx.pool.UnpinPage(idx.file, rightID, true); err != nil {
				_ = idx.pool.UnpinPage(idx.file, pageID, true)
				return err
			}
			dirty = true
			*pc = pendingChild{childPageID: rightID, sepKey: sepKeyOut}
			logging.WithField("inner", pageID).WithField("right", rightID).Debug("index: split inner")
		}
	} else {
		*pc = pendingChild{}
	}

	return idx.pool.UnpinPage(idx.file, pageID, dirty)
}

// growRoot handles the case where the old root itself split: it is a
// distinct step, not a recursion boundary, and runs once after the
// top-level descent returns.
func (idx *Index) growRoot(pc pendingChild) error {
	newRootID, buf, err := idx.pool.AllocPage(idx.file)
	if err != nil {
		return err
	}

	oldRootLevel := 0
	if idx.meta.RootIsLeaf {
		oldRootLevel = 1
	}

	root := newInnerView(buf)
	root.init(oldRootLevel)
	root.setChild(0, idx.meta.RootPageNo)
	root.placeInInner(pc.sepKey, pc.childPageID)

	if err := idx.pool.UnpinPage(idx.file, newRootID, true); err != nil {
		return err
	}

	idx.meta.RootPageNo = newRootID
	idx.meta.RootIsLeaf = false
	return idx.writeMeta()
}
