// Package index implements the B+ tree secondary index core: node
// operations, the recursive insert engine, the scan state machine, and the
// Index object that ties them to a paged file through the buffer manager.
// Everything below reads and writes pages only through storage/buffer; it
// opens and closes the index file through storage/pagefile and never
// touches a file descriptor directly.
package index

import (
	"fmt"

	"btreeindex/errors"
	"btreeindex/logging"
	"btreeindex/storage/buffer"
	"btreeindex/storage/heap"
	"btreeindex/storage/pagefile"
)

const metaPageNo pagefile.PageID = 0

// Index is an open B+ tree secondary index over one fixed-width int32
// attribute of a heap-organized relation.
type Index struct {
	file *pagefile.File
	pool *buffer.Pool
	meta metaPage

	scan scanState
}

// IndexFileName derives the on-disk file name for an index the way the
// original project does: "<relation>.<attr-byte-offset>" so a relation
// can carry one index per attribute without a separate catalog.
func IndexFileName(relationName string, attrByteOffset int32) string {
	return fmt.Sprintf("%s.%d", relationName, attrByteOffset)
}

// Open opens the index file for (relationName, attrByteOffset) if it
// already exists, verifying its identity against the meta page
// (errors.ErrBadIndexInfo on mismatch), or creates and bulk-loads it from
// heapFile if it does not.
func Open(relationName string, attrByteOffset int32, attrType AttrType, heapFile *heap.File, pool *buffer.Pool) (*Index, error) {
	name := IndexFileName(relationName, attrByteOffset)

	pf, err := pagefile.Open(name)
	if err == nil {
		idx := &Index{file: pf, pool: pool}
		if err := idx.readMeta(); err != nil {
			pf.Close()
			return nil, err
		}
		if idx.meta.RelationName != relationName || idx.meta.AttrByteOffset != attrByteOffset || idx.meta.AttrType != attrType {
			pf.Close()
			return nil, errors.ErrBadIndexInfo
		}
		logging.WithField("file", name).Info("index: opened existing index")
		return idx, nil
	}
	if !errors.Is(err, errors.ErrFileNotFound) {
		return nil, err
	}

	pf, err = pagefile.Create(name)
	if err != nil {
		return nil, err
	}
	idx := &Index{file: pf, pool: pool}

	metaID, _, err := pool.AllocPage(pf) // page 0: the meta page itself
	if err != nil {
		pf.Close()
		return nil, err
	}
	if err := pool.UnpinPage(pf, metaID, true); err != nil {
		pf.Close()
		return nil, err
	}
	rootID, rootBuf, err := pool.AllocPage(pf)
	if err != nil {
		pf.Close()
		return nil, err
	}
	newLeafView(rootBuf).init()
	if err := pool.UnpinPage(pf, rootID, true); err != nil {
		pf.Close()
		return nil, err
	}

	idx.meta = metaPage{
		RelationName:   relationName,
		AttrByteOffset: attrByteOffset,
		AttrType:       attrType,
		RootIsLeaf:     true,
		RootPageNo:     rootID,
	}
	if err := idx.writeMeta(); err != nil {
		pf.Close()
		return nil, err
	}

	logging.WithField("file", name).Info("index: creating and bulk-loading new index")
	if err := idx.bulkLoad(heapFile, attrByteOffset); err != nil {
		pf.Close()
		return nil, err
	}

	if err := pool.FlushFile(pf); err != nil {
		pf.Close()
		return nil, err
	}
	return idx, nil
}

// bulkLoad inserts every row of heapFile's relation into the freshly
// created tree, one Insert call per row.
func (idx *Index) bulkLoad(heapFile *heap.File, attrByteOffset int32) error {
	scanner := heapFile.NewScanner()
	defer scanner.Close()

	count := 0
	for {
		r, row, err := scanner.Next()
		if errors.Is(err, errors.ErrEndOfFile) {
			break
		}
		if err != nil {
			return err
		}
		key := heap.Int32At(row, int(attrByteOffset))
		if err := idx.Insert(key, r); err != nil {
			return err
		}
		count++
	}
	logging.WithField("rows", count).Debug("index: bulk load complete")
	return nil
}

func (idx *Index) readMeta() error {
	buf, err := idx.pool.ReadPage(idx.file, metaPageNo)
	if err != nil {
		return err
	}
	m, err := decodeMeta(buf)
	if uerr := idx.pool.UnpinPage(idx.file, metaPageNo, false); uerr != nil {
		return uerr
	}
	if err != nil {
		return err
	}
	idx.meta = m
	return nil
}

func (idx *Index) writeMeta() error {
	buf, err := idx.pool.ReadPage(idx.file, metaPageNo)
	if err != nil {
		return err
	}
	if err := encodeMeta(idx.meta, buf); err != nil {
		_ = idx.pool.UnpinPage(idx.file, metaPageNo, false)
		return err
	}
	return idx.pool.UnpinPage(idx.file, metaPageNo, true)
}

// Close ends any active scan, flushes the index file, and releases its
// file handle. Close is idempotent with an already-ended scan, and a
// second Close is a no-op.
func (idx *Index) Close() error {
	if idx.file == nil {
		return nil
	}
	if idx.scan.state != scanInactive {
		if err := idx.EndScan(); err != nil {
			return err
		}
	}
	if err := idx.pool.FlushFile(idx.file); err != nil {
		return err
	}
	idx.pool.DropFile(idx.file)
	err := idx.file.Close()
	idx.file = nil
	return err
}

// Stats reports the index file's page count and whether the root is still
// a leaf, for the build CLI's diagnostic output.
type Stats struct {
	NumPages   pagefile.PageID
	RootIsLeaf bool
}

func (idx *Index) Stats() Stats {
	return Stats{NumPages: idx.file.NumPages(), RootIsLeaf: idx.meta.RootIsLeaf}
}
