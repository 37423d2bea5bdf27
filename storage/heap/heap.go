// Package heap implements the heap-organized relation an index is built
// over, and the heap-file scanner used only during bulk-load. Records are
// fixed-width rows packed densely into pages; the index never looks at
// this package directly — it only consumes a (RID, record bytes) stream
// through Scanner.
package heap

import (
	"encoding/binary"

	"btreeindex/errors"
	"btreeindex/storage/buffer"
	"btreeindex/storage/pagefile"
	"btreeindex/storage/rid"
)

// pageHeader occupies the first bytes of every data page:
//
//	numRows uint16
const pageHeaderSize = 2

// File is a heap-organized relation: a paged file of fixed-width rows,
// densely packed, never compacted or deleted from (this module has no
// delete path — an index built over it is insert/scan only, and so is
// its source relation).
type File struct {
	pf      *pagefile.File
	pool    *buffer.Pool
	rowSize int
	// rowsPerPage is fixed once rowSize is known, since every data page
	// is the same size.
	rowsPerPage int
}

// Create makes a new, empty heap file for rows of the given fixed width.
func Create(path string, rowSize int, pool *buffer.Pool) (*File, error) {
	pf, err := pagefile.Create(path)
	if err != nil {
		return nil, errors.Wrap(err, "heap: create")
	}
	f := &File{pf: pf, pool: pool, rowSize: rowSize, rowsPerPage: rowsPerPage(rowSize)}
	// Page 0 is reserved as the header page so data pages start at 1,
	// matching the index's own meta-page convention.
	if _, _, err := pool.AllocPage(pf); err != nil {
		pf.Close()
		return nil, errors.Wrap(err, "heap: allocate header page")
	}
	if err := pool.UnpinPage(pf, pf.FirstPageNo(), true); err != nil {
		pf.Close()
		return nil, err
	}
	return f, nil
}

// Open opens an existing heap file.
func Open(path string, rowSize int, pool *buffer.Pool) (*File, error) {
	pf, err := pagefile.Open(path)
	if err != nil {
		return nil, err
	}
	return &File{pf: pf, pool: pool, rowSize: rowSize, rowsPerPage: rowsPerPage(rowSize)}, nil
}

func rowsPerPage(rowSize int) int {
	return (pagefile.PageSize - pageHeaderSize) / rowSize
}

// Close flushes and releases the underlying paged file.
func (f *File) Close() error {
	if err := f.pool.FlushFile(f.pf); err != nil {
		return err
	}
	f.pool.DropFile(f.pf)
	return f.pf.Close()
}

// InsertRow appends data (which must be exactly rowSize bytes) to the
// heap file's last page, allocating a new page when the last one is full,
// and returns the RID it was stored at.
func (f *File) InsertRow(data []byte) (rid.RID, error) {
	if len(data) != f.rowSize {
		return rid.RID{}, errors.Errorf("heap: row must be %d bytes, got %d", f.rowSize, len(data))
	}

	lastPage := f.pf.NumPages() - 1
	if lastPage < 1 {
		return f.appendNewPage(data)
	}

	buf, err := f.pool.ReadPage(f.pf, lastPage)
	if err != nil {
		return rid.RID{}, err
	}
	n := int(binary.LittleEndian.Uint16(buf[0:2]))
	if n >= f.rowsPerPage {
		if err := f.pool.UnpinPage(f.pf, lastPage, false); err != nil {
			return rid.RID{}, err
		}
		return f.appendNewPage(data)
	}

	off := pageHeaderSize + n*f.rowSize
	copy(buf[off:off+f.rowSize], data)
	binary.LittleEndian.PutUint16(buf[0:2], uint16(n+1))
	if err := f.pool.UnpinPage(f.pf, lastPage, true); err != nil {
		return rid.RID{}, err
	}

	return rid.RID{PageNo: uint32(lastPage), SlotNo: uint32(n)}, nil
}

func (f *File) appendNewPage(data []byte) (rid.RID, error) {
	id, buf, err := f.pool.AllocPage(f.pf)
	if err != nil {
		return rid.RID{}, err
	}
	binary.LittleEndian.PutUint16(buf[0:2], 1)
	copy(buf[pageHeaderSize:pageHeaderSize+f.rowSize], data)
	if err := f.pool.UnpinPage(f.pf, id, true); err != nil {
		return rid.RID{}, err
	}
	return rid.RID{PageNo: uint32(id), SlotNo: 0}, nil
}

// Scanner iterates every row of a heap file in (page, slot) order, the
// same order a fresh bulk-load walks them in.
type Scanner struct {
	f       *File
	page    pagefile.PageID
	slot    int
	numRows int
	buf     []byte
	pinned  bool
}

// NewScanner starts a scan at the heap file's first data page.
func (f *File) NewScanner() *Scanner {
	return &Scanner{f: f, page: 1, slot: 0}
}

// Next returns the next (RID, row bytes) pair, or errors.ErrEndOfFile once
// every row has been visited — the idiomatic Go rendering of the
// original's exception-driven "scanNext throws EndOfFileException"
// termination.
func (s *Scanner) Next() (rid.RID, []byte, error) {
	for {
		if s.page >= s.f.pf.NumPages() {
			s.close()
			return rid.RID{}, nil, errors.ErrEndOfFile
		}

		if !s.pinned {
			buf, err := s.f.pool.ReadPage(s.f.pf, s.page)
			if err != nil {
				return rid.RID{}, nil, err
			}
			s.buf = buf
			s.numRows = int(binary.LittleEndian.Uint16(buf[0:2]))
			s.pinned = true
		}

		if s.slot >= s.numRows {
			if err := s.f.pool.UnpinPage(s.f.pf, s.page, false); err != nil {
				return rid.RID{}, nil, err
			}
			s.pinned = false
			s.buf = nil
			s.page++
			s.slot = 0
			continue
		}

		off := pageHeaderSize + s.slot*s.f.rowSize
		row := make([]byte, s.f.rowSize)
		copy(row, s.buf[off:off+s.f.rowSize])

		r := rid.RID{PageNo: uint32(s.page), SlotNo: uint32(s.slot)}
		s.slot++
		if s.slot >= s.numRows {
			if err := s.f.pool.UnpinPage(s.f.pf, s.page, false); err != nil {
				return rid.RID{}, nil, err
			}
			s.pinned = false
			s.buf = nil
		}
		return r, row, nil
	}
}

func (s *Scanner) close() {
	if s.pinned {
		_ = s.f.pool.UnpinPage(s.f.pf, s.page, false)
		s.pinned = false
	}
}

// Close releases any page the scanner still holds pinned. Safe to call
// after Next has already returned errors.ErrEndOfFile.
func (s *Scanner) Close() {
	s.close()
}

// Int32At extracts a little-endian int32 from a row at the given byte
// offset — the key attribute an index reads to build its entries.
func Int32At(row []byte, offset int) int32 {
	return int32(binary.LittleEndian.Uint32(row[offset : offset+4]))
}
