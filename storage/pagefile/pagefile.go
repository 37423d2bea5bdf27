// Package pagefile implements the paged file store: open or create a file
// by name, address it in fixed-size pages, and report the header page's
// id. The buffer manager (storage/buffer) is the only caller that reads or
// writes page bytes; the index and heap file only open, create, size and
// close files here, and nothing above the buffer manager ever seeks or
// reads a *File's descriptor directly.
package pagefile

import (
	"os"
	"sync/atomic"

	"btreeindex/errors"
	"btreeindex/logging"
)

// PageSize is the fixed size of every page in every file this module
// manages, for both the heap file and the index file.
const PageSize = 8192

// PageID identifies a page within a single File. 0 is never a valid
// allocated page id for index nodes — it is reserved as the "absent"
// sentinel in inner-node child slots — but it IS the file's header page,
// which callers reach via FirstPageNo, not via PageID 0 arithmetic.
type PageID uint32

var nextFileHandle uint64

// File is one open paged file. It owns the OS handle and the page count;
// it performs no caching or pinning of its own — that discipline belongs
// entirely to storage/buffer.
type File struct {
	path     string
	f        *os.File
	numPages PageID
	headerID PageID
	handle   uint64 // process-lifetime-unique id, used as the buffer pool's metrics key
}

// Handle returns a small integer that uniquely identifies this File for
// the lifetime of the process. storage/buffer uses it as a cheap,
// hashable key for its hit-rate metrics cache.
func (f *File) Handle() uint64 { return f.handle }

// Open opens an existing paged file. It fails with errors.ErrFileNotFound
// if name does not exist, so Open/Create callers (the index's Open) can
// switch to the create-new path.
func Open(name string) (*File, error) {
	if _, err := os.Stat(name); err != nil {
		if os.IsNotExist(err) {
			return nil, errors.ErrFileNotFound
		}
		return nil, errors.Wrapf(err, "pagefile: stat %s", name)
	}

	f, err := os.OpenFile(name, os.O_RDWR, 0644)
	if err != nil {
		return nil, errors.Wrapf(err, "pagefile: open %s", name)
	}

	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, errors.Wrapf(err, "pagefile: stat %s", name)
	}

	numPages := PageID(stat.Size() / PageSize)
	logging.L.WithField("file", name).WithField("pages", numPages).Debug("pagefile: opened existing file")

	return &File{path: name, f: f, numPages: numPages, headerID: 0, handle: atomic.AddUint64(&nextFileHandle, 1)}, nil
}

// Create creates a brand-new paged file, truncating any existing file of
// the same name. The caller is responsible for allocating the header page
// as its first AllocatePage call.
func Create(name string) (*File, error) {
	f, err := os.OpenFile(name, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return nil, errors.Wrapf(err, "pagefile: create %s", name)
	}
	logging.L.WithField("file", name).Debug("pagefile: created new file")
	return &File{path: name, f: f, numPages: 0, headerID: 0, handle: atomic.AddUint64(&nextFileHandle, 1)}, nil
}

// Path returns the filesystem path this File was opened/created with.
func (f *File) Path() string { return f.path }

// FirstPageNo returns the header page's id — always 0, since the header is
// the first page ever allocated in a freshly created file.
func (f *File) FirstPageNo() PageID { return f.headerID }

// NumPages reports how many pages have been allocated in this file.
func (f *File) NumPages() PageID { return f.numPages }

// AllocatePage grows the file by one page and returns its id. The page's
// bytes on disk are left as whatever the OS provides (typically zero via a
// sparse-file hole); the buffer manager is responsible for writing a
// zeroed frame before handing the page to a caller.
func (f *File) AllocatePage() (PageID, error) {
	id := f.numPages
	f.numPages++
	return id, nil
}

// ReadAt reads the raw bytes of page id into buf, which must be exactly
// PageSize long.
func (f *File) ReadAt(id PageID, buf []byte) error {
	if len(buf) != PageSize {
		return errors.Errorf("pagefile: buffer must be %d bytes", PageSize)
	}
	off := int64(id) * PageSize
	n, err := f.f.ReadAt(buf, off)
	if err != nil && n == 0 {
		// A page that was allocated but never written (a sparse hole past
		// EOF) reads back as all zeros — that's a valid empty page, not
		// an error.
		for i := range buf {
			buf[i] = 0
		}
		return nil
	}
	for i := n; i < len(buf); i++ {
		buf[i] = 0
	}
	return nil
}

// WriteAt persists the raw bytes of page id, which must be exactly
// PageSize long.
func (f *File) WriteAt(id PageID, buf []byte) error {
	if len(buf) != PageSize {
		return errors.Errorf("pagefile: buffer must be %d bytes", PageSize)
	}
	off := int64(id) * PageSize
	if _, err := f.f.WriteAt(buf, off); err != nil {
		return errors.Wrapf(err, "pagefile: write page %d", id)
	}
	return nil
}

// Sync flushes the OS file buffers to stable storage.
func (f *File) Sync() error {
	if err := f.f.Sync(); err != nil {
		return errors.Wrapf(err, "pagefile: sync %s", f.path)
	}
	return nil
}

// Close releases the OS file handle.
func (f *File) Close() error {
	if f.f == nil {
		return nil
	}
	err := f.f.Close()
	f.f = nil
	return err
}
