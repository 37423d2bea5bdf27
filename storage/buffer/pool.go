// Package buffer implements the buffer manager: read_page/alloc_page/
// unpin_page/flush_file over a bounded number of frames. It pins pages in
// memory, tracks dirty bits, and evicts unpinned frames LRU-first when the
// pool is full — every pin taken must be matched by exactly one unpin, the
// hard invariant the rest of this module is built around.
package buffer

import (
	"container/list"

	"github.com/dgraph-io/ristretto/v2"

	"btreeindex/errors"
	"btreeindex/logging"
	"btreeindex/storage/pagefile"
)

// frameKey identifies a cached page across every open file the pool
// serves — read_page/unpin_page/flush_file all take a file argument
// precisely because one pool backs many files.
type frameKey struct {
	file *pagefile.File
	id   pagefile.PageID
}

type frame struct {
	data     []byte
	dirty    bool
	pinCount int
	elem     *list.Element // this frame's node in the LRU list
}

// Pool is a fixed-capacity page cache shared by every paged file the
// caller opens through it. Capacity is expressed in frames (pages), not
// bytes.
type Pool struct {
	capacity int
	frames   map[frameKey]*frame
	lru      *list.List // front = least recently used

	metrics *ristretto.Cache[uint64, struct{}]
}

// metricsKey packs a file handle and page id into a single uint64 so
// ristretto (which hashes scalar keys directly) never has to hash a
// struct containing a pointer.
func metricsKey(file *pagefile.File, id pagefile.PageID) uint64 {
	return file.Handle()<<32 | uint64(id)
}

// NewPool creates a buffer pool that holds at most capacity pages across
// all files at once.
func NewPool(capacity int) *Pool {
	// ristretto here is not the page store — the frame map and LRU list
	// above are — it is a side channel purely for hit-rate telemetry, the
	// same role BufferPoolStats.HitRate was reserved for upstream but
	// never wired up.
	metrics, _ := ristretto.NewCache(&ristretto.Config[uint64, struct{}]{
		NumCounters: int64(capacity) * 10,
		MaxCost:     int64(capacity),
		BufferItems: 64,
		Metrics:     true,
	})

	return &Pool{
		capacity: capacity,
		frames:   make(map[frameKey]*frame, capacity),
		lru:      list.New(),
		metrics:  metrics,
	}
}

// Stats summarizes the pool's current occupancy, for diagnostics.
type Stats struct {
	Frames      int
	PinnedPages int
	DirtyPages  int
	Capacity    int
	HitRate     float64
}

// Stats reports the pool's current occupancy and the ristretto-tracked
// hit ratio since the pool was created.
func (p *Pool) Stats() Stats {
	s := Stats{Frames: len(p.frames), Capacity: p.capacity}
	for _, fr := range p.frames {
		if fr.pinCount > 0 {
			s.PinnedPages++
		}
		if fr.dirty {
			s.DirtyPages++
		}
	}
	if m := p.metrics.Metrics; m != nil {
		s.HitRate = m.Ratio()
	}
	return s
}

// ReadPage pins and returns the bytes of an existing page, reading it from
// disk through file on a cache miss. The returned slice is owned by the
// pool; callers must treat it as the single in-memory copy of the page
// and must call UnpinPage exactly once for every ReadPage/AllocPage.
func (p *Pool) ReadPage(file *pagefile.File, id pagefile.PageID) ([]byte, error) {
	key := frameKey{file, id}

	if fr, ok := p.frames[key]; ok {
		p.touch(fr)
		fr.pinCount++
		p.metrics.Get(metricsKey(file, id))
		return fr.data, nil
	}
	p.metrics.Set(metricsKey(file, id), struct{}{}, 1)

	data := make([]byte, pagefile.PageSize)
	if err := file.ReadAt(id, data); err != nil {
		return nil, errors.Wrapf(err, "buffer: read page %d", id)
	}

	fr := &frame{data: data, pinCount: 1}
	if err := p.install(key, fr); err != nil {
		return nil, err
	}
	return fr.data, nil
}

// AllocPage allocates a fresh, zeroed page in file and pins it. The
// returned page id and bytes are not yet persisted — they become durable
// only once UnpinPage(dirty=true) is followed by a later FlushFile.
func (p *Pool) AllocPage(file *pagefile.File) (pagefile.PageID, []byte, error) {
	id, err := file.AllocatePage()
	if err != nil {
		return 0, nil, errors.Wrap(err, "buffer: allocate page")
	}

	key := frameKey{file, id}
	fr := &frame{data: make([]byte, pagefile.PageSize), dirty: true, pinCount: 1}
	if err := p.install(key, fr); err != nil {
		return 0, nil, err
	}
	logging.WithField("page", id).Debug("buffer: allocated page")
	return id, fr.data, nil
}

// install inserts a freshly created frame into the pool, evicting an
// unpinned victim first if the pool is already at capacity.
func (p *Pool) install(key frameKey, fr *frame) error {
	if len(p.frames) >= p.capacity {
		if err := p.evictOne(); err != nil {
			return err
		}
	}
	fr.elem = p.lru.PushBack(key)
	p.frames[key] = fr
	return nil
}

// UnpinPage releases one pin on a previously read/allocated page. dirty
// must be true iff the page's bytes were modified while pinned — a wrong
// dirty bit here is silent data corruption.
//
// Returns errors.ErrHashNotFound if the page isn't cached and
// errors.ErrPageNotPinned if it has no outstanding pin; both are
// swallowed only by the index's EndScan/Close paths.
func (p *Pool) UnpinPage(file *pagefile.File, id pagefile.PageID, dirty bool) error {
	key := frameKey{file, id}
	fr, ok := p.frames[key]
	if !ok {
		return errors.ErrHashNotFound
	}
	if fr.pinCount <= 0 {
		return errors.ErrPageNotPinned
	}

	fr.pinCount--
	if dirty {
		fr.dirty = true
	}
	p.touch(fr)
	return nil
}

// FlushFile writes every dirty page belonging to file to disk and clears
// their dirty bits. It does not evict or unpin anything.
func (p *Pool) FlushFile(file *pagefile.File) error {
	for key, fr := range p.frames {
		if key.file != file || !fr.dirty {
			continue
		}
		if err := file.WriteAt(key.id, fr.data); err != nil {
			return errors.Wrapf(err, "buffer: flush page %d", key.id)
		}
		fr.dirty = false
	}
	return file.Sync()
}

// DropFile evicts every frame belonging to file without flushing — used
// when a file is being closed and its dirty pages have already been
// flushed explicitly.
func (p *Pool) DropFile(file *pagefile.File) {
	for key, fr := range p.frames {
		if key.file != file {
			continue
		}
		p.lru.Remove(fr.elem)
		delete(p.frames, key)
	}
}

// touch moves fr to the most-recently-used end of the LRU list.
func (p *Pool) touch(fr *frame) {
	p.lru.MoveToBack(fr.elem)
}

// evictOne removes the least-recently-used unpinned frame, flushing it
// first if dirty. Returns an error if every frame in the pool is pinned.
func (p *Pool) evictOne() error {
	for e := p.lru.Front(); e != nil; e = e.Next() {
		key := e.Value.(frameKey)
		fr := p.frames[key]
		if fr.pinCount > 0 {
			continue
		}
		if fr.dirty {
			if err := key.file.WriteAt(key.id, fr.data); err != nil {
				return errors.Wrapf(err, "buffer: evict-flush page %d", key.id)
			}
		}
		p.lru.Remove(e)
		delete(p.frames, key)
		return nil
	}
	return errors.Errorf("buffer: pool exhausted, all %d frames pinned", p.capacity)
}
