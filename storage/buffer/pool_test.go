package buffer

import (
	"path/filepath"
	"testing"

	"btreeindex/errors"
	"btreeindex/storage/pagefile"
)

func newTestFile(t *testing.T) *pagefile.File {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.pf")
	f, err := pagefile.Create(path)
	if err != nil {
		t.Fatalf("pagefile.Create: %v", err)
	}
	t.Cleanup(func() { f.Close() })
	return f
}

func TestReadPageAllocPagePinBalance(t *testing.T) {
	f := newTestFile(t)
	pool := NewPool(4)

	id, _, err := pool.AllocPage(f)
	if err != nil {
		t.Fatalf("AllocPage: %v", err)
	}
	if err := pool.UnpinPage(f, id, true); err != nil {
		t.Fatalf("UnpinPage: %v", err)
	}

	if _, err := pool.ReadPage(f, id); err != nil {
		t.Fatalf("ReadPage: %v", err)
	}
	if err := pool.UnpinPage(f, id, false); err != nil {
		t.Fatalf("UnpinPage: %v", err)
	}

	stats := pool.Stats()
	if stats.PinnedPages != 0 {
		t.Fatalf("expected 0 pinned pages, got %d", stats.PinnedPages)
	}
}

func TestUnpinPageWithoutPinReturnsErrPageNotPinned(t *testing.T) {
	f := newTestFile(t)
	pool := NewPool(4)

	id, _, err := pool.AllocPage(f)
	if err != nil {
		t.Fatalf("AllocPage: %v", err)
	}
	if err := pool.UnpinPage(f, id, true); err != nil {
		t.Fatalf("UnpinPage: %v", err)
	}

	if err := pool.UnpinPage(f, id, false); !errors.Is(err, errors.ErrPageNotPinned) {
		t.Fatalf("expected ErrPageNotPinned unpinning an already-unpinned page, got %v", err)
	}
}

func TestUnpinUnknownPageReturnsErrHashNotFound(t *testing.T) {
	f := newTestFile(t)
	pool := NewPool(4)

	if err := pool.UnpinPage(f, 99, false); !errors.Is(err, errors.ErrHashNotFound) {
		t.Fatalf("expected ErrHashNotFound unpinning a page never read or allocated, got %v", err)
	}
}

func TestEvictionRefusedWhenAllFramesPinned(t *testing.T) {
	f := newTestFile(t)
	pool := NewPool(2)

	if _, _, err := pool.AllocPage(f); err != nil {
		t.Fatalf("AllocPage 1: %v", err)
	}
	if _, _, err := pool.AllocPage(f); err != nil {
		t.Fatalf("AllocPage 2: %v", err)
	}

	if _, _, err := pool.AllocPage(f); err == nil {
		t.Fatal("expected pool-exhausted error with both frames still pinned")
	}
}

func TestUnpinningFreesEvictionCandidate(t *testing.T) {
	f := newTestFile(t)
	pool := NewPool(2)

	id1, _, err := pool.AllocPage(f)
	if err != nil {
		t.Fatalf("AllocPage 1: %v", err)
	}
	if _, _, err := pool.AllocPage(f); err != nil {
		t.Fatalf("AllocPage 2: %v", err)
	}
	if err := pool.UnpinPage(f, id1, true); err != nil {
		t.Fatalf("UnpinPage: %v", err)
	}

	id3, _, err := pool.AllocPage(f)
	if err != nil {
		t.Fatalf("AllocPage 3 after freeing a frame: %v", err)
	}
	if err := pool.UnpinPage(f, id3, true); err != nil {
		t.Fatalf("UnpinPage: %v", err)
	}

	stats := pool.Stats()
	if stats.Frames != 2 {
		t.Fatalf("expected pool to stay at capacity 2, got %d frames", stats.Frames)
	}
}

func TestFlushFilePersistsDirtyPages(t *testing.T) {
	f := newTestFile(t)
	pool := NewPool(4)

	id, buf, err := pool.AllocPage(f)
	if err != nil {
		t.Fatalf("AllocPage: %v", err)
	}
	copy(buf, []byte("dirty data"))
	if err := pool.UnpinPage(f, id, true); err != nil {
		t.Fatalf("UnpinPage: %v", err)
	}

	if err := pool.FlushFile(f); err != nil {
		t.Fatalf("FlushFile: %v", err)
	}

	raw := make([]byte, pagefile.PageSize)
	if err := f.ReadAt(id, raw); err != nil {
		t.Fatalf("ReadAt: %v", err)
	}
	if string(raw[:10]) != "dirty data" {
		t.Fatalf("expected flushed page to contain written bytes, got %q", raw[:10])
	}
}
