package index

import (
	"math/rand"
	"path/filepath"
	"testing"

	idxerrors "btreeindex/errors"
	"btreeindex/storage/buffer"
	"btreeindex/storage/heap"
	"btreeindex/storage/rid"
)

const testRowSize = 8

func buildHeap(t *testing.T, dir string, name string, keys []int32, pool *buffer.Pool) *heap.File {
	t.Helper()
	path := filepath.Join(dir, name+".heap")
	hf, err := heap.Create(path, testRowSize, pool)
	if err != nil {
		t.Fatalf("heap.Create: %v", err)
	}
	for _, k := range keys {
		row := make([]byte, testRowSize)
		row[0] = byte(k)
		row[1] = byte(k >> 8)
		row[2] = byte(k >> 16)
		row[3] = byte(k >> 24)
		if _, err := hf.InsertRow(row); err != nil {
			t.Fatalf("InsertRow(%d): %v", k, err)
		}
	}
	return hf
}

func collectScan(t *testing.T, idx *Index) []rid.RID {
	t.Helper()
	var out []rid.RID
	for {
		var r rid.RID
		err := idx.ScanNext(&r)
		if idxerrors.Is(err, idxerrors.ErrIndexScanCompleted) {
			break
		}
		if err != nil {
			t.Fatalf("ScanNext: %v", err)
		}
		out = append(out, r)
	}
	return out
}

// S1-like: sequential insert, bounded scan yields an ascending, contiguous
// run of keys.
func TestBulkLoadSequentialThenBoundedScan(t *testing.T) {
	dir := t.TempDir()
	pool := buffer.NewPool(64)

	const n = 2000
	keys := make([]int32, n)
	for i := range keys {
		keys[i] = int32(i)
	}
	hf := buildHeap(t, dir, "seq", keys, pool)
	defer hf.Close()

	idx, err := Open("seq_idx", 0, AttrInt32, hf, pool)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer idx.Close()

	if err := idx.StartScan(25, GTE, 35, LT); err != nil {
		t.Fatalf("StartScan: %v", err)
	}
	results := collectScan(t, idx)
	if err := idx.EndScan(); err != nil {
		t.Fatalf("EndScan: %v", err)
	}

	if len(results) != 10 {
		t.Fatalf("expected 10 matching entries (25..34), got %d", len(results))
	}
	// Keys 0..1999 were inserted in order, so key k sits at heap page 1,
	// slot k for every k in 25..34.
	for i, r := range results {
		want := rid.RID{PageNo: 1, SlotNo: uint32(25 + i)}
		if r != want {
			t.Fatalf("result %d: expected %+v (key %d), got %+v", i, want, 25+i, r)
		}
	}
}

// S2-like: descending bulk load still yields an ascending full scan.
func TestBulkLoadDescendingThenFullScanIsAscending(t *testing.T) {
	dir := t.TempDir()
	pool := buffer.NewPool(64)

	const n = 2000
	keys := make([]int32, n)
	for i := range keys {
		keys[i] = int32(n - 1 - i)
	}
	hf := buildHeap(t, dir, "desc", keys, pool)
	defer hf.Close()

	idx, err := Open("desc_idx", 0, AttrInt32, hf, pool)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer idx.Close()

	// Map each heap RID back to the key stored in its row, so the scan's
	// order can be checked by key rather than by heap position.
	keyOf := make(map[rid.RID]int32, n)
	sc := hf.NewScanner()
	for {
		r, row, err := sc.Next()
		if idxerrors.Is(err, idxerrors.ErrEndOfFile) {
			break
		}
		if err != nil {
			t.Fatalf("heap scan: %v", err)
		}
		keyOf[r] = heap.Int32At(row, 0)
	}
	sc.Close()

	if err := idx.StartScan(-2147483648, GTE, 2147483647, LTE); err != nil {
		t.Fatalf("StartScan: %v", err)
	}

	prevKey := -1
	count := 0
	for {
		var r rid.RID
		err := idx.ScanNext(&r)
		if idxerrors.Is(err, idxerrors.ErrIndexScanCompleted) {
			break
		}
		if err != nil {
			t.Fatalf("ScanNext: %v", err)
		}
		key := int(keyOf[r])
		if key < prevKey {
			t.Fatalf("scan not ascending: saw key %d after %d", key, prevKey)
		}
		prevKey = key
		count++
	}
	if err := idx.EndScan(); err != nil {
		t.Fatalf("EndScan: %v", err)
	}
	if count != n {
		t.Fatalf("expected %d entries, got %d", n, count)
	}
}

// S3-like: a random permutation with a range entirely above the max key
// raises NoSuchKeyFound.
func TestScanAboveMaxKeyRaisesNoSuchKeyFound(t *testing.T) {
	dir := t.TempDir()
	pool := buffer.NewPool(64)

	const n = 1000
	keys := make([]int32, n)
	for i := range keys {
		keys[i] = int32(i)
	}
	rng := rand.New(rand.NewSource(1))
	rng.Shuffle(len(keys), func(i, j int) { keys[i], keys[j] = keys[j], keys[i] })

	hf := buildHeap(t, dir, "perm", keys, pool)
	defer hf.Close()

	idx, err := Open("perm_idx", 0, AttrInt32, hf, pool)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer idx.Close()

	err = idx.StartScan(int32(n), GT, 2147483647, LT)
	if !idxerrors.Is(err, idxerrors.ErrNoSuchKeyFound) {
		t.Fatalf("expected ErrNoSuchKeyFound, got %v", err)
	}
}

// S4: invalid operator combinations and ranges are rejected before any
// descent happens.
func TestStartScanRejectsBadOpsAndRange(t *testing.T) {
	dir := t.TempDir()
	pool := buffer.NewPool(64)
	hf := buildHeap(t, dir, "small", []int32{1, 2, 3}, pool)
	defer hf.Close()

	idx, err := Open("small_idx", 0, AttrInt32, hf, pool)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer idx.Close()

	if err := idx.StartScan(5, GT, 3, LT); !idxerrors.Is(err, idxerrors.ErrBadScanRange) {
		t.Fatalf("expected ErrBadScanRange, got %v", err)
	}
	if err := idx.StartScan(0, GTE, 10, GTE); !idxerrors.Is(err, idxerrors.ErrBadOpcodes) {
		t.Fatalf("expected ErrBadOpcodes, got %v", err)
	}
}

// S5: reopening with a mismatched identity field raises BadIndexInfo, and
// reopening with the correct identity preserves scan results.
func TestReopenIdentityMismatchRaisesBadIndexInfo(t *testing.T) {
	dir := t.TempDir()
	pool := buffer.NewPool(64)

	keys := make([]int32, 200)
	for i := range keys {
		keys[i] = int32(i)
	}
	hf := buildHeap(t, dir, "reopen", keys, pool)
	defer hf.Close()

	idx, err := Open("reopen_idx", 0, AttrInt32, hf, pool)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := idx.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// Same derived filename ("reopen_idx.0"), mismatched attrType — the
	// one identity field not embedded in the filename itself.
	if _, err := Open("reopen_idx", 0, AttrString, hf, pool); !idxerrors.Is(err, idxerrors.ErrBadIndexInfo) {
		t.Fatalf("expected ErrBadIndexInfo on attrType mismatch, got %v", err)
	}

	reopened, err := Open("reopen_idx", 0, AttrInt32, hf, pool)
	if err != nil {
		t.Fatalf("Open on matching identity: %v", err)
	}
	defer reopened.Close()

	if err := reopened.StartScan(0, GTE, 199, LTE); err != nil {
		t.Fatalf("StartScan after reopen: %v", err)
	}
	results := collectScan(t, reopened)
	if err := reopened.EndScan(); err != nil {
		t.Fatalf("EndScan: %v", err)
	}
	if len(results) != 200 {
		t.Fatalf("expected 200 entries after reopen, got %d", len(results))
	}
}

// S6: scan_next/end_scan without an active scan, and scan_next past
// exhaustion, raise the documented sentinel errors.
func TestScanStateMachineErrors(t *testing.T) {
	dir := t.TempDir()
	pool := buffer.NewPool(64)
	hf := buildHeap(t, dir, "sm", []int32{1, 2, 3}, pool)
	defer hf.Close()

	idx, err := Open("sm_idx", 0, AttrInt32, hf, pool)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer idx.Close()

	var r rid.RID
	if err := idx.ScanNext(&r); !idxerrors.Is(err, idxerrors.ErrScanNotInitialized) {
		t.Fatalf("expected ErrScanNotInitialized, got %v", err)
	}
	if err := idx.EndScan(); !idxerrors.Is(err, idxerrors.ErrScanNotInitialized) {
		t.Fatalf("expected ErrScanNotInitialized on EndScan, got %v", err)
	}

	if err := idx.StartScan(1, GTE, 3, LTE); err != nil {
		t.Fatalf("StartScan: %v", err)
	}
	for i := 0; i < 3; i++ {
		if err := idx.ScanNext(&r); err != nil {
			t.Fatalf("ScanNext %d: %v", i, err)
		}
	}
	if err := idx.ScanNext(&r); !idxerrors.Is(err, idxerrors.ErrIndexScanCompleted) {
		t.Fatalf("expected ErrIndexScanCompleted, got %v", err)
	}
	if err := idx.EndScan(); err != nil {
		t.Fatalf("EndScan: %v", err)
	}
}

// Invariant 5 (pin balance): repeated inserts and scans never leave pages
// pinned once each operation completes.
func TestPinBalanceAcrossInsertsAndScans(t *testing.T) {
	dir := t.TempDir()
	pool := buffer.NewPool(64)
	hf := buildHeap(t, dir, "pins", nil, pool)
	defer hf.Close()

	idx, err := Open("pins_idx", 0, AttrInt32, hf, pool)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer idx.Close()

	for i := int32(0); i < 3000; i++ {
		if err := idx.Insert(i, rid.RID{PageNo: uint32(i + 1), SlotNo: 0}); err != nil {
			t.Fatalf("Insert(%d): %v", i, err)
		}
	}
	if stats := pool.Stats(); stats.PinnedPages != 0 {
		t.Fatalf("expected 0 pinned pages after inserts, got %d", stats.PinnedPages)
	}

	if err := idx.StartScan(100, GTE, 200, LT); err != nil {
		t.Fatalf("StartScan: %v", err)
	}
	collectScan(t, idx)
	if err := idx.EndScan(); err != nil {
		t.Fatalf("EndScan: %v", err)
	}
	if stats := pool.Stats(); stats.PinnedPages != 0 {
		t.Fatalf("expected 0 pinned pages after scan, got %d", stats.PinnedPages)
	}
}
