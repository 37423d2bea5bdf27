// Command btreeidx builds and inspects a B+ tree secondary index over a
// fixed-width heap file.
//
// Usage:
//
//	btreeidx build <heap-file> <row-size> <attr-byte-offset>
//	btreeidx scan <heap-file> <row-size> <attr-byte-offset> <low-op> <low> <high-op> <high>
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"btreeindex/errors"
	"btreeindex/index"
	"btreeindex/logging"
	"btreeindex/storage/buffer"
	"btreeindex/storage/heap"
	"btreeindex/storage/rid"
)

const defaultPoolCapacity = 256

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "build":
		err = runBuild(os.Args[2:])
	case "scan":
		err = runScan(os.Args[2:])
	default:
		usage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "btreeidx: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "Usage:")
	fmt.Fprintln(os.Stderr, "  btreeidx build <heap-file> <row-size> <attr-byte-offset>")
	fmt.Fprintln(os.Stderr, "  btreeidx scan  <heap-file> <row-size> <attr-byte-offset> <low-op> <low> <high-op> <high>")
	fmt.Fprintln(os.Stderr, "  ops: gt gte lt lte")
}

func relationName(heapPath string) string {
	base := filepath.Base(heapPath)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func openHeapAndIndex(args []string) (*heap.File, *index.Index, *buffer.Pool, error) {
	if len(args) < 3 {
		usage()
		return nil, nil, nil, errors.Errorf("btreeidx: missing arguments")
	}
	heapPath := args[0]
	rowSize, err := strconv.Atoi(args[1])
	if err != nil {
		return nil, nil, nil, errors.Wrap(err, "btreeidx: row-size")
	}
	attrOffset, err := strconv.Atoi(args[2])
	if err != nil {
		return nil, nil, nil, errors.Wrap(err, "btreeidx: attr-byte-offset")
	}

	pool := buffer.NewPool(defaultPoolCapacity)

	heapFile, err := heap.Open(heapPath, rowSize, pool)
	if err != nil {
		return nil, nil, nil, errors.Wrapf(err, "btreeidx: open heap file %s", heapPath)
	}

	idx, err := index.Open(relationName(heapPath), int32(attrOffset), index.AttrInt32, heapFile, pool)
	if err != nil {
		heapFile.Close()
		return nil, nil, nil, errors.Wrap(err, "btreeidx: open index")
	}
	return heapFile, idx, pool, nil
}

func runBuild(args []string) error {
	heapFile, idx, pool, err := openHeapAndIndex(args)
	if err != nil {
		return err
	}
	defer heapFile.Close()
	defer idx.Close()

	stats := idx.Stats()
	poolStats := pool.Stats()
	logging.WithField("pages", stats.NumPages).
		WithField("rootIsLeaf", stats.RootIsLeaf).
		WithField("poolHitRate", poolStats.HitRate).
		Info("btreeidx: build complete")
	fmt.Printf("index built: %d pages, root is leaf: %v, buffer pool hit rate: %.2f%%\n",
		stats.NumPages, stats.RootIsLeaf, poolStats.HitRate*100)
	return nil
}

func parseOp(s string) (index.Op, error) {
	switch strings.ToLower(s) {
	case "gt":
		return index.GT, nil
	case "gte":
		return index.GTE, nil
	case "lt":
		return index.LT, nil
	case "lte":
		return index.LTE, nil
	default:
		return 0, errors.Errorf("btreeidx: unknown operator %q", s)
	}
}

func runScan(args []string) error {
	if len(args) < 7 {
		usage()
		return errors.Errorf("btreeidx: missing arguments")
	}

	heapFile, idx, _, err := openHeapAndIndex(args[:3])
	if err != nil {
		return err
	}
	defer heapFile.Close()
	defer idx.Close()

	lowOp, err := parseOp(args[3])
	if err != nil {
		return err
	}
	lowVal, err := strconv.ParseInt(args[4], 10, 32)
	if err != nil {
		return errors.Wrap(err, "btreeidx: low value")
	}
	highOp, err := parseOp(args[5])
	if err != nil {
		return err
	}
	highVal, err := strconv.ParseInt(args[6], 10, 32)
	if err != nil {
		return errors.Wrap(err, "btreeidx: high value")
	}

	if err := idx.StartScan(int32(lowVal), lowOp, int32(highVal), highOp); err != nil {
		return errors.Wrap(err, "btreeidx: start scan")
	}
	defer idx.EndScan()

	count := 0
	for {
		var r rid.RID
		if err := idx.ScanNext(&r); err != nil {
			if errors.Is(err, errors.ErrIndexScanCompleted) {
				break
			}
			return errors.Wrap(err, "btreeidx: scan next")
		}
		fmt.Printf("%d: page=%d slot=%d\n", count, r.PageNo, r.SlotNo)
		count++
	}
	fmt.Printf("%d matching entries\n", count)
	return nil
}
