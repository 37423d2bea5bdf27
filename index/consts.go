package index

import "btreeindex/storage/pagefile"

const (
	leafHeaderSize  = 2 + 4 // n uint16, rightSib uint32
	leafEntrySize   = 4 + 8 // key int32, RID{PageNo,SlotNo} uint32+uint32
	innerHeaderSize = 2 + 2 // n uint16, level uint16
	innerKeySize    = 4     // int32
	innerChildSize  = 4     // pagefile.PageID
)

// leafCapacity (L) and innerCapacity (M) are derived from PageSize to
// maximize page utilization while leaving room for each layout's fixed
// header.
const (
	leafCapacity  = (pagefile.PageSize - leafHeaderSize) / leafEntrySize
	innerCapacity = (pagefile.PageSize - innerHeaderSize - innerChildSize) / (innerKeySize + innerChildSize)
)
