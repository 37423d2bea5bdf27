package index

import (
	"testing"

	"btreeindex/storage/pagefile"
)

func TestPlaceInInnerKeepsOrderAndNeverTouchesChild0(t *testing.T) {
	node := newInnerView(newPageBuf())
	node.init(1)
	node.setChild(0, 100)

	node.placeInInner(50, 200)
	node.placeInInner(20, 201)
	node.placeInInner(80, 202)

	if node.n() != 3 {
		t.Fatalf("expected n=3, got %d", node.n())
	}
	if node.child(0) != 100 {
		t.Fatalf("children[0] must never change, got %d", node.child(0))
	}

	wantKeys := []int32{20, 50, 80}
	for i, want := range wantKeys {
		if node.key(i) != want {
			t.Fatalf("key(%d) = %d, want %d", i, node.key(i), want)
		}
	}
}

func TestDescendIndexTieBreakGoesToGEqSide(t *testing.T) {
	node := newInnerView(newPageBuf())
	node.init(1)
	node.setChild(0, 1)
	node.placeInInner(10, 2)
	node.placeInInner(20, 3)

	cases := []struct {
		key  int32
		want int
	}{
		{5, 0},
		{10, 1}, // equal to keys[0] descends to the "≥" child
		{15, 1},
		{20, 2},
		{25, 2},
	}
	for _, c := range cases {
		got := node.descendIndex(c.key)
		if got != c.want {
			t.Errorf("descendIndex(%d) = %d, want %d", c.key, got, c.want)
		}
	}
}

func TestDescendScanSmallestKeyGreaterThanTarget(t *testing.T) {
	node := newInnerView(newPageBuf())
	node.init(1)
	node.setChild(0, 1)
	node.placeInInner(10, 2)
	node.placeInInner(20, 3)

	cases := []struct {
		target int32
		want   int
	}{
		{5, 0},
		{9, 0},
		{10, 1},
		{19, 1},
		{20, 2},
		{30, 2}, // past every key: rightmost child
	}
	for _, c := range cases {
		got := node.descendScan(c.target)
		if got != c.want {
			t.Errorf("descendScan(%d) = %d, want %d", c.target, got, c.want)
		}
	}
}

func TestSplitInnerMovesSeparatorNotCopiesIt(t *testing.T) {
	node := newInnerView(newPageBuf())
	node.init(0)
	node.setChild(0, 1000)

	for i := 0; i < innerCapacity; i++ {
		node.placeInInner(int32(i*10), pagefile.PageID(i+1))
	}

	rightBuf := newPageBuf()
	right, sepKeyOut := node.splitInner(int32(innerCapacity*10), pagefile.PageID(innerCapacity+1), rightBuf)

	if node.level() != right.level() {
		t.Fatalf("right sibling must inherit level: left=%d right=%d", node.level(), right.level())
	}

	for i := 0; i < node.n(); i++ {
		if node.key(i) == sepKeyOut {
			t.Fatalf("pushed-up separator %d must not remain in left", sepKeyOut)
		}
	}
	for i := 0; i < right.n(); i++ {
		if right.key(i) == sepKeyOut {
			t.Fatalf("pushed-up separator %d must not remain in right", sepKeyOut)
		}
	}

	if node.n()+right.n() != innerCapacity {
		t.Fatalf("expected left.n()+right.n() == M after removing the pushed-up separator, got %d+%d", node.n(), right.n())
	}
}
