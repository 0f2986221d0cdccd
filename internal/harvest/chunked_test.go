package harvest

import (
	"testing"
)

func TestSplitRanges_EvenDivision(t *testing.T) {
	size := int64(40 * 1024 * 1024)
	ranges := splitRanges(size, 4)

	want := []chunkRange{
		{offset: 0, length: 10 * 1024 * 1024},
		{offset: 10 * 1024 * 1024, length: 10 * 1024 * 1024},
		{offset: 20 * 1024 * 1024, length: 10 * 1024 * 1024},
		{offset: 30 * 1024 * 1024, length: 10 * 1024 * 1024},
	}
	if len(ranges) != len(want) {
		t.Fatalf("expected %d ranges, got %d", len(want), len(ranges))
	}
	for i, r := range ranges {
		if r != want[i] {
			t.Errorf("range %d: expected %+v, got %+v", i, want[i], r)
		}
	}
}

func TestSplitRanges_RemainderGoesToLast(t *testing.T) {
	ranges := splitRanges(10, 4)

	var covered int64
	for i, r := range ranges {
		if r.offset != covered {
			t.Errorf("range %d: gap or overlap at offset %d, expected %d", i, r.offset, covered)
		}
		covered += r.length
	}
	if covered != 10 {
		t.Errorf("expected 10 bytes covered, got %d", covered)
	}
	if last := ranges[len(ranges)-1]; last.length != 4 {
		t.Errorf("expected last range to absorb remainder (length 4), got %d", last.length)
	}
}

func TestSplitRanges_SizeSmallerThanFanOut(t *testing.T) {
	ranges := splitRanges(3, 4)

	var covered int64
	for _, r := range ranges {
		covered += r.length
	}
	if covered != 3 {
		t.Errorf("expected 3 bytes covered, got %d", covered)
	}
}

func TestSplitRanges_NoGapsNoOverlaps(t *testing.T) {
	sizes := []int64{1, 7, 1024, 1<<20 + 3, 10 << 20}
	for _, size := range sizes {
		for n := 1; n <= 8; n++ {
			ranges := splitRanges(size, n)
			var next int64
			for i, r := range ranges {
				if r.offset != next {
					t.Errorf("size=%d n=%d range %d: offset %d, expected %d", size, n, i, r.offset, next)
				}
				next += r.length
			}
			if next != size {
				t.Errorf("size=%d n=%d: covered %d bytes", size, n, next)
			}
		}
	}
}
