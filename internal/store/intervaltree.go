package store

import "sort"

// IntervalTree provides O(log n + k) overlap queries using a sorted-slice approach.
// Rows are indexed once at build and never modified.
type IntervalTree struct {
	intervals []interval
	maxEnd    []int64 // maxEnd[i] = max(end) for intervals[:i+1]
}

type interval struct {
	start int64
	end   int64
	row   int
}

// BuildIntervalTree creates an interval tree over the given record indices.
func BuildIntervalTree(rows []int, span func(row int) (start, end int64)) *IntervalTree {
	if len(rows) == 0 {
		return &IntervalTree{}
	}

	intervals := make([]interval, len(rows))
	for i, row := range rows {
		start, end := span(row)
		intervals[i] = interval{start: start, end: end, row: row}
	}

	sort.SliceStable(intervals, func(i, j int) bool {
		return intervals[i].start < intervals[j].start
	})

	// Prefix max: scanning left from any index, once maxEnd drops below the
	// query start nothing further left can reach it.
	maxEnd := make([]int64, len(intervals))
	maxEnd[0] = intervals[0].end
	for i := 1; i < len(intervals); i++ {
		maxEnd[i] = max(maxEnd[i-1], intervals[i].end)
	}

	return &IntervalTree{intervals: intervals, maxEnd: maxEnd}
}

// Len returns the number of indexed intervals.
func (t *IntervalTree) Len() int {
	return len(t.intervals)
}

// FindOverlaps returns the rows whose [start, end] range contains pos.
func (t *IntervalTree) FindOverlaps(pos int64) []int {
	return t.FindRange(pos, pos)
}

// FindRange returns the rows whose [start, end] range overlaps
// [start, end], both ends inclusive. Rows come back in descending start order.
func (t *IntervalTree) FindRange(start, end int64) []int {
	if len(t.intervals) == 0 {
		return nil
	}

	// hi is the first index with start > end; candidates are [0, hi).
	hi := sort.Search(len(t.intervals), func(i int) bool {
		return t.intervals[i].start > end
	})

	var result []int
	for i := hi - 1; i >= 0; i-- {
		if t.maxEnd[i] < start {
			break
		}
		if t.intervals[i].end >= start {
			result = append(result, t.intervals[i].row)
		}
	}
	return result
}
