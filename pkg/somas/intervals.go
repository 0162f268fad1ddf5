// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package somas

import (
	"slices"
	"sort"

	"golang.org/x/exp/constraints"
)

// span is a closed range [lo, hi] tagged with the id of its owner.
type span[T constraints.Integer] struct {
	lo, hi T
	id     int
}

// intervalIndex is a static interval tree: the spans are sorted by (lo, id) and the sorted
// array is viewed as an implicit balanced binary tree (the root of [begin, end) is its middle
// element), where each node also stores the max hi of its subtree.
//
// Building is O(n log n) and finding the k spans overlapping a query is O(log n + k).
type intervalIndex[T constraints.Integer] struct {
	spans []span[T]
	maxHi []T
}

func newIntervalIndex[T constraints.Integer](spans []span[T]) *intervalIndex[T] {
	idx := &intervalIndex[T]{
		spans: slices.Clone(spans),
		maxHi: make([]T, len(spans)),
	}
	slices.SortFunc(idx.spans, func(a, b span[T]) int {
		if a.lo != b.lo {
			if a.lo < b.lo {
				return -1
			}
			return 1
		}
		return a.id - b.id
	})
	if len(idx.spans) > 0 {
		idx.build(0, len(idx.spans))
	}
	return idx
}

func (idx *intervalIndex[T]) build(begin, end int) (maxHi T) {
	mid := (begin + end) / 2
	maxHi = idx.spans[mid].hi
	if begin < mid {
		maxHi = max(maxHi, idx.build(begin, mid))
	}
	if mid+1 < end {
		maxHi = max(maxHi, idx.build(mid+1, end))
	}
	idx.maxHi[mid] = maxHi
	return
}

// Len returns the number of indexed spans.
func (idx *intervalIndex[T]) Len() int { return len(idx.spans) }

// ForEachOverlap calls fn with the id of every span that overlaps [lo, hi], in (lo, id) order.
func (idx *intervalIndex[T]) ForEachOverlap(lo, hi T, fn func(id int)) {
	idx.query(0, len(idx.spans), lo, hi, fn)
}

func (idx *intervalIndex[T]) query(begin, end int, lo, hi T, fn func(id int)) {
	if begin >= end {
		return
	}
	mid := (begin + end) / 2
	if idx.maxHi[mid] < lo {
		// Nothing in this subtree reaches lo.
		return
	}
	idx.query(begin, mid, lo, hi, fn)
	s := idx.spans[mid]
	if s.lo > hi {
		// Everything to the right starts even later.
		return
	}
	if s.hi >= lo {
		fn(s.id)
	}
	idx.query(mid+1, end, lo, hi, fn)
}

// countOverlaps returns the number of spans overlapping [lo, hi] without enumerating them:
// it is the total minus the spans that end before lo and the spans that start after hi.
func countOverlaps[T constraints.Integer](sortedLos, sortedHis []T, lo, hi T) int {
	endBefore, _ := slices.BinarySearch(sortedHis, lo)
	startAfter := len(sortedLos) - upperBound(sortedLos, hi)
	return len(sortedLos) - endBefore - startAfter
}

// upperBound returns the index of the first element > value.
func upperBound[T constraints.Integer](sorted []T, value T) int {
	return sort.Search(len(sorted), func(i int) bool { return sorted[i] > value })
}
