// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package somas

import (
	"math/rand"
	"slices"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIntervalIndex(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for _, numSpans := range []int{0, 1, 2, 7, 100, 513} {
		spans := make([]span[int], numSpans)
		for ii := range spans {
			lo := rng.Intn(200)
			spans[ii] = span[int]{lo: lo, hi: lo + rng.Intn(30), id: ii}
		}
		idx := newIntervalIndex(spans)
		require.Equal(t, numSpans, idx.Len())

		los := make([]int, numSpans)
		his := make([]int, numSpans)
		for ii, s := range spans {
			los[ii], his[ii] = s.lo, s.hi
		}
		slices.Sort(los)
		slices.Sort(his)

		for range 50 {
			lo := rng.Intn(240) - 10
			hi := lo + rng.Intn(20)
			var want []int
			for _, s := range spans {
				if s.lo <= hi && lo <= s.hi {
					want = append(want, s.id)
				}
			}
			var got []int
			idx.ForEachOverlap(lo, hi, func(id int) { got = append(got, id) })
			require.Len(t, got, len(want), "query [%d, %d] over %d spans", lo, hi, numSpans)
			slices.Sort(got)
			require.Equal(t, want, got)
			require.Equal(t, len(want), countOverlaps(los, his, lo, hi))
		}
	}
}

func TestIntervalIndex_Order(t *testing.T) {
	spans := []span[int64]{{lo: 10, hi: 20, id: 3}, {lo: 0, hi: 100, id: 2}, {lo: 10, hi: 11, id: 1}, {lo: 50, hi: 60, id: 0}}
	idx := newIntervalIndex(spans)
	var got []int
	idx.ForEachOverlap(5, 55, func(id int) { got = append(got, id) })
	require.Equal(t, []int{2, 1, 3, 0}, got, "spans should be visited in (lo, id) order")
}
