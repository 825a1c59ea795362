package bvh

import (
	"cmp"
	"math/bits"
	"slices"
)

// selector partially orders a permutation of node indices by a scalar key (introselect).
type selector struct {
	order []Index
	key   func(Index) float64
}

// nthElement reorders order[first:last] so that order[nth] holds the element a full sort would place there,
// with no greater key before it and no smaller key after it.
func (s *selector) nthElement(first, last, nth int) {
	if first == last || last == nth {
		return
	}
	s.introselect(first, nth, last, bitlog(last-first))
}

func (s *selector) introselect(first, nth, last, depth int) {
	for last-first > 3 {
		if depth == 0 {
			s.sortRange(first, last)
			return
		}
		depth--
		pivot := median3(
			s.key(s.order[first]),
			s.key(s.order[first+(last-first)/2]),
			s.key(s.order[last-1]),
		)
		cut := s.partition(first, last, pivot)
		if cut <= first || cut >= last { // no progress (only reachable with unordered keys)
			s.sortRange(first, last)
			return
		}
		if cut <= nth {
			first = cut
		} else {
			last = cut
		}
	}
	s.insertionSort(first, last)
}

// partition is a Hoare partition around pivot: keys in [first, cut) are <= pivot and keys in [cut, last) are >= pivot.
func (s *selector) partition(first, last int, pivot float64) int {
	lo, hi := first, last
	for {
		for lo < last && s.key(s.order[lo]) < pivot {
			lo++
		}
		hi--
		for hi > first && pivot < s.key(s.order[hi]) {
			hi--
		}
		if lo >= hi {
			return lo
		}
		s.order[lo], s.order[hi] = s.order[hi], s.order[lo]
		lo++
	}
}

func (s *selector) insertionSort(first, last int) {
	for i := first + 1; i < last; i++ {
		v := s.order[i]
		k := s.key(v)
		j := i
		for j > first && k < s.key(s.order[j-1]) {
			s.order[j] = s.order[j-1]
			j--
		}
		s.order[j] = v
	}
}

func (s *selector) sortRange(first, last int) {
	slices.SortStableFunc(s.order[first:last], func(a, b Index) int {
		return cmp.Compare(s.key(a), s.key(b))
	})
}

func median3(a, b, c float64) float64 {
	if a < b {
		if b < c {
			return b
		} else if a < c {
			return c
		}
		return a
	} else if a < c {
		return a
	} else if b < c {
		return c
	}
	return b
}

// bitlog is floor(log2(n)) for n >= 1.
func bitlog(n int) int {
	return bits.Len(uint(n)) - 1
}
