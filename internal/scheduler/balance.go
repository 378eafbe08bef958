package scheduler

import (
	"container/heap"
	"slices"
)

// Balance partitions names into shardCount shards with the greedy
// longest-processing-time heuristic: tests are taken heaviest first (ties in
// input order) and each goes to the shard with the lowest total weight so
// far (ties to the lowest shard index). The result is deterministic for a
// given input; no map iteration order leaks into it.
//
// Names missing from weights count as zero. shardCount must be >= 1.
func Balance(names []string, weights map[string]float64, shardCount int) [][]string {
	shards := make([][]string, shardCount)
	for i := range shards {
		shards[i] = []string{}
	}

	order := slices.Clone(names)
	slices.SortStableFunc(order, func(a, b string) int {
		wa, wb := weights[a], weights[b]
		switch {
		case wa > wb:
			return -1
		case wa < wb:
			return 1
		}
		return 0
	})

	h := make(loadHeap, shardCount)
	for i := range h {
		h[i] = shardLoad{index: i}
	}
	heap.Init(&h)

	for _, name := range order {
		lightest := &h[0]
		shards[lightest.index] = append(shards[lightest.index], name)
		lightest.load += weights[name]
		heap.Fix(&h, 0)
	}
	return shards
}

type shardLoad struct {
	index int
	load  float64
}

// loadHeap is a min-heap on (load, index).
type loadHeap []shardLoad

func (h loadHeap) Len() int { return len(h) }
func (h loadHeap) Less(i, j int) bool {
	if h[i].load != h[j].load {
		return h[i].load < h[j].load
	}
	return h[i].index < h[j].index
}
func (h loadHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *loadHeap) Push(x any)   { *h = append(*h, x.(shardLoad)) }
func (h *loadHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// dedupe drops repeated names, keeping the first occurrence.
func dedupe(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}
