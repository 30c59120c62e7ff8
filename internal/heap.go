package internal

// DirtyHeap holds the computeds waiting to recompute, bucketed by height.
// A computed is always taller than everything it reads, so draining the
// lowest bucket first recomputes each one after its dependencies.
type DirtyHeap struct {
	buckets [][]*ComputedObserver // [height]computeds
	size    int
}

func (h *DirtyHeap) Insert(c *ComputedObserver) {
	for len(h.buckets) <= c.height {
		h.buckets = append(h.buckets, nil)
	}

	h.buckets[c.height] = append(h.buckets[c.height], c)
	h.size++
}

func (h *DirtyHeap) Len() int {
	return h.size
}

// PopMin removes and returns the oldest computed of the lowest height, or nil when empty.
func (h *DirtyHeap) PopMin() *ComputedObserver {
	if h.size == 0 {
		return nil
	}

	for height, bucket := range h.buckets {
		if len(bucket) == 0 {
			continue
		}

		c := bucket[0]
		bucket[0] = nil
		h.buckets[height] = bucket[1:]
		h.size--
		return c
	}
	return nil
}
