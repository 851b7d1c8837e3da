// Package queue provides the distance-ordered priority queues used by graph
// traversal: min-order for candidate expansion, max-order for result sets.
package queue

import "container/heap"

// Compile time check to ensure PriorityQueue satisfies the heap interface.
var _ heap.Interface = (*PriorityQueue)(nil)

// Item is an entry in the priority queue: a node identifier ranked by its
// distance to the query.
type Item struct {
	Node     uint32
	Distance float32
	index    int
}

// PriorityQueue implements heap.Interface over Items.
// With Descending set it behaves as a max-heap (furthest candidate on top),
// which is the shape search uses for bounded result sets.
type PriorityQueue struct {
	Descending bool
	Items      []*Item
}

// Len returns the number of elements in the priority queue.
func (pq *PriorityQueue) Len() int { return len(pq.Items) }

// Less reports whether the element with index i should sort before the
// element with index j.
func (pq *PriorityQueue) Less(i, j int) bool {
	if pq.Descending {
		return pq.Items[i].Distance > pq.Items[j].Distance
	}
	return pq.Items[i].Distance < pq.Items[j].Distance
}

// Swap swaps the elements with indexes i and j.
func (pq *PriorityQueue) Swap(i, j int) {
	pq.Items[i], pq.Items[j] = pq.Items[j], pq.Items[i]
	pq.Items[i].index, pq.Items[j].index = i, j
}

// Push adds x to the priority queue.
func (pq *PriorityQueue) Push(x any) {
	item, _ := x.(*Item)
	item.index = len(pq.Items)
	pq.Items = append(pq.Items, item)
}

// Pop removes and returns the top element from the priority queue.
func (pq *PriorityQueue) Pop() any {
	old := pq.Items
	n := len(old)
	if n == 0 {
		return nil
	}

	item := old[n-1]
	old[n-1] = nil // Avoid memory leak
	item.index = -1
	pq.Items = old[:n-1]

	return item
}

// Top returns the top element of the priority queue without removing it.
func (pq *PriorityQueue) Top() *Item {
	return pq.Items[0]
}
