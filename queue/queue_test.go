package queue

import (
	"container/heap"
	"testing"
)

func TestPriorityQueue_MinOrder(t *testing.T) {
	pq := &PriorityQueue{}
	heap.Init(pq)

	heap.Push(pq, &Item{Node: 1, Distance: 3.0})
	heap.Push(pq, &Item{Node: 2, Distance: 1.0})
	heap.Push(pq, &Item{Node: 3, Distance: 2.0})

	if top := pq.Top(); top.Node != 2 {
		t.Errorf("Expected node 2 on top, got %d", top.Node)
	}

	want := []uint32{2, 3, 1}
	for i, expected := range want {
		item, _ := heap.Pop(pq).(*Item)
		if item.Node != expected {
			t.Errorf("pop %d: expected node %d, got %d", i, expected, item.Node)
		}
	}
}

func TestPriorityQueue_MaxOrder(t *testing.T) {
	pq := &PriorityQueue{Descending: true}
	heap.Init(pq)

	heap.Push(pq, &Item{Node: 1, Distance: 3.0})
	heap.Push(pq, &Item{Node: 2, Distance: 1.0})
	heap.Push(pq, &Item{Node: 3, Distance: 2.0})

	if top := pq.Top(); top.Node != 1 {
		t.Errorf("Expected node 1 on top, got %d", top.Node)
	}

	want := []uint32{1, 3, 2}
	for i, expected := range want {
		item, _ := heap.Pop(pq).(*Item)
		if item.Node != expected {
			t.Errorf("pop %d: expected node %d, got %d", i, expected, item.Node)
		}
	}
}

func TestPriorityQueue_PopEmpty(t *testing.T) {
	pq := &PriorityQueue{}
	heap.Init(pq)

	if got := pq.Pop(); got != nil {
		t.Errorf("Expected nil from empty pop, got %v", got)
	}
}
