package engine

import (
	"container/heap"

	"github.com/web3guy0/polyforge/models"
)

// instructionHeap orders pending orders by FilledAtNanos so the engine
// always resolves the earliest-scheduled instruction first. Ties keep FIFO
// order via seq, container/heap's sort is not otherwise stable.
//
// No third-party Go priority-queue library appears anywhere in the example
// corpus this engine was grounded on; container/heap is used here as a
// deliberate standard-library exception (see DESIGN.md).
type instructionEntry struct {
	order models.Order
	seq   int
}

type instructionHeap []instructionEntry

func (h instructionHeap) Len() int { return len(h) }
func (h instructionHeap) Less(i, j int) bool {
	if h[i].order.FilledAtNanos != h[j].order.FilledAtNanos {
		return h[i].order.FilledAtNanos < h[j].order.FilledAtNanos
	}
	return h[i].seq < h[j].seq
}
func (h instructionHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *instructionHeap) Push(x any)   { *h = append(*h, x.(instructionEntry)) }
func (h *instructionHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// exitEntry is one armed exit order tracked in a stop-loss or take-profit
// heap, keyed by trigger price so the nearest trigger can be inspected
// first.
type exitEntry struct {
	order models.ExitOrder
	seq   int
}

type exitHeap []exitEntry

func (h exitHeap) Len() int { return len(h) }
func (h exitHeap) Less(i, j int) bool {
	if !h[i].order.TriggerPrice.Equal(h[j].order.TriggerPrice) {
		return h[i].order.TriggerPrice.LessThan(h[j].order.TriggerPrice)
	}
	return h[i].seq < h[j].seq
}
func (h exitHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *exitHeap) Push(x any)   { *h = append(*h, x.(exitEntry)) }
func (h *exitHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

var _ heap.Interface = (*instructionHeap)(nil)
var _ heap.Interface = (*exitHeap)(nil)
