package dex

import "container/heap"

// buyQueue and sellQueue are heap.Interface implementations over *Order,
// generalizing a bare price-ordered max/min heap into a full price-time
// comparator. The matching hook rebuilds one of each from persistent
// state every block rather than keeping them resident, since Pebble's
// iteration order carries no consensus meaning.

type buyQueue []*Order

func (q buyQueue) Len() int            { return len(q) }
func (q buyQueue) Less(i, j int) bool  { return buyHigherPriority(q[i], q[j]) }
func (q buyQueue) Swap(i, j int)       { q[i], q[j] = q[j], q[i] }
func (q *buyQueue) Push(x any)         { *q = append(*q, x.(*Order)) }
func (q *buyQueue) Pop() any {
	old := *q
	n := len(old)
	o := old[n-1]
	*q = old[:n-1]
	return o
}

type sellQueue []*Order

func (q sellQueue) Len() int           { return len(q) }
func (q sellQueue) Less(i, j int) bool { return sellHigherPriority(q[i], q[j]) }
func (q sellQueue) Swap(i, j int)      { q[i], q[j] = q[j], q[i] }
func (q *sellQueue) Push(x any)        { *q = append(*q, x.(*Order)) }
func (q *sellQueue) Pop() any {
	old := *q
	n := len(old)
	o := old[n-1]
	*q = old[:n-1]
	return o
}

func newBuyQueue(orders []*Order) *buyQueue {
	q := buyQueue(orders)
	heap.Init(&q)
	return &q
}

func newSellQueue(orders []*Order) *sellQueue {
	q := sellQueue(orders)
	heap.Init(&q)
	return &q
}
