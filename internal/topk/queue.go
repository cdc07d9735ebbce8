// Package topk implements bounded selection of the highest-scoring items.
package topk

// Item is a candidate with its score.
type Item struct {
	Index int     // Index is the position of the candidate (e.g. bank column).
	Score float32 // Score is the priority; higher is better.
}

// better reports whether a ranks ahead of b.
// Equal scores are ordered by lower index so selection is deterministic.
func better(a, b Item) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	return a.Index < b.Index
}

// Queue keeps the best k items seen so far.
//
// Internally it is a value-based binary min-heap whose top is the worst kept
// item, so a new candidate only has to beat the top to be admitted.
// It does NOT implement container/heap to avoid interface overhead.
type Queue struct {
	capacity int
	items    []Item
}

// New creates a queue that retains at most capacity items.
func New(capacity int) *Queue {
	return &Queue{
		capacity: capacity,
		items:    make([]Item, 0, capacity),
	}
}

// Reset clears the queue for reuse with the given capacity.
func (q *Queue) Reset(capacity int) {
	q.capacity = capacity
	q.items = q.items[:0]
}

// Len returns the number of retained items.
func (q *Queue) Len() int {
	return len(q.items)
}

// Worst returns the lowest ranked retained item.
func (q *Queue) Worst() (Item, bool) {
	if len(q.items) == 0 {
		return Item{}, false
	}
	return q.items[0], true
}

// Push offers an item. If the queue is full and the item does not rank ahead
// of the current worst, it is dropped.
func (q *Queue) Push(item Item) {
	if q.capacity <= 0 {
		return
	}
	if len(q.items) < q.capacity {
		q.items = append(q.items, item)
		q.siftUp(len(q.items) - 1)
		return
	}
	if better(item, q.items[0]) {
		q.items[0] = item
		q.siftDown(0)
	}
}

// Drain empties the queue into dst (reset to length 0), best item first.
func (q *Queue) Drain(dst []Item) []Item {
	dst = dst[:0]
	n := len(q.items)
	if cap(dst) < n {
		dst = make([]Item, 0, n)
	}
	dst = dst[:n]
	for i := n - 1; i >= 0; i-- {
		dst[i] = q.pop()
	}
	return dst
}

func (q *Queue) pop() Item {
	n := len(q.items)
	item := q.items[0]
	q.items[0] = q.items[n-1]
	q.items = q.items[:n-1]
	if len(q.items) > 0 {
		q.siftDown(0)
	}
	return item
}

// less orders the heap so that the worst item is on top.
func (q *Queue) less(i, j int) bool {
	return better(q.items[j], q.items[i])
}

func (q *Queue) siftUp(i int) {
	for i > 0 {
		parent := (i - 1) / 2
		if !q.less(i, parent) {
			break
		}
		q.items[i], q.items[parent] = q.items[parent], q.items[i]
		i = parent
	}
}

func (q *Queue) siftDown(i int) {
	n := len(q.items)
	for {
		left := 2*i + 1
		if left >= n {
			break
		}
		child := left
		if right := left + 1; right < n && q.less(right, left) {
			child = right
		}
		if !q.less(child, i) {
			break
		}
		q.items[i], q.items[child] = q.items[child], q.items[i]
		i = child
	}
}
