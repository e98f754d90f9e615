package mqttflow

import "container/list"

// flowQueue is a FIFO of flows waiting for the write slot.
type flowQueue struct {
	items []*flowWrapper
	head  int
}

func (q *flowQueue) push(w *flowWrapper) {
	q.items = append(q.items, w)
}

// pop removes and returns the oldest flow, or nil if the queue is empty.
func (q *flowQueue) pop() *flowWrapper {
	if q.head >= len(q.items) {
		return nil
	}
	w := q.items[q.head]
	q.items[q.head] = nil
	q.head++

	if q.head == len(q.items) {
		q.items = q.items[:0]
		q.head = 0
	}
	return w
}

// remove deletes w from the queue, preserving the order of the rest.
func (q *flowQueue) remove(w *flowWrapper) bool {
	for i := q.head; i < len(q.items); i++ {
		if q.items[i] == w {
			copy(q.items[i:], q.items[i+1:])
			q.items[len(q.items)-1] = nil
			q.items = q.items[:len(q.items)-1]
			return true
		}
	}
	return false
}

func (q *flowQueue) len() int {
	return len(q.items) - q.head
}

// drain removes and returns every queued flow in order.
func (q *flowQueue) drain() []*flowWrapper {
	out := make([]*flowWrapper, 0, q.len())
	for w := q.pop(); w != nil; w = q.pop() {
		out = append(out, w)
	}
	return out
}

// flowSet holds flows waiting for an inbound packet, keyed by flow id.
// Iteration follows registration order.
type flowSet struct {
	order *list.List
	index map[uint64]*list.Element
}

func newFlowSet() *flowSet {
	return &flowSet{
		order: list.New(),
		index: make(map[uint64]*list.Element),
	}
}

func (s *flowSet) add(w *flowWrapper) {
	if _, ok := s.index[w.id]; ok {
		return
	}
	s.index[w.id] = s.order.PushBack(w)
}

func (s *flowSet) remove(id uint64) bool {
	el, ok := s.index[id]
	if !ok {
		return false
	}
	s.order.Remove(el)
	delete(s.index, id)
	return true
}

// take removes and returns the first flow for which match reports true.
func (s *flowSet) take(match func(*flowWrapper) bool) *flowWrapper {
	for el := s.order.Front(); el != nil; el = el.Next() {
		w := el.Value.(*flowWrapper)
		if match(w) {
			s.order.Remove(el)
			delete(s.index, w.id)
			return w
		}
	}
	return nil
}

func (s *flowSet) len() int {
	return len(s.index)
}

// drain removes and returns every flow in registration order.
func (s *flowSet) drain() []*flowWrapper {
	out := make([]*flowWrapper, 0, len(s.index))
	for el := s.order.Front(); el != nil; el = el.Next() {
		out = append(out, el.Value.(*flowWrapper))
	}
	s.order.Init()
	clear(s.index)
	return out
}
