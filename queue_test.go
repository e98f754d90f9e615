package mqttflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestWrappers(n int) []*flowWrapper {
	out := make([]*flowWrapper, n)
	for i := range out {
		out[i] = &flowWrapper{id: uint64(i + 1)}
	}
	return out
}

func TestFlowQueue(t *testing.T) {
	t.Run("fifo", func(t *testing.T) {
		var q flowQueue
		ws := newTestWrappers(3)
		for _, w := range ws {
			q.push(w)
		}
		assert.Equal(t, 3, q.len())

		assert.Same(t, ws[0], q.pop())
		assert.Same(t, ws[1], q.pop())

		q.push(ws[0])
		assert.Same(t, ws[2], q.pop())
		assert.Same(t, ws[0], q.pop())
		assert.Nil(t, q.pop())
		assert.Zero(t, q.len())
	})

	t.Run("remove keeps order", func(t *testing.T) {
		var q flowQueue
		ws := newTestWrappers(4)
		for _, w := range ws {
			q.push(w)
		}
		q.pop()

		assert.True(t, q.remove(ws[2]))
		assert.False(t, q.remove(ws[2]))
		assert.False(t, q.remove(ws[0]))

		assert.Equal(t, []*flowWrapper{ws[1], ws[3]}, q.drain())
		assert.Zero(t, q.len())
	})

	t.Run("drain empty", func(t *testing.T) {
		var q flowQueue
		assert.Empty(t, q.drain())
	})
}

func TestFlowSet(t *testing.T) {
	t.Run("add is idempotent", func(t *testing.T) {
		s := newFlowSet()
		ws := newTestWrappers(2)

		s.add(ws[0])
		s.add(ws[0])
		s.add(ws[1])
		assert.Equal(t, 2, s.len())
	})

	t.Run("take returns first match in registration order", func(t *testing.T) {
		s := newFlowSet()
		ws := newTestWrappers(3)
		for _, w := range ws {
			s.add(w)
		}

		odd := func(w *flowWrapper) bool { return w.id%2 == 1 }
		assert.Same(t, ws[0], s.take(odd))
		assert.Same(t, ws[2], s.take(odd))
		assert.Nil(t, s.take(odd))
		assert.Equal(t, 1, s.len())
	})

	t.Run("remove", func(t *testing.T) {
		s := newFlowSet()
		ws := newTestWrappers(3)
		for _, w := range ws {
			s.add(w)
		}

		assert.True(t, s.remove(2))
		assert.False(t, s.remove(2))
		assert.False(t, s.remove(99))

		drained := s.drain()
		require.Len(t, drained, 2)
		assert.Same(t, ws[0], drained[0])
		assert.Same(t, ws[2], drained[1])
		assert.Zero(t, s.len())
		assert.Nil(t, s.take(func(*flowWrapper) bool { return true }))
	})

	t.Run("re-add after take", func(t *testing.T) {
		s := newFlowSet()
		ws := newTestWrappers(2)
		s.add(ws[0])
		s.add(ws[1])

		w := s.take(func(w *flowWrapper) bool { return w.id == 1 })
		s.add(w)

		drained := s.drain()
		assert.Equal(t, []*flowWrapper{ws[1], ws[0]}, drained)
	})
}
