package park

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegistryRejectsNonPowerOfTwo(t *testing.T) {
	for _, n := range []int{0, -1, 3, 5, 100} {
		n := n
		assert.Panics(t, func() { NewRegistry(n) }, "NewRegistry(%d)", n)
	}
}

func TestRegistrySingleAlwaysSlotZero(t *testing.T) {
	r := NewRegistry(1)
	var dummies [8]int
	for i := range dummies {
		s := r.Slot(unsafe.Pointer(&dummies[i]))
		assert.Same(t, &r.slots[0], s)
	}
}

func TestRegistrySlotStableForSameAddress(t *testing.T) {
	r := NewRegistry(128)
	var x int
	a := r.Slot(unsafe.Pointer(&x))
	b := r.Slot(unsafe.Pointer(&x))
	assert.Same(t, a, b)
}

func TestSlotFIFOOrder(t *testing.T) {
	var s Slot
	mtx := unsafe.Pointer(&s)
	w1 := NewWaiter(mtx)
	w2 := NewWaiter(mtx)
	w3 := NewWaiter(mtx)

	s.Acquire()
	s.PushTail(w1)
	s.PushTail(w2)
	s.PushTail(w3)
	s.Release()

	s.Acquire()
	got := []*Waiter{}
	for w := s.First(); w != nil; w = w.Next() {
		got = append(got, w)
	}
	s.Release()

	require.Equal(t, []*Waiter{w1, w2, w3}, got)
}

func TestSlotRemoveMiddle(t *testing.T) {
	var s Slot
	mtx := unsafe.Pointer(&s)
	w1 := NewWaiter(mtx)
	w2 := NewWaiter(mtx)
	w3 := NewWaiter(mtx)

	s.Acquire()
	s.PushTail(w1)
	s.PushTail(w2)
	s.PushTail(w3)
	s.Remove(w2)
	s.Release()

	s.Acquire()
	defer s.Release()
	assert.Same(t, w1, s.First())
	assert.Same(t, w3, w1.Next())
	assert.True(t, s.HasWaiterFor(mtx))
}

func TestSlotFindAndWakeLeavesWaiterLinked(t *testing.T) {
	var s Slot
	mtx := unsafe.Pointer(&s)
	w := NewWaiter(mtx)

	s.Acquire()
	s.PushTail(w)
	s.Release()

	s.Acquire()
	ok := s.FindAndWake(mtx)
	s.Release()

	require.True(t, ok)
	assert.True(t, w.Woken())

	s.Acquire()
	still := s.First() == w
	s.Release()
	assert.True(t, still, "FindAndWake must not unlink the waiter; the waiter unlinks itself")
}

func TestSlotFindAndRemoveUnlinks(t *testing.T) {
	var s Slot
	mtx := unsafe.Pointer(&s)
	w := NewWaiter(mtx)

	s.Acquire()
	s.PushTail(w)
	s.Release()

	s.Acquire()
	got := s.FindAndRemove(mtx)
	empty := s.Empty()
	s.Release()

	require.Same(t, w, got)
	assert.True(t, w.Woken())
	assert.True(t, empty)
}
