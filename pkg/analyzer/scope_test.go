package analyzer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScopeTrackerStack(t *testing.T) {
	s := NewScopeTracker()

	_, ok := s.Current()
	assert.False(t, ok)
	_, ok = s.Pop()
	assert.False(t, ok, "pop on empty stack")

	s.Push("Outer")
	s.Push("Inner")
	assert.Equal(t, 2, s.Depth())

	cur, ok := s.Current()
	assert.True(t, ok)
	assert.Equal(t, "Inner", cur)

	popped, _ := s.Pop()
	assert.Equal(t, "Inner", popped)

	cur, _ = s.Current()
	assert.Equal(t, "Outer", cur)
}

func TestScopeTrackerWithinRestoresOnPanic(t *testing.T) {
	s := NewScopeTracker()
	s.Push("Outer")

	assert.Panics(t, func() {
		s.Within("Inner", func() { panic("boom") })
	})

	cur, _ := s.Current()
	assert.Equal(t, "Outer", cur)
	assert.Equal(t, 1, s.Depth())
}
