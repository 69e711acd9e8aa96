package analyzer

// ScopeTracker is the stack of components whose bodies the walk is
// currently inside. The top of the stack owns any markup encountered.
//
// A tracker belongs to one file's walk and is never shared.
type ScopeTracker struct {
	stack []string
}

// NewScopeTracker returns an empty tracker.
func NewScopeTracker() *ScopeTracker {
	return &ScopeTracker{}
}

// Push enters the body of component name.
func (s *ScopeTracker) Push(name string) {
	s.stack = append(s.stack, name)
}

// Pop leaves the innermost body and returns its component. ok is false on
// an empty stack.
func (s *ScopeTracker) Pop() (name string, ok bool) {
	if len(s.stack) == 0 {
		return "", false
	}
	name = s.stack[len(s.stack)-1]
	s.stack = s.stack[:len(s.stack)-1]
	return name, true
}

// Current returns the innermost active component.
func (s *ScopeTracker) Current() (name string, ok bool) {
	if len(s.stack) == 0 {
		return "", false
	}
	return s.stack[len(s.stack)-1], true
}

// Depth returns the number of active scopes.
func (s *ScopeTracker) Depth() int {
	return len(s.stack)
}

// Within runs fn with name pushed and pops it afterwards.
func (s *ScopeTracker) Within(name string, fn func()) {
	s.Push(name)
	defer s.Pop()
	fn()
}
