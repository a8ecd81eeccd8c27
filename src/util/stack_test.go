package util

import "testing"

func TestStackPushPopOrdersLIFO(t *testing.T) {
	var s Stack
	s.Push(1)
	s.Push(2)
	s.Push(3)

	if got := s.Pop(); got != 3 {
		t.Errorf("expected the most recently pushed element first, got %v", got)
	}
	if got := s.Pop(); got != 2 {
		t.Errorf("expected the second most recent element next, got %v", got)
	}
	if got := s.Pop(); got != 1 {
		t.Errorf("expected the bottom element last, got %v", got)
	}
	if got := s.Pop(); got != nil {
		t.Errorf("expected Pop on an empty stack to return nil, got %v", got)
	}
}

func TestStackPeekDoesNotRemove(t *testing.T) {
	var s Stack
	s.Push("a")
	s.Push("b")

	if got := s.Peek(); got != "b" {
		t.Errorf("expected Peek to return the top element, got %v", got)
	}
	if s.Size() != 2 {
		t.Errorf("expected Peek not to remove anything, size is %d", s.Size())
	}
}

func TestStackIgnoresNilPush(t *testing.T) {
	var s Stack
	s.Push(nil)
	if s.Size() != 0 {
		t.Errorf("expected pushing nil to be a no-op, size is %d", s.Size())
	}
}

func TestStackGetIndexesTopDownNotZeroIndexed(t *testing.T) {
	var s Stack
	s.Push("bottom")
	s.Push("middle")
	s.Push("top")

	if got := s.Get(1); got != "top" {
		t.Errorf("expected Get(1) to return the top element, got %v", got)
	}
	if got := s.Get(2); got != "middle" {
		t.Errorf("expected Get(2) to return the middle element, got %v", got)
	}
	if got := s.Get(3); got != "bottom" {
		t.Errorf("expected Get(3) to return the bottom element, got %v", got)
	}
	if got := s.Get(0); got != nil {
		t.Errorf("expected Get(0) to be out of range, got %v", got)
	}
	if got := s.Get(4); got != nil {
		t.Errorf("expected Get(size+1) to be out of range, got %v", got)
	}
}
