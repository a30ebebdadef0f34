package session

import (
	"testing"
	"time"

	"quizle/internal/model"
)

func TestRegistry(t *testing.T) {
	r := NewRegistry()

	s, err := New(testQuiz(2), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	id, err := r.Add(s)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if id == "" {
		t.Fatal("empty session id")
	}

	got, ok := r.Get(id)
	if !ok || got != s {
		t.Fatal("Get did not return the registered session")
	}
	if r.Len() != 1 {
		t.Errorf("Len() = %d, want 1", r.Len())
	}

	r.Remove(id)
	if _, ok := r.Get(id); ok {
		t.Error("session still present after Remove")
	}
	if r.Len() != 0 {
		t.Errorf("Len() = %d, want 0", r.Len())
	}

	// Removing an unknown id is a no-op.
	r.Remove("nope")
}

func TestRegistryRemoveCancelsTimer(t *testing.T) {
	r := NewRegistry()

	fired := make(chan struct{}, 1)
	s, err := New(testQuiz(1), func(model.AnswerRecord) { fired <- struct{}{} },
		WithFeedbackDelay(20*time.Millisecond))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	id, err := r.Add(s)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}

	s.Select(0)
	if err := s.Confirm(); err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	r.Remove(id)

	select {
	case <-fired:
		t.Fatal("completion fired for a removed session")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestRegistryIDsUnique(t *testing.T) {
	r := NewRegistry()
	seen := make(map[string]bool)
	for i := 0; i < 16; i++ {
		s, _ := New(testQuiz(1), nil)
		id, err := r.Add(s)
		if err != nil {
			t.Fatalf("Add: %v", err)
		}
		if seen[id] {
			t.Fatalf("duplicate session id %q", id)
		}
		seen[id] = true
	}
}
