// Package session drives a user through a quiz one question at a time.
package session

import (
	"errors"
	"sync"
	"time"

	"quizle/internal/model"
)

var (
	// ErrNoQuestions means the session cannot start; the caller should send
	// the user back to quiz creation.
	ErrNoQuestions = errors.New("no quiz questions available")
	// ErrNoSelection means the user tried to advance without picking an
	// answer. Recoverable: the session state is unchanged.
	ErrNoSelection = errors.New("no answer selected")
)

// Phase is the session state. Feedback is a read-only interval between
// confirming an answer and advancing to the next question.
type Phase string

const (
	PhaseAnswering Phase = "answering"
	PhaseFeedback  Phase = "feedback"
	PhaseCompleted Phase = "completed"
)

// DefaultFeedbackDelay is how long correct/incorrect feedback stays on
// screen before the session auto-advances.
const DefaultFeedbackDelay = 1500 * time.Millisecond

const noSelection = -1

// Session owns the state of one in-progress quiz: current question,
// captured answers, and the feedback timer. Exactly one answer is captured
// per question and no question can be skipped.
//
// The feedback timer fires on its own goroutine, so all state is guarded
// by a mutex even though user intents arrive one at a time.
type Session struct {
	mu         sync.Mutex
	quiz       model.QuizSet
	answers    model.AnswerRecord
	phase      Phase
	current    int
	selected   int
	delay      time.Duration
	timer      *time.Timer
	closed     bool
	onComplete func(model.AnswerRecord)
}

// Option configures a session.
type Option func(*Session)

// WithFeedbackDelay overrides the feedback interval. Used by tests and the
// server's feedback-delay flag.
func WithFeedbackDelay(d time.Duration) Option {
	return func(s *Session) { s.delay = d }
}

// New starts a session in Answering(0). onComplete receives a copy of the
// full answer record exactly once, after the final feedback interval. It
// may be nil.
func New(quiz model.QuizSet, onComplete func(model.AnswerRecord), opts ...Option) (*Session, error) {
	if len(quiz) == 0 {
		return nil, ErrNoQuestions
	}
	s := &Session{
		quiz:       quiz,
		answers:    make(model.AnswerRecord, len(quiz)),
		phase:      PhaseAnswering,
		selected:   noSelection,
		delay:      DefaultFeedbackDelay,
		onComplete: onComplete,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Select captures a tentative answer for the current question. Ignored
// during feedback and after completion: feedback is read-only.
func (s *Session) Select(option int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.phase != PhaseAnswering {
		return
	}
	if option < 0 || option >= model.OptionsPerQuestion {
		return
	}
	s.selected = option
}

// Confirm records the selected answer and enters the feedback interval.
// With no selection it returns ErrNoSelection and changes nothing. During
// feedback or after completion it is a no-op.
func (s *Session) Confirm() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.phase != PhaseAnswering {
		return nil
	}
	if s.selected == noSelection {
		return ErrNoSelection
	}

	s.answers[s.current] = s.selected
	s.phase = PhaseFeedback
	s.timer = time.AfterFunc(s.delay, s.advance)
	return nil
}

// advance runs when the feedback timer fires: next question, or completion
// on the last one. A session closed while the timer was pending must not
// be mutated, and its completion callback must never fire.
func (s *Session) advance() {
	s.mu.Lock()
	if s.closed || s.phase != PhaseFeedback {
		s.mu.Unlock()
		return
	}
	s.timer = nil

	if s.current < len(s.quiz)-1 {
		s.current++
		s.selected = noSelection
		s.phase = PhaseAnswering
		s.mu.Unlock()
		return
	}

	s.phase = PhaseCompleted
	done := s.answers.Clone()
	cb := s.onComplete
	s.onComplete = nil
	s.mu.Unlock()

	if cb != nil {
		cb(done)
	}
}

// Close tears the session down, cancelling any pending auto-advance.
// Idempotent. After Close the session accepts no input and emits nothing.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.onComplete = nil
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

// Answers returns a copy of the answers captured so far.
func (s *Session) Answers() model.AnswerRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.answers.Clone()
}

// Quiz returns the quiz set the session was started with.
func (s *Session) Quiz() model.QuizSet {
	return s.quiz
}

// Snapshot is a read-only view of the session for transports to render.
type Snapshot struct {
	Phase    Phase `json:"phase"`
	Index    int   `json:"index"`
	Total    int   `json:"total"`
	Selected int   `json:"selected"` // -1 when nothing selected
	// Correct is meaningful only during feedback; it is derived from the
	// current question, never stored.
	Correct bool `json:"correct"`
}

// Snapshot reports the current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{
		Phase:    s.phase,
		Index:    s.current,
		Total:    len(s.quiz),
		Selected: s.selected,
	}
	if s.phase == PhaseFeedback {
		snap.Correct = s.selected == s.quiz[s.current].CorrectIndex
	}
	return snap
}
