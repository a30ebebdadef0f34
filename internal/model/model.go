package model

import (
	"context"
	"fmt"
	"time"
)

// OptionsPerQuestion is the fixed number of answer choices on every question.
const OptionsPerQuestion = 4

// Question is a single multiple-choice question.
type Question struct {
	Text         string   `json:"question"`
	Options      []string `json:"options"`
	CorrectIndex int      `json:"correctAnswerIndex"`
}

// Validate checks the structural invariants of a question.
func (q Question) Validate() error {
	if q.Text == "" {
		return fmt.Errorf("question text is empty")
	}
	if len(q.Options) != OptionsPerQuestion {
		return fmt.Errorf("expected %d options, got %d", OptionsPerQuestion, len(q.Options))
	}
	if q.CorrectIndex < 0 || q.CorrectIndex >= OptionsPerQuestion {
		return fmt.Errorf("correct answer index %d out of range", q.CorrectIndex)
	}
	return nil
}

// QuizSet is the fixed, ordered list of questions for one quiz.
// It is never mutated after creation; question identity is positional.
type QuizSet []Question

// Validate checks that the set is non-empty and every question is well-formed.
func (qs QuizSet) Validate() error {
	if len(qs) == 0 {
		return fmt.Errorf("quiz set is empty")
	}
	for i, q := range qs {
		if err := q.Validate(); err != nil {
			return fmt.Errorf("question %d: %w", i, err)
		}
	}
	return nil
}

// AnswerRecord maps question index to the selected option index.
// Sparse until every question has been answered.
type AnswerRecord map[int]int

// Clone returns an independent copy of the record.
func (a AnswerRecord) Clone() AnswerRecord {
	out := make(AnswerRecord, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}

// SavedQuiz is a quiz persisted for an authenticated user.
// Saved quizzes are never edited; they are only created and deleted.
type SavedQuiz struct {
	ID        int64     `json:"id"`
	OwnerID   int64     `json:"owner_id"`
	Title     string    `json:"title"`
	Questions QuizSet   `json:"questions"`
	CreatedAt time.Time `json:"created_at"`
}

// Attempt is one historical scored completion of a saved quiz.
// Attempts are append-only and only removed when their quiz is deleted.
type Attempt struct {
	ID        int64     `json:"id"`
	OwnerID   int64     `json:"owner_id"`
	QuizID    int64     `json:"quiz_id"`
	Score     int       `json:"score"`
	CreatedAt time.Time `json:"created_at"`
}

// AttemptSummary is the derived per-quiz attempt statistic.
type AttemptSummary struct {
	BestScore    int `json:"best_score"`
	AttemptCount int `json:"attempt_count"`
}

// User represents an account.
type User struct {
	ID           int64
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// AuthSession represents an authentication session token.
type AuthSession struct {
	ID        string
	UserID    int64
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Identity is the resolved signed-in user, passed explicitly into every
// component that persists data. A nil *Identity means anonymous.
type Identity struct {
	UserID int64
	Email  string
}

type userCtxKey struct{}

// ContextWithUser stores the resolved identity in the request context.
func ContextWithUser(ctx context.Context, ident *Identity) context.Context {
	return context.WithValue(ctx, userCtxKey{}, ident)
}

// UserFromContext retrieves the identity from context, or nil for anonymous.
func UserFromContext(ctx context.Context) *Identity {
	ident, _ := ctx.Value(userCtxKey{}).(*Identity)
	return ident
}
