// Package reconcile synchronizes finished quiz sessions with the remote
// store. Background persistence is best-effort and silent on failure;
// explicit user actions surface their failures so the user can retry.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"quizle/internal/model"
	"quizle/internal/score"
)

var (
	// ErrNotSignedIn means an explicit save or delete was requested without
	// an authenticated user.
	ErrNotSignedIn = errors.New("not signed in")
	// ErrInvalidTitle means the user-supplied quiz title is blank or too long.
	ErrInvalidTitle = errors.New("title must be 1-100 characters")
)

const maxTitleLen = 100

// PartialSaveError reports a named save that persisted the quiz but failed
// to record the attempt. The caller can retry just the attempt step with
// the returned quiz id.
type PartialSaveError struct {
	QuizID int64
	Err    error
}

func (e *PartialSaveError) Error() string {
	return fmt.Sprintf("quiz %d saved but attempt not recorded: %v", e.QuizID, e.Err)
}

func (e *PartialSaveError) Unwrap() error { return e.Err }

// QuizStore is the saved-quiz capability of the remote store.
type QuizStore interface {
	InsertQuiz(ownerID int64, title string, questions model.QuizSet) (int64, error)
	ListQuizzes(ownerID int64) ([]model.SavedQuiz, error)
	DeleteQuiz(ownerID, id int64) error
}

// AttemptStore is the attempt-history capability of the remote store.
type AttemptStore interface {
	InsertAttempt(ownerID, quizID int64, score int) error
	ListAttempts(ownerID int64) ([]model.Attempt, error)
	DeleteAttemptsForQuiz(ownerID, quizID int64) error
}

// Reconciler performs single-attempt, non-retried remote operations. It
// never blocks local session state on a remote failure.
type Reconciler struct {
	quizzes  QuizStore
	attempts AttemptStore
	now      func() time.Time
}

// New creates a reconciler over the two storage capabilities.
func New(quizzes QuizStore, attempts AttemptStore) *Reconciler {
	return &Reconciler{quizzes: quizzes, attempts: attempts, now: time.Now}
}

// AutoSaveOnGenerate persists a freshly generated quiz under a date-derived
// title. Best-effort: anonymous users and store failures both yield
// (0, false), and the quiz stays fully usable without a remote id.
func (r *Reconciler) AutoSaveOnGenerate(ident *model.Identity, quiz model.QuizSet) (int64, bool) {
	if ident == nil {
		return 0, false
	}
	title := "Quiz - " + r.now().Format("Jan 2, 2006")
	id, err := r.quizzes.InsertQuiz(ident.UserID, title, quiz)
	if err != nil {
		slog.Warn("quiz not auto-saved, continuing anyway", "user", ident.UserID, "error", err)
		return 0, false
	}
	return id, true
}

// RecordAttempt appends an attempt for a completed session. Best-effort:
// skipped for anonymous users or quizzes without a remote id, and a store
// failure never blocks the results from rendering.
func (r *Reconciler) RecordAttempt(ident *model.Identity, quizID int64, scoreValue int) bool {
	if ident == nil || quizID == 0 {
		return false
	}
	if err := r.attempts.InsertAttempt(ident.UserID, quizID, scoreValue); err != nil {
		slog.Warn("attempt not saved, continuing anyway", "user", ident.UserID, "quiz", quizID, "error", err)
		return false
	}
	return true
}

// SaveNamed persists a quiz under a user-chosen title, then records one
// attempt with the score computed from the given answers. The user asked
// for this explicitly, so failures surface: a first-step failure returns
// the wrapped error, a second-step failure returns *PartialSaveError so
// only the attempt step needs retrying.
func (r *Reconciler) SaveNamed(ident *model.Identity, quiz model.QuizSet, answers model.AnswerRecord, title string) (int64, error) {
	if ident == nil {
		return 0, ErrNotSignedIn
	}
	title = strings.TrimSpace(title)
	if title == "" || len(title) > maxTitleLen {
		return 0, ErrInvalidTitle
	}

	quizID, err := r.quizzes.InsertQuiz(ident.UserID, title, quiz)
	if err != nil {
		return 0, fmt.Errorf("save quiz: %w", err)
	}

	correct, _ := score.Score(quiz, answers)
	if err := r.attempts.InsertAttempt(ident.UserID, quizID, correct); err != nil {
		return quizID, &PartialSaveError{QuizID: quizID, Err: err}
	}
	return quizID, nil
}

// RetryAttempt re-runs only the attempt step of a partially failed named
// save.
func (r *Reconciler) RetryAttempt(ident *model.Identity, quizID int64, quiz model.QuizSet, answers model.AnswerRecord) error {
	if ident == nil {
		return ErrNotSignedIn
	}
	correct, _ := score.Score(quiz, answers)
	if err := r.attempts.InsertAttempt(ident.UserID, quizID, correct); err != nil {
		return fmt.Errorf("record attempt: %w", err)
	}
	return nil
}

// DeleteQuiz removes a saved quiz and its attempts. Attempts go first so a
// failure part-way never leaves attempts referencing a missing quiz.
// Owner-scoped; failures surface for retry.
func (r *Reconciler) DeleteQuiz(ident *model.Identity, quizID int64) error {
	if ident == nil {
		return ErrNotSignedIn
	}
	if err := r.attempts.DeleteAttemptsForQuiz(ident.UserID, quizID); err != nil {
		return fmt.Errorf("delete attempts: %w", err)
	}
	if err := r.quizzes.DeleteQuiz(ident.UserID, quizID); err != nil {
		return fmt.Errorf("delete quiz: %w", err)
	}
	return nil
}

// ListWithStats fetches a user's quizzes and attempts in parallel and folds
// the attempts into per-quiz best score and count. Both fetches must
// succeed or the whole operation fails, so the listing is never shown with
// half its data. Quizzes with zero attempts are absent from the map.
func (r *Reconciler) ListWithStats(ctx context.Context, ident *model.Identity) ([]model.SavedQuiz, map[int64]model.AttemptSummary, error) {
	if ident == nil {
		return nil, nil, ErrNotSignedIn
	}

	var (
		quizzes  []model.SavedQuiz
		attempts []model.Attempt
	)
	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		quizzes, err = r.quizzes.ListQuizzes(ident.UserID)
		return err
	})
	g.Go(func() error {
		var err error
		attempts, err = r.attempts.ListAttempts(ident.UserID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, fmt.Errorf("load quizzes: %w", err)
	}

	stats := make(map[int64]model.AttemptSummary)
	for _, a := range attempts {
		s := stats[a.QuizID]
		s.AttemptCount++
		if a.Score > s.BestScore || s.AttemptCount == 1 {
			s.BestScore = a.Score
		}
		stats[a.QuizID] = s
	}
	return quizzes, stats, nil
}
