package store

import (
	"testing"

	"quizle/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("newTestStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func insertTestUser(t *testing.T, s *Store, email string) int64 {
	t.Helper()
	id, err := s.CreateUser(model.User{Email: email, PasswordHash: "x"})
	if err != nil {
		t.Fatalf("insertTestUser: %v", err)
	}
	return id
}

func testQuestions() model.QuizSet {
	return model.QuizSet{
		{Text: "Q1?", Options: []string{"a", "b", "c", "d"}, CorrectIndex: 2},
		{Text: "Q2?", Options: []string{"a", "b", "c", "d"}, CorrectIndex: 0},
	}
}

func TestUserCRUD(t *testing.T) {
	s := newTestStore(t)

	count, err := s.UserCount()
	if err != nil {
		t.Fatalf("UserCount: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected 0 users, got %d", count)
	}

	id := insertTestUser(t, s, "alice@example.com")

	u, err := s.GetUserByEmail("alice@example.com")
	if err != nil {
		t.Fatalf("GetUserByEmail: %v", err)
	}
	if u == nil || u.ID != id {
		t.Fatalf("expected user %d, got %+v", id, u)
	}

	u, err = s.GetUserByID(id)
	if err != nil {
		t.Fatalf("GetUserByID: %v", err)
	}
	if u == nil || u.Email != "alice@example.com" {
		t.Fatalf("unexpected user: %+v", u)
	}

	// Unknown lookups return nil, nil.
	u, err = s.GetUserByEmail("nobody@example.com")
	if err != nil || u != nil {
		t.Errorf("expected nil user for unknown email, got %+v, %v", u, err)
	}
	u, err = s.GetUserByID(9999)
	if err != nil || u != nil {
		t.Errorf("expected nil user for unknown id, got %+v, %v", u, err)
	}

	// Duplicate email is rejected.
	if _, err := s.CreateUser(model.User{Email: "alice@example.com", PasswordHash: "y"}); err == nil {
		t.Error("expected error for duplicate email")
	}
}

func TestQuizCRUD(t *testing.T) {
	s := newTestStore(t)
	owner := insertTestUser(t, s, "alice@example.com")

	id, err := s.InsertQuiz(owner, "Biology review", testQuestions())
	if err != nil {
		t.Fatalf("InsertQuiz: %v", err)
	}

	q, err := s.GetQuiz(owner, id)
	if err != nil {
		t.Fatalf("GetQuiz: %v", err)
	}
	if q == nil {
		t.Fatal("expected quiz, got nil")
	}
	if q.Title != "Biology review" {
		t.Errorf("expected title 'Biology review', got %q", q.Title)
	}
	if len(q.Questions) != 2 || q.Questions[0].CorrectIndex != 2 {
		t.Errorf("questions did not round-trip: %+v", q.Questions)
	}

	// Quiz is invisible to other owners.
	other := insertTestUser(t, s, "bob@example.com")
	q, err = s.GetQuiz(other, id)
	if err != nil || q != nil {
		t.Errorf("expected nil quiz for non-owner, got %+v, %v", q, err)
	}

	list, err := s.ListQuizzes(owner)
	if err != nil {
		t.Fatalf("ListQuizzes: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected 1 quiz, got %d", len(list))
	}

	list, err = s.ListQuizzes(other)
	if err != nil {
		t.Fatalf("ListQuizzes other: %v", err)
	}
	if len(list) != 0 {
		t.Errorf("expected 0 quizzes for other user, got %d", len(list))
	}
}

func TestListQuizzesNewestFirst(t *testing.T) {
	s := newTestStore(t)
	owner := insertTestUser(t, s, "alice@example.com")

	first, _ := s.InsertQuiz(owner, "first", testQuestions())
	second, _ := s.InsertQuiz(owner, "second", testQuestions())

	list, err := s.ListQuizzes(owner)
	if err != nil {
		t.Fatalf("ListQuizzes: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 quizzes, got %d", len(list))
	}
	if list[0].ID != second || list[1].ID != first {
		t.Errorf("expected newest first, got ids %d, %d", list[0].ID, list[1].ID)
	}
}

func TestDeleteQuizScopedToOwner(t *testing.T) {
	s := newTestStore(t)
	owner := insertTestUser(t, s, "alice@example.com")
	other := insertTestUser(t, s, "bob@example.com")

	id, _ := s.InsertQuiz(owner, "mine", testQuestions())

	// Another user's delete is a no-op.
	if err := s.DeleteQuiz(other, id); err != nil {
		t.Fatalf("DeleteQuiz: %v", err)
	}
	if q, _ := s.GetQuiz(owner, id); q == nil {
		t.Fatal("quiz deleted by non-owner")
	}

	if err := s.DeleteQuiz(owner, id); err != nil {
		t.Fatalf("DeleteQuiz: %v", err)
	}
	if q, _ := s.GetQuiz(owner, id); q != nil {
		t.Error("quiz still present after owner delete")
	}
}

func TestAttempts(t *testing.T) {
	s := newTestStore(t)
	owner := insertTestUser(t, s, "alice@example.com")
	quizID, _ := s.InsertQuiz(owner, "quiz", testQuestions())

	for _, score := range []int{1, 2, 2} {
		if err := s.InsertAttempt(owner, quizID, score); err != nil {
			t.Fatalf("InsertAttempt: %v", err)
		}
	}

	attempts, err := s.ListAttempts(owner)
	if err != nil {
		t.Fatalf("ListAttempts: %v", err)
	}
	if len(attempts) != 3 {
		t.Fatalf("expected 3 attempts, got %d", len(attempts))
	}
	if attempts[0].Score != 1 || attempts[0].QuizID != quizID {
		t.Errorf("unexpected first attempt: %+v", attempts[0])
	}

	count, err := s.CountAttemptsForQuiz(quizID)
	if err != nil {
		t.Fatalf("CountAttemptsForQuiz: %v", err)
	}
	if count != 3 {
		t.Errorf("expected 3 attempts for quiz, got %d", count)
	}

	if err := s.DeleteAttemptsForQuiz(owner, quizID); err != nil {
		t.Fatalf("DeleteAttemptsForQuiz: %v", err)
	}
	count, _ = s.CountAttemptsForQuiz(quizID)
	if count != 0 {
		t.Errorf("expected 0 attempts after delete, got %d", count)
	}
}

func TestAuthSessions(t *testing.T) {
	s := newTestStore(t)
	userID := insertTestUser(t, s, "alice@example.com")

	token, err := s.CreateAuthSession(userID)
	if err != nil {
		t.Fatalf("CreateAuthSession: %v", err)
	}
	if token == "" {
		t.Fatal("empty token")
	}

	sess, err := s.GetAuthSession(token)
	if err != nil {
		t.Fatalf("GetAuthSession: %v", err)
	}
	if sess == nil || sess.UserID != userID {
		t.Fatalf("unexpected session: %+v", sess)
	}

	// Unknown token.
	sess, err = s.GetAuthSession("bogus")
	if err != nil || sess != nil {
		t.Errorf("expected nil session for unknown token, got %+v, %v", sess, err)
	}

	if err := s.DeleteAuthSession(token); err != nil {
		t.Fatalf("DeleteAuthSession: %v", err)
	}
	sess, _ = s.GetAuthSession(token)
	if sess != nil {
		t.Error("session still valid after delete")
	}
}
