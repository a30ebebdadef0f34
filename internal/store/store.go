package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"quizle/internal/model"

	_ "modernc.org/sqlite"
)

// Store wraps the SQLite database holding users, saved quizzes, and
// attempt history.
type Store struct {
	db *sql.DB
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		email TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS auth_sessions (
		id TEXT PRIMARY KEY,
		user_id INTEGER NOT NULL,
		created_at DATETIME NOT NULL,
		expires_at DATETIME NOT NULL,
		FOREIGN KEY (user_id) REFERENCES users(id)
	);

	CREATE TABLE IF NOT EXISTS quizzes (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		owner_id INTEGER NOT NULL,
		title TEXT NOT NULL,
		questions TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		FOREIGN KEY (owner_id) REFERENCES users(id)
	);

	CREATE TABLE IF NOT EXISTS attempts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		owner_id INTEGER NOT NULL,
		quiz_id INTEGER NOT NULL,
		score INTEGER NOT NULL,
		created_at DATETIME NOT NULL,
		FOREIGN KEY (owner_id) REFERENCES users(id),
		FOREIGN KEY (quiz_id) REFERENCES quizzes(id)
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// InsertQuiz persists a quiz set for a user and returns its id.
// The questions are stored as their JSON encoding.
func (s *Store) InsertQuiz(ownerID int64, title string, questions model.QuizSet) (int64, error) {
	data, err := json.Marshal(questions)
	if err != nil {
		return 0, fmt.Errorf("encode questions: %w", err)
	}
	res, err := s.db.Exec(
		`INSERT INTO quizzes (owner_id, title, questions, created_at) VALUES (?, ?, ?, ?)`,
		ownerID, title, string(data), time.Now(),
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// GetQuiz returns a quiz by id, scoped to its owner. Missing rows yield
// (nil, nil).
func (s *Store) GetQuiz(ownerID, id int64) (*model.SavedQuiz, error) {
	var q model.SavedQuiz
	var questions string
	err := s.db.QueryRow(
		`SELECT id, owner_id, title, questions, created_at FROM quizzes WHERE id = ? AND owner_id = ?`,
		id, ownerID,
	).Scan(&q.ID, &q.OwnerID, &q.Title, &questions, &q.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(questions), &q.Questions); err != nil {
		return nil, fmt.Errorf("decode questions for quiz %d: %w", id, err)
	}
	return &q, nil
}

// ListQuizzes returns a user's saved quizzes, newest first.
func (s *Store) ListQuizzes(ownerID int64) ([]model.SavedQuiz, error) {
	rows, err := s.db.Query(
		`SELECT id, owner_id, title, questions, created_at FROM quizzes
		 WHERE owner_id = ? ORDER BY created_at DESC, id DESC`, ownerID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var quizzes []model.SavedQuiz
	for rows.Next() {
		var q model.SavedQuiz
		var questions string
		if err := rows.Scan(&q.ID, &q.OwnerID, &q.Title, &questions, &q.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(questions), &q.Questions); err != nil {
			return nil, fmt.Errorf("decode questions for quiz %d: %w", q.ID, err)
		}
		quizzes = append(quizzes, q)
	}
	return quizzes, rows.Err()
}

// DeleteQuiz removes a quiz, scoped to its owner. Dependent attempts must
// be removed first via DeleteAttemptsForQuiz.
func (s *Store) DeleteQuiz(ownerID, id int64) error {
	_, err := s.db.Exec(`DELETE FROM quizzes WHERE id = ? AND owner_id = ?`, id, ownerID)
	return err
}

// InsertAttempt appends one scored completion of a saved quiz.
func (s *Store) InsertAttempt(ownerID, quizID int64, score int) error {
	_, err := s.db.Exec(
		`INSERT INTO attempts (owner_id, quiz_id, score, created_at) VALUES (?, ?, ?, ?)`,
		ownerID, quizID, score, time.Now(),
	)
	return err
}

// ListAttempts returns all attempts recorded for a user.
func (s *Store) ListAttempts(ownerID int64) ([]model.Attempt, error) {
	rows, err := s.db.Query(
		`SELECT id, owner_id, quiz_id, score, created_at FROM attempts WHERE owner_id = ? ORDER BY id`,
		ownerID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var attempts []model.Attempt
	for rows.Next() {
		var a model.Attempt
		if err := rows.Scan(&a.ID, &a.OwnerID, &a.QuizID, &a.Score, &a.CreatedAt); err != nil {
			return nil, err
		}
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}

// DeleteAttemptsForQuiz removes a user's attempts referencing a quiz.
func (s *Store) DeleteAttemptsForQuiz(ownerID, quizID int64) error {
	_, err := s.db.Exec(`DELETE FROM attempts WHERE owner_id = ? AND quiz_id = ?`, ownerID, quizID)
	return err
}

// CountAttemptsForQuiz returns the number of attempts referencing a quiz.
func (s *Store) CountAttemptsForQuiz(quizID int64) (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM attempts WHERE quiz_id = ?`, quizID).Scan(&count)
	return count, err
}
