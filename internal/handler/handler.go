package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"quizle/internal/generator"
	appI18n "quizle/internal/i18n"
	"quizle/internal/model"
	"quizle/internal/reconcile"
	"quizle/internal/score"
	"quizle/internal/session"
	"quizle/internal/store"
)

// Config holds runtime handler parameters set via CLI flags.
type Config struct {
	SecureCookies bool          // Set Secure flag on cookies (disable for local dev)
	FeedbackDelay time.Duration // 0 means the default 1.5s feedback interval
}

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	store    *store.Store
	gen      *generator.Generator
	rec      *reconcile.Reconciler
	sessions *session.Registry
	config   Config
}

// New creates a new Handler.
func New(s *store.Store, g *generator.Generator, r *reconcile.Reconciler, reg *session.Registry, cfg Config) *Handler {
	return &Handler{store: s, gen: g, rec: r, sessions: reg, config: cfg}
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Use(h.withUser)

	r.Post("/api/generate", h.handleGenerate)

	r.Post("/api/auth/signup", h.handleSignUp)
	r.Post("/api/auth/signin", h.handleSignIn)
	r.Post("/api/auth/signout", h.handleSignOut)
	r.Get("/api/auth/me", h.handleMe)

	r.Post("/api/sessions", h.handleStartSession)
	r.Get("/api/sessions/{sessionID}", h.handleSessionState)
	r.Post("/api/sessions/{sessionID}/select", h.handleSelect)
	r.Post("/api/sessions/{sessionID}/confirm", h.handleConfirm)
	r.Delete("/api/sessions/{sessionID}", h.handleAbandonSession)

	r.Group(func(r chi.Router) {
		r.Use(h.requireAuth)
		r.Get("/api/quizzes", h.handleListQuizzes)
		r.Post("/api/quizzes", h.handleSaveQuiz)
		r.Post("/api/quizzes/{quizID}/attempts", h.handleRetryAttempt)
		r.Delete("/api/quizzes/{quizID}", h.handleDeleteQuiz)
	})
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}

// handleGenerate is the hosted generation endpoint: 400 for a missing or
// non-string factsText, 500 when no upstream credentials are configured,
// 502 when the upstream call or output validation fails.
func (h *Handler) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var body struct {
		FactsText *string `json:"factsText"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.FactsText == nil || *body.FactsText == "" {
		respondError(w, http.StatusBadRequest, "factsText is required")
		return
	}

	qs, err := h.gen.GenerateStrict(r.Context(), *body.FactsText)
	if err != nil {
		if errors.Is(err, generator.ErrNotConfigured) {
			respondError(w, http.StatusInternalServerError, "LLM API key not configured")
			return
		}
		slog.Error("quiz generation failed", "error", err)
		respondError(w, http.StatusBadGateway, "quiz generation failed")
		return
	}
	respondJSON(w, http.StatusOK, qs)
}

type startSessionRequest struct {
	FactsText string        `json:"factsText"`
	QuizID    int64         `json:"quizId"`
	Questions model.QuizSet `json:"questions"`
}

type startSessionResponse struct {
	SessionID string        `json:"sessionId"`
	QuizID    int64         `json:"quizId,omitempty"`
	Questions model.QuizSet `json:"questions"`
}

// handleStartSession begins a quiz run. Three sources, in order of
// precedence: an explicit question list (retake of a quiz the client
// already holds), a saved quiz id, or generation from study notes. A newly
// generated quiz is auto-saved for signed-in users, best-effort.
func (h *Handler) handleStartSession(w http.ResponseWriter, r *http.Request) {
	var req startSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	ident := model.UserFromContext(r.Context())

	var (
		quiz   model.QuizSet
		quizID int64
	)
	switch {
	case len(req.Questions) > 0:
		if err := req.Questions.Validate(); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		quiz = req.Questions
		// A quiz id accompanying explicit questions is only honored when
		// it names a quiz the caller owns; otherwise attempts recorded on
		// completion would reference a row the owner-scoped delete cascade
		// can never reach.
		if req.QuizID > 0 && ident != nil {
			saved, err := h.store.GetQuiz(ident.UserID, req.QuizID)
			if err != nil {
				respondError(w, http.StatusInternalServerError, appI18n.T(r.Context(), "LoadQuizzesFailed"))
				return
			}
			if saved != nil {
				quizID = saved.ID
			}
		}
	case req.QuizID > 0:
		if ident == nil {
			respondError(w, http.StatusUnauthorized, appI18n.T(r.Context(), "SignInRequired"))
			return
		}
		saved, err := h.store.GetQuiz(ident.UserID, req.QuizID)
		if err != nil {
			respondError(w, http.StatusInternalServerError, appI18n.T(r.Context(), "LoadQuizzesFailed"))
			return
		}
		if saved == nil {
			respondError(w, http.StatusNotFound, "quiz not found")
			return
		}
		quiz = saved.Questions
		quizID = saved.ID
	default:
		// Generation never hard-fails here: malformed model output
		// degrades to the fallback set.
		quiz, _ = h.gen.Generate(r.Context(), req.FactsText)
		if id, ok := h.rec.AutoSaveOnGenerate(ident, quiz); ok {
			quizID = id
		}
	}

	sess, err := h.newSession(quiz, ident, quizID)
	if err != nil {
		respondError(w, http.StatusBadRequest, appI18n.T(r.Context(), "NoQuestions"))
		return
	}
	id, err := h.sessions.Add(sess)
	if err != nil {
		sess.Close()
		respondError(w, http.StatusInternalServerError, "could not create session")
		return
	}

	respondJSON(w, http.StatusOK, startSessionResponse{
		SessionID: id,
		QuizID:    quizID,
		Questions: quiz,
	})
}

// newSession wires the completion callback: when the final feedback
// interval elapses, the attempt is recorded best-effort against the saved
// quiz, with the identity captured at session start.
func (h *Handler) newSession(quiz model.QuizSet, ident *model.Identity, quizID int64) (*session.Session, error) {
	var opts []session.Option
	if h.config.FeedbackDelay > 0 {
		opts = append(opts, session.WithFeedbackDelay(h.config.FeedbackDelay))
	}
	return session.New(quiz, func(answers model.AnswerRecord) {
		correct, _ := score.Score(quiz, answers)
		h.rec.RecordAttempt(ident, quizID, correct)
	}, opts...)
}

type sessionStateResponse struct {
	session.Snapshot
	// Message carries answer feedback during the feedback phase and the
	// tier message once completed. The remaining result fields are present
	// only once the session is completed.
	Message        string             `json:"message,omitempty"`
	CorrectAnswers *int               `json:"correctAnswers,omitempty"`
	Percentage     *int               `json:"percentage,omitempty"`
	Tier           string             `json:"tier,omitempty"`
	Answers        model.AnswerRecord `json:"answers,omitempty"`
}

func (h *Handler) sessionState(r *http.Request, sess *session.Session) sessionStateResponse {
	resp := sessionStateResponse{Snapshot: sess.Snapshot()}
	if resp.Phase == session.PhaseFeedback {
		q := sess.Quiz()[resp.Index]
		if resp.Correct {
			resp.Message = appI18n.T(r.Context(), "CorrectFeedback")
		} else {
			resp.Message = appI18n.Td(r.Context(), "IncorrectFeedback",
				map[string]any{"Answer": q.Options[q.CorrectIndex]})
		}
	}
	if resp.Phase == session.PhaseCompleted {
		answers := sess.Answers()
		correct, pct := score.Score(sess.Quiz(), answers)
		tier := score.TierFor(pct)
		resp.CorrectAnswers = &correct
		resp.Percentage = &pct
		resp.Tier = string(tier)
		resp.Message = appI18n.T(r.Context(), tierMessageID(tier))
		resp.Answers = answers
	}
	return resp
}

func tierMessageID(t score.Tier) string {
	switch t {
	case score.TierMastery:
		return "TierMastery"
	case score.TierProficient:
		return "TierProficient"
	case score.TierDeveloping:
		return "TierDeveloping"
	default:
		return "TierNeedsReview"
	}
}

func (h *Handler) session(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	sess, ok := h.sessions.Get(chi.URLParam(r, "sessionID"))
	if !ok {
		respondError(w, http.StatusNotFound, "session not found")
		return nil, false
	}
	return sess, true
}

func (h *Handler) handleSessionState(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, h.sessionState(r, sess))
}

func (h *Handler) handleSelect(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	var body struct {
		Option int `json:"option"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	sess.Select(body.Option)
	respondJSON(w, http.StatusOK, h.sessionState(r, sess))
}

func (h *Handler) handleConfirm(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := sess.Confirm(); err != nil {
		if errors.Is(err, session.ErrNoSelection) {
			respondError(w, http.StatusUnprocessableEntity, appI18n.T(r.Context(), "NoSelection"))
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, h.sessionState(r, sess))
}

// handleAbandonSession tears the session down. Any pending feedback timer
// is cancelled before the session is dropped, so no completion can fire
// afterwards.
func (h *Handler) handleAbandonSession(w http.ResponseWriter, r *http.Request) {
	h.sessions.Remove(chi.URLParam(r, "sessionID"))
	w.WriteHeader(http.StatusNoContent)
}

type listQuizzesResponse struct {
	Quizzes []model.SavedQuiz              `json:"quizzes"`
	Stats   map[int64]model.AttemptSummary `json:"stats"`
}

func (h *Handler) handleListQuizzes(w http.ResponseWriter, r *http.Request) {
	ident := model.UserFromContext(r.Context())

	quizzes, stats, err := h.rec.ListWithStats(r.Context(), ident)
	if err != nil {
		slog.Error("list quizzes failed", "user", ident.UserID, "error", err)
		respondError(w, http.StatusInternalServerError, appI18n.T(r.Context(), "LoadQuizzesFailed"))
		return
	}
	if quizzes == nil {
		quizzes = []model.SavedQuiz{}
	}
	respondJSON(w, http.StatusOK, listQuizzesResponse{Quizzes: quizzes, Stats: stats})
}

type saveQuizRequest struct {
	Title     string        `json:"title"`
	Questions model.QuizSet `json:"questions"`
	Answers   []int         `json:"answers"`
}

// answerRecord converts the client's positional answer array into the
// sparse record form; -1 marks an unanswered question.
func answerRecord(answers []int) model.AnswerRecord {
	rec := make(model.AnswerRecord, len(answers))
	for i, v := range answers {
		if v >= 0 {
			rec[i] = v
		}
	}
	return rec
}

func (h *Handler) handleSaveQuiz(w http.ResponseWriter, r *http.Request) {
	ident := model.UserFromContext(r.Context())

	var req saveQuizRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := req.Questions.Validate(); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	quizID, err := h.rec.SaveNamed(ident, req.Questions, answerRecord(req.Answers), req.Title)
	if err != nil {
		var partial *reconcile.PartialSaveError
		switch {
		case errors.Is(err, reconcile.ErrInvalidTitle):
			respondError(w, http.StatusUnprocessableEntity, appI18n.T(r.Context(), "InvalidTitle"))
		case errors.As(err, &partial):
			// The quiz row exists; hand its id back so the client can
			// retry just the attempt step.
			respondJSON(w, http.StatusBadGateway, map[string]any{
				"error":  appI18n.T(r.Context(), "AttemptSaveFailed"),
				"quizId": partial.QuizID,
			})
		default:
			slog.Error("named save failed", "user", ident.UserID, "error", err)
			respondError(w, http.StatusBadGateway, appI18n.T(r.Context(), "SaveFailed"))
		}
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"quizId":  quizID,
		"message": appI18n.T(r.Context(), "QuizSaved"),
	})
}

func (h *Handler) handleRetryAttempt(w http.ResponseWriter, r *http.Request) {
	ident := model.UserFromContext(r.Context())

	quizID, err := strconv.ParseInt(chi.URLParam(r, "quizID"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid quiz id")
		return
	}
	var req saveQuizRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	// Attempts may only ever reference a quiz the caller owns.
	saved, err := h.store.GetQuiz(ident.UserID, quizID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, appI18n.T(r.Context(), "LoadQuizzesFailed"))
		return
	}
	if saved == nil {
		respondError(w, http.StatusNotFound, "quiz not found")
		return
	}

	if err := h.rec.RetryAttempt(ident, quizID, req.Questions, answerRecord(req.Answers)); err != nil {
		slog.Error("attempt retry failed", "user", ident.UserID, "quiz", quizID, "error", err)
		respondError(w, http.StatusBadGateway, appI18n.T(r.Context(), "AttemptSaveFailed"))
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": appI18n.T(r.Context(), "QuizSaved")})
}

func (h *Handler) handleDeleteQuiz(w http.ResponseWriter, r *http.Request) {
	ident := model.UserFromContext(r.Context())

	quizID, err := strconv.ParseInt(chi.URLParam(r, "quizID"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid quiz id")
		return
	}
	if err := h.rec.DeleteQuiz(ident, quizID); err != nil {
		slog.Error("quiz delete failed", "user", ident.UserID, "quiz", quizID, "error", err)
		respondError(w, http.StatusBadGateway, appI18n.T(r.Context(), "DeleteFailed"))
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": appI18n.T(r.Context(), "QuizDeleted")})
}
