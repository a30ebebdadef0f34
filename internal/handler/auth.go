package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"

	appI18n "quizle/internal/i18n"
	"quizle/internal/model"
)

const sessionCookieName = "session"

const minPasswordLen = 6

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// withUser resolves the session cookie into an identity and attaches it to
// the request context. Anonymous requests pass through with no identity;
// individual handlers decide whether that is acceptable.
func (h *Handler) withUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(sessionCookieName)
		if err != nil || cookie.Value == "" {
			next.ServeHTTP(w, r)
			return
		}

		authSess, err := h.store.GetAuthSession(cookie.Value)
		if err != nil {
			slog.Error("failed to get auth session", "error", err)
			next.ServeHTTP(w, r)
			return
		}
		if authSess == nil {
			next.ServeHTTP(w, r)
			return
		}

		user, err := h.store.GetUserByID(authSess.UserID)
		if err != nil || user == nil {
			next.ServeHTTP(w, r)
			return
		}

		ident := &model.Identity{UserID: user.ID, Email: user.Email}
		next.ServeHTTP(w, r.WithContext(model.ContextWithUser(r.Context(), ident)))
	})
}

// requireAuth rejects requests that carry no resolved identity.
func (h *Handler) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if model.UserFromContext(r.Context()) == nil {
			respondError(w, http.StatusUnauthorized, appI18n.T(r.Context(), "SignInRequired"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) handleSignUp(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Email == "" || !strings.Contains(req.Email, "@") {
		respondError(w, http.StatusBadRequest, "a valid email is required")
		return
	}
	if len(req.Password) < minPasswordLen {
		respondError(w, http.StatusBadRequest, "password must be at least 6 characters")
		return
	}

	existing, err := h.store.GetUserByEmail(req.Email)
	if err != nil {
		slog.Error("failed to get user", "error", err)
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if existing != nil {
		respondError(w, http.StatusConflict, "an account with this email already exists")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		slog.Error("failed to hash password", "error", err)
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	userID, err := h.store.CreateUser(model.User{Email: req.Email, PasswordHash: string(hash)})
	if err != nil {
		slog.Error("failed to create user", "error", err)
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	if !h.startAuthSession(w, userID) {
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{"userId": userID, "email": req.Email})
}

func (h *Handler) handleSignIn(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))

	user, err := h.store.GetUserByEmail(req.Email)
	if err != nil {
		slog.Error("failed to get user", "error", err)
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if user == nil {
		respondError(w, http.StatusUnauthorized, appI18n.T(r.Context(), "LoginError"))
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		respondError(w, http.StatusUnauthorized, appI18n.T(r.Context(), "LoginError"))
		return
	}

	if !h.startAuthSession(w, user.ID) {
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"userId": user.ID, "email": user.Email})
}

// startAuthSession mints a session token and sets the cookie. It writes an
// error response and returns false on failure.
func (h *Handler) startAuthSession(w http.ResponseWriter, userID int64) bool {
	token, err := h.store.CreateAuthSession(userID)
	if err != nil {
		slog.Error("failed to create auth session", "error", err)
		respondError(w, http.StatusInternalServerError, "internal error")
		return false
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   h.config.SecureCookies,
	})
	return true
}

func (h *Handler) handleSignOut(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(sessionCookieName)
	if err == nil && cookie.Value != "" {
		_ = h.store.DeleteAuthSession(cookie.Value)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.SecureCookies,
	})
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	ident := model.UserFromContext(r.Context())
	if ident == nil {
		respondJSON(w, http.StatusOK, map[string]any{"user": nil})
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"user": map[string]any{"id": ident.UserID, "email": ident.Email},
	})
}
