package api

import (
	"clouddb/internal/core"
	"clouddb/internal/service"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/sessions"
)

const cookieName = "clouddb-session"

type AuthHandler struct {
	authSvc *service.AuthService
	tokens  *service.TokenIssuer
	store   sessions.Store
}

func NewAuthHandler(authSvc *service.AuthService, tokens *service.TokenIssuer, secret string, ttl time.Duration) *AuthHandler {
	// CLOUDDB_KEY signs the cookie too
	store := sessions.NewCookieStore([]byte(secret))
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   false, // Set to true if HTTPS
		SameSite: http.SameSiteLaxMode,
	}

	return &AuthHandler{
		authSvc: authSvc,
		tokens:  tokens,
		store:   store,
	}
}

type credentials struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
}

type authResponse struct {
	User  core.PublicUser `json:"user"`
	Token string          `json:"token"`
}

func (h *AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	var in credentials
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, err)
		return
	}
	session, user, err := h.authSvc.SignUp(r.Context(), strings.TrimSpace(in.Email), in.Password, in.DisplayName)
	if err != nil {
		writeError(w, err)
		return
	}
	h.startSession(w, r, http.StatusCreated, session, user)
}

func (h *AuthHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	var in credentials
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, err)
		return
	}
	session, user, err := h.authSvc.SignIn(r.Context(), strings.TrimSpace(in.Email), in.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	h.startSession(w, r, http.StatusOK, session, user)
}

func (h *AuthHandler) startSession(w http.ResponseWriter, r *http.Request, status int, session *core.Session, user *core.User) {
	token, err := h.tokens.Issue(session)
	if err != nil {
		writeError(w, err)
		return
	}

	// Set Session
	cookie, _ := h.store.Get(r, cookieName)
	cookie.Values["user_id"] = session.UserID
	if err := cookie.Save(r, w); err != nil {
		writeError(w, err)
		return
	}

	writeData(w, status, authResponse{User: user.Public(), Token: token})
}

func (h *AuthHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	cookie, _ := h.store.Get(r, cookieName)
	cookie.Options.MaxAge = -1
	if err := cookie.Save(r, w); err != nil {
		writeError(w, err)
		return
	}

	if err := h.authSvc.SignOut(r.Context(), SessionFrom(r.Context())); err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, map[string]bool{"signed_out": true})
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := h.authSvc.CurrentUser(r.Context(), SessionFrom(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, user.Public())
}

func (h *AuthHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var in struct {
		DisplayName string `json:"display_name"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, err)
		return
	}
	user, err := h.authSvc.UpdateProfile(r.Context(), SessionFrom(r.Context()), in.DisplayName)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, user.Public())
}

func (h *AuthHandler) UpdatePassword(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, err)
		return
	}
	if err := h.authSvc.UpdatePassword(r.Context(), SessionFrom(r.Context()), in.Password); err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, map[string]bool{"updated": true})
}

// Authenticate attaches the caller's session, taken from a bearer token or
// the session cookie, when one is present.
func (h *AuthHandler) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s := h.sessionFor(r); s != nil {
			r = r.WithContext(withSession(r.Context(), s))
		}
		next.ServeHTTP(w, r)
	})
}

// RequireSession rejects anonymous callers.
func RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if SessionFrom(r.Context()) == nil {
			writeError(w, core.ErrNotAuthenticated)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *AuthHandler) sessionFor(r *http.Request) *core.Session {
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		s, err := h.tokens.Parse(strings.TrimPrefix(auth, "Bearer "))
		if err != nil {
			return nil
		}
		return s
	}

	cookie, err := h.store.Get(r, cookieName)
	if err != nil {
		return nil
	}
	if id, ok := cookie.Values["user_id"].(string); ok && id != "" {
		return &core.Session{UserID: id}
	}
	return nil
}
