package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/aretw0/notely/pkg/core"
)

// SessionCookie is the name of the cookie carrying the session token.
const SessionCookie = "sessionid"

type ctxKey int

const (
	userKey ctxKey = iota
	tokenKey
)

type userResponse struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

func toUserResponse(u core.User) userResponse {
	return userResponse{ID: u.ID, Username: u.Username, Email: u.Email}
}

type registerRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
	Email    string `json:"email" validate:"omitempty,email"`
}

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

func sessionToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	if c, err := r.Cookie(SessionCookie); err == nil {
		return c.Value
	}
	return ""
}

// requireUser rejects requests without a live session and stores the user
// in the request context.
func (s *Server) requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := sessionToken(r)
		if token == "" {
			writeMessage(w, http.StatusUnauthorized, "Authentication credentials were not provided.")
			return
		}
		sess, ok := s.sessions.Lookup(token)
		if !ok {
			writeMessage(w, http.StatusUnauthorized, "Invalid or expired session.")
			return
		}
		user, err := s.svc.GetUser(r.Context(), sess.UserID)
		if err != nil {
			if errors.Is(err, core.ErrNotFound) {
				s.sessions.Delete(token)
				writeMessage(w, http.StatusUnauthorized, "Invalid or expired session.")
				return
			}
			writeError(w, r, s.logger, err)
			return
		}

		ctx := context.WithValue(r.Context(), userKey, user)
		ctx = context.WithValue(ctx, tokenKey, token)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func currentUser(r *http.Request) core.User {
	u, _ := r.Context().Value(userKey).(core.User)
	return u
}

func (s *Server) startSession(w http.ResponseWriter, u core.User) {
	sess := s.sessions.Create(u.ID)
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    sess.Token,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decode(w, r, &req); err != nil {
		var verr *core.ValidationError
		if errors.As(err, &verr) && (verr.Fields["username"] != "" || verr.Fields["password"] != "") {
			writeMessage(w, http.StatusBadRequest, "Username and password are required")
			return
		}
		writeError(w, r, s.logger, err)
		return
	}

	u, err := s.svc.Register(r.Context(), req.Username, req.Password, req.Email)
	switch {
	case errors.Is(err, core.ErrConflict):
		writeMessage(w, http.StatusBadRequest, "Username already exists")
		return
	case errors.Is(err, core.ErrValidation):
		writeMessage(w, http.StatusBadRequest, "Username and password are required")
		return
	case err != nil:
		writeError(w, r, s.logger, err)
		return
	}

	s.startSession(w, u)
	writeJSON(w, http.StatusCreated, toUserResponse(u))
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decode(w, r, &req); err != nil {
		writeMessage(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	u, err := s.svc.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, core.ErrUnauthorized) {
			s.logger.Warn("login failed", "username", req.Username)
		}
		writeError(w, r, s.logger, err)
		return
	}

	s.logger.Info("login", "user", u.Username)
	s.startSession(w, u)
	writeJSON(w, http.StatusOK, toUserResponse(u))
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if token, ok := r.Context().Value(tokenKey).(string); ok {
		s.sessions.Delete(token)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, map[string]string{"message": "Logged out successfully"})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, toUserResponse(currentUser(r)))
}
