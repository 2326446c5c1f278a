package auth

import (
	"errors"
	"net/http"

	"github.com/matryer/way"

	"asylum-lite/apps/server/internal/apiutil"
)

type HTTPHandler struct {
	manager Service
}

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type authResponse struct {
	UserID       uint64 `json:"user_id"`
	SessionToken string `json:"session_token"`
}

type meResponse struct {
	UserID   uint64 `json:"user_id"`
	Username string `json:"username"`
}

func NewHTTPHandler(manager Service) *HTTPHandler {
	return &HTTPHandler{manager: manager}
}

func (h *HTTPHandler) RegisterRoutes(r *way.Router) {
	r.HandleFunc(http.MethodPost, "/api/auth/register", h.handleRegister)
	r.HandleFunc(http.MethodPost, "/api/auth/login", h.handleLogin)
	r.HandleFunc(http.MethodPost, "/api/auth/logout", h.handleLogout)
	r.HandleFunc(http.MethodGet, "/api/auth/me", h.handleMe)
}

func (h *HTTPHandler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := apiutil.DecodeJSON(r, &req); err != nil {
		apiutil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	userID, sessionToken, err := h.manager.Register(req.Username, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidUsername), errors.Is(err, ErrInvalidPassword):
			apiutil.WriteError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, ErrUsernameTaken):
			apiutil.WriteError(w, http.StatusConflict, err.Error())
		default:
			apiutil.WriteError(w, http.StatusInternalServerError, "register failed")
		}
		return
	}
	apiutil.WriteJSON(w, http.StatusOK, authResponse{UserID: userID, SessionToken: sessionToken})
}

func (h *HTTPHandler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := apiutil.DecodeJSON(r, &req); err != nil {
		apiutil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	userID, sessionToken, err := h.manager.Login(req.Username, req.Password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			apiutil.WriteError(w, http.StatusUnauthorized, "invalid username or password")
			return
		}
		apiutil.WriteError(w, http.StatusInternalServerError, "login failed")
		return
	}
	apiutil.WriteJSON(w, http.StatusOK, authResponse{UserID: userID, SessionToken: sessionToken})
}

func (h *HTTPHandler) handleLogout(w http.ResponseWriter, r *http.Request) {
	token := apiutil.BearerToken(r.Header.Get("Authorization"))
	if token == "" {
		apiutil.WriteError(w, http.StatusUnauthorized, "missing session token")
		return
	}
	h.manager.Logout(token)
	w.WriteHeader(http.StatusNoContent)
}

func (h *HTTPHandler) handleMe(w http.ResponseWriter, r *http.Request) {
	token := apiutil.BearerToken(r.Header.Get("Authorization"))
	if token == "" {
		apiutil.WriteError(w, http.StatusUnauthorized, "missing session token")
		return
	}
	userID, username, ok := h.manager.ResolveSession(token)
	if !ok {
		apiutil.WriteError(w, http.StatusUnauthorized, "invalid session token")
		return
	}
	apiutil.WriteJSON(w, http.StatusOK, meResponse{UserID: userID, Username: username})
}
