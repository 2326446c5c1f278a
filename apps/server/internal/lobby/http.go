package lobby

import (
	"errors"
	"net/http"
	"strings"

	"github.com/matryer/way"

	"asylum-lite/apps/server/internal/apiutil"
	"asylum-lite/apps/server/internal/auth"
	"asylum-lite/asylum"
)

type HTTPHandler struct {
	auth  auth.Service
	lobby *Lobby
}

type enterRequest struct {
	Name string `json:"name"`
}

type tokenRequest struct {
	Token string `json:"token"`
}

type roleRequest struct {
	Token string `json:"token"`
	Seat  int    `json:"seat"`
	Role  string `json:"role"`
}

type cardRequest struct {
	Token string `json:"token"`
	Card  string `json:"card"`
}

type enterResponse struct {
	Ticket
	SessionToken string `json:"session_token"`
}

func NewHTTPHandler(authService auth.Service, l *Lobby) *HTTPHandler {
	return &HTTPHandler{auth: authService, lobby: l}
}

func (h *HTTPHandler) RegisterRoutes(r *way.Router) {
	r.HandleFunc(http.MethodGet, "/api/rooms", h.handleList)
	r.HandleFunc(http.MethodPost, "/api/rooms", h.handleCreate)
	r.HandleFunc(http.MethodGet, "/api/rooms/:code", h.handleGet)
	r.HandleFunc(http.MethodPost, "/api/rooms/:code/join", h.handleJoin)
	r.HandleFunc(http.MethodPost, "/api/rooms/:code/leave", h.handleLeave)
	r.HandleFunc(http.MethodPost, "/api/rooms/:code/roles", h.handleRole)
	r.HandleFunc(http.MethodPost, "/api/rooms/:code/randomize", h.handleRandomize)
	r.HandleFunc(http.MethodPost, "/api/rooms/:code/doctor-card", h.handleDoctorCard)
	r.HandleFunc(http.MethodPost, "/api/rooms/:code/start", h.handleStart)
	r.HandleFunc(http.MethodGet, "/api/doctor-cards", h.handleCards)
}

func (h *HTTPHandler) handleList(w http.ResponseWriter, r *http.Request) {
	apiutil.WriteJSON(w, http.StatusOK, map[string]any{"rooms": h.lobby.List()})
}

func (h *HTTPHandler) handleCards(w http.ResponseWriter, r *http.Request) {
	apiutil.WriteJSON(w, http.StatusOK, map[string]any{"cards": h.lobby.DoctorCards()})
}

func (h *HTTPHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	view, err := h.lobby.Get(way.Param(r.Context(), "code"))
	if err != nil {
		writeLobbyError(w, err)
		return
	}
	apiutil.WriteJSON(w, http.StatusOK, view)
}

// enter resolves the caller's account; unauthenticated callers become guests.
func (h *HTTPHandler) enter(r *http.Request) (req enterRequest, accountID uint64, sessionToken string, ok bool) {
	if r.ContentLength != 0 {
		if err := apiutil.DecodeJSON(r, &req); err != nil {
			return req, 0, "", false
		}
	}
	accountID, sessionToken, _ = h.auth.ResolveOrCreateAccount(apiutil.BearerToken(r.Header.Get("Authorization")))
	if strings.TrimSpace(req.Name) == "" {
		if _, username, found := h.auth.ResolveSession(sessionToken); found {
			req.Name = username
		}
	}
	return req, accountID, sessionToken, true
}

func (h *HTTPHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	req, accountID, sessionToken, ok := h.enter(r)
	if !ok {
		apiutil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	ticket, err := h.lobby.CreateRoom(accountID, req.Name)
	if err != nil {
		writeLobbyError(w, err)
		return
	}
	apiutil.WriteJSON(w, http.StatusCreated, enterResponse{Ticket: ticket, SessionToken: sessionToken})
}

func (h *HTTPHandler) handleJoin(w http.ResponseWriter, r *http.Request) {
	req, accountID, sessionToken, ok := h.enter(r)
	if !ok {
		apiutil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	ticket, err := h.lobby.JoinRoom(way.Param(r.Context(), "code"), accountID, req.Name)
	if err != nil {
		writeLobbyError(w, err)
		return
	}
	apiutil.WriteJSON(w, http.StatusOK, enterResponse{Ticket: ticket, SessionToken: sessionToken})
}

func (h *HTTPHandler) handleLeave(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := apiutil.DecodeJSON(r, &req); err != nil {
		apiutil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.lobby.LeaveRoom(way.Param(r.Context(), "code"), req.Token); err != nil {
		writeLobbyError(w, err)
		return
	}
	apiutil.WriteJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h *HTTPHandler) handleRole(w http.ResponseWriter, r *http.Request) {
	var req roleRequest
	if err := apiutil.DecodeJSON(r, &req); err != nil {
		apiutil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	role, ok := asylum.ParseRole(req.Role)
	if !ok {
		writeLobbyError(w, ErrInvalidRole)
		return
	}
	view, err := h.lobby.SetRole(way.Param(r.Context(), "code"), req.Token, req.Seat, role)
	if err != nil {
		writeLobbyError(w, err)
		return
	}
	apiutil.WriteJSON(w, http.StatusOK, view)
}

func (h *HTTPHandler) handleRandomize(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := apiutil.DecodeJSON(r, &req); err != nil {
		apiutil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	view, err := h.lobby.RandomizeRoles(way.Param(r.Context(), "code"), req.Token)
	if err != nil {
		writeLobbyError(w, err)
		return
	}
	apiutil.WriteJSON(w, http.StatusOK, view)
}

func (h *HTTPHandler) handleDoctorCard(w http.ResponseWriter, r *http.Request) {
	var req cardRequest
	if err := apiutil.DecodeJSON(r, &req); err != nil {
		apiutil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	view, err := h.lobby.PickDoctorCard(way.Param(r.Context(), "code"), req.Token, req.Card)
	if err != nil {
		writeLobbyError(w, err)
		return
	}
	apiutil.WriteJSON(w, http.StatusOK, view)
}

func (h *HTTPHandler) handleStart(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := apiutil.DecodeJSON(r, &req); err != nil {
		apiutil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	view, err := h.lobby.Start(way.Param(r.Context(), "code"), req.Token)
	if err != nil {
		writeLobbyError(w, err)
		return
	}
	apiutil.WriteJSON(w, http.StatusOK, view)
}

func writeLobbyError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrRoomNotFound):
		apiutil.WriteError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrNotInRoom), errors.Is(err, ErrNotHost), errors.Is(err, ErrNotDoctor):
		apiutil.WriteError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, ErrRoomFull), errors.Is(err, ErrRoomStarted), errors.Is(err, ErrNotStarted):
		apiutil.WriteError(w, http.StatusConflict, err.Error())
	case errors.Is(err, ErrInvalidSeat), errors.Is(err, ErrInvalidRole), errors.Is(err, ErrUnknownCard):
		apiutil.WriteError(w, http.StatusBadRequest, err.Error())
	default:
		apiutil.WriteError(w, http.StatusInternalServerError, "lobby operation failed")
	}
}
