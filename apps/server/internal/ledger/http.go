package ledger

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/matryer/way"

	"asylum-lite/apps/server/internal/apiutil"
	"asylum-lite/apps/server/internal/auth"
	"asylum-lite/replay"
)

type HTTPHandler struct {
	auth   auth.Service
	ledger Service
}

type upsertReplayRequest struct {
	Script  replay.SessionSpec `json:"script"`
	Summary map[string]any     `json:"summary"`
}

func NewHTTPHandler(authService auth.Service, ledgerService Service) *HTTPHandler {
	return &HTTPHandler{auth: authService, ledger: ledgerService}
}

func (h *HTTPHandler) RegisterRoutes(r *way.Router) {
	r.HandleFunc(http.MethodGet, "/api/history/recent", h.handleRecent)
	r.HandleFunc(http.MethodGet, "/api/history/sessions/:id/events", h.handleEvents)
	r.HandleFunc(http.MethodPost, "/api/history/sessions/:id/save", h.handleSave(true))
	r.HandleFunc(http.MethodDelete, "/api/history/sessions/:id/save", h.handleSave(false))
	r.HandleFunc(http.MethodPost, "/api/history/replays/:id", h.handleUpsertReplay)
}

func (h *HTTPHandler) handleRecent(w http.ResponseWriter, r *http.Request) {
	accountID, ok := h.resolveAccount(r)
	if !ok {
		apiutil.WriteError(w, http.StatusUnauthorized, "invalid session token")
		return
	}
	source, ok := ParseSource(r.URL.Query().Get("source"))
	if !ok {
		apiutil.WriteError(w, http.StatusBadRequest, "invalid source")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	items, err := h.ledger.ListRecent(ctx, accountID, source, parseLimit(r.URL.Query().Get("limit")))
	if err != nil {
		apiutil.WriteError(w, http.StatusInternalServerError, "query recent sessions failed")
		return
	}
	apiutil.WriteJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *HTTPHandler) handleEvents(w http.ResponseWriter, r *http.Request) {
	accountID, ok := h.resolveAccount(r)
	if !ok {
		apiutil.WriteError(w, http.StatusUnauthorized, "invalid session token")
		return
	}
	source, ok := ParseSource(r.URL.Query().Get("source"))
	if !ok {
		apiutil.WriteError(w, http.StatusBadRequest, "invalid source")
		return
	}
	sessionID := strings.TrimSpace(way.Param(r.Context(), "id"))

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	events, err := h.ledger.GetSessionEvents(ctx, accountID, source, sessionID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			apiutil.WriteError(w, http.StatusNotFound, "session not found")
			return
		}
		apiutil.WriteError(w, http.StatusInternalServerError, "query session events failed")
		return
	}
	apiutil.WriteJSON(w, http.StatusOK, map[string]any{
		"session_id": sessionID,
		"source":     source,
		"events":     events,
	})
}

func (h *HTTPHandler) handleSave(saved bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		accountID, ok := h.resolveAccount(r)
		if !ok {
			apiutil.WriteError(w, http.StatusUnauthorized, "invalid session token")
			return
		}
		source, ok := ParseSource(r.URL.Query().Get("source"))
		if !ok {
			apiutil.WriteError(w, http.StatusBadRequest, "invalid source")
			return
		}
		sessionID := strings.TrimSpace(way.Param(r.Context(), "id"))

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		if err := h.ledger.SetSaved(ctx, accountID, source, sessionID, saved); err != nil {
			switch {
			case errors.Is(err, ErrNotFound):
				apiutil.WriteError(w, http.StatusNotFound, "session not found")
			case errors.Is(err, ErrSavedLimitReach):
				apiutil.WriteError(w, http.StatusConflict, "saved session limit reached")
			default:
				apiutil.WriteError(w, http.StatusInternalServerError, "update save state failed")
			}
			return
		}
		apiutil.WriteJSON(w, http.StatusOK, map[string]any{
			"session_id": sessionID,
			"source":     source,
			"is_saved":   saved,
		})
	}
}

// handleUpsertReplay regenerates a tape from a command script and stores it.
func (h *HTTPHandler) handleUpsertReplay(w http.ResponseWriter, r *http.Request) {
	accountID, ok := h.resolveAccount(r)
	if !ok {
		apiutil.WriteError(w, http.StatusUnauthorized, "invalid session token")
		return
	}
	var req upsertReplayRequest
	if err := apiutil.DecodeJSON(r, &req); err != nil {
		apiutil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	sessionID := strings.TrimSpace(way.Param(r.Context(), "id"))

	tape, err := replay.GenerateReplayTape(req.Script)
	if err != nil {
		var rerr *replay.ReplayError
		if errors.As(err, &rerr) {
			apiutil.WriteJSON(w, http.StatusUnprocessableEntity, rerr)
			return
		}
		apiutil.WriteError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	events := TapeEvents(tape)
	if req.Summary == nil {
		req.Summary = map[string]any{}
	}
	req.Summary["seed"] = req.Script.Seed
	req.Summary["commands"] = len(req.Script.Commands)

	ctx, cancel := context.WithTimeout(r.Context(), 8*time.Second)
	defer cancel()
	if err := h.ledger.UpsertReplaySession(ctx, accountID, sessionID, events, req.Summary); err != nil {
		apiutil.WriteError(w, http.StatusInternalServerError, "upsert replay session failed")
		return
	}
	apiutil.WriteJSON(w, http.StatusOK, map[string]any{
		"session_id":  sessionID,
		"source":      SourceReplay,
		"event_count": len(events),
	})
}

// TapeEvents numbers tape entries 1..n; snapshot entries share a narration seq.
func TapeEvents(tape *replay.ReplayTape) []EventItem {
	events := make([]EventItem, 0, len(tape.Events))
	for i, e := range tape.Events {
		events = append(events, EventItem{
			Seq:         uint64(i + 1),
			EventType:   e.Type,
			EnvelopeB64: e.EnvelopeB64,
		})
	}
	return events
}

func (h *HTTPHandler) resolveAccount(r *http.Request) (uint64, bool) {
	token := apiutil.BearerToken(r.Header.Get("Authorization"))
	if token == "" {
		return 0, false
	}
	accountID, _, ok := h.auth.ResolveSession(token)
	return accountID, ok
}

func parseLimit(raw string) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n <= 0 {
		return 20
	}
	if n > 100 {
		return 100
	}
	return n
}
