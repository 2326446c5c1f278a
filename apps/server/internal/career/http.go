package career

import (
	"context"
	"net/http"
	"time"

	"github.com/matryer/way"
	log "github.com/sirupsen/logrus"

	"asylum-lite/apps/server/internal/apiutil"
	"asylum-lite/apps/server/internal/auth"
	"asylum-lite/apps/server/internal/table"
)

type HTTPHandler struct {
	auth   auth.Service
	career Service
}

func NewHTTPHandler(authService auth.Service, careerService Service) *HTTPHandler {
	return &HTTPHandler{auth: authService, career: careerService}
}

func (h *HTTPHandler) RegisterRoutes(r *way.Router) {
	r.HandleFunc(http.MethodGet, "/api/career/me", h.handleMe)
}

func (h *HTTPHandler) handleMe(w http.ResponseWriter, r *http.Request) {
	token := apiutil.BearerToken(r.Header.Get("Authorization"))
	accountID, _, ok := h.auth.ResolveSession(token)
	if !ok {
		apiutil.WriteError(w, http.StatusUnauthorized, "invalid session token")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	rec, err := h.career.GetRecord(ctx, accountID)
	if err != nil {
		apiutil.WriteError(w, http.StatusInternalServerError, "query career failed")
		return
	}
	apiutil.WriteJSON(w, http.StatusOK, rec)
}

// EndHook credits every account seated at a finished table.
func EndHook(svc Service) table.EndHook {
	return func(info table.EndInfo) {
		for _, m := range info.Members {
			if m.AccountID == 0 {
				continue
			}
			won := info.Snapshot.Winner == m.Role
			if _, err := svc.RecordResult(context.Background(), m.AccountID, m.Role, won); err != nil {
				log.WithField("table", info.TableID).Warnf("[Career] record account %d failed: %v", m.AccountID, err)
			}
		}
	}
}
