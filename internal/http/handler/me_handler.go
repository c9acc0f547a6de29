package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/shopiq/shopiq-backend/internal/http/response"
	"github.com/shopiq/shopiq-backend/internal/service"
)

type MeHandler struct {
	sessions *service.SessionService
}

func NewMeHandler(sessions *service.SessionService) *MeHandler {
	return &MeHandler{sessions: sessions}
}

// Me reports every principal the browser currently holds. A browser can
// carry a user session and a store session at once; the client decides
// what to render from the combination.
func (h *MeHandler) Me(w http.ResponseWriter, r *http.Request) {
	payload := map[string]any{}

	user, err := h.sessions.GetUserWithStores(r)
	if err != nil {
		slog.ErrorContext(r.Context(), "user session lookup failed", "error", err)
		response.Internal(w, r)
		return
	}
	if user != nil {
		payload["user"] = user
		payload["on_trial"] = user.OnTrial(time.Now())
	}

	employee, err := h.sessions.GetEmployee(r)
	if err != nil {
		slog.ErrorContext(r.Context(), "employee session lookup failed", "error", err)
		response.Internal(w, r)
		return
	}
	if employee != nil {
		payload["employee"] = employee
	}

	store, err := h.sessions.GetStore(r)
	if err != nil {
		slog.ErrorContext(r.Context(), "store session lookup failed", "error", err)
		response.Internal(w, r)
		return
	}
	if store != nil {
		payload["store"] = store
	}

	if len(payload) == 0 {
		response.Unauthorized(w, r)
		return
	}
	response.JSON(w, r, http.StatusOK, payload)
}
