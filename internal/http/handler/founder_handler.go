package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/shopiq/shopiq-backend/internal/http/middleware"
	"github.com/shopiq/shopiq-backend/internal/http/response"
	"github.com/shopiq/shopiq-backend/internal/repository"
	"github.com/shopiq/shopiq-backend/internal/service"
)

type FounderHandler struct {
	employees *service.EmployeeService
}

func NewFounderHandler(employees *service.EmployeeService) *FounderHandler {
	return &FounderHandler{employees: employees}
}

func (h *FounderHandler) ListEmployees(w http.ResponseWriter, r *http.Request) {
	list, err := h.employees.List(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "employee list failed", "error", err)
		response.Internal(w, r)
		return
	}
	response.JSON(w, r, http.StatusOK, map[string]any{"employees": list})
}

type inviteRequest struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

func (h *FounderHandler) Invite(w http.ResponseWriter, r *http.Request) {
	var req inviteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" || req.Name == "" {
		response.BadRequest(w, r, "email and name are required")
		return
	}
	founder, _ := middleware.EmployeeFromContext(r.Context())

	employee, err := h.employees.Invite(r.Context(), founder, req.Email, req.Name)
	if err != nil {
		if errors.Is(err, service.ErrEmailTaken) {
			response.BadRequest(w, r, "unable to invite this email")
			return
		}
		slog.ErrorContext(r.Context(), "invite failed", "error", err)
		response.Internal(w, r)
		return
	}
	response.JSON(w, r, http.StatusCreated, map[string]any{"employee": employee})
}

type approvalRequest struct {
	Approved bool `json:"approved"`
}

func (h *FounderHandler) SetApproval(w http.ResponseWriter, r *http.Request) {
	id, ok := employeeIDParam(r)
	if !ok {
		response.BadRequest(w, r, "invalid employee id")
		return
	}
	var req approvalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, r, "invalid request body")
		return
	}

	updated, err := h.employees.SetApproval(r.Context(), id, req.Approved)
	if err != nil {
		slog.ErrorContext(r.Context(), "approval update failed", "error", err)
		response.Internal(w, r)
		return
	}
	if !updated {
		response.NotFound(w, r)
		return
	}
	response.JSON(w, r, http.StatusOK, map[string]any{"id": id, "approved": req.Approved})
}

// ForceReset rotates an employee's credentials: a 15-minute reset token
// is issued and mailed to the employee. The raw token never appears in
// this response.
func (h *FounderHandler) ForceReset(w http.ResponseWriter, r *http.Request) {
	id, ok := employeeIDParam(r)
	if !ok {
		response.BadRequest(w, r, "invalid employee id")
		return
	}

	if err := h.employees.ForcePasswordChange(r.Context(), id); err != nil {
		if errors.Is(err, repository.ErrEmployeeNotFound) {
			response.NotFound(w, r)
			return
		}
		slog.ErrorContext(r.Context(), "force reset failed", "error", err)
		response.Internal(w, r)
		return
	}
	response.JSON(w, r, http.StatusOK, map[string]any{"id": id, "status": "reset_required"})
}

func employeeIDParam(r *http.Request) (uint, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}
