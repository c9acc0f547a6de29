package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/shopiq/shopiq-backend/internal/domain"
	"github.com/shopiq/shopiq-backend/internal/http/middleware"
	"github.com/shopiq/shopiq-backend/internal/http/response"
	"github.com/shopiq/shopiq-backend/internal/service"
)

type SalesHandler struct {
	referrals *service.ReferralService
}

func NewSalesHandler(referrals *service.ReferralService) *SalesHandler {
	return &SalesHandler{referrals: referrals}
}

// Dashboard aggregates the member's links and commissions into the
// numbers the sales UI shows.
func (h *SalesHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	employee, _ := middleware.EmployeeFromContext(r.Context())

	links, err := h.referrals.ListLinks(r.Context(), employee.ID)
	if err != nil {
		slog.ErrorContext(r.Context(), "referral list failed", "error", err)
		response.Internal(w, r)
		return
	}
	commissions, err := h.referrals.ListCommissions(r.Context(), employee.ID)
	if err != nil {
		slog.ErrorContext(r.Context(), "commission list failed", "error", err)
		response.Internal(w, r)
		return
	}

	var signups, conversions int
	for _, link := range links {
		signups += link.SignupCount
		conversions += link.ConversionCount
	}
	var pendingCents, paidCents int64
	for _, c := range commissions {
		switch c.Status {
		case domain.CommissionPaid:
			paidCents += c.AmountCents
		default:
			pendingCents += c.AmountCents
		}
	}

	response.JSON(w, r, http.StatusOK, map[string]any{
		"links":                    links,
		"total_signups":            signups,
		"total_conversions":        conversions,
		"pending_commission_cents": pendingCents,
		"paid_commission_cents":    paidCents,
	})
}

func (h *SalesHandler) ListReferrals(w http.ResponseWriter, r *http.Request) {
	employee, _ := middleware.EmployeeFromContext(r.Context())

	links, err := h.referrals.ListLinks(r.Context(), employee.ID)
	if err != nil {
		slog.ErrorContext(r.Context(), "referral list failed", "error", err)
		response.Internal(w, r)
		return
	}
	response.JSON(w, r, http.StatusOK, map[string]any{"links": links})
}

type createLinkRequest struct {
	TrialDays int `json:"trial_days"`
}

func (h *SalesHandler) CreateReferral(w http.ResponseWriter, r *http.Request) {
	employee, _ := middleware.EmployeeFromContext(r.Context())

	var req createLinkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, r, "invalid request body")
		return
	}
	if req.TrialDays < 0 || req.TrialDays > 90 {
		response.BadRequest(w, r, "trial_days must be between 0 and 90")
		return
	}

	link, err := h.referrals.CreateLink(r.Context(), employee.ID, req.TrialDays)
	if err != nil {
		slog.ErrorContext(r.Context(), "referral create failed", "error", err)
		response.Internal(w, r)
		return
	}
	response.JSON(w, r, http.StatusCreated, map[string]any{"link": link})
}

// PendingApproval is the one sales route an unapproved member can
// reach.
func (h *SalesHandler) PendingApproval(w http.ResponseWriter, r *http.Request) {
	employee, _ := middleware.EmployeeFromContext(r.Context())
	response.JSON(w, r, http.StatusOK, map[string]any{
		"approved": employee.IsApproved,
		"status":   "awaiting founder approval",
	})
}
