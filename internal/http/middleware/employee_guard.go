package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/shopiq/shopiq-backend/internal/domain"
	"github.com/shopiq/shopiq-backend/internal/observability"
	"github.com/shopiq/shopiq-backend/internal/service"
)

type contextKey string

const employeeContextKey contextKey = "employee"

const (
	signInPath          = "/signin"
	pendingApprovalPath = "/sales/pending-approval"
)

// EmployeeSessions is the slice of the session service the guard needs.
type EmployeeSessions interface {
	GetEmployee(r *http.Request) (*domain.Employee, error)
}

// FounderGuard protects founder-prefixed routes. The employee row is
// re-read from the database on every request; claims baked into the
// cookie are never trusted for role decisions. Anything short of a
// verified FOUNDER row redirects to sign-in.
func FounderGuard(sessions EmployeeSessions) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			employee, err := sessions.GetEmployee(r)
			if err != nil || employee == nil {
				observability.Audit(r, "guard_redirect", "guard", "founder", "reason", "no_session")
				http.Redirect(w, r, signInPath, http.StatusFound)
				return
			}
			if employee.Role != domain.RoleFounder {
				observability.Audit(r, "guard_redirect", "guard", "founder", "reason", "wrong_role")
				http.Redirect(w, r, signInPath, http.StatusFound)
				return
			}
			next.ServeHTTP(w, r.WithContext(withEmployee(r.Context(), employee)))
		})
	}
}

// SalesGuard protects sales-prefixed routes. Unapproved members are
// funneled to the pending-approval page no matter which sales path they
// asked for; the pending-approval path itself always passes so the
// page stays reachable.
func SalesGuard(sessions EmployeeSessions) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			employee, err := sessions.GetEmployee(r)
			if err != nil || employee == nil {
				observability.Audit(r, "guard_redirect", "guard", "sales", "reason", "no_session")
				http.Redirect(w, r, signInPath, http.StatusFound)
				return
			}
			if employee.Role != domain.RoleSalesMember {
				observability.Audit(r, "guard_redirect", "guard", "sales", "reason", "wrong_role")
				http.Redirect(w, r, signInPath, http.StatusFound)
				return
			}
			if !employee.IsApproved && !strings.HasSuffix(r.URL.Path, pendingApprovalPath) {
				observability.Audit(r, "guard_redirect", "guard", "sales", "reason", "unapproved")
				http.Redirect(w, r, pendingApprovalPath, http.StatusFound)
				return
			}
			next.ServeHTTP(w, r.WithContext(withEmployee(r.Context(), employee)))
		})
	}
}

func withEmployee(ctx context.Context, e *domain.Employee) context.Context {
	return context.WithValue(ctx, employeeContextKey, e)
}

// EmployeeFromContext returns the guard-verified employee. Handlers
// behind FounderGuard or SalesGuard can rely on it being present.
func EmployeeFromContext(ctx context.Context) (*domain.Employee, bool) {
	e, ok := ctx.Value(employeeContextKey).(*domain.Employee)
	return e, ok
}

var _ EmployeeSessions = (*service.SessionService)(nil)
