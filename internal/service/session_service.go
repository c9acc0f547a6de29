package service

import (
	"errors"
	"net/http"
	"time"

	"github.com/shopiq/shopiq-backend/internal/domain"
	"github.com/shopiq/shopiq-backend/internal/repository"
	"github.com/shopiq/shopiq-backend/internal/security"
)

// SessionService issues and resolves the three cookie session kinds.
// Signed claims are treated as identity proof only: role and approval
// gates always re-read the employee row, because that state changes
// out-of-band and must take effect before the token expires.
type SessionService struct {
	signer        *security.SessionSigner
	userRepo      repository.UserRepository
	employeeRepo  repository.EmployeeRepository
	storeRepo     repository.StoreRepository
	sessionTTL    time.Duration
	secureCookies bool
}

func NewSessionService(
	signer *security.SessionSigner,
	userRepo repository.UserRepository,
	employeeRepo repository.EmployeeRepository,
	storeRepo repository.StoreRepository,
	sessionTTL time.Duration,
	secureCookies bool,
) *SessionService {
	return &SessionService{
		signer:        signer,
		userRepo:      userRepo,
		employeeRepo:  employeeRepo,
		storeRepo:     storeRepo,
		sessionTTL:    sessionTTL,
		secureCookies: secureCookies,
	}
}

func (s *SessionService) CreateStoreSession(w http.ResponseWriter, store *domain.Store) error {
	token, err := s.signer.SignStoreSession(store.ID, store.Domain, s.sessionTTL)
	if err != nil {
		return err
	}
	security.SetSessionCookie(w, security.StoreSessionCookie, token, s.sessionTTL, s.secureCookies)
	return nil
}

func (s *SessionService) CreateUserSession(w http.ResponseWriter, user *domain.User) error {
	token, err := s.signer.SignUserSession(user.ID, user.Email, user.Name, s.sessionTTL)
	if err != nil {
		return err
	}
	security.SetSessionCookie(w, security.UserSessionCookie, token, s.sessionTTL, s.secureCookies)
	return nil
}

func (s *SessionService) CreateEmployeeSession(w http.ResponseWriter, e *domain.Employee) error {
	token, err := s.signer.SignEmployeeSession(e.ID, e.Email, e.Name, string(e.Role), e.IsApproved, s.sessionTTL)
	if err != nil {
		return err
	}
	security.SetSessionCookie(w, security.EmployeeSessionCookie, token, s.sessionTTL, s.secureCookies)
	return nil
}

// GetStoreSession returns nil on a missing, malformed, or expired
// cookie; those are expected states, not errors.
func (s *SessionService) GetStoreSession(r *http.Request) *security.SessionClaims {
	return s.getSession(r, security.StoreSessionCookie, security.SessionKindStore)
}

func (s *SessionService) GetUserSession(r *http.Request) *security.SessionClaims {
	return s.getSession(r, security.UserSessionCookie, security.SessionKindUser)
}

func (s *SessionService) GetEmployeeSession(r *http.Request) *security.SessionClaims {
	return s.getSession(r, security.EmployeeSessionCookie, security.SessionKindEmployee)
}

func (s *SessionService) getSession(r *http.Request, cookie, kind string) *security.SessionClaims {
	raw := security.GetCookie(r, cookie)
	if raw == "" {
		return nil
	}
	claims, err := s.signer.Parse(raw, kind)
	if err != nil {
		return nil
	}
	return claims
}

// GetStore materializes the store record behind a valid store session.
// A valid session over a deleted store is a dangling session: nil, nil.
func (s *SessionService) GetStore(r *http.Request) (*domain.Store, error) {
	claims := s.GetStoreSession(r)
	if claims == nil {
		return nil, nil
	}
	store, err := s.storeRepo.FindByID(claims.PrincipalID())
	if err != nil {
		if errors.Is(err, repository.ErrStoreNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return store, nil
}

func (s *SessionService) GetUserWithStores(r *http.Request) (*domain.User, error) {
	claims := s.GetUserSession(r)
	if claims == nil {
		return nil, nil
	}
	user, err := s.userRepo.FindByIDWithStores(claims.PrincipalID())
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return user, nil
}

func (s *SessionService) GetEmployee(r *http.Request) (*domain.Employee, error) {
	claims := s.GetEmployeeSession(r)
	if claims == nil {
		return nil, nil
	}
	employee, err := s.employeeRepo.FindByID(claims.PrincipalID())
	if err != nil {
		if errors.Is(err, repository.ErrEmployeeNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return employee, nil
}

func (s *SessionService) RequireUser(r *http.Request) (*domain.User, error) {
	user, err := s.GetUserWithStores(r)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUnauthorized
	}
	return user, nil
}

func (s *SessionService) RequireStore(r *http.Request) (*domain.Store, error) {
	store, err := s.GetStore(r)
	if err != nil {
		return nil, err
	}
	if store == nil {
		return nil, ErrUnauthorized
	}
	return store, nil
}

func (s *SessionService) RequireFounder(r *http.Request) (*domain.Employee, error) {
	employee, err := s.GetEmployee(r)
	if err != nil {
		return nil, err
	}
	if employee == nil || employee.Role != domain.RoleFounder {
		return nil, ErrUnauthorized
	}
	return employee, nil
}

// RequireApprovedSalesMember enforces role and approval from the row
// just fetched, not from token claims.
func (s *SessionService) RequireApprovedSalesMember(r *http.Request) (*domain.Employee, error) {
	employee, err := s.GetEmployee(r)
	if err != nil {
		return nil, err
	}
	if employee == nil || employee.Role != domain.RoleSalesMember || !employee.IsApproved {
		return nil, ErrUnauthorized
	}
	return employee, nil
}

func (s *SessionService) DeleteStoreSession(w http.ResponseWriter) {
	security.ClearCookie(w, security.StoreSessionCookie, s.secureCookies)
}

func (s *SessionService) DeleteUserSession(w http.ResponseWriter) {
	security.ClearCookie(w, security.UserSessionCookie, s.secureCookies)
}

func (s *SessionService) DeleteEmployeeSession(w http.ResponseWriter) {
	security.ClearCookie(w, security.EmployeeSessionCookie, s.secureCookies)
}
