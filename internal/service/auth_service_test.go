package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopiq/shopiq-backend/internal/domain"
	"github.com/shopiq/shopiq-backend/internal/mail"
	"github.com/shopiq/shopiq-backend/internal/repository"
	"github.com/shopiq/shopiq-backend/internal/security"
)

// plainVerifier stores passwords with a marker prefix and counts every
// comparison so tests can assert the equal-work property of sign-in.
type plainVerifier struct {
	verifyCalls int
}

func (v *plainVerifier) Hash(plaintext string) (string, error) {
	return "hashed:" + plaintext, nil
}

func (v *plainVerifier) Verify(plaintext, hash string) bool {
	v.verifyCalls++
	return hash == "hashed:"+plaintext
}

type fakeUserRepo struct {
	repository.UserRepository
	users map[string]*domain.User

	resetUserID    uint
	resetTokenHash string
	resetExpiresAt time.Time

	consumedHash string
	consumeOK    bool
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: map[string]*domain.User{}}
}

func (r *fakeUserRepo) FindByID(id uint) (*domain.User, error) {
	for _, u := range r.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (r *fakeUserRepo) MarkSubscribed(userID uint, at time.Time) (bool, error) {
	u, err := r.FindByID(userID)
	if err != nil {
		return false, err
	}
	if u.SubscribedAt != nil {
		return false, nil
	}
	u.SubscribedAt = &at
	return true, nil
}

func (r *fakeUserRepo) FindByEmail(email string) (*domain.User, error) {
	u, ok := r.users[email]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	return u, nil
}

func (r *fakeUserRepo) Create(u *domain.User) error {
	u.ID = uint(len(r.users) + 1)
	r.users[u.Email] = u
	return nil
}

func (r *fakeUserRepo) SetResetToken(userID uint, tokenHash string, expiresAt time.Time) error {
	r.resetUserID = userID
	r.resetTokenHash = tokenHash
	r.resetExpiresAt = expiresAt
	return nil
}

func (r *fakeUserRepo) ConsumeResetToken(tokenHash, newPasswordHash string) (bool, error) {
	r.consumedHash = tokenHash
	return r.consumeOK, nil
}

type fakeEmployeeRepo struct {
	repository.EmployeeRepository
	employees map[string]*domain.Employee

	resetEmployeeID uint
	resetTokenHash  string
	resetExpiresAt  time.Time

	consumeOK bool
}

func newFakeEmployeeRepo() *fakeEmployeeRepo {
	return &fakeEmployeeRepo{employees: map[string]*domain.Employee{}}
}

func (r *fakeEmployeeRepo) FindByEmail(email string) (*domain.Employee, error) {
	e, ok := r.employees[email]
	if !ok {
		return nil, repository.ErrEmployeeNotFound
	}
	return e, nil
}

func (r *fakeEmployeeRepo) FindByID(id uint) (*domain.Employee, error) {
	for _, e := range r.employees {
		if e.ID == id {
			return e, nil
		}
	}
	return nil, repository.ErrEmployeeNotFound
}

func (r *fakeEmployeeRepo) Create(e *domain.Employee) error {
	e.ID = uint(len(r.employees) + 1)
	r.employees[e.Email] = e
	return nil
}

func (r *fakeEmployeeRepo) List() ([]domain.Employee, error) {
	out := make([]domain.Employee, 0, len(r.employees))
	for _, e := range r.employees {
		out = append(out, *e)
	}
	return out, nil
}

func (r *fakeEmployeeRepo) SetApproval(employeeID uint, approved bool) (bool, error) {
	for _, e := range r.employees {
		if e.ID == employeeID && e.Role == domain.RoleSalesMember {
			e.IsApproved = approved
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeEmployeeRepo) SetResetToken(employeeID uint, tokenHash string, expiresAt time.Time) error {
	r.resetEmployeeID = employeeID
	r.resetTokenHash = tokenHash
	r.resetExpiresAt = expiresAt
	return nil
}

func (r *fakeEmployeeRepo) ConsumeResetToken(tokenHash, newPasswordHash string) (bool, error) {
	return r.consumeOK, nil
}

type recordingMailer struct {
	resets chan mail.PasswordResetEmail
}

func newRecordingMailer() *recordingMailer {
	return &recordingMailer{resets: make(chan mail.PasswordResetEmail, 4)}
}

func (m *recordingMailer) SendPasswordResetEmail(_ context.Context, msg mail.PasswordResetEmail) error {
	m.resets <- msg
	return nil
}

func (m *recordingMailer) SendSalesWelcomeEmail(_ context.Context, msg mail.SalesWelcomeEmail) error {
	return nil
}

func newTestAuthService(t *testing.T) (*AuthService, *fakeUserRepo, *fakeEmployeeRepo, *plainVerifier, *recordingMailer) {
	t.Helper()
	users := newFakeUserRepo()
	employees := newFakeEmployeeRepo()
	verifier := &plainVerifier{}
	mailer := newRecordingMailer()
	svc, err := NewAuthService(users, employees, verifier, mailer, "https://app.shopiq.test")
	if err != nil {
		t.Fatalf("NewAuthService: %v", err)
	}
	return svc, users, employees, verifier, mailer
}

func TestSignInUser(t *testing.T) {
	svc, users, _, _, _ := newTestAuthService(t)
	users.users["merchant@example.com"] = &domain.User{Email: "merchant@example.com", PasswordHash: "hashed:Secret1pass"}

	p, err := svc.SignIn(context.Background(), "merchant@example.com", "Secret1pass")
	if err != nil {
		t.Fatalf("SignIn: %v", err)
	}
	if p.User == nil || p.Employee != nil {
		t.Fatalf("expected user principal, got %+v", p)
	}
}

func TestSignInEmployee(t *testing.T) {
	svc, _, employees, _, _ := newTestAuthService(t)
	employees.employees["sales@shopiq.test"] = &domain.Employee{Email: "sales@shopiq.test", PasswordHash: "hashed:Secret1pass"}

	p, err := svc.SignIn(context.Background(), "sales@shopiq.test", "Secret1pass")
	if err != nil {
		t.Fatalf("SignIn: %v", err)
	}
	if p.Employee == nil || p.User != nil {
		t.Fatalf("expected employee principal, got %+v", p)
	}
}

func TestSignInUserPrecedence(t *testing.T) {
	svc, users, employees, _, _ := newTestAuthService(t)
	users.users["both@example.com"] = &domain.User{Email: "both@example.com", PasswordHash: "hashed:Secret1pass"}
	employees.employees["both@example.com"] = &domain.Employee{Email: "both@example.com", PasswordHash: "hashed:Secret1pass"}

	p, err := svc.SignIn(context.Background(), "both@example.com", "Secret1pass")
	if err != nil {
		t.Fatalf("SignIn: %v", err)
	}
	if p.User == nil {
		t.Fatal("expected user to win when the email exists in both tables")
	}
}

func TestSignInUniformFailure(t *testing.T) {
	svc, users, employees, _, _ := newTestAuthService(t)
	users.users["merchant@example.com"] = &domain.User{Email: "merchant@example.com", PasswordHash: "hashed:Secret1pass"}
	employees.employees["sales@shopiq.test"] = &domain.Employee{Email: "sales@shopiq.test", PasswordHash: "hashed:Secret1pass"}

	cases := []struct {
		name  string
		email string
	}{
		{"wrong password for user", "merchant@example.com"},
		{"wrong password for employee", "sales@shopiq.test"},
		{"no such account", "nobody@example.com"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.SignIn(context.Background(), tc.email, "WrongPass1")
			if !errors.Is(err, ErrInvalidCredentials) {
				t.Fatalf("expected ErrInvalidCredentials, got %v", err)
			}
		})
	}
}

// Every sign-in performs exactly two password comparisons, whether the
// email matches a user, an employee, or nothing at all.
func TestSignInComparisonCountUniform(t *testing.T) {
	svc, users, employees, verifier, _ := newTestAuthService(t)
	users.users["merchant@example.com"] = &domain.User{Email: "merchant@example.com", PasswordHash: "hashed:Secret1pass"}
	employees.employees["sales@shopiq.test"] = &domain.Employee{Email: "sales@shopiq.test", PasswordHash: "hashed:Secret1pass"}

	for _, email := range []string{"merchant@example.com", "sales@shopiq.test", "nobody@example.com"} {
		before := verifier.verifyCalls
		_, _ = svc.SignIn(context.Background(), email, "Secret1pass")
		if got := verifier.verifyCalls - before; got != 2 {
			t.Fatalf("email %q: %d comparisons, want 2", email, got)
		}
	}
}

func TestSignUp(t *testing.T) {
	svc, users, _, _, _ := newTestAuthService(t)

	user, err := svc.SignUp(context.Background(), "new@example.com", "New Merchant", "Secret1pass")
	if err != nil {
		t.Fatalf("SignUp: %v", err)
	}
	if user.PasswordHash != "hashed:Secret1pass" {
		t.Fatalf("password not hashed through verifier: %q", user.PasswordHash)
	}
	if users.users["new@example.com"] == nil {
		t.Fatal("user not persisted")
	}
}

func TestSignUpDuplicateEmail(t *testing.T) {
	svc, users, employees, _, _ := newTestAuthService(t)
	users.users["merchant@example.com"] = &domain.User{Email: "merchant@example.com"}
	employees.employees["sales@shopiq.test"] = &domain.Employee{Email: "sales@shopiq.test"}

	for _, email := range []string{"merchant@example.com", "sales@shopiq.test"} {
		if _, err := svc.SignUp(context.Background(), email, "Dup", "Secret1pass"); !errors.Is(err, ErrEmailTaken) {
			t.Fatalf("email %q: expected ErrEmailTaken, got %v", email, err)
		}
	}
}

func TestSignUpWeakPassword(t *testing.T) {
	svc, _, _, _, _ := newTestAuthService(t)

	if _, err := svc.SignUp(context.Background(), "new@example.com", "New", "alllowercase1"); !errors.Is(err, security.ErrPasswordNoUpper) {
		t.Fatalf("expected ErrPasswordNoUpper, got %v", err)
	}
}

func TestForgotPasswordUnknownEmail(t *testing.T) {
	svc, users, _, _, mailer := newTestAuthService(t)

	if err := svc.ForgotPassword(context.Background(), "nobody@example.com"); err != nil {
		t.Fatalf("ForgotPassword: %v", err)
	}
	if users.resetTokenHash != "" {
		t.Fatal("token stored for unknown email")
	}
	select {
	case msg := <-mailer.resets:
		t.Fatalf("unexpected email sent: %+v", msg)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestForgotPasswordIssuesToken(t *testing.T) {
	svc, users, _, _, mailer := newTestAuthService(t)
	users.users["merchant@example.com"] = &domain.User{ID: 7, Email: "merchant@example.com", Name: "Merchant"}

	if err := svc.ForgotPassword(context.Background(), "merchant@example.com"); err != nil {
		t.Fatalf("ForgotPassword: %v", err)
	}
	if users.resetUserID != 7 {
		t.Fatalf("token stored for user %d, want 7", users.resetUserID)
	}
	if remaining := time.Until(users.resetExpiresAt); remaining < 59*time.Minute || remaining > time.Hour {
		t.Fatalf("expiry %v from now, want about one hour", remaining)
	}

	var msg mail.PasswordResetEmail
	select {
	case msg = <-mailer.resets:
	case <-time.After(2 * time.Second):
		t.Fatal("reset email never dispatched")
	}
	if msg.Email != "merchant@example.com" {
		t.Fatalf("email sent to %q", msg.Email)
	}
	const prefix = "https://app.shopiq.test/reset-password/start?token="
	if !strings.HasPrefix(msg.ResetURL, prefix) {
		t.Fatalf("reset URL %q", msg.ResetURL)
	}
	token := strings.TrimPrefix(msg.ResetURL, prefix)
	if security.HashResetToken(token) != users.resetTokenHash {
		t.Fatal("stored hash does not match the mailed token")
	}
}

func TestResetPassword(t *testing.T) {
	t.Run("user token", func(t *testing.T) {
		svc, users, _, _, _ := newTestAuthService(t)
		users.consumeOK = true
		if err := svc.ResetPassword(context.Background(), "sometoken", "Secret1pass"); err != nil {
			t.Fatalf("ResetPassword: %v", err)
		}
		if users.consumedHash != security.HashResetToken("sometoken") {
			t.Fatal("consume called with wrong hash")
		}
	})

	t.Run("employee token", func(t *testing.T) {
		svc, _, employees, _, _ := newTestAuthService(t)
		employees.consumeOK = true
		if err := svc.ResetPassword(context.Background(), "sometoken", "Secret1pass"); err != nil {
			t.Fatalf("ResetPassword: %v", err)
		}
	})

	t.Run("invalid token", func(t *testing.T) {
		svc, _, _, _, _ := newTestAuthService(t)
		if err := svc.ResetPassword(context.Background(), "bogus", "Secret1pass"); !errors.Is(err, ErrInvalidResetToken) {
			t.Fatalf("expected ErrInvalidResetToken, got %v", err)
		}
	})

	t.Run("weak replacement password", func(t *testing.T) {
		svc, users, _, _, _ := newTestAuthService(t)
		users.consumeOK = true
		if err := svc.ResetPassword(context.Background(), "sometoken", "short"); !errors.Is(err, security.ErrPasswordTooShort) {
			t.Fatalf("expected ErrPasswordTooShort, got %v", err)
		}
		if users.consumedHash != "" {
			t.Fatal("token consumed despite invalid password")
		}
	})
}
