package mail

import (
	"context"
	"log/slog"
)

type PasswordResetEmail struct {
	Email    string
	Name     string
	ResetURL string
}

type SalesWelcomeEmail struct {
	Email        string
	Name         string
	ResetURL     string
	DashboardURL string
	ExpiryHours  int
}

// Mailer delivery is fire-and-forget from the caller's perspective:
// services dispatch on a goroutine and log failures, never blocking the
// primary response on the mail provider.
type Mailer interface {
	SendPasswordResetEmail(ctx context.Context, msg PasswordResetEmail) error
	SendSalesWelcomeEmail(ctx context.Context, msg SalesWelcomeEmail) error
}

// LogMailer is the development implementation; it records the intent
// without the token-bearing URL.
type LogMailer struct{}

func NewLogMailer() *LogMailer { return &LogMailer{} }

func (m *LogMailer) SendPasswordResetEmail(ctx context.Context, msg PasswordResetEmail) error {
	slog.InfoContext(ctx, "password reset email dispatched", "email", msg.Email)
	return nil
}

func (m *LogMailer) SendSalesWelcomeEmail(ctx context.Context, msg SalesWelcomeEmail) error {
	slog.InfoContext(ctx, "sales welcome email dispatched", "email", msg.Email, "expiry_hours", msg.ExpiryHours)
	return nil
}

// Dispatch runs send on its own goroutine with a detached context so an
// early client disconnect cannot cancel delivery.
func Dispatch(send func(ctx context.Context) error) {
	go func() {
		if err := send(context.Background()); err != nil {
			slog.Error("email delivery failed", "error", err)
		}
	}()
}
