package identity

import (
	"context"
	"log/slog"
)

// EmailSender lets applications plug in their own mail delivery
type EmailSender interface {
	SendVerificationEmail(ctx context.Context, to, verificationLink string) error
	SendPasswordResetEmail(ctx context.Context, to, resetLink string) error
}

// ConsoleEmailSender is a development implementation that logs emails instead
// of sending them
type ConsoleEmailSender struct {
	Logger *slog.Logger
}

func (c *ConsoleEmailSender) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}

func (c *ConsoleEmailSender) SendVerificationEmail(ctx context.Context, to, verificationLink string) error {
	c.logger().InfoContext(ctx, "EMAIL: Verify your email address", "to", to, "link", verificationLink)
	return nil
}

func (c *ConsoleEmailSender) SendPasswordResetEmail(ctx context.Context, to, resetLink string) error {
	c.logger().InfoContext(ctx, "EMAIL: Reset your password", "to", to, "link", resetLink)
	return nil
}
