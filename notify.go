package recipeauth

import (
	"context"
	"log/slog"
)

// NotificationKind identifies which user-visible event fired
type NotificationKind string

const (
	NotifyRedirectWelcome NotificationKind = "redirect_welcome"
	NotifyRedirectFailed  NotificationKind = "redirect_failed"
	NotifySignInWelcome   NotificationKind = "signin_welcome"
	NotifySignInFailed    NotificationKind = "signin_failed"
	NotifySignUpCheckMail NotificationKind = "signup_check_email"
	NotifySignedOut       NotificationKind = "signed_out"
	NotifySignOutFailed   NotificationKind = "signout_failed"
)

// Notification is a transient, toast-style message
type Notification struct {
	Kind    NotificationKind
	Message string
	Error   bool
}

// Notifier lets applications render notifications however they like
type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

// NotifierFunc adapts a function to the Notifier interface
type NotifierFunc func(ctx context.Context, n Notification)

func (f NotifierFunc) Notify(ctx context.Context, n Notification) { f(ctx, n) }

// LogNotifier is a development implementation that logs notifications
type LogNotifier struct {
	Logger *slog.Logger
}

func (l *LogNotifier) Notify(ctx context.Context, n Notification) {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if n.Error {
		logger.WarnContext(ctx, n.Message, "notification", string(n.Kind))
		return
	}
	logger.InfoContext(ctx, n.Message, "notification", string(n.Kind))
}

func welcomeMessage(name string) string {
	if name == "" {
		return "Welcome!"
	}
	return "Welcome, " + name + "!"
}
